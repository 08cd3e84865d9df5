// Copyright (c) 2025 Jeremy Hahn
// Copyright (c) 2025 Automate The Things, LLC
//
// This file is part of go-keychain.
//
// go-keychain is dual-licensed:
//
// 1. GNU Affero General Public License v3.0 (AGPL-3.0)
//    See LICENSE file or visit https://www.gnu.org/licenses/agpl-3.0.html
//
// 2. Commercial License
//    Contact licensing@automatethethings.com for commercial licensing options.

package group

import (
	"encoding/hex"
	"fmt"
	"io"
	"math/big"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
)

// ScalarSize is the length in bytes of an encoded scalar.
const ScalarSize = 32

// maxRandomAttempts bounds rejection sampling. A 32-byte draw lands at or
// above N with probability below 2^-127, so hitting this limit means the
// source is broken rather than unlucky.
const maxRandomAttempts = 64

// Scalar is an integer modulo the group order N. The zero value is 0.
type Scalar struct {
	v secp256k1.ModNScalar
}

// Order returns the group order N.
func Order() *big.Int {
	return new(big.Int).Set(secp256k1.Params().N)
}

// ScalarFromUint64 returns x mod N.
func ScalarFromUint64(x uint64) Scalar {
	var b [ScalarSize]byte
	for i := 0; i < 8; i++ {
		b[ScalarSize-1-i] = byte(x >> (8 * i))
	}
	var s Scalar
	s.v.SetBytes(&b)
	return s
}

// ScalarFromBytes decodes a big-endian integer of at most 32 bytes.
// Values at or above N are rejected with ErrInvalidScalar.
func ScalarFromBytes(b []byte) (Scalar, error) {
	if len(b) > ScalarSize {
		return Scalar{}, fmt.Errorf("%w: %d bytes", ErrInvalidEncoding, len(b))
	}
	var s Scalar
	if overflow := s.v.SetByteSlice(b); overflow {
		return Scalar{}, fmt.Errorf("%w: value not below group order", ErrInvalidScalar)
	}
	return s, nil
}

// ScalarFromBigInt reduces x modulo N. Negative values wrap around.
func ScalarFromBigInt(x *big.Int) Scalar {
	r := new(big.Int).Mod(x, secp256k1.Params().N)
	var b [ScalarSize]byte
	r.FillBytes(b[:])
	var s Scalar
	s.v.SetBytes(&b)
	return s
}

// NewSecretScalar decodes a scalar that represents a secret. Zero is
// reserved as "no secret" and rejected along with values at or above N.
func NewSecretScalar(b []byte) (Scalar, error) {
	s, err := ScalarFromBytes(b)
	if err != nil {
		return Scalar{}, err
	}
	if s.IsZero() {
		return Scalar{}, fmt.Errorf("%w: zero", ErrInvalidScalar)
	}
	return s, nil
}

// RandomScalar draws a scalar uniformly from [0, N) by rejection sampling.
func RandomScalar(rng io.Reader) (Scalar, error) {
	var b [ScalarSize]byte
	for i := 0; i < maxRandomAttempts; i++ {
		if _, err := io.ReadFull(rng, b[:]); err != nil {
			return Scalar{}, fmt.Errorf("%w: %w", ErrRandomSource, err)
		}
		var s Scalar
		if overflow := s.v.SetBytes(&b); overflow == 0 {
			ZeroBytes(b[:])
			return s, nil
		}
	}
	return Scalar{}, fmt.Errorf("%w: rejection sampling exhausted", ErrRandomSource)
}

// RandomNonZeroScalar draws a scalar uniformly from [1, N).
func RandomNonZeroScalar(rng io.Reader) (Scalar, error) {
	for i := 0; i < maxRandomAttempts; i++ {
		s, err := RandomScalar(rng)
		if err != nil {
			return Scalar{}, err
		}
		if !s.IsZero() {
			return s, nil
		}
	}
	return Scalar{}, fmt.Errorf("%w: source keeps returning zero", ErrRandomSource)
}

// Add returns s + t mod N.
func (s Scalar) Add(t Scalar) Scalar {
	var r Scalar
	r.v.Add2(&s.v, &t.v)
	return r
}

// Sub returns s - t mod N.
func (s Scalar) Sub(t Scalar) Scalar {
	var neg secp256k1.ModNScalar
	neg.NegateVal(&t.v)
	var r Scalar
	r.v.Add2(&s.v, &neg)
	return r
}

// Mul returns s * t mod N.
func (s Scalar) Mul(t Scalar) Scalar {
	var r Scalar
	r.v.Mul2(&s.v, &t.v)
	return r
}

// Neg returns -s mod N.
func (s Scalar) Neg() Scalar {
	var r Scalar
	r.v.NegateVal(&s.v)
	return r
}

// Inverse returns s^-1 mod N.
func (s Scalar) Inverse() (Scalar, error) {
	return ModInverse(s)
}

// IsZero reports whether s is 0.
func (s Scalar) IsZero() bool {
	return s.v.IsZero()
}

// Equal reports whether s and t are the same scalar.
func (s Scalar) Equal(t Scalar) bool {
	return s.v.Equals(&t.v)
}

// Bytes returns the 32-byte big-endian encoding of s.
func (s Scalar) Bytes() [ScalarSize]byte {
	var b [ScalarSize]byte
	s.v.PutBytes(&b)
	return b
}

// Int returns s as a big.Int. Intended for display and tests only.
func (s Scalar) Int() *big.Int {
	b := s.Bytes()
	return new(big.Int).SetBytes(b[:])
}

// String returns the hex encoding of s.
func (s Scalar) String() string {
	b := s.Bytes()
	return hex.EncodeToString(b[:])
}

// Zeroize clears the scalar.
func (s *Scalar) Zeroize() {
	s.v.Zero()
}

// ModInverse computes x^-1 mod N by Fermat's little theorem, x^(N-2).
// The exponent is public, so the square-and-multiply schedule is fixed
// for every x.
func ModInverse(x Scalar) (Scalar, error) {
	if x.IsZero() {
		return Scalar{}, fmt.Errorf("%w: zero has no inverse", ErrInvalidScalar)
	}
	var e [ScalarSize]byte
	new(big.Int).Sub(secp256k1.Params().N, big.NewInt(2)).FillBytes(e[:])

	var r secp256k1.ModNScalar
	r.SetInt(1)
	for i := 0; i < ScalarSize*8; i++ {
		r.Square()
		if (e[i/8]>>(7-uint(i%8)))&1 == 1 {
			r.Mul(&x.v)
		}
	}
	return Scalar{v: r}, nil
}

// ZeroBytes overwrites b with zeros.
func ZeroBytes(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
