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

// Package authority holds the certificate authority (CA) key that signs
// enrollment tokens. The key is a secp256k1 scalar; its public point is
// published in the parameter registry, and signatures use the 65-byte
// compact recoverable form so verifiers can recover the signer from the
// token alone.
//
// The CA also answers the binding query Helper(R0) = R0^sk. Enrollment
// stores R1 = pk^r, which equals R0^sk for an honest token, so the CA can
// confirm a token was issued against its key without learning r.
package authority

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/decred/dcrd/dcrec/secp256k1/v4/ecdsa"

	"github.com/sAeNrDER/Decentrlised-BEKD-for--Biometric-Authentication/pkg/group"
)

// SignatureSize is the length of a compact recoverable signature:
// one recovery byte followed by R and S.
const SignatureSize = 65

var (
	// ErrInvalidSignature indicates a malformed signature or one made by a
	// key other than the expected authority.
	ErrInvalidSignature = errors.New("authority: invalid signature")

	// ErrInvalidKey indicates key material that is not a valid secret scalar.
	ErrInvalidKey = errors.New("authority: invalid key")
)

// Authority is a CA signing key. It is safe for concurrent use.
type Authority struct {
	sk   group.Scalar
	priv *secp256k1.PrivateKey
	pub  group.Point
}

// GenerateKey draws a fresh CA key from rng.
func GenerateKey(rng io.Reader) (*Authority, error) {
	sk, err := group.RandomNonZeroScalar(rng)
	if err != nil {
		return nil, fmt.Errorf("authority: generate key: %w", err)
	}
	return newAuthority(sk), nil
}

// FromBytes loads a CA key from its 32-byte big-endian encoding.
func FromBytes(b []byte) (*Authority, error) {
	sk, err := group.NewSecretScalar(b)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidKey, err)
	}
	return newAuthority(sk), nil
}

func newAuthority(sk group.Scalar) *Authority {
	raw := sk.Bytes()
	priv := secp256k1.PrivKeyFromBytes(raw[:])
	group.ZeroBytes(raw[:])
	return &Authority{
		sk:   sk,
		priv: priv,
		pub:  group.ScalarBaseMul(sk),
	}
}

// Bytes returns the 32-byte secret key. Callers own the copy and should
// wipe it after use.
func (a *Authority) Bytes() [32]byte {
	return a.sk.Bytes()
}

// PublicKey returns pk = sk*G.
func (a *Authority) PublicKey() group.Point {
	return a.pub
}

// Sign produces a compact recoverable ECDSA signature (RFC 6979 nonces)
// over a 32-byte digest.
func (a *Authority) Sign(digest [32]byte) ([SignatureSize]byte, error) {
	var out [SignatureSize]byte
	sig := ecdsa.SignCompact(a.priv, digest[:], false)
	if len(sig) != SignatureSize {
		return out, fmt.Errorf("authority: unexpected signature length %d", len(sig))
	}
	copy(out[:], sig)
	return out, nil
}

// Helper returns R0^sk. It never fails for a local key; the context and
// error exist so a remote CA can satisfy the same interface.
func (a *Authority) Helper(_ context.Context, r0 group.Point) (group.Point, error) {
	return group.ScalarMul(r0, a.sk), nil
}

// VerifyBinding reports whether r1 == R0^sk.
func (a *Authority) VerifyBinding(r0, r1 group.Point) bool {
	return group.ScalarMul(r0, a.sk).Equal(r1)
}

// Zeroize wipes the secret key. The Authority must not be used afterwards.
func (a *Authority) Zeroize() {
	a.sk.Zeroize()
	a.priv.Zero()
}

// RecoverPublicKey returns the public key that produced sig over digest.
func RecoverPublicKey(digest [32]byte, sig [SignatureSize]byte) (group.Point, error) {
	pub, _, err := ecdsa.RecoverCompact(sig[:], digest[:])
	if err != nil {
		return group.Point{}, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}
	return group.PointFromPublicKey(pub), nil
}

// VerifySignature checks that sig over digest was made by pub.
func VerifySignature(pub group.Point, digest [32]byte, sig [SignatureSize]byte) error {
	signer, err := RecoverPublicKey(digest, sig)
	if err != nil {
		return err
	}
	if !signer.Equal(pub) {
		return fmt.Errorf("%w: signer does not match authority key", ErrInvalidSignature)
	}
	return nil
}
