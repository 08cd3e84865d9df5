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
	"crypto/subtle"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
)

// recodedSize holds k+N or k+2N, both of which lie in [2^256, 2^257).
const recodedSize = ScalarSize + 1

// orderBytes is N as a 33-byte big-endian value.
var orderBytes = func() [recodedSize]byte {
	var b [recodedSize]byte
	secp256k1.Params().N.FillBytes(b[:])
	return b
}()

// ScalarMul returns k*P.
//
// The product is computed with a Montgomery ladder over a 257-bit recoding
// of k whose top bit is always set. Every scalar therefore runs the same
// 256 add/double steps, and the two ladder registers are exchanged with a
// masked byte swap instead of a branch.
func ScalarMul(p Point, k Scalar) Point {
	if p.IsIdentity() || k.IsZero() {
		return Identity()
	}

	rec := recode(k)

	var r0, r1, sum, dbl secp256k1.JacobianPoint
	r0.Set(&p.j)
	secp256k1.DoubleNonConst(&r0, &r1)

	var swap byte
	for i := ScalarSize*8 - 1; i >= 0; i-- {
		bit := (rec[recodedSize-1-i/8] >> uint(i%8)) & 1
		condSwap(&r0, &r1, swap^bit)
		swap = bit

		secp256k1.AddNonConst(&r0, &r1, &sum)
		secp256k1.DoubleNonConst(&r0, &dbl)
		r1.Set(&sum)
		r0.Set(&dbl)
	}
	condSwap(&r0, &r1, swap)
	ZeroBytes(rec[:])

	return Point{j: r0}
}

// ScalarBaseMul returns k*G.
func ScalarBaseMul(k Scalar) Point {
	return ScalarMul(Generator(), k)
}

// recode returns k+N when that sum has bit 256 set and k+2N otherwise.
// Both candidates are computed and the choice is made with a constant-time
// copy, so the recoding leaks nothing about k.
func recode(k Scalar) [recodedSize]byte {
	var kb [recodedSize]byte
	raw := k.Bytes()
	copy(kb[1:], raw[:])
	ZeroBytes(raw[:])

	var once, twice [recodedSize]byte
	addBytes(&once, &kb, &orderBytes)
	addBytes(&twice, &once, &orderBytes)
	ZeroBytes(kb[:])

	subtle.ConstantTimeCopy(int(once[0]&1), twice[:], once[:])
	ZeroBytes(once[:])
	return twice
}

// addBytes sets dst = x + y over 33-byte big-endian integers. The carry out
// of the top byte is discarded; callers keep sums below 2^264.
func addBytes(dst, x, y *[recodedSize]byte) {
	var carry uint16
	for i := recodedSize - 1; i >= 0; i-- {
		s := uint16(x[i]) + uint16(y[i]) + carry
		dst[i] = byte(s)
		carry = s >> 8
	}
}

// condSwap exchanges a and b when swap is 1 and leaves them untouched when
// swap is 0, without branching on swap.
func condSwap(a, b *secp256k1.JacobianPoint, swap byte) {
	condSwapField(&a.X, &b.X, swap)
	condSwapField(&a.Y, &b.Y, swap)
	condSwapField(&a.Z, &b.Z, swap)
}

func condSwapField(a, b *secp256k1.FieldVal, swap byte) {
	var ab, bb [32]byte
	a.Normalize().PutBytes(&ab)
	b.Normalize().PutBytes(&bb)
	mask := -swap
	for i := range ab {
		t := mask & (ab[i] ^ bb[i])
		ab[i] ^= t
		bb[i] ^= t
	}
	a.SetBytes(&ab)
	b.SetBytes(&bb)
}
