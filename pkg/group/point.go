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
	"encoding/hex"
	"fmt"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
)

// PointSize is the length of an uncompressed point encoding without the
// SEC1 prefix byte: 32-byte x followed by 32-byte y.
const PointSize = 64

// Point is an element of the secp256k1 group held in Jacobian coordinates.
// The zero value is the identity (point at infinity).
type Point struct {
	j secp256k1.JacobianPoint
}

// Generator returns the group base point G.
func Generator() Point {
	var one secp256k1.ModNScalar
	one.SetInt(1)
	var p Point
	secp256k1.ScalarBaseMultNonConst(&one, &p.j)
	return p
}

// Identity returns the point at infinity.
func Identity() Point {
	return Point{}
}

// IsIdentity reports whether p is the point at infinity.
func (p Point) IsIdentity() bool {
	q := p.j
	q.X.Normalize()
	q.Y.Normalize()
	q.Z.Normalize()
	return (q.X.IsZero() && q.Y.IsZero()) || q.Z.IsZero()
}

// PointAdd returns p + q.
func PointAdd(p, q Point) Point {
	var r Point
	secp256k1.AddNonConst(&p.j, &q.j, &r.j)
	return r
}

// Neg returns -p.
func (p Point) Neg() Point {
	if p.IsIdentity() {
		return Identity()
	}
	r := p
	r.j.Y.Normalize()
	r.j.Y.Negate(1)
	r.j.Y.Normalize()
	return r
}

// Sub returns p - q.
func (p Point) Sub(q Point) Point {
	return PointAdd(p, q.Neg())
}

// Equal reports whether p and q represent the same group element.
func (p Point) Equal(q Point) bool {
	a, b := p.Bytes(), q.Bytes()
	return subtle.ConstantTimeCompare(a[:], b[:]) == 1
}

// Bytes returns the 64-byte affine encoding x||y. The identity encodes as
// 64 zero bytes.
func (p Point) Bytes() [PointSize]byte {
	var out [PointSize]byte
	if p.IsIdentity() {
		return out
	}
	q := p.j
	q.ToAffine()
	q.X.Normalize()
	q.Y.Normalize()
	var x, y [32]byte
	q.X.PutBytes(&x)
	q.Y.PutBytes(&y)
	copy(out[:32], x[:])
	copy(out[32:], y[:])
	return out
}

// String returns the hex encoding of p.
func (p Point) String() string {
	b := p.Bytes()
	return hex.EncodeToString(b[:])
}

// PublicKey converts p to a decred public key. The identity has no public
// key representation.
func (p Point) PublicKey() (*secp256k1.PublicKey, error) {
	if p.IsIdentity() {
		return nil, fmt.Errorf("%w: identity has no public key", ErrInvalidEncoding)
	}
	q := p.j
	q.ToAffine()
	return secp256k1.NewPublicKey(&q.X, &q.Y), nil
}

// PointFromPublicKey converts a decred public key to a Point.
func PointFromPublicKey(pub *secp256k1.PublicKey) Point {
	var p Point
	pub.AsJacobian(&p.j)
	return p
}

// PointFromBytes decodes a 64-byte x||y encoding. 64 zero bytes decode to
// the identity; any other input must satisfy y^2 = x^3 + 7.
func PointFromBytes(b []byte) (Point, error) {
	if len(b) != PointSize {
		return Point{}, fmt.Errorf("%w: point must be %d bytes, got %d",
			ErrInvalidEncoding, PointSize, len(b))
	}
	allZero := true
	for _, c := range b {
		if c != 0 {
			allZero = false
			break
		}
	}
	if allZero {
		return Identity(), nil
	}

	var x, y secp256k1.FieldVal
	if overflow := x.SetByteSlice(b[:32]); overflow {
		return Point{}, fmt.Errorf("%w: x coordinate not below field prime", ErrPointNotOnCurve)
	}
	if overflow := y.SetByteSlice(b[32:]); overflow {
		return Point{}, fmt.Errorf("%w: y coordinate not below field prime", ErrPointNotOnCurve)
	}
	if !isOnCurve(&x, &y) {
		return Point{}, ErrPointNotOnCurve
	}

	var p Point
	p.j.X.Set(&x)
	p.j.Y.Set(&y)
	p.j.Z.SetInt(1)
	return p, nil
}

// isOnCurve checks y^2 = x^3 + 7 over the base field.
func isOnCurve(x, y *secp256k1.FieldVal) bool {
	var lhs, rhs secp256k1.FieldVal
	lhs.SquareVal(y).Normalize()
	rhs.SquareVal(x).Mul(x).AddInt(7).Normalize()
	return lhs.Equals(&rhs)
}
