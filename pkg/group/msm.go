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
	"fmt"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
)

// MultiScalarMul returns sum(scalars[i] * points[i]) using Straus'
// interleaving: all terms share a single chain of 256 doublings, so no
// per-term partial product is ever materialized.
//
// The scalars drive data-dependent additions. Use this only where the
// scalars are public, such as Lagrange coefficients over known indices.
func MultiScalarMul(points []Point, scalars []Scalar) (Point, error) {
	if len(points) != len(scalars) {
		return Point{}, fmt.Errorf("%w: %d points, %d scalars",
			ErrLengthMismatch, len(points), len(scalars))
	}

	enc := make([][ScalarSize]byte, len(scalars))
	for i := range scalars {
		enc[i] = scalars[i].Bytes()
	}

	var acc, tmp secp256k1.JacobianPoint
	for bit := ScalarSize*8 - 1; bit >= 0; bit-- {
		secp256k1.DoubleNonConst(&acc, &tmp)
		acc.Set(&tmp)
		for i := range points {
			if (enc[i][ScalarSize-1-bit/8]>>uint(bit%8))&1 == 0 {
				continue
			}
			secp256k1.AddNonConst(&acc, &points[i].j, &tmp)
			acc.Set(&tmp)
		}
	}
	return Point{j: acc}, nil
}
