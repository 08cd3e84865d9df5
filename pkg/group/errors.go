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

// Package group implements scalar and point arithmetic over the secp256k1
// prime-order group used by the BEKD enrollment and authentication protocol.
//
// Scalars are integers modulo the group order N. Points are affine curve
// points or the distinguished identity element. Multiplication by secret
// scalars uses a Montgomery ladder over a fixed-length recoding of the
// scalar so the sequence of group operations does not depend on the bits
// of the secret.
//
// The field and Jacobian point primitives come from
// github.com/decred/dcrd/dcrec/secp256k1/v4.
package group

import "errors"

var (
	// ErrInvalidScalar indicates a scalar that is zero where a secret is
	// required, or that is not below the group order.
	ErrInvalidScalar = errors.New("group: invalid scalar")

	// ErrPointNotOnCurve indicates decoded coordinates that do not satisfy
	// the curve equation.
	ErrPointNotOnCurve = errors.New("group: point not on curve")

	// ErrInvalidEncoding indicates a point or scalar encoding of the wrong length.
	ErrInvalidEncoding = errors.New("group: invalid encoding")

	// ErrRandomSource indicates the entropy source failed or was exhausted.
	ErrRandomSource = errors.New("group: random source failure")

	// ErrLengthMismatch indicates mismatched point and scalar slices in a
	// multi-scalar multiplication.
	ErrLengthMismatch = errors.New("group: points and scalars length mismatch")
)
