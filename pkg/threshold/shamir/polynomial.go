// Copyright (c) 2025 Jeremy Hahn
// Copyright (c) 2025 Automate The Things, LLC
//
// This file is part of go-keychain.

package shamir

import (
	"github.com/sAeNrDER/Decentrlised-BEKD-for--Biometric-Authentication/pkg/group"
)

// Polynomial is f(x) = c0 + c1*x + ... + ct*x^t over Z_N. The constant
// term c0 is the shared secret.
type Polynomial struct {
	coeffs []group.Scalar
}

// Degree returns t.
func (p *Polynomial) Degree() int {
	return len(p.coeffs) - 1
}

// Secret returns f(0).
func (p *Polynomial) Secret() group.Scalar {
	return p.coeffs[0]
}

// Coefficients returns a copy of c0..ct.
func (p *Polynomial) Coefficients() []group.Scalar {
	out := make([]group.Scalar, len(p.coeffs))
	copy(out, p.coeffs)
	return out
}

// Eval evaluates f at x with Horner's rule.
func (p *Polynomial) Eval(x group.Scalar) group.Scalar {
	var acc group.Scalar
	for i := len(p.coeffs) - 1; i >= 0; i-- {
		acc = acc.Mul(x).Add(p.coeffs[i])
	}
	return acc
}

// Zeroize clears every coefficient. The polynomial must not be reused
// afterwards.
func (p *Polynomial) Zeroize() {
	for i := range p.coeffs {
		p.coeffs[i].Zeroize()
	}
}
