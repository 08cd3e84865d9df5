// Copyright (c) 2025 Jeremy Hahn
// Copyright (c) 2025 Automate The Things, LLC
//
// This file is part of go-keychain.

// Package shamir implements Shamir secret sharing of group scalars and
// Lagrange reconstruction at x = 0.
//
// A secret k is hidden as the constant term of a random polynomial f of
// degree t over Z_N. Share i is (i, f(i)) for i = 1..n. Any t+1 shares with
// distinct indices determine f and therefore k; any t shares reveal nothing
// about it. Every (t+1)-subset of consistent shares interpolates to the
// same value.
//
// Example:
//
//	poly, shares, err := shamir.ShareSecret(k, 1, 3, rand.Reader)
//	// any two of the three shares recover k
//	secret, err := shamir.Reconstruct([]shamir.Share{shares[0], shares[2]}, 1)
package shamir

import (
	"fmt"
	"io"
	"time"

	"github.com/sAeNrDER/Decentrlised-BEKD-for--Biometric-Authentication/pkg/group"
	"github.com/sAeNrDER/Decentrlised-BEKD-for--Biometric-Authentication/pkg/metrics"
)

// MaxShares bounds n. Share indices must fit the one-byte index space of
// the token layout.
const MaxShares = 255

// ValidateParams checks 0 <= t < n <= MaxShares.
func ValidateParams(t, n int) error {
	if n < 1 {
		return fmt.Errorf("%w: share count must be at least 1, got %d", ErrInvalidThreshold, n)
	}
	if n > MaxShares {
		return fmt.Errorf("%w: share count cannot exceed %d, got %d", ErrInvalidThreshold, MaxShares, n)
	}
	if t < 0 {
		return fmt.Errorf("%w: threshold cannot be negative, got %d", ErrInvalidThreshold, t)
	}
	if t >= n {
		return fmt.Errorf("%w: threshold (%d) must be below share count (%d)", ErrInvalidThreshold, t, n)
	}
	return nil
}

// ShareSecret hides k as the constant term of a fresh degree-t polynomial
// and returns it together with its evaluations at 1..n.
//
// Coefficients c1..ct are drawn independently and uniformly from [0, N)
// using rng. A polynomial must never be reused for a second secret.
// A zero k fails with group.ErrInvalidScalar.
func ShareSecret(k group.Scalar, t, n int, rng io.Reader) (_ *Polynomial, _ []Share, err error) {
	start := time.Now()
	defer func() {
		metrics.RecordOperation(metrics.OpShare, metrics.StatusFor(err, false), time.Since(start).Seconds())
	}()

	if err = ValidateParams(t, n); err != nil {
		return nil, nil, err
	}
	if k.IsZero() {
		return nil, nil, fmt.Errorf("%w: secret must be non-zero", group.ErrInvalidScalar)
	}

	coeffs := make([]group.Scalar, t+1)
	coeffs[0] = k
	for j := 1; j <= t; j++ {
		c, err := group.RandomScalar(rng)
		if err != nil {
			for i := range coeffs {
				coeffs[i].Zeroize()
			}
			return nil, nil, fmt.Errorf("shamir: draw coefficient %d: %w", j, err)
		}
		coeffs[j] = c
	}
	poly := &Polynomial{coeffs: coeffs}

	shares := make([]Share, n)
	for i := 1; i <= n; i++ {
		shares[i-1] = Share{
			Index: i,
			Value: poly.Eval(group.ScalarFromUint64(uint64(i))),
		}
	}
	return poly, shares, nil
}

// LagrangeCoefficients returns the basis weights Λi that interpolate a
// polynomial at x = 0 from values at the given indices:
//
//	Λi = Π_{j≠i} (0 - xj) * (xi - xj)^-1 mod N
//
// A repeated index makes some (xi - xj) zero and fails with
// ErrDegenerateShares.
func LagrangeCoefficients(indices []int) ([]group.Scalar, error) {
	return LagrangeCoefficientsAt(group.Scalar{}, indices)
}

// LagrangeCoefficientsAt is LagrangeCoefficients evaluated at an arbitrary
// x instead of 0. Authentication uses it to predict the share at an index
// outside the accepted subset.
func LagrangeCoefficientsAt(x group.Scalar, indices []int) ([]group.Scalar, error) {
	xs := make([]group.Scalar, len(indices))
	for i, idx := range indices {
		if err := (Share{Index: idx}).Validate(); err != nil {
			return nil, err
		}
		xs[i] = group.ScalarFromUint64(uint64(idx))
	}

	one := group.ScalarFromUint64(1)
	lambdas := make([]group.Scalar, len(xs))
	for i := range xs {
		num, den := one, one
		for j := range xs {
			if i == j {
				continue
			}
			num = num.Mul(x.Sub(xs[j]))
			den = den.Mul(xs[i].Sub(xs[j]))
		}
		if den.IsZero() {
			return nil, &DegenerateSharesError{Index: indices[i]}
		}
		inv, err := group.ModInverse(den)
		if err != nil {
			return nil, fmt.Errorf("shamir: invert denominator for index %d: %w", indices[i], err)
		}
		lambdas[i] = num.Mul(inv)
	}
	return lambdas, nil
}

// Reconstruct recovers f(0) from at least t+1 shares with pairwise-distinct
// indices. The caller passes the declared threshold t so a short share set
// is rejected with ErrInsufficientShares instead of silently interpolating
// a lower-degree polynomial.
func Reconstruct(shares []Share, t int) (group.Scalar, error) {
	if t < 0 {
		return group.Scalar{}, fmt.Errorf("%w: threshold cannot be negative, got %d", ErrInvalidThreshold, t)
	}
	if len(shares) < t+1 {
		return group.Scalar{}, &InsufficientSharesError{Have: len(shares), Need: t + 1}
	}

	lambdas, err := LagrangeCoefficients(Indices(shares))
	if err != nil {
		return group.Scalar{}, err
	}

	var secret group.Scalar
	for i, s := range shares {
		secret = secret.Add(s.Value.Mul(lambdas[i]))
	}
	return secret, nil
}
