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

// Package bekd composes the group arithmetic, the H0 oracle and Shamir
// sharing into the two phases of biometric key derivation.
//
// Enrollment hides a fresh secret k behind n masked shares, one per
// biometric feature:
//
//	K   = k*G                      public commitment
//	R0  = r*G, R1 = r*pk           masking base and CA binding
//	w_i = H0(W_i, salt_i)
//	A_i = w_i*R0 + f(i)*G          masked share i
//
// Authentication unmasks every share with fresh feature readings W'_i,
// then searches the (t+1)-subsets of unmasked shares for one whose
// exponent-domain Lagrange combination equals K. Up to n-(t+1) features
// may differ from enrollment. Matching is exact at the level of H0's
// output; any feature quantization happens upstream.
//
// Example:
//
//	enroller := &bekd.Enroller{Params: bekd.DefaultParams(), Signer: ca}
//	enrollment, err := enroller.Enroll(ctx, features)
//
//	auth := &bekd.Authenticator{Registry: reg, SpentSet: spent}
//	res, err := auth.Authenticate(ctx, enrollment.Token, fresh, enrollment.Commitment)
//	if errors.Is(err, bekd.ErrAuthenticationFailed) {
//		// biometric mismatch, res.Accepted == false
//	}
package bekd

import (
	"context"
	"crypto/rand"
	"fmt"
	"io"
	"runtime"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/sAeNrDER/Decentrlised-BEKD-for--Biometric-Authentication/pkg/adapters/logger"
	"github.com/sAeNrDER/Decentrlised-BEKD-for--Biometric-Authentication/pkg/correlation"
	"github.com/sAeNrDER/Decentrlised-BEKD-for--Biometric-Authentication/pkg/group"
	"github.com/sAeNrDER/Decentrlised-BEKD-for--Biometric-Authentication/pkg/metrics"
	"github.com/sAeNrDER/Decentrlised-BEKD-for--Biometric-Authentication/pkg/threshold/shamir"
)

// Enroller issues tokens. The zero RNG means crypto/rand; the zero Logger
// logs warnings and errors to stderr. An Enroller is safe for concurrent
// use when its RNG is.
type Enroller struct {
	Params Params
	Signer Signer
	RNG    io.Reader
	Logger logger.Logger
}

// Enrollment is the result of a successful enrollment.
type Enrollment struct {
	Token      *Token
	Commitment group.Point
	Address    [group.AddressSize]byte
	Ops        OpCounts
	Duration   time.Duration
}

// Enroll draws a fresh secret and issues a token over features, which must
// hold exactly Params.Features values. Enrollment is all-or-nothing: on
// any error no token is returned.
func (e *Enroller) Enroll(ctx context.Context, features [][]byte) (*Enrollment, error) {
	k, err := group.RandomNonZeroScalar(e.rng())
	if err != nil {
		return nil, e.fail(ctx, time.Now(), &EnrollmentError{Phase: PhaseGenerateSecret, Err: err})
	}
	defer k.Zeroize()
	return e.EnrollSecret(ctx, k, features)
}

// EnrollSecret issues a token for a caller-chosen secret k. k must be
// nonzero.
func (e *Enroller) EnrollSecret(ctx context.Context, k group.Scalar, features [][]byte) (*Enrollment, error) {
	start := time.Now()
	ctx, _ = correlation.Ensure(ctx)
	log := e.log()

	if err := e.checkInputs(ctx, k, features); err != nil {
		return nil, e.fail(ctx, start, err)
	}

	var ops OpCounts
	rng := e.rng()
	t, n := e.Params.Threshold, e.Params.Features

	commitment := group.ScalarBaseMul(k)
	ops.ScalarMuls++

	r, err := group.RandomNonZeroScalar(rng)
	if err != nil {
		return nil, e.fail(ctx, start, &EnrollmentError{Phase: PhaseGenerateMask, Err: err})
	}
	defer r.Zeroize()
	r0 := group.ScalarBaseMul(r)
	r1 := group.ScalarMul(e.Signer.PublicKey(), r)
	ops.ScalarMuls += 2

	poly, shares, err := shamir.ShareSecret(k, t, n, rng)
	if err != nil {
		return nil, e.fail(ctx, start, &EnrollmentError{Phase: PhaseShare, Err: err})
	}
	defer func() {
		poly.Zeroize()
		for i := range shares {
			shares[i].Value.Zeroize()
		}
	}()

	// Salts come from rng in feature order before the fan-out, so a seeded
	// generator yields the same token on every run.
	salts := make([][SaltSize]byte, n)
	for i := range salts {
		if _, err := io.ReadFull(rng, salts[i][:]); err != nil {
			return nil, e.fail(ctx, start, &EnrollmentError{
				Phase: PhasePerFeature,
				Err:   fmt.Errorf("%w: draw salt %d: %v", ErrRngFailure, i+1, err),
			})
		}
	}

	masked := make([]group.Point, n)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i := 0; i < n; i++ {
		i := i
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			w := group.HashToScalar(features[i], salts[i][:])
			defer w.Zeroize()
			masked[i] = group.PointAdd(group.ScalarMul(r0, w), group.ScalarBaseMul(shares[i].Value))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, e.fail(ctx, start, &EnrollmentError{Phase: PhasePerFeature, Err: err})
	}
	ops = ops.Add(OpCounts{Hashes: n, ScalarMuls: 2 * n, PointAdds: n})

	token := &Token{
		Salts:        salts,
		R0:           r0,
		R1:           r1,
		MaskedShares: masked,
	}
	if err := token.Validate(); err != nil {
		return nil, e.fail(ctx, start, &EnrollmentError{Phase: PhaseAssemble, Err: err})
	}
	token.ID = token.Digest()
	ops.Hashes++

	sig, err := e.Signer.Sign(token.ID)
	if err != nil {
		return nil, e.fail(ctx, start, &EnrollmentError{Phase: PhaseSign, Err: collaboratorErr("sign token", err)})
	}
	token.Signature = sig

	res := &Enrollment{
		Token:      token,
		Commitment: commitment,
		Address:    group.Address(commitment),
		Ops:        ops,
		Duration:   time.Since(start),
	}
	ops.record(metrics.OpEnroll)
	metrics.RecordOperation(metrics.OpEnroll, metrics.StatusSuccess, res.Duration.Seconds())
	log.InfoContext(ctx, "enrollment complete",
		logger.String("token_id", token.ID.String()),
		logger.Int("t", t),
		logger.Int("n", n),
		logger.Int("scalar_muls", ops.ScalarMuls))
	return res, nil
}

func (e *Enroller) checkInputs(ctx context.Context, k group.Scalar, features [][]byte) error {
	if err := ctx.Err(); err != nil {
		return &EnrollmentError{Phase: PhaseInit, Err: err}
	}
	if err := e.Params.Validate(); err != nil {
		return &EnrollmentError{Phase: PhaseInit, Err: err}
	}
	if len(features) != e.Params.Features {
		return &EnrollmentError{
			Phase: PhaseInit,
			Err:   fmt.Errorf("%w: got %d, want %d", ErrFeatureCount, len(features), e.Params.Features),
		}
	}
	if e.Signer == nil {
		return &EnrollmentError{Phase: PhaseInit, Err: fmt.Errorf("bekd: enroller has no signer")}
	}
	if k.IsZero() {
		return &EnrollmentError{
			Phase: PhaseGenerateSecret,
			Err:   fmt.Errorf("%w: secret must be nonzero", ErrInvalidScalar),
		}
	}
	return nil
}

func (e *Enroller) fail(ctx context.Context, start time.Time, err error) error {
	metrics.RecordOperation(metrics.OpEnroll, metrics.StatusError, time.Since(start).Seconds())
	metrics.RecordError(metrics.OpEnroll, errorType(err))
	e.log().ErrorContext(ctx, "enrollment failed", logger.Error(err))
	return err
}

func (e *Enroller) rng() io.Reader {
	if e.RNG == nil {
		return rand.Reader
	}
	return e.RNG
}

func (e *Enroller) log() logger.Logger {
	if e.Logger == nil {
		return defaultLogger
	}
	return e.Logger
}

var defaultLogger logger.Logger = logger.NewSlogAdapter(&logger.SlogConfig{Level: logger.LevelWarn})
