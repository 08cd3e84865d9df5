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

package bekd

import (
	"context"
	"encoding/hex"
	"fmt"
	"runtime"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/sAeNrDER/Decentrlised-BEKD-for--Biometric-Authentication/pkg/adapters/logger"
	"github.com/sAeNrDER/Decentrlised-BEKD-for--Biometric-Authentication/pkg/authority"
	"github.com/sAeNrDER/Decentrlised-BEKD-for--Biometric-Authentication/pkg/correlation"
	"github.com/sAeNrDER/Decentrlised-BEKD-for--Biometric-Authentication/pkg/group"
	"github.com/sAeNrDER/Decentrlised-BEKD-for--Biometric-Authentication/pkg/metrics"
	"github.com/sAeNrDER/Decentrlised-BEKD-for--Biometric-Authentication/pkg/threshold/shamir"
)

// Authenticator verifies fresh feature readings against a stored token.
// Registry and SpentSet are required. Wallet, Binder and Limiter are
// optional; a nil one skips its check.
//
// Subsets of t+1 unmasked shares are tried in lexicographic order and the
// first whose combination equals the commitment accepts. MaxSubsets caps
// the search; zero means every C(n, t+1) subset.
type Authenticator struct {
	Registry   Registry
	SpentSet   SpentSet
	Wallet     Wallet
	Binder     Binder
	Limiter    RateLimiter
	Policy     ConsumePolicy
	MaxSubsets int
	Logger     logger.Logger
}

// Authentication is the outcome of one attempt. Subset holds the feature
// indices that reconstructed the commitment. Mismatched lists the indices
// outside Subset whose unmasked share disagrees with the interpolated
// polynomial, i.e. the features that did not reproduce their enrollment
// value.
type Authentication struct {
	Accepted     bool
	TokenID      TokenID
	Identity     [group.AddressSize]byte
	Subset       []int
	SubsetsTried int
	Mismatched   []int
	Consumed     bool
	Ops          OpCounts
	Duration     time.Duration
}

// IdentityHex is the owner address as 0x-prefixed hex.
func (a *Authentication) IdentityHex() string {
	return "0x" + hex.EncodeToString(a.Identity[:])
}

// Authenticate checks features against token and the enrolled commitment.
//
// The token ID is checked against the spent set before any group
// arithmetic. A biometric mismatch returns a non-nil result with
// Accepted == false together with ErrAuthenticationFailed; every other
// error returns a nil result. IsRejection separates protocol rejections
// from faults.
func (a *Authenticator) Authenticate(ctx context.Context, token *Token, features [][]byte, commitment group.Point) (*Authentication, error) {
	start := time.Now()
	ctx, _ = correlation.Ensure(ctx)

	res, err := a.authenticate(ctx, token, features, commitment)
	elapsed := time.Since(start)
	if res != nil {
		res.Duration = elapsed
		res.Ops.record(metrics.OpAuthenticate)
		metrics.RecordSubsetsTried(res.SubsetsTried)
	}

	rejected := IsRejection(err)
	metrics.RecordOperation(metrics.OpAuthenticate, metrics.StatusFor(err, rejected), elapsed.Seconds())
	log := a.log()
	switch {
	case err == nil:
		log.InfoContext(ctx, "authentication accepted",
			logger.String("token_id", res.TokenID.String()),
			logger.Ints("subset", res.Subset),
			logger.Ints("mismatched", res.Mismatched),
			logger.Int("subsets_tried", res.SubsetsTried))
	case rejected:
		metrics.RecordError(metrics.OpAuthenticate, errorType(err))
		log.WarnContext(ctx, "authentication rejected", logger.Error(err))
	default:
		metrics.RecordError(metrics.OpAuthenticate, errorType(err))
		log.ErrorContext(ctx, "authentication error", logger.Error(err))
	}
	return res, err
}

func (a *Authenticator) authenticate(ctx context.Context, token *Token, features [][]byte, commitment group.Point) (*Authentication, error) {
	if err := a.checkInputs(ctx, token, features); err != nil {
		return nil, err
	}

	used, err := a.SpentSet.IsUsed(ctx, token.ID)
	if err != nil {
		return nil, collaboratorErr("check spent set", err)
	}
	if used {
		return nil, fmt.Errorf("%w: %s", ErrTokenReplay, token.ID)
	}

	if commitment.IsIdentity() {
		return nil, fmt.Errorf("%w: commitment is the identity", ErrInvalidScalar)
	}
	res := &Authentication{
		TokenID:  token.ID,
		Identity: group.Address(commitment),
	}
	res.Ops.Hashes++

	if a.Limiter != nil && !a.Limiter.Allow(res.IdentityHex()) {
		return nil, fmt.Errorf("%w: %s", ErrRateLimited, res.IdentityHex())
	}

	if a.Wallet != nil {
		ok, err := a.Wallet.IsAuthorized(ctx, res.Identity)
		if err != nil {
			return nil, collaboratorErr("check wallet", err)
		}
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnauthorizedIdentity, res.IdentityHex())
		}
	}

	params, err := a.verifyToken(ctx, token, &res.Ops)
	if err != nil {
		return nil, err
	}

	candidates, err := unmask(ctx, token, features)
	if err != nil {
		return nil, err
	}
	n := token.Features()
	res.Ops = res.Ops.Add(OpCounts{Hashes: n, ScalarMuls: n, PointAdds: n})

	if err := a.search(ctx, params, candidates, commitment, res); err != nil {
		return nil, err
	}

	if res.Accepted || a.Policy == ConsumeOnAttempt {
		if err := a.SpentSet.MarkUsed(ctx, token.ID); err != nil {
			return nil, collaboratorErr("mark token used", err)
		}
		res.Consumed = true
	}

	if !res.Accepted {
		return res, fmt.Errorf("%w: no %d-of-%d subset reconstructs the commitment (%d tried)",
			ErrAuthenticationFailed, params.Quorum(), params.Features, res.SubsetsTried)
	}
	return res, nil
}

func (a *Authenticator) checkInputs(ctx context.Context, token *Token, features [][]byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if a.Registry == nil || a.SpentSet == nil {
		return fmt.Errorf("bekd: authenticator requires a registry and a spent set")
	}
	if a.Policy != ConsumeOnSuccess && a.Policy != ConsumeOnAttempt {
		return fmt.Errorf("bekd: unknown consume policy %s", a.Policy)
	}
	if token == nil {
		return fmt.Errorf("%w: nil token", ErrMalformedToken)
	}
	if err := token.Validate(); err != nil {
		return err
	}
	if len(features) != token.Features() {
		return fmt.Errorf("%w: got %d, token has %d", ErrFeatureCount, len(features), token.Features())
	}
	return nil
}

// verifyToken checks the token against the registry: its shape matches
// (t, n), its ID is its digest, the CA signed it and, with a Binder, R1 is
// bound to the CA key.
func (a *Authenticator) verifyToken(ctx context.Context, token *Token, ops *OpCounts) (Params, error) {
	params, err := a.Registry.ThresholdConfig(ctx)
	if err != nil {
		return Params{}, collaboratorErr("read threshold config", err)
	}
	if err := params.Validate(); err != nil {
		return Params{}, fmt.Errorf("registry threshold config: %w", err)
	}
	if params.Features != token.Features() {
		return Params{}, fmt.Errorf("%w: token has %d features, registry expects %d",
			ErrMalformedToken, token.Features(), params.Features)
	}

	pk, err := a.Registry.PublicKey(ctx)
	if err != nil {
		return Params{}, collaboratorErr("read authority key", err)
	}
	digest := token.Digest()
	ops.Hashes++
	if TokenID(digest) != token.ID {
		return Params{}, fmt.Errorf("%w: token ID does not match its contents", ErrMalformedToken)
	}
	if err := authority.VerifySignature(pk, digest, token.Signature); err != nil {
		return Params{}, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}

	if a.Binder != nil {
		helper, err := a.Binder.Helper(ctx, token.R0)
		if err != nil {
			return Params{}, collaboratorErr("authority helper", err)
		}
		ops.ScalarMuls++
		if !helper.Equal(token.R1) {
			return Params{}, ErrInvalidBinding
		}
	}
	return params, nil
}

// unmask computes candidate_i = A_i - H0(W'_i, salt_i)*R0 for every feature.
func unmask(ctx context.Context, token *Token, features [][]byte) ([]group.Point, error) {
	n := token.Features()
	candidates := make([]group.Point, n)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i := 0; i < n; i++ {
		i := i
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			w := group.HashToScalar(features[i], token.Salts[i][:])
			neg := w.Neg()
			candidates[i] = group.PointAdd(token.MaskedShares[i], group.ScalarMul(token.R0, neg))
			w.Zeroize()
			neg.Zeroize()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return candidates, nil
}

// search tries (t+1)-subsets until one reconstructs commitment, filling in
// res. Lagrange coefficients over public indices feed one multi-scalar
// multiplication per subset.
func (a *Authenticator) search(ctx context.Context, params Params, candidates []group.Point, commitment group.Point, res *Authentication) error {
	quorum := params.Quorum()
	points := make([]group.Point, quorum)
	var searchErr error

	forEachSubset(params.Features, quorum, func(subset []int) bool {
		if a.MaxSubsets > 0 && res.SubsetsTried >= a.MaxSubsets {
			return false
		}
		if err := ctx.Err(); err != nil {
			searchErr = err
			return false
		}
		start := time.Now()
		lambdas, err := shamir.LagrangeCoefficients(subset)
		if err != nil {
			searchErr = err
			metrics.RecordOperation(metrics.OpReconstruct, metrics.StatusError, time.Since(start).Seconds())
			return false
		}
		for j, idx := range subset {
			points[j] = candidates[idx-1]
		}
		combined, err := group.MultiScalarMul(points, lambdas)
		if err != nil {
			searchErr = err
			metrics.RecordOperation(metrics.OpReconstruct, metrics.StatusError, time.Since(start).Seconds())
			return false
		}
		res.SubsetsTried++
		res.Ops = res.Ops.Add(OpCounts{Inversions: quorum, MSMs: 1})
		matched := combined.Equal(commitment)
		metrics.RecordOperation(metrics.OpReconstruct, reconstructStatus(matched), time.Since(start).Seconds())
		if matched {
			res.Accepted = true
			res.Subset = append([]int(nil), subset...)
			return false
		}
		return true
	})
	if searchErr != nil {
		return searchErr
	}
	if res.Accepted {
		mismatched, ops, err := findMismatched(res.Subset, candidates)
		if err != nil {
			return err
		}
		res.Mismatched = mismatched
		res.Ops = res.Ops.Add(ops)
	}
	return nil
}

// findMismatched evaluates the exponent-domain polynomial fixed by subset
// at every other index and reports where the candidate disagrees.
func findMismatched(subset []int, candidates []group.Point) ([]int, OpCounts, error) {
	var ops OpCounts
	inSubset := make(map[int]bool, len(subset))
	points := make([]group.Point, len(subset))
	for j, idx := range subset {
		inSubset[idx] = true
		points[j] = candidates[idx-1]
	}

	mismatched := []int{}
	for idx := 1; idx <= len(candidates); idx++ {
		if inSubset[idx] {
			continue
		}
		lambdas, err := shamir.LagrangeCoefficientsAt(group.ScalarFromUint64(uint64(idx)), subset)
		if err != nil {
			return nil, ops, err
		}
		predicted, err := group.MultiScalarMul(points, lambdas)
		if err != nil {
			return nil, ops, err
		}
		ops = ops.Add(OpCounts{Inversions: len(subset), MSMs: 1})
		if !predicted.Equal(candidates[idx-1]) {
			mismatched = append(mismatched, idx)
		}
	}
	return mismatched, ops, nil
}

func (a *Authenticator) log() logger.Logger {
	if a.Logger == nil {
		return defaultLogger
	}
	return a.Logger
}

// reconstructStatus labels one subset interpolation: a commitment mismatch
// is a rejection, not a fault.
func reconstructStatus(matched bool) string {
	if matched {
		return metrics.StatusSuccess
	}
	return metrics.StatusRejected
}
