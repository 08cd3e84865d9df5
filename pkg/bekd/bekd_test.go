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

package bekd_test

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sAeNrDER/Decentrlised-BEKD-for--Biometric-Authentication/pkg/adapters/logger"
	"github.com/sAeNrDER/Decentrlised-BEKD-for--Biometric-Authentication/pkg/authority"
	"github.com/sAeNrDER/Decentrlised-BEKD-for--Biometric-Authentication/pkg/bekd"
	cryptorand "github.com/sAeNrDER/Decentrlised-BEKD-for--Biometric-Authentication/pkg/crypto/rand"
	"github.com/sAeNrDER/Decentrlised-BEKD-for--Biometric-Authentication/pkg/group"
	"github.com/sAeNrDER/Decentrlised-BEKD-for--Biometric-Authentication/pkg/ledger"
	"github.com/sAeNrDER/Decentrlised-BEKD-for--Biometric-Authentication/pkg/metrics"
)

type fixture struct {
	ca       *authority.Authority
	ledger   *ledger.Ledger
	enroller *bekd.Enroller
	auth     *bekd.Authenticator
}

func newFixture(t testing.TB, params bekd.Params, seed string) *fixture {
	t.Helper()
	rng := cryptorand.NewDeterministic([]byte(seed))
	ca, err := authority.GenerateKey(rng)
	require.NoError(t, err)

	l := ledger.NewMemory()
	require.NoError(t, l.Publish(context.Background(), ca.PublicKey(), params))

	return &fixture{
		ca:     ca,
		ledger: l,
		enroller: &bekd.Enroller{
			Params: params,
			Signer: ca,
			RNG:    rng,
			Logger: logger.Discard(),
		},
		auth: &bekd.Authenticator{
			Registry: l,
			SpentSet: l,
			Logger:   logger.Discard(),
		},
	}
}

func features(vals ...string) [][]byte {
	out := make([][]byte, len(vals))
	for i, v := range vals {
		out[i] = []byte(v)
	}
	return out
}

var enrolled = features("left-iris-code", "right-index-minutiae", "face-embedding-bucket")

func enroll42(t *testing.T, f *fixture) *bekd.Enrollment {
	t.Helper()
	res, err := f.enroller.EnrollSecret(context.Background(), group.ScalarFromUint64(42), enrolled)
	require.NoError(t, err)
	return res
}

func TestEndToEnd_IdenticalFeaturesAccept(t *testing.T) {
	f := newFixture(t, bekd.Params{Threshold: 1, Features: 3}, "e2e-identical")
	e := enroll42(t, f)
	assert.True(t, e.Commitment.Equal(group.ScalarBaseMul(group.ScalarFromUint64(42))))

	res, err := f.auth.Authenticate(context.Background(), e.Token, enrolled, e.Commitment)
	require.NoError(t, err)
	assert.True(t, res.Accepted)
	assert.Equal(t, []int{1, 2}, res.Subset)
	assert.Equal(t, 1, res.SubsetsTried)
	assert.Empty(t, res.Mismatched)
	assert.True(t, res.Consumed)
	assert.Equal(t, e.Address, res.Identity)
}

func TestEndToEnd_OneAlteredFeatureAccepts(t *testing.T) {
	f := newFixture(t, bekd.Params{Threshold: 1, Features: 3}, "e2e-one-altered")
	e := enroll42(t, f)

	fresh := features("left-iris-code", "right-index-smudged", "face-embedding-bucket")
	res, err := f.auth.Authenticate(context.Background(), e.Token, fresh, e.Commitment)
	require.NoError(t, err)
	assert.True(t, res.Accepted)
	assert.Equal(t, []int{1, 3}, res.Subset)
	assert.Equal(t, []int{2}, res.Mismatched)
	assert.Equal(t, 2, res.SubsetsTried)
}

func TestEndToEnd_TwoAlteredFeaturesFail(t *testing.T) {
	f := newFixture(t, bekd.Params{Threshold: 1, Features: 3}, "e2e-two-altered")
	e := enroll42(t, f)

	fresh := features("wrong-iris", "wrong-finger", "face-embedding-bucket")
	res, err := f.auth.Authenticate(context.Background(), e.Token, fresh, e.Commitment)
	require.ErrorIs(t, err, bekd.ErrAuthenticationFailed)
	require.NotNil(t, res, "a mismatch is an outcome, not a fault")
	assert.False(t, res.Accepted)
	assert.Equal(t, 3, res.SubsetsTried)
	assert.False(t, res.Consumed)
	assert.True(t, bekd.IsRejection(err))
}

// countingRegistry fails the test if authentication reaches it.
type countingRegistry struct {
	t     *testing.T
	calls int
}

func (r *countingRegistry) PublicKey(context.Context) (group.Point, error) {
	r.calls++
	r.t.Error("registry consulted before replay check")
	return group.Point{}, nil
}

func (r *countingRegistry) ThresholdConfig(context.Context) (bekd.Params, error) {
	r.calls++
	r.t.Error("registry consulted before replay check")
	return bekd.Params{}, nil
}

type fakeSpentSet struct {
	used    bool
	err     error
	markErr error
	marked  []bekd.TokenID
}

func (s *fakeSpentSet) IsUsed(context.Context, bekd.TokenID) (bool, error) {
	return s.used, s.err
}

func (s *fakeSpentSet) MarkUsed(_ context.Context, id bekd.TokenID) error {
	if s.markErr != nil {
		return s.markErr
	}
	s.marked = append(s.marked, id)
	return nil
}

func TestAuthenticate_ReplayRejectedBeforeArithmetic(t *testing.T) {
	f := newFixture(t, bekd.DefaultParams(), "replay")
	e := enroll42(t, f)

	reg := &countingRegistry{t: t}
	spent := &fakeSpentSet{used: true}
	auth := &bekd.Authenticator{Registry: reg, SpentSet: spent, Logger: logger.Discard()}

	res, err := auth.Authenticate(context.Background(), e.Token, enrolled, e.Commitment)
	assert.ErrorIs(t, err, bekd.ErrTokenReplay)
	assert.Nil(t, res)
	assert.Zero(t, reg.calls)
	assert.Empty(t, spent.marked)
	assert.True(t, bekd.IsRejection(err))
}

func TestAuthenticate_SecondUseIsReplay(t *testing.T) {
	f := newFixture(t, bekd.DefaultParams(), "second-use")
	e := enroll42(t, f)
	ctx := context.Background()

	_, err := f.auth.Authenticate(ctx, e.Token, enrolled, e.Commitment)
	require.NoError(t, err)

	_, err = f.auth.Authenticate(ctx, e.Token, enrolled, e.Commitment)
	assert.ErrorIs(t, err, bekd.ErrTokenReplay)
}

func TestAuthenticate_ConsumePolicy(t *testing.T) {
	wrong := features("x", "y", "face-embedding-bucket")
	tests := []struct {
		name        string
		policy      bekd.ConsumePolicy
		wantRetryOK bool
	}{
		{name: "on success keeps token after mismatch", policy: bekd.ConsumeOnSuccess, wantRetryOK: true},
		{name: "on attempt burns token after mismatch", policy: bekd.ConsumeOnAttempt, wantRetryOK: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, bekd.DefaultParams(), "policy-"+tt.name)
			f.auth.Policy = tt.policy
			e := enroll42(t, f)
			ctx := context.Background()

			res, err := f.auth.Authenticate(ctx, e.Token, wrong, e.Commitment)
			require.ErrorIs(t, err, bekd.ErrAuthenticationFailed)
			assert.Equal(t, tt.policy == bekd.ConsumeOnAttempt, res.Consumed)

			_, err = f.auth.Authenticate(ctx, e.Token, enrolled, e.Commitment)
			if tt.wantRetryOK {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, bekd.ErrTokenReplay)
			}
		})
	}
}

func TestAuthenticate_CollaboratorFailures(t *testing.T) {
	f := newFixture(t, bekd.DefaultParams(), "collaborators")
	e := enroll42(t, f)
	storeDown := errors.New("store unreachable")

	tests := []struct {
		name  string
		spent *fakeSpentSet
	}{
		{name: "is used", spent: &fakeSpentSet{err: storeDown}},
		{name: "mark used", spent: &fakeSpentSet{markErr: storeDown}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			auth := &bekd.Authenticator{Registry: f.ledger, SpentSet: tt.spent, Logger: logger.Discard()}
			res, err := auth.Authenticate(context.Background(), e.Token, enrolled, e.Commitment)
			assert.Nil(t, res)
			assert.ErrorIs(t, err, bekd.ErrCollaboratorUnavailable)
			assert.ErrorIs(t, err, storeDown)
			assert.False(t, bekd.IsRejection(err))

			var cerr *bekd.CollaboratorError
			assert.True(t, errors.As(err, &cerr))
		})
	}
}

func TestAuthenticate_UnpublishedRegistry(t *testing.T) {
	f := newFixture(t, bekd.DefaultParams(), "unpublished")
	e := enroll42(t, f)
	empty := ledger.NewMemory()

	auth := &bekd.Authenticator{Registry: empty, SpentSet: empty, Logger: logger.Discard()}
	_, err := auth.Authenticate(context.Background(), e.Token, enrolled, e.Commitment)
	assert.ErrorIs(t, err, bekd.ErrCollaboratorUnavailable)
	assert.ErrorIs(t, err, ledger.ErrNotPublished)
}

func TestAuthenticate_SignatureAndBinding(t *testing.T) {
	f := newFixture(t, bekd.DefaultParams(), "signature")
	e := enroll42(t, f)
	ctx := context.Background()

	t.Run("tampered signature", func(t *testing.T) {
		tok := *e.Token
		tok.Signature[10] ^= 0xff
		_, err := f.auth.Authenticate(ctx, &tok, enrolled, e.Commitment)
		assert.ErrorIs(t, err, bekd.ErrInvalidSignature)
		assert.True(t, bekd.IsRejection(err))
	})

	t.Run("tampered salt with stale id", func(t *testing.T) {
		tok := *e.Token
		tok.Salts = append([][bekd.SaltSize]byte(nil), e.Token.Salts...)
		tok.Salts[0][0] ^= 1
		_, err := f.auth.Authenticate(ctx, &tok, enrolled, e.Commitment)
		assert.ErrorIs(t, err, bekd.ErrMalformedToken)
	})

	t.Run("tampered salt reparsed", func(t *testing.T) {
		raw, err := e.Token.MarshalBinary()
		require.NoError(t, err)
		raw[0] ^= 1
		tok, err := bekd.ParseToken(raw)
		require.NoError(t, err)
		_, err = f.auth.Authenticate(ctx, tok, enrolled, e.Commitment)
		assert.ErrorIs(t, err, bekd.ErrInvalidSignature)
	})

	t.Run("binding checked by authority", func(t *testing.T) {
		auth := *f.auth
		auth.Binder = f.ca
		auth.SpentSet = &fakeSpentSet{}
		res, err := auth.Authenticate(ctx, e.Token, enrolled, e.Commitment)
		require.NoError(t, err)
		assert.True(t, res.Accepted)
	})

	t.Run("binding checked by another authority", func(t *testing.T) {
		other, err := authority.GenerateKey(cryptorand.NewDeterministic([]byte("other-ca")))
		require.NoError(t, err)
		auth := *f.auth
		auth.Binder = other
		auth.SpentSet = &fakeSpentSet{}
		_, err = auth.Authenticate(ctx, e.Token, enrolled, e.Commitment)
		assert.ErrorIs(t, err, bekd.ErrInvalidBinding)
	})
}

func TestAuthenticate_Wallet(t *testing.T) {
	f := newFixture(t, bekd.DefaultParams(), "wallet")
	f.auth.Wallet = f.ledger
	e := enroll42(t, f)
	ctx := context.Background()

	_, err := f.auth.Authenticate(ctx, e.Token, enrolled, e.Commitment)
	assert.ErrorIs(t, err, bekd.ErrUnauthorizedIdentity)

	require.NoError(t, f.ledger.Authorize(ctx, e.Address))
	res, err := f.auth.Authenticate(ctx, e.Token, enrolled, e.Commitment)
	require.NoError(t, err)
	assert.True(t, res.Accepted)
}

type denyAll struct{ seen []string }

func (d *denyAll) Allow(identity string) bool {
	d.seen = append(d.seen, identity)
	return false
}

func TestAuthenticate_RateLimited(t *testing.T) {
	f := newFixture(t, bekd.DefaultParams(), "ratelimit")
	limiter := &denyAll{}
	f.auth.Limiter = limiter
	e := enroll42(t, f)

	res, err := f.auth.Authenticate(context.Background(), e.Token, enrolled, e.Commitment)
	assert.Nil(t, res)
	assert.ErrorIs(t, err, bekd.ErrRateLimited)
	require.Len(t, limiter.seen, 1)
	assert.Equal(t, "0x", limiter.seen[0][:2])
}

func TestAuthenticate_InputErrors(t *testing.T) {
	f := newFixture(t, bekd.DefaultParams(), "inputs")
	e := enroll42(t, f)
	ctx := context.Background()

	_, err := f.auth.Authenticate(ctx, e.Token, enrolled[:2], e.Commitment)
	assert.ErrorIs(t, err, bekd.ErrFeatureCount)

	_, err = f.auth.Authenticate(ctx, nil, enrolled, e.Commitment)
	assert.ErrorIs(t, err, bekd.ErrMalformedToken)

	_, err = f.auth.Authenticate(ctx, e.Token, enrolled, group.Identity())
	assert.ErrorIs(t, err, bekd.ErrInvalidScalar)

	wrongK := group.ScalarBaseMul(group.ScalarFromUint64(43))
	res, err := f.auth.Authenticate(ctx, e.Token, enrolled, wrongK)
	assert.ErrorIs(t, err, bekd.ErrAuthenticationFailed)
	assert.NotNil(t, res)

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	_, err = f.auth.Authenticate(cancelled, e.Token, enrolled, e.Commitment)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestAuthenticate_RegistryShapeMismatch(t *testing.T) {
	f := newFixture(t, bekd.DefaultParams(), "shape")
	e := enroll42(t, f)
	ctx := context.Background()
	require.NoError(t, f.ledger.Publish(ctx, f.ca.PublicKey(), bekd.Params{Threshold: 1, Features: 4}))

	_, err := f.auth.Authenticate(ctx, e.Token, enrolled, e.Commitment)
	assert.ErrorIs(t, err, bekd.ErrMalformedToken)
}

func TestAuthenticate_MaxSubsets(t *testing.T) {
	params := bekd.Params{Threshold: 1, Features: 5}
	f := newFixture(t, params, "max-subsets")
	good := features("f1", "f2", "f3", "f4", "f5")
	e, err := f.enroller.Enroll(context.Background(), good)
	require.NoError(t, err)

	// features 1 and 2 wrong: the first accepting subset is {3,4}, the 8th
	fresh := features("x1", "x2", "f3", "f4", "f5")

	f.auth.MaxSubsets = 3
	res, err := f.auth.Authenticate(context.Background(), e.Token, fresh, e.Commitment)
	require.ErrorIs(t, err, bekd.ErrAuthenticationFailed)
	assert.Equal(t, 3, res.SubsetsTried)

	f.auth.MaxSubsets = 0
	res, err = f.auth.Authenticate(context.Background(), e.Token, fresh, e.Commitment)
	require.NoError(t, err)
	assert.Equal(t, []int{3, 4}, res.Subset)
	assert.Equal(t, 8, res.SubsetsTried)
	assert.Equal(t, []int{1, 2}, res.Mismatched)
}

func TestAuthenticate_RecordsReconstructMetrics(t *testing.T) {
	f := newFixture(t, bekd.Params{Threshold: 1, Features: 3}, "reconstruct-metrics")
	e := enroll42(t, f)

	matched := metrics.OperationsTotal.WithLabelValues(metrics.OpReconstruct, metrics.StatusSuccess)
	rejected := metrics.OperationsTotal.WithLabelValues(metrics.OpReconstruct, metrics.StatusRejected)
	matchedBefore, rejectedBefore := testutil.ToFloat64(matched), testutil.ToFloat64(rejected)

	// {1,2} misses, {1,3} matches
	fresh := features("left-iris-code", "right-index-smudged", "face-embedding-bucket")
	res, err := f.auth.Authenticate(context.Background(), e.Token, fresh, e.Commitment)
	require.NoError(t, err)
	require.Equal(t, 2, res.SubsetsTried)

	assert.Equal(t, matchedBefore+1, testutil.ToFloat64(matched))
	assert.Equal(t, rejectedBefore+1, testutil.ToFloat64(rejected))
}

func TestAuthenticate_FaultToleranceBoundary(t *testing.T) {
	for n := 1; n <= 5; n++ {
		for th := 0; th < n; th++ {
			params := bekd.Params{Threshold: th, Features: n}
			f := newFixture(t, params, "boundary")
			good := make([][]byte, n)
			for i := range good {
				good[i] = []byte{byte('a' + i)}
			}
			e, err := f.enroller.Enroll(context.Background(), good)
			require.NoError(t, err)

			// n-(t+1) mismatches are tolerated
			tolerated := alter(good, n-th-1)
			res, err := f.auth.Authenticate(context.Background(), e.Token, tolerated, e.Commitment)
			require.NoError(t, err, "%s with %d mismatches", params, n-th-1)
			assert.Len(t, res.Mismatched, n-th-1)

			// one more is not
			f.auth.SpentSet = ledger.NewMemory()
			_, err = f.auth.Authenticate(context.Background(), e.Token, alter(good, n-th), e.Commitment)
			assert.ErrorIs(t, err, bekd.ErrAuthenticationFailed, "%s with %d mismatches", params, n-th)
		}
	}
}

// alter corrupts the first m features.
func alter(features [][]byte, m int) [][]byte {
	out := make([][]byte, len(features))
	for i := range features {
		out[i] = features[i]
		if i < m {
			out[i] = append([]byte("wrong-"), features[i]...)
		}
	}
	return out
}

func TestEnroll_Deterministic(t *testing.T) {
	a := newFixture(t, bekd.DefaultParams(), "same-seed")
	b := newFixture(t, bekd.DefaultParams(), "same-seed")

	ea, err := a.enroller.Enroll(context.Background(), enrolled)
	require.NoError(t, err)
	eb, err := b.enroller.Enroll(context.Background(), enrolled)
	require.NoError(t, err)

	ra, err := ea.Token.MarshalBinary()
	require.NoError(t, err)
	rb, err := eb.Token.MarshalBinary()
	require.NoError(t, err)
	assert.Equal(t, ra, rb)
	assert.Equal(t, ea.Token.ID, eb.Token.ID)
}

func TestEnroll_OpCounts(t *testing.T) {
	f := newFixture(t, bekd.DefaultParams(), "ops")
	e := enroll42(t, f)
	assert.Equal(t, bekd.OpCounts{ScalarMuls: 9, PointAdds: 3, Hashes: 4}, e.Ops)
	assert.Equal(t, 16, e.Ops.Total())
	assert.Equal(t, 18, e.Ops.Add(e.Ops).ScalarMuls)
	assert.Equal(t, 9, e.Ops.ScalarMuls, "Add must not mutate the receiver")
}

func TestEnroll_BindsAuthority(t *testing.T) {
	f := newFixture(t, bekd.DefaultParams(), "binding")
	e := enroll42(t, f)
	assert.True(t, f.ca.VerifyBinding(e.Token.R0, e.Token.R1))
	assert.NoError(t, authority.VerifySignature(f.ca.PublicKey(), e.Token.ID, e.Token.Signature))
}

func TestEnroll_Errors(t *testing.T) {
	ctx := context.Background()
	ca, err := authority.GenerateKey(cryptorand.NewDeterministic([]byte("enroll-errors")))
	require.NoError(t, err)

	tests := []struct {
		name      string
		enroller  *bekd.Enroller
		features  [][]byte
		wantErr   error
		wantPhase bekd.Phase
	}{
		{
			name:      "threshold equals n",
			enroller:  &bekd.Enroller{Params: bekd.Params{Threshold: 3, Features: 3}, Signer: ca},
			features:  enrolled,
			wantErr:   bekd.ErrInvalidThreshold,
			wantPhase: bekd.PhaseInit,
		},
		{
			name:      "no features",
			enroller:  &bekd.Enroller{Params: bekd.Params{Threshold: 0, Features: 0}, Signer: ca},
			features:  nil,
			wantErr:   bekd.ErrInvalidThreshold,
			wantPhase: bekd.PhaseInit,
		},
		{
			name:      "feature count",
			enroller:  &bekd.Enroller{Params: bekd.DefaultParams(), Signer: ca},
			features:  enrolled[:2],
			wantErr:   bekd.ErrFeatureCount,
			wantPhase: bekd.PhaseInit,
		},
		{
			name:      "rng exhausted before secret",
			enroller:  &bekd.Enroller{Params: bekd.DefaultParams(), Signer: ca, RNG: failingReader{}},
			features:  enrolled,
			wantErr:   bekd.ErrRngFailure,
			wantPhase: bekd.PhaseGenerateSecret,
		},
		{
			name: "rng exhausted during salts",
			enroller: &bekd.Enroller{
				Params: bekd.DefaultParams(),
				Signer: ca,
				// k, r and one coefficient, then nothing
				RNG: io.LimitReader(cryptorand.NewDeterministic([]byte("limited")), 96),
			},
			features:  enrolled,
			wantErr:   bekd.ErrRngFailure,
			wantPhase: bekd.PhasePerFeature,
		},
		{
			name:      "signer failure",
			enroller:  &bekd.Enroller{Params: bekd.DefaultParams(), Signer: brokenSigner{ca}},
			features:  enrolled,
			wantErr:   bekd.ErrCollaboratorUnavailable,
			wantPhase: bekd.PhaseSign,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.enroller.Logger = logger.Discard()
			res, err := tt.enroller.Enroll(ctx, tt.features)
			assert.Nil(t, res, "no partial token on failure")
			assert.ErrorIs(t, err, tt.wantErr)

			var eerr *bekd.EnrollmentError
			require.True(t, errors.As(err, &eerr))
			assert.Equal(t, tt.wantPhase, eerr.Phase)
		})
	}
}

func TestEnrollSecret_ZeroRejected(t *testing.T) {
	f := newFixture(t, bekd.DefaultParams(), "zero")
	_, err := f.enroller.EnrollSecret(context.Background(), group.Scalar{}, enrolled)
	assert.ErrorIs(t, err, bekd.ErrInvalidScalar)
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) {
	return 0, errors.New("entropy source unavailable")
}

type brokenSigner struct{ *authority.Authority }

func (brokenSigner) Sign([32]byte) ([bekd.SignatureSize]byte, error) {
	return [bekd.SignatureSize]byte{}, errors.New("hsm offline")
}

func BenchmarkEnroll(b *testing.B) {
	f := newFixture(b, bekd.DefaultParams(), "bench-enroll")
	ctx := context.Background()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := f.enroller.Enroll(ctx, enrolled); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkAuthenticate(b *testing.B) {
	f := newFixture(b, bekd.DefaultParams(), "bench-auth")
	ctx := context.Background()
	e, err := f.enroller.Enroll(ctx, enrolled)
	require.NoError(b, err)
	auth := *f.auth
	auth.SpentSet = &fakeSpentSet{}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := auth.Authenticate(ctx, e.Token, enrolled, e.Commitment); err != nil {
			b.Fatal(err)
		}
	}
}
