// Copyright (c) 2025 Jeremy Hahn
// Copyright (c) 2025 Automate The Things, LLC
//
// This file is part of go-keychain.

package shamir

import (
	"bytes"
	"crypto/rand"
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sAeNrDER/Decentrlised-BEKD-for--Biometric-Authentication/pkg/group"
	"github.com/sAeNrDER/Decentrlised-BEKD-for--Biometric-Authentication/pkg/metrics"
)

func randomSecret(t testing.TB) group.Scalar {
	t.Helper()
	k, err := group.RandomNonZeroScalar(rand.Reader)
	require.NoError(t, err)
	return k
}

// combinations returns every size-r subset of shares in lexicographic order.
func combinations(shares []Share, r int) [][]Share {
	var out [][]Share
	var walk func(start int, picked []Share)
	walk = func(start int, picked []Share) {
		if len(picked) == r {
			subset := make([]Share, r)
			copy(subset, picked)
			out = append(out, subset)
			return
		}
		for i := start; i < len(shares); i++ {
			walk(i+1, append(picked, shares[i]))
		}
	}
	walk(0, nil)
	return out
}

func TestShareSecret_BasicFunctionality(t *testing.T) {
	k := randomSecret(t)
	poly, shares, err := ShareSecret(k, 2, 5, rand.Reader)
	require.NoError(t, err)
	require.Len(t, shares, 5)

	assert.Equal(t, 2, poly.Degree())
	assert.True(t, poly.Secret().Equal(k))
	assert.True(t, poly.Eval(group.Scalar{}).Equal(k))

	for i, s := range shares {
		assert.Equal(t, i+1, s.Index)
		assert.NoError(t, s.Validate())
		assert.True(t, poly.Eval(s.X()).Equal(s.Value))
	}
}

func TestShareSecret_EvaluationFormula(t *testing.T) {
	// f(x) = 42 + c1*x; check share_i against the explicit sum
	k := group.ScalarFromUint64(42)
	poly, shares, err := ShareSecret(k, 1, 3, rand.Reader)
	require.NoError(t, err)

	c := poly.Coefficients()
	require.Len(t, c, 2)
	for _, s := range shares {
		expected := c[0].Add(c[1].Mul(s.X()))
		assert.True(t, expected.Equal(s.Value))
	}
}

func TestReconstruct_SubsetInvariance(t *testing.T) {
	for n := 1; n <= 6; n++ {
		for th := 0; th < n; th++ {
			k := randomSecret(t)
			_, shares, err := ShareSecret(k, th, n, rand.Reader)
			require.NoError(t, err)

			for size := th + 1; size <= n; size++ {
				for _, subset := range combinations(shares, size) {
					got, err := Reconstruct(subset, th)
					require.NoError(t, err)
					assert.True(t, got.Equal(k), "t=%d n=%d subset=%v", th, n, Indices(subset))
				}
			}
		}
	}
}

func TestReconstruct_OrderIndependent(t *testing.T) {
	k := randomSecret(t)
	_, shares, err := ShareSecret(k, 2, 5, rand.Reader)
	require.NoError(t, err)

	subset := []Share{shares[4], shares[0], shares[2]}
	got, err := Reconstruct(subset, 2)
	require.NoError(t, err)
	assert.True(t, got.Equal(k))
}

func TestReconstruct_InsufficientShares(t *testing.T) {
	k := randomSecret(t)
	_, shares, err := ShareSecret(k, 2, 5, rand.Reader)
	require.NoError(t, err)

	for _, subset := range combinations(shares, 2) {
		_, err := Reconstruct(subset, 2)
		require.ErrorIs(t, err, ErrInsufficientShares)

		var ise *InsufficientSharesError
		require.True(t, errors.As(err, &ise))
		assert.Equal(t, 2, ise.Have)
		assert.Equal(t, 3, ise.Need)
	}
}

func TestReconstruct_DegenerateShares(t *testing.T) {
	k := randomSecret(t)
	_, shares, err := ShareSecret(k, 1, 3, rand.Reader)
	require.NoError(t, err)

	_, err = Reconstruct([]Share{shares[1], shares[1]}, 1)
	require.ErrorIs(t, err, ErrDegenerateShares)

	var dse *DegenerateSharesError
	require.True(t, errors.As(err, &dse))
	assert.Equal(t, 2, dse.Index)
}

func TestReconstruct_InvalidIndex(t *testing.T) {
	_, err := Reconstruct([]Share{{Index: 0}, {Index: 1}}, 1)
	assert.ErrorIs(t, err, ErrInvalidShare)

	_, err = Reconstruct([]Share{{Index: 1}}, -1)
	assert.ErrorIs(t, err, ErrInvalidThreshold)
}

func TestReconstruct_TamperedShareChangesResult(t *testing.T) {
	k := randomSecret(t)
	_, shares, err := ShareSecret(k, 1, 3, rand.Reader)
	require.NoError(t, err)

	tampered := shares[0]
	tampered.Value = tampered.Value.Add(group.ScalarFromUint64(1))
	got, err := Reconstruct([]Share{tampered, shares[1]}, 1)
	require.NoError(t, err)
	assert.False(t, got.Equal(k))
}

func TestShareSecret_ParameterValidation(t *testing.T) {
	tests := []struct {
		name    string
		t       int
		n       int
		wantErr bool
	}{
		{name: "threshold equals share count", t: 3, n: 3, wantErr: true},
		{name: "threshold above share count", t: 5, n: 3, wantErr: true},
		{name: "no shares", t: 0, n: 0, wantErr: true},
		{name: "negative threshold", t: -1, n: 3, wantErr: true},
		{name: "share count exceeds maximum", t: 1, n: 256, wantErr: true},
		{name: "degree zero", t: 0, n: 1},
		{name: "typical", t: 1, n: 3},
		{name: "maximum", t: 254, n: 255},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := ShareSecret(group.ScalarFromUint64(7), tt.t, tt.n, rand.Reader)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidThreshold)
				return
			}
			require.NoError(t, err)
		})
	}
}

func TestShareSecret_RandomSourceFailure(t *testing.T) {
	_, _, err := ShareSecret(group.ScalarFromUint64(7), 2, 3, bytes.NewReader(make([]byte, 40)))
	assert.ErrorIs(t, err, group.ErrRandomSource)
}

func TestShareSecret_DegreeZeroSharesAreSecret(t *testing.T) {
	k := randomSecret(t)
	_, shares, err := ShareSecret(k, 0, 4, rand.Reader)
	require.NoError(t, err)
	for _, s := range shares {
		assert.True(t, s.Value.Equal(k))
	}
}

func TestShareSecret_ZeroSecret(t *testing.T) {
	poly, shares, err := ShareSecret(group.Scalar{}, 1, 3, rand.Reader)
	require.Error(t, err)
	assert.True(t, errors.Is(err, group.ErrInvalidScalar))
	assert.Nil(t, poly)
	assert.Nil(t, shares)
}

func TestShareSecret_RecordsMetrics(t *testing.T) {
	ok := metrics.OperationsTotal.WithLabelValues(metrics.OpShare, metrics.StatusSuccess)
	failed := metrics.OperationsTotal.WithLabelValues(metrics.OpShare, metrics.StatusError)
	okBefore, failedBefore := testutil.ToFloat64(ok), testutil.ToFloat64(failed)

	_, _, err := ShareSecret(randomSecret(t), 1, 3, rand.Reader)
	require.NoError(t, err)
	_, _, err = ShareSecret(randomSecret(t), 3, 3, rand.Reader)
	require.Error(t, err)

	assert.Equal(t, okBefore+1, testutil.ToFloat64(ok))
	assert.Equal(t, failedBefore+1, testutil.ToFloat64(failed))
}

func TestLagrangeCoefficients_SumToOne(t *testing.T) {
	// interpolating the constant polynomial 1 yields sum(Λi) = 1
	lambdas, err := LagrangeCoefficients([]int{1, 3, 4, 7})
	require.NoError(t, err)

	var sum group.Scalar
	for _, l := range lambdas {
		sum = sum.Add(l)
	}
	assert.True(t, sum.Equal(group.ScalarFromUint64(1)))
}

func TestLagrangeCoefficients_TwoPoints(t *testing.T) {
	// indices {1, 2}: Λ1 = 2, Λ2 = -1
	lambdas, err := LagrangeCoefficients([]int{1, 2})
	require.NoError(t, err)
	assert.True(t, lambdas[0].Equal(group.ScalarFromUint64(2)))
	assert.True(t, lambdas[1].Equal(group.ScalarFromUint64(1).Neg()))
}

func TestLagrangeCoefficientsAt_PredictsShare(t *testing.T) {
	poly, shares, err := ShareSecret(randomSecret(t), 2, 6, rand.Reader)
	require.NoError(t, err)

	subset := []Share{shares[0], shares[2], shares[4]}
	target := shares[5]
	lambdas, err := LagrangeCoefficientsAt(target.X(), Indices(subset))
	require.NoError(t, err)

	var predicted group.Scalar
	for i, s := range subset {
		predicted = predicted.Add(s.Value.Mul(lambdas[i]))
	}
	assert.True(t, predicted.Equal(target.Value))
	assert.True(t, predicted.Equal(poly.Eval(target.X())))
}

func TestPolynomial_Zeroize(t *testing.T) {
	poly, _, err := ShareSecret(randomSecret(t), 2, 4, rand.Reader)
	require.NoError(t, err)
	poly.Zeroize()
	for _, c := range poly.Coefficients() {
		assert.True(t, c.IsZero())
	}
}

func TestShare_StringRedactsValue(t *testing.T) {
	s := Share{Index: 3, Value: group.ScalarFromUint64(99)}
	assert.Equal(t, "Share{Index: 3, Value: <redacted>}", s.String())
}

func BenchmarkShareSecret(b *testing.B) {
	k := randomSecret(b)
	for i := 0; i < b.N; i++ {
		_, _, _ = ShareSecret(k, 1, 3, rand.Reader)
	}
}

func BenchmarkReconstruct(b *testing.B) {
	_, shares, err := ShareSecret(randomSecret(b), 1, 3, rand.Reader)
	require.NoError(b, err)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = Reconstruct(shares[:2], 1)
	}
}
