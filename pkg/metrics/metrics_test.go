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

package metrics

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetricsEnabled(t *testing.T) {
	if !IsEnabled() {
		t.Error("Expected metrics to be enabled by default")
	}

	Disable()
	if IsEnabled() {
		t.Error("Expected metrics to be disabled after Disable()")
	}

	Enable()
	if !IsEnabled() {
		t.Error("Expected metrics to be enabled after Enable()")
	}
}

func TestRecordOperation(t *testing.T) {
	Enable()
	OperationsTotal.Reset()
	OperationDuration.Reset()

	RecordOperation(OpEnroll, StatusSuccess, 0.01)

	if count := testutil.CollectAndCount(OperationsTotal); count != 1 {
		t.Errorf("Expected 1 operation series, got %d", count)
	}
	if count := testutil.CollectAndCount(OperationDuration); count != 1 {
		t.Errorf("Expected 1 histogram series, got %d", count)
	}

	RecordOperation(OpAuthenticate, StatusRejected, 0.02)
	if count := testutil.CollectAndCount(OperationsTotal); count != 2 {
		t.Errorf("Expected 2 operation series, got %d", count)
	}
	if v := testutil.ToFloat64(OperationsTotal.WithLabelValues(OpAuthenticate, StatusRejected)); v != 1 {
		t.Errorf("Expected rejected counter 1, got %v", v)
	}
}

func TestRecordOperationWhenDisabled(t *testing.T) {
	Disable()
	defer Enable()
	OperationsTotal.Reset()

	RecordOperation(OpEnroll, StatusSuccess, 0.5)
	RecordError(OpEnroll, "rng_failure")
	RecordGroupOps(OpEnroll, KindScalarMul, 4)

	if count := testutil.CollectAndCount(OperationsTotal); count != 0 {
		t.Errorf("Expected 0 operations when disabled, got %d", count)
	}
}

func TestRecordError(t *testing.T) {
	Enable()
	ErrorsTotal.Reset()

	RecordError(OpAuthenticate, "token_replay")
	RecordError(OpAuthenticate, "token_replay")

	if v := testutil.ToFloat64(ErrorsTotal.WithLabelValues(OpAuthenticate, "token_replay")); v != 2 {
		t.Errorf("Expected 2 replay errors, got %v", v)
	}
}

func TestRecordGroupOps(t *testing.T) {
	Enable()
	GroupOpsTotal.Reset()

	RecordGroupOps(OpEnroll, KindScalarMul, 7)
	RecordGroupOps(OpEnroll, KindScalarMul, 3)
	RecordGroupOps(OpEnroll, KindInversion, 0)

	if v := testutil.ToFloat64(GroupOpsTotal.WithLabelValues(OpEnroll, KindScalarMul)); v != 10 {
		t.Errorf("Expected 10 scalar muls, got %v", v)
	}
	if count := testutil.CollectAndCount(GroupOpsTotal); count != 1 {
		t.Errorf("zero count should not create a series, got %d series", count)
	}
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		rejected bool
		want     string
	}{
		{"success", nil, false, StatusSuccess},
		{"rejected", errors.New("mismatch"), true, StatusRejected},
		{"fault", errors.New("store down"), false, StatusError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := StatusFor(tt.err, tt.rejected); got != tt.want {
				t.Errorf("StatusFor() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestSnapshot(t *testing.T) {
	Enable()
	OperationsTotal.Reset()
	RecordOperation(OpEnroll, StatusSuccess, 0.001)

	snap, err := Snapshot()
	if err != nil {
		t.Fatalf("Snapshot() error = %v", err)
	}
	key := "bekd_operations_total{operation=enroll}{status=success}"
	if snap[key] != 1 {
		t.Errorf("Snapshot()[%q] = %v, want 1 (got %v)", key, snap[key], snap)
	}
}
