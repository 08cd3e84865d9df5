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

// Package metrics provides Prometheus instrumentation for enrollment and
// authentication. It exposes operation counters, duration histograms, error
// counters and per-operation group arithmetic tallies.
package metrics

import (
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	// Namespace is the Prometheus namespace for all metrics
	Namespace = "bekd"

	// Label names
	LabelOperation = "operation"
	LabelStatus    = "status"
	LabelErrorType = "error_type"
	LabelKind      = "kind"

	// Status values
	StatusSuccess  = "success"
	StatusRejected = "rejected"
	StatusError    = "error"

	// Operation names
	OpEnroll       = "enroll"
	OpAuthenticate = "authenticate"
	OpShare        = "share"
	OpReconstruct  = "reconstruct"

	// Group operation kinds counted per protocol run
	KindScalarMul   = "scalar_mul"
	KindPointAdd    = "point_add"
	KindHash        = "hash"
	KindInversion   = "inversion"
	KindMultiScalar = "msm"
)

var (
	// OperationsTotal tracks protocol runs by operation and outcome.
	OperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "operations_total",
			Help:      "Total number of protocol operations by type and status",
		},
		[]string{LabelOperation, LabelStatus},
	)

	// OperationDuration tracks the duration of protocol runs in seconds.
	OperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: Namespace,
			Name:      "operation_duration_seconds",
			Help:      "Duration of protocol operations in seconds",
			Buckets:   []float64{.0005, .001, .0025, .005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{LabelOperation},
	)

	// ErrorsTotal tracks failures by operation and error type
	// (e.g. "token_replay", "collaborator_unavailable", "rng_failure").
	ErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "errors_total",
			Help:      "Total number of errors by operation and error type",
		},
		[]string{LabelOperation, LabelErrorType},
	)

	// GroupOpsTotal accumulates the group arithmetic performed per operation.
	GroupOpsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "group_ops_total",
			Help:      "Group arithmetic operations performed, by protocol operation and kind",
		},
		[]string{LabelOperation, LabelKind},
	)

	// SubsetsTried records how many (t+1)-subsets an authentication examined.
	SubsetsTried = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: Namespace,
			Name:      "auth_subsets_tried",
			Help:      "Number of share subsets examined per authentication",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 10),
		},
	)

	// enabled tracks whether metrics collection is enabled
	enabled atomic.Bool
)

func init() {
	// Metrics are enabled by default
	enabled.Store(true)
}

// RecordOperation records a protocol operation with its duration and status.
//
// Example:
//
//	start := time.Now()
//	res, err := enroller.Enroll(ctx, features)
//	RecordOperation(OpEnroll, StatusFor(err, false), time.Since(start).Seconds())
func RecordOperation(operation, status string, duration float64) {
	if !enabled.Load() {
		return
	}
	OperationsTotal.WithLabelValues(operation, status).Inc()
	OperationDuration.WithLabelValues(operation).Observe(duration)
}

// RecordError records an error event with context about where it occurred.
func RecordError(operation, errorType string) {
	if !enabled.Load() {
		return
	}
	ErrorsTotal.WithLabelValues(operation, errorType).Inc()
}

// RecordGroupOps adds count operations of the given kind. Zero counts are
// skipped so unused kinds do not create series.
func RecordGroupOps(operation, kind string, count int) {
	if !enabled.Load() || count <= 0 {
		return
	}
	GroupOpsTotal.WithLabelValues(operation, kind).Add(float64(count))
}

// RecordSubsetsTried observes the subset count of one authentication.
func RecordSubsetsTried(n int) {
	if !enabled.Load() {
		return
	}
	SubsetsTried.Observe(float64(n))
}

// StatusFor maps an operation outcome to a status label. rejected marks an
// expected protocol rejection rather than a fault.
func StatusFor(err error, rejected bool) string {
	switch {
	case err == nil:
		return StatusSuccess
	case rejected:
		return StatusRejected
	default:
		return StatusError
	}
}

// Enable enables metrics collection.
func Enable() {
	enabled.Store(true)
}

// Disable disables metrics collection.
// Useful for testing or when metrics are not desired.
func Disable() {
	enabled.Store(false)
}

// IsEnabled returns whether metrics collection is currently enabled.
func IsEnabled() bool {
	return enabled.Load()
}

// Snapshot gathers the current value of every counter in the namespace,
// keyed by metric name and sorted label values. Used by the CLI to print
// tallies after a run.
func Snapshot() (map[string]float64, error) {
	families, err := prometheus.DefaultGatherer.Gather()
	if err != nil {
		return nil, err
	}
	out := make(map[string]float64)
	for _, mf := range families {
		name := mf.GetName()
		if len(name) <= len(Namespace) || name[:len(Namespace)+1] != Namespace+"_" {
			continue
		}
		for _, m := range mf.GetMetric() {
			c := m.GetCounter()
			if c == nil {
				continue
			}
			key := name
			for _, lp := range m.GetLabel() {
				key += "{" + lp.GetName() + "=" + lp.GetValue() + "}"
			}
			out[key] = c.GetValue()
		}
	}
	return out, nil
}
