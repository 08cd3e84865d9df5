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
	"github.com/sAeNrDER/Decentrlised-BEKD-for--Biometric-Authentication/pkg/metrics"
)

// OpCounts tallies the group arithmetic performed by one protocol run.
// Values are immutable; Add returns a new record.
type OpCounts struct {
	ScalarMuls int `json:"scalar_mul" yaml:"scalar_mul"`
	PointAdds  int `json:"point_add" yaml:"point_add"`
	Hashes     int `json:"hash" yaml:"hash"`
	Inversions int `json:"inversion" yaml:"inversion"`
	MSMs       int `json:"msm" yaml:"msm"`
}

// Add returns the component-wise sum of o and other.
func (o OpCounts) Add(other OpCounts) OpCounts {
	return OpCounts{
		ScalarMuls: o.ScalarMuls + other.ScalarMuls,
		PointAdds:  o.PointAdds + other.PointAdds,
		Hashes:     o.Hashes + other.Hashes,
		Inversions: o.Inversions + other.Inversions,
		MSMs:       o.MSMs + other.MSMs,
	}
}

// Total is the sum of all tallies.
func (o OpCounts) Total() int {
	return o.ScalarMuls + o.PointAdds + o.Hashes + o.Inversions + o.MSMs
}

func (o OpCounts) record(operation string) {
	metrics.RecordGroupOps(operation, metrics.KindScalarMul, o.ScalarMuls)
	metrics.RecordGroupOps(operation, metrics.KindPointAdd, o.PointAdds)
	metrics.RecordGroupOps(operation, metrics.KindHash, o.Hashes)
	metrics.RecordGroupOps(operation, metrics.KindInversion, o.Inversions)
	metrics.RecordGroupOps(operation, metrics.KindMultiScalar, o.MSMs)
}
