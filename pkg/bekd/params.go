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
	"fmt"
	"strings"

	"github.com/sAeNrDER/Decentrlised-BEKD-for--Biometric-Authentication/pkg/threshold/shamir"
)

// Params is the sharing configuration: Features (n) masked shares, any
// Threshold+1 of which reconstruct the secret.
type Params struct {
	Threshold int `json:"t" yaml:"t"`
	Features  int `json:"n" yaml:"n"`
}

// DefaultParams tolerates one mismatched feature out of three.
func DefaultParams() Params {
	return Params{Threshold: 1, Features: 3}
}

// Validate checks 0 <= t < n <= shamir.MaxShares.
func (p Params) Validate() error {
	return shamir.ValidateParams(p.Threshold, p.Features)
}

// Quorum is the number of matching features needed to authenticate.
func (p Params) Quorum() int {
	return p.Threshold + 1
}

func (p Params) String() string {
	return fmt.Sprintf("t=%d n=%d", p.Threshold, p.Features)
}

// ConsumePolicy decides when an authentication marks its token as used.
type ConsumePolicy int

const (
	// ConsumeOnSuccess marks the token only when authentication accepts.
	ConsumeOnSuccess ConsumePolicy = iota
	// ConsumeOnAttempt marks the token after any attempt that reaches the
	// share reconstruction stage, accepted or not.
	ConsumeOnAttempt
)

func (c ConsumePolicy) String() string {
	switch c {
	case ConsumeOnSuccess:
		return "on-success"
	case ConsumeOnAttempt:
		return "on-attempt"
	default:
		return fmt.Sprintf("policy(%d)", int(c))
	}
}

// ParseConsumePolicy accepts "on-success" or "on-attempt". Empty means
// ConsumeOnSuccess.
func ParseConsumePolicy(s string) (ConsumePolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "on-success", "success":
		return ConsumeOnSuccess, nil
	case "on-attempt", "attempt":
		return ConsumeOnAttempt, nil
	default:
		return ConsumeOnSuccess, fmt.Errorf("invalid consume policy: %s (must be on-success or on-attempt)", s)
	}
}
