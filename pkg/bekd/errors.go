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
	"errors"
	"fmt"

	"github.com/sAeNrDER/Decentrlised-BEKD-for--Biometric-Authentication/pkg/group"
	"github.com/sAeNrDER/Decentrlised-BEKD-for--Biometric-Authentication/pkg/threshold/shamir"
)

// Arithmetic and configuration failures, shared with the lower packages so
// errors.Is matches regardless of which layer raised them.
var (
	ErrInvalidScalar      = group.ErrInvalidScalar
	ErrPointNotOnCurve    = group.ErrPointNotOnCurve
	ErrInvalidThreshold   = shamir.ErrInvalidThreshold
	ErrDegenerateShares   = shamir.ErrDegenerateShares
	ErrInsufficientShares = shamir.ErrInsufficientShares
	ErrRngFailure         = group.ErrRandomSource
)

var (
	// ErrAuthenticationFailed means no (t+1)-subset of the unmasked shares
	// reconstructs the enrolled commitment. It is an expected outcome of a
	// biometric mismatch, not a fault.
	ErrAuthenticationFailed = errors.New("bekd: authentication failed")

	// ErrTokenReplay means the spent-token set already holds the token ID.
	ErrTokenReplay = errors.New("bekd: token already used")

	// ErrCollaboratorUnavailable means a registry, spent set, wallet or CA
	// call failed. The core does not retry.
	ErrCollaboratorUnavailable = errors.New("bekd: collaborator unavailable")

	// ErrInvalidSignature means the token signature does not recover to the
	// registry's CA public key.
	ErrInvalidSignature = errors.New("bekd: invalid token signature")

	// ErrInvalidBinding means R1 does not equal the CA helper R0^sk.
	ErrInvalidBinding = errors.New("bekd: token not bound to authority")

	// ErrUnauthorizedIdentity means the wallet does not list the owner
	// address derived from the commitment.
	ErrUnauthorizedIdentity = errors.New("bekd: identity not authorized")

	// ErrMalformedToken means a token encoding or its shape is invalid.
	ErrMalformedToken = errors.New("bekd: malformed token")

	// ErrFeatureCount means the number of supplied features differs from n.
	ErrFeatureCount = errors.New("bekd: feature count mismatch")

	// ErrRateLimited means the identity exceeded its attempt budget.
	ErrRateLimited = errors.New("bekd: too many authentication attempts")
)

// Phase is a step of the enrollment state machine.
type Phase int

const (
	PhaseInit Phase = iota
	PhaseGenerateSecret
	PhaseGenerateMask
	PhaseShare
	PhasePerFeature
	PhaseAssemble
	PhaseSign
	PhaseDone
)

func (p Phase) String() string {
	switch p {
	case PhaseInit:
		return "init"
	case PhaseGenerateSecret:
		return "generate-secret"
	case PhaseGenerateMask:
		return "generate-mask"
	case PhaseShare:
		return "share"
	case PhasePerFeature:
		return "per-feature"
	case PhaseAssemble:
		return "assemble"
	case PhaseSign:
		return "sign"
	case PhaseDone:
		return "done"
	default:
		return fmt.Sprintf("phase(%d)", int(p))
	}
}

// EnrollmentError records the phase at which enrollment aborted.
type EnrollmentError struct {
	Phase Phase
	Err   error
}

func (e *EnrollmentError) Error() string {
	return fmt.Sprintf("bekd: enrollment failed at %s: %v", e.Phase, e.Err)
}

func (e *EnrollmentError) Unwrap() error {
	return e.Err
}

// CollaboratorError wraps a failed collaborator call. It matches both
// ErrCollaboratorUnavailable and the underlying cause.
type CollaboratorError struct {
	Op  string
	Err error
}

func (e *CollaboratorError) Error() string {
	return fmt.Sprintf("bekd: %s: %v", e.Op, e.Err)
}

func (e *CollaboratorError) Unwrap() []error {
	return []error{ErrCollaboratorUnavailable, e.Err}
}

// collaboratorErr wraps err unless it already carries a protocol verdict
// (replay) that the caller must see unchanged.
func collaboratorErr(op string, err error) error {
	if errors.Is(err, ErrTokenReplay) {
		return err
	}
	return &CollaboratorError{Op: op, Err: err}
}

// IsRejection reports whether err is a protocol rejection (mismatch, replay,
// bad signature or binding, unauthorized identity, rate limit) as opposed
// to an internal, configuration or collaborator fault.
func IsRejection(err error) bool {
	if err == nil || errors.Is(err, ErrCollaboratorUnavailable) {
		return false
	}
	return errors.Is(err, ErrAuthenticationFailed) ||
		errors.Is(err, ErrTokenReplay) ||
		errors.Is(err, ErrInvalidSignature) ||
		errors.Is(err, ErrInvalidBinding) ||
		errors.Is(err, ErrUnauthorizedIdentity) ||
		errors.Is(err, ErrRateLimited)
}

// errorType is the metrics label for err.
func errorType(err error) string {
	switch {
	case errors.Is(err, ErrCollaboratorUnavailable):
		return "collaborator_unavailable"
	case errors.Is(err, ErrAuthenticationFailed):
		return "authentication_failed"
	case errors.Is(err, ErrTokenReplay):
		return "token_replay"
	case errors.Is(err, ErrInvalidSignature):
		return "invalid_signature"
	case errors.Is(err, ErrInvalidBinding):
		return "invalid_binding"
	case errors.Is(err, ErrUnauthorizedIdentity):
		return "unauthorized_identity"
	case errors.Is(err, ErrRateLimited):
		return "rate_limited"
	case errors.Is(err, ErrRngFailure):
		return "rng_failure"
	case errors.Is(err, ErrInvalidThreshold):
		return "invalid_threshold"
	case errors.Is(err, ErrMalformedToken), errors.Is(err, ErrPointNotOnCurve):
		return "malformed_token"
	case errors.Is(err, ErrFeatureCount):
		return "feature_count"
	default:
		return "internal"
	}
}
