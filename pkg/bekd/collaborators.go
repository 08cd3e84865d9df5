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

	"github.com/sAeNrDER/Decentrlised-BEKD-for--Biometric-Authentication/pkg/group"
)

// Registry publishes the deployment parameters.
type Registry interface {
	// PublicKey returns the CA public key tokens must be signed with.
	PublicKey(ctx context.Context) (group.Point, error)

	// ThresholdConfig returns the deployment's (t, n).
	ThresholdConfig(ctx context.Context) (Params, error)
}

// SpentSet tracks consumed tokens.
type SpentSet interface {
	IsUsed(ctx context.Context, id TokenID) (bool, error)

	// MarkUsed records id as consumed. Implementations return an error
	// matching ErrTokenReplay when id was already marked, so two racing
	// authentications cannot both consume one token.
	MarkUsed(ctx context.Context, id TokenID) error
}

// Wallet lists the owner identities allowed to authenticate.
type Wallet interface {
	IsAuthorized(ctx context.Context, identity [group.AddressSize]byte) (bool, error)
}

// Signer is the CA as seen by enrollment.
type Signer interface {
	PublicKey() group.Point
	Sign(digest [32]byte) ([SignatureSize]byte, error)
}

// Binder is the CA as seen by authentication: it answers R0^sk so the
// verifier can check a token's R1 without holding the CA key.
type Binder interface {
	Helper(ctx context.Context, r0 group.Point) (group.Point, error)
}

// RateLimiter admits or refuses an attempt for an identity.
type RateLimiter interface {
	Allow(identity string) bool
}
