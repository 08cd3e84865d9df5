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

package authority

import (
	"encoding/hex"
	"fmt"

	"github.com/sAeNrDER/Decentrlised-BEKD-for--Biometric-Authentication/pkg/group"
)

// DeploymentParams is the public record an operator publishes for the
// parameter registry, spent-token set and biometric wallet.
type DeploymentParams struct {
	Registry RegistryParams `json:"param_registry" yaml:"param_registry"`
	Wallet   WalletParams   `json:"biometric_wallet" yaml:"biometric_wallet"`
}

// RegistryParams holds the CA public key and the sharing configuration.
type RegistryParams struct {
	PublicKeyX string `json:"pk_x" yaml:"pk_x"`
	PublicKeyY string `json:"pk_y" yaml:"pk_y"`
	Threshold  int    `json:"t" yaml:"t"`
	Features   int    `json:"n" yaml:"n"`
	HashSpec   string `json:"hash_spec" yaml:"hash_spec"`
}

// WalletParams names the owner address derived from the enrolled commitment.
type WalletParams struct {
	Owner string `json:"owner" yaml:"owner,omitempty"`
}

// NewDeploymentParams renders the registry record for pk with threshold t
// over n features. owner may be the identity point when no enrollment
// exists yet, in which case the wallet owner is left empty.
func NewDeploymentParams(pk group.Point, t, n int, owner group.Point) DeploymentParams {
	enc := pk.Bytes()
	p := DeploymentParams{
		Registry: RegistryParams{
			PublicKeyX: "0x" + hex.EncodeToString(enc[:32]),
			PublicKeyY: "0x" + hex.EncodeToString(enc[32:]),
			Threshold:  t,
			Features:   n,
			HashSpec:   group.HashSpec,
		},
	}
	if !owner.IsIdentity() {
		addr := group.Address(owner)
		p.Wallet.Owner = "0x" + hex.EncodeToString(addr[:])
	}
	return p
}

// PublicKey decodes the registry's CA public key.
func (r RegistryParams) PublicKey() (group.Point, error) {
	x, err := decodeHex32(r.PublicKeyX)
	if err != nil {
		return group.Point{}, fmt.Errorf("pk_x: %w", err)
	}
	y, err := decodeHex32(r.PublicKeyY)
	if err != nil {
		return group.Point{}, fmt.Errorf("pk_y: %w", err)
	}
	return group.PointFromBytes(append(x, y...))
}

func decodeHex32(s string) ([]byte, error) {
	if len(s) >= 2 && s[0] == '0' && (s[1] == 'x' || s[1] == 'X') {
		s = s[2:]
	}
	b, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", group.ErrInvalidEncoding, err)
	}
	if len(b) != 32 {
		return nil, fmt.Errorf("%w: want 32 bytes, got %d", group.ErrInvalidEncoding, len(b))
	}
	return b, nil
}
