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
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/SSSaaS/sssa-golang"
)

// ErrInvalidEscrow indicates escrow shares that are malformed, inconsistent
// with each other, or too few to recover the key.
var ErrInvalidEscrow = errors.New("authority: invalid escrow shares")

// EscrowShare is one custodian's piece of the CA key. Any Threshold of the
// Total shares recover the key.
type EscrowShare struct {
	Index     int    `json:"index" yaml:"index"`
	Threshold int    `json:"threshold" yaml:"threshold"`
	Total     int    `json:"total" yaml:"total"`
	Value     string `json:"value" yaml:"value"`
}

// Validate checks the share's structural fields.
func (s *EscrowShare) Validate() error {
	if s.Index < 1 || s.Index > s.Total {
		return fmt.Errorf("%w: index %d out of range [1, %d]", ErrInvalidEscrow, s.Index, s.Total)
	}
	if s.Threshold < 2 || s.Threshold > s.Total {
		return fmt.Errorf("%w: threshold %d invalid for total %d", ErrInvalidEscrow, s.Threshold, s.Total)
	}
	if s.Value == "" {
		return fmt.Errorf("%w: empty value", ErrInvalidEscrow)
	}
	return nil
}

// Escrow splits the CA key into total shares, any threshold of which
// recover it. The split runs over the hex encoding of the key so the
// recovered text is unambiguous.
func Escrow(a *Authority, threshold, total int) ([]EscrowShare, error) {
	if threshold < 2 {
		return nil, fmt.Errorf("%w: threshold must be at least 2, got %d", ErrInvalidEscrow, threshold)
	}
	if total < threshold {
		return nil, fmt.Errorf("%w: total shares (%d) must be >= threshold (%d)", ErrInvalidEscrow, total, threshold)
	}
	if total > 255 {
		return nil, fmt.Errorf("%w: total shares cannot exceed 255, got %d", ErrInvalidEscrow, total)
	}

	raw := a.Bytes()
	secretHex := hex.EncodeToString(raw[:])
	defer clear(raw[:])

	parts, err := sssa.Create(threshold, total, secretHex)
	if err != nil {
		return nil, fmt.Errorf("authority: split key: %w", err)
	}

	shares := make([]EscrowShare, len(parts))
	for i, p := range parts {
		shares[i] = EscrowShare{
			Index:     i + 1,
			Threshold: threshold,
			Total:     total,
			Value:     base64.StdEncoding.EncodeToString([]byte(p)),
		}
	}
	return shares, nil
}

// Recover rebuilds the CA key from at least Threshold escrow shares.
func Recover(shares []EscrowShare) (*Authority, error) {
	if len(shares) == 0 {
		return nil, fmt.Errorf("%w: no shares provided", ErrInvalidEscrow)
	}

	threshold, total := shares[0].Threshold, shares[0].Total
	seen := make(map[int]bool, len(shares))
	parts := make([]string, len(shares))
	for i := range shares {
		s := &shares[i]
		if err := s.Validate(); err != nil {
			return nil, fmt.Errorf("share %d: %w", i, err)
		}
		if s.Threshold != threshold || s.Total != total {
			return nil, fmt.Errorf("%w: share %d has parameters (%d of %d), share 0 has (%d of %d)",
				ErrInvalidEscrow, i, s.Threshold, s.Total, threshold, total)
		}
		if seen[s.Index] {
			return nil, fmt.Errorf("%w: duplicate index %d", ErrInvalidEscrow, s.Index)
		}
		seen[s.Index] = true

		decoded, err := base64.StdEncoding.DecodeString(s.Value)
		if err != nil {
			return nil, fmt.Errorf("%w: decode share %d: %v", ErrInvalidEscrow, i, err)
		}
		if !sssa.IsValidShare(string(decoded)) {
			return nil, fmt.Errorf("%w: share %d is not a valid share encoding", ErrInvalidEscrow, i)
		}
		parts[i] = string(decoded)
	}
	if len(shares) < threshold {
		return nil, fmt.Errorf("%w: need at least %d shares, got %d", ErrInvalidEscrow, threshold, len(shares))
	}

	secretHex, err := sssa.Combine(parts)
	if err != nil {
		return nil, fmt.Errorf("authority: combine shares: %w", err)
	}
	raw, err := hex.DecodeString(secretHex)
	if err != nil || len(raw) != 32 {
		return nil, fmt.Errorf("%w: recovered value is not a 32-byte key", ErrInvalidEscrow)
	}
	defer clear(raw)
	return FromBytes(raw)
}
