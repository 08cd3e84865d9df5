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
	"encoding/hex"
	"fmt"

	"github.com/sAeNrDER/Decentrlised-BEKD-for--Biometric-Authentication/pkg/authority"
	"github.com/sAeNrDER/Decentrlised-BEKD-for--Biometric-Authentication/pkg/group"
	"github.com/sAeNrDER/Decentrlised-BEKD-for--Biometric-Authentication/pkg/threshold/shamir"
)

const (
	// SaltSize is the length of each per-feature salt.
	SaltSize = 32

	// SignatureSize is the length of the CA's compact signature.
	SignatureSize = authority.SignatureSize

	// tokenFixedSize covers R0, R1 and the signature.
	tokenFixedSize = 2*group.PointSize + SignatureSize

	// tokenPerFeatureSize covers one salt and one masked share.
	tokenPerFeatureSize = SaltSize + group.PointSize

	// OnChainSize is the per-deployment ledger footprint: a 32-byte spent
	// token ID with its used flag, the CA public key and the owner address.
	OnChainSize = 32 + 1 + group.PointSize + group.AddressSize
)

// OffChainSize is the encoded size of a token over n features.
func OffChainSize(n int) int {
	return tokenFixedSize + n*tokenPerFeatureSize
}

// TokenID identifies a token in the spent-token set. It is the Keccak-256
// digest of the token body, so any change to salts or points changes it.
type TokenID [32]byte

func (id TokenID) String() string {
	return hex.EncodeToString(id[:])
}

// ParseTokenID decodes a 64-character hex token ID, with or without 0x.
func ParseTokenID(s string) (TokenID, error) {
	var id TokenID
	if len(s) >= 2 && s[0] == '0' && (s[1] == 'x' || s[1] == 'X') {
		s = s[2:]
	}
	b, err := hex.DecodeString(s)
	if err != nil || len(b) != len(id) {
		return id, fmt.Errorf("%w: token ID must be 32 hex-encoded bytes", ErrMalformedToken)
	}
	copy(id[:], b)
	return id, nil
}

// Token is the off-chain artifact issued at enrollment. It is immutable
// once signed; authentication only reads it.
type Token struct {
	Salts        [][SaltSize]byte
	R0           group.Point
	R1           group.Point
	MaskedShares []group.Point
	Signature    [SignatureSize]byte
	ID           TokenID
}

// Features returns n, the number of masked shares.
func (t *Token) Features() int {
	return len(t.MaskedShares)
}

// Size is the encoded length of the token.
func (t *Token) Size() int {
	return OffChainSize(t.Features())
}

// Validate checks the token shape: n in [1, MaxShares], one salt per share,
// and a non-identity masking base.
func (t *Token) Validate() error {
	n := len(t.MaskedShares)
	if n < 1 || n > shamir.MaxShares {
		return fmt.Errorf("%w: %d masked shares", ErrMalformedToken, n)
	}
	if len(t.Salts) != n {
		return fmt.Errorf("%w: %d salts for %d masked shares", ErrMalformedToken, len(t.Salts), n)
	}
	if t.R0.IsIdentity() {
		return fmt.Errorf("%w: R0 is the identity", ErrMalformedToken)
	}
	return nil
}

// Digest is Keccak-256 over salts || R0 || R1 || maskedShares, the message
// the CA signs and the token ID.
func (t *Token) Digest() [32]byte {
	parts := make([][]byte, 0, 2*len(t.Salts)+2)
	for i := range t.Salts {
		parts = append(parts, t.Salts[i][:])
	}
	r0, r1 := t.R0.Bytes(), t.R1.Bytes()
	parts = append(parts, r0[:], r1[:])
	for _, p := range t.MaskedShares {
		enc := p.Bytes()
		parts = append(parts, enc[:])
	}
	return group.Keccak256(parts...)
}

// MarshalBinary encodes the token as
//
//	salts (32 * n) | R0 (64) | R1 (64) | signature (65) | masked shares (64 * n)
func (t *Token) MarshalBinary() ([]byte, error) {
	if err := t.Validate(); err != nil {
		return nil, err
	}
	out := make([]byte, 0, t.Size())
	for i := range t.Salts {
		out = append(out, t.Salts[i][:]...)
	}
	r0, r1 := t.R0.Bytes(), t.R1.Bytes()
	out = append(out, r0[:]...)
	out = append(out, r1[:]...)
	out = append(out, t.Signature[:]...)
	for _, p := range t.MaskedShares {
		enc := p.Bytes()
		out = append(out, enc[:]...)
	}
	return out, nil
}

// UnmarshalBinary decodes a token, infers n from the length, checks every
// point against the curve and recomputes the ID.
func (t *Token) UnmarshalBinary(data []byte) error {
	body := len(data) - tokenFixedSize
	if body <= 0 || body%tokenPerFeatureSize != 0 {
		return fmt.Errorf("%w: length %d is not %d + %d*n", ErrMalformedToken,
			len(data), tokenFixedSize, tokenPerFeatureSize)
	}
	n := body / tokenPerFeatureSize
	if n > shamir.MaxShares {
		return fmt.Errorf("%w: %d features exceeds %d", ErrMalformedToken, n, shamir.MaxShares)
	}

	var dec Token
	off := 0
	dec.Salts = make([][SaltSize]byte, n)
	for i := 0; i < n; i++ {
		copy(dec.Salts[i][:], data[off:off+SaltSize])
		off += SaltSize
	}

	var err error
	if dec.R0, err = group.PointFromBytes(data[off : off+group.PointSize]); err != nil {
		return fmt.Errorf("decode R0: %w", err)
	}
	off += group.PointSize
	if dec.R1, err = group.PointFromBytes(data[off : off+group.PointSize]); err != nil {
		return fmt.Errorf("decode R1: %w", err)
	}
	off += group.PointSize
	copy(dec.Signature[:], data[off:off+SignatureSize])
	off += SignatureSize

	dec.MaskedShares = make([]group.Point, n)
	for i := 0; i < n; i++ {
		if dec.MaskedShares[i], err = group.PointFromBytes(data[off : off+group.PointSize]); err != nil {
			return fmt.Errorf("decode masked share %d: %w", i+1, err)
		}
		off += group.PointSize
	}

	if err := dec.Validate(); err != nil {
		return err
	}
	dec.ID = dec.Digest()
	*t = dec
	return nil
}

// ParseToken decodes a token from its binary form.
func ParseToken(data []byte) (*Token, error) {
	t := new(Token)
	if err := t.UnmarshalBinary(data); err != nil {
		return nil, err
	}
	return t, nil
}

// SizeReport breaks down the off-chain and on-chain storage for n features.
type SizeReport struct {
	Features      int `json:"n" yaml:"n"`
	SaltBytes     int `json:"salt_bytes" yaml:"salt_bytes"`
	R0Bytes       int `json:"r0_bytes" yaml:"r0_bytes"`
	R1Bytes       int `json:"r1_bytes" yaml:"r1_bytes"`
	SignatureSize int `json:"signature_bytes" yaml:"signature_bytes"`
	MaskedBytes   int `json:"masked_share_bytes" yaml:"masked_share_bytes"`
	OffChainTotal int `json:"offchain_token_bytes" yaml:"offchain_token_bytes"`
	OnChainTotal  int `json:"onchain_storage_bytes" yaml:"onchain_storage_bytes"`
}

// NewSizeReport reports the storage footprint of a deployment with n features.
func NewSizeReport(n int) SizeReport {
	return SizeReport{
		Features:      n,
		SaltBytes:     SaltSize * n,
		R0Bytes:       group.PointSize,
		R1Bytes:       group.PointSize,
		SignatureSize: SignatureSize,
		MaskedBytes:   group.PointSize * n,
		OffChainTotal: OffChainSize(n),
		OnChainTotal:  OnChainSize,
	}
}
