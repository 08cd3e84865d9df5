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

// Package ledger implements the parameter registry, spent-token set and
// biometric wallet collaborators on top of a storage.Backend. The memory
// backend gives tests an in-process fake; the file backend persists a
// ledger between CLI invocations.
package ledger

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sAeNrDER/Decentrlised-BEKD-for--Biometric-Authentication/pkg/bekd"
	"github.com/sAeNrDER/Decentrlised-BEKD-for--Biometric-Authentication/pkg/group"
	"github.com/sAeNrDER/Decentrlised-BEKD-for--Biometric-Authentication/pkg/storage"
)

// ErrNotPublished is returned when the registry has no parameters yet.
var ErrNotPublished = errors.New("ledger: deployment parameters not published")

// Ledger serves bekd.Registry, bekd.SpentSet and bekd.Wallet.
type Ledger struct {
	backend storage.Backend

	// serializes check-and-set on backends without storage.Creator
	mu sync.Mutex
}

var (
	_ bekd.Registry = (*Ledger)(nil)
	_ bekd.SpentSet = (*Ledger)(nil)
	_ bekd.Wallet   = (*Ledger)(nil)
)

// New returns a ledger over backend.
func New(backend storage.Backend) *Ledger {
	return &Ledger{backend: backend}
}

// NewMemory returns a ledger over a fresh in-memory backend.
func NewMemory() *Ledger {
	return New(storage.NewMemory())
}

// Close closes the underlying backend.
func (l *Ledger) Close() error {
	return l.backend.Close()
}

// Record is the registry entry as stored.
type Record struct {
	PublicKey string `json:"pk"`
	Threshold int    `json:"t"`
	Features  int    `json:"n"`
	HashSpec  string `json:"hash_spec"`
}

// Publish writes the deployment parameters, replacing any previous ones.
func (l *Ledger) Publish(ctx context.Context, pk group.Point, params bekd.Params) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := params.Validate(); err != nil {
		return err
	}
	if pk.IsIdentity() {
		return fmt.Errorf("ledger: publish: %w: authority key is the identity", group.ErrInvalidEncoding)
	}
	enc := pk.Bytes()
	data, err := json.Marshal(Record{
		PublicKey: hex.EncodeToString(enc[:]),
		Threshold: params.Threshold,
		Features:  params.Features,
		HashSpec:  group.HashSpec,
	})
	if err != nil {
		return fmt.Errorf("ledger: encode registry: %w", err)
	}
	if err := l.backend.Put(storage.ParamsKey, data, nil); err != nil {
		return fmt.Errorf("ledger: write registry: %w", err)
	}
	return nil
}

func (l *Ledger) record(ctx context.Context) (Record, group.Point, error) {
	var rec Record
	if err := ctx.Err(); err != nil {
		return rec, group.Point{}, err
	}
	data, err := l.backend.Get(storage.ParamsKey)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return rec, group.Point{}, fmt.Errorf("%w: %w", ErrNotPublished, err)
		}
		return rec, group.Point{}, fmt.Errorf("ledger: read registry: %w", err)
	}
	if err := json.Unmarshal(data, &rec); err != nil {
		return rec, group.Point{}, fmt.Errorf("%w: registry: %v", storage.ErrInvalidData, err)
	}
	if rec.HashSpec != group.HashSpec {
		return rec, group.Point{}, fmt.Errorf("%w: registry hash spec %q, want %q",
			storage.ErrInvalidData, rec.HashSpec, group.HashSpec)
	}
	raw, err := hex.DecodeString(rec.PublicKey)
	if err != nil {
		return rec, group.Point{}, fmt.Errorf("%w: registry key: %v", storage.ErrInvalidData, err)
	}
	pk, err := group.PointFromBytes(raw)
	if err != nil {
		return rec, group.Point{}, fmt.Errorf("%w: registry key: %w", storage.ErrInvalidData, err)
	}
	return rec, pk, nil
}

// Deployment returns the stored registry record.
func (l *Ledger) Deployment(ctx context.Context) (Record, error) {
	rec, _, err := l.record(ctx)
	return rec, err
}

// PublicKey returns the published CA key.
func (l *Ledger) PublicKey(ctx context.Context) (group.Point, error) {
	_, pk, err := l.record(ctx)
	return pk, err
}

// ThresholdConfig returns the published (t, n).
func (l *Ledger) ThresholdConfig(ctx context.Context) (bekd.Params, error) {
	rec, _, err := l.record(ctx)
	if err != nil {
		return bekd.Params{}, err
	}
	return bekd.Params{Threshold: rec.Threshold, Features: rec.Features}, nil
}

// IsUsed reports whether id is in the spent set.
func (l *Ledger) IsUsed(ctx context.Context, id bekd.TokenID) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	used, err := l.backend.Exists(storage.SpentKey(id.String()))
	if err != nil {
		return false, fmt.Errorf("ledger: read spent set: %w", err)
	}
	return used, nil
}

// MarkUsed adds id to the spent set, or fails with bekd.ErrTokenReplay when
// it is already there.
func (l *Ledger) MarkUsed(ctx context.Context, id bekd.TokenID) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	stamp := []byte(time.Now().UTC().Format(time.RFC3339Nano))
	err := storage.CreateIfAbsent(l.backend, storage.SpentKey(id.String()), stamp, nil)
	if errors.Is(err, storage.ErrAlreadyExists) {
		return fmt.Errorf("%w: %s", bekd.ErrTokenReplay, id)
	}
	if err != nil {
		return fmt.Errorf("ledger: write spent set: %w", err)
	}
	return nil
}

// Spent lists every consumed token ID.
func (l *Ledger) Spent(ctx context.Context) ([]bekd.TokenID, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	hexIDs, err := storage.ListSpent(l.backend)
	if err != nil {
		return nil, fmt.Errorf("ledger: list spent set: %w", err)
	}
	ids := make([]bekd.TokenID, 0, len(hexIDs))
	for _, h := range hexIDs {
		id, err := bekd.ParseTokenID(h)
		if err != nil {
			return nil, fmt.Errorf("%w: spent entry %q", storage.ErrInvalidData, h)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// Authorize adds an owner address to the wallet.
func (l *Ledger) Authorize(ctx context.Context, identity [group.AddressSize]byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := l.backend.Put(storage.AuthorizedKey(hex.EncodeToString(identity[:])), []byte{1}, nil); err != nil {
		return fmt.Errorf("ledger: write wallet: %w", err)
	}
	return nil
}

// Revoke removes an owner address from the wallet. Revoking an unknown
// address is not an error.
func (l *Ledger) Revoke(ctx context.Context, identity [group.AddressSize]byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	err := l.backend.Delete(storage.AuthorizedKey(hex.EncodeToString(identity[:])))
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return fmt.Errorf("ledger: write wallet: %w", err)
	}
	return nil
}

// IsAuthorized reports whether identity is in the wallet.
func (l *Ledger) IsAuthorized(ctx context.Context, identity [group.AddressSize]byte) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	ok, err := l.backend.Exists(storage.AuthorizedKey(hex.EncodeToString(identity[:])))
	if err != nil {
		return false, fmt.Errorf("ledger: read wallet: %w", err)
	}
	return ok, nil
}

// Authorized lists the wallet's owner addresses in sorted order.
func (l *Ledger) Authorized(ctx context.Context) ([][group.AddressSize]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	hexAddrs, err := storage.ListAuthorized(l.backend)
	if err != nil {
		return nil, fmt.Errorf("ledger: list wallet: %w", err)
	}
	addrs := make([][group.AddressSize]byte, 0, len(hexAddrs))
	for _, h := range hexAddrs {
		addr, err := ParseAddress(h)
		if err != nil {
			return nil, fmt.Errorf("%w: wallet entry %q", storage.ErrInvalidData, h)
		}
		addrs = append(addrs, addr)
	}
	return addrs, nil
}

// ParseAddress decodes a 20-byte hex address, with or without 0x.
func ParseAddress(s string) ([group.AddressSize]byte, error) {
	var addr [group.AddressSize]byte
	if len(s) >= 2 && s[0] == '0' && (s[1] == 'x' || s[1] == 'X') {
		s = s[2:]
	}
	b, err := hex.DecodeString(s)
	if err != nil || len(b) != len(addr) {
		return addr, fmt.Errorf("ledger: address must be %d hex-encoded bytes", group.AddressSize)
	}
	copy(addr[:], b)
	return addr, nil
}
