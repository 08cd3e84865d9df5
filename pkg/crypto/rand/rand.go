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

// Package rand provides the randomness source injected into enrollment and
// sharing. Every consumer takes an io.Reader; a Resolver is one.
//
// # Sources
//
//   - Software: crypto/rand, the default for production use
//   - Deterministic: a ChaCha20 keystream expanded from a 32-byte seed, for
//     reproducible tests and benchmarks only
//
// # Usage
//
//	rng, _ := rand.NewResolver(rand.ModeSoftware)
//	enrollment, err := enroller.Enroll(ctx, features) // enroller built with rng
//
//	// tests
//	rng := rand.NewDeterministic(seed)
//
// # Thread Safety
//
// All Resolver implementations are safe for concurrent use. The
// deterministic resolver serializes reads behind a mutex so two goroutines
// never observe the same keystream bytes.
package rand

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"sync"

	"golang.org/x/crypto/chacha20"
)

// Mode specifies which RNG source to use.
type Mode string

const (
	// ModeSoftware uses crypto/rand (stdlib secure random)
	ModeSoftware Mode = "software"

	// ModeDeterministic expands a fixed seed. Never use outside tests.
	ModeDeterministic Mode = "deterministic"
)

// SeedSize is the seed length of the deterministic source.
const SeedSize = chacha20.KeySize

var (
	// ErrClosed is returned by a resolver after Close.
	ErrClosed = errors.New("rand: resolver closed")

	// ErrInvalidSeed indicates a deterministic seed of the wrong length.
	ErrInvalidSeed = errors.New("rand: invalid seed")
)

// Config contains RNG configuration.
type Config struct {
	// Mode specifies the RNG source. Defaults to ModeSoftware.
	Mode Mode

	// Seed is the 32-byte seed for ModeDeterministic.
	Seed []byte
}

// Resolver provides random bytes. It implements io.Reader so it can be
// passed anywhere crypto/rand.Reader is accepted.
type Resolver interface {
	// Rand returns n random bytes.
	Rand(n int) ([]byte, error)

	// Read implements io.Reader.
	Read(p []byte) (n int, err error)

	// Mode reports the configured source.
	Mode() Mode

	// Available returns true if the source can still produce output.
	Available() bool

	// Close releases the source. Reads after Close fail.
	Close() error
}

// NewResolver creates a resolver from a Mode or a *Config. A nil config
// selects ModeSoftware.
func NewResolver(config interface{}) (Resolver, error) {
	cfg := normalizeConfig(config)
	switch cfg.Mode {
	case ModeSoftware:
		return &SoftwareResolver{}, nil
	case ModeDeterministic:
		if len(cfg.Seed) != SeedSize {
			return nil, fmt.Errorf("%w: need %d bytes, got %d", ErrInvalidSeed, SeedSize, len(cfg.Seed))
		}
		return NewDeterministic(cfg.Seed), nil
	default:
		return nil, fmt.Errorf("unknown RNG mode: %s", cfg.Mode)
	}
}

// ParseSeed decodes a hex seed for ModeDeterministic.
func ParseSeed(s string) ([]byte, error) {
	seed, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidSeed, err)
	}
	if len(seed) != SeedSize {
		return nil, fmt.Errorf("%w: need %d bytes, got %d", ErrInvalidSeed, SeedSize, len(seed))
	}
	return seed, nil
}

func normalizeConfig(config interface{}) *Config {
	switch v := config.(type) {
	case Mode:
		return &Config{Mode: v}
	case *Config:
		if v == nil {
			return &Config{Mode: ModeSoftware}
		}
		if v.Mode == "" {
			return &Config{Mode: ModeSoftware, Seed: v.Seed}
		}
		return v
	default:
		return &Config{Mode: ModeSoftware}
	}
}

// SoftwareResolver uses crypto/rand from the Go standard library.
type SoftwareResolver struct{}

var _ Resolver = (*SoftwareResolver)(nil)

func (s *SoftwareResolver) Rand(n int) ([]byte, error) {
	buf := make([]byte, n)
	_, err := rand.Read(buf)
	return buf, err
}

func (s *SoftwareResolver) Read(p []byte) (n int, err error) {
	return rand.Read(p)
}

func (s *SoftwareResolver) Mode() Mode {
	return ModeSoftware
}

func (s *SoftwareResolver) Available() bool {
	return true
}

func (s *SoftwareResolver) Close() error {
	return nil
}

// DeterministicResolver emits the ChaCha20 keystream of a fixed seed with
// an all-zero nonce. Two resolvers built from the same seed produce the
// same byte sequence.
type DeterministicResolver struct {
	mu     sync.Mutex
	cipher *chacha20.Cipher
	closed bool
}

var _ Resolver = (*DeterministicResolver)(nil)

// NewDeterministic returns a reproducible resolver. seed must be SeedSize
// bytes; shorter seeds are zero-padded and longer ones truncated.
func NewDeterministic(seed []byte) *DeterministicResolver {
	key := make([]byte, SeedSize)
	copy(key, seed)
	nonce := make([]byte, chacha20.NonceSize)
	c, err := chacha20.NewUnauthenticatedCipher(key, nonce)
	if err != nil {
		// key and nonce sizes are fixed above
		panic("rand: chacha20 setup: " + err.Error())
	}
	return &DeterministicResolver{cipher: c}
}

func (d *DeterministicResolver) Rand(n int) ([]byte, error) {
	buf := make([]byte, n)
	if _, err := d.Read(buf); err != nil {
		return nil, err
	}
	return buf, nil
}

func (d *DeterministicResolver) Read(p []byte) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return 0, ErrClosed
	}
	for i := range p {
		p[i] = 0
	}
	d.cipher.XORKeyStream(p, p)
	return len(p), nil
}

func (d *DeterministicResolver) Mode() Mode {
	return ModeDeterministic
}

func (d *DeterministicResolver) Available() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return !d.closed
}

func (d *DeterministicResolver) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closed = true
	return nil
}
