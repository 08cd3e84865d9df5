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

package ratelimit

import (
	"testing"
	"time"
)

func TestNew(t *testing.T) {
	limiter := New(&Config{
		Enabled:           true,
		RequestsPerMinute: 60,
		Burst:             10,
	})
	defer limiter.Stop()

	stats := limiter.Stats()
	if !stats.Enabled {
		t.Error("Expected enabled to be true in stats")
	}
	if stats.Burst != 10 {
		t.Errorf("Expected burst 10, got %d", stats.Burst)
	}
	if stats.RatePerMinute < 59.9 || stats.RatePerMinute > 60.1 {
		t.Errorf("Expected rate 60/min, got %v", stats.RatePerMinute)
	}
}

func TestNew_NilConfig(t *testing.T) {
	limiter := New(nil)
	defer limiter.Stop()

	if !limiter.Allow("anyone") {
		t.Error("disabled limiter must allow")
	}
}

func TestAllow(t *testing.T) {
	limiter := New(&Config{
		Enabled:           true,
		RequestsPerMinute: 60,
		Burst:             5,
	})
	defer limiter.Stop()

	identity := "7e5f4552091a69125d5dfcb7b8c2659029395bdf"

	for i := 0; i < 5; i++ {
		if !limiter.Allow(identity) {
			t.Errorf("attempt %d should be allowed within burst", i+1)
		}
	}
	if limiter.Allow(identity) {
		t.Error("attempt beyond burst should be denied")
	}

	if !limiter.Allow("another-identity") {
		t.Error("identities must be limited independently")
	}
	if got := limiter.Stats().ActiveIdentity; got != 2 {
		t.Errorf("Expected 2 active identities, got %d", got)
	}
}

func TestAllow_NilLimiter(t *testing.T) {
	var limiter *Limiter
	if !limiter.Allow("x") {
		t.Error("nil limiter must allow")
	}
}

func TestCleanup(t *testing.T) {
	limiter := New(&Config{
		Enabled:           true,
		RequestsPerMinute: 60,
		MaxIdle:           time.Minute,
	})
	defer limiter.Stop()

	base := time.Now()
	limiter.now = func() time.Time { return base }
	limiter.Allow("stale")

	limiter.now = func() time.Time { return base.Add(2 * time.Minute) }
	limiter.Allow("fresh")
	limiter.cleanup()

	if got := limiter.Stats().ActiveIdentity; got != 1 {
		t.Errorf("Expected 1 identity after cleanup, got %d", got)
	}
}

func TestStop_Idempotent(t *testing.T) {
	limiter := New(&Config{Enabled: true, RequestsPerMinute: 60})
	limiter.Stop()
	limiter.Stop()
}
