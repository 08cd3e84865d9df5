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

package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sAeNrDER/Decentrlised-BEKD-for--Biometric-Authentication/pkg/correlation"
)

func newJSONLogger(buf *bytes.Buffer, level Level) *SlogAdapter {
	return NewSlogAdapter(&SlogConfig{Writer: buf, Format: "json", Level: level})
}

func decodeLine(t *testing.T, buf *bytes.Buffer) map[string]interface{} {
	t.Helper()
	var rec map[string]interface{}
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &rec))
	return rec
}

func TestSlogAdapter_Fields(t *testing.T) {
	var buf bytes.Buffer
	l := newJSONLogger(&buf, LevelDebug)

	l.Info("enrolled", String("token_id", "ab12"), Int("features", 3), Bool("signed", true))
	rec := decodeLine(t, &buf)
	assert.Equal(t, "enrolled", rec["msg"])
	assert.Equal(t, "INFO", rec["level"])
	assert.Equal(t, "ab12", rec["token_id"])
	assert.Equal(t, float64(3), rec["features"])
	assert.Equal(t, true, rec["signed"])
}

func TestSlogAdapter_LevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	l := newJSONLogger(&buf, LevelWarn)

	l.Debug("hidden")
	l.Info("hidden")
	assert.Zero(t, buf.Len())

	l.Warn("shown")
	assert.NotZero(t, buf.Len())
}

func TestSlogAdapter_WithDoesNotDuplicate(t *testing.T) {
	var buf bytes.Buffer
	l := newJSONLogger(&buf, LevelInfo).With(String("component", "authenticator"))

	l.Info("attempt")
	out := buf.String()
	assert.Equal(t, 1, bytes.Count([]byte(out), []byte(`"component"`)))
}

func TestSlogAdapter_WithError(t *testing.T) {
	var buf bytes.Buffer
	l := newJSONLogger(&buf, LevelInfo).WithError(errors.New("store unreachable"))

	l.Error("mark used failed")
	rec := decodeLine(t, &buf)
	assert.Equal(t, "store unreachable", rec["error"])
}

func TestSlogAdapter_CorrelationID(t *testing.T) {
	var buf bytes.Buffer
	l := newJSONLogger(&buf, LevelInfo)

	ctx := correlation.WithCorrelationID(context.Background(), "req-123")
	l.InfoContext(ctx, "authenticate")
	rec := decodeLine(t, &buf)
	assert.Equal(t, "req-123", rec["correlation_id"])
}

func TestDiscard(t *testing.T) {
	l := Discard()
	l.Error("nothing to see")
	l.With(Int("n", 1)).Info("still nothing")
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    Level
		wantErr bool
	}{
		{in: "debug", want: LevelDebug},
		{in: "INFO", want: LevelInfo},
		{in: "", want: LevelInfo},
		{in: "warning", want: LevelWarn},
		{in: "error", want: LevelError},
		{in: "verbose", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseLevel(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.NotEqual(t, "UNKNOWN", got.String())
		})
	}
}
