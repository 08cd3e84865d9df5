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

package cli

import (
	"bufio"
	"bytes"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/sAeNrDER/Decentrlised-BEKD-for--Biometric-Authentication/internal/config"
	"github.com/sAeNrDER/Decentrlised-BEKD-for--Biometric-Authentication/pkg/authority"
	"github.com/sAeNrDER/Decentrlised-BEKD-for--Biometric-Authentication/pkg/group"
	"github.com/sAeNrDER/Decentrlised-BEKD-for--Biometric-Authentication/pkg/ledger"
)

// DefaultKeyFile is the authority key file name used when neither the
// flag nor the deployment configuration names one.
const DefaultKeyFile = "authority.key"

// Config holds global CLI configuration
type Config struct {
	// ConfigFile is the path to the deployment configuration file
	ConfigFile string

	// DataDir selects the file ledger backend rooted at this directory
	DataDir string

	// KeyFile is the hex-encoded authority key path
	KeyFile string

	// OutputFormat controls output formatting (text, json, yaml)
	OutputFormat string

	// Verbose enables verbose logging
	Verbose bool

	deployment *config.Config
}

// NewConfig creates a new Config with default values
func NewConfig() *Config {
	return &Config{
		OutputFormat: "text",
	}
}

// Deployment loads the deployment configuration once: from ConfigFile when
// set, otherwise from defaults plus BEKD_* environment variables. DataDir
// overrides the storage section.
func (c *Config) Deployment() (*config.Config, error) {
	if c.deployment != nil {
		return c.deployment, nil
	}

	var (
		cfg *config.Config
		err error
	)
	if c.ConfigFile != "" {
		cfg, err = config.Load(c.ConfigFile)
	} else {
		cfg, err = config.FromEnv()
	}
	if err != nil {
		return nil, err
	}

	if c.DataDir != "" {
		cfg.Storage.Backend = config.StorageFile
		cfg.Storage.Path = c.DataDir
	}
	if c.Verbose {
		cfg.Logging.Level = "debug"
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	cfg.ApplyMetrics()

	c.deployment = cfg
	return cfg, nil
}

// OpenLedger opens the ledger described by the deployment configuration.
func (c *Config) OpenLedger() (*ledger.Ledger, error) {
	cfg, err := c.Deployment()
	if err != nil {
		return nil, err
	}
	return cfg.OpenLedger()
}

// AuthorityKeyFile resolves the key path: flag, then configuration, then
// DefaultKeyFile inside the data directory.
func (c *Config) AuthorityKeyFile() string {
	if c.KeyFile != "" {
		return c.KeyFile
	}
	if d, err := c.Deployment(); err == nil && d.Authority.KeyFile != "" {
		return d.Authority.KeyFile
	}
	if c.DataDir != "" {
		return filepath.Join(c.DataDir, DefaultKeyFile)
	}
	return DefaultKeyFile
}

// LoadAuthority reads the authority key file. The caller must Zeroize the
// returned key.
func (c *Config) LoadAuthority() (*authority.Authority, error) {
	path := c.AuthorityKeyFile()
	// #nosec G304 - Key file path is provided by admin/user
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read authority key %s: %w", path, err)
	}
	raw, err := hex.DecodeString(strings.TrimSpace(string(data)))
	clear(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %s is not hex", authority.ErrInvalidKey, path)
	}
	defer clear(raw)
	return authority.FromBytes(raw)
}

// SaveAuthority writes the key as hex with owner-only permissions. An
// existing file is only replaced when force is set.
func (c *Config) SaveAuthority(a *authority.Authority, force bool) (string, error) {
	path := c.AuthorityKeyFile()
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0700); err != nil {
			return "", fmt.Errorf("failed to create key directory: %w", err)
		}
	}

	flags := os.O_WRONLY | os.O_CREATE | os.O_TRUNC
	if !force {
		flags |= os.O_EXCL
	}
	// #nosec G304 - Key file path is provided by admin/user
	f, err := os.OpenFile(path, flags, 0600)
	if err != nil {
		if errors.Is(err, os.ErrExist) {
			return "", fmt.Errorf("authority key %s already exists (use --force to replace it)", path)
		}
		return "", fmt.Errorf("failed to create authority key: %w", err)
	}

	raw := a.Bytes()
	enc := []byte(hex.EncodeToString(raw[:]) + "\n")
	clear(raw[:])
	_, werr := f.Write(enc)
	clear(enc)
	if err := errors.Join(werr, f.Close()); err != nil {
		return "", fmt.Errorf("failed to write authority key: %w", err)
	}
	return path, nil
}

// readFeatures collects biometric features from repeated --feature values
// or from a file holding one feature per line. With asHex each value is
// hex-decoded.
func readFeatures(values []string, file string, asHex bool) ([][]byte, error) {
	if file != "" && len(values) > 0 {
		return nil, fmt.Errorf("use either --feature or --features-file, not both")
	}
	if file != "" {
		// #nosec G304 - Feature file path is provided by user
		data, err := os.ReadFile(file)
		if err != nil {
			return nil, fmt.Errorf("failed to read features file: %w", err)
		}
		scanner := bufio.NewScanner(bytes.NewReader(data))
		for scanner.Scan() {
			values = append(values, scanner.Text())
		}
		if err := scanner.Err(); err != nil {
			return nil, fmt.Errorf("failed to read features file: %w", err)
		}
	}
	if len(values) == 0 {
		return nil, fmt.Errorf("no features given")
	}

	features := make([][]byte, len(values))
	for i, v := range values {
		if !asHex {
			features[i] = []byte(v)
			continue
		}
		b, err := hex.DecodeString(strings.TrimPrefix(strings.TrimSpace(v), "0x"))
		if err != nil {
			return nil, fmt.Errorf("feature %d: invalid hex: %w", i+1, err)
		}
		features[i] = b
	}
	return features, nil
}

// parsePoint decodes a 0x-optional hex x||y point.
func parsePoint(s string) (group.Point, error) {
	s = strings.TrimSpace(s)
	if len(s) >= 2 && s[0] == '0' && (s[1] == 'x' || s[1] == 'X') {
		s = s[2:]
	}
	b, err := hex.DecodeString(s)
	if err != nil {
		return group.Point{}, fmt.Errorf("%w: %v", group.ErrInvalidEncoding, err)
	}
	return group.PointFromBytes(b)
}

func pointHex(p group.Point) string {
	b := p.Bytes()
	return "0x" + hex.EncodeToString(b[:])
}

func addressHex(addr [group.AddressSize]byte) string {
	return "0x" + hex.EncodeToString(addr[:])
}
