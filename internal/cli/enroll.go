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
	"encoding/hex"
	"fmt"
	"os"

	"github.com/sAeNrDER/Decentrlised-BEKD-for--Biometric-Authentication/pkg/bekd"
	"github.com/sAeNrDER/Decentrlised-BEKD-for--Biometric-Authentication/pkg/ledger"
	"github.com/sAeNrDER/Decentrlised-BEKD-for--Biometric-Authentication/pkg/metrics"
	"github.com/spf13/cobra"
)

// featureFlags are shared by enroll and authenticate.
type featureFlags struct {
	values []string
	file   string
	hex    bool
}

func (f *featureFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringArrayVarP(&f.values, "feature", "f", nil, "biometric feature value (repeat once per feature, in order)")
	cmd.Flags().StringVar(&f.file, "features-file", "", "file with one feature per line")
	cmd.Flags().BoolVar(&f.hex, "hex", false, "feature values are hex encoded")
}

func (f *featureFlags) read() ([][]byte, error) {
	return readFeatures(f.values, f.file, f.hex)
}

func newEnrollCmd(cfg *Config) *cobra.Command {
	var (
		features    featureFlags
		out         string
		noAuthorize bool
		showMetrics bool
	)

	cmd := &cobra.Command{
		Use:   "enroll",
		Short: "Enroll n biometric features into a signed token",
		Long: `Draw a fresh secret, split it into n shares with threshold t, mask
each share with its feature and sign the result with the authority key.

The token is written to --out (or printed as hex) and the commitment K is
printed; both are needed to authenticate. Unless --no-authorize is given
the owner address derived from K is added to the ledger wallet.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			deployment, err := cfg.Deployment()
			if err != nil {
				return err
			}
			values, err := features.read()
			if err != nil {
				return err
			}

			l, err := cfg.OpenLedger()
			if err != nil {
				return err
			}
			defer l.Close()

			params := deployment.Params()
			if err := checkPublished(cmd, cfg, l, params); err != nil {
				return err
			}

			a, err := cfg.LoadAuthority()
			if err != nil {
				return err
			}
			defer a.Zeroize()

			rng, err := deployment.NewResolver()
			if err != nil {
				return err
			}
			defer rng.Close()

			enroller := &bekd.Enroller{
				Params: params,
				Signer: a,
				RNG:    rng,
				Logger: deployment.NewLogger(),
			}
			enrollment, err := enroller.Enroll(ctx, values)
			if err != nil {
				return err
			}

			result := NewEnrollmentResult(enrollment, params)
			raw, err := enrollment.Token.MarshalBinary()
			if err != nil {
				return err
			}
			if out != "" {
				if err := os.WriteFile(out, raw, 0600); err != nil {
					return fmt.Errorf("failed to write token: %w", err)
				}
				result.TokenFile = out
			} else {
				result.Token = hex.EncodeToString(raw)
			}

			if !noAuthorize {
				if err := l.Authorize(ctx, enrollment.Address); err != nil {
					return err
				}
				result.Authorized = true
			}

			p := cfg.printer(cmd)
			if err := p.PrintEnrollment(result); err != nil {
				return err
			}
			if showMetrics {
				return printMetrics(p)
			}
			return nil
		},
	}
	features.register(cmd)
	cmd.Flags().StringVar(&out, "out", "", "write the binary token to this file")
	cmd.Flags().BoolVar(&noAuthorize, "no-authorize", false, "do not add the owner address to the wallet")
	cmd.Flags().BoolVar(&showMetrics, "metrics", false, "print metric counters after the run")
	return cmd
}

// checkPublished refuses to enroll under parameters that differ from the
// published registry. An unpublished registry is allowed.
func checkPublished(cmd *cobra.Command, cfg *Config, l *ledger.Ledger, params bekd.Params) error {
	published, err := l.ThresholdConfig(cmd.Context())
	if err != nil {
		if isNotPublished(err) {
			cfg.printVerbose(cmd, "no published parameters; enrolling with %s", params)
			return nil
		}
		return err
	}
	if published != params {
		return fmt.Errorf("configured parameters %s do not match published %s", params, published)
	}
	return nil
}

func printMetrics(p *Printer) error {
	snapshot, err := metrics.Snapshot()
	if err != nil {
		return err
	}
	return p.PrintMetrics(snapshot)
}
