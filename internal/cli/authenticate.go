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
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/sAeNrDER/Decentrlised-BEKD-for--Biometric-Authentication/pkg/bekd"
	"github.com/spf13/cobra"
)

func newAuthenticateCmd(cfg *Config) *cobra.Command {
	var (
		features    featureFlags
		tokenFile   string
		tokenHex    string
		commitment  string
		skipWallet  bool
		bind        bool
		showMetrics bool
	)

	cmd := &cobra.Command{
		Use:     "authenticate",
		Aliases: []string{"auth"},
		Short:   "Authenticate fresh features against a token",
		Long: `Unmask the token's shares with fresh feature readings and search the
subsets of t+1 shares for one whose combination equals the commitment.
At most t features may differ from enrollment.

The token must carry a signature from the published authority key and
must not be in the spent set. The command exits non-zero on rejection.

Rate limit state is held in process memory, so a single invocation always
admits its first attempt. The rate_limit settings take effect when the
authenticator runs inside a long-lived process that serves many attempts.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			deployment, err := cfg.Deployment()
			if err != nil {
				return err
			}
			if commitment == "" {
				return fmt.Errorf("--commitment is required")
			}
			k, err := parsePoint(commitment)
			if err != nil {
				return fmt.Errorf("invalid commitment: %w", err)
			}
			token, err := loadToken(tokenFile, tokenHex)
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

			// buckets do not outlive this run; see the Long help
			limiter := deployment.NewLimiter()
			defer limiter.Stop()

			auth := &bekd.Authenticator{
				Registry:   l,
				SpentSet:   l,
				Limiter:    limiter,
				Policy:     deployment.Policy(),
				MaxSubsets: deployment.Protocol.MaxSubsets,
				Logger:     deployment.NewLogger(),
			}
			if !skipWallet {
				auth.Wallet = l
			}
			if bind {
				a, err := cfg.LoadAuthority()
				if err != nil {
					return err
				}
				defer a.Zeroize()
				auth.Binder = a
			}

			res, authErr := auth.Authenticate(ctx, token, values, k)
			p := cfg.printer(cmd)
			if res != nil {
				if err := p.PrintAuthentication(NewAuthenticationResult(res)); err != nil {
					return err
				}
			}
			if showMetrics {
				if err := printMetrics(p); err != nil {
					return errors.Join(authErr, err)
				}
			}
			return authErr
		},
	}
	features.register(cmd)
	cmd.Flags().StringVar(&tokenFile, "token", "", "binary token file written by enroll")
	cmd.Flags().StringVar(&tokenHex, "token-hex", "", "hex-encoded token")
	cmd.Flags().StringVar(&commitment, "commitment", "", "enrolled commitment K (hex x||y)")
	cmd.Flags().BoolVar(&skipWallet, "skip-wallet", false, "do not require the owner address to be in the wallet")
	cmd.Flags().BoolVar(&bind, "bind", false, "check the token's authority binding with the local key")
	cmd.Flags().BoolVar(&showMetrics, "metrics", false, "print metric counters after the run")
	return cmd
}

// loadToken reads a token from a binary file or a hex string.
func loadToken(file, hexToken string) (*bekd.Token, error) {
	switch {
	case file != "" && hexToken != "":
		return nil, fmt.Errorf("use either --token or --token-hex, not both")
	case file != "":
		// #nosec G304 - Token file path is provided by user
		data, err := os.ReadFile(file)
		if err != nil {
			return nil, fmt.Errorf("failed to read token: %w", err)
		}
		return bekd.ParseToken(data)
	case hexToken != "":
		data, err := hex.DecodeString(strings.TrimPrefix(strings.TrimSpace(hexToken), "0x"))
		if err != nil {
			return nil, fmt.Errorf("%w: %v", bekd.ErrMalformedToken, err)
		}
		return bekd.ParseToken(data)
	default:
		return nil, fmt.Errorf("--token or --token-hex is required")
	}
}
