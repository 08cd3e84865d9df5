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
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/sAeNrDER/Decentrlised-BEKD-for--Biometric-Authentication/pkg/correlation"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// EnvPrefix namespaces the environment variables bound to global flags,
// e.g. BEKD_OUTPUT and BEKD_DATA_DIR.
const EnvPrefix = "BEKD"

// NewRootCommand builds the bekd command tree around cfg.
func NewRootCommand(cfg *Config) *cobra.Command {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	rootCmd := &cobra.Command{
		Use:   "bekd",
		Short: "bekd - threshold biometric key derivation",
		Long: `bekd enrolls biometric feature vectors into signed tokens and
authenticates fresh readings against them. Any t+1 of the n features
recover the enrolled key, so up to t features may differ between
enrollment and authentication.

Deployment state (published parameters, spent tokens and the owner
wallet) lives in a ledger backed by memory or by a data directory.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg.ConfigFile = v.GetString("config")
			cfg.DataDir = v.GetString("data-dir")
			cfg.KeyFile = v.GetString("key-file")
			cfg.OutputFormat = v.GetString("output")
			cfg.Verbose = v.GetBool("verbose")

			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			ctx, id := correlation.Ensure(ctx)
			cmd.SetContext(ctx)
			cfg.printVerbose(cmd, "correlation id %s", id)
			return nil
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.String("config", "", "deployment config file (YAML)")
	flags.String("data-dir", "", "ledger data directory (selects the file backend)")
	flags.String("key-file", "", "authority key file (default <data-dir>/"+DefaultKeyFile+")")
	flags.StringP("output", "o", cfg.OutputFormat, "output format (text, json, yaml)")
	flags.BoolP("verbose", "v", false, "verbose output")
	for _, name := range []string{"config", "data-dir", "key-file", "output", "verbose"} {
		_ = v.BindPFlag(name, flags.Lookup(name))
	}

	rootCmd.AddCommand(
		newVersionCmd(cfg),
		newKeygenCmd(cfg),
		newParamsCmd(cfg),
		newEnrollCmd(cfg),
		newAuthenticateCmd(cfg),
		newEscrowCmd(cfg),
		newWalletCmd(cfg),
		newLedgerCmd(cfg),
		newTokenCmd(cfg),
	)
	return rootCmd
}

// Execute runs the root command
func Execute() error {
	cfg := NewConfig()
	err := NewRootCommand(cfg).ExecuteContext(context.Background())
	if err != nil {
		handleError(cfg, err)
	}
	return err
}

// handleError prints an error to stderr in the selected output format
func handleError(cfg *Config, err error) {
	printer := NewPrinter(cfg.OutputFormat, os.Stderr)
	if perr := printer.PrintError(err); perr != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	}
}

// printer returns a Printer writing to the command's output stream
func (c *Config) printer(cmd *cobra.Command) *Printer {
	return NewPrinter(c.OutputFormat, cmd.OutOrStdout())
}

// printVerbose prints a message if verbose mode is enabled
func (c *Config) printVerbose(cmd *cobra.Command, format string, args ...interface{}) {
	if c.Verbose {
		fmt.Fprintf(cmd.ErrOrStderr(), "[VERBOSE] "+format+"\n", args...)
	}
}
