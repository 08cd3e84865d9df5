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
	"errors"
	"io"

	"github.com/sAeNrDER/Decentrlised-BEKD-for--Biometric-Authentication/pkg/authority"
	"github.com/sAeNrDER/Decentrlised-BEKD-for--Biometric-Authentication/pkg/bekd"
	"github.com/sAeNrDER/Decentrlised-BEKD-for--Biometric-Authentication/pkg/group"
	"github.com/sAeNrDER/Decentrlised-BEKD-for--Biometric-Authentication/pkg/ledger"
	"github.com/spf13/cobra"
)

func newParamsCmd(cfg *Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "params",
		Short: "Publish or show deployment parameters",
	}
	cmd.AddCommand(newParamsPublishCmd(cfg), newParamsShowCmd(cfg), newParamsSizeCmd(cfg))
	return cmd
}

func newParamsPublishCmd(cfg *Config) *cobra.Command {
	var owner string

	cmd := &cobra.Command{
		Use:   "publish",
		Short: "Record the authority public key and (t, n) in the ledger",
		Long: `Publish the authority public key together with the configured
threshold t and feature count n. Authentication refuses tokens whose
shape or signer does not match the published record.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			deployment, err := cfg.Deployment()
			if err != nil {
				return err
			}
			ownerPoint := group.Identity()
			if owner != "" {
				if ownerPoint, err = parsePoint(owner); err != nil {
					return err
				}
			}

			a, err := cfg.LoadAuthority()
			if err != nil {
				return err
			}
			defer a.Zeroize()

			l, err := cfg.OpenLedger()
			if err != nil {
				return err
			}
			defer l.Close()

			params := deployment.Params()
			if err := l.Publish(cmd.Context(), a.PublicKey(), params); err != nil {
				return err
			}
			cfg.printVerbose(cmd, "published %s", params)
			return cfg.printer(cmd).PrintParams(newParamsResult(a.PublicKey(), params, ownerPoint))
		},
	}
	cmd.Flags().StringVar(&owner, "owner", "", "enrolled commitment (hex x||y) to record as wallet owner")
	return cmd
}

func newParamsShowCmd(cfg *Config) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show the published deployment parameters",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			l, err := cfg.OpenLedger()
			if err != nil {
				return err
			}
			defer l.Close()

			r, err := publishedParams(cmd, l)
			if err != nil {
				return err
			}
			return cfg.printer(cmd).PrintParams(*r)
		},
	}
}

func newParamsSizeCmd(cfg *Config) *cobra.Command {
	var n int

	cmd := &cobra.Command{
		Use:   "size",
		Short: "Report token and ledger storage for n features",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if n == 0 {
				deployment, err := cfg.Deployment()
				if err != nil {
					return err
				}
				n = deployment.Protocol.Features
			}
			if err := (bekd.Params{Features: n}).Validate(); err != nil {
				return err
			}
			report := bekd.NewSizeReport(n)
			return cfg.printer(cmd).print(report, func(w io.Writer) { printSize(w, report) })
		},
	}
	cmd.Flags().IntVarP(&n, "features", "n", 0, "feature count (default from configuration)")
	return cmd
}

func newParamsResult(pk group.Point, params bekd.Params, owner group.Point) ParamsResult {
	return ParamsResult{
		Deployment: authority.NewDeploymentParams(pk, params.Threshold, params.Features, owner),
		Size:       bekd.NewSizeReport(params.Features),
	}
}

// publishedParams reads the registry record.
func publishedParams(cmd *cobra.Command, l *ledger.Ledger) (*ParamsResult, error) {
	ctx := cmd.Context()
	pk, err := l.PublicKey(ctx)
	if err != nil {
		return nil, err
	}
	params, err := l.ThresholdConfig(ctx)
	if err != nil {
		return nil, err
	}
	r := newParamsResult(pk, params, group.Identity())
	return &r, nil
}

func isNotPublished(err error) bool {
	return errors.Is(err, ledger.ErrNotPublished)
}
