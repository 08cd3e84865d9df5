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
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/sAeNrDER/Decentrlised-BEKD-for--Biometric-Authentication/pkg/authority"
	"github.com/spf13/cobra"
)

func newEscrowCmd(cfg *Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "escrow",
		Short: "Split the authority key among custodians or recover it",
	}
	cmd.AddCommand(newEscrowSplitCmd(cfg), newEscrowCombineCmd(cfg))
	return cmd
}

func newEscrowSplitCmd(cfg *Config) *cobra.Command {
	var threshold, total int

	cmd := &cobra.Command{
		Use:   "split",
		Short: "Split the authority key into custodian shares",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := cfg.LoadAuthority()
			if err != nil {
				return err
			}
			defer a.Zeroize()

			shares, err := authority.Escrow(a, threshold, total)
			if err != nil {
				return err
			}
			return cfg.printer(cmd).PrintEscrowShares(shares)
		},
	}
	cmd.Flags().IntVarP(&threshold, "threshold", "t", 2, "shares required to recover the key")
	cmd.Flags().IntVarP(&total, "shares", "s", 3, "total shares to create")
	return cmd
}

func newEscrowCombineCmd(cfg *Config) *cobra.Command {
	var (
		sharesFile string
		threshold  int
		total      int
		force      bool
	)

	cmd := &cobra.Command{
		Use:   "combine [index:value ...]",
		Short: "Recover the authority key from custodian shares",
		Long: `Recover the authority key and write it to the key file. Shares are
given either as index:value arguments together with --threshold and
--shares, or as the JSON document printed by "escrow split -o json".`,
		RunE: func(cmd *cobra.Command, args []string) error {
			var shares []authority.EscrowShare
			switch {
			case sharesFile != "" && len(args) > 0:
				return fmt.Errorf("use either --shares-file or share arguments, not both")
			case sharesFile != "":
				var err error
				if shares, err = readSharesFile(sharesFile); err != nil {
					return err
				}
			default:
				for _, arg := range args {
					s, err := parseShareArg(arg, threshold, total)
					if err != nil {
						return err
					}
					shares = append(shares, s)
				}
			}

			a, err := authority.Recover(shares)
			if err != nil {
				return err
			}
			defer a.Zeroize()

			path, err := cfg.SaveAuthority(a, force)
			if err != nil {
				return err
			}
			return cfg.printer(cmd).PrintKeygen(KeygenResult{
				KeyFile:   path,
				PublicKey: pointHex(a.PublicKey()),
			})
		},
	}
	cmd.Flags().StringVar(&sharesFile, "shares-file", "", "JSON file with the shares document")
	cmd.Flags().IntVarP(&threshold, "threshold", "t", 2, "threshold the shares were created with")
	cmd.Flags().IntVarP(&total, "shares", "s", 3, "total shares that were created")
	cmd.Flags().BoolVar(&force, "force", false, "replace an existing key file")
	return cmd
}

func parseShareArg(arg string, threshold, total int) (authority.EscrowShare, error) {
	idx, value, ok := strings.Cut(arg, ":")
	if !ok {
		return authority.EscrowShare{}, fmt.Errorf("share %q must be index:value", arg)
	}
	i, err := strconv.Atoi(idx)
	if err != nil {
		return authority.EscrowShare{}, fmt.Errorf("share %q: invalid index: %w", arg, err)
	}
	return authority.EscrowShare{Index: i, Threshold: threshold, Total: total, Value: value}, nil
}

func readSharesFile(path string) ([]authority.EscrowShare, error) {
	// #nosec G304 - Shares file path is provided by admin/user
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read shares file: %w", err)
	}
	var doc struct {
		Shares []authority.EscrowShare `json:"shares"`
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse shares file: %w", err)
	}
	return doc.Shares, nil
}
