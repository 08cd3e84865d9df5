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

	"github.com/sAeNrDER/Decentrlised-BEKD-for--Biometric-Authentication/pkg/group"
	"github.com/sAeNrDER/Decentrlised-BEKD-for--Biometric-Authentication/pkg/ledger"
	"github.com/spf13/cobra"
)

func newWalletCmd(cfg *Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "wallet",
		Short: "Manage the owner identities allowed to authenticate",
	}
	cmd.AddCommand(
		newWalletChangeCmd(cfg, "authorize", "Add an owner address or commitment to the wallet", (*ledger.Ledger).Authorize),
		newWalletChangeCmd(cfg, "revoke", "Remove an owner address or commitment from the wallet", (*ledger.Ledger).Revoke),
	)
	return cmd
}

type walletOp func(l *ledger.Ledger, ctx context.Context, identity [group.AddressSize]byte) error

func newWalletChangeCmd(cfg *Config, use, short string, op walletOp) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <address|commitment>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			identity, err := parseIdentity(args[0])
			if err != nil {
				return err
			}
			l, err := cfg.OpenLedger()
			if err != nil {
				return err
			}
			defer l.Close()

			if err := op(l, cmd.Context(), identity); err != nil {
				return err
			}
			return cfg.printer(cmd).PrintSuccess(use + "d " + addressHex(identity))
		},
	}
}

// parseIdentity accepts a 20-byte address or a 64-byte commitment, from
// which the address is derived.
func parseIdentity(s string) ([group.AddressSize]byte, error) {
	if addr, err := ledger.ParseAddress(s); err == nil {
		return addr, nil
	}
	p, err := parsePoint(s)
	if err != nil {
		return [group.AddressSize]byte{}, fmt.Errorf("identity must be a %d-byte address or a %d-byte commitment: %w",
			group.AddressSize, group.PointSize, err)
	}
	return group.Address(p), nil
}
