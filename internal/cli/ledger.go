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
	"github.com/spf13/cobra"
)

func newLedgerCmd(cfg *Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ledger",
		Short: "Inspect the ledger",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Show published parameters, spent tokens and the wallet",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			l, err := cfg.OpenLedger()
			if err != nil {
				return err
			}
			defer l.Close()

			var status LedgerStatus
			params, err := publishedParams(cmd, l)
			switch {
			case err == nil:
				status.Published = true
				status.Params = params
			case !isNotPublished(err):
				return err
			}

			spent, err := l.Spent(ctx)
			if err != nil {
				return err
			}
			status.Spent = make([]string, len(spent))
			for i, id := range spent {
				status.Spent[i] = id.String()
			}

			authorized, err := l.Authorized(ctx)
			if err != nil {
				return err
			}
			status.Authorized = make([]string, len(authorized))
			for i, addr := range authorized {
				status.Authorized[i] = addressHex(addr)
			}
			return cfg.printer(cmd).PrintLedgerStatus(status)
		},
	})
	return cmd
}
