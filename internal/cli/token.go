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

	"github.com/sAeNrDER/Decentrlised-BEKD-for--Biometric-Authentication/pkg/authority"
	"github.com/spf13/cobra"
)

func newTokenCmd(cfg *Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Inspect enrollment tokens",
	}

	var tokenFile, tokenHex string
	inspect := &cobra.Command{
		Use:   "inspect",
		Short: "Decode a token and check it against the ledger",
		Long: `Decode a token, recover its signer from the signature, and report
whether the signer matches the published authority key and whether the
token has been spent. No biometric features are needed.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			token, err := loadToken(tokenFile, tokenHex)
			if err != nil {
				return err
			}
			signer, err := authority.RecoverPublicKey(token.Digest(), token.Signature)
			if err != nil {
				return err
			}

			raw, err := token.MarshalBinary()
			if err != nil {
				return err
			}
			info := TokenInfo{
				TokenID:  token.ID.String(),
				Features: token.Features(),
				Bytes:    len(raw),
				Signer:   pointHex(signer),
				R0:       pointHex(token.R0),
				R1:       pointHex(token.R1),
				Salts:    make([]string, len(token.Salts)),
			}
			for i, s := range token.Salts {
				info.Salts[i] = hex.EncodeToString(s[:])
			}

			l, err := cfg.OpenLedger()
			if err != nil {
				return err
			}
			defer l.Close()

			spent, err := l.IsUsed(ctx, token.ID)
			if err != nil {
				return err
			}
			info.Spent = &spent

			pk, err := l.PublicKey(ctx)
			switch {
			case err == nil:
				match := pk.Equal(signer)
				info.Published = &match
			case !isNotPublished(err):
				return err
			}
			return cfg.printer(cmd).PrintToken(info)
		},
	}
	inspect.Flags().StringVar(&tokenFile, "token", "", "binary token file written by enroll")
	inspect.Flags().StringVar(&tokenHex, "token-hex", "", "hex-encoded token")

	cmd.AddCommand(inspect)
	return cmd
}
