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
	"github.com/sAeNrDER/Decentrlised-BEKD-for--Biometric-Authentication/pkg/authority"
	"github.com/spf13/cobra"
)

func newKeygenCmd(cfg *Config) *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "keygen",
		Short: "Generate the enrollment authority key",
		Long: `Generate a secp256k1 authority key and write it, hex encoded, to the
key file with owner-only permissions. The authority signs every token at
enrollment; its public key is what "params publish" records.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			deployment, err := cfg.Deployment()
			if err != nil {
				return err
			}
			rng, err := deployment.NewResolver()
			if err != nil {
				return err
			}
			defer rng.Close()

			a, err := authority.GenerateKey(rng)
			if err != nil {
				return err
			}
			defer a.Zeroize()

			path, err := cfg.SaveAuthority(a, force)
			if err != nil {
				return err
			}
			cfg.printVerbose(cmd, "rng mode %s", rng.Mode())
			return cfg.printer(cmd).PrintKeygen(KeygenResult{
				KeyFile:   path,
				PublicKey: pointHex(a.PublicKey()),
			})
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "replace an existing key file")
	return cmd
}
