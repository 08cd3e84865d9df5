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
	"fmt"
	"io"
	"runtime"

	"github.com/spf13/cobra"
)

// Version information (injected at build time via -ldflags)
var (
	Version   = "dev"     // Set via -ldflags "-X .../internal/cli.Version=x.y.z"
	GitCommit = "unknown" // Set via -ldflags "-X .../internal/cli.GitCommit=abc123"
	BuildDate = "unknown" // Set via -ldflags "-X .../internal/cli.BuildDate=2025-01-15"
)

// VersionInfo is the build metadata printed by the version command.
type VersionInfo struct {
	Version   string `json:"version" yaml:"version"`
	Commit    string `json:"commit" yaml:"commit"`
	BuildDate string `json:"build_date" yaml:"build_date"`
	GoVersion string `json:"go_version" yaml:"go_version"`
	OS        string `json:"os" yaml:"os"`
	Arch      string `json:"arch" yaml:"arch"`
}

func newVersionCmd(cfg *Config) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Long:  `Print the version information for the bekd CLI`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			info := VersionInfo{
				Version:   Version,
				Commit:    GitCommit,
				BuildDate: BuildDate,
				GoVersion: runtime.Version(),
				OS:        runtime.GOOS,
				Arch:      runtime.GOARCH,
			}
			return cfg.printer(cmd).print(info, func(w io.Writer) {
				fmt.Fprintf(w, "bekd version %s\n", info.Version)
				fmt.Fprintf(w, "Git commit: %s\n", info.Commit)
				fmt.Fprintf(w, "Build date: %s\n", info.BuildDate)
				fmt.Fprintf(w, "Go version: %s\n", info.GoVersion)
				fmt.Fprintf(w, "OS/Arch: %s/%s\n", info.OS, info.Arch)
			})
		},
	}
}
