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
	"io"
	"sort"
	"strings"

	"github.com/sAeNrDER/Decentrlised-BEKD-for--Biometric-Authentication/pkg/authority"
	"github.com/sAeNrDER/Decentrlised-BEKD-for--Biometric-Authentication/pkg/bekd"
	"gopkg.in/yaml.v3"
)

// OutputFormat defines the output format type
type OutputFormat string

const (
	OutputFormatText OutputFormat = "text"
	OutputFormatJSON OutputFormat = "json"
	OutputFormatYAML OutputFormat = "yaml"
)

// Printer handles formatted output
type Printer struct {
	format OutputFormat
	writer io.Writer
}

// NewPrinter creates a new Printer
func NewPrinter(format string, writer io.Writer) *Printer {
	return &Printer{
		format: OutputFormat(strings.ToLower(format)),
		writer: writer,
	}
}

// KeygenResult describes a newly generated authority key.
type KeygenResult struct {
	KeyFile   string `json:"key_file" yaml:"key_file"`
	PublicKey string `json:"public_key" yaml:"public_key"`
}

// ParamsResult is the published deployment record with its storage footprint.
type ParamsResult struct {
	Deployment authority.DeploymentParams `json:"deployment" yaml:"deployment"`
	Size       bekd.SizeReport            `json:"size" yaml:"size"`
}

// EnrollmentResult is the public part of an enrollment. The secret never
// leaves the enroller.
type EnrollmentResult struct {
	TokenID    string        `json:"token_id" yaml:"token_id"`
	Identity   string        `json:"identity" yaml:"identity"`
	Commitment string        `json:"commitment" yaml:"commitment"`
	Params     string        `json:"params" yaml:"params"`
	TokenBytes int           `json:"token_bytes" yaml:"token_bytes"`
	TokenFile  string        `json:"token_file,omitempty" yaml:"token_file,omitempty"`
	Token      string        `json:"token,omitempty" yaml:"token,omitempty"`
	Authorized bool          `json:"authorized" yaml:"authorized"`
	Ops        bekd.OpCounts `json:"ops" yaml:"ops"`
	DurationMS float64       `json:"duration_ms" yaml:"duration_ms"`
}

// NewEnrollmentResult renders an enrollment for output.
func NewEnrollmentResult(e *bekd.Enrollment, params bekd.Params) EnrollmentResult {
	return EnrollmentResult{
		TokenID:    e.Token.ID.String(),
		Identity:   addressHex(e.Address),
		Commitment: pointHex(e.Commitment),
		Params:     params.String(),
		TokenBytes: e.Token.Size(),
		Ops:        e.Ops,
		DurationMS: float64(e.Duration.Microseconds()) / 1000,
	}
}

// AuthenticationResult renders one authentication attempt.
type AuthenticationResult struct {
	Accepted     bool          `json:"accepted" yaml:"accepted"`
	TokenID      string        `json:"token_id" yaml:"token_id"`
	Identity     string        `json:"identity" yaml:"identity"`
	Subset       []int         `json:"subset,omitempty" yaml:"subset,omitempty"`
	SubsetsTried int           `json:"subsets_tried" yaml:"subsets_tried"`
	Mismatched   []int         `json:"mismatched,omitempty" yaml:"mismatched,omitempty"`
	Consumed     bool          `json:"consumed" yaml:"consumed"`
	Ops          bekd.OpCounts `json:"ops" yaml:"ops"`
	DurationMS   float64       `json:"duration_ms" yaml:"duration_ms"`
}

// NewAuthenticationResult renders an authentication for output.
func NewAuthenticationResult(a *bekd.Authentication) AuthenticationResult {
	return AuthenticationResult{
		Accepted:     a.Accepted,
		TokenID:      a.TokenID.String(),
		Identity:     a.IdentityHex(),
		Subset:       a.Subset,
		SubsetsTried: a.SubsetsTried,
		Mismatched:   a.Mismatched,
		Consumed:     a.Consumed,
		Ops:          a.Ops,
		DurationMS:   float64(a.Duration.Microseconds()) / 1000,
	}
}

// TokenInfo is the decoded public content of a token file.
type TokenInfo struct {
	TokenID   string   `json:"token_id" yaml:"token_id"`
	Features  int      `json:"n" yaml:"n"`
	Bytes     int      `json:"bytes" yaml:"bytes"`
	Signer    string   `json:"signer" yaml:"signer"`
	R0        string   `json:"r0" yaml:"r0"`
	R1        string   `json:"r1" yaml:"r1"`
	Salts     []string `json:"salts" yaml:"salts"`
	Spent     *bool    `json:"spent,omitempty" yaml:"spent,omitempty"`
	Published *bool    `json:"signer_published,omitempty" yaml:"signer_published,omitempty"`
}

// LedgerStatus summarizes the registry, spent set and wallet.
type LedgerStatus struct {
	Published  bool          `json:"published" yaml:"published"`
	Params     *ParamsResult `json:"params,omitempty" yaml:"params,omitempty"`
	Spent      []string      `json:"spent" yaml:"spent"`
	Authorized []string      `json:"authorized" yaml:"authorized"`
}

// PrintKeygen prints a newly generated key
func (p *Printer) PrintKeygen(r KeygenResult) error {
	return p.print(r, func(w io.Writer) {
		fmt.Fprintf(w, "Authority key written to %s\n", r.KeyFile)
		fmt.Fprintf(w, "Public key: %s\n", r.PublicKey)
	})
}

// PrintParams prints the deployment record and size report
func (p *Printer) PrintParams(r ParamsResult) error {
	return p.print(r, func(w io.Writer) {
		reg := r.Deployment.Registry
		fmt.Fprintln(w, "ParamRegistry:")
		fmt.Fprintf(w, "  pk_x:      %s\n", reg.PublicKeyX)
		fmt.Fprintf(w, "  pk_y:      %s\n", reg.PublicKeyY)
		fmt.Fprintf(w, "  t:         %d\n", reg.Threshold)
		fmt.Fprintf(w, "  n:         %d\n", reg.Features)
		fmt.Fprintf(w, "  hash_spec: %s\n", reg.HashSpec)
		if r.Deployment.Wallet.Owner != "" {
			fmt.Fprintln(w, "BiometricWallet:")
			fmt.Fprintf(w, "  owner:     %s\n", r.Deployment.Wallet.Owner)
		}
		printSize(w, r.Size)
	})
}

func printSize(w io.Writer, s bekd.SizeReport) {
	fmt.Fprintf(w, "Storage (n=%d):\n", s.Features)
	fmt.Fprintf(w, "  salts:          %d bytes\n", s.SaltBytes)
	fmt.Fprintf(w, "  R0:             %d bytes\n", s.R0Bytes)
	fmt.Fprintf(w, "  R1:             %d bytes\n", s.R1Bytes)
	fmt.Fprintf(w, "  signature:      %d bytes\n", s.SignatureSize)
	fmt.Fprintf(w, "  masked shares:  %d bytes\n", s.MaskedBytes)
	fmt.Fprintf(w, "  off-chain token: %d bytes\n", s.OffChainTotal)
	fmt.Fprintf(w, "  on-chain state:  %d bytes\n", s.OnChainTotal)
}

// PrintEnrollment prints an enrollment
func (p *Printer) PrintEnrollment(r EnrollmentResult) error {
	return p.print(r, func(w io.Writer) {
		fmt.Fprintf(w, "Enrolled %s\n", r.Params)
		fmt.Fprintf(w, "  Token ID:   %s\n", r.TokenID)
		fmt.Fprintf(w, "  Identity:   %s\n", r.Identity)
		fmt.Fprintf(w, "  Commitment: %s\n", r.Commitment)
		fmt.Fprintf(w, "  Token size: %d bytes\n", r.TokenBytes)
		if r.TokenFile != "" {
			fmt.Fprintf(w, "  Token file: %s\n", r.TokenFile)
		}
		if r.Token != "" {
			fmt.Fprintf(w, "  Token:      %s\n", r.Token)
		}
		fmt.Fprintf(w, "  Authorized: %t\n", r.Authorized)
		printOps(w, r.Ops, r.DurationMS)
	})
}

// PrintAuthentication prints an authentication attempt
func (p *Printer) PrintAuthentication(r AuthenticationResult) error {
	return p.print(r, func(w io.Writer) {
		if r.Accepted {
			fmt.Fprintln(w, "ACCEPTED")
		} else {
			fmt.Fprintln(w, "REJECTED")
		}
		fmt.Fprintf(w, "  Token ID:      %s\n", r.TokenID)
		fmt.Fprintf(w, "  Identity:      %s\n", r.Identity)
		if len(r.Subset) > 0 {
			fmt.Fprintf(w, "  Subset:        %v\n", r.Subset)
		}
		fmt.Fprintf(w, "  Subsets tried: %d\n", r.SubsetsTried)
		if len(r.Mismatched) > 0 {
			fmt.Fprintf(w, "  Mismatched:    %v\n", r.Mismatched)
		}
		fmt.Fprintf(w, "  Consumed:      %t\n", r.Consumed)
		printOps(w, r.Ops, r.DurationMS)
	})
}

func printOps(w io.Writer, ops bekd.OpCounts, ms float64) {
	fmt.Fprintf(w, "  Ops:        scalar_mul=%d point_add=%d hash=%d inversion=%d msm=%d (total %d)\n",
		ops.ScalarMuls, ops.PointAdds, ops.Hashes, ops.Inversions, ops.MSMs, ops.Total())
	fmt.Fprintf(w, "  Duration:   %.3f ms\n", ms)
}

// PrintEscrowShares prints custodian shares
func (p *Printer) PrintEscrowShares(shares []authority.EscrowShare) error {
	return p.print(map[string]interface{}{"shares": shares}, func(w io.Writer) {
		if len(shares) > 0 {
			fmt.Fprintf(w, "%d of %d shares required to recover the key:\n", shares[0].Threshold, shares[0].Total)
		}
		for _, s := range shares {
			fmt.Fprintf(w, "  %d: %s\n", s.Index, s.Value)
		}
	})
}

// PrintToken prints decoded token content
func (p *Printer) PrintToken(info TokenInfo) error {
	return p.print(info, func(w io.Writer) {
		fmt.Fprintf(w, "Token %s\n", info.TokenID)
		fmt.Fprintf(w, "  n:      %d\n", info.Features)
		fmt.Fprintf(w, "  bytes:  %d\n", info.Bytes)
		fmt.Fprintf(w, "  signer: %s\n", info.Signer)
		if info.Published != nil {
			fmt.Fprintf(w, "  signer matches registry: %t\n", *info.Published)
		}
		if info.Spent != nil {
			fmt.Fprintf(w, "  spent:  %t\n", *info.Spent)
		}
		fmt.Fprintf(w, "  R0:     %s\n", info.R0)
		fmt.Fprintf(w, "  R1:     %s\n", info.R1)
		for i, s := range info.Salts {
			fmt.Fprintf(w, "  salt %d: %s\n", i+1, s)
		}
	})
}

// PrintLedgerStatus prints the ledger contents
func (p *Printer) PrintLedgerStatus(s LedgerStatus) error {
	return p.print(s, func(w io.Writer) {
		if !s.Published {
			fmt.Fprintln(w, "Deployment parameters not published")
		} else if s.Params != nil {
			reg := s.Params.Deployment.Registry
			fmt.Fprintf(w, "Published: t=%d n=%d hash_spec=%s\n", reg.Threshold, reg.Features, reg.HashSpec)
			fmt.Fprintf(w, "  pk_x: %s\n  pk_y: %s\n", reg.PublicKeyX, reg.PublicKeyY)
		}
		fmt.Fprintf(w, "Spent tokens (%d):\n", len(s.Spent))
		for _, id := range s.Spent {
			fmt.Fprintf(w, "  - %s\n", id)
		}
		fmt.Fprintf(w, "Authorized identities (%d):\n", len(s.Authorized))
		for _, a := range s.Authorized {
			fmt.Fprintf(w, "  - %s\n", a)
		}
	})
}

// PrintMetrics prints a counter snapshot in sorted order
func (p *Printer) PrintMetrics(snapshot map[string]float64) error {
	return p.print(map[string]interface{}{"metrics": snapshot}, func(w io.Writer) {
		keys := make([]string, 0, len(snapshot))
		for k := range snapshot {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		fmt.Fprintln(w, "Metrics:")
		for _, k := range keys {
			fmt.Fprintf(w, "  %s %g\n", k, snapshot[k])
		}
	})
}

// PrintSuccess prints a success message
func (p *Printer) PrintSuccess(message string) error {
	return p.print(map[string]interface{}{
		"status":  "success",
		"message": message,
	}, func(w io.Writer) {
		fmt.Fprintln(w, message)
	})
}

// PrintError prints an error message
func (p *Printer) PrintError(err error) error {
	return p.print(map[string]interface{}{
		"status": "error",
		"error":  err.Error(),
	}, func(w io.Writer) {
		fmt.Fprintf(w, "Error: %v\n", err)
	})
}

// print renders data as JSON or YAML, or calls text for the text format.
func (p *Printer) print(data interface{}, text func(io.Writer)) error {
	switch p.format {
	case OutputFormatJSON:
		return p.printJSON(data)
	case OutputFormatYAML:
		return p.printYAML(data)
	case OutputFormatText, "":
		text(p.writer)
		return nil
	default:
		return fmt.Errorf("unknown output format: %s", p.format)
	}
}

// printJSON prints data as JSON
func (p *Printer) printJSON(data interface{}) error {
	encoder := json.NewEncoder(p.writer)
	encoder.SetIndent("", "  ")
	return encoder.Encode(data)
}

// printYAML prints data as YAML
func (p *Printer) printYAML(data interface{}) error {
	encoder := yaml.NewEncoder(p.writer)
	encoder.SetIndent(2)
	if err := encoder.Encode(data); err != nil {
		return err
	}
	return encoder.Close()
}
