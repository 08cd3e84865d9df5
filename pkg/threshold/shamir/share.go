// Copyright (c) 2025 Jeremy Hahn
// Copyright (c) 2025 Automate The Things, LLC
//
// This file is part of go-keychain.

package shamir

import (
	"fmt"

	"github.com/sAeNrDER/Decentrlised-BEKD-for--Biometric-Authentication/pkg/group"
)

// Share is one evaluation of a sharing polynomial: (Index, f(Index) mod N).
type Share struct {
	// Index is the evaluation point, 1 to n
	Index int

	// Value is f(Index)
	Value group.Scalar
}

// X returns the share index as a scalar.
func (s Share) X() group.Scalar {
	return group.ScalarFromUint64(uint64(s.Index))
}

// String redacts the share value.
func (s Share) String() string {
	return fmt.Sprintf("Share{Index: %d, Value: <redacted>}", s.Index)
}

// Validate checks the share index range.
func (s Share) Validate() error {
	if s.Index < 1 || s.Index > MaxShares {
		return fmt.Errorf("%w: index %d outside [1, %d]", ErrInvalidShare, s.Index, MaxShares)
	}
	return nil
}

// Indices returns the indices of shares in order.
func Indices(shares []Share) []int {
	out := make([]int, len(shares))
	for i, s := range shares {
		out[i] = s.Index
	}
	return out
}
