// Copyright (c) 2025 Jeremy Hahn
// Copyright (c) 2025 Automate The Things, LLC
//
// This file is part of go-keychain.

package shamir

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidThreshold indicates t < 0, t >= n, n < 1 or n above MaxShares.
	ErrInvalidThreshold = errors.New("shamir: invalid threshold parameters")

	// ErrInsufficientShares indicates fewer than t+1 shares were supplied.
	ErrInsufficientShares = errors.New("shamir: insufficient shares for reconstruction")

	// ErrDegenerateShares indicates two shares carry the same index.
	ErrDegenerateShares = errors.New("shamir: degenerate shares")

	// ErrInvalidShare indicates a share index outside [1, MaxShares].
	ErrInvalidShare = errors.New("shamir: invalid share")
)

// InsufficientSharesError wraps ErrInsufficientShares with the counts involved.
type InsufficientSharesError struct {
	Have int
	Need int
}

func (e *InsufficientSharesError) Error() string {
	return fmt.Sprintf("shamir: insufficient shares: have %d, need %d", e.Have, e.Need)
}

func (e *InsufficientSharesError) Unwrap() error {
	return ErrInsufficientShares
}

// DegenerateSharesError wraps ErrDegenerateShares with the repeated index.
type DegenerateSharesError struct {
	Index int
}

func (e *DegenerateSharesError) Error() string {
	return fmt.Sprintf("shamir: duplicate share index %d", e.Index)
}

func (e *DegenerateSharesError) Unwrap() error {
	return ErrDegenerateShares
}
