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

package group

import (
	"golang.org/x/crypto/sha3"
)

const (
	// DomainTagH0 separates the feature hash from every other Keccak-256
	// use in the protocol.
	DomainTagH0 = "H0"

	// HashSpec names the hash construction published in the parameter
	// registry.
	HashSpec = "Keccak256-H0-H1"

	// AddressSize is the length of an owner address derived from a point.
	AddressSize = 20
)

// Keccak256 returns the legacy (pre-SHA3 padding) Keccak-256 digest of the
// concatenated inputs.
func Keccak256(data ...[]byte) [32]byte {
	h := sha3.NewLegacyKeccak256()
	for _, d := range data {
		h.Write(d)
	}
	var out [32]byte
	h.Sum(out[:0])
	return out
}

// HashToScalar is the H0 oracle: Keccak256("H0" || feature || salt)
// interpreted as a big-endian integer and reduced modulo N.
//
// Identical (feature, salt) pairs always map to the same scalar. Salt reuse
// across enrollments of the same feature is not detected here.
func HashToScalar(feature, salt []byte) Scalar {
	digest := Keccak256([]byte(DomainTagH0), feature, salt)
	var s Scalar
	s.v.SetByteSlice(digest[:])
	return s
}

// Address derives the 20-byte owner address of p: the trailing 20 bytes of
// Keccak256(x || y).
func Address(p Point) [AddressSize]byte {
	enc := p.Bytes()
	digest := Keccak256(enc[:])
	var addr [AddressSize]byte
	copy(addr[:], digest[32-AddressSize:])
	return addr
}
