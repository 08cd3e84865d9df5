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

package storage

import (
	"strings"
)

// Key prefixes for the ledger records.
const (
	RegistryPrefix   = "registry/"
	SpentPrefix      = "spent/"
	AuthorizedPrefix = "wallet/authorized/"
)

// ParamsKey is where the deployment parameters are recorded.
const ParamsKey = RegistryPrefix + "params"

// SpentKey returns the storage path for a consumed token ID (hex encoded).
// The path follows the convention: spent/{id}
func SpentKey(idHex string) string {
	return SpentPrefix + strings.ToLower(idHex)
}

// AuthorizedKey returns the storage path for an authorized owner address
// (hex encoded). The path follows the convention: wallet/authorized/{addr}
func AuthorizedKey(addrHex string) string {
	return AuthorizedPrefix + strings.ToLower(addrHex)
}

// ListSpent returns the hex IDs of every consumed token.
func ListSpent(backend Backend) ([]string, error) {
	return listIDs(backend, SpentPrefix)
}

// ListAuthorized returns the hex addresses on the authorization list.
func ListAuthorized(backend Backend) ([]string, error) {
	return listIDs(backend, AuthorizedPrefix)
}

func listIDs(backend Backend, prefix string) ([]string, error) {
	keys, err := backend.List(prefix)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(keys))
	for _, k := range keys {
		if id := strings.TrimPrefix(k, prefix); id != "" {
			ids = append(ids, id)
		}
	}
	return ids, nil
}
