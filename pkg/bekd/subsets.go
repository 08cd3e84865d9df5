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

package bekd

import "math/big"

// forEachSubset calls fn with every size-k subset of {1..n} in
// lexicographic order until fn returns false. The slice passed to fn is
// reused between calls.
func forEachSubset(n, k int, fn func(subset []int) bool) {
	if k < 1 || k > n {
		return
	}
	subset := make([]int, k)
	for i := range subset {
		subset[i] = i + 1
	}
	for {
		if !fn(subset) {
			return
		}
		// rightmost position that can still advance
		i := k - 1
		for i >= 0 && subset[i] == n-k+i+1 {
			i--
		}
		if i < 0 {
			return
		}
		subset[i]++
		for j := i + 1; j < k; j++ {
			subset[j] = subset[j-1] + 1
		}
	}
}

// SubsetCount is C(n, t+1), the number of subsets an exhaustive
// authentication may examine.
func SubsetCount(p Params) *big.Int {
	return new(big.Int).Binomial(int64(p.Features), int64(p.Quorum()))
}
