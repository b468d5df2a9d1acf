// Copyright 2023 The Cockroach Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
//
// SPDX-License-Identifier: Apache-2.0

// Package msort contains utility functions for sorting and
// de-duplicating batches of changelog operations.
package msort

import (
	"github.com/389ds/replcore/internal/changelog"
	"github.com/389ds/replcore/internal/csn"
)

// UniqueByTarget implements a "latest CSN wins" approach to removing
// operations with duplicate target entries from the input slice. If
// two operations share the same TargetUniqueID, the one with the
// larger CSN is kept. If there are operations with identical targets
// and CSNs, exactly one of the values will be chosen arbitrarily.
//
// The modified slice is returned. This is the shape a total-update
// sender needs when a changelog source hands it more than one
// operation against the same entry in a single batch: the source
// protects causal order, but a batch send should still ship the
// entry's final state only once.
//
// This function will panic if any of the operations' TargetUniqueID
// fields are entirely empty, since an unkeyed operation cannot be
// deduplicated.
func UniqueByTarget(x []changelog.Operation) []changelog.Operation {
	// For any given target, track the index in the slice that holds
	// the operation for it.
	seenIdx := make(map[string]int, len(x))

	// Iterate backwards, moving elements to the rear when their CSN is
	// greater than the value currently tracked for that target.
	dest := len(x)
	for src := len(x) - 1; src >= 0; src-- {
		if x[src].TargetUniqueID == "" {
			panic("empty operation target")
		}
		key := x[src].TargetUniqueID

		if curIdx, found := seenIdx[key]; found {
			if csn.Compare(x[src].CSN, x[curIdx].CSN) > 0 {
				x[curIdx] = x[src]
			}
		} else {
			dest--
			seenIdx[key] = dest
			x[dest] = x[src]
		}
	}

	return x[dest:]
}
