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

package pending

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// A List is shared infrastructure with no notion of which replica owns
// it, so its metrics carry no labels; per-replica breakdowns belong to
// the ruv and replica packages that hold a List.
var (
	pendingAlreadySeenRejections = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pending_already_seen_rejections_total",
		Help: "the number of Insert calls rejected because the csn was not strictly greater than the tail",
	})
	pendingCommitMisses = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pending_commit_misses_total",
		Help: "the number of Commit calls for a csn this list never recorded as in-progress",
	})
	pendingRollUps = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pending_rollups_total",
		Help: "the number of times RollUp removed a non-empty committed prefix",
	})
)
