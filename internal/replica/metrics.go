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

package replica

import (
	"github.com/389ds/replcore/internal/util/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	exclusiveAcquireContention = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "replica_exclusive_acquire_contention_total",
		Help: "the number of ExclusiveAcquire calls that found the replica already locked by another session",
	}, metrics.ReplicaLabels)
	tombstonesPurged = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "replica_tombstones_purged_total",
		Help: "the number of tombstones/state entries removed by a reaper sweep",
	}, metrics.ReplicaLabels)
	reapSweepErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "replica_reap_sweep_errors_total",
		Help: "the number of reaper sweeps that returned an error from the delete callback",
	}, metrics.ReplicaLabels)
)
