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

package ruv

import (
	"github.com/389ds/replcore/internal/util/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ruvCSNsInProgress = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "ruv_csns_in_progress",
		Help: "the number of CSNs currently marked in-progress across all origins in a RUV",
	}, metrics.ReplicaLabels)
	ruvRollupErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ruv_rollup_errors_total",
		Help: "the number of times UpdateRUV was called for a CSN this RUV never recorded as in-progress",
	}, metrics.ReplicaLabels)
	ruvReplicaCount = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "ruv_replica_count",
		Help: "the number of origin elements present in a RUV",
	}, metrics.ReplicaLabels)
)
