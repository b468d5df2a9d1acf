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

// Package metrics holds shared Prometheus bucket and label
// definitions so that per-package metrics files stay consistent.
package metrics

// LatencyBuckets is used for histograms that measure the duration of
// an operation against a remote replica or the staging store.
var LatencyBuckets = []float64{
	.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60, 300,
}

// AgreementLabels tags a metric with the replication agreement it
// pertains to.
var AgreementLabels = []string{"agreement"}

// ReplicaLabels tags a metric with the owning replica: package replica
// uses its root suffix as the value, package ruv its replica
// generation.
var ReplicaLabels = []string{"replica"}
