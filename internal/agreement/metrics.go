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

package agreement

import (
	"github.com/389ds/replcore/internal/util/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	agreementStateTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "agreement_state_transitions_total",
		Help: "the number of times an agreement's session state machine changed state",
	}, metrics.AgreementLabels)
	agreementChangesSent = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "agreement_changes_sent_total",
		Help: "the number of non-dummy changelog operations streamed to a peer",
	}, metrics.AgreementLabels)
	agreementSessionDurations = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "agreement_sending_updates_duration_seconds",
		Help:    "the length of time a SendingUpdates pass took from acquire to release",
		Buckets: metrics.LatencyBuckets,
	}, metrics.AgreementLabels)
	agreementBackoffsEntered = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "agreement_backoffs_entered_total",
		Help: "the number of times a session entered BackoffStart",
	}, metrics.AgreementLabels)
)
