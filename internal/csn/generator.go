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

package csn

import (
	"strconv"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// ErrClockSkewExceeded is returned by AdjustTime when the observed CSN
// would require the local clock to jump further than the configured
// threshold allows. It is fatal for the session that triggered it.
var ErrClockSkewExceeded = errors.New("csn: clock skew exceeded")

var (
	clockSkewRejections = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "csn_generator_clock_skew_rejections_total",
		Help: "the number of AdjustTime calls rejected for exceeding the skew threshold",
	}, []string{"replica"})
	virtualSeconds = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "csn_generator_virtual_timestamp_seconds",
		Help: "the generator's current virtual wall-clock second",
	}, []string{"replica"})
)

// A Callback is notified whenever the Generator assigns or aborts a
// CSN. Implementations must not call back into the Generator; New and
// Abort invoke callbacks with their own lock released, so a
// re-entrant call would simply contend the lock rather than deadlock,
// but doing real work inline still runs on the generator's critical
// path.
type Callback interface {
	Assign(c CSN)
	Abort(c CSN)
}

// A Generator issues CSNs that are strictly greater than every CSN it
// has previously issued or been told about via AdjustTime, for a
// single replica id.
type Generator struct {
	rid          uint16
	replicaLabel string
	maxSkew      time.Duration
	now          func() time.Time

	mu struct {
		sync.Mutex
		last      CSN
		callbacks []Callback
	}
}

// NewGenerator returns a Generator for the given replica id. maxSkew
// bounds how far AdjustTime may move the internal clock forward in a
// single call; a zero value means no limit.
func NewGenerator(rid uint16, maxSkew time.Duration) *Generator {
	return &Generator{
		rid:          rid,
		replicaLabel: strconv.FormatUint(uint64(rid), 16),
		maxSkew:      maxSkew,
		now:          time.Now,
	}
}

// AddCallback registers a Callback to be invoked on every subsequent
// New/Abort.
func (g *Generator) AddCallback(cb Callback) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.mu.callbacks = append(g.mu.callbacks, cb)
}

// New returns the next CSN for this generator's replica. The wall
// clock is clamped to max(now, last.timestamp); if the result equals
// the last-issued timestamp, seq is incremented, and an overflow of
// seq advances the virtual timestamp by one second, matching the
// source's handling of bursts faster than one second apart.
func (g *Generator) New() CSN {
	g.mu.Lock()
	now := uint32(g.now().Unix())
	next := g.mu.last
	if now > next.Timestamp {
		next.Timestamp = now
		next.Seq = 0
	} else {
		next.Seq++
		if next.Seq == 0 {
			// seq wrapped: steal a virtual second.
			next.Timestamp++
		}
	}
	next.RID = g.rid
	next.Subseq = 0
	g.mu.last = next
	callbacks := append([]Callback(nil), g.mu.callbacks...)
	g.mu.Unlock()

	virtualSeconds.WithLabelValues(g.replicaLabel).Set(float64(next.Timestamp))
	for _, cb := range callbacks {
		cb.Assign(next)
	}
	return next
}

// Abort notifies callbacks that a CSN issued by New will never commit
// (the operation that requested it failed before reaching the
// changelog). It does not rewind the generator's clock: CSNs are
// never reused.
func (g *Generator) Abort(c CSN) {
	g.mu.Lock()
	callbacks := append([]Callback(nil), g.mu.callbacks...)
	g.mu.Unlock()

	for _, cb := range callbacks {
		cb.Abort(c)
	}
}

// AdjustTime raises the generator's internal clock to
// observed.Timestamp + 1 if the observation is ahead of the local
// wall clock. It fails with ErrClockSkewExceeded if doing so would
// require a jump greater than maxSkew.
func (g *Generator) AdjustTime(observed CSN) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := uint32(g.now().Unix())
	if observed.Timestamp <= now && observed.Timestamp <= g.mu.last.Timestamp {
		return nil
	}

	target := observed.Timestamp + 1
	if g.maxSkew > 0 {
		skew := time.Duration(int64(target)-int64(now)) * time.Second
		if skew > g.maxSkew {
			clockSkewRejections.WithLabelValues(g.replicaLabel).Inc()
			return errors.Wrapf(ErrClockSkewExceeded, "observed %s is %s ahead of local clock", observed, skew)
		}
	}

	if target > g.mu.last.Timestamp {
		g.mu.last.Timestamp = target
		g.mu.last.Seq = 0
		virtualSeconds.WithLabelValues(g.replicaLabel).Set(float64(target))
	}
	return nil
}

// State is the generator's durable state: the last timestamp and seq
// issued, serialized for restart.
type State struct {
	Timestamp uint32
	Seq       uint16
}

// GetState returns the generator's committed clock for durable
// restart.
func (g *Generator) GetState() State {
	g.mu.Lock()
	defer g.mu.Unlock()
	return State{Timestamp: g.mu.last.Timestamp, Seq: g.mu.last.Seq}
}

// SetState restores a previously saved clock. It is the caller's
// responsibility to ensure this is only done at startup, before any
// New call.
func (g *Generator) SetState(s State) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.mu.last.Timestamp = s.Timestamp
	g.mu.last.Seq = s.Seq
}
