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
	"context"
	"time"

	"github.com/389ds/replcore/internal/csn"
	"github.com/389ds/replcore/internal/util/stopper"
	log "github.com/sirupsen/logrus"
)

// TombstoneReaper deletes entries whose data is a tombstone (a record
// of the deletion itself, kept around so peers that have not yet seen
// the delete can still causally order it) once they are older than
// the purge CSN: the largest max_csn in the RUV minus the replica's
// purge delay (see PurgeCSN). It is a port of
// eq_cb_reap_tombstones / _replica_get_purge_csn_nolock.
type TombstoneReaper struct {
	r      *Replica
	delete func(ctx context.Context, olderThan csn.CSN) (int, error)
}

// NewTombstoneReaper returns a reaper that calls delete for every
// sweep, passing the computed purge CSN as the age cutoff.
func NewTombstoneReaper(r *Replica, delete func(ctx context.Context, olderThan csn.CSN) (int, error)) *TombstoneReaper {
	return &TombstoneReaper{r: r, delete: delete}
}

// PurgeCSN computes the age cutoff for tombstone reaping: the largest
// max_csn across all RUV elements, minus PurgeDelay, matching
// _replica_get_purge_csn_nolock (which sorts every element's max_csn
// ascending and takes the last entry before subtracting purge_delay).
// It returns false if PurgeDelay is zero (reaping disabled), if the
// RUV has no elements, or if any element has no max_csn yet.
func (r *Replica) PurgeCSN() (csn.CSN, bool) {
	if r.PurgeDelay <= 0 {
		return csn.CSN{}, false
	}

	elements := r.RUV.Elements()
	var newest csn.CSN
	found := false
	for _, e := range elements {
		if e.MaxCSN.IsZero() {
			// An element with no applied changes yet means we cannot
			// safely compute a purge bound: nothing is reapable until
			// every replica has reported at least one max_csn.
			return csn.CSN{}, false
		}
		if !found || csn.Less(newest, e.MaxCSN) {
			newest = e.MaxCSN
			found = true
		}
	}
	if !found {
		return csn.CSN{}, false
	}

	cutoff := newest
	cutoff.Timestamp -= uint32(r.PurgeDelay / time.Second)
	return cutoff, true
}

// Run executes sweeps on ReapInterval until ctx is stopped, the way
// eq_cb_reap_tombstones is scheduled off the server's event queue.
func (tr *TombstoneReaper) Run(ctx *stopper.Context) {
	interval := tr.r.ReapInterval
	if interval <= 0 {
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			tr.sweep(ctx)
		case <-ctx.Stopping():
			return
		}
	}
}

func (tr *TombstoneReaper) sweep(ctx context.Context) {
	cutoff, ok := tr.r.PurgeCSN()
	if !ok {
		return
	}

	n, err := tr.delete(ctx, cutoff)
	if err != nil {
		log.WithFields(log.Fields{"root": tr.r.Root, "err": err}).Error("replica: tombstone reap sweep failed")
		reapSweepErrors.WithLabelValues(tr.r.Root).Inc()
		return
	}
	if n > 0 {
		log.WithFields(log.Fields{"root": tr.r.Root, "count": n, "cutoff": cutoff.String()}).
			Debug("replica: reaped tombstones")
		tombstonesPurged.WithLabelValues(tr.r.Root).Add(float64(n))
	}
}
