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

// Package replica owns the per-suffix replication state: the RUV, the
// CSN generator that stamps local writes, exclusive-access
// arbitration between concurrent sessions, and tombstone reaping. It
// is a port of repl5_replica.c's Replica object.
package replica

import (
	"sync"
	"time"

	"github.com/389ds/replcore/internal/csn"
	"github.com/389ds/replcore/internal/pending"
	"github.com/389ds/replcore/internal/ruv"
	log "github.com/sirupsen/logrus"
)

// Flags is a bitmask mirroring repl_state_flags.
type Flags uint32

const (
	// InUse means some session (incremental, total, or a
	// disable/config change) currently holds exclusive access.
	InUse Flags = 1 << iota
	// IncrementalInProgress means the current holder is an
	// incremental update session.
	IncrementalInProgress
	// TotalInProgress means the current holder is a total update
	// (full re-initialization) session.
	TotalInProgress
	// AgreementsDisabled means replication agreements for this
	// replica must not start new sessions.
	AgreementsDisabled
)

// A Replica owns one replicated suffix's causal-ordering state.
// Access to mutable fields is serialized by mu; RUV and CSNGen have
// their own internal locks for fine-grained concurrent access and are
// safe to read without holding mu.
type Replica struct {
	RID  uint16
	Root string

	RUV    *ruv.Ruv
	CSNGen *csn.Generator

	PurgeDelay   time.Duration
	ReapInterval time.Duration

	mu          sync.Mutex
	flags       Flags
	lockingPurl string
	referrals   []string
	minCSNPL    *pending.List
	csnAssigned bool
}

// New creates a Replica for root, stamped with rid and generator gen,
// with an RUV whose local element is rid/localPurl.
func New(root string, rid uint16, localPurl string, replGen string, gen *csn.Generator) *Replica {
	r := &Replica{
		RID:    rid,
		Root:   root,
		RUV:    ruv.New(replGen, rid, localPurl),
		CSNGen: gen,
	}
	gen.AddCallback(r)
	return r
}

// Assign implements csn.Callback: every CSN minted by this replica's
// generator is tracked in min_csn_pl (while one is in flight — see
// ResetMinCSNPL) and folded into the RUV as in-progress.
func (r *Replica) Assign(c csn.CSN) {
	r.mu.Lock()
	pl := r.minCSNPL
	r.mu.Unlock()

	if pl != nil {
		if err := pl.Insert(c); err != nil {
			log.WithFields(log.Fields{"root": r.Root, "csn": c.String()}).
				Warn("replica: failed to track min csn, abandoning tracking for this generation")
			r.mu.Lock()
			r.minCSNPL = nil
			r.mu.Unlock()
		}
	}

	if err := r.RUV.AddCSNInProgress(c); err != nil {
		log.WithFields(log.Fields{"root": r.Root, "csn": c.String(), "err": err}).
			Debug("replica: csn already covered by ruv at assign time")
	}
}

// Abort implements csn.Callback: an operation that was assigned c but
// failed before committing removes it from both min_csn_pl and the
// RUV's in-progress tracking.
func (r *Replica) Abort(c csn.CSN) {
	r.mu.Lock()
	pl := r.minCSNPL
	r.mu.Unlock()

	if pl != nil {
		_ = pl.Remove(c)
	}
	_ = r.RUV.CancelCSNInProgress(c)
}

// ResetMinCSNPL starts tracking min_csn_pl afresh, as done when a
// replica transitions into a state where the smallest in-flight local
// CSN must be recomputed (e.g. after a total update).
func (r *Replica) ResetMinCSNPL() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.minCSNPL = pending.New()
}

// UpdateRUV commits updatedCSN against the RUV. If updatedCSN
// originated locally and min_csn_pl tracking is active, it also
// commits updatedCSN in min_csn_pl and, once the list's head has
// committed, rolls the list up and ends min_csn_pl tracking. The
// rolled-up minimum is not written into the RUV's local element.
func (r *Replica) UpdateRUV(updatedCSN csn.CSN, purl string) {
	isLocal := updatedCSN.RID == r.RID

	r.mu.Lock()
	pl := r.minCSNPL
	r.mu.Unlock()

	if isLocal && pl != nil {
		_ = pl.Commit(updatedCSN)
		if min, committed, ok := pl.GetMin(); ok && committed {
			_, _ = pl.RollUp()
			_ = min
			r.mu.Lock()
			r.minCSNPL = nil
			r.mu.Unlock()
		}
	}

	if err := r.RUV.UpdateRUV(updatedCSN, purl, isLocal); err != nil {
		log.WithFields(log.Fields{"root": r.Root, "csn": updatedCSN.String(), "err": err}).
			Error("replica: unable to update ruv")
	}
}

// ReloadRUV replaces the replica's RUV wholesale, as happens after a
// total update re-initializes a consumer from a fresh snapshot.
func (r *Replica) ReloadRUV(next *ruv.Ruv) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.RUV = next
}

// ExclusiveAcquire attempts to take exclusive access to the replica
// for an incremental or total update session. It returns whether
// access was granted; if not, currentPurl names the holder. Acquiring
// while already held by the same purl does not merge — the caller
// must Relinquish first.
func (r *Replica) ExclusiveAcquire(isIncremental bool, connID uint64, opID int, lockingPurl string) (granted bool, currentPurl string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.flags&InUse != 0 {
		log.WithFields(log.Fields{
			"root": r.Root, "conn": connID, "op": opID, "locking_purl": r.lockingPurl,
		}).Info("replica: in use")
		exclusiveAcquireContention.WithLabelValues(r.Root).Inc()
		return false, r.lockingPurl
	}

	log.WithFields(log.Fields{"root": r.Root, "conn": connID, "op": opID}).Info("replica: acquired")
	r.flags |= InUse
	if isIncremental {
		r.flags |= IncrementalInProgress
	} else if connID != 0 || opID != 0 {
		r.flags |= TotalInProgress
	}
	r.lockingPurl = lockingPurl
	return true, ""
}

// Relinquish releases exclusive access acquired by ExclusiveAcquire.
func (r *Replica) Relinquish(connID uint64, opID int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	wasIncremental := r.flags&IncrementalInProgress != 0
	if r.flags&InUse == 0 {
		log.WithFields(log.Fields{"root": r.Root, "conn": connID, "op": opID}).Warn("replica: not in use")
		return
	}

	log.WithFields(log.Fields{
		"root": r.Root, "conn": connID, "op": opID, "locking_purl": r.lockingPurl,
	}).Info("replica: released")

	r.lockingPurl = ""
	r.flags &^= InUse
	if wasIncremental {
		r.flags &^= IncrementalInProgress
	} else {
		r.flags &^= TotalInProgress
	}
}

// FlagsSnapshot returns the current state-flag bitmask.
func (r *Replica) FlagsSnapshot() Flags {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.flags
}

// SetAgreementsDisabled toggles the AgreementsDisabled flag.
func (r *Replica) SetAgreementsDisabled(disabled bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if disabled {
		r.flags |= AgreementsDisabled
	} else {
		r.flags &^= AgreementsDisabled
	}
}

// Referrals returns a snapshot of the configured LDAP referral URLs
// advertised while this replica is read-only.
func (r *Replica) Referrals() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.referrals))
	copy(out, r.referrals)
	return out
}

// SetReferrals replaces the configured referral set.
func (r *Replica) SetReferrals(referrals []string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.referrals = append([]string(nil), referrals...)
}
