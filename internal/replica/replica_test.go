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
	"testing"
	"time"

	"github.com/389ds/replcore/internal/csn"
)

func newTestReplica(t *testing.T) *Replica {
	t.Helper()
	gen := csn.NewGenerator(1, 0)
	return New("dc=example,dc=com", 1, "ldap://local:389", "gen1", gen)
}

func TestAssignTracksCSNInRUVAndMinCSNPL(t *testing.T) {
	r := newTestReplica(t)
	r.ResetMinCSNPL()

	c := r.CSNGen.New()

	// Assign only registers c as in-progress; it should not yet be
	// covered until UpdateRUV commits it.
	if r.RUV.Covers(c) {
		t.Fatal("expected csn to be in-progress, not yet covered")
	}
	if _, ok := r.RUV.ElementForRID(1); !ok {
		t.Fatal("expected local element to exist")
	}
	if r.minCSNPL.Len() != 1 {
		t.Fatalf("min_csn_pl Len() = %d, want 1", r.minCSNPL.Len())
	}
}

func TestUpdateRUVCommitsAndAdvancesMaxCSN(t *testing.T) {
	r := newTestReplica(t)
	r.ResetMinCSNPL()

	c := r.CSNGen.New()
	r.UpdateRUV(c, "")

	e, ok := r.RUV.ElementForRID(1)
	if !ok {
		t.Fatal("expected local element")
	}
	if e.MaxCSN != c {
		t.Fatalf("MaxCSN = %s, want %s", e.MaxCSN, c)
	}
}

func TestExclusiveAcquireAndRelinquish(t *testing.T) {
	r := newTestReplica(t)

	granted, _ := r.ExclusiveAcquire(true, 1, 1, "ldap://peer:389")
	if !granted {
		t.Fatal("expected first acquire to succeed")
	}

	granted, holder := r.ExclusiveAcquire(true, 2, 2, "ldap://other:389")
	if granted {
		t.Fatal("expected second acquire to fail while held")
	}
	if holder != "ldap://peer:389" {
		t.Fatalf("holder = %q, want ldap://peer:389", holder)
	}

	r.Relinquish(1, 1)

	granted, _ = r.ExclusiveAcquire(false, 3, 3, "ldap://other:389")
	if !granted {
		t.Fatal("expected acquire to succeed after relinquish")
	}
	if r.FlagsSnapshot()&TotalInProgress == 0 {
		t.Fatal("expected TotalInProgress to be set for a non-incremental acquire")
	}
}

func TestPurgeCSNRequiresAllElementsSeen(t *testing.T) {
	r := newTestReplica(t)
	r.PurgeDelay = time.Hour

	if _, ok := r.PurgeCSN(); ok {
		t.Fatal("expected no purge csn before any element has a max_csn")
	}

	c := r.CSNGen.New()
	r.UpdateRUV(c, "")

	cutoff, ok := r.PurgeCSN()
	if !ok {
		t.Fatal("expected a purge csn once the local element has a max_csn")
	}
	if cutoff.Timestamp != c.Timestamp-3600 {
		t.Fatalf("cutoff timestamp = %d, want %d", cutoff.Timestamp, c.Timestamp-3600)
	}
}

func TestPurgeCSNDisabledWhenDelayZero(t *testing.T) {
	r := newTestReplica(t)
	if _, ok := r.PurgeCSN(); ok {
		t.Fatal("expected purge to be disabled with zero PurgeDelay")
	}
}

// TestPurgeCSNUsesLargestMaxCSN pins _replica_get_purge_csn_nolock's
// behavior: the cutoff is derived from the largest max_csn across RUV
// elements, not the smallest.
func TestPurgeCSNUsesLargestMaxCSN(t *testing.T) {
	r := newTestReplica(t)
	r.PurgeDelay = time.Hour

	local := r.CSNGen.New()
	r.UpdateRUV(local, "")

	remote := csn.CSN{Timestamp: local.Timestamp + 10000, RID: 2}
	if err := r.RUV.AddCSNInProgress(remote); err != nil {
		t.Fatalf("AddCSNInProgress: %v", err)
	}
	if err := r.RUV.UpdateRUV(remote, "ldap://remote:389", false); err != nil {
		t.Fatalf("UpdateRUV: %v", err)
	}

	cutoff, ok := r.PurgeCSN()
	if !ok {
		t.Fatal("expected a purge csn")
	}
	if cutoff.Timestamp != remote.Timestamp-3600 {
		t.Fatalf("cutoff timestamp = %d, want %d (derived from the larger, remote max_csn)",
			cutoff.Timestamp, remote.Timestamp-3600)
	}
}
