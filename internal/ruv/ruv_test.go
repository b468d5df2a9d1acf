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
	"testing"

	"github.com/389ds/replcore/internal/csn"
)

func mkCSN(ts uint32, seq, rid uint16) csn.CSN {
	return csn.CSN{Timestamp: ts, Seq: seq, RID: rid}
}

func TestAddCSNInProgressThenUpdateRollsUpMaxCSN(t *testing.T) {
	r := New("gen1", 1, "ldap://local:389")
	if err := r.AddReplica(2, "ldap://peer:389"); err != nil {
		t.Fatal(err)
	}

	c1 := mkCSN(100, 0, 2)
	if err := r.AddCSNInProgress(c1); err != nil {
		t.Fatal(err)
	}
	if err := r.UpdateRUV(c1, "", false); err != nil {
		t.Fatal(err)
	}

	e, ok := r.ElementForRID(2)
	if !ok {
		t.Fatal("expected element for rid 2")
	}
	if e.MaxCSN != c1 {
		t.Fatalf("MaxCSN = %s, want %s", e.MaxCSN, c1)
	}
	if e.MinCSN != c1 {
		t.Fatalf("MinCSN = %s, want %s", e.MinCSN, c1)
	}
}

func TestAddCSNInProgressRejectsAlreadyCovered(t *testing.T) {
	r := New("gen1", 1, "")
	c1 := mkCSN(100, 0, 2)
	c0 := mkCSN(99, 0, 2)

	if err := r.AddCSNInProgress(c1); err != nil {
		t.Fatal(err)
	}
	if err := r.UpdateRUV(c1, "", false); err != nil {
		t.Fatal(err)
	}

	if err := r.AddCSNInProgress(c0); err != ErrCoversCSN {
		t.Fatalf("got %v, want ErrCoversCSN", err)
	}
}

func TestMarkCleanedRejectsNewCSNs(t *testing.T) {
	r := New("gen1", 1, "")
	r.MarkCleaned(5)
	if err := r.AddCSNInProgress(mkCSN(1, 0, 5)); err != ErrCoversCSN {
		t.Fatalf("got %v, want ErrCoversCSN", err)
	}
}

func TestCancelCSNInProgressAllowsReplay(t *testing.T) {
	r := New("gen1", 1, "")
	c1 := mkCSN(10, 0, 1)
	if err := r.AddCSNInProgress(c1); err != nil {
		t.Fatal(err)
	}
	if err := r.CancelCSNInProgress(c1); err != nil {
		t.Fatal(err)
	}
	// Replaying the same CSN after cancellation must succeed since it
	// was never committed into MaxCSN.
	if err := r.AddCSNInProgress(c1); err != nil {
		t.Fatalf("replay after cancel: %v", err)
	}
}

func TestCoversAndCoversStrict(t *testing.T) {
	r := New("gen1", 1, "")
	c1 := mkCSN(10, 0, 1)
	_ = r.AddCSNInProgress(c1)
	_ = r.UpdateRUV(c1, "", true)

	if !r.Covers(c1) {
		t.Fatal("expected Covers(c1) to be true (non-strict includes equal)")
	}
	if r.CoversStrict(c1) {
		t.Fatal("expected CoversStrict(c1) to be false for the max itself")
	}
	older := mkCSN(9, 0, 1)
	if !r.CoversStrict(older) {
		t.Fatal("expected CoversStrict to cover an older csn")
	}
	unseenOrigin := mkCSN(1, 0, 99)
	if r.Covers(unseenOrigin) {
		t.Fatal("expected Covers to be false for an unknown origin")
	}
}

func TestMoveLocalFirst(t *testing.T) {
	r := New("gen1", 1, "")
	_ = r.AddReplica(2, "")
	_ = r.AddReplica(3, "")

	// Simulate a deserialized RUV where replica 3 came first.
	els := r.elements
	els[0], els[2] = els[2], els[0]
	r.elements = els

	if err := r.MoveLocalFirst(1); err != nil {
		t.Fatal(err)
	}
	if r.elements[0].RID != 1 {
		t.Fatalf("elements[0].RID = %d, want 1", r.elements[0].RID)
	}
}

func TestDominatesAndCompare(t *testing.T) {
	a := New("gen1", 1, "")
	b := New("gen1", 1, "")

	if a.Compare(b) != Identical {
		t.Fatalf("two empty RUVs with the same generation should be identical, got %s", a.Compare(b))
	}

	c1 := mkCSN(10, 0, 1)
	_ = a.AddCSNInProgress(c1)
	_ = a.UpdateRUV(c1, "", true)

	if got := a.Compare(b); got != LocalAhead {
		t.Fatalf("Compare = %s, want local-ahead", got)
	}
	if got := b.Compare(a); got != RemoteAhead {
		t.Fatalf("Compare = %s, want remote-ahead", got)
	}

	// b now has a change from origin 2, which a has not seen, while a
	// still has origin 1's c1, which b has not seen.
	c2 := mkCSN(5, 0, 2)
	_ = b.AddCSNInProgress(c2)
	_ = b.UpdateRUV(c2, "", true)
	if got := a.Compare(b); got != Diverged {
		t.Fatalf("Compare = %s, want diverged", got)
	}
}

// TestDominatesSelf pins invariant 5 (ruv.dominates(ruv) == true) and
// guards against a regression to a recursive RLock on the same RUV,
// which can deadlock against a concurrent writer queued in between the
// two lock acquisitions.
func TestDominatesSelf(t *testing.T) {
	a := New("gen1", 1, "")
	c := mkCSN(10, 0, 1)
	_ = a.AddCSNInProgress(c)
	_ = a.UpdateRUV(c, "", true)

	if !a.Dominates(a) {
		t.Fatal("expected a RUV to dominate itself")
	}
	if got := a.Compare(a); got != Identical {
		t.Fatalf("Compare(self) = %s, want identical", got)
	}
}

func TestCompareGenerationMismatch(t *testing.T) {
	a := New("gen1", 1, "")
	b := New("gen2", 1, "")
	if got := a.Compare(b); got != GenerationMismatch {
		t.Fatalf("Compare = %s, want generation-mismatch", got)
	}
}

func TestSerializeDeserializeRoundTrip(t *testing.T) {
	r := New("0440FDC0A33F", 1, "ldap://local:389")
	_ = r.AddReplica(2, "ldap://peer:389")

	c1 := mkCSN(0x11112110, 0, 2)
	_ = r.AddCSNInProgress(c1)
	_ = r.UpdateRUV(c1, "", false)

	values := r.Serialize()
	round, err := Deserialize(values)
	if err != nil {
		t.Fatalf("Deserialize: %v", err)
	}

	if round.ReplicaGeneration() != r.ReplicaGeneration() {
		t.Fatalf("generation mismatch after round-trip")
	}
	orig := r.Elements()
	got := round.Elements()
	if len(orig) != len(got) {
		t.Fatalf("element count mismatch: %d vs %d", len(orig), len(got))
	}
	for i := range orig {
		if orig[i].RID != got[i].RID || orig[i].Purl != got[i].Purl {
			t.Fatalf("element %d mismatch: %+v vs %+v", i, orig[i], got[i])
		}
		if orig[i].MaxCSN != got[i].MaxCSN || orig[i].MinCSN != got[i].MinCSN {
			t.Fatalf("element %d csn mismatch: %+v vs %+v", i, orig[i], got[i])
		}
	}
}

func TestDeserializeRejectsMissingGeneration(t *testing.T) {
	_, err := Deserialize([]string{"{replica 1 ldap://x:389}"})
	if err == nil {
		t.Fatal("expected error for missing replicageneration")
	}
}

func TestAddReplicaRejectsDuplicate(t *testing.T) {
	r := New("gen1", 1, "")
	if err := r.AddReplica(1, ""); err != ErrAlreadyExists {
		t.Fatalf("got %v, want ErrAlreadyExists", err)
	}
}

func TestDeleteReplicaRemovesElement(t *testing.T) {
	r := New("gen1", 1, "")
	_ = r.AddReplica(2, "")
	if err := r.DeleteReplica(2); err != nil {
		t.Fatal(err)
	}
	if _, ok := r.ElementForRID(2); ok {
		t.Fatal("expected element 2 to be gone")
	}
	if r.ReplicaCount() != 1 {
		t.Fatalf("ReplicaCount = %d, want 1", r.ReplicaCount())
	}
}
