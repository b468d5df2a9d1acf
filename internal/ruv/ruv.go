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

// Package ruv implements the Replica Update Vector: a per-replica
// summary of the smallest uncommitted and largest committed CSN
// observed per source replica, the on-wire state used to decide which
// updates must be shipped to peers and whether an incremental session
// is possible at all. It is a port of repl5_ruv.c.
package ruv

import (
	"sync"
	"time"

	"github.com/389ds/replcore/internal/csn"
	"github.com/pkg/errors"
)

// Sentinel errors returned by RUV operations, taking the place of the
// source's RUV_SUCCESS/RUV_NOTFOUND/RUV_BAD_DATA/... result codes.
var (
	ErrNotFound      = errors.New("ruv: replica id not found")
	ErrAlreadyExists = errors.New("ruv: replica id already present")
	ErrBadFormat     = errors.New("ruv: malformed serialized form")
	ErrNoGeneration  = errors.New("ruv: replica generation not yet assigned")
)

// ErrCoversCSN is returned by AddCSNInProgress when the RUV already
// covers the CSN (idempotent replay suppression) or the CSN's origin
// is in the process of being cleaned (CLEANALLRUV). Neither case is a
// true error: callers should treat it as "nothing to do."
var ErrCoversCSN = errors.New("ruv: already covers csn")

// A Ruv is a per-replica update vector: an ordered list of per-origin
// elements plus a replica generation stamped at creation. The local
// replica's element is always elements[0]; all structural edits and
// the csn bookkeeping methods are serialized by mu.
type Ruv struct {
	mu       sync.RWMutex
	replGen  string
	elements []*Element
	byRID    map[uint16]*Element
	cleaned  map[uint16]bool
}

// New creates a RUV stamped with the given replica generation and a
// single local element for localRID/localPurl.
func New(replGen string, localRID uint16, localPurl string) *Ruv {
	local := newElement(localRID, localPurl)
	return &Ruv{
		replGen:  replGen,
		elements: []*Element{local},
		byRID:    map[uint16]*Element{localRID: local},
		cleaned:  map[uint16]bool{},
	}
}

// ReplicaGeneration returns the RUV's generation string. It never
// changes after New.
func (r *Ruv) ReplicaGeneration() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.replGen
}

// Elements returns a snapshot of every element in insertion order
// (local replica first).
func (r *Ruv) Elements() []Element {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Element, len(r.elements))
	for i, e := range r.elements {
		out[i] = e.clone()
	}
	return out
}

// ElementForRID returns a snapshot of the element for rid, if present.
func (r *Ruv) ElementForRID(rid uint16) (Element, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.byRID[rid]
	if !ok {
		return Element{}, false
	}
	return e.clone(), true
}

// MarkCleaned records rid as being torn down by CLEANALLRUV. Future
// AddCSNInProgress calls for rid return ErrCoversCSN instead of
// creating a new element.
func (r *Ruv) MarkCleaned(rid uint16) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cleaned[rid] = true
}

// AddCSNInProgress records c as an in-flight, uncommitted change from
// its origin. If no element exists yet for c.RID, one is created
// unless that rid is in the cleaned set. Returns ErrCoversCSN if the
// RUV already covers c (idempotent replay suppression) or c.RID is
// being cleaned.
func (r *Ruv) AddCSNInProgress(c csn.CSN) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.cleaned[c.RID] {
		return ErrCoversCSN
	}

	e, ok := r.byRID[c.RID]
	if !ok {
		e = newElement(c.RID, "")
		r.elements = append(r.elements, e)
		r.byRID[c.RID] = e
	} else if !e.MaxCSN.IsZero() && csn.Compare(c, e.MaxCSN) <= 0 {
		return ErrCoversCSN
	}

	if err := e.csnpl.Insert(c); err != nil {
		return ErrCoversCSN
	}
	ruvCSNsInProgress.WithLabelValues(r.replGen).Inc()
	return nil
}

// CancelCSNInProgress removes an uncommitted CSN from its origin's
// pending list, aborting an operation that failed before commit.
func (r *Ruv) CancelCSNInProgress(c csn.CSN) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.byRID[c.RID]
	if !ok {
		return ErrNotFound
	}
	if err := e.csnpl.Remove(c); err != nil {
		return err
	}
	ruvCSNsInProgress.WithLabelValues(r.replGen).Dec()
	return nil
}

// UpdateRUV commits c in its origin's pending list and rolls up the
// committed prefix. If a prefix was rolled up, MaxCSN advances to the
// largest rolled-up CSN; if !isLocal and MinCSN is unset, it is set to
// the first rolled-up CSN. purl, if non-empty, replaces the element's
// known origin URL (an origin may change address between sessions).
func (r *Ruv) UpdateRUV(c csn.CSN, purl string, isLocal bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.byRID[c.RID]
	if !ok {
		ruvRollupErrors.WithLabelValues(r.replGen).Inc()
		return ErrNotFound
	}
	if err := e.csnpl.Commit(c); err != nil {
		return err
	}
	ruvCSNsInProgress.WithLabelValues(r.replGen).Dec()

	largest, first := e.csnpl.RollUp()
	if largest.IsZero() {
		return nil
	}
	e.MaxCSN = largest
	if !isLocal && e.MinCSN.IsZero() {
		e.MinCSN = first
	}
	if purl != "" {
		e.Purl = purl
	}
	e.LastModified = time.Now()
	return nil
}

// Covers reports whether the RUV's element for csn.RID exists and its
// MaxCSN is at least c (non-strict: c could have been the
// last-applied change).
func (r *Ruv) Covers(c csn.CSN) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.coversLocked(c, false)
}

// CoversStrict is like Covers, but requires the element's MaxCSN to be
// strictly greater than c.
func (r *Ruv) CoversStrict(c csn.CSN) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.coversLocked(c, true)
}

func (r *Ruv) coversLocked(c csn.CSN, strict bool) bool {
	e, ok := r.byRID[c.RID]
	if !ok {
		return false
	}
	if e.MaxCSN.IsZero() {
		return false
	}
	cmp := csn.Compare(c, e.MaxCSN)
	if strict {
		return cmp < 0
	}
	return cmp <= 0
}

// GetMinCSN returns the smallest MinCSN across every element that has
// one set.
func (r *Ruv) GetMinCSN() (csn.CSN, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var min csn.CSN
	found := false
	for _, e := range r.elements {
		if e.MinCSN.IsZero() {
			continue
		}
		if !found || csn.Less(e.MinCSN, min) {
			min = e.MinCSN
			found = true
		}
	}
	return min, found
}

// GetMaxCSN returns the largest MaxCSN across every element.
func (r *Ruv) GetMaxCSN() (csn.CSN, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var max csn.CSN
	found := false
	for _, e := range r.elements {
		if e.MaxCSN.IsZero() {
			continue
		}
		if !found || csn.Less(max, e.MaxCSN) {
			max = e.MaxCSN
			found = true
		}
	}
	return max, found
}

// AddReplica adds a new element for rid/purl. It returns
// ErrAlreadyExists if rid is already present.
func (r *Ruv) AddReplica(rid uint16, purl string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byRID[rid]; ok {
		return ErrAlreadyExists
	}
	e := newElement(rid, purl)
	r.elements = append(r.elements, e)
	r.byRID[rid] = e
	ruvReplicaCount.WithLabelValues(r.replGen).Set(float64(len(r.elements)))
	return nil
}

// DeleteReplica removes rid's element entirely, as happens at the end
// of a CLEANALLRUV task.
func (r *Ruv) DeleteReplica(rid uint16) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byRID[rid]; !ok {
		return ErrNotFound
	}
	delete(r.byRID, rid)
	delete(r.cleaned, rid)
	for i, e := range r.elements {
		if e.RID == rid {
			r.elements = append(r.elements[:i:i], r.elements[i+1:]...)
			break
		}
	}
	ruvReplicaCount.WithLabelValues(r.replGen).Set(float64(len(r.elements)))
	return nil
}

// ReplacePurl updates the partial URL recorded for rid.
func (r *Ruv) ReplacePurl(rid uint16, purl string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.byRID[rid]
	if !ok {
		return ErrNotFound
	}
	e.Purl = purl
	return nil
}

// MoveLocalFirst restores the invariant that rid's element is at
// index 0, as required after deserializing a RUV whose local element
// was not first in the stored order.
func (r *Ruv) MoveLocalFirst(rid uint16) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, e := range r.elements {
		if e.RID == rid {
			if i == 0 {
				return nil
			}
			r.elements = append(r.elements[:i:i], r.elements[i+1:]...)
			r.elements = append([]*Element{e}, r.elements...)
			return nil
		}
	}
	return ErrNotFound
}

// ReplicaCount returns the number of elements in the RUV.
func (r *Ruv) ReplicaCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.elements)
}

// Referrals returns the purl of every non-local element (index > 0)
// that has one set.
func (r *Ruv) Referrals() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []string
	for i, e := range r.elements {
		if i == 0 || e.Purl == "" {
			continue
		}
		out = append(out, e.Purl)
	}
	return out
}
