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

// Package pending implements the CSN pending list: an ordered set of
// in-flight change sequence numbers used to compute the largest
// contiguous prefix of committed changes. It is a direct port of the
// singly linked, tail-cached pending list in csnpl.c.
package pending

import (
	"sync"

	"github.com/389ds/replcore/internal/csn"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// ErrAlreadySeen is returned by Insert when the given CSN is not
// strictly greater than the tail of the list — it has already been
// inserted, or is older than everything ever inserted.
var ErrAlreadySeen = errors.New("pending: csn already seen")

// ErrNotFound is returned by Commit when the given CSN is not present
// in the list.
var ErrNotFound = errors.New("pending: csn not found")

type node struct {
	csn       csn.CSN
	committed bool
	next      *node
}

// A List is an ordered set of (csn, committed) pairs in strictly
// increasing CSN order. The zero value is an empty, ready-to-use
// list.
type List struct {
	mu   sync.RWMutex
	head *node
	tail *node
}

// New returns an empty pending list.
func New() *List { return &List{} }

// Insert appends c to the tail of the list. It returns ErrAlreadySeen
// if c is not strictly greater than the current tail, in which case
// the list is unchanged. O(1).
func (l *List) Insert(c csn.CSN) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.tail != nil && csn.Compare(c, l.tail.csn) <= 0 {
		pendingAlreadySeenRejections.Inc()
		return ErrAlreadySeen
	}

	n := &node{csn: c}
	if l.tail == nil {
		l.head = n
	} else {
		l.tail.next = n
	}
	l.tail = n
	return nil
}

// Commit marks c as committed. It returns ErrNotFound if c is not
// present in the list, or if it was already committed. A miss is
// logged at Error level unless c was stamped by the read-only
// sentinel replica id: a legacy-consumer RUV can carry a CSN whose rid
// matches a dedicated consumer's own, empty pending list, which is
// expected and not worth alarming on. O(n), but n is bounded by the
// number of concurrently in-flight operations.
func (l *List) Commit(c csn.CSN) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	for n := l.head; n != nil; n = n.next {
		if n.csn == c {
			if n.committed {
				return ErrNotFound
			}
			n.committed = true
			return nil
		}
	}
	pendingCommitMisses.Inc()
	if !c.IsReadOnly() {
		log.WithField("csn", c.String()).Error("pending: commit of unknown csn")
	}
	return ErrNotFound
}

// Remove deletes an uncommitted c from the list, used to abort an
// operation that failed before it could commit. It returns
// ErrNotFound if c is not present.
func (l *List) Remove(c csn.CSN) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	var prev *node
	for n := l.head; n != nil; n = n.next {
		if n.csn == c {
			if prev == nil {
				l.head = n.next
			} else {
				prev.next = n.next
			}
			if l.tail == n {
				l.tail = prev
			}
			return nil
		}
		prev = n
	}
	return ErrNotFound
}

// RollUp removes the longest prefix of the list whose every node is
// committed. It returns the largest CSN removed and the smallest CSN
// removed; if the head is not committed (or the list is empty), both
// are the zero CSN and the list is unchanged.
func (l *List) RollUp() (largest, first csn.CSN) {
	l.mu.Lock()
	defer l.mu.Unlock()

	for l.head != nil && l.head.committed {
		if first.IsZero() {
			first = l.head.csn
		}
		largest = l.head.csn
		l.head = l.head.next
	}
	if l.head == nil {
		l.tail = nil
	}
	if !largest.IsZero() {
		pendingRollUps.Inc()
	}
	return largest, first
}

// GetMin peeks at the head of the list without modifying it. ok is
// false if the list is empty.
func (l *List) GetMin() (c csn.CSN, committed bool, ok bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if l.head == nil {
		return csn.CSN{}, false, false
	}
	return l.head.csn, l.head.committed, true
}

// Len reports the number of CSNs currently tracked, for diagnostics
// and tests; it is not part of the hot path.
func (l *List) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	n := 0
	for c := l.head; c != nil; c = c.next {
		n++
	}
	return n
}
