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

// Package changelog describes the durable, ordered log of committed
// operations that the protocol state machine replays to peers. Only
// the contract is specified here — no on-disk format — in the same
// spirit as a generic LogReplicator: start/stream/stop over a single
// append-only sequence. A position whose operations have been purged
// from the log is reported as ErrPurged.
package changelog

import (
	"context"
	"io"

	"github.com/389ds/replcore/internal/csn"
	"github.com/389ds/replcore/internal/ruv"
	"github.com/pkg/errors"
)

// StartIterationUniqueID is the sentinel target unique id carried by a
// dummy entry logged for the smallest CSN in a fresh RUV, so that
// iteration always has a predecessor to position on. Consumers must
// skip operations bearing this unique id without treating them as
// real changes.
const StartIterationUniqueID = "ffffffff-ffffffff-ffffffff-ffffffff"

// Errors returned by CreateReplayIterator's failure classifications.
var (
	ErrNotFound           = errors.New("changelog: no entry for requested position")
	ErrPurged             = errors.New("changelog: requested position has been purged")
	ErrGenerationMismatch = errors.New("changelog: replica generation mismatch")
)

// An Operation is one committed change, opaque to the core beyond the
// fields needed to order and forward it: its CSN, the affected
// entry's unique id, and a caller-defined payload carrying the actual
// LDAP-level modification (never interpreted here — entry semantics
// are out of scope).
type Operation struct {
	CSN            csn.CSN
	TargetUniqueID string
	Payload        []byte
}

// IsDummy reports whether op is a START_ITERATION sentinel that must
// be silently skipped rather than forwarded to a peer.
func (op Operation) IsDummy() bool { return op.TargetUniqueID == StartIterationUniqueID }

// An Iterator produces a finite, ordered sequence of operations whose
// CSNs are not covered by the peer RUV passed to
// CreateReplayIterator, in commit order within each origin. Next
// returns io.EOF once exhausted. Implementations must support
// concurrent calls to Close from a different goroutine than the one
// calling Next, since a shutdown can interrupt an in-flight replay.
type Iterator interface {
	Next(ctx context.Context) (Operation, error)
	Close() error
}

// A Writer durably appends committed operations. WriteOperation must
// only be called after the backend has committed the corresponding
// data change, so that a changelog entry never exists without a
// matching committed write.
type Writer interface {
	WriteOperation(ctx context.Context, replicaName, replGen string, op Operation) error
}

// Source opens replay iterators against the changelog. It is the
// external-collaborator seam the protocol state machine depends on;
// this package defines no concrete implementation, matching spec.md's
// "contract only" scope for the changelog.
type Source interface {
	// CreateReplayIterator returns operations originating from a
	// replica in localRUV whose CSN is not covered by peerRUV. It
	// returns ErrGenerationMismatch if peerRUV's generation differs
	// from localRUV's (the caller must fall back to a total update),
	// ErrPurged if the changelog no longer holds the operations needed
	// to bring peerRUV up to date, and ErrNotFound if no changelog
	// exists for replicaName at all.
	CreateReplayIterator(ctx context.Context, replicaName string, localRUV, peerRUV *ruv.Ruv) (Iterator, error)
}

// Drain reads every non-dummy operation from it into a slice, for
// tests and small replay sessions; production send_updates streaming
// should call Next directly instead of buffering the whole replay.
func Drain(ctx context.Context, it Iterator) ([]Operation, error) {
	var ops []Operation
	for {
		op, err := it.Next(ctx)
		if errors.Is(err, io.EOF) {
			return ops, nil
		}
		if err != nil {
			return ops, err
		}
		if op.IsDummy() {
			continue
		}
		ops = append(ops, op)
	}
}
