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
	"context"
	"time"

	"github.com/389ds/replcore/internal/changelog"
	"github.com/389ds/replcore/internal/ruv"
)

// AcquireOutcome classifies the result of an acquire_replica attempt
// against the peer, per §4.5 ReadyToAcquire.
type AcquireOutcome int

const (
	AcquireSuccess AcquireOutcome = iota
	AcquireBusy
	AcquireConsumerUpToDate
	AcquireTransientError
	AcquireFatalError
)

// AcquireResult is what Dialect.AcquireReplica reports back.
type AcquireResult struct {
	Outcome     AcquireOutcome
	PeerRUV     *ruv.Ruv
	BusyWait    time.Duration // only meaningful for AcquireBusy
	CurrentPurl string        // only meaningful for AcquireBusy
	Err         error         // only meaningful for *TransientError/*FatalError
}

// ExamineOutcome classifies examine_update_vector's comparison of the
// peer RUV against the local one.
type ExamineOutcome int

const (
	ExamineOK ExamineOutcome = iota
	ExaminePristineReplica
	ExamineGenerationMismatch
	ExamineReplicaTooOld
)

// A Dialect supplies the peer-facing behavior the state machine
// drives: acquiring/releasing the replica, pushing schema, and
// streaming changelog operations. It plays the role provider.go's
// logical.Dialect plays for a target database — the loop owns
// control flow, the Dialect owns the actual network conversation.
type Dialect interface {
	// AcquireReplica attempts to gain exclusive access to the peer
	// replica for an incremental session.
	AcquireReplica(ctx context.Context) AcquireResult
	// ReleaseReplica always runs at session end, mirroring
	// release_replica's unconditional call.
	ReleaseReplica(ctx context.Context)
	// PushSchemaIfNeeded pushes schema when the consumer's recorded
	// schema CSN lags the supplier's; returns true if it updated the
	// consumer, and an error only for conditions worth logging (a
	// failure here is warn-only and never fatal per §4.5 S6).
	PushSchemaIfNeeded(ctx context.Context) (updated bool, err error)
	// ExamineUpdateVector classifies peerRUV against the local RUV,
	// and on ExamineOK adjusts the local CSN generator against it
	// (fatal if doing so would exceed CSN_LIMIT_EXCEEDED bounds: an
	// error wrapping csn.ErrClockSkewExceeded stops the session in
	// StopFatalError, any other error enters backoff).
	ExamineUpdateVector(ctx context.Context, peerRUV *ruv.Ruv) (ExamineOutcome, error)
	// OpenReplayIterator opens a changelog iterator filtered by
	// peerRUV.
	OpenReplayIterator(ctx context.Context, peerRUV *ruv.Ruv) (changelog.Iterator, error)
	// SendOperation streams one operation to the peer. If the Dialect
	// also implements AsyncResults, SendOperation may return before
	// the peer's LDAP result code is known; ResultReader is what
	// bounds how far the sender may run ahead of those results and
	// drains them at session end.
	SendOperation(ctx context.Context, op changelog.Operation) error
}

// Config carries the tunables named in spec.md §6 "Defaults" that the
// state machine consults directly (the rest of the configuration
// surface lives in internal/config and is resolved into a Config at
// agreement construction time).
type Config struct {
	BusyBackoffMinimum time.Duration
	BusyWaitTime       time.Duration
	BackoffMin         time.Duration
	BackoffMax         time.Duration
	ProtocolTimeout    time.Duration
	Pausetime          time.Duration
	InWindow           func(time.Time) bool

	// SendBatchSize, when greater than zero, makes runSendingUpdates
	// accumulate up to this many changelog operations before
	// deduplicating by target and sending the result, rather than
	// sending each operation as it is read. Zero streams operations
	// one at a time as they come off the iterator.
	SendBatchSize int

	// MaxChangesPerSession is MAX_CHANGES_PER_SESSION: the ResultReader
	// refuses to let the sender run more than this many operations
	// ahead of the peer's acknowledgements when the Dialect reports
	// results asynchronously. Zero disables the limit.
	MaxChangesPerSession int
}

// InSchedule reports whether now falls inside the agreement's
// schedule window; a nil InWindow means "always in window", the
// common case for agreements with no restricted schedule.
func (c Config) InSchedule(now time.Time) bool {
	if c.InWindow == nil {
		return true
	}
	return c.InWindow(now)
}
