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
	"github.com/pkg/errors"
)

// AsyncResults is the optional capability a Dialect implements when its
// peer connection reports LDAP result codes asynchronously: SendOperation
// returns as soon as the operation is written to the wire, and Pending
// reports how many sent operations are still awaiting a result. A
// Dialect that doesn't implement this is treated as fully synchronous
// (every send is already acknowledged by the time it returns), so
// ResultReader degrades to calling SendOperation directly with no
// capacity limiting or drain wait.
type AsyncResults interface {
	// Pending reports how many of the operations sent so far have not
	// yet been acknowledged by the peer.
	Pending(ctx context.Context) (int, error)
}

// resultReaderPollMin and resultReaderPollMax bound the doubling delay
// repl5_inc_waitfor_async_results uses while polling for the peer to
// catch up: 1ms to start, capped at 1s.
const (
	resultReaderPollMin = time.Millisecond
	resultReaderPollMax = time.Second

	// defaultDrainTimeout is the 300s absolute ceiling
	// repl5_inc_waitfor_async_results applies at session end.
	defaultDrainTimeout = 300 * time.Second
)

// ResultReader sits between a Session and its Dialect while streaming
// changes, enforcing MAX_CHANGES_PER_SESSION backpressure on the
// sender and draining outstanding acknowledgements at session end. It
// mirrors repl5_inc_waitfor_async_results: poll with an exponential
// 1ms->1s delay, each poll attempt bounded by ConnectionTimeout, the
// final drain bounded overall by AbsoluteTimeout.
type ResultReader struct {
	Dialect Dialect

	// MaxInFlight is MAX_CHANGES_PER_SESSION: the sender may not run
	// more than this many un-acknowledged operations ahead of the
	// peer. Zero (or a Dialect that doesn't implement AsyncResults)
	// disables the limit.
	MaxInFlight int
	// ConnectionTimeout bounds each individual wait for the peer to
	// report its pending count ("connection.timeout" in spec.md),
	// distinguishing "still waiting" from "really timed out".
	ConnectionTimeout time.Duration
	// AbsoluteTimeout bounds the final Drain call; zero defaults to
	// 300s, matching MAX_WAIT_BETWEEN_SESSIONS' sibling constant for
	// the end-of-session drain.
	AbsoluteTimeout time.Duration
}

func (r *ResultReader) async() (AsyncResults, bool) {
	a, ok := r.Dialect.(AsyncResults)
	return a, ok
}

// Send transmits op, first blocking the sender if it has already run
// MaxInFlight operations ahead of the peer's acknowledgements.
func (r *ResultReader) Send(ctx context.Context, op changelog.Operation) error {
	if async, ok := r.async(); ok && r.MaxInFlight > 0 {
		if err := r.awaitCapacity(ctx, async); err != nil {
			return errors.Wrap(err, "result reader: waiting for send capacity")
		}
	}
	return r.Dialect.SendOperation(ctx, op)
}

// Drain waits for the peer to acknowledge every operation sent so far,
// or for AbsoluteTimeout (default 300s) to elapse. A Dialect that
// doesn't implement AsyncResults is synchronous by construction and
// returns immediately.
func (r *ResultReader) Drain(ctx context.Context) error {
	async, ok := r.async()
	if !ok {
		return nil
	}

	absolute := r.AbsoluteTimeout
	if absolute <= 0 {
		absolute = defaultDrainTimeout
	}
	drainCtx, cancel := context.WithTimeout(ctx, absolute)
	defer cancel()

	delay := resultReaderPollMin
	for {
		pending, err := r.pendingWithTimeout(drainCtx, async)
		if err != nil {
			return err
		}
		if pending == 0 {
			return nil
		}
		if err := sleepOrDone(drainCtx, delay); err != nil {
			return errors.Wrap(err, "result reader: timed out waiting for peer to acknowledge outstanding changes")
		}
		delay = nextPollDelay(delay)
	}
}

// awaitCapacity polls, with no absolute ceiling of its own, until the
// peer's pending count drops below MaxInFlight. The caller's ctx is
// the only thing that can end an indefinite wait here, matching the
// original's unbounded capacity wait (only the final drain has a 300s
// ceiling).
func (r *ResultReader) awaitCapacity(ctx context.Context, async AsyncResults) error {
	delay := resultReaderPollMin
	for {
		pending, err := r.pendingWithTimeout(ctx, async)
		if err != nil {
			return err
		}
		if pending < r.MaxInFlight {
			return nil
		}
		if err := sleepOrDone(ctx, delay); err != nil {
			return err
		}
		delay = nextPollDelay(delay)
	}
}

func (r *ResultReader) pendingWithTimeout(ctx context.Context, async AsyncResults) (int, error) {
	if r.ConnectionTimeout <= 0 {
		return async.Pending(ctx)
	}
	pollCtx, cancel := context.WithTimeout(ctx, r.ConnectionTimeout)
	defer cancel()
	return async.Pending(pollCtx)
}

func sleepOrDone(ctx context.Context, d time.Duration) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}

func nextPollDelay(d time.Duration) time.Duration {
	d *= 2
	if d > resultReaderPollMax {
		return resultReaderPollMax
	}
	return d
}
