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

// Package stopper provides a supervised-goroutine context, used by
// every long-running loop in the replication core (the per-agreement
// worker, the RUV persister, the tombstone reaper) so that a
// single cancellation signal can fan out to all of them and the
// caller can wait for an orderly exit with a bound on how long it will
// wait before giving up.
package stopper

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"
)

// ErrStopped is the cause Stop records for the group. Context.Err is
// the wrapped context's own Err and does not return it.
var ErrStopped = errors.New("stopper: stopped")

// A Context wraps a context.Context with a group of supervised
// goroutines. Calling Stop requests every goroutine launched with Go
// to exit; Stop blocks until they all have, or until its grace period
// elapses.
type Context struct {
	context.Context
	cancel context.CancelFunc

	mu struct {
		sync.Mutex
		stopping chan struct{}
		err      error
	}
	wg sync.WaitGroup
}

// WithContext creates a new stopper bound to the lifetime of parent.
func WithContext(parent context.Context) *Context {
	ctx, cancel := context.WithCancel(parent)
	ret := &Context{Context: ctx, cancel: cancel}
	ret.mu.stopping = make(chan struct{})
	return ret
}

// Go launches fn in a supervised goroutine. If fn returns a non-nil
// error, it is recorded (the first error wins) and Stopping begins
// to fire for all goroutines in this group.
func (c *Context) Go(fn func() error) {
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		if err := fn(); err != nil {
			c.fail(err)
		}
	}()
}

// Stopping returns a channel that is closed once Stop has been called
// or a supervised goroutine has failed. Loops should select on this
// channel at every check point named in the state machine (window
// wait, backoff sleep, async-result poll) alongside ctx.Done().
func (c *Context) Stopping() <-chan struct{} {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.mu.stopping
}

// Stop requests every supervised goroutine to exit and waits up to
// gracePeriod for them to do so. It returns true if all goroutines
// exited in time.
func (c *Context) Stop(gracePeriod time.Duration) bool {
	c.fail(ErrStopped)
	c.cancel()

	done := make(chan struct{})
	go func() {
		c.wg.Wait()
		close(done)
	}()

	if gracePeriod <= 0 {
		<-done
		return true
	}
	select {
	case <-done:
		return true
	case <-time.After(gracePeriod):
		return false
	}
}

func (c *Context) fail(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.mu.err != nil {
		return
	}
	c.mu.err = err
	close(c.mu.stopping)
}
