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
	"math/rand"

	"github.com/389ds/replcore/internal/changelog"
	"github.com/389ds/replcore/internal/ruv"
	"github.com/pkg/errors"
)

// ErrChaos is the error injected by WithChaos.
var ErrChaos = errors.New("chaos")

// WithChaos returns a wrapper around a Dialect that randomly fails
// each call with probability prob, so a Session's backoff and retry
// paths can be exercised without a real, flaky peer. The delegate is
// returned unwrapped if prob is less than or equal to zero.
func WithChaos(delegate Dialect, prob float32) Dialect {
	if prob <= 0 {
		return delegate
	}
	return &chaosDialect{delegate: delegate, prob: prob}
}

// This could include a *rand.Rand, but as soon as Dialect methods are
// called from multiple goroutines there's no hope of repeatable
// behavior anyway.
type chaosDialect struct {
	delegate Dialect
	prob     float32
}

var _ Dialect = (*chaosDialect)(nil)

func (d *chaosDialect) AcquireReplica(ctx context.Context) AcquireResult {
	if rand.Float32() < d.prob {
		return AcquireResult{Outcome: AcquireBusy, Err: doChaos("AcquireReplica")}
	}
	return d.delegate.AcquireReplica(ctx)
}

func (d *chaosDialect) ReleaseReplica(ctx context.Context) {
	d.delegate.ReleaseReplica(ctx)
}

func (d *chaosDialect) PushSchemaIfNeeded(ctx context.Context) (bool, error) {
	if rand.Float32() < d.prob {
		return false, doChaos("PushSchemaIfNeeded")
	}
	return d.delegate.PushSchemaIfNeeded(ctx)
}

func (d *chaosDialect) ExamineUpdateVector(ctx context.Context, peerRUV *ruv.Ruv) (ExamineOutcome, error) {
	if rand.Float32() < d.prob {
		return ExamineOK, doChaos("ExamineUpdateVector")
	}
	return d.delegate.ExamineUpdateVector(ctx, peerRUV)
}

func (d *chaosDialect) OpenReplayIterator(ctx context.Context, peerRUV *ruv.Ruv) (changelog.Iterator, error) {
	if rand.Float32() < d.prob {
		return nil, doChaos("OpenReplayIterator")
	}
	it, err := d.delegate.OpenReplayIterator(ctx, peerRUV)
	if err != nil {
		return nil, err
	}
	return &chaosIterator{delegate: it, prob: d.prob}, nil
}

func (d *chaosDialect) SendOperation(ctx context.Context, op changelog.Operation) error {
	if rand.Float32() < d.prob {
		return doChaos("SendOperation")
	}
	return d.delegate.SendOperation(ctx, op)
}

type chaosIterator struct {
	delegate changelog.Iterator
	prob     float32
}

var _ changelog.Iterator = (*chaosIterator)(nil)

func (it *chaosIterator) Next(ctx context.Context) (changelog.Operation, error) {
	if rand.Float32() < it.prob {
		return changelog.Operation{}, doChaos("Next")
	}
	return it.delegate.Next(ctx)
}

func (it *chaosIterator) Close() error {
	return it.delegate.Close()
}

// doChaos is a convenient place to set a breakpoint.
func doChaos(msg string) error {
	return errors.WithMessage(ErrChaos, msg)
}
