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
	"testing"

	"github.com/389ds/replcore/internal/changelog"
	"github.com/389ds/replcore/internal/ruv"
	"github.com/pkg/errors"
)

type alwaysOKDialect struct{}

func (alwaysOKDialect) AcquireReplica(ctx context.Context) AcquireResult { return AcquireResult{} }
func (alwaysOKDialect) ReleaseReplica(ctx context.Context)               {}
func (alwaysOKDialect) PushSchemaIfNeeded(ctx context.Context) (bool, error) {
	return false, nil
}
func (alwaysOKDialect) ExamineUpdateVector(ctx context.Context, peerRUV *ruv.Ruv) (ExamineOutcome, error) {
	return ExamineOK, nil
}
func (alwaysOKDialect) OpenReplayIterator(ctx context.Context, peerRUV *ruv.Ruv) (changelog.Iterator, error) {
	return nil, nil
}
func (alwaysOKDialect) SendOperation(ctx context.Context, op changelog.Operation) error {
	return nil
}

func TestWithChaosZeroProbReturnsDelegate(t *testing.T) {
	d := alwaysOKDialect{}
	if got := WithChaos(d, 0); got != Dialect(d) {
		t.Fatalf("expected delegate returned unwrapped, got %T", got)
	}
}

func TestWithChaosAlwaysFails(t *testing.T) {
	wrapped := WithChaos(alwaysOKDialect{}, 1)
	_, err := wrapped.PushSchemaIfNeeded(context.Background())
	if !errors.Is(err, ErrChaos) {
		t.Fatalf("expected ErrChaos, got %v", err)
	}
	if err := wrapped.SendOperation(context.Background(), changelog.Operation{}); !errors.Is(err, ErrChaos) {
		t.Fatalf("expected ErrChaos, got %v", err)
	}
}
