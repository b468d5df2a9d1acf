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

package msort

import (
	"testing"

	"github.com/389ds/replcore/internal/changelog"
	"github.com/389ds/replcore/internal/csn"
)

func TestUniqueByTarget(t *testing.T) {
	op := func(target string, ts uint32) changelog.Operation {
		return changelog.Operation{TargetUniqueID: target, CSN: csn.CSN{Timestamp: ts}}
	}

	x := []changelog.Operation{
		op("a", 1),
		op("b", 2),
		op("a", 3),
		op("c", 1),
		op("b", 1),
	}

	got := UniqueByTarget(x)
	if len(got) != 3 {
		t.Fatalf("expected 3 unique targets, got %d: %+v", len(got), got)
	}

	byTarget := make(map[string]changelog.Operation, len(got))
	for _, o := range got {
		byTarget[o.TargetUniqueID] = o
	}
	if byTarget["a"].CSN.Timestamp != 3 {
		t.Errorf("expected target a to keep CSN timestamp 3, got %d", byTarget["a"].CSN.Timestamp)
	}
	if byTarget["b"].CSN.Timestamp != 2 {
		t.Errorf("expected target b to keep CSN timestamp 2, got %d", byTarget["b"].CSN.Timestamp)
	}
	if byTarget["c"].CSN.Timestamp != 1 {
		t.Errorf("expected target c to keep CSN timestamp 1, got %d", byTarget["c"].CSN.Timestamp)
	}
}

func TestUniqueByTargetEmpty(t *testing.T) {
	if got := UniqueByTarget(nil); len(got) != 0 {
		t.Fatalf("expected empty result, got %+v", got)
	}
}

func TestUniqueByTargetPanicsOnEmptyKey(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic on empty TargetUniqueID")
		}
	}()
	UniqueByTarget([]changelog.Operation{{}})
}
