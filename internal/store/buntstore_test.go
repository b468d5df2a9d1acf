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

package store

import (
	"context"
	"testing"
)

func TestBuntMemoGetPutRoundTrip(t *testing.T) {
	m, err := OpenBuntMemo(":memory:")
	if err != nil {
		t.Fatalf("OpenBuntMemo: %v", err)
	}
	defer m.Close()

	ctx := context.Background()
	if err := m.Put(ctx, "k", []byte("v")); err != nil {
		t.Fatalf("Put: %v", err)
	}
	got, err := m.Get(ctx, "k")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if string(got) != "v" {
		t.Fatalf("Get = %q, want %q", got, "v")
	}
}

func TestBuntMemoGetMissingKey(t *testing.T) {
	m, err := OpenBuntMemo(":memory:")
	if err != nil {
		t.Fatalf("OpenBuntMemo: %v", err)
	}
	defer m.Close()

	got, err := m.Get(context.Background(), "missing")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got != nil {
		t.Fatalf("Get(missing) = %q, want nil", got)
	}
}

func TestBuntMemoLoadRUVMissing(t *testing.T) {
	m, err := OpenBuntMemo(":memory:")
	if err != nil {
		t.Fatalf("OpenBuntMemo: %v", err)
	}
	defer m.Close()

	_, found, err := LoadRUV(context.Background(), m, "dc=example,dc=com")
	if err != nil {
		t.Fatalf("LoadRUV: %v", err)
	}
	if found {
		t.Fatal("expected no ruv saved yet")
	}
}
