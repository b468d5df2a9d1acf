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
	"sync"
	"testing"
	"time"

	"github.com/389ds/replcore/internal/csn"
	"github.com/389ds/replcore/internal/ruv"
)

// memMemo is an in-process Memo used only by this package's tests.
type memMemo struct {
	mu   sync.Mutex
	data map[string][]byte
}

func newMemMemo() *memMemo { return &memMemo{data: map[string][]byte{}} }

func (m *memMemo) Get(ctx context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.data[key], nil
}

func (m *memMemo) Put(ctx context.Context, key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = value
	return nil
}

func TestSaveLoadRUVRoundTrip(t *testing.T) {
	ctx := context.Background()
	m := newMemMemo()

	r := ruv.New("gen1", 1, "ldap://host1:389")
	c := csn.CSN{Timestamp: 100, Seq: 0, RID: 1, Subseq: 0}
	if err := r.AddCSNInProgress(c); err != nil {
		t.Fatalf("AddCSNInProgress: %v", err)
	}
	if err := r.UpdateRUV(c, "ldap://host1:389", true); err != nil {
		t.Fatalf("UpdateRUV: %v", err)
	}

	if err := SaveRUV(ctx, m, "dc=example,dc=com", r); err != nil {
		t.Fatalf("SaveRUV: %v", err)
	}

	loaded, found, err := LoadRUV(ctx, m, "dc=example,dc=com")
	if err != nil {
		t.Fatalf("LoadRUV: %v", err)
	}
	if !found {
		t.Fatal("expected a saved ruv to be found")
	}
	if loaded.ReplicaGeneration() != "gen1" {
		t.Fatalf("ReplicaGeneration() = %q, want gen1", loaded.ReplicaGeneration())
	}
	if !loaded.Covers(c) {
		t.Fatal("expected loaded ruv to cover the saved csn")
	}
}

func TestLoadRUVNotFound(t *testing.T) {
	ctx := context.Background()
	m := newMemMemo()
	_, found, err := LoadRUV(ctx, m, "dc=example,dc=com")
	if err != nil {
		t.Fatalf("LoadRUV: %v", err)
	}
	if found {
		t.Fatal("expected found=false for a never-saved root")
	}
}

func TestReplicaConfigEncodeDecodeRoundTrip(t *testing.T) {
	cfg := ReplicaConfig{
		Root:       "dc=example,dc=com",
		RID:        7,
		PurgeDelay: 7 * 24 * time.Hour,
		Agreements: []AgreementConfig{
			{Name: "to-consumer-1", Host: "consumer1", Port: 389, TimeoutSeconds: 120},
		},
	}
	data, err := cfg.Encode()
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	got, err := DecodeReplicaConfig(data)
	if err != nil {
		t.Fatalf("DecodeReplicaConfig: %v", err)
	}
	if got.RID != cfg.RID || len(got.Agreements) != 1 || got.Agreements[0].Host != "consumer1" {
		t.Fatalf("got %+v, want %+v", got, cfg)
	}
}

func TestCleanedRIDsAddIsIdempotentAndImmutable(t *testing.T) {
	base := CleanedRIDs{}
	withOne := base.Add(5)
	withTwo := withOne.Add(5)

	if len(base.RIDs) != 0 {
		t.Fatal("Add must not mutate the receiver")
	}
	if len(withTwo.RIDs) != 1 {
		t.Fatalf("expected re-adding the same rid to be a no-op, got %v", withTwo.RIDs)
	}
	if !withTwo.Contains(5) {
		t.Fatal("expected rid 5 to be recorded")
	}
}

func TestDecodeCleanedRIDsEmpty(t *testing.T) {
	got, err := DecodeCleanedRIDs(nil)
	if err != nil {
		t.Fatalf("DecodeCleanedRIDs: %v", err)
	}
	if len(got.RIDs) != 0 {
		t.Fatalf("expected empty record, got %v", got.RIDs)
	}
}
