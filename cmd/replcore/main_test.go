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

package main

import (
	"context"
	"testing"

	"github.com/389ds/replcore/internal/config"
	"github.com/389ds/replcore/internal/store"
)

func TestLoadOrInitReplicaConfigDefaultsWhenUnset(t *testing.T) {
	memo, err := store.OpenBuntMemo(":memory:")
	if err != nil {
		t.Fatalf("OpenBuntMemo: %v", err)
	}
	defer memo.Close()

	cfg := &config.Config{Root: "dc=example,dc=com", RID: 3}
	replicaCfg, found, err := loadOrInitReplicaConfig(context.Background(), memo, cfg)
	if err != nil {
		t.Fatalf("loadOrInitReplicaConfig: %v", err)
	}
	if found {
		t.Fatal("expected found=false for a fresh store")
	}
	if replicaCfg.RID != 3 || replicaCfg.Root != cfg.Root {
		t.Fatalf("got %+v", replicaCfg)
	}
}

func TestLoadOrInitReplicaConfigReturnsSavedAgreements(t *testing.T) {
	memo, err := store.OpenBuntMemo(":memory:")
	if err != nil {
		t.Fatalf("OpenBuntMemo: %v", err)
	}
	defer memo.Close()

	ctx := context.Background()
	saved := store.ReplicaConfig{
		Root:       "dc=example,dc=com",
		RID:        3,
		Agreements: []store.AgreementConfig{{Name: "to-consumer-1"}},
	}
	data, err := saved.Encode()
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if err := memo.Put(ctx, store.ReplicaConfigKey(saved.Root), data); err != nil {
		t.Fatalf("Put: %v", err)
	}

	cfg := &config.Config{Root: saved.Root, RID: 3}
	replicaCfg, found, err := loadOrInitReplicaConfig(ctx, memo, cfg)
	if err != nil {
		t.Fatalf("loadOrInitReplicaConfig: %v", err)
	}
	if !found {
		t.Fatal("expected found=true")
	}
	if len(replicaCfg.Agreements) != 1 || replicaCfg.Agreements[0].Name != "to-consumer-1" {
		t.Fatalf("got %+v", replicaCfg)
	}
}
