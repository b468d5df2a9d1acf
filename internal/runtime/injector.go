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

//go:build wireinject
// +build wireinject

package runtime

import (
	"context"

	"github.com/389ds/replcore/internal/agreement"
	"github.com/389ds/replcore/internal/config"
	"github.com/389ds/replcore/internal/csn"
	"github.com/389ds/replcore/internal/store"
	"github.com/google/wire"
)

// ProvideRuntime is the injector wire_gen.go was generated from; see
// that file for the maintained equivalent.
func ProvideRuntime(
	ctx context.Context,
	cfg *config.Config,
	memo store.Memo,
	replicaCfg store.ReplicaConfig,
	dialects []agreement.Dialect,
	deleteTombstones func(ctx context.Context, olderThan csn.CSN) (int, error),
) (*Runtime, error) {
	panic(wire.Build(Set))
}
