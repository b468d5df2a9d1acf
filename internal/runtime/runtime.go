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

// Package runtime wires together one process's replication state: the
// local Replica, its RUV persistence, and one agreement.Session per
// configured outbound agreement. It plays the role
// internal/source/logical/provider.go plays for a cdc-sink Loop: the
// Provide* functions here are meant to be composed by Wire, with
// wire_gen.go holding the hand-authored equivalent of `wire gen`'s
// output.
package runtime

import (
	"context"
	"time"

	"github.com/389ds/replcore/internal/agreement"
	"github.com/389ds/replcore/internal/config"
	"github.com/389ds/replcore/internal/csn"
	"github.com/389ds/replcore/internal/replica"
	"github.com/389ds/replcore/internal/store"
	"github.com/389ds/replcore/internal/util/stopper"
	"github.com/google/wire"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// Set is used by Wire.
var Set = wire.NewSet(
	ProvideGenerator,
	ProvideReplica,
	ProvideSessions,
)

// ProvideGenerator returns a CSN generator for cfg's replica id. maxSkew
// of zero means no clock-skew limit is enforced.
func ProvideGenerator(cfg *config.Config) *csn.Generator {
	return csn.NewGenerator(uint16(cfg.RID), 0)
}

// ProvideReplica restores a Replica's RUV from memo if one was saved,
// or starts a fresh one stamped with a newly minted replica generation
// otherwise.
func ProvideReplica(ctx context.Context, cfg *config.Config, memo store.Memo, gen *csn.Generator) (*replica.Replica, error) {
	loaded, found, err := store.LoadRUV(ctx, memo, cfg.Root)
	if err != nil {
		return nil, errors.Wrapf(err, "loading ruv for %s", cfg.Root)
	}

	replGen := replicaGeneration(cfg.RID)
	r := replica.New(cfg.Root, uint16(cfg.RID), cfg.LocalPurl, replGen, gen)
	r.PurgeDelay = cfg.PurgeDelay
	r.ReapInterval = cfg.ReapInterval

	if found {
		r.ReloadRUV(loaded)
		log.WithField("root", cfg.Root).Info("runtime: restored ruv from store")
	} else {
		log.WithField("root", cfg.Root).Info("runtime: starting with a fresh ruv")
	}
	return r, nil
}

// replicaGeneration stamps a new RUV's generation the way
// replica_generate_next_csn stamps the initial nsds50ruv value: the
// canonical string of a CSN carrying the current time and the replica
// id.
func replicaGeneration(rid uint) string {
	now := time.Now().Unix()
	return csn.CSN{Timestamp: uint32(now), RID: uint16(rid)}.String()
}

// ProvideSessions builds one agreement.Session per configured
// agreement, paired with the Dialect the caller supplies for it.
// dialects must have the same length and order as cfg's agreements;
// callers typically build it by opening one connection per
// store.AgreementConfig entry.
func ProvideSessions(replicaCfg store.ReplicaConfig, cfg *config.Config, dialects []agreement.Dialect) ([]*agreement.Session, error) {
	if len(dialects) != len(replicaCfg.Agreements) {
		return nil, errors.Errorf("have %d dialects for %d configured agreements", len(dialects), len(replicaCfg.Agreements))
	}

	sessions := make([]*agreement.Session, len(replicaCfg.Agreements))
	for i, a := range replicaCfg.Agreements {
		sessionCfg := agreement.Config{
			BusyBackoffMinimum:   cfg.BusyBackoffMinimum,
			BusyWaitTime:         secondsOrDefault(a.BusyWaitSeconds, cfg.BusyWaitTime),
			BackoffMin:           cfg.BackoffMin,
			BackoffMax:           cfg.BackoffMax,
			ProtocolTimeout:      secondsOrDefault(a.TimeoutSeconds, cfg.ProtocolTimeout),
			Pausetime:            secondsOrDefault(a.PausetimeSeconds, cfg.Pausetime),
			MaxChangesPerSession: cfg.MaxChangesPerSession,
		}
		sessions[i] = agreement.NewSession(a.Name, dialects[i], sessionCfg)
	}
	return sessions, nil
}

func secondsOrDefault(seconds int, def time.Duration) time.Duration {
	if seconds <= 0 {
		return def
	}
	return time.Duration(seconds) * time.Second
}

// RUVPersister periodically flushes a Replica's RUV to a Memo, the
// rough analogue of the source's periodic nsds50ruv attribute
// replacement.
type RUVPersister struct {
	Replica  *replica.Replica
	Memo     store.Memo
	Interval time.Duration
}

// Run flushes on Interval until ctx is stopped, and once more on the
// way out so a clean shutdown never loses the last interval's changes.
func (p *RUVPersister) Run(ctx *stopper.Context) {
	interval := p.Interval
	if interval <= 0 {
		interval = 5 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			p.flush(ctx)
		case <-ctx.Stopping():
			p.flush(ctx)
			return
		}
	}
}

func (p *RUVPersister) flush(ctx context.Context) {
	if err := store.SaveRUV(ctx, p.Memo, p.Replica.Root, p.Replica.RUV); err != nil {
		log.WithFields(log.Fields{"root": p.Replica.Root, "err": err}).Warn("runtime: failed to persist ruv")
	}
}

// A Runtime is everything one configured replica needs supervised: its
// outbound agreements, its periodic RUV flush, and its tombstone
// reaper.
type Runtime struct {
	Replica   *replica.Replica
	Sessions  []*agreement.Session
	Persister *RUVPersister
	Reaper    *replica.TombstoneReaper
	Generator *csn.Generator
}

// Run launches every supervised goroutine under ctx and returns once
// they have all been started; it does not block for their completion,
// matching stopper.Context's own fire-and-supervise model.
func (rt *Runtime) Run(ctx *stopper.Context) {
	ctx.Go(func() error {
		rt.Persister.Run(ctx)
		return nil
	})
	ctx.Go(func() error {
		rt.Reaper.Run(ctx)
		return nil
	})
	for _, sess := range rt.Sessions {
		sess := sess
		ctx.Go(func() error {
			return sess.Run(ctx)
		})
	}
}
