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

// Command replcore runs the causal-ordering core of a replicated
// directory instance: one Replica and its configured outbound
// Agreements, persisted to a local buntdb file.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/389ds/replcore/internal/agreement"
	"github.com/389ds/replcore/internal/changelog"
	"github.com/389ds/replcore/internal/config"
	"github.com/389ds/replcore/internal/csn"
	"github.com/389ds/replcore/internal/runtime"
	"github.com/389ds/replcore/internal/ruv"
	"github.com/389ds/replcore/internal/store"
	"github.com/389ds/replcore/internal/util/stopper"
	"github.com/fatih/color"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/pflag"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, color.RedString("replcore: %v", err))
		os.Exit(1)
	}
}

func run() error {
	cfg := &config.Config{}
	dbPath := pflag.String("storePath", "replcore.db", "path to the buntdb file backing RUV and config persistence")
	logLevel := pflag.String("logLevel", "info", "logrus level: trace, debug, info, warn, error")
	cfg.Bind(pflag.CommandLine)
	pflag.Parse()

	level, err := log.ParseLevel(*logLevel)
	if err != nil {
		return errors.Wrap(err, "parsing logLevel")
	}
	log.SetLevel(level)
	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})

	if err := cfg.Preflight(); err != nil {
		return errors.Wrap(err, "invalid configuration")
	}

	memo, err := store.OpenBuntMemo(*dbPath)
	if err != nil {
		return err
	}
	defer memo.Close()

	ctx := context.Background()

	replicaCfg, found, err := loadOrInitReplicaConfig(ctx, memo, cfg)
	if err != nil {
		return err
	}
	if !found {
		log.WithField("root", cfg.Root).Info("replcore: no stored agreements found; starting with none configured")
	}

	dialects := make([]agreement.Dialect, len(replicaCfg.Agreements))
	for i, a := range replicaCfg.Agreements {
		dialects[i] = &unconfiguredDialect{name: a.Name}
	}

	deleteTombstones := func(ctx context.Context, olderThan csn.CSN) (int, error) {
		// No durable entry store is wired in this command yet; the
		// reaper runs but has nothing to delete until one is.
		return 0, nil
	}

	rt, err := runtime.ProvideRuntime(ctx, cfg, memo, replicaCfg, dialects, deleteTombstones)
	if err != nil {
		return errors.Wrap(err, "assembling runtime")
	}

	stopCtx := stopper.WithContext(ctx)
	rt.Run(stopCtx)

	color.Green("replcore: serving %s as replica %d with %d agreement(s)", cfg.Root, cfg.RID, len(rt.Sessions))

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	<-sig

	log.Info("replcore: shutting down")
	if !stopCtx.Stop(1200 * time.Second) {
		return errors.New("replcore: graceful shutdown timed out")
	}
	return nil
}

func loadOrInitReplicaConfig(ctx context.Context, memo store.Memo, cfg *config.Config) (store.ReplicaConfig, bool, error) {
	data, err := memo.Get(ctx, store.ReplicaConfigKey(cfg.Root))
	if err != nil {
		return store.ReplicaConfig{}, false, errors.Wrap(err, "loading replica config")
	}
	if len(data) == 0 {
		return store.ReplicaConfig{Root: cfg.Root, RID: uint16(cfg.RID), PurgeDelay: cfg.PurgeDelay}, false, nil
	}
	replicaCfg, err := store.DecodeReplicaConfig(data)
	if err != nil {
		return store.ReplicaConfig{}, false, errors.Wrap(err, "decoding replica config")
	}
	return replicaCfg, true, nil
}

// unconfiguredDialect satisfies agreement.Dialect for an agreement
// whose peer connection has not been wired up yet; every call reports
// a fatal error rather than silently doing nothing, so a misconfigured
// deployment fails loudly instead of spinning.
type unconfiguredDialect struct{ name string }

func (d *unconfiguredDialect) AcquireReplica(ctx context.Context) agreement.AcquireResult {
	return agreement.AcquireResult{
		Outcome: agreement.AcquireFatalError,
		Err:     errors.Errorf("agreement %q has no peer transport configured", d.name),
	}
}
func (d *unconfiguredDialect) ReleaseReplica(ctx context.Context) {}
func (d *unconfiguredDialect) PushSchemaIfNeeded(ctx context.Context) (bool, error) {
	return false, nil
}
func (d *unconfiguredDialect) ExamineUpdateVector(ctx context.Context, peerRUV *ruv.Ruv) (agreement.ExamineOutcome, error) {
	return agreement.ExamineOK, nil
}
func (d *unconfiguredDialect) OpenReplayIterator(ctx context.Context, peerRUV *ruv.Ruv) (changelog.Iterator, error) {
	return nil, errors.Errorf("agreement %q has no changelog source configured", d.name)
}
func (d *unconfiguredDialect) SendOperation(ctx context.Context, op changelog.Operation) error {
	return errors.Errorf("agreement %q has no peer transport configured", d.name)
}
