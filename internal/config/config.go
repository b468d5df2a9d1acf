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

// Package config binds the user-visible tunables named in spec.md §6
// "Defaults" to command-line flags, following the Bind/Preflight shape
// used throughout the example pack's configuration types.
package config

import (
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/pflag"
)

// Config is the top-level, process-wide replication configuration: the
// tunables shared by every local Replica and its outbound Agreements.
// Per-agreement overrides (schedule windows, peer URLs) are not
// represented here; they are supplied by the store's replica
// configuration entries (internal/store).
type Config struct {
	// Root is the suffix (naming context) this replica instance serves,
	// e.g. "dc=example,dc=com".
	Root string

	// RID is this instance's replica ID, 1-65534 (0 is invalid and
	// 65535 is csn.ReadOnlyReplicaID).
	RID uint

	// LocalPurl is this instance's own partial URL, recorded into its
	// own RUV element.
	LocalPurl string

	PurgeDelay   time.Duration
	ReapInterval time.Duration

	BusyBackoffMinimum time.Duration
	BusyWaitTime       time.Duration
	BackoffMin         time.Duration
	BackoffMax         time.Duration
	ProtocolTimeout    time.Duration
	Pausetime          time.Duration

	MaxChangesPerSession  int
	MaxWaitBetweenSession time.Duration
	RUVSaveInterval       time.Duration
}

// Bind registers the configuration's flags, following the naming and
// default-value conventions of server.Config.Bind.
func (c *Config) Bind(flags *pflag.FlagSet) {
	flags.StringVar(&c.Root, "root", "", "the naming context this replica serves")
	flags.UintVar(&c.RID, "replicaID", 0, "this instance's replica ID (1-65534)")
	flags.StringVar(&c.LocalPurl, "localPurl", "", "this instance's own partial URL")

	flags.DurationVar(&c.PurgeDelay, "purgeDelay", 7*24*time.Hour,
		"how far behind the largest max_csn in the RUV a tombstone must be before it is purged")
	flags.DurationVar(&c.ReapInterval, "reapInterval", time.Hour,
		"how often the tombstone reaper sweeps for purgeable entries")

	flags.DurationVar(&c.BusyBackoffMinimum, "busyBackoffMinimum", time.Second,
		"the minimum backoff applied when a peer reports ReplicaBusy")
	flags.DurationVar(&c.BusyWaitTime, "busyWaitTime", 3*time.Minute,
		"ceiling on the busy backoff before the session gives up and retries from scratch")
	flags.DurationVar(&c.BackoffMin, "backoffMin", 3*time.Second,
		"the minimum exponential backoff applied on a transient protocol error")
	flags.DurationVar(&c.BackoffMax, "backoffMax", 5*time.Minute,
		"the maximum exponential backoff applied on a transient protocol error")
	flags.DurationVar(&c.ProtocolTimeout, "protocolTimeout", 2*time.Minute,
		"timeout for one SendingUpdates pass streaming changes to a peer, and for each poll of the peer's outstanding results")
	flags.DurationVar(&c.Pausetime, "pausetime", 0,
		"delay inserted after draining the changelog before re-entering WaitChanges")

	flags.IntVar(&c.MaxChangesPerSession, "maxChangesPerSession", 0,
		"if positive, the most operations the sender may have awaiting the peer's result when results are reported asynchronously")
	flags.DurationVar(&c.MaxWaitBetweenSession, "maxWaitBetweenSessions", 5*time.Minute,
		"not read by the agreement sessions; WaitChanges sleeps until an event arrives")
	flags.DurationVar(&c.RUVSaveInterval, "ruvSaveInterval", 5*time.Second,
		"how often the in-memory RUV is flushed to the store")
}

// Preflight validates the configuration and fills in any
// interdependent defaults, following the pattern of
// server.Config.Preflight and logical's BaseConfig.Preflight.
func (c *Config) Preflight() error {
	if c.Root == "" {
		return errors.New("root unset")
	}
	if c.RID == 0 || c.RID >= 0xFFFF {
		return errors.Errorf("replicaID %d out of range (1-65534)", c.RID)
	}
	if c.LocalPurl == "" {
		return errors.New("localPurl unset")
	}
	if c.PurgeDelay < 0 {
		return errors.New("purgeDelay must not be negative")
	}
	if c.ReapInterval <= 0 {
		return errors.New("reapInterval must be positive")
	}
	if c.BusyWaitTime <= 0 {
		return errors.New("busyWaitTime must be positive")
	}
	if c.BackoffMin <= 0 || c.BackoffMax < c.BackoffMin {
		return errors.New("backoffMin must be positive and no greater than backoffMax")
	}
	if c.MaxChangesPerSession < 0 {
		return errors.New("maxChangesPerSession must not be negative")
	}
	return nil
}
