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
	"encoding/json"
	"time"

	"github.com/pkg/errors"
)

// ReplicaConfig is the persisted configuration of a single local
// replica, named after the nsDS5Replica* / nsds5Replica* attributes of
// the 389-ds replica and replication-agreement config entries.
type ReplicaConfig struct {
	// Root is nsDS5ReplicaRoot: the naming context this replica serves.
	Root string `json:"root"`
	// RID is nsDS5ReplicaId.
	RID uint16 `json:"rid"`
	// PurgeDelay is nsds5ReplicaPurgeDelay. Its JSON value is the
	// time.Duration in nanoseconds.
	PurgeDelay time.Duration `json:"purgeDelaySeconds"`
	// LegacyConsumer is nsds5ReplicaLegacyConsumer.
	LegacyConsumer bool `json:"legacyConsumer"`
	// Agreements lists the outbound replication agreements configured
	// against this replica.
	Agreements []AgreementConfig `json:"agreements"`
}

// AgreementConfig is one outbound replication agreement, named after
// the nsds5Replica* agreement attributes (type_nsds5ReplicaHost and
// siblings).
type AgreementConfig struct {
	// Name identifies the agreement (nsds5ReplicaName equivalent, the
	// agreement entry's cn).
	Name string `json:"name"`
	// Host and Port are nsds5ReplicaHost / nsds5ReplicaPort.
	Host string `json:"host"`
	Port int    `json:"port"`
	// BindDN and Credentials are nsds5ReplicaBindDN /
	// nsds5ReplicaCredentials; Credentials is expected to already be
	// encrypted at rest by the caller, this type does not obscure it.
	BindDN      string `json:"bindDN"`
	Credentials string `json:"credentials"`
	// UpdateSchedule is nsds5ReplicaUpdateSchedule's raw crontab-like
	// string, stored as given; nothing in this module parses it.
	UpdateSchedule string `json:"updateSchedule"`
	// TimeoutSeconds is nsds5ReplicaTimeout.
	TimeoutSeconds int `json:"timeoutSeconds"`
	// BusyWaitSeconds is nsds5ReplicaBusyWaitTime.
	BusyWaitSeconds int `json:"busyWaitSeconds"`
	// PausetimeSeconds is nsds5ReplicaSessionPauseTime.
	PausetimeSeconds int `json:"pausetimeSeconds"`
	// Disabled corresponds to the agreement being administratively
	// disabled (nsds5ReplicaEnabled == "off").
	Disabled bool `json:"disabled"`
}

// Encode serializes c to the bytes stored under ReplicaConfigKey(c.Root).
func (c ReplicaConfig) Encode() ([]byte, error) {
	data, err := json.Marshal(c)
	return data, errors.Wrap(err, "encoding replica config")
}

// DecodeReplicaConfig parses bytes produced by Encode.
func DecodeReplicaConfig(data []byte) (ReplicaConfig, error) {
	var c ReplicaConfig
	if err := json.Unmarshal(data, &c); err != nil {
		return ReplicaConfig{}, errors.Wrap(err, "decoding replica config")
	}
	return c, nil
}

// CleanedRIDs is the persistent record of replica IDs this instance
// has retired via CleanAllRUV: once a RID is recorded here, updates
// that still reference it are rejected rather than silently
// resurrecting a retired origin after a restart.
type CleanedRIDs struct {
	RIDs []uint16 `json:"rids"`
}

// Contains reports whether rid has already been cleaned.
func (c CleanedRIDs) Contains(rid uint16) bool {
	for _, r := range c.RIDs {
		if r == rid {
			return true
		}
	}
	return false
}

// Add returns a copy of c with rid recorded, if it wasn't already.
func (c CleanedRIDs) Add(rid uint16) CleanedRIDs {
	if c.Contains(rid) {
		return c
	}
	out := CleanedRIDs{RIDs: make([]uint16, len(c.RIDs), len(c.RIDs)+1)}
	copy(out.RIDs, c.RIDs)
	out.RIDs = append(out.RIDs, rid)
	return out
}

// Encode serializes c to the bytes stored under CleanedRIDsKey(root).
func (c CleanedRIDs) Encode() ([]byte, error) {
	data, err := json.Marshal(c)
	return data, errors.Wrap(err, "encoding cleaned-rid record")
}

// DecodeCleanedRIDs parses bytes produced by Encode. A nil/empty slice
// decodes to the zero value, matching Memo.Get's "unset key" contract.
func DecodeCleanedRIDs(data []byte) (CleanedRIDs, error) {
	if len(data) == 0 {
		return CleanedRIDs{}, nil
	}
	var c CleanedRIDs
	if err := json.Unmarshal(data, &c); err != nil {
		return CleanedRIDs{}, errors.Wrap(err, "decoding cleaned-rid record")
	}
	return c, nil
}
