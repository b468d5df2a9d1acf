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

// Package agreement implements the incremental replication session
// state machine: one per outbound replication agreement, driven by a
// coalesced event word, acquiring a peer replica, comparing RUVs, and
// streaming changelog operations. It is a port of the state table in
// repl5_inc_protocol.c.
package agreement

// A State is one node of the incremental protocol state machine.
type State int

const (
	// Start resets event bits and drops any backoff policy, then
	// dispatches to WaitWindowOpen or ReadyToAcquire depending on the
	// configured schedule window. It does not release the replica or
	// close the peer connection, and there is no linger timer to
	// cancel.
	Start State = iota
	// WaitWindowOpen parks until the schedule window opens or a
	// replicate-now/agreement-change event arrives.
	WaitWindowOpen
	// WaitChanges parks after discovering the peer is already
	// up to date, until a change becomes available or the window
	// closes.
	WaitChanges
	// ReadyToAcquire attempts acquire_replica against the peer.
	ReadyToAcquire
	// BackoffStart picks a backoff duration (fixed for Busy, exponential
	// for TransientError/reinit-required classifications) and starts
	// the backoff timer.
	BackoffStart
	// Backoff parks until the backoff timer expires or a
	// higher-priority event preempts it.
	Backoff
	// SendingUpdates pushes schema if needed, classifies the peer RUV,
	// and streams changelog operations.
	SendingUpdates
	// StopFatalError is a terminal state entered on an unrecoverable
	// error; the agreement will not retry without external
	// intervention.
	StopFatalError
	// StopFatalErrorPart2 is reached after StopFatalError has logged
	// and released the replica; it only accepts AgreementChanged
	// (returning to Start) or ProtocolShutdown.
	StopFatalErrorPart2
	// StopNormalTermination is reached after a clean ProtocolShutdown.
	StopNormalTermination
)

func (s State) String() string {
	switch s {
	case Start:
		return "Start"
	case WaitWindowOpen:
		return "WaitWindowOpen"
	case WaitChanges:
		return "WaitChanges"
	case ReadyToAcquire:
		return "ReadyToAcquire"
	case BackoffStart:
		return "BackoffStart"
	case Backoff:
		return "Backoff"
	case SendingUpdates:
		return "SendingUpdates"
	case StopFatalError:
		return "StopFatalError"
	case StopFatalErrorPart2:
		return "StopFatalErrorPart2"
	case StopNormalTermination:
		return "StopNormalTermination"
	default:
		return "Unknown"
	}
}

// IsTerminal reports whether s is one of the Stop* states: no further
// events are processed once reached, apart from the narrow exception
// documented on StopFatalErrorPart2.
func (s State) IsTerminal() bool {
	return s == StopFatalError || s == StopFatalErrorPart2 || s == StopNormalTermination
}
