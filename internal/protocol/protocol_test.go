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

package protocol

import "testing"

func TestAcquireRequestRoundTrip(t *testing.T) {
	want := AcquireRequest{
		ProtocolOID: NSDS50ReplicationStartOID,
		LocalRUV:    []string{"{replicageneration} 64a1b2c3", "{replica 1 ldap://host:389} 64a1b2c30001000100000000 64a1b2d00000000100000000"},
	}
	data, err := want.Marshal()
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	got, err := UnmarshalAcquireRequest(data)
	if err != nil {
		t.Fatalf("UnmarshalAcquireRequest: %v", err)
	}
	if got.ProtocolOID != want.ProtocolOID {
		t.Fatalf("ProtocolOID = %q, want %q", got.ProtocolOID, want.ProtocolOID)
	}
	if len(got.LocalRUV) != len(want.LocalRUV) {
		t.Fatalf("LocalRUV length = %d, want %d", len(got.LocalRUV), len(want.LocalRUV))
	}
}

func TestAcquireResponseRoundTrip(t *testing.T) {
	want := AcquireResponse{Status: int(ReplicaBusy), PeerRUV: []string{"{replicageneration} abc"}}
	data, err := want.Marshal()
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	got, err := UnmarshalAcquireResponse(data)
	if err != nil {
		t.Fatalf("UnmarshalAcquireResponse: %v", err)
	}
	if got.Status != want.Status {
		t.Fatalf("Status = %d, want %d", got.Status, want.Status)
	}
}

func TestNSDS50ReplUpdateInfoControlRoundTrip(t *testing.T) {
	want := NSDS50ReplUpdateInfoControl{
		UniqueID: "5b326fa1-f6a611ed-8c1ce1c2-3a8f0001",
		CSN:      "64a1b2c30001000100000000",
	}
	data, err := want.Marshal()
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	got, err := UnmarshalNSDS50ReplUpdateInfoControl(data)
	if err != nil {
		t.Fatalf("UnmarshalNSDS50ReplUpdateInfoControl: %v", err)
	}
	if got.UniqueID != want.UniqueID || got.CSN != want.CSN {
		t.Fatalf("got %+v, want %+v", got, want)
	}
}

func TestAcquireStatusString(t *testing.T) {
	cases := map[AcquireStatus]string{
		ReplicaReady:        "ReplicaReady",
		ReplicaBusy:         "ReplicaBusy",
		ConsumerUpToDate:    "ConsumerUpToDate",
		FatalError:          "FatalError",
		GenerationMismatch:  "GenerationMismatch",
		AcquireStatus(99):   "Unknown",
	}
	for status, want := range cases {
		if got := status.String(); got != want {
			t.Errorf("%d.String() = %q, want %q", status, got, want)
		}
	}
}
