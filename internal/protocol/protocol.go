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

// Package protocol carries the peer-facing wire shapes named in
// spec.md §6: the acquire_replica extended-operation request/response,
// the per-update control attached to replayed modify/add/delete/
// modrdn operations, and the OIDs naming the replication operations.
// The total-update per-entry payload is not defined here. These
// structs are data carriers only — entry/attribute semantics are out
// of scope; nothing here interprets an LDAP entry.
//
// Encoded with the standard library's encoding/asn1: no BER/LDAP codec
// library appears anywhere in the retrieved example pack (see
// DESIGN.md), so ASN.1 encoding is the one ambient concern
// intentionally left on the standard library rather than wired to a
// third-party dependency.
package protocol

import "encoding/asn1"

// OID constants for the extended operations and control this package
// encodes, matching the values used throughout
// repl5_protocol_util.c/repl.h.
const (
	// NSDS50ReplicationStartOID begins an incremental replication
	// session.
	NSDS50ReplicationStartOID = "2.16.840.1.113730.3.5.5"
	// NSDS50ReplicationResponseOID is the matching response OID.
	NSDS50ReplicationResponseOID = "2.16.840.1.113730.3.5.6"
	// NSDS71TotalOID begins a total (full re-initialization) update
	// session using the newer 7.1 protocol revision.
	NSDS71TotalOID = "2.16.840.1.113730.3.5.8"
	// NSDS50ReplicationEntryRequestOID requests the next total-update
	// entry from the supplier.
	NSDS50ReplicationEntryRequestOID = "2.16.840.1.113730.3.5.7"
	// NSDS50ReplUpdateInfoControlOID is attached to every replayed
	// modify/add/delete/modrdn operation.
	NSDS50ReplUpdateInfoControlOID = "2.16.840.1.113730.3.4.13"
	// ModRDNExtraModsControlOID carries additional modifications that
	// accompanied a modrdn, per LDAP_CONTROL_REPL_MODRDN_EXTRAMODS.
	ModRDNExtraModsControlOID = "2.16.840.1.113730.3.4.999"
)

// AcquireStatus is the peer's reply to an acquire_replica extended
// operation.
type AcquireStatus int

const (
	ReplicaReady AcquireStatus = iota
	ReplicaBusy
	ConsumerUpToDate
	FatalError
	GenerationMismatch
)

func (s AcquireStatus) String() string {
	switch s {
	case ReplicaReady:
		return "ReplicaReady"
	case ReplicaBusy:
		return "ReplicaBusy"
	case ConsumerUpToDate:
		return "ConsumerUpToDate"
	case FatalError:
		return "FatalError"
	case GenerationMismatch:
		return "GenerationMismatch"
	default:
		return "Unknown"
	}
}

// AcquireRequest is the payload of the acquire_replica extended
// operation: the requester's RUV (serialized text form, per
// ruv.Serialize) plus the protocol OID identifying incremental vs.
// total update.
type AcquireRequest struct {
	ProtocolOID string
	LocalRUV    []string `asn1:"set"`
}

// Marshal encodes r as the BER sequence sent on the wire.
func (r AcquireRequest) Marshal() ([]byte, error) {
	return asn1.Marshal(r)
}

// UnmarshalAcquireRequest decodes bytes produced by Marshal.
func UnmarshalAcquireRequest(data []byte) (AcquireRequest, error) {
	var r AcquireRequest
	_, err := asn1.Unmarshal(data, &r)
	return r, err
}

// AcquireResponse is the peer's reply: its own RUV plus the status
// code classifying whether the session may proceed.
type AcquireResponse struct {
	Status  int
	PeerRUV []string `asn1:"set"`
}

// Marshal encodes resp as the BER sequence sent on the wire.
func (resp AcquireResponse) Marshal() ([]byte, error) {
	return asn1.Marshal(resp)
}

// UnmarshalAcquireResponse decodes bytes produced by Marshal.
func UnmarshalAcquireResponse(data []byte) (AcquireResponse, error) {
	var resp AcquireResponse
	_, err := asn1.Unmarshal(data, &resp)
	return resp, err
}

// NSDS50ReplUpdateInfoControl is attached to every replayed
// modify/add/delete/modrdn operation: a sequence {uniqueid,
// csn-as-string, optional superior-uniqueid, optional
// sequence-of-modrdn-mods}.
type NSDS50ReplUpdateInfoControl struct {
	UniqueID         string
	CSN              string
	SuperiorUniqueID string   `asn1:"optional"`
	ModRDNMods       []string `asn1:"optional,set"`
}

// Marshal encodes c as the BER sequence carried in the control value.
func (c NSDS50ReplUpdateInfoControl) Marshal() ([]byte, error) {
	return asn1.Marshal(c)
}

// UnmarshalNSDS50ReplUpdateInfoControl decodes bytes produced by
// Marshal.
func UnmarshalNSDS50ReplUpdateInfoControl(data []byte) (NSDS50ReplUpdateInfoControl, error) {
	var c NSDS50ReplUpdateInfoControl
	_, err := asn1.Unmarshal(data, &c)
	return c, err
}
