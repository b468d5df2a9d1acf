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

// Package csn implements the Change Sequence Number: a totally
// ordered identifier stamped on every accepted write so that
// multi-master replicas can agree on a global ordering without a
// central coordinator.
package csn

import (
	"fmt"
	"strconv"

	"github.com/pkg/errors"
)

// ReadOnlyReplicaID is the sentinel replica id meaning "read-only /
// no origin".
const ReadOnlyReplicaID uint16 = 0xFFFF

// strSize is the length of the canonical string form: 8 (timestamp) +
// 4 (seq) + 4 (rid) + 8 (subseq) hex digits, always fixed width.
const strSize = 24

// A CSN is a value type: (timestamp seconds, seq, rid, subseq),
// compared lexicographically in that field order. CSNs are immutable
// once created.
type CSN struct {
	Timestamp uint32
	Seq       uint16
	RID       uint16
	Subseq    uint32
}

// Zero is the smallest possible CSN, used as a sentinel "nothing seen
// yet" value.
var Zero = CSN{}

// IsZero reports whether c is the Zero CSN.
func (c CSN) IsZero() bool { return c == Zero }

// Compare returns -1, 0, or 1 according to whether a is less than,
// equal to, or greater than b, comparing fields in declared order:
// timestamp, seq, rid, subseq.
func Compare(a, b CSN) int {
	switch {
	case a.Timestamp != b.Timestamp:
		return cmpUint32(a.Timestamp, b.Timestamp)
	case a.Seq != b.Seq:
		return cmpUint16(a.Seq, b.Seq)
	case a.RID != b.RID:
		return cmpUint16(a.RID, b.RID)
	default:
		return cmpUint32(a.Subseq, b.Subseq)
	}
}

// Less reports whether a sorts strictly before b.
func Less(a, b CSN) bool { return Compare(a, b) < 0 }

func cmpUint32(a, b uint32) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

func cmpUint16(a, b uint16) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

// String renders the canonical form:
// <8 hex timestamp><4 hex seq><4 hex rid><8 hex subseq>.
func (c CSN) String() string {
	return fmt.Sprintf("%08x%04x%04x%08x", c.Timestamp, c.Seq, c.RID, c.Subseq)
}

// Parse decodes the canonical string form produced by String.
func Parse(s string) (CSN, error) {
	if len(s) != strSize {
		return CSN{}, errors.Errorf("csn: bad length %d (want %d): %q", len(s), strSize, s)
	}
	ts, err := strconv.ParseUint(s[0:8], 16, 32)
	if err != nil {
		return CSN{}, errors.Wrapf(err, "csn: bad timestamp in %q", s)
	}
	seq, err := strconv.ParseUint(s[8:12], 16, 16)
	if err != nil {
		return CSN{}, errors.Wrapf(err, "csn: bad seq in %q", s)
	}
	rid, err := strconv.ParseUint(s[12:16], 16, 16)
	if err != nil {
		return CSN{}, errors.Wrapf(err, "csn: bad rid in %q", s)
	}
	subseq, err := strconv.ParseUint(s[16:24], 16, 32)
	if err != nil {
		return CSN{}, errors.Wrapf(err, "csn: bad subseq in %q", s)
	}
	return CSN{
		Timestamp: uint32(ts),
		Seq:       uint16(seq),
		RID:       uint16(rid),
		Subseq:    uint32(subseq),
	}, nil
}

// IsReadOnly reports whether c was stamped by a read-only (no origin)
// replica.
func (c CSN) IsReadOnly() bool { return c.RID == ReadOnlyReplicaID }
