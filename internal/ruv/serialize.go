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

package ruv

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/389ds/replcore/internal/csn"
	"github.com/pkg/errors"
)

// Text encoding, a port of the nsds50ruv attribute value syntax
// documented atop repl5_ruv.c:
//
//	{replicageneration} <gen>
//	{replica <rid>[ <purl>]} <mincsn> <maxcsn> <lastModified>
//
// One line per value; Serialize emits the generation line first,
// followed by one replica line per element in stored order.
const (
	prefixGeneration = "{replicageneration}"
	prefixReplica    = "{replica "
)

// Serialize renders r as a slice of attribute values in the nsds50ruv
// text format, suitable for storing as a multi-valued directory
// attribute.
func (r *Ruv) Serialize() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]string, 0, len(r.elements)+1)
	out = append(out, fmt.Sprintf("%s %s", prefixGeneration, r.replGen))

	for _, e := range r.elements {
		var label string
		if e.Purl != "" {
			label = fmt.Sprintf("%s%d %s}", prefixReplica, e.RID, e.Purl)
		} else {
			label = fmt.Sprintf("%s%d}", prefixReplica, e.RID)
		}
		if e.MaxCSN.IsZero() && e.MinCSN.IsZero() {
			out = append(out, label)
			continue
		}
		out = append(out, fmt.Sprintf("%s %s %s %x", label, e.MinCSN, e.MaxCSN, e.LastModified.Unix()))
	}
	return out
}

// Deserialize parses the nsds50ruv text form produced by Serialize
// back into a Ruv. It returns ErrBadFormat if no replicageneration
// line is present, mirroring ruv_init_from_slapi_attr's rejection of
// an attribute lacking that value.
func Deserialize(values []string) (*Ruv, error) {
	r := &Ruv{byRID: map[uint16]*Element{}, cleaned: map[uint16]bool{}}

	sawGeneration := false
	for _, v := range values {
		v = strings.TrimSpace(v)
		switch {
		case strings.HasPrefix(v, prefixGeneration):
			r.replGen = strings.TrimSpace(strings.TrimPrefix(v, prefixGeneration))
			sawGeneration = true
		case strings.HasPrefix(v, prefixReplica):
			e, err := parseReplicaLine(v)
			if err != nil {
				return nil, err
			}
			r.elements = append(r.elements, e)
			r.byRID[e.RID] = e
		default:
			return nil, errors.Wrapf(ErrBadFormat, "unrecognized ruv value %q", v)
		}
	}
	if !sawGeneration {
		return nil, errors.Wrap(ErrBadFormat, "missing replicageneration")
	}
	return r, nil
}

func parseReplicaLine(v string) (*Element, error) {
	end := strings.IndexByte(v, '}')
	if end < 0 || !strings.HasPrefix(v, prefixReplica) {
		return nil, errors.Wrapf(ErrBadFormat, "malformed replica label %q", v)
	}
	label := v[len(prefixReplica):end]
	rest := strings.TrimSpace(v[end+1:])

	var ridStr, purl string
	if sp := strings.IndexByte(label, ' '); sp >= 0 {
		ridStr, purl = label[:sp], label[sp+1:]
	} else {
		ridStr = label
	}
	rid64, err := strconv.ParseUint(ridStr, 10, 16)
	if err != nil {
		return nil, errors.Wrapf(ErrBadFormat, "bad replica id %q", ridStr)
	}
	e := newElement(uint16(rid64), purl)
	if rest == "" {
		return e, nil
	}

	fields := strings.Fields(rest)
	if len(fields) < 2 {
		return nil, errors.Wrapf(ErrBadFormat, "expected mincsn/maxcsn in %q", v)
	}
	min, err := csn.Parse(fields[0])
	if err != nil {
		return nil, errors.Wrapf(ErrBadFormat, "bad mincsn in %q: %v", v, err)
	}
	max, err := csn.Parse(fields[1])
	if err != nil {
		return nil, errors.Wrapf(ErrBadFormat, "bad maxcsn in %q: %v", v, err)
	}
	e.MinCSN, e.MaxCSN = min, max

	if len(fields) >= 3 {
		secs, err := strconv.ParseUint(fields[2], 16, 64)
		if err != nil {
			return nil, errors.Wrapf(ErrBadFormat, "bad lastModified in %q: %v", v, err)
		}
		e.LastModified = time.Unix(int64(secs), 0).UTC()
	}
	return e, nil
}
