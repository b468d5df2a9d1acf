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
	"time"

	"github.com/389ds/replcore/internal/csn"
	"github.com/389ds/replcore/internal/pending"
)

// An Element is the per-origin summary kept inside a RUV: the
// earliest CSN ever seen from RID (MinCSN), the greatest committed
// CSN from RID (MaxCSN), the partial URL identifying the origin, and
// when it was last updated. csnpl tracks CSNs from this origin that
// have been accepted but not yet rolled up into MaxCSN; it is the
// acceptor-side analogue of the local replica's min_csn_pl.
type Element struct {
	RID          uint16
	Purl         string
	MinCSN       csn.CSN
	MaxCSN       csn.CSN
	LastModified time.Time

	csnpl *pending.List
}

func newElement(rid uint16, purl string) *Element {
	return &Element{RID: rid, Purl: purl, csnpl: pending.New()}
}

// clone returns a value copy suitable for exposing outside the RUV's
// lock; the per-origin pending list is intentionally not copied since
// callers outside the package never need to observe it directly.
func (e *Element) clone() Element {
	return Element{
		RID:          e.RID,
		Purl:         e.Purl,
		MinCSN:       e.MinCSN,
		MaxCSN:       e.MaxCSN,
		LastModified: e.LastModified,
	}
}
