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
	"bufio"
	"bytes"
	"context"
	"strings"

	"github.com/389ds/replcore/internal/ruv"
	"github.com/pkg/errors"
)

// SaveRUV flushes r's serialized text form (one nsds50ruv value per
// line) to m under RUVKey(root).
func SaveRUV(ctx context.Context, m Memo, root string, r *ruv.Ruv) error {
	lines := r.Serialize()
	var buf bytes.Buffer
	for _, line := range lines {
		buf.WriteString(line)
		buf.WriteByte('\n')
	}
	return errors.Wrap(m.Put(ctx, RUVKey(root), buf.Bytes()), "saving ruv")
}

// LoadRUV reconstructs the RUV previously saved for root. It returns
// (nil, false, nil) if no RUV has been saved yet, so the caller can
// tell "never persisted" apart from a parse failure.
func LoadRUV(ctx context.Context, m Memo, root string) (r *ruv.Ruv, found bool, err error) {
	data, err := m.Get(ctx, RUVKey(root))
	if err != nil {
		return nil, false, errors.Wrap(err, "loading ruv")
	}
	if len(data) == 0 {
		return nil, false, nil
	}

	var lines []string
	scanner := bufio.NewScanner(bytes.NewReader(data))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		lines = append(lines, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, false, errors.Wrap(err, "scanning stored ruv")
	}

	parsed, err := ruv.Deserialize(lines)
	if err != nil {
		return nil, false, errors.Wrap(err, "parsing stored ruv")
	}
	return parsed, true, nil
}
