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

package config

import (
	"testing"
	"time"

	"github.com/spf13/pflag"
)

func defaultBoundConfig(t *testing.T) *Config {
	t.Helper()
	c := &Config{}
	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	c.Bind(flags)
	if err := flags.Parse(nil); err != nil {
		t.Fatalf("Parse: %v", err)
	}
	return c
}

func TestPreflightRejectsMissingRoot(t *testing.T) {
	c := defaultBoundConfig(t)
	c.RID = 1
	c.LocalPurl = "ldap://host:389"
	if err := c.Preflight(); err == nil {
		t.Fatal("expected error for missing root")
	}
}

func TestPreflightRejectsReservedRID(t *testing.T) {
	c := defaultBoundConfig(t)
	c.Root = "dc=example,dc=com"
	c.LocalPurl = "ldap://host:389"
	for _, rid := range []uint{0, 0xFFFF} {
		c.RID = rid
		if err := c.Preflight(); err == nil {
			t.Fatalf("expected error for reserved replica id %d", rid)
		}
	}
}

func TestPreflightAcceptsValidConfig(t *testing.T) {
	c := defaultBoundConfig(t)
	c.Root = "dc=example,dc=com"
	c.RID = 7
	c.LocalPurl = "ldap://host:389"
	if err := c.Preflight(); err != nil {
		t.Fatalf("Preflight: %v", err)
	}
}

func TestPreflightRejectsBackoffOrdering(t *testing.T) {
	c := defaultBoundConfig(t)
	c.Root = "dc=example,dc=com"
	c.RID = 7
	c.LocalPurl = "ldap://host:389"
	c.BackoffMin = time.Minute
	c.BackoffMax = time.Second
	if err := c.Preflight(); err == nil {
		t.Fatal("expected error when backoffMax < backoffMin")
	}
}
