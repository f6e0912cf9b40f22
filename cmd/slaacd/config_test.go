// Copyright 2025 The inet6 Authors.
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

package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"inet6.dev/inet6/pkg/ip6"
	"inet6.dev/inet6/pkg/ip6/testutil"
)

func writeConfig(t *testing.T, contents string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "slaacd.toml")
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("WriteFile(%q, _, _): %s", path, err)
	}
	return path
}

func TestLoadConfigDefaults(t *testing.T) {
	c, err := loadConfig("")
	if err != nil {
		t.Fatalf("loadConfig(%q): %s", "", err)
	}

	if got, want := c.LogLevel, "info"; got != want {
		t.Errorf("got LogLevel = %q, want = %q", got, want)
	}
	if got, want := c.WaitTimeout.Duration, 10*time.Second; got != want {
		t.Errorf("got WaitTimeout = %s, want = %s", got, want)
	}
	if got, want := c.Retries, uint64(3); got != want {
		t.Errorf("got Retries = %d, want = %d", got, want)
	}
	if len(c.Interfaces) != 0 {
		t.Errorf("got %d interfaces, want = 0", len(c.Interfaces))
	}
}

func TestLoadConfig(t *testing.T) {
	path := writeConfig(t, `
log_level = "debug"
wait_timeout = "30s"
retries = 5

[[interface]]
name = "tun0"
mac = "0a:00:27:00:00:01"
mtu = 1500

[[interface]]
name = "tun1"
mac = "0a:00:27:00:00:03"

[advertiser]
prefix = "2001:db8:1::/64"
mac = "0a:00:27:00:00:02"
router_lifetime = "45m"
interval = "200s"
`)

	c, err := loadConfig(path)
	if err != nil {
		t.Fatalf("loadConfig(%q): %s", path, err)
	}

	want := &config{
		LogLevel:    "debug",
		WaitTimeout: duration{30 * time.Second},
		Retries:     5,
		Interfaces: []interfaceConfig{
			{Name: "tun0", MAC: "0a:00:27:00:00:01", MTU: 1500},
			{Name: "tun1", MAC: "0a:00:27:00:00:03"},
		},
		Advertiser: advertiserConfig{
			Prefix:         "2001:db8:1::/64",
			MAC:            "0a:00:27:00:00:02",
			RouterLifetime: duration{45 * time.Minute},
			Interval:       duration{200 * time.Second},
		},
	}
	if diff := cmp.Diff(want, c); diff != "" {
		t.Errorf("config mismatch (-want +got):\n%s", diff)
	}
}

func TestLoadConfigBad(t *testing.T) {
	tests := []struct {
		name     string
		contents string
	}{
		{
			name:     "malformed toml",
			contents: `log_level = `,
		},
		{
			name:     "bad duration",
			contents: `wait_timeout = "soon"`,
		},
		{
			name:     "non-positive wait timeout",
			contents: `wait_timeout = "0s"`,
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			path := writeConfig(t, test.contents)
			if _, err := loadConfig(path); err == nil {
				t.Fatal("got loadConfig(_) = nil error, want an error")
			}
		})
	}
}

func TestParsePrefix(t *testing.T) {
	tests := []struct {
		s       string
		want    ip6.AddressWithPrefix
		wantErr bool
	}{
		{
			s: "2001:db8:a:b::/64",
			want: ip6.AddressWithPrefix{
				Address:   testutil.MustParse6("2001:db8:a:b::"),
				PrefixLen: 64,
			},
		},
		{
			// The host bits are masked off.
			s: "2001:db8::1/64",
			want: ip6.AddressWithPrefix{
				Address:   testutil.MustParse6("2001:db8::"),
				PrefixLen: 64,
			},
		},
		{
			s:       "192.0.2.0/24",
			wantErr: true,
		},
		{
			s:       "not-a-prefix",
			wantErr: true,
		},
	}

	for _, test := range tests {
		t.Run(test.s, func(t *testing.T) {
			got, err := parsePrefix(test.s)
			if test.wantErr {
				if err == nil {
					t.Fatalf("got parsePrefix(%q) = (%s, nil), want an error", test.s, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("parsePrefix(%q): %s", test.s, err)
			}
			if diff := cmp.Diff(test.want, got); diff != "" {
				t.Errorf("parsePrefix(%q) mismatch (-want +got):\n%s", test.s, diff)
			}
		})
	}
}
