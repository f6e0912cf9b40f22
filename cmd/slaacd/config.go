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
	"fmt"
	"net"
	"time"

	"github.com/BurntSushi/toml"

	"inet6.dev/inet6/pkg/ip6"
)

// duration is a time.Duration that decodes from TOML strings like
// "30s".
type duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

// interfaceConfig describes one interface slaacd should autoconfigure.
type interfaceConfig struct {
	// Name is the TUN device name, and the name waiters match
	// advertisements on.
	Name string `toml:"name"`

	// MAC is the link address used to derive the interface identifier.
	MAC string `toml:"mac"`

	// MTU overrides the device MTU when non-zero.
	MTU uint32 `toml:"mtu"`
}

// advertiserConfig configures the in-process router of demo mode.
type advertiserConfig struct {
	// Prefix is the advertised autonomous prefix in CIDR form.
	Prefix string `toml:"prefix"`

	// MAC is the router's link address.
	MAC string `toml:"mac"`

	RouterLifetime    duration `toml:"router_lifetime"`
	ValidLifetime     duration `toml:"valid_lifetime"`
	PreferredLifetime duration `toml:"preferred_lifetime"`

	// Interval between unsolicited advertisements; zero disables them.
	Interval duration `toml:"interval"`
}

// config is the TOML configuration for slaacd.
type config struct {
	// LogLevel is a logrus level name ("debug", "info", ...).
	LogLevel string `toml:"log_level"`

	// WaitTimeout bounds each wait for a Router Advertisement.
	WaitTimeout duration `toml:"wait_timeout"`

	// Retries is the number of additional autoconfiguration attempts
	// after a timeout.
	Retries uint64 `toml:"retries"`

	Interfaces []interfaceConfig `toml:"interface"`
	Advertiser advertiserConfig  `toml:"advertiser"`
}

// defaultConfig returns the configuration used when no file is given:
// demo-friendly values and no interfaces.
func defaultConfig() *config {
	return &config{
		LogLevel:    "info",
		WaitTimeout: duration{10 * time.Second},
		Retries:     3,
		Advertiser: advertiserConfig{
			Prefix: "2001:db8:a:b::/64",
			MAC:    "0a:00:27:00:00:02",
		},
	}
}

// loadConfig loads the slaacd configuration from path, filling defaults
// for unset fields.
func loadConfig(path string) (*config, error) {
	c := defaultConfig()
	if path == "" {
		return c, nil
	}
	if _, err := toml.DecodeFile(path, c); err != nil {
		return nil, fmt.Errorf("decode config %q: %w", path, err)
	}
	if c.WaitTimeout.Duration <= 0 {
		return nil, fmt.Errorf("config %q: wait_timeout must be positive", path)
	}
	return c, nil
}

// parsePrefix parses an IPv6 CIDR string into an ip6.AddressWithPrefix.
func parsePrefix(s string) (ip6.AddressWithPrefix, error) {
	_, ipnet, err := net.ParseCIDR(s)
	if err != nil {
		return ip6.AddressWithPrefix{}, fmt.Errorf("parse prefix %q: %w", s, err)
	}
	ip := ipnet.IP.To16()
	if ip == nil || ip.To4() != nil {
		return ip6.AddressWithPrefix{}, fmt.Errorf("prefix %q is not IPv6", s)
	}
	ones, _ := ipnet.Mask.Size()
	return ip6.AddressWithPrefix{
		Address:   ip6.Address(ip),
		PrefixLen: ones,
	}, nil
}
