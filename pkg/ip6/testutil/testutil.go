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

// Package testutil provides helper functions for inet6 unit tests.
package testutil

import (
	"fmt"
	"net"
	"strconv"
	"strings"

	"inet6.dev/inet6/pkg/ip6"
)

// MustParse6 parses an IPv6 string (e.g. "fe80::1") into an ip6.Address.
// It panics if the string is not a valid IPv6 address, so it is intended
// for test literals only.
func MustParse6(addr string) ip6.Address {
	ip := net.ParseIP(addr).To16()
	if ip == nil {
		panic(fmt.Sprintf("MustParse6 was passed malformed address %q", addr))
	}
	return ip6.Address(ip)
}

// MustParseLink parses an IEEE 802 address string (e.g.
// "02:03:04:05:06:07") into an ip6.LinkAddress, panicking on malformed
// input.
func MustParseLink(addr string) ip6.LinkAddress {
	linkAddr, err := ip6.ParseMACAddress(addr)
	if err != nil {
		panic(fmt.Sprintf("MustParseLink was passed malformed address %q: %s", addr, err))
	}
	return linkAddr
}

// MustParsePrefix parses an IPv6 CIDR string (e.g. "2001:db8::/64") into
// an ip6.AddressWithPrefix, panicking on malformed input.
func MustParsePrefix(prefix string) ip6.AddressWithPrefix {
	addr, lenStr, ok := strings.Cut(prefix, "/")
	if !ok {
		panic(fmt.Sprintf("MustParsePrefix was passed malformed prefix %q", prefix))
	}
	length, err := strconv.Atoi(lenStr)
	if err != nil || length < 0 || length > 128 {
		panic(fmt.Sprintf("MustParsePrefix was passed malformed prefix length %q", prefix))
	}
	return ip6.AddressWithPrefix{
		Address:   MustParse6(addr),
		PrefixLen: length,
	}
}
