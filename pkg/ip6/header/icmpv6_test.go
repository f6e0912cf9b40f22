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

package header_test

import (
	"bytes"
	"net"
	"testing"

	"golang.org/x/net/icmp"
	xnetipv6 "golang.org/x/net/ipv6"
	"inet6.dev/inet6/pkg/ip6"
	"inet6.dev/inet6/pkg/ip6/header"
)

func TestICMPv6FieldAccess(t *testing.T) {
	b := make([]byte, header.ICMPv6MinimumSize+4)
	h := header.ICMPv6(b)

	h.SetType(header.ICMPv6RouterAdvert)
	if got := h.Type(); got != header.ICMPv6RouterAdvert {
		t.Errorf("got h.Type() = %d, want = %d", got, header.ICMPv6RouterAdvert)
	}

	h.SetCode(5)
	if got := h.Code(); got != 5 {
		t.Errorf("got h.Code() = %d, want = 5", got)
	}

	h.SetChecksum(0xbeef)
	if got := h.Checksum(); got != 0xbeef {
		t.Errorf("got h.Checksum() = %#x, want = 0xbeef", got)
	}

	if got, want := len(h.MessageBody()), 4; got != want {
		t.Errorf("got len(h.MessageBody()) = %d, want = %d", got, want)
	}
}

// TestICMPv6ChecksumInterop checks the ICMPv6 checksum computation
// against the golang.org/x/net/icmp implementation, which computes the
// same checksum from an IPv6 pseudo header independently.
func TestICMPv6ChecksumInterop(t *testing.T) {
	src := ip6.Address("\xfe\x80\x00\x00\x00\x00\x00\x00\x00\x02\x03\xff\xfe\x04\x05\x06")
	dst := header.IPv6AllRoutersMulticastAddress

	tests := []struct {
		name     string
		typ      header.ICMPv6Type
		xnetType icmp.Type
		body     []byte
	}{
		{
			name:     "RouterSolicit",
			typ:      header.ICMPv6RouterSolicit,
			xnetType: xnetipv6.ICMPTypeRouterSolicitation,
			body: []byte{
				0, 0, 0, 0,
				1, 1, 2, 3, 4, 5, 6, 7,
			},
		},
		{
			name:     "RouterAdvert",
			typ:      header.ICMPv6RouterAdvert,
			xnetType: xnetipv6.ICMPTypeRouterAdvertisement,
			body: []byte{
				64, 0, 7, 8,
				0, 0, 0, 0,
				0, 0, 0, 0,

				3, 4, 64, 192,
				0, 0, 14, 16,
				0, 0, 3, 132,
				0, 0, 0, 0,
				32, 1, 13, 184,
				0, 0, 0, 0,
				0, 0, 0, 0,
				0, 0, 0, 0,
			},
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			pkt := make([]byte, header.ICMPv6MinimumSize+len(test.body))
			h := header.ICMPv6(pkt)
			h.SetType(test.typ)
			copy(h.MessageBody(), test.body)
			h.SetChecksum(header.ICMPv6Checksum(h, src, dst))

			m := icmp.Message{
				Type: test.xnetType,
				Code: 0,
				Body: &icmp.RawBody{Data: test.body},
			}
			want, err := m.Marshal(icmp.IPv6PseudoHeader(net.IP([]byte(src)), net.IP([]byte(dst))))
			if err != nil {
				t.Fatalf("got Marshal = (_, %s), want = (_, nil)", err)
			}

			if !bytes.Equal(pkt, want) {
				t.Fatalf("wire encoding mismatch:\ngot  = %x\nwant = %x", pkt, want)
			}

			parsed, err := icmp.ParseMessage(int(header.ICMPv6ProtocolNumber), pkt)
			if err != nil {
				t.Fatalf("got ParseMessage = (_, %s), want = (_, nil)", err)
			}
			if parsed.Type != test.xnetType {
				t.Errorf("got parsed.Type = %v, want = %v", parsed.Type, test.xnetType)
			}
			if got, want := parsed.Checksum, int(h.Checksum()); got != want {
				t.Errorf("got parsed.Checksum = %#x, want = %#x", got, want)
			}
		})
	}
}
