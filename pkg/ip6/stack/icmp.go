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

package stack

import (
	"inet6.dev/inet6/pkg/ip6"
	"inet6.dev/inet6/pkg/ip6/buffer"
	"inet6.dev/inet6/pkg/ip6/header"
)

// handleICMP processes an inbound ICMPv6 payload. iph is the packet's
// IPv6 header; v covers the ICMPv6 header and body.
//
// Router Advertisements are validated as required by RFC 4861 section
// 6.1.2 before any of their content is believed: NDP hop limit, code 0,
// minimum length, link-local source, and well-formed options. A valid
// advertisement carrying an autonomous prefix is handed to NotifyRA;
// everything that fails validation only bumps the Invalid counter.
func (n *NIC) handleICMP(iph header.IPv6, v buffer.View) {
	received := &n.stack.stats.ICMP.V6PacketsReceived
	if len(v) < header.ICMPv6MinimumSize {
		received.Invalid.Increment()
		return
	}

	h := header.ICMPv6(v)
	if h.Checksum() != header.ICMPv6Checksum(h, iph.SourceAddress(), iph.DestinationAddress()) {
		received.Invalid.Increment()
		return
	}

	switch h.Type() {
	case header.ICMPv6RouterSolicit:
		// Hosts receive solicitations on multicast links but have
		// nothing to do with them.
		received.RouterSolicit.Increment()

	case header.ICMPv6RouterAdvert:
		received.RouterAdvert.Increment()

		// NDP messages MUST arrive with the IPv6 hop limit field of
		// 255; anything else implies the packet traversed a router
		// and was not sent by an on-link neighbor.
		if iph.HopLimit() != header.NDPHopLimit {
			received.Invalid.Increment()
			return
		}

		if h.Code() != 0 {
			received.Invalid.Increment()
			return
		}

		if len(v) < header.ICMPv6MinimumSize+header.NDPRAMinimumSize {
			received.Invalid.Increment()
			return
		}

		// Routers send advertisements from their link-local address,
		// as per RFC 4861 section 4.2.
		routerAddr := iph.SourceAddress()
		if !header.IsV6LinkLocalAddress(routerAddr) {
			received.Invalid.Increment()
			return
		}

		ra := header.NDPRouterAdvert(h.MessageBody())
		it, err := ra.Options().Iter(true)
		if err != nil {
			// Options are not valid as per the wire format, so don't
			// believe anything in this advertisement.
			received.Invalid.Increment()
			return
		}

		for {
			opt, done, _ := it.Next()
			if done {
				break
			}

			pi, ok := opt.(header.NDPPrefixInformation)
			if !ok || !pi.AutonomousAddressConfigurationFlag() {
				continue
			}

			// The link-local prefix SHOULD NOT be used for stateless
			// autoconfiguration, as per RFC 4862 section 5.5.3.
			prefix := pi.Prefix()
			if header.IsV6LinkLocalAddress(prefix) {
				continue
			}

			// First autonomous prefix wins; multi-prefix selection is
			// out of scope.
			n.stack.NotifyRA(n.id, routerAddr, ip6.AddressWithPrefix{
				Address:   prefix,
				PrefixLen: int(pi.PrefixLength()),
			})
			break
		}

	default:
		// Other ICMPv6 types (echo, errors, neighbor discovery other
		// than router discovery) are outside this stack's scope.
	}
}
