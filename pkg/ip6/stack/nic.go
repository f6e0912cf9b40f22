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

// linkAddressSize is the size, in bytes, of the IEEE 802 link addresses
// the stack can derive interface identifiers from.
const linkAddressSize = 6

// NIC represents a network interface card to which the stack is
// attached. It implements NetworkDispatcher for its link endpoint.
type NIC struct {
	stack *Stack
	id    ip6.NICID
	name  string

	// nameKey is the fixed-size, truncated form of name that Router
	// Advertisement waiters match on.
	nameKey [nicNameSize]byte

	linkEP LinkEndpoint

	// The fields below hold the NIC's address state and are guarded by
	// the stack's serialization lock.

	// linkLocal is the NIC's link-local address, derived from the link
	// endpoint's address on first use. Empty until then.
	linkLocal ip6.Address

	// addr is the NIC's current address. It starts as the link-local
	// address; applying a Router Advertisement merges the advertised
	// prefix into its leading words.
	addr ip6.Address

	// netmask is the netmask that arrived with the last applied prefix.
	netmask ip6.AddressMask

	// router is the default router learned from the last applied Router
	// Advertisement.
	router ip6.Address
}

func newNIC(s *Stack, id ip6.NICID, name string, ep LinkEndpoint) *NIC {
	return &NIC{
		stack:   s,
		id:      id,
		name:    name,
		nameKey: nicNameKey(name),
		linkEP:  ep,
	}
}

// ID returns the identifier of n.
func (n *NIC) ID() ip6.NICID {
	return n.id
}

// Name returns the name of n.
func (n *NIC) Name() string {
	return n.name
}

// ensureLinkLocalLocked derives the NIC's link-local address from its
// link endpoint's address if it has not been derived yet. The NIC
// address starts out as the link-local address so that the interface
// identifier in its trailing words survives prefix merges.
//
// Precondition: the stack's serialization lock is held.
func (n *NIC) ensureLinkLocalLocked() *ip6.Error {
	if n.linkLocal != "" {
		return nil
	}

	linkAddr := n.linkEP.LinkAddress()
	if len(linkAddr) != linkAddressSize {
		return ip6.ErrBadLinkAddress
	}

	n.linkLocal = header.LinkLocalAddr(linkAddr)
	n.addr = n.linkLocal
	n.netmask = ip6.MaskFromPrefix(64)
	return nil
}

// applyRouterAdvertLocked applies a received router address, prefix and
// prefix length to the NIC's address state:
//
//  1. preflen is clamped to 128 bits.
//  2. The netmask becomes a mask of preflen leading one bits.
//  3. The advertised prefix replaces the network bits of the NIC
//     address while the host bits are preserved, across all but the
//     last 16-bit word of the address; the last word always keeps its
//     interface-identifier bits.
//  4. router is stored verbatim as the NIC's default router.
//
// The merge is idempotent: applying the same advertisement again yields
// the same address and mask.
//
// Precondition: the stack's serialization lock is held, so no
// concurrently transmitted packet can observe a half-updated address.
// Incoming packet classification depends only on link-layer filtering
// and is unaffected by a mid-update address.
func (n *NIC) applyRouterAdvertLocked(router, prefix ip6.Address, preflen int) {
	mask := ip6.MaskFromPrefix(preflen)

	var addr [ip6.AddressSize]byte
	copy(addr[:], n.addr)
	for i := 0; i < ip6.AddressSize-2 && i < len(prefix); i++ {
		addr[i] = addr[i]&^mask[i] | prefix[i]&mask[i]
	}

	n.addr = ip6.Address(addr[:])
	n.netmask = mask
	n.router = router
}

// sendRouterSolicitLocked builds and transmits one Router Solicitation
// to the all-routers multicast group. The source is the NIC's
// link-local address when one has been derived and the unspecified
// address otherwise; a source link-layer address option is included
// only when the source is specified, as required by RFC 4861 section
// 4.1.
//
// Precondition: the stack's serialization lock is held.
func (n *NIC) sendRouterSolicitLocked() *ip6.Error {
	sent := &n.stack.stats.ICMP.V6PacketsSent
	if !n.stack.AllowICMPMessage() {
		sent.Dropped.Increment()
		return ip6.ErrRateLimited
	}

	src := header.IPv6Any
	if n.linkLocal != "" {
		src = n.linkLocal
	}

	var optsSerializer header.NDPOptionsSerializer
	if linkAddr := n.linkEP.LinkAddress(); src != header.IPv6Any && len(linkAddr) == linkAddressSize {
		optsSerializer = header.NDPOptionsSerializer{
			header.NDPSourceLinkLayerAddressOption(linkAddr),
		}
	}

	payloadSize := header.ICMPv6MinimumSize + header.NDPRSMinimumSize + optsSerializer.Length()
	if payloadSize+header.IPv6MinimumSize > int(n.linkEP.MTU()) {
		sent.Dropped.Increment()
		return ip6.ErrMessageTooLong
	}

	hdr := buffer.NewPrependable(int(n.linkEP.MaxHeaderLength()) + header.IPv6MinimumSize + payloadSize)
	pkt := header.ICMPv6(hdr.Prepend(payloadSize))
	pkt.SetType(header.ICMPv6RouterSolicit)
	rs := header.NDPRouterSolicit(pkt.MessageBody())
	rs.Options().Serialize(optsSerializer)
	pkt.SetChecksum(header.ICMPv6Checksum(pkt, src, header.IPv6AllRoutersMulticastAddress))

	ph := header.IPv6(hdr.Prepend(header.IPv6MinimumSize))
	ph.Encode(&header.IPv6Fields{
		PayloadLength: uint16(payloadSize),
		NextHeader:    uint8(header.ICMPv6ProtocolNumber),
		HopLimit:      header.NDPHopLimit,
		SrcAddr:       src,
		DstAddr:       header.IPv6AllRoutersMulticastAddress,
	})

	if err := n.linkEP.WritePacket(hdr.View()); err != nil {
		sent.Dropped.Increment()
		return err
	}

	sent.RouterSolicit.Increment()
	n.stack.stats.IP.PacketsSent.Increment()
	return nil
}

// DeliverNetworkPacket implements NetworkDispatcher. It runs on the
// link endpoint's dispatch context, validates the IPv6 header, and hands
// ICMPv6 payloads to the ICMPv6 receive path.
func (n *NIC) DeliverNetworkPacket(pkt buffer.View) {
	n.stack.stats.IP.PacketsReceived.Increment()

	h := header.IPv6(pkt)
	if !h.IsValid(len(pkt)) {
		n.stack.stats.IP.MalformedPacketsReceived.Increment()
		return
	}

	// Only NDP over ICMPv6 is of interest; anything else on the wire is
	// silently ignored.
	if h.NextHeader() != uint8(header.ICMPv6ProtocolNumber) {
		return
	}

	payload := pkt
	payload.TrimFront(header.IPv6MinimumSize)
	payload.CapLength(int(h.PayloadLength()))
	n.handleICMP(h, payload)
}
