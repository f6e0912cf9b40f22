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

// Package channel provides the implementation of channel-based data-link
// layer endpoints. Such endpoints allow injection of inbound packets and
// store outbound packets in a channel, which makes them convenient for
// tests that need to see exactly what a stack transmitted and to hand it
// exactly the replies they want.
package channel

import (
	"context"

	"inet6.dev/inet6/pkg/ip6"
	"inet6.dev/inet6/pkg/ip6/buffer"
	"inet6.dev/inet6/pkg/ip6/stack"
)

var _ stack.LinkEndpoint = (*Endpoint)(nil)

// Endpoint is a link endpoint that stores outbound packets in a channel
// and allows inbound packets to be injected directly into its attached
// dispatcher.
type Endpoint struct {
	mtu      uint32
	linkAddr ip6.LinkAddress

	// c is the outbound packet channel.
	c chan buffer.View

	dispatcher stack.NetworkDispatcher
}

// New creates a new channel endpoint with an outbound queue of the given
// size.
func New(size int, mtu uint32, linkAddr ip6.LinkAddress) *Endpoint {
	return &Endpoint{
		mtu:      mtu,
		linkAddr: linkAddr,
		c:        make(chan buffer.View, size),
	}
}

// Close closes e. Outbound reads return immediately afterwards.
func (e *Endpoint) Close() {
	close(e.c)
}

// Read does a non-blocking read of one outbound packet, returning false
// if no packet is queued.
func (e *Endpoint) Read() (buffer.View, bool) {
	select {
	case pkt := <-e.c:
		return pkt, true
	default:
		return nil, false
	}
}

// ReadContext does a blocking read of one outbound packet; it returns
// false if the context is cancelled before a packet becomes available.
func (e *Endpoint) ReadContext(ctx context.Context) (buffer.View, bool) {
	select {
	case pkt := <-e.c:
		return pkt, true
	case <-ctx.Done():
		return nil, false
	}
}

// Drain removes and discards all queued outbound packets, returning the
// number drained.
func (e *Endpoint) Drain() int {
	c := 0
	for {
		if _, ok := e.Read(); !ok {
			return c
		}
		c++
	}
}

// NumQueued returns the number of packets queued for outbound.
func (e *Endpoint) NumQueued() int {
	return len(e.c)
}

// InjectInbound delivers a packet to the attached dispatcher as if it
// had arrived on the link. It is a no-op when nothing is attached.
//
// Delivery is synchronous: InjectInbound returns after the stack's
// receive path has fully processed the packet.
func (e *Endpoint) InjectInbound(pkt buffer.View) {
	if d := e.dispatcher; d != nil {
		d.DeliverNetworkPacket(pkt)
	}
}

// Attach implements stack.LinkEndpoint.Attach.
func (e *Endpoint) Attach(dispatcher stack.NetworkDispatcher) {
	e.dispatcher = dispatcher
}

// IsAttached implements stack.LinkEndpoint.IsAttached.
func (e *Endpoint) IsAttached() bool {
	return e.dispatcher != nil
}

// MTU implements stack.LinkEndpoint.MTU.
func (e *Endpoint) MTU() uint32 {
	return e.mtu
}

// MaxHeaderLength implements stack.LinkEndpoint.MaxHeaderLength.
func (*Endpoint) MaxHeaderLength() uint16 {
	return 0
}

// LinkAddress implements stack.LinkEndpoint.LinkAddress.
func (e *Endpoint) LinkAddress() ip6.LinkAddress {
	return e.linkAddr
}

// WritePacket implements stack.LinkEndpoint.WritePacket by queueing the
// packet for a reader. Packets are silently dropped when the queue is
// full, matching a link that is out of transmit descriptors.
func (e *Endpoint) WritePacket(pkt buffer.View) *ip6.Error {
	select {
	case e.c <- pkt:
	default:
	}
	return nil
}
