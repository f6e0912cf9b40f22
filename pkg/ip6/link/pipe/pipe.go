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

// Package pipe provides the implementation of pipe-like data-link layer
// endpoints. Such endpoints allow packets to be sent between two
// in-process interfaces, e.g. a host stack and a router advertiser in a
// demo topology.
package pipe

import (
	"sync"

	"inet6.dev/inet6/pkg/ip6"
	"inet6.dev/inet6/pkg/ip6/buffer"
	"inet6.dev/inet6/pkg/ip6/stack"
)

// queueSize is the number of packets an unattached or slow end of the
// pipe can have in flight before writes start dropping.
const queueSize = 16

var _ stack.LinkEndpoint = (*Endpoint)(nil)

// New returns both ends of a new pipe.
func New(linkAddr1, linkAddr2 ip6.LinkAddress, mtu uint32) (*Endpoint, *Endpoint) {
	ep1 := &Endpoint{
		linkAddr: linkAddr1,
		mtu:      mtu,
		inbound:  make(chan buffer.View, queueSize),
	}
	ep2 := &Endpoint{
		linkAddr: linkAddr2,
		mtu:      mtu,
		inbound:  make(chan buffer.View, queueSize),
	}
	ep1.linked = ep2
	ep2.linked = ep1
	return ep1, ep2
}

// Endpoint is one end of a pipe.
//
// Inbound packets are delivered from a dispatch goroutine started on
// Attach, never from the writer's own call stack, so a write made while
// holding stack locks cannot re-enter the peer's stack synchronously.
type Endpoint struct {
	linked   *Endpoint
	linkAddr ip6.LinkAddress
	mtu      uint32

	// inbound queues packets written by the linked end until this end's
	// dispatch goroutine delivers them.
	inbound chan buffer.View

	mu         sync.Mutex
	closed     bool
	dispatcher stack.NetworkDispatcher
}

func (e *Endpoint) dispatchLoop(d stack.NetworkDispatcher) {
	for pkt := range e.inbound {
		d.DeliverNetworkPacket(pkt)
	}
}

// Close stops delivery on this end of the pipe. Packets written by the
// linked end after Close are dropped.
func (e *Endpoint) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.closed {
		e.closed = true
		close(e.inbound)
	}
}

// WritePacket implements stack.LinkEndpoint.WritePacket. Packets are
// dropped when the linked end's queue is full or closed.
func (e *Endpoint) WritePacket(pkt buffer.View) *ip6.Error {
	peer := e.linked
	peer.mu.Lock()
	defer peer.mu.Unlock()

	if peer.closed {
		return nil
	}

	// Hand the peer its own copy; the caller may reuse pkt's backing
	// array after WritePacket returns.
	select {
	case peer.inbound <- buffer.NewViewFromBytes(pkt):
	default:
	}
	return nil
}

// Attach implements stack.LinkEndpoint.Attach. It starts the dispatch
// goroutine that delivers packets written by the linked end.
func (e *Endpoint) Attach(dispatcher stack.NetworkDispatcher) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.dispatcher != nil {
		panic("pipe: endpoint is already attached")
	}
	e.dispatcher = dispatcher
	go e.dispatchLoop(dispatcher)
}

// IsAttached implements stack.LinkEndpoint.IsAttached.
func (e *Endpoint) IsAttached() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
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
