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

//go:build linux

// Package tundev provides a link endpoint backed by a Linux TUN device.
// The device carries raw IPv6 packets (IFF_NO_PI); the endpoint's link
// address is configured, not read from the device, and is only used to
// derive the interface identifier of autoconfigured addresses.
package tundev

import (
	"fmt"
	"sync"

	"golang.org/x/sys/unix"

	"inet6.dev/inet6/pkg/ip6"
	"inet6.dev/inet6/pkg/ip6/buffer"
	"inet6.dev/inet6/pkg/ip6/header"
	"inet6.dev/inet6/pkg/ip6/stack"
)

var _ stack.LinkEndpoint = (*Endpoint)(nil)

// Options specify the parameters to use when creating a TUN endpoint.
type Options struct {
	// Name is the name of the TUN device, e.g. "tun0". The device must
	// already exist or the opener must have the privilege to create it.
	Name string

	// MTU overrides the MTU reported by the device when non-zero.
	MTU uint32

	// LinkAddress is the IEEE 802 address used to derive the interface
	// identifier for this endpoint.
	LinkAddress ip6.LinkAddress
}

// Endpoint is a link endpoint over a TUN device file descriptor. Its
// inbound dispatch loop starts when the endpoint is attached and stops
// when the endpoint is closed.
type Endpoint struct {
	fd       int
	mtu      uint32
	linkAddr ip6.LinkAddress

	mu         sync.Mutex
	dispatcher stack.NetworkDispatcher
}

// New opens the TUN device named in opts and returns an endpoint over
// it.
func New(opts *Options) (*Endpoint, error) {
	fd, err := openTUN(opts.Name)
	if err != nil {
		return nil, err
	}

	mtu := opts.MTU
	if mtu == 0 {
		mtu, err = getMTU(opts.Name)
		if err != nil {
			unix.Close(fd)
			return nil, fmt.Errorf("query MTU of %q: %w", opts.Name, err)
		}
	}
	if mtu < header.IPv6MinimumMTU {
		unix.Close(fd)
		return nil, fmt.Errorf("MTU %d of %q is below the IPv6 minimum of %d", mtu, opts.Name, header.IPv6MinimumMTU)
	}

	return &Endpoint{
		fd:       fd,
		mtu:      mtu,
		linkAddr: opts.LinkAddress,
	}, nil
}

// Close closes the underlying device. The dispatch loop, if running,
// exits on its next read.
func (e *Endpoint) Close() error {
	return unix.Close(e.fd)
}

func (e *Endpoint) dispatchLoop(d stack.NetworkDispatcher) {
	for {
		b := make([]byte, e.mtu)
		n, err := blockingRead(e.fd, b)
		if err != nil {
			// The descriptor was closed or the device went away.
			return
		}
		d.DeliverNetworkPacket(buffer.View(b[:n]))
	}
}

// Attach implements stack.LinkEndpoint.Attach. It starts the inbound
// dispatch goroutine.
func (e *Endpoint) Attach(dispatcher stack.NetworkDispatcher) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.dispatcher != nil {
		panic("tundev: endpoint is already attached")
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

// WritePacket implements stack.LinkEndpoint.WritePacket.
func (e *Endpoint) WritePacket(pkt buffer.View) *ip6.Error {
	switch err := nonBlockingWrite(e.fd, pkt); err {
	case nil:
		return nil
	case unix.EMSGSIZE:
		return ip6.ErrMessageTooLong
	case unix.EAGAIN:
		return ip6.ErrWouldBlock
	default:
		return ip6.ErrAborted
	}
}
