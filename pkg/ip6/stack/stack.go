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

// Package stack provides the IPv6 stateless autoconfiguration stack: a
// set of NICs attached to link endpoints, a transmit path for Router
// Solicitations, a receive path for Router Advertisements, and the
// wait/notify protocol that lets a task synchronously wait for the
// advertisement that configures its NIC.
//
// For consumers, the only function of interest is New(); a stack is
// configured by creating NICs over link endpoints with CreateNIC and
// then driving autoconfiguration with Autoconfigure, or with the lower
// level SetupRAWait/WaitRA/CancelRAWait/NotifyRA protocol.
package stack

import (
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"inet6.dev/inet6/pkg/ip6"
	"inet6.dev/inet6/pkg/ip6/buffer"
	"inet6.dev/inet6/pkg/wmutex"
)

const (
	// defaultICMPLimit is the default number of ICMPv6 messages the
	// stack is allowed to send per second.
	defaultICMPLimit rate.Limit = 1000

	// defaultICMPBurst is the default number of ICMPv6 messages that can
	// be sent in a single burst.
	defaultICMPBurst = 50
)

// NetworkDispatcher delivers incoming packets to the network layer. A
// NIC implements NetworkDispatcher for the link endpoint it is attached
// to.
type NetworkDispatcher interface {
	// DeliverNetworkPacket is called when a packet arrives at the link
	// endpoint. pkt holds the packet starting at the IPv6 header.
	//
	// DeliverNetworkPacket runs on the endpoint's dispatch context and
	// must not block indefinitely.
	DeliverNetworkPacket(pkt buffer.View)
}

// LinkEndpoint is the interface implemented by data-link-layer devices:
// channel endpoints for tests, in-process pipes, and TUN devices.
type LinkEndpoint interface {
	// MTU is the maximum transmission unit for this endpoint.
	MTU() uint32

	// MaxHeaderLength returns the maximum size the link-layer headers
	// can have. Higher levels use this information to reserve space in
	// front of the packets they are building.
	MaxHeaderLength() uint16

	// LinkAddress returns the link address (typically a MAC) of this
	// endpoint. It may be empty if the endpoint has none.
	LinkAddress() ip6.LinkAddress

	// WritePacket writes a packet, beginning with its IPv6 header, to
	// the link.
	WritePacket(pkt buffer.View) *ip6.Error

	// Attach attaches the endpoint to the given dispatcher. The
	// endpoint delivers all inbound packets to the dispatcher from then
	// on; endpoints backed by devices start their inbound dispatch loop
	// on attach.
	Attach(dispatcher NetworkDispatcher)

	// IsAttached returns whether a NetworkDispatcher is attached.
	IsAttached() bool
}

// Dispatcher is the interface integrators may implement to observe
// autoconfiguration events.
//
// The methods are called on the stack's goroutines without any stack
// locks held. They must not block; an implementation that needs to do
// real work should hand the event off to another goroutine.
type Dispatcher interface {
	// OnRouterAdvert is called when a Router Advertisement has been
	// matched to a pending waiter and applied to its NIC.
	OnRouterAdvert(id ip6.NICID, router ip6.Address, prefix ip6.AddressWithPrefix)

	// OnAutoConfigured is called when Autoconfigure completes
	// successfully, with the acquired address.
	OnAutoConfigured(id ip6.NICID, addr ip6.AddressWithPrefix)

	// OnWaitTimeout is called when Autoconfigure gives up waiting for
	// an advertisement.
	OnWaitTimeout(id ip6.NICID)
}

// Options holds options for creating a stack.
type Options struct {
	// Clock is an optional clock used for timed waits and timers.
	//
	// If no Clock is specified, the clock defined by the time package
	// is used.
	Clock ip6.Clock

	// Logger is an optional structured logger.
	//
	// If no Logger is specified, the logrus standard logger is used.
	Logger *logrus.Logger

	// Dispatcher is an optional receiver for autoconfiguration events.
	Dispatcher Dispatcher

	// Stats are optional statistic counters.
	Stats ip6.Stats
}

// Stack is an instance of the autoconfiguration stack. Each stack owns
// its own NIC table and waiter registry, so independent stacks never
// observe each other's state.
type Stack struct {
	clock      ip6.Clock
	log        *logrus.Logger
	dispatcher Dispatcher
	stats      ip6.Stats

	// mu is the stack's serialization lock. It guards the NIC table and
	// all NIC address state, and it is the lock WaitRA releases across
	// its suspension.
	mu   wmutex.Mutex
	nics map[ip6.NICID]*NIC

	// raWaiters is the registry of pending Router Advertisement
	// waiters. It has its own short lock; see raWaiterRegistry.
	raWaiters raWaiterRegistry

	icmpRateLimiter *rate.Limiter
}

// New allocates a new networking stack with the given options.
func New(opts Options) *Stack {
	clock := opts.Clock
	if clock == nil {
		clock = &ip6.StdClock{}
	}

	log := opts.Logger
	if log == nil {
		log = logrus.StandardLogger()
	}

	s := &Stack{
		clock:           clock,
		log:             log,
		dispatcher:      opts.Dispatcher,
		stats:           opts.Stats.FillIn(),
		nics:            make(map[ip6.NICID]*NIC),
		icmpRateLimiter: rate.NewLimiter(defaultICMPLimit, defaultICMPBurst),
	}
	s.mu.Init()
	return s
}

// Clock returns the stack's clock.
func (s *Stack) Clock() ip6.Clock {
	return s.clock
}

// Stats returns a mutable copy of the current stats. The copy shares
// its counters with the stack, so it stays live.
func (s *Stack) Stats() ip6.Stats {
	return s.stats
}

// SetICMPLimit sets the maximum number of ICMPv6 messages the stack
// sends per second.
func (s *Stack) SetICMPLimit(limit rate.Limit) {
	s.icmpRateLimiter.SetLimit(limit)
}

// ICMPLimit returns the maximum number of ICMPv6 messages the stack
// sends per second.
func (s *Stack) ICMPLimit() rate.Limit {
	return s.icmpRateLimiter.Limit()
}

// AllowICMPMessage reports whether the stack may send one more ICMPv6
// message under its rate limit.
func (s *Stack) AllowICMPMessage() bool {
	return s.icmpRateLimiter.Allow()
}

// NICOptions specifies the configuration of a NIC as it is being
// created.
type NICOptions struct {
	// Name is a human-readable name for the NIC. It doubles as the key
	// Router Advertisement waiters match on, truncated to a fixed
	// length. If empty, a name is derived from the NIC's ID.
	Name string
}

// CreateNICWithOptions creates a NIC with the provided id, link endpoint
// and options, and attaches it to the stack's receive path.
func (s *Stack) CreateNICWithOptions(id ip6.NICID, ep LinkEndpoint, opts NICOptions) *ip6.Error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.nics[id]; ok {
		return ip6.ErrDuplicateNICID
	}

	name := opts.Name
	if name == "" {
		name = fmt.Sprintf("nic%d", id)
	}

	n := newNIC(s, id, name, ep)
	s.nics[id] = n
	ep.Attach(n)
	return nil
}

// CreateNIC creates a NIC with the provided id and link endpoint, with a
// name derived from the id.
func (s *Stack) CreateNIC(id ip6.NICID, ep LinkEndpoint) *ip6.Error {
	return s.CreateNICWithOptions(id, ep, NICOptions{})
}

// NICInfo captures the address state of a NIC.
type NICInfo struct {
	// Name is the NIC's name.
	Name string

	// LinkAddress is the NIC's link address.
	LinkAddress ip6.LinkAddress

	// AddressWithPrefix is the NIC's current IPv6 address and the
	// prefix length of its current netmask.
	AddressWithPrefix ip6.AddressWithPrefix

	// DefaultRouter is the address of the NIC's default router, or the
	// empty address when no Router Advertisement has been applied.
	DefaultRouter ip6.Address

	// MTU is the link endpoint's MTU.
	MTU uint32
}

// NICInfo returns a snapshot of the per-NIC address state. The returned
// map is owned by the caller.
func (s *Stack) NICInfo() map[ip6.NICID]NICInfo {
	s.mu.Lock()
	defer s.mu.Unlock()

	nics := make(map[ip6.NICID]NICInfo, len(s.nics))
	for id, n := range s.nics {
		nics[id] = NICInfo{
			Name:        n.name,
			LinkAddress: n.linkEP.LinkAddress(),
			AddressWithPrefix: ip6.AddressWithPrefix{
				Address:   n.addr,
				PrefixLen: n.netmask.Prefix(),
			},
			DefaultRouter: n.router,
			MTU:           n.linkEP.MTU(),
		}
	}
	return nics
}

// Autoconfigure performs one stateless autoconfiguration attempt on the
// NIC identified by id: it ensures the NIC has a link-local address,
// registers a waiter, transmits a single Router Solicitation, and waits
// up to timeout for a matching Router Advertisement to be applied. On
// success it returns the acquired address and prefix length.
//
// A timeout is an ordinary result; the caller decides whether and when
// to retry. Autoconfigure does not retransmit solicitations.
func (s *Stack) Autoconfigure(id ip6.NICID, timeout time.Duration) (ip6.AddressWithPrefix, *ip6.Error) {
	s.mu.Lock()

	nic, ok := s.nics[id]
	if !ok {
		s.mu.Unlock()
		return ip6.AddressWithPrefix{}, ip6.ErrUnknownNICID
	}

	if err := nic.ensureLinkLocalLocked(); err != nil {
		s.mu.Unlock()
		return ip6.AddressWithPrefix{}, err
	}

	// The waiter must be registered before the solicitation leaves, or
	// a fast reply could arrive with nobody to match it.
	var w RAWaiter
	s.raWaiters.setup(nic.nameKey, &w)

	if err := nic.sendRouterSolicitLocked(); err != nil {
		s.CancelRAWait(&w)
		s.mu.Unlock()
		return ip6.AddressWithPrefix{}, err
	}

	res := s.waitRALocked(&w, timeout)

	var acquired ip6.AddressWithPrefix
	if res == nil {
		acquired = ip6.AddressWithPrefix{
			Address:   nic.addr,
			PrefixLen: nic.netmask.Prefix(),
		}
	}
	s.mu.Unlock()

	if res != nil {
		if d := s.dispatcher; d != nil && res == ip6.ErrTimeout {
			d.OnWaitTimeout(id)
		}
		return ip6.AddressWithPrefix{}, res
	}

	if d := s.dispatcher; d != nil {
		d.OnAutoConfigured(id, acquired)
	}
	return acquired, nil
}
