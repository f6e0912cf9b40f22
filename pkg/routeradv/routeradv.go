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

// Package routeradv implements the router side of IPv6 router
// discovery: an advertiser that attaches to a link endpoint, answers
// incoming Router Solicitations with Router Advertisements carrying a
// configured autonomous prefix, and optionally sends unsolicited
// advertisements on a timer. It exists so hosts running the
// autoconfiguration stack have a peer to talk to, both in tests and in
// in-process demo topologies.
package routeradv

import (
	"encoding/binary"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"inet6.dev/inet6/pkg/ip6"
	"inet6.dev/inet6/pkg/ip6/buffer"
	"inet6.dev/inet6/pkg/ip6/header"
	"inet6.dev/inet6/pkg/ip6/stack"
)

const (
	// defaultRouterLifetime is advertised when Options.RouterLifetime
	// is zero.
	defaultRouterLifetime = 30 * time.Minute

	// defaultValidLifetime is advertised when Options.ValidLifetime is
	// zero.
	defaultValidLifetime = 30 * 24 * time.Hour

	// defaultPreferredLifetime is advertised when
	// Options.PreferredLifetime is zero.
	defaultPreferredLifetime = 7 * 24 * time.Hour

	// defaultResponseLimit bounds how many advertisements per second
	// the advertiser sends in response to solicitations.
	defaultResponseLimit rate.Limit = 10

	// defaultResponseBurst is the burst allowance of the response
	// limiter.
	defaultResponseBurst = 5

	// advertCurrHopLimit is the hop limit the advertiser recommends to
	// hosts in the Curr Hop Limit field.
	advertCurrHopLimit = 64

	// linkAddressSize is the size, in bytes, of an IEEE 802 address.
	linkAddressSize = 6

	// prefixInfoBodySize is the size, in bytes, of the body of an NDP
	// Prefix Information option.
	prefixInfoBodySize = 30
)

// Options configures an Advertiser.
type Options struct {
	// Prefix is the autonomous prefix to advertise.
	Prefix ip6.AddressWithPrefix

	// RouterLifetime is the advertised default-router lifetime.
	RouterLifetime time.Duration

	// ValidLifetime is the advertised prefix valid lifetime.
	ValidLifetime time.Duration

	// PreferredLifetime is the advertised prefix preferred lifetime.
	PreferredLifetime time.Duration

	// Interval, when non-zero, enables unsolicited advertisements sent
	// this far apart.
	Interval time.Duration

	// Clock drives the unsolicited advertisement timer. Defaults to
	// the time package clock.
	Clock ip6.Clock

	// Logger is an optional structured logger. Defaults to the logrus
	// standard logger.
	Logger *logrus.Logger

	// ResponseLimit bounds solicited advertisements per second; zero
	// selects a default.
	ResponseLimit rate.Limit
}

// Advertiser answers Router Solicitations arriving on a link endpoint
// with Router Advertisements. It implements stack.NetworkDispatcher and
// owns the endpoint it is attached to.
type Advertiser struct {
	ep        stack.LinkEndpoint
	linkAddr  ip6.LinkAddress
	linkLocal ip6.Address

	prefix            ip6.AddressWithPrefix
	routerLifetime    time.Duration
	validLifetime     time.Duration
	preferredLifetime time.Duration

	clock   ip6.Clock
	log     *logrus.Logger
	limiter *rate.Limiter

	interval time.Duration
	timer    ip6.Timer
}

var _ stack.NetworkDispatcher = (*Advertiser)(nil)

// New creates an Advertiser over ep and attaches it. If an unsolicited
// advertisement interval is configured, the first advertisement is
// scheduled one interval from now.
func New(ep stack.LinkEndpoint, opts Options) (*Advertiser, error) {
	linkAddr := ep.LinkAddress()
	if len(linkAddr) != linkAddressSize {
		return nil, fmt.Errorf("endpoint link address %q cannot derive a link-local source", linkAddr)
	}
	if len(opts.Prefix.Address) != ip6.AddressSize || opts.Prefix.PrefixLen <= 0 || opts.Prefix.PrefixLen > 128 {
		return nil, fmt.Errorf("invalid advertised prefix %s", opts.Prefix)
	}

	a := &Advertiser{
		ep:                ep,
		linkAddr:          linkAddr,
		linkLocal:         header.LinkLocalAddr(linkAddr),
		prefix:            opts.Prefix,
		routerLifetime:    opts.RouterLifetime,
		validLifetime:     opts.ValidLifetime,
		preferredLifetime: opts.PreferredLifetime,
		clock:             opts.Clock,
		log:               opts.Logger,
		interval:          opts.Interval,
	}
	if a.routerLifetime == 0 {
		a.routerLifetime = defaultRouterLifetime
	}
	if a.validLifetime == 0 {
		a.validLifetime = defaultValidLifetime
	}
	if a.preferredLifetime == 0 {
		a.preferredLifetime = defaultPreferredLifetime
	}
	if a.clock == nil {
		a.clock = &ip6.StdClock{}
	}
	if a.log == nil {
		a.log = logrus.StandardLogger()
	}
	limit := opts.ResponseLimit
	if limit == 0 {
		limit = defaultResponseLimit
	}
	a.limiter = rate.NewLimiter(limit, defaultResponseBurst)

	ep.Attach(a)
	if a.interval != 0 {
		a.timer = a.clock.AfterFunc(a.interval, a.advertiseTick)
	}
	return a, nil
}

// Stop cancels the unsolicited advertisement timer. It does not detach
// the advertiser from its endpoint; solicited advertisements continue.
func (a *Advertiser) Stop() {
	if a.timer != nil {
		a.timer.Stop()
	}
}

func (a *Advertiser) advertiseTick() {
	if err := a.sendRouterAdvert(); err != nil {
		a.log.WithError(errString(err)).Warn("routeradv: unsolicited advertisement failed")
	}
	a.timer.Reset(a.interval)
}

// DeliverNetworkPacket implements stack.NetworkDispatcher. It validates
// an incoming Router Solicitation and answers it with an advertisement,
// subject to the response rate limit.
func (a *Advertiser) DeliverNetworkPacket(pkt buffer.View) {
	iph := header.IPv6(pkt)
	if !iph.IsValid(len(pkt)) {
		return
	}
	if iph.NextHeader() != uint8(header.ICMPv6ProtocolNumber) {
		return
	}

	v := pkt
	v.TrimFront(header.IPv6MinimumSize)
	v.CapLength(int(iph.PayloadLength()))
	if len(v) < header.ICMPv6MinimumSize+header.NDPRSMinimumSize {
		return
	}

	h := header.ICMPv6(v)
	if h.Type() != header.ICMPv6RouterSolicit {
		return
	}
	if h.Code() != 0 || iph.HopLimit() != header.NDPHopLimit {
		return
	}
	if h.Checksum() != header.ICMPv6Checksum(h, iph.SourceAddress(), iph.DestinationAddress()) {
		return
	}

	// A solicitation from the unspecified address must not carry a
	// source link-layer address option, as per RFC 4861 section 6.1.1.
	rs := header.NDPRouterSolicit(h.MessageBody())
	it, err := rs.Options().Iter(true)
	if err != nil {
		return
	}
	if header.IsV6UnspecifiedAddress(iph.SourceAddress()) {
		for {
			opt, done, _ := it.Next()
			if done {
				break
			}
			if _, ok := opt.(header.NDPSourceLinkLayerAddressOption); ok {
				return
			}
		}
	}

	if !a.limiter.Allow() {
		a.log.Debug("routeradv: solicitation dropped by response rate limit")
		return
	}

	if err := a.sendRouterAdvert(); err != nil {
		a.log.WithError(errString(err)).Warn("routeradv: solicited advertisement failed")
	}
}

// prefixInfo builds the Prefix Information option body advertising the
// configured prefix with the on-link and autonomous flags set.
func (a *Advertiser) prefixInfo() header.NDPPrefixInformation {
	var body [prefixInfoBodySize]byte
	body[0] = uint8(a.prefix.PrefixLen)
	body[1] = 0x80 | 0x40 // on-link, autonomous
	binary.BigEndian.PutUint32(body[2:], uint32(a.validLifetime/time.Second))
	binary.BigEndian.PutUint32(body[6:], uint32(a.preferredLifetime/time.Second))
	copy(body[14:], a.prefix.Address)
	return header.NDPPrefixInformation(body[:])
}

// sendRouterAdvert transmits one Router Advertisement to the all-nodes
// multicast group from the advertiser's link-local address.
func (a *Advertiser) sendRouterAdvert() *ip6.Error {
	optsSerializer := header.NDPOptionsSerializer{
		header.NDPSourceLinkLayerAddressOption(a.linkAddr),
		a.prefixInfo(),
	}

	payloadSize := header.ICMPv6MinimumSize + header.NDPRAMinimumSize + optsSerializer.Length()
	hdr := buffer.NewPrependable(int(a.ep.MaxHeaderLength()) + header.IPv6MinimumSize + payloadSize)

	pkt := header.ICMPv6(hdr.Prepend(payloadSize))
	pkt.SetType(header.ICMPv6RouterAdvert)
	raBody := pkt.MessageBody()
	raBody[0] = advertCurrHopLimit
	binary.BigEndian.PutUint16(raBody[2:], uint16(a.routerLifetime/time.Second))
	header.NDPRouterAdvert(raBody).Options().Serialize(optsSerializer)
	pkt.SetChecksum(header.ICMPv6Checksum(pkt, a.linkLocal, header.IPv6AllNodesMulticastAddress))

	iph := header.IPv6(hdr.Prepend(header.IPv6MinimumSize))
	iph.Encode(&header.IPv6Fields{
		PayloadLength: uint16(payloadSize),
		NextHeader:    uint8(header.ICMPv6ProtocolNumber),
		HopLimit:      header.NDPHopLimit,
		SrcAddr:       a.linkLocal,
		DstAddr:       header.IPv6AllNodesMulticastAddress,
	})

	if err := a.ep.WritePacket(hdr.View()); err != nil {
		return err
	}

	a.log.WithFields(logrus.Fields{
		"prefix": a.prefix,
		"router": a.linkLocal,
	}).Debug("routeradv: advertisement sent")
	return nil
}

// errString adapts an *ip6.Error for logrus's WithError.
func errString(err *ip6.Error) error {
	return fmt.Errorf("%s", err)
}
