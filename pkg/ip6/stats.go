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

package ip6

import (
	"fmt"
	"reflect"
	"strconv"
	"sync/atomic"
)

// A StatCounter keeps track of a statistic.
type StatCounter struct {
	count uint64
}

// Increment adds one to the counter.
func (s *StatCounter) Increment() {
	s.IncrementBy(1)
}

// IncrementBy increments the counter by v.
func (s *StatCounter) IncrementBy(v uint64) {
	atomic.AddUint64(&s.count, v)
}

// Value returns the current value of the counter.
func (s *StatCounter) Value() uint64 {
	return atomic.LoadUint64(&s.count)
}

// String implements the fmt.Stringer interface.
func (s *StatCounter) String() string {
	return strconv.FormatUint(s.Value(), 10)
}

// ICMPv6ReceivedPacketStats collects inbound ICMPv6-specific stats.
type ICMPv6ReceivedPacketStats struct {
	// RouterSolicit is the total number of ICMPv6 router solicit packets
	// received.
	RouterSolicit *StatCounter

	// RouterAdvert is the total number of ICMPv6 router advert packets
	// received.
	RouterAdvert *StatCounter

	// Invalid is the total number of ICMPv6 packets received that the
	// stack could not parse or that failed validation.
	Invalid *StatCounter
}

// ICMPv6SentPacketStats collects outbound ICMPv6-specific stats.
type ICMPv6SentPacketStats struct {
	// RouterSolicit is the total number of ICMPv6 router solicit packets
	// sent.
	RouterSolicit *StatCounter

	// Dropped is the total number of ICMPv6 packets dropped due to link
	// layer errors or rate limiting.
	Dropped *StatCounter
}

// ICMPStats collects ICMP-specific stats.
type ICMPStats struct {
	// V6PacketsSent contains statistics about the number of ICMPv6
	// packets sent by types.
	V6PacketsSent ICMPv6SentPacketStats

	// V6PacketsReceived contains statistics about the number of ICMPv6
	// packets received by types.
	V6PacketsReceived ICMPv6ReceivedPacketStats
}

// IPStats collects IP-specific stats.
type IPStats struct {
	// PacketsReceived is the total number of IP packets received from the
	// link layer.
	PacketsReceived *StatCounter

	// MalformedPacketsReceived is the total number of IP packets received
	// that were dropped due to the IP packet header failing validation
	// checks.
	MalformedPacketsReceived *StatCounter

	// PacketsSent is the total number of IP packets sent via WritePacket.
	PacketsSent *StatCounter
}

// Stats holds statistics about the networking stack.
//
// All fields are optional.
type Stats struct {
	// IP breaks out IP-specific stats.
	IP IPStats

	// ICMP breaks out ICMP-specific stats.
	ICMP ICMPStats
}

func fillIn(v reflect.Value) {
	for i := 0; i < v.NumField(); i++ {
		v := v.Field(i)
		switch v.Kind() {
		case reflect.Ptr:
			if s := v.Addr().Interface().(**StatCounter); *s == nil {
				*s = &StatCounter{}
			}
		case reflect.Struct:
			fillIn(v)
		default:
			panic(fmt.Sprintf("unexpected type %s", v.Type()))
		}
	}
}

// FillIn returns a copy of the stats with all nil counters initialized.
func (s Stats) FillIn() Stats {
	fillIn(reflect.ValueOf(&s).Elem())
	return s
}
