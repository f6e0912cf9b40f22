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

// Package ip6 provides the types shared by the inet6 autoconfiguration
// stack: IPv6 and link-layer addresses, NIC identifiers, the error space
// used by stack operations, clocks, and packet statistics.
//
// The starting point is the creation and configuration of a stack. A stack
// can be created by calling the New() function of the ip6/stack package;
// configuring a stack involves creating NICs (via calls to
// Stack.CreateNIC()) over link endpoints and then driving stateless
// address autoconfiguration on them (via Stack.Autoconfigure()).
package ip6

import (
	"fmt"
	"math/bits"
	"strconv"
	"strings"
)

// Error represents an error in the inet6 error space. Using a special type
// ensures that errors outside of this space are not accidentally
// introduced. A nil *Error denotes success.
type Error struct {
	msg string
}

// String implements fmt.Stringer.String.
func (e *Error) String() string {
	if e == nil {
		return "<nil>"
	}
	return e.msg
}

// Errors that can be returned by the stack.
var (
	ErrAborted         = &Error{msg: "operation aborted"}
	ErrBadLinkAddress  = &Error{msg: "link address is not valid"}
	ErrDuplicateNICID  = &Error{msg: "duplicate nic id"}
	ErrMessageTooLong  = &Error{msg: "message too long"}
	ErrNoWaiter        = &Error{msg: "no such waiter"}
	ErrRateLimited     = &Error{msg: "rate limited"}
	ErrTimeout         = &Error{msg: "operation timed out"}
	ErrUnknownNICID    = &Error{msg: "unknown nic id"}
	ErrWouldBlock      = &Error{msg: "operation would block"}
)

// AddressSize is the size, in bytes, of an IPv6 address.
const AddressSize = 16

// Address is a byte slice cast as a string that represents an IPv6
// address.
//
// It should be treated as an immutable byte slice.
type Address string

// String implements the fmt.Stringer interface.
func (a Address) String() string {
	if len(a) != AddressSize {
		return fmt.Sprintf("%x", []byte(a))
	}

	// Find the longest subsequence of hexadecimal digits with value 0.
	start, end := -1, -1
	for i := 0; i < len(a); i += 2 {
		j := i
		for j < len(a) && a[j] == 0 && a[j+1] == 0 {
			j += 2
		}
		if j > i+2 && j-i > end-start {
			start, end = i, j
		}
	}

	var b strings.Builder
	for i := 0; i < len(a); i += 2 {
		if i == start {
			b.WriteString("::")
			i = end
			if end >= len(a) {
				break
			}
		} else if i > 0 {
			b.WriteByte(':')
		}
		v := uint16(a[i+0])<<8 | uint16(a[i+1])
		if v == 0 {
			b.WriteByte('0')
		} else {
			const digits = "0123456789abcdef"
			for i := uint(12); i > 0; i -= 4 {
				if v := v >> i; v != 0 {
					b.WriteByte(digits[v&0xf])
				}
			}
			b.WriteByte(digits[v&0xf])
		}
	}
	return b.String()
}

// AddressMask is a bitmask for an IPv6 address.
//
// It should be treated as an immutable byte slice.
type AddressMask string

// String implements the fmt.Stringer interface.
func (m AddressMask) String() string {
	return Address(m).String()
}

// Prefix returns the number of bits before the first host bit.
func (m AddressMask) Prefix() int {
	p := 0
	for _, b := range []byte(m) {
		p += bits.LeadingZeros8(^b)
	}
	return p
}

// MaskFromPrefix returns a 128-bit address mask with the leading n bits
// set and the remainder clear. n is clamped to the range [0, 128].
func MaskFromPrefix(n int) AddressMask {
	if n < 0 {
		n = 0
	}
	if n > 8*AddressSize {
		n = 8 * AddressSize
	}
	var mask [AddressSize]byte
	for i := 0; n > 0; i++ {
		if n >= 8 {
			mask[i] = 0xff
			n -= 8
			continue
		}
		mask[i] = ^byte(0xff >> n)
		n = 0
	}
	return AddressMask(mask[:])
}

// AddressWithPrefix is an address with its subnet prefix length.
type AddressWithPrefix struct {
	// Address is a network address.
	Address Address

	// PrefixLen is the subnet prefix length.
	PrefixLen int
}

// String implements the fmt.Stringer interface.
func (a AddressWithPrefix) String() string {
	return fmt.Sprintf("%s/%d", a.Address, a.PrefixLen)
}

// NICID is a number that uniquely identifies a NIC.
type NICID int32

// TransportProtocolNumber is the number of a transport protocol.
type TransportProtocolNumber uint32

// LinkAddress is a byte slice cast as a string that represents a link
// address. It is typically a 6-byte MAC address.
type LinkAddress string

// String implements the fmt.Stringer interface.
func (a LinkAddress) String() string {
	switch len(a) {
	case 6:
		return fmt.Sprintf("%02x:%02x:%02x:%02x:%02x:%02x", a[0], a[1], a[2], a[3], a[4], a[5])
	default:
		return fmt.Sprintf("%x", []byte(a))
	}
}

// ParseMACAddress parses an IEEE 802 address.
//
// It must be in the format aa:bb:cc:dd:ee:ff or aa-bb-cc-dd-ee-ff.
func ParseMACAddress(s string) (LinkAddress, error) {
	parts := strings.FieldsFunc(s, func(c rune) bool {
		return c == ':' || c == '-'
	})
	if len(parts) != 6 {
		return "", fmt.Errorf("inconsistent parts: %s", s)
	}
	addr := make([]byte, 0, len(parts))
	for _, part := range parts {
		u, err := strconv.ParseUint(part, 16, 8)
		if err != nil {
			return "", fmt.Errorf("invalid hex digits: %s", s)
		}
		addr = append(addr, byte(u))
	}
	return LinkAddress(addr), nil
}
