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

package header

import (
	"encoding/binary"
	"errors"
	"time"

	"inet6.dev/inet6/pkg/ip6"
)

const (
	// NDPSourceLinkLayerAddressOptionType is the type of the Source
	// Link-Layer Address option, as per RFC 4861 section 4.6.1.
	NDPSourceLinkLayerAddressOptionType = 1

	// ndpPrefixInformationType is the type of the Prefix Information
	// option, as per RFC 4861 section 4.6.2.
	ndpPrefixInformationType = 3

	// ndpPrefixInformationLength is the expected length, in bytes, of the
	// body of an NDP Prefix Information option, as per RFC 4861 section
	// 4.6.2 which specifies that the Length field is 4. Given this, the
	// expected length, in bytes, is 30 because 4 * lengthByteUnits (8) - 2
	// (Type & Length) = 30.
	ndpPrefixInformationLength = 30

	// ndpPrefixInformationPrefixLengthOffset is the offset of the Prefix
	// Length field within an NDPPrefixInformation.
	ndpPrefixInformationPrefixLengthOffset = 0

	// ndpPrefixInformationFlagsOffset is the offset of the flags byte
	// within an NDPPrefixInformation.
	ndpPrefixInformationFlagsOffset = 1

	// ndpPrefixInformationOnLinkFlagMask is the mask of the On-Link Flag
	// field in the flags byte within an NDPPrefixInformation.
	ndpPrefixInformationOnLinkFlagMask = (1 << 7)

	// ndpPrefixInformationAutoAddrConfFlagMask is the mask of the
	// Autonomous Address-Configuration flag field in the flags byte within
	// an NDPPrefixInformation.
	ndpPrefixInformationAutoAddrConfFlagMask = (1 << 6)

	// ndpPrefixInformationReserved1FlagsMask is the mask of the Reserved1
	// field in the flags byte within an NDPPrefixInformation.
	ndpPrefixInformationReserved1FlagsMask = 63

	// ndpPrefixInformationValidLifetimeOffset is the start of the 4-byte
	// Valid Lifetime field within an NDPPrefixInformation.
	ndpPrefixInformationValidLifetimeOffset = 2

	// ndpPrefixInformationPreferredLifetimeOffset is the start of the
	// 4-byte Preferred Lifetime field within an NDPPrefixInformation.
	ndpPrefixInformationPreferredLifetimeOffset = 6

	// ndpPrefixInformationReserved2Offset is the start of the 4-byte
	// Reserved2 field within an NDPPrefixInformation.
	ndpPrefixInformationReserved2Offset = 10

	// ndpPrefixInformationReserved2Length is the length of the Reserved2
	// field.
	//
	// It is 4 bytes.
	ndpPrefixInformationReserved2Length = 4

	// ndpPrefixInformationPrefixOffset is the start of the Prefix field
	// within an NDPPrefixInformation.
	ndpPrefixInformationPrefixOffset = 14

	// NDPPrefixInformationInfiniteLifetime is a value that represents
	// infinity for the Valid and Preferred Lifetime fields in a NDP Prefix
	// Information option. Its value is (2^32 - 1)s = 4294967295s.
	NDPPrefixInformationInfiniteLifetime = time.Second * 4294967295

	// lengthByteUnits is the multiplier factor for the Length field of an
	// NDP option. That is, the length field for NDP options is in units of
	// 8 octets, as per RFC 4861 section 4.6.
	lengthByteUnits = 8

	// ethernetAddressSize is the size, in bytes, of an IEEE 802 MAC
	// address carried in a link-layer address option.
	ethernetAddressSize = 6
)

// Potential errors when iterating over an NDPOptions.
var (
	ErrNDPOptBufExhausted  = errors.New("buffer unexpectedly exhausted")
	ErrNDPOptZeroLength    = errors.New("zero length NDP option")
	ErrNDPOptMalformedBody = errors.New("NDP option has a malformed body")
)

// NDPOptions is a buffer of NDP options as defined by RFC 4861 section
// 4.6.
type NDPOptions []byte

// NDPOptionIterator is an iterator of NDPOption.
//
// Note, between when an NDPOptionIterator is obtained and last used, no
// changes to the NDPOptions may happen. Doing so may cause undefined and
// unexpected behaviour.
type NDPOptionIterator struct {
	// The NDPOptions this NDPOptionIterator is iterating over.
	opts NDPOptions
}

// Iter returns an iterator of NDPOptions.
//
// If check is true, Iter will do an integrity check on the options by
// iterating over them and returning an error if detected.
func (b NDPOptions) Iter(check bool) (NDPOptionIterator, error) {
	it := NDPOptionIterator{opts: b}

	if check {
		for it2 := it; true; {
			if _, done, err := it2.Next(); err != nil || done {
				return it, err
			}
		}
	}

	return it, nil
}

// Next returns the next element in the backing NDPOptions, or true if we
// are done, or false if an error occurred.
//
// The return can be read as option, done, error. Option should only be
// used if done is false and error is nil.
func (i *NDPOptionIterator) Next() (NDPOption, bool, error) {
	for {
		// Do we still have elements to look at?
		if len(i.opts) == 0 {
			return nil, true, nil
		}

		// Do we have enough bytes for an NDP option that has a Type
		// and Length field? That is, the minimum length of an NDP
		// option.
		if len(i.opts) < 2 {
			return nil, true, ErrNDPOptBufExhausted
		}

		// Get the Length field in units of lengthByteUnits bytes.
		l := i.opts[1]

		// An NDP option's Length field must be non-zero, as per
		// RFC 4861 section 4.6.
		if l == 0 {
			return nil, true, ErrNDPOptZeroLength
		}

		t := i.opts[0]

		// How many bytes are in the option, including the Type and
		// Length fields?
		numBytes := int(l) * lengthByteUnits
		numBodyBytes := numBytes - 2

		potentialBody := i.opts[2:]

		// An option's body extending past the end of the buffer makes
		// the whole option buffer malformed.
		if len(potentialBody) < numBodyBytes {
			return nil, true, ErrNDPOptBufExhausted
		}

		body := potentialBody[:numBodyBytes]
		i.opts = i.opts[numBytes:]

		switch t {
		case NDPSourceLinkLayerAddressOptionType:
			return NDPSourceLinkLayerAddressOption(body), false, nil

		case ndpPrefixInformationType:
			// Make sure the length of a Prefix Information option
			// body is ndpPrefixInformationLength, as per RFC 4861
			// section 4.6.2.
			if numBodyBytes != ndpPrefixInformationLength {
				return nil, true, ErrNDPOptMalformedBody
			}

			return NDPPrefixInformation(body), false, nil

		default:
			// We do not yet recognize the option; skip it. This is
			// okay because RFC 4861 section 4.6 requires nodes to
			// silently ignore unrecognized options and continue
			// processing the message.
			continue
		}
	}
}

// Serialize serializes the provided list of NDP options into b.
//
// Note, b must be of sufficient size to hold all the options in s. See
// NDPOptionsSerializer.Length for details on getting the total size of a
// serialized NDPOptionsSerializer.
//
// Serialize may panic if b is not of sufficient size to hold all the
// options in s.
func (b NDPOptions) Serialize(s NDPOptionsSerializer) int {
	done := 0

	for _, o := range s {
		l := paddedLength(o)

		if l == 0 {
			continue
		}

		b[0] = o.Type()

		// We know this is safe because paddedLength would have
		// returned 0 if o had an invalid length (> 255 *
		// lengthByteUnits).
		b[1] = uint8(l / lengthByteUnits)

		// Serialize NDP option body.
		used := o.serializeInto(b[2:])

		// Zero out remaining (padding) bytes, if any exist.
		for i := used + 2; i < l; i++ {
			b[i] = 0
		}

		b = b[l:]
		done += l
	}

	return done
}

// NDPOption is the set of functions to be implemented by all NDP option
// types.
type NDPOption interface {
	// Type returns the type of the option.
	Type() uint8

	// Length returns the length of the body of the option, in bytes.
	Length() int

	// serializeInto serializes the option into the provided byte buffer.
	//
	// Note, the caller MUST provide a byte buffer with size of at least
	// Length. Implementers of this function may assume that the byte
	// buffer is of sufficient size. serializeInto MAY panic if the
	// provided byte buffer is not of sufficient size.
	//
	// serializeInto will return the number of bytes that was used to
	// serialize the option. Implementers must only use the number of
	// bytes required to serialize the option. Callers MAY provide a
	// larger buffer than required to serialize into.
	serializeInto([]byte) int
}

// paddedLength returns the length of o, in bytes, with any padding bytes,
// if required.
func paddedLength(o NDPOption) int {
	l := o.Length()

	if l == 0 {
		return 0
	}

	// Length excludes the 2 Type and Length bytes.
	l += 2

	// Add extra bytes if needed to make sure the option is
	// lengthByteUnits-byte aligned. We do this by adding
	// lengthByteUnits-1 to l and then stripping off the last few LSBits
	// from l. This will make sure that l is rounded up to the nearest
	// unit of lengthByteUnits. This works since lengthByteUnits is a
	// power of 2 (= 8).
	mask := lengthByteUnits - 1
	l += mask
	l &^= mask

	if l/lengthByteUnits > 255 {
		// Should never happen because an option can only have a max
		// value of 255 for its Length field, so return 0 so this
		// option does not get serialized.
		//
		// Returning 0 here will make sure that this option does not
		// get serialized when NDPOptions.Serialize is called with the
		// NDPOptionsSerializer that holds this option, effectively
		// skipping this option during serialization. Also note that
		// a value of zero for the Length field in an NDP option is
		// invalid so this is another sign to the caller that this NDP
		// option is malformed, as per RFC 4861 section 4.6.
		return 0
	}

	return l
}

// NDPOptionsSerializer is a serializer for NDP options.
type NDPOptionsSerializer []NDPOption

// Length returns the total number of bytes required to serialize.
func (b NDPOptionsSerializer) Length() int {
	l := 0

	for _, o := range b {
		l += paddedLength(o)
	}

	return l
}

// NDPSourceLinkLayerAddressOption is the NDP Source Link Layer Option
// as defined by RFC 4861 section 4.6.1.
//
// It is the first X bytes following the NDP option's Type and Length
// field where X is the value in Length multiplied by lengthByteUnits - 2
// bytes.
type NDPSourceLinkLayerAddressOption ip6.LinkAddress

// Type implements NDPOption.Type.
func (o NDPSourceLinkLayerAddressOption) Type() uint8 {
	return NDPSourceLinkLayerAddressOptionType
}

// Length implements NDPOption.Length.
func (o NDPSourceLinkLayerAddressOption) Length() int {
	return len(o)
}

// serializeInto implements NDPOption.serializeInto.
func (o NDPSourceLinkLayerAddressOption) serializeInto(b []byte) int {
	return copy(b, o)
}

// EthernetAddress will return an ethernet (MAC) address if the
// NDPSourceLinkLayerAddressOption's body has at minimum 6 bytes.
func (o NDPSourceLinkLayerAddressOption) EthernetAddress() ip6.LinkAddress {
	if len(o) >= ethernetAddressSize {
		return ip6.LinkAddress(o[:ethernetAddressSize])
	}

	return ""
}

// NDPPrefixInformation is the NDP Prefix Information option as defined by
// RFC 4861 section 4.6.2.
//
// The length, in bytes, of a valid NDP Prefix Information option body
// MUST be ndpPrefixInformationLength bytes.
type NDPPrefixInformation []byte

// Type implements NDPOption.Type.
func (o NDPPrefixInformation) Type() uint8 {
	return ndpPrefixInformationType
}

// Length implements NDPOption.Length.
func (o NDPPrefixInformation) Length() int {
	return ndpPrefixInformationLength
}

// serializeInto implements NDPOption.serializeInto.
func (o NDPPrefixInformation) serializeInto(b []byte) int {
	used := copy(b, o)

	// Zero out the Reserved1 field.
	b[ndpPrefixInformationFlagsOffset] &^= ndpPrefixInformationReserved1FlagsMask

	// Zero out the Reserved2 field.
	reserved2 := b[ndpPrefixInformationReserved2Offset:][:ndpPrefixInformationReserved2Length]
	for i := range reserved2 {
		reserved2[i] = 0
	}

	return used
}

// PrefixLength returns the value in the number of leading bits in the
// Prefix that are valid.
//
// Valid values are in the range [0, 128], but o may not always contain
// valid values. It is up to the caller to validate the Prefix Information
// option.
func (o NDPPrefixInformation) PrefixLength() uint8 {
	return o[ndpPrefixInformationPrefixLengthOffset]
}

// OnLinkFlag returns true of the prefix is considered on-link. On-link
// means that a forwarding node is not needed to send packets to other
// nodes on the same prefix.
//
// Note, when this function returns false, no statement is made about the
// on-link property of a prefix. That is, if OnLinkFlag returns false, the
// caller MUST NOT conclude that the prefix is off-link and MUST NOT
// update any previously stored state for this prefix about its on-link
// status.
func (o NDPPrefixInformation) OnLinkFlag() bool {
	return o[ndpPrefixInformationFlagsOffset]&ndpPrefixInformationOnLinkFlagMask != 0
}

// AutonomousAddressConfigurationFlag returns true if the prefix can be
// used for Stateless Address Auto-Configuration (as specified in RFC
// 4862).
func (o NDPPrefixInformation) AutonomousAddressConfigurationFlag() bool {
	return o[ndpPrefixInformationFlagsOffset]&ndpPrefixInformationAutoAddrConfFlagMask != 0
}

// ValidLifetime returns the length of time that the prefix is valid for
// the purpose of on-link determination. This value is relative to the
// send time of the packet that the Prefix Information option was present
// in.
//
// Note, a value of 0 implies the prefix should not be considered as
// on-link, and a value of infinity/forever is represented by
// NDPPrefixInformationInfiniteLifetime.
func (o NDPPrefixInformation) ValidLifetime() time.Duration {
	// The field is the time in seconds, as per RFC 4861 section 4.6.2.
	return time.Second * time.Duration(binary.BigEndian.Uint32(o[ndpPrefixInformationValidLifetimeOffset:]))
}

// PreferredLifetime returns the length of time that an address generated
// from the prefix via Stateless Address Auto-Configuration remains
// preferred. This value is relative to the send time of the packet that
// the Prefix Information option was present in.
//
// Note, a value of 0 implies that addresses generated from the prefix
// should no longer remain preferred, and a value of infinity is
// represented by NDPPrefixInformationInfiniteLifetime.
//
// Also note that the value of this field MUST NOT exceed the Valid
// Lifetime field to avoid preferring addresses that are no longer valid,
// for the purpose of Stateless Address Auto-Configuration.
func (o NDPPrefixInformation) PreferredLifetime() time.Duration {
	// The field is the time in seconds, as per RFC 4861 section 4.6.2.
	return time.Second * time.Duration(binary.BigEndian.Uint32(o[ndpPrefixInformationPreferredLifetimeOffset:]))
}

// Prefix returns an IPv6 address or a prefix of an IPv6 address. The
// Prefix Length field (see NDPPrefixInformation.PrefixLength) contains
// the number of valid leading bits in the prefix.
//
// Hosts SHOULD ignore an NDP Prefix Information option where the Prefix
// field holds the link-local prefix (fe80::).
func (o NDPPrefixInformation) Prefix() ip6.Address {
	return ip6.Address(o[ndpPrefixInformationPrefixOffset:][:IPv6AddressSize])
}
