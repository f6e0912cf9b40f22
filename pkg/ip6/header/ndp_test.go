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
	"bytes"
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"inet6.dev/inet6/pkg/ip6"
)

func TestNDPRouterSolicit(t *testing.T) {
	b := []byte{
		0, 0, 0, 0,
		1, 1, 1, 2,
		3, 4, 5, 6,
	}

	rs := NDPRouterSolicit(b)
	want := []byte{1, 1, 1, 2, 3, 4, 5, 6}
	if got := []byte(rs.Options()); !bytes.Equal(got, want) {
		t.Fatalf("got rs.Options = %x, want = %x", got, want)
	}
}

func TestNDPRouterAdvert(t *testing.T) {
	b := []byte{
		64, 128, 1, 2,
		3, 4, 5, 6,
		7, 8, 9, 10,
	}

	ra := NDPRouterAdvert(b)

	if got := ra.CurrHopLimit(); got != 64 {
		t.Fatalf("got ra.CurrHopLimit = %d, want = 64", got)
	}

	if got := ra.ManagedAddrConfFlag(); !got {
		t.Fatalf("got ManagedAddrConfFlag = false, want = true")
	}

	if got := ra.OtherConfFlag(); got {
		t.Fatalf("got OtherConfFlag = true, want = false")
	}

	if got, want := ra.RouterLifetime(), time.Second*258; got != want {
		t.Fatalf("got ra.RouterLifetime = %d, want = %d", got, want)
	}

	if got, want := ra.ReachableTime(), time.Millisecond*50595078; got != want {
		t.Fatalf("got ra.ReachableTime = %d, want = %d", got, want)
	}

	if got, want := ra.RetransTimer(), time.Millisecond*117967114; got != want {
		t.Fatalf("got ra.RetransTimer = %d, want = %d", got, want)
	}
}

// TestNDPSourceLinkLayerAddressOptionSerialize tests serializing a
// NDPSourceLinkLayerAddressOption.
func TestNDPSourceLinkLayerAddressOptionSerialize(t *testing.T) {
	tests := []struct {
		name        string
		buf         []byte
		expectedBuf []byte
		addr        ip6.LinkAddress
	}{
		{
			"Ethernet",
			make([]byte, 8),
			[]byte{1, 1, 1, 2, 3, 4, 5, 6},
			"\x01\x02\x03\x04\x05\x06",
		},
		{
			"Padding",
			[]byte{1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1},
			[]byte{1, 2, 1, 2, 3, 4, 5, 6, 7, 8, 0, 0, 0, 0, 0, 0},
			"\x01\x02\x03\x04\x05\x06\x07\x08",
		},
		{
			"Empty",
			[]byte{},
			[]byte{},
			"",
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			opts := NDPOptions(test.buf)
			serializer := NDPOptionsSerializer{
				NDPSourceLinkLayerAddressOption(test.addr),
			}
			if got, want := serializer.Length(), len(test.expectedBuf); got != want {
				t.Fatalf("got Length = %d, want = %d", got, want)
			}
			opts.Serialize(serializer)
			if !bytes.Equal(test.buf, test.expectedBuf) {
				t.Fatalf("got b = %d, want = %d", test.buf, test.expectedBuf)
			}
		})
	}
}

func TestNDPSourceLinkLayerAddressOptionEthernetAddress(t *testing.T) {
	tests := []struct {
		name     string
		buf      []byte
		expected ip6.LinkAddress
	}{
		{
			"ValidMAC",
			[]byte{1, 2, 3, 4, 5, 6},
			ip6.LinkAddress("\x01\x02\x03\x04\x05\x06"),
		},
		{
			"SLLBodyTooShort",
			[]byte{1, 2, 3, 4, 5},
			ip6.LinkAddress(""),
		},
		{
			"SLLBodyLargerThanNeeded",
			[]byte{1, 2, 3, 4, 5, 6, 7, 8},
			ip6.LinkAddress("\x01\x02\x03\x04\x05\x06"),
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			sll := NDPSourceLinkLayerAddressOption(test.buf)
			if got := sll.EthernetAddress(); got != test.expected {
				t.Fatalf("got sll.EthernetAddress = %s, want = %s", got, test.expected)
			}
		})
	}
}

// TestNDPPrefixInformation tests the field getters of an
// NDPPrefixInformation.
func TestNDPPrefixInformation(t *testing.T) {
	b := []byte{
		43, 127, 1, 2,
		3, 4, 5, 6,
		7, 8, 30, 31,
		32, 33, 14, 15,
		16, 17, 18, 19,
		20, 21, 22, 23,
		24, 25, 26, 27,
		28, 29,
	}

	pi := NDPPrefixInformation(b)

	if got := pi.PrefixLength(); got != 43 {
		t.Fatalf("got pi.PrefixLength = %d, want = 43", got)
	}

	if got := pi.OnLinkFlag(); got {
		t.Fatalf("got pi.OnLinkFlag = true, want = false")
	}

	if got := pi.AutonomousAddressConfigurationFlag(); !got {
		t.Fatalf("got pi.AutonomousAddressConfigurationFlag = false, want = true")
	}

	if got, want := pi.ValidLifetime(), time.Second*16909060; got != want {
		t.Fatalf("got pi.ValidLifetime = %d, want = %d", got, want)
	}

	if got, want := pi.PreferredLifetime(), time.Second*84281096; got != want {
		t.Fatalf("got pi.PreferredLifetime = %d, want = %d", got, want)
	}

	if got, want := pi.Prefix(), ip6.Address("\x0e\x0f\x10\x11\x12\x13\x14\x15\x16\x17\x18\x19\x1a\x1b\x1c\x1d"); got != want {
		t.Fatalf("got pi.Prefix = %s, want = %s", got, want)
	}
}

// TestNDPPrefixInformationSerialize tests that serializing an
// NDPPrefixInformation zeroes out the Reserved1 and Reserved2 fields.
func TestNDPPrefixInformationSerialize(t *testing.T) {
	body := []byte{
		64, 255, 1, 2,
		3, 4, 5, 6,
		7, 8, 9, 10,
		11, 12, 13, 14,
		15, 16, 17, 18,
		19, 20, 21, 22,
		23, 24, 25, 26,
		27, 28,
	}

	targetBuf := make([]byte, 32)
	serializer := NDPOptionsSerializer{
		NDPPrefixInformation(body),
	}
	if got, want := serializer.Length(), len(targetBuf); got != want {
		t.Fatalf("got Length = %d, want = %d", got, want)
	}
	NDPOptions(targetBuf).Serialize(serializer)

	expectedBuf := []byte{
		3, 4, 64, 192,
		1, 2, 3, 4,
		5, 6, 7, 8,
		0, 0, 0, 0,
		13, 14, 15, 16,
		17, 18, 19, 20,
		21, 22, 23, 24,
		25, 26, 27, 28,
	}
	if diff := cmp.Diff(expectedBuf, targetBuf); diff != "" {
		t.Fatalf("serialized buffer mismatch (-want +got):\n%s", diff)
	}

	// The serialized option must parse back to an equivalent Prefix
	// Information option, modulo the reserved fields.
	it, err := NDPOptions(targetBuf).Iter(true)
	if err != nil {
		t.Fatalf("got Iter = (_, %s), want = (_, nil)", err)
	}

	opt, done, err := it.Next()
	if err != nil {
		t.Fatalf("got Next = (_, _, %s), want = (_, _, nil)", err)
	}
	if done {
		t.Fatal("got Next = (_, true, _), want = (_, false, _)")
	}
	pi, ok := opt.(NDPPrefixInformation)
	if !ok {
		t.Fatalf("got Next = (%T, _, _), want = (NDPPrefixInformation, _, _)", opt)
	}
	if got := pi.PrefixLength(); got != 64 {
		t.Fatalf("got pi.PrefixLength = %d, want = 64", got)
	}
	if got := pi.OnLinkFlag(); !got {
		t.Fatalf("got pi.OnLinkFlag = false, want = true")
	}
	if got := pi.AutonomousAddressConfigurationFlag(); !got {
		t.Fatalf("got pi.AutonomousAddressConfigurationFlag = false, want = true")
	}
}

// TestNDPOptionsIter tests iteration over a buffer of mixed options,
// including an unrecognized option that must be skipped.
func TestNDPOptionsIter(t *testing.T) {
	buf := []byte{
		// Source Link-Layer Address option.
		1, 1, 1, 2, 3, 4, 5, 6,

		// Unrecognized option type; must be silently skipped.
		255, 2, 1, 2, 3, 4, 5, 6,
		7, 8, 9, 10, 11, 12, 13, 14,

		// Prefix Information option.
		3, 4, 64, 192,
		1, 2, 3, 4,
		5, 6, 7, 8,
		0, 0, 0, 0,
		15, 16, 17, 18,
		19, 20, 21, 22,
		23, 24, 25, 26,
		27, 28, 0, 0,
	}

	it, err := NDPOptions(buf).Iter(true)
	if err != nil {
		t.Fatalf("got Iter = (_, %s), want = (_, nil)", err)
	}

	opt, done, err := it.Next()
	if err != nil {
		t.Fatalf("got Next = (_, _, %s), want = (_, _, nil)", err)
	}
	if done {
		t.Fatal("got Next = (_, true, _), want = (_, false, _)")
	}
	sll, ok := opt.(NDPSourceLinkLayerAddressOption)
	if !ok {
		t.Fatalf("got Next = (%T, _, _), want = (NDPSourceLinkLayerAddressOption, _, _)", opt)
	}
	if got, want := sll.EthernetAddress(), ip6.LinkAddress("\x01\x02\x03\x04\x05\x06"); got != want {
		t.Fatalf("got sll.EthernetAddress = %s, want = %s", got, want)
	}

	// The unrecognized option is skipped; next is the Prefix Information.
	opt, done, err = it.Next()
	if err != nil {
		t.Fatalf("got Next = (_, _, %s), want = (_, _, nil)", err)
	}
	if done {
		t.Fatal("got Next = (_, true, _), want = (_, false, _)")
	}
	pi, ok := opt.(NDPPrefixInformation)
	if !ok {
		t.Fatalf("got Next = (%T, _, _), want = (NDPPrefixInformation, _, _)", opt)
	}
	if got, want := pi.Prefix(), ip6.Address("\x0f\x10\x11\x12\x13\x14\x15\x16\x17\x18\x19\x1a\x1b\x1c\x00\x00"); got != want {
		t.Fatalf("got pi.Prefix = %s, want = %s", got, want)
	}

	if _, done, err := it.Next(); err != nil || !done {
		t.Fatalf("got Next = (_, %t, %v), want = (_, true, nil)", done, err)
	}
}

// TestNDPOptionsIterCheck tests that Iter detects malformed option
// buffers when asked to check.
func TestNDPOptionsIterCheck(t *testing.T) {
	tests := []struct {
		name     string
		buf      []byte
		expected error
	}{
		{
			"ZeroLengthField",
			[]byte{0, 0, 0, 0, 0, 0, 0, 0},
			ErrNDPOptZeroLength,
		},
		{
			"ValidSourceLinkLayerAddressOption",
			[]byte{1, 1, 1, 2, 3, 4, 5, 6},
			nil,
		},
		{
			"TooSmallSourceLinkLayerAddressOption",
			[]byte{1, 1, 1, 2, 3, 4, 5},
			ErrNDPOptBufExhausted,
		},
		{
			"ValidPrefixInformation",
			[]byte{
				3, 4, 43, 64,
				1, 2, 3, 4,
				5, 6, 7, 8,
				0, 0, 0, 0,
				9, 10, 11, 12,
				13, 14, 15, 16,
				17, 18, 19, 20,
				21, 22, 23, 24,
			},
			nil,
		},
		{
			"TooSmallPrefixInformation",
			[]byte{
				3, 4, 43, 64,
				1, 2, 3, 4,
				5, 6, 7, 8,
				0, 0, 0, 0,
				9, 10, 11, 12,
				13, 14, 15, 16,
				17, 18, 19, 20,
				21, 22, 23,
			},
			ErrNDPOptBufExhausted,
		},
		{
			"BadPrefixInformationLength",
			[]byte{
				3, 3, 43, 64,
				1, 2, 3, 4,
				5, 6, 7, 8,
				0, 0, 0, 0,
				9, 10, 11, 12,
				13, 14, 15, 16,
			},
			ErrNDPOptMalformedBody,
		},
		{
			"ValidUnrecognizedOption",
			[]byte{255, 1, 1, 2, 3, 4, 5, 6},
			nil,
		},
		{
			"TruncatedUnrecognizedOption",
			[]byte{255, 2, 1, 2, 3, 4, 5, 6},
			ErrNDPOptBufExhausted,
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			opts := NDPOptions(test.buf)
			if _, err := opts.Iter(true); !errors.Is(err, test.expected) {
				t.Fatalf("got Iter(true) = (_, %v), want = (_, %v)", err, test.expected)
			}
		})
	}
}
