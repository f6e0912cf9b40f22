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

package tundev

import (
	"fmt"
	"unsafe"

	"golang.org/x/sys/unix"
)

// openTUN opens the named TUN device without packet information framing,
// sets it to non-blocking mode, and returns its file descriptor.
func openTUN(name string) (int, error) {
	fd, err := unix.Open("/dev/net/tun", unix.O_RDWR, 0)
	if err != nil {
		return -1, fmt.Errorf("open /dev/net/tun: %w", err)
	}

	var ifr struct {
		name  [16]byte
		flags uint16
		_     [22]byte
	}
	copy(ifr.name[:], name)
	ifr.flags = unix.IFF_TUN | unix.IFF_NO_PI

	if _, _, errno := unix.Syscall(unix.SYS_IOCTL, uintptr(fd), unix.TUNSETIFF, uintptr(unsafe.Pointer(&ifr))); errno != 0 {
		unix.Close(fd)
		return -1, fmt.Errorf("ioctl TUNSETIFF %q: %w", name, errno)
	}

	if err := unix.SetNonblock(fd, true); err != nil {
		unix.Close(fd)
		return -1, fmt.Errorf("set %q non-blocking: %w", name, err)
	}

	return fd, nil
}

// getMTU queries the MTU of the named network interface.
func getMTU(name string) (uint32, error) {
	fd, err := unix.Socket(unix.AF_UNIX, unix.SOCK_DGRAM, 0)
	if err != nil {
		return 0, err
	}
	defer unix.Close(fd)

	var ifreq struct {
		name [16]byte
		mtu  int32
		_    [20]byte
	}
	copy(ifreq.name[:], name)

	if _, _, errno := unix.Syscall(unix.SYS_IOCTL, uintptr(fd), unix.SIOCGIFMTU, uintptr(unsafe.Pointer(&ifreq))); errno != 0 {
		return 0, fmt.Errorf("ioctl SIOCGIFMTU %q: %w", name, errno)
	}

	return uint32(ifreq.mtu), nil
}

// blockingRead reads one packet from a file descriptor that is set up as
// non-blocking. If no data is available, it blocks in a poll() until the
// descriptor becomes readable.
func blockingRead(fd int, b []byte) (int, error) {
	for {
		n, err := unix.Read(fd, b)
		if err == nil {
			return n, nil
		}
		if err != unix.EAGAIN && err != unix.EWOULDBLOCK && err != unix.EINTR {
			return 0, err
		}

		events := []unix.PollFd{{
			Fd:     int32(fd),
			Events: unix.POLLIN,
		}}
		if _, err := unix.Poll(events, -1); err != nil && err != unix.EINTR {
			return 0, err
		}
	}
}

// nonBlockingWrite writes buf to a file descriptor in a single write. It
// fails if partial data is written.
func nonBlockingWrite(fd int, buf []byte) error {
	n, err := unix.Write(fd, buf)
	if err != nil {
		return err
	}
	if n != len(buf) {
		return fmt.Errorf("partial write: %d of %d bytes", n, len(buf))
	}
	return nil
}
