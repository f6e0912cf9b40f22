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

package stack

import (
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"inet6.dev/inet6/pkg/ip6"
)

// nicNameSize is the size, in bytes, of the fixed-size NIC name a
// router-advertisement waiter matches on. Longer NIC names are truncated
// when they are copied into a waiter.
const nicNameSize = 16

// RAWaiter represents one in-flight wait for a Router Advertisement on a
// NIC. The storage is owned by the caller; the registry only links it.
//
// A RAWaiter is valid between SetupRAWait and CancelRAWait. It must not
// be copied or reused while registered, and it must not be released back
// to its allocator until the cancel has returned.
type RAWaiter struct {
	// ifname is the truncated name of the NIC the waiter is interested
	// in, copied at setup time. Notify matches on it with a fixed-length
	// comparison.
	ifname [nicNameSize]byte

	// res is the result slot. Setup initializes it to ip6.ErrTimeout;
	// a matching notify overwrites it to nil (success) exactly once. It
	// is written under the registry lock and read by the waiter only
	// after the signal has been delivered.
	res *ip6.Error

	// done is the waiter's wake signal. It has capacity one so that a
	// notify that lands before the waiter blocks is not lost.
	done chan struct{}

	// next links the waiter into the registry. The registry holds the
	// only reference; it never owns the record.
	next *RAWaiter
}

// raWaiterRegistry is an insertion-ordered set of RAWaiters, newest
// first. All mutation and traversal happens under mu, which is only ever
// held for short, non-blocking critical sections so that the receive
// path may use it freely.
type raWaiterRegistry struct {
	mu   sync.Mutex
	head *RAWaiter
}

// setup prepares w for a wait on the NIC name key and pushes it onto the
// head of the registry.
func (r *raWaiterRegistry) setup(name [nicNameSize]byte, w *RAWaiter) {
	w.ifname = name
	w.res = ip6.ErrTimeout
	w.done = make(chan struct{}, 1)

	r.mu.Lock()
	w.next = r.head
	r.head = w
	r.mu.Unlock()
}

// cancel unlinks w from the registry, matching by identity rather than
// by name since multiple waiters may transiently share a name. The
// signal reference is torn down on every exit path. Returns
// ip6.ErrNoWaiter if w was not registered.
func (r *raWaiterRegistry) cancel(w *RAWaiter) *ip6.Error {
	found := false

	r.mu.Lock()
	for p := &r.head; *p != nil; p = &(*p).next {
		if *p == w {
			*p = w.next
			found = true
			break
		}
	}
	r.mu.Unlock()

	w.next = nil
	w.done = nil

	if !found {
		return ip6.ErrNoWaiter
	}
	return nil
}

// claim finds the most recently registered waiter for name that has not
// already been claimed, marks it as succeeded, and returns it along with
// its signal channel. At most one waiter is claimed per call; any other
// waiters for the same name stay pending. Returns nil if no waiter
// matches.
func (r *raWaiterRegistry) claim(name [nicNameSize]byte) (*RAWaiter, chan<- struct{}) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for w := r.head; w != nil; w = w.next {
		if w.res != nil && w.ifname == name {
			w.res = nil
			return w, w.done
		}
	}
	return nil, nil
}

// nicNameKey truncates a NIC name to the fixed-size form waiters match
// on.
func nicNameKey(name string) [nicNameSize]byte {
	var key [nicNameSize]byte
	copy(key[:], name)
	return key
}

// nicName returns the string form of a fixed-size NIC name key.
func nicName(key [nicNameSize]byte) string {
	for i, b := range key {
		if b == 0 {
			return string(key[:i])
		}
	}
	return string(key[:])
}

// SetupRAWait registers w as a waiter for a Router Advertisement on the
// NIC identified by id. It must be called before the corresponding
// Router Solicitation is transmitted so that a reply cannot arrive
// before the waiter is visible to the receive path.
//
// The caller keeps ownership of w's storage and must eventually hand w
// to WaitRA or CancelRAWait, exactly once.
func (s *Stack) SetupRAWait(id ip6.NICID, w *RAWaiter) *ip6.Error {
	s.mu.Lock()
	defer s.mu.Unlock()

	nic, ok := s.nics[id]
	if !ok {
		return ip6.ErrUnknownNICID
	}
	s.raWaiters.setup(nic.nameKey, w)
	return nil
}

// CancelRAWait removes w from the waiter registry. Every waiter set up
// with SetupRAWait must be cancelled exactly once; WaitRA does this
// implicitly. Cancelling a waiter that was already notified but whose
// result has been consumed is legal and only tears down its resources.
//
// A waiter that is not found in the registry indicates a double cancel
// or a record that was never set up. This is a contract violation by the
// caller; it is logged and reported as ip6.ErrNoWaiter rather than
// recovered from.
func (s *Stack) CancelRAWait(w *RAWaiter) *ip6.Error {
	if err := s.raWaiters.cancel(w); err != nil {
		s.log.Warnf("stack: cancel of unregistered RA waiter (name %q)", nicName(w.ifname))
		return err
	}
	return nil
}

// WaitRA blocks the caller until w is notified by a matching Router
// Advertisement or until timeout elapses, whichever comes first, and
// then unconditionally cancels w. On notification it returns nil; on
// timeout it returns ip6.ErrTimeout.
//
// The wait suspends with the stack's serialization lock released and
// reacquired on wake, so the receive path can apply addresses and signal
// the waiter without deadlocking.
func (s *Stack) WaitRA(w *RAWaiter, timeout time.Duration) *ip6.Error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.waitRALocked(w, timeout)
}

// waitRALocked is WaitRA with s.mu held by the caller.
func (s *Stack) waitRALocked(w *RAWaiter, timeout time.Duration) *ip6.Error {
	done := w.done
	res := ip6.ErrTimeout
	if s.mu.WaitTimeout(s.clock, done, timeout) {
		// The signal is only posted after the notifier has written the
		// result, so the read is ordered after the write.
		res = w.res
	}

	if err := s.CancelRAWait(w); err != nil {
		panic("stack: RA waiter vanished from the registry before its own cancel")
	}
	return res
}

// NotifyRA delivers a received Router Advertisement carrying an
// autonomous prefix to the most recently registered pending waiter for
// the NIC identified by id, if any. The matched waiter's NIC has the
// prefix merged into its address and router recorded as its default
// router before the waiter is woken; exactly one waiter is woken per
// call. If no waiter is pending, this is a no-op -- unsolicited
// advertisements are normal operation.
//
// NotifyRA is called from the receive path. It may contend briefly on
// the stack's serialization lock but never blocks on a suspended waiter,
// since waiters suspend with that lock released.
func (s *Stack) NotifyRA(id ip6.NICID, router ip6.Address, prefix ip6.AddressWithPrefix) {
	s.mu.Lock()

	nic, ok := s.nics[id]
	if !ok {
		s.mu.Unlock()
		return
	}

	w, done := s.raWaiters.claim(nic.nameKey)
	if w != nil {
		// Apply addresses while still holding the serialization lock
		// so that no concurrently transmitted packet can observe a
		// half-updated address.
		nic.applyRouterAdvertLocked(router, prefix.Address, prefix.PrefixLen)
	}
	s.mu.Unlock()

	if w == nil {
		return
	}

	// The claim is exclusive, so this is the one and only post for this
	// wait cycle; the channel has room for it even if the waiter has not
	// blocked yet.
	done <- struct{}{}

	s.log.WithFields(logrus.Fields{
		"nic":    nic.name,
		"router": router,
		"prefix": prefix,
	}).Debug("stack: router advertisement notified waiter")

	if d := s.dispatcher; d != nil {
		d.OnRouterAdvert(id, router, prefix)
	}
}
