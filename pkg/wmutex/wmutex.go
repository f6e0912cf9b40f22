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

// Package wmutex provides the implementation of a waitable mutex: a
// mutual exclusion primitive whose WaitTimeout operation releases the
// lock, blocks on a signal channel or a timeout, and reacquires the lock
// before returning. It serves as the serialization context that a stack
// holds across blocking waits without deadlocking the paths that must
// signal those waits.
package wmutex

import (
	"sync/atomic"
	"time"

	"inet6.dev/inet6/pkg/ip6"
)

// Mutex is a mutual exclusion primitive with a condition-variable-style
// timed wait. The zero value is not valid; call Init before use.
type Mutex struct {
	v  int32
	ch chan struct{}
}

// Init initializes the mutex to the unlocked state.
func (m *Mutex) Init() {
	m.v = 1
	m.ch = make(chan struct{}, 1)
}

// Lock acquires the mutex, blocking until it is available.
func (m *Mutex) Lock() {
	if atomic.AddInt32(&m.v, -1) == 0 {
		return
	}

	for {
		// Try to acquire the mutex again, at the same time making
		// sure that m.v is negative, which indicates to the owner of
		// the lock that it is contended and that it must wake someone
		// up when it releases the mutex.
		if v := atomic.LoadInt32(&m.v); v >= 0 && atomic.SwapInt32(&m.v, -1) == 1 {
			return
		}

		<-m.ch
	}
}

// TryLock attempts to acquire the mutex without blocking. It returns
// true if the mutex was acquired.
func (m *Mutex) TryLock() bool {
	v := atomic.LoadInt32(&m.v)
	if v <= 0 {
		return false
	}
	return atomic.CompareAndSwapInt32(&m.v, 1, 0)
}

// Unlock releases the mutex. It must only be called by the holder.
func (m *Mutex) Unlock() {
	if atomic.SwapInt32(&m.v, 1) == 0 {
		// There were no pending waiters.
		return
	}

	// Wake some waiter up.
	select {
	case m.ch <- struct{}{}:
	default:
	}
}

// WaitTimeout releases the mutex, blocks until ch is readable or until
// timeout has elapsed on clock, then reacquires the mutex before
// returning. It returns true if ch was signalled and false if the wait
// timed out.
//
// The caller must hold the mutex. Because the mutex is released for the
// duration of the wait, code running under the mutex may signal ch
// without deadlocking against the waiter.
func (m *Mutex) WaitTimeout(clock ip6.Clock, ch <-chan struct{}, timeout time.Duration) bool {
	m.Unlock()

	expired := make(chan struct{})
	t := clock.AfterFunc(timeout, func() {
		close(expired)
	})

	var signalled bool
	select {
	case <-ch:
		signalled = true
	case <-expired:
	}
	t.Stop()

	m.Lock()
	return signalled
}
