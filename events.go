// Copyright 2023 The go-zeromq Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package zsock

import "strings"

// EventFlags is a bit-set of readiness conditions on a handle, used both as
// an interest mask handed to a Waiter and as the result mask it reports.
type EventFlags uint8

const (
	// EventIn signals that a message can be received without blocking.
	EventIn EventFlags = 1 << iota
	// EventOut signals that a message can be sent without blocking.
	EventOut
	// EventErr signals an error condition on the handle. Interest masks
	// computed from listener registrations always carry it.
	EventErr
)

// Has reports whether every bit of f2 is set in f.
func (f EventFlags) Has(f2 EventFlags) bool { return f&f2 == f2 }

func (f EventFlags) String() string {
	if f == 0 {
		return "<none>"
	}
	var names []string
	if f.Has(EventIn) {
		names = append(names, "in")
	}
	if f.Has(EventOut) {
		names = append(names, "out")
	}
	if f.Has(EventErr) {
		names = append(names, "err")
	}
	return strings.Join(names, "|")
}

// SendFlags modify a send or a (deprecated) throwing receive.
type SendFlags uint8

const (
	// DontWait requests a non-blocking operation.
	DontWait SendFlags = 1 << iota
	// SendMore marks the message as part of a longer multi-part message.
	// It is accepted and ignored on receive paths.
	SendMore
)

// ReadyEvent describes one readiness dispatch. Each socket keeps a single
// ReadyEvent that it mutates in place before invoking listeners, so handlers
// must not retain it beyond their own invocation.
type ReadyEvent struct {
	Sock  *Socket
	Flags EventFlags
}

// ListenerID identifies one listener registration. Registering the same
// function twice yields two IDs and two invocations per dispatch.
type ListenerID uint64

type listenerEntry struct {
	id ListenerID
	fn func(*ReadyEvent)
}

// listenerList is an ordered multicast of readiness listeners. Entries fire
// in registration order.
type listenerList []listenerEntry

func (l listenerList) remove(id ListenerID) (listenerList, bool) {
	for i := range l {
		if l[i].id == id {
			return append(l[:i:i], l[i+1:]...), true
		}
	}
	return l, false
}

// snapshot returns a copy safe to iterate without the socket lock held, so
// a handler may add or remove listeners (or close the socket) freely.
// Mutations take effect on the next dispatch.
func (l listenerList) snapshot() []listenerEntry {
	if len(l) == 0 {
		return nil
	}
	out := make([]listenerEntry, len(l))
	copy(out, l)
	return out
}
