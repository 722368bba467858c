// Copyright 2023 The go-zeromq Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package zsock implements the per-socket control plane of a ZeroMQ-style
// messaging stack: socket lifecycle, readiness listeners, blocking and
// non-blocking poll and send/receive, typed socket options and endpoint
// monitoring.
//
// The package does not speak a wire protocol and does not perform transport
// I/O. Those live in an engine consumed through the Handle contract, together
// with a Waiter that multiplexes blocking waits over one or more handles.
package zsock

import (
	"io"
	"log"
	"time"
)

// Devnull is a logger that drops everything on the floor.
var Devnull = log.New(io.Discard, "", 0)

// Handle is the engine-side face of a socket. A Handle is exclusively owned
// by the Socket wrapping it and is released exactly once, by Socket.Close.
// Every method fails with an error wrapping ErrClosed once the handle has
// been released, and with ErrTerminating while the engine is shutting down.
type Handle interface {
	// Bind attaches the handle to a local endpoint.
	Bind(ep string) error

	// BindRandomPort binds to an ephemeral port on a TCP endpoint and
	// reports the port chosen. Non-TCP endpoints fail with ErrBadProtocol.
	BindRandomPort(ep string) (int, error)

	// Connect attaches the handle to a remote endpoint.
	Connect(ep string) error

	// TermEndpoint detaches the named endpoint, whether it was created by
	// Bind or by Connect. Unknown endpoints fail with ErrEndpointNotFound.
	TermEndpoint(ep string) error

	// Close releases the handle.
	Close() error

	// Recv blocks until a complete message is available and fills msg.
	Recv(msg *Msg) error

	// TryRecv waits up to timeout for a message. It reports false, with a
	// nil error, when the timeout expires first. A negative timeout blocks
	// indefinitely, a zero timeout polls.
	TryRecv(msg *Msg, timeout time.Duration) (bool, error)

	// Send queues msg, honouring DontWait and SendMore flags. Sending an
	// uninitialized message fails with ErrFault.
	Send(msg *Msg, flags SendFlags) error

	// Monitor registers for connection-lifecycle events on ep.
	Monitor(ep string, events MonitorEvent) error

	// GetOption retrieves an engine option.
	GetOption(id OptionID) (OptionValue, error)

	// SetOption sets an engine option.
	SetOption(id OptionID, v OptionValue) error
}

// WaitItem is one (handle, interest) entry of a wait set. Wait fills Ready
// with the subset of conditions that became true.
type WaitItem struct {
	Handle Handle
	Events EventFlags
	Ready  EventFlags
}

// Waiter blocks the calling goroutine until at least one item of the wait
// set becomes ready or the timeout expires. A negative timeout blocks
// indefinitely, a zero timeout polls. A plain timeout is not an error: Wait
// returns nil and leaves every Ready mask empty. Internal failures are
// reported as errors wrapping ErrFault; a handle whose engine is shutting
// down fails with ErrTerminating.
type Waiter interface {
	Wait(items []WaitItem, timeout time.Duration) error
}
