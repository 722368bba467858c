// Copyright 2023 The go-zeromq Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package zsock

import "errors"

// Errors shared between the socket layer and engine implementations.
// Engine-originated failures propagate to callers unchanged; this layer adds
// no retry logic and swallows nothing except repeated Close and removal of
// an absent listener.
var (
	// ErrClosed is returned by every operation on a closed socket or a
	// released handle, except Close itself which is idempotent.
	ErrClosed = errors.New("zsock: socket closed")

	// ErrTerminating is returned while the engine is shutting down.
	ErrTerminating = errors.New("zsock: engine terminating")

	// ErrAddrInUse is returned by Bind when the endpoint is already bound.
	ErrAddrInUse = errors.New("zsock: address in use")

	// ErrBadProtocol is returned by BindRandomPort on a non-TCP endpoint,
	// and by engines asked for a transport they do not implement.
	ErrBadProtocol = errors.New("zsock: protocol not supported")

	// ErrEndpointNotFound is returned by Disconnect and Unbind when the
	// named endpoint is not attached to the socket.
	ErrEndpointNotFound = errors.New("zsock: endpoint not found")

	// ErrAgain signals that a bounded or non-blocking operation would have
	// blocked. Only the deprecated throwing API reports timeouts this way;
	// TryRecv reports them as a false flag with a nil error.
	ErrAgain = errors.New("zsock: resource temporarily unavailable")

	// ErrFault is an internal failure: a broken waiter, or a send of an
	// uninitialized message.
	ErrFault = errors.New("zsock: internal fault")

	// ErrInvalidEndpoint is returned by Monitor before the engine is
	// consulted when the endpoint string is empty.
	ErrInvalidEndpoint = errors.New("zsock: invalid endpoint")

	// ErrOptionType is returned when an option value is viewed as, or an
	// option is set with, the wrong kind.
	ErrOptionType = errors.New("zsock: wrong option value type")
)
