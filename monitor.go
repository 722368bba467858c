// Copyright 2023 The go-zeromq Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package zsock

// MonitorEvent is a bit-set of connection-lifecycle events a socket can
// subscribe to on a named endpoint. The taxonomy is defined by the engine;
// this layer only validates the endpoint and forwards.
type MonitorEvent uint16

const (
	EventConnected MonitorEvent = 1 << iota
	EventConnectDelayed
	EventConnectRetried
	EventListening
	EventBindFailed
	EventAccepted
	EventAcceptFailed
	EventClosed
	EventCloseFailed
	EventDisconnected
	EventMonitorStopped
	EventHandshakeSucceeded
	EventHandshakeFailed

	// EventAll subscribes to every connection-lifecycle event.
	EventAll MonitorEvent = 1<<iota - 1
)

// Monitor registers for connection-lifecycle events on the named endpoint.
// An empty endpoint fails with ErrInvalidEndpoint before the engine is
// consulted. A zero event mask subscribes to EventAll.
func (s *Socket) Monitor(ep string, events MonitorEvent) error {
	if ep == "" {
		return ErrInvalidEndpoint
	}
	if err := s.ensureOpen(); err != nil {
		return err
	}
	if events == 0 {
		events = EventAll
	}
	return s.h.Monitor(ep, events)
}
