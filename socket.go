// Copyright 2023 The go-zeromq Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package zsock

import (
	"fmt"
	"log"
	"os"
	"sync"
	"time"
)

// Socket is the control-plane facade over an engine Handle: lifecycle,
// readiness listeners, polling, send/receive and endpoint monitoring.
//
// Releasing the handle is the caller's responsibility: call Close when done.
// There is no finalizer safety net, and none should be relied on.
//
// A Socket is not safe for concurrent use from multiple goroutines without
// external synchronization. The one supported overlap is listener
// registration or removal on one goroutine while a poller-driven dispatch
// runs on another; dispatch iterates point-in-time snapshots of the listener
// lists, so handlers may mutate registrations (or close the socket) freely
// and the change takes effect on the next dispatch.
type Socket struct {
	h    Handle
	w    Waiter
	opts *Options
	log  *log.Logger

	mu         sync.Mutex
	closed     bool // one-way; flips before the handle is released
	recv       listenerList
	send       listenerList
	nextID     ListenerID
	event      ReadyEvent // reused across dispatches
	onInterest func(*Socket)

	errs uint64 // diagnostic only
}

// Option configures some aspect of a Socket.
type Option func(s *Socket)

// WithLogger sets a dedicated log.Logger for the socket.
func WithLogger(l *log.Logger) Option {
	return func(s *Socket) {
		s.log = l
	}
}

// WithInterestChange registers fn to run after every listener registration
// or removal, so a multiplexing poller can recompute its wait set without
// continuously re-reading Interest.
func WithInterestChange(fn func(*Socket)) Option {
	return func(s *Socket) {
		s.onInterest = fn
	}
}

// New wraps an already-constructed engine handle. The socket takes exclusive
// ownership of h and releases it in Close; w is the wait primitive Poll
// delegates to.
func New(h Handle, w Waiter, opts ...Option) *Socket {
	s := &Socket{h: h, w: w}
	s.opts = &Options{sock: s}
	s.event.Sock = s
	for _, opt := range opts {
		opt(s)
	}
	if s.log == nil {
		s.log = log.New(os.Stderr, "zsock: ", 0)
	}
	return s
}

func (s *Socket) ensureOpen() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	return nil
}

// Bind attaches the socket to a local endpoint.
func (s *Socket) Bind(ep string) error {
	if err := s.ensureOpen(); err != nil {
		return err
	}
	return s.h.Bind(ep)
}

// BindRandomPort binds to an ephemeral port on a TCP endpoint and reports
// the port chosen. Non-TCP endpoints fail with ErrBadProtocol.
func (s *Socket) BindRandomPort(ep string) (int, error) {
	if err := s.ensureOpen(); err != nil {
		return 0, err
	}
	return s.h.BindRandomPort(ep)
}

// Connect attaches the socket to a remote endpoint.
func (s *Socket) Connect(ep string) error {
	if err := s.ensureOpen(); err != nil {
		return err
	}
	return s.h.Connect(ep)
}

// Disconnect detaches the named endpoint. The engine makes no distinction
// between endpoints created by Connect and by Bind: Disconnect and Unbind
// are the same operation under two names.
func (s *Socket) Disconnect(ep string) error {
	if err := s.ensureOpen(); err != nil {
		return err
	}
	return s.h.TermEndpoint(ep)
}

// Unbind detaches the named endpoint. See Disconnect.
func (s *Socket) Unbind(ep string) error {
	if err := s.ensureOpen(); err != nil {
		return err
	}
	return s.h.TermEndpoint(ep)
}

// Close releases the underlying handle. Close is idempotent: the second and
// later calls return nil without touching the handle. The closed flag flips
// before the handle is released, so a dispatch racing with Close never runs
// listeners against a released handle; a Poll blocked in the waiter returns
// an empty mask promptly once the handle reports itself closed.
func (s *Socket) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()
	return s.h.Close()
}

// OnRecvReady appends fn to the receive-ready listeners. Registering the
// same function twice yields two registrations, each invoked once per
// dispatch, in registration order.
func (s *Socket) OnRecvReady(fn func(*ReadyEvent)) ListenerID {
	s.mu.Lock()
	s.nextID++
	id := s.nextID
	s.recv = append(s.recv, listenerEntry{id: id, fn: fn})
	s.mu.Unlock()
	s.notifyInterest()
	return id
}

// OnSendReady appends fn to the send-ready listeners.
func (s *Socket) OnSendReady(fn func(*ReadyEvent)) ListenerID {
	s.mu.Lock()
	s.nextID++
	id := s.nextID
	s.send = append(s.send, listenerEntry{id: id, fn: fn})
	s.mu.Unlock()
	s.notifyInterest()
	return id
}

// RemoveListener drops the registration with the given id from whichever
// list holds it. Removing an unknown id is a no-op and fires no
// interest-change notification.
func (s *Socket) RemoveListener(id ListenerID) {
	s.mu.Lock()
	var ok bool
	if s.recv, ok = s.recv.remove(id); !ok {
		s.send, ok = s.send.remove(id)
	}
	s.mu.Unlock()
	if ok {
		s.notifyInterest()
	}
}

// OnInterestChange replaces the interest-change notification callback.
func (s *Socket) OnInterestChange(fn func(*Socket)) {
	s.mu.Lock()
	s.onInterest = fn
	s.mu.Unlock()
}

func (s *Socket) notifyInterest() {
	s.mu.Lock()
	fn := s.onInterest
	s.mu.Unlock()
	if fn != nil {
		fn(s)
	}
}

// Interest computes the current interest mask from the listener lists:
// EventErr always, EventIn iff a receive-ready listener is registered,
// EventOut iff a send-ready listener is registered. It is recomputed on
// every call, never cached.
func (s *Socket) Interest() EventFlags {
	s.mu.Lock()
	defer s.mu.Unlock()
	f := EventErr
	if len(s.recv) > 0 {
		f |= EventIn
	}
	if len(s.send) > 0 {
		f |= EventOut
	}
	return f
}

// dispatch delivers flags to the registered listeners: receive-ready
// listeners first when EventIn is present, then send-ready listeners when
// EventOut is present, each list in registration order. A closed socket
// dispatches nothing, whatever the mask. Each listener runs isolated: a
// panicking handler does not stop the rest of the dispatch, and the first
// failure is returned once every listener has run.
func (s *Socket) dispatch(flags EventFlags) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.event.Flags = flags
	var recv, send []listenerEntry
	if flags.Has(EventIn) {
		recv = s.recv.snapshot()
	}
	if flags.Has(EventOut) {
		send = s.send.snapshot()
	}
	s.mu.Unlock()

	var first error
	for _, e := range recv {
		s.fire(e, &first)
	}
	for _, e := range send {
		s.fire(e, &first)
	}
	return first
}

func (s *Socket) fire(e listenerEntry, first *error) {
	defer func() {
		if r := recover(); r != nil {
			s.mu.Lock()
			s.errs++
			s.mu.Unlock()
			s.log.Printf("listener %d panicked: %v", e.id, r)
			if *first == nil {
				*first = fmt.Errorf("zsock: listener %d panicked: %v", e.id, r)
			}
		}
	}()
	e.fn(&s.event)
}

// Poll blocks until some readiness condition of the listener-derived
// interest mask holds, then dispatches it.
func (s *Socket) Poll() (bool, error) {
	return s.PollTimeout(-1)
}

// PollTimeout waits up to timeout for the listener-derived interest mask,
// dispatches whatever the waiter reported, and reports whether the result
// mask was non-empty. A negative timeout blocks indefinitely, zero polls.
func (s *Socket) PollTimeout(timeout time.Duration) (bool, error) {
	ready, err := s.PollMask(s.Interest(), timeout)
	if err != nil {
		return false, err
	}
	return ready != 0, s.dispatch(ready)
}

// PollMask waits up to timeout on a caller-supplied interest mask and
// returns the raw result mask without dispatching. This is the single-socket
// primitive PollTimeout is built from, and the contract a multi-socket
// poller consumes. A timeout is not an error: the result mask is empty and
// the error nil. Waiter failures propagate as-is (wrapping ErrFault or
// ErrTerminating per the Waiter contract).
func (s *Socket) PollMask(mask EventFlags, timeout time.Duration) (EventFlags, error) {
	if err := s.ensureOpen(); err != nil {
		return 0, err
	}
	items := [1]WaitItem{{Handle: s.h, Events: mask}}
	if err := s.w.Wait(items[:], timeout); err != nil {
		return 0, err
	}
	return items[0].Ready, nil
}

// Recv blocks until a complete message arrives.
func (s *Socket) Recv() (Msg, error) {
	if err := s.ensureOpen(); err != nil {
		return Msg{}, err
	}
	var msg Msg
	err := s.h.Recv(&msg)
	return msg, err
}

// TryRecv waits up to timeout for a message. It reports false with a nil
// error when the timeout expires first; a timeout is not a failure here.
// A negative timeout blocks indefinitely, zero polls.
func (s *Socket) TryRecv(timeout time.Duration) (Msg, bool, error) {
	if err := s.ensureOpen(); err != nil {
		return Msg{}, false, err
	}
	var msg Msg
	ok, err := s.h.TryRecv(&msg, timeout)
	return msg, ok, err
}

// Send queues msg on the handle. DontWait requests a non-blocking send and
// SendMore marks the message as part of a multi-part message; failures
// (terminating, uninitialized message, would-block under DontWait)
// propagate as the engine's typed errors.
func (s *Socket) Send(msg Msg, flags SendFlags) error {
	if err := s.ensureOpen(); err != nil {
		return err
	}
	return s.h.Send(&msg, flags)
}

// RecvMsg is the throwing receive kept for callers of the legacy contract.
// With DontWait it polls; otherwise it waits for the socket's configured
// OptionRcvTimeout. Either way, not receiving in time fails with ErrAgain
// instead of the non-throwing false flag. SendMore is accepted and ignored.
//
// Deprecated: use TryRecv, which reports a timeout without an error.
func (s *Socket) RecvMsg(flags SendFlags) (Msg, error) {
	var timeout time.Duration
	if flags&DontWait == 0 {
		t, err := s.opts.GetDuration(OptionRcvTimeout)
		if err != nil {
			return Msg{}, err
		}
		timeout = t
	}
	msg, ok, err := s.TryRecv(timeout)
	if err != nil {
		return Msg{}, err
	}
	if !ok {
		return Msg{}, ErrAgain
	}
	return msg, nil
}

// SendMsg is the throwing send of the legacy contract. The engine already
// reports a would-block under DontWait as ErrAgain, so this is a plain
// delegation kept so legacy call sites read symmetrically with RecvMsg.
//
// Deprecated: use Send.
func (s *Socket) SendMsg(msg Msg, flags SendFlags) error {
	return s.Send(msg, flags)
}

// Subscribe establishes a topic subscription. It is sugar over
// OptionSubscribe and only meaningful on subscriber-family sockets; no
// variant check is made, misuse is the caller's responsibility.
//
// Deprecated: use Options().SetString(OptionSubscribe, topic).
func (s *Socket) Subscribe(topic string) error {
	return s.opts.SetString(OptionSubscribe, topic)
}

// SubscribeBytes is Subscribe for a raw-bytes topic.
//
// Deprecated: use Options().SetBytes(OptionSubscribe, topic).
func (s *Socket) SubscribeBytes(topic []byte) error {
	return s.opts.SetBytes(OptionSubscribe, topic)
}

// Unsubscribe removes a topic subscription.
//
// Deprecated: use Options().SetString(OptionUnsubscribe, topic).
func (s *Socket) Unsubscribe(topic string) error {
	return s.opts.SetString(OptionUnsubscribe, topic)
}

// UnsubscribeBytes is Unsubscribe for a raw-bytes topic.
//
// Deprecated: use Options().SetBytes(OptionUnsubscribe, topic).
func (s *Socket) UnsubscribeBytes(topic []byte) error {
	return s.opts.SetBytes(OptionUnsubscribe, topic)
}

// HasIn reports whether the engine's live readiness mask carries EventIn.
// It reflects pending I/O on the handle at the moment of the call and is
// independent of locally registered listeners.
func (s *Socket) HasIn() (bool, error) {
	ev, err := s.opts.GetEvents(OptionEvents)
	if err != nil {
		return false, err
	}
	return ev.Has(EventIn), nil
}

// HasOut reports whether the engine's live readiness mask carries EventOut.
func (s *Socket) HasOut() (bool, error) {
	ev, err := s.opts.GetEvents(OptionEvents)
	if err != nil {
		return false, err
	}
	return ev.Has(EventOut), nil
}

// Options returns the typed option accessor bound to this socket.
func (s *Socket) Options() *Options {
	return s.opts
}

// GetOption retrieves an integer-valued option.
func (s *Socket) GetOption(id OptionID) (int, error) {
	return s.opts.GetInt(id)
}

// GetOptionValue retrieves the raw tagged value of an option.
func (s *Socket) GetOptionValue(id OptionID) (OptionValue, error) {
	return s.opts.Get(id)
}

// GetOptionInt64 retrieves a 64-bit integer option.
func (s *Socket) GetOptionInt64(id OptionID) (int64, error) {
	return s.opts.GetInt64(id)
}

// GetOptionDuration retrieves a milliseconds-valued integer option as a
// duration.
func (s *Socket) GetOptionDuration(id OptionID) (time.Duration, error) {
	return s.opts.GetDuration(id)
}

// SetOption sets an integer-valued option.
func (s *Socket) SetOption(id OptionID, v int) error {
	return s.opts.SetInt(id, v)
}

// SetOptionDuration stores a duration option as whole milliseconds.
func (s *Socket) SetOptionDuration(id OptionID, d time.Duration) error {
	return s.opts.SetDuration(id, d)
}

// SetOptionValue sets an option from a raw tagged value.
func (s *Socket) SetOptionValue(id OptionID, v OptionValue) error {
	return s.opts.Set(id, v)
}

// Closed reports whether Close has run.
func (s *Socket) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// ErrorCount reports how many listener failures the socket has absorbed.
// Diagnostic only; it takes no part in control flow.
func (s *Socket) ErrorCount() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.errs
}
