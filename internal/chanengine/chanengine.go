// Copyright 2023 The go-zeromq Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package chanengine is an in-process engine behind the zsock Handle and
// Waiter contracts: sockets exchange messages through per-socket ring
// queues, endpoints live in a per-Context registry, and blocked operations
// park on a generation channel replaced on every state change.
//
// It exists to serve the examples and tests of the control-plane layer; it
// speaks no wire protocol and performs no transport I/O.
package chanengine

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/eapache/queue"
	"github.com/pkg/errors"

	"github.com/go-zeromq/zsock"
)

// DefaultHWM is the inbound and outbound high-water mark a socket starts
// with, in messages.
const DefaultHWM = 1000

// Context owns an endpoint registry and the wakeup broadcast shared by all
// sockets created from it. Contexts are independent: sockets from different
// contexts cannot reach each other.
type Context struct {
	mu          sync.Mutex
	bindings    map[string]*Sock
	terminating bool
	nextPort    int
	gen         chan struct{} // closed and replaced on every state change
}

// New returns an empty Context.
func New() *Context {
	return &Context{
		bindings: make(map[string]*Sock),
		nextPort: 41000,
		gen:      make(chan struct{}),
	}
}

// Terminate puts the context into the terminating state: every subsequent
// operation on its sockets fails with zsock.ErrTerminating and every parked
// waiter wakes up.
func (c *Context) Terminate() {
	c.mu.Lock()
	c.terminating = true
	c.broadcastLocked()
	c.mu.Unlock()
}

func (c *Context) broadcastLocked() {
	close(c.gen)
	c.gen = make(chan struct{})
}

// NewSocket creates a socket handle attached to this context.
func (c *Context) NewSocket() *Sock {
	return &Sock{
		ctx:       c,
		inbox:     queue.New(),
		endpoints: make(map[string]*endpointState),
		opts:      make(map[zsock.OptionID]zsock.OptionValue),
		monitors:  make(map[string]zsock.MonitorEvent),
	}
}

// Waiter returns the wait primitive of this context.
func (c *Context) Waiter() zsock.Waiter {
	return &waiter{ctx: c}
}

type endpointState struct {
	bound bool
	peers []*Sock
}

// EndpointEvent is one recorded connection-lifecycle event on a monitored
// endpoint.
type EndpointEvent struct {
	Endpoint string
	Event    zsock.MonitorEvent
}

// Sock is an in-process socket handle. All state, queues included, is
// guarded by the owning context's mutex.
type Sock struct {
	ctx *Context

	closed    bool
	inbox     *queue.Queue // of zsock.Msg
	peers     []*Sock      // send targets, round-robin
	rr        int
	staged    [][]byte // frames accumulated under SendMore
	endpoints map[string]*endpointState
	lastEP    string
	opts      map[zsock.OptionID]zsock.OptionValue
	subs      [][]byte // stored verbatim; topic matching is out of scope
	monitors  map[string]zsock.MonitorEvent
	events    []EndpointEvent
}

var _ zsock.Handle = (*Sock)(nil)

func (s *Sock) checkLocked() error {
	if s.closed {
		return zsock.ErrClosed
	}
	if s.ctx.terminating {
		return zsock.ErrTerminating
	}
	return nil
}

func (s *Sock) emitLocked(ep string, ev zsock.MonitorEvent) {
	if s.monitors[ep]&ev != 0 {
		s.events = append(s.events, EndpointEvent{Endpoint: ep, Event: ev})
	}
}

func validEndpoint(ep string) bool {
	return strings.HasPrefix(ep, "inproc://") || strings.HasPrefix(ep, "tcp://")
}

// Bind registers the socket as the binder of ep. Supported schemes are
// inproc:// and tcp:// (the latter purely as a namespace; no TCP I/O
// happens).
func (s *Sock) Bind(ep string) error {
	c := s.ctx
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := s.checkLocked(); err != nil {
		return err
	}
	if !validEndpoint(ep) {
		return errors.Wrapf(zsock.ErrBadProtocol, "chanengine: bind %q", ep)
	}
	if _, dup := c.bindings[ep]; dup {
		return errors.Wrapf(zsock.ErrAddrInUse, "chanengine: bind %q", ep)
	}
	c.bindings[ep] = s
	s.endpoints[ep] = &endpointState{bound: true}
	s.lastEP = ep
	s.emitLocked(ep, zsock.EventListening)
	c.broadcastLocked()
	return nil
}

// BindRandomPort binds to a context-allocated port under a tcp:// prefix and
// reports the port. Any other scheme fails with zsock.ErrBadProtocol.
func (s *Sock) BindRandomPort(ep string) (int, error) {
	if !strings.HasPrefix(ep, "tcp://") {
		return 0, errors.Wrapf(zsock.ErrBadProtocol, "chanengine: bind-random-port %q", ep)
	}
	c := s.ctx
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := s.checkLocked(); err != nil {
		return 0, err
	}
	var full string
	for {
		port := c.nextPort
		c.nextPort++
		full = fmt.Sprintf("%s:%d", ep, port)
		if _, dup := c.bindings[full]; !dup {
			c.bindings[full] = s
			s.endpoints[full] = &endpointState{bound: true}
			s.lastEP = full
			s.emitLocked(full, zsock.EventListening)
			c.broadcastLocked()
			return port, nil
		}
	}
}

// Connect attaches the socket to the binder of ep. The binder must already
// exist; chanengine does not queue connects the way a real transport would,
// so connecting to an unknown endpoint fails with zsock.ErrEndpointNotFound.
func (s *Sock) Connect(ep string) error {
	c := s.ctx
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := s.checkLocked(); err != nil {
		return err
	}
	b, ok := c.bindings[ep]
	if !ok {
		return errors.Wrapf(zsock.ErrEndpointNotFound, "chanengine: connect %q", ep)
	}
	s.endpoints[ep] = &endpointState{peers: []*Sock{b}}
	s.peers = append(s.peers, b)
	b.peers = append(b.peers, s)
	if st := b.endpoints[ep]; st != nil {
		st.peers = append(st.peers, s)
	}
	s.lastEP = ep
	s.emitLocked(ep, zsock.EventConnected)
	b.emitLocked(ep, zsock.EventAccepted)
	c.broadcastLocked()
	return nil
}

// TermEndpoint detaches ep whether it was bound or connected. Unbinding
// also detaches every peer accepted through that endpoint.
func (s *Sock) TermEndpoint(ep string) error {
	c := s.ctx
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := s.checkLocked(); err != nil {
		return err
	}
	return s.termEndpointLocked(ep)
}

func (s *Sock) termEndpointLocked(ep string) error {
	st, ok := s.endpoints[ep]
	if !ok {
		return errors.Wrapf(zsock.ErrEndpointNotFound, "chanengine: term %q", ep)
	}
	if st.bound {
		delete(s.ctx.bindings, ep)
	}
	for _, p := range st.peers {
		dropPeer(s, p)
		dropPeer(p, s)
		switch pst := p.endpoints[ep]; {
		case pst == nil:
		case pst.bound:
			// the binder keeps the endpoint, minus this peer
			for i := range pst.peers {
				if pst.peers[i] == s {
					pst.peers = append(pst.peers[:i:i], pst.peers[i+1:]...)
					break
				}
			}
		default:
			delete(p.endpoints, ep)
		}
		p.emitLocked(ep, zsock.EventDisconnected)
	}
	delete(s.endpoints, ep)
	s.emitLocked(ep, zsock.EventDisconnected)
	s.ctx.broadcastLocked()
	return nil
}

func dropPeer(from, peer *Sock) {
	for i := range from.peers {
		if from.peers[i] == peer {
			from.peers = append(from.peers[:i:i], from.peers[i+1:]...)
			return
		}
	}
}

// Close releases the handle, detaching every endpoint. Any operation after
// Close, including Close itself, fails with zsock.ErrClosed; the facade
// layer is the one that makes Close idempotent.
func (s *Sock) Close() error {
	c := s.ctx
	c.mu.Lock()
	defer c.mu.Unlock()
	if s.closed {
		return zsock.ErrClosed
	}
	for ep := range s.endpoints {
		_ = s.termEndpointLocked(ep)
	}
	for ep := range s.monitors {
		s.emitLocked(ep, zsock.EventMonitorStopped)
	}
	s.closed = true
	c.broadcastLocked()
	return nil
}

// Recv blocks until a message is available.
func (s *Sock) Recv(msg *zsock.Msg) error {
	ok, err := s.TryRecv(msg, -1)
	if err != nil {
		return err
	}
	if !ok {
		return errors.Wrap(zsock.ErrFault, "chanengine: unbounded recv returned empty")
	}
	return nil
}

// TryRecv waits up to timeout for a message. A timeout is reported as
// (false, nil), never as an error.
func (s *Sock) TryRecv(msg *zsock.Msg, timeout time.Duration) (bool, error) {
	var deadline <-chan time.Time
	if timeout > 0 {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		deadline = timer.C
	}

	c := s.ctx
	for {
		c.mu.Lock()
		if err := s.checkLocked(); err != nil {
			c.mu.Unlock()
			return false, err
		}
		if s.inbox.Length() > 0 {
			*msg = s.inbox.Remove().(zsock.Msg)
			c.broadcastLocked() // space freed, wake blocked senders
			c.mu.Unlock()
			return true, nil
		}
		gen := c.gen
		c.mu.Unlock()

		if timeout == 0 {
			return false, nil
		}
		select {
		case <-gen:
		case <-deadline:
			return false, nil
		}
	}
}

// Send queues msg on a peer, round-robin over peers with queue space. With
// SendMore the frames are staged and delivered with the final part. Without
// a reachable peer the call blocks up to OptionSndTimeout (ErrAgain on
// expiry), or fails with ErrAgain at once under DontWait.
func (s *Sock) Send(msg *zsock.Msg, flags zsock.SendFlags) error {
	if msg == nil || len(msg.Frames) == 0 {
		return errors.Wrap(zsock.ErrFault, "chanengine: send of uninitialized message")
	}

	c := s.ctx
	if flags&zsock.SendMore != 0 {
		c.mu.Lock()
		defer c.mu.Unlock()
		if err := s.checkLocked(); err != nil {
			return err
		}
		s.staged = append(s.staged, msg.Clone().Frames...)
		return nil
	}

	var deadline <-chan time.Time
	if flags&zsock.DontWait == 0 {
		if d := s.sndTimeout(); d >= 0 {
			timer := time.NewTimer(d)
			defer timer.Stop()
			deadline = timer.C
		}
	}

	for {
		c.mu.Lock()
		if err := s.checkLocked(); err != nil {
			c.mu.Unlock()
			return err
		}
		if t := s.pickPeerLocked(); t != nil {
			out := *msg
			if len(s.staged) > 0 {
				out = zsock.NewMsgFrom(append(s.staged, msg.Frames...)...)
				s.staged = nil
			}
			t.inbox.Add(out)
			c.broadcastLocked()
			c.mu.Unlock()
			return nil
		}
		gen := c.gen
		c.mu.Unlock()

		if flags&zsock.DontWait != 0 {
			return errors.Wrap(zsock.ErrAgain, "chanengine: send would block")
		}
		select {
		case <-gen:
		case <-deadline:
			return errors.Wrap(zsock.ErrAgain, "chanengine: send timed out")
		}
	}
}

// pickPeerLocked returns the next peer with inbox space, advancing the
// round-robin cursor, or nil.
func (s *Sock) pickPeerLocked() *Sock {
	n := len(s.peers)
	for i := 0; i < n; i++ {
		t := s.peers[(s.rr+i)%n]
		if !t.closed && t.inbox.Length() < t.rcvHWMLocked() {
			s.rr = (s.rr + i + 1) % n
			return t
		}
	}
	return nil
}

// canSendLocked is pickPeerLocked without the cursor side effect, for
// readiness checks.
func (s *Sock) canSendLocked() bool {
	for _, t := range s.peers {
		if !t.closed && t.inbox.Length() < t.rcvHWMLocked() {
			return true
		}
	}
	return false
}

func (s *Sock) rcvHWMLocked() int {
	if v, ok := s.opts[zsock.OptionRcvHWM]; ok {
		if hwm, err := v.Int(); err == nil && hwm > 0 {
			return hwm
		}
	}
	return DefaultHWM
}

func (s *Sock) sndTimeout() time.Duration {
	s.ctx.mu.Lock()
	defer s.ctx.mu.Unlock()
	if v, ok := s.opts[zsock.OptionSndTimeout]; ok {
		if ms, err := v.Int(); err == nil && ms >= 0 {
			return time.Duration(ms) * time.Millisecond
		}
	}
	return -1
}

// Monitor subscribes to connection-lifecycle events on ep. Events are
// recorded and readable through MonitorEvents.
func (s *Sock) Monitor(ep string, events zsock.MonitorEvent) error {
	c := s.ctx
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := s.checkLocked(); err != nil {
		return err
	}
	s.monitors[ep] = events
	return nil
}

// MonitorEvents returns a copy of the events recorded so far.
func (s *Sock) MonitorEvents() []EndpointEvent {
	c := s.ctx
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]EndpointEvent, len(s.events))
	copy(out, s.events)
	return out
}

// GetOption retrieves an option. OptionEvents is computed live from queue
// occupancy and peer capacity; OptionLastEndpoint reflects the last Bind or
// Connect; everything else comes from the stored table with engine defaults.
func (s *Sock) GetOption(id zsock.OptionID) (zsock.OptionValue, error) {
	c := s.ctx
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := s.checkLocked(); err != nil {
		return zsock.OptionValue{}, err
	}
	switch id {
	case zsock.OptionEvents:
		return zsock.EventsValue(s.readyLocked()), nil
	case zsock.OptionLastEndpoint:
		return zsock.BytesValue([]byte(s.lastEP)), nil
	}
	if v, ok := s.opts[id]; ok {
		return v, nil
	}
	return defaultOption(id), nil
}

func defaultOption(id zsock.OptionID) zsock.OptionValue {
	switch id {
	case zsock.OptionRcvTimeout, zsock.OptionSndTimeout:
		return zsock.IntValue(-1)
	case zsock.OptionRcvHWM, zsock.OptionSndHWM:
		return zsock.IntValue(DefaultHWM)
	case zsock.OptionMaxMsgSize:
		return zsock.Int64Value(-1)
	case zsock.OptionAffinity:
		return zsock.Int64Value(0)
	case zsock.OptionIdentity:
		return zsock.BytesValue(nil)
	default:
		return zsock.IntValue(0)
	}
}

// SetOption stores an option after checking the value kind against the
// identifier's canonical kind. Subscribe and unsubscribe maintain the stored
// subscription list; matching messages against it is out of scope here.
func (s *Sock) SetOption(id zsock.OptionID, v zsock.OptionValue) error {
	c := s.ctx
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := s.checkLocked(); err != nil {
		return err
	}
	if v.Kind() != id.Kind() {
		return errors.Wrapf(zsock.ErrOptionType, "chanengine: set %v with %v", id, v.Kind())
	}
	switch id {
	case zsock.OptionEvents, zsock.OptionLastEndpoint:
		return errors.Wrapf(zsock.ErrOptionType, "chanengine: %v is read-only", id)
	case zsock.OptionSubscribe:
		topic, _ := v.Bytes()
		s.subs = append(s.subs, append([]byte(nil), topic...))
		return nil
	case zsock.OptionUnsubscribe:
		topic, _ := v.Bytes()
		for i := range s.subs {
			if string(s.subs[i]) == string(topic) {
				s.subs = append(s.subs[:i:i], s.subs[i+1:]...)
				break
			}
		}
		return nil
	}
	s.opts[id] = v
	return nil
}

// Subscriptions returns a copy of the stored topic subscriptions.
func (s *Sock) Subscriptions() [][]byte {
	c := s.ctx
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([][]byte, len(s.subs))
	for i := range s.subs {
		out[i] = append([]byte(nil), s.subs[i]...)
	}
	return out
}

func (s *Sock) readyLocked() zsock.EventFlags {
	if s.closed {
		return 0
	}
	var f zsock.EventFlags
	if s.inbox.Length() > 0 {
		f |= zsock.EventIn
	}
	if s.canSendLocked() {
		f |= zsock.EventOut
	}
	return f
}

// waiter implements zsock.Waiter over the context's generation channel.
type waiter struct {
	ctx *Context
}

// Wait parks until some item reports readiness or the timeout expires. A
// closed handle in the set makes Wait return promptly with that item's mask
// empty, which is what lets a Poll blocked across a concurrent Close come
// back instead of hanging. Handles from another engine fail with
// zsock.ErrFault; a terminating context fails with zsock.ErrTerminating.
func (w *waiter) Wait(items []zsock.WaitItem, timeout time.Duration) error {
	var deadline <-chan time.Time
	if timeout > 0 {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		deadline = timer.C
	}

	c := w.ctx
	for {
		c.mu.Lock()
		if c.terminating {
			c.mu.Unlock()
			return zsock.ErrTerminating
		}
		var ready, closed bool
		for i := range items {
			s, ok := items[i].Handle.(*Sock)
			if !ok {
				c.mu.Unlock()
				return errors.Wrapf(zsock.ErrFault, "chanengine: foreign handle %T", items[i].Handle)
			}
			if s.closed {
				items[i].Ready = 0
				closed = true
				continue
			}
			items[i].Ready = s.readyLocked() & (items[i].Events | zsock.EventErr)
			if items[i].Ready != 0 {
				ready = true
			}
		}
		gen := c.gen
		c.mu.Unlock()

		if ready || closed || timeout == 0 {
			return nil
		}
		select {
		case <-gen:
		case <-deadline:
			return nil
		}
	}
}
