// Copyright 2023 The go-zeromq Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package zsock

import (
	"context"
	"log"
	"os"
	"sync"
	"time"
)

// defaultTick bounds each wait cycle so the poller picks up interest-mask
// changes and removed sockets without an explicit wakeup.
const defaultTick = 100 * time.Millisecond

// Poller multiplexes readiness over many sockets: each cycle it recomputes
// every socket's interest mask, waits on the whole set, and dispatches each
// non-empty result mask through the owning socket's listeners.
//
// Add, Remove and listener mutations may run concurrently with Run; the
// wait-set is rebuilt from scratch every cycle.
type Poller struct {
	w    Waiter
	log  *log.Logger
	tick time.Duration

	mu      sync.Mutex
	socks   []*Socket
	onError func(*Socket, error)

	wake chan struct{}
}

// PollerOption configures a Poller.
type PollerOption func(p *Poller)

// WithPollerLogger sets a dedicated log.Logger for the poller.
func WithPollerLogger(l *log.Logger) PollerOption {
	return func(p *Poller) {
		p.log = l
	}
}

// WithTick bounds how long one wait cycle may block. Shorter ticks pick up
// wait-set changes faster at the price of more wakeups.
func WithTick(d time.Duration) PollerOption {
	return func(p *Poller) {
		p.tick = d
	}
}

// WithErrorHandler registers fn to receive per-socket dispatch failures.
// One socket's failing listener never stops the poll loop; without a
// handler, failures are logged.
func WithErrorHandler(fn func(*Socket, error)) PollerOption {
	return func(p *Poller) {
		p.onError = fn
	}
}

// NewPoller builds a poller over the given wait primitive.
func NewPoller(w Waiter, opts ...PollerOption) *Poller {
	p := &Poller{
		w:    w,
		tick: defaultTick,
		wake: make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.log == nil {
		p.log = log.New(os.Stderr, "zsock: ", 0)
	}
	return p
}

// Add registers a socket with the poller and subscribes to its
// interest-change notifications so listener mutations shorten the current
// wait cycle. Add replaces any interest-change callback already set on the
// socket; Remove clears it again.
func (p *Poller) Add(s *Socket) {
	p.mu.Lock()
	p.socks = append(p.socks, s)
	p.mu.Unlock()
	s.OnInterestChange(func(*Socket) { p.notify() })
	p.notify()
}

// Remove drops a socket from the poller. Removing an unknown socket is a
// no-op.
func (p *Poller) Remove(s *Socket) {
	p.mu.Lock()
	for i := range p.socks {
		if p.socks[i] == s {
			p.socks = append(p.socks[:i:i], p.socks[i+1:]...)
			break
		}
	}
	p.mu.Unlock()
	s.OnInterestChange(nil)
	p.notify()
}

func (p *Poller) notify() {
	select {
	case p.wake <- struct{}{}:
	default:
	}
}

func (p *Poller) snapshot() []*Socket {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]*Socket, len(p.socks))
	copy(out, p.socks)
	return out
}

func (p *Poller) report(s *Socket, err error) {
	p.mu.Lock()
	fn := p.onError
	p.mu.Unlock()
	if fn != nil {
		fn(s, err)
		return
	}
	p.log.Printf("dispatch error: %+v", err)
}

// Run drives the poll loop on the calling goroutine until ctx is done or
// the waiter fails. Closed sockets are dropped from the set; a failing
// listener is reported through the error handler and the loop keeps going.
func (p *Poller) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-p.wake:
		default:
		}

		socks := p.snapshot()
		items := make([]WaitItem, 0, len(socks))
		live := make([]*Socket, 0, len(socks))
		for _, s := range socks {
			if s.Closed() {
				p.Remove(s) // or the empty-mask wakeups would spin the loop
				continue
			}
			items = append(items, WaitItem{Handle: s.h, Events: s.Interest()})
			live = append(live, s)
		}

		if len(items) == 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-p.wake:
			case <-time.After(p.tick):
			}
			continue
		}

		if err := p.w.Wait(items, p.tick); err != nil {
			return err
		}

		for i, s := range live {
			if items[i].Ready == 0 {
				continue
			}
			if err := s.dispatch(items[i].Ready); err != nil {
				p.report(s, err)
			}
		}
	}
}
