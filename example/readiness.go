// Copyright 2023 The go-zeromq Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

//go:build ignore
// +build ignore

// Readiness drives a socket through the multi-socket poller: a listener
// drains messages as the poller reports them ready.
package main

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/go-zeromq/zsock"
	"github.com/go-zeromq/zsock/internal/chanengine"
)

func main() {
	if err := readiness(); err != nil {
		log.Fatalf("readiness: %+v", err)
	}
}

func readiness() error {
	engine := chanengine.New()
	defer engine.Terminate()

	pull := zsock.New(engine.NewSocket(), engine.Waiter())
	defer pull.Close()
	push := zsock.New(engine.NewSocket(), engine.Waiter())
	defer push.Close()

	const ep = "inproc://readiness"
	if err := pull.Bind(ep); err != nil {
		return fmt.Errorf("binding %q: %w", ep, err)
	}
	if err := push.Connect(ep); err != nil {
		return fmt.Errorf("connecting to %q: %w", ep, err)
	}
	if err := push.Monitor(ep, zsock.EventAll); err != nil {
		return fmt.Errorf("monitoring %q: %w", ep, err)
	}

	done := make(chan struct{})
	n := 0
	pull.OnRecvReady(func(e *zsock.ReadyEvent) {
		msg, ok, err := e.Sock.TryRecv(0)
		if err != nil || !ok {
			return
		}
		fmt.Printf("ready(%v): %s\n", e.Flags, msg.Bytes())
		if n++; n == 5 {
			close(done)
		}
	})

	poller := zsock.NewPoller(engine.Waiter(), zsock.WithTick(10*time.Millisecond))
	poller.Add(pull)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		if err := poller.Run(ctx); err != nil && ctx.Err() == nil {
			log.Printf("poller: %+v", err)
		}
	}()

	for i := 0; i < 5; i++ {
		if err := push.Send(zsock.NewMsgString(fmt.Sprintf("evt-%d", i)), 0); err != nil {
			return fmt.Errorf("sending: %w", err)
		}
	}

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		return fmt.Errorf("timed out waiting for dispatches")
	}
	return nil
}
