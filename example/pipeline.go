// Copyright 2023 The go-zeromq Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

//go:build ignore
// +build ignore

// Pipeline pushes a handful of messages through an in-process engine and
// drains them with the non-throwing receive.
package main

import (
	"fmt"
	"log"
	"time"

	"github.com/go-zeromq/zsock"
	"github.com/go-zeromq/zsock/internal/chanengine"
)

func main() {
	if err := pipeline(); err != nil {
		log.Fatalf("pipeline: %+v", err)
	}
}

func pipeline() error {
	engine := chanengine.New()
	defer engine.Terminate()

	pull := zsock.New(engine.NewSocket(), engine.Waiter())
	defer pull.Close()
	push := zsock.New(engine.NewSocket(), engine.Waiter())
	defer push.Close()

	const ep = "inproc://pipeline"
	if err := pull.Bind(ep); err != nil {
		return fmt.Errorf("binding %q: %w", ep, err)
	}
	if err := push.Connect(ep); err != nil {
		return fmt.Errorf("connecting to %q: %w", ep, err)
	}

	for i := 0; i < 10; i++ {
		msg := zsock.NewMsgString(fmt.Sprintf("task-%02d", i))
		if err := push.Send(msg, 0); err != nil {
			return fmt.Errorf("sending: %w", err)
		}
	}

	for i := 0; i < 10; i++ {
		msg, ok, err := pull.TryRecv(time.Second)
		if err != nil {
			return fmt.Errorf("receiving: %w", err)
		}
		if !ok {
			return fmt.Errorf("no message within 1s")
		}
		fmt.Printf("got %s\n", msg.Bytes())
	}
	return nil
}
