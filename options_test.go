// Copyright 2023 The go-zeromq Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package zsock_test

import (
	"testing"
	"time"

	"github.com/pkg/errors"

	"github.com/go-zeromq/zsock"
)

func TestOptionValueKinds(t *testing.T) {
	for _, tc := range []struct {
		name string
		v    zsock.OptionValue
		kind zsock.ValueKind
	}{
		{name: "int", v: zsock.IntValue(42), kind: zsock.KindInt},
		{name: "int64", v: zsock.Int64Value(1 << 40), kind: zsock.KindInt64},
		{name: "duration", v: zsock.DurationValue(time.Second), kind: zsock.KindDuration},
		{name: "bytes", v: zsock.BytesValue([]byte("id")), kind: zsock.KindBytes},
		{name: "string", v: zsock.StringValue("id"), kind: zsock.KindBytes},
		{name: "events", v: zsock.EventsValue(zsock.EventIn), kind: zsock.KindEvents},
	} {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.v.Kind(); got != tc.kind {
				t.Fatalf("invalid kind: got=%v, want=%v", got, tc.kind)
			}
		})
	}
}

func TestOptionValueCheckedViews(t *testing.T) {
	v := zsock.IntValue(17)
	if got, err := v.Int(); err != nil || got != 17 {
		t.Fatalf("invalid int view: got=(%d,%v), want=(17,nil)", got, err)
	}
	if _, err := v.Int64(); !errors.Is(err, zsock.ErrOptionType) {
		t.Fatalf("int64 view of int value: got=%+v, want=%v", err, zsock.ErrOptionType)
	}
	if _, err := v.Bytes(); !errors.Is(err, zsock.ErrOptionType) {
		t.Fatalf("bytes view of int value: got=%+v, want=%v", err, zsock.ErrOptionType)
	}

	d := zsock.DurationValue(1500 * time.Millisecond)
	if got, err := d.Duration(); err != nil || got != 1500*time.Millisecond {
		t.Fatalf("invalid duration view: got=(%v,%v)", got, err)
	}
	if _, err := d.Int(); !errors.Is(err, zsock.ErrOptionType) {
		t.Fatalf("int view of duration value: got=%+v, want=%v", err, zsock.ErrOptionType)
	}

	e := zsock.EventsValue(zsock.EventIn | zsock.EventOut)
	ev, err := e.Events()
	if err != nil {
		t.Fatalf("events view failed: %+v", err)
	}
	if !ev.Has(zsock.EventIn) || !ev.Has(zsock.EventOut) {
		t.Fatalf("invalid events view: %v", ev)
	}
}

func TestOptionDurationConversion(t *testing.T) {
	h := newFakeHandle()
	sck := zsock.New(h, nopWaiter{}, zsock.WithLogger(zsock.Devnull))
	defer sck.Close()

	// sub-millisecond remainder truncates
	if err := sck.SetOptionDuration(zsock.OptionRcvTimeout, 200*time.Millisecond+300*time.Microsecond); err != nil {
		t.Fatalf("could not set option: %+v", err)
	}
	ms, err := sck.GetOption(zsock.OptionRcvTimeout)
	if err != nil {
		t.Fatalf("could not get option: %+v", err)
	}
	if ms != 200 {
		t.Fatalf("invalid stored milliseconds: got=%d, want=200", ms)
	}

	d, err := sck.GetOptionDuration(zsock.OptionRcvTimeout)
	if err != nil {
		t.Fatalf("could not get duration option: %+v", err)
	}
	if d != 200*time.Millisecond {
		t.Fatalf("invalid duration: got=%v, want=200ms", d)
	}

	// negative durations mean "no limit"
	if err := sck.SetOptionDuration(zsock.OptionSndTimeout, -time.Second); err != nil {
		t.Fatalf("could not set option: %+v", err)
	}
	d, err = sck.GetOptionDuration(zsock.OptionSndTimeout)
	if err != nil {
		t.Fatalf("could not get duration option: %+v", err)
	}
	if d != -1 {
		t.Fatalf("invalid unlimited duration: got=%v, want=-1", d)
	}
}

func TestOptionsOnClosedSocket(t *testing.T) {
	sck := zsock.New(newFakeHandle(), nopWaiter{}, zsock.WithLogger(zsock.Devnull))
	if err := sck.Close(); err != nil {
		t.Fatalf("could not close socket: %+v", err)
	}

	if _, err := sck.GetOption(zsock.OptionRcvTimeout); !errors.Is(err, zsock.ErrClosed) {
		t.Fatalf("get on closed socket: got=%+v, want=%v", err, zsock.ErrClosed)
	}
	if err := sck.SetOption(zsock.OptionRcvTimeout, 1); !errors.Is(err, zsock.ErrClosed) {
		t.Fatalf("set on closed socket: got=%+v, want=%v", err, zsock.ErrClosed)
	}
	if _, err := sck.HasIn(); !errors.Is(err, zsock.ErrClosed) {
		t.Fatalf("HasIn on closed socket: got=%+v, want=%v", err, zsock.ErrClosed)
	}
	if err := sck.Subscribe("t"); !errors.Is(err, zsock.ErrClosed) {
		t.Fatalf("subscribe on closed socket: got=%+v, want=%v", err, zsock.ErrClosed)
	}
}

func TestOptionIDKinds(t *testing.T) {
	for _, tc := range []struct {
		id   zsock.OptionID
		kind zsock.ValueKind
	}{
		{id: zsock.OptionEvents, kind: zsock.KindEvents},
		{id: zsock.OptionRcvTimeout, kind: zsock.KindInt},
		{id: zsock.OptionMaxMsgSize, kind: zsock.KindInt64},
		{id: zsock.OptionAffinity, kind: zsock.KindInt64},
		{id: zsock.OptionIdentity, kind: zsock.KindBytes},
		{id: zsock.OptionSubscribe, kind: zsock.KindBytes},
		{id: zsock.OptionLastEndpoint, kind: zsock.KindBytes},
		{id: zsock.OptionSndHWM, kind: zsock.KindInt},
	} {
		t.Run(tc.id.String(), func(t *testing.T) {
			if got := tc.id.Kind(); got != tc.kind {
				t.Fatalf("invalid kind for %v: got=%v, want=%v", tc.id, got, tc.kind)
			}
		})
	}
}
