// Copyright 2023 The go-zeromq Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package zsock

import (
	"fmt"
	"time"
)

// OptionID names a socket tunable. Each identifier has exactly one canonical
// value kind; retrieving or setting it with another kind fails with
// ErrOptionType.
type OptionID int

const (
	// OptionEvents is the live readiness mask of the handle, independent of
	// any locally registered listeners. Read-only.
	OptionEvents OptionID = iota + 1
	// OptionRcvTimeout bounds blocking receives, in whole milliseconds.
	// -1 blocks indefinitely.
	OptionRcvTimeout
	// OptionSndTimeout bounds blocking sends, in whole milliseconds.
	OptionSndTimeout
	// OptionLinger bounds how long Close waits for pending messages.
	OptionLinger
	// OptionReconnectIvl is the pause between reconnection attempts.
	OptionReconnectIvl
	// OptionReconnectIvlMax caps the exponential reconnect back-off.
	OptionReconnectIvlMax
	// OptionHeartbeatIvl is the connection heartbeat period.
	OptionHeartbeatIvl
	// OptionRcvHWM is the inbound high-water mark, in messages.
	OptionRcvHWM
	// OptionSndHWM is the outbound high-water mark, in messages.
	OptionSndHWM
	// OptionRcvBuf is the kernel receive buffer size, in bytes.
	OptionRcvBuf
	// OptionSndBuf is the kernel send buffer size, in bytes.
	OptionSndBuf
	// OptionBacklog is the listen backlog for connection-oriented transports.
	OptionBacklog
	// OptionMaxMsgSize rejects inbound messages larger than this, in bytes.
	OptionMaxMsgSize
	// OptionAffinity steers the socket onto particular I/O threads.
	OptionAffinity
	// OptionIdentity is the socket routing identity.
	OptionIdentity
	// OptionSubscribe establishes a topic subscription. Write-only, and only
	// meaningful on subscriber-family sockets; no variant check is made.
	OptionSubscribe
	// OptionUnsubscribe removes a topic subscription. Write-only.
	OptionUnsubscribe
	// OptionLastEndpoint is the last endpoint bound or connected. Read-only.
	OptionLastEndpoint
)

var optionNames = map[OptionID]string{
	OptionEvents:          "EVENTS",
	OptionRcvTimeout:      "RCVTIMEO",
	OptionSndTimeout:      "SNDTIMEO",
	OptionLinger:          "LINGER",
	OptionReconnectIvl:    "RECONNECT_IVL",
	OptionReconnectIvlMax: "RECONNECT_IVL_MAX",
	OptionHeartbeatIvl:    "HEARTBEAT_IVL",
	OptionRcvHWM:          "RCVHWM",
	OptionSndHWM:          "SNDHWM",
	OptionRcvBuf:          "RCVBUF",
	OptionSndBuf:          "SNDBUF",
	OptionBacklog:         "BACKLOG",
	OptionMaxMsgSize:      "MAXMSGSIZE",
	OptionAffinity:        "AFFINITY",
	OptionIdentity:        "IDENTITY",
	OptionSubscribe:       "SUBSCRIBE",
	OptionUnsubscribe:     "UNSUBSCRIBE",
	OptionLastEndpoint:    "LAST_ENDPOINT",
}

func (id OptionID) String() string {
	if n, ok := optionNames[id]; ok {
		return n
	}
	return fmt.Sprintf("OptionID(%d)", int(id))
}

// Kind returns the canonical value kind of the option.
func (id OptionID) Kind() ValueKind {
	switch id {
	case OptionEvents:
		return KindEvents
	case OptionMaxMsgSize, OptionAffinity:
		return KindInt64
	case OptionIdentity, OptionSubscribe, OptionUnsubscribe, OptionLastEndpoint:
		return KindBytes
	default:
		return KindInt
	}
}

// ValueKind tags the representation held by an OptionValue.
type ValueKind uint8

const (
	KindInt ValueKind = iota + 1
	KindInt64
	KindDuration
	KindBytes
	KindEvents
)

func (k ValueKind) String() string {
	switch k {
	case KindInt:
		return "int"
	case KindInt64:
		return "int64"
	case KindDuration:
		return "duration"
	case KindBytes:
		return "bytes"
	case KindEvents:
		return "events"
	}
	return fmt.Sprintf("ValueKind(%d)", uint8(k))
}

// OptionValue is a tagged union over the value kinds an option can carry.
// Views are checked: asking for a kind other than the stored one fails with
// ErrOptionType instead of reinterpreting the payload.
type OptionValue struct {
	kind ValueKind
	num  int64
	buf  []byte
}

func IntValue(v int) OptionValue       { return OptionValue{kind: KindInt, num: int64(v)} }
func Int64Value(v int64) OptionValue   { return OptionValue{kind: KindInt64, num: v} }
func BytesValue(v []byte) OptionValue  { return OptionValue{kind: KindBytes, buf: v} }
func StringValue(v string) OptionValue { return OptionValue{kind: KindBytes, buf: []byte(v)} }

func EventsValue(v EventFlags) OptionValue {
	return OptionValue{kind: KindEvents, num: int64(v)}
}

func DurationValue(v time.Duration) OptionValue {
	return OptionValue{kind: KindDuration, num: int64(v)}
}

// Kind reports the stored representation.
func (v OptionValue) Kind() ValueKind { return v.kind }

func (v OptionValue) Int() (int, error) {
	if v.kind != KindInt {
		return 0, fmt.Errorf("%w: have %v, want int", ErrOptionType, v.kind)
	}
	return int(v.num), nil
}

func (v OptionValue) Int64() (int64, error) {
	if v.kind != KindInt64 {
		return 0, fmt.Errorf("%w: have %v, want int64", ErrOptionType, v.kind)
	}
	return v.num, nil
}

func (v OptionValue) Duration() (time.Duration, error) {
	if v.kind != KindDuration {
		return 0, fmt.Errorf("%w: have %v, want duration", ErrOptionType, v.kind)
	}
	return time.Duration(v.num), nil
}

func (v OptionValue) Bytes() ([]byte, error) {
	if v.kind != KindBytes {
		return nil, fmt.Errorf("%w: have %v, want bytes", ErrOptionType, v.kind)
	}
	return v.buf, nil
}

func (v OptionValue) Events() (EventFlags, error) {
	if v.kind != KindEvents {
		return 0, fmt.Errorf("%w: have %v, want events", ErrOptionType, v.kind)
	}
	return EventFlags(v.num), nil
}

func (v OptionValue) String() string {
	switch v.kind {
	case KindInt, KindInt64:
		return fmt.Sprintf("%d", v.num)
	case KindDuration:
		return time.Duration(v.num).String()
	case KindBytes:
		return fmt.Sprintf("%q", v.buf)
	case KindEvents:
		return EventFlags(v.num).String()
	}
	return "<unset>"
}

// Options is the typed get/set bridge between a Socket and its handle. Every
// accessor checks that the socket is still open before consulting the engine.
type Options struct {
	sock *Socket
}

// Get retrieves the raw tagged value of an option.
func (o *Options) Get(id OptionID) (OptionValue, error) {
	if err := o.sock.ensureOpen(); err != nil {
		return OptionValue{}, err
	}
	return o.sock.h.GetOption(id)
}

// Set forwards a raw tagged value to the engine.
func (o *Options) Set(id OptionID, v OptionValue) error {
	if err := o.sock.ensureOpen(); err != nil {
		return err
	}
	return o.sock.h.SetOption(id, v)
}

func (o *Options) GetInt(id OptionID) (int, error) {
	v, err := o.Get(id)
	if err != nil {
		return 0, err
	}
	return v.Int()
}

func (o *Options) GetInt64(id OptionID) (int64, error) {
	v, err := o.Get(id)
	if err != nil {
		return 0, err
	}
	return v.Int64()
}

func (o *Options) GetBytes(id OptionID) ([]byte, error) {
	v, err := o.Get(id)
	if err != nil {
		return nil, err
	}
	return v.Bytes()
}

func (o *Options) GetEvents(id OptionID) (EventFlags, error) {
	v, err := o.Get(id)
	if err != nil {
		return 0, err
	}
	return v.Events()
}

// GetDuration reads a milliseconds-valued integer option as a duration.
// A negative stored value means "no limit" and comes back as -1.
func (o *Options) GetDuration(id OptionID) (time.Duration, error) {
	ms, err := o.GetInt(id)
	if err != nil {
		return 0, err
	}
	if ms < 0 {
		return -1, nil
	}
	return time.Duration(ms) * time.Millisecond, nil
}

func (o *Options) SetInt(id OptionID, v int) error {
	return o.Set(id, IntValue(v))
}

func (o *Options) SetInt64(id OptionID, v int64) error {
	return o.Set(id, Int64Value(v))
}

func (o *Options) SetBytes(id OptionID, v []byte) error {
	return o.Set(id, BytesValue(v))
}

func (o *Options) SetString(id OptionID, v string) error {
	return o.Set(id, StringValue(v))
}

// SetDuration stores a duration as a whole-milliseconds integer option,
// truncating any sub-millisecond remainder. Negative durations store -1.
func (o *Options) SetDuration(id OptionID, d time.Duration) error {
	ms := int(d / time.Millisecond)
	if d < 0 {
		ms = -1
	}
	return o.SetInt(id, ms)
}
