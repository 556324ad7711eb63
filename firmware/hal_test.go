// Copyright 2026 The go-spiadapter Authors.
// SPDX-License-Identifier: Apache-2.0
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package firmware

import (
	"errors"
	"testing"
)

// fakeLink is an in-memory Link. maxRead throttles how many bytes a
// single Read may return, to simulate fragmented serial arrivals.
type fakeLink struct {
	in      []byte
	out     []byte
	maxRead int
	readErr error
}

func (l *fakeLink) feed(b ...byte) {
	l.in = append(l.in, b...)
}

func (l *fakeLink) Read(p []byte) (int, error) {
	if l.readErr != nil {
		return 0, l.readErr
	}
	limit := len(p)
	if l.maxRead > 0 && limit > l.maxRead {
		limit = l.maxRead
	}
	n := copy(p[:limit], l.in)
	l.in = l.in[n:]
	return n, nil
}

func (l *fakeLink) Write(p []byte) (int, error) {
	l.out = append(l.out, p...)
	return len(p), nil
}

func (l *fakeLink) takeOutput() []byte {
	out := l.out
	l.out = nil
	return out
}

// busTransfer records one fakeBus.Transfer call, including which chip
// select was asserted at the time.
type busTransfer struct {
	tx   []byte
	freq int64
	cs   int
	mode uint8
}

// fakeBus records transfers and applies an optional exchange function to
// produce the read-back bytes. The default leaves the buffer untouched
// (loopback).
type fakeBus struct {
	pins      *fakePins
	transfers []busTransfer
	exchange  func(buf []byte)
	err       error
}

func (b *fakeBus) Transfer(mode uint8, freqHz int64, buf []byte) error {
	cs := -1
	if b.pins != nil {
		cs = b.pins.asserted
	}
	b.transfers = append(b.transfers, busTransfer{
		mode: mode,
		freq: freqHz,
		cs:   cs,
		tx:   append([]byte(nil), buf...),
	})
	if b.err != nil {
		return b.err
	}
	if b.exchange != nil && len(buf) > 0 {
		b.exchange(buf)
	}
	return nil
}

// fakePins records chip-select and aux activity. events collects the
// ordering of CS edges and transfers is left to fakeBus.
type fakePins struct {
	events   []string
	modes    [8]AuxPinMode
	latch    [8]bool
	inputs   [8]bool
	asserted int
}

func newFakePins() *fakePins {
	p := &fakePins{asserted: -1}
	for i := range p.modes {
		p.modes[i] = AuxInputPulldown
	}
	return p
}

func (p *fakePins) AssertCS(index uint8) {
	p.asserted = int(index)
	p.events = append(p.events, "assert")
}

func (p *fakePins) ReleaseAllCS() {
	p.asserted = -1
	p.events = append(p.events, "release")
}

func (p *fakePins) SetAuxMode(pin uint8, mode AuxPinMode) {
	p.modes[pin] = mode
}

func (p *fakePins) ReadAux(pin uint8) bool {
	if p.modes[pin] == AuxOutput {
		return p.latch[pin]
	}
	return p.inputs[pin]
}

func (p *fakePins) WriteAux(pin uint8, high bool) {
	p.latch[pin] = high
}

type fakeClock struct {
	ms uint32
}

func (c *fakeClock) Millis() uint32 {
	return c.ms
}

type fakeLED struct {
	updates []bool
}

func (l *fakeLED) Update(active bool) {
	l.updates = append(l.updates, active)
}

// rig bundles an engine with its fakes.
type rig struct {
	engine *Engine
	link   *fakeLink
	bus    *fakeBus
	pins   *fakePins
	clock  *fakeClock
	led    *fakeLED
}

func newRig(t *testing.T) *rig {
	t.Helper()
	link := &fakeLink{}
	pins := newFakePins()
	bus := &fakeBus{pins: pins}
	clock := &fakeClock{}
	led := &fakeLED{}
	engine, err := New(Config{
		Link:      link,
		Bus:       bus,
		Pins:      pins,
		Clock:     clock,
		Indicator: led,
	})
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}
	return &rig{engine: engine, link: link, bus: bus, pins: pins, clock: clock, led: led}
}

// tick advances the clock by one millisecond and runs one engine tick.
func (r *rig) tick() {
	r.engine.Tick()
	r.clock.ms++
}

// ticks runs n ticks.
func (r *rig) ticks(n int) {
	for i := 0; i < n; i++ {
		r.tick()
	}
}

// run feeds bytes and ticks until the engine goes idle again, bounded.
func (r *rig) run(t *testing.T, input ...byte) []byte {
	t.Helper()
	r.link.feed(input...)
	for i := 0; i < 600; i++ {
		r.tick()
		if !r.engine.Busy() && len(r.link.in) == 0 {
			break
		}
	}
	if r.engine.Busy() {
		t.Fatalf("engine still busy after run of % 02X", input)
	}
	return r.link.takeOutput()
}

var errLinkBroken = errors.New("link broken")
