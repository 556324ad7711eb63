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
	"bytes"
	"testing"

	"github.com/sprocketlab/go-spiadapter/internal/wire"
)

func TestNewRequiresHardware(t *testing.T) {
	t.Parallel()

	link := &fakeLink{}
	pins := newFakePins()
	bus := &fakeBus{pins: pins}

	cases := []struct {
		name string
		cfg  Config
	}{
		{"no link", Config{Bus: bus, Pins: pins}},
		{"no bus", Config{Link: link, Pins: pins}},
		{"no pins", Config{Link: link, Bus: bus}},
	}
	for _, tc := range cases {
		if _, err := New(tc.cfg); err == nil {
			t.Errorf("%s: New() accepted incomplete config", tc.name)
		}
	}
}

func TestEchoRoundTrip(t *testing.T) {
	t.Parallel()

	r := newRig(t)
	for _, b := range []byte{0x00, 0x41, 0xFF} {
		out := r.run(t, wire.CmdEcho, b)
		if !bytes.Equal(out, []byte{b}) {
			t.Fatalf("echo of %#02x returned % 02X", b, out)
		}
	}
}

func TestEchoSplitArrival(t *testing.T) {
	t.Parallel()

	r := newRig(t)
	r.link.feed(wire.CmdEcho)
	r.ticks(3)
	if !r.engine.Busy() {
		t.Fatal("engine not busy after selector")
	}
	if got := r.link.takeOutput(); len(got) != 0 {
		t.Fatalf("wrote % 02X before payload arrived", got)
	}
	r.link.feed(0x5A)
	r.ticks(2)
	if got := r.link.takeOutput(); !bytes.Equal(got, []byte{0x5A}) {
		t.Fatalf("echo returned % 02X", got)
	}
	if r.engine.Busy() {
		t.Fatal("engine still busy after completion")
	}
}

func TestInfoResponse(t *testing.T) {
	t.Parallel()

	r := newRig(t)
	out := r.run(t, wire.CmdInfo)

	want := []byte{
		wire.StatusOK,
		'S', 'P', 'I',
		wire.APIVersion,
		byte(wire.FirmwareVersion >> 8), byte(wire.FirmwareVersion & 0xff),
		wire.MaxTransactionBytes / 256,
	}
	if !bytes.Equal(out, want) {
		t.Fatalf("info returned % 02X, want % 02X", out, want)
	}
}

func TestUnknownSelectorDropped(t *testing.T) {
	t.Parallel()

	r := newRig(t)
	out := r.run(t, 'z')
	if len(out) != 0 {
		t.Fatalf("unknown selector produced output % 02X", out)
	}
	if r.engine.Busy() {
		t.Fatal("unknown selector left engine busy")
	}

	// The engine must still accept a valid command afterwards.
	out = r.run(t, wire.CmdEcho, 0x33)
	if !bytes.Equal(out, []byte{0x33}) {
		t.Fatalf("echo after unknown selector returned % 02X", out)
	}
}

func TestCommandTimeoutIsSilent(t *testing.T) {
	t.Parallel()

	r := newRig(t)
	r.link.feed(wire.CmdEcho)
	// Never feed the payload byte. Tick well past the timeout.
	r.ticks(300)
	if r.engine.Busy() {
		t.Fatal("engine still busy after timeout")
	}
	if got := r.link.takeOutput(); len(got) != 0 {
		t.Fatalf("timeout produced output % 02X", got)
	}

	// A fresh command is accepted after the abort.
	out := r.run(t, wire.CmdInfo)
	if len(out) == 0 || out[0] != wire.StatusOK {
		t.Fatalf("info after timeout returned % 02X", out)
	}
}

func TestTimeoutAbortReleasesChipSelects(t *testing.T) {
	t.Parallel()

	r := newRig(t)
	header := wire.SendHeader{CSIndex: 2, Mode: 0, SpeedByte: 40, CustomCount: 4}
	enc := header.EncodeSendHeader()
	r.link.feed(wire.CmdSend)
	r.link.feed(enc[:]...)
	// Only two of the four custom bytes ever arrive.
	r.link.feed(0x01, 0x02)
	r.ticks(300)
	if r.engine.Busy() {
		t.Fatal("engine still busy after timeout")
	}
	if got := r.link.takeOutput(); len(got) != 0 {
		t.Fatalf("timed-out transaction produced output % 02X", got)
	}
	if r.pins.asserted != -1 {
		t.Fatalf("chip select %d still asserted after abort", r.pins.asserted)
	}
}

func TestOneHandlerStepPerTick(t *testing.T) {
	t.Parallel()

	r := newRig(t)
	// Selector and payload arrive together. Admission consumes one tick,
	// the single echo step another, so output appears on tick 2 at the
	// earliest and never on tick 1.
	r.link.feed(wire.CmdEcho, 0x7E)
	r.tick()
	if got := r.link.takeOutput(); len(got) != 0 {
		t.Fatalf("output % 02X on the admission tick", got)
	}
	r.tick()
	if got := r.link.takeOutput(); !bytes.Equal(got, []byte{0x7E}) {
		t.Fatalf("echo step returned % 02X", got)
	}
}

func TestChipSelectsReleasedWhileIdle(t *testing.T) {
	t.Parallel()

	r := newRig(t)
	r.pins.events = nil
	r.ticks(3)
	for _, ev := range r.pins.events {
		if ev != "release" {
			t.Fatalf("idle tick produced pin event %q", ev)
		}
	}
	if len(r.pins.events) != 3 {
		t.Fatalf("expected a release per idle tick, got %d", len(r.pins.events))
	}
}

func TestIndicatorUpdatesOnChangeOnly(t *testing.T) {
	t.Parallel()

	r := newRig(t)
	// Construction does not touch the indicator. The first tick sees
	// elapsed 0, within the activity grace, so the light turns on once.
	r.ticks(5)
	if len(r.led.updates) != 1 || r.led.updates[0] != true {
		t.Fatalf("updates after first ticks: %v", r.led.updates)
	}

	// Past the grace period the light goes out, again exactly once,
	// then stays dark until the blink window.
	r.clock.ms = activityGraceMillis
	r.ticks(5)
	if len(r.led.updates) != 2 || r.led.updates[1] != false {
		t.Fatalf("updates after grace expiry: %v", r.led.updates)
	}
}

func TestIndicatorIdleBlink(t *testing.T) {
	t.Parallel()

	r := newRig(t)
	r.clock.ms = activityGraceMillis
	r.tick() // light off
	r.led.updates = nil

	// The blink fires when the masked elapsed counter is zero.
	r.clock.ms = 2048 // next elapsed value with all masked bits clear
	r.tick()
	r.tick()
	if len(r.led.updates) == 0 || r.led.updates[0] != true {
		t.Fatalf("blink on-edge updates: %v", r.led.updates)
	}
}
