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

// Package simulator provides a wire-level virtual SPI Adapter for tests.
//
// VirtualAdapter runs the real firmware engine against an in-memory serial
// link, a scriptable SPI peripheral per chip-select line, a simulated
// auxiliary pin bank and a manually advanced clock. It implements
// io.ReadWriter from the host's point of view, so tests exercise the exact
// byte protocol a physical adapter speaks, including partial arrivals and
// command timeouts.
package simulator

import (
	"io"

	"github.com/sprocketlab/go-spiadapter/firmware"
	"github.com/sprocketlab/go-spiadapter/internal/syncutil"
	"github.com/sprocketlab/go-spiadapter/internal/wire"
)

// maxPumpTicks bounds how many engine ticks a single host Write or Read
// may trigger, to keep a buggy handler from spinning forever.
const maxPumpTicks = 4096

// Peripheral models the device attached to one chip-select line.
// Exchange sees the transmitted bytes in buf and overwrites them with the
// bytes the peripheral drives on MISO.
type Peripheral interface {
	Exchange(mode uint8, freqHz int64, buf []byte)
}

// Loopback wires MOSI to MISO: the transmitted bytes come straight back.
type Loopback struct{}

// Exchange implements Peripheral.
func (Loopback) Exchange(_ uint8, _ int64, _ []byte) {}

// FixedResponse answers every transfer with the same byte sequence,
// truncated or zero-padded to the transfer length.
type FixedResponse struct {
	Data []byte
}

// Exchange implements Peripheral.
func (f FixedResponse) Exchange(_ uint8, _ int64, buf []byte) {
	n := copy(buf, f.Data)
	clear(buf[n:])
}

// TransferRecord captures one bus transfer for test assertions.
type TransferRecord struct {
	TX     []byte
	FreqHz int64
	CS     int // asserted chip select, -1 for none (dummy transfers)
	Mode   uint8
}

// ManualClock is a millisecond counter advanced explicitly by the test.
type ManualClock struct {
	mu syncutil.Mutex
	ms uint32
}

// Millis implements firmware.Clock.
func (c *ManualClock) Millis() uint32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ms
}

// Advance moves the clock forward. Wrapping is intentional: tests can
// place the clock near the uint32 boundary to exercise rollover.
func (c *ManualClock) Advance(millis uint32) {
	c.mu.Lock()
	c.ms += millis
	c.mu.Unlock()
}

// Set jumps the clock to an absolute value.
func (c *ManualClock) Set(millis uint32) {
	c.mu.Lock()
	c.ms = millis
	c.mu.Unlock()
}

// Pins simulates the chip-select outputs and the auxiliary pin bank.
type Pins struct {
	mu       syncutil.Mutex
	external map[uint8]bool
	modes    [wire.NumAuxPins]firmware.AuxPinMode
	latch    [wire.NumAuxPins]bool
	asserted int
}

func newPins() *Pins {
	p := &Pins{asserted: -1, external: make(map[uint8]bool)}
	for i := range p.modes {
		p.modes[i] = firmware.AuxInputPulldown
	}
	return p
}

// AssertCS implements firmware.PinBank.
func (p *Pins) AssertCS(index uint8) {
	p.mu.Lock()
	p.asserted = int(index)
	p.mu.Unlock()
}

// ReleaseAllCS implements firmware.PinBank.
func (p *Pins) ReleaseAllCS() {
	p.mu.Lock()
	p.asserted = -1
	p.mu.Unlock()
}

// AssertedCS returns the currently asserted chip select, or -1.
func (p *Pins) AssertedCS() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.asserted
}

// SetAuxMode implements firmware.PinBank.
func (p *Pins) SetAuxMode(pin uint8, mode firmware.AuxPinMode) {
	if int(pin) >= len(p.modes) {
		return
	}
	p.mu.Lock()
	p.modes[pin] = mode
	p.mu.Unlock()
}

// ReadAux implements firmware.PinBank. Outputs read back their latch;
// inputs read the externally driven level, or their pull default when
// nothing drives them.
func (p *Pins) ReadAux(pin uint8) bool {
	if int(pin) >= len(p.modes) {
		return false
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	switch p.modes[pin] {
	case firmware.AuxOutput:
		return p.latch[pin]
	case firmware.AuxInputPullup:
		if level, driven := p.external[pin]; driven {
			return level
		}
		return true
	default:
		if level, driven := p.external[pin]; driven {
			return level
		}
		return false
	}
}

// WriteAux implements firmware.PinBank.
func (p *Pins) WriteAux(pin uint8, high bool) {
	if int(pin) >= len(p.modes) {
		return
	}
	p.mu.Lock()
	p.latch[pin] = high
	p.mu.Unlock()
}

// DriveInput sets the external level seen by an input pin.
func (p *Pins) DriveInput(pin uint8, high bool) {
	p.mu.Lock()
	p.external[pin] = high
	p.mu.Unlock()
}

// AuxMode returns the configured mode of a pin, for assertions.
func (p *Pins) AuxMode(pin uint8) firmware.AuxPinMode {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.modes[pin]
}

// memLink is the in-memory serial pipe between host and engine.
type memLink struct {
	mu       syncutil.Mutex
	toDevice []byte
	toHost   []byte
}

// Read implements firmware.Link (device side, non-blocking).
func (l *memLink) Read(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := copy(p, l.toDevice)
	l.toDevice = l.toDevice[n:]
	return n, nil
}

// Write implements firmware.Link (device side).
func (l *memLink) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.toHost = append(l.toHost, p...)
	return len(p), nil
}

func (l *memLink) hostWrite(p []byte) {
	l.mu.Lock()
	l.toDevice = append(l.toDevice, p...)
	l.mu.Unlock()
}

func (l *memLink) hostRead(p []byte) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := copy(p, l.toHost)
	l.toHost = l.toHost[n:]
	return n
}

func (l *memLink) pendingToDevice() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.toDevice)
}

func (l *memLink) pendingToHost() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.toHost)
}

// VirtualAdapter binds a firmware engine to simulated hardware.
//
// The zero tick policy: every engine tick advances the clock by one
// millisecond, so wall-clock behavior (the 250 ms command timeout, the
// activity grace window) maps 1:1 onto tick counts.
type VirtualAdapter struct {
	Clock *ManualClock
	Pins  *Pins

	link        *memLink
	engine      *firmware.Engine
	peripherals map[uint8]Peripheral

	mu        syncutil.Mutex
	transfers []TransferRecord
}

// New creates a virtual adapter with a loopback peripheral on every chip
// select.
func New() *VirtualAdapter {
	v := &VirtualAdapter{
		Clock:       &ManualClock{},
		Pins:        newPins(),
		link:        &memLink{},
		peripherals: make(map[uint8]Peripheral),
	}
	engine, err := firmware.New(firmware.Config{
		Link:  v.link,
		Bus:   (*simBus)(v),
		Pins:  v.Pins,
		Clock: v.Clock,
	})
	if err != nil {
		// Config is fully populated above; this cannot happen.
		panic(err)
	}
	v.engine = engine
	return v
}

// AttachPeripheral connects a peripheral to a chip-select line, replacing
// the default loopback.
func (v *VirtualAdapter) AttachPeripheral(cs uint8, p Peripheral) {
	v.mu.Lock()
	v.peripherals[cs] = p
	v.mu.Unlock()
}

// simBus implements firmware.Bus on top of the virtual peripherals.
type simBus VirtualAdapter

func (b *simBus) Transfer(mode uint8, freqHz int64, buf []byte) error {
	v := (*VirtualAdapter)(b)
	cs := v.Pins.AssertedCS()

	v.mu.Lock()
	v.transfers = append(v.transfers, TransferRecord{
		Mode:   mode,
		FreqHz: freqHz,
		CS:     cs,
		TX:     append([]byte(nil), buf...),
	})
	peripheral := v.peripherals[uint8(cs&0xff)]
	v.mu.Unlock()

	if len(buf) == 0 || cs < 0 {
		return nil
	}
	if peripheral == nil {
		peripheral = Loopback{}
	}
	peripheral.Exchange(mode, freqHz, buf)
	return nil
}

// Transfers returns a copy of the bus transfer log, dummy transfers
// included.
func (v *VirtualAdapter) Transfers() []TransferRecord {
	v.mu.Lock()
	defer v.mu.Unlock()
	return append([]TransferRecord(nil), v.transfers...)
}

// Busy reports whether the engine is inside a command.
func (v *VirtualAdapter) Busy() bool {
	return v.engine.Busy()
}

// Step runs n engine ticks, advancing the clock one millisecond each.
func (v *VirtualAdapter) Step(n int) {
	for range n {
		v.engine.Tick()
		v.Clock.Advance(1)
	}
}

// pumpState is the progress snapshot used to detect a stalled engine.
type pumpState struct {
	busy     bool
	toDevice int
	toHost   int
}

func (v *VirtualAdapter) state() pumpState {
	return pumpState{
		busy:     v.engine.Busy(),
		toDevice: v.link.pendingToDevice(),
		toHost:   v.link.pendingToHost(),
	}
}

// pump ticks the engine until it goes idle with the input drained, or
// until it stalls waiting for bytes the host has not sent yet. Stall
// detection is by lack of progress rather than inspecting handler state:
// two consecutive ticks that change nothing but the clock mean the engine
// is blocked on the host.
func (v *VirtualAdapter) pump() {
	stalled := 0
	for range maxPumpTicks {
		before := v.state()
		if !before.busy && before.toDevice == 0 {
			return
		}
		v.Step(1)
		if v.state() == before {
			stalled++
			if stalled >= 2 {
				return
			}
		} else {
			stalled = 0
		}
	}
}

// PumpFor runs the engine for the given number of simulated milliseconds
// regardless of pending input, letting timeouts and the idle blink
// elapse.
func (v *VirtualAdapter) PumpFor(millis int) {
	v.Step(millis)
}

// Write implements io.Writer from the host side: bytes become available
// to the engine and the engine runs until it needs more.
func (v *VirtualAdapter) Write(p []byte) (int, error) {
	v.link.hostWrite(p)
	v.pump()
	return len(p), nil
}

// Read implements io.Reader from the host side. It returns whatever
// response bytes are available, or io.EOF when there are none; it never
// blocks, mirroring a serial port read with a zero timeout.
func (v *VirtualAdapter) Read(p []byte) (int, error) {
	v.pump()
	n := v.link.hostRead(p)
	if n == 0 {
		return 0, io.EOF
	}
	return n, nil
}

// PendingResponse returns how many response bytes await the host.
func (v *VirtualAdapter) PendingResponse() int {
	return v.link.pendingToHost()
}
