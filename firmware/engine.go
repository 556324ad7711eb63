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
	"context"
	"errors"
	"time"

	"github.com/sprocketlab/go-spiadapter/internal/wire"
)

// Timing constants, in milliseconds of the engine clock.
const (
	// commandTimeoutMillis bounds the time from selector byte to command
	// completion. A command whose bytes stop arriving is abandoned with no
	// response; the host detects the silence.
	commandTimeoutMillis = 250

	// activityGraceMillis keeps the indicator solid briefly after a command
	// finishes so rapid command bursts read as continuous activity.
	activityGraceMillis = 200

	// blinkMask selects the idle blink duty cycle: the indicator is lit
	// while the low bits of the elapsed counter are all zero, giving a
	// short flash every ~2 seconds.
	blinkMask = 0b111_1111_1100
)

// handler is one protocol verb. The engine owns exactly one active handler
// at a time and calls step once per tick until it reports completion.
// Handlers must never block: when bytes are missing they return false and
// are re-invoked next tick with their state intact.
type handler interface {
	name() string
	// enter resets handler-local state when the command is admitted.
	enter(e *Engine)
	// step advances the command; true means the command completed.
	step(e *Engine) bool
	// abort is called on timeout. It must not write to the link.
	abort(e *Engine)
}

// Config assembles an Engine from its hardware collaborators.
type Config struct {
	Link Link
	Bus  Bus
	Pins PinBank
	// Clock defaults to a monotonic system clock when nil.
	Clock Clock
	// Indicator is optional.
	Indicator Indicator
}

// Engine is the command dispatcher. It admits at most one command at a
// time, drives the active handler one step per tick, and enforces the
// command timeout. The frame buffer and the last-used SPI mode are engine
// state handed to handlers by reference, which is what enforces the
// single-owner discipline on both.
type Engine struct {
	link Link
	bus  Bus
	pins PinBank
	clk  Clock
	led  Indicator

	handlers map[byte]handler
	acc      *accumulator

	active    handler
	cmdStart  uint32
	lastMode  uint8 // most recently used SPI mode, for the clock-polarity workaround
	lastLight bool
}

// New builds an Engine over the given hardware. The selector table is
// fixed at construction; there is no dynamic registration.
func New(cfg Config) (*Engine, error) {
	if cfg.Link == nil {
		return nil, errors.New("firmware: Config.Link is required")
	}
	if cfg.Bus == nil {
		return nil, errors.New("firmware: Config.Bus is required")
	}
	if cfg.Pins == nil {
		return nil, errors.New("firmware: Config.Pins is required")
	}
	clk := cfg.Clock
	if clk == nil {
		clk = NewSystemClock()
	}
	led := cfg.Indicator
	if led == nil {
		led = nopIndicator{}
	}

	e := &Engine{
		link: cfg.Link,
		bus:  cfg.Bus,
		pins: cfg.Pins,
		clk:  clk,
		led:  led,
		acc:  newAccumulator(wire.MaxTransactionBytes),
	}
	e.handlers = map[byte]handler{
		wire.CmdEcho:     &echoHandler{},
		wire.CmdInfo:     &infoHandler{},
		wire.CmdSend:     &sendHandler{},
		wire.CmdAuxMode:  &auxModeHandler{},
		wire.CmdAuxRead:  &auxReadHandler{},
		wire.CmdAuxWrite: &auxWriteHandler{},
	}
	e.pins.ReleaseAllCS()
	return e, nil
}

// Tick runs one scheduler pass: refresh the indicator, then either advance
// the active command or try to admit a new one. Exactly one handler step
// runs per tick.
func (e *Engine) Tick() {
	now := e.clk.Millis()
	// Wrapping subtraction: correct across the ~49 day counter rollover.
	elapsed := now - e.cmdStart

	e.updateIndicator(elapsed)

	if e.active != nil {
		if elapsed > commandTimeoutMillis {
			// Silent abort. No error byte goes out; the host's own read
			// timeout is the signal.
			e.active.abort(e)
			e.active = nil
			return
		}
		if e.active.step(e) {
			e.active = nil
		}
		return
	}

	// Idle: hold every chip select de-asserted as a safety default.
	e.pins.ReleaseAllCS()

	var sel [1]byte
	n, err := e.link.Read(sel[:])
	if err != nil || n == 0 {
		return
	}

	h, ok := e.handlers[sel[0]]
	if !ok {
		// Unknown selectors are dropped without a response so a desynced
		// host can resynchronize by letting the line drain.
		return
	}
	e.cmdStart = now
	e.acc.reset()
	e.active = h
	h.enter(e)
	// The first step runs on the next tick, after the indicator refresh.
}

// Busy reports whether a command is currently in progress.
func (e *Engine) Busy() bool {
	return e.active != nil
}

// updateIndicator computes the activity boolean and pushes it only on
// change. Solid while a command is active or recently finished, otherwise
// a short flash on a fixed slow period.
func (e *Engine) updateIndicator(elapsedMillis uint32) {
	active := e.active != nil || elapsedMillis < activityGraceMillis
	lit := active || elapsedMillis&blinkMask == 0
	if lit != e.lastLight {
		e.led.Update(lit)
		e.lastLight = lit
	}
}

// Run ticks the engine at the given period until the context is canceled.
// A period of zero selects a default suited to full-speed USB serial.
func (e *Engine) Run(ctx context.Context, period time.Duration) error {
	if period <= 0 {
		period = 500 * time.Microsecond
	}
	ticker := time.NewTicker(period)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			e.Tick()
		}
	}
}

// write sends response bytes to the host. Link write failures are not
// reportable inside the protocol, so they are dropped; the host sees a
// short response and treats the command as failed.
func (e *Engine) write(p []byte) {
	_, _ = e.link.Write(p)
}

// writeError emits the 'E' + code response frame.
func (e *Engine) writeError(code byte) {
	e.write([]byte{wire.StatusError, code})
}

// systemClock derives a wrapping millisecond counter from the monotonic
// clock.
type systemClock struct {
	start time.Time
}

// NewSystemClock returns a Clock backed by time.Since on the monotonic
// clock, wrapping at the uint32 boundary.
func NewSystemClock() Clock {
	return &systemClock{start: time.Now()}
}

func (c *systemClock) Millis() uint32 {
	return uint32(time.Since(c.start).Milliseconds())
}
