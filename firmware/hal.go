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

// Package firmware implements the device side of the SPI Adapter protocol:
// a tick-driven command engine that reads command frames from a host-facing
// byte link, drives an SPI bus with chip-select muxing and a bank of
// auxiliary GPIO lines, and writes responses back.
//
// The engine is fully portable. All hardware access goes through the small
// interfaces in this file; periphhal provides a periph.io-backed
// implementation for Linux hosts and the internal simulator provides an
// in-memory one for tests.
package firmware

// Link is the host-facing byte stream, typically a USB CDC serial port.
//
// Read must never block: it returns however many bytes are immediately
// available, up to len(p), and (0, nil) when there are none. Write may
// buffer but must accept the full slice.
type Link interface {
	Read(p []byte) (int, error)
	Write(p []byte) (int, error)
}

// AuxPinMode selects the electrical configuration of an auxiliary pin.
// Values match the wire protocol.
type AuxPinMode uint8

// Auxiliary pin modes.
const (
	AuxInputPulldown AuxPinMode = 1
	AuxInputPullup   AuxPinMode = 2
	AuxOutput        AuxPinMode = 3
)

// Bus is the SPI master. Transfer performs one full-duplex transaction at
// the given mode (0-3) and clock frequency, using buf as both the transmit
// source and the receive destination: received bytes overwrite transmitted
// ones in place. A zero-length buf is a valid transfer; the bus must still
// apply the mode so the clock line settles to the new idle level.
type Bus interface {
	Transfer(mode uint8, freqHz int64, buf []byte) error
}

// PinBank drives the chip-select outputs and the auxiliary pins. Indices
// are logical; the implementation owns the mapping to physical lines.
// Out-of-range indices must be ignored, not panic: the engine validates
// ranges where the protocol requires an error response and relies on the
// bank being tolerant everywhere else.
type PinBank interface {
	// AssertCS drives the selected chip-select line active.
	AssertCS(index uint8)
	// ReleaseAllCS de-asserts every chip-select line.
	ReleaseAllCS()

	// SetAuxMode reconfigures one auxiliary pin.
	SetAuxMode(pin uint8, mode AuxPinMode)
	// ReadAux samples one auxiliary pin.
	ReadAux(pin uint8) bool
	// WriteAux sets the output level of one auxiliary pin.
	WriteAux(pin uint8, high bool)
}

// Clock supplies a millisecond counter for command timeouts. The counter
// wraps after ~49 days; the engine uses wrapping subtraction so a rollover
// mid-command does not produce a spurious timeout.
type Clock interface {
	Millis() uint32
}

// Indicator renders the adapter's activity state, typically as an LED.
// The engine calls Update only when the state changes, so implementations
// backed by slow devices (neopixels) are not hammered every tick.
type Indicator interface {
	Update(active bool)
}

// nopIndicator is used when no indicator is configured.
type nopIndicator struct{}

func (nopIndicator) Update(bool) {}
