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

import "github.com/sprocketlab/go-spiadapter/internal/wire"

// Auxiliary pin commands. Pin state lives in the hardware only: the engine
// does not shadow pin directions or levels, it just validates and forwards.

// auxModeHandler configures one auxiliary pin. Error codes here are the
// command-local space (1 = pin index, 2 = mode) inside the usual 'E'
// framing.
type auxModeHandler struct{}

func (*auxModeHandler) name() string { return "AUX_MODE" }
func (*auxModeHandler) enter(*Engine) {}
func (*auxModeHandler) abort(*Engine) {}

func (*auxModeHandler) step(e *Engine) bool {
	if !e.acc.fill(e.link, 2) {
		return false
	}
	b := e.acc.bytes()
	pin, mode := b[0], b[1]
	if pin >= wire.NumAuxPins {
		e.writeError(wire.ErrCodeAuxPinRange)
		return true
	}
	if mode < wire.AuxInputPulldown || mode > wire.AuxOutput {
		e.writeError(wire.ErrCodeAuxModeRange)
		return true
	}
	e.pins.SetAuxMode(pin, AuxPinMode(mode))
	e.write([]byte{wire.StatusOK})
	return true
}

// auxReadHandler samples all eight pins and packs them into one byte,
// logical pin 7 in the most significant bit.
type auxReadHandler struct{}

func (*auxReadHandler) name() string { return "AUX_READ" }
func (*auxReadHandler) enter(*Engine) {}
func (*auxReadHandler) abort(*Engine) {}

func (*auxReadHandler) step(e *Engine) bool {
	var packed byte
	for pin := uint8(0); pin < wire.NumAuxPins; pin++ {
		if e.pins.ReadAux(pin) {
			packed |= 1 << pin
		}
	}
	e.write([]byte{wire.StatusOK, packed})
	return true
}

// auxWriteHandler writes the pins selected by the mask byte to the
// corresponding bits of the values byte. Unmasked pins are untouched
// regardless of their configured direction; writing an input pin only
// preloads its output latch.
type auxWriteHandler struct{}

func (*auxWriteHandler) name() string { return "AUX_WRITE" }
func (*auxWriteHandler) enter(*Engine) {}
func (*auxWriteHandler) abort(*Engine) {}

func (*auxWriteHandler) step(e *Engine) bool {
	if !e.acc.fill(e.link, 2) {
		return false
	}
	b := e.acc.bytes()
	values, mask := b[0], b[1]
	for pin := uint8(0); pin < wire.NumAuxPins; pin++ {
		bit := byte(1) << pin
		if mask&bit != 0 {
			e.pins.WriteAux(pin, values&bit != 0)
		}
	}
	e.write([]byte{wire.StatusOK})
	return true
}
