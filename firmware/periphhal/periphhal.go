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

// Package periphhal implements the firmware hardware interfaces on top of
// periph.io, so any Linux board with an SPI master and free GPIO lines
// (a Raspberry Pi, typically) can serve as the adapter.
//
// Chip selects are plain GPIO outputs driven active-low by the engine; the
// SPI controller's own CE line is left unconnected. This is what allows
// four muxed devices on one bus and CS bracketing that outlives a single
// kernel SPI message.
package periphhal

import (
	"fmt"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi"
	"periph.io/x/conn/v3/spi/spireg"
	"periph.io/x/host/v3"

	"github.com/sprocketlab/go-spiadapter/firmware"
	"github.com/sprocketlab/go-spiadapter/internal/wire"
)

// Config names the physical resources. Pin names are resolved through
// gpioreg, so both "GPIO20" and header names like "P1_38" work.
type Config struct {
	// SPIPort is the spireg port name, e.g. "SPI0.0". Empty selects the
	// first available port.
	SPIPort string
	// CSPins maps logical chip-select index to a GPIO name.
	CSPins [wire.NumCSLines]string
	// AuxPins maps logical auxiliary index to a GPIO name.
	AuxPins [wire.NumAuxPins]string
	// LEDPin is the optional activity indicator output.
	LEDPin string
}

// HAL implements firmware.Bus, firmware.PinBank and firmware.Indicator.
type HAL struct {
	spiName string
	port    spi.PortCloser
	conn    spi.Conn
	mode    spi.Mode
	freq    physic.Frequency

	cs  [wire.NumCSLines]gpio.PinIO
	aux [wire.NumAuxPins]gpio.PinIO
	led gpio.PinIO

	// auxOut tracks which aux pins are configured as outputs, and auxLatch
	// the last written level, so WriteAux on an input pin preloads the
	// level that SetAuxMode(Output) will drive.
	auxOut   [wire.NumAuxPins]bool
	auxLatch [wire.NumAuxPins]bool
}

// New initializes periph, resolves every configured pin and puts the
// outputs in their safe state: CS lines de-asserted, aux pins as
// pulled-down inputs.
func New(cfg Config) (*HAL, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("failed to initialize periph host: %w", err)
	}

	h := &HAL{spiName: cfg.SPIPort}
	for i, name := range cfg.CSPins {
		pin := gpioreg.ByName(name)
		if pin == nil {
			return nil, fmt.Errorf("CS %d: no GPIO named %q", i, name)
		}
		if err := pin.Out(gpio.High); err != nil {
			return nil, fmt.Errorf("CS %d (%s): %w", i, name, err)
		}
		h.cs[i] = pin
	}
	for i, name := range cfg.AuxPins {
		pin := gpioreg.ByName(name)
		if pin == nil {
			return nil, fmt.Errorf("aux %d: no GPIO named %q", i, name)
		}
		if err := pin.In(gpio.PullDown, gpio.NoEdge); err != nil {
			return nil, fmt.Errorf("aux %d (%s): %w", i, name, err)
		}
		h.aux[i] = pin
	}
	if cfg.LEDPin != "" {
		pin := gpioreg.ByName(cfg.LEDPin)
		if pin == nil {
			return nil, fmt.Errorf("LED: no GPIO named %q", cfg.LEDPin)
		}
		if err := pin.Out(gpio.Low); err != nil {
			return nil, fmt.Errorf("LED (%s): %w", cfg.LEDPin, err)
		}
		h.led = pin
	}

	// Open the bus once up front so a missing SPI controller fails at
	// startup, not on the first transaction.
	if _, err := h.connect(spi.Mode0, wire.SpeedByteMax*wire.SpeedUnitHz*physic.Hertz); err != nil {
		return nil, err
	}
	return h, nil
}

// connect returns an spi.Conn at the requested parameters. periph binds
// mode and frequency at Connect time, so a parameter change means closing
// and reopening the port.
func (h *HAL) connect(mode spi.Mode, freq physic.Frequency) (spi.Conn, error) {
	if h.conn != nil && h.mode == mode && h.freq == freq {
		return h.conn, nil
	}
	if h.port != nil {
		_ = h.port.Close()
		h.port = nil
		h.conn = nil
	}
	port, err := spireg.Open(h.spiName)
	if err != nil {
		return nil, fmt.Errorf("failed to open SPI port %q: %w", h.spiName, err)
	}
	conn, err := port.Connect(freq, mode|spi.NoCS, 8)
	if err != nil {
		_ = port.Close()
		return nil, fmt.Errorf("failed to connect SPI: %w", err)
	}
	h.port = port
	h.conn = conn
	h.mode = mode
	h.freq = freq
	return conn, nil
}

var spiModes = [4]spi.Mode{spi.Mode0, spi.Mode1, spi.Mode2, spi.Mode3}

// Transfer implements firmware.Bus. A zero-length buffer is the engine's
// clock-polarity settle request: the controller is reprogrammed to the new
// mode and one scrap byte is clocked out with every CS line released, so
// SCK reaches its idle level before the real transfer begins.
func (h *HAL) Transfer(mode uint8, freqHz int64, buf []byte) error {
	conn, err := h.connect(spiModes[mode&0b11], physic.Frequency(freqHz)*physic.Hertz)
	if err != nil {
		return err
	}
	if len(buf) == 0 {
		var scrap [1]byte
		return conn.Tx(scrap[:], scrap[:])
	}
	return conn.Tx(buf, buf)
}

// AssertCS implements firmware.PinBank. CS lines are active low.
func (h *HAL) AssertCS(index uint8) {
	if int(index) < len(h.cs) {
		_ = h.cs[index].Out(gpio.Low)
	}
}

// ReleaseAllCS implements firmware.PinBank.
func (h *HAL) ReleaseAllCS() {
	for _, pin := range h.cs {
		_ = pin.Out(gpio.High)
	}
}

// SetAuxMode implements firmware.PinBank.
func (h *HAL) SetAuxMode(pin uint8, mode firmware.AuxPinMode) {
	if int(pin) >= len(h.aux) {
		return
	}
	switch mode {
	case firmware.AuxInputPulldown:
		h.auxOut[pin] = false
		_ = h.aux[pin].In(gpio.PullDown, gpio.NoEdge)
	case firmware.AuxInputPullup:
		h.auxOut[pin] = false
		_ = h.aux[pin].In(gpio.PullUp, gpio.NoEdge)
	case firmware.AuxOutput:
		h.auxOut[pin] = true
		_ = h.aux[pin].Out(gpio.Level(h.auxLatch[pin]))
	}
}

// ReadAux implements firmware.PinBank.
func (h *HAL) ReadAux(pin uint8) bool {
	if int(pin) >= len(h.aux) {
		return false
	}
	return h.aux[pin].Read() == gpio.High
}

// WriteAux implements firmware.PinBank.
func (h *HAL) WriteAux(pin uint8, high bool) {
	if int(pin) >= len(h.aux) {
		return
	}
	h.auxLatch[pin] = high
	if h.auxOut[pin] {
		_ = h.aux[pin].Out(gpio.Level(high))
	}
}

// Update implements firmware.Indicator.
func (h *HAL) Update(active bool) {
	if h.led != nil {
		_ = h.led.Out(gpio.Level(active))
	}
}

// Close releases the SPI port and de-asserts every output.
func (h *HAL) Close() error {
	h.ReleaseAllCS()
	if h.led != nil {
		_ = h.led.Out(gpio.Low)
	}
	if h.port != nil {
		if err := h.port.Close(); err != nil {
			return fmt.Errorf("failed to close SPI port: %w", err)
		}
		h.port = nil
		h.conn = nil
	}
	return nil
}
