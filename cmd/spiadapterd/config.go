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

package main

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/sprocketlab/go-spiadapter/firmware/periphhal"
	"github.com/sprocketlab/go-spiadapter/internal/wire"
)

// config is the daemon configuration file layout.
type config struct {
	// Serial is the host-facing serial port, e.g. a USB gadget CDC port
	// or a pty created by socat for local testing.
	Serial serialConfig `yaml:"serial"`

	// SPI names the spireg port of the bus to drive. Empty selects the
	// first available.
	SPI string `yaml:"spi_port"`

	// Pin names are resolved through periph's gpioreg.
	CSPins  []string `yaml:"cs_pins"`
	AuxPins []string `yaml:"aux_pins"`
	LEDPin  string   `yaml:"led_pin"`

	// TickMicros is the engine tick period in microseconds; 0 uses the
	// built-in default.
	TickMicros int `yaml:"tick_micros"`
}

type serialConfig struct {
	Port string `yaml:"port"`
	Baud int    `yaml:"baud"`
}

// defaultConfig matches the reference wiring of the Raspberry Pi hat:
// CS0-CS3 on GPIO20/21/22/26, aux 0-7 on GPIO0-7.
func defaultConfig() config {
	return config{
		Serial: serialConfig{Baud: 115200},
		CSPins: []string{"GPIO20", "GPIO21", "GPIO22", "GPIO26"},
		AuxPins: []string{
			"GPIO0", "GPIO1", "GPIO2", "GPIO3",
			"GPIO4", "GPIO5", "GPIO6", "GPIO7",
		},
	}
}

// loadConfig reads and validates the YAML configuration file.
func loadConfig(path string) (config, error) {
	cfg := defaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("failed to read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func (c config) validate() error {
	if c.Serial.Port == "" {
		return fmt.Errorf("config: serial.port is required")
	}
	if len(c.CSPins) != wire.NumCSLines {
		return fmt.Errorf("config: need exactly %d cs_pins, got %d",
			wire.NumCSLines, len(c.CSPins))
	}
	if len(c.AuxPins) != wire.NumAuxPins {
		return fmt.Errorf("config: need exactly %d aux_pins, got %d",
			wire.NumAuxPins, len(c.AuxPins))
	}
	return nil
}

// halConfig converts to the periphhal configuration.
func (c config) halConfig() periphhal.Config {
	hc := periphhal.Config{
		SPIPort: c.SPI,
		LEDPin:  c.LEDPin,
	}
	copy(hc.CSPins[:], c.CSPins)
	copy(hc.AuxPins[:], c.AuxPins)
	return hc
}

func (c config) tickPeriod() time.Duration {
	return time.Duration(c.TickMicros) * time.Microsecond
}
