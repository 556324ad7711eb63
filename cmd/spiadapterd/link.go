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
	"time"

	"go.bug.st/serial"
)

// serialLink adapts a serial port to the firmware.Link contract. The
// engine expects non-blocking reads; a one-millisecond read timeout is
// the closest a serial port gets, and it doubles as the tick pacing when
// the line is idle.
type serialLink struct {
	port serial.Port
}

func openSerialLink(cfg serialConfig) (*serialLink, error) {
	baud := cfg.Baud
	if baud == 0 {
		baud = 115200
	}
	port, err := serial.Open(cfg.Port, &serial.Mode{
		BaudRate: baud,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open serial port %s: %w", cfg.Port, err)
	}
	if err := port.SetReadTimeout(time.Millisecond); err != nil {
		_ = port.Close()
		return nil, fmt.Errorf("failed to set read timeout: %w", err)
	}
	return &serialLink{port: port}, nil
}

// Read implements firmware.Link. A timeout expiry surfaces as (0, nil),
// which the engine treats as "no bytes yet".
func (l *serialLink) Read(p []byte) (int, error) {
	n, err := l.port.Read(p)
	if err != nil {
		return n, fmt.Errorf("serial read: %w", err)
	}
	return n, nil
}

// Write implements firmware.Link.
func (l *serialLink) Write(p []byte) (int, error) {
	n, err := l.port.Write(p)
	if err != nil {
		return n, fmt.Errorf("serial write: %w", err)
	}
	return n, nil
}

func (l *serialLink) Close() error {
	if err := l.port.Close(); err != nil {
		return fmt.Errorf("serial close: %w", err)
	}
	return nil
}
