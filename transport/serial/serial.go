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

// Package serial provides the USB serial transport for SPI Adapter
// boards. Adapters enumerate as standard CDC serial ports; the baud rate
// is nominal since the USB link ignores it.
package serial

import (
	"fmt"
	"time"

	"go.bug.st/serial"

	spiadapter "github.com/sprocketlab/go-spiadapter"
	"github.com/sprocketlab/go-spiadapter/internal/syncutil"
)

// readSlice is the per-Read timeout on the port. ReadFull loops in these
// increments so an overall deadline can be enforced without a blocking
// read overshooting it by much.
const readSlice = 20 * time.Millisecond

// Transport implements spiadapter.Transport over a serial port.
type Transport struct {
	port     serial.Port
	portName string
	mu       syncutil.Mutex
	timeout  time.Duration
	closed   bool
}

// New opens the serial port and prepares it for protocol traffic. Any
// stale bytes in the input buffer (left by a previous client that died
// mid-command) are discarded.
func New(portName string) (*Transport, error) {
	port, err := serial.Open(portName, &serial.Mode{
		BaudRate: 115200,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open serial port %s: %w", portName, err)
	}
	if err := port.SetReadTimeout(readSlice); err != nil {
		_ = port.Close()
		return nil, fmt.Errorf("failed to set read timeout on %s: %w", portName, err)
	}
	if err := port.ResetInputBuffer(); err != nil {
		_ = port.Close()
		return nil, fmt.Errorf("failed to drain %s: %w", portName, err)
	}
	return &Transport{
		port:     port,
		portName: portName,
		timeout:  time.Second,
	}, nil
}

// Write implements spiadapter.Transport.
func (t *Transport) Write(p []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return 0, spiadapter.ErrTransportClosed
	}
	n, err := t.port.Write(p)
	if err != nil {
		return n, fmt.Errorf("%w: %w", spiadapter.ErrTransportWrite, err)
	}
	if n != len(p) {
		return n, fmt.Errorf("%w: short write %d of %d bytes",
			spiadapter.ErrTransportWrite, n, len(p))
	}
	return n, nil
}

// ReadFull implements spiadapter.Transport. It reads until p is full or
// the configured timeout elapses.
func (t *Transport) ReadFull(p []byte) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return spiadapter.ErrTransportClosed
	}
	deadline := time.Now().Add(t.timeout)
	filled := 0
	for filled < len(p) {
		if time.Now().After(deadline) {
			return &spiadapter.TransportError{
				Op:   "ReadFull",
				Port: t.portName,
				Err: fmt.Errorf("%w: got %d of %d bytes",
					spiadapter.ErrTransportTimeout, filled, len(p)),
			}
		}
		n, err := t.port.Read(p[filled:])
		if err != nil {
			return &spiadapter.TransportError{
				Op:   "ReadFull",
				Port: t.portName,
				Err:  fmt.Errorf("%w: %w", spiadapter.ErrTransportRead, err),
			}
		}
		filled += n
	}
	return nil
}

// SetTimeout implements spiadapter.Transport.
func (t *Transport) SetTimeout(timeout time.Duration) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if timeout <= 0 {
		return fmt.Errorf("%w: timeout must be positive", spiadapter.ErrInvalidParameter)
	}
	t.timeout = timeout
	return nil
}

// Close implements spiadapter.Transport.
func (t *Transport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return nil
	}
	t.closed = true
	if err := t.port.Close(); err != nil {
		return fmt.Errorf("failed to close serial port %s: %w", t.portName, err)
	}
	return nil
}

// IsConnected implements spiadapter.Transport.
func (t *Transport) IsConnected() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return !t.closed
}

// Type implements spiadapter.Transport.
func (*Transport) Type() spiadapter.TransportType {
	return spiadapter.TransportSerial
}
