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

package spiadapter

import (
	"time"

	"github.com/sprocketlab/go-spiadapter/internal/syncutil"
	"github.com/sprocketlab/go-spiadapter/internal/wire"
)

// Transport carries raw protocol bytes between the client and an adapter.
// The protocol has no framing beyond its fixed-length fields, so the
// interface is a byte stream with exact-length reads: ReadFull blocks
// until len(p) bytes arrived or the configured timeout elapsed.
//
// Implementations: transport/serial for real hardware, MockTransport and
// the internal simulator for tests.
type Transport interface {
	// Write sends request bytes to the adapter.
	Write(p []byte) (int, error)

	// ReadFull reads exactly len(p) response bytes, honoring the timeout.
	ReadFull(p []byte) error

	// SetTimeout sets the deadline applied to each ReadFull call.
	SetTimeout(timeout time.Duration) error

	// Close closes the transport connection.
	Close() error

	// IsConnected returns true if the transport is usable.
	IsConnected() bool

	// Type returns the transport type.
	Type() TransportType
}

// TransportType identifies a transport implementation.
type TransportType string

const (
	// TransportSerial is a USB serial connection to a physical adapter.
	TransportSerial TransportType = "serial"
	// TransportMock is the scripted in-memory transport for unit tests.
	TransportMock TransportType = "mock"
	// TransportSimulator is the wire-level simulator used in integration
	// tests.
	TransportSimulator TransportType = "simulator"
)

// MockTransport is a scripted Transport for unit tests. Each Write is
// treated as one whole request frame; the response configured for its
// selector byte is queued for subsequent ReadFull calls. Unscripted
// selectors get protocol-correct defaults (ECHO echoes, INFO reports the
// library's own identity), so most tests only script failures.
type MockTransport struct {
	mu        syncutil.RWMutex
	responses map[byte][]byte
	errorMap  map[byte]error
	callCount map[byte]int
	pending   []byte
	timeout   time.Duration
	connected bool
}

// NewMockTransport creates a connected mock transport.
func NewMockTransport() *MockTransport {
	return &MockTransport{
		responses: make(map[byte][]byte),
		errorMap:  make(map[byte]error),
		callCount: make(map[byte]int),
		timeout:   time.Second,
		connected: true,
	}
}

// Write implements Transport. The first byte of p selects the scripted
// response.
func (m *MockTransport) Write(p []byte) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.connected {
		return 0, ErrTransportClosed
	}
	if len(p) == 0 {
		return 0, nil
	}
	sel := p[0]
	m.callCount[sel]++

	if err, ok := m.errorMap[sel]; ok {
		return 0, err
	}
	if resp, ok := m.responses[sel]; ok {
		m.pending = append(m.pending, resp...)
		return len(p), nil
	}
	m.pending = append(m.pending, m.defaultResponse(sel, p)...)
	return len(p), nil
}

// defaultResponse produces protocol-correct replies for unscripted
// commands.
func (*MockTransport) defaultResponse(sel byte, req []byte) []byte {
	switch sel {
	case wire.CmdEcho:
		if len(req) > 1 {
			return []byte{req[1]}
		}
		return nil
	case wire.CmdInfo:
		return []byte{
			wire.StatusOK,
			wire.InfoMagic0, wire.InfoMagic1, wire.InfoMagic2,
			wire.APIVersion,
			byte(wire.FirmwareVersion >> 8), byte(wire.FirmwareVersion & 0xff),
			wire.MaxTransactionBytes / 256,
		}
	case wire.CmdSend:
		if len(req) < 1+wire.SendHeaderLen {
			return nil
		}
		var hdr [wire.SendHeaderLen]byte
		copy(hdr[:], req[1:])
		h := wire.ParseSendHeader(hdr[:])
		if code := h.ValidationError(); code != 0 {
			return []byte{wire.StatusError, code}
		}
		total := h.CustomCount + h.ExtraCount
		if !h.ReturnRead {
			return []byte{wire.StatusOK, 0, 0}
		}
		// Loopback semantics: the custom bytes come back, padding reads
		// as zero.
		resp := make([]byte, 0, 3+int(total))
		resp = append(resp, wire.StatusOK, byte(total>>8), byte(total))
		resp = append(resp, req[1+wire.SendHeaderLen:]...)
		for len(resp) < 3+int(total) {
			resp = append(resp, 0)
		}
		return resp
	case wire.CmdAuxMode, wire.CmdAuxWrite:
		return []byte{wire.StatusOK}
	case wire.CmdAuxRead:
		return []byte{wire.StatusOK, 0x00}
	default:
		return nil
	}
}

// ReadFull implements Transport.
func (m *MockTransport) ReadFull(p []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.connected {
		return ErrTransportClosed
	}
	if len(m.pending) < len(p) {
		return &TransportError{Op: "ReadFull", Err: ErrTransportTimeout}
	}
	copy(p, m.pending[:len(p)])
	m.pending = m.pending[len(p):]
	return nil
}

// SetTimeout implements Transport.
func (m *MockTransport) SetTimeout(timeout time.Duration) error {
	m.mu.Lock()
	m.timeout = timeout
	m.mu.Unlock()
	return nil
}

// Close implements Transport.
func (m *MockTransport) Close() error {
	m.mu.Lock()
	m.connected = false
	m.mu.Unlock()
	return nil
}

// IsConnected implements Transport.
func (m *MockTransport) IsConnected() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.connected
}

// Type implements Transport.
func (*MockTransport) Type() TransportType {
	return TransportMock
}

// Test helper methods.

// SetResponse scripts the raw response bytes for a selector.
func (m *MockTransport) SetResponse(sel byte, response []byte) {
	m.mu.Lock()
	m.responses[sel] = response
	m.mu.Unlock()
}

// SetError makes Write fail for a selector.
func (m *MockTransport) SetError(sel byte, err error) {
	m.mu.Lock()
	m.errorMap[sel] = err
	m.mu.Unlock()
}

// ClearError removes error injection for a selector.
func (m *MockTransport) ClearError(sel byte) {
	m.mu.Lock()
	delete(m.errorMap, sel)
	m.mu.Unlock()
}

// GetCallCount returns how many requests used the given selector.
func (m *MockTransport) GetCallCount(sel byte) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.callCount[sel]
}

// Reset restores the connected state and clears counters and queued
// response bytes.
func (m *MockTransport) Reset() {
	m.mu.Lock()
	m.callCount = make(map[byte]int)
	m.pending = nil
	m.connected = true
	m.mu.Unlock()
}
