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

package simulator

import (
	"fmt"
	"time"

	spiadapter "github.com/sprocketlab/go-spiadapter"
)

// Transport adapts a VirtualAdapter to the spiadapter.Transport
// interface, so the high-level client runs end to end against the real
// firmware engine. Time is simulated: while a read waits, the engine
// keeps ticking at one millisecond per tick, so client-visible timeouts
// behave exactly as with hardware, only instantly.
type Transport struct {
	sim       *VirtualAdapter
	timeout   time.Duration
	connected bool
}

// NewTransport wraps a VirtualAdapter.
func NewTransport(sim *VirtualAdapter) *Transport {
	return &Transport{
		sim:       sim,
		timeout:   time.Second,
		connected: true,
	}
}

// Write implements spiadapter.Transport.
func (t *Transport) Write(p []byte) (int, error) {
	if !t.connected {
		return 0, spiadapter.ErrTransportClosed
	}
	return t.sim.Write(p)
}

// ReadFull implements spiadapter.Transport. Each simulated millisecond of
// waiting is one engine tick; the wait gives up after the configured
// timeout, exactly like a serial read deadline.
func (t *Transport) ReadFull(p []byte) error {
	if !t.connected {
		return spiadapter.ErrTransportClosed
	}
	budget := int(t.timeout / time.Millisecond)
	filled := 0
	for filled < len(p) {
		n := t.sim.link.hostRead(p[filled:])
		filled += n
		if filled == len(p) {
			return nil
		}
		if n == 0 {
			if budget <= 0 {
				return &spiadapter.TransportError{
					Op: "ReadFull",
					Err: fmt.Errorf("%w: got %d of %d bytes",
						spiadapter.ErrTransportTimeout, filled, len(p)),
				}
			}
			t.sim.Step(1)
			budget--
		}
	}
	return nil
}

// SetTimeout implements spiadapter.Transport.
func (t *Transport) SetTimeout(timeout time.Duration) error {
	t.timeout = timeout
	return nil
}

// Close implements spiadapter.Transport.
func (t *Transport) Close() error {
	t.connected = false
	return nil
}

// IsConnected implements spiadapter.Transport.
func (t *Transport) IsConnected() bool {
	return t.connected
}

// Type implements spiadapter.Transport.
func (*Transport) Type() spiadapter.TransportType {
	return spiadapter.TransportSimulator
}
