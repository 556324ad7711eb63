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
	"bytes"
	"io"
	"testing"
)

// readAll drains the response bytes currently queued for the host.
func readAll(t *testing.T, v *VirtualAdapter) []byte {
	t.Helper()
	var out []byte
	buf := make([]byte, 64)
	for {
		n, err := v.Read(buf)
		out = append(out, buf[:n]...)
		if err == io.EOF {
			return out
		}
		if err != nil {
			t.Fatalf("Read failed: %v", err)
		}
	}
}

func TestEchoOverRawLink(t *testing.T) {
	t.Parallel()

	v := New()
	if _, err := v.Write([]byte{'e', 0x5A}); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	if got := readAll(t, v); !bytes.Equal(got, []byte{0x5A}) {
		t.Fatalf("echo returned % 02X", got)
	}
}

func TestSplitWrites(t *testing.T) {
	t.Parallel()

	v := New()
	// Selector alone: the engine admits the command and stalls.
	if _, err := v.Write([]byte{'e'}); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	if !v.Busy() {
		t.Fatal("engine not busy after bare selector")
	}
	if got := readAll(t, v); len(got) != 0 {
		t.Fatalf("premature output % 02X", got)
	}
	// The payload byte completes the command.
	if _, err := v.Write([]byte{0x42}); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	if got := readAll(t, v); !bytes.Equal(got, []byte{0x42}) {
		t.Fatalf("echo returned % 02X", got)
	}
}

func TestUnknownSelectorIgnored(t *testing.T) {
	t.Parallel()

	v := New()
	if _, err := v.Write([]byte{'x', 'y'}); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	if v.Busy() {
		t.Fatal("unknown selector left the engine busy")
	}
	if got := readAll(t, v); len(got) != 0 {
		t.Fatalf("unknown selectors produced % 02X", got)
	}
}

func TestCommandTimeout(t *testing.T) {
	t.Parallel()

	v := New()
	if _, err := v.Write([]byte{'e'}); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	v.PumpFor(300)
	if v.Busy() {
		t.Fatal("engine busy after the command timeout")
	}
	if n := v.PendingResponse(); n != 0 {
		t.Fatalf("%d response bytes after a silent abort", n)
	}
}

func TestFixedResponsePadsAndTruncates(t *testing.T) {
	t.Parallel()

	p := FixedResponse{Data: []byte{0xAA, 0xBB}}

	long := []byte{1, 2, 3, 4}
	p.Exchange(0, 0, long)
	if !bytes.Equal(long, []byte{0xAA, 0xBB, 0x00, 0x00}) {
		t.Fatalf("padded exchange % 02X", long)
	}

	short := []byte{1}
	p.Exchange(0, 0, short)
	if !bytes.Equal(short, []byte{0xAA}) {
		t.Fatalf("truncated exchange % 02X", short)
	}
}

func TestPinsPullDefaults(t *testing.T) {
	t.Parallel()

	p := newPins()
	if p.ReadAux(0) {
		t.Fatal("pulldown input reads high undriven")
	}
	p.SetAuxMode(0, 2) // pullup
	if !p.ReadAux(0) {
		t.Fatal("pullup input reads low undriven")
	}
	p.DriveInput(0, false)
	if p.ReadAux(0) {
		t.Fatal("driven level does not override the pull")
	}
}

func TestManualClockWraps(t *testing.T) {
	t.Parallel()

	c := &ManualClock{}
	c.Set(0xFFFF_FFFF)
	c.Advance(2)
	if got := c.Millis(); got != 1 {
		t.Fatalf("Millis() = %d after wrap, want 1", got)
	}
}

func TestTimeoutAcrossClockWrap(t *testing.T) {
	t.Parallel()

	v := New()
	// Park the clock just below the rollover so the timeout window spans
	// it. The engine's wrapping arithmetic must still fire the abort.
	v.Clock.Set(0xFFFF_FF00)
	if _, err := v.Write([]byte{'e'}); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	v.PumpFor(400)
	if v.Busy() {
		t.Fatal("engine busy after timeout across the counter rollover")
	}

	// And a command completes normally on the wrapped clock.
	if _, err := v.Write([]byte{'e', 0x11}); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	if got := readAll(t, v); !bytes.Equal(got, []byte{0x11}) {
		t.Fatalf("echo returned % 02X", got)
	}
}
