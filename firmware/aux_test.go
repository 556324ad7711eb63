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
	"bytes"
	"testing"

	"github.com/sprocketlab/go-spiadapter/internal/wire"
)

func TestAuxModeConfiguresPin(t *testing.T) {
	t.Parallel()

	r := newRig(t)
	out := r.run(t, wire.CmdAuxMode, 3, wire.AuxOutput)
	if !bytes.Equal(out, []byte{wire.StatusOK}) {
		t.Fatalf("response % 02X", out)
	}
	if r.pins.modes[3] != AuxOutput {
		t.Fatalf("pin 3 mode %d, want output", r.pins.modes[3])
	}
}

func TestAuxModeRejectsBadPin(t *testing.T) {
	t.Parallel()

	r := newRig(t)
	out := r.run(t, wire.CmdAuxMode, 8, wire.AuxOutput)
	want := []byte{wire.StatusError, wire.ErrCodeAuxPinRange}
	if !bytes.Equal(out, want) {
		t.Fatalf("response % 02X, want % 02X", out, want)
	}
}

func TestAuxModeRejectsBadMode(t *testing.T) {
	t.Parallel()

	r := newRig(t)
	for _, mode := range []byte{0, 4, 0xFF} {
		out := r.run(t, wire.CmdAuxMode, 0, mode)
		want := []byte{wire.StatusError, wire.ErrCodeAuxModeRange}
		if !bytes.Equal(out, want) {
			t.Fatalf("mode %d: response % 02X, want % 02X", mode, out, want)
		}
	}
	// The pin index is checked before the mode value.
	out := r.run(t, wire.CmdAuxMode, 9, 0)
	want := []byte{wire.StatusError, wire.ErrCodeAuxPinRange}
	if !bytes.Equal(out, want) {
		t.Fatalf("response % 02X, want % 02X", out, want)
	}
}

func TestAuxReadPacksBits(t *testing.T) {
	t.Parallel()

	r := newRig(t)
	r.pins.inputs[0] = true
	r.pins.inputs[5] = true
	r.pins.inputs[7] = true

	out := r.run(t, wire.CmdAuxRead)
	want := []byte{wire.StatusOK, 0b1010_0001}
	if !bytes.Equal(out, want) {
		t.Fatalf("response % 02X, want % 02X", out, want)
	}
}

func TestAuxWriteHonorsMask(t *testing.T) {
	t.Parallel()

	r := newRig(t)
	r.pins.latch[2] = true // must survive an unmasked write

	out := r.run(t, wire.CmdAuxWrite, 0b0000_0011, 0b0000_1011)
	if !bytes.Equal(out, []byte{wire.StatusOK}) {
		t.Fatalf("response % 02X", out)
	}
	wantLatch := [8]bool{true, true, true, false, false, false, false, false}
	if r.pins.latch != wantLatch {
		t.Fatalf("latch %v, want %v", r.pins.latch, wantLatch)
	}
}
