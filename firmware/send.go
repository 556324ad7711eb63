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

// sendHandler performs one SPI transaction. It runs in two phases spread
// across as many ticks as the bytes need to arrive:
//
//  1. header: six fixed bytes are accumulated, decoded and range-checked.
//     A bad header is answered with 'E'+code immediately and the command
//     completes without touching the bus.
//  2. payload: the host's custom bytes are accumulated into the frame
//     buffer, the requested extra bytes are zero-filled in place behind
//     them, and the transfer runs: optional zero-length dummy transfer to
//     settle the clock polarity after a mode change, CS assert, one
//     full-duplex transfer with the frame buffer as both TX and RX, CS
//     release, then the 'K' response with the read-back bytes if the host
//     asked for them.
//
// Once the bus transfer starts the command always succeeds at the protocol
// level: full-duplex SPI has no acknowledgment to fail on.
type sendHandler struct {
	gotHeader bool
	header    wire.SendHeader
}

func (*sendHandler) name() string { return "SEND" }

func (h *sendHandler) enter(*Engine) {
	h.gotHeader = false
	h.header = wire.SendHeader{}
}

func (h *sendHandler) abort(*Engine) {
	h.gotHeader = false
}

func (h *sendHandler) step(e *Engine) bool {
	if !h.gotHeader {
		if !e.acc.fill(e.link, wire.SendHeaderLen) {
			return false
		}
		h.header = wire.ParseSendHeader(e.acc.bytes())
		h.gotHeader = true
		if code := h.header.ValidationError(); code != 0 {
			e.writeError(code)
			return true
		}
		// The payload reuses the frame buffer from offset zero; the header
		// bytes have been decoded and are no longer needed.
		e.acc.reset()
	}

	custom := int(h.header.CustomCount)
	extra := int(h.header.ExtraCount)
	if !e.acc.fill(e.link, custom) {
		return false
	}

	// Zero-fill the padding bytes behind the custom payload. They are
	// transmitted as 0x00 and their read-back slots are part of the
	// response when the read flag is set.
	buf := e.acc.buf[:custom+extra]
	clear(buf[custom:])

	h.transfer(e, buf)

	total := uint16(custom + extra)
	respCount := uint16(0)
	if h.header.ReturnRead {
		respCount = total
	}
	e.write([]byte{wire.StatusOK, byte(respCount >> 8), byte(respCount)})
	if respCount > 0 {
		e.write(buf[:respCount])
	}
	return true
}

// transfer brackets the full-duplex exchange with chip-select assertion
// and applies the clock-polarity workaround: after a mode change the SCK
// idle level is only guaranteed once a transfer has run at the new mode,
// so a zero-length dummy transfer settles the line before CS goes active.
// Without it the first clock edge after CS can be misread by mode 2/3
// peripherals.
func (h *sendHandler) transfer(e *Engine, buf []byte) {
	mode := h.header.Mode
	freq := h.header.SpeedHz()

	if mode != e.lastMode {
		_ = e.bus.Transfer(mode, freq, nil)
		e.lastMode = mode
	}

	e.pins.AssertCS(h.header.CSIndex)
	_ = e.bus.Transfer(mode, freq, buf)
	e.pins.ReleaseAllCS()
}
