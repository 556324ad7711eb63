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

// accumulator fills a fixed-capacity buffer to an exact target length
// across scheduler ticks. Command bytes arrive in arbitrary fragments over
// USB serial, so a handler asks for N bytes and keeps getting "not yet"
// until all N have arrived; partial arrivals are consumed immediately and
// retained, never dropped.
//
// The buffer is shared by the single active command. The dispatcher resets
// the accumulator when a new command is admitted, which is what makes the
// buffer reusable without any per-command allocation.
type accumulator struct {
	buf   []byte
	valid int
}

func newAccumulator(capacity int) *accumulator {
	return &accumulator{buf: make([]byte, capacity)}
}

// reset discards any accumulated bytes. Called on command entry.
func (a *accumulator) reset() {
	a.valid = 0
}

// fill pulls available bytes from the link until the buffer holds at least
// n valid bytes, then reports true. It never blocks and never over-reads:
// at most n-valid bytes are taken from the link, so bytes belonging to a
// later phase of the same command (or, on a host bug, a following command)
// stay queued in the link.
//
// Link read errors are treated as "nothing available": the protocol has no
// way to report a broken link, and the command timeout bounds how long the
// engine waits for the missing bytes.
func (a *accumulator) fill(link Link, n int) bool {
	if n > len(a.buf) {
		// Callers validate lengths against the transaction ceiling before
		// asking; clamp rather than overrun if one does not.
		n = len(a.buf)
	}
	if a.valid < n {
		got, err := link.Read(a.buf[a.valid:n])
		if err != nil {
			return false
		}
		a.valid += got
	}
	return a.valid >= n
}

// bytes returns the valid prefix of the buffer.
func (a *accumulator) bytes() []byte {
	return a.buf[:a.valid]
}
