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
	"errors"
	"fmt"
	"testing"
)

func TestTransportErrorUnwrap(t *testing.T) {
	t.Parallel()

	err := &TransportError{Op: "Send", Port: "/dev/ttyACM0", Err: ErrTransportTimeout}
	if !errors.Is(err, ErrTransportTimeout) {
		t.Fatal("TransportError does not unwrap to its sentinel")
	}
	msg := err.Error()
	if msg != "Send /dev/ttyACM0: transport timeout" {
		t.Fatalf("message %q", msg)
	}

	// Without a port the message drops the port segment.
	err = &TransportError{Op: "Echo", Err: ErrTransportRead}
	if err.Error() != "Echo: transport read failed" {
		t.Fatalf("message %q", err.Error())
	}
}

func TestProtocolErrorMeaning(t *testing.T) {
	t.Parallel()

	cases := []struct {
		op   string
		code byte
		want string
	}{
		{"Send", 12, "Send: adapter error 12 (speed byte out of range)"},
		{"Send", 11, "Send: adapter error 11 (total byte count over limit)"},
		{"AuxMode", 1, "AuxMode: adapter error 1 (pin index out of range)"},
		{"AuxMode", 2, "AuxMode: adapter error 2 (pin mode out of range)"},
		{"Send", 99, "Send: adapter error 99 (unknown error code)"},
	}
	for _, tc := range cases {
		err := &ProtocolError{Op: tc.op, Code: tc.code}
		if err.Error() != tc.want {
			t.Errorf("code %d: %q, want %q", tc.code, err.Error(), tc.want)
		}
	}
}

func TestIsProtocolError(t *testing.T) {
	t.Parallel()

	wrapped := fmt.Errorf("transaction failed: %w", &ProtocolError{Op: "Send", Code: 9})
	code, ok := IsProtocolError(wrapped)
	if !ok || code != 9 {
		t.Fatalf("IsProtocolError = (%d, %v)", code, ok)
	}
	if _, ok := IsProtocolError(errors.New("plain")); ok {
		t.Fatal("plain error classified as protocol error")
	}
}
