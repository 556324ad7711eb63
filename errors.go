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

	"github.com/sprocketlab/go-spiadapter/internal/wire"
)

// Error categories.
var (
	// Transport errors.
	ErrTransportTimeout = errors.New("transport timeout")
	ErrTransportWrite   = errors.New("transport write failed")
	ErrTransportRead    = errors.New("transport read failed")
	ErrTransportClosed  = errors.New("transport is closed")

	// Adapter errors.
	ErrAdapterNotFound  = errors.New("adapter not detected")
	ErrInvalidResponse  = errors.New("invalid response from adapter")
	ErrResponseMismatch = errors.New("response count mismatch")

	// Parameter errors, raised before anything touches the wire.
	ErrDataTooLarge     = errors.New("data exceeds transaction limit")
	ErrInvalidParameter = errors.New("invalid parameter")
)

// TransportError wraps transport-level failures with the operation and
// port for context.
type TransportError struct {
	Err  error
	Op   string
	Port string
}

func (e *TransportError) Error() string {
	if e.Port != "" {
		return fmt.Sprintf("%s %s: %v", e.Op, e.Port, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// ProtocolError is an 'E' response from the adapter. Code is the wire
// error code; the message includes its documented meaning.
type ProtocolError struct {
	Op   string
	Code byte
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("%s: adapter error %d (%s)", e.Op, e.Code, e.meaning())
}

func (e *ProtocolError) meaning() string {
	// AUX_MODE reuses codes 1 and 2 with command-local meanings.
	if e.Op == "AuxMode" {
		switch e.Code {
		case wire.ErrCodeAuxPinRange:
			return "pin index out of range"
		case wire.ErrCodeAuxModeRange:
			return "pin mode out of range"
		}
	}
	return wire.ErrorCodeMeaning(e.Code)
}

// IsProtocolError reports whether err is an adapter 'E' response and, if
// so, returns its code.
func IsProtocolError(err error) (byte, bool) {
	var pe *ProtocolError
	if errors.As(err, &pe) {
		return pe.Code, true
	}
	return 0, false
}
