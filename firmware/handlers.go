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

// echoHandler returns its single input byte verbatim. Connectivity probe;
// the only command whose response has no status framing.
type echoHandler struct{}

func (*echoHandler) name() string { return "ECHO" }
func (*echoHandler) enter(*Engine) {}
func (*echoHandler) abort(*Engine) {}

func (*echoHandler) step(e *Engine) bool {
	if !e.acc.fill(e.link, 1) {
		return false
	}
	e.write(e.acc.bytes()[:1])
	return true
}

// infoHandler reports the adapter identity: magic marker, API version,
// firmware version and the transaction ceiling in 256-byte units. The
// response is constant, so hosts may probe it at any time.
type infoHandler struct{}

func (*infoHandler) name() string { return "INFO" }
func (*infoHandler) enter(*Engine) {}
func (*infoHandler) abort(*Engine) {}

func (*infoHandler) step(e *Engine) bool {
	e.write([]byte{
		wire.StatusOK,
		wire.InfoMagic0,
		wire.InfoMagic1,
		wire.InfoMagic2,
		wire.APIVersion,
		byte(wire.FirmwareVersion >> 8),
		byte(wire.FirmwareVersion & 0xff),
		wire.MaxTransactionBytes / 256,
	})
	return true
}
