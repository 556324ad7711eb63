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
	"fmt"
	"os"
)

// debugEnabled controls whether debug logging is active.
var debugEnabled = false

func init() {
	if os.Getenv("SPIADAPTER_DEBUG") != "" || os.Getenv("DEBUG") != "" {
		debugEnabled = true
	}
}

// SetDebugEnabled toggles debug output at runtime, overriding the
// environment default.
func SetDebugEnabled(enabled bool) {
	debugEnabled = enabled
}

// Debugf prints debug information to stderr when debug mode is enabled.
func Debugf(format string, args ...any) {
	if debugEnabled {
		fmt.Fprintf(os.Stderr, "[spiadapter] "+format+"\n", args...)
	}
}

// debugHex logs a labeled byte dump.
func debugHex(label string, data []byte) {
	if debugEnabled {
		Debugf("%s: % 02X", label, data)
	}
}
