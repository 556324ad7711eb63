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
	"time"

	"github.com/sprocketlab/go-spiadapter/internal/wire"
)

// Option configures an Adapter.
type Option func(*Adapter) error

// WithTimeout sets the response timeout applied to each command.
func WithTimeout(timeout time.Duration) Option {
	return func(a *Adapter) error {
		if timeout <= 0 {
			return fmt.Errorf("%w: timeout must be positive", ErrInvalidParameter)
		}
		a.timeout = timeout
		return nil
	}
}

// WithConnectRetries sets how many probe passes TestConnection attempts
// before giving up.
func WithConnectRetries(tries int) Option {
	return func(a *Adapter) error {
		if tries < 1 {
			return fmt.Errorf("%w: retries must be at least 1", ErrInvalidParameter)
		}
		a.connectTries = tries
		return nil
	}
}

// sendConfig collects the per-transaction SEND parameters.
type sendConfig struct {
	cs      uint8
	mode    uint8
	speedHz int64
	extra   int
	read    bool
}

func defaultSendConfig() sendConfig {
	return sendConfig{
		cs:      0,
		mode:    0,
		speedHz: 1_000_000,
		extra:   0,
		read:    true,
	}
}

// SendOption configures a single SPI transaction.
type SendOption func(*sendConfig) error

// WithCS selects the chip-select line (0-3) asserted for the transaction.
func WithCS(index int) SendOption {
	return func(c *sendConfig) error {
		if index < 0 || index >= wire.NumCSLines {
			return fmt.Errorf("%w: CS index %d out of range 0-%d",
				ErrInvalidParameter, index, wire.NumCSLines-1)
		}
		c.cs = uint8(index)
		return nil
	}
}

// WithMode selects the SPI mode (0-3).
func WithMode(mode int) SendOption {
	return func(c *sendConfig) error {
		if mode < 0 || mode > 3 {
			return fmt.Errorf("%w: SPI mode %d out of range 0-3",
				ErrInvalidParameter, mode)
		}
		c.mode = uint8(mode)
		return nil
	}
}

// WithSpeed sets the SPI clock in Hertz. The adapter quantizes to 25 kHz
// steps; values that round outside 25 kHz - 4 MHz are rejected.
func WithSpeed(hz int64) SendOption {
	return func(c *sendConfig) error {
		sb := wire.SpeedByteForHz(hz)
		if sb < wire.SpeedByteMin || sb > wire.SpeedByteMax {
			return fmt.Errorf("%w: speed %d Hz outside %d-%d Hz",
				ErrInvalidParameter, hz,
				wire.SpeedByteMin*wire.SpeedUnitHz, wire.SpeedByteMax*wire.SpeedUnitHz)
		}
		c.speedHz = hz
		return nil
	}
}

// WithExtraBytes appends n zero bytes to the transmitted payload. The
// zeros are synthesized on the adapter, not sent over the serial link, so
// this is the cheap way to clock in a read response after a command.
func WithExtraBytes(n int) SendOption {
	return func(c *sendConfig) error {
		if n < 0 || n > wire.MaxTransactionBytes {
			return fmt.Errorf("%w: extra byte count %d out of range 0-%d",
				ErrInvalidParameter, n, wire.MaxTransactionBytes)
		}
		c.extra = n
		return nil
	}
}

// WithoutReadback drops the read-back bytes from the response, which
// speeds up large write-only transactions.
func WithoutReadback() SendOption {
	return func(c *sendConfig) error {
		c.read = false
		return nil
	}
}
