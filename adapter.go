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

// Package spiadapter is a client library for SPI Adapter boards: USB
// serial devices that bridge a host without native SPI hardware to an SPI
// bus with four chip-select outputs and eight auxiliary GPIO lines.
//
// Create an Adapter over a Transport (usually transport/serial) and use
// its methods; each method is one protocol command:
//
//	t, _ := serial.New("/dev/ttyACM0")
//	a, _ := spiadapter.New(t)
//	reply, err := a.Send(ctx, []byte{0x9F}, spiadapter.WithExtraBytes(3))
package spiadapter

import (
	"context"
	"fmt"
	"time"

	"github.com/sprocketlab/go-spiadapter/internal/syncutil"
	"github.com/sprocketlab/go-spiadapter/internal/wire"
)

// AuxPinMode selects the electrical configuration of an auxiliary pin.
// Numeric values match the wire protocol.
type AuxPinMode byte

// Auxiliary pin modes.
const (
	AuxInputPulldown AuxPinMode = 1
	AuxInputPullup   AuxPinMode = 2
	AuxOutput        AuxPinMode = 3
)

// MaxTransactionBytes is the adapter's ceiling on custom+extra bytes in a
// single transaction.
const MaxTransactionBytes = wire.MaxTransactionBytes

// connectionProbePatterns are echoed in sequence by TestConnection. The
// values exercise both all-zero, all-one and alternating bit patterns.
var connectionProbePatterns = []byte{0x00, 0xFF, 0x5A, 0xA5}

// probeSettleDelay is the pause between probe passes, long enough for a
// half-received command on the adapter to hit its 250 ms timeout and
// drain.
const probeSettleDelay = 300 * time.Millisecond

// Info describes an adapter, as reported by the INFO command.
type Info struct {
	APIVersion      byte
	FirmwareVersion uint16
	// MaxTransaction is the adapter's transaction ceiling in bytes.
	MaxTransaction int
}

// Adapter is a client for one SPI Adapter board.
//
// Commands are serialized internally: the adapter processes exactly one
// command at a time, so concurrent calls queue on a mutex rather than
// interleave bytes on the wire.
type Adapter struct {
	transport    Transport
	mu           syncutil.Mutex
	timeout      time.Duration
	connectTries int
}

// New creates an Adapter over the given transport. It performs no I/O;
// call TestConnection or Info to verify the device is present.
func New(transport Transport, opts ...Option) (*Adapter, error) {
	a := &Adapter{
		transport:    transport,
		timeout:      time.Second,
		connectTries: 3,
	}
	for _, opt := range opts {
		if err := opt(a); err != nil {
			return nil, err
		}
	}
	if err := transport.SetTimeout(a.timeout); err != nil {
		return nil, fmt.Errorf("failed to set transport timeout: %w", err)
	}
	return a, nil
}

// Close closes the underlying transport.
func (a *Adapter) Close() error {
	if err := a.transport.Close(); err != nil {
		return fmt.Errorf("failed to close transport: %w", err)
	}
	return nil
}

// Echo sends one byte and returns the byte the adapter echoed back.
func (a *Adapter) Echo(ctx context.Context, b byte) (byte, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if _, err := a.transport.Write([]byte{wire.CmdEcho, b}); err != nil {
		return 0, &TransportError{Op: "Echo", Err: err}
	}
	var resp [1]byte
	if err := a.transport.ReadFull(resp[:]); err != nil {
		return 0, &TransportError{Op: "Echo", Err: err}
	}
	return resp[0], nil
}

// TestConnection verifies the adapter is present and in sync by echoing a
// set of test patterns. Failed passes are retried after a settle delay so
// an adapter stuck mid-command can time out and recover. Returns nil on
// the first fully clean pass.
func (a *Adapter) TestConnection(ctx context.Context) error {
	for attempt := range a.connectTries {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(probeSettleDelay):
			}
		}
		if a.probeOnce(ctx) {
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}
	}
	return ErrAdapterNotFound
}

// probeOnce runs one full echo pass over the probe patterns.
func (a *Adapter) probeOnce(ctx context.Context) bool {
	for _, pattern := range connectionProbePatterns {
		got, err := a.Echo(ctx, pattern)
		if err != nil || got != pattern {
			Debugf("echo probe 0x%02X failed: got=0x%02X err=%v", pattern, got, err)
			return false
		}
	}
	return true
}

// Info reads the adapter's identity block and verifies its magic marker
// and API version.
func (a *Adapter) Info(ctx context.Context) (*Info, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	payload, err := a.roundTrip(ctx, "Info", []byte{wire.CmdInfo}, wire.InfoPayloadLen)
	if err != nil {
		return nil, err
	}
	if payload[0] != wire.InfoMagic0 || payload[1] != wire.InfoMagic1 || payload[2] != wire.InfoMagic2 {
		return nil, fmt.Errorf("%w: bad info magic % 02X", ErrInvalidResponse, payload[:3])
	}
	if payload[3] != wire.APIVersion {
		return nil, fmt.Errorf("%w: unsupported API version %d", ErrInvalidResponse, payload[3])
	}
	return &Info{
		APIVersion:      payload[3],
		FirmwareVersion: uint16(payload[4])<<8 | uint16(payload[5]),
		MaxTransaction:  int(payload[6]) * 256,
	}, nil
}

// Send performs one SPI transaction: data is transmitted verbatim,
// followed by the configured number of zero padding bytes. When read-back
// is enabled (the default) the returned slice holds the bytes the
// peripheral drove on MISO during the whole transaction; otherwise it is
// empty.
func (a *Adapter) Send(ctx context.Context, data []byte, opts ...SendOption) ([]byte, error) {
	cfg := defaultSendConfig()
	for _, opt := range opts {
		if err := opt(&cfg); err != nil {
			return nil, err
		}
	}
	if len(data) > wire.MaxTransactionBytes {
		return nil, fmt.Errorf("%w: %d custom bytes", ErrDataTooLarge, len(data))
	}
	if len(data)+cfg.extra > wire.MaxTransactionBytes {
		return nil, fmt.Errorf("%w: %d custom + %d extra bytes",
			ErrDataTooLarge, len(data), cfg.extra)
	}

	header := wire.SendHeader{
		CSIndex:     cfg.cs,
		Mode:        cfg.mode,
		ReturnRead:  cfg.read,
		SpeedByte:   uint8(wire.SpeedByteForHz(cfg.speedHz)),
		CustomCount: uint16(len(data)),
		ExtraCount:  uint16(cfg.extra),
	}
	hdr := header.EncodeSendHeader()
	req := make([]byte, 0, 1+len(hdr)+len(data))
	req = append(req, wire.CmdSend)
	req = append(req, hdr[:]...)
	req = append(req, data...)

	a.mu.Lock()
	defer a.mu.Unlock()

	countBytes, err := a.roundTrip(ctx, "Send", req, 2)
	if err != nil {
		return nil, err
	}
	gotCount := int(countBytes[0])<<8 | int(countBytes[1])
	wantCount := 0
	if cfg.read {
		wantCount = len(data) + cfg.extra
	}
	if gotCount != wantCount {
		return nil, fmt.Errorf("%w: expected %d read-back bytes, adapter reported %d",
			ErrResponseMismatch, wantCount, gotCount)
	}
	if gotCount == 0 {
		return []byte{}, nil
	}
	readBack := make([]byte, gotCount)
	if err := a.transport.ReadFull(readBack); err != nil {
		return nil, &TransportError{Op: "Send", Err: err}
	}
	debugHex("send read-back", readBack)
	return readBack, nil
}

// SetAuxPinMode configures auxiliary pin (0-7) as input or output.
func (a *Adapter) SetAuxPinMode(ctx context.Context, pin int, mode AuxPinMode) error {
	if pin < 0 || pin >= wire.NumAuxPins {
		return fmt.Errorf("%w: aux pin %d out of range 0-%d",
			ErrInvalidParameter, pin, wire.NumAuxPins-1)
	}
	if mode < AuxInputPulldown || mode > AuxOutput {
		return fmt.Errorf("%w: aux pin mode %d", ErrInvalidParameter, mode)
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	_, err := a.roundTrip(ctx, "AuxMode",
		[]byte{wire.CmdAuxMode, byte(pin), byte(mode)}, 0)
	return err
}

// ReadAuxPins samples all eight auxiliary pins; bit i of the result is
// logical pin i.
func (a *Adapter) ReadAuxPins(ctx context.Context) (byte, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	payload, err := a.roundTrip(ctx, "AuxRead", []byte{wire.CmdAuxRead}, 1)
	if err != nil {
		return 0, err
	}
	return payload[0], nil
}

// WriteAuxPins writes the pins selected by mask to the corresponding bits
// of values. Unmasked pins are untouched.
func (a *Adapter) WriteAuxPins(ctx context.Context, values, mask byte) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	_, err := a.roundTrip(ctx, "AuxWrite",
		[]byte{wire.CmdAuxWrite, values, mask}, 0)
	return err
}

// ReadAuxPin reads a single auxiliary pin.
func (a *Adapter) ReadAuxPin(ctx context.Context, pin int) (bool, error) {
	if pin < 0 || pin >= wire.NumAuxPins {
		return false, fmt.Errorf("%w: aux pin %d out of range 0-%d",
			ErrInvalidParameter, pin, wire.NumAuxPins-1)
	}
	pins, err := a.ReadAuxPins(ctx)
	if err != nil {
		return false, err
	}
	return pins&(1<<pin) != 0, nil
}

// WriteAuxPin writes a single auxiliary pin.
func (a *Adapter) WriteAuxPin(ctx context.Context, pin int, high bool) error {
	if pin < 0 || pin >= wire.NumAuxPins {
		return fmt.Errorf("%w: aux pin %d out of range 0-%d",
			ErrInvalidParameter, pin, wire.NumAuxPins-1)
	}
	mask := byte(1) << pin
	values := byte(0)
	if high {
		values = mask
	}
	return a.WriteAuxPins(ctx, values, mask)
}

// roundTrip writes a request and reads the status-framed response: a 'K'
// followed by okLen payload bytes, or an 'E' plus error code which is
// returned as a *ProtocolError. The caller must hold a.mu.
func (a *Adapter) roundTrip(ctx context.Context, op string, req []byte, okLen int) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if _, err := a.transport.Write(req); err != nil {
		return nil, &TransportError{Op: op, Err: err}
	}

	var status [1]byte
	if err := a.transport.ReadFull(status[:]); err != nil {
		return nil, &TransportError{Op: op, Err: err}
	}
	switch status[0] {
	case wire.StatusError:
		var code [1]byte
		if err := a.transport.ReadFull(code[:]); err != nil {
			return nil, &TransportError{Op: op, Err: err}
		}
		return nil, &ProtocolError{Op: op, Code: code[0]}
	case wire.StatusOK:
		if okLen == 0 {
			return nil, nil
		}
		payload := make([]byte, okLen)
		if err := a.transport.ReadFull(payload); err != nil {
			return nil, &TransportError{Op: op, Err: err}
		}
		return payload, nil
	default:
		return nil, fmt.Errorf("%w: unexpected status byte 0x%02X",
			ErrInvalidResponse, status[0])
	}
}
