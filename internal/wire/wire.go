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

// Package wire defines the SPI Adapter serial protocol: command selectors,
// response framing, error codes and the SEND header layout. It is shared by
// the host-side client and the device-side firmware engine so both ends
// agree on a single definition of every byte on the wire.
//
// All multi-byte integers are big-endian. A command frame is a one-byte
// selector followed by a command-specific fixed header and, for SEND, a
// variable payload. Responses open with a status byte: 'K' for success or
// 'E' followed by a one-byte error code. ECHO is the exception: its
// response is the echoed byte alone, with no status framing.
package wire

// Command selector bytes. The selector is the first byte of every frame.
const (
	CmdEcho     = 'e' // echo one byte back verbatim
	CmdInfo     = 'i' // report adapter identity and versions
	CmdSend     = 's' // perform one SPI transaction
	CmdAuxMode  = 'm' // configure an auxiliary pin
	CmdAuxRead  = 'a' // read all auxiliary pins
	CmdAuxWrite = 'b' // write auxiliary pins under a mask
)

// Response status bytes.
const (
	StatusOK    = 'K'
	StatusError = 'E'
)

// INFO response identity. The three magic bytes and the API version let a
// host confirm it is talking to an SPI Adapter and not some other serial
// device that happened to answer.
const (
	InfoMagic0 = 'S'
	InfoMagic1 = 'P'
	InfoMagic2 = 'I'

	// APIVersion identifies the wire protocol generation. Version 3 is the
	// SPI-only protocol with the speed byte in the SEND header.
	APIVersion = 3

	// FirmwareVersion is reported as two big-endian bytes in INFO.
	FirmwareVersion uint16 = 3

	// InfoPayloadLen is the number of bytes following the 'K' status byte
	// in an INFO response: magic (3), API version (1), firmware version (2),
	// transaction ceiling in 256-byte units (1).
	InfoPayloadLen = 7
)

// Transaction limits.
const (
	// MaxTransactionBytes is the frame buffer capacity and therefore the
	// ceiling on custom+extra bytes in a single SEND transaction.
	MaxTransactionBytes = 1024

	// SendHeaderLen is the fixed SEND header after the selector: config
	// byte, speed byte, custom count (2B), extra count (2B).
	SendHeaderLen = 6
)

// SPI speed encoding. The speed byte counts SpeedUnitHz increments, so the
// reachable range is 25 kHz to 4 MHz.
const (
	SpeedUnitHz  = 25_000
	SpeedByteMin = 1
	SpeedByteMax = 160
)

// SEND config byte layout.
const (
	ConfigCSMask    = 0b0000_0011 // bits 0-1: chip-select index
	ConfigModeShift = 2           // bits 2-3: SPI mode
	ConfigModeMask  = 0b0000_1100
	ConfigReadFlag  = 0b0001_0000 // bit 4: include read bytes in response
)

// Error codes carried after an 'E' status byte. Codes 2, 3 and 8 exist for
// wire compatibility with the protocol's shared error table; a full-duplex
// SPI transfer has no acknowledgment concept, so this implementation never
// produces them.
const (
	ErrCodeDataTooLong      = 1
	ErrCodeNackOnAddress    = 2
	ErrCodeNackOnData       = 3
	ErrCodeOther            = 4
	ErrCodeTimeout          = 5
	ErrCodeAddressRange     = 8
	ErrCodeCustomCountRange = 9
	ErrCodeExtraCountRange  = 10
	ErrCodeTotalOverLimit   = 11
	ErrCodeSpeedRange       = 12
)

// AUX_MODE uses a command-local code space within the same 'E' framing.
const (
	ErrCodeAuxPinRange  = 1
	ErrCodeAuxModeRange = 2
)

// Aux pin mode values as they appear on the wire.
const (
	AuxInputPulldown = 1
	AuxInputPullup   = 2
	AuxOutput        = 3
)

// NumCSLines and NumAuxPins are fixed by the wire format: the CS index
// occupies two config-byte bits and aux pin states pack into one byte.
const (
	NumCSLines = 4
	NumAuxPins = 8
)

// SendHeader is the decoded fixed-size SEND header.
type SendHeader struct {
	CSIndex     uint8
	Mode        uint8 // SPI mode 0-3
	ReturnRead  bool
	SpeedByte   uint8 // SpeedUnitHz increments
	CustomCount uint16
	ExtraCount  uint16
}

// ParseSendHeader decodes the six header bytes that follow the 's'
// selector. It performs no range validation; ValidationError reports the
// protocol error code for an invalid header, keeping decode and policy
// separate.
func ParseSendHeader(b []byte) SendHeader {
	_ = b[SendHeaderLen-1]
	return SendHeader{
		CSIndex:     b[0] & ConfigCSMask,
		Mode:        (b[0] & ConfigModeMask) >> ConfigModeShift,
		ReturnRead:  b[0]&ConfigReadFlag != 0,
		SpeedByte:   b[1],
		CustomCount: uint16(b[2])<<8 | uint16(b[3]),
		ExtraCount:  uint16(b[4])<<8 | uint16(b[5]),
	}
}

// EncodeSendHeader is the inverse of ParseSendHeader, used by the host
// client to build requests.
func (h SendHeader) EncodeSendHeader() [SendHeaderLen]byte {
	config := h.CSIndex & ConfigCSMask
	config |= (h.Mode << ConfigModeShift) & ConfigModeMask
	if h.ReturnRead {
		config |= ConfigReadFlag
	}
	return [SendHeaderLen]byte{
		config,
		h.SpeedByte,
		byte(h.CustomCount >> 8), byte(h.CustomCount),
		byte(h.ExtraCount >> 8), byte(h.ExtraCount),
	}
}

// ValidationError returns the protocol error code the device must report
// for this header, or zero if the header is acceptable. Checks run in the
// order the protocol documents them: speed, custom count, extra count,
// combined total.
func (h SendHeader) ValidationError() byte {
	switch {
	case h.SpeedByte < SpeedByteMin || h.SpeedByte > SpeedByteMax:
		return ErrCodeSpeedRange
	case h.CustomCount > MaxTransactionBytes:
		return ErrCodeCustomCountRange
	case h.ExtraCount > MaxTransactionBytes:
		return ErrCodeExtraCountRange
	case int(h.CustomCount)+int(h.ExtraCount) > MaxTransactionBytes:
		return ErrCodeTotalOverLimit
	default:
		return 0
	}
}

// SpeedHz converts the speed byte to Hertz.
func (h SendHeader) SpeedHz() int64 {
	return int64(h.SpeedByte) * SpeedUnitHz
}

// SpeedByteForHz rounds a frequency in Hertz to the nearest speed byte.
// The result may fall outside [SpeedByteMin, SpeedByteMax]; callers decide
// whether to clamp or reject.
func SpeedByteForHz(hz int64) int {
	return int((hz + SpeedUnitHz/2) / SpeedUnitHz)
}

// ErrorCodeMeaning returns a human-readable description of a protocol
// error code, for logs and error messages.
func ErrorCodeMeaning(code byte) string {
	switch code {
	case ErrCodeDataTooLong:
		return "data too long"
	case ErrCodeNackOnAddress:
		return "NACK on address (reserved)"
	case ErrCodeNackOnData:
		return "NACK on data (reserved)"
	case ErrCodeOther:
		return "other error"
	case ErrCodeTimeout:
		return "timeout"
	case ErrCodeAddressRange:
		return "device address out of range (reserved)"
	case ErrCodeCustomCountRange:
		return "custom byte count out of range"
	case ErrCodeExtraCountRange:
		return "extra byte count out of range"
	case ErrCodeTotalOverLimit:
		return "total byte count over limit"
	case ErrCodeSpeedRange:
		return "speed byte out of range"
	default:
		return "unknown error code"
	}
}
