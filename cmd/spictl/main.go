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

// Command spictl exercises an SPI Adapter from the command line.
//
// Usage:
//
//	spictl [flags] info
//	spictl [flags] echo <byte>
//	spictl [flags] send <hex-payload>
//	spictl [flags] aux-mode <pin> <pulldown|pullup|output>
//	spictl [flags] aux-read
//	spictl [flags] aux-write <values> <mask>
//
// Without -device the first detected adapter is used.
package main

import (
	"context"
	"encoding/hex"
	"flag"
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	spiadapter "github.com/sprocketlab/go-spiadapter"
	"github.com/sprocketlab/go-spiadapter/detection"
	"github.com/sprocketlab/go-spiadapter/transport/serial"
)

var (
	flagDevice  string
	flagDebug   bool
	flagCS      int
	flagMode    int
	flagSpeed   int64
	flagExtra   int
	flagNoRead  bool
	flagTimeout time.Duration
)

func init() {
	flag.StringVar(&flagDevice, "device", "", "Serial port of the adapter (auto-detect if empty)")
	flag.BoolVar(&flagDebug, "debug", false, "Enable debug output")
	flag.IntVar(&flagCS, "cs", 0, "Chip select index for send (0-3)")
	flag.IntVar(&flagMode, "mode", 0, "SPI mode for send (0-3)")
	flag.Int64Var(&flagSpeed, "speed", 1_000_000, "SPI clock for send, in Hz")
	flag.IntVar(&flagExtra, "extra", 0, "Extra zero bytes to append to the send payload")
	flag.BoolVar(&flagNoRead, "no-read", false, "Skip read-back bytes in the send response")
	flag.DurationVar(&flagTimeout, "timeout", time.Second, "Response timeout")
}

func main() {
	flag.Parse()
	if flagDebug {
		spiadapter.SetDebugEnabled(true)
	}
	if flag.NArg() < 1 {
		flag.Usage()
		os.Exit(2)
	}
	if err := run(flag.Arg(0), flag.Args()[1:]); err != nil {
		log.Fatalf("spictl: %v", err)
	}
}

func run(command string, args []string) error {
	ctx := context.Background()

	device := flagDevice
	if device == "" {
		port, err := detection.First(ctx)
		if err != nil {
			return err
		}
		log.Printf("using adapter at %s", port)
		device = port
	}

	transport, err := serial.New(device)
	if err != nil {
		return err
	}
	adapter, err := spiadapter.New(transport, spiadapter.WithTimeout(flagTimeout))
	if err != nil {
		_ = transport.Close()
		return err
	}
	defer func() { _ = adapter.Close() }()

	if err := adapter.TestConnection(ctx); err != nil {
		return err
	}

	switch command {
	case "info":
		return runInfo(ctx, adapter)
	case "echo":
		return runEcho(ctx, adapter, args)
	case "send":
		return runSend(ctx, adapter, args)
	case "aux-mode":
		return runAuxMode(ctx, adapter, args)
	case "aux-read":
		return runAuxRead(ctx, adapter)
	case "aux-write":
		return runAuxWrite(ctx, adapter, args)
	default:
		return fmt.Errorf("unknown command %q", command)
	}
}

func runInfo(ctx context.Context, a *spiadapter.Adapter) error {
	info, err := a.Info(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("API version:      %d\n", info.APIVersion)
	fmt.Printf("Firmware version: %d\n", info.FirmwareVersion)
	fmt.Printf("Max transaction:  %d bytes\n", info.MaxTransaction)
	return nil
}

func runEcho(ctx context.Context, a *spiadapter.Adapter, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("echo needs exactly one byte value")
	}
	value, err := parseByte(args[0])
	if err != nil {
		return err
	}
	got, err := a.Echo(ctx, value)
	if err != nil {
		return err
	}
	fmt.Printf("sent 0x%02X, received 0x%02X\n", value, got)
	return nil
}

func runSend(ctx context.Context, a *spiadapter.Adapter, args []string) error {
	var payload []byte
	if len(args) > 0 {
		var err error
		payload, err = hex.DecodeString(args[0])
		if err != nil {
			return fmt.Errorf("bad hex payload: %w", err)
		}
	}
	opts := []spiadapter.SendOption{
		spiadapter.WithCS(flagCS),
		spiadapter.WithMode(flagMode),
		spiadapter.WithSpeed(flagSpeed),
		spiadapter.WithExtraBytes(flagExtra),
	}
	if flagNoRead {
		opts = append(opts, spiadapter.WithoutReadback())
	}
	readBack, err := a.Send(ctx, payload, opts...)
	if err != nil {
		return err
	}
	if len(readBack) == 0 {
		fmt.Println("ok (no read-back)")
		return nil
	}
	fmt.Printf("read-back (%d bytes): %X\n", len(readBack), readBack)
	return nil
}

func runAuxMode(ctx context.Context, a *spiadapter.Adapter, args []string) error {
	if len(args) != 2 {
		return fmt.Errorf("aux-mode needs <pin> <pulldown|pullup|output>")
	}
	pin, err := strconv.Atoi(args[0])
	if err != nil {
		return fmt.Errorf("bad pin index: %w", err)
	}
	var mode spiadapter.AuxPinMode
	switch args[1] {
	case "pulldown":
		mode = spiadapter.AuxInputPulldown
	case "pullup":
		mode = spiadapter.AuxInputPullup
	case "output":
		mode = spiadapter.AuxOutput
	default:
		return fmt.Errorf("unknown pin mode %q", args[1])
	}
	return a.SetAuxPinMode(ctx, pin, mode)
}

func runAuxRead(ctx context.Context, a *spiadapter.Adapter) error {
	pins, err := a.ReadAuxPins(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("aux pins: %08b\n", pins)
	return nil
}

func runAuxWrite(ctx context.Context, a *spiadapter.Adapter, args []string) error {
	if len(args) != 2 {
		return fmt.Errorf("aux-write needs <values> <mask>")
	}
	values, err := parseByte(args[0])
	if err != nil {
		return err
	}
	mask, err := parseByte(args[1])
	if err != nil {
		return err
	}
	return a.WriteAuxPins(ctx, values, mask)
}

// parseByte accepts decimal, 0x-hex and 0b-binary byte values.
func parseByte(s string) (byte, error) {
	v, err := strconv.ParseUint(s, 0, 8)
	if err != nil {
		return 0, fmt.Errorf("bad byte value %q: %w", s, err)
	}
	return byte(v), nil
}
