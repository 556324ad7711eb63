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

// Package detection locates SPI Adapter boards among the serial ports on
// the system. Detection is active: each candidate port is opened and
// probed with ECHO, then identified with INFO, so only ports that
// actually speak the protocol are reported. Ports belonging to other
// devices see at most a few stray bytes, which well-behaved firmwares
// ignore.
package detection

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.bug.st/serial"

	spiadapter "github.com/sprocketlab/go-spiadapter"
	serialtransport "github.com/sprocketlab/go-spiadapter/transport/serial"
)

// ErrNoAdaptersFound is returned when no port answered the probe.
var ErrNoAdaptersFound = errors.New("no SPI adapters found")

// DeviceInfo describes one detected adapter.
type DeviceInfo struct {
	// Port is the serial port path, e.g. "/dev/ttyACM0" or "COM5".
	Port string
	// Info is the adapter's INFO response.
	Info *spiadapter.Info
}

func (d DeviceInfo) String() string {
	return fmt.Sprintf("SPI adapter at %s (api %d, firmware %d)",
		d.Port, d.Info.APIVersion, d.Info.FirmwareVersion)
}

// Options configures a detection pass.
type Options struct {
	// IgnorePorts lists port paths to skip.
	IgnorePorts []string
	// ProbeTimeout bounds the echo/info exchange per port.
	ProbeTimeout time.Duration
	// First stops after the first adapter found.
	First bool
}

// DefaultOptions returns the options used when nil is passed to Detect.
func DefaultOptions() *Options {
	return &Options{ProbeTimeout: 500 * time.Millisecond}
}

// Detect scans the system's serial ports and returns every SPI Adapter
// that answered.
func Detect(ctx context.Context, opts *Options) ([]DeviceInfo, error) {
	if opts == nil {
		opts = DefaultOptions()
	}
	ports, err := serial.GetPortsList()
	if err != nil {
		return nil, fmt.Errorf("failed to list serial ports: %w", err)
	}

	var found []DeviceInfo
	for _, port := range filterPorts(ports, opts.IgnorePorts) {
		if err := ctx.Err(); err != nil {
			return found, err
		}
		info, err := probePort(ctx, port, opts.ProbeTimeout)
		if err != nil {
			spiadapter.Debugf("probe %s: %v", port, err)
			continue
		}
		found = append(found, DeviceInfo{Port: port, Info: info})
		if opts.First {
			break
		}
	}
	if len(found) == 0 {
		return nil, ErrNoAdaptersFound
	}
	return found, nil
}

// First returns the port of the first adapter found.
func First(ctx context.Context) (string, error) {
	opts := DefaultOptions()
	opts.First = true
	devices, err := Detect(ctx, opts)
	if err != nil {
		return "", err
	}
	return devices[0].Port, nil
}

// filterPorts removes ignored and obviously uninteresting ports. Bluetooth
// pseudo-ports on macOS hang on open, so they are skipped outright.
func filterPorts(ports, ignore []string) []string {
	out := make([]string, 0, len(ports))
	for _, port := range ports {
		if strings.Contains(port, "Bluetooth") || strings.Contains(port, "debug-console") {
			continue
		}
		skip := false
		for _, ig := range ignore {
			if port == ig {
				skip = true
				break
			}
		}
		if !skip {
			out = append(out, port)
		}
	}
	return out
}

// probePort opens a port and checks whether an SPI Adapter is behind it.
// A single echo pass keeps the cost low on ports that belong to other
// devices; TestConnection's full retry dance is for ports already known
// to host an adapter.
func probePort(ctx context.Context, port string, timeout time.Duration) (*spiadapter.Info, error) {
	t, err := serialtransport.New(port)
	if err != nil {
		return nil, err
	}
	defer func() { _ = t.Close() }()

	adapter, err := spiadapter.New(t,
		spiadapter.WithTimeout(timeout),
		spiadapter.WithConnectRetries(1))
	if err != nil {
		return nil, err
	}
	if err := adapter.TestConnection(ctx); err != nil {
		return nil, err
	}
	return adapter.Info(ctx)
}
