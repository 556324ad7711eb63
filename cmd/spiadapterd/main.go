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

// Command spiadapterd turns a Linux board with an SPI master and free
// GPIO lines into an SPI Adapter: it speaks the adapter serial protocol
// on a host-facing serial port and executes the commands against real
// hardware through periph.io.
//
// Usage:
//
//	spiadapterd -config /etc/spiadapterd.yaml
package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/sprocketlab/go-spiadapter/firmware"
	"github.com/sprocketlab/go-spiadapter/firmware/periphhal"
)

var flagConfig string

func init() {
	flag.StringVar(&flagConfig, "config", "/etc/spiadapterd.yaml", "Path to the YAML configuration file")
}

func main() {
	flag.Parse()
	if err := run(); err != nil {
		log.Fatalf("spiadapterd: %v", err)
	}
}

func run() error {
	cfg, err := loadConfig(flagConfig)
	if err != nil {
		return err
	}

	link, err := openSerialLink(cfg.Serial)
	if err != nil {
		return err
	}
	defer func() {
		if err := link.Close(); err != nil {
			log.Printf("close link: %v", err)
		}
	}()

	hal, err := periphhal.New(cfg.halConfig())
	if err != nil {
		return err
	}
	defer func() {
		if err := hal.Close(); err != nil {
			log.Printf("close hal: %v", err)
		}
	}()

	engine, err := firmware.New(firmware.Config{
		Link:      link,
		Bus:       hal,
		Pins:      hal,
		Indicator: hal,
	})
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(),
		os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Printf("serving SPI adapter on %s (spi=%q)", cfg.Serial.Port, cfg.SPI)
	if err := engine.Run(ctx, cfg.tickPeriod()); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	log.Printf("shutting down")
	return nil
}
