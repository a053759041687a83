// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package imu

import (
	"bufio"
	"fmt"
	"io"
	"log"
	"strings"

	serial "github.com/jacobsa/go-serial/serial"
)

// SerialSource reads "ax,ay,az,gx,gy,gz" lines from a serial-attached
// sensor bridge that forwards calibrated samples at the fixed rate.
type SerialSource struct {
	port   io.ReadWriteCloser
	reader *bufio.Reader
	name   string
}

// OpenSerialSource opens portName at baud (8N1).
func OpenSerialSource(portName string, baud uint) (*SerialSource, error) {
	opts := serial.OpenOptions{
		PortName:              portName,
		BaudRate:              baud,
		DataBits:              8,
		StopBits:              1,
		MinimumReadSize:       1,
		ParityMode:            serial.PARITY_NONE,
		InterCharacterTimeout: 0,
	}

	port, err := serial.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open serial %s: %w", portName, err)
	}
	log.Printf("imu: serial port opened on %s at %d baud", portName, baud)

	return newLineSource(port, portName), nil
}

func newLineSource(rw io.ReadWriteCloser, name string) *SerialSource {
	return &SerialSource{port: rw, reader: bufio.NewReader(rw), name: name}
}

// Next blocks until the next well-formed sample line arrives. Blank lines,
// comment lines and the CSV header are skipped; malformed lines are
// logged and skipped since the bridge may start mid-line.
func (s *SerialSource) Next() (Sample, error) {
	for {
		line, err := s.reader.ReadString('\n')
		if err != nil {
			return Sample{}, fmt.Errorf("%s read: %w", s.name, err)
		}

		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") || strings.HasPrefix(line, "Acc") {
			continue
		}

		sample, err := ParseLine(line)
		if err != nil {
			log.Printf("imu: %s: skipping line %q: %v", s.name, line, err)
			continue
		}
		return sample, nil
	}
}

// Close closes the underlying port.
func (s *SerialSource) Close() error {
	return s.port.Close()
}
