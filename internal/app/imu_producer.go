// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"

	"github.com/relabs-tech/foot_ins/internal/config"
	"github.com/relabs-tech/foot_ins/internal/imu"
)

// chunkSize is the number of samples per published chunk.
const chunkSize = 10

// chunker groups consecutive samples of one run into SampleChunks.
type chunker struct {
	runID   string
	size    int
	offset  int
	pending []imu.Sample
}

func newChunker(runID string, size int) *chunker {
	return &chunker{runID: runID, size: size, pending: make([]imu.Sample, 0, size)}
}

// add buffers s and returns a full chunk when one is ready.
func (c *chunker) add(s imu.Sample) (SampleChunk, bool) {
	c.pending = append(c.pending, s)
	if len(c.pending) < c.size {
		return SampleChunk{}, false
	}
	return c.flush()
}

// flush returns the buffered samples, if any, as a chunk.
func (c *chunker) flush() (SampleChunk, bool) {
	if len(c.pending) == 0 {
		return SampleChunk{}, false
	}
	chunk := SampleChunk{RunID: c.runID, Offset: c.offset, Samples: c.pending}
	c.offset += len(c.pending)
	c.pending = make([]imu.Sample, 0, c.size)
	return chunk, true
}

// openSource returns the configured sample source. The mock source is
// paced at the sample period; the serial source blocks on the port.
func openSource(cfg *config.Config) (imu.Source, func(), error) {
	switch cfg.SampleSource {
	case "serial":
		src, err := imu.OpenSerialSource(cfg.SerialPort, cfg.SerialBaudRate)
		if err != nil {
			return nil, nil, err
		}
		return src, func() { src.Close() }, nil
	case "mock":
		mock := imu.NewMockSource(cfg.SamplePeriod, float64(cfg.MockStepPeriodMS)/1000, cfg.Gravity, time.Now().UnixNano())
		return &pacedSource{src: mock, ticker: time.NewTicker(time.Duration(cfg.SamplePeriod * float64(time.Second)))}, func() {}, nil
	}
	return nil, nil, fmt.Errorf("unknown sample source %q", cfg.SampleSource)
}

type pacedSource struct {
	src    imu.Source
	ticker *time.Ticker
}

func (p *pacedSource) Next() (imu.Sample, error) {
	<-p.ticker.C
	return p.src.Next()
}

func RunImuProducer() error {
	cfg := config.Get()
	log.Printf("starting foot-ins IMU producer (%s source)", cfg.SampleSource)

	src, closeSrc, err := openSource(cfg)
	if err != nil {
		return err
	}
	defer closeSrc()

	opts := mqtt.NewClientOptions().
		AddBroker(cfg.MQTTBroker).
		SetClientID(cfg.MQTTClientIDProducer)

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return token.Error()
	}
	defer client.Disconnect(250)
	log.Printf("producer: connected to MQTT broker at %s", cfg.MQTTBroker)

	publish := func(topic string, v interface{}) {
		payload, err := json.Marshal(v)
		if err != nil {
			log.Printf("producer: marshal error (%s): %v", topic, err)
			return
		}
		if token := client.Publish(topic, 1, false, payload); token.Wait() && token.Error() != nil {
			log.Printf("producer: MQTT publish error (%s): %v", topic, token.Error())
		}
	}

	runID := uuid.NewString()
	publish(cfg.TopicRun, RunEvent{Event: EventStart, RunID: runID, Time: time.Now(), Period: cfg.SamplePeriod})
	log.Printf("producer: run %s started", runID)

	samples := make(chan imu.Sample, 256)
	readErr := make(chan error, 1)
	go func() {
		for {
			s, err := src.Next()
			if err != nil {
				readErr <- err
				return
			}
			samples <- s
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	ch := newChunker(runID, chunkSize)
	var runErr error
loop:
	for {
		select {
		case s := <-samples:
			if chunk, ok := ch.add(s); ok {
				publish(cfg.TopicSamples, chunk)
			}
		case err := <-readErr:
			runErr = fmt.Errorf("sample source: %w", err)
			break loop
		case <-sigCh:
			log.Println("producer: shutting down")
			break loop
		}
	}

	for drained := false; !drained; {
		select {
		case s := <-samples:
			if chunk, ok := ch.add(s); ok {
				publish(cfg.TopicSamples, chunk)
			}
		default:
			drained = true
		}
	}
	if chunk, ok := ch.flush(); ok {
		publish(cfg.TopicSamples, chunk)
	}
	publish(cfg.TopicRun, RunEvent{Event: EventStop, RunID: runID, Time: time.Now()})
	log.Printf("producer: run %s stopped after %d samples", runID, ch.offset)
	return runErr
}
