// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/relabs-tech/foot_ins/internal/config"
	"github.com/relabs-tech/foot_ins/internal/ekf"
	"github.com/relabs-tech/foot_ins/internal/imu"
	"github.com/relabs-tech/foot_ins/internal/noise"
	"github.com/relabs-tech/foot_ins/internal/store"
	"github.com/relabs-tech/foot_ins/internal/stream"
)

const publishTimeout = 5 * time.Second

// publishFunc sends v as JSON on topic.
type publishFunc func(topic string, v interface{}) error

// Estimator turns sample chunks into stitched estimates, one run at a time.
type Estimator struct {
	cfg     *config.Config
	model   *noise.Model
	store   *store.Store
	publish publishFunc

	mu       sync.Mutex
	session  *session
	finished map[string]bool // runs already finished, late messages for them are dropped
}

type session struct {
	runID   string
	buf     *imu.Buffer
	mgr     *stream.Manager
	cancel  context.CancelFunc
	done    chan error
	emitted int // rows already stored and published
}

func NewEstimator(cfg *config.Config, st *store.Store, publish publishFunc) (*Estimator, error) {
	model, err := noise.New(cfg.Params())
	if err != nil {
		return nil, err
	}
	return &Estimator{cfg: cfg, model: model, store: st, publish: publish, finished: make(map[string]bool)}, nil
}

// HandleRunEvent starts or stops a run.
func (e *Estimator) HandleRunEvent(ev RunEvent) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	switch ev.Event {
	case EventStart:
		if e.session != nil && e.session.runID == ev.RunID {
			return nil // redelivered
		}
		if e.finished[ev.RunID] {
			log.Printf("estimator: ignoring start of finished run %s", ev.RunID)
			return nil
		}
		if ev.Period != 0 && ev.Period != e.cfg.SamplePeriod {
			log.Printf("estimator: run %s sampled at %gs, configured %gs", ev.RunID, ev.Period, e.cfg.SamplePeriod)
		}
		if err := e.finishLocked(); err != nil {
			log.Printf("estimator: finishing previous run: %v", err)
		}
		return e.startLocked(ev.RunID)
	case EventStop:
		if e.session == nil || e.session.runID != ev.RunID {
			return nil
		}
		return e.finishLocked()
	}
	return nil
}

// HandleChunk appends a chunk to its run, starting the run when the start
// event was missed.
func (e *Estimator) HandleChunk(c SampleChunk) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.session == nil || e.session.runID != c.RunID {
		if e.finished[c.RunID] {
			log.Printf("estimator: dropping %d samples of finished run %s", len(c.Samples), c.RunID)
			return nil
		}
		if err := e.finishLocked(); err != nil {
			log.Printf("estimator: finishing previous run: %v", err)
		}
		if err := e.startLocked(c.RunID); err != nil {
			return err
		}
	}

	s := e.session
	have := s.buf.Len()
	switch {
	case c.Offset+len(c.Samples) <= have:
		return nil // redelivered
	case c.Offset < have:
		c.Samples = c.Samples[have-c.Offset:]
		c.Offset = have
	case c.Offset > have:
		log.Printf("estimator: run %s: %d samples lost before offset %d", s.runID, c.Offset-have, c.Offset)
	}

	if err := e.store.AppendSamples(context.Background(), s.runID, have, c.Samples); err != nil {
		return err
	}
	s.buf.Append(c.Samples...)
	return nil
}

// Close finishes the active run.
func (e *Estimator) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.finishLocked()
}

func (e *Estimator) startLocked(runID string) error {
	mgr, err := stream.New(e.model, stream.Options{
		Window:       e.cfg.DetectorWindow,
		Threshold:    e.cfg.DetectorThreshold,
		MinIncrement: e.cfg.MinBatchIncrement,
	})
	if err != nil {
		return err
	}
	id, err := e.store.CreateRun(context.Background(), store.RunInfo{
		ID:                runID,
		Source:            e.cfg.SampleSource,
		SamplePeriod:      e.cfg.SamplePeriod,
		DetectorWindow:    e.cfg.DetectorWindow,
		DetectorThreshold: e.cfg.DetectorThreshold,
	})
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &session{
		runID:  id,
		buf:    imu.NewBuffer(4096),
		mgr:    mgr,
		cancel: cancel,
		done:   make(chan error, 1),
	}
	e.session = s

	interval := time.Duration(e.cfg.DrainIntervalMS) * time.Millisecond
	go func() {
		s.done <- stream.Consume(ctx, s.buf, s.mgr, interval, e.sink(s))
	}()
	log.Printf("estimator: run %s started", id)
	return nil
}

// sink stores and publishes the rows of each batch. It runs on the
// consumer goroutine of s only.
func (e *Estimator) sink(s *session) stream.Sink {
	return func(rows []ekf.Row) error {
		if err := e.store.AppendEstimates(context.Background(), s.runID, s.emitted, rows); err != nil {
			return err
		}
		if err := e.publish(e.cfg.TopicEstimates, EstimateUpdate{RunID: s.runID, Offset: s.emitted, Rows: rows}); err != nil {
			log.Printf("estimator: publish estimates: %v", err)
		}
		s.emitted += len(rows)
		return nil
	}
}

// finishLocked stops the consumer, which flushes the remaining samples,
// then records the summary and the result files.
func (e *Estimator) finishLocked() error {
	s := e.session
	if s == nil {
		return nil
	}
	e.session = nil
	e.finished[s.runID] = true

	s.cancel()
	consumeErr := <-s.done
	run := s.mgr.Output()
	sum := run.Summarize(e.cfg.ReferencePathLength)

	if err := e.store.FinishRun(context.Background(), s.runID, sum); err != nil {
		return err
	}
	if err := saveResults(e.cfg.ResultsDir, s.runID, s.buf.Snapshot(), run, e.cfg.SamplePeriod); err != nil {
		log.Printf("estimator: saving results of %s: %v", s.runID, err)
	}
	if err := e.publish(e.cfg.TopicRun, RunEvent{Event: EventFinished, RunID: s.runID, Time: time.Now(), Summary: &sum}); err != nil {
		log.Printf("estimator: publish run event: %v", err)
	}
	log.Printf("estimator: run %s finished: %d samples, horizontal drift %.3f m", s.runID, sum.Samples, sum.HorizontalDrift)

	if consumeErr != nil {
		return fmt.Errorf("run %s: %w", s.runID, consumeErr)
	}
	return nil
}

func RunEstimator() error {
	cfg := config.Get()

	st, err := store.Open(cfg.DBPath)
	if err != nil {
		return err
	}
	defer st.Close()

	opts := mqtt.NewClientOptions().
		AddBroker(cfg.MQTTBroker).
		SetClientID(cfg.MQTTClientIDEstimator)

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return token.Error()
	}
	defer client.Disconnect(250)
	log.Printf("estimator: connected to MQTT broker at %s", cfg.MQTTBroker)

	est, err := NewEstimator(cfg, st, func(topic string, v interface{}) error {
		payload, err := json.Marshal(v)
		if err != nil {
			return err
		}
		// may run under a message handler, where an unbounded wait can stall acks
		token := client.Publish(topic, 1, false, payload)
		if !token.WaitTimeout(publishTimeout) {
			return fmt.Errorf("publish to %s timed out", topic)
		}
		return token.Error()
	})
	if err != nil {
		return err
	}

	runToken := client.Subscribe(cfg.TopicRun, 1, func(_ mqtt.Client, msg mqtt.Message) {
		var ev RunEvent
		if err := json.Unmarshal(msg.Payload(), &ev); err != nil {
			log.Printf("estimator: run event unmarshal error: %v", err)
			return
		}
		if err := est.HandleRunEvent(ev); err != nil {
			log.Printf("estimator: run event %s: %v", ev.Event, err)
		}
	})
	runToken.Wait()
	if runToken.Error() != nil {
		return runToken.Error()
	}
	log.Printf("estimator: subscribed to %s", cfg.TopicRun)

	samplesToken := client.Subscribe(cfg.TopicSamples, 1, func(_ mqtt.Client, msg mqtt.Message) {
		var c SampleChunk
		if err := json.Unmarshal(msg.Payload(), &c); err != nil {
			log.Printf("estimator: sample chunk unmarshal error: %v", err)
			return
		}
		if err := est.HandleChunk(c); err != nil {
			log.Printf("estimator: sample chunk: %v", err)
		}
	})
	samplesToken.Wait()
	if samplesToken.Error() != nil {
		return samplesToken.Error()
	}
	log.Printf("estimator: subscribed to %s", cfg.TopicSamples)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	log.Println("estimator: shutting down")
	return est.Close()
}
