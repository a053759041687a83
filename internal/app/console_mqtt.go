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

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/relabs-tech/foot_ins/internal/config"
)

func formatUpdate(u EstimateUpdate) string {
	if len(u.Rows) == 0 {
		return ""
	}
	last := u.Rows[len(u.Rows)-1]
	phase := "SWING "
	if last.Stance {
		phase = "STANCE"
	}
	att := last.Attitude.Degrees()
	return fmt.Sprintf(
		"[EST] #%-7d %s  x=%7.2f y=%7.2f z=%6.2f  |v|=%5.2f  R=%7.1f P=%6.1f Y=%7.1f",
		u.Offset+len(u.Rows), phase,
		last.Position[0], last.Position[1], last.Position[2],
		speed(last.Velocity), att.Roll, att.Pitch, att.Yaw,
	)
}

func RunConsoleMQTT() error {
	cfg := config.Get()

	opts := mqtt.NewClientOptions().
		AddBroker(cfg.MQTTBroker).
		SetClientID(cfg.MQTTClientIDConsole)

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return token.Error()
	}
	log.Printf("console: connected to MQTT broker at %s", cfg.MQTTBroker)

	estToken := client.Subscribe(cfg.TopicEstimates, 0, func(_ mqtt.Client, msg mqtt.Message) {
		var u EstimateUpdate
		if err := json.Unmarshal(msg.Payload(), &u); err != nil {
			log.Printf("console: estimates unmarshal error: %v", err)
			return
		}
		if line := formatUpdate(u); line != "" {
			fmt.Println(line)
		}
	})
	estToken.Wait()
	if estToken.Error() != nil {
		return estToken.Error()
	}
	log.Printf("console: subscribed to %s", cfg.TopicEstimates)

	runToken := client.Subscribe(cfg.TopicRun, 0, func(_ mqtt.Client, msg mqtt.Message) {
		var ev RunEvent
		if err := json.Unmarshal(msg.Payload(), &ev); err != nil {
			log.Printf("console: run event unmarshal error: %v", err)
			return
		}
		fmt.Printf("[RUN] %s %s\n", ev.Event, ev.RunID)
		if ev.Summary != nil {
			fmt.Printf("[RUN] samples=%d stance=%d xy drift=%.3fm 3d drift=%.3fm rel=%.2f%%\n",
				ev.Summary.Samples, ev.Summary.StanceSamples, ev.Summary.HorizontalDrift,
				ev.Summary.Drift3D, ev.Summary.RelativeError)
		}
	})
	runToken.Wait()
	if runToken.Error() != nil {
		return runToken.Error()
	}
	log.Printf("console: subscribed to %s", cfg.TopicRun)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	log.Println("console: shutting down")
	client.Disconnect(250)
	return nil
}
