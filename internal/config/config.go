// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package config

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"sync"

	"github.com/relabs-tech/foot_ins/internal/noise"
)

// Config holds all application configuration values.
type Config struct {
	// MQTT
	MQTTBroker            string
	MQTTClientIDProducer  string
	MQTTClientIDEstimator string
	MQTTClientIDConsole   string
	MQTTClientIDWeb       string

	// Topics
	TopicSamples   string
	TopicEstimates string
	TopicRun       string

	// Sample source: "serial" or "mock"
	SampleSource     string
	SerialPort       string
	SerialBaudRate   uint
	MockStepPeriodMS int // full gait cycle of the mock source

	// Estimator
	SamplePeriod      float64 // seconds
	SigmaA            float64
	SigmaW            float64 // rad/s
	SigmaVel          float64
	SigmaAccBody      float64
	SigmaGyroBodyDeg  float64 // deg/s
	Gravity           float64
	DetectorWindow    int
	DetectorThreshold float64
	MinBatchIncrement int
	DrainIntervalMS   int // milliseconds

	// Output
	DBPath              string
	ResultsDir          string
	WebServerPort       int
	ReferencePathLength float64 // meters, 0 when unknown
}

var (
	globalConfig *Config
	configOnce   sync.Once
	configMu     sync.RWMutex
)

// Default returns the configuration used for keys missing from the file.
func Default() *Config {
	p := noise.DefaultParams()
	return &Config{
		MQTTBroker:            "tcp://localhost:1883",
		MQTTClientIDProducer:  "foot-ins-producer",
		MQTTClientIDEstimator: "foot-ins-estimator",
		MQTTClientIDConsole:   "foot-ins-console",
		MQTTClientIDWeb:       "foot-ins-web",

		TopicSamples:   "foot_ins/samples",
		TopicEstimates: "foot_ins/estimates",
		TopicRun:       "foot_ins/run",

		SampleSource:     "mock",
		SerialPort:       "/dev/ttyUSB0",
		SerialBaudRate:   115200,
		MockStepPeriodMS: 1100,

		SamplePeriod:      p.Period,
		SigmaA:            p.SigmaA,
		SigmaW:            p.SigmaW,
		SigmaVel:          p.SigmaVel,
		SigmaAccBody:      p.SigmaAccBody,
		SigmaGyroBodyDeg:  p.SigmaGyroBodyDeg,
		Gravity:           p.Gravity,
		DetectorWindow:    5,
		DetectorThreshold: 2.2e8,
		MinBatchIncrement: 5,
		DrainIntervalMS:   50,

		DBPath:        "foot_ins.db",
		ResultsDir:    "results",
		WebServerPort: 8080,
	}
}

// Load reads the configuration file and returns a Config struct.
func Load(configPath string) (*Config, error) {
	file, err := os.Open(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer file.Close()
	return Parse(file)
}

// Parse reads KEY=VALUE lines on top of Default. Blank lines and lines
// starting with # are ignored; unknown keys are an error.
func Parse(r io.Reader) (*Config, error) {
	cfg := Default()
	scanner := bufio.NewScanner(r)
	lineNum := 0

	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			return nil, fmt.Errorf("invalid config line %d: %q", lineNum, line)
		}

		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])

		if err := cfg.setValue(key, value); err != nil {
			return nil, fmt.Errorf("config line %d: %w", lineNum, err)
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// setValue sets a config value based on the key.
func (c *Config) setValue(key, value string) error {
	var err error
	switch key {
	// MQTT
	case "MQTT_BROKER":
		c.MQTTBroker = value
	case "MQTT_CLIENT_ID_PRODUCER":
		c.MQTTClientIDProducer = value
	case "MQTT_CLIENT_ID_ESTIMATOR":
		c.MQTTClientIDEstimator = value
	case "MQTT_CLIENT_ID_CONSOLE":
		c.MQTTClientIDConsole = value
	case "MQTT_CLIENT_ID_WEB":
		c.MQTTClientIDWeb = value

	// Topics
	case "TOPIC_SAMPLES":
		c.TopicSamples = value
	case "TOPIC_ESTIMATES":
		c.TopicEstimates = value
	case "TOPIC_RUN":
		c.TopicRun = value

	// Sample source
	case "SAMPLE_SOURCE":
		if value != "serial" && value != "mock" {
			return fmt.Errorf("SAMPLE_SOURCE must be serial or mock, got %q", value)
		}
		c.SampleSource = value
	case "SERIAL_PORT":
		c.SerialPort = value
	case "SERIAL_BAUD_RATE":
		var v uint64
		v, err = strconv.ParseUint(value, 10, 32)
		c.SerialBaudRate = uint(v)
	case "MOCK_STEP_PERIOD_MS":
		c.MockStepPeriodMS, err = strconv.Atoi(value)

	// Estimator
	case "SAMPLE_PERIOD":
		c.SamplePeriod, err = strconv.ParseFloat(value, 64)
	case "SIGMA_A":
		c.SigmaA, err = strconv.ParseFloat(value, 64)
	case "SIGMA_W":
		c.SigmaW, err = strconv.ParseFloat(value, 64)
	case "SIGMA_VEL":
		c.SigmaVel, err = strconv.ParseFloat(value, 64)
	case "SIGMA_ACC_BODY":
		c.SigmaAccBody, err = strconv.ParseFloat(value, 64)
	case "SIGMA_GYRO_BODY_DEG":
		c.SigmaGyroBodyDeg, err = strconv.ParseFloat(value, 64)
	case "GRAVITY":
		c.Gravity, err = strconv.ParseFloat(value, 64)
	case "DETECTOR_WINDOW":
		c.DetectorWindow, err = strconv.Atoi(value)
	case "DETECTOR_THRESHOLD":
		c.DetectorThreshold, err = strconv.ParseFloat(value, 64)
	case "MIN_BATCH_INCREMENT":
		c.MinBatchIncrement, err = strconv.Atoi(value)
	case "DRAIN_INTERVAL_MS":
		c.DrainIntervalMS, err = strconv.Atoi(value)

	// Output
	case "DB_PATH":
		c.DBPath = value
	case "RESULTS_DIR":
		c.ResultsDir = value
	case "WEB_SERVER_PORT":
		c.WebServerPort, err = strconv.Atoi(value)
	case "REFERENCE_PATH_LENGTH":
		c.ReferencePathLength, err = strconv.ParseFloat(value, 64)

	default:
		return fmt.Errorf("unknown key %q", key)
	}

	if err != nil {
		return fmt.Errorf("invalid %s value %q: %w", key, value, err)
	}
	return nil
}

// Params returns the noise parameters of the estimator.
func (c *Config) Params() noise.Params {
	return noise.Params{
		SigmaA:           c.SigmaA,
		SigmaW:           c.SigmaW,
		SigmaVel:         c.SigmaVel,
		SigmaAccBody:     c.SigmaAccBody,
		SigmaGyroBodyDeg: c.SigmaGyroBodyDeg,
		Gravity:          c.Gravity,
		Period:           c.SamplePeriod,
	}
}

// Validate checks the values the processes depend on.
func (c *Config) Validate() error {
	if c.MQTTBroker == "" {
		return fmt.Errorf("MQTT_BROKER is required")
	}
	if err := c.Params().Validate(); err != nil {
		return err
	}
	if c.DetectorWindow < 1 {
		return fmt.Errorf("DETECTOR_WINDOW must be at least 1")
	}
	if c.MinBatchIncrement < c.DetectorWindow {
		return fmt.Errorf("MIN_BATCH_INCREMENT (%d) must be at least DETECTOR_WINDOW (%d)", c.MinBatchIncrement, c.DetectorWindow)
	}
	if c.DrainIntervalMS <= 0 {
		return fmt.Errorf("DRAIN_INTERVAL_MS must be positive")
	}
	if c.SampleSource == "serial" && c.SerialPort == "" {
		return fmt.Errorf("SERIAL_PORT is required for the serial source")
	}
	if c.MockStepPeriodMS <= 0 {
		return fmt.Errorf("MOCK_STEP_PERIOD_MS must be positive")
	}
	return nil
}

// InitGlobal loads the global configuration from file once.
func InitGlobal(configPath string) error {
	var err error
	configOnce.Do(func() {
		configMu.Lock()
		defer configMu.Unlock()
		globalConfig, err = Load(configPath)
	})
	return err
}

// Get returns the global configuration. InitGlobal must be called first.
func Get() *Config {
	configMu.RLock()
	defer configMu.RUnlock()
	return globalConfig
}
