// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package config

import (
	"bufio"
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"
	"sync"

	"github.com/relabs-tech/pinball_tilt/internal/filter"
	"github.com/relabs-tech/pinball_tilt/internal/rate"
)

// Config holds all application configuration values.
type Config struct {
	// MQTT
	MQTTBroker           string
	MQTTClientIDProducer string
	MQTTClientIDWeb      string
	MQTTClientIDConsole  string
	MQTTClientIDDisplay  string

	// Topics
	TopicJoystick    string
	TopicTilt        string
	TopicEvents      string
	TopicCommand     string
	TopicCalibration string

	// Sensor hardware
	SensorBackend string // "periph", "sysfs" or "mock"
	I2CBus        string
	I2CAddr       uint16
	SensorIntPin  string // GPIO wired to INT1, empty to poll INT_SOURCE

	// Accelerometer: 0=±2g, 1=±4g, 2=±8g, 3=±16g
	AccelRange byte
	// BW_RATE code 0x00-0x0F (0x0A = 100 Hz)
	AccelRateCode byte

	// Filter
	FilterMode     string // "biquad" or "exponential"
	FilterCutoffHz float64
	FilterQ        float64

	// Joystick mapping
	MaxTiltAngle   float64 // degrees, clamped to 5-45
	DeadZoneRadius float64 // 0 disables

	// Calibration
	CalibrationSamples    int
	CalibrationIntervalMS int // 0 = one sensor period
	CalibrationTimeoutMS  int
	CalibrationFile       string
	CalibrateOnStart      bool

	// Nudge detection, in g
	NudgeBumpG      float64
	NudgeTiltG      float64
	NudgeSlamG      float64
	NudgeFreeFallG  float64
	NudgeTiltTimeMS int
	NudgeHighPassHz float64 // 0 measures against the calibrated baseline

	// Serial axis output
	SerialPort     string
	SerialBaudRate int

	// Prometheus
	MetricsAddr string

	// Timing
	ConsoleLogInterval int // milliseconds

	// Web Server
	WebServerPort int

	// Display
	DisplayI2CAddr        uint16
	DisplayUpdateInterval int // milliseconds
}

var (
	globalConfig *Config
	configOnce   sync.Once
	configMu     sync.RWMutex
)

// Default returns a configuration with every optional key filled in.
func Default() *Config {
	return &Config{
		MQTTClientIDProducer: "pinball-producer",
		MQTTClientIDWeb:      "pinball-web",
		MQTTClientIDConsole:  "pinball-console",
		MQTTClientIDDisplay:  "pinball-display",

		TopicJoystick:    "pinball/joystick",
		TopicTilt:        "pinball/tilt",
		TopicEvents:      "pinball/events",
		TopicCommand:     "pinball/command",
		TopicCalibration: "pinball/calibration",

		SensorBackend: "periph",
		I2CAddr:       0x53,
		AccelRange:    0,
		AccelRateCode: byte(rate.Rate100Hz),

		FilterCutoffHz: 5,
		FilterQ:        math.Sqrt2 / 2,
		FilterMode:     "biquad",

		MaxTiltAngle:   12.5,
		DeadZoneRadius: 0,

		CalibrationSamples:    128,
		CalibrationIntervalMS: 0,
		CalibrationTimeoutMS:  5000,

		NudgeBumpG:      5,
		NudgeTiltG:      2,
		NudgeSlamG:      15,
		NudgeFreeFallG:  0.5,
		NudgeTiltTimeMS: 2000,

		SerialBaudRate: 115200,

		ConsoleLogInterval: 500,

		WebServerPort: 8080,

		DisplayI2CAddr:        0x3C,
		DisplayUpdateInterval: 200,
	}
}

// Load reads the configuration file and returns a Config struct.
// Keys missing from the file keep their Default value.
func Load(configPath string) (*Config, error) {
	file, err := os.Open(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer file.Close()

	cfg := Default()
	scanner := bufio.NewScanner(file)
	lineNum := 0

	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())

		// Skip empty lines and comments
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		key, value, ok := strings.Cut(line, "=")
		if !ok {
			return nil, fmt.Errorf("invalid config line %d: %q", lineNum, line)
		}

		if err := cfg.setValue(strings.TrimSpace(key), strings.TrimSpace(value)); err != nil {
			return nil, fmt.Errorf("config line %d: %w", lineNum, err)
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	if err := cfg.validate(); err != nil {
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
	case "MQTT_CLIENT_ID_WEB":
		c.MQTTClientIDWeb = value
	case "MQTT_CLIENT_ID_CONSOLE":
		c.MQTTClientIDConsole = value
	case "MQTT_CLIENT_ID_DISPLAY":
		c.MQTTClientIDDisplay = value

	// Topics
	case "TOPIC_JOYSTICK":
		c.TopicJoystick = value
	case "TOPIC_TILT":
		c.TopicTilt = value
	case "TOPIC_EVENTS":
		c.TopicEvents = value
	case "TOPIC_COMMAND":
		c.TopicCommand = value
	case "TOPIC_CALIBRATION":
		c.TopicCalibration = value

	// Sensor hardware
	case "SENSOR_BACKEND":
		switch value {
		case "periph", "sysfs", "mock":
			c.SensorBackend = value
		default:
			return fmt.Errorf("SENSOR_BACKEND must be periph, sysfs or mock, got %q", value)
		}
	case "I2C_BUS":
		c.I2CBus = value
	case "I2C_ADDR":
		addr, err := strconv.ParseUint(value, 0, 16)
		if err != nil {
			return fmt.Errorf("invalid I2C_ADDR %q: %w", value, err)
		}
		c.I2CAddr = uint16(addr)
	case "SENSOR_INT_PIN":
		c.SensorIntPin = value

	case "ACCEL_RANGE":
		rangeVal, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid ACCEL_RANGE %q: %w", value, err)
		}
		if rangeVal < 0 || rangeVal > 3 {
			return fmt.Errorf("ACCEL_RANGE must be 0-3 (0=±2g, 1=±4g, 2=±8g, 3=±16g), got %d", rangeVal)
		}
		c.AccelRange = byte(rangeVal)
	case "ACCEL_RATE_CODE":
		code, err := strconv.ParseUint(value, 0, 8)
		if err != nil {
			return fmt.Errorf("invalid ACCEL_RATE_CODE %q: %w", value, err)
		}
		if code > uint64(rate.MaxCode) {
			return fmt.Errorf("ACCEL_RATE_CODE must be 0-15, got %d", code)
		}
		c.AccelRateCode = byte(code)

	// Filter
	case "FILTER_CUTOFF_HZ":
		c.FilterCutoffHz, err = parseFloat(key, value)
	case "FILTER_Q":
		c.FilterQ, err = parseFloat(key, value)
	case "FILTER_MODE":
		c.FilterMode = value

	// Joystick mapping
	case "MAX_TILT_ANGLE":
		c.MaxTiltAngle, err = parseFloat(key, value)
	case "DEAD_ZONE_RADIUS":
		c.DeadZoneRadius, err = parseFloat(key, value)

	// Calibration
	case "CALIBRATION_SAMPLES":
		c.CalibrationSamples, err = parseInt(key, value)
	case "CALIBRATION_INTERVAL_MS":
		c.CalibrationIntervalMS, err = parseInt(key, value)
	case "CALIBRATION_TIMEOUT_MS":
		c.CalibrationTimeoutMS, err = parseInt(key, value)
	case "CALIBRATION_FILE":
		c.CalibrationFile = value
	case "CALIBRATE_ON_START":
		c.CalibrateOnStart, err = strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("invalid CALIBRATE_ON_START %q: %w", value, err)
		}

	// Nudge detection
	case "NUDGE_BUMP_G":
		c.NudgeBumpG, err = parseFloat(key, value)
	case "NUDGE_TILT_G":
		c.NudgeTiltG, err = parseFloat(key, value)
	case "NUDGE_SLAM_G":
		c.NudgeSlamG, err = parseFloat(key, value)
	case "NUDGE_FREE_FALL_G":
		c.NudgeFreeFallG, err = parseFloat(key, value)
	case "NUDGE_TILT_TIME_MS":
		c.NudgeTiltTimeMS, err = parseInt(key, value)
	case "NUDGE_HIGHPASS_HZ":
		c.NudgeHighPassHz, err = parseFloat(key, value)

	// Serial
	case "SERIAL_PORT":
		c.SerialPort = value
	case "SERIAL_BAUD_RATE":
		c.SerialBaudRate, err = parseInt(key, value)

	// Prometheus
	case "METRICS_ADDR":
		c.MetricsAddr = value

	// Timing
	case "CONSOLE_LOG_INTERVAL":
		c.ConsoleLogInterval, err = parseInt(key, value)

	// Web Server
	case "WEB_SERVER_PORT":
		c.WebServerPort, err = parseInt(key, value)

	// Display
	case "DISPLAY_I2C_ADDR":
		addr, err := strconv.ParseUint(value, 0, 16)
		if err != nil {
			return fmt.Errorf("invalid DISPLAY_I2C_ADDR %q: %w", value, err)
		}
		c.DisplayI2CAddr = uint16(addr)
	case "DISPLAY_UPDATE_INTERVAL":
		c.DisplayUpdateInterval, err = parseInt(key, value)

	default:
		return fmt.Errorf("unknown config key: %q", key)
	}

	return err
}

func parseInt(key, value string) (int, error) {
	v, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, value, err)
	}
	return v, nil
}

func parseFloat(key, value string) (float64, error) {
	v, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, value, err)
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("invalid %s %q: must be finite", key, value)
	}
	return v, nil
}

// validate checks required fields and cross-field constraints.
func (c *Config) validate() error {
	if c.MQTTBroker == "" {
		return fmt.Errorf("MQTT_BROKER is required")
	}
	if c.SensorBackend != "mock" && c.I2CAddr == 0 {
		return fmt.Errorf("I2C_ADDR is required for backend %q", c.SensorBackend)
	}

	hz := c.SampleRateHz()
	if c.FilterCutoffHz <= 0 || c.FilterCutoffHz >= hz/2 {
		return fmt.Errorf("FILTER_CUTOFF_HZ must be in (0, %g) for ACCEL_RATE_CODE 0x%02X (%g Hz), got %g",
			hz/2, c.AccelRateCode, hz, c.FilterCutoffHz)
	}
	if c.FilterQ <= 0 {
		return fmt.Errorf("FILTER_Q must be positive, got %g", c.FilterQ)
	}
	if _, err := filter.ParseDesign(c.FilterMode); err != nil {
		return fmt.Errorf("FILTER_MODE: %w", err)
	}
	if c.NudgeHighPassHz < 0 || c.NudgeHighPassHz >= hz/2 {
		return fmt.Errorf("NUDGE_HIGHPASS_HZ must be in [0, %g), got %g", hz/2, c.NudgeHighPassHz)
	}
	if c.DeadZoneRadius < 0 || c.DeadZoneRadius >= 1 {
		return fmt.Errorf("DEAD_ZONE_RADIUS must be in [0, 1), got %g", c.DeadZoneRadius)
	}
	if c.CalibrationSamples <= 0 {
		return fmt.Errorf("CALIBRATION_SAMPLES must be positive, got %d", c.CalibrationSamples)
	}
	if c.CalibrationIntervalMS < 0 || c.CalibrationTimeoutMS < 0 {
		return fmt.Errorf("CALIBRATION_INTERVAL_MS and CALIBRATION_TIMEOUT_MS must not be negative")
	}
	if c.SerialPort != "" && c.SerialBaudRate <= 0 {
		return fmt.Errorf("SERIAL_BAUD_RATE is required when SERIAL_PORT is set")
	}
	if c.ConsoleLogInterval <= 0 {
		return fmt.Errorf("CONSOLE_LOG_INTERVAL must be positive, got %d", c.ConsoleLogInterval)
	}
	if c.DisplayUpdateInterval <= 0 {
		return fmt.Errorf("DISPLAY_UPDATE_INTERVAL must be positive, got %d", c.DisplayUpdateInterval)
	}
	return nil
}

// SampleRateHz is the output data rate selected by ACCEL_RATE_CODE.
func (c *Config) SampleRateHz() float64 {
	hz, _ := rate.Frequency(rate.Code(c.AccelRateCode))
	return hz
}

// InitGlobal initializes the global configuration from file.
// Only the first call has any effect.
func InitGlobal(configPath string) error {
	var err error
	configOnce.Do(func() {
		configMu.Lock()
		defer configMu.Unlock()
		globalConfig, err = Load(configPath)
	})
	return err
}

// Get returns the global configuration instance.
// InitGlobal must be called first, or this will return nil.
func Get() *Config {
	configMu.RLock()
	defer configMu.RUnlock()
	return globalConfig
}
