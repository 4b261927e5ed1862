// SPDX-License-Identifier: MIT
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"go.uber.org/multierr"
	"gopkg.in/yaml.v3"

	"patchbay/internal/analysis"
	"patchbay/internal/buffer"
	"patchbay/internal/log"
)

// DefaultPath is where LoadConfig looks when no path is given.
const DefaultPath = "patchbay.yaml"

// Config represents the main application configuration structure, loaded from YAML.
type Config struct {
	Debug     bool            `yaml:"debug"`     // Enable debug mode (forces debug logging).
	LogLevel  string          `yaml:"log_level"` // Logging level (e.g., "debug", "info", "warn", "error").
	Engine    EngineConfig    `yaml:"engine"`    // Block processing settings.
	Render    RenderConfig    `yaml:"render"`    // Offline rendering settings.
	Analysis  AnalysisConfig  `yaml:"analysis"`  // Spectrum analysis settings.
	Transport TransportConfig `yaml:"transport"` // Spectrum broadcast settings.
}

// EngineConfig holds settings for running a patch.
type EngineConfig struct {
	SampleRate float64 `yaml:"sample_rate"` // Sample rate in Hz (e.g., 44100, 48000).
	BlockSize  int     `yaml:"block_size"`  // Frames per Process call, at most buffer.MaxBufferSize.
	Precision  int     `yaml:"precision"`   // Sample width in bits, 32 or 64.
}

// RenderConfig holds settings for the render command.
type RenderConfig struct {
	Duration time.Duration `yaml:"duration"` // Length of audio to render.
	Output   string        `yaml:"output"`   // Output file; empty or "-" writes to stdout.
}

// AnalysisConfig holds settings for FFT analysis.
type AnalysisConfig struct {
	FFTSize       int     `yaml:"fft_size"`       // FFT length; rounded up to a power of two.
	GateThreshold float64 `yaml:"gate_threshold"` // Peak level below which blocks are not analysed (0..1).
	Window        string  `yaml:"window"`         // FFT window name (e.g., "hann", "blackman").
}

// TransportConfig holds settings for the spectrum WebSocket.
type TransportConfig struct {
	WSAddr       string        `yaml:"ws_addr"`       // Listen address (e.g., "127.0.0.1:8080").
	SendInterval time.Duration `yaml:"send_interval"` // Minimum interval between broadcasts.
	UDPAddr      string        `yaml:"udp_addr"`      // Target for binary spectrum packets; empty disables.
	UDPInterval  time.Duration `yaml:"udp_interval"`  // Interval between UDP packets.
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Debug:    false,
		LogLevel: "info",
		Engine: EngineConfig{
			SampleRate: 48000,
			BlockSize:  buffer.MaxBufferSize,
			Precision:  64,
		},
		Render: RenderConfig{
			Duration: time.Second,
			Output:   "-",
		},
		Analysis: AnalysisConfig{
			FFTSize:       1024,
			GateThreshold: 0.01,
			Window:        "hann",
		},
		Transport: TransportConfig{
			WSAddr:       "127.0.0.1:8080",
			SendInterval: 33 * time.Millisecond, // Default ~30Hz.
			UDPInterval:  16 * time.Millisecond, // Default ~60Hz.
		},
	}
}

// LoadConfig loads configuration from a YAML file specified by path. If path is empty,
// it looks for DefaultPath in the working directory. If no file is found, it uses built-in
// defaults. After loading defaults or from file, it applies environment variable
// overrides and validates the final configuration.
func LoadConfig(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		if _, err := os.Stat(DefaultPath); err != nil {
			cfg.applyEnvOverrides()
			if err := cfg.Validate(); err != nil {
				return nil, fmt.Errorf("invalid default configuration: %w", err)
			}
			return &cfg, nil
		}
		path = DefaultPath
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	log.Debugf("configuration: loaded %s", path)

	// Apply environment variable overrides AFTER loading from file.
	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// Validate checks every section and reports all problems at once.
func (c *Config) Validate() error {
	var err error

	if c.Engine.SampleRate < 8000 || c.Engine.SampleRate > 192000 {
		err = multierr.Append(err, fmt.Errorf("engine.sample_rate %v outside 8000..192000", c.Engine.SampleRate))
	}
	if c.Engine.BlockSize < 1 || c.Engine.BlockSize > buffer.MaxBufferSize {
		err = multierr.Append(err, fmt.Errorf("engine.block_size %d outside 1..%d", c.Engine.BlockSize, buffer.MaxBufferSize))
	}
	if c.Engine.Precision != 32 && c.Engine.Precision != 64 {
		err = multierr.Append(err, fmt.Errorf("engine.precision must be 32 or 64, got %d", c.Engine.Precision))
	}
	if c.Render.Duration < 0 {
		err = multierr.Append(err, errors.New("render.duration must not be negative"))
	}
	if c.Analysis.FFTSize < 2 {
		err = multierr.Append(err, fmt.Errorf("analysis.fft_size %d is too small", c.Analysis.FFTSize))
	}
	if c.Analysis.GateThreshold < 0 || c.Analysis.GateThreshold > 1 {
		err = multierr.Append(err, fmt.Errorf("analysis.gate_threshold %v outside 0..1", c.Analysis.GateThreshold))
	}
	if _, werr := analysis.ParseWindowFunc(c.Analysis.Window); werr != nil {
		err = multierr.Append(err, fmt.Errorf("analysis.window: %w", werr))
	}
	if c.Transport.SendInterval <= 0 {
		err = multierr.Append(err, errors.New("transport.send_interval must be positive"))
	}
	if c.Transport.UDPAddr != "" && c.Transport.UDPInterval <= 0 {
		err = multierr.Append(err, errors.New("transport.udp_interval must be positive when udp_addr is set"))
	}
	if _, ok := log.ParseLevel(c.LogLevel); !ok {
		err = multierr.Append(err, fmt.Errorf("log_level %q is not a known level", c.LogLevel))
	}

	return err
}

// Level returns the configured log level, DEBUG when Debug is set.
func (c *Config) Level() log.LogLevel {
	if c.Debug {
		return log.LevelDebug
	}
	level, ok := log.ParseLevel(c.LogLevel)
	if !ok {
		return log.LevelInfo
	}
	return level
}

// applyEnvOverrides lets PATCHBAY_* variables override file and default values.
// Malformed values are logged and ignored.
func (c *Config) applyEnvOverrides() {
	// PATCHBAY_DEBUG
	if val, ok := os.LookupEnv("PATCHBAY_DEBUG"); ok {
		if bVal, err := strconv.ParseBool(val); err == nil {
			c.Debug = bVal
			log.Infof("configuration: overriding debug from env: %v", bVal)
		} else {
			log.Warnf("configuration: ignoring PATCHBAY_DEBUG=%q: %v", val, err)
		}
	}
	// PATCHBAY_LOG_LEVEL
	if val, ok := os.LookupEnv("PATCHBAY_LOG_LEVEL"); ok {
		c.LogLevel = val
		log.Infof("configuration: overriding log_level from env: %s", val)
	}
	// PATCHBAY_SAMPLE_RATE
	if val, ok := os.LookupEnv("PATCHBAY_SAMPLE_RATE"); ok {
		if fVal, err := strconv.ParseFloat(val, 64); err == nil {
			c.Engine.SampleRate = fVal
			log.Infof("configuration: overriding engine.sample_rate from env: %v", fVal)
		} else {
			log.Warnf("configuration: ignoring PATCHBAY_SAMPLE_RATE=%q: %v", val, err)
		}
	}
	// PATCHBAY_WS_ADDR
	if val, ok := os.LookupEnv("PATCHBAY_WS_ADDR"); ok {
		c.Transport.WSAddr = val
		log.Infof("configuration: overriding transport.ws_addr from env: %s", val)
	}
}
