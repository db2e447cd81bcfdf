// SPDX-License-Identifier: MIT
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"lightshow/internal/analysis"
	"lightshow/internal/fixture"
	applog "lightshow/internal/log"
	"lightshow/internal/transport"
)

// LoadConfig loads configuration from a YAML file specified by path. If path is empty,
// it looks for lightshow.yaml in the working directory. If no file is found, it uses
// built-in defaults. After loading defaults or from file, it applies environment
// variable overrides and validates the final configuration.
func LoadConfig(path string) (*Config, error) {
	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Load is LoadConfig without validation, for callers that apply further
// overrides and validate the result themselves.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		candidates := []string{DefaultConfigFile}
		for _, candidate := range candidates {
			if _, err := os.Stat(candidate); err == nil {
				path = candidate
				break
			}
		}
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
		applog.Debugf("configuration: Loaded %s", path)
	}

	// Apply environment variable overrides AFTER loading from file.
	cfg.applyEnvOverrides()
	return cfg, nil
}

// Validate checks every setting and returns all problems joined together.
func (c *Config) Validate() error {
	var errs []error
	check := func(ok bool, format string, args ...any) {
		if !ok {
			errs = append(errs, fmt.Errorf(format, args...))
		}
	}

	if _, ok := applog.ParseLevel(c.LogLevel); !ok {
		errs = append(errs, fmt.Errorf("log_level '%s' is not one of debug, info, warn, error, fatal", c.LogLevel))
	}

	// Show validation.
	s := c.Show
	check(s.FrameRate >= MinFrameRate && s.FrameRate <= MaxFrameRate,
		"show.frame_rate must be in [%d, %d], got %v", MinFrameRate, MaxFrameRate, s.FrameRate)
	check(s.NumFixtures >= 1 && s.NumFixtures <= fixture.MaxFixtures,
		"show.num_fixtures must be in [1, %d], got %d", fixture.MaxFixtures, s.NumFixtures)
	check(analysis.ValidMode(s.Mode), "show.mode '%s' is not one of spectrum, intensity, beat", s.Mode)
	if _, err := analysis.ParseBroadcaster(s.Broadcast); err != nil {
		errs = append(errs, fmt.Errorf("show.broadcast: %w", err))
	}
	if len(s.DBRange) != 2 {
		errs = append(errs, fmt.Errorf("show.db_range must have exactly two values, got %d", len(s.DBRange)))
	} else {
		check(s.DBRange[0] < s.DBRange[1], "show.db_range min %v must be below max %v", s.DBRange[0], s.DBRange[1])
	}
	if _, err := s.Window(); err != nil {
		errs = append(errs, fmt.Errorf("show.fft_window: %w", err))
	}
	check(s.GateThreshold >= 0 && s.GateThreshold <= 1, "show.gate_threshold must be in [0, 1], got %v", s.GateThreshold)
	if _, err := s.Channel(); err != nil {
		errs = append(errs, fmt.Errorf("show.intensity_channel: %w", err))
	}
	if bands, err := s.Bands(); err != nil {
		errs = append(errs, fmt.Errorf("show.%w", err))
	} else if _, err := analysis.NewBandMapper(bands, 0, 1); err != nil {
		errs = append(errs, fmt.Errorf("show.band_ranges: %w", err))
	}
	b := s.Beat
	check(b.Threshold >= 0, "show.beat.threshold must not be negative, got %v", b.Threshold)
	check(b.MinRatio > 0, "show.beat.min_ratio must be positive, got %v", b.MinRatio)
	check(b.Decay >= 0 && b.Decay <= 1, "show.beat.decay must be in [0, 1], got %v", b.Decay)
	if len(b.Color) != 3 {
		errs = append(errs, fmt.Errorf("show.beat.color must be [r, g, b], got %d values", len(b.Color)))
	} else {
		for i, v := range b.Color {
			check(v >= 0 && v <= 255, "show.beat.color[%d] must be in [0, 255], got %d", i, v)
		}
	}

	// Target validation.
	t := c.Target
	switch strings.ToLower(t.Transport) {
	case transport.KindTCP, transport.KindUDP, transport.KindWebSocket, "websocket", transport.KindLog:
	default:
		errs = append(errs, fmt.Errorf("target.transport '%s' is not one of tcp, udp, ws, log", t.Transport))
	}
	check(t.Host != "", "target.host must be set")
	check(t.Port > 0 && t.Port <= 65535, "target.port must be in [1, 65535], got %d", t.Port)
	check(t.WriteTimeout > 0, "target.write_timeout must be positive, got %v", t.WriteTimeout)
	check(t.DialTimeout > 0, "target.dial_timeout must be positive, got %v", t.DialTimeout)
	check(t.MaxConsecutiveFailures >= 0, "target.max_consecutive_failures must not be negative, got %d", t.MaxConsecutiveFailures)

	// Capture validation.
	cp := c.Capture
	check(cp.Device >= MinDeviceID, "capture.device must be >= %d, got %d", MinDeviceID, cp.Device)
	check(cp.Channels >= 1, "capture.channels must be at least 1, got %d", cp.Channels)
	check(cp.SampleRate >= MinSampleRate && cp.SampleRate <= MaxSampleRate,
		"capture.sample_rate must be in [%d, %d], got %d", MinSampleRate, MaxSampleRate, cp.SampleRate)
	check(cp.FramesPerBuffer > 0 && cp.FramesPerBuffer <= MaxBufferFrames,
		"capture.frames_per_buffer must be in [1, %d], got %d", MaxBufferFrames, cp.FramesPerBuffer)
	check(cp.Duration > 0, "capture.duration must be positive, got %v", cp.Duration)

	// Simulator validation.
	sim := c.Simulator
	check(sim.Listen != "", "simulator.listen must be set")
	check(sim.WSListen != "", "simulator.ws_listen must be set")
	check(sim.NumFixtures >= 1 && sim.NumFixtures <= fixture.MaxFixtures,
		"simulator.num_fixtures must be in [1, %d], got %d", fixture.MaxFixtures, sim.NumFixtures)

	return errors.Join(errs...)
}

// applyEnvOverrides applies ENV_* variables on top of the file settings.
// Unparseable values are logged and ignored.
func (cfg *Config) applyEnvOverrides() {
	// ENV_LOG_LEVEL
	if val, ok := os.LookupEnv("ENV_LOG_LEVEL"); ok {
		cfg.LogLevel = val
		applog.Infof("configuration: Overriding log_level from env: %s", val)
	}

	// ENV_{...}
	// These are specific to the show.

	// ENV_FRAME_RATE
	if val, ok := os.LookupEnv("ENV_FRAME_RATE"); ok {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			cfg.Show.FrameRate = f
			applog.Infof("configuration: Overriding show.frame_rate from env: %v", f)
		} else {
			applog.Warnf("configuration: Ignoring ENV_FRAME_RATE '%s': %v", val, err)
		}
	}
	// ENV_NUM_FIXTURES
	if val, ok := os.LookupEnv("ENV_NUM_FIXTURES"); ok {
		if n, err := strconv.Atoi(val); err == nil {
			cfg.Show.NumFixtures = n
			applog.Infof("configuration: Overriding show.num_fixtures from env: %d", n)
		} else {
			applog.Warnf("configuration: Ignoring ENV_NUM_FIXTURES '%s': %v", val, err)
		}
	}
	// ENV_MODE
	if val, ok := os.LookupEnv("ENV_MODE"); ok {
		cfg.Show.Mode = val
		applog.Infof("configuration: Overriding show.mode from env: %s", val)
	}

	// ENV_TARGET_{...}
	// These are specific to the transport layer.

	// ENV_TARGET_TRANSPORT
	if val, ok := os.LookupEnv("ENV_TARGET_TRANSPORT"); ok {
		cfg.Target.Transport = val
		applog.Infof("configuration: Overriding target.transport from env: %s", val)
	}
	// ENV_TARGET_HOST
	if val, ok := os.LookupEnv("ENV_TARGET_HOST"); ok {
		cfg.Target.Host = val
		applog.Infof("configuration: Overriding target.host from env: %s", val)
	}
	// ENV_TARGET_PORT
	if val, ok := os.LookupEnv("ENV_TARGET_PORT"); ok {
		if p, err := strconv.Atoi(val); err == nil {
			cfg.Target.Port = p
			applog.Infof("configuration: Overriding target.port from env: %d", p)
		} else {
			applog.Warnf("configuration: Ignoring ENV_TARGET_PORT '%s': %v", val, err)
		}
	}
}
