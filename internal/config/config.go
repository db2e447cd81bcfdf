// SPDX-License-Identifier: MIT
package config

import (
	"fmt"
	"strings"
	"time"

	"lightshow/internal/analysis"
	"lightshow/internal/fixture"
	"lightshow/internal/transport"
)

// Core configuration constants that define the boundaries and defaults.
const (
	DefaultConfigFile = "lightshow.yaml"

	// Show defaults.
	DefaultFrameRate   = 30.0
	DefaultNumFixtures = 8
	DefaultMode        = analysis.ModeSpectrum
	DefaultBroadcast   = "uniform"
	DefaultDBMin       = -60.0
	DefaultDBMax       = 0.0
	DefaultFFTWindow   = "rectangular"

	// Target defaults.
	DefaultTransport    = transport.KindTCP
	DefaultHost         = "localhost"
	DefaultPort         = 7654
	DefaultPath         = "/leds"
	DefaultWriteTimeout = time.Second
	DefaultDialTimeout  = 5 * time.Second

	// Capture defaults.
	DefaultDeviceID        = MinDeviceID // System default device.
	DefaultChannels        = 1
	DefaultSampleRate      = 44100
	DefaultFramesPerBuffer = 512
	DefaultCaptureDuration = 10 * time.Second

	// Hardware and processing limits.
	MinDeviceID     = -1 // -1 represents the system default device.
	MinSampleRate   = 8000
	MaxSampleRate   = 192000
	MaxBufferFrames = 8192
	MinFrameRate    = 1
	MaxFrameRate    = 1000

	// HostAuto asks the sender to discover the controller over mDNS.
	HostAuto = "auto"

	// Error handling configuration.
	DefaultMaxConsecutiveWriteFailures = 5 // Max failures before stopping.
)

// Config represents the main application configuration structure, loaded from YAML.
type Config struct {
	LogLevel  string          `yaml:"log_level"` // Logging level (debug, info, warn, error).
	Show      ShowConfig      `yaml:"show"`      // Pipeline settings.
	Target    TargetConfig    `yaml:"target"`    // LED controller endpoint.
	Capture   CaptureConfig   `yaml:"capture"`   // Live input settings for the capture command.
	Simulator SimulatorConfig `yaml:"simulator"` // Receiver settings for the simulate command.
}

// ShowConfig holds the analysis and color generation settings.
type ShowConfig struct {
	FrameRate        float64     `yaml:"frame_rate"`        // Ticks per second.
	NumFixtures      int         `yaml:"num_fixtures"`      // Number of fixtures in the array (1-255).
	Mode             string      `yaml:"mode"`              // spectrum, intensity or beat.
	Broadcast        string      `yaml:"broadcast"`         // uniform, ripple or chase.
	DBRange          []float64   `yaml:"db_range"`          // [min, max] clamp range of the spectrum.
	FFTWindow        string      `yaml:"fft_window"`        // Tapering window applied before the FFT.
	GateThreshold    float64     `yaml:"gate_threshold"`    // Peak amplitude below which windows are silenced (0 = off).
	IntensityChannel string      `yaml:"intensity_channel"` // Channel driven in intensity mode.
	BandRanges       []BandRange `yaml:"band_ranges"`       // Spectrum bins per channel.
	Beat             BeatConfig  `yaml:"beat"`              // Beat mode settings.
}

// BandRange maps the spectrum bins [Start, End) to a channel. End -1 means
// to the last bin.
type BandRange struct {
	Start   int    `yaml:"start"`
	End     int    `yaml:"end"`
	Channel string `yaml:"channel"`
}

// BeatConfig holds the onset detector settings.
type BeatConfig struct {
	Threshold float64 `yaml:"threshold"` // Minimum RMS energy of an onset.
	MinRatio  float64 `yaml:"min_ratio"` // Minimum energy rise over the previous window.
	Decay     float64 `yaml:"decay"`     // Brightness multiplier per tick between onsets.
	Color     []int   `yaml:"color"`     // Flash color as [r, g, b].
}

// TargetConfig holds settings for the connection to the LED controller.
type TargetConfig struct {
	Transport              string        `yaml:"transport"`                // tcp, udp, ws or log.
	Host                   string        `yaml:"host"`                     // Controller host, or "auto" for mDNS discovery.
	Port                   int           `yaml:"port"`                     // Controller port.
	Path                   string        `yaml:"path"`                     // WebSocket request path.
	WriteTimeout           time.Duration `yaml:"write_timeout"`            // Upper bound on a blocking frame write.
	DialTimeout            time.Duration `yaml:"dial_timeout"`             // Upper bound on connecting.
	Heartbeat              bool          `yaml:"heartbeat"`                // Send header-only frames on ticks with no changes.
	MaxConsecutiveFailures int           `yaml:"max_consecutive_failures"` // Write failures in a row before giving up (0 = never).
}

// CaptureConfig holds settings for recording from an input device.
type CaptureConfig struct {
	Device          int           `yaml:"device"`            // PortAudio device index (-1 for default).
	Channels        int           `yaml:"channels"`          // Input channels, mixed down to mono.
	SampleRate      int           `yaml:"sample_rate"`       // Sample rate in Hz.
	FramesPerBuffer int           `yaml:"frames_per_buffer"` // Frames per PortAudio callback.
	Duration        time.Duration `yaml:"duration"`          // Length of the captured clip.
	RecordFile      string        `yaml:"record_file"`       // Optional WAV file to save the clip to.
}

// SimulatorConfig holds settings for the receiver.
type SimulatorConfig struct {
	Listen      string `yaml:"listen"`       // Address for the TCP and UDP listeners.
	WSListen    string `yaml:"ws_listen"`    // Address for the WebSocket listener.
	NumFixtures int    `yaml:"num_fixtures"` // Fixture count when no rods file is given.
	RodsFile    string `yaml:"rods_file"`    // YAML or JSON rod layout.
	Advertise   bool   `yaml:"advertise"`    // Announce the receiver over mDNS.
	Headless    bool   `yaml:"headless"`     // Log frames instead of drawing the TUI.
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		LogLevel: "info",
		Show: ShowConfig{
			FrameRate:        DefaultFrameRate,
			NumFixtures:      DefaultNumFixtures,
			Mode:             DefaultMode,
			Broadcast:        DefaultBroadcast,
			DBRange:          []float64{DefaultDBMin, DefaultDBMax},
			FFTWindow:        DefaultFFTWindow,
			GateThreshold:    0,
			IntensityChannel: "red",
			BandRanges: []BandRange{
				{Start: 0, End: 4, Channel: "red"},
				{Start: 4, End: 10, Channel: "green"},
				{Start: 10, End: -1, Channel: "blue"},
			},
			Beat: BeatConfig{
				Threshold: 0.1,
				MinRatio:  1.3,
				Decay:     0.85,
				Color:     []int{255, 255, 255},
			},
		},
		Target: TargetConfig{
			Transport:              DefaultTransport,
			Host:                   DefaultHost,
			Port:                   DefaultPort,
			Path:                   DefaultPath,
			WriteTimeout:           DefaultWriteTimeout,
			DialTimeout:            DefaultDialTimeout,
			Heartbeat:              false,
			MaxConsecutiveFailures: DefaultMaxConsecutiveWriteFailures,
		},
		Capture: CaptureConfig{
			Device:          DefaultDeviceID,
			Channels:        DefaultChannels,
			SampleRate:      DefaultSampleRate,
			FramesPerBuffer: DefaultFramesPerBuffer,
			Duration:        DefaultCaptureDuration,
		},
		Simulator: SimulatorConfig{
			Listen:      fmt.Sprintf(":%d", DefaultPort),
			WSListen:    fmt.Sprintf(":%d", DefaultPort+1),
			NumFixtures: DefaultNumFixtures,
			Advertise:   true,
		},
	}
}

// DBMin returns the lower bound of the spectrum range.
func (s ShowConfig) DBMin() float64 { return s.DBRange[0] }

// DBMax returns the upper bound of the spectrum range.
func (s ShowConfig) DBMax() float64 { return s.DBRange[1] }

// Bands converts the band table into analysis bands.
func (s ShowConfig) Bands() ([]analysis.Band, error) {
	bands := make([]analysis.Band, 0, len(s.BandRanges))
	for i, r := range s.BandRanges {
		ch, err := analysis.ParseChannel(r.Channel)
		if err != nil {
			return nil, fmt.Errorf("band_ranges[%d]: %w", i, err)
		}
		bands = append(bands, analysis.Band{Start: r.Start, End: r.End, Channel: ch})
	}
	return bands, nil
}

// Window returns the parsed FFT window function.
func (s ShowConfig) Window() (analysis.WindowFunc, error) {
	return analysis.ParseWindowFunc(s.FFTWindow)
}

// Channel returns the parsed intensity channel.
func (s ShowConfig) Channel() (analysis.Channel, error) {
	return analysis.ParseChannel(s.IntensityChannel)
}

// FlashColor returns the beat color. Validate guarantees three in-range values.
func (b BeatConfig) FlashColor() fixture.Color {
	if len(b.Color) != 3 {
		return fixture.Color{R: 255, G: 255, B: 255}
	}
	return fixture.Color{R: uint8(b.Color[0]), G: uint8(b.Color[1]), B: uint8(b.Color[2])}
}

// AutoDiscover reports whether the controller address is found over mDNS.
func (t TargetConfig) AutoDiscover() bool {
	return strings.EqualFold(t.Host, HostAuto)
}

// Options converts the target into transport dial options.
func (t TargetConfig) Options() transport.Options {
	return transport.Options{
		Kind:         t.Transport,
		Host:         t.Host,
		Port:         t.Port,
		Path:         t.Path,
		DialTimeout:  t.DialTimeout,
		WriteTimeout: t.WriteTimeout,
	}
}
