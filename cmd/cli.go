// SPDX-License-Identifier: MIT

// Package cmd holds the command line interface.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"time"

	"github.com/spf13/cobra"

	"lightshow/internal/audio"
	"lightshow/internal/audio/capture"
	"lightshow/internal/config"
	"lightshow/internal/discovery"
	applog "lightshow/internal/log"
	"lightshow/internal/show"
	"lightshow/internal/simulator"
	"lightshow/internal/transport"
	"lightshow/internal/tui"
	"lightshow/pkg/build"
)

// options holds the flags that override the configuration file.
type options struct {
	configFile string
	verbose    bool

	frameRate   float64
	numFixtures int
	mode        string
	broadcast   string
	transport   string
	host        string
	port        int

	// capture
	device     int
	duration   time.Duration
	recordFile string

	// simulate
	listen    string
	wsListen  string
	rodsFile  string
	headless  bool
	advertise bool
}

// runView draws the simulator until the user quits. Replaced in tests.
var runView = tui.Run

// Execute parses args and runs the selected command until it finishes or
// ctx is done. Interruption by the user is not an error.
func Execute(ctx context.Context, args []string) error {
	root := newRootCmd(&options{})
	root.SetArgs(args)
	err := root.ExecuteContext(ctx)
	if errors.Is(err, context.Canceled) && ctx.Err() != nil {
		applog.Infof("cli: Interrupted")
		return nil
	}
	return err
}

func newRootCmd(opts *options) *cobra.Command {
	buildInfo := build.GetBuildFlags()

	rootCmd := &cobra.Command{
		Use:           buildInfo.Name + " [flags] <audio-file>",
		Short:         buildInfo.Description,
		Version:       buildInfo.String(),
		Args:          cobra.ExactArgs(1),
		SilenceErrors: true,
		SilenceUsage:  true,
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd:   true,
			DisableDescriptions: true,
			DisableNoDescFlag:   true,
			HiddenDefaultCmd:    true,
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, opts)
			if err != nil {
				return err
			}
			buf, err := audio.Load(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return runShow(cmd.Context(), cfg, buf)
		},
	}
	rootCmd.SetHelpCommand(&cobra.Command{Hidden: true})

	// Show and target configuration
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&opts.configFile, "config", "",
		"Configuration file (default ./"+config.DefaultConfigFile+" if present)")
	flags.Float64VarP(&opts.frameRate, "frame-rate", "f", config.DefaultFrameRate,
		"Pipeline ticks per second")
	flags.IntVarP(&opts.numFixtures, "fixtures", "n", config.DefaultNumFixtures,
		"Number of fixtures in the array (1-255)")
	flags.StringVarP(&opts.mode, "mode", "m", config.DefaultMode,
		"Color generation mode: spectrum, intensity or beat")
	flags.StringVar(&opts.broadcast, "broadcast", config.DefaultBroadcast,
		"How a color reaches the fixtures: uniform, ripple or chase")
	flags.StringVarP(&opts.transport, "transport", "t", config.DefaultTransport,
		"Controller transport: tcp, udp, ws or log")
	flags.StringVarP(&opts.host, "host", "H", config.DefaultHost,
		"Controller host, or 'auto' to discover it over mDNS")
	flags.IntVarP(&opts.port, "port", "p", config.DefaultPort,
		"Controller port")

	// Debug Configuration
	flags.BoolVarP(&opts.verbose, "verbose", "v", false,
		"Show verbose output")

	rootCmd.AddCommand(
		newCaptureCmd(opts),
		newListCmd(),
		newSimulateCmd(opts),
	)
	return rootCmd
}

func newCaptureCmd(opts *options) *cobra.Command {
	captureCmd := &cobra.Command{
		Use:   "capture",
		Short: "Record a clip from an input device and run the show from it",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, opts)
			if err != nil {
				return err
			}
			cp := cfg.Capture
			src := capture.New(capture.Options{
				Device:          cp.Device,
				Channels:        cp.Channels,
				SampleRate:      cp.SampleRate,
				FramesPerBuffer: cp.FramesPerBuffer,
				Duration:        cp.Duration,
				RecordFile:      cp.RecordFile,
			})
			buf, err := src.Load(cmd.Context())
			if err != nil {
				return err
			}
			return runShow(cmd.Context(), cfg, buf)
		},
	}
	captureCmd.Flags().IntVarP(&opts.device, "device", "d", config.DefaultDeviceID,
		"Specify input device ID. Use 'list' command to see available devices.")
	captureCmd.Flags().DurationVar(&opts.duration, "duration", config.DefaultCaptureDuration,
		"Length of the clip to record")
	captureCmd.Flags().StringVarP(&opts.recordFile, "output", "o", "",
		"Save the recorded clip to this WAV file")
	return captureCmd
}

func newListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List available audio devices",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return capture.ListDevices(cmd.OutOrStdout())
		},
	}
}

func newSimulateCmd(opts *options) *cobra.Command {
	simulateCmd := &cobra.Command{
		Use:   "simulate",
		Short: "Run a simulated LED controller",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, opts)
			if err != nil {
				return err
			}
			return runSimulator(cmd.Context(), cfg.Simulator)
		},
	}
	simulateCmd.Flags().StringVar(&opts.listen, "listen", fmt.Sprintf(":%d", config.DefaultPort),
		"TCP and UDP listen address")
	simulateCmd.Flags().StringVar(&opts.wsListen, "ws-listen", fmt.Sprintf(":%d", config.DefaultPort+1),
		"WebSocket listen address")
	simulateCmd.Flags().StringVar(&opts.rodsFile, "rods", "",
		"YAML or JSON rod layout (default: a line of --fixtures rods)")
	simulateCmd.Flags().BoolVar(&opts.headless, "headless", false,
		"Log frames instead of drawing them")
	simulateCmd.Flags().BoolVar(&opts.advertise, "advertise", true,
		"Announce the simulator over mDNS")
	return simulateCmd
}

// loadConfig reads the configuration file and applies the flags the user
// set explicitly, then validates the result.
func loadConfig(cmd *cobra.Command, opts *options) (*config.Config, error) {
	cfg, err := config.Load(opts.configFile)
	if err != nil {
		return nil, err
	}
	opts.apply(cmd, cfg)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	level, _ := applog.ParseLevel(cfg.LogLevel)
	applog.SetLevel(level)
	return cfg, nil
}

func (o *options) apply(cmd *cobra.Command, cfg *config.Config) {
	changed := cmd.Flags().Changed
	simulating := cmd.Name() == "simulate"

	if changed("frame-rate") {
		cfg.Show.FrameRate = o.frameRate
	}
	if changed("fixtures") {
		if simulating {
			cfg.Simulator.NumFixtures = o.numFixtures
		} else {
			cfg.Show.NumFixtures = o.numFixtures
		}
	}
	if changed("mode") {
		cfg.Show.Mode = o.mode
	}
	if changed("broadcast") {
		cfg.Show.Broadcast = o.broadcast
	}
	if changed("transport") {
		cfg.Target.Transport = o.transport
	}
	if changed("host") {
		cfg.Target.Host = o.host
	}
	if changed("port") {
		cfg.Target.Port = o.port
	}
	if changed("verbose") && o.verbose {
		cfg.LogLevel = applog.LevelDebug.String()
	}

	if changed("device") {
		cfg.Capture.Device = o.device
	}
	if changed("duration") {
		cfg.Capture.Duration = o.duration
	}
	if changed("output") {
		cfg.Capture.RecordFile = o.recordFile
	}

	if changed("listen") {
		cfg.Simulator.Listen = o.listen
	}
	if changed("ws-listen") {
		cfg.Simulator.WSListen = o.wsListen
	}
	if changed("rods") {
		cfg.Simulator.RodsFile = o.rodsFile
	}
	if changed("headless") {
		cfg.Simulator.Headless = o.headless
	}
	if changed("advertise") {
		cfg.Simulator.Advertise = o.advertise
	}
}

// runShow connects to the controller and plays buf.
func runShow(ctx context.Context, cfg *config.Config, buf *audio.Buffer) error {
	opts := cfg.Target.Options()
	if cfg.Target.AutoDiscover() {
		c, err := discovery.Lookup(ctx, cfg.Target.DialTimeout)
		if err != nil {
			return &show.StageError{Stage: show.StageTransport, Err: fmt.Errorf("%w: %w", transport.ErrConnectFailure, err)}
		}
		opts.Host, opts.Port = c.Host, c.Port
	}

	t, err := transport.Dial(ctx, opts)
	if err != nil {
		return &show.StageError{Stage: show.StageTransport, Err: err}
	}
	defer t.Close()

	s, err := show.NewSession(cfg, buf, t)
	if err != nil {
		return err
	}
	applog.Infof("cli: Session %s playing %v of audio to %s %s", s.ID(), buf.Duration(), opts.Kind, opts.Addr())

	return s.Run(ctx)
}

// runSimulator serves the simulated controller until ctx is done or the
// user quits the view.
func runSimulator(ctx context.Context, sc config.SimulatorConfig) error {
	rods := simulator.LineLayout(sc.NumFixtures)
	if sc.RodsFile != "" {
		var err error
		if rods, err = simulator.LoadRods(sc.RodsFile); err != nil {
			return err
		}
	}

	model := simulator.NewModel(len(rods))
	srv, err := simulator.Listen(model, sc.Listen, sc.WSListen)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if sc.Advertise {
		port := srv.TCPAddr().(*net.TCPAddr).Port
		adv, err := discovery.Advertise(build.GetBuildFlags().Name, port)
		if err != nil {
			applog.Warnf("cli: mDNS advertisement disabled: %v", err)
		} else {
			defer adv.Shutdown()
		}
	}

	if sc.Headless {
		go simulator.LogFrames(ctx, model)
		return srv.Serve(ctx)
	}

	// The view owns the terminal; log lines would draw over it.
	prev := applog.SetOutput(io.Discard)
	defer applog.SetOutput(prev)

	errc := make(chan error, 1)
	go func() { errc <- srv.Serve(ctx) }()
	uiErr := runView(ctx, model, rods)
	cancel()
	return errors.Join(uiErr, <-errc)
}
