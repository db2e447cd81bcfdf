// SPDX-License-Identifier: MIT

// Package show runs the light show: one session drives the pipeline
// window, gate, colorize, broadcast, store, diff, encode, send and commit
// once per clock tick, all on the caller's goroutine.
package show

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"lightshow/internal/analysis"
	"lightshow/internal/audio"
	"lightshow/internal/config"
	"lightshow/internal/fixture"
	applog "lightshow/internal/log"
	"lightshow/internal/protocol"
	"lightshow/internal/transport"
)

// Stats counts what a session has done so far.
type Stats struct {
	Ticks    uint64 // Ticks that produced a window.
	Frames   uint64 // Frames written successfully, the initial sync included.
	Bytes    uint64 // Bytes written successfully.
	Failures uint64 // Recoverable write failures.
	Skipped  uint64 // Ticks with no changes and no heartbeat.
	Overruns uint64 // Ticks that ran past their deadline.
}

// Session owns the pipeline state of one show.
type Session struct {
	id          string
	windower    *analysis.Windower
	gate        *analysis.Gate
	policy      analysis.Policy
	spread      analysis.Broadcaster
	store       *fixture.Store
	colors      []fixture.Color // Broadcast output, kept across ticks.
	enc         *protocol.Encoder
	t           transport.Transport
	clock       *Clock
	heartbeat   bool
	maxFailures int
	consecutive int
	forceSync   bool
	started     bool
	stats       Stats
	log         *applog.Logger
}

// NewSession builds the pipeline described by cfg over buf, sending to t.
// Construction errors carry the stage whose setup failed.
func NewSession(cfg *config.Config, buf *audio.Buffer, t transport.Transport) (*Session, error) {
	show := cfg.Show
	id := uuid.NewString()
	log := applog.New("session").With(id[:8])

	windower, err := analysis.NewWindower(buf.Samples, buf.SampleRate, show.FrameRate)
	if err != nil {
		return nil, stageErr(StageWindow, err)
	}
	policy, err := newPolicy(show, windower.Len(), buf.SampleRate, log)
	if err != nil {
		return nil, stageErr(StageAnalyze, err)
	}
	spread, err := analysis.ParseBroadcaster(show.Broadcast)
	if err != nil {
		return nil, stageErr(StageAnalyze, err)
	}
	store, err := fixture.NewStore(show.NumFixtures)
	if err != nil {
		return nil, stageErr(StageStore, err)
	}
	clock, err := NewClock(show.FrameRate)
	if err != nil {
		return nil, stageErr(StageWindow, err)
	}

	log.Infof("New session: %d fixtures, %s mode, %s broadcast, %d windows of %d samples",
		show.NumFixtures, show.Mode, show.Broadcast, windower.Count(), windower.Len())

	return &Session{
		id:          id,
		windower:    windower,
		gate:        analysis.NewGate(show.GateThreshold, windower.Len()),
		policy:      policy,
		spread:      spread,
		store:       store,
		colors:      make([]fixture.Color, show.NumFixtures),
		enc:         protocol.NewEncoder(t),
		t:           t,
		clock:       clock,
		heartbeat:   cfg.Target.Heartbeat,
		maxFailures: cfg.Target.MaxConsecutiveFailures,
		log:         log,
	}, nil
}

// newPolicy builds the color generation policy for show.Mode.
func newPolicy(show config.ShowConfig, windowLen, sampleRate int, log *applog.Logger) (analysis.Policy, error) {
	switch strings.ToLower(show.Mode) {
	case analysis.ModeSpectrum:
		win, err := show.Window()
		if err != nil {
			return nil, err
		}
		analyzer, err := analysis.NewSpectrumAnalyzer(windowLen, show.DBMin(), show.DBMax(), win)
		if err != nil {
			return nil, err
		}
		bands, err := show.Bands()
		if err != nil {
			return nil, err
		}
		for _, b := range bands {
			end := b.End
			if end < 0 || end > analyzer.Bins() {
				end = analyzer.Bins()
			}
			log.Debugf("Band %s: bins [%d, %d) = %.0f-%.0f Hz", b.Channel, b.Start, end,
				analyzer.BinFrequency(b.Start, sampleRate), analyzer.BinFrequency(end-1, sampleRate))
		}
		return analysis.NewSpectrumPolicy(analyzer, bands)
	case analysis.ModeIntensity:
		ch, err := show.Channel()
		if err != nil {
			return nil, err
		}
		return analysis.NewIntensityPolicy(ch, windowLen), nil
	case analysis.ModeBeat:
		b := show.Beat
		return analysis.NewBeatPolicy(b.Threshold, b.MinRatio, b.Decay, b.FlashColor()), nil
	default:
		return nil, fmt.Errorf("unknown mode '%s'", show.Mode)
	}
}

// ID returns the session's unique id.
func (s *Session) ID() string { return s.id }

// Stats returns a snapshot of the session counters.
func (s *Session) Stats() Stats {
	st := s.stats
	st.Overruns = s.clock.Overruns()
	return st
}

// Start sends the full, all-black fixture state so the receiver and the
// store agree before any diff is trusted. Failure is fatal.
func (s *Session) Start(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	n, err := s.enc.Send(s.store.Len(), s.store.Diff(true))
	if err != nil {
		return stageErr(StageTransport, fmt.Errorf("%w: initial sync: %w", transport.ErrConnectFailure, err))
	}
	s.store.Commit()
	s.countFrame(n)
	s.started = true
	s.log.Infof("Initial sync sent (%d bytes)", n)
	return nil
}

// Run starts the session if needed and ticks until the audio ends, ctx is
// done or a fatal error occurs. The end of the audio is not an error.
func (s *Session) Run(ctx context.Context) error {
	if !s.started {
		if err := s.Start(ctx); err != nil {
			return err
		}
	}
	err := s.clock.Run(ctx, func(tick uint64) error {
		return s.Tick(ctx, tick)
	})
	st := s.Stats()
	s.log.Infof("Finished: %d ticks, %d frames, %d bytes, %d write failures, %d skipped, %d overruns",
		st.Ticks, st.Frames, st.Bytes, st.Failures, st.Skipped, st.Overruns)
	return err
}

// Tick runs one pipeline iteration. It returns analysis.ErrEndOfStream when
// tick is past the end of the audio, nil after a successful or recoverable
// tick, and a *StageError when the run must stop.
func (s *Session) Tick(ctx context.Context, tick uint64) error {
	window, err := s.windower.Window(tick)
	if errors.Is(err, analysis.ErrEndOfStream) {
		return err
	}
	if err != nil {
		return stageErr(StageWindow, err)
	}
	s.stats.Ticks++

	c := s.policy.Colorize(s.gate.Apply(window))
	s.spread.Spread(tick, c, s.colors)
	if err := s.store.Write(s.colors); err != nil {
		return stageErr(StageStore, err)
	}

	if r, ok := s.t.(transport.Reconnector); ok {
		fresh, err := r.Reconnect(ctx)
		if err != nil {
			return s.writeFailed(tick, fmt.Errorf("%w: %w", transport.ErrWriteFailure, err))
		}
		if fresh {
			s.log.Infof("Reconnected, forcing full sync")
			s.forceSync = true
		}
	}

	diff := s.store.Diff(s.forceSync)
	if len(diff) == 0 && !s.heartbeat {
		s.stats.Skipped++
		return nil
	}

	n, err := s.enc.Send(s.store.Len(), diff)
	if err != nil {
		if errors.Is(err, transport.ErrWriteFailure) {
			return s.writeFailed(tick, err)
		}
		return stageErr(StageEncode, err)
	}

	s.store.Commit()
	s.forceSync = false
	s.consecutive = 0
	s.countFrame(n)
	s.log.Debugf("Tick %d: color %v, %d updates, %d bytes", tick, c, len(diff), n)
	return nil
}

// writeFailed records a failed write. previous is left untouched so the
// next tick's diff carries the lost changes. Too many failures in a row
// are fatal.
func (s *Session) writeFailed(tick uint64, err error) error {
	s.stats.Failures++
	s.consecutive++
	s.log.Warnf("Tick %d: %v (%d in a row)", tick, err, s.consecutive)
	if s.maxFailures > 0 && s.consecutive >= s.maxFailures {
		return stageErr(StageTransport, fmt.Errorf("giving up after %d consecutive write failures: %w", s.consecutive, err))
	}
	return nil
}

func (s *Session) countFrame(n int) {
	s.stats.Frames++
	s.stats.Bytes += uint64(n)
}
