// SPDX-License-Identifier: MIT
package show

import (
	"context"
	"errors"
	"testing"

	"lightshow/internal/analysis"
	"lightshow/internal/audio"
	"lightshow/internal/config"
	"lightshow/internal/fixture"
	"lightshow/internal/protocol"
	"lightshow/internal/transport"
	"lightshow/pkg/utils"
)

const (
	testRate      = 100000
	testWindowLen = 100 // testRate / 1000 fps
	testFixtures  = 4
)

func testConfig() *config.Config {
	cfg := config.Default()
	cfg.Show.FrameRate = 1000
	cfg.Show.NumFixtures = testFixtures
	cfg.Show.Mode = analysis.ModeIntensity
	cfg.Show.Broadcast = "ripple"
	cfg.Target.Heartbeat = false
	cfg.Target.MaxConsecutiveFailures = 0
	return cfg
}

// levelBuffer returns audio whose n-th window has constant amplitude
// levels[n].
func levelBuffer(levels ...float64) *audio.Buffer {
	samples := make([]float64, 0, len(levels)*testWindowLen)
	for _, l := range levels {
		for i := 0; i < testWindowLen; i++ {
			samples = append(samples, l)
		}
	}
	return &audio.Buffer{Samples: samples, SampleRate: testRate, BitDepth: 16}
}

func newTestSession(t *testing.T, cfg *config.Config, buf *audio.Buffer, tr transport.Transport) *Session {
	t.Helper()
	s, err := NewSession(cfg, buf, tr)
	if err != nil {
		t.Fatalf("NewSession: %v", err)
	}
	return s
}

// receiver applies frames the way a controller would.
type receiver struct {
	leds []fixture.Color
}

func (r *receiver) apply(t *testing.T, frame []byte) {
	t.Helper()
	d, err := protocol.DecodeMessage(frame, len(r.leds))
	if err != nil {
		t.Fatalf("receiver rejected frame %v: %v", frame, err)
	}
	for _, u := range d {
		r.leds[u.Index] = u.Color
	}
}

func sameColors(a, b []fixture.Color) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestStartSendsFullBlackFrame(t *testing.T) {
	mock := &utils.MockTransport{}
	s := newTestSession(t, testConfig(), levelBuffer(0), mock)
	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if len(mock.Frames) != 1 {
		t.Fatalf("sent %d frames, want 1", len(mock.Frames))
	}
	want := []byte{testFixtures, 0, 0, 0, 0, 1, 0, 0, 0, 2, 0, 0, 0, 3, 0, 0, 0}
	if string(mock.Frames[0]) != string(want) {
		t.Errorf("initial frame = %v, want %v", mock.Frames[0], want)
	}
	if st := s.Stats(); st.Frames != 1 || st.Bytes != uint64(len(want)) {
		t.Errorf("Stats() = %+v", st)
	}
}

func TestStartFailureIsFatal(t *testing.T) {
	mock := &utils.MockTransport{}
	mock.FailNext(1)
	s := newTestSession(t, testConfig(), levelBuffer(0), mock)

	err := s.Start(context.Background())
	var se *StageError
	if !errors.As(err, &se) || se.Stage != StageTransport {
		t.Fatalf("Start() = %v, want transport StageError", err)
	}
	if !errors.Is(err, transport.ErrConnectFailure) {
		t.Errorf("Start() = %v, want ErrConnectFailure in chain", err)
	}
}

func TestFailedWritesAreResent(t *testing.T) {
	mock := &utils.MockTransport{}
	// Call 0 is the initial sync. Ticks 1, 2 and 4 fail.
	mock.FailOn(2, 3, 5)
	levels := []float64{0.2, 0.4, 0.6, 0.6, 0.8, 0.1, 0.1, 0.9}
	s := newTestSession(t, testConfig(), levelBuffer(levels...), mock)
	ctx := context.Background()
	if err := s.Start(ctx); err != nil {
		t.Fatal(err)
	}

	rx := &receiver{leds: make([]fixture.Color, testFixtures)}
	rx.apply(t, mock.Frames[0])
	applied := 1

	for tick := uint64(0); tick < uint64(len(levels)); tick++ {
		if err := s.Tick(ctx, tick); err != nil {
			t.Fatalf("Tick(%d): %v", tick, err)
		}
		sent := len(mock.Frames) > applied
		for ; applied < len(mock.Frames); applied++ {
			rx.apply(t, mock.Frames[applied])
		}
		if sent && !sameColors(rx.leds, s.store.Current()) {
			t.Errorf("tick %d: receiver shows %v, store has %v", tick, rx.leds, s.store.Current())
		}
	}
	if err := s.Tick(ctx, uint64(len(levels))); !errors.Is(err, analysis.ErrEndOfStream) {
		t.Errorf("Tick past the end = %v, want ErrEndOfStream", err)
	}
	if st := s.Stats(); st.Failures != 3 {
		t.Errorf("Failures = %d, want 3", st.Failures)
	}
}

func TestConsecutiveFailuresEscalate(t *testing.T) {
	cfg := testConfig()
	cfg.Target.MaxConsecutiveFailures = 3
	mock := &utils.MockTransport{}
	s := newTestSession(t, cfg, levelBuffer(0.1, 0.2, 0.3, 0.4), mock)
	ctx := context.Background()
	if err := s.Start(ctx); err != nil {
		t.Fatal(err)
	}
	mock.FailNext(10)

	for tick := uint64(0); tick < uint64(2); tick++ {
		if err := s.Tick(ctx, tick); err != nil {
			t.Fatalf("Tick(%d) = %v, want recoverable", tick, err)
		}
	}
	err := s.Tick(ctx, 2)
	var se *StageError
	if !errors.As(err, &se) || se.Stage != StageTransport {
		t.Fatalf("third failure = %v, want transport StageError", err)
	}
	if !errors.Is(err, transport.ErrWriteFailure) {
		t.Errorf("error chain lacks ErrWriteFailure: %v", err)
	}
}

func TestSuccessResetsFailureCount(t *testing.T) {
	cfg := testConfig()
	cfg.Target.MaxConsecutiveFailures = 2
	mock := &utils.MockTransport{}
	mock.FailOn(1, 3, 5)
	s := newTestSession(t, cfg, levelBuffer(0.1, 0.2, 0.3, 0.4, 0.5, 0.6), mock)
	ctx := context.Background()
	if err := s.Start(ctx); err != nil {
		t.Fatal(err)
	}
	for tick := uint64(0); tick < uint64(6); tick++ {
		if err := s.Tick(ctx, tick); err != nil {
			t.Fatalf("Tick(%d) = %v, want recoverable", tick, err)
		}
	}
}

func TestUnchangedTickSkippedWithoutHeartbeat(t *testing.T) {
	mock := &utils.MockTransport{}
	s := newTestSession(t, testConfig(), levelBuffer(0, 0), mock)
	ctx := context.Background()
	if err := s.Start(ctx); err != nil {
		t.Fatal(err)
	}
	if err := s.Tick(ctx, 0); err != nil {
		t.Fatal(err)
	}
	if mock.Calls() != 1 {
		t.Errorf("Send called %d times, want only the initial sync", mock.Calls())
	}
	if st := s.Stats(); st.Skipped != 1 || st.Ticks != 1 {
		t.Errorf("Stats() = %+v, want 1 tick skipped", st)
	}
}

func TestHeartbeatSendsHeaderOnly(t *testing.T) {
	cfg := testConfig()
	cfg.Target.Heartbeat = true
	mock := &utils.MockTransport{}
	s := newTestSession(t, cfg, levelBuffer(0), mock)
	ctx := context.Background()
	if err := s.Start(ctx); err != nil {
		t.Fatal(err)
	}
	if err := s.Tick(ctx, 0); err != nil {
		t.Fatal(err)
	}
	if len(mock.Frames) != 2 {
		t.Fatalf("sent %d frames, want 2", len(mock.Frames))
	}
	if got := mock.Frames[1]; len(got) != 1 || got[0] != testFixtures {
		t.Errorf("heartbeat frame = %v, want [%d]", got, testFixtures)
	}
}

// reconnectingTransport reports a fresh connection for each queued true.
type reconnectingTransport struct {
	*utils.MockTransport
	fresh []bool
	err   error
}

func (r *reconnectingTransport) Reconnect(context.Context) (bool, error) {
	if r.err != nil {
		return false, r.err
	}
	if len(r.fresh) == 0 {
		return false, nil
	}
	f := r.fresh[0]
	r.fresh = r.fresh[1:]
	return f, nil
}

func TestReconnectForcesFullSync(t *testing.T) {
	rt := &reconnectingTransport{MockTransport: &utils.MockTransport{}, fresh: []bool{true, false}}
	s := newTestSession(t, testConfig(), levelBuffer(0, 0), rt)
	ctx := context.Background()
	if err := s.Start(ctx); err != nil {
		t.Fatal(err)
	}

	if err := s.Tick(ctx, 0); err != nil {
		t.Fatal(err)
	}
	if len(rt.Frames) != 2 || len(rt.Frames[1]) != 1+4*testFixtures {
		t.Fatalf("frames after reconnect = %v, want a full frame", rt.Frames)
	}

	if err := s.Tick(ctx, 1); err != nil {
		t.Fatal(err)
	}
	if len(rt.Frames) != 2 {
		t.Errorf("unchanged tick after the resync sent %v", rt.Frames[2:])
	}
}

func TestReconnectErrorIsRecoverable(t *testing.T) {
	rt := &reconnectingTransport{MockTransport: &utils.MockTransport{}}
	s := newTestSession(t, testConfig(), levelBuffer(0.5), rt)
	ctx := context.Background()
	if err := s.Start(ctx); err != nil {
		t.Fatal(err)
	}
	rt.err = errors.New("connection refused")

	if err := s.Tick(ctx, 0); err != nil {
		t.Fatalf("Tick() = %v, want recoverable", err)
	}
	if rt.Calls() != 1 {
		t.Errorf("Send called %d times, want 1", rt.Calls())
	}
	if st := s.Stats(); st.Failures != 1 {
		t.Errorf("Failures = %d, want 1", st.Failures)
	}
}

func TestRunEndsWithAudio(t *testing.T) {
	mock := &utils.MockTransport{}
	s := newTestSession(t, testConfig(), levelBuffer(0.1, 0.2, 0.3, 0.4, 0.5), mock)
	if err := s.Run(context.Background()); err != nil {
		t.Fatalf("Run() = %v, want nil", err)
	}
	st := s.Stats()
	if st.Ticks != 5 || st.Frames != 6 {
		t.Errorf("Stats() = %+v, want 5 ticks and 6 frames", st)
	}
}

func TestRunCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	s := newTestSession(t, testConfig(), levelBuffer(0.1), &utils.MockTransport{})
	if err := s.Run(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("Run() = %v, want context.Canceled", err)
	}
}

func TestNewSessionStages(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*config.Config)
		buf    *audio.Buffer
		stage  Stage
	}{
		{"frame rate above sample rate", func(c *config.Config) { c.Show.FrameRate = 1000 }, &audio.Buffer{SampleRate: 100}, StageWindow},
		{"frame rate too low", func(c *config.Config) {
			c.Show.Mode = analysis.ModeSpectrum
			c.Show.FrameRate = 1e-9
		}, &audio.Buffer{SampleRate: 44100}, StageWindow},
		{"unknown mode", func(c *config.Config) { c.Show.Mode = "strobe" }, levelBuffer(0), StageAnalyze},
		{"bad broadcast", func(c *config.Config) { c.Show.Broadcast = "zigzag" }, levelBuffer(0), StageAnalyze},
		{"bad window", func(c *config.Config) {
			c.Show.Mode = analysis.ModeSpectrum
			c.Show.FFTWindow = "kaiser"
		}, levelBuffer(0), StageAnalyze},
		{"no fixtures", func(c *config.Config) { c.Show.NumFixtures = 0 }, levelBuffer(0), StageStore},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig()
			tt.mutate(cfg)
			_, err := NewSession(cfg, tt.buf, &utils.MockTransport{})
			var se *StageError
			if !errors.As(err, &se) {
				t.Fatalf("NewSession() = %v, want StageError", err)
			}
			if se.Stage != tt.stage {
				t.Errorf("stage = %s, want %s", se.Stage, tt.stage)
			}
		})
	}
}

func TestSpectrumSessionRuns(t *testing.T) {
	cfg := testConfig()
	cfg.Show.Mode = analysis.ModeSpectrum
	cfg.Show.FFTWindow = "hann"
	buf := &audio.Buffer{Samples: utils.GenerateSineWave(10*testWindowLen, testRate, 440), SampleRate: testRate}
	mock := &utils.MockTransport{}
	s := newTestSession(t, cfg, buf, mock)
	if err := s.Run(context.Background()); err != nil {
		t.Fatalf("Run() = %v", err)
	}
	if s.Stats().Ticks != 10 {
		t.Errorf("Ticks = %d, want 10", s.Stats().Ticks)
	}
	if s.ID() == "" {
		t.Error("empty session id")
	}
}
