// SPDX-License-Identifier: MIT
/*
Package capture records a fixed-length clip from a PortAudio input device
and hands it to the show pipeline as an audio.Buffer.

Thread Safety:
  - The PortAudio callback only writes into a pre-allocated buffer
  - The buffer is read after the stream has been stopped
*/
package capture

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gordonklaus/portaudio"

	"lightshow/internal/audio"
	applog "lightshow/internal/log"
)

// Options describe the capture.
type Options struct {
	Device          int // DefaultDeviceID for the system default.
	Channels        int
	SampleRate      int
	FramesPerBuffer int
	Duration        time.Duration
	RecordFile      string // Optional WAV file the clip is saved to.
}

// Source captures audio from an input device. It implements audio.Source.
type Source struct {
	opts Options
	log  *applog.Logger
}

var _ audio.Source = (*Source)(nil)

// New creates a capture Source.
func New(opts Options) *Source {
	return &Source{opts: opts, log: applog.New("capture")}
}

// Load records opts.Duration of audio, or less if ctx is cancelled first.
func (s *Source) Load(ctx context.Context) (*audio.Buffer, error) {
	if s.opts.SampleRate <= 0 || s.opts.Channels < 1 || s.opts.Duration <= 0 {
		return nil, fmt.Errorf("invalid capture options: %+v", s.opts)
	}
	if err := Initialize(); err != nil {
		return nil, err
	}
	defer Terminate()

	device, err := InputDevice(s.opts.Device)
	if err != nil {
		return nil, err
	}

	acc := newAccumulator(int(s.opts.Duration.Seconds()*float64(s.opts.SampleRate)), s.opts.Channels)
	params := portaudio.StreamParameters{
		Input: portaudio.StreamDeviceParameters{
			Channels: s.opts.Channels,
			Device:   device,
			Latency:  device.DefaultHighInputLatency,
		},
		Output: portaudio.StreamDeviceParameters{
			Channels: 0, // No output device
			Device:   nil,
		},
		FramesPerBuffer: s.opts.FramesPerBuffer,
		SampleRate:      float64(s.opts.SampleRate),
	}

	stream, err := portaudio.OpenStream(params, func(in []int32) {
		runtime.LockOSThread()
		defer runtime.UnlockOSThread()
		acc.add(in)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open input stream: %w", err)
	}
	defer stream.Close()

	s.log.Infof("Recording %v from '%s' (%d ch, %d Hz)", s.opts.Duration, device.Name, s.opts.Channels, s.opts.SampleRate)
	if err := stream.Start(); err != nil {
		return nil, fmt.Errorf("failed to start input stream: %w", err)
	}

	select {
	case <-acc.done:
	case <-ctx.Done():
		s.log.Warnf("Capture interrupted after %d samples", acc.len())
	}
	if err := stream.Stop(); err != nil {
		return nil, fmt.Errorf("failed to stop input stream: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	buf := &audio.Buffer{
		Samples:    acc.samples[:acc.len()],
		SampleRate: s.opts.SampleRate,
		BitDepth:   32,
	}
	if s.opts.RecordFile != "" {
		if err := audio.WriteWAV(s.opts.RecordFile, buf, 16); err != nil {
			return nil, err
		}
		s.log.Infof("Saved clip to %s", s.opts.RecordFile)
	}
	return buf, nil
}

// accumulator collects mono samples from the stream callback until it is
// full. No allocations happen in add.
type accumulator struct {
	samples  []float64
	channels int
	n        atomic.Int64
	done     chan struct{}
	once     sync.Once
}

func newAccumulator(size, channels int) *accumulator {
	return &accumulator{
		samples:  make([]float64, size),
		channels: channels,
		done:     make(chan struct{}),
	}
}

// normFactor maps int32 samples onto [-1.0, 1.0).
const normFactor = 1.0 / float64(0x80000000)

func (a *accumulator) add(in []int32) {
	n := int(a.n.Load())
	frames := len(in) / a.channels
	for f := 0; f < frames && n < len(a.samples); f++ {
		var sum float64
		for ch := 0; ch < a.channels; ch++ {
			sum += float64(in[f*a.channels+ch])
		}
		a.samples[n] = sum * normFactor / float64(a.channels)
		n++
	}
	a.n.Store(int64(n))
	if n >= len(a.samples) {
		a.once.Do(func() { close(a.done) })
	}
}

func (a *accumulator) len() int {
	return int(a.n.Load())
}
