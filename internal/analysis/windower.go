// SPDX-License-Identifier: MIT

// Package analysis turns audio windows into fixture colors: it slices the
// sample buffer per tick, computes spectra or intensities, and maps the
// resulting features onto 8-bit color channels.
package analysis

import (
	"errors"
	"fmt"
	"math"
)

// ErrEndOfStream is returned when a tick asks for a window past the end of
// the buffer. It is the normal end of a run.
var ErrEndOfStream = errors.New("end of stream")

// Windower slices a sample buffer into fixed-size, non-overlapping analysis
// windows, one per tick.
type Windower struct {
	samples []float64
	n       int
}

// NewWindower creates a Windower whose window length is
// int(sampleRate / frameRate) samples.
func NewWindower(samples []float64, sampleRate int, frameRate float64) (*Windower, error) {
	if sampleRate <= 0 {
		return nil, fmt.Errorf("sample rate must be positive, got %d", sampleRate)
	}
	if frameRate <= 0 || math.IsNaN(frameRate) || math.IsInf(frameRate, 0) {
		return nil, fmt.Errorf("frame rate must be positive, got %v", frameRate)
	}
	length := float64(sampleRate) / frameRate
	if length > MaxTransformSize {
		return nil, fmt.Errorf("frame rate %v gives windows of %.0f samples, above the %d sample maximum", frameRate, length, MaxTransformSize)
	}
	n := int(length)
	if n < 1 {
		return nil, fmt.Errorf("frame rate %v is above the sample rate %d: window length is zero", frameRate, sampleRate)
	}
	return &Windower{samples: samples, n: n}, nil
}

// Len returns the window length in samples.
func (w *Windower) Len() int { return w.n }

// Count returns the number of whole windows in the buffer.
func (w *Windower) Count() int { return len(w.samples) / w.n }

// Window returns the samples [tick*N, (tick+1)*N). The slice aliases the
// buffer and must not be modified.
func (w *Windower) Window(tick uint64) ([]float64, error) {
	if tick >= uint64(w.Count()) {
		return nil, ErrEndOfStream
	}
	start := int(tick) * w.n
	end := start + w.n
	return w.samples[start:end:end], nil
}
