// SPDX-License-Identifier: MIT
package analysis

import (
	"math"

	"lightshow/internal/fixture"
)

// BeatPolicy flashes a color on energy onsets and lets it fade between
// them. An onset is a window whose RMS energy is above threshold and has
// risen by at least minRatio since the previous window.
type BeatPolicy struct {
	threshold  float64
	minRatio   float64
	decay      float64 // Brightness multiplier applied per window without an onset.
	color      fixture.Color
	lastEnergy float64
	level      float64
}

// NewBeatPolicy creates a BeatPolicy. decay is clamped to [0, 1].
func NewBeatPolicy(threshold, minRatio, decay float64, color fixture.Color) *BeatPolicy {
	return &BeatPolicy{
		threshold: threshold,
		minRatio:  minRatio,
		decay:     math.Min(math.Max(decay, 0), 1),
		color:     color,
	}
}

func (b *BeatPolicy) Colorize(window []float64) fixture.Color {
	energy := rms(window)
	if energy > b.threshold && (b.lastEnergy == 0 || energy/b.lastEnergy > b.minRatio) {
		b.level = 1
	} else {
		b.level *= b.decay
	}
	b.lastEnergy = energy
	return fixture.Color{
		R: ToChannel(float64(b.color.R) * b.level),
		G: ToChannel(float64(b.color.G) * b.level),
		B: ToChannel(float64(b.color.B) * b.level),
	}
}

// rms calculates the root mean square energy of window.
func rms(window []float64) float64 {
	if len(window) == 0 {
		return 0.0
	}
	var sumSquare float64
	for _, s := range window {
		sumSquare += s * s
	}
	return math.Sqrt(sumSquare / float64(len(window)))
}
