// SPDX-License-Identifier: MIT
package analysis

import "math"

// Gate silences windows whose peak amplitude stays below a threshold, so
// background hiss does not keep the fixtures flickering.
type Gate struct {
	threshold float64
	silence   []float64
}

// NewGate creates a gate for windows of windowLen samples. The threshold is
// in the range 0.0-1.0 where 0 = always open, 1 = closed for anything below
// full scale.
func NewGate(threshold float64, windowLen int) *Gate {
	g := &Gate{silence: make([]float64, windowLen)}
	g.SetThreshold(threshold)
	return g
}

// SetThreshold adjusts the threshold, clamping it to [0, 1].
func (g *Gate) SetThreshold(threshold float64) {
	if threshold < 0.0 || math.IsNaN(threshold) {
		threshold = 0.0
	}
	if threshold > 1.0 {
		threshold = 1.0
	}
	g.threshold = threshold
}

// Threshold returns the current threshold.
func (g *Gate) Threshold() float64 {
	return g.threshold
}

// Enabled reports whether the gate can close at all.
func (g *Gate) Enabled() bool {
	return g.threshold > 0
}

// Apply returns window unchanged when the gate is open, or a silent window
// of the same length when it is closed.
func (g *Gate) Apply(window []float64) []float64 {
	if !g.Enabled() {
		return window
	}
	var peak float64
	for _, s := range window {
		if a := math.Abs(s); a > peak {
			peak = a
		}
	}
	if peak >= g.threshold {
		return window
	}
	if len(g.silence) < len(window) {
		g.silence = make([]float64, len(window))
	}
	return g.silence[:len(window)]
}
