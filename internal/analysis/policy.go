// SPDX-License-Identifier: MIT
package analysis

import (
	"fmt"
	"strings"

	"lightshow/internal/fixture"
)

// Policy turns one analysis window into one color.
type Policy interface {
	Colorize(window []float64) fixture.Color
}

// Color generation modes.
const (
	ModeSpectrum  = "spectrum"
	ModeIntensity = "intensity"
	ModeBeat      = "beat"
)

// ValidMode reports whether name is a known color generation mode.
func ValidMode(name string) bool {
	switch strings.ToLower(name) {
	case ModeSpectrum, ModeIntensity, ModeBeat:
		return true
	}
	return false
}

// SpectrumPolicy colors each channel by the average level of its bands.
type SpectrumPolicy struct {
	analyzer *SpectrumAnalyzer
	mapper   *BandMapper
}

// NewSpectrumPolicy maps the analyzer's spectrum through bands, using the
// analyzer's dB range as the input range.
func NewSpectrumPolicy(a *SpectrumAnalyzer, bands []Band) (*SpectrumPolicy, error) {
	dbMin, dbMax := a.Range()
	m, err := NewBandMapper(bands, dbMin, dbMax)
	if err != nil {
		return nil, fmt.Errorf("invalid band table: %w", err)
	}
	return &SpectrumPolicy{analyzer: a, mapper: m}, nil
}

func (p *SpectrumPolicy) Colorize(window []float64) fixture.Color {
	return p.mapper.Map(p.analyzer.Analyze(window))
}

// IntensityPolicy drives a single channel from the mean absolute amplitude
// of the window, skipping the transform. Other channels stay at 0.
type IntensityPolicy struct {
	channel Channel
	buf     []float64
}

// NewIntensityPolicy creates an IntensityPolicy for windows of windowLen
// samples.
func NewIntensityPolicy(ch Channel, windowLen int) *IntensityPolicy {
	return &IntensityPolicy{
		channel: ch,
		buf:     make([]float64, 0, windowLen),
	}
}

func (p *IntensityPolicy) Colorize(window []float64) fixture.Color {
	p.buf = Intensity(window, p.buf)
	var c fixture.Color
	if len(p.buf) == 0 {
		return c
	}
	var sum float64
	for _, v := range p.buf {
		sum += v
	}
	p.channel.set(&c, ToChannel(MapToRange(sum/float64(len(p.buf)), 0, 1, 0, 255)))
	return c
}
