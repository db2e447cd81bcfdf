// SPDX-License-Identifier: MIT
package analysis

import (
	"fmt"
	"math"
	"strings"

	"lightshow/internal/fixture"
)

// Channel is one of the three color channels of a fixture.
type Channel int

const (
	Red Channel = iota
	Green
	Blue
)

func (c Channel) String() string {
	switch c {
	case Red:
		return "red"
	case Green:
		return "green"
	case Blue:
		return "blue"
	default:
		return fmt.Sprintf("Channel(%d)", int(c))
	}
}

// ParseChannel converts "red", "green" or "blue" (or r/g/b) to a Channel.
func ParseChannel(name string) (Channel, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "red", "r":
		return Red, nil
	case "green", "g":
		return Green, nil
	case "blue", "b":
		return Blue, nil
	default:
		return Red, fmt.Errorf("unknown color channel '%s'", name)
	}
}

// set stores v into channel c of col.
func (c Channel) set(col *fixture.Color, v uint8) {
	switch c {
	case Red:
		col.R = v
	case Green:
		col.G = v
	case Blue:
		col.B = v
	}
}

// MapToRange maps v linearly from [inLo, inHi] onto [outLo, outHi] and clamps
// the result. It is defined on the whole extended real line: +Inf maps to
// outHi, -Inf and NaN map to outLo. When inLo == inHi the result is outLo for
// v <= inLo and outHi otherwise.
func MapToRange(v, inLo, inHi, outLo, outHi float64) float64 {
	switch {
	case math.IsInf(v, 1):
		return outHi
	case math.IsInf(v, -1), math.IsNaN(v):
		return outLo
	}
	if inHi == inLo {
		if v <= inLo {
			return outLo
		}
		return outHi
	}
	r := (v-inLo)*(outHi-outLo)/(inHi-inLo) + outLo
	lo, hi := outLo, outHi
	if lo > hi {
		lo, hi = hi, lo
	}
	return math.Min(math.Max(r, lo), hi)
}

// ToChannel truncates v into a channel value in [0, 255].
func ToChannel(v float64) uint8 {
	switch {
	case math.IsNaN(v), v <= 0:
		return 0
	case v >= 255:
		return 255
	default:
		return uint8(v)
	}
}

// Band assigns the bins [Start, End) to a color channel. A negative End
// extends the band to the last bin.
type Band struct {
	Start   int
	End     int
	Channel Channel
}

// DefaultBands is the low/mid/high split used when no table is configured.
var DefaultBands = []Band{
	{Start: 0, End: 4, Channel: Red},
	{Start: 4, End: 10, Channel: Green},
	{Start: 10, End: -1, Channel: Blue},
}

// BandMapper reduces a feature vector (spectrum bins) to one Color by
// averaging the bins of each channel and mapping the average from
// [inLo, inHi] onto [0, 255].
type BandMapper struct {
	bands  []Band
	inLo   float64
	inHi   float64
	sums   [3]float64
	counts [3]int
}

// NewBandMapper validates bands and returns a mapper for the input range
// [inLo, inHi].
func NewBandMapper(bands []Band, inLo, inHi float64) (*BandMapper, error) {
	if len(bands) == 0 {
		return nil, fmt.Errorf("band table is empty")
	}
	for i, b := range bands {
		if b.Start < 0 {
			return nil, fmt.Errorf("band %d: start %d is negative", i, b.Start)
		}
		if b.End >= 0 && b.End < b.Start {
			return nil, fmt.Errorf("band %d: end %d is before start %d", i, b.End, b.Start)
		}
		if b.Channel < Red || b.Channel > Blue {
			return nil, fmt.Errorf("band %d: invalid channel %v", i, b.Channel)
		}
	}
	return &BandMapper{
		bands: append([]Band(nil), bands...),
		inLo:  inLo,
		inHi:  inHi,
	}, nil
}

// Map returns the color for features. Band ends are clamped to the feature
// length; a channel with no bins is 0.
func (m *BandMapper) Map(features []float64) fixture.Color {
	m.sums = [3]float64{}
	m.counts = [3]int{}
	for _, b := range m.bands {
		end := b.End
		if end < 0 || end > len(features) {
			end = len(features)
		}
		for i := b.Start; i < end; i++ {
			m.sums[b.Channel] += features[i]
			m.counts[b.Channel]++
		}
	}

	var c fixture.Color
	for ch := Red; ch <= Blue; ch++ {
		if m.counts[ch] == 0 {
			continue
		}
		avg := m.sums[ch] / float64(m.counts[ch])
		ch.set(&c, ToChannel(MapToRange(avg, m.inLo, m.inHi, 0, 255)))
	}
	return c
}
