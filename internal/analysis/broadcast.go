// SPDX-License-Identifier: MIT
package analysis

import (
	"fmt"
	"strings"

	"lightshow/internal/fixture"
)

// Broadcaster spreads the color computed for a tick across the fixtures.
// dst holds the colors of the previous tick on entry and is overwritten.
type Broadcaster interface {
	Spread(tick uint64, c fixture.Color, dst []fixture.Color)
}

// Uniform gives every fixture the same color.
type Uniform struct{}

func (Uniform) Spread(_ uint64, c fixture.Color, dst []fixture.Color) {
	for i := range dst {
		dst[i] = c
	}
}

// Ripple feeds the new color into fixture 0 and shifts every other fixture
// one position along, so changes travel down the array.
type Ripple struct{}

func (Ripple) Spread(_ uint64, c fixture.Color, dst []fixture.Color) {
	if len(dst) == 0 {
		return
	}
	copy(dst[1:], dst[:len(dst)-1])
	dst[0] = c
}

// Chase lights one fixture per tick, stepping along the array, and turns
// the rest off.
type Chase struct{}

func (Chase) Spread(tick uint64, c fixture.Color, dst []fixture.Color) {
	if len(dst) == 0 {
		return
	}
	for i := range dst {
		dst[i] = fixture.Black
	}
	dst[tick%uint64(len(dst))] = c
}

// ParseBroadcaster returns the Broadcaster named uniform, ripple or chase.
func ParseBroadcaster(name string) (Broadcaster, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "uniform":
		return Uniform{}, nil
	case "ripple":
		return Ripple{}, nil
	case "chase":
		return Chase{}, nil
	default:
		return nil, fmt.Errorf("unknown broadcast mode '%s'", name)
	}
}
