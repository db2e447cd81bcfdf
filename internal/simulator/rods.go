// SPDX-License-Identifier: MIT
package simulator

import (
	"errors"
	"fmt"
	"math"
	"os"

	"gopkg.in/yaml.v3"

	"lightshow/internal/fixture"
)

// Rod is the position and height of one fixture in the sculpture, in
// arbitrary units. Rod i shows fixture i.
type Rod struct {
	X      float64
	Y      float64
	Height float64
}

// rodSpec is one entry of a rods file: either cartesian x/y or polar
// angle/radius, plus a height.
type rodSpec struct {
	X      *float64 `yaml:"x"`
	Y      *float64 `yaml:"y"`
	Angle  *float64 `yaml:"angle"`
	Radius *float64 `yaml:"radius"`
	Height *float64 `yaml:"height"`
}

func (s rodSpec) rod() (Rod, error) {
	if s.Height == nil {
		return Rod{}, errors.New("missing height")
	}
	switch {
	case s.X != nil && s.Y != nil:
		return Rod{X: *s.X, Y: *s.Y, Height: *s.Height}, nil
	case s.Angle != nil && s.Radius != nil:
		return Rod{
			X:      *s.Radius * math.Cos(*s.Angle),
			Y:      *s.Radius * math.Sin(*s.Angle),
			Height: *s.Height,
		}, nil
	default:
		return Rod{}, errors.New("needs either x and y or angle and radius")
	}
}

// LoadRods reads a rods file. JSON files are read by the YAML parser, as
// JSON is valid YAML.
func LoadRods(path string) ([]Rod, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read rods file: %w", err)
	}
	return ParseRods(data)
}

// ParseRods parses a YAML or JSON list of rod specs.
func ParseRods(data []byte) ([]Rod, error) {
	var specs []rodSpec
	if err := yaml.Unmarshal(data, &specs); err != nil {
		return nil, fmt.Errorf("failed to parse rods file: %w", err)
	}
	if len(specs) == 0 || len(specs) > fixture.MaxFixtures {
		return nil, fmt.Errorf("rods file must list between 1 and %d rods, got %d", fixture.MaxFixtures, len(specs))
	}

	rods := make([]Rod, len(specs))
	for i, s := range specs {
		r, err := s.rod()
		if err != nil {
			return nil, fmt.Errorf("rod %d: %w", i, err)
		}
		rods[i] = r
	}
	return rods, nil
}

// LineLayout places n rods of equal height on a line.
func LineLayout(n int) []Rod {
	rods := make([]Rod, n)
	for i := range rods {
		rods[i] = Rod{X: float64(i), Height: 1}
	}
	return rods
}
