// SPDX-License-Identifier: MIT

// Package fixture holds the color state of an LED array: the colors the
// pipeline wants to show (current) and the colors the remote controller is
// known to show (previous), and the diff between the two.
package fixture

import (
	"errors"
	"fmt"
)

// MaxFixtures is the largest array the wire protocol can address: the
// fixture count travels in a single byte.
const MaxFixtures = 255

var (
	// ErrLengthMismatch is returned when a write does not cover exactly
	// the configured number of fixtures.
	ErrLengthMismatch = errors.New("fixture count mismatch")

	// ErrIndexOutOfRange is returned by bounds-checked accessors.
	ErrIndexOutOfRange = errors.New("fixture index out of range")
)

// Color is one RGB fixture color.
type Color struct {
	R, G, B uint8
}

// Black is the color every fixture starts with.
var Black = Color{}

func (c Color) String() string {
	return fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B)
}

// Update is a single entry of a Diff.
type Update struct {
	Index int
	Color Color
}

// Diff lists fixture updates in ascending index order.
type Diff []Update

// Indices returns the fixture indices carried by the diff.
func (d Diff) Indices() []int {
	out := make([]int, len(d))
	for i, u := range d {
		out[i] = u.Index
	}
	return out
}

// Store is the two-buffer fixture model. It is not safe for concurrent use:
// a session owns exactly one Store and touches it from one goroutine.
type Store struct {
	current  []Color
	previous []Color
}

// NewStore creates a store of num all-black fixtures.
func NewStore(num int) (*Store, error) {
	if num < 1 || num > MaxFixtures {
		return nil, fmt.Errorf("fixture count must be between 1 and %d, got %d", MaxFixtures, num)
	}
	return &Store{
		current:  make([]Color, num),
		previous: make([]Color, num),
	}, nil
}

// Len returns the fixed number of fixtures.
func (s *Store) Len() int {
	return len(s.current)
}

// Write replaces every current color. The input is copied.
func (s *Store) Write(colors []Color) error {
	if len(colors) != len(s.current) {
		return fmt.Errorf("%w: got %d colors for %d fixtures", ErrLengthMismatch, len(colors), len(s.current))
	}
	copy(s.current, colors)
	return nil
}

// Set changes the current color of a single fixture.
func (s *Store) Set(index int, c Color) error {
	if index < 0 || index >= len(s.current) {
		return fmt.Errorf("%w: %d (fixtures: %d)", ErrIndexOutOfRange, index, len(s.current))
	}
	s.current[index] = c
	return nil
}

// At returns the current color of a single fixture.
func (s *Store) At(index int) (Color, error) {
	if index < 0 || index >= len(s.current) {
		return Black, fmt.Errorf("%w: %d (fixtures: %d)", ErrIndexOutOfRange, index, len(s.current))
	}
	return s.current[index], nil
}

// Current returns a copy of the current colors.
func (s *Store) Current() []Color {
	out := make([]Color, len(s.current))
	copy(out, s.current)
	return out
}

// Diff returns the fixtures whose current color differs from the last
// committed one, or every fixture when force is set.
func (s *Store) Diff(force bool) Diff {
	return diff(s.previous, s.current, force)
}

// Commit records current as the state the controller now shows. Call it
// only after the diff has been written successfully.
func (s *Store) Commit() {
	copy(s.previous, s.current)
}

// Compare diffs two equal-length color sequences. With force set every index
// is returned regardless of equality.
func Compare(prev, cur []Color, force bool) (Diff, error) {
	if len(prev) != len(cur) {
		return nil, fmt.Errorf("%w: %d previous vs %d current", ErrLengthMismatch, len(prev), len(cur))
	}
	return diff(prev, cur, force), nil
}

// diff requires len(prev) == len(cur).
func diff(prev, cur []Color, force bool) Diff {
	d := make(Diff, 0, len(cur))
	for i, c := range cur {
		if force || c != prev[i] {
			d = append(d, Update{Index: i, Color: c})
		}
	}
	return d
}
