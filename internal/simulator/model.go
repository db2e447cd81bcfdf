// SPDX-License-Identifier: MIT

// Package simulator is a software stand-in for the LED controller: it
// accepts frames over TCP, UDP and WebSocket and keeps the colors they
// describe.
package simulator

import (
	"sync"

	"lightshow/internal/fixture"
	applog "lightshow/internal/log"
)

// Stats counts what a Model has received.
type Stats struct {
	Frames  uint64 // Frame headers seen.
	Updates uint64 // Records applied.
	Ignored uint64 // Records addressed past the last fixture.
}

// Model holds the colors shown by the simulated fixtures. It is safe for
// concurrent use: every listener applies updates to the same Model.
type Model struct {
	mu      sync.Mutex
	leds    []fixture.Color
	stats   Stats
	changed chan struct{}
	log     *applog.Logger
}

// NewModel creates a model of num all-black fixtures.
func NewModel(num int) *Model {
	return &Model{
		leds:    make([]fixture.Color, num),
		changed: make(chan struct{}, 1),
		log:     applog.New("simulator"),
	}
}

// Len returns the number of fixtures.
func (m *Model) Len() int { return len(m.leds) }

// Frame counts a received frame header.
func (m *Model) Frame() {
	m.mu.Lock()
	m.stats.Frames++
	m.mu.Unlock()
	m.notify()
}

// ApplyFrame counts one frame and sets the colors it carries. Updates
// addressed past the last fixture are ignored.
func (m *Model) ApplyFrame(d fixture.Diff) {
	m.mu.Lock()
	m.stats.Frames++
	for _, u := range d {
		m.applyLocked(u)
	}
	m.mu.Unlock()
	m.notify()
}

// ApplyUpdate sets a single fixture and reports whether it was in range.
func (m *Model) ApplyUpdate(u fixture.Update) bool {
	m.mu.Lock()
	ok := m.applyLocked(u)
	m.mu.Unlock()
	if ok {
		m.notify()
	}
	return ok
}

func (m *Model) applyLocked(u fixture.Update) bool {
	if u.Index < 0 || u.Index >= len(m.leds) {
		m.stats.Ignored++
		m.log.Debugf("Ignoring update for fixture %d of %d", u.Index, len(m.leds))
		return false
	}
	m.leds[u.Index] = u.Color
	m.stats.Updates++
	return true
}

// Snapshot returns a copy of the fixture colors.
func (m *Model) Snapshot() []fixture.Color {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]fixture.Color(nil), m.leds...)
}

// Stats returns the counters.
func (m *Model) Stats() Stats {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stats
}

// Changed is signalled, coalesced, whenever the model changes.
func (m *Model) Changed() <-chan struct{} { return m.changed }

func (m *Model) notify() {
	select {
	case m.changed <- struct{}{}:
	default:
	}
}
