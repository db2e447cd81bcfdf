// SPDX-License-Identifier: MIT

// Package utils holds signal generators and a scriptable transport shared by
// the package tests.
package utils

import (
	"errors"
	"math"
	"sync"
)

// ErrInjected is returned by MockTransport for sends scripted to fail.
var ErrInjected = errors.New("injected send failure")

// MockTransport records every frame it is given instead of transmitting it,
// and can be scripted to fail selected sends.
type MockTransport struct {
	mu       sync.Mutex
	Frames   [][]byte
	calls    int
	failNext int
	failOn   map[int]bool
	closed   bool
}

// FailNext makes the next n calls to Send fail.
func (m *MockTransport) FailNext(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failNext = n
}

// FailOn makes the Send calls with the given zero-based call numbers fail.
func (m *MockTransport) FailOn(calls ...int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failOn == nil {
		m.failOn = make(map[int]bool)
	}
	for _, c := range calls {
		m.failOn[c] = true
	}
}

// Send stores a copy of frame, or returns ErrInjected when scripted to fail.
func (m *MockTransport) Send(frame []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	call := m.calls
	m.calls++
	if m.closed {
		return errors.New("mock transport is closed")
	}
	if m.failNext > 0 {
		m.failNext--
		return ErrInjected
	}
	if m.failOn[call] {
		return ErrInjected
	}
	m.Frames = append(m.Frames, append([]byte(nil), frame...))
	return nil
}

// Calls returns the number of Send calls, failed ones included.
func (m *MockTransport) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// Close marks the transport closed.
func (m *MockTransport) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// Closed reports whether Close was called.
func (m *MockTransport) Closed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

// GenerateComplexWave returns a 440Hz tone with two harmonics, peaking at
// 0.9 full scale.
func GenerateComplexWave(size int, sampleRate float64) []float64 {
	buffer := make([]float64, size)
	for i := range buffer {
		tm := float64(i) / sampleRate
		signal := math.Sin(2*math.Pi*440*tm)*0.5 +
			math.Sin(2*math.Pi*880*tm)*0.3 +
			math.Sin(2*math.Pi*1320*tm)*0.2
		buffer[i] = signal * 0.9
	}
	return buffer
}

// GenerateSineWave returns a sine at frequency Hz with amplitude 0.9.
func GenerateSineWave(size int, sampleRate, frequency float64) []float64 {
	buffer := make([]float64, size)
	for i := range buffer {
		t := float64(i) / sampleRate
		buffer[i] = math.Sin(2*math.Pi*frequency*t) * 0.9
	}
	return buffer
}

// FindPeakBin returns the index of the largest value in
// magnitudes[startBin:endBin+1].
func FindPeakBin(magnitudes []float64, startBin, endBin int) int {
	if len(magnitudes) == 0 {
		return 0
	}
	if startBin < 0 {
		startBin = 0
	}
	if endBin >= len(magnitudes) {
		endBin = len(magnitudes) - 1
	}

	peakBin := startBin
	peakValue := magnitudes[startBin]
	for bin := startBin + 1; bin <= endBin; bin++ {
		if magnitudes[bin] > peakValue {
			peakValue = magnitudes[bin]
			peakBin = bin
		}
	}
	return peakBin
}
