// SPDX-License-Identifier: MIT
package analysis

import (
	"math"
	"testing"

	"lightshow/pkg/utils"
)

const (
	testSampleRate = 44100
	testWindowLen  = 1470 // 44100 Hz at 30 frames per second.
)

func TestNextPowerOfTwo(t *testing.T) {
	tests := []struct{ in, want int }{
		{-1, 1}, {0, 1}, {1, 1}, {2, 2}, {3, 4}, {8, 8}, {1000, 1024}, {1470, 2048},
	}
	for _, tt := range tests {
		if got := nextPowerOfTwo(tt.in); got != tt.want {
			t.Errorf("nextPowerOfTwo(%d) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestParseWindowFunc(t *testing.T) {
	tests := []struct {
		name    string
		want    WindowFunc
		wantErr bool
	}{
		{"", Rectangular, false},
		{"rectangular", Rectangular, false},
		{"Hann", Hann, false},
		{"hanning", Hann, false},
		{"BLACKMAN", Blackman, false},
		{"nuttall", Nuttall, false},
		{"triangle", Rectangular, true},
	}
	for _, tt := range tests {
		got, err := ParseWindowFunc(tt.name)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseWindowFunc(%q) error = %v, wantErr %v", tt.name, err, tt.wantErr)
		}
		if got != tt.want {
			t.Errorf("ParseWindowFunc(%q) = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestSpectrumAnalyzerSizes(t *testing.T) {
	a, err := NewSpectrumAnalyzer(testWindowLen, -60, 0, Rectangular)
	if err != nil {
		t.Fatal(err)
	}
	if a.Size() != 2048 {
		t.Errorf("Size() = %d, want 2048", a.Size())
	}
	if a.Bins() != 1025 {
		t.Errorf("Bins() = %d, want 1025", a.Bins())
	}
	if got := a.BinFrequency(1024, testSampleRate); got != testSampleRate/2 {
		t.Errorf("BinFrequency(Nyquist) = %v, want %v", got, testSampleRate/2)
	}
	if got := a.BinFrequency(-1, testSampleRate); got != 0 {
		t.Errorf("BinFrequency(-1) = %v, want 0", got)
	}
}

func TestNewSpectrumAnalyzerRejects(t *testing.T) {
	if _, err := NewSpectrumAnalyzer(0, -60, 0, Rectangular); err == nil {
		t.Error("zero window length accepted")
	}
	if _, err := NewSpectrumAnalyzer(1024, 0, 0, Rectangular); err == nil {
		t.Error("empty dB range accepted")
	}
	if _, err := NewSpectrumAnalyzer(MaxTransformSize+1, -60, 0, Rectangular); err == nil {
		t.Error("window longer than the transform maximum accepted")
	}
}

func TestSilentWindowIsFloor(t *testing.T) {
	for _, w := range []WindowFunc{Rectangular, Hann, Blackman} {
		a, err := NewSpectrumAnalyzer(testWindowLen, -60, 0, w)
		if err != nil {
			t.Fatal(err)
		}
		spectrum := a.Analyze(make([]float64, testWindowLen))
		for i, db := range spectrum {
			if math.IsNaN(db) || db != -60 {
				t.Fatalf("%v: bin %d = %v, want -60", w, i, db)
			}
		}
	}
}

func TestSpectrumClampedToRange(t *testing.T) {
	a, err := NewSpectrumAnalyzer(testWindowLen, -60, 0, Hann)
	if err != nil {
		t.Fatal(err)
	}
	wave := utils.GenerateComplexWave(testWindowLen, testSampleRate)
	for i, db := range a.Analyze(wave) {
		if db < -60 || db > 0 || math.IsNaN(db) {
			t.Fatalf("bin %d = %v outside [-60, 0]", i, db)
		}
	}
}

func TestSpectrumPeakAtToneFrequency(t *testing.T) {
	// A wide range keeps the loud bins from all clamping to the ceiling.
	a, err := NewSpectrumAnalyzer(testWindowLen, -120, 120, Hann)
	if err != nil {
		t.Fatal(err)
	}
	wave := utils.GenerateSineWave(testWindowLen, testSampleRate, 440)
	spectrum := a.Analyze(wave)
	peak := utils.FindPeakBin(spectrum, 1, len(spectrum)-1)
	freq := a.BinFrequency(peak, testSampleRate)
	if math.Abs(freq-440) > 2*float64(testSampleRate)/float64(a.Size()) {
		t.Errorf("peak at bin %d (%.1f Hz), want near 440 Hz", peak, freq)
	}
}

func TestAnalyzeZeroPadsShortWindow(t *testing.T) {
	a, err := NewSpectrumAnalyzer(1000, -60, 0, Rectangular)
	if err != nil {
		t.Fatal(err)
	}
	// Fill with noise first so stale padding would show up.
	a.Analyze(utils.GenerateComplexWave(1000, testSampleRate))
	for i, db := range a.Analyze(make([]float64, 10)) {
		if db != -60 {
			t.Fatalf("bin %d = %v after short silent window, want -60", i, db)
		}
	}
}

func TestAnalyzeHotPath(t *testing.T) {
	a, err := NewSpectrumAnalyzer(testWindowLen, -60, 0, Hann)
	if err != nil {
		t.Fatal(err)
	}
	wave := utils.GenerateComplexWave(testWindowLen, testSampleRate)

	// Warm-up call so the first call does not count.
	a.Analyze(wave)
	allocs := testing.AllocsPerRun(100, func() {
		a.Analyze(wave)
	})
	if allocs > 0 {
		t.Errorf("Expected zero allocations in Analyze hot path, got %.1f", allocs)
	}
}

func TestIntensity(t *testing.T) {
	got := Intensity([]float64{-0.5, 0.25, 0, -1}, nil)
	want := []float64{0.5, 0.25, 0, 1}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Intensity[%d] = %v, want %v", i, got[i], want[i])
		}
	}
}

func BenchmarkAnalyze(b *testing.B) {
	a, err := NewSpectrumAnalyzer(testWindowLen, -60, 0, Hann)
	if err != nil {
		b.Fatal(err)
	}
	wave := utils.GenerateComplexWave(testWindowLen, testSampleRate)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		a.Analyze(wave)
	}
}
