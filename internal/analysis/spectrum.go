// SPDX-License-Identifier: MIT
package analysis

import (
	"fmt"
	"math"
	"math/bits"
	"math/cmplx"
	"strings"

	"gonum.org/v1/gonum/dsp/fourier"
	"gonum.org/v1/gonum/dsp/window"

	applog "lightshow/internal/log"
)

// MaxTransformSize bounds the FFT size and so the analysis window length.
const MaxTransformSize = 1 << 20

// WindowFunc selects the tapering window applied before the transform.
type WindowFunc int

// Available window functions. Rectangular applies no taper.
const (
	Rectangular WindowFunc = iota
	BartlettHann
	Blackman
	BlackmanNuttall
	Hann
	Hamming
	Lanczos
	Nuttall
)

func (w WindowFunc) String() string {
	switch w {
	case Rectangular:
		return "rectangular"
	case BartlettHann:
		return "bartletthann"
	case Blackman:
		return "blackman"
	case BlackmanNuttall:
		return "blackmannuttall"
	case Hann:
		return "hann"
	case Hamming:
		return "hamming"
	case Lanczos:
		return "lanczos"
	case Nuttall:
		return "nuttall"
	default:
		return fmt.Sprintf("WindowFunc(%d)", int(w))
	}
}

// ParseWindowFunc converts a name (case-insensitive) to a WindowFunc. An
// empty name is Rectangular; an unknown name returns Rectangular and an
// error.
func ParseWindowFunc(name string) (WindowFunc, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "rectangular", "none":
		return Rectangular, nil
	case "bartletthann":
		return BartlettHann, nil
	case "blackman":
		return Blackman, nil
	case "blackmannuttall":
		return BlackmanNuttall, nil
	case "hann", "hanning":
		return Hann, nil
	case "hamming":
		return Hamming, nil
	case "lanczos":
		return Lanczos, nil
	case "nuttall":
		return Nuttall, nil
	default:
		return Rectangular, fmt.Errorf("unknown FFT window function name: '%s'", name)
	}
}

// taper returns the coefficients of w over n samples, or nil for
// Rectangular.
func taper(w WindowFunc, n int) []float64 {
	if w == Rectangular {
		return nil
	}
	// The gonum window functions scale their input in place.
	coeffs := make([]float64, n)
	for i := range coeffs {
		coeffs[i] = 1.0
	}
	switch w {
	case BartlettHann:
		window.BartlettHann(coeffs)
	case Blackman:
		window.Blackman(coeffs)
	case BlackmanNuttall:
		window.BlackmanNuttall(coeffs)
	case Hamming:
		window.Hamming(coeffs)
	case Lanczos:
		window.Lanczos(coeffs)
	case Nuttall:
		window.Nuttall(coeffs)
	default:
		window.Hann(coeffs)
	}
	return coeffs
}

// nextPowerOfTwo returns the smallest power of two >= n. For n <= 0 it
// returns 1.
func nextPowerOfTwo(n int) int {
	if n <= 0 {
		return 1
	}
	return 1 << bits.Len(uint(n-1))
}

// SpectrumAnalyzer computes clamped decibel magnitude spectra. All buffers
// are allocated up front so Analyze does not allocate.
type SpectrumAnalyzer struct {
	fft       *fourier.FFT
	size      int // Transform size, a power of two.
	windowLen int
	dbMin     float64
	dbMax     float64
	window    WindowFunc
	coeffs    []float64 // Taper coefficients, nil when rectangular.
	input     []float64
	output    []complex128
	spectrum  []float64
}

// NewSpectrumAnalyzer creates an analyzer for windows of windowLen samples.
// The transform size is the next power of two; shorter windows are
// zero-padded.
func NewSpectrumAnalyzer(windowLen int, dbMin, dbMax float64, w WindowFunc) (*SpectrumAnalyzer, error) {
	if windowLen < 1 {
		return nil, fmt.Errorf("window length must be positive, got %d", windowLen)
	}
	if windowLen > MaxTransformSize {
		return nil, fmt.Errorf("window length %d exceeds the %d sample transform maximum", windowLen, MaxTransformSize)
	}
	if !(dbMin < dbMax) {
		return nil, fmt.Errorf("dB range [%v, %v] is empty", dbMin, dbMax)
	}
	size := nextPowerOfTwo(windowLen)
	bins := size/2 + 1

	applog.New("analysis").Infof("Initializing spectrum analyzer (window: %d, FFT size: %d, bins: %d, taper: %v, range: [%.0f, %.0f] dB)",
		windowLen, size, bins, w, dbMin, dbMax)

	return &SpectrumAnalyzer{
		fft:       fourier.NewFFT(size),
		size:      size,
		windowLen: windowLen,
		dbMin:     dbMin,
		dbMax:     dbMax,
		window:    w,
		coeffs:    taper(w, windowLen),
		input:     make([]float64, size),
		output:    make([]complex128, bins),
		spectrum:  make([]float64, bins),
	}, nil
}

// Size returns the transform size.
func (a *SpectrumAnalyzer) Size() int { return a.size }

// Bins returns the number of spectrum bins, Size()/2 + 1.
func (a *SpectrumAnalyzer) Bins() int { return len(a.spectrum) }

// Range returns the dB clamp range.
func (a *SpectrumAnalyzer) Range() (dbMin, dbMax float64) { return a.dbMin, a.dbMax }

// BinFrequency returns the center frequency (Hz) of bin for the given
// sample rate.
func (a *SpectrumAnalyzer) BinFrequency(bin, sampleRate int) float64 {
	if bin < 0 || bin >= len(a.spectrum) {
		return 0.0
	}
	return float64(bin) * float64(sampleRate) / float64(a.size)
}

// Analyze returns the spectrum of window in dB, clamped to the analyzer's
// range. Silent bins yield dbMin. The returned slice is reused by the next
// call.
func (a *SpectrumAnalyzer) Analyze(window []float64) []float64 {
	n := min(len(window), a.size)
	for i := 0; i < n; i++ {
		s := window[i]
		if a.coeffs != nil && i < len(a.coeffs) {
			s *= a.coeffs[i]
		}
		a.input[i] = s
	}
	for i := n; i < a.size; i++ {
		a.input[i] = 0
	}

	a.fft.Coefficients(a.output, a.input)

	for i, c := range a.output {
		a.spectrum[i] = a.clampDB(20 * math.Log10(cmplx.Abs(c)))
	}
	return a.spectrum
}

func (a *SpectrumAnalyzer) clampDB(db float64) float64 {
	switch {
	case math.IsNaN(db), db < a.dbMin:
		return a.dbMin
	case db > a.dbMax:
		return a.dbMax
	default:
		return db
	}
}

// Intensity writes |x| for every sample of window into dst, growing it if
// needed, and returns it.
func Intensity(window, dst []float64) []float64 {
	dst = dst[:0]
	for _, s := range window {
		dst = append(dst, math.Abs(s))
	}
	return dst
}
