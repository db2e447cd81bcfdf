// SPDX-License-Identifier: MIT
/*
Package audio turns audio files into sample buffers for the show pipeline.

Every source produces a mono Buffer of float64 samples normalised to
[-1, 1]. Multi-channel input is mixed down by averaging the channels of each
frame. Decoding backends:
  - WAV via go-audio/wav
  - MP3 via hajimehoshi/go-mp3 (always 16-bit stereo)
  - FLAC via mewkiz/flac

Live capture lives in the capture subpackage, which needs PortAudio.
*/
package audio

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	applog "lightshow/internal/log"
)

// Buffer is a decoded clip: mono samples plus the rate they were taken at.
// It is not modified after the source returns it.
type Buffer struct {
	Samples    []float64
	SampleRate int
	BitDepth   int // Bit depth of the source material, informational only.
}

// Duration returns the playing time of the buffer.
func (b *Buffer) Duration() time.Duration {
	if b.SampleRate <= 0 {
		return 0
	}
	return time.Duration(len(b.Samples)) * time.Second / time.Duration(b.SampleRate)
}

// Source produces a Buffer.
type Source interface {
	Load(ctx context.Context) (*Buffer, error)
}

// NewSource returns the decoder for path, chosen by file extension.
func NewSource(path string) (Source, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("audio file not found: %w", err)
	}

	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".wav", ".wave":
		return &WAVSource{Path: path}, nil
	case ".mp3":
		return &MP3Source{Path: path}, nil
	case ".flac":
		return &FLACSource{Path: path}, nil
	default:
		return nil, fmt.Errorf("unsupported audio format: %s (supported: .wav, .mp3, .flac)", ext)
	}
}

// Load decodes path with the decoder matching its extension.
func Load(ctx context.Context, path string) (*Buffer, error) {
	src, err := NewSource(path)
	if err != nil {
		return nil, err
	}
	buf, err := src.Load(ctx)
	if err != nil {
		return nil, err
	}
	applog.New("audio").Infof("Loaded %s (%d Hz, %d-bit, %v)",
		filepath.Base(path), buf.SampleRate, buf.BitDepth, buf.Duration().Round(time.Millisecond))
	return buf, nil
}

// Mixdown appends the mono mix of the interleaved frames in src to dst,
// scaling every sample by scale. A trailing partial frame is dropped.
func Mixdown[T int | int16 | int32](dst []float64, src []T, channels int, scale float64) []float64 {
	if channels < 1 {
		channels = 1
	}
	frames := len(src) / channels
	norm := scale / float64(channels)
	for f := 0; f < frames; f++ {
		var sum float64
		for _, s := range src[f*channels : (f+1)*channels] {
			sum += float64(s)
		}
		dst = append(dst, sum*norm)
	}
	return dst
}

// fullScale returns the scale factor mapping signed integers of the given
// bit depth onto [-1, 1).
func fullScale(bitDepth int) float64 {
	if bitDepth < 1 || bitDepth > 32 {
		bitDepth = 16
	}
	return 1.0 / float64(int64(1)<<(bitDepth-1))
}
