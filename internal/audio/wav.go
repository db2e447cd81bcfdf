// SPDX-License-Identifier: MIT
package audio

import (
	"context"
	"fmt"
	"os"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// WAVSource decodes a RIFF/WAVE file.
type WAVSource struct {
	Path string
}

func (s *WAVSource) Load(ctx context.Context) (*Buffer, error) {
	f, err := os.Open(s.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open WAV file: %w", err)
	}
	defer f.Close()

	decoder := wav.NewDecoder(f)
	if !decoder.IsValidFile() {
		return nil, fmt.Errorf("invalid WAV file: %s", s.Path)
	}
	pcm, err := decoder.FullPCMBuffer()
	if err != nil {
		return nil, fmt.Errorf("failed to read samples from %s: %w", s.Path, err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	bitDepth := int(decoder.BitDepth)
	channels := int(decoder.NumChans)
	data := pcm.Data
	if bitDepth == 8 {
		// 8-bit WAV is unsigned.
		for i := range data {
			data[i] -= 128
		}
	}

	return &Buffer{
		Samples:    Mixdown(make([]float64, 0, len(data)/max(channels, 1)), data, channels, fullScale(bitDepth)),
		SampleRate: int(decoder.SampleRate),
		BitDepth:   bitDepth,
	}, nil
}

// WriteWAV saves buf as a mono PCM WAV file with the given bit depth.
// Samples outside [-1, 1] are clipped.
func WriteWAV(path string, buf *Buffer, bitDepth int) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create WAV file: %w", err)
	}

	encoder := wav.NewEncoder(f, buf.SampleRate, bitDepth, 1, 1)
	peak := float64(int64(1)<<(bitDepth-1) - 1)
	ib := &goaudio.IntBuffer{
		Format: &goaudio.Format{
			NumChannels: 1,
			SampleRate:  buf.SampleRate,
		},
		Data:           make([]int, len(buf.Samples)),
		SourceBitDepth: bitDepth,
	}
	for i, s := range buf.Samples {
		s = min(max(s, -1), 1)
		ib.Data[i] = int(s * peak)
	}

	if err := encoder.Write(ib); err != nil {
		f.Close()
		return fmt.Errorf("failed to write WAV samples: %w", err)
	}
	if err := encoder.Close(); err != nil {
		f.Close()
		return fmt.Errorf("failed to finalize WAV file: %w", err)
	}
	return f.Close()
}
