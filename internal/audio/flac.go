// SPDX-License-Identifier: MIT
package audio

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/mewkiz/flac"
)

// FLACSource decodes a FLAC file frame by frame.
type FLACSource struct {
	Path string
}

func (s *FLACSource) Load(ctx context.Context) (*Buffer, error) {
	stream, err := flac.Open(s.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to decode FLAC: %w", err)
	}
	defer stream.Close()

	info := stream.Info
	channels := int(info.NChannels)
	bitDepth := int(info.BitsPerSample)
	scale := fullScale(bitDepth)

	samples := make([]float64, 0, info.NSamples)
	interleaved := make([]int32, 0, 4096*channels)
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		frame, err := stream.ParseNext()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to parse FLAC frame: %w", err)
		}

		interleaved = interleaved[:0]
		for i := 0; i < int(frame.BlockSize); i++ {
			for ch := 0; ch < channels; ch++ {
				interleaved = append(interleaved, frame.Subframes[ch].Samples[i])
			}
		}
		samples = Mixdown(samples, interleaved, channels, scale)
	}

	return &Buffer{
		Samples:    samples,
		SampleRate: int(info.SampleRate),
		BitDepth:   bitDepth,
	}, nil
}
