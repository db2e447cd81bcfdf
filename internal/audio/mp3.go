// SPDX-License-Identifier: MIT
package audio

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/hajimehoshi/go-mp3"
)

// mp3ChunkBytes is how much decoded PCM is read between context checks.
const mp3ChunkBytes = 64 * 1024

// MP3Source decodes an MPEG-1/2 Layer III file. The decoder always outputs
// 16-bit little-endian stereo.
type MP3Source struct {
	Path string
}

func (s *MP3Source) Load(ctx context.Context) (*Buffer, error) {
	f, err := os.Open(s.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open MP3 file: %w", err)
	}
	defer f.Close()

	decoder, err := mp3.NewDecoder(f)
	if err != nil {
		return nil, fmt.Errorf("failed to decode MP3: %w", err)
	}

	const channels, bytesPerFrame = 2, 4
	samples := make([]float64, 0, max(decoder.Length()/bytesPerFrame, 0))
	chunk := make([]byte, mp3ChunkBytes)
	pcm := make([]int16, 0, mp3ChunkBytes/2)
	var carry []byte

	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		n, err := decoder.Read(chunk)
		data := append(carry, chunk[:n]...)
		whole := len(data) / bytesPerFrame * bytesPerFrame

		pcm = pcm[:0]
		for i := 0; i < whole; i += 2 {
			pcm = append(pcm, int16(binary.LittleEndian.Uint16(data[i:i+2])))
		}
		samples = Mixdown(samples, pcm, channels, fullScale(16))
		carry = append(carry[:0], data[whole:]...)

		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("mp3 decode error: %w", err)
		}
	}

	return &Buffer{
		Samples:    samples,
		SampleRate: decoder.SampleRate(),
		BitDepth:   16,
	}, nil
}
