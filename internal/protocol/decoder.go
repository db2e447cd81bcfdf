// SPDX-License-Identifier: MIT
package protocol

import (
	"errors"
	"fmt"
	"io"

	"lightshow/internal/fixture"
)

// ErrMalformed is returned for frames that violate the wire format.
var ErrMalformed = errors.New("malformed frame")

// DecodeMessage decodes one complete frame from a message transport (UDP
// datagram, WebSocket message). num is the receiver's fixture count and must
// match the frame header.
func DecodeMessage(msg []byte, num int) (fixture.Diff, error) {
	if len(msg) < headerSize {
		return nil, fmt.Errorf("%w: empty message", ErrMalformed)
	}
	if (len(msg)-headerSize)%recordSize != 0 {
		return nil, fmt.Errorf("%w: %d trailing bytes", ErrMalformed, (len(msg)-headerSize)%recordSize)
	}
	if int(msg[0]) != num {
		return nil, fmt.Errorf("%w: header announces %d fixtures, receiver has %d", ErrMalformed, msg[0], num)
	}
	count := (len(msg) - headerSize) / recordSize
	d := make(fixture.Diff, 0, count)
	for i := 0; i < count; i++ {
		rec := msg[headerSize+i*recordSize:]
		idx := int(rec[0])
		if idx >= num {
			return nil, fmt.Errorf("%w: fixture index %d out of range for %d fixtures", ErrMalformed, idx, num)
		}
		d = append(d, fixture.Update{
			Index: idx,
			Color: fixture.Color{R: rec[1], G: rec[2], B: rec[3]},
		})
	}
	return d, nil
}

// StreamDecoder splits a byte stream (TCP) back into records. Streams carry
// no message boundaries; at a record boundary a byte equal to num is a frame
// header and a byte below num is the start of a record. This is unambiguous
// because a valid index is always smaller than num.
type StreamDecoder struct {
	r    io.ByteReader
	num  int
	rec  [recordSize - 1]byte
	seen bool // A header has been read.
}

// NewStreamDecoder reads frames for num fixtures from r.
func NewStreamDecoder(r io.ByteReader, num int) *StreamDecoder {
	return &StreamDecoder{r: r, num: num}
}

// Next returns the next record. header reports whether one or more frame
// headers preceded it. io.EOF is returned at a clean end of stream;
// io.ErrUnexpectedEOF when the stream ends inside a record.
func (d *StreamDecoder) Next() (u fixture.Update, header bool, err error) {
	for {
		b, err := d.r.ReadByte()
		if err != nil {
			return fixture.Update{}, header, err
		}
		idx := int(b)
		if idx == d.num {
			d.seen = true
			header = true
			continue
		}
		if !d.seen {
			return fixture.Update{}, header, fmt.Errorf("%w: stream starts with %d, expected header %d", ErrMalformed, b, d.num)
		}
		if idx > d.num {
			return fixture.Update{}, header, fmt.Errorf("%w: fixture index %d out of range for %d fixtures", ErrMalformed, idx, d.num)
		}
		for i := range d.rec {
			c, err := d.r.ReadByte()
			if err != nil {
				if errors.Is(err, io.EOF) {
					err = io.ErrUnexpectedEOF
				}
				return fixture.Update{}, header, err
			}
			d.rec[i] = c
		}
		return fixture.Update{
			Index: idx,
			Color: fixture.Color{R: d.rec[0], G: d.rec[1], B: d.rec[2]},
		}, header, nil
	}
}
