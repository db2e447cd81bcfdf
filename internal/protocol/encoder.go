// SPDX-License-Identifier: MIT

/*
Package protocol implements the LED controller wire format.

Frame layout (one frame per tick):

	+-------------+-----------+-----+-------+------+-----------+-----
	| num (uint8) | idx (u8)  | red | green | blue | idx (u8)  | ...
	+-------------+-----------+-----+-------+------+-----------+-----
	|<- 1 byte ->|<---------- 4 bytes per record ---------->|

There is no length prefix: the record count of a message is (len-1)/4.
Records are written in ascending fixture index order. The first frame of a
session carries every fixture.
*/
package protocol

import (
	"fmt"

	"lightshow/internal/fixture"
	"lightshow/internal/transport"
)

const (
	headerSize = 1
	recordSize = 4
)

// MaxFrameSize is the size of a full frame for the largest array.
const MaxFrameSize = headerSize + fixture.MaxFixtures*recordSize

// Encode appends the frame for d to dst and returns the extended slice.
func Encode(dst []byte, num int, d fixture.Diff) ([]byte, error) {
	if num < 0 || num > fixture.MaxFixtures {
		return dst, fmt.Errorf("fixture count %d does not fit the frame header", num)
	}
	dst = append(dst, byte(num))
	for _, u := range d {
		if u.Index < 0 || u.Index >= num {
			return dst, fmt.Errorf("fixture index %d out of range for %d fixtures", u.Index, num)
		}
		dst = append(dst, byte(u.Index), u.Color.R, u.Color.G, u.Color.B)
	}
	return dst, nil
}

// Encoder serializes diffs and writes them to a transport, reusing one
// frame buffer across ticks.
type Encoder struct {
	t   transport.Transport
	buf []byte
}

// NewEncoder creates an Encoder writing to t.
func NewEncoder(t transport.Transport) *Encoder {
	return &Encoder{
		t:   t,
		buf: make([]byte, 0, MaxFrameSize),
	}
}

// Send encodes d and writes the frame. It returns the number of bytes
// written. Transport errors are wrapped in transport.ErrWriteFailure; encode
// errors are returned as is since they indicate a programming error.
func (e *Encoder) Send(num int, d fixture.Diff) (int, error) {
	frame, err := Encode(e.buf[:0], num, d)
	if err != nil {
		return 0, err
	}
	e.buf = frame
	if err := e.t.Send(frame); err != nil {
		return 0, fmt.Errorf("%w: %w", transport.ErrWriteFailure, err)
	}
	return len(frame), nil
}
