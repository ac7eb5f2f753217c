// Package stream decodes the framed multi-channel byte stream that a
// container runtime returns for attach, logs and exec output.
//
// Each frame is an 8 byte header followed by a payload:
//
//	[0]    channel (0 stdin, 1 stdout, 2 stderr)
//	[1:4]  reserved
//	[4:8]  payload length, big-endian uint32
//
// Decoding works on a fully buffered input and never performs I/O.
package stream

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// HeaderSize is the fixed size of a frame header
const HeaderSize = 8

// ErrMalformedFrame is returned for an unknown channel tag or a frame that
// runs past the end of the buffer.
var ErrMalformedFrame = errors.New("malformed frame")

// Channel identifies the standard stream a frame belongs to
type Channel uint8

const (
	Stdin  Channel = 0
	Stdout Channel = 1
	Stderr Channel = 2
)

func (c Channel) String() string {
	switch c {
	case Stdin:
		return "stdin"
	case Stdout:
		return "stdout"
	case Stderr:
		return "stderr"
	}
	return fmt.Sprintf("channel(%d)", uint8(c))
}

func (c Channel) valid() bool {
	return c <= Stderr
}

// Segment locates one frame's payload inside Output.Data
type Segment struct {
	Channel Channel
	Offset  int
	Length  int
}

// Output is the decoded stream. Data holds every payload concatenated in
// the order received; Segments keeps the channel of each byte range.
type Output struct {
	Data     []byte
	Segments []Segment
}

// Bytes returns the payload of segment s
func (o *Output) Bytes(s Segment) []byte {
	return o.Data[s.Offset : s.Offset+s.Length]
}

// Split groups the payload bytes by channel, preserving order within each channel
func (o *Output) Split() map[Channel][]byte {
	out := make(map[Channel][]byte)
	for _, s := range o.Segments {
		out[s.Channel] = append(out[s.Channel], o.Bytes(s)...)
	}
	return out
}

// Demux decodes every frame in buf. On error no output is returned.
func Demux(buf []byte) (*Output, error) {
	out := &Output{Data: make([]byte, 0, len(buf))}
	err := walk(buf, func(ch Channel, payload []byte) {
		out.Segments = append(out.Segments, Segment{
			Channel: ch,
			Offset:  len(out.Data),
			Length:  len(payload),
		})
		out.Data = append(out.Data, payload...)
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// DemuxChannels decodes buf and keeps only the payload of the given
// channels, still in the order received. The whole buffer is validated
// even when frames of other channels are dropped.
func DemuxChannels(buf []byte, channels ...Channel) ([]byte, error) {
	var keep [3]bool
	for _, ch := range channels {
		if ch.valid() {
			keep[ch] = true
		}
	}

	data := make([]byte, 0, len(buf))
	err := walk(buf, func(ch Channel, payload []byte) {
		if keep[ch] {
			data = append(data, payload...)
		}
	})
	if err != nil {
		return nil, err
	}
	return data, nil
}

// walk parses frames strictly in sequence and hands each payload to fn
func walk(buf []byte, fn func(Channel, []byte)) error {
	pos := 0
	for pos < len(buf) {
		if len(buf)-pos < HeaderSize {
			return fmt.Errorf("%w: truncated header at offset %d (%d bytes left)", ErrMalformedFrame, pos, len(buf)-pos)
		}

		ch := Channel(buf[pos])
		if !ch.valid() {
			return fmt.Errorf("%w: invalid channel %d at offset %d", ErrMalformedFrame, buf[pos], pos)
		}

		size := uint64(binary.BigEndian.Uint32(buf[pos+4 : pos+HeaderSize]))
		start := pos + HeaderSize
		if size > uint64(len(buf)-start) {
			return fmt.Errorf("%w: frame at offset %d declares %d bytes, %d available", ErrMalformedFrame, pos, size, len(buf)-start)
		}

		end := start + int(size)
		fn(ch, buf[start:end])
		pos = end
	}
	return nil
}
