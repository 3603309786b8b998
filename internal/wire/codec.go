package wire

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
)

const (
	// HeaderSize is the size of the fixed frame header.
	HeaderSize = 7 * 4

	// MaxFrameSize bounds frames accepted from a stream.
	MaxFrameSize = 16 << 20
)

// Codec encodes and decodes frames of a single family.
// It holds no mutable state and is safe for concurrent use.
type Codec struct {
	family Family
	order  binary.ByteOrder
}

// NewCodec creates a codec for the family using the given byte order.
// A nil order defaults to big-endian.
func NewCodec(family Family, order binary.ByteOrder) *Codec {
	if order == nil {
		order = binary.BigEndian
	}
	return &Codec{family: family, order: order}
}

// Family returns the codec's family.
func (c *Codec) Family() Family {
	return c.family
}

// ByteOrder returns the codec's byte order.
func (c *Codec) ByteOrder() binary.ByteOrder {
	return c.order
}

// Encode lays out a message as a frame. Magic and TotalLength in m are
// ignored and computed from the family and the arguments.
func (c *Codec) Encode(m Message) ([]byte, error) {
	if _, ok := c.family.OpNames[m.OpCode]; !ok {
		return nil, fmt.Errorf("%s: %w: %d", c.family.Name, ErrUnknownOpCode, m.OpCode)
	}
	if extra := m.Options &^ c.family.Options.Mask(); extra != 0 {
		return nil, fmt.Errorf("%s: %w: 0x%x", c.family.Name, ErrUnknownOptions, uint32(extra))
	}

	total := m.EncodedLength()
	if total > math.MaxUint32 {
		return nil, NewProtocolError(c.family.Name, KindTooLarge, "encoded length %d exceeds 32 bits", total)
	}

	buf := make([]byte, total)
	o := c.order
	o.PutUint32(buf[0:], c.family.Magic)
	o.PutUint32(buf[4:], uint32(total))
	o.PutUint32(buf[8:], m.OpCode)
	o.PutUint32(buf[12:], uint32(m.Options))
	o.PutUint32(buf[16:], m.RequestID)
	o.PutUint32(buf[20:], uint32(len(m.Ints)))
	o.PutUint32(buf[24:], uint32(len(m.Strings)))

	off := HeaderSize
	for _, v := range m.Ints {
		o.PutUint32(buf[off:], v)
		off += 4
	}
	for _, s := range m.Strings {
		o.PutUint32(buf[off:], uint32(len(s)))
		off += 4
	}
	for _, s := range m.Strings {
		off += copy(buf[off:], s)
	}
	return buf, nil
}

// Decode parses exactly one frame. The magic number is checked before
// anything else; a buffer shorter than the declared length is reported as
// truncated, a longer one as trailing bytes.
func (c *Codec) Decode(b []byte) (Message, error) {
	name := c.family.Name
	o := c.order

	if len(b) < 4 {
		return Message{}, NewProtocolError(name, KindTruncated, "%d bytes, need at least 4 for magic", len(b))
	}
	if magic := o.Uint32(b); magic != c.family.Magic {
		return Message{}, NewProtocolError(name, KindBadMagic, "got 0x%08x, want 0x%08x", magic, c.family.Magic)
	}
	if len(b) < HeaderSize {
		return Message{}, NewProtocolError(name, KindTruncated, "%d bytes, header needs %d", len(b), HeaderSize)
	}

	total := uint64(o.Uint32(b[4:]))
	if total < HeaderSize {
		return Message{}, NewProtocolError(name, KindLengthMismatch, "declared length %d is below header size", total)
	}
	if uint64(len(b)) < total {
		return Message{}, NewProtocolError(name, KindTruncated, "%d bytes, declared length %d", len(b), total)
	}
	if uint64(len(b)) > total {
		return Message{}, NewProtocolError(name, KindTrailingBytes, "%d bytes after declared length %d", uint64(len(b))-total, total)
	}

	m := Message{
		Magic:       c.family.Magic,
		TotalLength: uint32(total),
		OpCode:      o.Uint32(b[8:]),
		Options:     Options(o.Uint32(b[12:])),
		RequestID:   o.Uint32(b[16:]),
	}
	nInts := uint64(o.Uint32(b[20:]))
	nStrs := uint64(o.Uint32(b[24:]))

	fixed := uint64(HeaderSize) + 4*nInts + 4*nStrs
	if fixed > total {
		return Message{}, NewProtocolError(name, KindLengthMismatch, "%d int and %d char args do not fit in %d bytes", nInts, nStrs, total)
	}

	off := uint64(HeaderSize)
	if nInts > 0 {
		m.Ints = make([]uint32, nInts)
		for i := range m.Ints {
			m.Ints[i] = o.Uint32(b[off:])
			off += 4
		}
	}

	lens := make([]uint64, nStrs)
	var strBytes uint64
	for i := range lens {
		lens[i] = uint64(o.Uint32(b[off:]))
		strBytes += lens[i]
		off += 4
	}
	if fixed+strBytes != total {
		return Message{}, NewProtocolError(name, KindLengthMismatch, "arguments occupy %d bytes, declared length %d", fixed+strBytes, total)
	}

	if nStrs > 0 {
		m.Strings = make([]string, nStrs)
		for i, n := range lens {
			m.Strings[i] = string(b[off : off+n])
			off += n
		}
	}
	return m, nil
}

// ReadMessage reads one frame from a byte stream. It reads the fixed header
// first to learn the frame length, then exactly the remaining bytes. It
// returns io.EOF if the stream ends before any byte of a new frame.
func (c *Codec) ReadMessage(r io.Reader) (Message, error) {
	name := c.family.Name
	header := make([]byte, HeaderSize)

	n, err := io.ReadFull(r, header)
	switch {
	case errors.Is(err, io.EOF) && n == 0:
		return Message{}, io.EOF
	case errors.Is(err, io.ErrUnexpectedEOF):
		if n >= 4 && c.order.Uint32(header) != c.family.Magic {
			return Message{}, NewProtocolError(name, KindBadMagic, "got 0x%08x, want 0x%08x", c.order.Uint32(header), c.family.Magic)
		}
		return Message{}, NewProtocolError(name, KindTruncated, "stream ended after %d header bytes", n)
	case err != nil:
		return Message{}, err
	}

	if magic := c.order.Uint32(header); magic != c.family.Magic {
		return Message{}, NewProtocolError(name, KindBadMagic, "got 0x%08x, want 0x%08x", magic, c.family.Magic)
	}
	total := c.order.Uint32(header[4:])
	if total < HeaderSize {
		return Message{}, NewProtocolError(name, KindLengthMismatch, "declared length %d is below header size", total)
	}
	if total > MaxFrameSize {
		return Message{}, NewProtocolError(name, KindTooLarge, "declared length %d exceeds %d", total, MaxFrameSize)
	}

	frame := make([]byte, total)
	copy(frame, header)
	if n, err := io.ReadFull(r, frame[HeaderSize:]); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return Message{}, NewProtocolError(name, KindTruncated, "stream ended after %d of %d body bytes", n, total-HeaderSize)
		}
		return Message{}, err
	}
	return c.Decode(frame)
}
