package wire

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func tabletCodec() *Codec {
	return NewCodec(TabletFamily(DefaultTabletMagic), binary.BigEndian)
}

func randomMessage(r *rand.Rand, fam Family) Message {
	ops := make([]uint32, 0, len(fam.OpNames))
	for op := range fam.OpNames {
		ops = append(ops, op)
	}
	// Map iteration order is random; sort for a reproducible sequence.
	for i := 1; i < len(ops); i++ {
		for j := i; j > 0 && ops[j] < ops[j-1]; j-- {
			ops[j], ops[j-1] = ops[j-1], ops[j]
		}
	}

	m := Message{
		OpCode:    ops[r.Intn(len(ops))],
		Options:   Options(r.Uint32()) & fam.Options.Mask(),
		RequestID: r.Uint32(),
	}
	if n := r.Intn(6); n > 0 {
		m.Ints = make([]uint32, n)
		for i := range m.Ints {
			m.Ints[i] = r.Uint32()
		}
	}
	if n := r.Intn(4); n > 0 {
		m.Strings = make([]string, n)
		for i := range m.Strings {
			b := make([]byte, r.Intn(40))
			r.Read(b)
			m.Strings[i] = string(b)
		}
	}
	return m
}

func TestCodec_RoundTrip(t *testing.T) {
	r := rand.New(rand.NewSource(1))
	for _, order := range []binary.ByteOrder{binary.BigEndian, binary.LittleEndian} {
		for _, fam := range []Family{TabletFamily(DefaultTabletMagic), CameraFamily(DefaultCameraMagic)} {
			c := NewCodec(fam, order)
			for i := 0; i < 200; i++ {
				in := randomMessage(r, fam)
				b, err := c.Encode(in)
				require.NoError(t, err)

				assert.Equal(t, uint32(len(b)), order.Uint32(b[4:]), "total_length must equal encoded size")

				out, err := c.Decode(b)
				require.NoError(t, err)
				assert.Equal(t, fam.Magic, out.Magic)
				assert.Equal(t, uint32(len(b)), out.TotalLength)
				assert.Equal(t, in.OpCode, out.OpCode)
				assert.Equal(t, in.Options, out.Options)
				assert.Equal(t, in.RequestID, out.RequestID)
				assert.Equal(t, in.Ints, out.Ints)
				assert.Equal(t, in.Strings, out.Strings)
			}
		}
	}
}

func TestCodec_LoadDocumentScenario(t *testing.T) {
	c := tabletCodec()

	b, err := c.Encode(NewMessage(OpLoadDocument, TabletFlash, 0, []uint32{1}, "abc"))
	require.NoError(t, err)

	m, err := c.Decode(b)
	require.NoError(t, err)
	assert.Equal(t, uint32(100), m.OpCode)
	assert.True(t, m.Options.Has(TabletFlash))
	assert.Equal(t, []uint32{1}, m.Ints)
	assert.Equal(t, []string{"abc"}, m.Strings)
}

func TestCodec_Layout(t *testing.T) {
	c := tabletCodec()
	b, err := c.Encode(NewMessage(OpInsertPage, 0, 7, []uint32{3}, "ab", "c"))
	require.NoError(t, err)

	want := []byte{
		0x45, 0x51, 0x4c, 0x31, // magic
		0, 0, 0, 43, // total length
		0, 0, 0, 101, // op-code
		0, 0, 0, 0, // options
		0, 0, 0, 7, // request id
		0, 0, 0, 1, // int count
		0, 0, 0, 2, // char count
		0, 0, 0, 3, // int arg
		0, 0, 0, 2, // len("ab")
		0, 0, 0, 1, // len("c")
		'a', 'b', 'c',
	}
	assert.Equal(t, want, b)
}

func TestCodec_BadMagic(t *testing.T) {
	c := tabletCodec()
	b, err := c.Encode(NewMessage(OpSleep, 0, 0, nil))
	require.NoError(t, err)

	for i := 0; i < 4; i++ {
		for bit := 0; bit < 8; bit++ {
			corrupt := append([]byte(nil), b...)
			corrupt[i] ^= 1 << bit

			_, err := c.Decode(corrupt)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrBadMagic), "byte %d bit %d: %v", i, bit, err)
			assert.True(t, errors.Is(err, ErrProtocol))

			var pe *ProtocolError
			require.True(t, errors.As(err, &pe))
			assert.Equal(t, KindBadMagic, pe.Kind)
		}
	}
}

func TestCodec_TruncationAlwaysFails(t *testing.T) {
	r := rand.New(rand.NewSource(2))
	c := tabletCodec()
	for i := 0; i < 50; i++ {
		b, err := c.Encode(randomMessage(r, c.Family()))
		require.NoError(t, err)

		for cut := 1; cut <= len(b); cut++ {
			_, err := c.Decode(b[:len(b)-cut])
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrTruncated), "cut %d of %d: %v", cut, len(b), err)
		}
	}
}

func TestCodec_TrailingBytes(t *testing.T) {
	c := tabletCodec()
	b, err := c.Encode(NewMessage(OpWake, 0, 0, nil))
	require.NoError(t, err)

	_, err = c.Decode(append(b, 0))
	assert.True(t, errors.Is(err, ErrTrailingBytes))
}

func TestCodec_LengthMismatch(t *testing.T) {
	c := tabletCodec()
	b, err := c.Encode(NewMessage(OpLoadDocument, 0, 0, []uint32{1}, "abc"))
	require.NoError(t, err)

	t.Run("string length too long", func(t *testing.T) {
		bad := append([]byte(nil), b...)
		binary.BigEndian.PutUint32(bad[32:], 10)
		_, err := c.Decode(bad)
		assert.True(t, errors.Is(err, ErrLengthMismatch), "%v", err)
	})

	t.Run("counts exceed frame", func(t *testing.T) {
		bad := append([]byte(nil), b...)
		binary.BigEndian.PutUint32(bad[20:], 1000)
		_, err := c.Decode(bad)
		assert.True(t, errors.Is(err, ErrLengthMismatch), "%v", err)
	})

	t.Run("declared below header", func(t *testing.T) {
		bad := append([]byte(nil), b...)
		binary.BigEndian.PutUint32(bad[4:], 8)
		_, err := c.Decode(bad)
		assert.True(t, errors.Is(err, ErrLengthMismatch), "%v", err)
	})
}

func TestCodec_EncodeRejectsUnknown(t *testing.T) {
	c := tabletCodec()

	_, err := c.Encode(NewMessage(9999, 0, 0, nil))
	assert.True(t, errors.Is(err, ErrUnknownOpCode))

	_, err = c.Encode(NewMessage(OpSleep, Options(1<<31), 0, nil))
	assert.True(t, errors.Is(err, ErrUnknownOptions))
}

func TestCodec_FamiliesDoNotCrossDecode(t *testing.T) {
	tablet := tabletCodec()
	camera := NewCodec(CameraFamily(DefaultCameraMagic), binary.BigEndian)

	b, err := camera.Encode(NewMessage(OpCameraCapture, CameraAutofocus, 0, nil, "/tmp/shot.jpg"))
	require.NoError(t, err)

	_, err = tablet.Decode(b)
	assert.True(t, errors.Is(err, ErrBadMagic))

	m, err := camera.Decode(b)
	require.NoError(t, err)
	assert.True(t, m.Options.Has(CameraAutofocus))
}

func TestCodec_ReadMessage(t *testing.T) {
	c := tabletCodec()
	first, err := c.Encode(NewMessage(OpLoadDocument, TabletFlash, 1, []uint32{4}, "doc"))
	require.NoError(t, err)
	second, err := c.Encode(NewMessage(OpDoze, 0, 2, nil))
	require.NoError(t, err)

	r := bytes.NewReader(append(append([]byte(nil), first...), second...))

	m, err := c.ReadMessage(r)
	require.NoError(t, err)
	assert.Equal(t, OpLoadDocument, m.OpCode)
	assert.Equal(t, []string{"doc"}, m.Strings)

	m, err = c.ReadMessage(r)
	require.NoError(t, err)
	assert.Equal(t, OpDoze, m.OpCode)
	assert.Equal(t, uint32(2), m.RequestID)

	_, err = c.ReadMessage(r)
	assert.Equal(t, io.EOF, err)
}

func TestCodec_ReadMessageTruncated(t *testing.T) {
	c := tabletCodec()
	b, err := c.Encode(NewMessage(OpLoadDocument, 0, 0, []uint32{1}, "abcdef"))
	require.NoError(t, err)

	for _, n := range []int{1, HeaderSize - 1, HeaderSize, len(b) - 1} {
		_, err := c.ReadMessage(bytes.NewReader(b[:n]))
		assert.True(t, errors.Is(err, ErrTruncated), "n=%d: %v", n, err)
	}
}

func TestCodec_ReadMessageTooLarge(t *testing.T) {
	c := tabletCodec()
	header := make([]byte, HeaderSize)
	binary.BigEndian.PutUint32(header, DefaultTabletMagic)
	binary.BigEndian.PutUint32(header[4:], MaxFrameSize+1)

	_, err := c.ReadMessage(bytes.NewReader(header))
	assert.True(t, errors.Is(err, ErrTooLarge))
}
