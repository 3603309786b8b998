package channel

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Hirshol/equill-core-apps-sub000/internal/wire"
)

func TestDecodeEvent_AlignedStrings(t *testing.T) {
	ev := Event{ID: EventStrokeFileReady, Ints: []uint32{4}, Strings: []string{"doc", "strokes.bin"}}
	b, err := EncodeEvent(binary.BigEndian, ev)
	require.NoError(t, err)

	// id + page + (len + "doc" + 1 pad) + (len + "strokes.bin" + 1 pad)
	assert.Len(t, b, 4+4+4+4+4+12)
	assert.Zero(t, len(b)%4)

	got, err := DecodeEvent(binary.BigEndian, b)
	require.NoError(t, err)
	assert.Equal(t, ev, got)
}

func TestDecodeEvent_UnalignedString(t *testing.T) {
	ev := Event{ID: EventError, Ints: []uint32{9, 3}, Strings: []string{"bad page"}}
	b, err := EncodeEvent(binary.LittleEndian, ev)
	require.NoError(t, err)
	assert.Len(t, b, 4+4+4+4+len("bad page"))

	got, err := DecodeEvent(binary.LittleEndian, b)
	require.NoError(t, err)
	assert.Equal(t, uint32(9), got.Int(0))
	assert.Equal(t, uint32(3), got.Int(1))
	assert.Equal(t, "bad page", got.Text(0))
}

func TestDecodeEvent_EveryEventDecodes(t *testing.T) {
	for id := EventStroke; id <= EventSleepAck; id++ {
		s, ok := LookupSchema(id)
		require.True(t, ok, "missing schema for %d", id)

		ev := Event{ID: id}
		for i, f := range s.Fields {
			if f.Kind == FieldU32 {
				ev.Ints = append(ev.Ints, uint32(i+1))
			} else {
				ev.Strings = append(ev.Strings, s.Name)
			}
		}
		b, err := EncodeEvent(binary.BigEndian, ev)
		require.NoError(t, err, s.Name)
		got, err := DecodeEvent(binary.BigEndian, b)
		require.NoError(t, err, s.Name)
		assert.Equal(t, ev, got, s.Name)
		assert.Equal(t, s.Name, got.Name())
	}
}

func TestDecodeEvent_Errors(t *testing.T) {
	t.Run("short id", func(t *testing.T) {
		_, err := DecodeEvent(binary.BigEndian, []byte{0, 0})
		assert.ErrorIs(t, err, wire.ErrTruncated)
	})

	t.Run("unknown id", func(t *testing.T) {
		ev, err := DecodeEvent(binary.BigEndian, []byte{0, 0, 0, 200})
		assert.ErrorIs(t, err, ErrUnknownEvent)
		assert.Equal(t, EventID(200), ev.ID)
	})

	t.Run("string overruns buffer", func(t *testing.T) {
		b := binary.BigEndian.AppendUint32(nil, uint32(EventSubmit))
		b = binary.BigEndian.AppendUint32(b, 1)
		b = binary.BigEndian.AppendUint32(b, 0)
		b = binary.BigEndian.AppendUint32(b, 100)
		b = append(b, "short"...)
		_, err := DecodeEvent(binary.BigEndian, b)
		assert.ErrorIs(t, err, wire.ErrTruncated)
		assert.ErrorIs(t, err, wire.ErrProtocol)
	})

	t.Run("missing padding", func(t *testing.T) {
		b := binary.BigEndian.AppendUint32(nil, uint32(EventPageStop))
		b = binary.BigEndian.AppendUint32(b, 1)
		b = binary.BigEndian.AppendUint32(b, 0)
		b = binary.BigEndian.AppendUint32(b, 3)
		b = append(b, "doc"...)
		_, err := DecodeEvent(binary.BigEndian, b)
		assert.ErrorIs(t, err, wire.ErrTruncated)
	})

	t.Run("trailing bytes", func(t *testing.T) {
		b := binary.BigEndian.AppendUint32(nil, uint32(EventSleepAck))
		b = append(b, 0, 0, 0, 0)
		_, err := DecodeEvent(binary.BigEndian, b)
		assert.ErrorIs(t, err, wire.ErrTrailingBytes)
	})
}

func TestEventID_String(t *testing.T) {
	assert.Equal(t, "page_stop", EventPageStop.String())
	assert.Equal(t, "event(77)", EventID(77).String())
	assert.True(t, EventError.IsCompletion())
	assert.False(t, EventSubmit.IsCompletion())
}

func TestEvent_AccessorsOutOfRange(t *testing.T) {
	ev := Event{ID: EventWake}
	assert.Zero(t, ev.Int(3))
	assert.Empty(t, ev.Text(0))
	assert.Zero(t, ev.Int(-1))
}
