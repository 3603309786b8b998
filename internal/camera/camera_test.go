package camera

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Hirshol/equill-core-apps-sub000/internal/wire"
)

// framer encodes every message with the camera codec, as the real outbound
// writer does, so vocabulary violations surface in tests.
type framer struct {
	codec  *wire.Codec
	frames [][]byte
}

func (f *framer) Send(m wire.Message) error {
	b, err := f.codec.Encode(m)
	if err != nil {
		return err
	}
	f.frames = append(f.frames, b)
	return nil
}

func (f *framer) decode(t *testing.T, i int) wire.Message {
	t.Helper()
	m, err := f.codec.Decode(f.frames[i])
	require.NoError(t, err)
	return m
}

func newFramer() *framer {
	return &framer{codec: wire.NewCodec(wire.CameraFamily(wire.DefaultCameraMagic), binary.LittleEndian)}
}

func TestClient_Session(t *testing.T) {
	f := newFramer()
	c := NewClient(f, nil)

	require.NoError(t, c.Start(wire.CameraPreview|wire.CameraTorch))
	assert.True(t, c.Running())
	require.NoError(t, c.SetResolution(Resolution{Width: 1600, Height: 1200}))
	require.NoError(t, c.Capture("/tmp/page.jpg"))
	require.NoError(t, c.Stop())
	assert.False(t, c.Running())

	require.Len(t, f.frames, 4)
	assert.Equal(t, wire.OpCameraStart, f.decode(t, 0).OpCode)
	assert.Equal(t, []uint32{1600, 1200}, f.decode(t, 1).Ints)

	capture := f.decode(t, 2)
	assert.Equal(t, wire.OpCameraCapture, capture.OpCode)
	assert.Equal(t, wire.CameraTorch, capture.Options)
	assert.Equal(t, []string{"/tmp/page.jpg"}, capture.Strings)

	assert.Equal(t, wire.OpCameraStop, f.decode(t, 3).OpCode)
}

func TestClient_NotRunning(t *testing.T) {
	c := NewClient(newFramer(), nil)
	assert.ErrorIs(t, c.Capture("x"), ErrNotRunning)
	assert.ErrorIs(t, c.Stop(), ErrNotRunning)
}

func TestClient_RejectsTabletOptions(t *testing.T) {
	c := NewClient(newFramer(), nil)
	err := c.Start(wire.TabletNotify)
	assert.ErrorIs(t, err, wire.ErrUnknownOptions)
	assert.False(t, c.Running())
}
