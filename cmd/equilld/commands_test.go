package main

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Hirshol/equill-core-apps-sub000/internal/channel"
	"github.com/Hirshol/equill-core-apps-sub000/internal/config"
	"github.com/Hirshol/equill-core-apps-sub000/internal/wire"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCommand()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "equill.toml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestVersionCommand(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "equilld dev")
	assert.Contains(t, out, "commit unknown")
}

func TestCheckConfig_Valid(t *testing.T) {
	path := writeConfig(t, "[log]\nlevel = \"warn\"\n")

	out, err := execute(t, "check-config", "--config", path)
	require.NoError(t, err)
	assert.Contains(t, out, "ok: ")
	assert.Contains(t, out, "EQUILL_LOG_LEVEL")
}

func TestCheckConfig_Invalid(t *testing.T) {
	path := writeConfig(t, "[loop]\nmax_split_depth = 0\n")

	_, err := execute(t, "check-config", "--config", path)
	require.Error(t, err)
	assert.ErrorIs(t, err, config.ErrValidationFailed)
}

func TestCheckConfig_UnknownKey(t *testing.T) {
	path := writeConfig(t, "[log]\nverbosity = 3\n")

	_, err := execute(t, "check-config", "-c", path)
	var perr *config.ParseError
	require.ErrorAs(t, err, &perr)
}

func TestCameraCapture(t *testing.T) {
	dir := t.TempDir()
	sock := filepath.Join(dir, "cam")
	rx, err := channel.ListenUnixgram(sock)
	require.NoError(t, err)
	defer rx.Close()

	path := writeConfig(t, fmt.Sprintf("[channel]\ncamera_socket = %q\n", sock))
	out, err := execute(t, "camera", "capture", "--config", path,
		"--options", "autofocus, torch", "--width", "640", "--height", "480", "/tmp/shot.jpg")
	require.NoError(t, err)
	assert.Contains(t, out, "capture requested: /tmp/shot.jpg")

	codec := wire.NewCodec(wire.CameraFamily(wire.DefaultCameraMagic), config.Default().ByteOrderValue())
	buf := make([]byte, 4096)
	var got []wire.Message
	for i := 0; i < 4; i++ {
		n, err := rx.Receive(buf)
		require.NoError(t, err)
		msg, err := codec.Decode(buf[:n])
		require.NoError(t, err)
		got = append(got, msg)
	}

	assert.Equal(t, wire.OpCameraStart, got[0].OpCode)
	assert.Equal(t, wire.CameraAutofocus|wire.CameraTorch, got[0].Options)
	assert.Equal(t, wire.OpCameraSetResolution, got[1].OpCode)
	assert.Equal(t, []uint32{640, 480}, got[1].Ints)
	assert.Equal(t, wire.OpCameraCapture, got[2].OpCode)
	assert.Equal(t, wire.CameraTorch, got[2].Options)
	assert.Equal(t, []string{"/tmp/shot.jpg"}, got[2].Strings)
	assert.Equal(t, wire.OpCameraStop, got[3].OpCode)
}

func TestCameraCapture_UnknownOption(t *testing.T) {
	_, err := execute(t, "camera", "capture", "--options", "flash", "/tmp/x.jpg")
	require.Error(t, err)
}

func TestSplitFlags(t *testing.T) {
	assert.Nil(t, splitFlags(""))
	assert.Equal(t, []string{"a", "b"}, splitFlags(" a,,b ,"))
}
