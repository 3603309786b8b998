package doclock

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

func TestFileLocker_SharedHoldersCoexist(t *testing.T) {
	l := NewFileLocker(t.TempDir(), "")

	a, err := l.Acquire("notebook")
	require.NoError(t, err)
	b, err := l.Acquire("notebook")
	require.NoError(t, err)

	assert.NoError(t, a.Release())
	assert.NoError(t, b.Release())
	assert.FileExists(t, l.Path("notebook"))
}

func TestFileLocker_BusyWhileWriterHoldsLock(t *testing.T) {
	l := NewFileLocker(t.TempDir(), "lck")

	// Create the file and hold an exclusive lock as a writer would.
	held, err := l.Acquire("notebook")
	require.NoError(t, err)
	require.NoError(t, held.Release())

	f, err := os.OpenFile(l.Path("notebook"), os.O_RDWR, 0)
	require.NoError(t, err)
	defer f.Close()
	require.NoError(t, unix.Flock(int(f.Fd()), unix.LOCK_EX|unix.LOCK_NB))

	_, err = l.Acquire("notebook")
	assert.ErrorIs(t, err, ErrBusy)

	require.NoError(t, unix.Flock(int(f.Fd()), unix.LOCK_UN))
	lk, err := l.Acquire("notebook")
	require.NoError(t, err)
	assert.NoError(t, lk.Release())
}

func TestFileLocker_ReleaseTwice(t *testing.T) {
	l := NewFileLocker(t.TempDir(), "")
	lk, err := l.Acquire("doc")
	require.NoError(t, err)
	require.NoError(t, lk.Release())
	assert.NoError(t, lk.Release())
}
