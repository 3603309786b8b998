package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWatcher_ReloadsOnWrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "equilld.toml")
	require.NoError(t, os.WriteFile(path, []byte("[log]\nlevel = \"info\"\n"), 0o644))

	w, err := NewWatcher(path, WithDebounce(10*time.Millisecond), WithLookup(noEnv))
	require.NoError(t, err)
	defer w.Close()

	got := make(chan *Config, 4)
	w.OnChange(func(c *Config) { got <- c })

	require.NoError(t, os.WriteFile(path, []byte("[log]\nlevel = \"debug\"\n"), 0o644))

	select {
	case c := <-got:
		assert.Equal(t, "debug", c.Log.Level)
	case <-time.After(2 * time.Second):
		t.Fatal("no reload observed")
	}
}

func TestWatcher_InvalidFileKeepsObserversQuiet(t *testing.T) {
	path := filepath.Join(t.TempDir(), "equilld.toml")
	require.NoError(t, os.WriteFile(path, []byte(""), 0o644))

	w, err := NewWatcher(path, WithDebounce(10*time.Millisecond), WithLookup(noEnv))
	require.NoError(t, err)
	defer w.Close()

	got := make(chan *Config, 4)
	w.OnChange(func(c *Config) { got <- c })

	require.NoError(t, os.WriteFile(path, []byte("[loop]\nmax_split_depth = 0\n"), 0o644))

	select {
	case <-got:
		t.Fatal("invalid config delivered")
	case <-time.After(200 * time.Millisecond):
	}
}

func TestWatcher_IgnoresSiblings(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "equilld.toml")
	require.NoError(t, os.WriteFile(path, nil, 0o644))

	w, err := NewWatcher(path, WithDebounce(10*time.Millisecond), WithLookup(noEnv))
	require.NoError(t, err)
	defer w.Close()

	got := make(chan *Config, 4)
	w.OnChange(func(c *Config) { got <- c })

	require.NoError(t, os.WriteFile(filepath.Join(dir, "other.toml"), []byte("x"), 0o644))

	select {
	case <-got:
		t.Fatal("reload for unrelated file")
	case <-time.After(200 * time.Millisecond):
	}
}

func TestWatcher_CloseTwice(t *testing.T) {
	path := filepath.Join(t.TempDir(), "equilld.toml")
	w, err := NewWatcher(path)
	require.NoError(t, err)

	require.NoError(t, w.Close())
	assert.ErrorIs(t, w.Close(), ErrWatcherClosed)
}
