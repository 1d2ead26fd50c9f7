package viewer

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestLocalMapPath(t *testing.T) {
	assert.Empty(t, localMapPath(""))
	assert.Empty(t, localMapPath("data:image/png;base64,AAAA"))
	assert.Empty(t, localMapPath("https://example.com/sky.hdr"))
	assert.True(t, filepath.IsAbs(localMapPath("sky.png")))
}

func TestEnvWatcherReportsTrackedFile(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "sky.png")
	require.NoError(t, os.WriteFile(file, []byte("a"), 0644))

	w, err := newEnvWatcher(zap.NewNop())
	require.NoError(t, err)
	w.Track(file)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	got := make(chan string, 8)
	go w.Run(ctx, func(name string) { got <- name })

	require.NoError(t, os.WriteFile(filepath.Join(dir, "other.png"), []byte("b"), 0644))
	require.NoError(t, os.WriteFile(file, []byte("c"), 0644))

	select {
	case name := <-got:
		assert.Equal(t, file, name)
	case <-time.After(5 * time.Second):
		t.Fatal("change to the tracked map was not reported")
	}
}

func TestEnvWatcherUntrack(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "sky.png")
	require.NoError(t, os.WriteFile(file, []byte("a"), 0644))

	w, err := newEnvWatcher(zap.NewNop())
	require.NoError(t, err)
	defer w.w.Close()
	w.Track(file)
	assert.Equal(t, dir, w.dir)

	w.Track("https://example.com/sky.png")
	assert.Empty(t, w.dir)
	assert.Empty(t, w.file)
}
