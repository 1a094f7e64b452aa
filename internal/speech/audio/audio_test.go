package audio

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeClip(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestMockPlaysClipsInOrder(t *testing.T) {
	dir := t.TempDir()
	m := NewMock(30 * time.Millisecond)
	require.NoError(t, m.Init())

	require.NoError(t, m.Load(writeClip(t, dir, "a.txt", "first")))
	require.NoError(t, m.Play())
	assert.True(t, m.IsBusy())

	assert.Eventually(t, func() bool { return !m.IsBusy() }, time.Second, 5*time.Millisecond)

	require.NoError(t, m.Load(writeClip(t, dir, "b.txt", "second")))
	require.NoError(t, m.Play())

	assert.Equal(t, []string{"first", "second"}, m.Played())
}

func TestMockStop(t *testing.T) {
	m := NewMock(time.Hour)
	require.NoError(t, m.Init())
	require.NoError(t, m.Load(writeClip(t, t.TempDir(), "a.txt", "long")))
	require.NoError(t, m.Play())
	require.True(t, m.IsBusy())

	require.NoError(t, m.Stop())
	assert.False(t, m.IsBusy())
	assert.Equal(t, 1, m.Stops())

	// idle stop is a no-op
	require.NoError(t, m.Stop())
	assert.Equal(t, 1, m.Stops())
}

func TestMockErrors(t *testing.T) {
	m := NewMock(0)
	assert.ErrorIs(t, m.Load("nowhere"), ErrNotInitialized)

	require.NoError(t, m.Init())
	assert.ErrorIs(t, m.Play(), ErrNothingLoaded)
	assert.Error(t, m.Load(filepath.Join(t.TempDir(), "missing.txt")))

	boom := errors.New("boom")
	m.PlayErr = boom
	require.NoError(t, m.Load(writeClip(t, t.TempDir(), "a.txt", "x")))
	assert.ErrorIs(t, m.Play(), boom)

	require.NoError(t, m.Close())
	assert.True(t, m.Closed())
}

func TestSpeakerRequiresInit(t *testing.T) {
	s := NewSpeaker()
	assert.ErrorIs(t, s.Load("clip.mp3"), ErrNotInitialized)
	assert.ErrorIs(t, s.Play(), ErrNothingLoaded)
	assert.False(t, s.IsBusy())
	assert.NoError(t, s.Stop())
	assert.NoError(t, s.Close())
}
