package history

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAddSessionPersists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "chat_history.json")
	s, err := Open(path)
	require.NoError(t, err)

	session, err := s.AddSession([]Message{
		{Role: "system", Content: "You are a desk buddy."},
		{Role: "user", Content: "Hi"},
		{Role: "assistant", Content: "Hello!"},
	})
	require.NoError(t, err)
	require.NotNil(t, session)
	assert.NotEmpty(t, session.ID)
	for _, m := range session.Messages {
		assert.False(t, m.Timestamp.IsZero())
	}

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	var onDisk struct {
		Sessions []struct {
			SessionID string `json:"session_id"`
			Messages  []struct {
				Role    string `json:"role"`
				Content string `json:"content"`
			} `json:"messages"`
		} `json:"sessions"`
	}
	require.NoError(t, json.Unmarshal(raw, &onDisk))
	require.Len(t, onDisk.Sessions, 1)
	assert.Equal(t, session.ID, onDisk.Sessions[0].SessionID)
	assert.Len(t, onDisk.Sessions[0].Messages, 3)

	reopened, err := Open(path)
	require.NoError(t, err)
	got, ok := reopened.Session(session.ID)
	require.True(t, ok)
	assert.Equal(t, "Hello!", got.Messages[2].Content)
}

func TestAddSessionSkipsSystemOnly(t *testing.T) {
	path := filepath.Join(t.TempDir(), "h.json")
	s, err := Open(path)
	require.NoError(t, err)

	session, err := s.AddSession([]Message{{Role: "system", Content: "prompt"}})
	require.NoError(t, err)
	assert.Nil(t, session)

	session, err = s.AddSession(nil)
	require.NoError(t, err)
	assert.Nil(t, session)

	assert.Empty(t, s.Sessions())
	assert.NoFileExists(t, path)
}

func TestRecent(t *testing.T) {
	s, err := Open(filepath.Join(t.TempDir(), "h.json"))
	require.NoError(t, err)

	_, err = s.AddSession([]Message{
		{Role: "system", Content: "prompt"},
		{Role: "user", Content: "one"},
		{Role: "assistant", Content: "two"},
	})
	require.NoError(t, err)
	_, err = s.AddSession([]Message{
		{Role: "user", Content: "three"},
		{Role: "system", Content: "tasks"},
		{Role: "assistant", Content: "four"},
	})
	require.NoError(t, err)

	contents := func(msgs []Message) []string {
		var out []string
		for _, m := range msgs {
			out = append(out, m.Content)
		}
		return out
	}

	assert.Equal(t, []string{"two", "three", "four"}, contents(s.Recent(3)))
	assert.Equal(t, []string{"one", "two", "three", "four"}, contents(s.Recent(10)))
	assert.Empty(t, s.Recent(0))
}

func TestOpenCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "h.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0644))

	s, err := Open(path)
	require.NoError(t, err)
	assert.Empty(t, s.Sessions())

	_, err = s.AddSession([]Message{{Role: "user", Content: "fresh start"}})
	require.NoError(t, err)

	reopened, err := Open(path)
	require.NoError(t, err)
	assert.Len(t, reopened.Sessions(), 1)
}

func TestInfoAndClear(t *testing.T) {
	path := filepath.Join(t.TempDir(), "h.json")
	s, err := Open(path)
	require.NoError(t, err)
	assert.False(t, s.Info().Exists)

	_, err = s.AddSession([]Message{{Role: "user", Content: "a"}, {Role: "assistant", Content: "b"}})
	require.NoError(t, err)

	info := s.Info()
	assert.True(t, info.Exists)
	assert.Equal(t, 1, info.Sessions)
	assert.Equal(t, 2, info.Messages)
	assert.Greater(t, info.SizeBytes, int64(0))

	require.NoError(t, s.Clear())
	assert.Empty(t, s.Sessions())
	assert.NoFileExists(t, path)
	require.NoError(t, s.Clear())
}
