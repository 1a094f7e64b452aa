package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"deskbuddy/internal/llm"
	"deskbuddy/internal/speech/tts"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// isolate points HOME and the working directory at an empty temp dir so no
// real config or .env leaks into the test.
func isolate(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("HOME", dir)
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(dir, ".config"))
	t.Setenv("ELEVENLABS_API_KEY", "")
	t.Setenv("DEEPSEEK_API_KEY", "")
	t.Chdir(dir)
	return dir
}

func TestLoadDefaults(t *testing.T) {
	dir := isolate(t)

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "auto", cfg.TTS.Type)
	assert.Equal(t, "en", cfg.TTS.Language)
	assert.Equal(t, tts.RateNormal, cfg.TTS.Rate)
	assert.Equal(t, tts.DefaultElevenLabsVoice, cfg.TTS.ElevenLabs.VoiceID)
	assert.Empty(t, cfg.TTS.ElevenLabs.APIKey)
	assert.Zero(t, cfg.TTS.ElevenLabs.MaxRetries)

	assert.Equal(t, 3, cfg.Voice.SentenceBufferSize)
	assert.Equal(t, 200, cfg.Voice.CharCap)
	assert.Equal(t, 100*time.Millisecond, cfg.Voice.IdleWindow)
	assert.Equal(t, 50*time.Millisecond, cfg.Voice.PollInterval)
	assert.Equal(t, ".!?", cfg.Voice.Terminators)

	assert.Equal(t, llm.BackendOllama, cfg.LLM.Backend)
	assert.InDelta(t, 0.7, cfg.LLM.Temperature, 0.0001)
	assert.Equal(t, DefaultSystemPrompt, cfg.SystemPrompt)

	dataDir := filepath.Join(dir, ".config", "deskbuddy")
	assert.Equal(t, dataDir, cfg.DataDir)
	assert.Equal(t, filepath.Join(dataDir, "tasks.db"), cfg.TasksDB)
	assert.Equal(t, filepath.Join(dataDir, "chat_history.json"), cfg.HistoryFile)
	assert.Equal(t, filepath.Join(dataDir, "speech-cache"), cfg.TTS.CachePath)

	assert.Equal(t, logrus.InfoLevel, cfg.LogLevel)
	assert.Equal(t, ":65432", cfg.Link.Listen)
	assert.Equal(t, "/link", cfg.Link.Path)
	assert.Equal(t, "0.0.0.0:5000", cfg.APIListen)
}

func TestLoadEnvOverrides(t *testing.T) {
	isolate(t)
	t.Setenv("DESKBUDDY_VOICE_CHAR_CAP", "150")
	t.Setenv("DESKBUDDY_VOICE_IDLE_WINDOW", "250ms")
	t.Setenv("DESKBUDDY_TTS_RATE", "slow")
	t.Setenv("DESKBUDDY_TTS_CACHE", "false")
	t.Setenv("ELEVENLABS_API_KEY", "el-key")
	t.Setenv("DEEPSEEK_API_KEY", "ds-key")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 150, cfg.Voice.CharCap)
	assert.Equal(t, 250*time.Millisecond, cfg.Voice.IdleWindow)
	assert.Equal(t, tts.RateSlow, cfg.TTS.Rate)
	assert.Equal(t, tts.RateSlow, cfg.Voice.Rate)
	assert.Empty(t, cfg.TTS.CachePath)
	assert.Equal(t, "el-key", cfg.TTS.ElevenLabs.APIKey)
	assert.Equal(t, "ds-key", cfg.LLM.APIKey)
}

func TestLoadConfigFile(t *testing.T) {
	dir := isolate(t)

	path := filepath.Join(dir, "custom.yaml")
	content := `
tts:
  type: espeak
  language: de
voice:
  sentence_buffer_size: 1
llm:
  backend: deepseek
data:
  dir: /var/lib/deskbuddy
  tasks: /tmp/tasks.db
log:
  level: debug
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "espeak", cfg.TTS.Type)
	assert.Equal(t, "de", cfg.TTS.Language)
	assert.Equal(t, "de", cfg.Voice.Language)
	assert.Equal(t, 1, cfg.Voice.SentenceBufferSize)
	assert.Equal(t, llm.BackendDeepSeek, cfg.LLM.Backend)
	assert.Equal(t, "/tmp/tasks.db", cfg.TasksDB)
	assert.Equal(t, "/var/lib/deskbuddy/chat_history.json", cfg.HistoryFile)
	assert.Equal(t, logrus.DebugLevel, cfg.LogLevel)
}

func TestLoadMissingExplicitFile(t *testing.T) {
	dir := isolate(t)

	_, err := Load(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)
}

func TestLoadInvalidLogLevel(t *testing.T) {
	isolate(t)
	t.Setenv("DESKBUDDY_LOG_LEVEL", "chatty")

	_, err := Load("")
	assert.Error(t, err)
}
