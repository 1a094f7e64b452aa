package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"deskbuddy/internal/llm"
	"deskbuddy/internal/speech/tts"
	"deskbuddy/internal/speech/voice"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

const DefaultSystemPrompt = "You are AI Desk Buddy, a helpful assistant. " +
	"Use the context from previous conversations to provide relevant answers. " +
	"You can help manage tasks and respond to date/time queries accurately. " +
	"When you help with tasks, always acknowledge them clearly."

// Config is the resolved application configuration.
type Config struct {
	TTS   tts.Config
	Voice voice.Config
	LLM   llm.Config

	SystemPrompt   string
	HistoryContext int

	DataDir     string
	TasksDB     string
	HistoryFile string

	LogLevel logrus.Level

	Link LinkConfig

	// APIListen is where "deskbuddy serve" accepts POST /ask.
	APIListen string
}

// LinkConfig addresses the laptop/Pi websocket link.
type LinkConfig struct {
	Listen string
	Path   string
	Server string
	Name   string
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("tts.type", "auto") // Auto-select best engine
	v.SetDefault("tts.language", "en")
	v.SetDefault("tts.rate", "normal")
	v.SetDefault("tts.voice", "default")
	v.SetDefault("tts.volume", 1.0)
	v.SetDefault("tts.cache", true)
	v.SetDefault("tts.google.voice", "")
	v.SetDefault("tts.elevenlabs.api_key", "")
	v.SetDefault("tts.elevenlabs.voice_id", tts.DefaultElevenLabsVoice)
	v.SetDefault("tts.elevenlabs.model_id", tts.DefaultElevenLabsModel)
	v.SetDefault("tts.elevenlabs.stability", 0.5)
	v.SetDefault("tts.elevenlabs.similarity_boost", 0.5)
	v.SetDefault("tts.elevenlabs.max_retries", 0) // a failed chunk is dropped, not retried

	d := voice.DefaultConfig()
	v.SetDefault("voice.sentence_buffer_size", d.SentenceBufferSize)
	v.SetDefault("voice.char_cap", d.CharCap)
	v.SetDefault("voice.idle_window", d.IdleWindow)
	v.SetDefault("voice.poll_interval", d.PollInterval)
	v.SetDefault("voice.terminators", d.Terminators)

	v.SetDefault("llm.backend", llm.BackendOllama)
	v.SetDefault("llm.url", "")
	v.SetDefault("llm.model", "")
	v.SetDefault("llm.api_key", "")
	v.SetDefault("llm.temperature", 0.7)
	v.SetDefault("llm.system_prompt", DefaultSystemPrompt)
	v.SetDefault("llm.history_context", 6)

	v.SetDefault("data.dir", defaultDataDirectory())
	v.SetDefault("data.tasks", "tasks.db")
	v.SetDefault("data.history", "chat_history.json")

	v.SetDefault("log.level", "info")

	v.SetDefault("api.listen", "0.0.0.0:5000")
	v.SetDefault("link.listen", ":65432")
	v.SetDefault("link.path", "/link")
	v.SetDefault("link.server", "ws://192.168.84.248:65432/link")
	v.SetDefault("link.name", defaultLinkName())
}

// New returns a viper instance with defaults, the deskbuddy.yaml config file
// and DESKBUDDY_* environment overrides. A .env file in the working directory
// is loaded into the environment first.
func New(configFile string) (*viper.Viper, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		logrus.WithError(err).Warn("Could not load .env")
	}

	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("DESKBUDDY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Unprefixed keys as the provider SDKs name them
	v.BindEnv("tts.elevenlabs.api_key", "DESKBUDDY_TTS_ELEVENLABS_API_KEY", "ELEVENLABS_API_KEY")
	v.BindEnv("llm.api_key", "DESKBUDDY_LLM_API_KEY", "DEEPSEEK_API_KEY")

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("deskbuddy")
		v.SetConfigType("yaml")
		v.AddConfigPath("$HOME/.deskbuddy")
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) || configFile != "" {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	} else {
		logrus.WithField("file", v.ConfigFileUsed()).Debug("Loaded config file")
	}

	return v, nil
}

// Load reads the configuration and resolves it into a Config.
func Load(configFile string) (*Config, error) {
	v, err := New(configFile)
	if err != nil {
		return nil, err
	}
	return FromViper(v)
}

// FromViper resolves a populated viper instance into a Config.
func FromViper(v *viper.Viper) (*Config, error) {
	level, err := logrus.ParseLevel(v.GetString("log.level"))
	if err != nil {
		return nil, fmt.Errorf("invalid log.level: %w", err)
	}

	dataDir := v.GetString("data.dir")
	rate := tts.ParseRate(v.GetString("tts.rate"))
	language := v.GetString("tts.language")

	cfg := &Config{
		TTS: tts.Config{
			Type:     v.GetString("tts.type"),
			Language: language,
			Rate:     rate,
			Voice:    v.GetString("tts.voice"),
			Volume:   v.GetFloat64("tts.volume"),
			Google: tts.GoogleConfig{
				Voice: v.GetString("tts.google.voice"),
			},
			ElevenLabs: tts.ElevenLabsConfig{
				APIKey:          v.GetString("tts.elevenlabs.api_key"),
				VoiceID:         v.GetString("tts.elevenlabs.voice_id"),
				ModelID:         v.GetString("tts.elevenlabs.model_id"),
				Stability:       v.GetFloat64("tts.elevenlabs.stability"),
				SimilarityBoost: v.GetFloat64("tts.elevenlabs.similarity_boost"),
				MaxRetries:      v.GetInt("tts.elevenlabs.max_retries"),
			},
		},
		Voice: voice.Config{
			SentenceBufferSize: v.GetInt("voice.sentence_buffer_size"),
			CharCap:            v.GetInt("voice.char_cap"),
			IdleWindow:         v.GetDuration("voice.idle_window"),
			PollInterval:       v.GetDuration("voice.poll_interval"),
			Terminators:        v.GetString("voice.terminators"),
			Language:           language,
			Rate:               rate,
		},
		LLM: llm.Config{
			Backend:     v.GetString("llm.backend"),
			BaseURL:     v.GetString("llm.url"),
			Model:       v.GetString("llm.model"),
			APIKey:      v.GetString("llm.api_key"),
			Temperature: float32(v.GetFloat64("llm.temperature")),
		},
		SystemPrompt:   v.GetString("llm.system_prompt"),
		HistoryContext: v.GetInt("llm.history_context"),
		DataDir:        dataDir,
		TasksDB:        inDir(dataDir, v.GetString("data.tasks")),
		HistoryFile:    inDir(dataDir, v.GetString("data.history")),
		LogLevel:       level,
		Link: LinkConfig{
			Listen: v.GetString("link.listen"),
			Path:   v.GetString("link.path"),
			Server: v.GetString("link.server"),
			Name:   v.GetString("link.name"),
		},
		APIListen: v.GetString("api.listen"),
	}

	if v.GetBool("tts.cache") {
		cfg.TTS.CachePath = filepath.Join(dataDir, "speech-cache")
	}

	return cfg, nil
}

// inDir resolves relative data file names against the data directory.
func inDir(dir, name string) string {
	if filepath.IsAbs(name) {
		return name
	}
	return filepath.Join(dir, name)
}

// defaultDataDirectory returns the appropriate data directory
func defaultDataDirectory() string {
	if dir, err := os.UserConfigDir(); err == nil {
		return filepath.Join(dir, "deskbuddy")
	}

	if homeDir, err := os.UserHomeDir(); err == nil {
		return filepath.Join(homeDir, ".deskbuddy")
	}

	return "data"
}

func defaultLinkName() string {
	if host, err := os.Hostname(); err == nil && host != "" {
		return host
	}
	return "pi"
}
