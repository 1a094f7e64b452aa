package voice

import (
	"errors"
	"time"

	"deskbuddy/internal/speech/tts"
)

var ErrAlreadyRunning = errors.New("voice: engine already running")

// State is the engine lifecycle state.
type State int32

const (
	StateStopped State = iota
	StateStarting
	StateRunning
	StateStopping
)

func (s State) String() string {
	switch s {
	case StateStopped:
		return "stopped"
	case StateStarting:
		return "starting"
	case StateRunning:
		return "running"
	case StateStopping:
		return "stopping"
	default:
		return "unknown"
	}
}

// Config tunes chunking and the worker loops.
type Config struct {
	// SentenceBufferSize is how many terminator-bearing tokens are buffered
	// before a chunk is flushed.
	SentenceBufferSize int
	// CharCap flushes the buffer once it grows past this many characters.
	CharCap int
	// IdleWindow flushes a non-blank buffer when no token arrived for this long.
	// Slow token sources will get their sentences split at this boundary.
	IdleWindow time.Duration
	// PollInterval bounds how long the playback worker waits between checks.
	PollInterval time.Duration
	Terminators  string

	// TempDir is where the per-session artifact directory is created; empty
	// means the OS temp dir.
	TempDir string

	Language string
	Rate     tts.Rate
}

func DefaultConfig() Config {
	return Config{
		SentenceBufferSize: 3,
		CharCap:            200,
		IdleWindow:         100 * time.Millisecond,
		PollInterval:       50 * time.Millisecond,
		Terminators:        ".!?",
		Language:           "en",
		Rate:               tts.RateNormal,
	}
}

// withDefaults fills zero fields from DefaultConfig.
func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.SentenceBufferSize <= 0 {
		c.SentenceBufferSize = d.SentenceBufferSize
	}
	if c.CharCap <= 0 {
		c.CharCap = d.CharCap
	}
	if c.IdleWindow <= 0 {
		c.IdleWindow = d.IdleWindow
	}
	if c.PollInterval <= 0 {
		c.PollInterval = d.PollInterval
	}
	if c.Terminators == "" {
		c.Terminators = d.Terminators
	}
	if c.Language == "" {
		c.Language = d.Language
	}
	if c.Rate == "" {
		c.Rate = d.Rate
	}
	return c
}
