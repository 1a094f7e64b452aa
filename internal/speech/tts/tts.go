// internal/speech/tts/tts.go
package tts

import (
	"context"
	"strings"
)

// Rate is the speaking rate requested from a provider.
type Rate string

const (
	RateNormal Rate = "normal"
	RateSlow   Rate = "slow"
)

// ParseRate maps a config value onto a Rate. Unknown values fall back to normal.
func ParseRate(s string) Rate {
	if strings.EqualFold(strings.TrimSpace(s), string(RateSlow)) {
		return RateSlow
	}
	return RateNormal
}

// Encoding identifies the container of a synthesized clip.
type Encoding string

const (
	EncodingMP3 Encoding = "mp3"
	EncodingWAV Encoding = "wav"

	// EncodingText carries the chunk text itself; only the mock provider emits it.
	EncodingText Encoding = "txt"
)

// Ext returns the file extension used for clips of this encoding.
func (e Encoding) Ext() string {
	return "." + string(e)
}

// Request is a single synthesis call.
type Request struct {
	Text     string
	Language string
	Rate     Rate
}

// Audio is a synthesized clip.
type Audio struct {
	Data     []byte
	Encoding Encoding
}

// Provider converts text into an audio clip. Implementations must honor ctx
// cancellation for anything that may block on the network or a subprocess.
type Provider interface {
	Name() string
	Synthesize(ctx context.Context, req Request) (*Audio, error)
}

// Verifier is implemented by providers that can check credentials up front.
type Verifier interface {
	Verify(ctx context.Context) error
}

// CacheKeyer is implemented by providers whose output depends on settings
// beyond the request, such as the chosen voice. The clip cache folds the key
// into every clip name.
type CacheKeyer interface {
	CacheKey() string
}

// Config selects and parameterizes a provider
type Config struct {
	Type     string
	Language string
	Rate     Rate
	Voice    string
	Volume   float64

	// CachePath enables the on-disk clip cache when non-empty.
	CachePath string

	Google     GoogleConfig
	ElevenLabs ElevenLabsConfig
}
