package tts

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

const (
	elevenLabsBaseURL  = "https://api.elevenlabs.io/v1"
	providerElevenLabs = "elevenlabs"

	DefaultElevenLabsVoice = "21m00Tcm4TlvDq8ikWAM" // "Rachel"
	DefaultElevenLabsModel = "eleven_monolingual_v1"
)

// ElevenLabsConfig parameterizes the ElevenLabs provider.
type ElevenLabsConfig struct {
	APIKey          string
	VoiceID         string
	ModelID         string
	Stability       float64
	SimilarityBoost float64

	// BaseURL overrides the API root, mostly for tests.
	BaseURL    string
	Timeout    time.Duration
	MaxRetries int
}

// ElevenLabs synthesizes MP3 clips through the ElevenLabs REST API.
type ElevenLabs struct {
	config  ElevenLabsConfig
	client  *http.Client
	baseURL string
}

// NewElevenLabs creates a new ElevenLabs provider. Zero values take defaults.
func NewElevenLabs(config ElevenLabsConfig) (*ElevenLabs, error) {
	if config.APIKey == "" {
		return nil, wrapError(providerElevenLabs, ErrNoAPIKey)
	}
	if config.VoiceID == "" {
		config.VoiceID = DefaultElevenLabsVoice
	}
	if config.ModelID == "" {
		config.ModelID = DefaultElevenLabsModel
	}
	if config.Stability == 0 {
		config.Stability = 0.5
	}
	if config.SimilarityBoost == 0 {
		config.SimilarityBoost = 0.5
	}
	if config.Timeout <= 0 {
		config.Timeout = 30 * time.Second
	}

	baseURL := strings.TrimRight(config.BaseURL, "/")
	if baseURL == "" {
		baseURL = elevenLabsBaseURL
	}

	return &ElevenLabs{
		config:  config,
		client:  &http.Client{Timeout: config.Timeout},
		baseURL: baseURL,
	}, nil
}

func (e *ElevenLabs) Name() string {
	return providerElevenLabs
}

func (e *ElevenLabs) CacheKey() string {
	return fmt.Sprintf("%s|%s|%g|%g", e.config.VoiceID, e.config.ModelID, e.config.Stability, e.config.SimilarityBoost)
}

// Synthesize posts the text and returns the MP3 body.
func (e *ElevenLabs) Synthesize(ctx context.Context, req Request) (*Audio, error) {
	if strings.TrimSpace(req.Text) == "" {
		return nil, wrapError(providerElevenLabs, ErrEmptyText)
	}
	start := time.Now()

	body, err := json.Marshal(e.buildPayload(req.Text))
	if err != nil {
		return nil, wrapError(providerElevenLabs, fmt.Errorf("marshal payload: %w", err))
	}

	url := fmt.Sprintf("%s/text-to-speech/%s", e.baseURL, e.config.VoiceID)
	resp, err := e.doWithRetry(ctx, func() (*http.Request, error) {
		r, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		e.setHeaders(r)
		return r, nil
	})
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, e.parseError(resp)
	}

	audio, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, wrapError(providerElevenLabs, fmt.Errorf("read response: %w", err))
	}

	logrus.WithFields(logrus.Fields{
		"chars":      len(req.Text),
		"bytes":      len(audio),
		"latency_ms": time.Since(start).Milliseconds(),
	}).Debug("ElevenLabs synthesized audio")

	return &Audio{Data: audio, Encoding: EncodingMP3}, nil
}

// Verify checks the API key by listing voices.
func (e *ElevenLabs) Verify(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, e.baseURL+"/voices", nil)
	if err != nil {
		return wrapError(providerElevenLabs, err)
	}
	req.Header.Set("xi-api-key", e.config.APIKey)

	resp, err := e.client.Do(req)
	if err != nil {
		return wrapError(providerElevenLabs, fmt.Errorf("verify: %w", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return e.parseError(resp)
	}
	return nil
}

// Close releases idle connections.
func (e *ElevenLabs) Close() error {
	e.client.CloseIdleConnections()
	return nil
}

func (e *ElevenLabs) buildPayload(text string) map[string]interface{} {
	return map[string]interface{}{
		"text":     text,
		"model_id": e.config.ModelID,
		"voice_settings": map[string]interface{}{
			"stability":        e.config.Stability,
			"similarity_boost": e.config.SimilarityBoost,
		},
	}
}

func (e *ElevenLabs) setHeaders(req *http.Request) {
	req.Header.Set("xi-api-key", e.config.APIKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "audio/mpeg")
}

// doWithRetry retries transport failures and retryable statuses with a linear
// backoff. MaxRetries is zero by default, making this a single request.
func (e *ElevenLabs) doWithRetry(ctx context.Context, build func() (*http.Request, error)) (*http.Response, error) {
	var lastErr error

	for attempt := 0; attempt <= e.config.MaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, wrapError(providerElevenLabs, ctx.Err())
			case <-time.After(200 * time.Millisecond * time.Duration(attempt)):
			}
		}

		req, err := build()
		if err != nil {
			return nil, wrapError(providerElevenLabs, fmt.Errorf("create request: %w", err))
		}

		resp, err := e.client.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return nil, wrapError(providerElevenLabs, ctx.Err())
			}
			lastErr = wrapError(providerElevenLabs, err)
			continue
		}

		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			lastErr = e.parseError(resp)
			resp.Body.Close()
			logrus.WithFields(logrus.Fields{
				"attempt": attempt + 1,
				"status":  resp.StatusCode,
			}).Warn("ElevenLabs request failed")
			continue
		}

		return resp, nil
	}

	return nil, lastErr
}

// parseError reads the {"detail":{"message":...}} error body when present and
// returns it as an *APIError wrapped in a ProviderError.
func (e *ElevenLabs) parseError(resp *http.Response) error {
	body, _ := io.ReadAll(resp.Body)

	var errResp struct {
		Detail struct {
			Message string `json:"message"`
			Status  string `json:"status"`
		} `json:"detail"`
	}

	message := strings.TrimSpace(string(body))
	if json.Unmarshal(body, &errResp) == nil && errResp.Detail.Message != "" {
		message = errResp.Detail.Message
	}

	return wrapError(providerElevenLabs, &APIError{
		StatusCode: resp.StatusCode,
		Message:    message,
		Provider:   providerElevenLabs,
	})
}
