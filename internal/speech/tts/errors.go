package tts

import (
	"errors"
	"fmt"
)

var (
	// ErrNoAPIKey is returned when a cloud provider is built without credentials.
	ErrNoAPIKey = errors.New("tts: API key required")

	// ErrEmptyText is returned for requests whose text is blank.
	ErrEmptyText = errors.New("tts: empty text")

	// ErrUnsupportedProvider is returned by NewProvider for unknown types or
	// providers that do not exist on this platform.
	ErrUnsupportedProvider = errors.New("tts: unsupported provider")
)

// APIError is a non-success response from a TTS HTTP API.
type APIError struct {
	StatusCode int
	Message    string
	Provider   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("tts [%s]: API error %d: %s", e.Provider, e.StatusCode, e.Message)
}

// IsUnauthorized reports an authentication failure (HTTP 401).
func (e *APIError) IsUnauthorized() bool {
	return e.StatusCode == 401
}

// IsRateLimited reports a quota or rate limit failure (HTTP 429).
func (e *APIError) IsRateLimited() bool {
	return e.StatusCode == 429
}

// IsRetryable reports whether a later attempt could succeed.
func (e *APIError) IsRetryable() bool {
	return e.IsRateLimited() || (e.StatusCode >= 500 && e.StatusCode < 600)
}

// ProviderError wraps an error with the name of the provider that produced it.
type ProviderError struct {
	Provider string
	Err      error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("tts [%s]: %v", e.Provider, e.Err)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// wrapError attaches provider context; nil stays nil.
func wrapError(provider string, err error) error {
	if err == nil {
		return nil
	}
	var pe *ProviderError
	if errors.As(err, &pe) {
		return err
	}
	return &ProviderError{Provider: provider, Err: err}
}
