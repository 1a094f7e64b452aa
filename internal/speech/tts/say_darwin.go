//go:build darwin

package tts

import (
	"context"
	"os/exec"
	"strconv"
	"strings"
)

const providerSay = "say"

// SayProvider uses the macOS built-in 'say' command.
type SayProvider struct {
	voice string
}

func newSayProvider(config Config) (*SayProvider, error) {
	if _, err := exec.LookPath("say"); err != nil {
		return nil, wrapError(providerSay, err)
	}
	return &SayProvider{voice: config.Voice}, nil
}

func (s *SayProvider) Name() string {
	return providerSay
}

func (s *SayProvider) CacheKey() string {
	return s.voice
}

func (s *SayProvider) Synthesize(ctx context.Context, req Request) (*Audio, error) {
	if strings.TrimSpace(req.Text) == "" {
		return nil, wrapError(providerSay, ErrEmptyText)
	}

	return synthesizeToWAV(ctx, providerSay, func(out string) *exec.Cmd {
		args := []string{"-o", out, "--data-format=LEI16@22050"}

		// Set voice if specified
		if s.voice != "" && s.voice != "default" {
			args = append(args, "-v", s.voice)
		}

		// words per minute, default is ~175
		rate := 175
		if req.Rate == RateSlow {
			rate = 120
		}
		args = append(args, "-r", strconv.Itoa(rate), "--", req.Text)

		return exec.CommandContext(ctx, "say", args...)
	})
}

// GetAvailableVoices lists installed voices, limited to language when set.
func (s *SayProvider) GetAvailableVoices(ctx context.Context, language string) ([]string, error) {
	output, err := exec.CommandContext(ctx, "say", "-v", "?").Output()
	if err != nil {
		return nil, wrapError(providerSay, err)
	}
	return parseSayVoices(string(output), language), nil
}
