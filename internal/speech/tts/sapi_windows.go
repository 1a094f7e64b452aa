//go:build windows

package tts

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
)

const providerSAPI = "sapi"

// SAPIProvider drives the Windows Speech API through PowerShell.
type SAPIProvider struct {
	voice  string
	volume float64
}

func newSAPIProvider(config Config) (*SAPIProvider, error) {
	volume := config.Volume
	if volume <= 0 || volume > 1.0 {
		volume = 1.0
	}
	return &SAPIProvider{voice: config.Voice, volume: volume}, nil
}

func (s *SAPIProvider) Name() string {
	return providerSAPI
}

func (s *SAPIProvider) CacheKey() string {
	return fmt.Sprintf("%s|%g", s.voice, s.volume)
}

func (s *SAPIProvider) Synthesize(ctx context.Context, req Request) (*Audio, error) {
	if strings.TrimSpace(req.Text) == "" {
		return nil, wrapError(providerSAPI, ErrEmptyText)
	}

	// SAPI rate range is -10 to 10
	rate := 0
	if req.Rate == RateSlow {
		rate = -3
	}

	return synthesizeToWAV(ctx, providerSAPI, func(out string) *exec.Cmd {
		selectVoice := ""
		if s.voice != "" && s.voice != "default" {
			selectVoice = fmt.Sprintf("$synth.SelectVoice('%s');", psQuote(s.voice))
		}
		script := fmt.Sprintf(`Add-Type -AssemblyName System.Speech;
			$synth = New-Object System.Speech.Synthesis.SpeechSynthesizer;
			%s
			$synth.Rate = %d;
			$synth.Volume = %d;
			$synth.SetOutputToWaveFile('%s');
			$synth.Speak('%s');
			$synth.Dispose()`,
			selectVoice, rate, int(s.volume*100), psQuote(out), psQuote(req.Text))

		return exec.CommandContext(ctx, "powershell", "-NoProfile", "-Command", script)
	})
}

// psQuote escapes a value for a single-quoted PowerShell string.
func psQuote(s string) string {
	return strings.ReplaceAll(s, "'", "''")
}

// GetAvailableVoices lists installed SAPI voices. The language is ignored.
func (s *SAPIProvider) GetAvailableVoices(ctx context.Context, _ string) ([]string, error) {
	script := `Add-Type -AssemblyName System.Speech;
		$synth = New-Object System.Speech.Synthesis.SpeechSynthesizer;
		$synth.GetInstalledVoices() | ForEach-Object { $_.VoiceInfo.Name };
		$synth.Dispose()`

	output, err := exec.CommandContext(ctx, "powershell", "-NoProfile", "-Command", script).Output()
	if err != nil {
		return nil, wrapError(providerSAPI, err)
	}

	voices := make([]string, 0)
	for _, line := range strings.Split(string(output), "\n") {
		if name := strings.TrimSpace(line); name != "" {
			voices = append(voices, name)
		}
	}
	return voices, nil
}
