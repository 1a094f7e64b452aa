// Cross-platform eSpeak implementation
package tts

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
)

const providerESpeak = "espeak"

// ESpeakProvider synthesizes speech offline with eSpeak/eSpeak-NG, reading the
// WAV clip from the process's stdout.
type ESpeakProvider struct {
	path   string
	voice  string
	volume float64
}

// newESpeakProvider creates a new eSpeak provider
func newESpeakProvider(config Config) (*ESpeakProvider, error) {
	espeakPath, err := findESpeakExecutable()
	if err != nil {
		return nil, fmt.Errorf("eSpeak not found: %w", err)
	}

	volume := config.Volume
	if volume <= 0 {
		volume = 1.0
	}

	return &ESpeakProvider{
		path:   espeakPath,
		voice:  config.Voice,
		volume: volume,
	}, nil
}

func findESpeakExecutable() (string, error) {
	candidates := []string{"espeak-ng", "espeak"}

	for _, candidate := range candidates {
		if path, err := exec.LookPath(candidate); err == nil {
			return path, nil
		}
	}

	return "", fmt.Errorf("eSpeak executable not found in PATH")
}

func (e *ESpeakProvider) Name() string {
	return providerESpeak
}

func (e *ESpeakProvider) CacheKey() string {
	return fmt.Sprintf("%s|%g", e.voice, e.volume)
}

func (e *ESpeakProvider) Synthesize(ctx context.Context, req Request) (*Audio, error) {
	if strings.TrimSpace(req.Text) == "" {
		return nil, wrapError(providerESpeak, ErrEmptyText)
	}

	cmd := exec.CommandContext(ctx, e.path, espeakArgs(req, e.voice, e.volume)...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return nil, wrapError(providerESpeak, ctx.Err())
		}
		return nil, wrapError(providerESpeak, fmt.Errorf("%w: %s", err, strings.TrimSpace(stderr.String())))
	}
	if stdout.Len() == 0 {
		return nil, wrapError(providerESpeak, fmt.Errorf("no audio produced"))
	}

	return &Audio{Data: stdout.Bytes(), Encoding: EncodingWAV}, nil
}

// espeakArgs builds the command line; a configured voice wins over the language.
func espeakArgs(req Request, voice string, volume float64) []string {
	args := []string{"--stdout"}

	switch {
	case voice != "" && voice != "default":
		args = append(args, "-v", voice)
	case req.Language != "":
		args = append(args, "-v", req.Language)
	}

	// words per minute, default is 175
	speed := 175
	if req.Rate == RateSlow {
		speed = 120
	}
	args = append(args, "-s", strconv.Itoa(speed))

	// amplitude 0-200, default is 100
	args = append(args, "-a", strconv.Itoa(int(100*volume)))

	// "--" keeps text starting with a dash from being read as a flag
	return append(args, "--", req.Text)
}

// GetAvailableVoices lists the voice names known to the local eSpeak install,
// limited to language when it is set.
func (e *ESpeakProvider) GetAvailableVoices(ctx context.Context, language string) ([]string, error) {
	arg := "--voices"
	if language != "" {
		arg += "=" + language
	}
	output, err := exec.CommandContext(ctx, e.path, arg).Output()
	if err != nil {
		return nil, err
	}
	return parseESpeakVoices(string(output)), nil
}

func parseESpeakVoices(output string) []string {
	lines := strings.Split(output, "\n")
	voices := make([]string, 0)

	for i, line := range lines {
		// Skip header line
		if i == 0 || strings.TrimSpace(line) == "" {
			continue
		}

		// Pty Language Age/Gender VoiceName File Other Languages
		fields := strings.Fields(line)
		if len(fields) >= 4 {
			voices = append(voices, fields[3])
		}
	}

	return voices
}
