package tts

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// synthesizeToWAV runs an OS speech command that can only write to a file and
// reads the clip back. build receives the output path.
func synthesizeToWAV(ctx context.Context, provider string, build func(out string) *exec.Cmd) (*Audio, error) {
	dir, err := os.MkdirTemp("", "deskbuddy-"+provider+"-")
	if err != nil {
		return nil, wrapError(provider, fmt.Errorf("failed to create temp dir: %w", err))
	}
	defer os.RemoveAll(dir)

	out := filepath.Join(dir, "clip.wav")
	cmd := build(out)
	if output, err := cmd.CombinedOutput(); err != nil {
		if ctx.Err() != nil {
			return nil, wrapError(provider, ctx.Err())
		}
		return nil, wrapError(provider, fmt.Errorf("%w: %s", err, strings.TrimSpace(string(output))))
	}

	data, err := os.ReadFile(out)
	if err != nil {
		return nil, wrapError(provider, fmt.Errorf("failed to read clip: %w", err))
	}
	return &Audio{Data: data, Encoding: EncodingWAV}, nil
}
