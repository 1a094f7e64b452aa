package buddy

import (
	"bufio"
	"context"
	"io"
	"strings"

	"deskbuddy/internal/cli/scheme/colours"

	"github.com/sirupsen/logrus"
)

// Run reads user lines from in until exit, quit, EOF or ctx end, then saves
// the session. While a reply is being spoken, "/stop" cuts it short and any
// other line is kept as the next input.
func (b *Buddy) Run(ctx context.Context, in io.Reader) error {
	colours.Title.Fprintf(b.out, "🤖 Starting AI Desk Buddy with %s.\n", b.model.Model())
	if err := b.Begin(ctx); err != nil {
		logrus.WithError(err).Warn("Could not show pending tasks")
	}
	colours.Info.Fprintln(b.out, "Type your message (or 'exit' to quit, '/stop' to interrupt speech):")

	lines := readLines(ctx, in)
	var queued []string

	for {
		var line string
		if len(queued) > 0 {
			line, queued = queued[0], queued[1:]
		} else {
			if lines == nil {
				return b.End()
			}
			colours.Prompt.Fprint(b.out, "You: ")
			select {
			case <-ctx.Done():
				return b.End()
			case l, ok := <-lines:
				if !ok {
					return b.End()
				}
				line = l
			}
		}

		input := strings.TrimSpace(line)
		switch strings.ToLower(input) {
		case "":
			continue
		case "exit", "quit":
			colours.Warning.Fprintln(b.out, "👋 Shutting down AI Desk Buddy.")
			return b.End()
		case "/stop":
			b.interrupt()
			continue
		}

		if _, err := b.Ask(ctx, input); err != nil {
			if ctx.Err() != nil {
				return b.End()
			}
			colours.Error.Fprintf(b.out, "❌ Error: %v\n", err)
			b.Recover(ctx)
			continue
		}

		var more []string
		more, lines = b.waitSpeech(ctx, lines)
		queued = append(queued, more...)
	}
}

func (b *Buddy) interrupt() {
	if b.speech == nil {
		return
	}
	b.speech.StopSpeaking()
	colours.Warning.Fprintln(b.out, "⏹️  Stopped speaking")
}

// waitSpeech blocks until the reply has been spoken, handling "/stop" as it
// arrives. Other lines are returned for later. The returned channel is nil
// once input is exhausted.
func (b *Buddy) waitSpeech(ctx context.Context, lines <-chan string) ([]string, <-chan string) {
	if b.speech == nil {
		return nil, lines
	}

	done := make(chan error, 1)
	go func() { done <- b.speech.WaitUntilDone(ctx) }()

	var queued []string
	for {
		select {
		case err := <-done:
			if err != nil && ctx.Err() == nil {
				logrus.WithError(err).Warn("Waiting for speech failed")
			}
			return queued, lines
		case l, ok := <-lines:
			if !ok {
				lines = nil
				continue
			}
			if strings.EqualFold(strings.TrimSpace(l), "/stop") {
				b.interrupt()
				continue
			}
			queued = append(queued, l)
		}
	}
}

// readLines feeds lines from r into a channel that is closed at EOF.
func readLines(ctx context.Context, r io.Reader) <-chan string {
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(r)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
		if err := scanner.Err(); err != nil {
			logrus.WithError(err).Debug("Input closed")
		}
	}()
	return lines
}
