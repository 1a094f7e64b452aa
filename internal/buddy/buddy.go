// Package buddy is the desk buddy chat session: it streams model replies to
// the terminal and the speech engine, and keeps tasks and history.
package buddy

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"deskbuddy/internal/cli/scheme/colours"
	"deskbuddy/internal/domain/history"
	"deskbuddy/internal/domain/task"
	"deskbuddy/internal/llm"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Model streams chat completions.
type Model interface {
	Model() string
	Stream(ctx context.Context, messages []llm.Message, onToken func(string)) (string, error)
	Ping(ctx context.Context) error
}

// Speech is the part of the streaming speech engine the chat needs.
type Speech interface {
	SpeakToken(token string)
	ProcessFinalBuffer()
	StopSpeaking()
	WaitUntilDone(ctx context.Context) error
}

// Completer is implemented by models that can answer without streaming.
type Completer interface {
	Complete(ctx context.Context, messages []llm.Message) (string, error)
}

type TaskStore interface {
	Add(ctx context.Context, description string, dueAt *time.Time, sessionID string) (*task.Task, error)
	Pending(ctx context.Context) ([]*task.Task, error)
}

type HistoryStore interface {
	AddSession(messages []history.Message) (*history.Session, error)
	Recent(n int) []history.Message
}

// Options wires a Buddy. Speech may be nil for a text-only session.
type Options struct {
	Model   Model
	Speech  Speech
	Tasks   TaskStore
	History HistoryStore

	SystemPrompt string
	// HistoryContext is how many recent messages from earlier sessions are
	// offered to the model.
	HistoryContext int

	Out io.Writer
	Now func() time.Time
}

// Reply is the outcome of one user turn.
type Reply struct {
	Text string
	Task *task.Task
}

// Buddy holds one chat session.
type Buddy struct {
	model      Model
	speech     Speech
	tasks      TaskStore
	history    HistoryStore
	recognizer *task.Recognizer

	historyContext int
	out            io.Writer
	now            func() time.Time

	sessionID string
	messages  []llm.Message
	saved     bool
}

func New(opts Options) *Buddy {
	out := opts.Out
	if out == nil {
		out = os.Stdout
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}

	b := &Buddy{
		model:          opts.Model,
		speech:         opts.Speech,
		tasks:          opts.Tasks,
		history:        opts.History,
		recognizer:     task.NewRecognizer(),
		historyContext: opts.HistoryContext,
		out:            out,
		now:            now,
		sessionID:      uuid.NewString(),
	}
	if opts.SystemPrompt != "" {
		b.messages = append(b.messages, llm.Message{Role: llm.RoleSystem, Content: opts.SystemPrompt})
	}
	return b
}

// SessionID identifies this session's tasks.
func (b *Buddy) SessionID() string {
	return b.sessionID
}

// Messages returns a copy of the conversation so far.
func (b *Buddy) Messages() []llm.Message {
	return append([]llm.Message(nil), b.messages...)
}

// Begin shows pending tasks and adds them to the conversation.
func (b *Buddy) Begin(ctx context.Context) error {
	if b.tasks == nil {
		return nil
	}

	pending, err := b.tasks.Pending(ctx)
	if err != nil {
		return fmt.Errorf("failed to load pending tasks: %w", err)
	}
	if len(pending) == 0 {
		return nil
	}

	fmt.Fprintln(b.out)
	colours.Title.Fprintln(b.out, "📋 You have pending tasks")
	now := b.now()
	for i, t := range pending {
		fmt.Fprintf(b.out, "  %d. ", i+1)
		colours.Task.Fprint(b.out, t.Description)
		if t.DueAt != nil {
			due := " - Due: " + t.DueAt.Format("2006-01-02 15:04")
			if t.IsOverdue(now) {
				colours.Warning.Fprint(b.out, due+" (overdue)")
			} else {
				fmt.Fprint(b.out, due)
			}
		}
		fmt.Fprintln(b.out)
	}
	fmt.Fprintln(b.out)

	var list strings.Builder
	list.WriteString("The user has the following pending tasks:\n")
	for _, t := range pending {
		list.WriteString("- " + t.Description + "\n")
	}
	note := llm.Message{Role: llm.RoleSystem, Content: list.String()}

	if len(b.messages) > 0 && b.messages[0].Role == llm.RoleSystem {
		b.messages = append(b.messages[:1], append([]llm.Message{note}, b.messages[1:]...)...)
	} else {
		b.messages = append([]llm.Message{note}, b.messages...)
	}
	return nil
}

// Ask sends one user turn, printing and speaking the reply as it streams.
// It does not wait for speech to finish.
func (b *Buddy) Ask(ctx context.Context, input string) (*Reply, error) {
	b.messages = append(b.messages, llm.Message{Role: llm.RoleUser, Content: input})
	extraction, hasTask := b.recognizer.Extract(input)

	colours.Assistant.Fprint(b.out, "Buddy: ")
	text, err := b.model.Stream(ctx, b.augmented(), func(token string) {
		colours.Assistant.Fprint(b.out, token)
		if b.speech != nil {
			b.speech.SpeakToken(token)
		}
	})
	fmt.Fprintln(b.out)
	if err != nil {
		return nil, err
	}
	if b.speech != nil {
		b.speech.ProcessFinalBuffer()
	}

	b.messages = append(b.messages, llm.Message{Role: llm.RoleAssistant, Content: text})
	reply := &Reply{Text: text}

	if hasTask && b.tasks != nil {
		t, err := b.tasks.Add(ctx, extraction.Description, extraction.DueAt, b.sessionID)
		if err != nil {
			logrus.WithError(err).WithField("task", extraction.Description).Error("Failed to save task")
		} else {
			reply.Task = t
			colours.Success.Fprintf(b.out, "✓ Task added: %s\n", t.Description)
		}
	}

	return reply, nil
}

// Answer runs one turn without printing or speaking, for callers such as the
// HTTP API. Each exchange is saved to history as its own session right away,
// which makes End a no-op for this Buddy.
func (b *Buddy) Answer(ctx context.Context, question string) (string, error) {
	user := llm.Message{Role: llm.RoleUser, Content: question}
	messages := append(b.augmented(), user)

	var (
		text string
		err  error
	)
	if c, ok := b.model.(Completer); ok {
		text, err = c.Complete(ctx, messages)
	} else {
		text, err = b.model.Stream(ctx, messages, func(string) {})
	}
	if err != nil {
		return "", err
	}

	assistant := llm.Message{Role: llm.RoleAssistant, Content: text}
	b.messages = append(b.messages, user, assistant)
	b.saved = true

	if b.history != nil {
		exchange := []history.Message{
			{Role: user.Role, Content: user.Content},
			{Role: assistant.Role, Content: assistant.Content},
		}
		if _, err := b.history.AddSession(exchange); err != nil {
			logrus.WithError(err).Warn("Failed to save exchange")
		}
	}
	return text, nil
}

// augmented is the conversation as sent to the model: the session plus the
// current time and recent messages from earlier sessions, placed after the
// leading system messages.
func (b *Buddy) augmented() []llm.Message {
	extra := []llm.Message{{
		Role:    llm.RoleSystem,
		Content: "Current date and time: " + b.now().Format("Monday, 2 January 2006 15:04"),
	}}

	if b.history != nil && b.historyContext > 0 {
		if recent := b.history.Recent(b.historyContext); len(recent) > 0 {
			var sb strings.Builder
			sb.WriteString("Context from previous conversations:\n")
			for _, m := range recent {
				fmt.Fprintf(&sb, "%s: %s\n", m.Role, m.Content)
			}
			extra = append(extra, llm.Message{Role: llm.RoleSystem, Content: sb.String()})
		}
	}

	split := 0
	for split < len(b.messages) && b.messages[split].Role == llm.RoleSystem {
		split++
	}

	out := make([]llm.Message, 0, len(b.messages)+len(extra))
	out = append(out, b.messages[:split]...)
	out = append(out, extra...)
	return append(out, b.messages[split:]...)
}

// Recover checks whether the model is reachable again after a failed turn.
func (b *Buddy) Recover(ctx context.Context) error {
	colours.Info.Fprintln(b.out, "Attempting to recover connection...")

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := b.model.Ping(ctx); err != nil {
		colours.Error.Fprintln(b.out, "Recovery failed. The model service may need to be restarted.")
		return err
	}
	colours.Success.Fprintln(b.out, "Connection recovered.")
	return nil
}

// End saves the session to history once.
func (b *Buddy) End() error {
	if b.saved || b.history == nil {
		return nil
	}
	b.saved = true

	messages := make([]history.Message, 0, len(b.messages))
	for _, m := range b.messages {
		if m.Role == llm.RoleSystem {
			continue
		}
		messages = append(messages, history.Message{Role: m.Role, Content: m.Content})
	}

	if _, err := b.history.AddSession(messages); err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}
	return nil
}
