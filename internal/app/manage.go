package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"deskbuddy/internal/cli/scheme/colours"
	"deskbuddy/internal/domain/history"
	"deskbuddy/internal/domain/task"
	"deskbuddy/internal/speech/tts"

	"github.com/spf13/cobra"
)

// ListTasks prints pending tasks, or every task with --all.
func (d *DeskBuddy) ListTasks(cmd *cobra.Command, args []string) error {
	all, _ := cmd.Flags().GetBool("all")

	store, err := task.OpenStore(d.Config.TasksDB)
	if err != nil {
		return err
	}
	defer store.Close()

	var tasks []*task.Task
	if all {
		tasks, err = store.All(d.ctx)
	} else {
		tasks, err = store.Pending(d.ctx)
	}
	if err != nil {
		return err
	}

	now := time.Now()
	overdue, err := store.Overdue(d.ctx, now)
	if err != nil {
		return err
	}

	fmt.Fprintln(d.Out)
	colours.Title.Fprintln(d.Out, "📋 Tasks")
	if len(overdue) > 0 {
		colours.Warning.Fprintf(d.Out, "⏰ %d overdue, oldest: %s\n", len(overdue), overdue[0].Description)
	}
	fmt.Fprintln(d.Out)

	if len(tasks) == 0 {
		colours.Warning.Fprintln(d.Out, "🎉 Nothing to do!")
		return nil
	}

	for i, t := range tasks {
		fmt.Fprintf(d.Out, "  %d. ", i+1)
		if t.Status == task.StatusDone {
			colours.Success.Fprintf(d.Out, "✓ %s", t.Description)
		} else {
			colours.Task.Fprint(d.Out, t.Description)
		}
		if t.DueAt != nil {
			due := " - Due: " + t.DueAt.Format("2006-01-02 15:04")
			if t.IsOverdue(now) {
				colours.Warning.Fprint(d.Out, due+" (overdue)")
			} else {
				fmt.Fprint(d.Out, due)
			}
		}
		fmt.Fprintln(d.Out)
		colours.Info.Fprintf(d.Out, "     ID: %s\n", t.ID[:8])
	}
	return nil
}

// CompleteTask marks the task with the given id prefix as done.
func (d *DeskBuddy) CompleteTask(cmd *cobra.Command, args []string) error {
	store, err := task.OpenStore(d.Config.TasksDB)
	if err != nil {
		return err
	}
	defer store.Close()

	t, err := store.Complete(d.ctx, args[0])
	if err != nil {
		return err
	}
	colours.Success.Fprintf(d.Out, "✅ Done: %s\n", t.Description)
	return nil
}

// DeleteTask removes the task with the given id prefix.
func (d *DeskBuddy) DeleteTask(cmd *cobra.Command, args []string) error {
	store, err := task.OpenStore(d.Config.TasksDB)
	if err != nil {
		return err
	}
	defer store.Close()

	if err := store.Delete(d.ctx, args[0]); err != nil {
		return err
	}
	colours.Success.Fprintln(d.Out, "🗑️  Task removed")
	return nil
}

// ShowCacheStatus displays information about the speech clip cache
func (d *DeskBuddy) ShowCacheStatus(cmd *cobra.Command, args []string) error {
	colours.Title.Fprintln(d.Out, "📊 Speech Cache Status")

	root := d.Config.TTS.CachePath
	if root == "" {
		colours.Warning.Fprintln(d.Out, "❌ Cache is disabled (tts.cache: false)")
		return nil
	}

	stats, err := tts.InspectCache(root)
	if err != nil {
		return fmt.Errorf("failed to get cache info: %w", err)
	}

	colours.Info.Fprintf(d.Out, "📁 Location: %s\n", stats.Directory)
	colours.Info.Fprintf(d.Out, "🎵 Clips: %d\n", stats.Files)
	colours.Info.Fprintf(d.Out, "📏 Size: %.2f MB\n", stats.SizeMB())
	return nil
}

// ClearCache removes every cached clip.
func (d *DeskBuddy) ClearCache(cmd *cobra.Command, args []string) error {
	root := d.Config.TTS.CachePath
	if root == "" {
		colours.Warning.Fprintln(d.Out, "❌ Cache is disabled (tts.cache: false)")
		return nil
	}

	if err := tts.ClearCache(root); err != nil {
		return err
	}
	colours.Success.Fprintln(d.Out, "✅ Speech cache cleared")
	return nil
}

// ListProviders shows the speech providers usable here and which one auto picks.
func (d *DeskBuddy) ListProviders(cmd *cobra.Command, args []string) error {
	colours.Title.Fprintln(d.Out, "🎤 Speech providers")

	selected := tts.ResolveType(d.Config.TTS)
	for _, p := range tts.GetAvailableProviders(d.Config.TTS) {
		if p == selected {
			colours.Success.Fprintf(d.Out, "  ▶ %s (selected)\n", p)
		} else {
			fmt.Fprintf(d.Out, "    %s\n", p)
		}
	}
	return nil
}

type voiceLister interface {
	GetAvailableVoices(ctx context.Context, language string) ([]string, error)
}

// ListVoices prints the voices of the selected provider, when it can list them.
func (d *DeskBuddy) ListVoices(cmd *cobra.Command, args []string) error {
	cfg := d.Config.TTS

	provider, err := tts.NewProvider(cfg)
	if err != nil {
		return err
	}
	if cache, ok := provider.(*tts.Cache); ok {
		provider = cache.Unwrap()
	}
	if closer, ok := provider.(interface{ Close() error }); ok {
		defer closer.Close()
	}

	lister, ok := provider.(voiceLister)
	if !ok {
		colours.Warning.Fprintf(d.Out, "🔇 %s cannot list its voices\n", provider.Name())
		return nil
	}

	ctx, cancel := context.WithTimeout(d.ctx, 15*time.Second)
	defer cancel()

	voices, err := lister.GetAvailableVoices(ctx, cfg.Language)
	if err != nil {
		return err
	}

	colours.Title.Fprintf(d.Out, "🗣️  %s voices\n", provider.Name())
	for _, v := range voices {
		fmt.Fprintf(d.Out, "  • %s\n", v)
	}
	return nil
}

// ListSessions prints saved chat sessions, newest first.
func (d *DeskBuddy) ListSessions(cmd *cobra.Command, args []string) error {
	hist, err := history.Open(d.Config.HistoryFile)
	if err != nil {
		return err
	}

	sessions := hist.Sessions()
	colours.Title.Fprintln(d.Out, "🗂️  Chat history")
	if len(sessions) == 0 {
		colours.Warning.Fprintln(d.Out, "No conversations yet")
		return nil
	}

	for i := len(sessions) - 1; i >= 0; i-- {
		s := sessions[i]
		fmt.Fprintf(d.Out, "  %s  %s  ", s.ID[:8], s.Timestamp.Format("2006-01-02 15:04"))
		colours.Info.Fprintf(d.Out, "%d messages", len(s.Messages))
		if first := firstUserMessage(s); first != "" {
			fmt.Fprintf(d.Out, "  %q", first)
		}
		fmt.Fprintln(d.Out)
	}
	return nil
}

func firstUserMessage(s history.Session) string {
	for _, m := range s.Messages {
		if m.Role == "user" {
			if r := []rune(m.Content); len(r) > 50 {
				return string(r[:47]) + "..."
			}
			return m.Content
		}
	}
	return ""
}

// ShowSession prints one session; the id may be abbreviated.
func (d *DeskBuddy) ShowSession(cmd *cobra.Command, args []string) error {
	hist, err := history.Open(d.Config.HistoryFile)
	if err != nil {
		return err
	}

	session, ok := hist.Session(args[0])
	if !ok {
		var matches []history.Session
		for _, s := range hist.Sessions() {
			if strings.HasPrefix(s.ID, args[0]) {
				matches = append(matches, s)
			}
		}
		switch len(matches) {
		case 0:
			return fmt.Errorf("no session %q", args[0])
		case 1:
			session = &matches[0]
		default:
			return fmt.Errorf("session id %q is ambiguous", args[0])
		}
	}

	colours.Title.Fprintf(d.Out, "🗂️  Session %s (%s)\n", session.ID, session.Timestamp.Format("2006-01-02 15:04"))
	for _, m := range session.Messages {
		switch m.Role {
		case "user":
			colours.User.Fprintf(d.Out, "You: %s\n", m.Content)
		case "assistant":
			colours.Assistant.Fprintf(d.Out, "Buddy: %s\n", m.Content)
		}
	}
	return nil
}

// ShowHistoryInfo displays information about the history file
func (d *DeskBuddy) ShowHistoryInfo(cmd *cobra.Command, args []string) error {
	hist, err := history.Open(d.Config.HistoryFile)
	if err != nil {
		return err
	}

	info := hist.Info()
	colours.Title.Fprintln(d.Out, "📊 Chat History")
	colours.Info.Fprintf(d.Out, "📁 Location: %s\n", info.Path)
	if !info.Exists {
		colours.Warning.Fprintln(d.Out, "❌ Nothing saved yet")
		return nil
	}
	colours.Info.Fprintf(d.Out, "💬 Sessions: %d (%d messages)\n", info.Sessions, info.Messages)
	colours.Info.Fprintf(d.Out, "📏 Size: %.2f KB\n", float64(info.SizeBytes)/1024)
	colours.Info.Fprintf(d.Out, "🕒 Last saved: %s\n", info.LastModified.Format("2006-01-02 15:04:05"))
	return nil
}

// ClearHistory forgets every saved conversation.
func (d *DeskBuddy) ClearHistory(cmd *cobra.Command, args []string) error {
	hist, err := history.Open(d.Config.HistoryFile)
	if err != nil {
		return err
	}
	if err := hist.Clear(); err != nil {
		return err
	}
	colours.Success.Fprintln(d.Out, "✅ Chat history cleared")
	return nil
}
