// Package app wires configuration, speech, the model and storage into the
// deskbuddy commands.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"deskbuddy/internal/buddy"
	"deskbuddy/internal/cli/scheme/colours"
	"deskbuddy/internal/config"
	"deskbuddy/internal/domain/history"
	"deskbuddy/internal/domain/task"
	"deskbuddy/internal/link"
	"deskbuddy/internal/llm"
	"deskbuddy/internal/speech/audio"
	"deskbuddy/internal/speech/tts"
	"deskbuddy/internal/speech/voice"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// ListenFromConfig is the --remote value meaning "use link.listen".
const ListenFromConfig = "config"

// DeskBuddy main application structure
type DeskBuddy struct {
	Config *config.Config

	In  io.Reader
	Out io.Writer

	ctx    context.Context
	Cancel context.CancelFunc

	mu      sync.Mutex
	engines []*voice.Engine
}

func NewDeskBuddy(cfg *config.Config) *DeskBuddy {
	ctx, cancel := context.WithCancel(context.Background())
	return &DeskBuddy{
		Config: cfg,
		In:     os.Stdin,
		Out:    os.Stdout,
		ctx:    ctx,
		Cancel: cancel,
	}
}

// Shutdown cancels running commands and silences every engine.
func (d *DeskBuddy) Shutdown() {
	d.Cancel()

	d.mu.Lock()
	engines := d.engines
	d.engines = nil
	d.mu.Unlock()

	for _, e := range engines {
		e.Stop()
	}
}

// newEngine builds and starts a speech engine from the TTS config. Mock
// speech is paired with a backend that prints each chunk. Quiet mode neither
// synthesizes nor plays, but chunks still reach the hooks.
func (d *DeskBuddy) newEngine(quiet bool, opts ...voice.Option) (*voice.Engine, error) {
	var (
		provider tts.Provider
		backend  audio.Backend
	)
	if quiet {
		provider = tts.NewMock()
		backend = audio.NewMock(0)
	} else {
		p, err := tts.NewProvider(d.Config.TTS)
		if err != nil {
			return nil, fmt.Errorf("failed to create speech provider: %w", err)
		}
		provider = p

		if tts.ResolveType(d.Config.TTS) == tts.ProviderTypeMock {
			backend = &audio.Mock{Announce: true}
		} else {
			backend = audio.NewSpeaker()
		}
	}

	engine := voice.New(d.Config.Voice, provider, backend, opts...)
	if err := engine.Start(); err != nil {
		return nil, fmt.Errorf("failed to start speech: %w", err)
	}

	d.mu.Lock()
	d.engines = append(d.engines, engine)
	d.mu.Unlock()

	logrus.WithFields(logrus.Fields{
		"provider": provider.Name(),
		"quiet":    quiet,
	}).Info("Speech engine started")
	return engine, nil
}

func (d *DeskBuddy) stopEngine(e *voice.Engine) {
	e.Stop()

	if cache, ok := e.Provider().(*tts.Cache); ok {
		stats, err := cache.Stats()
		if err != nil {
			logrus.WithError(err).Debug("Could not read speech cache")
		} else {
			logrus.WithFields(logrus.Fields{
				"hits":   stats.Hits,
				"misses": stats.Misses,
				"clips":  stats.Files,
			}).Info("Speech cache")
		}
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	for i, other := range d.engines {
		if other == e {
			d.engines = append(d.engines[:i], d.engines[i+1:]...)
			break
		}
	}
}

// Chat runs the interactive chat loop.
func (d *DeskBuddy) Chat(cmd *cobra.Command, args []string) error {
	textOnly, _ := cmd.Flags().GetBool("text")
	quiet, _ := cmd.Flags().GetBool("quiet")
	remote, _ := cmd.Flags().GetString("remote")

	model, err := llm.New(d.Config.LLM)
	if err != nil {
		return fmt.Errorf("failed to create model client: %w", err)
	}

	tasks, err := task.OpenStore(d.Config.TasksDB)
	if err != nil {
		return err
	}
	defer tasks.Close()

	hist, err := history.Open(d.Config.HistoryFile)
	if err != nil {
		return err
	}

	if remote == ListenFromConfig {
		remote = d.Config.Link.Listen
	}

	var opts []voice.Option
	if remote != "" {
		server, stop, err := d.serveLink(remote)
		if err != nil {
			return err
		}
		defer stop()
		opts = append(opts, voice.WithChunkHook(func(text string) {
			if err := server.Broadcast(text); err != nil {
				logrus.WithError(err).Debug("Relay skipped")
			}
		}))
	}

	b := buddy.Options{
		Model:          model,
		Tasks:          tasks,
		History:        hist,
		SystemPrompt:   d.Config.SystemPrompt,
		HistoryContext: d.Config.HistoryContext,
		Out:            d.Out,
	}

	if !textOnly {
		engine, err := d.newEngine(quiet, opts...)
		if err != nil {
			return err
		}
		defer d.stopEngine(engine)
		b.Speech = engine
	}

	return buddy.New(b).Run(d.ctx, d.In)
}

// serveLink accepts Pi clients on addr. The returned func closes the link.
func (d *DeskBuddy) serveLink(addr string) (*link.Server, func(), error) {
	server := link.NewServer()
	server.OnJoin = func(name string) {
		colours.Success.Fprintf(d.Out, "\n📡 %s connected (on the link: %s)\n", name, strings.Join(server.Names(), ", "))
	}

	mux := http.NewServeMux()
	mux.Handle(d.Config.Link.Path, server)
	httpServer := &http.Server{Addr: addr, Handler: mux}

	errc := make(chan error, 1)
	go func() {
		errc <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errc:
		return nil, nil, fmt.Errorf("failed to listen on %s: %w", addr, err)
	case <-time.After(100 * time.Millisecond):
	}

	colours.Info.Fprintf(d.Out, "📡 Relaying speech on %s%s\n", addr, d.Config.Link.Path)

	stop := func() {
		server.Close()
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(ctx); err != nil {
			logrus.WithError(err).Warn("Link server shutdown")
		}
		if err := <-errc; err != nil && !errors.Is(err, http.ErrServerClosed) {
			logrus.WithError(err).Warn("Link server stopped")
		}
	}
	return server, stop, nil
}

// Say speaks its arguments, or stdin when there are none.
func (d *DeskBuddy) Say(cmd *cobra.Command, args []string) error {
	text := strings.Join(args, " ")
	if text == "" {
		data, err := io.ReadAll(d.In)
		if err != nil {
			return fmt.Errorf("failed to read text: %w", err)
		}
		text = string(data)
	}
	if strings.TrimSpace(text) == "" {
		return errors.New("nothing to say")
	}

	engine, err := d.newEngine(false, voice.WithPlayHook(func(chunk string) {
		logrus.WithField("chunk", chunk).Debug("Speaking")
	}))
	if err != nil {
		return err
	}
	defer d.stopEngine(engine)

	for _, token := range strings.SplitAfter(text, " ") {
		engine.SpeakToken(token)
	}
	return engine.WaitUntilDone(d.ctx)
}

// Pi connects to a laptop running "chat --remote" and speaks what it relays.
func (d *DeskBuddy) Pi(cmd *cobra.Command, args []string) error {
	server, _ := cmd.Flags().GetString("server")
	name, _ := cmd.Flags().GetString("name")
	if server == "" {
		server = d.Config.Link.Server
	}
	if name == "" {
		name = d.Config.Link.Name
	}

	engine, err := d.newEngine(false)
	if err != nil {
		return err
	}
	defer d.stopEngine(engine)

	client, err := link.Dial(d.ctx, server, name)
	if err != nil {
		return err
	}
	defer client.Close()

	colours.Success.Fprintf(d.Out, "🍓 Connected to %s as %s\n", server, name)

	err = client.Run(d.ctx, func(text string) {
		engine.SpeakToken(text)
		engine.ProcessFinalBuffer()
	})
	if err != nil {
		return err
	}

	// let the last relayed sentence finish
	ctx, cancel := context.WithTimeout(d.ctx, 30*time.Second)
	defer cancel()
	if err := engine.WaitUntilDone(ctx); err != nil && d.ctx.Err() == nil {
		logrus.WithError(err).Warn("Speech did not finish")
	}
	colours.Warning.Fprintln(d.Out, "👋 Link closed")
	return nil
}

// Models lists the models offered by the configured backend.
func (d *DeskBuddy) Models(cmd *cobra.Command, args []string) error {
	model, err := llm.New(d.Config.LLM)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(d.ctx, 15*time.Second)
	defer cancel()

	ids, err := model.Models(ctx)
	if err != nil {
		return err
	}

	colours.Title.Fprintln(d.Out, "🧠 Available models")
	for _, id := range ids {
		marker := "  "
		if id == model.Model() {
			marker = "▶ "
		}
		fmt.Fprintf(d.Out, "%s%s\n", marker, id)
	}
	return nil
}
