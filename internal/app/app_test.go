package app

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"deskbuddy/internal/config"
	"deskbuddy/internal/domain/history"
	"deskbuddy/internal/domain/task"
	"deskbuddy/internal/link"
	"deskbuddy/internal/llm"
	"deskbuddy/internal/speech/tts"
	"deskbuddy/internal/speech/voice"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()

	vc := voice.DefaultConfig()
	vc.TempDir = dir

	return &config.Config{
		TTS: tts.Config{
			Type:      string(tts.ProviderTypeMock),
			Language:  "en",
			Rate:      tts.RateNormal,
			CachePath: filepath.Join(dir, "speech-cache"),
		},
		Voice:        vc,
		SystemPrompt: config.DefaultSystemPrompt,
		DataDir:      dir,
		TasksDB:      filepath.Join(dir, "tasks.db"),
		HistoryFile:  filepath.Join(dir, "chat_history.json"),
		Link:         config.LinkConfig{Path: "/link", Name: "test-pi"},
	}
}

func newTestBuddy(t *testing.T, cfg *config.Config, in string) (*DeskBuddy, *bytes.Buffer) {
	t.Helper()
	d := NewDeskBuddy(cfg)
	out := &bytes.Buffer{}
	d.In = strings.NewReader(in)
	d.Out = out
	t.Cleanup(d.Shutdown)
	return d, out
}

func chatFlags() *cobra.Command {
	cmd := &cobra.Command{}
	cmd.Flags().String("remote", "", "")
	cmd.Flags().Bool("quiet", false, "")
	cmd.Flags().Bool("text", false, "")
	return cmd
}

// sseModel serves a streaming chat completion of the given tokens.
func sseModel(t *testing.T, tokens ...string) string {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		for _, tok := range tokens {
			b, _ := json.Marshal(map[string]interface{}{
				"id":     "chatcmpl-1",
				"object": "chat.completion.chunk",
				"model":  llm.DefaultOllamaModel,
				"choices": []map[string]interface{}{
					{"index": 0, "delta": map[string]string{"content": tok}},
				},
			})
			fmt.Fprintf(w, "data: %s\n\n", b)
		}
		fmt.Fprint(w, "data: [DONE]\n\n")
	}))
	t.Cleanup(srv.Close)
	return srv.URL + "/v1"
}

func TestChatSpeaksAndSavesSession(t *testing.T) {
	cfg := testConfig(t)
	cfg.LLM = llm.Config{BaseURL: sseModel(t, "Sure.", " I will remind you.")}

	d, out := newTestBuddy(t, cfg, "Remind me to water the plants tomorrow\nexit\n")
	require.NoError(t, d.Chat(chatFlags(), nil))

	assert.Contains(t, out.String(), "Sure. I will remind you.")
	assert.Contains(t, out.String(), "✓ Task added")

	hist, err := history.Open(cfg.HistoryFile)
	require.NoError(t, err)
	require.Len(t, hist.Sessions(), 1)

	stats, err := tts.InspectCache(cfg.TTS.CachePath)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, stats.Files, int64(1), "the reply was synthesized")

	store, err := task.OpenStore(cfg.TasksDB)
	require.NoError(t, err)
	defer store.Close()
	pending, err := store.Pending(context.Background())
	require.NoError(t, err)
	assert.Len(t, pending, 1)
}

// syncBuffer is an output sink that can be read while a command writes to it.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func freeAddr(t *testing.T) string {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := l.Addr().String()
	require.NoError(t, l.Close())
	return addr
}

func TestChatRemoteQuietRelaysWithoutSynthesis(t *testing.T) {
	var synthesized int32
	cloud := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&synthesized, 1)
		w.Write([]byte("mp3"))
	}))
	defer cloud.Close()

	cfg := testConfig(t)
	cfg.TTS.Type = string(tts.ProviderTypeElevenLabs)
	cfg.TTS.ElevenLabs = tts.ElevenLabsConfig{APIKey: "k", BaseURL: cloud.URL}
	cfg.LLM = llm.Config{BaseURL: sseModel(t, "Hello from the laptop.")}
	addr := freeAddr(t)

	d := NewDeskBuddy(cfg)
	t.Cleanup(d.Shutdown)
	in, feed := io.Pipe()
	out := &syncBuffer{}
	d.In, d.Out = in, out

	cmd := chatFlags()
	require.NoError(t, cmd.Flags().Set("remote", addr))
	require.NoError(t, cmd.Flags().Set("quiet", "true"))

	done := make(chan error, 1)
	go func() { done <- d.Chat(cmd, nil) }()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var client *link.Client
	require.Eventually(t, func() bool {
		c, err := link.Dial(ctx, "ws://"+addr+"/link", "kitchen-pi")
		if err != nil {
			return false
		}
		client = c
		return true
	}, 5*time.Second, 20*time.Millisecond)
	defer client.Close()

	require.Eventually(t, func() bool {
		return strings.Contains(out.String(), "kitchen-pi connected (on the link: kitchen-pi)")
	}, 5*time.Second, 10*time.Millisecond)

	heard := make(chan string, 4)
	go client.Run(ctx, func(text string) { heard <- text })

	_, err := io.WriteString(feed, "hi\n")
	require.NoError(t, err)

	select {
	case text := <-heard:
		assert.Equal(t, "Hello from the laptop.", text)
	case <-time.After(5 * time.Second):
		t.Fatal("nothing relayed to the Pi")
	}

	_, err = io.WriteString(feed, "exit\n")
	require.NoError(t, err)
	feed.Close()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("chat did not finish")
	}
	assert.Zero(t, atomic.LoadInt32(&synthesized), "quiet mode must not call the speech service")
}

func TestChatTextOnly(t *testing.T) {
	cfg := testConfig(t)
	cfg.LLM = llm.Config{BaseURL: sseModel(t, "Hello!")}

	d, out := newTestBuddy(t, cfg, "hi\nquit\n")
	cmd := chatFlags()
	require.NoError(t, cmd.Flags().Set("text", "true"))
	require.NoError(t, d.Chat(cmd, nil))

	assert.Contains(t, out.String(), "Hello!")
	stats, err := tts.InspectCache(cfg.TTS.CachePath)
	require.NoError(t, err)
	assert.Zero(t, stats.Files)
}

func TestSay(t *testing.T) {
	cfg := testConfig(t)
	d, _ := newTestBuddy(t, cfg, "")

	require.NoError(t, d.Say(&cobra.Command{}, []string{"Hello there.", "How are you?"}))

	stats, err := tts.InspectCache(cfg.TTS.CachePath)
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.Files)
}

func TestSayReadsStdin(t *testing.T) {
	cfg := testConfig(t)

	d, _ := newTestBuddy(t, cfg, "   ")
	assert.Error(t, d.Say(&cobra.Command{}, nil), "blank input has nothing to say")

	d, _ = newTestBuddy(t, cfg, "Read from a pipe.")
	require.NoError(t, d.Say(&cobra.Command{}, nil))
}

func TestPiSpeaksRelayedText(t *testing.T) {
	cfg := testConfig(t)

	server := link.NewServer()
	joined := make(chan string, 1)
	server.OnJoin = func(name string) { joined <- name }
	ts := httptest.NewServer(server)
	defer ts.Close()

	d, _ := newTestBuddy(t, cfg, "")
	cmd := &cobra.Command{}
	cmd.Flags().String("server", "ws"+strings.TrimPrefix(ts.URL, "http"), "")
	cmd.Flags().String("name", "", "")

	done := make(chan error, 1)
	go func() { done <- d.Pi(cmd, nil) }()

	select {
	case name := <-joined:
		assert.Equal(t, "test-pi", name)
	case <-time.After(5 * time.Second):
		t.Fatal("pi never connected")
	}

	require.NoError(t, server.Broadcast("Hello from the laptop."))
	assert.Eventually(t, func() bool {
		stats, err := tts.InspectCache(cfg.TTS.CachePath)
		return err == nil && stats.Files == 1
	}, 5*time.Second, 20*time.Millisecond)

	require.NoError(t, server.Close())
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("pi did not exit")
	}
}

func TestTaskCommands(t *testing.T) {
	cfg := testConfig(t)

	store, err := task.OpenStore(cfg.TasksDB)
	require.NoError(t, err)
	added, err := store.Add(context.Background(), "call the dentist", nil, "")
	require.NoError(t, err)
	require.NoError(t, store.Close())

	d, out := newTestBuddy(t, cfg, "")

	list := &cobra.Command{}
	list.Flags().Bool("all", false, "")
	require.NoError(t, d.ListTasks(list, nil))
	assert.Contains(t, out.String(), "call the dentist")
	assert.Contains(t, out.String(), added.ID[:8])

	require.NoError(t, d.CompleteTask(&cobra.Command{}, []string{added.ID[:8]}))
	assert.Contains(t, out.String(), "Done: call the dentist")

	out.Reset()
	require.NoError(t, d.ListTasks(list, nil))
	assert.Contains(t, out.String(), "Nothing to do")

	out.Reset()
	require.NoError(t, list.Flags().Set("all", "true"))
	require.NoError(t, d.ListTasks(list, nil))
	assert.Contains(t, out.String(), "✓ call the dentist")

	require.NoError(t, d.DeleteTask(&cobra.Command{}, []string{added.ID}))
	assert.ErrorIs(t, d.CompleteTask(&cobra.Command{}, []string{added.ID}), task.ErrNotFound)
}

func TestCacheCommands(t *testing.T) {
	cfg := testConfig(t)
	d, out := newTestBuddy(t, cfg, "")

	require.NoError(t, d.Say(&cobra.Command{}, []string{"Cache this."}))

	require.NoError(t, d.ShowCacheStatus(&cobra.Command{}, nil))
	assert.Contains(t, out.String(), "Clips: 1")

	require.NoError(t, d.ClearCache(&cobra.Command{}, nil))
	stats, err := tts.InspectCache(cfg.TTS.CachePath)
	require.NoError(t, err)
	assert.Zero(t, stats.Files)

	cfg.TTS.CachePath = ""
	out.Reset()
	require.NoError(t, d.ShowCacheStatus(&cobra.Command{}, nil))
	assert.Contains(t, out.String(), "disabled")
}

func TestListProvidersAndVoices(t *testing.T) {
	cfg := testConfig(t)
	d, out := newTestBuddy(t, cfg, "")

	require.NoError(t, d.ListProviders(&cobra.Command{}, nil))
	assert.Contains(t, out.String(), "mock (selected)")

	out.Reset()
	require.NoError(t, d.ListVoices(&cobra.Command{}, nil))
	assert.Contains(t, out.String(), "cannot list its voices")
}

func TestTaskListShowsOverdue(t *testing.T) {
	cfg := testConfig(t)

	store, err := task.OpenStore(cfg.TasksDB)
	require.NoError(t, err)
	past := time.Now().Add(-3 * time.Hour)
	_, err = store.Add(context.Background(), "file taxes", &past, "")
	require.NoError(t, err)
	_, err = store.Add(context.Background(), "buy milk", nil, "")
	require.NoError(t, err)
	require.NoError(t, store.Close())

	d, out := newTestBuddy(t, cfg, "")
	list := &cobra.Command{}
	list.Flags().Bool("all", false, "")
	require.NoError(t, d.ListTasks(list, nil))

	assert.Contains(t, out.String(), "⏰ 1 overdue, oldest: file taxes")
	assert.Contains(t, out.String(), "buy milk")
}

func TestHistoryCommands(t *testing.T) {
	cfg := testConfig(t)
	d, out := newTestBuddy(t, cfg, "")

	require.NoError(t, d.ShowHistoryInfo(&cobra.Command{}, nil))
	assert.Contains(t, out.String(), "Nothing saved yet")

	hist, err := history.Open(cfg.HistoryFile)
	require.NoError(t, err)
	session, err := hist.AddSession([]history.Message{
		{Role: "user", Content: "What is the capital of France?"},
		{Role: "assistant", Content: "Paris."},
	})
	require.NoError(t, err)

	out.Reset()
	require.NoError(t, d.ListSessions(&cobra.Command{}, nil))
	assert.Contains(t, out.String(), session.ID[:8])
	assert.Contains(t, out.String(), "2 messages")
	assert.Contains(t, out.String(), `"What is the capital of France?"`)

	out.Reset()
	require.NoError(t, d.ShowSession(&cobra.Command{}, []string{session.ID[:8]}))
	assert.Contains(t, out.String(), "You: What is the capital of France?")
	assert.Contains(t, out.String(), "Buddy: Paris.")

	out.Reset()
	require.NoError(t, d.ShowSession(&cobra.Command{}, []string{session.ID}))
	assert.Contains(t, out.String(), "Buddy: Paris.")
	assert.Error(t, d.ShowSession(&cobra.Command{}, []string{"zzz"}))

	out.Reset()
	require.NoError(t, d.ShowHistoryInfo(&cobra.Command{}, nil))
	assert.Contains(t, out.String(), "Sessions: 1 (2 messages)")

	require.NoError(t, d.ClearHistory(&cobra.Command{}, nil))
	assert.NoFileExists(t, cfg.HistoryFile)

	out.Reset()
	require.NoError(t, d.ListSessions(&cobra.Command{}, nil))
	assert.Contains(t, out.String(), "No conversations yet")
}
