// Package voice speaks a stream of text tokens. Tokens are buffered into
// sentence-sized chunks, synthesized by a tts.Provider on one goroutine and
// played through an audio.Backend on another, strictly in order.
package voice

import (
	"context"
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"deskbuddy/internal/speech/audio"
	"deskbuddy/internal/speech/tts"
)

const verifyTimeout = 10 * time.Second

// Option customizes an Engine.
type Option func(*Engine)

// WithChunkHook registers fn to be called with every chunk handed to synthesis.
func WithChunkHook(fn func(text string)) Option {
	return func(e *Engine) { e.onChunk = fn }
}

// WithPlayHook registers fn to be called when a chunk starts playing.
func WithPlayHook(fn func(text string)) Option {
	return func(e *Engine) { e.onPlay = fn }
}

// utterance is one generation of speech. StopSpeaking cancels the current one,
// which marks everything queued under it as stale.
type utterance struct {
	ctx    context.Context
	cancel context.CancelFunc
}

func newUtterance(parent context.Context) *utterance {
	ctx, cancel := context.WithCancel(parent)
	return &utterance{ctx: ctx, cancel: cancel}
}

func (u *utterance) stale() bool {
	return u.ctx.Err() != nil
}

type textItem struct {
	token string
	flush bool
	utt   *utterance
}

// artifact is a synthesized clip on disk waiting to be played.
type artifact struct {
	path string
	text string
	utt  *utterance
}

// Engine is the streaming speech output engine.
type Engine struct {
	config   Config
	provider tts.Provider
	backend  audio.Backend

	onChunk func(string)
	onPlay  func(string)

	// lifecycle serializes Start and Stop
	lifecycle sync.Mutex
	wg        sync.WaitGroup

	// mu guards everything below it
	mu         sync.Mutex
	state      State
	chunker    *Chunker
	utt        *utterance
	root       context.Context
	cancelRoot context.CancelFunc
	tempDir    string

	texts     *queue[textItem]
	artifacts *queue[*artifact]

	// queuedTokens counts text items not yet merged into the chunker and
	// chunks counts chunks from flush until their clip is played or dropped.
	queuedTokens  atomic.Int64
	chunks        atomic.Int64
	playing       atomic.Bool
	stopRequested atomic.Bool
}

// New creates a stopped engine. Start must be called before speaking.
func New(config Config, provider tts.Provider, backend audio.Backend, opts ...Option) *Engine {
	config = config.withDefaults()

	e := &Engine{
		config:    config,
		provider:  provider,
		backend:   backend,
		chunker:   NewChunker(config.SentenceBufferSize, config.CharCap, config.Terminators),
		texts:     newQueue[textItem](),
		artifacts: newQueue[*artifact](),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Start initializes the backend and launches the synthesis and playback workers.
func (e *Engine) Start() error {
	e.lifecycle.Lock()
	defer e.lifecycle.Unlock()

	e.mu.Lock()
	if e.state != StateStopped {
		e.mu.Unlock()
		return ErrAlreadyRunning
	}
	e.state = StateStarting
	e.mu.Unlock()

	tempDir, err := e.prepare()
	if err != nil {
		e.setState(StateStopped)
		return err
	}

	root, cancel := context.WithCancel(context.Background())

	e.mu.Lock()
	e.root, e.cancelRoot = root, cancel
	e.utt = newUtterance(root)
	e.tempDir = tempDir
	e.chunker.Reset()
	e.texts.Drain()
	e.artifacts.Drain()
	e.queuedTokens.Store(0)
	e.chunks.Store(0)
	e.playing.Store(false)
	e.stopRequested.Store(false)
	e.state = StateRunning
	e.mu.Unlock()

	e.wg.Add(2)
	go e.synthesisLoop(root)
	go e.playbackLoop(root)

	logrus.WithFields(logrus.Fields{
		"provider": e.provider.Name(),
		"temp_dir": tempDir,
	}).Debug("Speech engine started")
	return nil
}

// prepare creates the artifact directory, opens the backend and checks the
// provider's credentials. A failed credential check only warns.
func (e *Engine) prepare() (string, error) {
	tempDir, err := os.MkdirTemp(e.config.TempDir, "deskbuddy-speech-")
	if err != nil {
		return "", fmt.Errorf("failed to create speech temp dir: %w", err)
	}

	if err := e.backend.Init(); err != nil {
		os.RemoveAll(tempDir)
		return "", fmt.Errorf("failed to initialize audio backend: %w", err)
	}

	if v, ok := e.provider.(tts.Verifier); ok {
		ctx, cancel := context.WithTimeout(context.Background(), verifyTimeout)
		defer cancel()
		if err := v.Verify(ctx); err != nil {
			logrus.WithError(err).WithField("provider", e.provider.Name()).
				Warn("Speech provider verification failed, speech may not work")
		}
	}
	return tempDir, nil
}

// Stop tears the engine down: workers exit, queued speech is discarded, the
// backend is closed and temporary files are removed. Calling it on a stopped
// engine does nothing.
func (e *Engine) Stop() {
	e.lifecycle.Lock()
	defer e.lifecycle.Unlock()

	e.mu.Lock()
	if e.state != StateRunning {
		e.mu.Unlock()
		return
	}
	e.state = StateStopping
	e.stopRequested.Store(true)
	e.utt.cancel()
	e.cancelRoot()
	e.chunker.Reset()
	tempDir := e.tempDir
	e.mu.Unlock()

	e.wg.Wait()
	e.drain()

	if err := e.backend.Close(); err != nil {
		logrus.WithError(err).Warn("Failed to close audio backend")
	}
	if err := os.RemoveAll(tempDir); err != nil {
		logrus.WithError(err).WithField("temp_dir", tempDir).Debug("Failed to remove speech temp dir")
	}

	e.queuedTokens.Store(0)
	e.chunks.Store(0)
	e.playing.Store(false)
	e.stopRequested.Store(false)
	e.setState(StateStopped)

	logrus.Debug("Speech engine stopped")
}

// SpeakToken queues a fragment of text. It never blocks on synthesis or
// playback and is ignored when the engine is not running.
func (e *Engine) SpeakToken(token string) {
	e.enqueue(textItem{token: token})
}

// ProcessFinalBuffer flushes whatever is buffered once the tokens queued
// before it have been merged. Blank buffers produce nothing.
func (e *Engine) ProcessFinalBuffer() {
	e.enqueue(textItem{flush: true})
}

func (e *Engine) enqueue(item textItem) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state != StateRunning {
		logrus.Debug("Speech engine not running, ignoring text")
		return
	}
	item.utt = e.utt
	e.queuedTokens.Add(1)
	e.texts.Push(item)
}

// StopSpeaking interrupts current and pending speech but keeps the engine
// running, so SpeakToken can be used again right away.
func (e *Engine) StopSpeaking() {
	e.mu.Lock()
	if e.state != StateRunning {
		e.mu.Unlock()
		return
	}
	e.stopRequested.Store(true)
	e.utt.cancel()
	e.utt = newUtterance(e.root)
	e.chunker.Reset()
	e.mu.Unlock()

	e.drain()
	e.stopRequested.Store(false)

	logrus.Debug("Speech interrupted")
}

// drain empties both queues and deletes the clips that will never play.
func (e *Engine) drain() {
	if n := len(e.texts.Drain()); n > 0 {
		e.queuedTokens.Add(int64(-n))
	}
	for _, a := range e.artifacts.Drain() {
		e.discard(a)
	}
}

// IsSpeaking reports whether anything is queued, buffered, being synthesized
// or playing.
func (e *Engine) IsSpeaking() bool {
	// Work only moves queuedTokens -> chunker -> chunks, so reading in that
	// order cannot miss an item that is in transit.
	if e.queuedTokens.Load() > 0 {
		return true
	}
	e.mu.Lock()
	pending := e.chunker.Pending()
	e.mu.Unlock()
	if pending {
		return true
	}
	return e.chunks.Load() > 0 || e.playing.Load()
}

// WaitUntilDone flushes the buffer and blocks until everything spoken so far
// has played. It returns nil early if speech is interrupted or the engine
// stops, and ctx.Err() if ctx ends first.
func (e *Engine) WaitUntilDone(ctx context.Context) error {
	e.mu.Lock()
	if e.state != StateRunning {
		e.mu.Unlock()
		return nil
	}
	utt := e.utt
	e.mu.Unlock()

	e.ProcessFinalBuffer()

	ticker := time.NewTicker(e.config.PollInterval)
	defer ticker.Stop()

	for e.IsSpeaking() {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-utt.ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
	return nil
}

// State returns the lifecycle state.
func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// Provider returns the synthesis provider the engine was built with.
func (e *Engine) Provider() tts.Provider {
	return e.provider
}

func (e *Engine) setState(s State) {
	e.mu.Lock()
	e.state = s
	e.mu.Unlock()
}
