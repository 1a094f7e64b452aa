package voice

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"deskbuddy/internal/speech/tts"
)

// synthesisLoop merges tokens into the chunker and turns ready chunks into
// clips. It exits when ctx is cancelled.
func (e *Engine) synthesisLoop(ctx context.Context) {
	defer e.wg.Done()

	for {
		item, ok := e.texts.Pop(ctx, e.config.IdleWindow)
		if ctx.Err() != nil {
			return
		}
		if !ok {
			e.flushIdle()
			continue
		}
		e.handleText(item)
	}
}

func (e *Engine) handleText(item textItem) {
	e.mu.Lock()
	if item.utt != e.utt || e.stopRequested.Load() {
		e.mu.Unlock()
		e.queuedTokens.Add(-1)
		return
	}

	var (
		chunk string
		ready bool
	)
	if item.flush {
		chunk, ready = e.chunker.Flush()
	} else {
		chunk, ready = e.chunker.Add(item.token)
	}
	if ready {
		e.chunks.Add(1)
	}
	utt := e.utt
	e.mu.Unlock()

	e.queuedTokens.Add(-1)

	if ready {
		e.synthesize(utt, chunk)
	}
}

// flushIdle speaks the buffered tail after no token arrived for the idle window.
func (e *Engine) flushIdle() {
	e.mu.Lock()
	if !e.chunker.Pending() || e.stopRequested.Load() {
		e.mu.Unlock()
		return
	}
	chunk, ready := e.chunker.Flush()
	if ready {
		e.chunks.Add(1)
	}
	utt := e.utt
	e.mu.Unlock()

	if ready {
		e.synthesize(utt, chunk)
	}
}

func (e *Engine) synthesize(utt *utterance, text string) {
	log := logrus.WithFields(logrus.Fields{
		"provider": e.provider.Name(),
		"chars":    len(text),
	})

	if e.onChunk != nil {
		e.onChunk(text)
	}

	start := time.Now()
	clip, err := e.provider.Synthesize(utt.ctx, tts.Request{
		Text:     text,
		Language: e.config.Language,
		Rate:     e.config.Rate,
	})
	if err != nil {
		if utt.stale() {
			log.Debug("Synthesis cancelled")
		} else {
			log.WithError(err).Error("Speech synthesis failed, dropping chunk")
		}
		e.chunks.Add(-1)
		return
	}
	if utt.stale() {
		e.chunks.Add(-1)
		return
	}

	path := filepath.Join(e.tempDir, "speech_"+uuid.NewString()+clip.Encoding.Ext())
	if err := os.WriteFile(path, clip.Data, 0600); err != nil {
		log.WithError(err).Error("Failed to write speech clip, dropping chunk")
		e.chunks.Add(-1)
		return
	}

	log.WithField("latency_ms", time.Since(start).Milliseconds()).Debug("Synthesized chunk")
	e.artifacts.Push(&artifact{path: path, text: text, utt: utt})
}

// playbackLoop plays clips in the order they were synthesized.
func (e *Engine) playbackLoop(ctx context.Context) {
	defer e.wg.Done()

	for {
		a, ok := e.artifacts.Pop(ctx, e.config.PollInterval)
		if ctx.Err() != nil {
			if ok {
				e.discard(a)
			}
			return
		}
		if ok {
			e.play(a)
		}
	}
}

func (e *Engine) play(a *artifact) {
	defer e.discard(a)

	if a.utt.stale() {
		return
	}

	e.playing.Store(true)
	defer e.playing.Store(false)

	log := logrus.WithField("clip", filepath.Base(a.path))

	if err := e.backend.Load(a.path); err != nil {
		log.WithError(err).Error("Failed to load speech clip")
		return
	}
	if err := e.backend.Play(); err != nil {
		log.WithError(err).Error("Failed to play speech clip")
		return
	}
	if e.onPlay != nil {
		e.onPlay(a.text)
	}

	ticker := time.NewTicker(e.config.PollInterval)
	defer ticker.Stop()

	for e.backend.IsBusy() {
		select {
		case <-a.utt.ctx.Done():
			if err := e.backend.Stop(); err != nil {
				log.WithError(err).Warn("Failed to halt playback")
			}
			return
		case <-ticker.C:
		}
	}
}

// discard deletes a clip's file and retires its chunk.
func (e *Engine) discard(a *artifact) {
	if err := os.Remove(a.path); err != nil && !os.IsNotExist(err) {
		logrus.WithError(err).WithField("clip", a.path).Debug("Failed to remove speech clip")
	}
	e.chunks.Add(-1)
}
