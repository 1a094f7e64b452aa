package audio

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/faiface/beep"
	"github.com/faiface/beep/mp3"
	"github.com/faiface/beep/speaker"
	"github.com/faiface/beep/wav"
)

// DefaultSampleRate is the rate the speaker is opened at; clips are resampled to it.
const DefaultSampleRate beep.SampleRate = 44100

// Speaker plays MP3 and WAV clips on the default output device via beep.
type Speaker struct {
	sampleRate beep.SampleRate

	mu          sync.Mutex
	initialized bool
	streamer    beep.StreamSeekCloser
	format      beep.Format
	busy        atomic.Bool
}

func NewSpeaker() *Speaker {
	return &Speaker{sampleRate: DefaultSampleRate}
}

func (s *Speaker) Init() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.initialized {
		return nil
	}
	if err := speaker.Init(s.sampleRate, s.sampleRate.N(time.Second/10)); err != nil {
		return fmt.Errorf("failed to initialize speaker: %w", err)
	}
	s.initialized = true
	return nil
}

func (s *Speaker) Load(path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.initialized {
		return ErrNotInitialized
	}
	s.closeStreamer()

	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open clip %s: %w", path, err)
	}

	var (
		streamer beep.StreamSeekCloser
		format   beep.Format
	)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".mp3":
		streamer, format, err = mp3.Decode(f)
	case ".wav":
		streamer, format, err = wav.Decode(f)
	default:
		err = fmt.Errorf("unsupported clip format %q", filepath.Ext(path))
	}
	if err != nil {
		f.Close()
		return fmt.Errorf("failed to decode clip %s: %w", path, err)
	}

	s.streamer = streamer
	s.format = format
	return nil
}

func (s *Speaker) Play() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.streamer == nil {
		return ErrNothingLoaded
	}

	var source beep.Streamer = s.streamer
	if s.format.SampleRate != s.sampleRate {
		source = beep.Resample(4, s.format.SampleRate, s.sampleRate, s.streamer)
	}

	s.busy.Store(true)
	speaker.Play(beep.Seq(source, beep.Callback(func() {
		s.busy.Store(false)
	})))
	return nil
}

func (s *Speaker) IsBusy() bool {
	return s.busy.Load()
}

func (s *Speaker) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.initialized {
		speaker.Clear()
	}
	s.busy.Store(false)
	s.closeStreamer()
	return nil
}

func (s *Speaker) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.initialized {
		return nil
	}
	speaker.Clear()
	s.busy.Store(false)
	s.closeStreamer()
	speaker.Close()
	s.initialized = false
	return nil
}

// closeStreamer must be called with s.mu held.
func (s *Speaker) closeStreamer() {
	if s.streamer != nil {
		s.streamer.Close()
		s.streamer = nil
	}
}

var _ Backend = (*Speaker)(nil)
