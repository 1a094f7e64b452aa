package audio

import (
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/fatih/color"
)

// Mock is a Backend that plays nothing. Each clip is "busy" for PlayDuration
// and the clip contents are recorded so tests can check what was spoken.
type Mock struct {
	PlayDuration time.Duration

	// Announce prints each clip as it plays, used when running without audio.
	Announce bool

	LoadErr error
	PlayErr error

	mu          sync.Mutex
	initialized bool
	closed      bool
	current     []byte
	loaded      bool
	until       time.Time
	played      []string
	stops       int
}

func NewMock(playDuration time.Duration) *Mock {
	return &Mock{PlayDuration: playDuration}
}

func (m *Mock) Init() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.initialized = true
	m.closed = false
	return nil
}

func (m *Mock) Load(path string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.initialized {
		return ErrNotInitialized
	}
	if m.LoadErr != nil {
		return m.LoadErr
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to open clip %s: %w", path, err)
	}
	m.current = data
	m.loaded = true
	return nil
}

func (m *Mock) Play() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.loaded {
		return ErrNothingLoaded
	}
	if m.PlayErr != nil {
		return m.PlayErr
	}
	m.played = append(m.played, string(m.current))
	m.until = time.Now().Add(m.PlayDuration)
	m.loaded = false

	if m.Announce {
		color.Yellow("🔊 %s", m.current)
	}
	return nil
}

func (m *Mock) IsBusy() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return time.Now().Before(m.until)
}

func (m *Mock) Stop() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if time.Now().Before(m.until) {
		m.stops++
	}
	m.until = time.Time{}
	return nil
}

func (m *Mock) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.until = time.Time{}
	m.closed = true
	m.initialized = false
	return nil
}

// Played returns the contents of every clip started, in order.
func (m *Mock) Played() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.played))
	copy(out, m.played)
	return out
}

// Stops counts Stop calls that interrupted a playing clip.
func (m *Mock) Stops() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stops
}

func (m *Mock) Closed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

var _ Backend = (*Mock)(nil)
