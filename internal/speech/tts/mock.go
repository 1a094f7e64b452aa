package tts

import (
	"context"
	"strings"
	"sync"
	"time"
)

const providerMock = "mock"

// Mock is an in-memory Provider. Its clips carry the request text so a mock
// audio backend can report what was "spoken".
type Mock struct {
	// Latency delays every Synthesize call; the delay honors ctx.
	Latency time.Duration

	// SynthesizeFunc replaces the default behavior when set.
	SynthesizeFunc func(ctx context.Context, req Request) (*Audio, error)

	// VerifyErr is returned by Verify.
	VerifyErr error

	mu    sync.Mutex
	calls []MockCall
}

// MockCall records a Synthesize invocation.
type MockCall struct {
	Text string
	Time time.Time
}

func NewMock() *Mock {
	return &Mock{}
}

// NewFailingMock returns a mock whose every Synthesize fails with err.
func NewFailingMock(err error) *Mock {
	return &Mock{
		SynthesizeFunc: func(context.Context, Request) (*Audio, error) {
			return nil, err
		},
	}
}

func (m *Mock) Name() string {
	return providerMock
}

func (m *Mock) Synthesize(ctx context.Context, req Request) (*Audio, error) {
	m.mu.Lock()
	m.calls = append(m.calls, MockCall{Text: req.Text, Time: time.Now()})
	m.mu.Unlock()

	if m.Latency > 0 {
		select {
		case <-time.After(m.Latency):
		case <-ctx.Done():
			return nil, wrapError(providerMock, ctx.Err())
		}
	}

	if m.SynthesizeFunc != nil {
		return m.SynthesizeFunc(ctx, req)
	}
	if strings.TrimSpace(req.Text) == "" {
		return nil, wrapError(providerMock, ErrEmptyText)
	}
	return &Audio{Data: []byte(req.Text), Encoding: EncodingText}, nil
}

func (m *Mock) Verify(context.Context) error {
	return m.VerifyErr
}

// Calls returns a copy of the recorded calls.
func (m *Mock) Calls() []MockCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	result := make([]MockCall, len(m.calls))
	copy(result, m.calls)
	return result
}

// Texts returns the text of every recorded call, in order.
func (m *Mock) Texts() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	texts := make([]string, 0, len(m.calls))
	for _, c := range m.calls {
		texts = append(texts, c.Text)
	}
	return texts
}

func (m *Mock) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}

func (m *Mock) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = nil
}

var _ Provider = (*Mock)(nil)
