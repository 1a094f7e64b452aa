package task

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRecognizer() *Recognizer {
	return &Recognizer{now: func() time.Time { return refNow }}
}

func TestRecognizerExtract(t *testing.T) {
	tests := []struct {
		input string
		desc  string
		due   *time.Time
	}{
		{"Remind me to call mom at 5pm", "call mom", ptr(at(time.January, 15, 17, 0, 0))},
		{"remind me to call mom tomorrow", "call mom tomorrow", ptr(at(time.January, 16, 23, 59, 59))},
		{"Don't forget to water the plants on friday", "water the plants", ptr(at(time.January, 17, 9, 0, 0))},
		{"set a reminder to pay rent by 2/1", "pay rent", ptr(time.Date(2025, time.February, 1, 9, 0, 0, 0, time.UTC))},
		{"I need to buy milk", "buy milk", nil},
		{"add to my list: renew passport in 3 days", "renew passport", ptr(at(time.January, 18, 10, 0, 0))},
		{"I need to put this in the fridge today", "put this", ptr(at(time.January, 15, 23, 59, 59))},
	}

	r := newTestRecognizer()
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			ext, ok := r.Extract(tt.input)
			require.True(t, ok)
			assert.Equal(t, tt.desc, ext.Description)
			if tt.due == nil {
				assert.Nil(t, ext.DueAt)
			} else {
				require.NotNil(t, ext.DueAt)
				assert.Equal(t, *tt.due, *ext.DueAt)
			}
		})
	}
}

func TestRecognizerTaskWord(t *testing.T) {
	r := newTestRecognizer()

	ext, ok := r.Extract("Add a task to buy bread for the weekend party")
	require.True(t, ok)
	assert.Equal(t, "buy bread weekend", ext.Description)
	assert.Nil(t, ext.DueAt)

	_, ok = r.Extract("How many tasks do I have?")
	assert.False(t, ok)

	_, ok = r.Extract("task")
	assert.False(t, ok)
}

func TestRecognizerNoTask(t *testing.T) {
	r := newTestRecognizer()
	for _, input := range []string{"What's the weather like?", "Tell me a joke", ""} {
		_, ok := r.Extract(input)
		assert.False(t, ok, input)
	}
}

func ptr(t time.Time) *time.Time {
	return &t
}
