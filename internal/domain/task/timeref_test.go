package task

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Wednesday
var refNow = time.Date(2025, time.January, 15, 10, 0, 0, 0, time.UTC)

func at(month time.Month, day, hour, minute, second int) time.Time {
	return time.Date(2025, month, day, hour, minute, second, 0, time.UTC)
}

func TestParseTimeReference(t *testing.T) {
	tests := []struct {
		ref  string
		want time.Time
	}{
		{"today", at(time.January, 15, 23, 59, 59)},
		{"by Tomorrow", at(time.January, 16, 23, 59, 59)},
		{"next week", at(time.January, 22, 10, 0, 0)},
		{"next month", at(time.February, 14, 10, 0, 0)},
		{"on friday", at(time.January, 17, 9, 0, 0)},
		{"monday", at(time.January, 20, 9, 0, 0)},
		{"wednesday", at(time.January, 22, 9, 0, 0)},
		{"in 3 days", at(time.January, 18, 10, 0, 0)},
		{"in 2 hours", at(time.January, 15, 12, 0, 0)},
		{"in 45 minutes", at(time.January, 15, 10, 45, 0)},
		{"in an hour", at(time.January, 15, 11, 0, 0)},
		{"in 2 weeks", at(time.January, 29, 10, 0, 0)},
		{"at 5pm", at(time.January, 15, 17, 0, 0)},
		{"at 9:30", at(time.January, 15, 9, 30, 0)},
		{"at 12 am", at(time.January, 15, 0, 0, 0)},
		{"at 12pm", at(time.January, 15, 12, 0, 0)},
		{"12/24", at(time.December, 24, 9, 0, 0)},
		{"3/4/26", time.Date(2026, time.March, 4, 9, 0, 0, 0, time.UTC)},
	}

	for _, tt := range tests {
		t.Run(tt.ref, func(t *testing.T) {
			got, ok := ParseTimeReference(tt.ref, refNow)
			require.True(t, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseTimeReferenceRejects(t *testing.T) {
	for _, ref := range []string{"whenever", "at 25", "at 10:75", "2/30", "13/01", ""} {
		_, ok := ParseTimeReference(ref, refNow)
		assert.False(t, ok, ref)
	}
}
