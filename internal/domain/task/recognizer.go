package task

import (
	"regexp"
	"strings"
	"time"
)

// Extraction is a task found in user input.
type Extraction struct {
	Description string
	DueAt       *time.Time
}

// the connector before a time reference is kept so "at 5pm" still parses
const timeTail = `(.+?)(?:\s+((?:by|on|at|in)\s+.+)|$)`

var taskPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)remind\s+me\s+to\s+` + timeTail),
	regexp.MustCompile(`(?i)set\s+(?:a|an)?\s*reminder\s+(?:to|for)\s+` + timeTail),
	regexp.MustCompile(`(?i)add\s+(?:a|an)?\s*task\s+(?:to|for)\s+` + timeTail),
	regexp.MustCompile(`(?i)add\s+(?:to\s+)?(?:my\s+)?(?:task\s+)?list\s*[:-]?\s*` + timeTail),
	regexp.MustCompile(`(?i)I\s+need\s+to\s+` + timeTail),
	regexp.MustCompile(`(?i)Don'?t\s+(?:let\s+me\s+)?forget\s+to\s+` + timeTail),
}

var timeWords = []string{
	"today", "tomorrow", "next week", "next month",
	"monday", "tuesday", "wednesday", "thursday", "friday", "saturday", "sunday",
	"in an hour", "in a day", "in a week",
}

var fillerWords = map[string]bool{
	"to": true, "the": true, "a": true, "an": true, "in": true,
	"on": true, "at": true, "by": true, "for": true, "with": true,
}

// Recognizer extracts reminders from free text.
type Recognizer struct {
	now func() time.Time
}

func NewRecognizer() *Recognizer {
	return &Recognizer{now: time.Now}
}

// Extract returns the task described in text, if any. Input mentioning the
// word "task" is reduced to the first few meaningful words after it.
func (r *Recognizer) Extract(text string) (*Extraction, bool) {
	if strings.Contains(strings.ToLower(text), "task") {
		return r.extractAfterTaskWord(text)
	}

	for _, pattern := range taskPatterns {
		m := pattern.FindStringSubmatch(text)
		if m == nil {
			continue
		}

		ext := &Extraction{Description: strings.TrimSpace(m[1])}
		if ext.Description == "" {
			continue
		}

		if ref := strings.TrimSpace(m[2]); ref != "" {
			if due, ok := ParseTimeReference(ref, r.now()); ok {
				ext.DueAt = &due
			}
		}
		if ext.DueAt == nil {
			ext.DueAt = r.scanTimeWords(text)
		}
		return ext, true
	}
	return nil, false
}

func (r *Recognizer) extractAfterTaskWord(text string) (*Extraction, bool) {
	words := strings.Fields(strings.ToLower(text))

	idx := -1
	for i, w := range words {
		if w == "task" {
			idx = i
			break
		}
	}
	if idx == -1 {
		return nil, false
	}

	var picked []string
	for _, w := range words[idx+1:] {
		if fillerWords[w] {
			continue
		}
		picked = append(picked, w)
		if len(picked) == MaxDescriptionWords {
			break
		}
	}
	if len(picked) == 0 {
		return nil, false
	}
	return &Extraction{Description: strings.Join(picked, " ")}, true
}

func (r *Recognizer) scanTimeWords(text string) *time.Time {
	lower := strings.ToLower(text)
	for _, word := range timeWords {
		if strings.Contains(lower, word) {
			if due, ok := ParseTimeReference(word, r.now()); ok {
				return &due
			}
			return nil
		}
	}
	return nil
}
