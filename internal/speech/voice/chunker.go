package voice

import (
	"strings"
	"unicode/utf8"
)

// Chunker accumulates tokens and decides when the buffer is ready to speak.
// It is not safe for concurrent use; the engine guards it with its mutex.
type Chunker struct {
	sentenceLimit int
	charCap       int
	terminators   string

	buf       strings.Builder
	sentences int
}

func NewChunker(sentenceLimit, charCap int, terminators string) *Chunker {
	return &Chunker{
		sentenceLimit: sentenceLimit,
		charCap:       charCap,
		terminators:   terminators,
	}
}

// Add appends token and returns a chunk when the buffer became ready.
func (c *Chunker) Add(token string) (string, bool) {
	c.buf.WriteString(token)
	if strings.ContainsAny(token, c.terminators) {
		c.sentences++
	}

	if c.sentences >= c.sentenceLimit || utf8.RuneCountInString(c.buf.String()) > c.charCap {
		return c.Flush()
	}
	return "", false
}

// Flush empties the buffer. A blank buffer is discarded and yields no chunk.
func (c *Chunker) Flush() (string, bool) {
	text := normalize(c.buf.String())
	c.Reset()
	return text, text != ""
}

// Reset drops buffered text without producing a chunk.
func (c *Chunker) Reset() {
	c.buf.Reset()
	c.sentences = 0
}

// Pending reports whether the buffer holds non-whitespace text.
func (c *Chunker) Pending() bool {
	return strings.TrimSpace(c.buf.String()) != ""
}

// normalize collapses whitespace runs into single spaces.
func normalize(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
