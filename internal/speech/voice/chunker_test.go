package voice

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func feed(c *Chunker, tokens ...string) []string {
	var chunks []string
	for _, tok := range tokens {
		if chunk, ok := c.Add(tok); ok {
			chunks = append(chunks, chunk)
		}
	}
	return chunks
}

func TestChunkerSentenceThreshold(t *testing.T) {
	c := NewChunker(3, 200, ".!?")

	chunks := feed(c, "One.", " Two.", " Three.")
	require.Len(t, chunks, 1)
	assert.Equal(t, "One. Two. Three.", chunks[0])
	assert.False(t, c.Pending())
}

func TestChunkerCountsTokensNotTerminators(t *testing.T) {
	c := NewChunker(3, 200, ".!?")

	// one token with three terminators counts once
	assert.Empty(t, feed(c, "Wait... what?!"))
	assert.True(t, c.Pending())
}

func TestChunkerCharCap(t *testing.T) {
	c := NewChunker(3, 200, ".!?")

	token := "abcdefghij"
	var chunks []string
	for i := 0; i < 20; i++ {
		chunks = append(chunks, feed(c, token)...)
	}
	assert.Empty(t, chunks, "exactly 200 chars is not over the cap")

	chunks = feed(c, token)
	require.Len(t, chunks, 1)
	assert.Len(t, chunks[0], 210)
}

func TestChunkerCapCountsRunes(t *testing.T) {
	c := NewChunker(3, 5, ".!?")

	assert.Empty(t, feed(c, "héllo"))
	assert.Len(t, feed(c, "é"), 1)
}

func TestChunkerWhitespaceNeverFlushed(t *testing.T) {
	c := NewChunker(1, 3, ".!?")

	assert.Empty(t, feed(c, "   ", "\t\n", "     "))
	assert.False(t, c.Pending())

	_, ok := c.Flush()
	assert.False(t, ok)
}

func TestChunkerNormalizesWhitespace(t *testing.T) {
	c := NewChunker(3, 200, ".!?")
	feed(c, "  Hello ", "\n\n  there ", "\tfriend  ")

	chunk, ok := c.Flush()
	require.True(t, ok)
	assert.Equal(t, "Hello there friend", chunk)
}

func TestChunkerReset(t *testing.T) {
	c := NewChunker(3, 200, ".!?")
	feed(c, "Half a sentence.", " and more")
	c.Reset()

	assert.False(t, c.Pending())
	chunks := feed(c, "A.", " B.")
	assert.Empty(t, chunks, "sentence count restarts after reset")
}

func TestChunkerLosesNoText(t *testing.T) {
	inputs := [][]string{
		{"The", " quick", " brown", " fox.", " Jumps!", " Over?", " the", " lazy", " dog."},
		strings.Split(strings.Repeat("word ", 120), " "),
		{"Hi", "!", " How", " are", " you", "?", " ", " I'm", " fine", ".", " Thanks", "."},
		{"a.b.c.d.e.f.g"},
	}

	for _, tokens := range inputs {
		c := NewChunker(2, 50, ".!?")
		chunks := feed(c, tokens...)
		if tail, ok := c.Flush(); ok {
			chunks = append(chunks, tail)
		}

		want := strings.Join(strings.Fields(strings.Join(tokens, "")), "")
		got := strings.Join(strings.Fields(strings.Join(chunks, "")), "")
		assert.Equal(t, want, got)
	}
}
