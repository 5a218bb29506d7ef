package ai

import (
	"context"
	"strings"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"
)

const DefaultMaxChunkLength = 800

// Chunker splits plain text into sentence aligned chunks of at most
// maxChunkLength characters. Output is deterministic and preserves order.
type Chunker struct {
	maxChunkLength int
}

func NewChunker(maxChunkLength int) *Chunker {
	if maxChunkLength < 1 {
		maxChunkLength = 1
	}
	return &Chunker{maxChunkLength: maxChunkLength}
}

func (c *Chunker) MaxChunkLength() int {
	return c.maxChunkLength
}

func (c *Chunker) Chunk(ctx context.Context, text string) []string {
	normalized := strings.ReplaceAll(text, "\r\n", "\n")
	normalized = strings.ReplaceAll(normalized, "\r", "\n")
	sentences := splitSentences(normalized)

	var chunks []string
	var current []rune
	flush := func() {
		if len(current) == 0 {
			return
		}
		chunks = append(chunks, string(current))
		current = current[:0]
	}

	for _, sentence := range sentences {
		if sentence == "" {
			continue
		}
		runes := []rune(sentence)
		if len(runes) > c.maxChunkLength {
			flush()
			chunks = append(chunks, c.wrap(runes)...)
			continue
		}
		switch {
		case len(current) == 0:
			current = append(current, runes...)
		case len(current)+1+len(runes) <= c.maxChunkLength:
			current = append(current, ' ')
			current = append(current, runes...)
		default:
			flush()
			current = append(current, runes...)
		}
	}
	flush()

	logutil.GetLogger(ctx).Debug("text chunked",
		zap.Int("size", len(text)),
		zap.Int("sentences", len(sentences)),
		zap.Int("chunks", len(chunks)),
	)
	return chunks
}

// wrap hard-cuts a sentence longer than maxChunkLength. A cut moves back to
// the last space in the window unless that space lies in the first half.
func (c *Chunker) wrap(s []rune) []string {
	var out []string
	minCut := c.maxChunkLength / 2
	if minCut < 1 {
		minCut = 1
	}
	start := 0
	for start < len(s) {
		end := start + c.maxChunkLength
		if end > len(s) {
			end = len(s)
		}
		cut := end
		if end < len(s) {
			if space := lastSpace(s, start, end); space >= start+minCut {
				cut = space
			}
		}
		out = append(out, string(s[start:cut]))
		start = cut
		for start < len(s) && s[start] == ' ' {
			start++
		}
	}
	return out
}

func lastSpace(s []rune, start, end int) int {
	for i := end - 1; i >= start; i-- {
		if s[i] == ' ' {
			return i
		}
	}
	return -1
}

func splitSentences(text string) []string {
	runes := []rune(text)
	var sentences []string
	var sb strings.Builder
	for i := 0; i < len(runes); i++ {
		sb.WriteRune(runes[i])
		if !isSentenceBoundary(runes[i]) {
			continue
		}
		for i+1 < len(runes) && isClosingPunctuation(runes[i+1]) {
			i++
			sb.WriteRune(runes[i])
		}
		sentences = append(sentences, collapseSpaces(sb.String()))
		sb.Reset()
	}
	if sb.Len() > 0 {
		sentences = append(sentences, collapseSpaces(sb.String()))
	}
	return sentences
}

func isSentenceBoundary(r rune) bool {
	switch r {
	case '.', '!', '?', ';', ':':
		return true
	}
	return false
}

func isClosingPunctuation(r rune) bool {
	switch r {
	case '"', '\'', ')', ']', '}':
		return true
	}
	return false
}

func collapseSpaces(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
