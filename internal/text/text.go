// Package text prepares generated answers for speech: whitespace
// normalization, hard word-limit truncation and sentence-bounded chunking.
package text

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
)

// DefaultChunkLimit is the per-request character budget of the synthesis provider.
const DefaultChunkLimit = 2500

// Normalize composes the text to NFC, collapses whitespace runs to single spaces and trims the ends.
func Normalize(s string) string {
	return CollapseSpace(norm.NFC.String(s))
}

// CollapseSpace collapses whitespace runs to single spaces and trims the ends.
func CollapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// WordCount returns the number of whitespace separated words.
func WordCount(s string) int {
	return len(strings.Fields(s))
}

// EnforceWordLimit keeps at most limit words. Text already within the limit
// is returned unchanged; otherwise the remainder is discarded.
func EnforceWordLimit(s string, limit int) string {
	if limit < 0 {
		limit = 0
	}
	words := strings.Fields(s)
	if len(words) <= limit {
		return s
	}
	return strings.Join(words[:limit], " ")
}

// SplitSentences splits normalized text after '.', '!' or '?' when followed by whitespace.
// Terminal punctuation stays with its sentence.
func SplitSentences(s string) []string {
	var sentences []string
	start := 0
	for i, r := range s {
		if r != '.' && r != '!' && r != '?' {
			continue
		}
		next := i + utf8.RuneLen(r)
		if next >= len(s) {
			break
		}
		nr, _ := utf8.DecodeRuneInString(s[next:])
		if !unicode.IsSpace(nr) {
			continue
		}
		if sentence := strings.TrimSpace(s[start:next]); sentence != "" {
			sentences = append(sentences, sentence)
		}
		start = next
	}
	if tail := strings.TrimSpace(s[start:]); tail != "" {
		sentences = append(sentences, tail)
	}
	return sentences
}

// Chunk groups sentences greedily into chunks of at most limit characters.
// A sentence longer than limit is emitted on its own rather than split.
// Only whitespace is normalized: the chunks joined with single spaces equal CollapseSpace(s).
// A non-positive limit uses DefaultChunkLimit.
func Chunk(s string, limit int) []string {
	if limit <= 0 {
		limit = DefaultChunkLimit
	}
	var (
		chunks []string
		buf    strings.Builder
		size   int
	)
	flush := func() {
		if buf.Len() > 0 {
			chunks = append(chunks, buf.String())
			buf.Reset()
			size = 0
		}
	}
	for _, sentence := range SplitSentences(CollapseSpace(s)) {
		n := utf8.RuneCountInString(sentence)
		if size > 0 && size+1+n > limit {
			flush()
		}
		if size > 0 {
			buf.WriteByte(' ')
			size++
		}
		buf.WriteString(sentence)
		size += n
	}
	flush()
	return chunks
}
