// Package chunker groups timed text segments into bounded, overlapping chunks.
package chunker

import (
	"AskArchive/backend/go/internal/archive_service/archive/schema"
	"fmt"
	"strings"
	"unicode/utf8"
)

const (
	DefaultMaxChars     = 2000
	DefaultOverlapChars = 300
)

// Chunk packs segments greedily into chunks of at most maxChars characters.
//
// Every appended segment counts len(text)+1 toward the buffer (its joining space) and an
// overlap seed counts its own length. A segment is never split, so a chunk can exceed
// maxChars only when a single segment does. After each emitted chunk the next buffer is
// seeded with the last overlapChars characters of the emitted text, and the next chunk's
// start is the start of the segment that triggered the split.
func Chunk(segments []schema.TextSegment, maxChars, overlapChars int) ([]schema.Chunk, error) {
	if maxChars <= 0 {
		return nil, schema.E(schema.KindInvalidInput, "chunk", fmt.Sprintf("max_chars must be positive, got %d", maxChars), nil)
	}
	if overlapChars < 0 {
		return nil, schema.E(schema.KindInvalidInput, "chunk", fmt.Sprintf("overlap_chars must not be negative, got %d", overlapChars), nil)
	}

	var (
		chunks   []schema.Chunk
		buf      []string
		bufLen   int
		bufStart float64
		lastEnd  float64
		started  bool
	)

	for _, seg := range segments {
		text := strings.TrimSpace(seg.Text)
		if text == "" {
			continue
		}
		if !started {
			bufStart = seg.Start
			started = true
		}

		textLen := utf8.RuneCountInString(text)
		if bufLen+textLen+1 > maxChars && len(buf) > 0 {
			emitted := strings.TrimSpace(strings.Join(buf, " "))
			chunks = append(chunks, schema.Chunk{Text: emitted, Start: bufStart, End: lastEnd})

			buf = buf[:0]
			bufLen = 0
			if overlapChars > 0 {
				seed := tail(emitted, overlapChars)
				buf = append(buf, seed)
				bufLen = utf8.RuneCountInString(seed)
			}
			bufStart = seg.Start
		}

		buf = append(buf, text)
		bufLen += textLen + 1
		lastEnd = seg.End()
	}

	if len(buf) > 0 {
		chunks = append(chunks, schema.Chunk{
			Text:  strings.TrimSpace(strings.Join(buf, " ")),
			Start: bufStart,
			End:   lastEnd,
		})
	}
	return chunks, nil
}

// tail returns the last n runes of s, or s itself when it is shorter.
func tail(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return string(r[len(r)-n:])
}
