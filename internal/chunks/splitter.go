package chunks

import (
	"strings"
	"unicode/utf8"
)

// Splitter cuts text into overlapping chunks, preferring paragraph and line
// boundaries over mid-word cuts. Lengths are measured in runes.
type Splitter struct {
	chunkSize    int
	chunkOverlap int
	separators   []string
}

// NewSplitter returns a splitter targeting chunkSize runes per chunk with
// chunkOverlap runes of overlap between consecutive chunks.
func NewSplitter(chunkSize, chunkOverlap int) *Splitter {
	return &Splitter{
		chunkSize:    chunkSize,
		chunkOverlap: chunkOverlap,
		separators:   []string{"\n\n", "\n", " ", ""},
	}
}

// Split returns the chunk contents for text, in document order. Empty and
// whitespace-only fragments are dropped.
func (s *Splitter) Split(text string) []string {
	return s.splitText(text, s.separators)
}

func (s *Splitter) splitText(text string, separators []string) []string {
	if text == "" {
		return nil
	}

	separator := separators[len(separators)-1]
	var remaining []string
	for i, sep := range separators {
		if sep == "" || strings.Contains(text, sep) {
			separator = sep
			remaining = separators[i+1:]
			break
		}
	}

	splits := splitOn(text, separator)

	var final []string
	var good []string
	for _, piece := range splits {
		if utf8.RuneCountInString(piece) < s.chunkSize {
			good = append(good, piece)
			continue
		}
		if len(good) > 0 {
			final = append(final, s.merge(good, separator)...)
			good = nil
		}
		if len(remaining) == 0 {
			final = append(final, piece)
		} else {
			final = append(final, s.splitText(piece, remaining)...)
		}
	}
	if len(good) > 0 {
		final = append(final, s.merge(good, separator)...)
	}
	return final
}

// splitOn splits text by sep; an empty separator splits into single runes.
func splitOn(text, sep string) []string {
	var parts []string
	if sep == "" {
		for _, r := range text {
			parts = append(parts, string(r))
		}
	} else {
		parts = strings.Split(text, sep)
	}
	out := parts[:0]
	for _, p := range parts {
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// merge greedily joins pieces into chunks of at most chunkSize runes, carrying
// chunkOverlap runes of trailing pieces into the next chunk.
func (s *Splitter) merge(pieces []string, separator string) []string {
	sepLen := utf8.RuneCountInString(separator)

	var chunks []string
	var window []string
	total := 0

	flush := func() {
		if len(window) == 0 {
			return
		}
		joined := strings.TrimSpace(strings.Join(window, separator))
		if joined != "" {
			chunks = append(chunks, joined)
		}
	}

	for _, piece := range pieces {
		pieceLen := utf8.RuneCountInString(piece)
		if total+pieceLen+sepLen*boolToInt(len(window) > 0) > s.chunkSize && len(window) > 0 {
			flush()
			// Drop leading pieces until the retained tail fits the overlap.
			for total > s.chunkOverlap || (total+pieceLen+sepLen*boolToInt(len(window) > 0) > s.chunkSize && total > 0) {
				head := utf8.RuneCountInString(window[0])
				total -= head + sepLen*boolToInt(len(window) > 1)
				window = window[1:]
			}
		}
		window = append(window, piece)
		total += pieceLen + sepLen*boolToInt(len(window) > 1)
	}
	flush()
	return chunks
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
