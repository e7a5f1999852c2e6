package chunker

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/ternarybob/lectio/internal/models"
)

// Chunker splits document text into overlapping passages. Splitting is
// deterministic: identical input always yields the identical sequence.
type Chunker struct {
	chunkSize int
	overlap   int
}

// Separator classes tried in order when looking for a natural breakpoint:
// paragraph, then sentence, then whitespace. A hard cut at chunkSize is the
// last resort.
var separatorClasses = [][]string{
	{"\n\n"},
	{". ", "! ", "? ", "\n"},
	{" "},
}

// New creates a chunker. Invalid parameters fall back to the conventional
// 1000/200 character window.
func New(chunkSize, overlap int) *Chunker {
	if chunkSize <= 0 {
		chunkSize = 1000
	}
	if overlap < 0 || overlap >= chunkSize {
		overlap = 200
		if overlap >= chunkSize {
			overlap = chunkSize / 5
		}
	}
	return &Chunker{chunkSize: chunkSize, overlap: overlap}
}

// Split returns the ordered sequence of passages for text. Consecutive
// passages share an overlap region so context survives chunk boundaries.
// Returns models.ErrEmptyContent wrapped when the input is effectively empty.
func (c *Chunker) Split(text string) ([]string, error) {
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("nothing to chunk: %w", models.ErrEmptyContent)
	}

	if len(text) <= c.chunkSize {
		return []string{text}, nil
	}

	var chunks []string
	pos := 0
	for pos < len(text) {
		end := pos + c.chunkSize
		if end >= len(text) {
			chunks = append(chunks, text[pos:])
			break
		}

		cut := c.findBreakpoint(text, pos, end)
		chunks = append(chunks, text[pos:cut])

		next := backToRuneStart(text, cut-c.overlap)
		if next <= pos {
			// Backing off swallowed the whole advance; skip the overlap
			// for this boundary rather than stall.
			next = cut
		}
		pos = next
	}

	return chunks, nil
}

// findBreakpoint picks where the chunk starting at pos should end, given the
// hard limit at end. It prefers the latest paragraph break, then sentence
// end, then whitespace, searching backwards from the limit but never past
// the midpoint of the window (a tiny chunk is worse than an awkward cut).
// Falls back to a hard cut at end. The returned cut is guaranteed to be
// greater than pos+overlap so the sliding window always advances.
func (c *Chunker) findBreakpoint(text string, pos, end int) int {
	floor := pos + c.chunkSize/2
	if floor <= pos+c.overlap {
		floor = pos + c.overlap + 1
	}

	window := text[floor:end]
	for _, class := range separatorClasses {
		best := -1
		for _, sep := range class {
			if idx := strings.LastIndex(window, sep); idx >= 0 {
				// Keep the separator with the earlier passage
				candidate := floor + idx + len(sep)
				if candidate > best {
					best = candidate
				}
			}
		}
		if best > pos+c.overlap {
			return best
		}
	}

	// Hard cut, backed off to a rune boundary so a multi-byte character
	// is never split across chunks.
	cut := backToRuneStart(text, end)
	if cut <= pos+c.overlap {
		cut = end
	}
	return cut
}

// backToRuneStart moves cut left to the nearest UTF-8 rune boundary.
func backToRuneStart(text string, cut int) int {
	for cut > 0 && cut < len(text) && !utf8.RuneStart(text[cut]) {
		cut--
	}
	return cut
}
