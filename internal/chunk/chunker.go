package chunk

import (
	"errors"
	"fmt"
	"strings"
)

// ErrEmptyDocument is returned when the input contains no text after trimming.
var ErrEmptyDocument = errors.New("document contains no extractable text")

// Piece is one window of the source text. Start and End are rune offsets into
// the original string, with End exclusive. Consecutive pieces overlap by the
// chunker's configured overlap, so the original text can be reconstructed by
// concatenating each piece minus its overlap with the previous one.
type Piece struct {
	Ordinal int
	Start   int
	End     int
	Text    string
}

// Chunker splits text into fixed-size overlapping windows. Size and overlap
// are measured in runes, never bytes, so multi-byte text is not split
// mid-character.
type Chunker struct {
	size    int
	overlap int
}

func New(size, overlap int) (*Chunker, error) {
	if size <= 0 {
		return nil, fmt.Errorf("chunk size must be positive, got %d", size)
	}
	if overlap < 0 || overlap >= size {
		return nil, fmt.Errorf("overlap must be in [0, size), got %d with size %d", overlap, size)
	}
	return &Chunker{size: size, overlap: overlap}, nil
}

func (c *Chunker) Size() int    { return c.size }
func (c *Chunker) Overlap() int { return c.overlap }

// Split cuts text into pieces of at most size runes, each starting
// size-overlap runes after the previous. The final piece may be shorter; a
// text no longer than size yields a single piece.
func (c *Chunker) Split(text string) ([]Piece, error) {
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyDocument
	}

	runes := []rune(text)
	stride := c.size - c.overlap

	var pieces []Piece
	for start := 0; ; start += stride {
		end := start + c.size
		if end > len(runes) {
			end = len(runes)
		}
		pieces = append(pieces, Piece{
			Ordinal: len(pieces),
			Start:   start,
			End:     end,
			Text:    string(runes[start:end]),
		})
		if end == len(runes) {
			break
		}
	}

	return pieces, nil
}
