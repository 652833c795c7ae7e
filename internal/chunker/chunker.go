package chunker

import (
	"errors"
	"strings"
)

// ErrInvalidConfig is returned when the window parameters cannot produce
// forward progress (overlap >= size, or a non-positive size).
var ErrInvalidConfig = errors.New("chunker: overlap must be smaller than size")

// Chunk splits text into overlapping word windows of at most size words.
// Consecutive windows share exactly overlap words; the window start advances
// by size-overlap words each step, so the final window may be shorter. A
// window that would be fully contained in its predecessor is not emitted.
// Empty text yields no chunks.
func Chunk(text string, size, overlap int) ([]string, error) {
	if size <= 0 || overlap < 0 || overlap >= size {
		return nil, ErrInvalidConfig
	}

	words := strings.Fields(text)
	if len(words) == 0 {
		return nil, nil
	}

	step := size - overlap
	var chunks []string
	for start := 0; ; start += step {
		end := start + size
		if end > len(words) {
			end = len(words)
		}
		chunks = append(chunks, strings.Join(words[start:end], " "))
		if start+step >= len(words)-overlap {
			break
		}
	}
	return chunks, nil
}
