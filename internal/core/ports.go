package core

import (
	"context"
	"errors"
)

// Embedder maps text to fixed-dimension vectors, deterministic for a given
// text and model.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// Generator is the external language model: one synchronous prompt in, free
// text out. Implementations must bound the call with a timeout.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// OCRReader extracts text from an image file on disk.
type OCRReader interface {
	ReadText(ctx context.Context, imagePath string) (string, error)
}

// ErrGenerationTimeout marks a generation call that exceeded its deadline.
// Callers degrade to a could-not-answer message instead of retrying.
var ErrGenerationTimeout = errors.New("generation timed out")

// ErrNoTextExtracted is returned when an uploaded document produced no
// usable text, so there is nothing to chunk or embed.
var ErrNoTextExtracted = errors.New("no text could be extracted from the document")
