// Package ocr reads text out of images through an external OCR program,
// the same process boundary the generation call uses.
package ocr

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
)

// ErrNoTextDetected is returned when the OCR program finds nothing to read.
var ErrNoTextDetected = errors.New("ocr: no text detected in image")

// ErrNotConfigured is returned when no OCR command is set.
var ErrNotConfigured = errors.New("ocr: no OCR command configured")

// Command invokes a configured OCR binary with the image path as its only
// argument and takes stdout as the detected text.
type Command struct {
	path string
}

func NewCommand(path string) *Command {
	return &Command{path: path}
}

func (c *Command) ReadText(ctx context.Context, imagePath string) (string, error) {
	if c.path == "" {
		return "", ErrNotConfigured
	}

	cmd := exec.CommandContext(ctx, c.path, imagePath)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("ocr command failed: %v (stderr: %s)", err, strings.TrimSpace(stderr.String()))
	}

	detected := strings.TrimSpace(stdout.String())
	if detected == "" {
		return "", ErrNoTextDetected
	}
	return detected, nil
}
