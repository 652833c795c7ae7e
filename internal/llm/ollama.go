// Package llm provides the Embedder and Generator adapters: a local Ollama
// process (generation over stdin/stdout, embeddings over its HTTP API) and
// Google Gemini.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os/exec"
	"regexp"
	"strings"
	"time"

	"github.com/SarajZimba/chatbot-llm/internal/core"
)

const (
	defaultOllamaHost        = "http://localhost:11434"
	defaultGenerationTimeout = 60 * time.Second
)

// thinkTrace matches reasoning traces some local models leak into output.
var thinkTrace = regexp.MustCompile(`(?s)<think>.*?</think>`)

type OllamaConfig struct {
	// Path is the ollama binary invoked for generation.
	Path string
	// Model is the generation model, e.g. "llama3.2:3b".
	Model string
	// Host is the Ollama HTTP API base URL used for embeddings.
	Host string
	// EmbeddingModel is the embedding model, e.g. "all-minilm".
	EmbeddingModel string
	// Timeout bounds each generation call.
	Timeout time.Duration
}

// Ollama runs generation through the local ollama binary and embeddings
// through the Ollama HTTP API.
type Ollama struct {
	path       string
	model      string
	host       string
	embedModel string
	timeout    time.Duration
	client     *http.Client
}

func NewOllama(cfg OllamaConfig) *Ollama {
	if cfg.Host == "" {
		cfg.Host = defaultOllamaHost
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultGenerationTimeout
	}
	return &Ollama{
		path:       cfg.Path,
		model:      cfg.Model,
		host:       cfg.Host,
		embedModel: cfg.EmbeddingModel,
		timeout:    cfg.Timeout,
		client:     &http.Client{Timeout: 30 * time.Second},
	}
}

// Generate pipes the prompt into `ollama run <model>` and returns the
// trimmed output. The call is bounded by the configured timeout and reports
// core.ErrGenerationTimeout when exceeded.
func (o *Ollama) Generate(ctx context.Context, prompt string) (string, error) {
	runCtx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	cmd := exec.CommandContext(runCtx, o.path, "run", o.model)
	cmd.Stdin = strings.NewReader(prompt)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
			return "", fmt.Errorf("ollama run exceeded %s: %w", o.timeout, core.ErrGenerationTimeout)
		}
		return "", fmt.Errorf("ollama run failed: %v (stderr: %s)", err, strings.TrimSpace(stderr.String()))
	}
	return cleanOutput(stdout.String()), nil
}

// cleanOutput strips reasoning traces and surrounding whitespace. Model
// output is free text; no further structure is assumed.
func cleanOutput(output string) string {
	return strings.TrimSpace(thinkTrace.ReplaceAllString(output, ""))
}

type embedRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
}

type embedResponse struct {
	Embedding []float32 `json:"embedding"`
}

// Embed generates a vector for the text via POST /api/embeddings.
func (o *Ollama) Embed(ctx context.Context, text string) ([]float32, error) {
	body, err := json.Marshal(embedRequest{Model: o.embedModel, Prompt: text})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal embed request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.host+"/api/embeddings", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create embed request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := o.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("embed request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("ollama embeddings returned status %d: %s", resp.StatusCode, string(msg))
	}

	var decoded embedResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("failed to decode embed response: %w", err)
	}
	if len(decoded.Embedding) == 0 {
		return nil, fmt.Errorf("ollama returned an empty embedding")
	}
	return decoded.Embedding, nil
}

// EmbedBatch embeds texts one by one; Ollama has no batch endpoint.
func (o *Ollama) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	vectors := make([][]float32, len(texts))
	for i, text := range texts {
		vec, err := o.Embed(ctx, text)
		if err != nil {
			return nil, fmt.Errorf("failed to embed text %d: %w", i, err)
		}
		vectors[i] = vec
	}
	return vectors, nil
}
