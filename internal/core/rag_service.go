package core

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/SarajZimba/chatbot-llm/internal/chunker"
	"github.com/SarajZimba/chatbot-llm/internal/index"
	"github.com/SarajZimba/chatbot-llm/internal/store"
)

const (
	// refusalSentence is the fixed reply the model is instructed to give
	// when the answer is not in the provided context.
	refusalSentence = "The information is not available in the provided document."

	couldNotAnswer = "I'm sorry, I couldn't generate an answer at this time. Please try again."
)

// Scope identifies one retrieval boundary: a single uploaded document or an
// outlet's aggregated documents. At most one field is set; the zero Scope
// means "no context", in which case the model answers from general knowledge.
type Scope struct {
	DocumentID string
	OutletName string
}

func DocumentScope(docID string) Scope { return Scope{DocumentID: docID} }

func OutletScope(outletName string) Scope { return Scope{OutletName: outletName} }

// RAGConfig carries the tunables of the retrieval pipeline. Zero values
// fall back to the defaults the service has always shipped with.
type RAGConfig struct {
	TopK         int
	ChunkSize    int
	ChunkOverlap int
}

type RAGService struct {
	dbStore   *store.SQLiteStore
	embedder  Embedder
	generator Generator
	cfg       RAGConfig
}

func NewRAGService(db *store.SQLiteStore, embedder Embedder, generator Generator, cfg RAGConfig) *RAGService {
	if cfg.TopK <= 0 {
		cfg.TopK = 3
	}
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = 500
	}
	if cfg.ChunkOverlap <= 0 {
		cfg.ChunkOverlap = 50
	}
	return &RAGService{
		dbStore:   db,
		embedder:  embedder,
		generator: generator,
		cfg:       cfg,
	}
}

// IngestDocument chunks the extracted text, embeds every chunk and persists
// the document with its vectors in one transaction. Returns the new
// document id and the number of chunks stored.
func (s *RAGService) IngestDocument(ctx context.Context, username, filename string, outletName *string, text string) (string, int, error) {
	chunks, err := chunker.Chunk(text, s.cfg.ChunkSize, s.cfg.ChunkOverlap)
	if err != nil {
		return "", 0, err
	}
	if len(chunks) == 0 {
		return "", 0, ErrNoTextExtracted
	}

	vectors, err := s.embedder.EmbedBatch(ctx, chunks)
	if err != nil {
		return "", 0, fmt.Errorf("failed to embed document chunks: %w", err)
	}

	docID, err := s.dbStore.SaveDocument(username, filename, outletName, chunks, vectors)
	if err != nil {
		return "", 0, err
	}
	return docID, len(chunks), nil
}

// AnswerContext loads the scope's chunks, embeds the question and returns
// the top-k chunk texts joined nearest-first with single spaces. An empty
// scope yields an empty context. Propagates store.ErrScopeNotFound.
func (s *RAGService) AnswerContext(ctx context.Context, scope Scope, question string) (string, error) {
	chunks, idx, err := s.loadScope(scope)
	if err != nil {
		return "", err
	}
	if chunks == nil {
		return "", nil
	}

	queryVec, err := s.embedder.Embed(ctx, question)
	if err != nil {
		return "", fmt.Errorf("failed to embed question: %w", err)
	}

	results, err := idx.Search(queryVec, s.cfg.TopK)
	if err != nil {
		return "", fmt.Errorf("failed to search scope: %w", err)
	}

	parts := make([]string, len(results))
	for i, res := range results {
		parts[i] = chunks[res.Position]
	}
	return strings.Join(parts, " "), nil
}

// FullOutletContext joins ALL of an outlet's chunks in original order with
// no search. Used when a command needs the whole document dump as context
// rather than a focused excerpt.
func (s *RAGService) FullOutletContext(outletName string) (string, error) {
	chunks, _, err := s.dbStore.LoadOutletScope(outletName)
	if err != nil {
		return "", err
	}
	return strings.Join(chunks, " "), nil
}

// Answer retrieves context for the scope and asks the model. Generation
// failures degrade to an explicit could-not-answer message; retrieval
// failures propagate.
func (s *RAGService) Answer(ctx context.Context, scope Scope, question string) (string, error) {
	contextStr, err := s.AnswerContext(ctx, scope, question)
	if err != nil {
		return "", err
	}
	return s.GenerateAnswer(ctx, contextStr, question), nil
}

// GenerateAnswer builds the prompt for the given context and question and
// runs the model, degrading any generation failure to a fixed message.
// Generation is best-effort relative to retrieval correctness.
func (s *RAGService) GenerateAnswer(ctx context.Context, contextStr, question string) string {
	answer, err := s.generator.Generate(ctx, BuildPrompt(contextStr, question))
	if err != nil {
		log.Printf("Generation failed for question %.50q: %v", question, err)
		return couldNotAnswer
	}
	return answer
}

func (s *RAGService) loadScope(scope Scope) ([]string, *index.Index, error) {
	switch {
	case scope.DocumentID != "":
		return s.dbStore.LoadDocumentScope(scope.DocumentID)
	case scope.OutletName != "":
		return s.dbStore.LoadOutletScope(scope.OutletName)
	default:
		return nil, nil, nil
	}
}

// BuildPrompt applies the prompt-construction rule: with context the model
// must answer only from it and otherwise reply with the fixed refusal
// sentence; without context it answers from general knowledge.
func BuildPrompt(contextStr, question string) string {
	if strings.TrimSpace(contextStr) != "" {
		return fmt.Sprintf(
			"You are a strict assistant. Only use the provided context to answer. "+
				"If the answer is not in the context, reply exactly: '%s'\n\n"+
				"Context:\n%s\n\nQuestion: %s\n\nAnswer:",
			refusalSentence, contextStr, question,
		)
	}
	return fmt.Sprintf(
		"You are a helpful assistant. Answer the question using your own knowledge.\n\n"+
			"Question: %s\n\nAnswer:",
		question,
	)
}
