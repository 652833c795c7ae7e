package core

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SarajZimba/chatbot-llm/internal/store"
)

func TestAnswerContextReturnsTopChunksNearestFirst(t *testing.T) {
	dbStore := setupTestStore(t)
	embedder := &fakeEmbedder{
		dim: 2,
		vectors: map[string][]float32{
			"what color are apples": {1, 0},
		},
	}
	rag := NewRAGService(dbStore, embedder, &fakeGenerator{}, RAGConfig{TopK: 2})

	chunks := []string{"red apples", "blue sky", "green grass"}
	vectors := [][]float32{{1, 0}, {0, 1}, {0.9, 0.1}}
	docID, err := dbStore.SaveDocument("alice", "notes.txt", nil, chunks, vectors)
	require.NoError(t, err)

	contextStr, err := rag.AnswerContext(context.Background(), DocumentScope(docID), "what color are apples")
	require.NoError(t, err)
	assert.Equal(t, "red apples green grass", contextStr)
}

func TestAnswerContextEmptyScope(t *testing.T) {
	rag := NewRAGService(setupTestStore(t), &fakeEmbedder{dim: 2}, &fakeGenerator{}, RAGConfig{})

	contextStr, err := rag.AnswerContext(context.Background(), Scope{}, "anything")
	require.NoError(t, err)
	assert.Empty(t, contextStr)
}

func TestAnswerContextUnknownDocument(t *testing.T) {
	rag := NewRAGService(setupTestStore(t), &fakeEmbedder{dim: 2}, &fakeGenerator{}, RAGConfig{})

	_, err := rag.AnswerContext(context.Background(), DocumentScope("no-such-id"), "q")
	assert.ErrorIs(t, err, store.ErrScopeNotFound)
}

func TestFullOutletContextKeepsInsertionOrder(t *testing.T) {
	dbStore := setupTestStore(t)
	rag := NewRAGService(dbStore, &fakeEmbedder{dim: 2}, &fakeGenerator{}, RAGConfig{})

	outlet := "downtown"
	_, err := dbStore.SaveDocument("alice", "a.txt", &outlet,
		[]string{"first chunk", "second chunk"}, [][]float32{{1, 0}, {0, 1}})
	require.NoError(t, err)
	_, err = dbStore.SaveDocument("bob", "b.txt", &outlet,
		[]string{"third chunk"}, [][]float32{{1, 1}})
	require.NoError(t, err)

	contextStr, err := rag.FullOutletContext(outlet)
	require.NoError(t, err)
	assert.Equal(t, "first chunk second chunk third chunk", contextStr)
}

func TestAnswerDegradesWhenGenerationFails(t *testing.T) {
	dbStore := setupTestStore(t)
	generator := &fakeGenerator{err: errors.New("model exploded")}
	rag := NewRAGService(dbStore, &fakeEmbedder{dim: 2}, generator, RAGConfig{})

	docID, err := dbStore.SaveDocument("alice", "notes.txt", nil,
		[]string{"some text"}, [][]float32{{1, 0}})
	require.NoError(t, err)

	answer, err := rag.Answer(context.Background(), DocumentScope(docID), "question")
	require.NoError(t, err)
	assert.Equal(t, couldNotAnswer, answer)
}

func TestBuildPromptStrictWithContext(t *testing.T) {
	prompt := BuildPrompt("the store opens at nine", "when does it open")
	assert.Contains(t, prompt, refusalSentence)
	assert.Contains(t, prompt, "the store opens at nine")
	assert.Contains(t, prompt, "when does it open")
}

func TestBuildPromptGeneralWithoutContext(t *testing.T) {
	prompt := BuildPrompt("   ", "when does it open")
	assert.NotContains(t, prompt, refusalSentence)
	assert.Contains(t, prompt, "own knowledge")
}

func TestIngestDocumentRoundTrip(t *testing.T) {
	dbStore := setupTestStore(t)
	rag := NewRAGService(dbStore, &fakeEmbedder{dim: 2}, &fakeGenerator{}, RAGConfig{ChunkSize: 3, ChunkOverlap: 1})

	docID, count, err := rag.IngestDocument(context.Background(), "alice", "doc.txt", nil,
		"one two three four five six")
	require.NoError(t, err)
	assert.Equal(t, 3, count)

	chunks, _, err := dbStore.LoadDocumentScope(docID)
	require.NoError(t, err)
	require.Len(t, chunks, 3)
	assert.True(t, strings.HasPrefix(chunks[0], "one"))
}

func TestIngestDocumentEmptyText(t *testing.T) {
	rag := NewRAGService(setupTestStore(t), &fakeEmbedder{dim: 2}, &fakeGenerator{}, RAGConfig{})

	_, _, err := rag.IngestDocument(context.Background(), "alice", "doc.txt", nil, "   ")
	assert.ErrorIs(t, err, ErrNoTextExtracted)
}
