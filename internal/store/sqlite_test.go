package store

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupTestStore creates a SQLite store backed by a temp-dir database.
func setupTestStore(t *testing.T) *SQLiteStore {
	t.Helper()

	dbPath := filepath.Join(t.TempDir(), "test.db")
	s, err := NewSQLiteStore(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() {
		assert.NoError(t, s.Close())
	})
	return s
}

func strPtr(s string) *string { return &s }

func TestSaveAndLoadDocumentScope(t *testing.T) {
	s := setupTestStore(t)

	chunks := []string{"alpha beta", "beta gamma", "gamma delta"}
	vectors := [][]float32{
		{0.25, -1.5, 3.125},
		{1.0, 2.0, 3.0},
		{-0.0625, 0.5, 9.75},
	}

	docID, err := s.SaveDocument("alice", "notes.txt", nil, chunks, vectors)
	require.NoError(t, err)
	require.NotEmpty(t, docID)

	gotChunks, idx, err := s.LoadDocumentScope(docID)
	require.NoError(t, err)
	assert.Equal(t, chunks, gotChunks)
	assert.Equal(t, 3, idx.Len())
	assert.Equal(t, 3, idx.Dimension())

	// Vectors survive the blob round-trip bit for bit: searching with a
	// stored vector puts its own position first at distance zero.
	results, err := idx.Search(vectors[1], 1)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, 1, results[0].Position)
	assert.Equal(t, float32(0), results[0].Distance)
}

func TestSaveDocumentCountMismatch(t *testing.T) {
	s := setupTestStore(t)

	_, err := s.SaveDocument("alice", "notes.txt", nil, []string{"a", "b"}, [][]float32{{1}})
	assert.Error(t, err)
}

func TestLoadDocumentScopeNotFound(t *testing.T) {
	s := setupTestStore(t)

	_, _, err := s.LoadDocumentScope("no-such-doc")
	assert.ErrorIs(t, err, ErrScopeNotFound)
}

func TestLoadOutletScopeAggregatesDocuments(t *testing.T) {
	s := setupTestStore(t)

	outlet := "cafe-central"
	_, err := s.SaveDocument("alice", "menu.pdf", &outlet, []string{"first doc chunk"}, [][]float32{{1, 0}})
	require.NoError(t, err)
	_, err = s.SaveDocument("alice", "hours.txt", &outlet, []string{"second doc chunk"}, [][]float32{{0, 1}})
	require.NoError(t, err)

	chunks, idx, err := s.LoadOutletScope(outlet)
	require.NoError(t, err)
	assert.Equal(t, []string{"first doc chunk", "second doc chunk"}, chunks)
	assert.Equal(t, 2, idx.Len())

	_, _, err = s.LoadOutletScope("other-outlet")
	assert.ErrorIs(t, err, ErrScopeNotFound)
}

func TestDeleteExpiredDocuments(t *testing.T) {
	s := setupTestStore(t)

	oldID, err := s.SaveDocument("alice", "old.txt", nil, []string{"old"}, [][]float32{{1}})
	require.NoError(t, err)
	freshID, err := s.SaveDocument("alice", "fresh.txt", nil, []string{"fresh"}, [][]float32{{1}})
	require.NoError(t, err)

	outlet := "cafe-central"
	outletID, err := s.SaveDocument("alice", "menu.txt", &outlet, []string{"outlet"}, [][]float32{{1}})
	require.NoError(t, err)

	backdate := func(docID string, age time.Duration) {
		t.Helper()
		_, err := s.db.Exec("UPDATE documents SET created_at = ? WHERE id = ?", time.Now().UTC().Add(-age), docID)
		require.NoError(t, err)
	}
	backdate(oldID, 31*time.Minute)
	backdate(freshID, 29*time.Minute)
	backdate(outletID, 31*time.Minute)

	count, err := s.DeleteExpiredDocuments(30 * time.Minute)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	// The expired document's embeddings cascade away with it.
	_, _, err = s.LoadDocumentScope(oldID)
	assert.ErrorIs(t, err, ErrScopeNotFound)

	_, _, err = s.LoadDocumentScope(freshID)
	assert.NoError(t, err)

	// Outlet-scoped documents are exempt regardless of age.
	_, _, err = s.LoadOutletScope(outlet)
	assert.NoError(t, err)
}

func TestImageTextRoundTrip(t *testing.T) {
	s := setupTestStore(t)

	imageID, err := s.SaveImageText("alice", "receipt.png", "TOTAL 12.50 EUR")
	require.NoError(t, err)

	text, err := s.LoadImageText(imageID)
	require.NoError(t, err)
	assert.Equal(t, "TOTAL 12.50 EUR", text)

	_, err = s.LoadImageText("no-such-image")
	assert.ErrorIs(t, err, ErrImageNotFound)
}

func TestDeleteExpiredImages(t *testing.T) {
	s := setupTestStore(t)

	oldID, err := s.SaveImageText("alice", "old.png", "old text")
	require.NoError(t, err)
	_, err = s.SaveImageText("alice", "fresh.png", "fresh text")
	require.NoError(t, err)

	_, err = s.db.Exec("UPDATE image_ocr SET created_at = ? WHERE id = ?", time.Now().UTC().Add(-31*time.Minute), oldID)
	require.NoError(t, err)

	count, err := s.DeleteExpiredImages(30 * time.Minute)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}
