package store

import (
	"database/sql"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3" // SQLite driver

	"github.com/SarajZimba/chatbot-llm/internal/index"
)

// ErrScopeNotFound is returned when a scope key (document id or outlet name)
// has no stored chunks. The client should re-upload.
var ErrScopeNotFound = errors.New("store: no chunks stored for scope")

// ErrImageNotFound is returned when an image id has no stored detected text.
var ErrImageNotFound = errors.New("store: image not found")

type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(dataSourceName string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dataSourceName+"?_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err = db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	store := &SQLiteStore{db: db}
	if err = store.initSchema(); err != nil {
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return store, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) initSchema() error {
	schema := `
    CREATE TABLE IF NOT EXISTS documents (
        id TEXT PRIMARY KEY, -- UUID
        username TEXT NOT NULL,
        filename TEXT NOT NULL,
        outlet_name TEXT,
        created_at DATETIME DEFAULT CURRENT_TIMESTAMP
    );

    CREATE TABLE IF NOT EXISTS embeddings (
        id INTEGER PRIMARY KEY AUTOINCREMENT,
        document_id TEXT NOT NULL,
        chunk_index INTEGER NOT NULL,
        chunk_text TEXT NOT NULL,
        embedding BLOB NOT NULL, -- little-endian float32s
        outlet_name TEXT,
        FOREIGN KEY (document_id) REFERENCES documents (id) ON DELETE CASCADE
    );
    CREATE INDEX IF NOT EXISTS idx_embeddings_document ON embeddings (document_id);
    CREATE INDEX IF NOT EXISTS idx_embeddings_outlet ON embeddings (outlet_name);

    CREATE TABLE IF NOT EXISTS image_ocr (
        id TEXT PRIMARY KEY, -- UUID
        username TEXT NOT NULL,
        filename TEXT NOT NULL,
        detected_text TEXT NOT NULL,
        created_at DATETIME DEFAULT CURRENT_TIMESTAMP
    );

    CREATE TABLE IF NOT EXISTS outlet_commands (
        command_id INTEGER PRIMARY KEY AUTOINCREMENT,
        outlet_name TEXT NOT NULL,
        command_text TEXT NOT NULL,
        parent_command_id INTEGER,
        FOREIGN KEY (parent_command_id) REFERENCES outlet_commands (command_id) ON DELETE CASCADE
    );

    CREATE TABLE IF NOT EXISTS outlet_command_slots (
        slot_id INTEGER PRIMARY KEY AUTOINCREMENT,
        command_id INTEGER NOT NULL,
        slot_name TEXT NOT NULL,
        required BOOLEAN NOT NULL DEFAULT TRUE,
        FOREIGN KEY (command_id) REFERENCES outlet_commands (command_id) ON DELETE CASCADE
    );

    CREATE TABLE IF NOT EXISTS outlet_command_images (
        image_id INTEGER PRIMARY KEY AUTOINCREMENT,
        command_id INTEGER NOT NULL,
        image_url TEXT NOT NULL,
        FOREIGN KEY (command_id) REFERENCES outlet_commands (command_id) ON DELETE CASCADE
    );
    `
	_, err := s.db.Exec(schema)
	return err
}

// encodeVector serializes an embedding as little-endian float32s.
func encodeVector(vec []float32) []byte {
	buf := make([]byte, 4*len(vec))
	for i, v := range vec {
		binary.LittleEndian.PutUint32(buf[4*i:], math.Float32bits(v))
	}
	return buf
}

func decodeVector(blob []byte) ([]float32, error) {
	if len(blob)%4 != 0 {
		return nil, fmt.Errorf("malformed embedding blob of %d bytes", len(blob))
	}
	vec := make([]float32, len(blob)/4)
	for i := range vec {
		vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(blob[4*i:]))
	}
	return vec, nil
}

// SaveDocument persists a document and its chunk/vector rows in a single
// transaction so a concurrent load never sees a torn chunk set.
func (s *SQLiteStore) SaveDocument(username, filename string, outletName *string, chunks []string, vectors [][]float32) (string, error) {
	if len(chunks) != len(vectors) {
		return "", fmt.Errorf("chunk/vector count mismatch: %d vs %d", len(chunks), len(vectors))
	}

	docID := uuid.NewString()

	tx, err := s.db.Begin()
	if err != nil {
		return "", fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.Exec(
		"INSERT INTO documents (id, username, filename, outlet_name, created_at) VALUES (?, ?, ?, ?, ?)",
		docID, username, filename, outletName, time.Now().UTC(),
	)
	if err != nil {
		return "", fmt.Errorf("failed to insert document: %w", err)
	}

	stmt, err := tx.Prepare("INSERT INTO embeddings (document_id, chunk_index, chunk_text, embedding, outlet_name) VALUES (?, ?, ?, ?, ?)")
	if err != nil {
		return "", fmt.Errorf("failed to prepare embedding insert: %w", err)
	}
	defer stmt.Close()

	for i, chunk := range chunks {
		if _, err := stmt.Exec(docID, i, chunk, encodeVector(vectors[i]), outletName); err != nil {
			return "", fmt.Errorf("failed to insert chunk %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("failed to commit document save: %w", err)
	}
	return docID, nil
}

// LoadDocumentScope fetches one document's chunks in insertion order and
// rebuilds a fresh vector index over them.
func (s *SQLiteStore) LoadDocumentScope(docID string) ([]string, *index.Index, error) {
	return s.loadScope(
		"SELECT chunk_text, embedding FROM embeddings WHERE document_id = ? ORDER BY chunk_index ASC",
		docID,
	)
}

// LoadOutletScope aggregates the chunks of every document uploaded under the
// outlet, in insertion order across documents.
func (s *SQLiteStore) LoadOutletScope(outletName string) ([]string, *index.Index, error) {
	return s.loadScope(
		"SELECT chunk_text, embedding FROM embeddings WHERE outlet_name = ? ORDER BY id ASC",
		outletName,
	)
}

func (s *SQLiteStore) loadScope(query string, arg any) ([]string, *index.Index, error) {
	rows, err := s.db.Query(query, arg)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to query embeddings: %w", err)
	}
	defer rows.Close()

	var chunks []string
	var vectors [][]float32
	for rows.Next() {
		var chunk string
		var blob []byte
		if err := rows.Scan(&chunk, &blob); err != nil {
			return nil, nil, fmt.Errorf("failed to scan embedding row: %w", err)
		}
		vec, err := decodeVector(blob)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to decode embedding: %w", err)
		}
		chunks = append(chunks, chunk)
		vectors = append(vectors, vec)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, fmt.Errorf("failed to iterate embedding rows: %w", err)
	}
	if len(chunks) == 0 {
		return nil, nil, ErrScopeNotFound
	}

	idx, err := index.New(vectors)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to rebuild index: %w", err)
	}
	return chunks, idx, nil
}

// DeleteExpiredDocuments removes document-scoped entries older than the
// retention window. Outlet-scoped documents are exempt from the sweep; their
// embeddings go with them via the cascade.
func (s *SQLiteStore) DeleteExpiredDocuments(retention time.Duration) (int64, error) {
	cutoff := time.Now().UTC().Add(-retention)
	res, err := s.db.Exec("DELETE FROM documents WHERE outlet_name IS NULL AND created_at < ?", cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired documents: %w", err)
	}
	count, _ := res.RowsAffected()
	return count, nil
}

// DeleteExpiredImages removes OCR rows older than the retention window.
func (s *SQLiteStore) DeleteExpiredImages(retention time.Duration) (int64, error) {
	cutoff := time.Now().UTC().Add(-retention)
	res, err := s.db.Exec("DELETE FROM image_ocr WHERE created_at < ?", cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired images: %w", err)
	}
	count, _ := res.RowsAffected()
	return count, nil
}

// Image OCR methods

func (s *SQLiteStore) SaveImageText(username, filename, detectedText string) (string, error) {
	imageID := uuid.NewString()
	_, err := s.db.Exec(
		"INSERT INTO image_ocr (id, username, filename, detected_text, created_at) VALUES (?, ?, ?, ?, ?)",
		imageID, username, filename, detectedText, time.Now().UTC(),
	)
	if err != nil {
		return "", fmt.Errorf("failed to insert image text: %w", err)
	}
	return imageID, nil
}

func (s *SQLiteStore) LoadImageText(imageID string) (string, error) {
	var detected string
	err := s.db.QueryRow("SELECT detected_text FROM image_ocr WHERE id = ?", imageID).Scan(&detected)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", ErrImageNotFound
		}
		return "", fmt.Errorf("failed to query image text: %w", err)
	}
	return detected, nil
}
