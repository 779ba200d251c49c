// Package storage provides the SQLite implementation of the Storage interface.
package storage

import (
	"context"
	"database/sql"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/opsmind-ai/opsmind/internal/models"
)

// SQLiteStorage implements Storage using SQLite.
type SQLiteStorage struct {
	db *sql.DB
}

// NewSQLiteStorage opens or creates a SQLite database at dbPath and initializes the schema.
// Parent directories are created if they do not exist.
func NewSQLiteStorage(dbPath string) (*SQLiteStorage, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}

	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &SQLiteStorage{db: db}, nil
}

func initSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS chunks (
		id TEXT PRIMARY KEY,
		source TEXT NOT NULL,
		text TEXT NOT NULL,
		chunk_index INTEGER NOT NULL,
		page INTEGER NOT NULL DEFAULT 0,
		line_start INTEGER NOT NULL DEFAULT 0,
		line_end INTEGER NOT NULL DEFAULT 0,
		embedding BLOB NOT NULL,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_chunks_source ON chunks(source);
	CREATE INDEX IF NOT EXISTS idx_chunks_source_index ON chunks(source, chunk_index);

	CREATE TABLE IF NOT EXISTS messages (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		session_key TEXT NOT NULL,
		role TEXT NOT NULL,
		content TEXT NOT NULL,
		citations TEXT,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_messages_session ON messages(session_key, id);

	CREATE TABLE IF NOT EXISTS meta (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);
	`
	_, err := db.Exec(schema)
	return err
}

// encodeEmbedding packs a float32 vector as little-endian bytes.
func encodeEmbedding(vec []float32) []byte {
	buf := make([]byte, len(vec)*4)
	for i, v := range vec {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(v))
	}
	return buf
}

// decodeEmbedding unpacks little-endian bytes into a float32 vector.
func decodeEmbedding(buf []byte) []float32 {
	vec := make([]float32, len(buf)/4)
	for i := range vec {
		vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[i*4:]))
	}
	return vec
}

// CreateChunk inserts a chunk row with its embedding.
func (s *SQLiteStorage) CreateChunk(ctx context.Context, chunk *models.Chunk) error {
	chunk.CreatedAt = time.Now()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO chunks (id, source, text, chunk_index, page, line_start, line_end, embedding, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		chunk.ID, chunk.Source, chunk.Text, chunk.ChunkIndex, chunk.Page,
		chunk.LineStart, chunk.LineEnd, encodeEmbedding(chunk.Embedding), chunk.CreatedAt,
	)
	return err
}

const chunkColumns = `id, source, text, chunk_index, page, line_start, line_end, embedding, created_at`

func scanChunk(row interface {
	Scan(dest ...interface{}) error
}) (*models.Chunk, error) {
	var chunk models.Chunk
	var blob []byte
	if err := row.Scan(&chunk.ID, &chunk.Source, &chunk.Text, &chunk.ChunkIndex,
		&chunk.Page, &chunk.LineStart, &chunk.LineEnd, &blob, &chunk.CreatedAt); err != nil {
		return nil, err
	}
	chunk.Embedding = decodeEmbedding(blob)
	return &chunk, nil
}

// GetChunk returns a chunk by ID.
func (s *SQLiteStorage) GetChunk(ctx context.Context, id string) (*models.Chunk, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+chunkColumns+` FROM chunks WHERE id = ?`, id)
	chunk, err := scanChunk(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("chunk not found: %s", id)
	}
	if err != nil {
		return nil, err
	}
	return chunk, nil
}

// GetChunksBySource returns all chunks for a source ordered by chunk_index.
func (s *SQLiteStorage) GetChunksBySource(ctx context.Context, source string) ([]*models.Chunk, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+chunkColumns+` FROM chunks WHERE source = ? ORDER BY chunk_index`, source)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var chunks []*models.Chunk
	for rows.Next() {
		chunk, err := scanChunk(rows)
		if err != nil {
			return nil, err
		}
		chunks = append(chunks, chunk)
	}
	return chunks, rows.Err()
}

// DeleteChunksBySource removes all chunks for a source and reports how many.
func (s *SQLiteStorage) DeleteChunksBySource(ctx context.Context, source string) (int64, error) {
	result, err := s.db.ExecContext(ctx, `DELETE FROM chunks WHERE source = ?`, source)
	if err != nil {
		return 0, err
	}
	n, _ := result.RowsAffected()
	return n, nil
}

// AllChunkVectors returns every chunk's (id, embedding) in insertion order.
func (s *SQLiteStorage) AllChunkVectors(ctx context.Context) ([]ChunkVector, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, embedding FROM chunks ORDER BY rowid`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ChunkVector
	for rows.Next() {
		var cv ChunkVector
		var blob []byte
		if err := rows.Scan(&cv.ID, &blob); err != nil {
			return nil, err
		}
		cv.Embedding = decodeEmbedding(blob)
		out = append(out, cv)
	}
	return out, rows.Err()
}

// AppendMessage inserts one message row. The insert is the atomic append:
// there is no read-modify-write of a message list anywhere.
func (s *SQLiteStorage) AppendMessage(ctx context.Context, sessionKey string, msg *models.Message) error {
	var citations interface{}
	if len(msg.Citations) > 0 {
		data, err := json.Marshal(msg.Citations)
		if err != nil {
			return fmt.Errorf("failed to marshal citations: %w", err)
		}
		citations = string(data)
	}
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO messages (session_key, role, content, citations, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
		sessionKey, msg.Role, msg.Content, citations, msg.Timestamp,
	)
	return err
}

// GetMessages returns a session's messages in append order. An unknown
// session yields an empty slice, not an error.
func (s *SQLiteStorage) GetMessages(ctx context.Context, sessionKey string) ([]*models.Message, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT role, content, citations, created_at FROM messages
		 WHERE session_key = ? ORDER BY id`, sessionKey)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	messages := make([]*models.Message, 0)
	for rows.Next() {
		var msg models.Message
		var citations sql.NullString
		if err := rows.Scan(&msg.Role, &msg.Content, &citations, &msg.Timestamp); err != nil {
			return nil, err
		}
		if citations.Valid && citations.String != "" {
			if err := json.Unmarshal([]byte(citations.String), &msg.Citations); err != nil {
				return nil, fmt.Errorf("failed to unmarshal citations: %w", err)
			}
		}
		messages = append(messages, &msg)
	}
	return messages, rows.Err()
}

// DeleteMessages removes all messages for a session.
func (s *SQLiteStorage) DeleteMessages(ctx context.Context, sessionKey string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM messages WHERE session_key = ?`, sessionKey)
	return err
}

// GetMeta returns the meta value for key, or "" if unset.
func (s *SQLiteStorage) GetMeta(ctx context.Context, key string) (string, error) {
	var value string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM meta WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return value, nil
}

// SetMeta stores a meta value.
func (s *SQLiteStorage) SetMeta(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO meta (key, value) VALUES (?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value`, key, value)
	return err
}

// CountChunks returns the total number of chunks.
func (s *SQLiteStorage) CountChunks(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM chunks`).Scan(&count)
	return count, err
}

// CountSources returns the number of distinct source documents.
func (s *SQLiteStorage) CountSources(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(DISTINCT source) FROM chunks`).Scan(&count)
	return count, err
}

// ListSources returns the distinct source documents in the store.
func (s *SQLiteStorage) ListSources(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT DISTINCT source FROM chunks ORDER BY source`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sources []string
	for rows.Next() {
		var src string
		if err := rows.Scan(&src); err != nil {
			return nil, err
		}
		sources = append(sources, src)
	}
	return sources, rows.Err()
}

// Close closes the database connection.
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}
