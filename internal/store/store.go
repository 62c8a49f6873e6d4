// Package store provides the local, file-backed vector collection used when
// no external vector database is configured. Documents, their metadata and
// their embeddings live in a single SQLite database under the storage
// directory, so an ingested catalog survives restarts.
package store

import (
	"context"
	"database/sql"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // register "sqlite" driver

	"github.com/54b3r/shopai-go/internal/rag"
)

// DBFileName is the database file created inside the storage directory.
const DBFileName = "shopai.db"

// Options tunes search behaviour.
type Options struct {
	// ScoreThreshold drops hits with cosine similarity below it. Zero disables it.
	ScoreThreshold float32
}

// SQLiteStore is a rag.VectorStore holding one named collection in a local
// SQLite database. Search is an exact brute-force cosine scan, which suits
// catalogs of a few thousand rows.
type SQLiteStore struct {
	// db is the underlying database connection pool.
	db *sql.DB

	// collection scopes every query to one named collection.
	collection string

	// opts holds the search options.
	opts Options
}

var _ rag.VectorStore = (*SQLiteStore)(nil)

// Open opens (or creates) the collection inside dir, creating dir when it
// does not exist. A directory or database that cannot be created or written
// yields an error wrapping rag.ErrStorageUnavailable.
func Open(dir, collection string, opts Options) (*SQLiteStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("%w: store: create %s: %w", rag.ErrStorageUnavailable, dir, err)
	}
	return OpenFile(filepath.Join(dir, DBFileName), collection, opts)
}

// OpenFile opens the collection in the database at path and runs the schema
// migration. Use ":memory:" for an in-memory database in tests.
func OpenFile(path, collection string, opts Options) (*SQLiteStore, error) {
	if collection == "" {
		return nil, fmt.Errorf("%w: store: collection name must not be empty", rag.ErrStorageUnavailable)
	}

	dsn := path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("%w: store: open %s: %w", rag.ErrStorageUnavailable, path, err)
	}
	// Single connection: keeps :memory: databases alive and avoids SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	s := &SQLiteStore{db: db, collection: collection, opts: opts}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%w: %w", rag.ErrStorageUnavailable, err)
	}
	return s, nil
}

// migrate creates the schema if it does not already exist.
func (s *SQLiteStore) migrate() error {
	const ddl = `
CREATE TABLE IF NOT EXISTS documents (
    seq          INTEGER PRIMARY KEY AUTOINCREMENT,
    id           TEXT    NOT NULL,
    collection   TEXT    NOT NULL,
    content      TEXT    NOT NULL,
    metadata     TEXT    NOT NULL,
    embedding    BLOB    NOT NULL,
    created_at   INTEGER NOT NULL, -- Unix timestamp (seconds)
    UNIQUE (collection, id)
);
CREATE INDEX IF NOT EXISTS idx_documents_collection
    ON documents (collection, seq);
`
	if _, err := s.db.Exec(ddl); err != nil {
		return fmt.Errorf("store: migrate: %w", err)
	}
	return nil
}

// Count returns the number of documents in the collection.
func (s *SQLiteStore) Count(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM documents WHERE collection = ?`, s.collection).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("store: count: %w", err)
	}
	return n, nil
}

// Add inserts all documents in a single transaction. Documents without an ID
// get a random UUID.
func (s *SQLiteStore) Add(ctx context.Context, docs []rag.Document, embeddings [][]float32) error {
	if len(docs) != len(embeddings) {
		return fmt.Errorf("store: %d documents but %d embeddings", len(docs), len(embeddings))
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("store: begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `
INSERT INTO documents (id, collection, content, metadata, embedding, created_at)
VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("store: prepare insert: %w", err)
	}
	defer stmt.Close()

	now := time.Now().Unix()
	for i, doc := range docs {
		id := doc.ID
		if id == "" {
			id = uuid.NewString()
		}
		meta, err := json.Marshal(doc.Metadata)
		if err != nil {
			return fmt.Errorf("store: encode metadata: %w", err)
		}
		if _, err := stmt.ExecContext(ctx, id, s.collection, doc.Content, string(meta), encodeVector(embeddings[i]), now); err != nil {
			return fmt.Errorf("store: insert: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("store: commit: %w", err)
	}
	return nil
}

// Search scores every document of the collection by cosine similarity and
// returns the best topK. Equal scores keep insertion order.
func (s *SQLiteStore) Search(ctx context.Context, queryEmbedding []float32, topK int) ([]rag.Document, error) {
	if topK <= 0 {
		return []rag.Document{}, nil
	}

	rows, err := s.db.QueryContext(ctx, `
SELECT id, content, metadata, embedding
FROM   documents
WHERE  collection = ?
ORDER  BY seq ASC`, s.collection)
	if err != nil {
		return nil, fmt.Errorf("store: search: %w", err)
	}
	defer rows.Close()

	hits := []rag.Document{}
	for rows.Next() {
		var (
			doc  rag.Document
			meta string
			blob []byte
		)
		if err := rows.Scan(&doc.ID, &doc.Content, &meta, &blob); err != nil {
			return nil, fmt.Errorf("store: search scan: %w", err)
		}
		vec, err := decodeVector(blob)
		if err != nil {
			return nil, fmt.Errorf("store: document %s: %w", doc.ID, err)
		}
		if len(vec) != len(queryEmbedding) {
			return nil, fmt.Errorf("store: query has %d dimensions, document %s has %d",
				len(queryEmbedding), doc.ID, len(vec))
		}
		doc.Score = cosine(queryEmbedding, vec)
		if s.opts.ScoreThreshold > 0 && doc.Score < s.opts.ScoreThreshold {
			continue
		}
		if err := json.Unmarshal([]byte(meta), &doc.Metadata); err != nil {
			return nil, fmt.Errorf("store: document %s metadata: %w", doc.ID, err)
		}
		hits = append(hits, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: search rows: %w", err)
	}

	sort.SliceStable(hits, func(i, j int) bool { return hits[i].Score > hits[j].Score })
	if len(hits) > topK {
		hits = hits[:topK]
	}
	return hits, nil
}

// Reset deletes every document of the collection.
func (s *SQLiteStore) Reset(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM documents WHERE collection = ?`, s.collection); err != nil {
		return fmt.Errorf("store: reset: %w", err)
	}
	return nil
}

// Ping verifies the database is reachable.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("store: ping: %w", err)
	}
	return nil
}

// Close releases the database connection pool.
func (s *SQLiteStore) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("store: close: %w", err)
	}
	return nil
}

// encodeVector packs v as little-endian float32s.
func encodeVector(v []float32) []byte {
	buf := make([]byte, 4*len(v))
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[4*i:], math.Float32bits(f))
	}
	return buf
}

func decodeVector(b []byte) ([]float32, error) {
	if len(b)%4 != 0 {
		return nil, fmt.Errorf("embedding blob length %d is not a multiple of 4", len(b))
	}
	v := make([]float32, len(b)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[4*i:]))
	}
	return v, nil
}

// cosine returns the cosine similarity of a and b, or 0 when either is a
// zero vector.
func cosine(a, b []float32) float32 {
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return float32(dot / (math.Sqrt(na) * math.Sqrt(nb)))
}
