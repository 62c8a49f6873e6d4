package rag

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/54b3r/shopai-go/internal/logging"
)

// DefaultTopK is the number of documents retrieved per question.
const DefaultTopK = 5

// IndexOptions configures an Index.
type IndexOptions struct {
	// DefaultTopK is used when Retrieve is called with topK <= 0.
	DefaultTopK int
}

// IngestResult reports what IngestIfEmpty did.
type IngestResult struct {
	// Inserted is the number of documents added.
	Inserted int

	// Existing is the document count found before ingestion.
	Existing int

	// Skipped is true when the collection was already populated.
	Skipped bool
}

// Index combines a VectorStore with the Embedder used both at ingest and at
// query time. Using one embedder for both sides keeps vectors comparable.
type Index struct {
	// store persists documents and performs similarity search.
	store VectorStore

	// embedder converts document contents and queries to vectors.
	embedder Embedder

	// defaultTopK is the number of results when the caller passes 0.
	defaultTopK int
}

// NewIndex constructs an Index over store using embedder.
func NewIndex(store VectorStore, embedder Embedder, opts IndexOptions) (*Index, error) {
	if store == nil {
		return nil, fmt.Errorf("rag: store must not be nil")
	}
	if embedder == nil {
		return nil, fmt.Errorf("rag: embedder must not be nil")
	}
	if opts.DefaultTopK <= 0 {
		opts.DefaultTopK = DefaultTopK
	}
	return &Index{
		store:       store,
		embedder:    embedder,
		defaultTopK: opts.DefaultTopK,
	}, nil
}

// IngestIfEmpty embeds and inserts docs only when the collection holds no
// documents. A non-empty collection is left untouched even if docs differ
// from what it holds: the guard is a coarse count check, not a content
// comparison. Count and insert are two separate calls, so two processes
// initialising the same empty collection at once can both attempt the
// insert; a store that enforces unique document ids rejects the second one.
func (ix *Index) IngestIfEmpty(ctx context.Context, docs []Document) (IngestResult, error) {
	log := logging.FromContext(ctx)

	n, err := ix.store.Count(ctx)
	if err != nil {
		return IngestResult{}, fmt.Errorf("%w: count: %w", ErrStorageFailure, err)
	}
	if n > 0 {
		log.Info("rag: collection already populated, skipping ingestion",
			slog.Int("documents", n),
		)
		return IngestResult{Existing: n, Skipped: true}, nil
	}
	if len(docs) == 0 {
		return IngestResult{}, nil
	}

	texts := make([]string, len(docs))
	for i, d := range docs {
		texts[i] = d.Content
	}
	embeddings, err := ix.embedder.Embed(ctx, texts)
	if err != nil {
		return IngestResult{}, fmt.Errorf("%w: %w", ErrEmbeddingFailure, err)
	}
	if len(embeddings) != len(docs) {
		return IngestResult{}, fmt.Errorf("%w: got %d embeddings for %d documents",
			ErrEmbeddingFailure, len(embeddings), len(docs))
	}

	if err := ix.store.Add(ctx, docs, embeddings); err != nil {
		return IngestResult{}, fmt.Errorf("%w: add: %w", ErrStorageFailure, err)
	}

	log.Info("rag: collection populated", slog.Int("documents", len(docs)))
	return IngestResult{Inserted: len(docs)}, nil
}

// Retrieve embeds query and returns at most topK documents ordered by
// descending score. If topK is 0 the configured default is used.
func (ix *Index) Retrieve(ctx context.Context, query string, topK int) ([]Document, error) {
	if topK <= 0 {
		topK = ix.defaultTopK
	}

	embeddings, err := ix.embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("%w: query: %w", ErrEmbeddingFailure, err)
	}
	if len(embeddings) != 1 {
		return nil, fmt.Errorf("%w: embedder returned %d vectors for one query",
			ErrEmbeddingFailure, len(embeddings))
	}

	docs, err := ix.store.Search(ctx, embeddings[0], topK)
	if err != nil {
		return nil, fmt.Errorf("%w: search: %w", ErrStorageFailure, err)
	}
	if len(docs) > topK {
		docs = docs[:topK]
	}

	logging.FromContext(ctx).Debug("rag: retrieved documents",
		slog.Int("top_k", topK),
		slog.Int("hits", len(docs)),
	)
	return docs, nil
}

// Count returns the number of documents in the collection.
func (ix *Index) Count(ctx context.Context) (int, error) {
	n, err := ix.store.Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("%w: count: %w", ErrStorageFailure, err)
	}
	return n, nil
}

// Reset removes every document so the next IngestIfEmpty repopulates the
// collection.
func (ix *Index) Reset(ctx context.Context) error {
	if err := ix.store.Reset(ctx); err != nil {
		return fmt.Errorf("%w: reset: %w", ErrStorageFailure, err)
	}
	return nil
}

// Close releases the underlying store.
func (ix *Index) Close() error {
	return ix.store.Close()
}
