// Package rag defines the retrieval side of the assistant: the document
// model, the vector collection contract, the embedding contract and the
// Index that ties them together. Concrete collections (the local SQLite
// collection in internal/store, Qdrant here) satisfy VectorStore so the
// session layer never depends on a specific backend.
package rag

import (
	"context"
)

// Metadata keys attached to every indexed catalog document.
const (
	MetaProduct = "product"
	MetaBrand   = "brand"
	MetaPrice   = "price"
	MetaRating  = "rating"
)

// Document is one indexed catalog record.
type Document struct {
	// ID is the unique identifier assigned by the collection on insert.
	ID string

	// Content is the multi-line text block that is embedded and shown to the model.
	Content string

	// Metadata holds the product, brand, price and rating of the record.
	Metadata map[string]string

	// Score is the similarity score assigned during retrieval.
	// Zero value means the score was not computed.
	Score float32
}

// VectorStore is a named, persistent collection of documents and their
// embeddings. Implementations must be safe to call from multiple goroutines.
type VectorStore interface {
	// Count returns the number of documents in the collection.
	Count(ctx context.Context) (int, error)

	// Add inserts a batch of documents in a single bulk operation.
	// embeddings[i] is the vector for docs[i].
	Add(ctx context.Context, docs []Document, embeddings [][]float32) error

	// Search returns at most topK documents ordered by descending similarity
	// to queryEmbedding. An empty collection yields an empty slice.
	Search(ctx context.Context, queryEmbedding []float32, topK int) ([]Document, error)

	// Reset removes every document from the collection.
	Reset(ctx context.Context) error

	// Close releases any resources held by the store.
	Close() error
}

// Embedder converts text into dense vector embeddings.
// Implementations must be safe to call from multiple goroutines.
type Embedder interface {
	// Embed converts a batch of texts into their corresponding embeddings.
	// The returned slice is parallel to the input slice.
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// Retriever fetches the documents most relevant to a question.
type Retriever interface {
	// Retrieve returns at most topK documents ordered by descending score.
	Retrieve(ctx context.Context, query string, topK int) ([]Document, error)
}
