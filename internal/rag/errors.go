package rag

import "errors"

var (
	// ErrStorageUnavailable means the collection could not be opened or created.
	ErrStorageUnavailable = errors.New("rag: storage unavailable")

	// ErrStorageFailure means a count, insert, search or reset call failed.
	ErrStorageFailure = errors.New("rag: storage failure")

	// ErrEmbeddingFailure means the embedding service failed or returned
	// a malformed result.
	ErrEmbeddingFailure = errors.New("rag: embedding failure")
)
