// Package ingestion turns the product catalog into indexed documents.
// It loads the catalog file, renders every record as a labelled text block
// with metadata, and hands the batch to the index, which embeds and stores
// it only when the collection is still empty. This pipeline runs on every
// start-up of `shopai chat`, `shopai ask` and `shopai serve`, and on demand
// via `shopai ingest`.
package ingestion

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/54b3r/shopai-go/internal/catalog"
	"github.com/54b3r/shopai-go/internal/logging"
	"github.com/54b3r/shopai-go/internal/rag"
)

// Ingester is the index operation the pipeline drives.
type Ingester interface {
	// IngestIfEmpty embeds and stores docs when the collection is empty.
	IngestIfEmpty(ctx context.Context, docs []rag.Document) (rag.IngestResult, error)
}

// Config holds the configuration for the ingestion pipeline.
type Config struct {
	// CatalogPath is the delimited catalog file to load.
	CatalogPath string

	// Comma is the field delimiter. Zero selects by file extension.
	Comma rune
}

// Report summarises one pipeline run.
type Report struct {
	// Records is the number of catalog rows loaded.
	Records int

	// Schema is the resolved column mapping.
	Schema catalog.Schema

	// Result is what the index did with the documents.
	Result rag.IngestResult
}

// Pipeline orchestrates the load → build → ingest flow.
type Pipeline struct {
	// index receives the built documents.
	index Ingester

	// cfg holds the resolved pipeline configuration.
	cfg *Config
}

// NewPipeline constructs a Pipeline from the provided index and config.
func NewPipeline(index Ingester, cfg *Config) (*Pipeline, error) {
	if index == nil {
		return nil, fmt.Errorf("ingestion: index must not be nil")
	}
	if cfg == nil || cfg.CatalogPath == "" {
		return nil, fmt.Errorf("ingestion: catalog path must not be empty")
	}
	return &Pipeline{index: index, cfg: cfg}, nil
}

// Run loads the catalog and ingests it if the collection is empty.
// Progress is reported via the optional progress callback.
func (p *Pipeline) Run(ctx context.Context, progress func(msg string)) (Report, error) {
	if progress == nil {
		progress = func(string) {}
	}
	log := logging.FromContext(ctx)

	progress(fmt.Sprintf("loading %s", p.cfg.CatalogPath))
	records, schema, err := catalog.Load(p.cfg.CatalogPath, catalog.Options{Comma: p.cfg.Comma})
	if err != nil {
		return Report{}, fmt.Errorf("ingestion: %w", err)
	}

	unresolved := make([]string, 0, len(catalog.Fields))
	for _, f := range schema.Unresolved() {
		unresolved = append(unresolved, f.String())
	}
	log.Info("ingestion: catalog loaded",
		slog.String("path", p.cfg.CatalogPath),
		slog.Int("records", len(records)),
		slog.Any("columns", schema.Columns()),
		slog.Any("unresolved", unresolved),
	)

	docs := make([]rag.Document, len(records))
	for i, rec := range records {
		doc := BuildDocument(rec)
		doc.ID = recordID(p.cfg.CatalogPath, i)
		docs[i] = doc
	}
	progress(fmt.Sprintf("built %d documents", len(docs)))

	res, err := p.index.IngestIfEmpty(ctx, docs)
	if err != nil {
		return Report{}, fmt.Errorf("ingestion: %w", err)
	}
	if res.Skipped {
		progress(fmt.Sprintf("collection already holds %d documents, skipped", res.Existing))
	} else {
		progress(fmt.Sprintf("ingested %d documents", res.Inserted))
	}

	return Report{Records: len(records), Schema: schema, Result: res}, nil
}

// recordID derives a stable UUID for a catalog row from its source path and
// row index, so the same file yields the same ids in either backend.
func recordID(path string, row int) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, fmt.Appendf(nil, "%s#%d", path, row)).String()
}
