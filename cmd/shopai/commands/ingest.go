package commands

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/54b3r/shopai-go/internal/logging"
)

// NewIngestCmd constructs the `shopai ingest` command, which indexes the
// catalog into the collection and reports what it found.
func NewIngestCmd() *cobra.Command {
	var reset bool

	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Index the product catalog into the collection",
		Long: `Load the catalog (CATALOG_PATH, default cameras.csv) and index it.

Ingestion only happens when the collection is empty. A populated collection is
left untouched even if the catalog file has changed; use --reset to clear it
and re-index.

Environment variables:
  CATALOG_PATH          catalog file (default: cameras.csv)
  CATALOG_DELIMITER     field delimiter, e.g. ";" or "tab" (default: , or tab for .tsv)
  STORE_BACKEND         local or qdrant (default: local)
  STORE_PATH            local collection directory (default: ./shopai_db)
  STORE_COLLECTION      collection name (default: camera_products)
  QDRANT_HOST/PORT      Qdrant gRPC endpoint (default: localhost:6334)
  EMBEDDING_PROVIDER    ollama, openai, azure (default: MODEL_PROVIDER, then ollama)
  EMBEDDING_MODEL       embedding model (ollama default: mxbai-embed-large)

Examples:
  shopai ingest
  shopai ingest --reset
  CATALOG_PATH=./cameras.tsv shopai ingest`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			log := logging.FromContext(ctx)

			ci, err := buildIndex(ctx, prometheus.NewRegistry())
			if err != nil {
				return fmt.Errorf("ingest: %w", err)
			}
			defer ci.Close()

			if reset {
				if err := ci.index.Reset(ctx); err != nil {
					return fmt.Errorf("ingest: reset: %w", err)
				}
				log.Info("ingest: collection reset")
			}

			report, err := ingestCatalog(ctx, ci.index, func(msg string) { log.Info(msg) })
			if err != nil {
				return fmt.Errorf("ingest: %w", err)
			}

			count, err := ci.index.Count(ctx)
			if err != nil {
				return fmt.Errorf("ingest: %w", err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "records:    %d\n", report.Records)
			if report.Result.Skipped {
				fmt.Fprintf(out, "ingested:   skipped (collection already populated)\n")
			} else {
				fmt.Fprintf(out, "ingested:   %d\n", report.Result.Inserted)
			}
			fmt.Fprintf(out, "collection: %d documents\n", count)

			cols := report.Schema.Columns()
			fields := make([]string, 0, len(cols))
			for f := range cols {
				fields = append(fields, f)
			}
			sort.Strings(fields)
			for _, f := range fields {
				fmt.Fprintf(out, "  %-12s <- %s\n", f, cols[f])
			}
			if missing := report.Schema.Unresolved(); len(missing) > 0 {
				names := make([]string, len(missing))
				for i, f := range missing {
					names[i] = f.String()
				}
				fmt.Fprintf(out, "unresolved: %s (rendered as N/A)\n", strings.Join(names, ", "))
			}

			log.Info("ingest complete",
				slog.Int("records", report.Records),
				slog.Int("collection", count),
			)
			return nil
		},
	}

	cmd.Flags().BoolVar(&reset, "reset", false, "Clear the collection before ingesting")

	return cmd
}
