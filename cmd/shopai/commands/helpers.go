package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strconv"

	"github.com/cloudwego/eino/components/model"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/54b3r/shopai-go/internal/agent"
	"github.com/54b3r/shopai-go/internal/catalog"
	"github.com/54b3r/shopai-go/internal/embedder"
	"github.com/54b3r/shopai-go/internal/ingestion"
	"github.com/54b3r/shopai-go/internal/logging"
	"github.com/54b3r/shopai-go/internal/provider"
	"github.com/54b3r/shopai-go/internal/rag"
	"github.com/54b3r/shopai-go/internal/store"
)

// Defaults for the catalog and collection settings.
const (
	defaultCatalogPath = "cameras.csv"
	defaultStoreDir    = "./shopai_db"
	defaultCollection  = "camera_products"
	defaultQdrantPort  = 6334
)

// pingableStore is a collection that can also report its reachability.
type pingableStore interface {
	rag.VectorStore
	Ping(ctx context.Context) error
}

// catalogIndex bundles the handles every command needs to query the catalog.
type catalogIndex struct {
	// index answers retrievals and performs ingestion.
	index *rag.Index
	// store is the underlying collection, exposed for readiness probes.
	store pingableStore
	// embedder is the instrumented embedder, exposed for readiness probes.
	embedder *embedder.Instrumented
	// backend is the store backend name, for logs.
	backend string
}

// Close releases the collection.
func (c *catalogIndex) Close() error {
	return c.index.Close()
}

// openStore opens the collection selected by STORE_BACKEND.
func openStore(ctx context.Context) (pingableStore, string, error) {
	log := logging.FromContext(ctx)

	backend := getEnvOrDefault("STORE_BACKEND", "local")
	collection := getEnvOrDefault("STORE_COLLECTION", defaultCollection)
	threshold := getEnvFloat32("STORE_SCORE_THRESHOLD", 0)

	switch backend {
	case "local":
		dir := getEnvOrDefault("STORE_PATH", defaultStoreDir)
		st, err := store.Open(dir, collection, store.Options{ScoreThreshold: threshold})
		if err != nil {
			return nil, backend, err
		}
		log.Info("store: local collection opened",
			slog.String("path", dir),
			slog.String("collection", collection),
		)
		return st, backend, nil

	case "qdrant":
		host := getEnvOrDefault("QDRANT_HOST", "localhost")
		port := getEnvInt("QDRANT_PORT", defaultQdrantPort)
		st, err := rag.NewQdrantStore(ctx, &rag.QdrantConfig{
			Host:           host,
			Port:           port,
			Collection:     collection,
			ScoreThreshold: threshold,
			APIKey:         os.Getenv("QDRANT_API_KEY"),
			UseTLS:         os.Getenv("QDRANT_TLS") == "true",
		})
		if err != nil {
			return nil, backend, fmt.Errorf("qdrant at %s:%d: %w", host, port, err)
		}
		log.Info("store: qdrant collection ready",
			slog.String("host", host),
			slog.Int("port", port),
			slog.String("collection", collection),
		)
		return st, backend, nil

	default:
		return nil, backend, fmt.Errorf("%w: unknown STORE_BACKEND %q (want local or qdrant)", rag.ErrStorageUnavailable, backend)
	}
}

// buildIndex validates the embedding settings, opens the collection and
// returns the Index over both. Embedding metrics are registered in reg.
func buildIndex(ctx context.Context, reg prometheus.Registerer) (*catalogIndex, error) {
	log := logging.FromContext(ctx)

	settings := embedder.Resolve()
	if err := embedder.Validate(settings, log); err != nil {
		return nil, err
	}
	inner, err := embedder.New(settings)
	if err != nil {
		return nil, fmt.Errorf("failed to initialise embedder: %w", err)
	}
	emb := embedder.Instrument(inner, settings, embedder.NewMetrics(reg))
	log.Info("embedder initialised",
		slog.String("backend", settings.Backend),
		slog.String("model", settings.Model),
	)

	st, backend, err := openStore(ctx)
	if err != nil {
		return nil, err
	}

	ix, err := rag.NewIndex(st, emb, rag.IndexOptions{})
	if err != nil {
		_ = st.Close()
		return nil, err
	}
	return &catalogIndex{index: ix, store: st, embedder: emb, backend: backend}, nil
}

// ingestCatalog loads CATALOG_PATH into the index unless the collection is
// already populated.
func ingestCatalog(ctx context.Context, ix *rag.Index, progress func(string)) (ingestion.Report, error) {
	comma, err := catalog.ParseDelimiter(os.Getenv("CATALOG_DELIMITER"))
	if err != nil {
		return ingestion.Report{}, err
	}
	p, err := ingestion.NewPipeline(ix, &ingestion.Config{
		CatalogPath: getEnvOrDefault("CATALOG_PATH", defaultCatalogPath),
		Comma:       comma,
	})
	if err != nil {
		return ingestion.Report{}, err
	}
	return p.Run(ctx, progress)
}

// prepareIndex builds the index and ensures the catalog is ingested. It is
// the start-up sequence shared by ask, chat and serve.
func prepareIndex(ctx context.Context, reg prometheus.Registerer, progress func(string)) (*catalogIndex, error) {
	ci, err := buildIndex(ctx, reg)
	if err != nil {
		return nil, err
	}
	if _, err := ingestCatalog(ctx, ci.index, progress); err != nil {
		_ = ci.Close()
		return nil, err
	}
	return ci, nil
}

// buildAgent constructs the chat model from the environment and the
// answer agent around it.
func buildAgent(ctx context.Context) (*agent.ShoppingAgent, model.BaseChatModel, *provider.Config, error) {
	cfg := provider.ConfigFromEnv()
	chatModel, err := provider.New(ctx, cfg)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to initialise model provider: %w", err)
	}
	logging.FromContext(ctx).Info("provider initialised",
		slog.String("provider", string(cfg.Backend)),
		slog.String("model", cfg.ModelName()),
	)

	a, err := agent.New(ctx, &agent.Config{
		ChatModel:        chatModel,
		MaxContextTokens: getEnvInt("MODEL_MAX_CONTEXT_TOKENS", 0),
	})
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to initialise agent: %w", err)
	}
	return a, chatModel, cfg, nil
}

// getEnvOrDefault returns the value of the named environment variable, or
// fallback if the variable is unset or empty.
func getEnvOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// getEnvInt returns the integer value of the named environment variable, or
// fallback if the variable is unset or not a valid integer.
func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

// getEnvFloat32 returns the float value of the named environment variable,
// or fallback if unset or invalid.
func getEnvFloat32(key string, fallback float32) float32 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 32); err == nil {
			return float32(f)
		}
	}
	return fallback
}

// getEnvFloat64 returns the float value of the named environment variable,
// or fallback if unset or invalid.
func getEnvFloat64(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}
