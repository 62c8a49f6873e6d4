package commands

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/cloudwego/eino/components/model"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/54b3r/shopai-go/internal/logging"
	"github.com/54b3r/shopai-go/internal/provider"
	"github.com/54b3r/shopai-go/internal/server"
	"github.com/54b3r/shopai-go/internal/session"
	"github.com/54b3r/shopai-go/internal/tracing"
)

// NewServeCmd constructs the `shopai serve` command, which starts the HTTP
// API.
func NewServeCmd() *cobra.Command {
	var host string
	var port int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the shopai HTTP server",
		Long: `Start the shopai HTTP server.

Endpoints:
  POST /api/chat      ask a question, reply streamed as Server-Sent Events
  GET  /api/history   turns of a session (?session=<id>)
  GET  /api/health    liveness
  GET  /api/ready     catalog file, collection size, store, embedder, model
  GET  /metrics       Prometheus metrics

Set SHOPAI_API_KEY to require "Authorization: Bearer <key>" on /api/chat and
/api/history.

Examples:
  shopai serve
  shopai serve --port 9090
  MODEL_PROVIDER=openai shopai serve`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			log := logging.FromContext(ctx)

			log.Info("serve starting", slog.String("provider", os.Getenv("MODEL_PROVIDER")))

			// Langfuse tracing is opt-in, a no-op if keys are absent.
			flush := tracing.Enable(ctx)
			defer flush()

			ci, err := prepareIndex(ctx, prometheus.DefaultRegisterer, func(msg string) { log.Info(msg) })
			if err != nil {
				return fmt.Errorf("serve: %w", err)
			}
			defer ci.Close()

			shopAgent, chatModel, providerCfg, err := buildAgent(ctx)
			if err != nil {
				return fmt.Errorf("serve: %w", err)
			}

			mgr, err := session.NewManager(ci.index, shopAgent, session.Options{})
			if err != nil {
				return fmt.Errorf("serve: %w", err)
			}

			pingers, err := buildPingers(ci, chatModel, providerCfg)
			if err != nil {
				return fmt.Errorf("serve: %w", err)
			}

			if !cmd.Flags().Changed("host") {
				host = getEnvOrDefault("SHOPAI_HOST", host)
			}
			if !cmd.Flags().Changed("port") {
				port = getEnvInt("SHOPAI_PORT", port)
			}

			srv, err := server.New(mgr, &server.Config{
				Host:      host,
				Port:      port,
				Logger:    log,
				Catalog: server.CatalogInfo{
					Path:       getEnvOrDefault("CATALOG_PATH", defaultCatalogPath),
					Collection: getEnvOrDefault("STORE_COLLECTION", defaultCollection),
					Index:      ci.index,
				},
				Pingers:   pingers,
				APIKey:    os.Getenv("SHOPAI_API_KEY"),
				RateLimit: getEnvFloat64("SHOPAI_RATE_LIMIT", 0),
				RateBurst: getEnvInt("SHOPAI_RATE_BURST", 0),
			})
			if err != nil {
				return fmt.Errorf("serve: failed to create server: %w", err)
			}

			return srv.Start(ctx)
		},
	}

	cmd.Flags().StringVar(&host, "host", "127.0.0.1", "Host address to bind to")
	cmd.Flags().IntVarP(&port, "port", "p", 8080, "TCP port to listen on")

	return cmd
}

// buildPingers returns the readiness probes for the store, the embedder and
// the chat model. Ollama is probed with its heartbeat; hosted backends fall
// back to a minimal generate call.
func buildPingers(ci *catalogIndex, chatModel model.BaseChatModel, cfg *provider.Config) ([]server.Pinger, error) {
	pingers := []server.Pinger{
		server.NewDependencyPinger("store:"+ci.backend, ci.store),
		server.NewDependencyPinger("embedder", ci.embedder),
	}

	if cfg.Backend == provider.BackendOllama {
		op, err := server.NewOllamaPinger(cfg.Ollama.Host)
		if err != nil {
			return nil, err
		}
		return append(pingers, op), nil
	}
	return append(pingers, server.NewLLMPinger(chatModel, string(cfg.Backend))), nil
}
