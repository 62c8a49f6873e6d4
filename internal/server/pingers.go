package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/ollama/ollama/api"

	"github.com/54b3r/shopai-go/internal/logging"
)

// pingTarget is any dependency handle with its own reachability probe,
// such as a vector store or an instrumented embedder.
type pingTarget interface {
	Ping(ctx context.Context) error
}

// DependencyPinger adapts a pingTarget to the Pinger interface under a fixed
// name.
type DependencyPinger struct {
	// name identifies the dependency in readiness responses.
	name string
	// target is probed on every readiness check.
	target pingTarget
}

// NewDependencyPinger constructs a Pinger named name that probes target.
func NewDependencyPinger(name string, target pingTarget) *DependencyPinger {
	return &DependencyPinger{name: name, target: target}
}

// Name returns the dependency label used in readiness responses.
func (p *DependencyPinger) Name() string { return p.name }

// Ping delegates to the wrapped target.
func (p *DependencyPinger) Ping(ctx context.Context) error {
	if err := p.target.Ping(ctx); err != nil {
		return fmt.Errorf("%s: %w", p.name, err)
	}
	return nil
}

// OllamaPinger probes an Ollama server with its zero-cost heartbeat
// endpoint. Used for the chat model when MODEL_PROVIDER=ollama.
type OllamaPinger struct {
	// client is the Ollama API client to probe.
	client *api.Client
}

// NewOllamaPinger constructs an OllamaPinger for the server at host.
func NewOllamaPinger(host string) (*OllamaPinger, error) {
	u, err := url.Parse(host)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("server: invalid ollama host %q", host)
	}
	return &OllamaPinger{client: api.NewClient(u, http.DefaultClient)}, nil
}

// Name returns the dependency label used in readiness responses.
func (p *OllamaPinger) Name() string { return "ollama" }

// Ping calls the Ollama heartbeat endpoint.
func (p *OllamaPinger) Ping(ctx context.Context) error {
	if err := p.client.Heartbeat(ctx); err != nil {
		return fmt.Errorf("heartbeat failed: %w", err)
	}
	return nil
}

// LLMPinger probes a hosted LLM backend by sending a minimal generate
// request. It consumes tokens on every probe, so it is only used for
// backends without a cheaper health endpoint.
type LLMPinger struct {
	// model is the chat model to probe.
	model model.BaseChatModel
	// name identifies the backend in readiness responses (e.g. "openai").
	name string
}

// NewLLMPinger constructs an LLMPinger for the given model and backend name.
func NewLLMPinger(m model.BaseChatModel, name string) *LLMPinger {
	return &LLMPinger{model: m, name: name}
}

// Name returns the backend label used in readiness responses.
func (p *LLMPinger) Name() string { return p.name }

// Ping sends a single "ping" message and expects any non-nil reply.
func (p *LLMPinger) Ping(ctx context.Context) error {
	logging.FromContext(ctx).Debug("pinger: generate-based health check consumes tokens",
		slog.String("backend", p.name),
	)
	resp, err := p.model.Generate(ctx, []*schema.Message{schema.UserMessage("ping")})
	if err != nil {
		return fmt.Errorf("generate failed: %w", err)
	}
	if resp == nil {
		return fmt.Errorf("generate returned nil response")
	}
	return nil
}
