package embedder

import (
	"fmt"
	"os"
	"strconv"

	"github.com/54b3r/shopai-go/internal/rag"
)

// Default embedding models per backend.
const (
	defaultOllamaModel = "mxbai-embed-large"
	defaultOpenAIModel = "text-embedding-3-small"

	defaultOllamaHost      = "http://localhost:11434"
	defaultAzureAPIVersion = "2025-04-01-preview"
)

// Settings is the resolved embedding configuration.
type Settings struct {
	// Backend is the embedding backend: ollama, openai or azure.
	Backend string
	// Model is the embedding model (or Azure deployment) name.
	Model string
	// Endpoint is the Ollama host, OpenAI base URL or Azure resource endpoint.
	Endpoint string
	// APIKey authenticates against OpenAI or Azure. Unused by Ollama.
	APIKey string
	// APIVersion is the Azure OpenAI API version.
	APIVersion string
	// Dimensions requests a reduced vector size (OpenAI/Azure only). Zero keeps the model default.
	Dimensions int
}

// Resolve reads the embedding configuration from the environment using
// cascading defaults that inherit from the chat provider configuration when
// embedding-specific overrides are not set.
//
// Resolution order:
//
//  1. EMBEDDING_PROVIDER, if unset inherits MODEL_PROVIDER (default: ollama)
//  2. Per-backend credentials are inherited from the chat provider's env vars
//  3. EMBEDDING_MODEL overrides the default model for the resolved backend
//  4. EMBEDDING_API_KEY overrides the inherited API key
//  5. EMBEDDING_ENDPOINT overrides the inherited endpoint
//  6. EMBEDDING_DIMENSIONS requests a reduced vector size
func Resolve() Settings {
	s := Settings{
		Backend:    getEnv("EMBEDDING_PROVIDER"),
		Model:      getEnv("EMBEDDING_MODEL"),
		Endpoint:   getEnv("EMBEDDING_ENDPOINT"),
		APIKey:     getEnv("EMBEDDING_API_KEY"),
		Dimensions: getEnvInt("EMBEDDING_DIMENSIONS", 0),
	}
	if s.Backend == "" {
		s.Backend = getEnvOrDefault("MODEL_PROVIDER", "ollama")
	}

	switch s.Backend {
	case "ollama":
		if s.Endpoint == "" {
			s.Endpoint = getEnvOrDefault("OLLAMA_HOST", defaultOllamaHost)
		}
		if s.Model == "" {
			s.Model = defaultOllamaModel
		}
	case "openai":
		if s.APIKey == "" {
			s.APIKey = getEnv("OPENAI_API_KEY")
		}
		if s.Model == "" {
			s.Model = defaultOpenAIModel
		}
	case "azure":
		if s.APIKey == "" {
			s.APIKey = getEnv("AZURE_OPENAI_API_KEY")
		}
		if s.Endpoint == "" {
			s.Endpoint = getEnv("AZURE_OPENAI_ENDPOINT")
		}
		if s.Model == "" {
			s.Model = defaultOpenAIModel
		}
		s.APIVersion = getEnvOrDefault("AZURE_OPENAI_API_VERSION", defaultAzureAPIVersion)
	}
	return s
}

// New constructs the rag.Embedder described by s.
func New(s Settings) (rag.Embedder, error) {
	switch s.Backend {
	case "ollama":
		return NewOllamaEmbedder(&OllamaConfig{
			Host:  s.Endpoint,
			Model: s.Model,
		})

	case "openai":
		if s.APIKey == "" {
			return nil, fmt.Errorf("embedder: openai requires OPENAI_API_KEY or EMBEDDING_API_KEY")
		}
		return NewOpenAIEmbedder(&OpenAIConfig{
			BaseURL:    s.Endpoint,
			APIKey:     s.APIKey,
			Model:      s.Model,
			Dimensions: s.Dimensions,
		}), nil

	case "azure":
		if s.APIKey == "" {
			return nil, fmt.Errorf("embedder: azure requires AZURE_OPENAI_API_KEY or EMBEDDING_API_KEY")
		}
		if s.Endpoint == "" {
			return nil, fmt.Errorf("embedder: azure requires AZURE_OPENAI_ENDPOINT or EMBEDDING_ENDPOINT")
		}
		return NewOpenAIEmbedder(&OpenAIConfig{
			BaseURL:    s.Endpoint,
			APIKey:     s.APIKey,
			Model:      s.Model,
			Dimensions: s.Dimensions,
			Azure:      true,
			APIVersion: s.APIVersion,
		}), nil

	case "bedrock", "gemini":
		return nil, fmt.Errorf("embedder: %s embedding is not supported, set EMBEDDING_PROVIDER to ollama, openai or azure", s.Backend)

	default:
		return nil, fmt.Errorf("embedder: unknown backend %q, valid values: ollama, openai, azure", s.Backend)
	}
}

// NewFromEnv is New(Resolve()).
func NewFromEnv() (rag.Embedder, error) {
	return New(Resolve())
}

// getEnv returns the value of the named environment variable, or empty string.
func getEnv(key string) string {
	return os.Getenv(key)
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
// fallback if the variable is unset, empty, or not parseable.
func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}
