package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
)

func TestLoad_NoFile(t *testing.T) {
	t.Parallel()

	log := slog.Default()
	path, err := Load("/nonexistent/path/config.yaml", log)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if path != "" {
		t.Errorf("expected empty path, got %q", path)
	}
}

func TestLoad_ValidFile(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.yaml")

	content := []byte(`
catalog:
  path: data/cameras.tsv
  delimiter: tab
store:
  backend: qdrant
  path: /var/lib/shopai
  collection: spring_catalog
  score_threshold: 0.25
  qdrant:
    host: qdrant.internal
    port: 6334
model:
  provider: ollama
  temperature: 0.1
  ollama:
    model: mistral
embedding:
  provider: ollama
  model: mxbai-embed-large
server:
  port: 9090
  rate_limit: 2.5
logging:
  level: debug
  format: text
`)

	if err := os.WriteFile(cfgPath, content, 0o644); err != nil {
		t.Fatal(err)
	}

	envKeys := []string{
		"CATALOG_PATH", "CATALOG_DELIMITER",
		"STORE_BACKEND", "STORE_PATH", "STORE_COLLECTION", "STORE_SCORE_THRESHOLD",
		"MODEL_PROVIDER", "MODEL_TEMPERATURE", "OLLAMA_MODEL",
		"EMBEDDING_PROVIDER", "EMBEDDING_MODEL",
		"QDRANT_HOST", "QDRANT_PORT",
		"SHOPAI_PORT", "SHOPAI_RATE_LIMIT",
		"LOG_LEVEL", "LOG_FORMAT",
	}
	for _, k := range envKeys {
		t.Setenv(k, "")
		os.Unsetenv(k)
	}

	log := slog.Default()
	loaded, err := Load(cfgPath, log)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if loaded != cfgPath {
		t.Errorf("loaded path: got %q, want %q", loaded, cfgPath)
	}

	checks := map[string]string{
		"CATALOG_PATH":          "data/cameras.tsv",
		"CATALOG_DELIMITER":     "tab",
		"STORE_BACKEND":         "qdrant",
		"STORE_PATH":            "/var/lib/shopai",
		"STORE_COLLECTION":      "spring_catalog",
		"STORE_SCORE_THRESHOLD": "0.25",
		"MODEL_PROVIDER":        "ollama",
		"MODEL_TEMPERATURE":     "0.1",
		"OLLAMA_MODEL":          "mistral",
		"EMBEDDING_PROVIDER":    "ollama",
		"EMBEDDING_MODEL":       "mxbai-embed-large",
		"QDRANT_HOST":           "qdrant.internal",
		"QDRANT_PORT":           "6334",
		"SHOPAI_PORT":           "9090",
		"SHOPAI_RATE_LIMIT":     "2.5",
		"LOG_LEVEL":             "debug",
		"LOG_FORMAT":            "text",
	}
	for k, want := range checks {
		if got := os.Getenv(k); got != want {
			t.Errorf("%s: got %q, want %q", k, got, want)
		}
	}
}

func TestLoad_EnvOverridesYAML(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.yaml")

	content := []byte(`
store:
  collection: from_yaml
`)
	if err := os.WriteFile(cfgPath, content, 0o644); err != nil {
		t.Fatal(err)
	}

	t.Setenv("STORE_COLLECTION", "from_env")

	if _, err := Load(cfgPath, slog.Default()); err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if got := os.Getenv("STORE_COLLECTION"); got != "from_env" {
		t.Errorf("STORE_COLLECTION: expected env override %q, got %q", "from_env", got)
	}
}

func TestLoad_ConfigEnvVar(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "shopai.yaml")
	if err := os.WriteFile(cfgPath, []byte("catalog:\n  path: phones.csv\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	t.Setenv("SHOPAI_CONFIG", cfgPath)
	t.Setenv("CATALOG_PATH", "")
	os.Unsetenv("CATALOG_PATH")

	loaded, err := Load("", slog.Default())
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if loaded != cfgPath {
		t.Errorf("loaded path: got %q, want %q", loaded, cfgPath)
	}
	if got := os.Getenv("CATALOG_PATH"); got != "phones.csv" {
		t.Errorf("CATALOG_PATH: got %q, want %q", got, "phones.csv")
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.yaml")

	if err := os.WriteFile(cfgPath, []byte("{{invalid yaml"), 0o644); err != nil {
		t.Fatal(err)
	}

	_, err := Load(cfgPath, slog.Default())
	if err == nil {
		t.Fatal("expected error for invalid YAML")
	}
}

func TestLoad_RejectsInvalidCatalogSettings(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"unknown backend":    "store:\n  backend: chroma\n",
		"quote delimiter":    "catalog:\n  delimiter: '\"'\n",
		"two-char delimiter": "catalog:\n  delimiter: ';;'\n",
		"threshold above 1":  "store:\n  score_threshold: 1.5\n",
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			cfgPath := filepath.Join(t.TempDir(), "config.yaml")
			if err := os.WriteFile(cfgPath, []byte(body), 0o644); err != nil {
				t.Fatal(err)
			}
			if _, err := Load(cfgPath, slog.Default()); err == nil {
				t.Errorf("expected error for %s", name)
			}
		})
	}
}

func TestFloat32Str(t *testing.T) {
	t.Parallel()
	tests := []struct {
		in   float32
		want string
	}{
		{0.0, ""},
		{0.2, "0.2"},
		{0.25, "0.25"},
		{1.0, "1"},
	}
	for _, tt := range tests {
		if got := float32Str(tt.in); got != tt.want {
			t.Errorf("float32Str(%v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
