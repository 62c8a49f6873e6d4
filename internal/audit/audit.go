// Package audit records which catalog, collection and backends a CLI
// invocation runs against. Settings are grouped by the stage of the
// question pipeline they configure, and credentials are reduced to
// "set"/"unset" before they reach the log.
package audit

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
)

// section is one stage of the pipeline and the environment keys that
// configure it, in log order.
type section struct {
	name string
	keys []string
}

// sections lists every setting included in the audit entry.
var sections = []section{
	{"catalog", []string{"CATALOG_PATH", "CATALOG_DELIMITER"}},
	{"store", []string{
		"STORE_BACKEND", "STORE_PATH", "STORE_COLLECTION", "STORE_SCORE_THRESHOLD",
		"QDRANT_HOST", "QDRANT_PORT", "QDRANT_TLS", "QDRANT_API_KEY",
	}},
	{"embedding", []string{
		"EMBEDDING_PROVIDER", "EMBEDDING_MODEL", "EMBEDDING_ENDPOINT",
		"EMBEDDING_DIMENSIONS", "EMBEDDING_API_KEY",
	}},
	{"model", []string{
		"MODEL_PROVIDER", "MODEL_MAX_CONTEXT_TOKENS",
		"OLLAMA_HOST", "OLLAMA_MODEL",
		"OPENAI_MODEL", "OPENAI_API_KEY",
		"AZURE_OPENAI_ENDPOINT", "AZURE_OPENAI_DEPLOYMENT", "AZURE_OPENAI_API_KEY",
		"GEMINI_MODEL", "GOOGLE_API_KEY",
		"AWS_REGION", "BEDROCK_MODEL_ID", "BEDROCK_API_KEY", "AWS_SECRET_ACCESS_KEY", "AWS_SESSION_TOKEN",
	}},
	{"server", []string{"SHOPAI_HOST", "SHOPAI_PORT", "SHOPAI_RATE_LIMIT", "SHOPAI_RATE_BURST", "SHOPAI_API_KEY"}},
	{"tracing", []string{"LANGFUSE_HOST", "LANGFUSE_PUBLIC_KEY", "LANGFUSE_SECRET_KEY"}},
	{"logging", []string{"LOG_LEVEL", "LOG_FORMAT", "LOG_FILE"}},
}

// secretSuffixes mark credential keys by naming convention.
var secretSuffixes = []string{"_API_KEY", "_SECRET_KEY", "_PUBLIC_KEY", "_SECRET_ACCESS_KEY", "_SESSION_TOKEN"}

// LogCommandStart emits one audit entry when a CLI command begins: the
// command, the config file it loaded, one group per pipeline stage and the
// state of the catalog file that ingestion would read.
func LogCommandStart(ctx context.Context, log *slog.Logger, command string, configPath string) {
	attrs := []slog.Attr{
		slog.String("command", command),
		slog.String("config_file", shortenHome(configPath, "none")),
	}
	for _, sec := range sections {
		group := make([]any, 0, len(sec.keys)+1)
		for _, key := range sec.keys {
			group = append(group, slog.String(key, SanitiseKey(key, os.Getenv(key))))
		}
		if sec.name == "catalog" {
			group = append(group, slog.String("file", catalogState(os.Getenv("CATALOG_PATH"))))
		}
		attrs = append(attrs, slog.Group(sec.name, group...))
	}
	log.LogAttrs(ctx, slog.LevelInfo, "audit: command start", attrs...)
}

// SanitiseKey returns the value to log for an environment key: "set" or
// "unset" for credentials, the value itself (or "unset") otherwise.
func SanitiseKey(key, value string) string {
	switch {
	case value == "":
		return "unset"
	case isSecret(key):
		return "set"
	default:
		return value
	}
}

func isSecret(key string) bool {
	for _, suffix := range secretSuffixes {
		if strings.HasSuffix(key, suffix) {
			return true
		}
	}
	return false
}

// catalogState describes the catalog file without reading it: "default"
// when no path is configured, "missing" when it cannot be stat'ed, its size
// otherwise.
func catalogState(path string) string {
	if path == "" {
		return "default"
	}
	info, err := os.Stat(path)
	switch {
	case err != nil:
		return "missing"
	case info.IsDir():
		return "directory"
	default:
		return fmt.Sprintf("%d bytes", info.Size())
	}
}

// shortenHome replaces the home directory prefix of p with "~", or returns
// empty when p is blank.
func shortenHome(p, empty string) string {
	if p == "" {
		return empty
	}
	home, err := os.UserHomeDir()
	if err == nil && home != "" && strings.HasPrefix(p, home) {
		return "~" + p[len(home):]
	}
	return p
}
