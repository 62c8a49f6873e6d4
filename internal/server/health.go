package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/54b3r/shopai-go/internal/logging"
)

// probeTimeout bounds each readiness probe.
const probeTimeout = 5 * time.Second

// errEmptyCollection marks a collection that holds no catalog documents;
// every question would be answered with the fallback reply.
var errEmptyCollection = errors.New("collection holds no documents")

// Pinger is a dependency that can report its own reachability. Ping returns
// nil when healthy. Implementations must be safe for concurrent use.
type Pinger interface {
	Ping(ctx context.Context) error
	// Name labels the dependency in readiness responses (e.g. "ollama").
	Name() string
}

// MultiPinger reports the combined readiness of several dependencies.
type MultiPinger struct {
	pingers []Pinger
}

// NewMultiPinger constructs a MultiPinger from the provided list of Pingers.
func NewMultiPinger(pingers ...Pinger) *MultiPinger {
	return &MultiPinger{pingers: pingers}
}

// Ping returns the first failure in order, prefixed with its name.
func (m *MultiPinger) Ping(ctx context.Context) error {
	for _, p := range m.pingers {
		if err := p.Ping(ctx); err != nil {
			return fmt.Errorf("%s: %w", p.Name(), err)
		}
	}
	return nil
}

// Name returns a combined label for logging purposes.
func (m *MultiPinger) Name() string { return "multi" }

// DocumentCounter is the part of the catalog index /api/ready reports on.
type DocumentCounter interface {
	Count(ctx context.Context) (int, error)
}

// CatalogInfo describes the indexed catalog for readiness reporting.
type CatalogInfo struct {
	// Path is the catalog file ingestion reads. Empty skips the file check.
	Path string
	// Collection is the name of the vector collection.
	Collection string
	// Index counts the documents in Collection. Nil skips the count check.
	Index DocumentCounter
}

// readyCheck is the outcome of one probe.
type readyCheck struct {
	Name  string `json:"name"`
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
}

// catalogStatus is the catalog section of GET /api/ready.
type catalogStatus struct {
	Path       string `json:"path,omitempty"`
	Collection string `json:"collection,omitempty"`
	Documents  int    `json:"documents"`
}

// readyResponse is the JSON body returned by GET /api/ready.
type readyResponse struct {
	// Ready is true only when every check passed.
	Ready   bool           `json:"ready"`
	Catalog *catalogStatus `json:"catalog,omitempty"`
	Checks  []readyCheck   `json:"checks"`
}

// handleReady handles GET /api/ready. It reports whether questions can be
// answered from the catalog: the catalog file is readable, the collection
// holds documents, and every dependency probe passes. Probes run
// concurrently, each under probeTimeout; any failure yields 503.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	log := logging.FromContext(r.Context())

	resp := readyResponse{Ready: true, Checks: []readyCheck{}}
	info := s.cfg.Catalog
	if info.Path != "" || info.Index != nil {
		resp.Catalog = &catalogStatus{Path: info.Path, Collection: info.Collection}
	}

	var probes []Pinger
	if info.Path != "" {
		probes = append(probes, pingFunc{"catalog", func(context.Context) error {
			return checkCatalogFile(info.Path)
		}})
	}
	if info.Index != nil {
		probes = append(probes, pingFunc{"collection", func(ctx context.Context) error {
			n, err := info.Index.Count(ctx)
			if err != nil {
				return err
			}
			resp.Catalog.Documents = n
			if n == 0 {
				return errEmptyCollection
			}
			return nil
		}})
	}
	probes = append(probes, s.pingers...)

	checks := make([]readyCheck, len(probes))
	var wg sync.WaitGroup
	for i, p := range probes {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ctx, cancel := context.WithTimeout(r.Context(), probeTimeout)
			defer cancel()
			checks[i] = readyCheck{Name: p.Name(), OK: true}
			if err := p.Ping(ctx); err != nil {
				checks[i] = readyCheck{Name: p.Name(), Error: err.Error()}
			}
		}()
	}
	wg.Wait()

	for _, c := range checks {
		if !c.OK {
			resp.Ready = false
			log.Warn("readiness probe failed",
				slog.String("dependency", c.Name),
				slog.String("error", c.Error),
			)
		}
		resp.Checks = append(resp.Checks, c)
	}

	status := http.StatusOK
	if !resp.Ready {
		status = http.StatusServiceUnavailable
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		log.Error("ready encode error", slog.Any("error", err))
	}
}

// pingFunc adapts a function to Pinger.
type pingFunc struct {
	name string
	fn   func(ctx context.Context) error
}

func (p pingFunc) Name() string                   { return p.name }
func (p pingFunc) Ping(ctx context.Context) error { return p.fn(ctx) }

// checkCatalogFile verifies the catalog can be opened for reading, so a
// later `ingest --reset` would not fail on it.
func checkCatalogFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		return err
	}
	if info.IsDir() {
		return fmt.Errorf("%s is a directory", path)
	}
	return nil
}
