package embedder

import (
	"context"
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

type stubEmbedder struct {
	err    error
	pinged bool
}

func (s *stubEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	if s.err != nil {
		return nil, s.err
	}
	return make([][]float32, len(texts)), nil
}

func (s *stubEmbedder) Ping(context.Context) error {
	s.pinged = true
	return nil
}

func TestInstrumented_RecordsMetrics(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)
	settings := Settings{Backend: "ollama", Model: "mxbai-embed-large"}

	ok := Instrument(&stubEmbedder{}, settings, m)
	if _, err := ok.Embed(context.Background(), []string{"a", "b", "c"}); err != nil {
		t.Fatal(err)
	}
	bad := Instrument(&stubEmbedder{err: errors.New("boom")}, settings, m)
	if _, err := bad.Embed(context.Background(), []string{"a"}); err == nil {
		t.Fatal("expected error to pass through")
	}

	if got := testutil.ToFloat64(m.requestsTotal.WithLabelValues("ollama", "mxbai-embed-large", "success")); got != 1 {
		t.Errorf("success count = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.requestsTotal.WithLabelValues("ollama", "mxbai-embed-large", "error")); got != 1 {
		t.Errorf("error count = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.textsTotal.WithLabelValues("ollama", "mxbai-embed-large")); got != 4 {
		t.Errorf("texts = %v, want 4", got)
	}
}

func TestInstrumented_PingForwards(t *testing.T) {
	t.Parallel()

	inner := &stubEmbedder{}
	e := Instrument(inner, Settings{}, NewMetrics(prometheus.NewRegistry()))
	if err := e.Ping(context.Background()); err != nil {
		t.Fatal(err)
	}
	if !inner.pinged {
		t.Error("Ping was not forwarded")
	}
}
