package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/54b3r/shopai-go/internal/catalog"
	"github.com/54b3r/shopai-go/internal/ingestion"
	"github.com/54b3r/shopai-go/internal/rag"
	"github.com/54b3r/shopai-go/internal/session"
)

// ---------------------------------------------------------------------------
// Fakes for chat handler tests
// ---------------------------------------------------------------------------

// fakeRetriever returns a fixed document set.
type fakeRetriever struct {
	docs []rag.Document
	err  error
}

func (f *fakeRetriever) Retrieve(context.Context, string, int) ([]rag.Document, error) {
	return f.docs, f.err
}

// fakeAnswerer streams a fixed response and returns configurable errors.
type fakeAnswerer struct {
	// response is written verbatim to the writer on each call.
	response string
	// err is returned as the error value.
	err error
}

func (f *fakeAnswerer) Answer(_ context.Context, _, _ string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return f.response, nil
}

func (f *fakeAnswerer) AnswerStream(_ context.Context, _, _ string, w io.Writer) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	_, _ = fmt.Fprint(w, f.response)
	return f.response, nil
}

// newTestServer builds a minimal *Server for handler tests with an empty
// catalog, so every question is answered with the fallback reply.
func newTestServer() *Server {
	return newChatTestServer(&fakeRetriever{}, &fakeAnswerer{})
}

// newChatTestServer builds a *Server whose sessions use the given fakes.
func newChatTestServer(ret rag.Retriever, ans session.Answerer) *Server {
	mgr, err := session.NewManager(ret, ans, session.Options{})
	if err != nil {
		panic(err)
	}
	return &Server{
		sessions: mgr,
		cfg:      &Config{Port: 8080, ChatTimeout: time.Minute},
		log:      slog.Default(),
		metrics:  newServerMetrics(prometheus.NewRegistry()),
	}
}

// sseEvents splits an SSE body into (event, data) pairs. Frames without an
// explicit event name are reported as "message".
func sseEvents(body string) [][2]string {
	var out [][2]string
	for _, frame := range strings.Split(strings.TrimSpace(body), "\n\n") {
		event, data := "message", []string{}
		for _, line := range strings.Split(frame, "\n") {
			switch {
			case strings.HasPrefix(line, "event: "):
				event = strings.TrimPrefix(line, "event: ")
			case strings.HasPrefix(line, "data: "):
				data = append(data, strings.TrimPrefix(line, "data: "))
			}
		}
		out = append(out, [2]string{event, strings.Join(data, "\n")})
	}
	return out
}

func postChat(s *Server, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/api/chat", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	s.handleChat(w, req)
	return w
}

// ---------------------------------------------------------------------------
// POST /api/chat: validation error paths
// ---------------------------------------------------------------------------

func TestHandleChat_BadRequests(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"missing message": `{"sessionId":"abc"}`,
		"blank message":   `{"message":"   "}`,
		"invalid json":    `not-json`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			w := postChat(newTestServer(), body)
			if w.Code != http.StatusBadRequest {
				t.Errorf("expected 400, got %d", w.Code)
			}
		})
	}
}

// ---------------------------------------------------------------------------
// POST /api/chat: happy path (SSE response)
// ---------------------------------------------------------------------------

// TestHandleChat_Success verifies that a valid request produces an SSE stream
// of session, data and done events. httptest.ResponseRecorder implements
// http.Flusher so the handler's flusher check passes without a real
// connection.
func TestHandleChat_Success(t *testing.T) {
	t.Parallel()

	ret := &fakeRetriever{docs: []rag.Document{{Content: "Product: Canon EOS 80D\nPrice: 999"}}}
	s := newChatTestServer(ret, &fakeAnswerer{response: "The Canon EOS 80D costs 999.\nIt is a DSLR."})

	w := postChat(s, `{"message":"price of canon eos 80d?"}`)

	if ct := w.Header().Get("Content-Type"); ct != "text/event-stream" {
		t.Errorf("Content-Type = %q", ct)
	}

	events := sseEvents(w.Body.String())
	if len(events) != 3 {
		t.Fatalf("expected 3 events, got %d: %q", len(events), events)
	}
	if events[0][0] != "session" || events[0][1] == "" {
		t.Errorf("first event = %q, want session id", events[0])
	}
	if events[1][0] != "message" || events[1][1] != "The Canon EOS 80D costs 999.\nIt is a DSLR." {
		t.Errorf("data event = %q", events[1])
	}
	if events[2] != [2]string{"done", "[DONE]"} {
		t.Errorf("last event = %q", events[2])
	}
	if got := testutil.ToFloat64(s.metrics.chatRequestsTotal.WithLabelValues("ok")); got != 1 {
		t.Errorf("chat ok counter = %v, want 1", got)
	}
}

// TestHandleChat_EmptyCatalog verifies the fallback reply is streamed when
// retrieval finds nothing.
func TestHandleChat_EmptyCatalog(t *testing.T) {
	t.Parallel()

	w := postChat(newTestServer(), `{"message":"do you sell drones?"}`)
	if !strings.Contains(w.Body.String(), "data: "+session.NotAvailableResponse) {
		t.Errorf("expected fallback reply, got: %s", w.Body.String())
	}
}

// TestHandleChat_ReusesSession verifies that passing the returned session id
// continues the same conversation.
func TestHandleChat_ReusesSession(t *testing.T) {
	t.Parallel()

	s := newTestServer()
	first := sseEvents(postChat(s, `{"message":"one"}`).Body.String())
	id := first[0][1]

	second := sseEvents(postChat(s, fmt.Sprintf(`{"message":"two","sessionId":%q}`, id)).Body.String())
	if second[0][1] != id {
		t.Errorf("second session id = %q, want %q", second[0][1], id)
	}

	sess, ok := s.sessions.Lookup(id)
	if !ok {
		t.Fatal("session not found")
	}
	if n := len(sess.History()); n != 4 {
		t.Errorf("history has %d turns, want 4", n)
	}
}

// TestHandleChat_AgentError verifies that when generation fails the SSE
// stream includes an "error" event and the response is still 200 (SSE errors
// are delivered in-band, not via HTTP status).
func TestHandleChat_AgentError(t *testing.T) {
	t.Parallel()

	ret := &fakeRetriever{docs: []rag.Document{{Content: "x"}}}
	s := newChatTestServer(ret, &fakeAnswerer{err: errors.New("LLM unavailable")})

	w := postChat(s, `{"message":"generate"}`)

	if w.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", w.Code)
	}
	body := w.Body.String()
	if !strings.Contains(body, "event: error") {
		t.Errorf("expected error event in body, got: %s", body)
	}
	if !strings.Contains(body, "LLM unavailable") {
		t.Errorf("expected error message in body, got: %s", body)
	}
	if strings.Contains(body, "event: done") {
		t.Errorf("unexpected done event after error: %s", body)
	}
	if got := testutil.ToFloat64(s.metrics.chatRequestsTotal.WithLabelValues("error")); got != 1 {
		t.Errorf("chat error counter = %v, want 1", got)
	}
}

// ---------------------------------------------------------------------------
// GET /api/history
// ---------------------------------------------------------------------------

func TestHandleHistory(t *testing.T) {
	t.Parallel()

	s := newTestServer()
	id := sseEvents(postChat(s, `{"message":"hello"}`).Body.String())[0][1]

	cases := []struct {
		name      string
		query     string
		wantCode  int
		wantTurns int
	}{
		{name: "missing parameter", query: "", wantCode: http.StatusBadRequest},
		{name: "unknown session", query: "?session=nope", wantCode: http.StatusNotFound},
		{name: "known session", query: "?session=" + id, wantCode: http.StatusOK, wantTurns: 2},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/history"+tc.query, nil)
			w := httptest.NewRecorder()
			s.handleHistory(w, req)

			if w.Code != tc.wantCode {
				t.Fatalf("expected %d, got %d", tc.wantCode, w.Code)
			}
			if tc.wantCode != http.StatusOK {
				return
			}
			var resp historyResponse
			if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if resp.SessionID != id || len(resp.Turns) != tc.wantTurns {
				t.Errorf("resp = %+v", resp)
			}
			if resp.Turns[0].Role != session.RoleUser || resp.Turns[0].Content != "hello" {
				t.Errorf("first turn = %+v", resp.Turns[0])
			}
		})
	}
}

// TestHandleHistory_ListsSources checks that assistant turns report the
// catalog entries they were grounded on as labelled fields.
func TestHandleHistory_ListsSources(t *testing.T) {
	t.Parallel()

	doc := ingestion.BuildDocument(catalog.NewRecord(map[catalog.Field]string{
		catalog.FieldProduct:     "Canon EOS 80D",
		catalog.FieldBrand:       "Canon",
		catalog.FieldPrice:       "45000",
		catalog.FieldRating:      "4.5",
		catalog.FieldDescription: "APS-C body\nPrice: cheap",
	}))
	s := newChatTestServer(&fakeRetriever{docs: []rag.Document{doc}}, &fakeAnswerer{response: "The 80D costs 45000."})
	id := sseEvents(postChat(s, `{"message":"Canon DSLR"}`).Body.String())[0][1]

	req := httptest.NewRequest(http.MethodGet, "/api/history?session="+id, nil)
	w := httptest.NewRecorder()
	s.handleHistory(w, req)

	var resp historyResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Turns) != 2 {
		t.Fatalf("turns = %+v", resp.Turns)
	}
	if len(resp.Turns[0].Sources) != 0 {
		t.Errorf("user turn sources = %v", resp.Turns[0].Sources)
	}
	sources := resp.Turns[1].Sources
	if len(sources) != 1 {
		t.Fatalf("assistant sources = %v", sources)
	}
	want := map[string]string{
		"product":     "Canon EOS 80D",
		"brand":       "Canon",
		"category":    "N/A",
		"price":       "45000",
		"rating":      "4.5",
		"description": "APS-C body\nPrice: cheap",
	}
	for k, v := range want {
		if sources[0][k] != v {
			t.Errorf("sources[0][%s] = %q, want %q", k, sources[0][k], v)
		}
	}
}

// ---------------------------------------------------------------------------
// Full router
// ---------------------------------------------------------------------------

// TestRoutes_AuthAndStreaming exercises the complete middleware stack via
// New, including auth and flushing through the request logger.
func TestRoutes_AuthAndStreaming(t *testing.T) {
	t.Parallel()

	mgr, _ := session.NewManager(&fakeRetriever{docs: []rag.Document{{Content: "x"}}}, &fakeAnswerer{response: "hi"}, session.Options{})
	reg := prometheus.NewRegistry()
	s, err := New(mgr, &Config{
		APIKey:          "secret",
		Logger:          slog.New(slog.NewTextHandler(io.Discard, nil)),
		MetricsRegistry: reg,
		MetricsGatherer: reg,
	})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(s.stopRL)

	srv := httptest.NewServer(s.Handler())
	t.Cleanup(srv.Close)

	do := func(method, path, body, token string) *http.Response {
		t.Helper()
		req, err := http.NewRequestWithContext(t.Context(), method, srv.URL+path, strings.NewReader(body))
		if err != nil {
			t.Fatal(err)
		}
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			t.Fatal(err)
		}
		t.Cleanup(func() { _ = resp.Body.Close() })
		return resp
	}

	if resp := do(http.MethodPost, "/api/chat", `{"message":"q"}`, ""); resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("unauthenticated chat: got %d", resp.StatusCode)
	}
	if resp := do(http.MethodGet, "/api/health", "", ""); resp.StatusCode != http.StatusOK {
		t.Errorf("health: got %d", resp.StatusCode)
	}

	resp := do(http.MethodPost, "/api/chat", `{"message":"q"}`, "secret")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("authenticated chat: got %d", resp.StatusCode)
	}
	if resp.Header.Get("X-Request-ID") == "" {
		t.Error("expected X-Request-ID header")
	}
	body, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(body), "data: hi") || !strings.Contains(string(body), "event: done") {
		t.Errorf("unexpected stream: %s", body)
	}

	metricsResp := do(http.MethodGet, "/metrics", "", "")
	mbody, _ := io.ReadAll(metricsResp.Body)
	if !strings.Contains(string(mbody), `shopai_http_requests_total{code="200",handler="chat",method="POST"} 1`) {
		t.Errorf("http metrics missing chat request:\n%s", mbody)
	}
}

func TestNew_RequiresManager(t *testing.T) {
	t.Parallel()

	if _, err := New(nil, nil); err == nil {
		t.Error("expected error for nil session manager")
	}
}
