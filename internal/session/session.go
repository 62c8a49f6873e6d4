// Package session runs the question/answer loop for one conversation:
// retrieve catalog context, ask the model, record both turns.
package session

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/54b3r/shopai-go/internal/logging"
	"github.com/54b3r/shopai-go/internal/rag"
)

// NotAvailableResponse is returned without consulting the model when
// retrieval finds nothing.
const NotAvailableResponse = "This information is not available in the dataset."

// Role identifies who authored a Turn.
type Role string

const (
	// RoleUser marks a question typed by the shopper.
	RoleUser Role = "user"
	// RoleAssistant marks a reply produced by the session.
	RoleAssistant Role = "assistant"
)

// Turn is one entry in a session's history.
type Turn struct {
	Role    Role      `json:"role"`
	Content string    `json:"content"`
	At      time.Time `json:"at"`

	// Sources are the documents the reply was grounded on, in retrieval
	// order. Set on assistant turns only; empty for the fallback reply.
	Sources []rag.Document `json:"-"`
}

// Answerer produces a reply from catalog context and a question.
type Answerer interface {
	Answer(ctx context.Context, catalogContext, question string) (string, error)
}

// StreamAnswerer is an Answerer that can also write its reply incrementally.
type StreamAnswerer interface {
	Answerer
	AnswerStream(ctx context.Context, catalogContext, question string, w io.Writer) (string, error)
}

// Options configures a Session.
type Options struct {
	// TopK is the number of documents retrieved per question.
	// Defaults to rag.DefaultTopK if zero.
	TopK int

	// Now returns the timestamp recorded on each turn. Defaults to time.Now.
	Now func() time.Time
}

// Session is a single conversation. Questions are handled one at a time;
// concurrent callers block until the in-flight question completes.
type Session struct {
	id        string
	retriever rag.Retriever
	answerer  Answerer
	topK      int
	now       func() time.Time

	// mu serialises Handle and guards history.
	mu      sync.Mutex
	history []Turn
}

// New returns an empty Session.
func New(retriever rag.Retriever, answerer Answerer, opts Options) (*Session, error) {
	if retriever == nil {
		return nil, fmt.Errorf("session: retriever must not be nil")
	}
	if answerer == nil {
		return nil, fmt.Errorf("session: answerer must not be nil")
	}
	if opts.TopK <= 0 {
		opts.TopK = rag.DefaultTopK
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Session{
		retriever: retriever,
		answerer:  answerer,
		topK:      opts.TopK,
		now:       opts.Now,
	}, nil
}

// ID returns the identifier assigned by a Manager, or "" for a standalone
// session.
func (s *Session) ID() string { return s.id }

// Handle answers one question. The user turn is recorded before retrieval.
// The assistant turn is recorded only when a reply was produced; on error
// the history ends with the unanswered question.
func (s *Session) Handle(ctx context.Context, question string) (string, error) {
	return s.handle(ctx, question, func(catalogContext string) (string, error) {
		return s.answerer.Answer(ctx, catalogContext, question)
	}, nil)
}

// HandleStream is Handle with the reply written to w as it is generated.
// The answerer must implement StreamAnswerer; otherwise the full reply is
// written to w in one piece.
func (s *Session) HandleStream(ctx context.Context, question string, w io.Writer) (string, error) {
	sa, ok := s.answerer.(StreamAnswerer)
	gen := func(catalogContext string) (string, error) {
		if ok {
			return sa.AnswerStream(ctx, catalogContext, question, w)
		}
		reply, err := s.answerer.Answer(ctx, catalogContext, question)
		if err != nil {
			return "", err
		}
		if _, err := io.WriteString(w, reply); err != nil {
			return "", fmt.Errorf("session: write reply: %w", err)
		}
		return reply, nil
	}
	return s.handle(ctx, question, gen, w)
}

func (s *Session) handle(ctx context.Context, question string, generate func(string) (string, error), w io.Writer) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	log := logging.FromContext(ctx).With(slog.String("session_id", s.id))
	s.history = append(s.history, Turn{Role: RoleUser, Content: question, At: s.now()})

	docs, err := s.retriever.Retrieve(ctx, question, s.topK)
	if err != nil {
		log.Error("session: retrieval failed", slog.Any("error", err))
		return "", err
	}

	var reply string
	if len(docs) == 0 {
		log.Info("session: no matching documents, answering from fallback")
		reply = NotAvailableResponse
		if w != nil {
			if _, err := io.WriteString(w, reply); err != nil {
				return "", fmt.Errorf("session: write reply: %w", err)
			}
		}
	} else {
		log.Debug("session: retrieved context", slog.Int("documents", len(docs)))
		reply, err = generate(joinContents(docs))
		if err != nil {
			log.Error("session: generation failed", slog.Any("error", err))
			return "", err
		}
	}

	s.history = append(s.history, Turn{Role: RoleAssistant, Content: reply, At: s.now(), Sources: docs})
	return reply, nil
}

// History returns a copy of the turns recorded so far, oldest first.
func (s *Session) History() []Turn {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Turn, len(s.history))
	copy(out, s.history)
	return out
}

// joinContents concatenates document contents separated by a blank line.
func joinContents(docs []rag.Document) string {
	parts := make([]string, len(docs))
	for i, d := range docs {
		parts[i] = d.Content
	}
	return strings.Join(parts, "\n\n")
}
