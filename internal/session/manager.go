package session

import (
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/54b3r/shopai-go/internal/rag"
)

// Manager hands out per-id sessions for multi-client surfaces. Sessions live
// in process memory only and are lost on restart.
type Manager struct {
	retriever rag.Retriever
	answerer  Answerer
	opts      Options

	mu       sync.Mutex
	sessions map[string]*Session
}

// NewManager returns a Manager whose sessions share retriever and answerer.
func NewManager(retriever rag.Retriever, answerer Answerer, opts Options) (*Manager, error) {
	if retriever == nil || answerer == nil {
		return nil, fmt.Errorf("session: retriever and answerer must not be nil")
	}
	return &Manager{
		retriever: retriever,
		answerer:  answerer,
		opts:      opts,
		sessions:  make(map[string]*Session),
	}, nil
}

// Get returns the session for id, creating it if needed. An empty id
// creates a session under a freshly generated id.
func (m *Manager) Get(id string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if id != "" {
		if s, ok := m.sessions[id]; ok {
			return s, nil
		}
	} else {
		id = uuid.NewString()
	}

	s, err := New(m.retriever, m.answerer, m.opts)
	if err != nil {
		return nil, err
	}
	s.id = id
	m.sessions[id] = s
	return s, nil
}

// Lookup returns an existing session without creating one.
func (m *Manager) Lookup(id string) (*Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	return s, ok
}

// Len returns the number of live sessions.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}
