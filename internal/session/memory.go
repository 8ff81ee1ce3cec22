package session

import (
	"context"
	"errors"
	"sync"
)

// MemoryManager keeps sessions in process memory. State is lost on restart,
// which for this flow only means the user repeats /start.
type MemoryManager struct {
	mu       sync.RWMutex
	sessions map[int64]Session
}

// NewMemoryManager returns an empty in-memory session store.
func NewMemoryManager() *MemoryManager {
	return &MemoryManager{sessions: make(map[int64]Session)}
}

func (m *MemoryManager) Get(_ context.Context, userID int64) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[userID]
	if !ok {
		return nil, nil
	}
	cp := s
	return &cp, nil
}

func (m *MemoryManager) Save(_ context.Context, s *Session) error {
	if s == nil || s.UserID == 0 {
		return errors.New("session: save requires a user id")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[s.UserID] = *s
	return nil
}

func (m *MemoryManager) Clear(_ context.Context, userID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, userID)
	return nil
}

func (m *MemoryManager) InProgress(_ context.Context, userID int64) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[userID]
	return ok && s.Step != StepIdle
}
