package session

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"aistudio/internal/domain"
)

// Manager owns all live sessions, keyed by ID. Sessions never outlive the
// process and never share state with one another.
type Manager struct {
	mu          sync.RWMutex
	sessions    map[string]*Session
	idleTimeout time.Duration
	logger      *slog.Logger
	onExpire    func(id string)
}

// OnExpire registers a callback invoked with the ID of every session the
// sweeper drops. Set it before StartSweeper.
func (m *Manager) OnExpire(fn func(id string)) {
	m.onExpire = fn
}

// NewManager creates a session manager. idleTimeout <= 0 disables expiry.
func NewManager(idleTimeout time.Duration, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		sessions:    make(map[string]*Session),
		idleTimeout: idleTimeout,
		logger:      logger,
	}
}

// Create makes a new session with a fresh ID.
func (m *Manager) Create() *Session {
	s := newSession(uuid.NewString())
	m.mu.Lock()
	m.sessions[s.ID] = s
	m.mu.Unlock()
	m.logger.Info("created new session", "session_id", s.ID)
	return s
}

// Get returns the session for id.
func (m *Manager) Get(id string) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	return s, nil
}

// GetOrCreate returns the session for id, or a new session when id is
// unknown or empty.
func (m *Manager) GetOrCreate(id string) *Session {
	if id != "" {
		if s, err := m.Get(id); err == nil {
			return s
		}
	}
	return m.Create()
}

// Delete drops a session and all its in-memory state.
func (m *Manager) Delete(id string) {
	m.mu.Lock()
	delete(m.sessions, id)
	m.mu.Unlock()
}

// Len reports the number of live sessions.
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// StartSweeper periodically drops sessions idle longer than the timeout,
// until ctx is cancelled.
func (m *Manager) StartSweeper(ctx context.Context, interval time.Duration) {
	if m.idleTimeout <= 0 {
		return
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				m.sweep()
			}
		}
	}()
}

func (m *Manager) sweep() {
	cutoff := time.Now().Add(-m.idleTimeout)
	var expired []string
	m.mu.Lock()
	for id, s := range m.sessions {
		if s.LastActive().Before(cutoff) {
			delete(m.sessions, id)
			expired = append(expired, id)
			m.logger.Info("expired idle session", "session_id", id)
		}
	}
	m.mu.Unlock()
	if m.onExpire != nil {
		for _, id := range expired {
			m.onExpire(id)
		}
	}
}
