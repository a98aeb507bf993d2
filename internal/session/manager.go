package session

import (
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Manager is the registry of live session runtimes, one per
// (student, assignment). A runtime outlives its WebSocket connection: the
// countdown keeps running server-side while the student's tab is away,
// and a reconnect reattaches to the same runtime.
type Manager struct {
	mu       sync.Mutex
	sessions map[string]*Runtime
	log      zerolog.Logger
}

func NewManager(log zerolog.Logger) *Manager {
	return &Manager{
		sessions: make(map[string]*Runtime),
		log:      log.With().Str("component", "session_manager").Logger(),
	}
}

func key(assignmentID uuid.UUID, studentID int) string {
	return fmt.Sprintf("%d:%s", studentID, assignmentID)
}

// Get returns the live runtime for the pair, if any.
func (m *Manager) Get(assignmentID uuid.UUID, studentID int) (*Runtime, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rt, ok := m.sessions[key(assignmentID, studentID)]
	return rt, ok
}

// GetOrCreate returns the live runtime for the pair, building one with
// build if none exists. Concurrent callers for the same pair get the same
// runtime.
func (m *Manager) GetOrCreate(assignmentID uuid.UUID, studentID int, build func() (*Runtime, error)) (*Runtime, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	k := key(assignmentID, studentID)
	if rt, ok := m.sessions[k]; ok {
		return rt, nil
	}

	rt, err := build()
	if err != nil {
		return nil, err
	}
	m.sessions[k] = rt
	m.log.Debug().Str("key", k).Msg("Session runtime created")
	return rt, nil
}

// Remove drops the runtime from the registry, typically after submission.
func (m *Manager) Remove(assignmentID uuid.UUID, studentID int) {
	m.mu.Lock()
	delete(m.sessions, key(assignmentID, studentID))
	m.mu.Unlock()
}

// Len returns the number of live runtimes.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}
