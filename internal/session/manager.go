package session

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/robot-workbench/backend/internal/models"
	"github.com/robot-workbench/backend/internal/parser"
)

// MaxSessions limits concurrent sessions to prevent memory exhaustion
const MaxSessions = 50

// SessionMaxAge is how long to keep completed sessions before cleanup
const SessionMaxAge = 30 * time.Minute

// SessionKeepAliveWindow is how long to keep sessions that are actively being used
const SessionKeepAliveWindow = 5 * time.Minute

// Manager handles active decode sessions. Decoding itself is fast, but the
// decoded Robot is kept in memory for follow-up model/export requests, so
// sessions have the same touch/TTL lifecycle the upload store has.
type Manager struct {
	sessions map[string]*SessionState
	mu       sync.RWMutex
	registry *parser.Registry
	catalog  *parser.Catalog
}

// SessionState holds the session metadata and the decoded robot.
type SessionState struct {
	Session      *models.DecodeSession
	Robot        *models.Robot
	LastAccessed time.Time
}

// NewManager creates a new session manager using the global decoder registry.
func NewManager() *Manager {
	return &Manager{
		sessions: make(map[string]*SessionState),
		registry: parser.GetGlobalRegistry(),
	}
}

// SetCatalog attaches a persistent catalog; decoded robots are recorded there
// when one is present.
func (m *Manager) SetCatalog(c *parser.Catalog) {
	m.catalog = c
}

// Registry exposes the decoder registry used by this manager.
func (m *Manager) Registry() *parser.Registry {
	return m.registry
}

// StartSession begins decoding an uploaded description file. The decode runs
// in a background goroutine; callers poll the session status.
func (m *Manager) StartSession(fileID, filename string, data []byte) (*models.DecodeSession, error) {
	m.cleanupOldSessionsIfNeeded()

	sessionID := uuid.New().String()

	session := models.NewDecodeSession(sessionID, fileID)
	session.Status = models.SessionStatusDecoding

	state := &SessionState{
		Session:      session,
		LastAccessed: time.Now(),
	}

	m.mu.Lock()
	m.sessions[sessionID] = state
	m.mu.Unlock()

	go m.runDecode(sessionID, fileID, filename, data)

	return session, nil
}

func (m *Manager) runDecode(sessionID, fileID, filename string, data []byte) {
	// Recover from panics to prevent backend crash
	defer func() {
		if r := recover(); r != nil {
			fmt.Printf("[Decode %s] PANIC recovered: %v\n", sessionID[:8], r)
			m.updateSessionError(sessionID, fmt.Sprintf("decode panicked: %v", r))
		}
	}()

	start := time.Now()
	fmt.Printf("[Decode %s] Starting decode of %s (%d bytes)\n", sessionID[:8], filename, len(data))

	d, err := m.registry.Detect(filename, data)
	if err != nil {
		fmt.Printf("[Decode %s] ERROR: %v\n", sessionID[:8], err)
		m.updateSessionError(sessionID, err.Error())
		return
	}

	fmt.Printf("[Decode %s] Using decoder: %s\n", sessionID[:8], d.Name())

	robot, warnings, err := d.Decode(data)
	if err != nil {
		fmt.Printf("[Decode %s] ERROR: decode failed: %v\n", sessionID[:8], err)
		m.updateSessionError(sessionID, fmt.Sprintf("decode failed: %v", err))
		return
	}

	if err := robot.Validate(); err != nil {
		fmt.Printf("[Decode %s] ERROR: invalid kinematic tree: %v\n", sessionID[:8], err)
		m.updateSessionError(sessionID, fmt.Sprintf("invalid kinematic tree: %v", err))
		return
	}

	elapsed := time.Since(start).Milliseconds()
	fmt.Printf("[Decode %s] Decode complete: %d links, %d joints, %d warnings in %dms\n",
		sessionID[:8], len(robot.Links), len(robot.Joints), len(warnings), elapsed)

	if m.catalog != nil {
		if err := m.catalog.Add(sessionID, fileID, d.Name(), robot); err != nil {
			// Catalog persistence is best effort; the session still completes.
			fmt.Printf("[Decode %s] Catalog warning: %v\n", sessionID[:8], err)
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	state, ok := m.sessions[sessionID]
	if !ok {
		return
	}

	state.Robot = robot
	state.Session.Status = models.SessionStatusComplete
	state.Session.Format = d.Name()
	state.Session.RobotName = robot.Name
	state.Session.LinkCount = len(robot.Links)
	state.Session.JointCount = len(robot.Joints)
	state.Session.ProcessingTimeMs = elapsed
	state.Session.Warnings = warnings
}

func (m *Manager) updateSessionError(sessionID, reason string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	state, ok := m.sessions[sessionID]
	if !ok {
		return
	}

	state.Session.Status = models.SessionStatusError
	state.Session.Error = reason
}

// cleanupOldSessionsIfNeeded removes completed sessions when at capacity
func (m *Manager) cleanupOldSessionsIfNeeded() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.sessions) < MaxSessions {
		return
	}

	toFree := len(m.sessions) - MaxSessions + 1
	deleted := 0
	for id, state := range m.sessions {
		if deleted >= toFree {
			break
		}
		if state.Session.Status == models.SessionStatusComplete ||
			state.Session.Status == models.SessionStatusError {
			delete(m.sessions, id)
			deleted++
			fmt.Printf("[Manager] Cleaned up old session %s to free memory\n", id[:8])
		}
	}
}

// CleanupOldSessions removes sessions older than maxAge,
// but keeps sessions that have been accessed within SessionKeepAliveWindow.
func (m *Manager) CleanupOldSessions(maxAge time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()

	cutoff := time.Now().Add(-maxAge)
	keepAliveCutoff := time.Now().Add(-SessionKeepAliveWindow)

	for id, state := range m.sessions {
		if state.Session.Status != models.SessionStatusComplete &&
			state.Session.Status != models.SessionStatusError {
			continue
		}

		if state.LastAccessed.After(keepAliveCutoff) {
			continue
		}

		if state.LastAccessed.Before(cutoff) {
			delete(m.sessions, id)
			fmt.Printf("[Manager] Cleaned up aged session %s (last accessed: %s ago)\n",
				id[:8], time.Since(state.LastAccessed).Round(time.Second))
		}
	}
}

// GetSession returns a session by ID.
func (m *Manager) GetSession(id string) (*models.DecodeSession, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	state, ok := m.sessions[id]
	if !ok {
		return nil, false
	}
	return state.Session, true
}

// GetRobot returns the decoded robot for a completed session.
func (m *Manager) GetRobot(id string) (*models.Robot, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	state, ok := m.sessions[id]
	if !ok || state.Robot == nil {
		return nil, false
	}
	return state.Robot, true
}

// TouchSession updates the LastAccessed timestamp for a session.
// This should be called whenever a session is actively being used
// to prevent it from being cleaned up.
func (m *Manager) TouchSession(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	state, ok := m.sessions[id]
	if !ok {
		return false
	}
	state.LastAccessed = time.Now()
	return true
}
