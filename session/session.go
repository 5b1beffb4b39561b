// session/session.go
package session

import (
	"sync"
	"time"

	"github.com/oogiri/gameserver/models"
	"github.com/oogiri/gameserver/network"
)

// Session is one live connection. Identity is resolved out-of-band when the
// connection is established; a session without an identity may stay
// connected but every room command from it is dropped.
type Session struct {
	ID         string
	Conn       network.Connection
	Identity   *models.Identity // nil when the caller could not be resolved
	RoomID     string
	CreatedAt  time.Time
	LastActive time.Time
	mutex      sync.RWMutex
}

func NewSession(id string, conn network.Connection) *Session {
	now := time.Now()
	return &Session{
		ID:         id,
		Conn:       conn,
		CreatedAt:  now,
		LastActive: now,
	}
}

// Authenticated reports whether the caller identity was resolved.
func (s *Session) Authenticated() bool {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return s.Identity != nil
}

// SetIdentity attaches the resolved identity to the session.
func (s *Session) SetIdentity(identity *models.Identity) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.Identity = identity
}

// UserID returns the resolved user id, or 0 for anonymous connections.
func (s *Session) UserID() int64 {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	if s.Identity == nil {
		return 0
	}
	return s.Identity.UserID
}

func (s *Session) Send(event string, data []byte) error {
	s.LastActive = time.Now()
	return s.Conn.Send(event, data)
}

func (s *Session) GetID() string {
	return s.ID
}

func (s *Session) Close() error {
	return s.Conn.Close()
}

// Session管理器
type Manager struct {
	sessions map[string]*Session
	mutex    sync.RWMutex
}

func NewManager() *Manager {
	return &Manager{
		sessions: make(map[string]*Session),
	}
}

func (m *Manager) Add(session *Session) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.sessions[session.ID] = session
}

func (m *Manager) Remove(sessionID string) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	delete(m.sessions, sessionID)
}

func (m *Manager) Get(sessionID string) (*Session, bool) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	session, exists := m.sessions[sessionID]
	return session, exists
}

func (m *Manager) Count() int {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	return len(m.sessions)
}

func (m *Manager) GetByUserID(userID int64) []*Session {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	var result []*Session
	for _, session := range m.sessions {
		if session.Identity != nil && session.Identity.UserID == userID {
			result = append(result, session)
		}
	}
	return result
}
