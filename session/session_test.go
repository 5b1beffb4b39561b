package session

import (
	"net"
	"testing"
	"time"

	"github.com/oogiri/gameserver/models"
	"github.com/oogiri/gameserver/network"
)

// MockConnection is a test double for the network.Connection interface.
type MockConnection struct{}

func (m *MockConnection) Send(event string, data []byte) error { return nil }
func (m *MockConnection) Close() error                         { return nil }
func (m *MockConnection) RemoteAddr() net.Addr                 { return &net.TCPAddr{} }
func (m *MockConnection) SetHeartbeat(interval time.Duration)  {}
func (m *MockConnection) ReadPacket() (*network.Packet, error) { return nil, nil }

func TestNewManager(t *testing.T) {
	manager := NewManager()
	if manager == nil {
		t.Fatal("NewManager should not return nil")
	}
	if manager.sessions == nil {
		t.Fatal("NewManager should initialize the sessions map")
	}
}

func TestManager_Add_Get_Remove(t *testing.T) {
	manager := NewManager()
	sessionID := "test_session_1"
	sess := NewSession(sessionID, &MockConnection{})

	manager.Add(sess)
	if manager.Count() != 1 {
		t.Fatalf("Expected 1 session after Add, got %d", manager.Count())
	}

	retrieved, exists := manager.Get(sessionID)
	if !exists {
		t.Fatal("Get should find the added session")
	}
	if retrieved != sess {
		t.Error("Get should return the same session instance")
	}

	manager.Remove(sessionID)
	if _, exists := manager.Get(sessionID); exists {
		t.Error("Get should not find a removed session")
	}
}

func TestSession_Identity(t *testing.T) {
	sess := NewSession("s1", &MockConnection{})

	if sess.Authenticated() {
		t.Error("A fresh session must not be authenticated")
	}
	if sess.UserID() != 0 {
		t.Errorf("Expected user id 0 for an anonymous session, got %d", sess.UserID())
	}

	sess.SetIdentity(&models.Identity{UserID: 42, Username: "alice"})

	if !sess.Authenticated() {
		t.Error("Session should be authenticated after SetIdentity")
	}
	if sess.UserID() != 42 {
		t.Errorf("Expected user id 42, got %d", sess.UserID())
	}
}

func TestManager_GetByUserID(t *testing.T) {
	manager := NewManager()

	authed := NewSession("s1", &MockConnection{})
	authed.SetIdentity(&models.Identity{UserID: 7, Username: "bob"})
	anon := NewSession("s2", &MockConnection{})
	manager.Add(authed)
	manager.Add(anon)

	result := manager.GetByUserID(7)
	if len(result) != 1 {
		t.Fatalf("Expected 1 session for user 7, got %d", len(result))
	}
	if result[0] != authed {
		t.Error("GetByUserID returned the wrong session")
	}

	if got := manager.GetByUserID(999); len(got) != 0 {
		t.Errorf("Expected no sessions for an unknown user, got %d", len(got))
	}
}
