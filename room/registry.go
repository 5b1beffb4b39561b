// room/registry.go
package room

import "sync"

// Registry 管理所有房间. It maps room identifiers to their singleton Room,
// creating entries lazily on first access. Rooms are never removed: an
// abandoned room persists empty for the life of the process, and the room
// identity for a given id is stable.
type Registry struct {
	rooms map[string]*Room
	cfg   Config
	deps  Deps
	mutex sync.RWMutex
}

// NewRegistry 创建一个新的房间注册表
func NewRegistry(cfg Config, deps Deps) *Registry {
	return &Registry{
		rooms: make(map[string]*Room),
		cfg:   cfg,
		deps:  deps,
	}
}

// GetOrCreate returns the singleton room for the identifier. Creation is
// linearized under the registry mutex, so concurrent first joins of an
// unseen identifier observe the same Room.
func (m *Registry) GetOrCreate(id string) *Room {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	if room, exists := m.rooms[id]; exists {
		return room
	}
	room := NewRoom(id, m.cfg, m.deps)
	m.rooms[id] = room
	return room
}

// Get returns the room for the identifier, if one was ever created.
func (m *Registry) Get(id string) (*Room, bool) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	room, exists := m.rooms[id]
	return room, exists
}

// Count returns the number of registered rooms.
func (m *Registry) Count() int {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	return len(m.rooms)
}
