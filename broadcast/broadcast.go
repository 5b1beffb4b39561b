// broadcast/broadcast.go
package broadcast

import (
	"errors"

	"github.com/oogiri/gameserver/room"
	"github.com/oogiri/gameserver/session"
)

var (
	ErrRoomNotFound = errors.New("room not found")
)

// 广播接口
type Broadcaster interface {
	BroadcastToRoom(roomID string, event string, data []byte) error
	BroadcastToUsers(userIDs []int64, event string, data []byte) error
}

// RoomBroadcaster fans an event out to every connection currently joined
// to a room. The registry is attached after construction because rooms in
// turn hold the broadcaster.
type RoomBroadcaster struct {
	registry       *room.Registry
	sessionManager *session.Manager
}

func NewRoomBroadcaster(sessionManager *session.Manager) *RoomBroadcaster {
	return &RoomBroadcaster{
		sessionManager: sessionManager,
	}
}

// AttachRegistry binds the room registry. Must be called before the first
// room event is emitted.
func (b *RoomBroadcaster) AttachRegistry(registry *room.Registry) {
	b.registry = registry
}

func (b *RoomBroadcaster) BroadcastToRoom(roomID string, event string, data []byte) error {
	if b.registry == nil {
		return ErrRoomNotFound
	}
	r, exists := b.registry.Get(roomID)
	if !exists {
		return ErrRoomNotFound
	}

	// Get a thread-safe copy of the sessions
	sessions := r.GetSessions()

	for _, s := range sessions {
		if err := s.Send(event, data); err != nil {
			// 发送失败的连接由读取循环的断开路径清理
			continue
		}
	}

	return nil
}

func (b *RoomBroadcaster) BroadcastToUsers(userIDs []int64, event string, data []byte) error {
	for _, userID := range userIDs {
		sessions := b.sessionManager.GetByUserID(userID)
		for _, s := range sessions {
			if err := s.Send(event, data); err != nil {
				continue
			}
		}
	}
	return nil
}
