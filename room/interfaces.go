package room

import (
	"time"

	"github.com/oogiri/gameserver/models"
)

// Broadcaster defines the interface for broadcasting events to a room.
// This is defined here to break the import cycle between room and broadcast.
type Broadcaster interface {
	BroadcastToRoom(roomID string, event string, data []byte) error
}

// TopicSource draws one topic uniformly at random from the record store.
// Implemented by persistence.Database.
type TopicSource interface {
	DrawRandomTopic() (*models.Topic, error)
}

// OutcomeRecorder persists the cumulative per-user stats at round
// completion. Implemented by persistence.Database.
type OutcomeRecorder interface {
	RecordRoundOutcome(userID int64, won bool, points int) error
}

// TimerScheduler schedules the answering-phase deadline. Implemented by
// timer.Manager; nil disables enforcement.
type TimerScheduler interface {
	AddTimer(delay time.Duration, interval time.Duration, callback func()) int64
}
