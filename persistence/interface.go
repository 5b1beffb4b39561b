// persistence/interface.go
package persistence

import (
	"errors"

	"github.com/oogiri/gameserver/models"
)

// Database 数据库接口. This is the whole durable-store boundary the
// orchestrator sees: a topic draw at round start, a stats write at round
// completion, and the out-of-band session lookup. Room creation and topic
// authoring exist for the web frontend's benefit via the rpc surface.
type Database interface {
	DrawRandomTopic() (*models.Topic, error)
	RecordRoundOutcome(userID int64, won bool, points int) error
	ResolveToken(token string) (*models.Identity, error)
	GetPlayerStats(userID int64) (*models.PlayerStats, error)
	CreateRoom(name string, creatorID int64) (string, error)
	CreateTopic(content string, creatorID int64, anonymous bool) error
	Close() error
}

// 错误定义
var (
	ErrRecordNotFound = errors.New("record not found")
	ErrNoTopics       = errors.New("no topics available")
)
