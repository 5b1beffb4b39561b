package services

import (
	"fmt"

	"github.com/oogiri/gameserver/models"
	"github.com/oogiri/gameserver/persistence"
)

type PlayerService struct {
	db persistence.Database
}

func NewPlayerService(db persistence.Database) *PlayerService {
	return &PlayerService{db: db}
}

// GetPlayerWithStats 获取玩家信息和统计
func (s *PlayerService) GetPlayerWithStats(userID int64) (*models.PlayerStats, error) {
	stats, err := s.db.GetPlayerStats(userID)
	if err != nil {
		return nil, fmt.Errorf("load stats for user %d: %w", userID, err)
	}
	return stats, nil
}

// CreateRoom creates a durable room record; the returned id is what
// players join. The orchestrator itself never creates room records.
func (s *PlayerService) CreateRoom(name string, creatorID int64) (string, error) {
	if name == "" {
		return "", fmt.Errorf("room name must not be empty")
	}
	return s.db.CreateRoom(name, creatorID)
}

// CreateTopic adds a prompt to the pool rounds draw from.
func (s *PlayerService) CreateTopic(content string, creatorID int64, anonymous bool) error {
	if content == "" {
		return fmt.Errorf("topic content must not be empty")
	}
	return s.db.CreateTopic(content, creatorID, anonymous)
}
