// models/models.go
package models

import (
	"time"
)

// Identity is the resolved caller identity attached to a session.
type Identity struct {
	UserID   int64  `json:"user_id"`
	Username string `json:"username"`
}

// Topic is one stored prompt, drawn at random when a round starts.
type Topic struct {
	ID          int64     `json:"id"`
	Content     string    `json:"content"`
	CreatorID   int64     `json:"creator_id"`
	IsAnonymous bool      `json:"is_anonymous"`
	CreatedAt   time.Time `json:"created_at"`
}

// PlayerStats is the cumulative per-user record updated at round completion.
type PlayerStats struct {
	UserID      int64  `json:"user_id"`
	Username    string `json:"username"`
	Battles     int    `json:"battles"`
	Wins        int    `json:"wins"`
	TotalPoints int    `json:"total_points"`
}

// RoomRecord is the durable room entry; its ID is the identifier rooms are
// addressed by in the orchestrator.
type RoomRecord struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	CreatorID int64     `json:"creator_id"`
	CreatedAt time.Time `json:"created_at"`
}
