// models/gorm_models.go
package models

import (
	"gorm.io/gorm"
)

// GormUser 用户模型
type GormUser struct {
	gorm.Model
	Username        string `gorm:"uniqueIndex;not null"`
	Password        string `gorm:"not null"` // hash, written by the account service
	Image           string `gorm:"default:default.png"`
	Bio             string `gorm:"default:''"`
	Battles         int    `gorm:"default:0"`
	Wins            int    `gorm:"default:0"`
	TotalPoints     int    `gorm:"default:0"`
	ShowStats       bool   `gorm:"default:true"`
	BestAnswer      string `gorm:"default:''"`
	BestAnswerTopic string `gorm:"default:''"`
}

// GormTopic お題模型
type GormTopic struct {
	gorm.Model
	Content     string `gorm:"not null"`
	CreatorID   int64  `gorm:"index"`
	IsAnonymous bool   `gorm:"default:false"`
}

// GormRoom 房间模型
type GormRoom struct {
	gorm.Model
	Name      string `gorm:"not null"`
	CreatorID int64  `gorm:"index;not null"`
}

// GormAuthToken 会话令牌：外部登录流程写入，网关只读
type GormAuthToken struct {
	gorm.Model
	Token  string `gorm:"uniqueIndex;not null"`
	UserID int64  `gorm:"index;not null"`
}
