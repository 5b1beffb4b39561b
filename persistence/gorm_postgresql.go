// persistence/gorm_postgresql.go
package persistence

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/oogiri/gameserver/models"
)

// GormPostgreSQL 使用GORM的PostgreSQL实现
type GormPostgreSQL struct {
	db *gorm.DB
}

// NewGormPostgreSQL 创建GORM PostgreSQL数据库连接
func NewGormPostgreSQL(host string, port int, user, password, dbname string) (*GormPostgreSQL, error) {
	dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
		host, port, user, password, dbname)

	// 配置GORM日志
	dbLogger := gormlogger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		gormlogger.Config{
			SlowThreshold: time.Second,
			LogLevel:      gormlogger.Silent,
			Colorful:      false,
		},
	)

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: dbLogger,
	})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}

	// 设置连接池
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(100)
	sqlDB.SetConnMaxLifetime(time.Hour)

	// 自动迁移表结构
	if err := autoMigrate(db); err != nil {
		return nil, err
	}

	return &GormPostgreSQL{db: db}, nil
}

func autoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.GormUser{},
		&models.GormTopic{},
		&models.GormRoom{},
		&models.GormAuthToken{},
	)
}

// DrawRandomTopic 随机抽取一个题目
func (p *GormPostgreSQL) DrawRandomTopic() (*models.Topic, error) {
	var topic models.GormTopic
	err := p.db.Order("RANDOM()").First(&topic).Error
	if err == gorm.ErrRecordNotFound {
		return nil, ErrNoTopics
	}
	if err != nil {
		return nil, err
	}

	return &models.Topic{
		ID:          int64(topic.ID),
		Content:     topic.Content,
		CreatorID:   topic.CreatorID,
		IsAnonymous: topic.IsAnonymous,
		CreatedAt:   topic.CreatedAt,
	}, nil
}

// RecordRoundOutcome 更新玩家累计战绩（原子操作）
func (p *GormPostgreSQL) RecordRoundOutcome(userID int64, won bool, points int) error {
	winInc := 0
	if won {
		winInc = 1
	}

	return p.db.Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&models.GormUser{}).
			Where("id = ?", userID).
			Updates(map[string]interface{}{
				"battles":      gorm.Expr("battles + 1"),
				"wins":         gorm.Expr("wins + ?", winInc),
				"total_points": gorm.Expr("total_points + ?", points),
			})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return ErrRecordNotFound
		}
		return nil
	})
}

// ResolveToken 会话令牌查找
func (p *GormPostgreSQL) ResolveToken(token string) (*models.Identity, error) {
	var authToken models.GormAuthToken
	if err := p.db.Where("token = ?", token).First(&authToken).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, ErrRecordNotFound
		}
		return nil, err
	}

	var user models.GormUser
	if err := p.db.First(&user, authToken.UserID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, ErrRecordNotFound
		}
		return nil, err
	}

	return &models.Identity{
		UserID:   int64(user.ID),
		Username: user.Username,
	}, nil
}

// GetPlayerStats 获取玩家统计信息
func (p *GormPostgreSQL) GetPlayerStats(userID int64) (*models.PlayerStats, error) {
	var user models.GormUser
	if err := p.db.First(&user, userID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, ErrRecordNotFound
		}
		return nil, err
	}

	return &models.PlayerStats{
		UserID:      int64(user.ID),
		Username:    user.Username,
		Battles:     user.Battles,
		Wins:        user.Wins,
		TotalPoints: user.TotalPoints,
	}, nil
}

// CreateRoom 创建房间记录，返回新分配的房间ID
func (p *GormPostgreSQL) CreateRoom(name string, creatorID int64) (string, error) {
	record := models.GormRoom{
		Name:      name,
		CreatorID: creatorID,
	}
	if err := p.db.Create(&record).Error; err != nil {
		return "", err
	}
	return strconv.FormatUint(uint64(record.ID), 10), nil
}

// CreateTopic 创建题目记录
func (p *GormPostgreSQL) CreateTopic(content string, creatorID int64, anonymous bool) error {
	return p.db.Create(&models.GormTopic{
		Content:     content,
		CreatorID:   creatorID,
		IsAnonymous: anonymous,
	}).Error
}

// Close 关闭数据库连接
func (p *GormPostgreSQL) Close() error {
	sqlDB, err := p.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
