// persistence/postgresql.go
package persistence

import (
	"database/sql"
	"fmt"
	"strconv"
	"time"

	// PostgreSQL 驱动
	_ "github.com/lib/pq"

	"github.com/oogiri/gameserver/models"
)

// PostgreSQL 数据库实现 (database/sql). Alternative to the GORM backend for
// deployments that prefer hand-written SQL; both satisfy Database.
type PostgreSQL struct {
	db *sql.DB
}

// NewPostgreSQL 创建 PostgreSQL 数据库连接
func NewPostgreSQL(host string, port int, user, password, dbname string) (*PostgreSQL, error) {
	connStr := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
		host, port, user, password, dbname)

	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, err
	}

	// 测试连接
	if err := db.Ping(); err != nil {
		return nil, err
	}

	db.SetMaxIdleConns(10)
	db.SetMaxOpenConns(100)
	db.SetConnMaxLifetime(time.Hour)

	p := &PostgreSQL{db: db}
	if err := p.initSchema(); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *PostgreSQL) initSchema() error {
	schema := []string{
		`CREATE TABLE IF NOT EXISTS gorm_users (
			id BIGSERIAL PRIMARY KEY,
			username TEXT UNIQUE NOT NULL,
			password TEXT NOT NULL,
			image TEXT DEFAULT 'default.png',
			bio TEXT DEFAULT '',
			battles INTEGER DEFAULT 0,
			wins INTEGER DEFAULT 0,
			total_points INTEGER DEFAULT 0,
			show_stats BOOLEAN DEFAULT TRUE,
			best_answer TEXT DEFAULT '',
			best_answer_topic TEXT DEFAULT '',
			created_at TIMESTAMPTZ DEFAULT NOW(),
			updated_at TIMESTAMPTZ DEFAULT NOW(),
			deleted_at TIMESTAMPTZ
		)`,
		`CREATE TABLE IF NOT EXISTS gorm_topics (
			id BIGSERIAL PRIMARY KEY,
			content TEXT NOT NULL,
			creator_id BIGINT,
			is_anonymous BOOLEAN DEFAULT FALSE,
			created_at TIMESTAMPTZ DEFAULT NOW(),
			updated_at TIMESTAMPTZ DEFAULT NOW(),
			deleted_at TIMESTAMPTZ
		)`,
		`CREATE TABLE IF NOT EXISTS gorm_rooms (
			id BIGSERIAL PRIMARY KEY,
			name TEXT NOT NULL,
			creator_id BIGINT NOT NULL,
			created_at TIMESTAMPTZ DEFAULT NOW(),
			updated_at TIMESTAMPTZ DEFAULT NOW(),
			deleted_at TIMESTAMPTZ
		)`,
		`CREATE TABLE IF NOT EXISTS gorm_auth_tokens (
			id BIGSERIAL PRIMARY KEY,
			token TEXT UNIQUE NOT NULL,
			user_id BIGINT NOT NULL,
			created_at TIMESTAMPTZ DEFAULT NOW(),
			updated_at TIMESTAMPTZ DEFAULT NOW(),
			deleted_at TIMESTAMPTZ
		)`,
	}
	for _, stmt := range schema {
		if _, err := p.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// DrawRandomTopic 随机抽取一个题目
func (p *PostgreSQL) DrawRandomTopic() (*models.Topic, error) {
	row := p.db.QueryRow(
		`SELECT id, content, COALESCE(creator_id, 0), is_anonymous, created_at
		 FROM gorm_topics WHERE deleted_at IS NULL ORDER BY RANDOM() LIMIT 1`)

	var topic models.Topic
	err := row.Scan(&topic.ID, &topic.Content, &topic.CreatorID, &topic.IsAnonymous, &topic.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNoTopics
	}
	if err != nil {
		return nil, err
	}
	return &topic, nil
}

// RecordRoundOutcome 更新玩家累计战绩
func (p *PostgreSQL) RecordRoundOutcome(userID int64, won bool, points int) error {
	winInc := 0
	if won {
		winInc = 1
	}

	result, err := p.db.Exec(
		`UPDATE gorm_users
		 SET battles = battles + 1, wins = wins + $1, total_points = total_points + $2, updated_at = NOW()
		 WHERE id = $3 AND deleted_at IS NULL`,
		winInc, points, userID)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrRecordNotFound
	}
	return nil
}

// ResolveToken 会话令牌查找
func (p *PostgreSQL) ResolveToken(token string) (*models.Identity, error) {
	row := p.db.QueryRow(
		`SELECT u.id, u.username
		 FROM gorm_auth_tokens t JOIN gorm_users u ON u.id = t.user_id
		 WHERE t.token = $1 AND t.deleted_at IS NULL AND u.deleted_at IS NULL`,
		token)

	var identity models.Identity
	err := row.Scan(&identity.UserID, &identity.Username)
	if err == sql.ErrNoRows {
		return nil, ErrRecordNotFound
	}
	if err != nil {
		return nil, err
	}
	return &identity, nil
}

// GetPlayerStats 获取玩家统计信息
func (p *PostgreSQL) GetPlayerStats(userID int64) (*models.PlayerStats, error) {
	row := p.db.QueryRow(
		`SELECT id, username, battles, wins, total_points
		 FROM gorm_users WHERE id = $1 AND deleted_at IS NULL`,
		userID)

	var stats models.PlayerStats
	err := row.Scan(&stats.UserID, &stats.Username, &stats.Battles, &stats.Wins, &stats.TotalPoints)
	if err == sql.ErrNoRows {
		return nil, ErrRecordNotFound
	}
	if err != nil {
		return nil, err
	}
	return &stats, nil
}

// CreateRoom 创建房间记录，返回新分配的房间ID
func (p *PostgreSQL) CreateRoom(name string, creatorID int64) (string, error) {
	var id int64
	err := p.db.QueryRow(
		`INSERT INTO gorm_rooms (name, creator_id) VALUES ($1, $2) RETURNING id`,
		name, creatorID).Scan(&id)
	if err != nil {
		return "", err
	}
	return strconv.FormatInt(id, 10), nil
}

// CreateTopic 创建题目记录
func (p *PostgreSQL) CreateTopic(content string, creatorID int64, anonymous bool) error {
	_, err := p.db.Exec(
		`INSERT INTO gorm_topics (content, creator_id, is_anonymous) VALUES ($1, $2, $3)`,
		content, creatorID, anonymous)
	return err
}

// Close 关闭数据库连接
func (p *PostgreSQL) Close() error {
	return p.db.Close()
}
