package audit

import (
	"context"
	"fmt"
	"strings"
	"time"

	"CircleLayer-Assistant/internal/config"
)

// Record 表示一次对话分发的审计记录。
type Record struct {
	ID             int64     `json:"id"`
	SessionID      string    `json:"session_id,omitempty"`
	Message        string    `json:"message"`
	Intent         string    `json:"intent"`
	Kind           string    `json:"kind"`
	Response       string    `json:"response"`
	Error          string    `json:"error,omitempty"`
	DurationMillis int64     `json:"duration_ms"`
	CreatedAt      time.Time `json:"created_at"`
}

// Repository 抽象审计记录的持久化接口。
type Repository interface {
	Save(ctx context.Context, record Record) error
	ListLatest(ctx context.Context, limit int) ([]Record, error)
	Close() error
}

const defaultListLimit = 20

// Open 根据配置创建审计仓库。
func Open(ctx context.Context, cfg config.AuditConfig) (Repository, error) {
	driver := strings.ToLower(strings.TrimSpace(cfg.Driver))
	switch driver {
	case "", "file":
		return NewFileRepository(cfg.Path)
	case "mysql", "postgres", "sqlite":
		return OpenSQL(ctx, SQLConfig{Driver: driver, DSN: cfg.DSN})
	default:
		return nil, fmt.Errorf("不支持的审计存储驱动: %s", cfg.Driver)
	}
}
