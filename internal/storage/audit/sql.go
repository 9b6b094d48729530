package audit

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"time"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

// SQLConfig 描述审计数据库连接。Driver 取值 mysql、postgres 或 sqlite。
type SQLConfig struct {
	Driver          string
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// SQLRepository 使用关系型数据库存储审计记录。
type SQLRepository struct {
	db      *sql.DB
	dialect string
}

// OpenSQL 建立连接池、执行内置迁移并返回仓库。
func OpenSQL(ctx context.Context, cfg SQLConfig) (*SQLRepository, error) {
	if strings.TrimSpace(cfg.DSN) == "" {
		return nil, fmt.Errorf("%s DSN 不能为空", cfg.Driver)
	}
	switch cfg.Driver {
	case "mysql", "postgres", "sqlite":
	default:
		return nil, fmt.Errorf("不支持的数据库驱动: %s", cfg.Driver)
	}

	db, err := sql.Open(cfg.Driver, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("连接 %s 失败: %w", cfg.Driver, err)
	}

	if cfg.Driver == "sqlite" {
		// SQLite 只允许单写者，内存库在多连接下也不共享。
		db.SetMaxOpenConns(1)
	} else if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	} else {
		db.SetMaxOpenConns(10)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	} else {
		db.SetMaxIdleConns(5)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	} else if cfg.Driver != "sqlite" {
		db.SetConnMaxLifetime(5 * time.Minute)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("无法连接到 %s: %w", cfg.Driver, err)
	}

	repo := &SQLRepository{db: db, dialect: cfg.Driver}
	if err := repo.runMigrations(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return repo, nil
}

// Save 将审计记录写入数据库。
func (s *SQLRepository) Save(ctx context.Context, record Record) error {
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now()
	}
	stmt := s.rebind(`INSERT INTO dispatch_audit
        (session_id, message, intent, kind, response, error_text, duration_ms, created_at)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)

	if _, err := s.db.ExecContext(ctx, stmt,
		record.SessionID,
		record.Message,
		record.Intent,
		record.Kind,
		record.Response,
		record.Error,
		record.DurationMillis,
		record.CreatedAt.UnixMilli(),
	); err != nil {
		return fmt.Errorf("写入审计记录失败: %w", err)
	}
	return nil
}

// ListLatest 查询最近的若干条审计记录。
func (s *SQLRepository) ListLatest(ctx context.Context, limit int) ([]Record, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}

	rows, err := s.db.QueryContext(ctx, s.rebind(`SELECT id, session_id, message, intent, kind, response, error_text, duration_ms, created_at
        FROM dispatch_audit ORDER BY id DESC LIMIT ?`), limit)
	if err != nil {
		return nil, fmt.Errorf("查询审计记录失败: %w", err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		var (
			record    Record
			createdAt int64
		)
		if err := rows.Scan(&record.ID, &record.SessionID, &record.Message, &record.Intent, &record.Kind,
			&record.Response, &record.Error, &record.DurationMillis, &createdAt); err != nil {
			return nil, fmt.Errorf("解析审计记录失败: %w", err)
		}
		record.CreatedAt = time.UnixMilli(createdAt)
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("遍历审计记录失败: %w", err)
	}
	return records, nil
}

// Close 关闭底层数据库连接。
func (s *SQLRepository) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// rebind 将 ? 占位符转换为 PostgreSQL 的 $n 形式。
func (s *SQLRepository) rebind(query string) string {
	if s.dialect != "postgres" {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteString("$" + strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
