package archive

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	model "github.com/zhouzirui/poise/backend/internal/model/interview"

	_ "modernc.org/sqlite"
)

// timeLayout 是定宽的 UTC 时间格式，保证按文本排序即按时间排序。
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// Summary 是归档报告的列表项。
type Summary struct {
	SessionID     string    `json:"sessionId"`
	Items         int       `json:"items"`
	AverageVisual int       `json:"averageVisual"`
	AverageAudio  int       `json:"averageAudio"`
	Complete      bool      `json:"complete"`
	Aborted       bool      `json:"aborted"`
	GeneratedAt   time.Time `json:"generatedAt"`
}

// Store 把会话报告以 JSON 形式保存在 SQLite 中。只存评分与反馈，不存音视频。
type Store struct {
	db *sql.DB
}

// Open 打开（必要时创建）数据库文件。":memory:" 使用内存数据库。
func Open(dbPath string) (*Store, error) {
	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
			return nil, fmt.Errorf("create db dir: %w", err)
		}
	}
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// 内存库只在单个连接内可见，写入也只允许一个连接。
	db.SetMaxOpenConns(1)

	store := &Store{db: db}
	if err := store.ensureSchema(context.Background()); err != nil {
		db.Close()
		return nil, err
	}
	return store, nil
}

func (s *Store) ensureSchema(ctx context.Context) error {
	const ddl = `
CREATE TABLE IF NOT EXISTS reports (
  session_id TEXT PRIMARY KEY,
  items INTEGER NOT NULL,
  average_visual INTEGER NOT NULL,
  average_audio INTEGER NOT NULL,
  complete INTEGER NOT NULL,
  aborted INTEGER NOT NULL,
  payload TEXT NOT NULL,
  generated_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_reports_generated_at ON reports(generated_at);
`
	if _, err := s.db.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("create reports table: %w", err)
	}
	return nil
}

// Save 写入或覆盖一个会话的报告。
func (s *Store) Save(ctx context.Context, report model.Report) error {
	if report.SessionID == "" {
		return errors.New("report session id is required")
	}
	payload, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("encode report: %w", err)
	}

	const stmt = `
INSERT INTO reports (session_id, items, average_visual, average_audio, complete, aborted, payload, generated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(session_id) DO UPDATE SET
  items=excluded.items,
  average_visual=excluded.average_visual,
  average_audio=excluded.average_audio,
  complete=excluded.complete,
  aborted=excluded.aborted,
  payload=excluded.payload,
  generated_at=excluded.generated_at;
`
	_, err = s.db.ExecContext(ctx, stmt,
		report.SessionID,
		len(report.Items),
		report.AverageVisual,
		report.AverageAudio,
		report.Complete,
		report.Aborted,
		string(payload),
		report.GeneratedAt.UTC().Format(timeLayout),
	)
	if err != nil {
		return fmt.Errorf("upsert report: %w", err)
	}
	return nil
}

// Load 读取一个会话的报告，不存在时 ok 为 false。
func (s *Store) Load(ctx context.Context, sessionID string) (model.Report, bool, error) {
	var payload string
	err := s.db.QueryRowContext(ctx, `SELECT payload FROM reports WHERE session_id = ?`, sessionID).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Report{}, false, nil
	}
	if err != nil {
		return model.Report{}, false, fmt.Errorf("query report: %w", err)
	}

	var report model.Report
	if err := json.Unmarshal([]byte(payload), &report); err != nil {
		return model.Report{}, false, fmt.Errorf("decode report: %w", err)
	}
	return report, true, nil
}

// List 按生成时间倒序返回最近的报告摘要。
func (s *Store) List(ctx context.Context, limit int) ([]Summary, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx, `
SELECT session_id, items, average_visual, average_audio, complete, aborted, generated_at
FROM reports ORDER BY generated_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list reports: %w", err)
	}
	defer rows.Close()

	out := make([]Summary, 0, limit)
	for rows.Next() {
		var (
			item      Summary
			generated string
		)
		if err := rows.Scan(&item.SessionID, &item.Items, &item.AverageVisual, &item.AverageAudio,
			&item.Complete, &item.Aborted, &generated); err != nil {
			return nil, fmt.Errorf("scan report: %w", err)
		}
		if ts, err := time.Parse(timeLayout, generated); err == nil {
			item.GeneratedAt = ts
		}
		out = append(out, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate reports: %w", err)
	}
	return out, nil
}

// Close 关闭数据库。
func (s *Store) Close() error {
	return s.db.Close()
}
