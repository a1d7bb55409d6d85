package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	types "haptix/internal/domain/workflow/model"
	"haptix/internal/domain/workflow/port"
	applog "haptix/internal/platform/log"
)

// TriggerRepository PostgreSQL 实现的 port.TriggerRepository
type TriggerRepository struct {
	db *sql.DB
}

// NewTriggerRepository 创建触发记录存储
func NewTriggerRepository(db *sql.DB) *TriggerRepository {
	return &TriggerRepository{db: db}
}

// Open 打开连接池并 Ping
func Open(ctx context.Context, url string, maxOpen, maxIdle int, maxLifetime time.Duration) (*sql.DB, error) {
	db, err := sql.Open("postgres", url)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	db.SetMaxOpenConns(maxOpen)
	db.SetMaxIdleConns(maxIdle)
	db.SetConnMaxLifetime(maxLifetime)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return db, nil
}

// EnsureTable 确保 triggers 表存在
func (r *TriggerRepository) EnsureTable(ctx context.Context) error {
	ddl := `
	CREATE TABLE IF NOT EXISTS triggers (
		id         UUID PRIMARY KEY,
		session_id VARCHAR(64) NOT NULL,
		kind       VARCHAR(16) NOT NULL,
		condition  TEXT NOT NULL,
		mode       VARCHAR(16) NOT NULL,
		type       VARCHAR(16) NOT NULL DEFAULT '',
		text       TEXT NOT NULL DEFAULT '',
		matched    BOOLEAN NOT NULL DEFAULT FALSE,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);
	CREATE INDEX IF NOT EXISTS idx_triggers_session ON triggers(session_id, created_at);
	CREATE INDEX IF NOT EXISTS idx_triggers_matched ON triggers(matched);
	`
	_, err := r.db.ExecContext(ctx, ddl)
	return err
}

// Record 在一个事务内批量写入
func (r *TriggerRepository) Record(ctx context.Context, records []*port.TriggerRecord) error {
	if len(records) == 0 {
		return nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO triggers (id, session_id, kind, condition, mode, type, text, matched, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, rec := range records {
		if rec.ID == "" {
			rec.ID = uuid.New().String()
		}
		if rec.CreatedAt.IsZero() {
			rec.CreatedAt = time.Now().UTC()
		}
		if _, err := stmt.ExecContext(ctx,
			rec.ID, rec.SessionID, string(rec.Kind), rec.Condition, string(rec.Mode), string(rec.Type), rec.Text, rec.Matched, rec.CreatedAt,
		); err != nil {
			if pqErr, ok := err.(*pq.Error); ok {
				applog.Error("[Storage] insert trigger failed", "code", string(pqErr.Code), "detail", pqErr.Detail)
			}
			return fmt.Errorf("insert trigger: %w", err)
		}
	}

	return tx.Commit()
}

// List 按创建时间倒序查询
func (r *TriggerRepository) List(ctx context.Context, params port.ListTriggersParams) ([]*port.TriggerRecord, error) {
	query, args := buildListQuery(params)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query triggers: %w", err)
	}
	defer rows.Close()

	out := make([]*port.TriggerRecord, 0)
	for rows.Next() {
		rec := &port.TriggerRecord{}
		var kind, mode, typ string
		if err := rows.Scan(&rec.ID, &rec.SessionID, &kind, &rec.Condition, &mode, &typ, &rec.Text, &rec.Matched, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan trigger: %w", err)
		}
		rec.Kind = port.TriggerKind(kind)
		rec.Mode = types.ActionType(mode)
		rec.Type = types.StimulusType(typ)
		out = append(out, rec)
	}
	return out, rows.Err()
}

func buildListQuery(params port.ListTriggersParams) (string, []any) {
	if params.Limit <= 0 || params.Limit > 500 {
		params.Limit = 100
	}

	var where []string
	var args []any
	argIdx := 1

	if params.SessionID != "" {
		where = append(where, fmt.Sprintf("session_id = $%d", argIdx))
		args = append(args, params.SessionID)
		argIdx++
	}
	if params.Matched != nil {
		where = append(where, fmt.Sprintf("matched = $%d", argIdx))
		args = append(args, *params.Matched)
		argIdx++
	}

	whereClause := ""
	if len(where) > 0 {
		whereClause = "WHERE " + strings.Join(where, " AND ")
	}

	query := fmt.Sprintf(
		`SELECT id::text, session_id, kind, condition, mode, type, text, matched, created_at
		 FROM triggers %s ORDER BY created_at DESC LIMIT $%d`,
		whereClause, argIdx,
	)
	args = append(args, params.Limit)
	return query, args
}
