package shared

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
)

// Audit actions recorded by the services.
const (
	AuditCreate   = "create"
	AuditUpdate   = "update"
	AuditDelete   = "delete"
	AuditGenerate = "generate"
	AuditVoid     = "void"
	AuditExport   = "export"
	AuditLogin    = "login"
)

// AuditLog represents a record stored in audit_logs.
type AuditLog struct {
	ActorID  int64
	Action   string
	Entity   string
	EntityID string
	Meta     map[string]any
	At       time.Time
}

// Execer is satisfied by *pgxpool.Pool and pgx.Tx.
type Execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// AuditLogger writes records into audit_logs.
type AuditLogger struct {
	db     Execer
	logger *slog.Logger
}

// NewAuditLogger returns a new AuditLogger. A nil logger silences write failures.
func NewAuditLogger(db Execer, logger *slog.Logger) *AuditLogger {
	return &AuditLogger{db: db, logger: logger}
}

// Record persists the log entry. The actor defaults to the principal in ctx.
func (l *AuditLogger) Record(ctx context.Context, log AuditLog) error {
	if l == nil || l.db == nil {
		return errors.New("audit logger not initialised")
	}
	if log.Action == "" || log.Entity == "" || log.EntityID == "" {
		return errors.New("audit log requires action/entity/entity_id")
	}
	if log.ActorID == 0 {
		log.ActorID = ActorID(ctx)
	}
	if log.At.IsZero() {
		log.At = time.Now().UTC()
	}
	metaJSON, err := json.Marshal(log.Meta)
	if err != nil {
		return err
	}
	_, err = l.db.Exec(ctx, `INSERT INTO audit_logs (actor_id, action, entity, entity_id, meta, occurred_at) VALUES (NULLIF($1, 0), $2, $3, $4, $5, $6)`,
		log.ActorID, log.Action, log.Entity, log.EntityID, metaJSON, log.At)
	if err != nil && l.logger != nil {
		l.logger.Warn("audit record", slog.String("entity", log.Entity), slog.String("entity_id", log.EntityID), slog.Any("error", err))
	}
	return err
}
