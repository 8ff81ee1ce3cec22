package order

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/asiatek/partsbot/internal/logger"
)

// PostgresRepository stores orders and usage log entries in the hosted
// Postgres backend via sqlx.
type PostgresRepository struct {
	db *sqlx.DB
}

// NewPostgresRepository wraps an open connection pool.
func NewPostgresRepository(db *sqlx.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const insertOrderQuery = `
	INSERT INTO orders (telegram_user_id, telegram_username, vin, contact_info, parts_needed)
	VALUES (:telegram_user_id, NULLIF(:telegram_username, ''), NULLIF(:vin, ''), :contact_info, :parts_needed)`

// Insert persists a completed order. The backend error detail (code, message,
// hint) goes to the operator log only; callers get a wrapped error.
func (r *PostgresRepository) Insert(ctx context.Context, o Order) error {
	start := time.Now()
	_, err := r.db.NamedExecContext(ctx, insertOrderQuery, o)
	if err != nil {
		logger.DB.LogAttrs(ctx, slog.LevelError, "order insert failed",
			append(pqErrorAttrs(err),
				slog.String("event", "order.insert"),
				slog.String("status", "fail"),
				slog.Int64("user_id", o.TelegramUserID),
				slog.Duration("duration", logger.Took(start)),
			)...,
		)
		return fmt.Errorf("insert order: %w", err)
	}
	logger.DB.LogAttrs(ctx, slog.LevelInfo, "order stored",
		slog.String("event", "order.insert"),
		slog.String("status", "ok"),
		slog.Int64("user_id", o.TelegramUserID),
		slog.Duration("duration", logger.Took(start)),
	)
	return nil
}

const insertUsageQuery = `
	INSERT INTO bot_usage_log (user_id, username, first_name, interaction_type, interaction_detail)
	VALUES (:user_id, NULLIF(:username, ''), NULLIF(:first_name, ''), :interaction_type, NULLIF(:interaction_detail, ''))`

// LogUsage appends a usage log entry.
func (r *PostgresRepository) LogUsage(ctx context.Context, e UsageEntry) error {
	if _, err := r.db.NamedExecContext(ctx, insertUsageQuery, e); err != nil {
		return fmt.Errorf("insert usage entry: %w", err)
	}
	return nil
}

// Stats returns aggregate counters for the admin report.
func (r *PostgresRepository) Stats(ctx context.Context) (Stats, error) {
	var s Stats
	err := r.db.GetContext(ctx, &s,
		`SELECT
			(SELECT count(*) FROM orders) AS orders,
			(SELECT count(*) FROM bot_usage_log) AS interactions`)
	if err != nil {
		return Stats{}, fmt.Errorf("query stats: %w", err)
	}
	return s, nil
}

// pqErrorAttrs extracts driver-level error details when the backend supplied them.
func pqErrorAttrs(err error) []slog.Attr {
	attrs := []slog.Attr{slog.String("err", err.Error())}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		attrs = append(attrs, slog.String("err_code", string(pqErr.Code)))
		if pqErr.Detail != "" {
			attrs = append(attrs, slog.String("detail", pqErr.Detail))
		}
		if pqErr.Hint != "" {
			attrs = append(attrs, slog.String("hint", pqErr.Hint))
		}
		if pqErr.Table != "" {
			attrs = append(attrs, slog.String("table", pqErr.Table))
		}
	}
	return attrs
}
