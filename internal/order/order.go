// Package order defines the persisted records produced by completed
// conversations and the repository that stores them.
package order

import (
	"context"
	"time"
)

// Order is one completed parts request. It is created exactly once at the end
// of a conversation and never mutated afterwards.
type Order struct {
	ID               int64     `db:"id"`
	TelegramUserID   int64     `db:"telegram_user_id"`
	TelegramUsername string    `db:"telegram_username"`
	VIN              string    `db:"vin"`
	ContactInfo      string    `db:"contact_info"`
	PartsNeeded      string    `db:"parts_needed"`
	CreatedAt        time.Time `db:"created_at"`
}

// Interaction types recorded in the usage log.
const (
	InteractionCommand         = "command"
	InteractionCallback        = "callback_query"
	InteractionCallbackRestart = "callback_restart"
	InteractionActionCompleted = "action_completed"
	InteractionActionFailed    = "action_failed"
	InteractionFallback        = "fallback"
)

// UsageEntry is a single append-only usage log record. Writing it is
// best-effort; failures never reach the user-facing flow.
type UsageEntry struct {
	UserID          int64  `db:"user_id"`
	Username        string `db:"username"`
	FirstName       string `db:"first_name"`
	InteractionType string `db:"interaction_type"`
	Detail          string `db:"interaction_detail"`
}

// Stats aggregates counters for the admin /stats command.
type Stats struct {
	Orders       int64 `db:"orders"`
	Interactions int64 `db:"interactions"`
}

// Repository persists orders and usage log entries.
type Repository interface {
	Insert(ctx context.Context, o Order) error
	LogUsage(ctx context.Context, e UsageEntry) error
	Stats(ctx context.Context) (Stats, error)
}
