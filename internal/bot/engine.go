// Package bot implements the parts request conversation: a fixed question
// sequence that collects a VIN or contact details plus a parts description,
// stores the result and notifies the admin by email.
package bot

import (
	"context"
	"fmt"
	"strings"
	"time"

	"log/slog"

	"github.com/asiatek/partsbot/internal/logger"
	"github.com/asiatek/partsbot/internal/order"
	"github.com/asiatek/partsbot/internal/session"
)

// insertTimeout bounds the awaited order insert so a stalled database
// cannot hang the conversation.
const insertTimeout = 10 * time.Second

// Reply is one outgoing message produced by the engine. Handlers decide how
// to deliver it, which keeps the conversation logic testable without a live
// Telegram connection.
type Reply struct {
	Text     string
	Keyboard Keyboard
	// HTML marks texts carrying a user mention link.
	HTML bool
	// Edit replaces the message whose button was pressed instead of
	// sending a new one.
	Edit bool
}

// User identifies the person talking to the bot.
type User struct {
	ID        int64
	Username  string
	FirstName string
}

// Notifier delivers the admin notification for a stored order.
type Notifier interface {
	Send(ctx context.Context, o order.Order) error
}

// Tasks runs detached work: usage log writes and admin notifications.
type Tasks interface {
	Enqueue(ctx context.Context, action string, retryable bool, run func() error) error
}

// Engine drives the conversation state machine. All methods are safe for
// concurrent use as long as updates from one user arrive serially, which
// the transport layer guarantees.
type Engine struct {
	sessions session.Manager
	repo     order.Repository
	notifier Notifier
	tasks    Tasks
}

// NewEngine wires the conversation engine.
func NewEngine(sessions session.Manager, repo order.Repository, notifier Notifier, tasks Tasks) *Engine {
	return &Engine{
		sessions: sessions,
		repo:     repo,
		notifier: notifier,
		tasks:    tasks,
	}
}

// Start begins or restarts the conversation. Any previous state for the
// user is discarded first.
func (e *Engine) Start(ctx context.Context, u User, restart bool) ([]Reply, error) {
	if restart {
		e.logUsage(ctx, u, order.InteractionCallbackRestart, "new_request")
	} else {
		e.logUsage(ctx, u, order.InteractionCommand, "/start")
	}

	s := &session.Session{
		UserID:   u.ID,
		Username: u.Username,
		Step:     session.StepAskVinKnown,
	}
	if err := e.sessions.Save(ctx, s); err != nil {
		logger.Error(ctx, "bot", "session.save.fail",
			slog.String("step", string(session.StepAskVinKnown)),
			slog.String("err", err.Error()),
		)
		return []Reply{{Text: sessionLost}}, nil
	}

	welcome := welcomeNew
	if restart {
		welcome = welcomeRestart
	}
	name := u.FirstName
	if name == "" {
		name = u.Username
	}
	return []Reply{
		{Text: fmt.Sprintf(welcome, mentionHTML(u.ID, name)), HTML: true},
		{Text: askVinKnown, Keyboard: KeyboardVinChoice},
	}, nil
}

// HandleChoice consumes the yes/no VIN button press.
func (e *Engine) HandleChoice(ctx context.Context, u User, tag string) ([]Reply, error) {
	s, err := e.session(ctx, u.ID)
	if err != nil {
		return []Reply{{Text: sessionLost, Edit: true}}, nil
	}
	if s == nil || s.Step != session.StepAskVinKnown {
		// A press on a keyboard from an already finished conversation.
		return []Reply{{Text: unknownChoice, Edit: true}}, nil
	}

	e.logUsage(ctx, u, order.InteractionCallback, tag)

	switch tag {
	case TagVinYes:
		s.Step = session.StepGetVin
		if err := e.saveStep(ctx, s); err != nil {
			return []Reply{{Text: sessionLost, Edit: true}}, nil
		}
		return []Reply{{Text: askVin, Edit: true}}, nil
	case TagVinNo:
		s.Step = session.StepGetContact
		if err := e.saveStep(ctx, s); err != nil {
			return []Reply{{Text: sessionLost, Edit: true}}, nil
		}
		return []Reply{{Text: askContact, Edit: true}}, nil
	default:
		// Unknown tag at this step, ask the question again.
		return []Reply{{Text: askVinKnown, Keyboard: KeyboardVinChoice}}, nil
	}
}

// HandleText consumes a free-form message while a conversation is active.
func (e *Engine) HandleText(ctx context.Context, u User, text string) ([]Reply, error) {
	s, err := e.session(ctx, u.ID)
	if err != nil || s == nil {
		return []Reply{{Text: sessionLost}}, nil
	}

	switch s.Step {
	case session.StepGetVin:
		return e.handleVin(ctx, u, s, text)
	case session.StepGetContact:
		return e.handleContact(ctx, u, s, text)
	case session.StepGetParts:
		return e.handleParts(ctx, u, s, text)
	case session.StepAskVinKnown:
		// The user typed instead of pressing a button.
		return []Reply{{Text: askVinKnown, Keyboard: KeyboardVinChoice}}, nil
	default:
		return e.Fallback(ctx, u, text), nil
	}
}

func (e *Engine) handleVin(ctx context.Context, u User, s *session.Session, text string) ([]Reply, error) {
	if strings.TrimSpace(text) == "" {
		return []Reply{{Text: emptyVin}}, nil
	}
	vin := NormalizeVIN(text)
	if !ValidVIN(vin) {
		logger.Warn(ctx, "bot", "vin.invalid",
			slog.String("step", string(s.Step)),
		)
		return []Reply{{Text: invalidVin}}, nil
	}

	s.VIN = vin
	s.Step = session.StepGetContact
	if err := e.saveStep(ctx, s); err != nil {
		return []Reply{{Text: sessionLost}}, nil
	}

	e.logUsage(ctx, u, order.InteractionActionCompleted, "vin_provided")
	return []Reply{{Text: askContactAfterVin}}, nil
}

func (e *Engine) handleContact(ctx context.Context, u User, s *session.Session, text string) ([]Reply, error) {
	if strings.TrimSpace(text) == "" {
		return []Reply{{Text: emptyContact}}, nil
	}
	contact := strings.TrimSpace(text)
	if !ValidContact(contact) {
		return []Reply{{Text: invalidContact}}, nil
	}

	s.Contact = contact
	s.Step = session.StepGetParts
	if err := e.saveStep(ctx, s); err != nil {
		return []Reply{{Text: sessionLost}}, nil
	}

	e.logUsage(ctx, u, order.InteractionActionCompleted, "contact_provided")
	return []Reply{{Text: askParts}}, nil
}

func (e *Engine) handleParts(ctx context.Context, u User, s *session.Session, text string) ([]Reply, error) {
	parts := strings.TrimSpace(text)
	if parts == "" {
		return []Reply{{Text: emptyParts}}, nil
	}

	e.logUsage(ctx, u, order.InteractionActionCompleted, "parts_provided")

	// The conversation is over no matter how persistence goes.
	defer e.clear(ctx, u.ID)

	if s.UserID == 0 || s.Contact == "" {
		logger.Error(ctx, "bot", "order.incomplete",
			slog.Int64("user_id", s.UserID),
			slog.String("step", string(s.Step)),
		)
		return []Reply{{Text: sessionLost}}, nil
	}

	o := order.Order{
		TelegramUserID:   s.UserID,
		TelegramUsername: s.Username,
		VIN:              s.VIN,
		ContactInfo:      s.Contact,
		PartsNeeded:      parts,
	}

	insertCtx, cancel := context.WithTimeout(ctx, insertTimeout)
	err := e.repo.Insert(insertCtx, o)
	cancel()
	if err != nil {
		logger.Error(ctx, "bot", "order.save.fail",
			slog.Int64("user_id", s.UserID),
			slog.String("err", err.Error()),
		)
		e.logUsage(ctx, u, order.InteractionActionFailed, "order_save_failed")
		return []Reply{{Text: savedFail, Keyboard: KeyboardNewRequest}}, nil
	}

	logger.Info(ctx, "bot", "order.saved",
		slog.Int64("user_id", s.UserID),
	)
	e.logUsage(ctx, u, order.InteractionActionCompleted, "order_saved_successfully")
	e.notify(ctx, o)

	return []Reply{{Text: savedOK, Keyboard: KeyboardNewRequest}}, nil
}

// Cancel aborts the conversation from any step. It is a no-op reply when no
// conversation is active, the session is cleared either way.
func (e *Engine) Cancel(ctx context.Context, u User) ([]Reply, error) {
	e.logUsage(ctx, u, order.InteractionCommand, "/cancel")
	e.clear(ctx, u.ID)
	return []Reply{{Text: cancelled}}, nil
}

// Fallback handles messages outside the expected flow. Keep-alive pings are
// dropped silently.
func (e *Engine) Fallback(ctx context.Context, u User, text string) []Reply {
	if text == "ping" {
		logger.Debug(ctx, "bot", "keepalive.ping")
		return nil
	}

	detail := text
	if len(detail) > 100 {
		detail = detail[:100]
	}
	e.logUsage(ctx, u, order.InteractionFallback, detail)

	if strings.HasPrefix(text, "/") {
		return []Reply{{Text: fmt.Sprintf(fallbackCommand, text)}}
	}
	return []Reply{{Text: fallbackText}}
}

// InProgress reports whether the user has an active conversation.
func (e *Engine) InProgress(ctx context.Context, userID int64) bool {
	return e.sessions.InProgress(ctx, userID)
}

// Stats returns aggregate counters for the admin command.
func (e *Engine) Stats(ctx context.Context) (order.Stats, error) {
	return e.repo.Stats(ctx)
}

func (e *Engine) session(ctx context.Context, userID int64) (*session.Session, error) {
	s, err := e.sessions.Get(ctx, userID)
	if err != nil {
		logger.Error(ctx, "bot", "session.load.fail",
			slog.Int64("user_id", userID),
			slog.String("err", err.Error()),
		)
		return nil, err
	}
	return s, nil
}

func (e *Engine) saveStep(ctx context.Context, s *session.Session) error {
	if err := e.sessions.Save(ctx, s); err != nil {
		logger.Error(ctx, "bot", "session.save.fail",
			slog.Int64("user_id", s.UserID),
			slog.String("step", string(s.Step)),
			slog.String("err", err.Error()),
		)
		return err
	}
	return nil
}

func (e *Engine) clear(ctx context.Context, userID int64) {
	if err := e.sessions.Clear(ctx, userID); err != nil {
		logger.Error(ctx, "bot", "session.clear.fail",
			slog.Int64("user_id", userID),
			slog.String("err", err.Error()),
		)
	}
}

// logUsage records the interaction without blocking the conversation. The
// write outlives the update context on purpose.
func (e *Engine) logUsage(ctx context.Context, u User, interactionType, detail string) {
	entry := order.UsageEntry{
		UserID:          u.ID,
		Username:        u.Username,
		FirstName:       u.FirstName,
		InteractionType: interactionType,
		Detail:          detail,
	}
	logger.Debug(ctx, "bot", "usage.log",
		slog.String("interaction", interactionType),
		slog.String("detail", logger.SanitizeLimit(detail, 100)),
	)
	bg := context.WithoutCancel(ctx)
	err := e.tasks.Enqueue(bg, "usage.log", true, func() error {
		return e.repo.LogUsage(bg, entry)
	})
	if err != nil {
		logger.Warn(ctx, "bot", "usage.log.drop",
			slog.String("interaction", interactionType),
			slog.String("err", err.Error()),
		)
	}
}

// notify hands the admin email to the dispatcher. Delivery failures are an
// operator problem, the user already got their confirmation.
func (e *Engine) notify(ctx context.Context, o order.Order) {
	bg := context.WithoutCancel(ctx)
	err := e.tasks.Enqueue(bg, "mail.notify", true, func() error {
		return e.notifier.Send(bg, o)
	})
	if err != nil {
		logger.Error(ctx, "bot", "notify.drop",
			slog.Int64("user_id", o.TelegramUserID),
			slog.String("err", err.Error()),
		)
	}
}
