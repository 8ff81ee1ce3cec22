// Package mailer sends the admin notification e-mail for completed orders.
package mailer

import (
	"context"
	"fmt"
	"html"
	"log/slog"
	"strings"
	"time"

	"gopkg.in/gomail.v2"

	"github.com/asiatek/partsbot/internal/config"
	"github.com/asiatek/partsbot/internal/logger"
	"github.com/asiatek/partsbot/internal/order"
)

const notificationSubject = "Получен новый запрос на автозапчасти"

// Mailer delivers admin notifications over SMTP. The recipient is fixed at
// construction time and is not configurable per call.
type Mailer struct {
	dialer *gomail.Dialer
	from   string
	to     string
}

// New builds a Mailer from SMTP configuration.
func New(cfg config.MailConfig) *Mailer {
	return &Mailer{
		dialer: gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password),
		from:   cfg.From,
		to:     cfg.AdminTo,
	}
}

// Send delivers the notification for one order. Failures are reported to the
// caller for logging; they are never retried here.
func (m *Mailer) Send(ctx context.Context, o order.Order) error {
	msg := gomail.NewMessage()
	msg.SetHeader("From", m.from)
	msg.SetHeader("To", m.to)
	msg.SetHeader("Subject", notificationSubject)
	msg.SetBody("text/html", Body(o))

	start := time.Now()
	done := make(chan error, 1)
	go func() { done <- m.dialer.DialAndSend(msg) }()

	var err error
	select {
	case err = <-done:
	case <-ctx.Done():
		err = ctx.Err()
	}
	if err != nil {
		logger.Mail.LogAttrs(ctx, slog.LevelError, "notification failed",
			slog.String("event", "mail.send"),
			slog.String("status", "fail"),
			slog.Int64("user_id", o.TelegramUserID),
			slog.Duration("duration", logger.Took(start)),
			slog.String("err", err.Error()),
		)
		return fmt.Errorf("send admin notification: %w", err)
	}
	logger.Mail.LogAttrs(ctx, slog.LevelInfo, "notification sent",
		slog.String("event", "mail.send"),
		slog.String("status", "ok"),
		slog.Int64("user_id", o.TelegramUserID),
		slog.Duration("duration", logger.Took(start)),
	)
	return nil
}

// Body renders the HTML notification body for one order.
func Body(o order.Order) string {
	var b strings.Builder
	fmt.Fprintf(&b, "<h2>%s</h2><hr>", notificationSubject)

	if o.VIN != "" {
		fmt.Fprintf(&b, "<p><strong>VIN:</strong> %s</p>", html.EscapeString(o.VIN))
	} else {
		b.WriteString("<p><strong>VIN:</strong> Не был предоставлен пользователем.</p>")
	}

	username := o.TelegramUsername
	if username == "" {
		username = "Не указано"
	}
	fmt.Fprintf(&b, `
	<p><strong>ID пользователя Telegram:</strong> %d</p>
	<p><strong>Имя пользователя Telegram:</strong> @%s</p>
	<p><strong>Предоставленные контакты:</strong> %s</p><hr>`,
		o.TelegramUserID, html.EscapeString(username), html.EscapeString(o.ContactInfo))

	fmt.Fprintf(&b, `
	<p><strong>Необходимые запчасти:</strong></p>
	<blockquote style="border-left: 4px solid #ccc; padding-left: 10px; margin-left: 0; font-style: italic;">%s</blockquote><hr>`,
		html.EscapeString(o.PartsNeeded))

	b.WriteString("<p>Пожалуйста, свяжитесь с пользователем.</p>")
	return b.String()
}
