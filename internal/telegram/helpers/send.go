package helpers

import (
	"errors"
	"log/slog"
	"sync/atomic"

	"github.com/asiatek/partsbot/internal/background"
	"github.com/asiatek/partsbot/internal/logger"

	tele "gopkg.in/telebot.v4"
)

var globalDispatcher atomic.Pointer[background.Dispatcher]

// SetDispatcher wires the asynchronous task dispatcher used by send helpers.
func SetDispatcher(d *background.Dispatcher) {
	globalDispatcher.Store(d)
}

func currentDispatcher() *background.Dispatcher {
	return globalDispatcher.Load()
}

func sendAsync(c tele.Context, action string, run func() error) error {
	disp := currentDispatcher()
	if disp == nil {
		return run()
	}

	ctx := BuildContext(c)
	if err := disp.Enqueue(ctx, action, true, run); err != nil {
		if errors.Is(err, background.ErrQueueFull) || errors.Is(err, background.ErrQueueClosed) {
			logger.Warn(ctx, "tg", "queue.fallback",
				slog.String("action", action),
				slog.String("err", err.Error()),
			)
			return run()
		}
		return err
	}
	return nil
}

// SendText sends raw text (no parse mode) to the current recipient.
func SendText(c tele.Context, text string, opts ...*tele.SendOptions) error {
	var sendOpts *tele.SendOptions
	if len(opts) > 0 {
		sendOpts = opts[0]
	}
	return sendAsync(c, "send.text", func() error {
		if sendOpts != nil {
			return c.Send(text, sendOpts)
		}
		return c.Send(text)
	})
}

// SendHTML sends a message with HTML parse mode and optional reply markup.
func SendHTML(c tele.Context, text string, markup ...*tele.ReplyMarkup) error {
	var rm *tele.ReplyMarkup
	if len(markup) > 0 {
		rm = markup[0]
	}
	opts := &tele.SendOptions{ParseMode: tele.ModeHTML, ReplyMarkup: rm}
	return SendText(c, text, opts)
}

// EditOrSendHTML tries to edit the message or sends a new one if edit fails.
// Edits run synchronously, the conversation text that follows must not outrun them.
func EditOrSendHTML(c tele.Context, text string, markup ...*tele.ReplyMarkup) error {
	var rm *tele.ReplyMarkup
	if len(markup) > 0 {
		rm = markup[0]
	}
	return c.EditOrSend(text, &tele.SendOptions{ParseMode: tele.ModeHTML, ReplyMarkup: rm})
}
