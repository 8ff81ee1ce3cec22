package bot

import (
	"fmt"

	tele "gopkg.in/telebot.v4"

	tg "github.com/asiatek/partsbot/internal/telegram"
	"github.com/asiatek/partsbot/internal/telegram/commands"
	tghelpers "github.com/asiatek/partsbot/internal/telegram/helpers"
)

// Handlers glues the conversation engine to telebot. All conversation logic
// lives in Engine, this layer only extracts identities and delivers replies.
type Handlers struct {
	engine *Engine
}

// NewHandlers wraps the engine for registration.
func NewHandlers(e *Engine) *Handlers {
	return &Handlers{engine: e}
}

// Register wires commands, callbacks and the text fallback into the registry.
func (h *Handlers) Register(reg *tg.Registry) {
	reg.RegisterCommand("/start", commands.Command{
		Handler:     h.start,
		Description: "Запросить автозапчасти",
	})
	reg.RegisterCommand("/cancel", commands.Command{
		Handler:     h.cancel,
		Description: "Отменить текущий запрос",
	})
	reg.RegisterCommand("/stats", commands.Command{
		Handler:     h.stats,
		Description: "Order and usage counters",
		AdminOnly:   true,
		Hidden:      true,
	})

	_ = reg.RegisterCallback(TagVinYes, h.choice(TagVinYes))
	_ = reg.RegisterCallback(TagVinNo, h.choice(TagVinNo))
	_ = reg.RegisterCallback(TagNewRequest, h.restart)

	// Buttons from messages that predate the current handler set land here.
	reg.SetCallbackNotFound(func(c tele.Context) error {
		return tghelpers.EditOrSendHTML(c, unknownChoice)
	})
	reg.SetTextFallback(h.fallback)
}

// InProgress implements the text router's conversation check.
func (h *Handlers) InProgress(c tele.Context) bool {
	sender := c.Sender()
	if sender == nil {
		return false
	}
	return h.engine.InProgress(tghelpers.BuildContext(c), sender.ID)
}

// HandleText feeds an in-conversation message to the engine.
func (h *Handlers) HandleText(c tele.Context) error {
	u, ok := userFrom(c)
	if !ok {
		return nil
	}
	replies, err := h.engine.HandleText(tghelpers.BuildContext(c), u, c.Text())
	if err != nil {
		return err
	}
	return deliver(c, replies)
}

func (h *Handlers) start(c tele.Context) error {
	u, ok := userFrom(c)
	if !ok {
		return nil
	}
	replies, err := h.engine.Start(tghelpers.BuildContext(c), u, false)
	if err != nil {
		return err
	}
	return deliver(c, replies)
}

func (h *Handlers) restart(c tele.Context) error {
	u, ok := userFrom(c)
	if !ok {
		return nil
	}
	replies, err := h.engine.Start(tghelpers.BuildContext(c), u, true)
	if err != nil {
		return err
	}
	return deliver(c, replies)
}

func (h *Handlers) cancel(c tele.Context) error {
	u, ok := userFrom(c)
	if !ok {
		return nil
	}
	replies, err := h.engine.Cancel(tghelpers.BuildContext(c), u)
	if err != nil {
		return err
	}
	return deliver(c, replies)
}

func (h *Handlers) choice(tag string) tele.HandlerFunc {
	return func(c tele.Context) error {
		u, ok := userFrom(c)
		if !ok {
			return nil
		}
		replies, err := h.engine.HandleChoice(tghelpers.BuildContext(c), u, tag)
		if err != nil {
			return err
		}
		return deliver(c, replies)
	}
}

func (h *Handlers) fallback(c tele.Context) error {
	u, ok := userFrom(c)
	if !ok {
		return nil
	}
	replies := h.engine.Fallback(tghelpers.BuildContext(c), u, c.Text())
	return deliver(c, replies)
}

func (h *Handlers) stats(c tele.Context) error {
	ctx := tghelpers.BuildContext(c)
	stats, err := h.engine.Stats(ctx)
	if err != nil {
		return err
	}
	text := fmt.Sprintf("Orders: %d\nInteractions: %d", stats.Orders, stats.Interactions)
	return tghelpers.SendText(c, text)
}

func userFrom(c tele.Context) (User, bool) {
	sender := c.Sender()
	if sender == nil {
		return User{}, false
	}
	return User{
		ID:        sender.ID,
		Username:  sender.Username,
		FirstName: sender.FirstName,
	}, true
}

// deliver sends engine replies in order. Multi-message batches and edits go
// out synchronously, the dispatcher's worker pool does not preserve ordering
// between jobs.
func deliver(c tele.Context, replies []Reply) error {
	async := len(replies) == 1
	for _, r := range replies {
		markup := markupFor(r.Keyboard)
		var err error
		switch {
		case r.Edit:
			err = tghelpers.EditOrSendHTML(c, r.Text, markup)
		case r.HTML && async:
			err = tghelpers.SendHTML(c, r.Text, markup)
		case r.HTML:
			err = c.Send(r.Text, &tele.SendOptions{ParseMode: tele.ModeHTML, ReplyMarkup: markup})
		case async:
			err = tghelpers.SendText(c, r.Text, &tele.SendOptions{ReplyMarkup: markup})
		default:
			err = c.Send(r.Text, &tele.SendOptions{ReplyMarkup: markup})
		}
		if err != nil {
			return err
		}
	}
	return nil
}
