package bot

import (
	tele "gopkg.in/telebot.v4"

	"github.com/asiatek/partsbot/internal/telegram/keyboard"
)

// Keyboard names the inline keyboard attached to a reply. The engine stays
// transport-free, handlers map these values to actual markup.
type Keyboard int

const (
	KeyboardNone Keyboard = iota
	KeyboardVinChoice
	KeyboardNewRequest
)

// Stable button tags, persisted in messages already delivered to users.
// Renaming them would break buttons on old messages.
const (
	TagVinYes     = "vin_yes"
	TagVinNo      = "vin_no"
	TagNewRequest = "new_request"
)

func vinChoiceMarkup() *tele.ReplyMarkup {
	return keyboard.InlineButtons([]keyboard.InlineBtn{
		{Text: btnVinYes, Unique: TagVinYes},
		{Text: btnVinNo, Unique: TagVinNo},
	})
}

func newRequestMarkup() *tele.ReplyMarkup {
	return keyboard.InlineButtons([]keyboard.InlineBtn{
		{Text: btnNewRequest, Unique: TagNewRequest},
	})
}

func markupFor(kb Keyboard) *tele.ReplyMarkup {
	switch kb {
	case KeyboardVinChoice:
		return vinChoiceMarkup()
	case KeyboardNewRequest:
		return newRequestMarkup()
	default:
		return nil
	}
}
