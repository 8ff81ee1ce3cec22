package bot

import (
	"fmt"
	"html"
)

// User-facing texts. The bot speaks Russian, operator logs stay English.
const (
	welcomeNew     = "👋 Добро пожаловать, %s!\n\nЯ помогу вам запросить автозапчасти. Для начала, пожалуйста, скажите:"
	welcomeRestart = "👋 Снова здравствуйте, %s!\n\nГотов принять новый запрос на автозапчасти. Для начала:"

	askVinKnown = "Знаете ли вы VIN (идентификационный номер) вашего автомобиля?"

	btnVinYes     = "✅ Да, я знаю свой VIN"
	btnVinNo      = "❌ Нет, я не знаю свой VIN"
	btnNewRequest = "➕ Запросить снова"

	askVin     = "Отлично! Пожалуйста, введите ваш 17-значный VIN."
	askContact = "Нет проблем. Пожалуйста, укажите ваш номер телефона или адрес электронной почты, чтобы мы могли с вами связаться."

	invalidVin = "Это не похоже на действительный 17-значный VIN.\nПожалуйста, попробуйте еще раз или введите /cancel для отмены."
	emptyVin   = "Пожалуйста, введите ваш 17-значный VIN или /cancel для отмены."

	askContactAfterVin = "Спасибо! Теперь, пожалуйста, укажите ваш номер телефона или адрес электронной почты для связи."
	invalidContact     = "Пожалуйста, введите действительный номер телефона или адрес электронной почты (минимум 5 символов).\nИли введите /cancel для отмены."
	emptyContact       = "Пожалуйста, укажите ваш номер телефона или адрес электронной почты, или /cancel для отмены."

	askParts   = "Понял! Теперь, пожалуйста, опишите необходимые вам автозапчасти или детали."
	emptyParts = "Пожалуйста, опишите необходимые детали или введите /cancel для отмены."

	savedOK   = "✅ Спасибо! Ваш запрос отправлен.\nМы получили ваши данные и список деталей. Мы скоро свяжемся с вами!"
	savedFail = "❌ Извините, произошла ошибка при сохранении вашего запроса в базе данных."

	cancelled = "Хорошо, процесс запроса отменен."

	sessionLost = "Извините, произошла ошибка при получении ваших данных. Пожалуйста, начните сначала с /start."

	unknownChoice = "Произошла ошибка. Пожалуйста, попробуйте начать сначала с /start."

	fallbackCommand = "Команда %s здесь не ожидается. Пожалуйста, следуйте инструкциям или используйте /cancel для отмены."
	fallbackText    = "Извините, я этого не ожидал. Если вы были в процессе запроса, пожалуйста, следуйте подсказкам. Вы всегда можете начать сначала с /start или отменить с /cancel."
)

// mentionHTML builds a tg://user link so the greeting works even for users
// without a public username.
func mentionHTML(userID int64, name string) string {
	if name == "" {
		name = fmt.Sprintf("user %d", userID)
	}
	return fmt.Sprintf(`<a href="tg://user?id=%d">%s</a>`, userID, html.EscapeString(name))
}
