package mailer

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/asiatek/partsbot/internal/order"
)

func TestBodyWithVin(t *testing.T) {
	body := Body(order.Order{
		TelegramUserID:   100500,
		TelegramUsername: "driver",
		VIN:              "WVWZZZ1JZXW000001",
		ContactInfo:      "+992 900 00 00 00",
		PartsNeeded:      "передние тормозные колодки",
	})

	assert.Contains(t, body, "<h2>Получен новый запрос на автозапчасти</h2>")
	assert.Contains(t, body, "<strong>VIN:</strong> WVWZZZ1JZXW000001")
	assert.Contains(t, body, "<strong>ID пользователя Telegram:</strong> 100500")
	assert.Contains(t, body, "@driver")
	assert.Contains(t, body, "+992 900 00 00 00")
	assert.Contains(t, body, "передние тормозные колодки")
	assert.Contains(t, body, "Пожалуйста, свяжитесь с пользователем.")
}

func TestBodyWithoutVinOrUsername(t *testing.T) {
	body := Body(order.Order{
		TelegramUserID: 100500,
		ContactInfo:    "user@example.com",
		PartsNeeded:    "стартер",
	})

	assert.Contains(t, body, "Не был предоставлен пользователем.")
	assert.Contains(t, body, "@Не указано")
}

func TestBodyEscapesUserInput(t *testing.T) {
	body := Body(order.Order{
		TelegramUserID: 1,
		ContactInfo:    `<script>alert("x")</script>`,
		PartsNeeded:    "деталь <b>",
	})

	assert.NotContains(t, body, "<script>")
	assert.Contains(t, body, "&lt;script&gt;")
	assert.NotContains(t, body, "деталь <b>")
}
