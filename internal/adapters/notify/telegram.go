package notify

import (
	"context"
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/alejandrodnm/sentinel/internal/domain"
)

const maxMessageLength = 4096

// Telegram envía un mensaje por cada trade liquidado a un chat fijo.
type Telegram struct {
	api    *tgbotapi.BotAPI
	chatID int64
}

// NewTelegram autoriza el bot. endpoint vacío usa el API público; los tests
// apuntan a un httptest server con el formato "http://host/bot%s/%s".
func NewTelegram(token string, chatID int64, endpoint string) (*Telegram, error) {
	if endpoint == "" {
		endpoint = tgbotapi.APIEndpoint
	}
	api, err := tgbotapi.NewBotAPIWithAPIEndpoint(token, endpoint)
	if err != nil {
		return nil, fmt.Errorf("notify.NewTelegram: authorize: %w", err)
	}
	return &Telegram{api: api, chatID: chatID}, nil
}

// Username returns the bot's handle.
func (t *Telegram) Username() string {
	return t.api.Self.UserName
}

// TradeSettled envía el resumen del trade. ctx no se propaga: el cliente del
// bot no acepta contexto.
func (t *Telegram) TradeSettled(_ context.Context, tr domain.Trade) error {
	return t.Send(formatTrade(tr))
}

// Send parte los mensajes largos en trozos de maxMessageLength.
func (t *Telegram) Send(text string) error {
	for _, part := range splitMessage(text, maxMessageLength) {
		msg := tgbotapi.NewMessage(t.chatID, part)
		msg.ParseMode = tgbotapi.ModeMarkdown
		if _, err := t.api.Send(msg); err != nil {
			return fmt.Errorf("notify.Telegram.Send: %w", err)
		}
	}
	return nil
}

func formatTrade(tr domain.Trade) string {
	icon := "✅"
	if tr.Status != domain.TradeExecuted {
		icon = "❌"
	}
	return fmt.Sprintf("%s *%s %s* %s\nAmount: $%.2f at %.6f\nProfit: $%.2f\nID: `%s`",
		icon, tr.Side, tr.Pair, tr.Status, tr.NotionalUSD, tr.PriceAtCreation, tr.ExpectedProfitUSD, tr.ID)
}

// splitMessage corta por líneas sin pasar de maxLength bytes.
func splitMessage(text string, maxLength int) []string {
	if len(text) <= maxLength {
		return []string{text}
	}

	var parts []string
	var cur strings.Builder
	for _, line := range strings.Split(text, "\n") {
		for len(line) > maxLength {
			if cur.Len() > 0 {
				parts = append(parts, cur.String())
				cur.Reset()
			}
			parts = append(parts, line[:maxLength])
			line = line[maxLength:]
		}
		if cur.Len()+len(line)+1 > maxLength {
			parts = append(parts, cur.String())
			cur.Reset()
		}
		if cur.Len() > 0 {
			cur.WriteByte('\n')
		}
		cur.WriteString(line)
	}
	if cur.Len() > 0 {
		parts = append(parts, cur.String())
	}
	return parts
}
