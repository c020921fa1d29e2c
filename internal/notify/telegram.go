package notify

import (
	"context"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/taskboard-app/taskboard/internal/model"
)

// Telegram posts a single completion message to a configured chat. The
// audience is not addressed individually here; the chat is the team's
// shared review channel.
type Telegram struct {
	api    *tgbotapi.BotAPI
	chatID int64
}

func NewTelegram(token string, chatID int64) (*Telegram, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("could not init telegram bot: %w", err)
	}
	return &Telegram{api: api, chatID: chatID}, nil
}

func (t *Telegram) Name() string { return "telegram" }

func (t *Telegram) Notify(_ context.Context, app model.App, task model.Task, _ []model.User) []Result {
	text := fmt.Sprintf("✅ [%s] %s\n%s\n\n%s", app.Acronym, task.ID, task.Name, messageBody(task))
	msg := tgbotapi.NewMessage(t.chatID, text)
	_, err := t.api.Send(msg)
	return []Result{{Channel: t.Name(), Recipient: fmt.Sprintf("chat:%d", t.chatID), Err: err}}
}
