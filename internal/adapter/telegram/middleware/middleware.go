// Package middleware содержит телеграм-middleware: ACL и ограничение частоты.
package middleware

import (
	"context"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"dynsched/internal/adapter/telegram"
)

// Middleware wraps telegram.HandlerFunc.
type Middleware func(telegram.HandlerFunc) telegram.HandlerFunc

// Chain applies middlewares in order.
func Chain(h telegram.HandlerFunc, mws ...Middleware) telegram.HandlerFunc {
	for i := len(mws) - 1; i >= 0; i-- {
		h = mws[i](h)
	}
	return h
}

// sender извлекает пользователя и чат из апдейта.
func sender(upd *models.Update) (uid, chat int64) {
	if m := upd.Message; m != nil {
		chat = m.Chat.ID
		if m.From != nil {
			uid = m.From.ID
		}
		return uid, chat
	}
	if cb := upd.CallbackQuery; cb != nil {
		uid = cb.From.ID
		if cb.Message.Message != nil {
			chat = cb.Message.Message.Chat.ID
		}
	}
	return uid, chat
}

func reply(ctx context.Context, s telegram.Sender, chat int64, text string) {
	if chat == 0 || s == nil {
		return
	}
	_, _ = s.SendMessage(ctx, &bot.SendMessageParams{ChatID: chat, Text: text})
}
