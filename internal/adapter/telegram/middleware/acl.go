package middleware

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/go-telegram/bot/models"

	"dynsched/internal/adapter/telegram"
)

// ACL проверяет доступ по списку разрешённых Telegram user IDs.
// Пустой список запрещает всех.
type ACL struct{ allowed map[int64]struct{} }

// NewACL создаёт ACL по списку ID
func NewACL(ids []int64) *ACL {
	m := make(map[int64]struct{}, len(ids))
	for _, id := range ids {
		m[id] = struct{}{}
	}
	return &ACL{allowed: m}
}

// IsAllowed сообщает, имеет ли пользователь доступ
func (a *ACL) IsAllowed(id int64) bool { _, ok := a.allowed[id]; return ok }

// Middleware блокирует выполнение хендлера для неразрешённых пользователей.
// Апдейты без отправителя (посты каналов) отбрасываются.
func (a *ACL) Middleware(next telegram.HandlerFunc) telegram.HandlerFunc {
	return func(ctx context.Context, s telegram.Sender, upd *models.Update) {
		uid, chat := sender(upd)
		if uid != 0 && a.IsAllowed(uid) {
			next(ctx, s, upd)
			return
		}
		if uid != 0 {
			reply(ctx, s, chat, "доступ запрещен")
		}
	}
}

// ParseIDs парсит список ID из строки (разделители: запятая, пробелы, переносы)
func ParseIDs(s string) ([]int64, error) {
	parts := strings.FieldsFunc(s, func(r rune) bool {
		return r == ',' || r == ';' || r == ' ' || r == '\n' || r == '\t'
	})
	out := make([]int64, 0, len(parts))
	for _, p := range parts {
		n, err := strconv.ParseInt(p, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid telegram id %q: %w", p, err)
		}
		out = append(out, n)
	}
	return out, nil
}
