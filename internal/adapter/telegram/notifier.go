package telegram

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-telegram/bot"

	"dynsched/internal/scheduler"
)

// Notifier posts job events to a fixed set of chats.
type Notifier struct {
	sender   Sender
	chats    []int64
	log      *slog.Logger
	location *time.Location
}

// NewNotifier creates a Notifier. Times are shown in loc (UTC if nil).
func NewNotifier(s Sender, chats []int64, loc *time.Location, log *slog.Logger) *Notifier {
	if log == nil {
		log = slog.Default()
	}
	if loc == nil {
		loc = time.UTC
	}
	return &Notifier{
		sender:   s,
		chats:    chats,
		log:      log.With("component", "telegram_notifier"),
		location: loc,
	}
}

// Enabled reports whether there is anyone to notify.
func (n *Notifier) Enabled() bool { return n != nil && len(n.chats) > 0 }

// Notify sends text to every chat and joins the failures.
func (n *Notifier) Notify(ctx context.Context, text string) error {
	var errs []error
	for _, chat := range n.chats {
		if _, err := n.sender.SendMessage(ctx, &bot.SendMessageParams{ChatID: chat, Text: text}); err != nil {
			errs = append(errs, fmt.Errorf("chat %d: %w", chat, err))
		}
	}
	return errors.Join(errs...)
}

// Deliver reports the execution stored in ctx. It fits a scheduler.Task.
func (n *Notifier) Deliver(ctx context.Context) error {
	exec, ok := scheduler.ExecutionFromContext(ctx)
	if !ok {
		return errors.New("telegram: execution metadata missing in context")
	}
	return n.Notify(ctx, fmt.Sprintf("⏰ %s (%s) сработала в %s",
		exec.Job, exec.Cron, exec.ScheduledAt.In(n.location).Format("02.01.2006 15:04:05")))
}

// JobFailed matches scheduler.JobHooks.OnJobError.
func (n *Notifier) JobFailed(exec scheduler.Execution, err error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	text := fmt.Sprintf("❌ %s: ошибка выполнения\n%v", exec.Job, err)
	if nerr := n.Notify(ctx, text); nerr != nil {
		n.log.Warn("failure notice not sent", "job", exec.Job, "err", nerr)
	}
}
