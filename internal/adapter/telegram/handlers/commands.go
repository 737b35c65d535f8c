// Package handlers implements the admin bot commands.
package handlers

import (
	"context"
	"log/slog"
	"strings"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"dynsched/internal/adapter/telegram"
	"dynsched/internal/scheduler"
)

// JobLister provides the current schedule.
type JobLister interface {
	Jobs() []scheduler.JobInfo
}

// Commands routes slash commands.
type Commands struct {
	jobs JobLister
	log  *slog.Logger
}

// New creates the command router.
func New(jobs JobLister, log *slog.Logger) *Commands {
	if log == nil {
		log = slog.Default()
	}
	return &Commands{jobs: jobs, log: log.With("component", "telegram_commands")}
}

// Handle routes updates to command handlers.
func (c *Commands) Handle(ctx context.Context, s telegram.Sender, upd *models.Update) {
	msg := upd.Message
	if msg == nil || !strings.HasPrefix(msg.Text, "/") {
		return
	}
	cmd := strings.TrimPrefix(strings.SplitN(msg.Text, " ", 2)[0], "/")
	// "/jobs@my_bot" in group chats
	cmd, _, _ = strings.Cut(cmd, "@")

	var text string
	switch cmd {
	case "start":
		text = Start()
	case "ping":
		text = Ping()
	case "jobs":
		text = Jobs(c.jobs.Jobs())
	default:
		text = "неизвестная команда"
	}
	c.reply(ctx, s, msg, cmd, text)
}

func (c *Commands) reply(ctx context.Context, s telegram.Sender, msg *models.Message, cmd, text string) {
	_, err := s.SendMessage(ctx, &bot.SendMessageParams{ChatID: msg.Chat.ID, Text: text})
	if err != nil {
		c.log.Warn("reply failed", "command", cmd, "chat_id", msg.Chat.ID, "err", err)
	}
}
