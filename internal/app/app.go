// Package app wires configuration, storage, the scheduler engine and the
// outer surfaces (HTTP API, Telegram bot) into one process.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"golang.org/x/sync/errgroup"

	"dynsched/internal/adapter/httpapi"
	"dynsched/internal/adapter/store/pgstore"
	"dynsched/internal/adapter/store/sqlitestore"
	"dynsched/internal/adapter/telegram"
	"dynsched/internal/adapter/telegram/handlers"
	"dynsched/internal/adapter/telegram/middleware"
	"dynsched/internal/adapter/webhook"
	"dynsched/internal/config"
	"dynsched/internal/jobstore"
	"dynsched/internal/platform/httpclient"
	"dynsched/internal/platform/logger"
	"dynsched/internal/platform/pg"
	"dynsched/internal/platform/sqlite"
	"dynsched/internal/scheduler"
	"dynsched/pkg/retry"
)

// App wires application components.
type App struct {
	cfg       config.Config
	log       *slog.Logger
	logCloser io.Closer
}

// New creates a new App instance and loads configuration.
func New() (*App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	log, closer := logger.New(logger.Options{
		Env:          cfg.Env,
		ConsoleLevel: cfg.Log.ConsoleLevel,
		FileLevel:    cfg.Log.FileLevel,
		File:         cfg.Log.File,
		App:          "dynsched",
	})
	slog.SetDefault(log)
	if cfg.Env == "prod" {
		gin.SetMode(gin.ReleaseMode)
	}
	return &App{cfg: cfg, log: log, logCloser: closer}, nil
}

// Run starts the application and blocks until SIGINT/SIGTERM.
func (a *App) Run() error {
	defer a.logCloser.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	err := a.run(ctx)
	if err != nil {
		a.log.Error("application stopped with error", "err", err)
	} else {
		a.log.Info("application stopped")
	}
	return err
}

func (a *App) run(ctx context.Context) error {
	a.log.Info("starting", "store", a.cfg.Store.Driver, "http_addr", a.cfg.HTTP.Addr)

	store, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if err := store.Close(); err != nil {
			a.log.Warn("store close", "err", err)
		}
	}()

	client := httpclient.New(httpclient.WithLogger(a.log))

	var (
		tgBot    *bot.Bot
		notifier *telegram.Notifier
		disp     *telegram.Dispatcher
	)
	if a.cfg.TelegramEnabled() {
		tgBot, err = bot.New(a.cfg.Telegram.Token,
			bot.WithDefaultHandler(func(ctx context.Context, _ *bot.Bot, upd *models.Update) {
				disp.Dispatch(ctx, upd)
			}),
			bot.WithAllowedUpdates([]string{"message", "callback_query"}),
		)
		if err != nil {
			return fmt.Errorf("telegram bot: %w", err)
		}
		notifier = telegram.NewNotifier(tgBot, a.cfg.Telegram.NotifyChats, a.cfg.Scheduler.Location, a.log)
	}

	var sink *webhook.Sink
	if a.cfg.Webhook.URL != "" {
		sink = webhook.New(client, a.cfg.Webhook.URL, a.cfg.Webhook.Secret, a.log)
	}

	engine := scheduler.NewWithContext(ctx, scheduler.Config{
		Logger:    a.log.With("component", "scheduler"),
		Location:  a.cfg.Scheduler.Location,
		Workers:   a.cfg.Scheduler.Workers,
		QueueSize: a.cfg.Scheduler.QueueSize,
		Tasks: NewTaskFactory(TaskOptions{
			Logger:   a.log,
			Webhook:  sink,
			Notifier: notifier,
			Timeout:  a.cfg.Scheduler.JobTimeout,
		}),
		Hooks: NewHooks(a.log, notifier),
	})

	if err := Bootstrap(ctx, store, engine, bootstrapRetry(), a.log); err != nil {
		return err
	}
	engine.Start()

	srv := httpapi.New(engine, store, httpapi.WithLogger(a.log)).Server(a.cfg.HTTP.Addr)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		a.log.Info("http server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	if tgBot != nil {
		rate := middleware.NewRateLimiter(time.Second, nil)
		acl := middleware.NewACL(a.cfg.Telegram.AllowedIDs)
		cmds := handlers.New(engine, a.log)
		disp = telegram.NewDispatcher(tgBot, 4, middleware.Chain(cmds.Handle, rate.Middleware, acl.Middleware), a.log)

		g.Go(func() error {
			a.log.Info("telegram bot polling")
			tgBot.Start(gctx)
			disp.Close()
			return nil
		})
	}
	g.Go(func() error {
		<-gctx.Done()
		return a.shutdown(srv, engine)
	})

	return g.Wait()
}

func (a *App) shutdown(srv *http.Server, engine *scheduler.Engine) error {
	a.log.Info("shutting down", "timeout", a.cfg.Scheduler.ShutdownTimeout)
	ctx, cancel := context.WithTimeout(context.Background(), a.cfg.Scheduler.ShutdownTimeout)
	defer cancel()

	return errors.Join(
		srv.Shutdown(ctx),
		engine.Stop(ctx),
	)
}

func (a *App) openStore(ctx context.Context) (jobstore.Store, error) {
	switch a.cfg.Store.Driver {
	case config.DriverPostgres:
		dsn := a.cfg.PostgresDSN()
		a.log.Info("connecting to postgres", "dsn", pg.RedactDSN(dsn))
		if err := pg.WaitForDB(ctx, dsn, bootstrapRetry()); err != nil {
			return nil, err
		}
		return pgstore.Open(ctx, dsn, pg.DefaultPoolOptions())
	default:
		a.log.Info("opening sqlite", "path", a.cfg.Store.SQLitePath)
		return sqlitestore.Open(ctx, a.cfg.Store.SQLitePath, sqlite.DefaultDBOptions())
	}
}

func bootstrapRetry() retry.Config {
	cfg := retry.DefaultConfig()
	cfg.MaxAttempts = 5
	cfg.InitialDelay = 500 * time.Millisecond
	cfg.MaxDelay = 10 * time.Second
	return cfg
}
