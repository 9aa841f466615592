package app

import (
	"context"
	"errors"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"stock-target-alerts/internal/alerting"
	"stock-target-alerts/internal/config"
	"stock-target-alerts/internal/pricing"
	"stock-target-alerts/internal/scheduler"
	"stock-target-alerts/internal/service"
	"stock-target-alerts/internal/storage"
)

// App aggregates configuration and shared dependencies for the CLI commands.
type App struct {
	Config *config.Config
	Logger zerolog.Logger
}

// NewApp constructs a new application handle.
func NewApp(cfg *config.Config, logger zerolog.Logger) *App {
	return &App{Config: cfg, Logger: logger.With().Str("component", "app").Logger()}
}

func (a *App) newPriceSource() pricing.Source {
	return pricing.NewYahoo(pricing.YahooOptions{
		BaseURL:     a.Config.Pricing.BaseURL,
		Timeout:     a.Config.Pricing.RequestTimeout,
		UserAgent:   a.Config.Pricing.UserAgent,
		Concurrency: a.Config.Pricing.Concurrency,
		RatePerSec:  a.Config.Pricing.RatePerSec,
		RateBurst:   a.Config.Pricing.RateBurst,
	}, a.Logger)
}

func (a *App) newChannels() []alerting.Channel {
	channels := make([]alerting.Channel, 0, 2)
	if a.Config.Alerting.Email.Enabled {
		email := a.Config.Alerting.Email
		channels = append(channels, alerting.NewEmailChannel(alerting.EmailOptions{
			Host:      email.SMTPHost,
			Port:      email.SMTPPort,
			Username:  email.Username,
			Password:  email.Password,
			From:      email.From,
			Recipient: email.Recipient,
		}, a.Logger))
	}
	if a.Config.Alerting.Telegram.Enabled {
		tg := a.Config.Alerting.Telegram
		channels = append(channels, alerting.NewTelegramChannel(tg.BotToken, tg.ChatID, tg.APIBase, 10*time.Second, a.Logger))
	}
	return channels
}

func (a *App) newDispatcher(recorder alerting.StatusRecorder) (*alerting.Dispatcher, error) {
	if !a.Config.Alerting.Enabled {
		return nil, errors.New("alerting is disabled; the monitor has nothing to do")
	}
	channels := a.newChannels()
	if len(channels) == 0 {
		return nil, errors.New("no notification channels configured; enable at least one of alerting.email / alerting.telegram")
	}
	return alerting.NewDispatcher(channels, recorder, alerting.DispatcherOptions{
		RetryCount:   a.Config.Alerting.RetryCount,
		RetryBackoff: a.Config.Alerting.RetryBackoff,
	}, a.Logger), nil
}

func (a *App) openStore(ctx context.Context) (*storage.Store, func(), error) {
	if a.Config.Database.DSN == "" {
		return nil, nil, nil
	}

	pool, err := storage.NewPool(ctx, a.Config.Database)
	if err != nil {
		return nil, nil, err
	}

	store := storage.NewStore(pool)
	closer := func() {
		store.Close()
	}
	return store, closer, nil
}

func (a *App) newScheduler() (*scheduler.Scheduler, error) {
	days, err := a.Config.ActiveWeekdays()
	if err != nil {
		return nil, err
	}
	loc, err := a.Config.SchedulerLocation()
	if err != nil {
		return nil, err
	}

	return scheduler.New(scheduler.Options{
		Interval: a.Config.Scheduler.CheckInterval,
		Window: scheduler.Window{
			StartHour: a.Config.Scheduler.ActiveHours.Start,
			EndHour:   a.Config.Scheduler.ActiveHours.End,
			Days:      days,
			Location:  loc,
		},
		AlignToStart: a.Config.Scheduler.AlignToInterval,
		StartupDelay: a.Config.Scheduler.StartupDelay,
	}, a.Logger), nil
}

// newService wires the full monitoring stack. Startup failures (no channels,
// repository unreachable) surface here, before the loop begins.
func (a *App) newService(ctx context.Context, sched *scheduler.Scheduler) (*service.Service, func(), error) {
	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return nil, nil, err
	}
	if store == nil {
		return nil, nil, errors.New("database.dsn is required: the watchlist lives in the database")
	}

	dispatcher, err := a.newDispatcher(store)
	if err != nil {
		closeStore()
		return nil, nil, err
	}

	svc := service.New(store, a.newPriceSource(), store, store, dispatcher, sched, a.Config.Scheduler.AdvisoryLockKey, a.Logger)
	return svc, closeStore, nil
}

// Run executes the long-running monitoring daemon.
func (a *App) Run(ctx context.Context) error {
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	sched, err := a.newScheduler()
	if err != nil {
		return err
	}

	svc, closeStore, err := a.newService(ctx, sched)
	if err != nil {
		return err
	}
	defer closeStore()

	a.Logger.Info().
		Dur("interval", a.Config.Scheduler.CheckInterval).
		Int("window_start", a.Config.Scheduler.ActiveHours.Start).
		Int("window_end", a.Config.Scheduler.ActiveHours.End).
		Msg("starting price monitor")

	err = svc.Run(ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		a.Logger.Error().Err(err).Msg("monitor terminated with error")
		return err
	}

	a.Logger.Info().Msg("price monitor stopped")
	return nil
}

// CheckOnce executes exactly one monitoring cycle immediately.
func (a *App) CheckOnce(ctx context.Context) error {
	svc, closeStore, err := a.newService(ctx, nil)
	if err != nil {
		return err
	}
	defer closeStore()

	cycle := time.Now().UTC().Truncate(a.Config.Scheduler.CheckInterval)
	return svc.ProcessCycle(ctx, cycle)
}

// ShowOptions configure the show command.
type ShowOptions struct {
	Limit int
}

// ExportOptions hold parameters for exporting alert history.
type ExportOptions struct {
	From      *time.Time
	To        *time.Time
	PNGPath   string
	CSVPath   string
	MaxPoints int
}
