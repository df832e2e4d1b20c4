package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/rs/zerolog"

	"order-sync-alerts/internal/config"
	"order-sync-alerts/internal/notify"
	"order-sync-alerts/internal/rates"
	"order-sync-alerts/internal/scheduler"
	"order-sync-alerts/internal/service"
	"order-sync-alerts/internal/sheets"
	"order-sync-alerts/internal/storage"
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

func (a *App) openStore(ctx context.Context) (*storage.Store, func(), error) {
	pool, err := storage.NewPool(ctx, a.Config.Database)
	if err != nil {
		return nil, nil, err
	}

	store := storage.NewStore(pool)
	return store, store.Close, nil
}

func (a *App) newRateCache() *rates.Cache {
	client := rates.NewClient(rates.ClientOptions{
		BaseURL:    a.Config.Rates.BaseURL,
		CurrencyID: a.Config.Rates.CurrencyID,
		Timeout:    a.Config.Rates.RequestTimeout,
		UserAgent:  a.Config.Rates.UserAgent,
	}, a.Logger)
	return rates.NewCache(client, a.Logger)
}

func (a *App) newSheetsClient() (*sheets.Client, error) {
	key, err := readCredential(a.Config.Sheets.APIKeyFile)
	if err != nil {
		return nil, fmt.Errorf("load sheets api key: %w", err)
	}

	return sheets.NewClient(sheets.ClientOptions{
		BaseURL:       a.Config.Sheets.BaseURL,
		SpreadsheetID: a.Config.Sheets.SpreadsheetID,
		Range:         a.Config.Sheets.Range,
		APIKey:        key,
		Timeout:       a.Config.Sheets.RequestTimeout,
		UserAgent:     a.Config.Rates.UserAgent,
	}, a.Logger), nil
}

func (a *App) newChannel() (*notify.Telegram, error) {
	token := a.Config.Telegram.BotToken
	if token == "" {
		var err error
		token, err = readCredential(a.Config.Telegram.TokenFile)
		if err != nil {
			return nil, fmt.Errorf("load telegram token: %w", err)
		}
	}

	return notify.NewTelegram(token, a.Config.Telegram.APIBase, a.Config.Telegram.RequestTimeout, a.Logger), nil
}

func readCredential(path string) (string, error) {
	if path == "" {
		return "", errors.New("credential file not configured")
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(raw)), nil
}

// Run executes the long-running synchronisation service.
func (a *App) Run(ctx context.Context) error {
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	pool, err := storage.NewPool(ctx, a.Config.Database)
	if err != nil {
		return err
	}
	defer pool.Close()

	sheetsClient, err := a.newSheetsClient()
	if err != nil {
		return err
	}

	channel, err := a.newChannel()
	if err != nil {
		return err
	}

	loop := scheduler.New(scheduler.Options{
		Interval:     a.Config.Scheduler.Interval,
		StartupDelay: a.Config.Scheduler.StartupDelay,
	}, a.Logger)

	dispatcher := notify.NewDispatcher(channel, a.Logger)

	// Each tick gets a fresh store handle over the shared pool.
	stores := func() (storage.OrderRepository, storage.SubscriberRepository) {
		st := storage.NewStore(pool)
		return st, st
	}

	svc := service.New(
		loop,
		a.newRateCache(),
		sheetsClient,
		stores,
		dispatcher,
		a.Config.Sync.MinNotifyInterval,
		a.Logger,
	)

	a.Logger.Info().
		Dur("interval", a.Config.Scheduler.Interval).
		Dur("min_notify_interval", a.Config.Sync.MinNotifyInterval).
		Msg("starting sync service")

	err = svc.Run(ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		a.Logger.Error().Err(err).Msg("sync service terminated with error")
		return err
	}

	a.Logger.Info().Msg("sync service stopped")
	return nil
}
