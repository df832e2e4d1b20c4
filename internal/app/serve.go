package app

import (
	"context"
	"errors"
	"os/signal"
	"syscall"

	"order-sync-alerts/internal/report"
)

// Serve runs the read-only report server until interrupted.
func (a *App) Serve(ctx context.Context) error {
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	srv := report.NewServer(a.Config.Report.ListenAddr, store, a.Logger)

	err = srv.Run(ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
