package app

import (
	"context"
	"time"

	"order-sync-alerts/internal/notify"
	"order-sync-alerts/internal/storage"
)

// SendDigest pushes a synthetic one-order digest through the dispatcher
// to verify bot wiring end to end. It reconciles subscribers and stamps
// the order exactly like a real tick would.
func (a *App) SendDigest(ctx context.Context, orderNo int64, delivDate time.Time) error {
	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	channel, err := a.newChannel()
	if err != nil {
		return err
	}

	dispatcher := notify.NewDispatcher(channel, a.Logger)
	dispatcher.Bind(store, store)

	missed := []storage.MissedOrder{{OrderNo: orderNo, DelivDate: delivDate}}
	return dispatcher.Notify(ctx, missed)
}
