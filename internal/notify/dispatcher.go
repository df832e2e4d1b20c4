package notify

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"order-sync-alerts/internal/storage"
)

const digestHeader = "Orders with missed delivery deadlines\n" +
	"(oldest deadline first):\n\n" +
	"order no: delivery date\n"

// Dispatcher fans a missed-deadline digest out to the subscribed chats.
// It lives for the whole process, carrying the remembered subscriber set
// and the update offset across ticks, and is rebound to the tick's store
// before each notification round.
type Dispatcher struct {
	channel Channel
	orders  storage.OrderRepository
	subs    storage.SubscriberRepository

	active  map[int64]struct{}
	removed map[int64]struct{}
	offset  int64
	seeded  bool

	now    func() time.Time
	logger zerolog.Logger
}

// NewDispatcher constructs a dispatcher over the given channel.
func NewDispatcher(channel Channel, logger zerolog.Logger) *Dispatcher {
	return &Dispatcher{
		channel: channel,
		active:  make(map[int64]struct{}),
		removed: make(map[int64]struct{}),
		now:     time.Now,
		logger:  logger.With().Str("component", "dispatcher").Logger(),
	}
}

// WithClock overrides the notification timestamp source, for tests.
func (d *Dispatcher) WithClock(now func() time.Time) *Dispatcher {
	d.now = now
	return d
}

// Bind points the dispatcher at the current tick's repositories.
func (d *Dispatcher) Bind(orders storage.OrderRepository, subs storage.SubscriberRepository) {
	d.orders = orders
	d.subs = subs
}

// Notify reconciles the subscriber set, sends the digest to every active
// chat, persists the reconciled set, and stamps every listed order as
// notified. An empty missed list is a complete no-op: no poll, no send,
// no stamp. Per-recipient send failures are logged and skipped; the stamp
// still covers the whole batch.
func (d *Dispatcher) Notify(ctx context.Context, missed []storage.MissedOrder) error {
	if len(missed) == 0 {
		return nil
	}

	if err := d.seed(ctx); err != nil {
		return err
	}
	if err := d.reconcile(ctx); err != nil {
		return err
	}

	text := digestHeader + formatDigest(missed)

	sent := 0
	for _, chatID := range sortedIDs(d.active) {
		if err := d.channel.Send(ctx, chatID, text); err != nil {
			d.logger.Warn().Err(err).Int64("chat_id", chatID).Msg("digest send failed")
			continue
		}
		sent++
	}

	if err := d.persist(ctx); err != nil {
		return err
	}

	orderNos := make([]int64, len(missed))
	for i, m := range missed {
		orderNos[i] = m.OrderNo
	}
	if err := d.orders.StampNotified(ctx, orderNos, d.now()); err != nil {
		return err
	}

	d.logger.Info().
		Int("orders", len(missed)).
		Int("recipients", sent).
		Msg("digest dispatched")
	return nil
}

// seed loads the persisted subscriber set once per process.
func (d *Dispatcher) seed(ctx context.Context) error {
	if d.seeded {
		return nil
	}
	ids, err := d.subs.ListSubscribers(ctx)
	if err != nil {
		return err
	}
	for _, id := range ids {
		d.active[id] = struct{}{}
	}
	d.seeded = true
	return nil
}

// reconcile folds the platform's membership changes since the last poll
// into the remembered sets: active = (active + new senders) - removals.
func (d *Dispatcher) reconcile(ctx context.Context) error {
	events, err := d.channel.PollEvents(ctx, d.offset)
	if err != nil {
		return err
	}

	for _, ev := range events {
		if ev.UpdateID >= d.offset {
			d.offset = ev.UpdateID + 1
		}
		switch ev.Kind {
		case EventSubscribed:
			d.active[ev.ChatID] = struct{}{}
		case EventUnsubscribed:
			d.removed[ev.ChatID] = struct{}{}
		}
	}

	for id := range d.removed {
		delete(d.active, id)
	}
	return nil
}

// persist writes the reconciled sets through and clears the removals that
// are now durable.
func (d *Dispatcher) persist(ctx context.Context) error {
	if err := d.subs.AddSubscribers(ctx, sortedIDs(d.active)); err != nil {
		return err
	}
	if err := d.subs.RemoveSubscribers(ctx, sortedIDs(d.removed)); err != nil {
		return err
	}
	d.removed = make(map[int64]struct{})
	return nil
}

func formatDigest(missed []storage.MissedOrder) string {
	lines := make([]string, len(missed))
	for i, m := range missed {
		lines[i] = fmt.Sprintf("%10d: %s", m.OrderNo, m.DelivDate.Format("2006-01-02"))
	}
	return strings.Join(lines, "\n")
}

func sortedIDs(set map[int64]struct{}) []int64 {
	ids := make([]int64, 0, len(set))
	for id := range set {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}
