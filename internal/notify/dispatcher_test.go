package notify

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"order-sync-alerts/internal/storage"
)

type fakeChannel struct {
	events    []SubscriptionEvent
	polls     []int64
	sent      map[int64][]string
	failChats map[int64]bool
}

func newFakeChannel() *fakeChannel {
	return &fakeChannel{sent: make(map[int64][]string), failChats: make(map[int64]bool)}
}

func (c *fakeChannel) Send(ctx context.Context, chatID int64, text string) error {
	if c.failChats[chatID] {
		return errors.New("send failed")
	}
	c.sent[chatID] = append(c.sent[chatID], text)
	return nil
}

func (c *fakeChannel) PollEvents(ctx context.Context, offset int64) ([]SubscriptionEvent, error) {
	c.polls = append(c.polls, offset)
	events := c.events
	c.events = nil
	return events, nil
}

type fakeSubs struct {
	persisted map[int64]struct{}
	addCalls  [][]int64
	delCalls  [][]int64
}

func newFakeSubs(ids ...int64) *fakeSubs {
	s := &fakeSubs{persisted: make(map[int64]struct{})}
	for _, id := range ids {
		s.persisted[id] = struct{}{}
	}
	return s
}

func (s *fakeSubs) AddSubscribers(ctx context.Context, chatIDs []int64) error {
	s.addCalls = append(s.addCalls, chatIDs)
	for _, id := range chatIDs {
		s.persisted[id] = struct{}{}
	}
	return nil
}

func (s *fakeSubs) RemoveSubscribers(ctx context.Context, chatIDs []int64) error {
	s.delCalls = append(s.delCalls, chatIDs)
	for _, id := range chatIDs {
		delete(s.persisted, id)
	}
	return nil
}

func (s *fakeSubs) ListSubscribers(ctx context.Context) ([]int64, error) {
	ids := make([]int64, 0, len(s.persisted))
	for id := range s.persisted {
		ids = append(ids, id)
	}
	return ids, nil
}

type fakeOrders struct {
	stamped   []int64
	stampTime time.Time
}

func (o *fakeOrders) UpsertOrders(ctx context.Context, orders []storage.Order) error { return nil }

func (o *fakeOrders) ListMissedDeadlines(ctx context.Context, now time.Time, minInterval time.Duration) ([]storage.MissedOrder, error) {
	return nil, nil
}

func (o *fakeOrders) StampNotified(ctx context.Context, orderNos []int64, notifTime time.Time) error {
	o.stamped = append(o.stamped, orderNos...)
	o.stampTime = notifTime
	return nil
}

func missedBatch() []storage.MissedOrder {
	return []storage.MissedOrder{
		{OrderNo: 100, DelivDate: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)},
		{OrderNo: 250, DelivDate: time.Date(2024, 1, 3, 0, 0, 0, 0, time.UTC)},
	}
}

func TestNotifyEmptyBatchIsNoOp(t *testing.T) {
	channel := newFakeChannel()
	orders := &fakeOrders{}
	d := NewDispatcher(channel, zerolog.Nop())
	d.Bind(orders, newFakeSubs())

	if err := d.Notify(context.Background(), nil); err != nil {
		t.Fatalf("notify: %v", err)
	}
	if len(channel.polls) != 0 || len(channel.sent) != 0 || len(orders.stamped) != 0 {
		t.Fatal("empty batch must trigger no poll, send, or stamp")
	}
}

func TestNotifySendsDigestToReconciledSet(t *testing.T) {
	channel := newFakeChannel()
	channel.events = []SubscriptionEvent{
		{UpdateID: 1, ChatID: 20, Kind: EventSubscribed},
		{UpdateID: 2, ChatID: 10, Kind: EventUnsubscribed},
	}
	subs := newFakeSubs(10)
	orders := &fakeOrders{}

	now := time.Date(2024, 1, 5, 10, 0, 0, 0, time.UTC)
	d := NewDispatcher(channel, zerolog.Nop()).WithClock(func() time.Time { return now })
	d.Bind(orders, subs)

	if err := d.Notify(context.Background(), missedBatch()); err != nil {
		t.Fatalf("notify: %v", err)
	}

	// Chat 10 unsubscribed, chat 20 joined: only 20 gets the digest.
	if len(channel.sent[10]) != 0 {
		t.Fatal("unsubscribed chat must not receive the digest")
	}
	texts := channel.sent[20]
	if len(texts) != 1 {
		t.Fatalf("expected one digest for chat 20, got %d", len(texts))
	}

	text := texts[0]
	if !strings.HasPrefix(text, digestHeader) {
		t.Fatalf("digest missing header: %q", text)
	}
	wantLines := "       100: 2024-01-01\n       250: 2024-01-03"
	if !strings.HasSuffix(text, wantLines) {
		t.Fatalf("digest body mismatch:\n%q\nwant suffix:\n%q", text, wantLines)
	}

	// Reconciliation persisted and stamped after the send.
	if _, ok := subs.persisted[10]; ok {
		t.Fatal("unsubscribed chat must be removed from the durable set")
	}
	if _, ok := subs.persisted[20]; !ok {
		t.Fatal("new subscriber must be persisted")
	}
	if len(orders.stamped) != 2 || orders.stamped[0] != 100 || orders.stamped[1] != 250 {
		t.Fatalf("unexpected stamped orders: %v", orders.stamped)
	}
	if !orders.stampTime.Equal(now) {
		t.Fatalf("stamp time mismatch: %v", orders.stampTime)
	}
}

func TestNotifyAdvancesPollOffset(t *testing.T) {
	channel := newFakeChannel()
	channel.events = []SubscriptionEvent{{UpdateID: 41, ChatID: 20, Kind: EventSubscribed}}
	d := NewDispatcher(channel, zerolog.Nop())
	d.Bind(&fakeOrders{}, newFakeSubs())

	if err := d.Notify(context.Background(), missedBatch()); err != nil {
		t.Fatalf("first notify: %v", err)
	}
	if err := d.Notify(context.Background(), missedBatch()); err != nil {
		t.Fatalf("second notify: %v", err)
	}

	if len(channel.polls) != 2 || channel.polls[0] != 0 || channel.polls[1] != 42 {
		t.Fatalf("expected polls at offsets [0 42], got %v", channel.polls)
	}
}

func TestNotifyPartialSendStillStamps(t *testing.T) {
	channel := newFakeChannel()
	channel.failChats[20] = true
	subs := newFakeSubs(20, 30)
	orders := &fakeOrders{}

	d := NewDispatcher(channel, zerolog.Nop())
	d.Bind(orders, subs)

	if err := d.Notify(context.Background(), missedBatch()); err != nil {
		t.Fatalf("notify: %v", err)
	}

	if len(channel.sent[30]) != 1 {
		t.Fatal("one failed recipient must not block the others")
	}
	if len(orders.stamped) != 2 {
		t.Fatal("the whole batch must be stamped despite a failed send")
	}
}
