package service

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"order-sync-alerts/internal/fault"
	"order-sync-alerts/internal/notify"
	"order-sync-alerts/internal/rates"
	"order-sync-alerts/internal/scheduler"
	"order-sync-alerts/internal/sheets"
	"order-sync-alerts/internal/storage"
)

// StoreFactory yields the repositories for one tick. The sync loop asks
// for fresh handles each tick and never shares transaction state between
// store calls.
type StoreFactory func() (storage.OrderRepository, storage.SubscriberRepository)

// Service orchestrates ingestion, persistence, deadline detection, and
// notification. The rate cache is the only cross-tick in-memory state it
// owns; the ingestor and stores are rebuilt every tick.
type Service struct {
	loop        *scheduler.Loop
	quotes      *rates.Cache
	source      sheets.RawSource
	stores      StoreFactory
	dispatcher  *notify.Dispatcher
	minInterval time.Duration
	now         func() time.Time
	logger      zerolog.Logger
}

// New constructs the sync service.
func New(loop *scheduler.Loop, quotes *rates.Cache, source sheets.RawSource, stores StoreFactory, dispatcher *notify.Dispatcher, minInterval time.Duration, logger zerolog.Logger) *Service {
	return &Service{
		loop:        loop,
		quotes:      quotes,
		source:      source,
		stores:      stores,
		dispatcher:  dispatcher,
		minInterval: minInterval,
		now:         time.Now,
		logger:      logger.With().Str("component", "service").Logger(),
	}
}

// WithClock overrides the wall clock, for tests.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// Run begins the polling loop.
func (s *Service) Run(ctx context.Context) error {
	if s.loop == nil {
		return fmt.Errorf("scheduler not configured")
	}
	return s.loop.Run(ctx, s.RunTick)
}

// RunTick executes one synchronisation pass: ingest the sheet, upsert the
// batch, query missed deadlines, and dispatch the digest. Any collaborator
// failure abandons the rest of the tick; it is logged with its fault
// category and surfaced to the loop, which sleeps and retries.
func (s *Service) RunTick(ctx context.Context) error {
	err := s.tick(ctx)
	if err != nil {
		s.logger.Error().
			Err(err).
			Str("category", fault.KindOf(err).String()).
			Msg("tick abandoned")
	}
	return err
}

func (s *Service) tick(ctx context.Context) error {
	orderStore, subscriberStore := s.stores()

	ingestor := sheets.NewIngestor(s.source, s.quotes, s.logger).WithClock(s.now)
	orders, err := ingestor.Fetch(ctx)
	if err != nil {
		return fmt.Errorf("ingest orders: %w", err)
	}

	if err := orderStore.UpsertOrders(ctx, orders); err != nil {
		return fmt.Errorf("persist orders: %w", err)
	}

	missed, err := orderStore.ListMissedDeadlines(ctx, s.now(), s.minInterval)
	if err != nil {
		return fmt.Errorf("query missed deadlines: %w", err)
	}

	s.dispatcher.Bind(orderStore, subscriberStore)
	if err := s.dispatcher.Notify(ctx, missed); err != nil {
		return fmt.Errorf("dispatch digest: %w", err)
	}

	s.logger.Info().
		Int("ingested", len(orders)).
		Int("missed", len(missed)).
		Msg("sync tick complete")
	return nil
}
