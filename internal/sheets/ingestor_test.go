package sheets

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"order-sync-alerts/internal/fault"
	"order-sync-alerts/internal/rates"
)

type staticColumns struct {
	columns [][]string
}

func (s *staticColumns) FetchColumns(ctx context.Context) ([][]string, error) {
	return s.columns, nil
}

type staticRates struct {
	quotes []rates.DailyRate
}

func (s *staticRates) FetchYear(ctx context.Context, year int) ([]rates.DailyRate, error) {
	return s.quotes, nil
}

func fixedClock(y int, m time.Month, d int) func() time.Time {
	return func() time.Time { return time.Date(y, m, d, 12, 0, 0, 0, time.UTC) }
}

func newTestIngestor(columns [][]string, quotes []rates.DailyRate, now func() time.Time) *Ingestor {
	cache := rates.NewCache(&staticRates{quotes: quotes}, zerolog.Nop())
	return NewIngestor(&staticColumns{columns: columns}, cache, zerolog.Nop()).WithClock(now)
}

func TestFetchEnrichesPastDelivery(t *testing.T) {
	ing := newTestIngestor(
		[][]string{{"1"}, {"100"}, {"10.00"}, {"01.01.2024"}},
		[]rates.DailyRate{{
			Date: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
			Rate: decimal.RequireFromString("90"),
		}},
		fixedClock(2024, 1, 5),
	)

	orders, err := ing.Fetch(context.Background())
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if len(orders) != 1 {
		t.Fatalf("expected 1 order, got %d", len(orders))
	}

	o := orders[0]
	if o.SecNo != 1 || o.OrderNo != 100 {
		t.Fatalf("unexpected identifiers: %+v", o)
	}
	if o.CostRUB == nil || !o.CostRUB.Equal(decimal.RequireFromString("900")) {
		t.Fatalf("expected cost_rub 900, got %v", o.CostRUB)
	}
	if o.DelivDate == nil || !o.DelivDate.Equal(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected deliv_date: %v", o.DelivDate)
	}
}

func TestFetchFutureDeliveryHasNoConversion(t *testing.T) {
	// Delivery tomorrow: absent conversion regardless of cache contents.
	ing := newTestIngestor(
		[][]string{{"1"}, {"100"}, {"10.00"}, {"06.01.2024"}},
		[]rates.DailyRate{{
			Date: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
			Rate: decimal.RequireFromString("90"),
		}},
		fixedClock(2024, 1, 5),
	)

	orders, err := ing.Fetch(context.Background())
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if orders[0].CostRUB != nil {
		t.Fatalf("expected absent cost_rub for future delivery, got %s", orders[0].CostRUB)
	}
	if orders[0].CostUSD == nil {
		t.Fatal("cost_usd must survive unconverted rows")
	}
}

func TestFetchAbsentRateIsNotAnError(t *testing.T) {
	ing := newTestIngestor(
		[][]string{{"1"}, {"100"}, {"10.00"}, {"01.01.2024"}},
		nil, // feed has no history at all
		fixedClock(2024, 1, 5),
	)

	orders, err := ing.Fetch(context.Background())
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if orders[0].CostRUB != nil {
		t.Fatal("expected absent cost_rub when no rate resolves")
	}
}

func TestFetchRaggedColumnsFailFast(t *testing.T) {
	ing := newTestIngestor(
		[][]string{{"1", "2"}, {"100"}, {"10.00"}, {"01.01.2024"}},
		nil,
		fixedClock(2024, 1, 5),
	)

	_, err := ing.Fetch(context.Background())
	if err == nil {
		t.Fatal("expected integrity error on ragged columns")
	}
	if fault.KindOf(err) != fault.KindIntegrity {
		t.Fatalf("expected data_integrity category, got %s", fault.KindOf(err))
	}
}

func TestFetchEmptyCellsBecomeNulls(t *testing.T) {
	ing := newTestIngestor(
		[][]string{{"3"}, {"200"}, {""}, {""}},
		nil,
		fixedClock(2024, 1, 5),
	)

	orders, err := ing.Fetch(context.Background())
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	o := orders[0]
	if o.CostUSD != nil || o.CostRUB != nil || o.DelivDate != nil {
		t.Fatalf("expected empty cells to ingest as nulls: %+v", o)
	}
}

func TestFetchEmptySheet(t *testing.T) {
	ing := newTestIngestor(nil, nil, fixedClock(2024, 1, 5))

	orders, err := ing.Fetch(context.Background())
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if len(orders) != 0 {
		t.Fatalf("expected no orders from an empty sheet, got %d", len(orders))
	}
}
