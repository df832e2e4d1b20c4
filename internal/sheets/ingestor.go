package sheets

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"order-sync-alerts/internal/fault"
	"order-sync-alerts/internal/rates"
	"order-sync-alerts/internal/storage"
)

const delivDateLayout = "02.01.2006"

// Ingestor converts the raw sheet columns into typed orders and enriches
// them with the rub cost derived from the historical rate cache.
type Ingestor struct {
	source RawSource
	quotes *rates.Cache
	now    func() time.Time
	logger zerolog.Logger
}

// NewIngestor constructs an ingestor over the given source and cache.
func NewIngestor(source RawSource, quotes *rates.Cache, logger zerolog.Logger) *Ingestor {
	return &Ingestor{
		source: source,
		quotes: quotes,
		now:    time.Now,
		logger: logger.With().Str("component", "ingestor").Logger(),
	}
}

// WithClock overrides the conversion-time reference, for tests.
func (ing *Ingestor) WithClock(now func() time.Time) *Ingestor {
	ing.now = now
	return ing
}

// Fetch pulls the four source columns (section no, order no, cost usd,
// delivery date), validates their lengths, and returns enriched orders.
// An empty sheet yields an empty batch; ragged or malformed columns are
// integrity errors that abandon the whole tick.
func (ing *Ingestor) Fetch(ctx context.Context) ([]storage.Order, error) {
	columns, err := ing.source.FetchColumns(ctx)
	if err != nil {
		return nil, err
	}
	if len(columns) == 0 {
		return nil, nil
	}
	if len(columns) != 4 {
		return nil, fault.Integrity(fmt.Errorf("expected 4 columns, got %d", len(columns)))
	}

	secNos, orderNos, costs, delivDates := columns[0], columns[1], columns[2], columns[3]
	if len(secNos) != len(orderNos) || len(orderNos) != len(costs) || len(costs) != len(delivDates) {
		return nil, fault.Integrity(fmt.Errorf(
			"ragged columns: sec_no=%d order_no=%d cost_usd=%d deliv_date=%d",
			len(secNos), len(orderNos), len(costs), len(delivDates)))
	}

	orders := make([]storage.Order, 0, len(secNos))
	for i := range secNos {
		order, err := ing.convertRow(ctx, i, secNos[i], orderNos[i], costs[i], delivDates[i])
		if err != nil {
			return nil, err
		}
		orders = append(orders, order)
	}

	ing.logger.Debug().Int("rows", len(orders)).Msg("ingested sheet rows")
	return orders, nil
}

func (ing *Ingestor) convertRow(ctx context.Context, row int, rawSec, rawOrder, rawCost, rawDate string) (storage.Order, error) {
	secNo, err := strconv.ParseInt(strings.TrimSpace(rawSec), 10, 64)
	if err != nil {
		return storage.Order{}, fault.Integrity(fmt.Errorf("row %d: parse sec_no %q: %w", row, rawSec, err))
	}

	orderNo, err := strconv.ParseInt(strings.TrimSpace(rawOrder), 10, 64)
	if err != nil {
		return storage.Order{}, fault.Integrity(fmt.Errorf("row %d: parse order_no %q: %w", row, rawOrder, err))
	}

	order := storage.Order{SecNo: secNo, OrderNo: orderNo}

	if cost := strings.TrimSpace(rawCost); cost != "" {
		value, err := decimal.NewFromString(strings.ReplaceAll(cost, ",", "."))
		if err != nil {
			return storage.Order{}, fault.Integrity(fmt.Errorf("row %d: parse cost_usd %q: %w", row, rawCost, err))
		}
		order.CostUSD = &value
	}

	if raw := strings.TrimSpace(rawDate); raw != "" {
		date, err := time.Parse(delivDateLayout, raw)
		if err != nil {
			return storage.Order{}, fault.Integrity(fmt.Errorf("row %d: parse deliv_date %q: %w", row, rawDate, err))
		}
		day := rates.Day(date)
		order.DelivDate = &day
	}

	rub, err := ing.convertCost(ctx, order.CostUSD, order.DelivDate)
	if err != nil {
		return storage.Order{}, err
	}
	order.CostRUB = rub

	return order, nil
}

// convertCost derives the rub cost. Future delivery dates have no
// historical rate under any feed semantics, so they convert to absent
// without consulting the cache.
func (ing *Ingestor) convertCost(ctx context.Context, costUSD *decimal.Decimal, delivDate *time.Time) (*decimal.Decimal, error) {
	if costUSD == nil || delivDate == nil {
		return nil, nil
	}
	if delivDate.After(rates.Day(ing.now())) {
		return nil, nil
	}

	rate, ok, err := ing.quotes.Get(ctx, *delivDate)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}

	rub := costUSD.Mul(rate)
	return &rub, nil
}
