package rates

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// DailyRate is one published exchange-rate observation.
type DailyRate struct {
	Date time.Time
	Rate decimal.Decimal
}

// Source retrieves all daily rates covering a calendar year, including a
// one-month lookback into the prior year so that floor lookups across the
// year boundary resolve over holidays.
type Source interface {
	FetchYear(ctx context.Context, year int) ([]DailyRate, error)
}

// Day truncates t to its calendar date at midnight UTC. All cache keys
// and delivery-date comparisons go through this normalisation.
func Day(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
