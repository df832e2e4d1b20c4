package storage

import (
	"time"

	"github.com/shopspring/decimal"
)

// Order is one synchronised order row, keyed by its order number.
// Cost and delivery date columns mirror the source sheet and may be
// absent; CostRUB is derived during ingestion and absent whenever no
// historical rate resolves for the delivery date.
type Order struct {
	OrderNo   int64
	SecNo     int64
	CostUSD   *decimal.Decimal
	CostRUB   *decimal.Decimal
	DelivDate *time.Time
}

// MissedOrder is an order whose delivery deadline has passed and which is
// currently eligible for (re-)notification.
type MissedOrder struct {
	OrderNo   int64
	DelivDate time.Time
}

// OrderTotals aggregates stored costs for the report surfaces. Sums over
// an empty table come back as zero.
type OrderTotals struct {
	TotalUSD decimal.Decimal
	TotalRUB decimal.Decimal
}
