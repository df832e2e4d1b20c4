package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"order-sync-alerts/internal/fault"
)

// ErrNotConfigured indicates the storage pool was not initialised.
var ErrNotConfigured = errors.New("storage: pool not configured")

const (
	upsertOrdersSQL = `INSERT INTO orders (sec_no, order_no, cost_usd, cost_rub, deliv_date)
    SELECT * FROM unnest(
        $1::bigint[],
        $2::bigint[],
        $3::numeric[],
        $4::numeric[],
        $5::date[])
    ON CONFLICT (order_no) DO UPDATE SET
        sec_no     = EXCLUDED.sec_no,
        cost_usd   = EXCLUDED.cost_usd,
        cost_rub   = EXCLUDED.cost_rub,
        deliv_date = EXCLUDED.deliv_date;`

	listMissedDeadlinesSQL = `SELECT
        orders.order_no,
        orders.deliv_date
    FROM orders
    LEFT JOIN missed_deadlines
        ON orders.order_no = missed_deadlines.order_no
    WHERE orders.deliv_date IS NOT NULL
      AND orders.deliv_date <= $1::date - interval '1 day'
      AND (missed_deadlines.notif_date IS NULL
          OR missed_deadlines.notif_date <= $2)
    ORDER BY orders.deliv_date ASC;`

	stampNotifiedSQL = `INSERT INTO missed_deadlines (order_no, notif_date)
    SELECT unnest($1::bigint[]), $2::timestamptz
    ON CONFLICT (order_no) DO UPDATE SET
        notif_date = EXCLUDED.notif_date;`

	addSubscribersSQL = `INSERT INTO tg_information (user_chat_id)
    SELECT unnest($1::bigint[])
    ON CONFLICT (user_chat_id) DO NOTHING;`

	removeSubscribersSQL = `DELETE FROM tg_information
    WHERE user_chat_id = ANY($1::bigint[]);`

	listSubscribersSQL = `SELECT user_chat_id FROM tg_information;`

	listOrdersSQL = `SELECT order_no, sec_no, cost_usd, cost_rub, deliv_date
    FROM orders
    ORDER BY order_no;`

	orderTotalsSQL = `SELECT
        COALESCE(SUM(cost_usd), 0),
        COALESCE(SUM(cost_rub), 0)
    FROM orders;`
)

// OrderRepository defines persistence operations for synchronised orders.
type OrderRepository interface {
	UpsertOrders(ctx context.Context, orders []Order) error
	ListMissedDeadlines(ctx context.Context, now time.Time, minInterval time.Duration) ([]MissedOrder, error)
	StampNotified(ctx context.Context, orderNos []int64, notifTime time.Time) error
}

// SubscriberRepository tracks the durable set of subscribed chat ids.
type SubscriberRepository interface {
	AddSubscribers(ctx context.Context, chatIDs []int64) error
	RemoveSubscribers(ctx context.Context, chatIDs []int64) error
	ListSubscribers(ctx context.Context) ([]int64, error)
}

// ReportRepository serves the read-only reporting surfaces.
type ReportRepository interface {
	ListOrders(ctx context.Context) ([]Order, error)
	OrderTotals(ctx context.Context) (OrderTotals, error)
}

// Store aggregates order, subscriber, and report access over one pool.
// Every method is a single self-contained statement, so each call is its
// own atomic transaction.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore wires a pgx pool into a Store.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Close releases the underlying pool resources.
func (s *Store) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

func (s *Store) getPool() (*pgxpool.Pool, error) {
	if s == nil || s.pool == nil {
		return nil, ErrNotConfigured
	}
	return s.pool, nil
}

// UpsertOrders persists the whole batch in one statement. Conflicting
// order numbers have their attributes overwritten with the new values.
func (s *Store) UpsertOrders(ctx context.Context, orders []Order) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}
	if len(orders) == 0 {
		return nil
	}

	secNos := make([]int64, len(orders))
	orderNos := make([]int64, len(orders))
	costsUSD := make([]*string, len(orders))
	costsRUB := make([]*string, len(orders))
	delivDates := make([]*string, len(orders))

	for i, o := range orders {
		secNos[i] = o.SecNo
		orderNos[i] = o.OrderNo
		costsUSD[i] = decimalColumn(o.CostUSD)
		costsRUB[i] = decimalColumn(o.CostRUB)
		if o.DelivDate != nil {
			date := o.DelivDate.Format("2006-01-02")
			delivDates[i] = &date
		}
	}

	if _, execErr := pool.Exec(ctx, upsertOrdersSQL, secNos, orderNos, costsUSD, costsRUB, delivDates); execErr != nil {
		return fault.Store(fmt.Errorf("upsert orders: %w", execErr))
	}
	return nil
}

// ListMissedDeadlines returns orders whose delivery date lies at least one
// full day before now and which were never notified, or last notified
// before now minus minInterval. Oldest deadlines come first.
func (s *Store) ListMissedDeadlines(ctx context.Context, now time.Time, minInterval time.Duration) ([]MissedOrder, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	notifiedBefore := now.Add(-minInterval)

	rows, queryErr := pool.Query(ctx, listMissedDeadlinesSQL, now, notifiedBefore)
	if queryErr != nil {
		return nil, fault.Store(fmt.Errorf("list missed deadlines: %w", queryErr))
	}
	defer rows.Close()

	missed := make([]MissedOrder, 0)
	for rows.Next() {
		var m MissedOrder
		if scanErr := rows.Scan(&m.OrderNo, &m.DelivDate); scanErr != nil {
			return nil, fault.Store(fmt.Errorf("scan missed order: %w", scanErr))
		}
		missed = append(missed, m)
	}
	if rows.Err() != nil {
		return nil, fault.Store(rows.Err())
	}
	return missed, nil
}

// StampNotified upserts the notification timestamp for every given order
// number in one statement.
func (s *Store) StampNotified(ctx context.Context, orderNos []int64, notifTime time.Time) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}
	if len(orderNos) == 0 {
		return nil
	}

	if _, execErr := pool.Exec(ctx, stampNotifiedSQL, orderNos, notifTime); execErr != nil {
		return fault.Store(fmt.Errorf("stamp notified: %w", execErr))
	}
	return nil
}

// AddSubscribers inserts any chat ids not already present.
func (s *Store) AddSubscribers(ctx context.Context, chatIDs []int64) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}
	if len(chatIDs) == 0 {
		return nil
	}

	if _, execErr := pool.Exec(ctx, addSubscribersSQL, chatIDs); execErr != nil {
		return fault.Store(fmt.Errorf("add subscribers: %w", execErr))
	}
	return nil
}

// RemoveSubscribers deletes the given chat ids; absent ids are ignored.
func (s *Store) RemoveSubscribers(ctx context.Context, chatIDs []int64) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}
	if len(chatIDs) == 0 {
		return nil
	}

	if _, execErr := pool.Exec(ctx, removeSubscribersSQL, chatIDs); execErr != nil {
		return fault.Store(fmt.Errorf("remove subscribers: %w", execErr))
	}
	return nil
}

// ListSubscribers returns every persisted chat id.
func (s *Store) ListSubscribers(ctx context.Context) ([]int64, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, listSubscribersSQL)
	if queryErr != nil {
		return nil, fault.Store(fmt.Errorf("list subscribers: %w", queryErr))
	}
	defer rows.Close()

	ids := make([]int64, 0)
	for rows.Next() {
		var id int64
		if scanErr := rows.Scan(&id); scanErr != nil {
			return nil, fault.Store(fmt.Errorf("scan subscriber: %w", scanErr))
		}
		ids = append(ids, id)
	}
	if rows.Err() != nil {
		return nil, fault.Store(rows.Err())
	}
	return ids, nil
}

// ListOrders returns all stored orders ordered by order number.
func (s *Store) ListOrders(ctx context.Context) ([]Order, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, listOrdersSQL)
	if queryErr != nil {
		return nil, fault.Store(fmt.Errorf("list orders: %w", queryErr))
	}
	defer rows.Close()

	orders := make([]Order, 0)
	for rows.Next() {
		order, scanErr := scanOrder(rows)
		if scanErr != nil {
			return nil, fault.Store(scanErr)
		}
		orders = append(orders, order)
	}
	if rows.Err() != nil {
		return nil, fault.Store(rows.Err())
	}
	return orders, nil
}

// OrderTotals sums the stored usd and rub costs.
func (s *Store) OrderTotals(ctx context.Context) (OrderTotals, error) {
	pool, err := s.getPool()
	if err != nil {
		return OrderTotals{}, err
	}

	var usdStr, rubStr string
	if scanErr := pool.QueryRow(ctx, orderTotalsSQL).Scan(&usdStr, &rubStr); scanErr != nil {
		return OrderTotals{}, fault.Store(fmt.Errorf("order totals: %w", scanErr))
	}

	usd, convErr := decimal.NewFromString(usdStr)
	if convErr != nil {
		return OrderTotals{}, fmt.Errorf("parse total cost_usd: %w", convErr)
	}
	rub, convErr := decimal.NewFromString(rubStr)
	if convErr != nil {
		return OrderTotals{}, fmt.Errorf("parse total cost_rub: %w", convErr)
	}

	return OrderTotals{TotalUSD: usd, TotalRUB: rub}, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOrder(row rowScanner) (Order, error) {
	var (
		order   Order
		costUSD sql.NullString
		costRUB sql.NullString
		deliv   sql.NullTime
	)

	if err := row.Scan(&order.OrderNo, &order.SecNo, &costUSD, &costRUB, &deliv); err != nil {
		return Order{}, fmt.Errorf("scan order: %w", err)
	}

	if costUSD.Valid {
		value, err := decimal.NewFromString(costUSD.String)
		if err != nil {
			return Order{}, fmt.Errorf("parse cost_usd: %w", err)
		}
		order.CostUSD = &value
	}
	if costRUB.Valid {
		value, err := decimal.NewFromString(costRUB.String)
		if err != nil {
			return Order{}, fmt.Errorf("parse cost_rub: %w", err)
		}
		order.CostRUB = &value
	}
	if deliv.Valid {
		date := deliv.Time
		order.DelivDate = &date
	}

	return order, nil
}

func decimalColumn(d *decimal.Decimal) *string {
	if d == nil {
		return nil
	}
	s := d.String()
	return &s
}

var (
	_ OrderRepository      = (*Store)(nil)
	_ SubscriberRepository = (*Store)(nil)
	_ ReportRepository     = (*Store)(nil)
)
