package rates

import (
	"context"
	"sort"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// Cache holds daily rates keyed by calendar date and resolves lookups with
// most-recent-on-or-before semantics. It lives for the whole process and
// is reused across sync ticks; years are fetched from the source at most
// once each.
type Cache struct {
	source  Source
	quotes  map[time.Time]decimal.Decimal
	keys    []time.Time
	fetched map[int]bool
	logger  zerolog.Logger
}

// NewCache constructs an empty cache over the given feed.
func NewCache(source Source, logger zerolog.Logger) *Cache {
	return &Cache{
		source:  source,
		quotes:  make(map[time.Time]decimal.Decimal),
		fetched: make(map[int]bool),
		logger:  logger.With().Str("component", "rates_cache").Logger(),
	}
}

// Get returns the rate for date, falling back to the greatest cached date
// strictly before it. The boolean is false when no rate on or before the
// date exists anywhere in the feed's history. A fetch is triggered only
// when the lookup cannot be answered and the date's year was never pulled.
func (c *Cache) Get(ctx context.Context, date time.Time) (decimal.Decimal, bool, error) {
	day := Day(date)

	if _, ok := c.quotes[day]; !ok && !c.hasFloor(day) {
		if err := c.refresh(ctx, day.Year()); err != nil {
			return decimal.Decimal{}, false, err
		}
	}

	if rate, ok := c.quotes[day]; ok {
		return rate, true, nil
	}
	if floor, ok := c.floorKey(day); ok {
		return c.quotes[floor], true, nil
	}
	return decimal.Decimal{}, false, nil
}

func (c *Cache) refresh(ctx context.Context, year int) error {
	if c.fetched[year] {
		return nil
	}

	quotes, err := c.source.FetchYear(ctx, year)
	if err != nil {
		return err
	}
	c.fetched[year] = true

	for _, q := range quotes {
		c.quotes[Day(q.Date)] = q.Rate
	}

	c.keys = c.keys[:0]
	for day := range c.quotes {
		c.keys = append(c.keys, day)
	}
	sort.Slice(c.keys, func(i, j int) bool { return c.keys[i].Before(c.keys[j]) })

	c.logger.Debug().Int("year", year).Int("cached_days", len(c.keys)).Msg("rate cache refreshed")
	return nil
}

func (c *Cache) hasFloor(day time.Time) bool {
	_, ok := c.floorKey(day)
	return ok
}

// floorKey finds the greatest cached date strictly before day.
func (c *Cache) floorKey(day time.Time) (time.Time, bool) {
	idx := sort.Search(len(c.keys), func(i int) bool {
		return !c.keys[i].Before(day)
	})
	if idx == 0 {
		return time.Time{}, false
	}
	return c.keys[idx-1], true
}
