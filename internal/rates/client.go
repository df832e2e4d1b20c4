package rates

import (
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"golang.org/x/text/encoding/charmap"

	"order-sync-alerts/internal/fault"
)

const defaultFeedURL = "https://www.cbr.ru/scripts/XML_dynamic.asp"

// ClientOptions parameterise the central-bank rate feed client.
type ClientOptions struct {
	BaseURL    string
	CurrencyID string
	Timeout    time.Duration
	UserAgent  string
}

// Client fetches daily quotes for a single currency from the CBR dynamic
// XML endpoint.
type Client struct {
	opts    ClientOptions
	client  *http.Client
	baseURL string
	logger  zerolog.Logger
}

// NewClient constructs a rate feed client.
func NewClient(opts ClientOptions, logger zerolog.Logger) *Client {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = defaultFeedURL
	}

	return &Client{
		opts:    opts,
		client:  &http.Client{Timeout: timeout},
		baseURL: baseURL,
		logger:  logger.With().Str("component", "rates_client").Logger(),
	}
}

type feedRecord struct {
	Date    string `xml:"Date,attr"`
	Nominal string `xml:"Nominal"`
	Value   string `xml:"Value"`
}

type feedDocument struct {
	Records []feedRecord `xml:"Record"`
}

// FetchYear requests quotes from Dec 1 of the prior year through Dec 31
// of the requested year and returns one normalised rate per published day.
func (c *Client) FetchYear(ctx context.Context, year int) ([]DailyRate, error) {
	if c.opts.CurrencyID == "" {
		return nil, errors.New("rates currency id not configured")
	}

	endpoint := fmt.Sprintf(
		"%s?date_req1=01/12/%d&date_req2=31/12/%d&VAL_NM_RQ=%s",
		c.baseURL, year-1, year, c.opts.CurrencyID,
	)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fault.Network(fmt.Errorf("create rates request: %w", err))
	}
	if c.opts.UserAgent != "" {
		req.Header.Set("User-Agent", c.opts.UserAgent)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fault.Network(fmt.Errorf("fetch rates: %w", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fault.Network(fmt.Errorf("rates feed status %d", resp.StatusCode))
	}

	quotes, err := decodeFeed(resp.Body)
	if err != nil {
		return nil, fault.Network(fmt.Errorf("decode rates feed: %w", err))
	}

	c.logger.Debug().Int("year", year).Int("records", len(quotes)).Msg("fetched yearly quotes")
	return quotes, nil
}

func decodeFeed(r io.Reader) ([]DailyRate, error) {
	dec := xml.NewDecoder(r)
	dec.CharsetReader = feedCharsetReader

	var doc feedDocument
	if err := dec.Decode(&doc); err != nil {
		return nil, err
	}

	quotes := make([]DailyRate, 0, len(doc.Records))
	for _, rec := range doc.Records {
		date, err := time.Parse("02.01.2006", rec.Date)
		if err != nil {
			return nil, fmt.Errorf("parse record date %q: %w", rec.Date, err)
		}

		nominal, err := decimal.NewFromString(strings.TrimSpace(rec.Nominal))
		if err != nil || nominal.IsZero() {
			return nil, fmt.Errorf("parse record nominal %q", rec.Nominal)
		}

		// The feed uses a comma as the fractional separator.
		value, err := decimal.NewFromString(strings.ReplaceAll(strings.TrimSpace(rec.Value), ",", "."))
		if err != nil {
			return nil, fmt.Errorf("parse record value %q: %w", rec.Value, err)
		}

		quotes = append(quotes, DailyRate{Date: Day(date), Rate: value.Div(nominal)})
	}
	return quotes, nil
}

// The feed declares windows-1251; anything else passes through untouched.
func feedCharsetReader(label string, input io.Reader) (io.Reader, error) {
	switch strings.ToLower(label) {
	case "windows-1251":
		return charmap.Windows1251.NewDecoder().Reader(input), nil
	default:
		return input, nil
	}
}

var _ Source = (*Client)(nil)
