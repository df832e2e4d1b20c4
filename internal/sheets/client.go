package sheets

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"order-sync-alerts/internal/fault"
)

const defaultSheetsURL = "https://sheets.googleapis.com"

// RawSource supplies the raw column-major cell values of the source range.
type RawSource interface {
	FetchColumns(ctx context.Context) ([][]string, error)
}

// ClientOptions parameterise the Sheets values client.
type ClientOptions struct {
	BaseURL       string
	SpreadsheetID string
	Range         string
	APIKey        string
	Timeout       time.Duration
	UserAgent     string
}

// Client reads a fixed spreadsheet range through the Sheets values API,
// authenticated with a developer API key.
type Client struct {
	opts    ClientOptions
	client  *http.Client
	baseURL string
	logger  zerolog.Logger
}

// NewClient constructs a spreadsheet source client.
func NewClient(opts ClientOptions, logger zerolog.Logger) *Client {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = defaultSheetsURL
	}

	return &Client{
		opts:    opts,
		client:  &http.Client{Timeout: timeout},
		baseURL: baseURL,
		logger:  logger.With().Str("component", "sheets_client").Logger(),
	}
}

type valueRange struct {
	Values [][]string `json:"values"`
}

// FetchColumns pulls the configured range with COLUMNS major dimension,
// so each top-level slice is one source column.
func (c *Client) FetchColumns(ctx context.Context) ([][]string, error) {
	if c.opts.SpreadsheetID == "" {
		return nil, errors.New("sheets spreadsheet id not configured")
	}
	if c.opts.Range == "" {
		return nil, errors.New("sheets range not configured")
	}
	if c.opts.APIKey == "" {
		return nil, errors.New("sheets api key not configured")
	}

	endpoint := fmt.Sprintf(
		"%s/v4/spreadsheets/%s/values/%s?majorDimension=COLUMNS&key=%s",
		c.baseURL,
		url.PathEscape(c.opts.SpreadsheetID),
		url.PathEscape(c.opts.Range),
		url.QueryEscape(c.opts.APIKey),
	)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fault.Network(fmt.Errorf("create sheets request: %w", err))
	}
	if c.opts.UserAgent != "" {
		req.Header.Set("User-Agent", c.opts.UserAgent)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fault.Network(fmt.Errorf("fetch sheet values: %w", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fault.Network(fmt.Errorf("sheets api status %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet))))
	}

	var vr valueRange
	if err := json.NewDecoder(resp.Body).Decode(&vr); err != nil {
		return nil, fault.Network(fmt.Errorf("decode sheet values: %w", err))
	}

	c.logger.Debug().Int("columns", len(vr.Values)).Msg("fetched sheet range")
	return vr.Values, nil
}

var _ RawSource = (*Client)(nil)
