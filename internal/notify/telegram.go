package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"order-sync-alerts/internal/fault"
)

const defaultAPIBase = "https://api.telegram.org"

// EventKind distinguishes subscription-change events.
type EventKind int

const (
	// EventSubscribed reports a new direct-message sender.
	EventSubscribed EventKind = iota
	// EventUnsubscribed reports a chat that left or blocked the bot.
	EventUnsubscribed
)

// SubscriptionEvent is one membership change pulled from the bot platform.
type SubscriptionEvent struct {
	UpdateID int64
	ChatID   int64
	Kind     EventKind
}

// Channel is the messaging-bot boundary: digest delivery plus the
// subscription-change poll.
type Channel interface {
	Send(ctx context.Context, chatID int64, text string) error
	PollEvents(ctx context.Context, offset int64) ([]SubscriptionEvent, error)
}

// Telegram talks to the Bot API over plain HTTP.
type Telegram struct {
	token   string
	baseURL string
	client  *http.Client
	logger  zerolog.Logger
}

// NewTelegram constructs a bot client.
func NewTelegram(token, baseURL string, timeout time.Duration, logger zerolog.Logger) *Telegram {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if baseURL == "" {
		baseURL = defaultAPIBase
	}

	return &Telegram{
		token:   token,
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
		logger:  logger.With().Str("component", "telegram").Logger(),
	}
}

// Send delivers one text message to a chat.
func (t *Telegram) Send(ctx context.Context, chatID int64, text string) error {
	if t.token == "" {
		return errors.New("telegram bot token not configured")
	}

	payload := map[string]any{
		"chat_id": chatID,
		"text":    text,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal telegram payload: %w", err)
	}

	url := fmt.Sprintf("%s/bot%s/sendMessage", t.baseURL, t.token)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fault.Network(fmt.Errorf("create sendMessage request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		return fault.Network(fmt.Errorf("send telegram message: %w", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fault.Network(fmt.Errorf("telegram sendMessage status %d", resp.StatusCode))
	}

	var result struct {
		OK bool `json:"ok"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err == nil && !result.OK {
		return fault.Network(errors.New("telegram sendMessage returned ok=false"))
	}
	return nil
}

type update struct {
	UpdateID int64 `json:"update_id"`
	Message  *struct {
		From *struct {
			ID int64 `json:"id"`
		} `json:"from"`
	} `json:"message"`
	MyChatMember *struct {
		Chat struct {
			ID int64 `json:"id"`
		} `json:"chat"`
	} `json:"my_chat_member"`
}

// PollEvents fetches updates at or past offset and maps them onto
// subscription events. A plain message marks its sender subscribed; a
// my_chat_member update marks its chat unsubscribed. Other update types
// carry no membership information and are skipped.
func (t *Telegram) PollEvents(ctx context.Context, offset int64) ([]SubscriptionEvent, error) {
	if t.token == "" {
		return nil, errors.New("telegram bot token not configured")
	}

	url := fmt.Sprintf("%s/bot%s/getUpdates?offset=%d", t.baseURL, t.token, offset)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fault.Network(fmt.Errorf("create getUpdates request: %w", err))
	}

	resp, err := t.client.Do(req)
	if err != nil {
		return nil, fault.Network(fmt.Errorf("poll telegram updates: %w", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fault.Network(fmt.Errorf("telegram getUpdates status %d", resp.StatusCode))
	}

	var result struct {
		OK     bool     `json:"ok"`
		Result []update `json:"result"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fault.Network(fmt.Errorf("decode telegram updates: %w", err))
	}
	if !result.OK {
		return nil, fault.Network(errors.New("telegram getUpdates returned ok=false"))
	}

	events := make([]SubscriptionEvent, 0, len(result.Result))
	for _, upd := range result.Result {
		switch {
		case upd.MyChatMember != nil:
			events = append(events, SubscriptionEvent{
				UpdateID: upd.UpdateID,
				ChatID:   upd.MyChatMember.Chat.ID,
				Kind:     EventUnsubscribed,
			})
		case upd.Message != nil && upd.Message.From != nil:
			events = append(events, SubscriptionEvent{
				UpdateID: upd.UpdateID,
				ChatID:   upd.Message.From.ID,
				Kind:     EventSubscribed,
			})
		}
	}

	t.logger.Debug().Int("updates", len(result.Result)).Int("events", len(events)).Msg("polled bot updates")
	return events, nil
}

var _ Channel = (*Telegram)(nil)
