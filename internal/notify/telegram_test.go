package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func testTelegram(t *testing.T, handler http.HandlerFunc) (*Telegram, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewTelegram("token", srv.URL, time.Second, zerolog.Nop()), srv
}

func TestTelegramSend(t *testing.T) {
	var received map[string]any
	tg, _ := testTelegram(t, func(w http.ResponseWriter, r *http.Request) {
		if !strings.Contains(r.URL.Path, "sendMessage") {
			t.Fatalf("path must contain sendMessage, got %s", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&received); err != nil {
			t.Fatalf("decode body: %v", err)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"ok": true})
	})

	if err := tg.Send(context.Background(), 42, "hello"); err != nil {
		t.Fatalf("send: %v", err)
	}
	if received["chat_id"] != float64(42) || received["text"] != "hello" {
		t.Fatalf("unexpected payload: %#v", received)
	}
}

func TestTelegramSendNotOK(t *testing.T) {
	tg, _ := testTelegram(t, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"ok": false})
	})

	if err := tg.Send(context.Background(), 42, "hello"); err == nil {
		t.Fatal("ok=false must be an error")
	}
}

func TestTelegramPollEvents(t *testing.T) {
	var gotOffset string
	tg, _ := testTelegram(t, func(w http.ResponseWriter, r *http.Request) {
		if !strings.Contains(r.URL.Path, "getUpdates") {
			t.Fatalf("path must contain getUpdates, got %s", r.URL.Path)
		}
		gotOffset = r.URL.Query().Get("offset")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"ok": true,
			"result": []map[string]any{
				{"update_id": 7, "message": map[string]any{"from": map[string]any{"id": 1001}}},
				{"update_id": 8, "my_chat_member": map[string]any{"chat": map[string]any{"id": 1002}}},
				{"update_id": 9, "edited_message": map[string]any{}},
			},
		})
	})

	events, err := tg.PollEvents(context.Background(), 5)
	if err != nil {
		t.Fatalf("poll: %v", err)
	}
	if gotOffset != "5" {
		t.Fatalf("expected offset=5, got %q", gotOffset)
	}

	if len(events) != 2 {
		t.Fatalf("expected 2 membership events, got %d", len(events))
	}
	if events[0].Kind != EventSubscribed || events[0].ChatID != 1001 || events[0].UpdateID != 7 {
		t.Fatalf("unexpected subscribe event: %+v", events[0])
	}
	if events[1].Kind != EventUnsubscribed || events[1].ChatID != 1002 {
		t.Fatalf("unexpected unsubscribe event: %+v", events[1])
	}
}

func TestTelegramMissingToken(t *testing.T) {
	tg := NewTelegram("", "", time.Second, zerolog.Nop())
	if err := tg.Send(context.Background(), 1, "x"); err == nil {
		t.Fatal("expected error without a token")
	}
	if _, err := tg.PollEvents(context.Background(), 0); err == nil {
		t.Fatal("expected error without a token")
	}
}
