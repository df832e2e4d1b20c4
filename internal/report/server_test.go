package report

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"order-sync-alerts/internal/storage"
)

type fakeReportStore struct {
	orders []storage.Order
	totals storage.OrderTotals
	err    error
}

func (f *fakeReportStore) ListOrders(ctx context.Context) ([]storage.Order, error) {
	return f.orders, f.err
}

func (f *fakeReportStore) OrderTotals(ctx context.Context) (storage.OrderTotals, error) {
	return f.totals, f.err
}

func TestReportPage(t *testing.T) {
	usd := decimal.RequireFromString("10.00")
	rub := decimal.RequireFromString("900.00")
	date := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	store := &fakeReportStore{
		orders: []storage.Order{
			{OrderNo: 100, SecNo: 1, CostUSD: &usd, CostRUB: &rub, DelivDate: &date},
			{OrderNo: 101, SecNo: 2},
		},
		totals: storage.OrderTotals{
			TotalUSD: usd,
			TotalRUB: rub,
		},
	}

	srv := NewServer(":0", store, zerolog.Nop())

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var body struct {
		Orders []struct {
			OrderNo   int64   `json:"order_no"`
			CostRUB   *string `json:"cost_rub"`
			DelivDate *string `json:"deliv_date"`
		} `json:"orders"`
		Totals struct {
			TotalCostUSD string `json:"total_cost_usd"`
			TotalCostRUB string `json:"total_cost_rub"`
		} `json:"totals"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode response: %v", err)
	}

	if len(body.Orders) != 2 {
		t.Fatalf("expected 2 orders, got %d", len(body.Orders))
	}
	if body.Orders[0].CostRUB == nil || *body.Orders[0].CostRUB != "900.00" {
		t.Fatalf("unexpected cost_rub: %v", body.Orders[0].CostRUB)
	}
	if body.Orders[0].DelivDate == nil || *body.Orders[0].DelivDate != "2024-01-01" {
		t.Fatalf("unexpected deliv_date: %v", body.Orders[0].DelivDate)
	}
	if body.Orders[1].CostRUB != nil {
		t.Fatal("absent costs must serialise as null")
	}
	if body.Totals.TotalCostRUB != "900.00" {
		t.Fatalf("unexpected totals: %+v", body.Totals)
	}
}

func TestReportStorageError(t *testing.T) {
	srv := NewServer(":0", &fakeReportStore{err: errors.New("down")}, zerolog.Nop())

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
}
