package report

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"order-sync-alerts/internal/storage"
)

// Server exposes the read-only order report: every stored row plus the
// aggregate cost totals. It only reads what the sync loop writes.
type Server struct {
	addr   string
	store  storage.ReportRepository
	router *gin.Engine
	logger zerolog.Logger
}

// NewServer wires the report routes over the given store.
func NewServer(addr string, store storage.ReportRepository, logger zerolog.Logger) *Server {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())

	s := &Server{
		addr:   addr,
		store:  store,
		router: router,
		logger: logger.With().Str("component", "report").Logger(),
	}
	router.GET("/", s.handleOrders)
	return s
}

// Run serves until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{Addr: s.addr, Handler: s.router}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()
	s.logger.Info().Str("addr", s.addr).Msg("report server listening")

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		return ctx.Err()
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

// Handler exposes the router for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

type orderView struct {
	OrderNo   int64   `json:"order_no"`
	SecNo     int64   `json:"sec_no"`
	CostUSD   *string `json:"cost_usd"`
	CostRUB   *string `json:"cost_rub"`
	DelivDate *string `json:"deliv_date"`
}

type totalsView struct {
	TotalCostUSD string `json:"total_cost_usd"`
	TotalCostRUB string `json:"total_cost_rub"`
}

func (s *Server) handleOrders(c *gin.Context) {
	ctx := c.Request.Context()

	orders, err := s.store.ListOrders(ctx)
	if err != nil {
		s.logger.Error().Err(err).Msg("list orders failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "storage unavailable"})
		return
	}

	totals, err := s.store.OrderTotals(ctx)
	if err != nil {
		s.logger.Error().Err(err).Msg("order totals failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "storage unavailable"})
		return
	}

	views := make([]orderView, 0, len(orders))
	for _, o := range orders {
		view := orderView{OrderNo: o.OrderNo, SecNo: o.SecNo}
		if o.CostUSD != nil {
			v := o.CostUSD.String()
			view.CostUSD = &v
		}
		if o.CostRUB != nil {
			v := o.CostRUB.String()
			view.CostRUB = &v
		}
		if o.DelivDate != nil {
			v := o.DelivDate.Format("2006-01-02")
			view.DelivDate = &v
		}
		views = append(views, view)
	}

	c.JSON(http.StatusOK, gin.H{
		"orders": views,
		"totals": totalsView{
			TotalCostUSD: totals.TotalUSD.String(),
			TotalCostRUB: totals.TotalRUB.String(),
		},
	})
}
