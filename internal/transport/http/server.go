// Package httpapi exposes a read-only view of the bot over HTTP. It serves
// health, per-symbol position state and stream statistics; it never accepts
// trading commands.
package httpapi

import (
	"context"
	"errors"
	"net/http"
	"sort"
	"time"

	"laddr/internal/ledger"
	"laddr/internal/logger"
	"laddr/internal/market"

	"github.com/gin-gonic/gin"
)

// StateProvider is implemented by the live controller.
type StateProvider interface {
	Views() map[string]ledger.View
	StreamStats() market.SourceStats
	PendingOrders() int
}

type Server struct {
	addr   string
	router *gin.Engine
}

func NewServer(addr string, state StateProvider) *Server {
	if addr == "" {
		addr = ":9985"
	}
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery(), requestLogger())

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	api := router.Group("/api")
	api.GET("/positions", func(c *gin.Context) {
		c.JSON(http.StatusOK, renderPositions(state.Views()))
	})
	api.GET("/stats", func(c *gin.Context) {
		stats := state.StreamStats()
		c.JSON(http.StatusOK, gin.H{
			"stream": gin.H{
				"reconnects":       stats.Reconnects,
				"subscribe_errors": stats.SubscribeErrors,
				"last_error":       stats.LastError,
			},
			"pending_orders": state.PendingOrders(),
		})
	})

	return &Server{addr: addr, router: router}
}

type positionPayload struct {
	Symbol             string    `json:"symbol"`
	State              string    `json:"state"`
	Layers             int       `json:"layers"`
	Quantity           float64   `json:"quantity"`
	WeightedEntryPrice float64   `json:"weighted_entry_price"`
	WeightedEntryTime  time.Time `json:"weighted_entry_time,omitzero"`
	CashCommitted      float64   `json:"cash_committed"`
	PendingSide        string    `json:"pending_side,omitempty"`
}

func renderPositions(views map[string]ledger.View) []positionPayload {
	out := make([]positionPayload, 0, len(views))
	for _, v := range views {
		p := positionPayload{
			Symbol:             v.Symbol,
			State:              string(v.State),
			Layers:             v.LayerCount,
			Quantity:           v.Quantity,
			WeightedEntryPrice: v.WeightedEntryPrice,
			CashCommitted:      v.CashCommitted,
			PendingSide:        string(v.PendingSide),
		}
		if v.LayerCount > 0 {
			p.WeightedEntryTime = v.WeightedEntryTime
		}
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Symbol < out[j].Symbol })
	return out
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Debugf("HTTP %s %s status=%d ip=%s dur=%s",
			c.Request.Method, c.Request.URL.Path, c.Writer.Status(), c.ClientIP(), time.Since(start))
	}
}

// Start serves until ctx is canceled, then drains with a short grace period.
func (s *Server) Start(ctx context.Context) error {
	srv := &http.Server{Addr: s.addr, Handler: s.router}
	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()
	logger.Infof("http: listening on %s", s.addr)
	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}
