// Package monitoring serves the health check and Prometheus metrics. It
// knows nothing about searches.
package monitoring

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/deusflow/sandboxbot/internal/logger"
	"github.com/deusflow/sandboxbot/internal/metrics"
)

// StatsFunc reports counters shown on /stats.
type StatsFunc func() map[string]interface{}

type Server struct {
	e     *echo.Echo
	addr  string
	stats StatsFunc
}

func New(port string, m *metrics.Metrics, stats StatsFunc) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.Recover())

	s := &Server{e: e, addr: ":" + port, stats: stats}
	e.GET("/health", s.health)
	e.GET("/metrics", echo.WrapHandler(m.Handler()))
	e.GET("/stats", s.statsHandler)
	return s
}

// Handler exposes the router, for tests.
func (s *Server) Handler() http.Handler { return s.e }

func (s *Server) health(c echo.Context) error {
	return c.String(http.StatusOK, "OK")
}

func (s *Server) statsHandler(c echo.Context) error {
	if s.stats == nil {
		return c.JSON(http.StatusOK, map[string]interface{}{})
	}
	return c.JSON(http.StatusOK, s.stats())
}

// Run serves until ctx ends, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		logger.Info("Starting monitoring server", "addr", s.addr)
		errCh <- s.e.Start(s.addr)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.e.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return nil
}
