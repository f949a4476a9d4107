// Package server exposes the rooms over a REST API and a websocket stream.
package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/clambin/adax-bridge/internal/adax"
	"github.com/clambin/adax-bridge/internal/thermostat"
	"github.com/gin-gonic/gin"
)

// Controller gives access to the ideal state of all rooms, queues changes and publishes updates.
type Controller interface {
	thermostat.Controller
	Subscribe() chan adax.Home
	Unsubscribe(chan adax.Home)
	Refresh()
}

type Server struct {
	controller Controller
	logger     *slog.Logger
	engine     *gin.Engine
	addr       string
}

// New returns a Server listening on addr. health and metrics, if not nil, are served on /health and /metrics.
func New(addr string, controller Controller, health http.Handler, metrics http.Handler, logger *slog.Logger) *Server {
	s := Server{
		controller: controller,
		logger:     logger,
		addr:       addr,
	}
	s.engine = s.initRoutes(health, metrics)
	return &s
}

func (s *Server) initRoutes(health http.Handler, metrics http.Handler) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), s.logRequests)

	if health != nil {
		router.GET("/health", gin.WrapH(health))
	}
	if metrics != nil {
		router.GET("/metrics", gin.WrapH(metrics))
	}

	api := router.Group("/api/v1")
	{
		rooms := api.Group("/rooms")
		{
			rooms.GET("", s.getRooms)
			rooms.GET("/:id", s.getRoom)
			// Body example: {"targetTemperature":21.5,"heatingEnabled":true}
			rooms.PATCH("/:id", s.patchRoom)
		}
		api.POST("/refresh", s.refresh)
		api.GET("/ws", s.wsConnect)
	}
	return router
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.engine.ServeHTTP(w, r)
}

func (s *Server) Run(ctx context.Context) error {
	s.logger.Debug("started", "addr", s.addr)
	defer s.logger.Debug("stopped")

	httpServer := http.Server{Addr: s.addr, Handler: s.engine, ReadHeaderTimeout: 10 * time.Second}
	errCh := make(chan error, 1)
	go func() {
		if err := httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return <-errCh
}

func (s *Server) logRequests(c *gin.Context) {
	start := time.Now()
	c.Next()
	s.logger.Debug("request",
		"method", c.Request.Method,
		"path", c.Request.URL.Path,
		"status", c.Writer.Status(),
		"latency", time.Since(start),
	)
}
