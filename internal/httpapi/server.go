// Package httpapi exposes the optional admin surface: health, live
// server state and Prometheus metrics over plain HTTP, on a port
// separate from the chat listeners.
package httpapi

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"chatd/internal/server"
)

// Server wires the admin routes onto an Echo instance.
type Server struct {
	name string
	srv  *server.Server
	echo *echo.Echo
}

// New constructs the admin server and registers all routes. gatherer
// backs the /metrics endpoint.
func New(name string, srv *server.Server, gatherer prometheus.Gatherer) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod: true,
		LogURI:    true,
		LogStatus: true,
		LogValuesFunc: func(_ echo.Context, v middleware.RequestLoggerValues) error {
			slog.Debug("admin request", "method", v.Method, "uri", v.URI, "status", v.Status)
			return nil
		},
	}))
	e.Use(middleware.Recover())

	s := &Server{name: name, srv: srv, echo: e}
	e.GET("/health", s.handleHealth)
	e.GET("/api/state", s.handleState)
	e.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))
	return s
}

// Echo exposes the underlying router for tests.
func (s *Server) Echo() *echo.Echo { return s.echo }

// Run starts the admin server on addr and blocks until ctx is
// canceled, then shuts it down with a short grace period.
func (s *Server) Run(ctx context.Context, addr string) error {
	errCh := make(chan error, 1)
	go func() {
		if err := s.echo.Start(addr); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()
	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.echo.Shutdown(shutCtx)
}

// HealthResponse is the payload for GET /health.
type HealthResponse struct {
	Status  string `json:"status"`
	Clients int    `json:"clients"`
}

func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, HealthResponse{
		Status:  "ok",
		Clients: s.srv.Clients.Len(),
	})
}

// StateResponse is the payload for GET /api/state.
type StateResponse struct {
	ServerName      string              `json:"server_name"`
	Clients         []server.ClientInfo `json:"clients"`
	RegisteredUsers int                 `json:"registered_users"`
	LoggedMessages  int                 `json:"logged_messages"`
	PendingMessages int                 `json:"pending_messages"`
}

func (s *Server) handleState(c echo.Context) error {
	return c.JSON(http.StatusOK, StateResponse{
		ServerName:      s.name,
		Clients:         s.srv.Clients.Snapshot(),
		RegisteredUsers: s.srv.Users.Count(),
		LoggedMessages:  s.srv.Log.Len(),
		PendingMessages: s.srv.Pending.Len(),
	})
}
