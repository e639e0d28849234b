// Package server runs the HTTP API in front of the map service.
package server

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"

	"github.com/hrygo/atlas/internal/profile"
	"github.com/hrygo/atlas/server/internal/observability"
	apiv1 "github.com/hrygo/atlas/server/router/api/v1"
	atlassvc "github.com/hrygo/atlas/server/service/atlas"
	"github.com/hrygo/atlas/store"
)

type Server struct {
	Profile *profile.Profile
	Store   *store.Store

	echoServer *echo.Echo
	mapService *atlassvc.Service
	metrics    *observability.Metrics
}

func NewServer(ctx context.Context, profile *profile.Profile, store *store.Store) (*Server, error) {
	metrics := observability.NewMetrics()
	mapService, err := atlassvc.NewServiceFromProfile(profile, store, metrics, slog.Default())
	if err != nil {
		return nil, errors.Wrap(err, "failed to create map service")
	}

	s := &Server{
		Profile:    profile,
		Store:      store,
		mapService: mapService,
		metrics:    metrics,
	}

	echoServer := echo.New()
	echoServer.Debug = true
	echoServer.HideBanner = true
	echoServer.HidePort = true
	echoServer.Use(middleware.Recover())
	echoServer.Use(middleware.RequestID())
	echoServer.Use(requestMetrics(metrics))
	s.echoServer = echoServer

	echoServer.GET("/healthz", func(c echo.Context) error {
		return c.String(http.StatusOK, "Service ready.")
	})
	echoServer.GET("/healthz/cache", func(c echo.Context) error {
		return c.JSON(http.StatusOK, mapService.CacheStats())
	})
	echoServer.GET("/metrics", echo.WrapHandler(metrics.Handler()))

	apiv1.NewAPIV1Service(profile, mapService).RegisterRoutes(echoServer)

	slog.Debug("server initialized", slog.String("driver", profile.Driver), slog.Bool("redis", profile.IsRedisEnabled()))
	return s, nil
}

// Handler exposes the router, for tests.
func (s *Server) Handler() http.Handler {
	return s.echoServer
}

// Start listens on the profile address and serves until Shutdown.
func (s *Server) Start(_ context.Context) error {
	address := net.JoinHostPort(s.Profile.Addr, strconv.Itoa(s.Profile.Port))
	listener, err := net.Listen("tcp", address)
	if err != nil {
		return errors.Wrapf(err, "failed to listen on %s", address)
	}
	s.echoServer.Listener = listener

	go func() {
		if err := s.echoServer.Start(address); err != nil && err != http.ErrServerClosed {
			slog.Error("failed to start echo server", "error", err)
		}
	}()
	return nil
}

func (s *Server) Shutdown(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	slog.Info("server shutting down")

	if err := s.echoServer.Shutdown(ctx); err != nil {
		slog.Error("failed to shutdown server", slog.String("error", err.Error()))
	}
	if err := s.mapService.Close(); err != nil {
		slog.Error("failed to close map cache", slog.String("error", err.Error()))
	}
	if err := s.Store.Close(); err != nil {
		slog.Error("failed to close database", slog.String("error", err.Error()))
	}

	slog.Info("server stopped properly")
}

// requestMetrics counts requests by method, matched route and status.
func requestMetrics(metrics *observability.Metrics) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			err := next(c)
			status := c.Response().Status
			if err != nil {
				var he *echo.HTTPError
				if errors.As(err, &he) {
					status = he.Code
				}
			}
			route := c.Path()
			if route == "" {
				route = "unmatched"
			}
			metrics.HTTPRequests.WithLabelValues(c.Request().Method, route, strconv.Itoa(status)).Inc()
			return err
		}
	}
}
