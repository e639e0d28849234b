package v1

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/hrygo/atlas/internal/profile"
	ratelimit "github.com/hrygo/atlas/server/middleware"
	atlassvc "github.com/hrygo/atlas/server/service/atlas"
)

type APIV1Service struct {
	Profile    *profile.Profile
	MapService *atlassvc.Service

	// limiter throttles API requests per client IP.
	limiter *ratelimit.RateLimiter
}

func NewAPIV1Service(profile *profile.Profile, mapService *atlassvc.Service) *APIV1Service {
	return &APIV1Service{
		Profile:    profile,
		MapService: mapService,
		limiter:    ratelimit.NewRateLimiter(),
	}
}

// RegisterRoutes registers the REST handlers with the given Echo instance.
func (s *APIV1Service) RegisterRoutes(echoServer *echo.Echo) {
	corsHandler := middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOriginFunc: func(_ string) (bool, error) {
			return true, nil
		},
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowHeaders: []string{"*"},
	})

	api := echoServer.Group("/api/v1", corsHandler, s.limiter.Middleware())
	api.GET("/users/:user/map", s.GetMap)
	api.POST("/users/:user/map/regenerate", s.RegenerateMap)
	api.GET("/users/:user/map/cities", s.ListCities)
	api.GET("/system/metrics/overview", s.GetMetricsOverview)
}
