package v1

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/hrygo/atlas/plugin/ai/graph"
	mapErrors "github.com/hrygo/atlas/server/internal/errors"
	"github.com/hrygo/atlas/server/internal/observability"
)

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Code    mapErrors.ErrorCode `json:"code"`
	Message string              `json:"message"`
}

// GetMap returns the latest map of a user.
// GET /api/v1/users/:user/map
func (s *APIV1Service) GetMap(c echo.Context) error {
	ctx, userID := s.requestContext(c, "get_map")
	state, err := s.MapService.GetMap(ctx, userID)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, state)
}

// RegenerateMap builds a new map version from the user's current items.
// POST /api/v1/users/:user/map/regenerate
func (s *APIV1Service) RegenerateMap(c echo.Context) error {
	ctx, userID := s.requestContext(c, "regenerate_map")
	state, err := s.MapService.Regenerate(ctx, userID)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, state)
}

// ListCities returns the filtered cities and roads of the latest map.
// GET /api/v1/users/:user/map/cities?filter=&min_population=&tier=&cluster=&name=
func (s *APIV1Service) ListCities(c echo.Context) error {
	filter, err := parseGraphFilter(c)
	if err != nil {
		return writeError(c, err)
	}
	ctx, userID := s.requestContext(c, "list_cities")
	g, err := s.MapService.FilterCities(ctx, userID, filter)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, g)
}

// requestContext attaches a request-scoped logger to the request and
// returns the user named in the path.
func (s *APIV1Service) requestContext(c echo.Context, operation string) (context.Context, string) {
	userID := strings.TrimSpace(c.Param("user"))
	requestID := c.Request().Header.Get(echo.HeaderXRequestID)
	var reqCtx *observability.RequestContext
	if requestID != "" {
		reqCtx = observability.NewRequestContextWithID(slog.Default(), requestID, operation, userID)
	} else {
		reqCtx = observability.NewRequestContext(slog.Default(), operation, userID)
	}
	c.Response().Header().Set(echo.HeaderXRequestID, reqCtx.RequestID)

	ctx := observability.WithRequestContext(c.Request().Context(), reqCtx)
	c.SetRequest(c.Request().WithContext(ctx))
	return ctx, userID
}

// parseGraphFilter reads city filter criteria from query parameters.
// tier, cluster and name may repeat or hold comma separated values.
func parseGraphFilter(c echo.Context) (graph.GraphFilter, error) {
	params := c.QueryParams()
	filter := graph.GraphFilter{
		Expression: params.Get("filter"),
		Names:      splitValues(params["name"]),
	}

	if raw := params.Get("min_population"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			return filter, mapErrors.InvalidArgument("min_population must be a non-negative integer").
				WithContext("min_population", raw)
		}
		filter.MinPopulation = n
	}

	for _, tier := range splitValues(params["tier"]) {
		filter.Tiers = append(filter.Tiers, graph.SizeTier(strings.ToLower(tier)))
	}

	for _, raw := range splitValues(params["cluster"]) {
		id, err := strconv.Atoi(raw)
		if err != nil {
			return filter, mapErrors.InvalidArgument("cluster must be an integer").
				WithContext("cluster", raw)
		}
		filter.Clusters = append(filter.Clusters, id)
	}
	return filter, nil
}

func splitValues(values []string) []string {
	var result []string
	for _, v := range values {
		for _, part := range strings.Split(v, ",") {
			if part = strings.TrimSpace(part); part != "" {
				result = append(result, part)
			}
		}
	}
	return result
}

// statusForCode maps service error codes to HTTP status codes.
func statusForCode(code mapErrors.ErrorCode) int {
	switch code {
	case mapErrors.ErrCodeInvalidArgument:
		return http.StatusBadRequest
	case mapErrors.ErrCodeNotFound:
		return http.StatusNotFound
	case mapErrors.ErrCodeRateLimitExceeded:
		return http.StatusTooManyRequests
	case mapErrors.ErrCodeContextCanceled:
		// nginx's "client closed request"
		return 499
	case mapErrors.ErrCodeTimeout:
		return http.StatusGatewayTimeout
	case mapErrors.ErrCodeStoreUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func writeError(c echo.Context, err error) error {
	code := mapErrors.GetCodeFromError(err, mapErrors.ErrCodeGenerationFailed)
	status := statusForCode(code)

	message := err.Error()
	var mapErr *mapErrors.MapError
	if errors.As(err, &mapErr) {
		message = mapErr.Message
	}

	logger := slog.Default()
	if reqCtx, ok := observability.FromContext(c.Request().Context()); ok {
		logger = reqCtx.WithFields()
	}
	level := slog.LevelWarn
	if status >= http.StatusInternalServerError {
		level = slog.LevelError
	}
	logger.Log(c.Request().Context(), level, "request failed",
		slog.String(observability.LogFieldErrorCode, string(code)),
		slog.String("error", err.Error()))

	return c.JSON(status, ErrorResponse{Code: code, Message: message})
}
