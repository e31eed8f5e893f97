package http

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/listproxy/backend/internal/domain"
)

// Error kinds reported to clients
const (
	kindInvalidInput        = "invalid_input"
	kindUpstreamUnreachable = "upstream_unreachable"
	kindTimeout             = "timeout"
	kindInternal            = "internal"
)

type errorBody struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

type errorResponse struct {
	Error errorBody `json:"error"`
}

// respondError maps domain errors onto a structured payload. Upstream error
// bodies and internal details are never echoed back.
func respondError(c *gin.Context, err error) {
	status, body := classify(err)
	if status >= http.StatusInternalServerError {
		slog.Error("request failed", "path", c.Request.URL.Path, "kind", body.Kind, "error", err)
	}
	c.AbortWithStatusJSON(status, errorResponse{Error: body})
}

func classify(err error) (int, errorBody) {
	switch {
	case errors.Is(err, domain.ErrInvalidInput):
		return http.StatusBadRequest, errorBody{Kind: kindInvalidInput, Message: "invalid path"}
	case errors.Is(err, domain.ErrUpstreamUnreachable):
		return http.StatusBadGateway, errorBody{Kind: kindUpstreamUnreachable, Message: "upstream service is unreachable"}
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return http.StatusGatewayTimeout, errorBody{Kind: kindTimeout, Message: "request timed out"}
	default:
		return http.StatusInternalServerError, errorBody{Kind: kindInternal, Message: "internal error"}
	}
}
