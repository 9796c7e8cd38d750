package http

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/basketscout/backend/internal/domain"
	"github.com/basketscout/backend/pkg/logger"
)

// StoreResolver is the use case behind the resolve endpoint
type StoreResolver interface {
	Resolve(ctx context.Context, request *domain.ResolveRequest) (*domain.ResolveResponse, error)
}

// Handler holds dependencies for HTTP handlers
type Handler struct {
	resolver StoreResolver
	log      logger.Logger
}

// NewHandler creates a new HTTP handler. resolver may be nil, in which
// case the resolve endpoint answers 503.
func NewHandler(resolver StoreResolver) *Handler {
	return &Handler{
		resolver: resolver,
		log:      logger.Named("http"),
	}
}

// resolveResponse is the JSON body of a successful resolve call
type resolveResponse struct {
	Items        []domain.ItemResult  `json:"items"`
	ScoredStores []domain.ScoredStore `json:"scoredStores"`
	RequestID    string               `json:"requestId"`
}

// HealthCheck returns the health status of the API
func (h *Handler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"service": "basketscout-backend",
		"version": "1.0.0",
	})
}

// ResolveStores handles store resolution requests
func (h *Handler) ResolveStores(c *gin.Context) {
	if h.resolver == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"error": "store resolver not configured",
		})
		return
	}

	var req domain.ResolveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "invalid request body: " + err.Error(),
		})
		return
	}

	ctx := c.Request.Context()
	resp, err := h.resolver.Resolve(ctx, &req)
	if err != nil {
		status := statusForError(err)
		if status >= http.StatusInternalServerError {
			h.log.Error(ctx, "resolve failed",
				logger.String("requestId", RequestIDFrom(c)),
				logger.String("addressKey", req.AddressKey),
				logger.Error(err))
		}
		c.JSON(status, gin.H{"error": err.Error()})
		return
	}

	scored := resp.ScoredStores
	if scored == nil {
		scored = []domain.ScoredStore{}
	}
	c.JSON(http.StatusOK, resolveResponse{
		Items:        resp.Items,
		ScoredStores: scored,
		RequestID:    RequestIDFrom(c),
	})
}

// statusForError maps resolver errors to HTTP status codes
func statusForError(err error) int {
	switch {
	case errors.Is(err, domain.ErrInvalidRequest), errors.Is(err, domain.ErrInvalidAddressKey):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrIncompleteAddress):
		return http.StatusUnprocessableEntity
	case errors.Is(err, domain.ErrResolveTimeout):
		return http.StatusGatewayTimeout
	case errors.Is(err, domain.ErrGeocoderFailure):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
