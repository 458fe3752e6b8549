package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"certledger/internal/address"
	"certledger/internal/ledger"
	"certledger/pkg/platform/httputil"
	"certledger/pkg/requestcontext"
)

// Service is the address validation surface the handler needs.
type Service interface {
	Validate(ctx context.Context, addr string, network ledger.Network, checkExists bool) (address.Result, error)
	ValidateBulk(ctx context.Context, addrs []string, network ledger.Network, checkExists bool) (address.BulkResult, error)
	ClearCache(ctx context.Context)
	CacheStats() address.CacheStats
	DefaultNetwork() ledger.Network
}

// Handler serves the address validation endpoints.
type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register mounts the routes on r. requireAuth guards the cache admin route.
func (h *Handler) Register(r chi.Router, requireAuth func(http.Handler) http.Handler) {
	r.Route("/addresses", func(r chi.Router) {
		r.Post("/validate", h.handleValidate)
		r.Post("/validate/bulk", h.handleValidateBulk)
		r.Get("/cache/stats", h.handleCacheStats)
		r.With(requireAuth).Delete("/cache", h.handleClearCache)
	})
}

func (h *Handler) network(raw string) ledger.Network {
	if raw == "" {
		return h.service.DefaultNetwork()
	}
	if n, err := ledger.ParseNetwork(raw); err == nil {
		return n
	}
	return ledger.Network(raw)
}

func (h *Handler) handleValidate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[address.Request](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	result, err := h.service.Validate(ctx, req.Address, h.network(req.Network), req.CheckExists)
	if err != nil {
		h.logger.ErrorContext(ctx, "address validation failed",
			"request_id", requestID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, result)
}

func (h *Handler) handleValidateBulk(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[address.BulkRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	result, err := h.service.ValidateBulk(ctx, req.Addresses, h.network(req.Network), req.CheckExists)
	if err != nil {
		h.logger.WarnContext(ctx, "bulk address validation failed",
			"request_id", requestID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, result)
}

func (h *Handler) handleClearCache(w http.ResponseWriter, r *http.Request) {
	h.service.ClearCache(r.Context())
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleCacheStats(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, h.service.CacheStats())
}
