package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"certledger/internal/certificate/models"
	"certledger/internal/stats"
	dErrors "certledger/pkg/domain-errors"
	"certledger/pkg/platform/httputil"
	"certledger/pkg/requestcontext"
)

// Service is the certificate surface the handler needs.
type Service interface {
	Issue(ctx context.Context, req *models.IssueRequest) (*models.Certificate, error)
	Verify(ctx context.Context, serial string) (*models.VerificationResult, error)
	ListCertificates(ctx context.Context) ([]*models.Certificate, error)
	GetCertificate(ctx context.Context, id string) (*models.Certificate, error)
}

// StatsService answers statistics queries.
type StatsService interface {
	Snapshot(ctx context.Context, q stats.Query) (*stats.Snapshot, error)
}

type Handler struct {
	service Service
	stats   StatsService
	logger  *slog.Logger
}

func New(service Service, statsService StatsService, logger *slog.Logger) *Handler {
	return &Handler{service: service, stats: statsService, logger: logger}
}

// Register mounts the routes on r. Verification and statistics are public.
func (h *Handler) Register(r chi.Router, requireAuth func(http.Handler) http.Handler) {
	r.Route("/certificates", func(r chi.Router) {
		r.Get("/stats", h.handleStats)
		r.Get("/verify/{serial}", h.handleVerify)

		r.Group(func(r chi.Router) {
			r.Use(requireAuth)
			r.Post("/", h.handleIssue)
			r.Get("/", h.handleList)
			r.Get("/{id}", h.handleGet)
		})
	})
}

func (h *Handler) handleIssue(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[models.IssueRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	cert, err := h.service.Issue(ctx, req)
	if err != nil {
		h.logger.ErrorContext(ctx, "certificate issuance failed",
			"request_id", requestID,
			"certificate_id", req.CertificateID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, cert)
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	certs, err := h.service.ListCertificates(r.Context())
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, certs)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	cert, err := h.service.GetCertificate(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, cert)
}

func (h *Handler) handleVerify(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	result, err := h.service.Verify(ctx, chi.URLParam(r, "serial"))
	if err != nil {
		if !dErrors.HasCode(err, dErrors.CodeNotFound) {
			h.logger.ErrorContext(ctx, "certificate verification failed",
				"request_id", requestcontext.RequestID(ctx),
				"error", err,
			)
		}
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, result)
}

func (h *Handler) handleStats(w http.ResponseWriter, r *http.Request) {
	q, err := parseStatsQuery(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	snapshot, err := h.stats.Snapshot(r.Context(), q)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, snapshot)
}

func parseStatsQuery(r *http.Request) (stats.Query, error) {
	values := r.URL.Query()
	q := stats.Query{IssuerName: values.Get("issuerName")}
	var err error
	if q.StartDate, err = parseDate("startDate", values.Get("startDate")); err != nil {
		return stats.Query{}, err
	}
	if q.EndDate, err = parseDate("endDate", values.Get("endDate")); err != nil {
		return stats.Query{}, err
	}
	return q, nil
}

// parseDate accepts RFC 3339 timestamps and bare dates.
func parseDate(name, raw string) (*time.Time, error) {
	if raw == "" {
		return nil, nil
	}
	for _, layout := range []string{time.RFC3339Nano, time.DateOnly} {
		if t, err := time.Parse(layout, raw); err == nil {
			return &t, nil
		}
	}
	return nil, dErrors.Newf(dErrors.CodeInvalidInput, "%s must be an RFC 3339 timestamp or YYYY-MM-DD date", name)
}
