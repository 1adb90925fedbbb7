package api

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"time"

	"github.com/mmrzaf/termwatch/internal/app"
	"github.com/mmrzaf/termwatch/internal/domain"
	"github.com/mmrzaf/termwatch/internal/logging"
	"github.com/mmrzaf/termwatch/internal/validation"
)

type Handler struct {
	reports      *app.ReportService
	logger       *logging.Logger
	queryTimeout time.Duration
}

func NewHandler(reports *app.ReportService, logger *logging.Logger, queryTimeout time.Duration) *Handler {
	return &Handler{
		reports:      reports,
		logger:       logger.WithComponent("api"),
		queryTimeout: queryTimeout,
	}
}

// Routes registers the reporting endpoints on mux.
func (h *Handler) Routes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/dashboard", h.GetDashboard)
	mux.HandleFunc("GET /api/runs", h.ListRuns)
	mux.HandleFunc("GET /api/runs/{id}", h.GetRun)
	mux.HandleFunc("GET /api/latest", h.GetLatestRun)
	mux.HandleFunc("GET /api/releases", h.ListReleases)
	mux.HandleFunc("GET /api/errors", h.ListErrors)
	mux.HandleFunc("GET /api/stats", h.GetStats)
	mux.HandleFunc("GET /healthz", h.Health)
}

func (h *Handler) GetDashboard(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := h.queryContext(r)
	defer cancel()

	d, err := h.reports.Dashboard(ctx)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

func (h *Handler) ListRuns(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page, err := validation.ParsePositiveInt("page", q.Get("page"), validation.DefaultPage, math.MaxInt32)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	pageSize, err := validation.ParsePositiveInt("pageSize", q.Get("pageSize"), validation.DefaultPageSize, domain.MaxPageSize)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	ctx, cancel := h.queryContext(r)
	defer cancel()

	res, err := h.reports.ListRuns(ctx, page, pageSize)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *Handler) GetRun(w http.ResponseWriter, r *http.Request) {
	id, err := validation.ParseRunID(r.PathValue("id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	ctx, cancel := h.queryContext(r)
	defer cancel()

	detail, err := h.reports.RunDetail(ctx, id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, detail)
}

func (h *Handler) GetLatestRun(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := h.queryContext(r)
	defer cancel()

	latest, err := h.reports.LatestRun(ctx)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, latest)
}

func (h *Handler) ListReleases(w http.ResponseWriter, r *http.Request) {
	itemName, err := validation.NormalizeItemName(r.URL.Query().Get("itemName"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	ctx, cancel := h.queryContext(r)
	defer cancel()

	list, err := h.reports.Releases(ctx, itemName)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (h *Handler) ListErrors(w http.ResponseWriter, r *http.Request) {
	count, err := validation.ParsePositiveInt("count", r.URL.Query().Get("count"), validation.DefaultErrorCount, domain.MaxErrorCount)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	ctx, cancel := h.queryContext(r)
	defer cancel()

	list, err := h.reports.RecentErrors(ctx, count)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (h *Handler) GetStats(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := h.queryContext(r)
	defer cancel()

	st, err := h.reports.Stats(ctx)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := h.queryContext(r)
	defer cancel()

	if err := h.reports.Health(ctx); err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) queryContext(r *http.Request) (context.Context, context.CancelFunc) {
	if h.queryTimeout <= 0 {
		return context.WithCancel(r.Context())
	}
	return context.WithTimeout(r.Context(), h.queryTimeout)
}

// statusFor maps an error kind to its HTTP status. Client faults carry their
// message; server faults only carry the kind.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, domain.ErrInvalidRequest):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound, "not found"
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, "reporting store timed out"
	case errors.Is(err, context.Canceled):
		return http.StatusServiceUnavailable, "request cancelled"
	case errors.Is(err, domain.ErrUnavailable):
		return http.StatusServiceUnavailable, "reporting store unavailable"
	default:
		return http.StatusInternalServerError, "internal error"
	}
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, msg := statusFor(err)
	if status >= http.StatusInternalServerError {
		h.logger.Errorw("request.failed", map[string]any{"path": r.URL.Path, "status": status, "error": err.Error()})
	}
	writeJSON(w, status, map[string]string{"error": msg})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
