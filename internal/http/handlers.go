package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"mikrotik-geo-visualizer/internal/domain"
	"mikrotik-geo-visualizer/internal/logger"
)

// Collector produces the export records for one request.
type Collector interface {
	Collect(ctx context.Context) ([]domain.ExportRecord, error)
}

type Handler struct {
	collector Collector
	timeout   time.Duration
	log       logger.Logger
}

func NewHandler(collector Collector, timeout time.Duration, log logger.Logger) *Handler {
	return &Handler{collector: collector, timeout: timeout, log: log}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(middleware.GetHead)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "HEAD", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	// Every path serves the same export.
	r.Get("/*", h.export)

	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]any{"error": "method not allowed"})
	})

	return r
}

func (h *Handler) export(w http.ResponseWriter, r *http.Request) {
	// Query parameters are reserved for filtering and not used yet.
	_ = r.URL.Query()

	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	res, err := h.collector.Collect(ctx)
	if err != nil {
		if errors.Is(err, context.Canceled) && r.Context().Err() != nil {
			// client went away, nobody to answer
			return
		}
		code := statusFor(err)
		h.log.WithFields(map[string]any{
			"status":     code,
			"request_id": middleware.GetReqID(r.Context()),
		}).Error(err)
		writeJSON(w, code, map[string]any{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// statusFor maps collector errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrNotInitialized):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusBadGateway
	}
}
