package rest

import (
	"context"
	"net/http"
	"sync"

	"github.com/goccy/go-json"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/ewilliams-labs/moodmix/internal/core/domain"
)

// MoodService turns mood text into a playlist.
type MoodService interface {
	Generate(ctx context.Context, text string) (domain.Result, error)
}

// Handler manages the HTTP interface for our application.
type Handler struct {
	svc    MoodService
	router *http.ServeMux // Standard library router
	logger *zap.Logger

	// runs share the on-disk stores, so only one executes at a time.
	runMu sync.Mutex
}

// NewHandler initializes the HTTP adapter and sets up routes.
func NewHandler(svc MoodService, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	h := &Handler{
		svc:    svc,
		router: http.NewServeMux(),
		logger: logger,
	}

	// Register Routes
	h.routes()

	return h
}

// ServeHTTP satisfies the http.Handler interface.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.router.ServeHTTP(w, r)
}

// routes defines the mapping between URLs and methods.
func (h *Handler) routes() {
	h.router.HandleFunc("GET /health", h.HealthCheck)
	h.router.HandleFunc("POST /moods", h.CreateMoodPlaylist)
	h.router.Handle("GET /metrics", promhttp.Handler())
}

// HealthCheck is a simple endpoint to verify the API is running.
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "message": "MoodMix is live 🎶"})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, domain.ErrorResult{Error: msg})
}
