package rest

import (
	"errors"
	"mime"
	"net/http"
	"strings"

	"github.com/goccy/go-json"
	"go.uber.org/zap"

	"github.com/ewilliams-labs/moodmix/internal/core/domain"
)

type moodRequest struct {
	Text string `json:"text"`
}

// CreateMoodPlaylist handles POST /moods
func (h *Handler) CreateMoodPlaylist(w http.ResponseWriter, r *http.Request) {
	if !isJSONContentType(r) {
		writeError(w, http.StatusUnsupportedMediaType, "Content-Type must be application/json")
		return
	}

	// 1. Decode Request
	var req moodRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	// 2. Validate Input
	if strings.TrimSpace(req.Text) == "" {
		writeError(w, http.StatusBadRequest, domain.ErrNoMoodText.Error())
		return
	}

	// 3. Call Service
	h.runMu.Lock()
	res, err := h.svc.Generate(r.Context(), req.Text)
	h.runMu.Unlock()
	if err != nil {
		h.logger.Warn("rest: mood run failed", zap.Error(err))
		status := http.StatusInternalServerError
		if errors.Is(err, domain.ErrNoMoodText) {
			status = http.StatusBadRequest
		}
		writeError(w, status, domain.ErrorMessage(err))
		return
	}

	// 4. Respond
	writeJSON(w, http.StatusOK, res)
}

func isJSONContentType(r *http.Request) bool {
	ct := r.Header.Get("Content-Type")
	if ct == "" {
		return true
	}
	mediaType, _, err := mime.ParseMediaType(ct)
	return err == nil && mediaType == "application/json"
}
