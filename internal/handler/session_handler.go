package handler

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"time"

	"paydeck/timeclock/internal/apperr"
	"paydeck/timeclock/internal/blob"
	"paydeck/timeclock/internal/engine"
	"paydeck/timeclock/internal/models"
	"paydeck/timeclock/internal/repository"

	"go.uber.org/zap"
)

type SessionHandler struct {
	engine   *engine.SessionEngine
	sessions *repository.SessionRepository
	users    *repository.UserRepository
	blobs    blob.Store
	logger   *zap.Logger
}

func NewSessionHandler(
	engine *engine.SessionEngine,
	sessions *repository.SessionRepository,
	users *repository.UserRepository,
	blobs blob.Store,
	logger *zap.Logger,
) *SessionHandler {
	return &SessionHandler{
		engine:   engine,
		sessions: sessions,
		users:    users,
		blobs:    blobs,
		logger:   logger,
	}
}

func (h *SessionHandler) StartSession(w http.ResponseWriter, r *http.Request) {
	var req models.StartSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Error("Failed to decode request", zap.Error(err))
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	session, err := h.engine.Start(req.UserID, req.TaskID)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, session)
}

func (h *SessionHandler) StopSession(w http.ResponseWriter, r *http.Request) {
	var req models.StopSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Error("Failed to decode request", zap.Error(err))
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	session, err := h.engine.Stop(req.UserID, req.IdleSeconds, req.Notes)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, session)
}

func (h *SessionHandler) AddManualEntry(w http.ResponseWriter, r *http.Request) {
	var req models.ManualEntryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Error("Failed to decode request", zap.Error(err))
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	session, err := h.engine.AddManual(&req)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, session)
}

func (h *SessionHandler) GetActiveSession(w http.ResponseWriter, r *http.Request) {
	userID, ok := queryInt64(w, r, "user_id")
	if !ok {
		return
	}

	session, err := h.engine.GetActive(userID)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	if session == nil {
		http.Error(w, "No active session", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, session)
}

func (h *SessionHandler) DeleteSession(w http.ResponseWriter, r *http.Request) {
	id, ok := queryInt64(w, r, "id")
	if !ok {
		return
	}
	requestedBy, ok := queryInt64(w, r, "requested_by")
	if !ok {
		return
	}

	if err := h.engine.Delete(id, requestedBy); err != nil {
		writeError(w, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// UploadScreenshot stores the raw PNG body under the given key and
// returns the serving URL.
func (h *SessionHandler) UploadScreenshot(w http.ResponseWriter, r *http.Request) {
	key := r.URL.Query().Get("key")
	if key == "" {
		http.Error(w, "Missing key parameter", http.StatusBadRequest)
		return
	}

	data, err := io.ReadAll(r.Body)
	if err != nil || len(data) == 0 {
		http.Error(w, "Missing image body", http.StatusBadRequest)
		return
	}

	url, err := h.blobs.Upload(data, key)
	if err != nil {
		h.logger.Error("Failed to store screenshot", zap.Error(err))
		http.Error(w, "Failed to store screenshot", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"url": url})
}

func (h *SessionHandler) RegisterScreenshot(w http.ResponseWriter, r *http.Request) {
	var req struct {
		TimeSessionID int64     `json:"time_session_id"`
		ImageURL      string    `json:"image_url"`
		CapturedAt    time.Time `json:"captured_at"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Error("Failed to decode request", zap.Error(err))
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	session, err := h.sessions.GetByID(req.TimeSessionID)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	if session == nil {
		http.Error(w, "Session not found", http.StatusNotFound)
		return
	}

	shot, err := h.sessions.CreateScreenshot(req.TimeSessionID, req.ImageURL, req.CapturedAt)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, shot)
}

func (h *SessionHandler) GetUserSettings(w http.ResponseWriter, r *http.Request) {
	id, ok := queryInt64(w, r, "id")
	if !ok {
		return
	}

	user, err := h.users.GetByID(id)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	if user == nil {
		http.Error(w, "User not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func queryInt64(w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		http.Error(w, "Missing "+name+" parameter", http.StatusBadRequest)
		return 0, false
	}
	value, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		http.Error(w, "Invalid "+name+" parameter", http.StatusBadRequest)
		return 0, false
	}
	return value, true
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload)
}

// writeError maps the error taxonomy onto status codes. All four
// recoverable kinds become user-visible messages; anything else is a 500.
func writeError(w http.ResponseWriter, logger *zap.Logger, err error) {
	switch {
	case apperr.IsConflict(err):
		http.Error(w, err.Error(), http.StatusConflict)
	case apperr.IsNotFound(err):
		http.Error(w, err.Error(), http.StatusNotFound)
	case apperr.IsPermission(err):
		http.Error(w, err.Error(), http.StatusForbidden)
	case apperr.IsValidation(err):
		http.Error(w, err.Error(), http.StatusBadRequest)
	default:
		logger.Error("Internal error", zap.Error(err))
		http.Error(w, "Internal server error", http.StatusInternalServerError)
	}
}
