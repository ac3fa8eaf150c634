// Package router wires the HTTP surface onto the handlers.
package router

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"paydeck/timeclock/internal/handler"

	"go.uber.org/zap"
)

// New builds the full route table for the backend daemon. blobDir, when
// non-empty, is served under /blobs/ so locally stored screenshots are
// reachable at the URLs the blob store hands out.
func New(sessions *handler.SessionHandler, reports *handler.ReportHandler, blobDir string, logger *zap.Logger) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/health", handleHealth)

	mux.HandleFunc("/api/v1/sessions/start", method(http.MethodPost, sessions.StartSession))
	mux.HandleFunc("/api/v1/sessions/stop", method(http.MethodPost, sessions.StopSession))
	mux.HandleFunc("/api/v1/sessions/manual", method(http.MethodPost, sessions.AddManualEntry))
	mux.HandleFunc("/api/v1/sessions/active", method(http.MethodGet, sessions.GetActiveSession))
	mux.HandleFunc("/api/v1/sessions/delete", method(http.MethodDelete, sessions.DeleteSession))

	mux.HandleFunc("/api/v1/screenshots/upload", method(http.MethodPost, sessions.UploadScreenshot))
	mux.HandleFunc("/api/v1/screenshots", method(http.MethodPost, sessions.RegisterScreenshot))

	mux.HandleFunc("/api/v1/users/settings", method(http.MethodGet, sessions.GetUserSettings))

	mux.HandleFunc("/api/v1/reports/summary", method(http.MethodGet, reports.GetSummary))
	mux.HandleFunc("/api/v1/reports/timeline", method(http.MethodGet, reports.GetTimeline))
	mux.HandleFunc("/api/v1/reports/payroll", method(http.MethodGet, reports.GetPayroll))
	mux.HandleFunc("/api/v1/reports/daily/run", method(http.MethodPost, reports.RunDailyReport))

	if blobDir != "" {
		mux.Handle("/blobs/", http.StripPrefix("/blobs/", http.FileServer(http.Dir(blobDir))))
	}

	return logRequests(mux, logger)
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"status":    "ok",
		"timestamp": time.Now().Unix(),
	})
}

func method(want string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != want {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		next(w, r)
	}
}

// logRequests logs every API request with its status and latency. Blob
// fetches are skipped to keep the log quiet.
func logRequests(next http.Handler, logger *zap.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.URL.Path, "/blobs/") {
			next.ServeHTTP(w, r)
			return
		}

		started := time.Now()
		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(recorder, r)

		logger.Info("Request handled",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", recorder.status),
			zap.Duration("duration", time.Since(started)),
		)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}
