package handler

import (
	"net/http"
	"strconv"
	"time"

	"paydeck/timeclock/internal/job"
	"paydeck/timeclock/internal/models"
	"paydeck/timeclock/internal/report"
	"paydeck/timeclock/internal/repository"

	"go.uber.org/zap"
)

type ReportHandler struct {
	sessions   *repository.SessionRepository
	dailyJob   *job.DailyReport
	hourlyRate float64
	logger     *zap.Logger
}

func NewReportHandler(
	sessions *repository.SessionRepository,
	dailyJob *job.DailyReport,
	hourlyRate float64,
	logger *zap.Logger,
) *ReportHandler {
	return &ReportHandler{
		sessions:   sessions,
		dailyJob:   dailyJob,
		hourlyRate: hourlyRate,
		logger:     logger,
	}
}

type summaryResponse struct {
	Split      report.Split    `json:"split"`
	ByUser     map[int64]int64 `json:"by_user"`
	ByProject  map[int64]int64 `json:"by_project"`
	ByTask     map[int64]int64 `json:"by_task"`
	InProgress map[int64]int64 `json:"in_progress"`
}

// GetSummary returns tracked/manual splits and per-entity totals for the
// range. In-progress seconds are a display-only addend.
func (h *ReportHandler) GetSummary(w http.ResponseWriter, r *http.Request) {
	start, end, ok := queryRange(w, r)
	if !ok {
		return
	}

	var sessions []*models.TimeSession
	var err error
	if raw := r.URL.Query().Get("user_id"); raw != "" {
		userID, parseErr := strconv.ParseInt(raw, 10, 64)
		if parseErr != nil {
			http.Error(w, "Invalid user_id parameter", http.StatusBadRequest)
			return
		}
		sessions, err = h.sessions.FindByUserAndRange(userID, start, end)
	} else {
		sessions, err = h.sessions.FindByRange(start, end)
	}
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, summaryResponse{
		Split:      report.SplitTrackedVsManual(sessions),
		ByUser:     report.SumByUser(sessions),
		ByProject:  report.SumByProject(sessions),
		ByTask:     report.SumByTask(sessions),
		InProgress: report.InProgressByUser(sessions, time.Now()),
	})
}

// GetTimeline returns the 24-hour bar layout for one user and day.
func (h *ReportHandler) GetTimeline(w http.ResponseWriter, r *http.Request) {
	userID, ok := queryInt64(w, r, "user_id")
	if !ok {
		return
	}

	date, err := time.Parse("2006-01-02", r.URL.Query().Get("date"))
	if err != nil {
		http.Error(w, "Invalid date parameter, want YYYY-MM-DD", http.StatusBadRequest)
		return
	}

	// Fetch a day of margin on both sides to catch sessions that span
	// midnight; Timeline filters on actual overlap.
	sessions, err := h.sessions.FindByUserAndRange(userID, date.AddDate(0, 0, -1), date.AddDate(0, 0, 2))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, report.Timeline(sessions, date, time.Now()))
}

// GetPayroll returns per-user payable totals for the range. The rate may
// be overridden per request; it is never persisted.
func (h *ReportHandler) GetPayroll(w http.ResponseWriter, r *http.Request) {
	start, end, ok := queryRange(w, r)
	if !ok {
		return
	}

	rate := h.hourlyRate
	if raw := r.URL.Query().Get("rate"); raw != "" {
		parsed, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			http.Error(w, "Invalid rate parameter", http.StatusBadRequest)
			return
		}
		rate = parsed
	}

	sessions, err := h.sessions.FindByRange(start, end)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, report.Payroll(sessions, rate))
}

// RunDailyReport is the manual "send now" trigger; it invokes the same
// entry function as the scheduler.
func (h *ReportHandler) RunDailyReport(w http.ResponseWriter, r *http.Request) {
	if err := h.dailyJob.Run(); err != nil {
		h.logger.Error("Manual daily report run failed", zap.Error(err))
		http.Error(w, "Daily report run failed", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "sent"})
}

func queryRange(w http.ResponseWriter, r *http.Request) (time.Time, time.Time, bool) {
	start, err := time.Parse(time.RFC3339, r.URL.Query().Get("start"))
	if err != nil {
		http.Error(w, "Invalid start parameter, want RFC3339", http.StatusBadRequest)
		return time.Time{}, time.Time{}, false
	}
	end, err := time.Parse(time.RFC3339, r.URL.Query().Get("end"))
	if err != nil {
		http.Error(w, "Invalid end parameter, want RFC3339", http.StatusBadRequest)
		return time.Time{}, time.Time{}, false
	}
	return start, end, true
}
