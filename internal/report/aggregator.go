// Package report rolls closed (and optionally running) time sessions up
// into per-entity totals. Everything here is a pure function over session
// slices; callers fetch the slices from the store.
package report

import (
	"time"

	"paydeck/timeclock/internal/models"
)

const (
	minutesPerDay = 24 * 60
	secondsPerDay = 24 * 60 * 60
)

// SumByUser sums closed-session durations per user, in seconds.
// Running sessions contribute nothing here; see InProgressByUser.
func SumByUser(sessions []*models.TimeSession) map[int64]int64 {
	totals := make(map[int64]int64)
	for _, s := range sessions {
		if s.IsRunning() {
			continue
		}
		totals[s.UserID] += s.Duration
	}
	return totals
}

// SumByProject sums closed-session durations per project, in seconds.
func SumByProject(sessions []*models.TimeSession) map[int64]int64 {
	totals := make(map[int64]int64)
	for _, s := range sessions {
		if s.IsRunning() {
			continue
		}
		totals[s.ProjectID] += s.Duration
	}
	return totals
}

// SumByTask sums closed-session durations per task, in seconds.
func SumByTask(sessions []*models.TimeSession) map[int64]int64 {
	totals := make(map[int64]int64)
	for _, s := range sessions {
		if s.IsRunning() {
			continue
		}
		totals[s.TaskID] += s.Duration
	}
	return totals
}

// InProgressByUser returns live elapsed seconds per user for sessions
// still running at now. Open-ended sessions inside a historical range are
// counted against now, not the range end, which overcounts sessions that
// span past the query boundary. Display only, never persisted.
func InProgressByUser(sessions []*models.TimeSession, now time.Time) map[int64]int64 {
	totals := make(map[int64]int64)
	for _, s := range sessions {
		if !s.IsRunning() {
			continue
		}
		elapsed := int64(now.Sub(s.StartTime).Seconds())
		if elapsed < 0 {
			elapsed = 0
		}
		totals[s.UserID] += elapsed
	}
	return totals
}

// Split partitions closed totals by the manual flag. Tracked and manual
// time are reported in separate columns but summed for grand totals.
type Split struct {
	TrackedSeconds int64 `json:"tracked_seconds"`
	ManualSeconds  int64 `json:"manual_seconds"`
}

func (sp Split) Total() int64 {
	return sp.TrackedSeconds + sp.ManualSeconds
}

func SplitTrackedVsManual(sessions []*models.TimeSession) Split {
	var sp Split
	for _, s := range sessions {
		if s.IsRunning() {
			continue
		}
		if s.IsManual {
			sp.ManualSeconds += s.Duration
		} else {
			sp.TrackedSeconds += s.Duration
		}
	}
	return sp
}

// GroupByUser buckets sessions by owner, preserving order.
func GroupByUser(sessions []*models.TimeSession) map[int64][]*models.TimeSession {
	grouped := make(map[int64][]*models.TimeSession)
	for _, s := range sessions {
		grouped[s.UserID] = append(grouped[s.UserID], s)
	}
	return grouped
}

// TimelineBar positions one session on a 24-hour bar.
type TimelineBar struct {
	Session       *models.TimeSession `json:"session"`
	OffsetPercent float64             `json:"offset_percent"` // left edge, 0..100
	WidthPercent  float64             `json:"width_percent"`  // 0..100
	IsBreak       bool                `json:"is_break"`
}

// Timeline returns bars for the sessions overlapping the calendar day
// containing date (in date's location). Running sessions extend to now.
func Timeline(sessions []*models.TimeSession, date, now time.Time) []TimelineBar {
	dayStart := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, date.Location())
	dayEnd := dayStart.Add(24 * time.Hour)

	var bars []TimelineBar
	for _, s := range sessions {
		end := now
		if s.EndTime != nil {
			end = *s.EndTime
		}
		if !s.StartTime.Before(dayEnd) || !end.After(dayStart) {
			continue
		}

		start := s.StartTime.In(date.Location())
		minutesSinceMidnight := float64(start.Hour()*60+start.Minute()) + float64(start.Second())/60
		elapsed := end.Sub(s.StartTime).Seconds()
		if elapsed < 0 {
			elapsed = 0
		}

		bars = append(bars, TimelineBar{
			Session:       s,
			OffsetPercent: minutesSinceMidnight / minutesPerDay * 100,
			WidthPercent:  elapsed / secondsPerDay * 100,
			IsBreak:       s.IsBreak(),
		})
	}
	return bars
}

// PayrollEntry is one user's payable total. Rate and currency are
// presentation inputs, not persisted per calculation.
type PayrollEntry struct {
	UserID       int64   `json:"user_id"`
	TotalSeconds int64   `json:"total_seconds"`
	Amount       float64 `json:"amount"`
}

// Payroll computes per-user totals at hourlyRate.
func Payroll(sessions []*models.TimeSession, hourlyRate float64) map[int64]PayrollEntry {
	entries := make(map[int64]PayrollEntry)
	for userID, seconds := range SumByUser(sessions) {
		entries[userID] = PayrollEntry{
			UserID:       userID,
			TotalSeconds: seconds,
			Amount:       float64(seconds) / 3600 * hourlyRate,
		}
	}
	return entries
}
