package models

import (
	"strings"
	"time"
)

// BreakNotePrefix marks a stop note as a break for display grouping.
const BreakNotePrefix = "[BREAK]"

// TimeSession is a single tracked or manually entered work period.
// EndTime == nil means the session is currently running.
type TimeSession struct {
	ID           int64        `json:"id"`
	UserID       int64        `json:"user_id"`
	TaskID       int64        `json:"task_id"`
	StartTime    time.Time    `json:"start_time"`
	EndTime      *time.Time   `json:"end_time,omitempty"`
	Duration     int64        `json:"duration"`      // seconds, set at stop
	IdleDuration int64        `json:"idle_duration"` // seconds subtracted at stop
	Notes        *string      `json:"notes,omitempty"`
	IsManual     bool         `json:"is_manual"`
	Screenshots  []Screenshot `json:"screenshots,omitempty"`
	CreatedAt    time.Time    `json:"created_at"`

	// Joined for display, not always populated.
	TaskName    string `json:"task_name,omitempty"`
	ProjectID   int64  `json:"project_id,omitempty"`
	ProjectName string `json:"project_name,omitempty"`
}

// IsRunning reports whether the session is still open.
func (s *TimeSession) IsRunning() bool {
	return s.EndTime == nil
}

// IsBreak reports whether the stop note tags the session as a break.
func (s *TimeSession) IsBreak() bool {
	return s.Notes != nil && strings.HasPrefix(*s.Notes, BreakNotePrefix)
}

// Screenshot is evidence captured while its owning session was running.
type Screenshot struct {
	ID            int64     `json:"id"`
	TimeSessionID int64     `json:"time_session_id"`
	ImageURL      string    `json:"image_url"`
	CapturedAt    time.Time `json:"captured_at"`
}

type StartSessionRequest struct {
	UserID int64 `json:"user_id"`
	TaskID int64 `json:"task_id"`
}

type StopSessionRequest struct {
	UserID      int64   `json:"user_id"`
	IdleSeconds int64   `json:"idle_seconds"`
	Notes       *string `json:"notes,omitempty"`
}

type ManualEntryRequest struct {
	UserID    int64     `json:"user_id"`
	TaskID    int64     `json:"task_id"`
	StartTime time.Time `json:"start_time"`
	EndTime   time.Time `json:"end_time"`
	Notes     *string   `json:"notes,omitempty"`
}
