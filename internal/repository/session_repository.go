package repository

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"paydeck/timeclock/internal/models"
)

// ErrActiveSessionExists is returned when an insert trips the partial
// unique index guarding the one-running-session-per-user invariant.
var ErrActiveSessionExists = errors.New("active session already exists")

// ErrSessionNotRunning is returned when a close targets a session that is
// already closed (e.g. a forced stop racing a manual stop).
var ErrSessionNotRunning = errors.New("session is not running")

type SessionRepository struct {
	db *sql.DB
}

func NewSessionRepository(db *sql.DB) *SessionRepository {
	return &SessionRepository{db: db}
}

// CreateRunning inserts an open session. The partial unique index makes
// the "is there already an open session" check atomic with the insert:
// of two concurrent starts exactly one succeeds.
func (r *SessionRepository) CreateRunning(userID, taskID int64, startTime time.Time) (*models.TimeSession, error) {
	query := `
		INSERT INTO time_sessions (user_id, task_id, start_time, end_time, is_manual)
		VALUES (?, ?, ?, NULL, 0)
		RETURNING id, created_at
	`

	var id int64
	var createdAt time.Time
	err := r.db.QueryRow(query, userID, taskID, startTime.UTC()).Scan(&id, &createdAt)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return nil, ErrActiveSessionExists
		}
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	return &models.TimeSession{
		ID:        id,
		UserID:    userID,
		TaskID:    taskID,
		StartTime: startTime.UTC(),
		CreatedAt: createdAt,
	}, nil
}

// CreateClosed inserts an already-closed session (manual entry).
func (r *SessionRepository) CreateClosed(userID, taskID int64, startTime, endTime time.Time, duration int64, notes *string) (*models.TimeSession, error) {
	query := `
		INSERT INTO time_sessions (user_id, task_id, start_time, end_time, duration, idle_duration, notes, is_manual)
		VALUES (?, ?, ?, ?, ?, 0, ?, 1)
		RETURNING id, created_at
	`

	var id int64
	var createdAt time.Time
	err := r.db.QueryRow(query, userID, taskID, startTime.UTC(), endTime.UTC(), duration, notes).Scan(&id, &createdAt)
	if err != nil {
		return nil, fmt.Errorf("failed to create manual session: %w", err)
	}

	end := endTime.UTC()
	return &models.TimeSession{
		ID:        id,
		UserID:    userID,
		TaskID:    taskID,
		StartTime: startTime.UTC(),
		EndTime:   &end,
		Duration:  duration,
		Notes:     notes,
		IsManual:  true,
		CreatedAt: createdAt,
	}, nil
}

// Close stamps end time, duration, idle duration and notes on a running
// session. Returns ErrSessionNotRunning if it was already closed.
func (r *SessionRepository) Close(id int64, endTime time.Time, duration, idleDuration int64, notes *string) error {
	result, err := r.db.Exec(`
		UPDATE time_sessions
		SET end_time = ?, duration = ?, idle_duration = ?, notes = ?
		WHERE id = ? AND end_time IS NULL
	`, endTime.UTC(), duration, idleDuration, notes, id)
	if err != nil {
		return fmt.Errorf("failed to close session: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrSessionNotRunning
	}
	return nil
}

// FindActiveByUser returns the running session with its task and project
// joined for display, or nil when none is running.
func (r *SessionRepository) FindActiveByUser(userID int64) (*models.TimeSession, error) {
	query := `
		SELECT s.id, s.user_id, s.task_id, s.start_time, s.end_time, s.duration,
		       s.idle_duration, s.notes, s.is_manual, s.created_at,
		       t.name, t.project_id, p.name
		FROM time_sessions s
		JOIN tasks t ON t.id = s.task_id
		JOIN projects p ON p.id = t.project_id
		WHERE s.user_id = ? AND s.end_time IS NULL
	`

	session, err := scanSession(r.db.QueryRow(query, userID))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find active session: %w", err)
	}
	return session, nil
}

func (r *SessionRepository) GetByID(id int64) (*models.TimeSession, error) {
	query := `
		SELECT s.id, s.user_id, s.task_id, s.start_time, s.end_time, s.duration,
		       s.idle_duration, s.notes, s.is_manual, s.created_at,
		       t.name, t.project_id, p.name
		FROM time_sessions s
		JOIN tasks t ON t.id = s.task_id
		JOIN projects p ON p.id = t.project_id
		WHERE s.id = ?
	`

	session, err := scanSession(r.db.QueryRow(query, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	return session, nil
}

// FindByUserAndRange returns the user's sessions whose start falls in
// [start, end), newest last.
func (r *SessionRepository) FindByUserAndRange(userID int64, start, end time.Time) ([]*models.TimeSession, error) {
	query := sessionSelect + `
		WHERE s.user_id = ? AND s.start_time >= ? AND s.start_time < ?
		ORDER BY s.start_time ASC
	`
	return r.querySessions(query, userID, start.UTC(), end.UTC())
}

// FindByRange returns all users' sessions whose start falls in [start, end).
func (r *SessionRepository) FindByRange(start, end time.Time) ([]*models.TimeSession, error) {
	query := sessionSelect + `
		WHERE s.start_time >= ? AND s.start_time < ?
		ORDER BY s.user_id ASC, s.start_time ASC
	`
	return r.querySessions(query, start.UTC(), end.UTC())
}

// Delete removes a session. Dependent screenshots must be deleted first
// (DeleteScreenshotsBySession) to satisfy referential integrity.
func (r *SessionRepository) Delete(id int64) error {
	result, err := r.db.Exec("DELETE FROM time_sessions WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func (r *SessionRepository) DeleteScreenshotsBySession(sessionID int64) error {
	_, err := r.db.Exec("DELETE FROM screenshots WHERE time_session_id = ?", sessionID)
	if err != nil {
		return fmt.Errorf("failed to delete screenshots: %w", err)
	}
	return nil
}

func (r *SessionRepository) CreateScreenshot(sessionID int64, imageURL string, capturedAt time.Time) (*models.Screenshot, error) {
	var id int64
	err := r.db.QueryRow(`
		INSERT INTO screenshots (time_session_id, image_url, captured_at)
		VALUES (?, ?, ?)
		RETURNING id
	`, sessionID, imageURL, capturedAt.UTC()).Scan(&id)
	if err != nil {
		return nil, fmt.Errorf("failed to create screenshot: %w", err)
	}

	return &models.Screenshot{
		ID:            id,
		TimeSessionID: sessionID,
		ImageURL:      imageURL,
		CapturedAt:    capturedAt.UTC(),
	}, nil
}

func (r *SessionRepository) ListScreenshotsBySession(sessionID int64) ([]models.Screenshot, error) {
	rows, err := r.db.Query(`
		SELECT id, time_session_id, image_url, captured_at
		FROM screenshots
		WHERE time_session_id = ?
		ORDER BY captured_at ASC
	`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to query screenshots: %w", err)
	}
	defer rows.Close()

	var shots []models.Screenshot
	for rows.Next() {
		var s models.Screenshot
		if err := rows.Scan(&s.ID, &s.TimeSessionID, &s.ImageURL, &s.CapturedAt); err != nil {
			return nil, fmt.Errorf("failed to scan screenshot: %w", err)
		}
		shots = append(shots, s)
	}
	return shots, rows.Err()
}

const sessionSelect = `
	SELECT s.id, s.user_id, s.task_id, s.start_time, s.end_time, s.duration,
	       s.idle_duration, s.notes, s.is_manual, s.created_at,
	       t.name, t.project_id, p.name
	FROM time_sessions s
	JOIN tasks t ON t.id = s.task_id
	JOIN projects p ON p.id = t.project_id
`

func (r *SessionRepository) querySessions(query string, args ...interface{}) ([]*models.TimeSession, error) {
	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query sessions: %w", err)
	}
	defer rows.Close()

	var sessions []*models.TimeSession
	for rows.Next() {
		session, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan session: %w", err)
		}
		sessions = append(sessions, session)
	}
	return sessions, rows.Err()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanSession(row rowScanner) (*models.TimeSession, error) {
	var s models.TimeSession
	var endTime sql.NullTime
	var notes sql.NullString

	err := row.Scan(
		&s.ID,
		&s.UserID,
		&s.TaskID,
		&s.StartTime,
		&endTime,
		&s.Duration,
		&s.IdleDuration,
		&notes,
		&s.IsManual,
		&s.CreatedAt,
		&s.TaskName,
		&s.ProjectID,
		&s.ProjectName,
	)
	if err != nil {
		return nil, err
	}

	if endTime.Valid {
		t := endTime.Time
		s.EndTime = &t
	}
	if notes.Valid {
		n := notes.String
		s.Notes = &n
	}
	return &s, nil
}
