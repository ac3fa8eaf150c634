// Package engine enforces the session lifecycle: at most one running
// session per user, duration reconciliation at stop, and the permission
// rules for starting, back-filling and deleting sessions.
package engine

import (
	"fmt"
	"time"

	"paydeck/timeclock/internal/apperr"
	"paydeck/timeclock/internal/models"
	"paydeck/timeclock/internal/repository"

	"go.uber.org/zap"
)

type SessionEngine struct {
	sessions *repository.SessionRepository
	users    *repository.UserRepository
	tasks    *repository.TaskRepository
	logger   *zap.Logger
	now      func() time.Time
}

func NewSessionEngine(
	sessions *repository.SessionRepository,
	users *repository.UserRepository,
	tasks *repository.TaskRepository,
	logger *zap.Logger,
) *SessionEngine {
	return &SessionEngine{
		sessions: sessions,
		users:    users,
		tasks:    tasks,
		logger:   logger,
		now:      time.Now,
	}
}

// SetClock overrides the time source. Used by tests.
func (e *SessionEngine) SetClock(now func() time.Time) {
	e.now = now
}

// Start opens a running session for the user on the task. The store's
// partial unique index decides conflicts, so two concurrent starts yield
// exactly one success and one ConflictError.
func (e *SessionEngine) Start(userID, taskID int64) (*models.TimeSession, error) {
	if _, err := e.checkTrackable(taskID, userID); err != nil {
		return nil, err
	}

	session, err := e.sessions.CreateRunning(userID, taskID, e.now())
	if err == repository.ErrActiveSessionExists {
		return nil, &apperr.ConflictError{
			Message: fmt.Sprintf("user %d already has an active session", userID),
		}
	}
	if err != nil {
		return nil, err
	}

	e.logger.Info("Session started",
		zap.Int64("session_id", session.ID),
		zap.Int64("user_id", userID),
		zap.Int64("task_id", taskID),
	)
	return session, nil
}

// Stop closes the user's running session. Duration is wall-clock elapsed
// minus reported idle seconds, floored at zero: idle can exceed elapsed
// under clock skew or delayed idle reporting.
func (e *SessionEngine) Stop(userID int64, idleSeconds int64, notes *string) (*models.TimeSession, error) {
	session, err := e.sessions.FindActiveByUser(userID)
	if err != nil {
		return nil, err
	}
	if session == nil {
		return nil, &apperr.NotFoundError{Message: "no active session"}
	}

	endTime := e.now()
	elapsed := int64(endTime.Sub(session.StartTime).Seconds())
	duration := elapsed - idleSeconds
	if duration < 0 {
		duration = 0
	}

	err = e.sessions.Close(session.ID, endTime, duration, idleSeconds, notes)
	if err == repository.ErrSessionNotRunning {
		// Closed between the read and the update (e.g. a forced stop
		// racing a manual one).
		return nil, &apperr.NotFoundError{Message: "no active session"}
	}
	if err != nil {
		return nil, err
	}

	end := endTime.UTC()
	session.EndTime = &end
	session.Duration = duration
	session.IdleDuration = idleSeconds
	session.Notes = notes

	e.logger.Info("Session stopped",
		zap.Int64("session_id", session.ID),
		zap.Int64("user_id", userID),
		zap.Int64("duration_seconds", duration),
		zap.Int64("idle_seconds", idleSeconds),
	)
	return session, nil
}

// AddManual back-fills an already-closed session. Overlap with existing
// sessions is intentionally not rejected; the assignment check is the
// same one Start uses.
func (e *SessionEngine) AddManual(req *models.ManualEntryRequest) (*models.TimeSession, error) {
	if !req.EndTime.After(req.StartTime) {
		return nil, &apperr.ValidationError{Message: "end time must be after start time"}
	}

	if _, err := e.checkTrackable(req.TaskID, req.UserID); err != nil {
		return nil, err
	}

	duration := int64(req.EndTime.Sub(req.StartTime).Seconds())
	session, err := e.sessions.CreateClosed(req.UserID, req.TaskID, req.StartTime, req.EndTime, duration, req.Notes)
	if err != nil {
		return nil, err
	}

	e.logger.Info("Manual entry added",
		zap.Int64("session_id", session.ID),
		zap.Int64("user_id", req.UserID),
		zap.Int64("duration_seconds", duration),
	)
	return session, nil
}

// GetActive returns the user's running session with task/project joined,
// or nil when nothing is running.
func (e *SessionEngine) GetActive(userID int64) (*models.TimeSession, error) {
	return e.sessions.FindActiveByUser(userID)
}

// Delete removes a session and its screenshots. Allowed for the owner and
// for managers.
func (e *SessionEngine) Delete(sessionID, requestingUserID int64) error {
	session, err := e.sessions.GetByID(sessionID)
	if err != nil {
		return err
	}
	if session == nil {
		return &apperr.NotFoundError{Message: fmt.Sprintf("session %d not found", sessionID)}
	}

	if session.UserID != requestingUserID {
		requester, err := e.users.GetByID(requestingUserID)
		if err != nil {
			return err
		}
		if requester == nil || !models.IsManager(requester.Role) {
			return &apperr.PermissionError{Message: "not the session owner or a manager"}
		}
	}

	// Screenshots first: they reference the session.
	if err := e.sessions.DeleteScreenshotsBySession(sessionID); err != nil {
		return err
	}
	if err := e.sessions.Delete(sessionID); err != nil {
		return err
	}

	e.logger.Info("Session deleted",
		zap.Int64("session_id", sessionID),
		zap.Int64("requested_by", requestingUserID),
	)
	return nil
}

// checkTrackable verifies the task exists and the user may track against it.
func (e *SessionEngine) checkTrackable(taskID, userID int64) (*models.Task, error) {
	task, err := e.tasks.GetByID(taskID)
	if err != nil {
		return nil, err
	}
	if task == nil {
		return nil, &apperr.NotFoundError{Message: fmt.Sprintf("task %d not found", taskID)}
	}
	if !task.IsAssignable(userID) {
		return nil, &apperr.PermissionError{
			Message: fmt.Sprintf("user %d is not assigned to task %d", userID, taskID),
		}
	}
	return task, nil
}
