// Package idle watches system idle time while a session is running and
// force-stops the session once the user's auto-stop limit is crossed.
package idle

import (
	"sync"
	"time"

	"paydeck/timeclock/internal/apperr"
	"paydeck/timeclock/internal/models"

	"go.uber.org/zap"
)

// AutoStopNote is the synthetic note a forced stop writes; the UI's
// notes-required rule does not apply to auto-stops.
const AutoStopNote = "Auto-stopped due to inactivity"

// DefaultAwayThreshold is the idle time after which the user is shown as
// away. Display only, no session effect.
const DefaultAwayThreshold = 60 * time.Second

// Sessions is the single source of truth both background loops read the
// current active session through. Implemented by the engine and by the
// backend HTTP client.
type Sessions interface {
	GetActive(userID int64) (*models.TimeSession, error)
	Stop(userID int64, idleSeconds int64, notes *string) (*models.TimeSession, error)
}

// IdleSource supplies seconds since last system input.
type IdleSource interface {
	SystemIdleSeconds() (int64, error)
}

// Notifier surfaces the auto-stop to the user.
type Notifier interface {
	Notify(title, message string)
}

// Monitor polls the idle source while a session is active.
type Monitor struct {
	sessions      Sessions
	source        IdleSource
	notifier      Notifier
	userID        int64
	autoStopLimit time.Duration
	awayThreshold time.Duration
	pollInterval  time.Duration
	logger        *zap.Logger

	away     bool
	mu       sync.RWMutex
	stopChan chan struct{}
	wg       sync.WaitGroup
}

func NewMonitor(
	sessions Sessions,
	source IdleSource,
	notifier Notifier,
	userID int64,
	autoStopLimit time.Duration,
	pollInterval time.Duration,
	logger *zap.Logger,
) *Monitor {
	return &Monitor{
		sessions:      sessions,
		source:        source,
		notifier:      notifier,
		userID:        userID,
		autoStopLimit: autoStopLimit,
		awayThreshold: DefaultAwayThreshold,
		pollInterval:  pollInterval,
		logger:        logger,
		stopChan:      make(chan struct{}),
	}
}

// SetAwayThreshold overrides the away display threshold. Call before Start.
func (m *Monitor) SetAwayThreshold(d time.Duration) {
	m.awayThreshold = d
}

// Start begins the poll loop.
func (m *Monitor) Start() {
	m.wg.Add(1)
	go m.pollLoop()

	m.logger.Info("Idle monitor started",
		zap.Int64("user_id", m.userID),
		zap.Duration("auto_stop_limit", m.autoStopLimit),
		zap.Duration("poll_interval", m.pollInterval),
	)
}

// Stop ends the poll loop.
func (m *Monitor) Stop() {
	m.mu.Lock()
	select {
	case <-m.stopChan:
		// Already closed
		m.mu.Unlock()
		return
	default:
		close(m.stopChan)
	}
	m.mu.Unlock()

	m.wg.Wait()
	m.logger.Info("Idle monitor stopped")
}

// Away reports whether the user has been idle past the away threshold.
func (m *Monitor) Away() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.away
}

func (m *Monitor) pollLoop() {
	defer m.wg.Done()

	ticker := time.NewTicker(m.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.tick()
		case <-m.stopChan:
			return
		}
	}
}

// tick re-reads the active session every time, never a stale snapshot:
// the user may stop the timer between one tick and the next.
func (m *Monitor) tick() {
	session, err := m.sessions.GetActive(m.userID)
	if err != nil {
		m.logger.Warn("Failed to read active session", zap.Error(err))
		return
	}
	if session == nil {
		m.setAway(false)
		return
	}

	idleSeconds, err := m.source.SystemIdleSeconds()
	if err != nil {
		m.logger.Warn("Failed to read idle time", zap.Error(err))
		return
	}

	m.setAway(time.Duration(idleSeconds)*time.Second >= m.awayThreshold)

	if time.Duration(idleSeconds)*time.Second < m.autoStopLimit {
		return
	}

	m.forceStop(session, idleSeconds)
}

func (m *Monitor) forceStop(session *models.TimeSession, idleSeconds int64) {
	notes := AutoStopNote
	_, err := m.sessions.Stop(m.userID, idleSeconds, &notes)
	if apperr.IsNotFound(err) {
		// Session was stopped manually between the read and the call.
		return
	}
	if err != nil {
		m.logger.Error("Forced stop failed", zap.Error(err))
		return
	}

	m.logger.Info("Session auto-stopped due to inactivity",
		zap.Int64("session_id", session.ID),
		zap.Int64("idle_seconds", idleSeconds),
	)
	if m.notifier != nil {
		m.notifier.Notify("Timer stopped", "Your session was stopped after inactivity")
	}
}

func (m *Monitor) setAway(away bool) {
	m.mu.Lock()
	changed := m.away != away
	m.away = away
	m.mu.Unlock()

	if changed {
		m.logger.Debug("Away status changed", zap.Bool("away", away))
	}
}
