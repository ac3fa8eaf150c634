// Package screenshot captures randomized-interval evidence images while a
// session is running. Intervals are drawn uniformly from [min, max) so
// capture timing cannot be predicted.
package screenshot

import (
	"fmt"
	"math/rand"
	"sync"
	"time"

	"paydeck/timeclock/internal/models"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// DefaultWatchInterval is how often the scheduler checks for a newly
// started session when no capture chain is running.
const DefaultWatchInterval = 5 * time.Second

// Sessions is the shared source of truth for the current active session.
type Sessions interface {
	GetActive(userID int64) (*models.TimeSession, error)
}

// Capturer grabs one PNG per connected display.
type Capturer interface {
	CaptureDisplays() ([][]byte, error)
}

// BlobStore stores an image and returns its public URL.
type BlobStore interface {
	Upload(data []byte, key string) (string, error)
}

// Recorder links an uploaded image to its session.
type Recorder interface {
	RegisterScreenshot(sessionID int64, imageURL string, capturedAt time.Time) error
}

// Requeuer receives uploads that failed mid-flight for later retry.
type Requeuer interface {
	EnqueueUpload(sessionID int64, blobKey string, data []byte) error
}

// Scheduler runs the capture chain. While a session is active it waits a
// random interval, captures, uploads and registers; a stopped session ends
// the chain and a fresh session starts a new one. Capture and upload
// failures are logged and never surfaced to the user.
type Scheduler struct {
	sessions Sessions
	capturer Capturer
	blobs    BlobStore
	recorder Recorder
	requeue  Requeuer // optional
	userID   int64

	minInterval   time.Duration
	maxInterval   time.Duration
	watchInterval time.Duration
	logger        *zap.Logger

	chainRunning bool
	mu           sync.Mutex
	stopChan     chan struct{}
	wg           sync.WaitGroup
}

func NewScheduler(
	sessions Sessions,
	capturer Capturer,
	blobs BlobStore,
	recorder Recorder,
	requeue Requeuer,
	userID int64,
	minInterval, maxInterval time.Duration,
	logger *zap.Logger,
) *Scheduler {
	return &Scheduler{
		sessions:      sessions,
		capturer:      capturer,
		blobs:         blobs,
		recorder:      recorder,
		requeue:       requeue,
		userID:        userID,
		minInterval:   minInterval,
		maxInterval:   maxInterval,
		watchInterval: DefaultWatchInterval,
		logger:        logger,
		stopChan:      make(chan struct{}),
	}
}

// Start begins watching for active sessions.
func (s *Scheduler) Start() {
	s.wg.Add(1)
	go s.watchLoop()

	s.logger.Info("Screenshot scheduler started",
		zap.Int64("user_id", s.userID),
		zap.Duration("min_interval", s.minInterval),
		zap.Duration("max_interval", s.maxInterval),
	)
}

// Stop ends the watcher and any running chain.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	select {
	case <-s.stopChan:
		// Already closed
		s.mu.Unlock()
		return
	default:
		close(s.stopChan)
	}
	s.mu.Unlock()

	s.wg.Wait()
	s.logger.Info("Screenshot scheduler stopped")
}

func (s *Scheduler) watchLoop() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.watchInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.maybeStartChain()
		case <-s.stopChan:
			return
		}
	}
}

func (s *Scheduler) maybeStartChain() {
	s.mu.Lock()
	running := s.chainRunning
	s.mu.Unlock()
	if running {
		return
	}

	session, err := s.sessions.GetActive(s.userID)
	if err != nil {
		s.logger.Warn("Failed to read active session", zap.Error(err))
		return
	}
	if session == nil {
		return
	}

	s.mu.Lock()
	s.chainRunning = true
	s.mu.Unlock()

	s.wg.Add(1)
	go s.runChain()
}

// runChain waits, re-checks the session, captures, and repeats. The chain
// reschedules after every cycle, success or failure, and ends only when no
// session is running.
func (s *Scheduler) runChain() {
	defer s.wg.Done()
	defer func() {
		s.mu.Lock()
		s.chainRunning = false
		s.mu.Unlock()
	}()

	for {
		timer := time.NewTimer(s.randomInterval())
		select {
		case <-timer.C:
		case <-s.stopChan:
			timer.Stop()
			return
		}

		// The session may have stopped while we slept.
		session, err := s.sessions.GetActive(s.userID)
		if err != nil {
			s.logger.Warn("Failed to read active session", zap.Error(err))
			continue
		}
		if session == nil {
			return
		}

		s.captureCycle(session)
	}
}

func (s *Scheduler) captureCycle(session *models.TimeSession) {
	images, err := s.capturer.CaptureDisplays()
	if err != nil {
		s.logger.Warn("Screenshot capture failed", zap.Error(err))
		return
	}

	capturedAt := time.Now()
	for _, img := range images {
		key := fmt.Sprintf("%d/%d/%s.png", s.userID, session.ID, uuid.New().String())

		url, err := s.blobs.Upload(img, key)
		if err != nil {
			s.logger.Warn("Screenshot upload failed",
				zap.Error(err),
				zap.String("key", key),
			)
			if s.requeue != nil {
				if qErr := s.requeue.EnqueueUpload(session.ID, key, img); qErr != nil {
					s.logger.Error("Failed to queue screenshot for retry", zap.Error(qErr))
				}
			}
			continue
		}

		if err := s.recorder.RegisterScreenshot(session.ID, url, capturedAt); err != nil {
			s.logger.Warn("Failed to register screenshot",
				zap.Error(err),
				zap.Int64("session_id", session.ID),
			)
			continue
		}

		s.logger.Debug("Screenshot captured",
			zap.Int64("session_id", session.ID),
			zap.String("url", url),
		)
	}
}

// randomInterval draws uniformly from [minInterval, maxInterval).
func (s *Scheduler) randomInterval() time.Duration {
	spread := s.maxInterval - s.minInterval
	if spread <= 0 {
		return s.minInterval
	}
	return s.minInterval + time.Duration(rand.Int63n(int64(spread)))
}
