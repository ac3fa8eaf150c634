package queue

import (
	"sync"
	"time"

	"go.uber.org/zap"
)

// Uploader re-sends a queued image.
type Uploader interface {
	Upload(data []byte, key string) (string, error)
}

// Recorder links a re-sent image to its session.
type Recorder interface {
	RegisterScreenshot(sessionID int64, imageURL string, capturedAt time.Time) error
}

// Processor drains the upload queue in the background.
type Processor struct {
	queue    *UploadQueue
	uploader Uploader
	recorder Recorder
	interval time.Duration
	logger   *zap.Logger

	mu       sync.Mutex
	stopChan chan struct{}
	wg       sync.WaitGroup
}

func NewProcessor(queue *UploadQueue, uploader Uploader, recorder Recorder, interval time.Duration, logger *zap.Logger) *Processor {
	return &Processor{
		queue:    queue,
		uploader: uploader,
		recorder: recorder,
		interval: interval,
		logger:   logger,
		stopChan: make(chan struct{}),
	}
}

func (p *Processor) Start() {
	p.wg.Add(1)
	go p.loop()

	p.logger.Info("Upload queue processor started", zap.Duration("interval", p.interval))
}

func (p *Processor) Stop() {
	p.mu.Lock()
	select {
	case <-p.stopChan:
		p.mu.Unlock()
		return
	default:
		close(p.stopChan)
	}
	p.mu.Unlock()

	p.wg.Wait()
	p.logger.Info("Upload queue processor stopped")
}

func (p *Processor) loop() {
	defer p.wg.Done()

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			p.ProcessOnce()
		case <-p.stopChan:
			// Drain one more time before stopping
			p.ProcessOnce()
			return
		}
	}
}

// ProcessOnce attempts to re-send a batch of queued uploads.
func (p *Processor) ProcessOnce() {
	pendingCount, err := p.queue.GetPendingCount()
	if err != nil {
		p.logger.Error("Failed to get pending count", zap.Error(err))
		return
	}
	if pendingCount == 0 {
		return
	}

	uploads, err := p.queue.Dequeue(20)
	if err != nil {
		p.logger.Error("Failed to dequeue uploads", zap.Error(err))
		return
	}

	var sent, failed []int64
	for _, u := range uploads {
		url, err := p.uploader.Upload(u.Data, u.BlobKey)
		if err != nil {
			failed = append(failed, u.ID)
			continue
		}
		if err := p.recorder.RegisterScreenshot(u.SessionID, url, time.Now()); err != nil {
			p.logger.Warn("Failed to register retried screenshot",
				zap.Error(err),
				zap.Int64("session_id", u.SessionID),
			)
			failed = append(failed, u.ID)
			continue
		}
		sent = append(sent, u.ID)
	}

	if len(failed) > 0 {
		if err := p.queue.IncrementRetry(failed); err != nil {
			p.logger.Error("Failed to increment retry count", zap.Error(err))
		}
	}
	if len(sent) > 0 {
		if err := p.queue.Remove(sent); err != nil {
			p.logger.Error("Failed to remove sent uploads", zap.Error(err))
		} else {
			p.logger.Info("Retried queued uploads",
				zap.Int("sent", len(sent)),
				zap.Int("failed", len(failed)),
			)
		}
	}
}
