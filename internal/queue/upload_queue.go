// Package queue keeps screenshot uploads that failed mid-flight in the
// agent's local database and retries them in the background.
package queue

import (
	"database/sql"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// PendingUpload is one queued screenshot image.
type PendingUpload struct {
	ID         int64
	SessionID  int64
	BlobKey    string
	Data       []byte
	RetryCount int
}

// UploadQueue manages the pending_uploads table.
type UploadQueue struct {
	db     *sql.DB
	logger *zap.Logger
}

func NewUploadQueue(db *sql.DB, logger *zap.Logger) *UploadQueue {
	return &UploadQueue{
		db:     db,
		logger: logger,
	}
}

// EnqueueUpload stores a failed upload for retry.
func (q *UploadQueue) EnqueueUpload(sessionID int64, blobKey string, data []byte) error {
	_, err := q.db.Exec(`
		INSERT INTO pending_uploads (session_id, blob_key, image_data, created_at, retry_count)
		VALUES (?, ?, ?, ?, 0)
	`, sessionID, blobKey, data, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to enqueue upload: %w", err)
	}

	q.logger.Debug("Upload queued for retry",
		zap.Int64("session_id", sessionID),
		zap.String("blob_key", blobKey),
	)
	return nil
}

// Dequeue retrieves the oldest pending uploads.
func (q *UploadQueue) Dequeue(limit int) ([]PendingUpload, error) {
	rows, err := q.db.Query(`
		SELECT id, session_id, blob_key, image_data, retry_count
		FROM pending_uploads
		ORDER BY created_at ASC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query pending uploads: %w", err)
	}
	defer rows.Close()

	var uploads []PendingUpload
	for rows.Next() {
		var u PendingUpload
		if err := rows.Scan(&u.ID, &u.SessionID, &u.BlobKey, &u.Data, &u.RetryCount); err != nil {
			q.logger.Error("Failed to scan pending upload", zap.Error(err))
			continue
		}
		uploads = append(uploads, u)
	}
	return uploads, rows.Err()
}

// Remove deletes uploads that were sent successfully.
func (q *UploadQueue) Remove(ids []int64) error {
	if len(ids) == 0 {
		return nil
	}

	query := "DELETE FROM pending_uploads WHERE id IN ("
	args := make([]interface{}, len(ids))
	for i, id := range ids {
		if i > 0 {
			query += ","
		}
		query += "?"
		args[i] = id
	}
	query += ")"

	if _, err := q.db.Exec(query, args...); err != nil {
		return fmt.Errorf("failed to remove uploads: %w", err)
	}
	return nil
}

// IncrementRetry bumps the retry count for uploads that failed again.
func (q *UploadQueue) IncrementRetry(ids []int64) error {
	if len(ids) == 0 {
		return nil
	}

	query := "UPDATE pending_uploads SET retry_count = retry_count + 1, last_attempt = ? WHERE id IN ("
	args := make([]interface{}, len(ids)+1)
	args[0] = time.Now().UTC()
	for i, id := range ids {
		if i > 0 {
			query += ","
		}
		query += "?"
		args[i+1] = id
	}
	query += ")"

	if _, err := q.db.Exec(query, args...); err != nil {
		return fmt.Errorf("failed to increment retry: %w", err)
	}
	return nil
}

// GetPendingCount returns the number of queued uploads.
func (q *UploadQueue) GetPendingCount() (int, error) {
	var count int
	err := q.db.QueryRow(`SELECT COUNT(*) FROM pending_uploads`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to get pending count: %w", err)
	}
	return count, nil
}

// CleanupOldUploads drops uploads past the age cutoff that have exhausted
// their retries.
func (q *UploadQueue) CleanupOldUploads(olderThan time.Duration) error {
	cutoff := time.Now().UTC().Add(-olderThan)
	result, err := q.db.Exec(`
		DELETE FROM pending_uploads
		WHERE created_at < ? AND retry_count > 10
	`, cutoff)
	if err != nil {
		return fmt.Errorf("failed to cleanup old uploads: %w", err)
	}

	rowsAffected, _ := result.RowsAffected()
	if rowsAffected > 0 {
		q.logger.Info("Cleaned up old uploads",
			zap.Int64("count", rowsAffected),
		)
	}
	return nil
}
