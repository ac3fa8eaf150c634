// Package client is the desktop agent's view of the backend session API.
// It satisfies the Sessions, BlobStore and Recorder contracts the
// background loops are written against.
package client

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"paydeck/timeclock/internal/apperr"
	"paydeck/timeclock/internal/models"

	"go.uber.org/zap"
)

// APIClient handles communication with the backend API
type APIClient struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	logger     *zap.Logger
}

// NewAPIClient creates a new API client
func NewAPIClient(baseURL, apiKey string, timeout time.Duration, logger *zap.Logger) *APIClient {
	return &APIClient{
		baseURL: baseURL,
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		logger: logger,
	}
}

// GetActive returns the user's running session, or nil when none.
func (c *APIClient) GetActive(userID int64) (*models.TimeSession, error) {
	endpoint := fmt.Sprintf("%s/api/v1/sessions/active?user_id=%d", c.baseURL, userID)

	var session models.TimeSession
	found, err := c.getJSON(endpoint, &session)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, nil
	}
	return &session, nil
}

// Stop closes the user's running session. A 404 maps to NotFoundError so
// a forced stop racing a manual one degrades to a no-op.
func (c *APIClient) Stop(userID int64, idleSeconds int64, notes *string) (*models.TimeSession, error) {
	req := models.StopSessionRequest{
		UserID:      userID,
		IdleSeconds: idleSeconds,
		Notes:       notes,
	}

	var session models.TimeSession
	if err := c.postJSON(c.baseURL+"/api/v1/sessions/stop", req, &session); err != nil {
		return nil, err
	}
	return &session, nil
}

// Start opens a session for the user on the task.
func (c *APIClient) Start(userID, taskID int64) (*models.TimeSession, error) {
	req := models.StartSessionRequest{UserID: userID, TaskID: taskID}

	var session models.TimeSession
	if err := c.postJSON(c.baseURL+"/api/v1/sessions/start", req, &session); err != nil {
		return nil, err
	}
	return &session, nil
}

// GetUserSettings fetches the user record (auto-stop limit, status).
func (c *APIClient) GetUserSettings(userID int64) (*models.User, error) {
	endpoint := fmt.Sprintf("%s/api/v1/users/settings?id=%d", c.baseURL, userID)

	var user models.User
	found, err := c.getJSON(endpoint, &user)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, &apperr.NotFoundError{Message: fmt.Sprintf("user %d not found", userID)}
	}
	return &user, nil
}

// Upload sends one PNG to the backend blob endpoint and returns its URL.
func (c *APIClient) Upload(data []byte, key string) (string, error) {
	endpoint := fmt.Sprintf("%s/api/v1/screenshots/upload?key=%s", c.baseURL, url.QueryEscape(key))

	req, err := http.NewRequest(http.MethodPost, endpoint, bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "image/png")
	c.authorize(req)

	startTime := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("upload request failed: %w", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if err := c.checkStatus(resp.StatusCode, body); err != nil {
		return "", err
	}

	var result struct {
		URL string `json:"url"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		return "", fmt.Errorf("failed to parse upload response: %w", err)
	}

	c.logger.Debug("Screenshot uploaded",
		zap.String("key", key),
		zap.Int("bytes", len(data)),
		zap.Duration("duration", time.Since(startTime)),
	)
	return result.URL, nil
}

// RegisterScreenshot links an uploaded image to its session.
func (c *APIClient) RegisterScreenshot(sessionID int64, imageURL string, capturedAt time.Time) error {
	req := map[string]interface{}{
		"time_session_id": sessionID,
		"image_url":       imageURL,
		"captured_at":     capturedAt,
	}
	return c.postJSON(c.baseURL+"/api/v1/screenshots", req, nil)
}

// HealthCheck checks if the backend is reachable
func (c *APIClient) HealthCheck() error {
	resp, err := c.httpClient.Get(c.baseURL + "/health")
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check returned status %d", resp.StatusCode)
	}
	return nil
}

func (c *APIClient) authorize(req *http.Request) {
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
}

// getJSON returns false without error on 404.
func (c *APIClient) getJSON(endpoint string, out interface{}) (bool, error) {
	req, err := http.NewRequest(http.MethodGet, endpoint, nil)
	if err != nil {
		return false, fmt.Errorf("failed to create request: %w", err)
	}
	c.authorize(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return false, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return false, nil
	}

	body, _ := io.ReadAll(resp.Body)
	if err := c.checkStatus(resp.StatusCode, body); err != nil {
		return false, err
	}

	if err := json.Unmarshal(body, out); err != nil {
		return false, fmt.Errorf("failed to parse response: %w", err)
	}
	return true, nil
}

func (c *APIClient) postJSON(endpoint string, in, out interface{}) error {
	jsonData, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequest(http.MethodPost, endpoint, bytes.NewBuffer(jsonData))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	c.authorize(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if err := c.checkStatus(resp.StatusCode, body); err != nil {
		return err
	}

	if out != nil {
		if err := json.Unmarshal(body, out); err != nil {
			return fmt.Errorf("failed to parse response: %w", err)
		}
	}
	return nil
}

// checkStatus maps backend status codes onto the shared error taxonomy so
// agent-side callers branch the same way server-side ones do.
func (c *APIClient) checkStatus(statusCode int, body []byte) error {
	if statusCode >= 200 && statusCode < 300 {
		return nil
	}

	errMsg := fmt.Sprintf("backend returned status %d: %s", statusCode, string(body))
	switch statusCode {
	case http.StatusConflict:
		return &apperr.ConflictError{Message: errMsg}
	case http.StatusNotFound:
		return &apperr.NotFoundError{Message: errMsg}
	case http.StatusForbidden:
		return &apperr.PermissionError{Message: errMsg}
	case http.StatusBadRequest:
		return &apperr.ValidationError{Message: errMsg}
	case http.StatusUnauthorized:
		return &AuthError{Message: errMsg, StatusCode: statusCode}
	case http.StatusTooManyRequests:
		return &RateLimitError{Message: errMsg, StatusCode: statusCode}
	default:
		return &BackendError{Message: errMsg, StatusCode: statusCode}
	}
}

// Error types
type AuthError struct {
	Message    string
	StatusCode int
}

func (e *AuthError) Error() string {
	return e.Message
}

type RateLimitError struct {
	Message    string
	StatusCode int
}

func (e *RateLimitError) Error() string {
	return e.Message
}

type BackendError struct {
	Message    string
	StatusCode int
}

func (e *BackendError) Error() string {
	return e.Message
}
