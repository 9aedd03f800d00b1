package dispatch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/checkfox/go_crm/internal/models"
)

// ActionsClient dispatches actions to the external actions API over HTTP.
// Each call is bounded by the client timeout; a timeout counts as a retriable
// dispatch failure.
type ActionsClient struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// NewActionsClient creates a new actions API client
func NewActionsClient(baseURL, token string, timeout time.Duration) *ActionsClient {
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &ActionsClient{
		baseURL: baseURL,
		token:   token,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// SendEmail dispatches an email action
func (c *ActionsClient) SendEmail(ctx context.Context, to, subject, body string) error {
	payload := map[string]interface{}{
		"to":      to,
		"subject": subject,
		"body":    body,
	}
	return c.post(ctx, models.ActionTypeEmail, "/actions/emails", payload)
}

// CreateTask dispatches a task-creation action
func (c *ActionsClient) CreateTask(ctx context.Context, leadID int64, title, detail string) error {
	payload := map[string]interface{}{
		"lead_id": leadID,
		"title":   title,
		"detail":  detail,
	}
	return c.post(ctx, models.ActionTypeTask, "/actions/tasks", payload)
}

// Notify dispatches an internal notification action
func (c *ActionsClient) Notify(ctx context.Context, leadID int64, message string) error {
	payload := map[string]interface{}{
		"lead_id": leadID,
		"message": message,
	}
	return c.post(ctx, models.ActionTypeNotification, "/actions/notifications", payload)
}

// post executes one action call and classifies failures
func (c *ActionsClient) post(ctx context.Context, action models.ActionType, path string, payload map[string]interface{}) error {
	jsonData, err := json.Marshal(payload)
	if err != nil {
		return models.NewDispatchError(action, 0, "failed to marshal payload", false, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewBuffer(jsonData))
	if err != nil {
		return models.NewDispatchError(action, 0, "failed to create request", false, err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", c.token))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		// Network errors and timeouts are retriable
		return models.NewDispatchError(action, 0, "network error", true, err)
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return models.NewDispatchError(action, resp.StatusCode, "failed to read response body", true, err)
	}

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	message := fmt.Sprintf("HTTP %d: %s", resp.StatusCode, string(bodyBytes))
	return models.NewDispatchError(action, resp.StatusCode, message, classify(resp.StatusCode), nil)
}
