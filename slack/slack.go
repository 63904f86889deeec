package slack

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"recipeassistant"
	"recipeassistant/health"
)

type doer interface {
	Do(req *http.Request) (*http.Response, error)
}

type Client struct {
	webhookURL string
	httpClient doer
}

func NewClient(webhookURL string, httpClient doer) *Client {
	return &Client{
		webhookURL: webhookURL,
		httpClient: httpClient,
	}
}

func (c *Client) PostMessage(ctx context.Context, channel string, message string) error {
	payload, err := json.Marshal(map[string]any{
		"channel": channel,
		"text":    message,
	})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.webhookURL, bytes.NewReader(payload))
	if err != nil {
		return err
	}

	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("failed to post message: %s", resp.Status)
	}

	return nil
}

// TripMessage formats the alert posted when a provider is taken out of rotation.
func TripMessage(st health.Status) string {
	return fmt.Sprintf(":warning: %s provider *%s* marked unavailable after %d consecutive failures. Reset it with POST /api/providers/%s/%s/reset.",
		st.Category, st.Provider, st.ConsecutiveFailures, st.Category, st.Provider)
}

// NotifyTrip posts the trip alert for st to channel.
func NotifyTrip(ctx context.Context, n recipeassistant.Notifier, channel string, st health.Status) error {
	return n.PostMessage(ctx, channel, TripMessage(st))
}

// TripAlerts returns a health.Options.OnTrip callback. Alerts are posted in the
// background so a slow webhook never holds up a request.
func TripAlerts(n recipeassistant.Notifier, channel string, timeout time.Duration) func(health.Status) {
	return func(st health.Status) {
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), timeout)
			defer cancel()
			if err := NotifyTrip(ctx, n, channel, st); err != nil {
				slog.Error("SLACK: Failed to post trip alert", "provider", st.Provider, "error", err)
			}
		}()
	}
}
