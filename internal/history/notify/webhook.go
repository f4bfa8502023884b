package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// WebhookNotifier sends build notifications via webhook.
type WebhookNotifier struct {
	url    string
	client *http.Client
}

type webhookPayload struct {
	MsgType string      `json:"msgtype"`
	Text    webhookText `json:"text"`
}

type webhookText struct {
	Content string `json:"content"`
}

// NewWebhookNotifier constructs a notifier.
func NewWebhookNotifier(url string) *WebhookNotifier {
	return &WebhookNotifier{
		url:    url,
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

// Notify posts a build message to the webhook.
func (n *WebhookNotifier) Notify(ctx context.Context, msg BuildMessage) error {
	if n == nil || n.url == "" {
		return errors.New("webhook notifier: empty url")
	}
	payload := webhookPayload{
		MsgType: "text",
		Text:    webhookText{Content: formatBuildMessage(msg)},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := n.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return errors.New("webhook notifier: non-2xx")
	}
	return nil
}

func formatBuildMessage(msg BuildMessage) string {
	var b strings.Builder
	b.WriteString("[History Build]\n")
	if msg.JobID != "" {
		fmt.Fprintf(&b, "Job: %s\n", msg.JobID)
	}
	if msg.Mode != "" {
		fmt.Fprintf(&b, "Mode: %s\n", msg.Mode)
	}
	if msg.Status != "" {
		fmt.Fprintf(&b, "Status: %s\n", msg.Status)
	}
	if msg.StartDay != "" && msg.EndDay != "" {
		fmt.Fprintf(&b, "Range: %s..%s\n", msg.StartDay, msg.EndDay)
	}
	fmt.Fprintf(&b, "Units: %d\n", msg.Units)
	if msg.Failures > 0 {
		fmt.Fprintf(&b, "Failed units: %d\n", msg.Failures)
	}
	if msg.Duration != "" {
		fmt.Fprintf(&b, "Duration: %s\n", msg.Duration)
	}
	if msg.Error != "" {
		fmt.Fprintf(&b, "Error: %s\n", msg.Error)
	}
	return strings.TrimSpace(b.String())
}
