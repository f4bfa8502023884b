package notify

import "context"

// BuildMessage represents a build notification payload.
type BuildMessage struct {
	JobID    string            `json:"job_id"`
	Mode     string            `json:"mode"`
	Status   string            `json:"status"`
	StartDay string            `json:"start_day"`
	EndDay   string            `json:"end_day"`
	Units    int               `json:"units"`
	Failures int               `json:"failures"`
	Duration string            `json:"duration"`
	Error    string            `json:"error,omitempty"`
	Meta     map[string]string `json:"meta,omitempty"`
}

// Notifier sends build notifications.
type Notifier interface {
	Notify(ctx context.Context, msg BuildMessage) error
}
