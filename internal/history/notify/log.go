package notify

import (
	"context"
	"log"
)

// LogNotifier writes build notifications to the process log.
type LogNotifier struct {
	logger *log.Logger
}

// NewLogNotifier constructs a LogNotifier.
func NewLogNotifier(logger *log.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

// Notify logs the build message.
func (n *LogNotifier) Notify(_ context.Context, msg BuildMessage) error {
	if n == nil || n.logger == nil {
		return nil
	}
	n.logger.Printf("event=history_notify job_id=%s mode=%s status=%s units=%d failures=%d error=%s",
		msg.JobID, msg.Mode, msg.Status, msg.Units, msg.Failures, msg.Error)
	return nil
}
