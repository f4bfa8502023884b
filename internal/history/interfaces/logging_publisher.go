package interfaces

import (
	"context"
	"errors"
	"log"

	"paygo-cloud/internal/history/application"
)

// LoggingPublisher logs table rebuilt events.
type LoggingPublisher struct {
	logger *log.Logger
}

// NewLoggingPublisher constructs a logging publisher.
func NewLoggingPublisher(logger *log.Logger) *LoggingPublisher {
	if logger == nil {
		logger = log.Default()
	}
	return &LoggingPublisher{logger: logger}
}

// PublishTableRebuilt logs the event.
func (p *LoggingPublisher) PublishTableRebuilt(ctx context.Context, event application.TableRebuilt) error {
	_ = ctx
	if p == nil {
		return errors.New("history publisher: nil publisher")
	}
	p.logger.Printf("history table rebuilt: mode=%s range=%s..%s units=%d failures=%d",
		event.Mode, event.StartDay.Format("2006-01-02"), event.EndDay.Format("2006-01-02"),
		event.Units, event.Failures)
	return nil
}
