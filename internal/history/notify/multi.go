package notify

import "context"

// MultiNotifier dispatches build messages to multiple notifiers.
type MultiNotifier struct {
	notifiers []Notifier
}

// NewMultiNotifier constructs a MultiNotifier.
func NewMultiNotifier(notifiers ...Notifier) *MultiNotifier {
	return &MultiNotifier{notifiers: notifiers}
}

// Notify forwards the message to all notifiers. The first error wins but
// every notifier is still invoked.
func (m *MultiNotifier) Notify(ctx context.Context, msg BuildMessage) error {
	if m == nil {
		return nil
	}
	var first error
	for _, notifier := range m.notifiers {
		if notifier == nil {
			continue
		}
		if err := notifier.Notify(ctx, msg); err != nil && first == nil {
			first = err
		}
	}
	return first
}
