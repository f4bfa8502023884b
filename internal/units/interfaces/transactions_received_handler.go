package interfaces

import (
	"context"
	"errors"

	translogevents "paygo-cloud/internal/translog/application/events"
	"paygo-cloud/internal/units/application"
)

// TransactionsReceivedHandler registers units mentioned by freshly ingested
// transactions so the registry grows with the feed.
type TransactionsReceivedHandler struct {
	service *application.Service
}

// NewTransactionsReceivedHandler constructs a consumer adapter.
func NewTransactionsReceivedHandler(service *application.Service) (*TransactionsReceivedHandler, error) {
	if service == nil {
		return nil, errors.New("transactions received handler: nil units service")
	}
	return &TransactionsReceivedHandler{service: service}, nil
}

// Handle records the units named by an ingest event.
func (h *TransactionsReceivedHandler) Handle(ctx context.Context, event translogevents.TransactionsReceived) error {
	_, err := h.service.RegisterSeen(ctx, event.Units)
	return err
}
