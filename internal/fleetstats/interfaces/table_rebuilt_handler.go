package interfaces

import (
	"context"
	"errors"

	"paygo-cloud/internal/fleetstats/application"
	historyapp "paygo-cloud/internal/history/application"
)

// TableRebuiltHandler adapts table rebuilt events to the summary service.
type TableRebuiltHandler struct {
	service *application.Service
}

// NewTableRebuiltHandler constructs a handler adapter.
func NewTableRebuiltHandler(service *application.Service) (*TableRebuiltHandler, error) {
	if service == nil {
		return nil, errors.New("table rebuilt handler: nil summary service")
	}
	return &TableRebuiltHandler{service: service}, nil
}

// Handle maps the rebuild event into the summary service.
func (h *TableRebuiltHandler) Handle(ctx context.Context, event historyapp.TableRebuilt) error {
	return h.service.HandleTableRebuilt(ctx, event)
}
