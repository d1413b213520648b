package events

import (
	"context"

	"go.uber.org/zap"
)

// RegisterAuditLog subscribes a logging handler to every ticket lifecycle
// event, giving operators a flat audit trail without any delivery machinery.
func RegisterAuditLog(dispatcher Dispatcher, logger *zap.Logger) {
	handler := func(_ context.Context, event Event) error {
		logger.Info("ticket event",
			zap.String("event_id", event.ID),
			zap.String("type", string(event.Type)),
			zap.Int64("ticket_id", event.TicketID),
			zap.Any("payload", event.Payload),
		)
		return nil
	}

	dispatcher.Subscribe(EventTicketCreated, handler)
	dispatcher.Subscribe(EventTicketTriaged, handler)
	dispatcher.Subscribe(EventTicketUpdated, handler)
}
