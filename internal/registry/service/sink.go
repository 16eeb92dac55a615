package service

import (
	"context"
	"log"

	"github.com/typemint/typemint/internal/registry/event"
)

// EventSink receives committed registry events. Delivery happens after the
// storage transaction commits and is best-effort: the journal row written in
// the transaction is the durable record, sinks are fan-out transports.
type EventSink interface {
	Deliver(ctx context.Context, evt event.Event) error
}

// LogSink writes events to the process log.
type LogSink struct {
	// Logger defaults to the standard logger when nil.
	Logger *log.Logger
}

// Deliver implements EventSink.
func (s LogSink) Deliver(_ context.Context, evt event.Event) error {
	logger := s.Logger
	if logger == nil {
		logger = log.Default()
	}
	switch evt.Type {
	case event.TypeCategoryChanged:
		logger.Printf("event %s token=%s actor=%s old=%s new=%s", evt.Type, evt.TokenAddress, evt.Actor, evt.OldCategory, evt.NewCategory)
	case event.TypeTokenMinted:
		logger.Printf("event %s token=%s actor=%s category=%s", evt.Type, evt.TokenAddress, evt.Actor, evt.NewCategory)
	case event.TypeTokenBurned:
		logger.Printf("event %s token=%s actor=%s category=%s", evt.Type, evt.TokenAddress, evt.Actor, evt.OldCategory)
	default:
		logger.Printf("event %s token=%s actor=%s", evt.Type, evt.TokenAddress, evt.Actor)
	}
	return nil
}
