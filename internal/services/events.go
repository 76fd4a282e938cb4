// Package services orchestrates storage, rate snapshots and the core
// calculators, and announces ledger changes over AMQP.
package services

import (
	"context"

	"conti/internal/amqp"
	"conti/internal/log"
)

// Publisher sends ledger events. *amqp.Client satisfies it.
type Publisher interface {
	PublishEvent(ctx context.Context, msg *amqp.LedgerEvent) error
}

var _ Publisher = (*amqp.Client)(nil)

// events wraps an optional Publisher. Publishing never fails the caller: the
// database write has already been committed.
type events struct {
	pub Publisher
}

func (e events) publish(ctx context.Context, msg *amqp.LedgerEvent) {
	logger := log.FromContext(ctx)
	var fields log.LogFields
	if msg.Count > 0 {
		fields = log.NewFields().WithCount(msg.Count)
	}
	log.NewStructuredLogger(logger).LogMutation(ctx, string(msg.Entity), string(msg.Event), string(msg.Entity), msg.ID, fields)

	if e.pub == nil {
		logger.DebugContext(ctx, "AMQP client not available, skipping ledger event",
			"event_id", msg.EventID)
		return
	}
	if err := e.pub.PublishEvent(ctx, msg); err != nil {
		logger.Fail(ctx, "Failed to publish ledger event", err,
			log.FieldOperation, log.OpPublish,
			log.FieldEntity, msg.Entity,
			log.FieldEntityID, msg.ID,
			"event", msg.Event)
	}
}
