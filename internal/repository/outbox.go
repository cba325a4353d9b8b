package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/smartdepot/storefront/internal/domain"
)

func (r *Repository) insertOutboxEvent(ctx context.Context, eventID, eventType, aggregateID string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s payload: %w", eventType, err)
	}
	_, err = r.conn(ctx).ExecContext(ctx,
		`INSERT INTO outbox_events (event_id, aggregate_id, event_type, payload)
		 VALUES ($1, $2, $3, $4)`,
		eventID, aggregateID, eventType, body)
	if err != nil {
		return fmt.Errorf("insert outbox event: %w", err)
	}
	return nil
}

func (r *Repository) GetUnpublishedEvents(ctx context.Context, limit int) ([]*domain.OutboxEvent, error) {
	var events []*domain.OutboxEvent
	err := r.conn(ctx).SelectContext(ctx, &events,
		`SELECT id, event_id, aggregate_id, event_type, payload, created_at, published_at
		 FROM outbox_events
		 WHERE published_at IS NULL
		 ORDER BY id
		 LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("query unpublished events: %w", err)
	}
	return events, nil
}

func (r *Repository) MarkEventPublished(ctx context.Context, id int64) error {
	_, err := r.conn(ctx).ExecContext(ctx,
		`UPDATE outbox_events SET published_at = NOW() WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("mark event %d published: %w", id, err)
	}
	return nil
}
