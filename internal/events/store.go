package events

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Store persists domain events into the domain_events table.
type Store struct {
	Pool *pgxpool.Pool
}

// InsertDomainEvent writes the event and returns it with generated fields.
func (s Store) InsertDomainEvent(ctx context.Context, e Event) (Event, error) {
	row := s.Pool.QueryRow(ctx, `
		INSERT INTO domain_events (tenant_id, topic, payload)
		VALUES ($1, $2, $3)
		RETURNING id, tenant_id, topic, payload, created_at
	`, e.TenantID, e.Topic, []byte(e.Payload))
	var out Event
	if err := row.Scan(&out.ID, &out.TenantID, &out.Topic, &out.Payload, &out.OccurredAt); err != nil {
		return Event{}, fmt.Errorf("insert domain event: %w", err)
	}
	return out, nil
}
