package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	audit "idcheck/pkg/platform/audit"
	txcontext "idcheck/pkg/platform/tx"
)

// Store implements audit.Store using the transactional outbox pattern.
// Events are written to the outbox table and relayed to Kafka by the outbox worker.
type Store struct {
	db *sql.DB
}

// New creates a new PostgreSQL audit store that writes to the outbox.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// Append writes an audit event to the outbox table. When ctx carries a
// transaction the entry commits or rolls back with it.
func (s *Store) Append(ctx context.Context, event audit.Event) error {
	payload, err := json.Marshal(audit.PayloadOf(event))
	if err != nil {
		return fmt.Errorf("marshal audit payload: %w", err)
	}

	query := `
		INSERT INTO audit_outbox (id, event_type, aggregate_id, payload, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`
	_, err = txcontext.Conn(ctx, s.db).ExecContext(ctx, query,
		uuid.New(),
		event.Action,
		audit.AggregateID(event),
		payload,
		event.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("insert outbox entry: %w", err)
	}
	return nil
}

// ListRecent decodes the most recent outbox payloads, newest first.
func (s *Store) ListRecent(ctx context.Context, limit int) ([]audit.Event, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT payload FROM audit_outbox
		ORDER BY created_at DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("list audit events: %w", err)
	}
	defer rows.Close()

	var events []audit.Event
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("scan audit event: %w", err)
		}
		var p audit.Payload
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, fmt.Errorf("decode audit payload: %w", err)
		}
		events = append(events, fromPayload(p))
	}
	return events, rows.Err()
}

// PendingOutbox returns unpublished entries, oldest first. Rows are locked
// FOR UPDATE SKIP LOCKED, so call it inside a transaction in ctx (see
// txcontext.Runner) and mark the entries before committing; otherwise the
// lock ends with the query and concurrent relays can pick the same rows.
func (s *Store) PendingOutbox(ctx context.Context, limit int) ([]audit.OutboxEntry, error) {
	rows, err := txcontext.Conn(ctx, s.db).QueryContext(ctx, `
		SELECT id, event_type, aggregate_id, payload, created_at
		FROM audit_outbox
		WHERE published_at IS NULL
		ORDER BY created_at
		LIMIT $1
		FOR UPDATE SKIP LOCKED
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("list pending outbox: %w", err)
	}
	defer rows.Close()

	var out []audit.OutboxEntry
	for rows.Next() {
		var e audit.OutboxEntry
		if err := rows.Scan(&e.ID, &e.EventType, &e.AggregateID, &e.Payload, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan outbox entry: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// MarkPublished stamps the given outbox entries as relayed.
func (s *Store) MarkPublished(ctx context.Context, ids []uuid.UUID, at time.Time) error {
	if len(ids) == 0 {
		return nil
	}
	strs := make([]string, len(ids))
	for i, id := range ids {
		strs[i] = id.String()
	}
	_, err := txcontext.Conn(ctx, s.db).ExecContext(ctx, `
		UPDATE audit_outbox SET published_at = $1
		WHERE id = ANY($2::uuid[])
	`, at, pq.Array(strs))
	if err != nil {
		return fmt.Errorf("mark outbox published: %w", err)
	}
	return nil
}

func fromPayload(p audit.Payload) audit.Event {
	ts, _ := time.Parse(time.RFC3339Nano, p.Timestamp)
	eventID, _ := uuid.Parse(p.ID)
	return audit.Event{
		ID:            eventID,
		Category:      audit.EventCategory(p.Category),
		Timestamp:     ts,
		Action:        p.Action,
		SubjectIDHash: p.SubjectIDHash,
		Decision:      p.Decision,
		Reason:        p.Reason,
		RequestID:     p.RequestID,
		ClientIP:      p.ClientIP,
		ActorID:       p.ActorID,
	}
}
