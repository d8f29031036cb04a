// Package postgres persists audit events using the transactional outbox
// pattern: every Append writes the queryable audit_events row and an
// audit_outbox row in the same statement set, and the relay worker drains the
// outbox into Kafka. Kafka is the durable audit spine.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	audit "civicflow/pkg/platform/audit"
	txcontext "civicflow/pkg/platform/tx"

	"github.com/google/uuid"
)

// Store implements audit.Store and audit/relay.OutboxSource on PostgreSQL.
type Store struct {
	db *sql.DB
}

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

type dbExecutor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (s *Store) execer(ctx context.Context) dbExecutor {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

// outboxPayload is the JSON structure published to Kafka. Field names match
// audit.Event so consumers deserialize without a schema registry.
type outboxPayload struct {
	ID        string `json:"ID"`
	Category  string `json:"Category"`
	Timestamp string `json:"Timestamp"`
	EntityID  string `json:"EntityID"`
	Actor     string `json:"Actor,omitempty"`
	Action    string `json:"Action"`
	FromStage string `json:"FromStage,omitempty"`
	ToStage   string `json:"ToStage,omitempty"`
	Decision  string `json:"Decision,omitempty"`
	Reason    string `json:"Reason,omitempty"`
	RequestID string `json:"RequestID,omitempty"`
	ClientIP  string `json:"ClientIP,omitempty"`
	Device    string `json:"Device,omitempty"`
	Notes     string `json:"Notes,omitempty"`
}

// Append writes the audit event and its outbox entry. Joins a context
// transaction when one is present so audit rows commit with the state change
// they describe.
func (s *Store) Append(ctx context.Context, event audit.Event) error {
	eventID := uuid.New()

	payload := outboxPayload{
		ID:        eventID.String(),
		Category:  string(event.Category),
		Timestamp: event.Timestamp.Format(time.RFC3339Nano),
		EntityID:  event.EntityID,
		Actor:     event.Actor,
		Action:    event.Action,
		FromStage: event.FromStage,
		ToStage:   event.ToStage,
		Decision:  event.Decision,
		Reason:    event.Reason,
		RequestID: event.RequestID,
		ClientIP:  event.ClientIP,
		Device:    event.Device,
		Notes:     event.Notes,
	}
	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal audit payload: %w", err)
	}

	exec := s.execer(ctx)

	query := `
		INSERT INTO audit_events (
			id, category, timestamp, entity_id, actor, action,
			from_stage, to_stage, decision, reason, request_id,
			client_ip, device, notes
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`
	if _, err := exec.ExecContext(ctx, query,
		eventID,
		string(event.Category),
		event.Timestamp,
		event.EntityID,
		event.Actor,
		event.Action,
		event.FromStage,
		event.ToStage,
		event.Decision,
		event.Reason,
		event.RequestID,
		event.ClientIP,
		event.Device,
		event.Notes,
	); err != nil {
		return fmt.Errorf("insert audit event: %w", err)
	}

	outboxQuery := `
		INSERT INTO audit_outbox (id, event_id, payload, created_at)
		VALUES ($1, $2, $3, $4)
	`
	if _, err := exec.ExecContext(ctx, outboxQuery,
		uuid.New(),
		eventID,
		payloadBytes,
		time.Now(),
	); err != nil {
		return fmt.Errorf("insert audit outbox entry: %w", err)
	}
	return nil
}

// ListByEntity returns events for one entity or request, newest first.
func (s *Store) ListByEntity(ctx context.Context, entityID string) ([]audit.Event, error) {
	query := `
		SELECT category, timestamp, entity_id, actor, action,
			   from_stage, to_stage, decision, reason, request_id,
			   client_ip, device, notes
		FROM audit_events
		WHERE entity_id = $1
		ORDER BY timestamp DESC
	`
	rows, err := s.db.QueryContext(ctx, query, entityID)
	if err != nil {
		return nil, fmt.Errorf("query audit events: %w", err)
	}
	defer rows.Close()

	return scanEvents(rows)
}

// ListRecent returns the N most recent events.
func (s *Store) ListRecent(ctx context.Context, limit int) ([]audit.Event, error) {
	query := `
		SELECT category, timestamp, entity_id, actor, action,
			   from_stage, to_stage, decision, reason, request_id,
			   client_ip, device, notes
		FROM audit_events
		ORDER BY timestamp DESC
		LIMIT $1
	`
	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("query audit events: %w", err)
	}
	defer rows.Close()

	return scanEvents(rows)
}

func scanEvents(rows *sql.Rows) ([]audit.Event, error) {
	var events []audit.Event
	for rows.Next() {
		var (
			category string
			event    audit.Event
		)
		err := rows.Scan(
			&category,
			&event.Timestamp,
			&event.EntityID,
			&event.Actor,
			&event.Action,
			&event.FromStage,
			&event.ToStage,
			&event.Decision,
			&event.Reason,
			&event.RequestID,
			&event.ClientIP,
			&event.Device,
			&event.Notes,
		)
		if err != nil {
			return nil, fmt.Errorf("scan audit event: %w", err)
		}
		event.Category = audit.EventCategory(category)
		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate audit events: %w", err)
	}
	return events, nil
}

// -----------------------------------------------------------------------------
// Outbox source for the Kafka relay
// -----------------------------------------------------------------------------

// OutboxRecord is one unpublished outbox row.
type OutboxRecord struct {
	ID      uuid.UUID
	EventID uuid.UUID
	Payload []byte
}

// FetchUnpublished returns up to limit unpublished outbox rows, oldest first.
// The relay runs as a single worker per deployment; redelivery after a crash
// between produce and MarkPublished is acceptable because consumers key on
// event_id and dedupe.
func (s *Store) FetchUnpublished(ctx context.Context, limit int) ([]OutboxRecord, error) {
	query := `
		SELECT id, event_id, payload
		FROM audit_outbox
		WHERE published_at IS NULL
		ORDER BY created_at
		LIMIT $1
	`
	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("fetch outbox entries: %w", err)
	}
	defer rows.Close()

	var records []OutboxRecord
	for rows.Next() {
		var rec OutboxRecord
		if err := rows.Scan(&rec.ID, &rec.EventID, &rec.Payload); err != nil {
			return nil, fmt.Errorf("scan outbox entry: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate outbox entries: %w", err)
	}
	return records, nil
}

// MarkPublished stamps outbox rows as delivered.
func (s *Store) MarkPublished(ctx context.Context, ids []uuid.UUID) error {
	if len(ids) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin mark published: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	now := time.Now()
	query := `UPDATE audit_outbox SET published_at = $1 WHERE id = $2`
	for _, id := range ids {
		if _, err := tx.ExecContext(ctx, query, now, id); err != nil {
			return fmt.Errorf("mark outbox entry published: %w", err)
		}
	}
	return tx.Commit()
}
