package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"civicflow/internal/lifecycle/models"
	id "civicflow/pkg/domain"
	"civicflow/pkg/platform/sentinel"
	txcontext "civicflow/pkg/platform/tx"
)

// Postgres persists lifecycle instances with a version column guarding the
// conditional write. The stage update and its transition row commit in one
// transaction; InTx lets callers stretch that transaction around their own
// writes, audit appends included.
type Postgres struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *Postgres) execer(ctx context.Context) dbtx {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

// InTx opens one transaction, stashes it in the context for every store that
// joins via pkg/platform/tx, and commits when fn returns nil. An error from fn
// rolls everything back. Nested calls reuse the outer transaction.
func (s *Postgres) InTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := txcontext.From(ctx); ok {
		return fn(ctx)
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	if err := fn(txcontext.WithTx(ctx, tx)); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

func (s *Postgres) Create(ctx context.Context, instance *models.Instance) error {
	query := `
		INSERT INTO lifecycle_instances (entity_id, kind, current_stage, version, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (entity_id) DO NOTHING
	`
	res, err := s.execer(ctx).ExecContext(ctx, query,
		uuid.UUID(instance.EntityID),
		string(instance.Kind),
		instance.CurrentStage,
		instance.Version,
		instance.CreatedAt,
		instance.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert lifecycle instance: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("insert lifecycle instance: %w", err)
	}
	if affected == 0 {
		return sentinel.ErrAlreadyUsed
	}
	return nil
}

func (s *Postgres) Get(ctx context.Context, entityID id.EntityID) (*models.Instance, error) {
	query := `
		SELECT entity_id, kind, current_stage, version, created_at, updated_at
		FROM lifecycle_instances
		WHERE entity_id = $1
	`
	var (
		instance models.Instance
		rawID    uuid.UUID
		rawKind  string
	)
	err := s.execer(ctx).QueryRowContext(ctx, query, uuid.UUID(entityID)).Scan(
		&rawID,
		&rawKind,
		&instance.CurrentStage,
		&instance.Version,
		&instance.CreatedAt,
		&instance.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select lifecycle instance: %w", err)
	}
	instance.EntityID = id.EntityID(rawID)
	instance.Kind = id.EntityKind(rawKind)

	history, err := s.history(ctx, entityID)
	if err != nil {
		return nil, err
	}
	instance.History = history
	return &instance, nil
}

func (s *Postgres) AdvanceStage(ctx context.Context, entityID id.EntityID, expectedVersion int, toStage string, transition models.Transition) (*models.Instance, error) {
	// Standalone calls get their own transaction; calls already inside InTx
	// join it and leave the commit to the wrapper.
	if _, ok := txcontext.From(ctx); ok {
		return s.advanceStage(ctx, entityID, expectedVersion, toStage, transition)
	}
	var instance *models.Instance
	err := s.InTx(ctx, func(ctx context.Context) error {
		var advErr error
		instance, advErr = s.advanceStage(ctx, entityID, expectedVersion, toStage, transition)
		return advErr
	})
	if err != nil {
		return nil, err
	}
	return instance, nil
}

func (s *Postgres) advanceStage(ctx context.Context, entityID id.EntityID, expectedVersion int, toStage string, transition models.Transition) (*models.Instance, error) {
	exec := s.execer(ctx)

	update := `
		UPDATE lifecycle_instances
		SET current_stage = $1, version = version + 1, updated_at = $2
		WHERE entity_id = $3 AND version = $4
	`
	res, err := exec.ExecContext(ctx, update,
		toStage,
		transition.OccurredAt,
		uuid.UUID(entityID),
		expectedVersion,
	)
	if err != nil {
		return nil, fmt.Errorf("update lifecycle instance: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("update lifecycle instance: %w", err)
	}
	if affected == 0 {
		// Distinguish missing instance from stale version.
		var exists bool
		err := exec.QueryRowContext(ctx,
			`SELECT EXISTS (SELECT 1 FROM lifecycle_instances WHERE entity_id = $1)`,
			uuid.UUID(entityID),
		).Scan(&exists)
		if err != nil {
			return nil, fmt.Errorf("check lifecycle instance: %w", err)
		}
		if !exists {
			return nil, sentinel.ErrNotFound
		}
		return nil, sentinel.ErrVersionConflict
	}

	insert := `
		INSERT INTO stage_transitions (id, entity_id, from_stage, to_stage, actor, occurred_at, notes)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	if _, err := exec.ExecContext(ctx, insert,
		uuid.New(),
		uuid.UUID(entityID),
		transition.FromStage,
		transition.ToStage,
		uuid.UUID(transition.Actor),
		transition.OccurredAt,
		transition.Notes,
	); err != nil {
		return nil, fmt.Errorf("insert stage transition: %w", err)
	}

	return s.Get(ctx, entityID)
}

func (s *Postgres) history(ctx context.Context, entityID id.EntityID) ([]models.Transition, error) {
	query := `
		SELECT from_stage, to_stage, actor, occurred_at, notes
		FROM stage_transitions
		WHERE entity_id = $1
		ORDER BY occurred_at
	`
	rows, err := s.execer(ctx).QueryContext(ctx, query, uuid.UUID(entityID))
	if err != nil {
		return nil, fmt.Errorf("select stage transitions: %w", err)
	}
	defer rows.Close()

	var history []models.Transition
	for rows.Next() {
		var (
			t     models.Transition
			actor uuid.UUID
		)
		if err := rows.Scan(&t.FromStage, &t.ToStage, &actor, &t.OccurredAt, &t.Notes); err != nil {
			return nil, fmt.Errorf("scan stage transition: %w", err)
		}
		t.Actor = id.UserID(actor)
		history = append(history, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate stage transitions: %w", err)
	}
	return history, nil
}
