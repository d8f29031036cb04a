//go:build integration

package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"civicflow/internal/lifecycle/models"
	id "civicflow/pkg/domain"
	"civicflow/pkg/platform/sentinel"
	"civicflow/pkg/testutil/containers"
)

type PostgresInstanceSuite struct {
	suite.Suite
	pg    *containers.PostgresContainer
	store *Postgres
}

func TestPostgresInstanceSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresInstanceSuite))
}

func (s *PostgresInstanceSuite) SetupSuite() {
	s.pg = containers.NewPostgresContainer(s.T())
	s.store = NewPostgres(s.pg.DB)
}

func (s *PostgresInstanceSuite) TearDownSuite() {
	if s.pg != nil {
		_ = s.pg.DB.Close()
		_ = s.pg.Container.Terminate(context.Background())
	}
}

func (s *PostgresInstanceSuite) SetupTest() {
	s.Require().NoError(s.pg.Truncate(context.Background(), "stage_transitions", "lifecycle_instances"))
}

func (s *PostgresInstanceSuite) newInstance() *models.Instance {
	now := time.Now().UTC().Truncate(time.Microsecond)
	return &models.Instance{
		EntityID:     id.NewEntityID(),
		Kind:         "facility",
		CurrentStage: "setup",
		Version:      1,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

func (s *PostgresInstanceSuite) TestCreateAndGet() {
	ctx := context.Background()
	instance := s.newInstance()

	s.Require().NoError(s.store.Create(ctx, instance))

	got, err := s.store.Get(ctx, instance.EntityID)
	s.Require().NoError(err)
	s.Equal(instance.EntityID, got.EntityID)
	s.Equal(id.EntityKind("facility"), got.Kind)
	s.Equal("setup", got.CurrentStage)
	s.Equal(1, got.Version)
	s.Empty(got.History)
}

func (s *PostgresInstanceSuite) TestCreateDuplicate() {
	ctx := context.Background()
	instance := s.newInstance()

	s.Require().NoError(s.store.Create(ctx, instance))
	s.ErrorIs(s.store.Create(ctx, instance), sentinel.ErrAlreadyUsed)
}

func (s *PostgresInstanceSuite) TestGetUnknown() {
	_, err := s.store.Get(context.Background(), id.NewEntityID())
	s.ErrorIs(err, sentinel.ErrNotFound)
}

func (s *PostgresInstanceSuite) TestAdvanceStage() {
	ctx := context.Background()
	instance := s.newInstance()
	s.Require().NoError(s.store.Create(ctx, instance))

	actor := id.NewUserID()
	updated, err := s.store.AdvanceStage(ctx, instance.EntityID, 1, "accreditation_pending", models.Transition{
		FromStage:  "setup",
		ToStage:    "accreditation_pending",
		Actor:      actor,
		OccurredAt: time.Now().UTC().Truncate(time.Microsecond),
		Notes:      "permits filed",
	})
	s.Require().NoError(err)

	s.Equal("accreditation_pending", updated.CurrentStage)
	s.Equal(2, updated.Version)
	s.Require().Len(updated.History, 1)
	s.Equal("setup", updated.History[0].FromStage)
	s.Equal(actor, updated.History[0].Actor)
	s.Equal("permits filed", updated.History[0].Notes)
}

func (s *PostgresInstanceSuite) TestAdvanceStaleVersion() {
	ctx := context.Background()
	instance := s.newInstance()
	s.Require().NoError(s.store.Create(ctx, instance))

	transition := models.Transition{
		FromStage:  "setup",
		ToStage:    "accreditation_pending",
		Actor:      id.NewUserID(),
		OccurredAt: time.Now(),
	}
	_, err := s.store.AdvanceStage(ctx, instance.EntityID, 1, "accreditation_pending", transition)
	s.Require().NoError(err)

	// Same expected version again must lose the conditional update.
	_, err = s.store.AdvanceStage(ctx, instance.EntityID, 1, "operational", transition)
	s.ErrorIs(err, sentinel.ErrVersionConflict)
}

func (s *PostgresInstanceSuite) TestAdvanceUnknownEntity() {
	_, err := s.store.AdvanceStage(context.Background(), id.NewEntityID(), 1, "review", models.Transition{
		FromStage:  "draft",
		ToStage:    "review",
		Actor:      id.NewUserID(),
		OccurredAt: time.Now(),
	})
	s.ErrorIs(err, sentinel.ErrNotFound)
}

// An advance made through InTx must roll back when the callback fails: the
// stage, version, and transition history all stay at their pre-advance values.
func (s *PostgresInstanceSuite) TestAdvanceRollsBackWithTransaction() {
	ctx := context.Background()
	instance := s.newInstance()
	s.Require().NoError(s.store.Create(ctx, instance))

	boom := errors.New("append failed")
	err := s.store.InTx(ctx, func(ctx context.Context) error {
		_, advErr := s.store.AdvanceStage(ctx, instance.EntityID, 1, "accreditation_pending", models.Transition{
			FromStage:  "setup",
			ToStage:    "accreditation_pending",
			Actor:      id.NewUserID(),
			OccurredAt: time.Now().UTC().Truncate(time.Microsecond),
		})
		s.Require().NoError(advErr)
		return boom
	})
	s.ErrorIs(err, boom)

	got, err := s.store.Get(ctx, instance.EntityID)
	s.Require().NoError(err)
	s.Equal("setup", got.CurrentStage)
	s.Equal(1, got.Version)
	s.Empty(got.History)
}

func (s *PostgresInstanceSuite) TestHistoryOrdering() {
	ctx := context.Background()
	instance := s.newInstance()
	instance.Kind = "test_zone"
	instance.CurrentStage = "draft"
	s.Require().NoError(s.store.Create(ctx, instance))

	actor := id.NewUserID()
	base := time.Now().UTC().Truncate(time.Microsecond)
	stages := []string{"review", "active", "decommissioned"}
	from := "draft"
	for i, to := range stages {
		_, err := s.store.AdvanceStage(ctx, instance.EntityID, i+1, to, models.Transition{
			FromStage:  from,
			ToStage:    to,
			Actor:      actor,
			OccurredAt: base.Add(time.Duration(i) * time.Second),
		})
		s.Require().NoError(err)
		from = to
	}

	got, err := s.store.Get(ctx, instance.EntityID)
	s.Require().NoError(err)
	s.Require().Len(got.History, 3)
	s.Equal("review", got.History[0].ToStage)
	s.Equal("active", got.History[1].ToStage)
	s.Equal("decommissioned", got.History[2].ToStage)
	s.Equal(4, got.Version)
}
