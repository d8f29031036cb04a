//go:build integration

package postgres

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	audit "civicflow/pkg/platform/audit"
	txcontext "civicflow/pkg/platform/tx"
	"civicflow/pkg/testutil/containers"
)

type PostgresAuditSuite struct {
	suite.Suite
	pg    *containers.PostgresContainer
	store *Store
}

func TestPostgresAuditSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresAuditSuite))
}

func (s *PostgresAuditSuite) SetupSuite() {
	s.pg = containers.NewPostgresContainer(s.T())
	s.store = New(s.pg.DB)
}

func (s *PostgresAuditSuite) TearDownSuite() {
	if s.pg != nil {
		_ = s.pg.DB.Close()
		_ = s.pg.Container.Terminate(context.Background())
	}
}

func (s *PostgresAuditSuite) SetupTest() {
	s.Require().NoError(s.pg.Truncate(context.Background(), "audit_outbox", "audit_events"))
}

func (s *PostgresAuditSuite) TestAppendWritesEventAndOutbox() {
	ctx := context.Background()
	event := audit.Event{
		Category:  audit.CategoryCompliance,
		Timestamp: time.Now().UTC().Truncate(time.Microsecond),
		EntityID:  "facility-17",
		Actor:     "inspector-4",
		Action:    string(audit.ActionStageAdvanced),
		FromStage: "setup",
		ToStage:   "accreditation_pending",
		ClientIP:  "203.0.113.7",
		Device:    "Firefox on Linux",
		Notes:     "permits filed",
	}

	s.Require().NoError(s.store.Append(ctx, event))

	events, err := s.store.ListByEntity(ctx, "facility-17")
	s.Require().NoError(err)
	s.Require().Len(events, 1)
	s.Equal(string(audit.ActionStageAdvanced), events[0].Action)
	s.Equal("accreditation_pending", events[0].ToStage)
	s.Equal("203.0.113.7", events[0].ClientIP)
	s.Equal("Firefox on Linux", events[0].Device)

	records, err := s.store.FetchUnpublished(ctx, 10)
	s.Require().NoError(err)
	s.Require().Len(records, 1)

	var payload map[string]string
	s.Require().NoError(json.Unmarshal(records[0].Payload, &payload))
	s.Equal("facility-17", payload["EntityID"])
	s.Equal(records[0].EventID.String(), payload["ID"])
}

// An append made through a context transaction must live and die with it:
// rolled back, it leaves no event and no outbox row; committed, both appear.
func (s *PostgresAuditSuite) TestAppendJoinsContextTransaction() {
	ctx := context.Background()
	event := audit.Event{
		Category:  audit.CategoryCompliance,
		Timestamp: time.Now().UTC().Truncate(time.Microsecond),
		EntityID:  "facility-31",
		Action:    string(audit.ActionStageAdvanced),
	}

	tx, err := s.pg.DB.BeginTx(ctx, nil)
	s.Require().NoError(err)
	s.Require().NoError(s.store.Append(txcontext.WithTx(ctx, tx), event))
	s.Require().NoError(tx.Rollback())

	events, err := s.store.ListByEntity(ctx, "facility-31")
	s.Require().NoError(err)
	s.Empty(events, "rolled-back append must leave no event")
	records, err := s.store.FetchUnpublished(ctx, 10)
	s.Require().NoError(err)
	s.Empty(records, "rolled-back append must leave no outbox row")

	tx, err = s.pg.DB.BeginTx(ctx, nil)
	s.Require().NoError(err)
	s.Require().NoError(s.store.Append(txcontext.WithTx(ctx, tx), event))
	s.Require().NoError(tx.Commit())

	events, err = s.store.ListByEntity(ctx, "facility-31")
	s.Require().NoError(err)
	s.Len(events, 1)
}

func (s *PostgresAuditSuite) TestMarkPublished() {
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		s.Require().NoError(s.store.Append(ctx, audit.Event{
			Category:  audit.CategoryCompliance,
			Timestamp: time.Now(),
			EntityID:  "req-1",
			Action:    string(audit.ActionAdmissionSubmitted),
		}))
	}

	records, err := s.store.FetchUnpublished(ctx, 10)
	s.Require().NoError(err)
	s.Require().Len(records, 3)

	s.Require().NoError(s.store.MarkPublished(ctx, []uuid.UUID{records[0].ID, records[1].ID}))

	remaining, err := s.store.FetchUnpublished(ctx, 10)
	s.Require().NoError(err)
	s.Require().Len(remaining, 1)
	s.Equal(records[2].ID, remaining[0].ID)
}

func (s *PostgresAuditSuite) TestListRecentLimit() {
	ctx := context.Background()
	base := time.Now().UTC().Truncate(time.Microsecond)
	for i := 0; i < 5; i++ {
		s.Require().NoError(s.store.Append(ctx, audit.Event{
			Category:  audit.CategoryCompliance,
			Timestamp: base.Add(time.Duration(i) * time.Second),
			EntityID:  "zone-9",
			Action:    string(audit.ActionStageAdvanced),
		}))
	}

	events, err := s.store.ListRecent(ctx, 2)
	s.Require().NoError(err)
	s.Require().Len(events, 2)
	s.True(events[0].Timestamp.After(events[1].Timestamp), "newest first")
}
