package store

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"civicflow/internal/admission/models"
	id "civicflow/pkg/domain"
	"civicflow/pkg/platform/sentinel"
)

type RequestStoreSuite struct {
	suite.Suite
	store *InMemoryRequests
	ctx   context.Context
}

func TestRequestStoreSuite(t *testing.T) {
	suite.Run(t, new(RequestStoreSuite))
}

func (s *RequestStoreSuite) SetupTest() {
	s.store = NewInMemoryRequests()
	s.ctx = context.Background()
}

func (s *RequestStoreSuite) newRequest(status models.RequestStatus) *models.RoleRequest {
	return &models.RoleRequest{
		ID:             id.NewRequestID(),
		UserID:         id.NewUserID(),
		UserEmail:      "jane@ksu.edu.sa",
		Role:           id.RoleStaff,
		OrganizationID: id.NewOrganizationID(),
		Status:         status,
		CreatedAt:      time.Now(),
	}
}

func (s *RequestStoreSuite) TestCreateAndGet() {
	s.Run("creates and retrieves", func() {
		request := s.newRequest(models.StatusPending)
		s.Require().NoError(s.store.Create(s.ctx, request))

		found, err := s.store.Get(s.ctx, request.ID)
		s.Require().NoError(err)
		s.Equal(models.StatusPending, found.Status)
		s.Equal("jane@ksu.edu.sa", found.UserEmail)
	})

	s.Run("rejects duplicate id", func() {
		request := s.newRequest(models.StatusPending)
		s.Require().NoError(s.store.Create(s.ctx, request))
		s.ErrorIs(s.store.Create(s.ctx, request), sentinel.ErrAlreadyUsed)
	})

	s.Run("unknown id", func() {
		_, err := s.store.Get(s.ctx, id.NewRequestID())
		s.ErrorIs(err, sentinel.ErrNotFound)
	})
}

func (s *RequestStoreSuite) TestListByStatus() {
	older := s.newRequest(models.StatusPending)
	older.CreatedAt = time.Now().Add(-time.Hour)
	newer := s.newRequest(models.StatusPending)
	decided := s.newRequest(models.StatusAutoApproved)

	for _, request := range []*models.RoleRequest{newer, older, decided} {
		s.Require().NoError(s.store.Create(s.ctx, request))
	}

	pending, err := s.store.ListByStatus(s.ctx, models.StatusPending)
	s.Require().NoError(err)
	s.Require().Len(pending, 2)
	s.Equal(older.ID, pending[0].ID, "oldest first")
	s.Equal(newer.ID, pending[1].ID)
}

func (s *RequestStoreSuite) TestDecide() {
	s.Run("decides a pending request", func() {
		request := s.newRequest(models.StatusPending)
		s.Require().NoError(s.store.Create(s.ctx, request))

		now := time.Now()
		decided, err := s.store.Decide(s.ctx, request.ID, models.StatusApproved, "reviewer-1", "verified employment", now)
		s.Require().NoError(err)
		s.Equal(models.StatusApproved, decided.Status)
		s.Equal("reviewer-1", decided.DecidedBy)
		s.Equal("verified employment", decided.Reason)
		s.Require().NotNil(decided.DecidedAt)
	})

	s.Run("already decided", func() {
		request := s.newRequest(models.StatusPending)
		s.Require().NoError(s.store.Create(s.ctx, request))

		_, err := s.store.Decide(s.ctx, request.ID, models.StatusApproved, "reviewer-1", "", time.Now())
		s.Require().NoError(err)

		_, err = s.store.Decide(s.ctx, request.ID, models.StatusRejected, "reviewer-2", "", time.Now())
		s.ErrorIs(err, sentinel.ErrInvalidState)
	})

	s.Run("auto-approved is terminal", func() {
		request := s.newRequest(models.StatusAutoApproved)
		s.Require().NoError(s.store.Create(s.ctx, request))

		_, err := s.store.Decide(s.ctx, request.ID, models.StatusRejected, "reviewer-1", "", time.Now())
		s.ErrorIs(err, sentinel.ErrInvalidState)
	})

	s.Run("unknown request", func() {
		_, err := s.store.Decide(s.ctx, id.NewRequestID(), models.StatusApproved, "reviewer-1", "", time.Now())
		s.ErrorIs(err, sentinel.ErrNotFound)
	})
}

// Two reviewers racing on the same pending request: exactly one decision
// lands.
func (s *RequestStoreSuite) TestConcurrentDecide() {
	request := s.newRequest(models.StatusPending)
	s.Require().NoError(s.store.Create(s.ctx, request))

	const reviewers = 16
	var wg sync.WaitGroup
	var decisions atomic.Int32

	for i := 0; i < reviewers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := s.store.Decide(s.ctx, request.ID, models.StatusApproved, "reviewer", "", time.Now()); err == nil {
				decisions.Add(1)
			}
		}()
	}
	wg.Wait()

	s.Equal(int32(1), decisions.Load())
}

func TestInMemoryAllowLists(t *testing.T) {
	lists := NewInMemoryAllowLists()
	orgID := id.NewOrganizationID()

	domains, err := lists.DomainsFor(context.Background(), orgID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(domains) != 0 {
		t.Fatalf("expected empty allow-list for unknown org, got %v", domains)
	}

	lists.Set(orgID, []string{"city.gov.sa"})
	domains, err = lists.DomainsFor(context.Background(), orgID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(domains) != 1 || domains[0] != "city.gov.sa" {
		t.Fatalf("expected [city.gov.sa], got %v", domains)
	}
}
