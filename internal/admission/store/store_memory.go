package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"civicflow/internal/admission/models"
	id "civicflow/pkg/domain"
	"civicflow/pkg/platform/sentinel"
)

// InMemoryRequests keeps role requests in a map. Safe for concurrent use.
type InMemoryRequests struct {
	mu       sync.RWMutex
	requests map[id.RequestID]*models.RoleRequest
}

func NewInMemoryRequests() *InMemoryRequests {
	return &InMemoryRequests{requests: make(map[id.RequestID]*models.RoleRequest)}
}

func (s *InMemoryRequests) Create(_ context.Context, request *models.RoleRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.requests[request.ID]; exists {
		return sentinel.ErrAlreadyUsed
	}
	s.requests[request.ID] = cloneRequest(request)
	return nil
}

func (s *InMemoryRequests) Get(_ context.Context, requestID id.RequestID) (*models.RoleRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	request, ok := s.requests[requestID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return cloneRequest(request), nil
}

func (s *InMemoryRequests) ListByStatus(_ context.Context, status models.RequestStatus) ([]*models.RoleRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.RoleRequest
	for _, request := range s.requests {
		if request.Status == status {
			out = append(out, cloneRequest(request))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *InMemoryRequests) Decide(_ context.Context, requestID id.RequestID, status models.RequestStatus, decidedBy, reason string, decidedAt time.Time) (*models.RoleRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	request, ok := s.requests[requestID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	if request.Status.Terminal() {
		return nil, sentinel.ErrInvalidState
	}

	request.Status = status
	request.DecidedBy = decidedBy
	request.Reason = reason
	request.DecidedAt = &decidedAt
	return cloneRequest(request), nil
}

// InTx has no transaction to offer in memory; fn runs directly and its writes
// are applied immediately.
func (s *InMemoryRequests) InTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

func cloneRequest(in *models.RoleRequest) *models.RoleRequest {
	out := *in
	if in.DecidedAt != nil {
		at := *in.DecidedAt
		out.DecidedAt = &at
	}
	return &out
}

// InMemoryAllowLists maps organizations to their domains. Used in tests and
// single-node deployments where the platform seeds the lists at startup.
type InMemoryAllowLists struct {
	mu    sync.RWMutex
	lists map[id.OrganizationID][]string
}

func NewInMemoryAllowLists() *InMemoryAllowLists {
	return &InMemoryAllowLists{lists: make(map[id.OrganizationID][]string)}
}

// Set replaces the organization's allow-list.
func (s *InMemoryAllowLists) Set(orgID id.OrganizationID, domains []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lists[orgID] = append([]string(nil), domains...)
}

func (s *InMemoryAllowLists) DomainsFor(_ context.Context, orgID id.OrganizationID) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]string(nil), s.lists[orgID]...), nil
}
