// Package rolestore defines the role-granting collaborator boundary. The
// authoritative role store lives in the surrounding platform; the engine only
// pushes grants through this interface.
package rolestore

import (
	"context"
	"sync"

	id "civicflow/pkg/domain"
)

// Store grants roles. Scope is the organization the grant applies to; the
// zero OrganizationID means platform-wide.
type Store interface {
	Grant(ctx context.Context, userID id.UserID, role id.Role, scope id.OrganizationID) error
}

// Grant is one recorded role grant.
type Grant struct {
	UserID id.UserID
	Role   id.Role
	Scope  id.OrganizationID
}

// InMemory records grants for tests and single-node deployments.
type InMemory struct {
	mu     sync.RWMutex
	grants []Grant
}

func NewInMemory() *InMemory {
	return &InMemory{}
}

func (s *InMemory) Grant(_ context.Context, userID id.UserID, role id.Role, scope id.OrganizationID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.grants = append(s.grants, Grant{UserID: userID, Role: role, Scope: scope})
	return nil
}

// Grants returns a copy of everything granted so far. Test helper.
func (s *InMemory) Grants() []Grant {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Grant, len(s.grants))
	copy(out, s.grants)
	return out
}

// HasGrant reports whether the user holds the role in the given scope.
func (s *InMemory) HasGrant(userID id.UserID, role id.Role, scope id.OrganizationID) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, g := range s.grants {
		if g.UserID == userID && g.Role == role && g.Scope == scope {
			return true
		}
	}
	return false
}
