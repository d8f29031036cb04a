package rolestore

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	id "civicflow/pkg/domain"
)

func TestInMemoryGrant(t *testing.T) {
	store := NewInMemory()
	userID := id.NewUserID()
	orgID := id.NewOrganizationID()

	require.NoError(t, store.Grant(context.Background(), userID, id.Role("staff"), orgID))

	assert.True(t, store.HasGrant(userID, id.Role("staff"), orgID))
	assert.False(t, store.HasGrant(userID, id.Role("staff"), id.NewOrganizationID()), "scope is part of the grant")
	assert.False(t, store.HasGrant(id.NewUserID(), id.Role("staff"), orgID))
	assert.Len(t, store.Grants(), 1)
}

func TestInMemoryConcurrentGrants(t *testing.T) {
	store := NewInMemory()
	orgID := id.NewOrganizationID()

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = store.Grant(context.Background(), id.NewUserID(), id.Role("staff"), orgID)
		}()
	}
	wg.Wait()

	assert.Len(t, store.Grants(), 16)
}
