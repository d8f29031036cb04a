//go:build integration

package notify

import (
	"context"
	"testing"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/suite"

	"civicflow/pkg/testutil/containers"
)

type RedisDispatcherSuite struct {
	suite.Suite
	redis  *containers.RedisContainer
	client *goredis.Client
}

func TestRedisDispatcherSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(RedisDispatcherSuite))
}

func (s *RedisDispatcherSuite) SetupSuite() {
	s.redis = containers.NewRedisContainer(s.T())
	s.client = s.redis.Client
}

func (s *RedisDispatcherSuite) TearDownSuite() {
	if s.client != nil {
		_ = s.client.Close()
	}
	if s.redis != nil {
		_ = s.redis.Container.Terminate(context.Background())
	}
}

func (s *RedisDispatcherSuite) TestSendAppendsToStream() {
	ctx := context.Background()
	dispatcher := NewRedisDispatcher(s.client, "civicflow:notifications:test")

	err := dispatcher.Send(ctx, Event{
		Kind:      KindLifecycleAdvanced,
		Recipient: "user:42",
		Payload:   map[string]string{"entity_id": "abc", "from": "setup", "to": "accreditation_pending"},
		At:        time.Now(),
	})
	s.Require().NoError(err)

	entries, err := s.client.XRange(ctx, "civicflow:notifications:test", "-", "+").Result()
	s.Require().NoError(err)
	s.Require().Len(entries, 1)

	s.Equal(string(KindLifecycleAdvanced), entries[0].Values["kind"])
	s.Equal("user:42", entries[0].Values["recipient"])
}
