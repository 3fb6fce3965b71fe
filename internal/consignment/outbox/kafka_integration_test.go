//go:build integration

package outbox

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"github.com/twmb/franz-go/pkg/kgo"

	"emcs/internal/consignment/models"
	"emcs/pkg/testutil/containers"
)

type KafkaSuite struct {
	suite.Suite
	broker string
}

func TestKafkaSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(KafkaSuite))
}

func (s *KafkaSuite) SetupSuite() {
	s.broker = containers.GetManager().GetRedpanda(s.T()).Broker
}

func (s *KafkaSuite) TestPublishKeysByReference() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pub, err := NewKafkaPublisher([]string{s.broker}, "movements-test")
	s.Require().NoError(err)
	defer pub.Close()
	s.Require().NoError(pub.EnsureTopic(ctx, 1, 1))
	s.Require().NoError(pub.EnsureTopic(ctx, 1, 1), "existing topic is not an error")

	now := time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)
	event := models.NewMovementEvent("24EU12345678901234564", models.EventDispatched, warehouse, "0xdispatch", "abc123", now)
	s.Require().NoError(pub.Publish(ctx, []*models.MovementEvent{event}))

	consumer, err := kgo.NewClient(
		kgo.SeedBrokers(s.broker),
		kgo.ConsumeTopics("movements-test"),
		kgo.ConsumeResetOffset(kgo.NewOffset().AtStart()),
	)
	s.Require().NoError(err)
	defer consumer.Close()

	fetches := consumer.PollFetches(ctx)
	s.Require().Empty(fetches.Errors())
	records := fetches.Records()
	s.Require().Len(records, 1)
	s.Equal("24EU12345678901234564", string(records[0].Key))

	var got models.MovementEvent
	s.Require().NoError(json.Unmarshal(records[0].Value, &got))
	s.Equal(event.ID, got.ID)
	s.Equal("abc123", got.DocumentHash)
}
