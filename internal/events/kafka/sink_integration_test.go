//go:build integration

package kafka_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"github.com/twmb/franz-go/pkg/kgo"

	"vitae/internal/events"
	"vitae/internal/events/kafka"
	id "vitae/pkg/domain"
	"vitae/pkg/testutil/containers"
)

type KafkaSinkSuite struct {
	suite.Suite
	redpanda *containers.RedpandaContainer
	ctx      context.Context
}

func TestKafkaSinkSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(KafkaSinkSuite))
}

func (s *KafkaSinkSuite) SetupSuite() {
	s.ctx = context.Background()
	s.redpanda = containers.NewRedpandaContainer(s.T())
}

// consume reads records from the start of a topic until want have arrived.
func (s *KafkaSinkSuite) consume(topic string, want int) []*kgo.Record {
	s.T().Helper()

	client, err := kgo.NewClient(
		kgo.SeedBrokers(s.redpanda.Brokers...),
		kgo.ConsumeTopics(topic),
		kgo.ConsumeResetOffset(kgo.NewOffset().AtStart()),
	)
	s.Require().NoError(err)
	defer client.Close()

	ctx, cancel := context.WithTimeout(s.ctx, 30*time.Second)
	defer cancel()

	var records []*kgo.Record
	for len(records) < want {
		fetches := client.PollFetches(ctx)
		s.Require().Empty(fetches.Errors())
		iter := fetches.RecordIter()
		for !iter.Done() {
			records = append(records, iter.Next())
		}
	}
	return records
}

func (s *KafkaSinkSuite) TestPublishRoundTrip() {
	const topic = "vitae.events.roundtrip"
	sink, err := kafka.NewSink(s.ctx, s.redpanda.Brokers, topic)
	s.Require().NoError(err)
	defer sink.Close()

	claimant := id.NewAccountID()
	event := events.Event{
		Seq:         7,
		Kind:        events.KindClaimMadeExpertise,
		Timestamp:   time.Date(2026, time.March, 14, 9, 30, 0, 0, time.UTC),
		Claimant:    claimant,
		Fingerprint: id.DeriveFingerprint(claimant, []byte("cold-water welding certification")),
		Content:     []byte("cold-water welding certification"),
	}
	s.Require().NoError(sink.Publish(s.ctx, event))

	records := s.consume(topic, 1)
	s.Require().Len(records, 1)

	s.Equal(claimant.String(), string(records[0].Key), "records are keyed by claimant")

	var got events.Event
	s.Require().NoError(json.Unmarshal(records[0].Value, &got))
	s.Equal(event, got)
}

func (s *KafkaSinkSuite) TestPublishPreservesEmissionOrder() {
	const topic = "vitae.events.ordering"
	sink, err := kafka.NewSink(s.ctx, s.redpanda.Brokers, topic)
	s.Require().NoError(err)
	defer sink.Close()

	claimant := id.NewAccountID()
	for seq := uint64(1); seq <= 3; seq++ {
		event := events.Event{
			Seq:       seq,
			Kind:      events.KindClaimEndorsed,
			Timestamp: time.Date(2026, time.March, 14, 9, 30, int(seq), 0, time.UTC),
			Claimant:  claimant,
			Endorser:  id.NewAccountID(),
		}
		s.Require().NoError(sink.Publish(s.ctx, event))
	}

	records := s.consume(topic, 3)
	s.Require().Len(records, 3)

	for i, record := range records {
		var got events.Event
		s.Require().NoError(json.Unmarshal(record.Value, &got))
		s.Equal(uint64(i+1), got.Seq)
	}
}

// TestNewSinkToleratesExistingTopic covers restarts: the second sink finds
// the topic already created and must not fail.
func (s *KafkaSinkSuite) TestNewSinkToleratesExistingTopic() {
	const topic = "vitae.events.restart"

	first, err := kafka.NewSink(s.ctx, s.redpanda.Brokers, topic)
	s.Require().NoError(err)
	s.Require().NoError(first.Close())

	second, err := kafka.NewSink(s.ctx, s.redpanda.Brokers, topic)
	s.Require().NoError(err)
	s.Require().NoError(second.Close())
}
