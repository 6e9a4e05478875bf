package events_test

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	claims "vitae/internal/claims/models"
	"vitae/internal/events"
	id "vitae/pkg/domain"
	"vitae/pkg/requestcontext"
)

type stubSink struct {
	mu       sync.Mutex
	name     string
	received []events.Event
	failWith error
	closed   bool
}

func (s *stubSink) Name() string { return s.name }

func (s *stubSink) Publish(_ context.Context, event events.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failWith != nil {
		return s.failWith
	}
	s.received = append(s.received, event)
	return nil
}

func (s *stubSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *stubSink) setFailure(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failWith = err
}

func TestPublisher_AssignsSequenceAndTimestamp(t *testing.T) {
	pub := events.NewPublisher(events.NewLog())

	before := time.Now()
	first := pub.Emit(context.Background(), events.Event{Kind: events.KindClaimEndorsed})
	second := pub.Emit(context.Background(), events.Event{Kind: events.KindRewardPaid})
	after := time.Now()

	assert.Equal(t, uint64(1), first.Seq)
	assert.Equal(t, uint64(2), second.Seq)
	assert.True(t, !first.Timestamp.Before(before), "timestamp should be >= before")
	assert.True(t, !first.Timestamp.After(after), "timestamp should be <= after")
}

func TestPublisher_PreservesExistingTimestamp(t *testing.T) {
	pub := events.NewPublisher(events.NewLog())

	customTime := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	stamped := pub.Emit(context.Background(), events.Event{
		Kind:      events.KindClaimEndorsed,
		Timestamp: customTime,
	})

	assert.Equal(t, customTime, stamped.Timestamp)
}

func TestPublisher_LogPreservesEmissionOrder(t *testing.T) {
	pub := events.NewPublisher(events.NewLog())

	kinds := []events.Kind{
		events.KindClaimMadeWorkHistory,
		events.KindClaimEndorsed,
		events.KindClaimMadeGoodDeed,
		events.KindRewardPaid,
	}
	for _, kind := range kinds {
		pub.Emit(context.Background(), events.Event{Kind: kind})
	}

	recorded := pub.List()
	require.Len(t, recorded, len(kinds))
	for i, kind := range kinds {
		assert.Equal(t, kind, recorded[i].Kind)
		assert.Equal(t, uint64(i+1), recorded[i].Seq)
	}
}

func TestPublisher_FansOutStampedEvents(t *testing.T) {
	first := &stubSink{name: "first"}
	second := &stubSink{name: "second"}
	pub := events.NewPublisher(events.NewLog(),
		events.WithSink(first),
		events.WithSink(second),
	)

	stamped := pub.Emit(context.Background(), events.Event{Kind: events.KindClaimMadeExpertise})

	require.Len(t, first.received, 1)
	require.Len(t, second.received, 1)
	assert.Equal(t, stamped, first.received[0], "sinks should see the stamped copy")
	assert.Equal(t, stamped, second.received[0])
}

func TestPublisher_SinkFailureDoesNotSurface(t *testing.T) {
	failing := &stubSink{name: "failing", failWith: errors.New("broker unreachable")}
	healthy := &stubSink{name: "healthy"}
	pub := events.NewPublisher(events.NewLog(),
		events.WithSink(failing),
		events.WithSink(healthy),
	)

	stamped := pub.Emit(context.Background(), events.Event{Kind: events.KindClaimEndorsed})

	assert.Equal(t, uint64(1), stamped.Seq, "emit proceeds despite sink failure")
	require.Len(t, healthy.received, 1, "later sinks still receive the event")
	assert.Len(t, pub.List(), 1, "the log records the event regardless")
}

// TestPublisher_QuietsFailingSinkOnceOpen: the default breaker opens after
// five consecutive failures, after which individual failures stop warning.
func TestPublisher_QuietsFailingSinkOnceOpen(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	failing := &stubSink{name: "kafka", failWith: errors.New("broker unreachable")}
	pub := events.NewPublisher(events.NewLog(),
		events.WithSink(failing),
		events.WithLogger(logger),
	)

	for i := 0; i < 20; i++ {
		pub.Emit(context.Background(), events.Event{Kind: events.KindClaimEndorsed})
	}

	out := buf.String()
	assert.Equal(t, 4, strings.Count(out, "event sink publish failed"),
		"failures before the breaker opens warn individually")
	assert.Equal(t, 1, strings.Count(out, "event sink circuit opened"))
}

func TestPublisher_LogsSinkRecoveryOnce(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	flaky := &stubSink{name: "archive", failWith: errors.New("connection refused")}
	pub := events.NewPublisher(events.NewLog(),
		events.WithSink(flaky),
		events.WithLogger(logger),
	)

	for i := 0; i < 5; i++ {
		pub.Emit(context.Background(), events.Event{Kind: events.KindClaimEndorsed})
	}
	flaky.setFailure(nil)
	for i := 0; i < 4; i++ {
		pub.Emit(context.Background(), events.Event{Kind: events.KindClaimEndorsed})
	}

	assert.Equal(t, 1, strings.Count(buf.String(), "event sink recovered"))
	flaky.mu.Lock()
	defer flaky.mu.Unlock()
	assert.Len(t, flaky.received, 4, "delivery is attempted even while open")
}

func TestPublisher_CloseClosesSinks(t *testing.T) {
	first := &stubSink{name: "first"}
	second := &stubSink{name: "second"}
	pub := events.NewPublisher(events.NewLog(),
		events.WithSink(first),
		events.WithSink(second),
	)

	require.NoError(t, pub.Close())
	assert.True(t, first.closed)
	assert.True(t, second.closed)
}

func TestClaimMade_ReadsRequestContext(t *testing.T) {
	at := time.Date(2025, 6, 15, 9, 30, 0, 0, time.UTC)
	ctx := requestcontext.WithTime(context.Background(), at)
	ctx = requestcontext.WithRequestID(ctx, "req-123")
	ctx = requestcontext.WithClientLabel(ctx, "Firefox 131 / Linux")

	claimant := id.NewAccountID()
	content := []byte("Welded hulls at Meyer shipyard, 2019-2023")
	claim := claims.New(claims.CategoryWorkHistory, claimant, content, nil,
		id.DeriveFingerprint(claimant, content))

	event := events.ClaimMade(ctx, claim)

	assert.Equal(t, events.KindClaimMadeWorkHistory, event.Kind)
	assert.Equal(t, claimant, event.Claimant)
	assert.Equal(t, claim.Fingerprint, event.Fingerprint)
	assert.Equal(t, content, event.Content)
	assert.Equal(t, at, event.Timestamp)
	assert.Equal(t, "req-123", event.RequestID)
	assert.Equal(t, "Firefox 131 / Linux", event.Client)
}

func TestClaimMadeKind_CoversEveryCategory(t *testing.T) {
	want := map[claims.Category]events.Kind{
		claims.CategoryWorkHistory:          events.KindClaimMadeWorkHistory,
		claims.CategoryEducation:            events.KindClaimMadeEducation,
		claims.CategoryExpertise:            events.KindClaimMadeExpertise,
		claims.CategoryGoodDeed:             events.KindClaimMadeGoodDeed,
		claims.CategoryIntellectualProperty: events.KindClaimMadeIntellectualProperty,
	}
	for category, kind := range want {
		assert.Equal(t, kind, events.ClaimMadeKind(category), category.String())
	}
}

func TestLog_Since(t *testing.T) {
	log := events.NewLog()
	for range 5 {
		log.Append(events.Event{Kind: events.KindClaimEndorsed})
	}

	assert.Len(t, log.Since(0), 5)
	assert.Len(t, log.Since(3), 2)
	assert.Nil(t, log.Since(5))
	assert.Nil(t, log.Since(99))
	assert.Equal(t, uint64(4), log.Since(3)[0].Seq)
}
