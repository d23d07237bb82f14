package notifications

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	pubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/openagora/agora-backend/pkg/db/models"
	"github.com/openagora/agora-backend/pkg/enums"
	"github.com/openagora/agora-backend/pkg/logger"
	"github.com/openagora/agora-backend/pkg/outbox"
	"github.com/openagora/agora-backend/pkg/outbox/idempotency"
	"github.com/openagora/agora-backend/pkg/outbox/payloads"
)

type memIdemStore struct {
	keys    map[string]struct{}
	deleted []string
}

func newMemIdemStore() *memIdemStore {
	return &memIdemStore{keys: map[string]struct{}{}}
}

func (m *memIdemStore) Get(context.Context, string) (string, error) { return "", nil }

func (m *memIdemStore) SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error) {
	if _, ok := m.keys[key]; ok {
		return false, nil
	}
	m.keys[key] = struct{}{}
	return true, nil
}

func (m *memIdemStore) IdempotencyKey(scope, id string) string {
	return "agora:idempotency:" + scope + ":" + id
}

func (m *memIdemStore) Del(_ context.Context, keys ...string) error {
	for _, key := range keys {
		delete(m.keys, key)
		m.deleted = append(m.deleted, key)
	}
	return nil
}

type fakeAskLookup struct {
	asks map[uuid.UUID]*models.Ask
}

func (f *fakeAskLookup) FindAsk(ctx context.Context, id uuid.UUID) (*models.Ask, error) {
	if a, ok := f.asks[id]; ok {
		return a, nil
	}
	return nil, gorm.ErrRecordNotFound
}

type failingWriter struct{ err error }

func (f *failingWriter) Create(ctx context.Context, notification *models.Notification) error {
	return f.err
}

func consumerFixture(t *testing.T, repo notificationWriter, asks askLookup, store *memIdemStore) *Consumer {
	t.Helper()
	manager, err := idempotency.NewManager(store, time.Hour)
	if err != nil {
		t.Fatalf("unexpected manager error: %v", err)
	}
	return &Consumer{
		repo:        repo,
		asks:        asks,
		idempotency: manager,
		decoders:    tenderDecoders(),
		logg:        logger.New(logger.Options{ServiceName: "notifications-test", Level: zerolog.ErrorLevel}),
	}
}

func eventMessage(t *testing.T, eventType enums.OutboxEventType, eventID uuid.UUID, data any) *pubsub.Message {
	t.Helper()
	raw, err := json.Marshal(data)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	envelope, err := json.Marshal(outbox.PayloadEnvelope{
		Version:    1,
		EventID:    eventID.String(),
		OccurredAt: time.Now().UTC(),
		Data:       raw,
	})
	if err != nil {
		t.Fatalf("marshal envelope: %v", err)
	}
	return &pubsub.Message{
		ID:         "msg-1",
		Data:       envelope,
		Attributes: map[string]string{"event_type": string(eventType)},
	}
}

func TestConsumerNotifiesCreatorOnBidPlaced(t *testing.T) {
	askID := uuid.New()
	creatorID := uuid.New()
	repo := &fakeRepository{}
	asks := &fakeAskLookup{asks: map[uuid.UUID]*models.Ask{
		askID: {ID: askID, CreatorAgentID: creatorID, Title: "label training data"},
	}}
	c := consumerFixture(t, repo, asks, newMemIdemStore())

	msg := eventMessage(t, enums.EventBidPlaced, uuid.New(), payloads.BidPlacedEvent{
		BidID:         uuid.New(),
		AskID:         askID,
		BidderAgentID: uuid.New(),
		PriceCents:    15_000,
	})
	result := c.process(context.Background(), msg)
	if !result.ack {
		t.Fatal("expected message to be acked")
	}
	if len(repo.created) != 1 {
		t.Fatalf("expected 1 notification, got %d", len(repo.created))
	}
	got := repo.created[0]
	if got.AgentID != creatorID {
		t.Fatalf("notification went to %s, want creator %s", got.AgentID, creatorID)
	}
	if got.Type != enums.NotificationTypeTender {
		t.Fatalf("unexpected notification type %s", got.Type)
	}
}

func TestConsumerSkipsDuplicateEvents(t *testing.T) {
	askID := uuid.New()
	repo := &fakeRepository{}
	asks := &fakeAskLookup{asks: map[uuid.UUID]*models.Ask{
		askID: {ID: askID, CreatorAgentID: uuid.New()},
	}}
	c := consumerFixture(t, repo, asks, newMemIdemStore())

	eventID := uuid.New()
	payload := payloads.BidPlacedEvent{BidID: uuid.New(), AskID: askID, PriceCents: 5_000}

	first := c.process(context.Background(), eventMessage(t, enums.EventBidPlaced, eventID, payload))
	second := c.process(context.Background(), eventMessage(t, enums.EventBidPlaced, eventID, payload))
	if !first.ack || !second.ack {
		t.Fatal("expected both deliveries to be acked")
	}
	if len(repo.created) != 1 {
		t.Fatalf("expected 1 notification across redeliveries, got %d", len(repo.created))
	}
}

func TestConsumerAcksUnhandledEventTypes(t *testing.T) {
	repo := &fakeRepository{}
	c := consumerFixture(t, repo, &fakeAskLookup{}, newMemIdemStore())

	msg := eventMessage(t, enums.EventWalletProvisioned, uuid.New(), payloads.WalletProvisionedEvent{})
	result := c.process(context.Background(), msg)
	if !result.ack {
		t.Fatal("expected unhandled event to be acked")
	}
	if len(repo.created) != 0 {
		t.Fatalf("expected no notifications, got %d", len(repo.created))
	}
}

func TestConsumerNacksAndClearsMarkerOnWriteFailure(t *testing.T) {
	askID := uuid.New()
	asks := &fakeAskLookup{asks: map[uuid.UUID]*models.Ask{
		askID: {ID: askID, CreatorAgentID: uuid.New()},
	}}
	store := newMemIdemStore()
	c := consumerFixture(t, &failingWriter{err: errors.New("insert failed")}, asks, store)

	msg := eventMessage(t, enums.EventBidPlaced, uuid.New(), payloads.BidPlacedEvent{AskID: askID})
	result := c.process(context.Background(), msg)
	if !result.nack {
		t.Fatal("expected message to be nacked")
	}
	if len(store.deleted) != 1 {
		t.Fatalf("expected processed marker cleared, deleted %d keys", len(store.deleted))
	}
}

func TestConsumerNotifiesBidderOnAcceptance(t *testing.T) {
	bidderID := uuid.New()
	repo := &fakeRepository{}
	c := consumerFixture(t, repo, &fakeAskLookup{}, newMemIdemStore())

	msg := eventMessage(t, enums.EventBidAccepted, uuid.New(), payloads.BidAcceptedEvent{
		BidID:         uuid.New(),
		AskID:         uuid.New(),
		BidderAgentID: bidderID,
		PriceCents:    22_000,
	})
	result := c.process(context.Background(), msg)
	if !result.ack {
		t.Fatal("expected message to be acked")
	}
	if len(repo.created) != 1 {
		t.Fatalf("expected 1 notification, got %d", len(repo.created))
	}
	if repo.created[0].AgentID != bidderID {
		t.Fatalf("notification went to %s, want bidder %s", repo.created[0].AgentID, bidderID)
	}
}
