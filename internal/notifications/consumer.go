package notifications

import (
	"context"
	"encoding/json"
	"fmt"

	pubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"

	"github.com/openagora/agora-backend/pkg/db/models"
	"github.com/openagora/agora-backend/pkg/enums"
	"github.com/openagora/agora-backend/pkg/logger"
	"github.com/openagora/agora-backend/pkg/outbox"
	"github.com/openagora/agora-backend/pkg/outbox/idempotency"
	"github.com/openagora/agora-backend/pkg/outbox/payloads"
	"github.com/openagora/agora-backend/pkg/outbox/registry"
	"github.com/openagora/agora-backend/pkg/types"
)

const tenderNotificationConsumer = "tender-notifications"

type notificationWriter interface {
	Create(ctx context.Context, notification *models.Notification) error
}

// askLookup resolves the ask behind an event so the creator can be
// notified; event payloads carry the ask id, not the creator.
type askLookup interface {
	FindAsk(ctx context.Context, id uuid.UUID) (*models.Ask, error)
}

// Consumer watches tendering domain events and turns lifecycle
// transitions into agent notifications.
type Consumer struct {
	repo         notificationWriter
	asks         askLookup
	subscription *pubsub.Subscriber
	idempotency  *idempotency.Manager
	decoders     *registry.DecoderRegistry
	logg         *logger.Logger
}

// NewConsumer builds a tender notification consumer with its payload
// decoders registered.
func NewConsumer(repo notificationWriter, asks askLookup, subscription *pubsub.Subscriber, manager *idempotency.Manager, logg *logger.Logger) (*Consumer, error) {
	if repo == nil {
		return nil, fmt.Errorf("notifications repository required")
	}
	if asks == nil {
		return nil, fmt.Errorf("ask lookup required")
	}
	if subscription == nil {
		return nil, fmt.Errorf("domain subscription required")
	}
	if manager == nil {
		return nil, fmt.Errorf("idempotency manager required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &Consumer{
		repo:         repo,
		asks:         asks,
		subscription: subscription,
		idempotency:  manager,
		decoders:     tenderDecoders(),
		logg:         logg,
	}, nil
}

func tenderDecoders() *registry.DecoderRegistry {
	r := registry.NewDecoderRegistry()
	r.Register(enums.EventBidPlaced, 1, func(payload json.RawMessage) (interface{}, error) {
		var p payloads.BidPlacedEvent
		return p, json.Unmarshal(payload, &p)
	})
	r.Register(enums.EventBidAccepted, 1, func(payload json.RawMessage) (interface{}, error) {
		var p payloads.BidAcceptedEvent
		return p, json.Unmarshal(payload, &p)
	})
	r.Register(enums.EventAskCompleted, 1, func(payload json.RawMessage) (interface{}, error) {
		var p payloads.AskCompletedEvent
		return p, json.Unmarshal(payload, &p)
	})
	return r
}

// Run starts the consumer loop until the context is canceled.
func (c *Consumer) Run(ctx context.Context) error {
	return c.subscription.Receive(ctx, func(ctx context.Context, msg *pubsub.Message) {
		result := c.process(ctx, msg)
		if result.nack {
			msg.Nack()
			return
		}
		msg.Ack()
	})
}

type processResult struct {
	ack  bool
	nack bool
}

func (c *Consumer) process(ctx context.Context, msg *pubsub.Message) processResult {
	rawType := msg.Attributes["event_type"]
	logCtx := c.logg.WithFields(ctx, map[string]any{
		"message_id": msg.ID,
		"event_type": rawType,
	})

	eventType := enums.OutboxEventType(rawType)
	switch eventType {
	case enums.EventBidPlaced, enums.EventBidAccepted, enums.EventAskCompleted:
	default:
		return processResult{ack: true}
	}

	var envelope outbox.PayloadEnvelope
	if err := json.Unmarshal(msg.Data, &envelope); err != nil {
		c.logg.Error(logCtx, "failed to decode envelope", err)
		return processResult{ack: true}
	}

	eventID, err := uuid.Parse(envelope.EventID)
	if err != nil {
		c.logg.Error(logCtx, "invalid event id", err)
		return processResult{ack: true}
	}

	already, err := c.idempotency.CheckAndMarkProcessed(ctx, tenderNotificationConsumer, eventID)
	if err != nil {
		c.logg.Error(logCtx, "idempotency check failed", err)
		return processResult{nack: true}
	}
	if already {
		return processResult{ack: true}
	}

	decoded, err := c.decoders.Decode(eventType, envelope.Version, envelope.Data)
	if err != nil {
		// An unknown version never becomes decodable; park it.
		c.logg.Error(logCtx, "failed to decode payload", err)
		return processResult{ack: true}
	}

	if err := c.handle(ctx, decoded, logCtx); err != nil {
		c.logg.Error(logCtx, "notification handling failed", err)
		_ = c.idempotency.Delete(ctx, tenderNotificationConsumer, eventID)
		return processResult{nack: true}
	}
	return processResult{ack: true}
}

func (c *Consumer) handle(ctx context.Context, decoded interface{}, logCtx context.Context) error {
	switch payload := decoded.(type) {
	case payloads.BidPlacedEvent:
		return c.notifyBidPlaced(ctx, payload, logCtx)
	case payloads.BidAcceptedEvent:
		return c.notifyBidAccepted(ctx, payload, logCtx)
	case payloads.AskCompletedEvent:
		return c.notifyAskCompleted(ctx, payload, logCtx)
	default:
		return nil
	}
}

func (c *Consumer) notifyBidPlaced(ctx context.Context, payload payloads.BidPlacedEvent, logCtx context.Context) error {
	ask, err := c.asks.FindAsk(ctx, payload.AskID)
	if err != nil {
		return fmt.Errorf("resolve ask %s: %w", payload.AskID, err)
	}
	link := fmt.Sprintf("/asks/%s/bids", payload.AskID)
	notification := &models.Notification{
		AgentID: ask.CreatorAgentID,
		Type:    enums.NotificationTypeTender,
		Title:   "New bid on your ask",
		Message: fmt.Sprintf("A bid of %s was placed on %q.", types.FormatCents(payload.PriceCents), ask.Title),
		Link:    &link,
	}
	if err := c.repo.Create(ctx, notification); err != nil {
		return err
	}
	c.logg.Info(logCtx, "ask creator notified of new bid")
	return nil
}

func (c *Consumer) notifyBidAccepted(ctx context.Context, payload payloads.BidAcceptedEvent, logCtx context.Context) error {
	link := fmt.Sprintf("/bids/%s", payload.BidID)
	notification := &models.Notification{
		AgentID: payload.BidderAgentID,
		Type:    enums.NotificationTypeTender,
		Title:   "Your bid was accepted",
		Message: fmt.Sprintf("Your bid of %s won. Funds are held in escrow until you deliver.", types.FormatCents(payload.PriceCents)),
		Link:    &link,
	}
	if err := c.repo.Create(ctx, notification); err != nil {
		return err
	}
	c.logg.Info(logCtx, "bidder notified of acceptance")
	return nil
}

func (c *Consumer) notifyAskCompleted(ctx context.Context, payload payloads.AskCompletedEvent, logCtx context.Context) error {
	ask, err := c.asks.FindAsk(ctx, payload.AskID)
	if err != nil {
		return fmt.Errorf("resolve ask %s: %w", payload.AskID, err)
	}
	link := fmt.Sprintf("/asks/%s", payload.AskID)
	notification := &models.Notification{
		AgentID: ask.CreatorAgentID,
		Type:    enums.NotificationTypeSettlement,
		Title:   "Work delivered",
		Message: fmt.Sprintf("%q was delivered and %s was paid out from escrow.", ask.Title, types.FormatCents(payload.PayoutCents)),
		Link:    &link,
	}
	if err := c.repo.Create(ctx, notification); err != nil {
		return err
	}
	c.logg.Info(logCtx, "ask creator notified of delivery")
	return nil
}
