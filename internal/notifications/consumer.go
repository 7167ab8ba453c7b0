package notifications

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	pubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"

	"github.com/angelmondragon/homedoc-backend/pkg/db/models"
	"github.com/angelmondragon/homedoc-backend/pkg/enums"
	"github.com/angelmondragon/homedoc-backend/pkg/logger"
	"github.com/angelmondragon/homedoc-backend/pkg/money"
	"github.com/angelmondragon/homedoc-backend/pkg/outbox"
	"github.com/angelmondragon/homedoc-backend/pkg/outbox/idempotency"
	"github.com/angelmondragon/homedoc-backend/pkg/outbox/payloads"
)

// consumerName scopes idempotency claims so other subscribers of the same
// events keep their own record.
const consumerName = "order-notifications"

type receiver interface {
	Receive(ctx context.Context, f func(context.Context, *pubsub.Message)) error
}

type creator interface {
	Create(ctx context.Context, notification *models.Notification) (bool, error)
}

// Consumer turns order_paid events into a confirmation in the doctor's feed.
type Consumer struct {
	repo        creator
	sub         receiver
	idempotency *idempotency.Manager
	logg        *logger.Logger
}

func NewConsumer(repo creator, sub receiver, manager *idempotency.Manager, logg *logger.Logger) (*Consumer, error) {
	switch {
	case repo == nil:
		return nil, errors.New("notifications repository required")
	case sub == nil:
		return nil, errors.New("orders subscription required")
	case manager == nil:
		return nil, errors.New("idempotency manager required")
	case logg == nil:
		return nil, errors.New("logger required")
	}
	return &Consumer{repo: repo, sub: sub, idempotency: manager, logg: logg}, nil
}

// Run blocks receiving messages until ctx is canceled.
func (c *Consumer) Run(ctx context.Context) error {
	return c.sub.Receive(ctx, func(ctx context.Context, msg *pubsub.Message) {
		if c.process(ctx, msg) {
			msg.Ack()
		} else {
			msg.Nack()
		}
	})
}

// orderPaid is a decoded order_paid delivery.
type orderPaid struct {
	eventID uuid.UUID
	payloads.OrderPaidEvent
}

// decode rejects messages that no redelivery could fix.
func decode(data []byte) (orderPaid, error) {
	var envelope outbox.PayloadEnvelope
	if err := json.Unmarshal(data, &envelope); err != nil {
		return orderPaid{}, fmt.Errorf("envelope: %w", err)
	}
	id, err := uuid.Parse(envelope.EventID)
	if err != nil {
		return orderPaid{}, fmt.Errorf("event id: %w", err)
	}
	out := orderPaid{eventID: id}
	if err := json.Unmarshal(envelope.Data, &out.OrderPaidEvent); err != nil {
		return orderPaid{}, fmt.Errorf("order_paid payload: %w", err)
	}
	if out.OrderID == uuid.Nil || out.DoctorID == uuid.Nil {
		return orderPaid{}, errors.New("order_paid payload missing order or doctor id")
	}
	return out, nil
}

// process reports whether msg should be acked.
func (c *Consumer) process(ctx context.Context, msg *pubsub.Message) bool {
	eventType := msg.Attributes[outbox.AttrEventType]
	ctx = c.logg.WithFields(ctx, map[string]any{"message_id": msg.ID, "event_type": eventType})

	if eventType != string(enums.EventOrderPaid) {
		c.logg.Info(ctx, "skipping unhandled event type")
		return true
	}
	evt, err := decode(msg.Data)
	if err != nil {
		c.logg.Error(ctx, "dropping undecodable order_paid message", err)
		return true
	}
	ctx = c.logg.WithFields(ctx, map[string]any{
		"event_id":  evt.eventID.String(),
		"order_id":  evt.OrderID.String(),
		"doctor_id": evt.DoctorID.String(),
	})

	seen, err := c.idempotency.CheckAndMarkProcessed(ctx, consumerName, evt.eventID)
	if err != nil {
		c.logg.Error(ctx, "idempotency check failed", err)
		return false
	}
	if seen {
		c.logg.Info(ctx, "event already processed")
		return true
	}

	created, err := c.repo.Create(ctx, notificationFor(evt.OrderPaidEvent))
	if err != nil {
		c.logg.Error(ctx, "failed to store notification", err)
		// Drop the claim so the redelivery is not mistaken for a duplicate.
		if err := c.idempotency.Release(ctx, consumerName, evt.eventID); err != nil {
			c.logg.Error(ctx, "failed to release idempotency claim", err)
		}
		return false
	}
	if created {
		c.logg.Info(ctx, "doctor notified of paid order")
	} else {
		c.logg.Info(ctx, "order notification already exists")
	}
	return true
}

func notificationFor(evt payloads.OrderPaidEvent) *models.Notification {
	orderID := evt.OrderID
	link := "/orders/" + orderID.String()
	noun := "items"
	if len(evt.Items) == 1 {
		noun = "item"
	}
	return &models.Notification{
		DoctorID: evt.DoctorID,
		OrderID:  &orderID,
		Type:     enums.NotificationTypeOrderPaid,
		Title:    "Order confirmed",
		Message: fmt.Sprintf("Payment of $%s received for %d %s. Your order is being prepared.",
			money.Normalize(evt.TotalAmount).StringFixed(2), len(evt.Items), noun),
		Link: &link,
	}
}
