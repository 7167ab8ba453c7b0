// Package registry decides where and how each outbox row is published.
package registry

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/homedoc-backend/pkg/config"
	"github.com/angelmondragon/homedoc-backend/pkg/db/models"
	"github.com/angelmondragon/homedoc-backend/pkg/enums"
	"github.com/angelmondragon/homedoc-backend/pkg/outbox"
	"github.com/angelmondragon/homedoc-backend/pkg/outbox/payloads"
)

// Route is the publish plan for one outbox row.
type Route struct {
	Topic       string
	OrderingKey string
	Attributes  map[string]string
	Envelope    outbox.PayloadEnvelope
}

// PermanentError marks a row that no amount of retrying will deliver.
type PermanentError struct {
	Err error
}

func (e *PermanentError) Error() string {
	return "permanent: " + e.Err.Error()
}

func (e *PermanentError) Unwrap() error { return e.Err }

// Permanent wraps err so the relay dead-letters instead of retrying.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &PermanentError{Err: err}
}

// IsPermanent reports whether err carries a PermanentError anywhere in its chain.
func IsPermanent(err error) bool {
	var target *PermanentError
	return errors.As(err, &target)
}

// DoctorOrderingKey keeps one doctor's order events in commit order while
// different doctors publish in parallel.
func DoctorOrderingKey(doctorID uuid.UUID) string {
	return "doctor:" + doctorID.String()
}

type routeFunc func(envelope outbox.PayloadEnvelope, row models.OutboxEvent) (key string, attrs map[string]string, err error)

type binding struct {
	aggregate enums.OutboxAggregateType
	topic     string
	route     routeFunc
}

// Router maps outbox rows to their Pub/Sub route.
type Router struct {
	bindings map[enums.OutboxEventType]binding
}

func NewRouter(cfg config.PubSubConfig) (*Router, error) {
	topic := strings.TrimSpace(cfg.OrdersTopic)
	if topic == "" {
		return nil, errors.New("orders topic is required")
	}
	return &Router{bindings: map[enums.OutboxEventType]binding{
		enums.EventOrderPaid: {
			aggregate: enums.AggregateMedicationOrder,
			topic:     topic,
			route:     orderPaidRoute,
		},
	}}, nil
}

// Route decodes row and builds its publish plan. Every error it returns is
// permanent: the row itself is malformed.
func (r *Router) Route(row models.OutboxEvent) (Route, error) {
	b, ok := r.bindings[row.EventType]
	if !ok {
		return Route{}, Permanent(fmt.Errorf("no route for event type %q", row.EventType))
	}
	if row.AggregateType != b.aggregate {
		return Route{}, Permanent(fmt.Errorf("%s rows belong to %s aggregates, got %q", row.EventType, b.aggregate, row.AggregateType))
	}

	var envelope outbox.PayloadEnvelope
	if err := json.Unmarshal(row.Payload, &envelope); err != nil {
		return Route{}, Permanent(fmt.Errorf("decode envelope: %w", err))
	}
	if envelope.EventID == "" {
		return Route{}, Permanent(errors.New("envelope has no event id"))
	}

	key, attrs, err := b.route(envelope, row)
	if err != nil {
		return Route{}, Permanent(err)
	}
	attrs[outbox.AttrEventID] = envelope.EventID
	attrs[outbox.AttrEventType] = string(row.EventType)
	attrs[outbox.AttrSchemaVersion] = strconv.Itoa(envelope.Version)
	attrs[outbox.AttrOccurredAt] = envelope.OccurredAt.UTC().Format(time.RFC3339Nano)

	return Route{
		Topic:       b.topic,
		OrderingKey: key,
		Attributes:  attrs,
		Envelope:    envelope,
	}, nil
}

func orderPaidRoute(envelope outbox.PayloadEnvelope, row models.OutboxEvent) (string, map[string]string, error) {
	var paid payloads.OrderPaidEvent
	if err := json.Unmarshal(envelope.Data, &paid); err != nil {
		return "", nil, fmt.Errorf("decode order_paid: %w", err)
	}
	switch {
	case paid.OrderID == uuid.Nil:
		return "", nil, errors.New("order_paid without order_id")
	case paid.OrderID != row.AggregateID:
		return "", nil, fmt.Errorf("order_paid for %s stored under aggregate %s", paid.OrderID, row.AggregateID)
	case paid.DoctorID == uuid.Nil:
		return "", nil, errors.New("order_paid without doctor_id")
	}
	return DoctorOrderingKey(paid.DoctorID), map[string]string{
		outbox.AttrOrderID:         paid.OrderID.String(),
		outbox.AttrDoctorID:        paid.DoctorID.String(),
		outbox.AttrStripeSessionID: paid.StripeSessionID,
		outbox.AttrTotalAmount:     paid.TotalAmount.StringFixed(2),
		outbox.AttrItemCount:       strconv.Itoa(len(paid.Items)),
	}, nil
}
