// Package registry maps outbox event types to their aggregate, topic and
// payload schema, and decodes stored rows before they are published.
package registry

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/angelmondragon/devicehub-backend/pkg/db/models"
	"github.com/angelmondragon/devicehub-backend/pkg/enums"
	"github.com/angelmondragon/devicehub-backend/pkg/outbox"
	"github.com/angelmondragon/devicehub-backend/pkg/outbox/payloads"
)

type EventDescriptor struct {
	EventType      enums.OutboxEventType
	AggregateType  enums.OutboxAggregateType
	Topic          string
	PayloadFactory func() any
}

// ResolvedEvent is a stored row with its envelope and typed payload decoded.
type ResolvedEvent struct {
	Descriptor EventDescriptor
	Envelope   outbox.Envelope
	Payload    any
}

type EventRegistry struct {
	entries map[enums.OutboxEventType]EventDescriptor
}

// family groups event types that share an aggregate and a payload schema.
type family struct {
	aggregate enums.OutboxAggregateType
	payload   func() any
	events    []enums.OutboxEventType
}

var catalog = []family{
	{
		aggregate: enums.AggregateOffer,
		payload:   func() any { return &payloads.OfferEvent{} },
		events: []enums.OutboxEventType{
			enums.EventOfferSubmitted,
			enums.EventOfferCountered,
			enums.EventOfferAccepted,
			enums.EventOfferDeclined,
		},
	},
	{
		aggregate: enums.AggregateOrder,
		payload:   func() any { return &payloads.OrderStatusEvent{} },
		events: []enums.OutboxEventType{
			enums.EventOrderCreated,
			enums.EventOrderProcessing,
			enums.EventOrderPaid,
			enums.EventOrderCompleted,
			enums.EventOrderCancelled,
		},
	},
	{
		aggregate: enums.AggregateOrder,
		payload:   func() any { return &payloads.ReOfferEvent{} },
		events:    []enums.OutboxEventType{enums.EventReOfferCreated, enums.EventReOfferResolved},
	},
	{
		aggregate: enums.AggregateOrder,
		payload:   func() any { return &payloads.ShipmentEvent{} },
		events:    []enums.OutboxEventType{enums.EventOrderShipment},
	},
	{
		aggregate: enums.AggregateLabel,
		payload:   func() any { return &payloads.LabelEvent{} },
		events:    []enums.OutboxEventType{enums.EventLabelCreated, enums.EventLabelVoided},
	},
	{
		aggregate: enums.AggregateInventory,
		payload:   func() any { return &payloads.InventoryRestoredEvent{} },
		events:    []enums.OutboxEventType{enums.EventInventoryRestored},
	},
}

// NewEventRegistry routes every cataloged event to topic.
func NewEventRegistry(topic string) (*EventRegistry, error) {
	topic = strings.TrimSpace(topic)
	if topic == "" {
		return nil, fmt.Errorf("domain topic is required")
	}
	entries := make(map[enums.OutboxEventType]EventDescriptor)
	for _, f := range catalog {
		for _, eventType := range f.events {
			if _, dup := entries[eventType]; dup {
				return nil, fmt.Errorf("event type %s cataloged twice", eventType)
			}
			entries[eventType] = EventDescriptor{
				EventType:      eventType,
				AggregateType:  f.aggregate,
				Topic:          topic,
				PayloadFactory: f.payload,
			}
		}
	}
	return &EventRegistry{entries: entries}, nil
}

func (r *EventRegistry) Descriptor(eventType enums.OutboxEventType) (EventDescriptor, bool) {
	desc, ok := r.entries[eventType]
	return desc, ok
}

// Resolve checks the row against its descriptor and decodes the payload.
// Every failure here is permanent, so all errors are NonRetryableError.
func (r *EventRegistry) Resolve(event models.OutboxEvent) (*ResolvedEvent, error) {
	resolved, err := r.resolve(event)
	if err != nil {
		return nil, NewNonRetryableError(err)
	}
	return resolved, nil
}

func (r *EventRegistry) resolve(event models.OutboxEvent) (*ResolvedEvent, error) {
	desc, ok := r.entries[event.EventType]
	switch {
	case !ok:
		return nil, fmt.Errorf("unsupported event type %s", event.EventType)
	case desc.AggregateType != event.AggregateType:
		return nil, fmt.Errorf("aggregate mismatch: expected %s got %s", desc.AggregateType, event.AggregateType)
	case event.AggregateID == uuid.Nil:
		return nil, fmt.Errorf("missing aggregate_id")
	}

	envelope, err := outbox.DecodeEnvelope(event.Payload)
	if err != nil {
		return nil, err
	}
	data := bytes.TrimSpace(envelope.Data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil, fmt.Errorf("payload missing for %s", event.EventType)
	}
	payload := desc.PayloadFactory()
	if err := json.Unmarshal(data, payload); err != nil {
		return nil, fmt.Errorf("decode %s payload: %w", event.EventType, err)
	}
	return &ResolvedEvent{Descriptor: desc, Envelope: envelope, Payload: payload}, nil
}
