package enums

// OutboxAggregateType names the aggregate an outbox event belongs to.
type OutboxAggregateType string

const (
	AggregateOffer     OutboxAggregateType = "offer"
	AggregateOrder     OutboxAggregateType = "order"
	AggregateLabel     OutboxAggregateType = "label"
	AggregateInventory OutboxAggregateType = "inventory"
)

var aggregateTypes = vocabulary[OutboxAggregateType]{
	kind:   "aggregate type",
	values: []OutboxAggregateType{AggregateOffer, AggregateOrder, AggregateLabel, AggregateInventory},
}

func (a OutboxAggregateType) IsValid() bool { return aggregateTypes.has(a) }

func ParseOutboxAggregateType(value string) (OutboxAggregateType, error) {
	return aggregateTypes.parse(value)
}

// OutboxEventType names a domain event published through the outbox.
type OutboxEventType string

const (
	EventOfferSubmitted    OutboxEventType = "offer.submitted"
	EventOfferCountered    OutboxEventType = "offer.countered"
	EventOfferAccepted     OutboxEventType = "offer.accepted"
	EventOfferDeclined     OutboxEventType = "offer.declined"
	EventOrderCreated      OutboxEventType = "order.created"
	EventOrderProcessing   OutboxEventType = "order.processing"
	EventOrderPaid         OutboxEventType = "order.paid"
	EventOrderShipment     OutboxEventType = "order.shipment_updated"
	EventOrderCompleted    OutboxEventType = "order.completed"
	EventOrderCancelled    OutboxEventType = "order.cancelled"
	EventReOfferCreated    OutboxEventType = "order.reoffer_created"
	EventReOfferResolved   OutboxEventType = "order.reoffer_resolved"
	EventLabelCreated      OutboxEventType = "label.created"
	EventLabelVoided       OutboxEventType = "label.voided"
	EventInventoryRestored OutboxEventType = "inventory.restored"
)

var eventTypes = vocabulary[OutboxEventType]{kind: "event type", values: []OutboxEventType{
	EventOfferSubmitted,
	EventOfferCountered,
	EventOfferAccepted,
	EventOfferDeclined,
	EventOrderCreated,
	EventOrderProcessing,
	EventOrderPaid,
	EventOrderShipment,
	EventOrderCompleted,
	EventOrderCancelled,
	EventReOfferCreated,
	EventReOfferResolved,
	EventLabelCreated,
	EventLabelVoided,
	EventInventoryRestored,
}}

func (e OutboxEventType) IsValid() bool { return eventTypes.has(e) }

// ParseOutboxEventType matches the dotted names exactly.
func ParseOutboxEventType(value string) (OutboxEventType, error) {
	return eventTypes.parse(value)
}
