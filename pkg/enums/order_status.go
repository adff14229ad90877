package enums

import "slices"

// OrderStatus tracks the fulfilment lifecycle of an order.
type OrderStatus string

const (
	OrderStatusPendingPayment        OrderStatus = "pending_payment"
	OrderStatusProcessing            OrderStatus = "processing"
	OrderStatusLabelCreated          OrderStatus = "label_created"
	OrderStatusInTransit             OrderStatus = "in_transit"
	OrderStatusDelivered             OrderStatus = "delivered"
	OrderStatusReOfferedPending      OrderStatus = "re-offered-pending"
	OrderStatusReOfferedAccepted     OrderStatus = "re-offered-accepted"
	OrderStatusReOfferedAutoAccepted OrderStatus = "re-offered-auto-accepted"
	OrderStatusReOfferedDeclined     OrderStatus = "re-offered-declined"
	OrderStatusCompleted             OrderStatus = "completed"
	OrderStatusCancelled             OrderStatus = "cancelled"
)

var orderStatuses = vocabulary[OrderStatus]{
	kind: "order status",
	values: []OrderStatus{
		OrderStatusPendingPayment,
		OrderStatusProcessing,
		OrderStatusLabelCreated,
		OrderStatusInTransit,
		OrderStatusDelivered,
		OrderStatusReOfferedPending,
		OrderStatusReOfferedAccepted,
		OrderStatusReOfferedAutoAccepted,
		OrderStatusReOfferedDeclined,
		OrderStatusCompleted,
		OrderStatusCancelled,
	},
}

func (s OrderStatus) String() string { return string(s) }

func (s OrderStatus) IsValid() bool { return orderStatuses.has(s) }

// IsTerminal reports whether the order is closed to further lifecycle changes.
func (s OrderStatus) IsTerminal() bool {
	return s == OrderStatusCompleted || s == OrderStatusCancelled
}

// IsReOfferAccepted covers the buyer and deadline outcomes alike; only the
// audit tag tells them apart.
func (s OrderStatus) IsReOfferAccepted() bool {
	return s == OrderStatusReOfferedAccepted || s == OrderStatusReOfferedAutoAccepted
}

func (s OrderStatus) In(candidates ...OrderStatus) bool {
	return slices.Contains(candidates, s)
}

// ParseOrderStatus is case sensitive; the hyphenated re-offer values are
// stored as written.
func ParseOrderStatus(value string) (OrderStatus, error) {
	return orderStatuses.parse(value)
}
