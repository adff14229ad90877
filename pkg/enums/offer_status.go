package enums

// OfferStatus tracks the negotiation lifecycle of a buyer offer.
type OfferStatus string

const (
	OfferStatusPending    OfferStatus = "pending"
	OfferStatusCounter    OfferStatus = "counter"
	OfferStatusAccepted   OfferStatus = "accepted"
	OfferStatusDeclined   OfferStatus = "declined"
	OfferStatusProcessing OfferStatus = "processing"
	OfferStatusCompleted  OfferStatus = "completed"
)

var offerStatuses = vocabulary[OfferStatus]{
	kind: "offer status",
	values: []OfferStatus{
		OfferStatusPending,
		OfferStatusCounter,
		OfferStatusAccepted,
		OfferStatusDeclined,
		OfferStatusProcessing,
		OfferStatusCompleted,
	},
}

func (s OfferStatus) String() string { return string(s) }

func (s OfferStatus) IsValid() bool { return offerStatuses.has(s) }

// IsNegotiable is true until checkout moves the offer into fulfilment.
func (s OfferStatus) IsNegotiable() bool {
	return s != OfferStatusProcessing && s != OfferStatusCompleted && s.IsValid()
}

func ParseOfferStatus(value string) (OfferStatus, error) {
	return offerStatuses.parse(value)
}
