package enums

// PaymentStatus flips once, from unpaid to paid, when the provider confirms
// the charge.
type PaymentStatus string

const (
	PaymentStatusUnpaid PaymentStatus = "unpaid"
	PaymentStatusPaid   PaymentStatus = "paid"
)

var paymentStatuses = vocabulary[PaymentStatus]{
	kind:   "payment status",
	values: []PaymentStatus{PaymentStatusUnpaid, PaymentStatusPaid},
}

func (p PaymentStatus) String() string { return string(p) }

func (p PaymentStatus) IsValid() bool { return paymentStatuses.has(p) }

func ParsePaymentStatus(value string) (PaymentStatus, error) {
	return paymentStatuses.parse(value)
}
