package enums

// PaymentMethod is how the buyer settles an order. Only card payments go
// through a provider payment intent.
type PaymentMethod string

const (
	PaymentMethodCard PaymentMethod = "card"
	PaymentMethodWire PaymentMethod = "wire"
)

var paymentMethods = vocabulary[PaymentMethod]{
	kind:   "payment method",
	values: []PaymentMethod{PaymentMethodCard, PaymentMethodWire},
	fold:   true,
}

func (p PaymentMethod) String() string { return string(p) }

func (p PaymentMethod) IsValid() bool { return paymentMethods.has(p) }

func (p PaymentMethod) RequiresIntent() bool { return p == PaymentMethodCard }

// ParsePaymentMethod accepts any casing and surrounding whitespace.
func ParsePaymentMethod(value string) (PaymentMethod, error) {
	return paymentMethods.parse(value)
}
