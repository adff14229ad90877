package types

// ShippingInfo is the snapshot of ship-from details captured at payment time.
type ShippingInfo struct {
	Name       string  `json:"name" validate:"required"`
	Company    *string `json:"company,omitempty"`
	Phone      string  `json:"phone" validate:"required"`
	Email      string  `json:"email" validate:"required,email"`
	Line1      string  `json:"line1" validate:"required"`
	Line2      *string `json:"line2,omitempty"`
	City       string  `json:"city" validate:"required"`
	State      string  `json:"state" validate:"required"`
	PostalCode string  `json:"postal_code" validate:"required"`
	Country    string  `json:"country" validate:"omitempty,len=2"`
}

// CountryOrDefault returns the ISO country code, defaulting to US.
func (s ShippingInfo) CountryOrDefault() string {
	if s.Country == "" {
		return "US"
	}
	return s.Country
}
