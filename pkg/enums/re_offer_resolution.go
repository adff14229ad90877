package enums

// ReOfferResolution records how a re-offer was closed. It doubles as the audit
// tag separating buyer acceptance from the deadline rule.
type ReOfferResolution string

const (
	ReOfferResolutionAccepted     ReOfferResolution = "accepted"
	ReOfferResolutionDeclined     ReOfferResolution = "declined"
	ReOfferResolutionAutoAccepted ReOfferResolution = "auto_accepted"
)

// String implements fmt.Stringer.
func (r ReOfferResolution) String() string {
	return string(r)
}

// ResolvedBy returns "system" for the deadline rule and "buyer" otherwise.
func (r ReOfferResolution) ResolvedBy() string {
	switch r {
	case ReOfferResolutionAutoAccepted:
		return "system"
	case ReOfferResolutionAccepted, ReOfferResolutionDeclined:
		return "buyer"
	default:
		return ""
	}
}
