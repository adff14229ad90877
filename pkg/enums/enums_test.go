package enums

import "testing"

func TestOrderStatusVocabularyIsCaseSensitive(t *testing.T) {
	if _, err := ParseOrderStatus("re-offered-pending"); err != nil {
		t.Fatalf("expected valid status: %v", err)
	}
	if _, err := ParseOrderStatus("Re-Offered-Pending"); err == nil {
		t.Fatal("expected mixed case to be rejected")
	}
	if _, err := ParseOfferStatus("COUNTER"); err == nil {
		t.Fatal("expected upper case offer status to be rejected")
	}
}

func TestReOfferAcceptedVariants(t *testing.T) {
	if !OrderStatusReOfferedAccepted.IsReOfferAccepted() || !OrderStatusReOfferedAutoAccepted.IsReOfferAccepted() {
		t.Fatal("expected both accepted variants to report accepted")
	}
	if OrderStatusReOfferedDeclined.IsReOfferAccepted() {
		t.Fatal("declined is not accepted")
	}
	if ReOfferResolutionAutoAccepted.ResolvedBy() != "system" || ReOfferResolutionAccepted.ResolvedBy() != "buyer" {
		t.Fatal("unexpected audit tags")
	}
}

func TestOfferStatusNegotiable(t *testing.T) {
	for _, s := range []OfferStatus{OfferStatusPending, OfferStatusCounter, OfferStatusAccepted, OfferStatusDeclined} {
		if !s.IsNegotiable() {
			t.Fatalf("expected %s negotiable", s)
		}
	}
	if OfferStatusProcessing.IsNegotiable() || OfferStatusCompleted.IsNegotiable() {
		t.Fatal("fulfilment statuses are not negotiable")
	}
}

func TestParsePaymentMethodNormalizes(t *testing.T) {
	method, err := ParsePaymentMethod(" Card ")
	if err != nil || method != PaymentMethodCard {
		t.Fatalf("unexpected parse result %q %v", method, err)
	}
	if PaymentMethodWire.RequiresIntent() {
		t.Fatal("wire should not mint an intent")
	}
}

func TestVocabularyErrorsNameTheKind(t *testing.T) {
	if _, err := ParseOutboxEventType("order.shipped"); err == nil || err.Error() != `invalid event type "order.shipped"` {
		t.Fatalf("unexpected error %v", err)
	}
	if _, err := ParsePaymentStatus("refunded"); err == nil {
		t.Fatal("expected unknown payment status to be rejected")
	}
	if role, err := ParseRole(" ADMIN"); err != nil || role != RoleAdmin {
		t.Fatalf("expected folded admin role, got %q %v", role, err)
	}
	if OfferStatus("").IsNegotiable() {
		t.Fatal("unknown statuses are not negotiable")
	}
	if !OrderStatusCancelled.In(OrderStatusCompleted, OrderStatusCancelled) {
		t.Fatal("expected membership")
	}
}
