package carrierwebhook

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/devicehub-backend/pkg/db/models"
	"github.com/angelmondragon/devicehub-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/devicehub-backend/pkg/errors"
	"github.com/angelmondragon/devicehub-backend/pkg/outbox/payloads"
)

type stubTxRunner struct{}

func (stubTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return fn(nil)
}

type stubLabels struct {
	label    *models.Label
	recorded []string
}

func (s *stubLabels) RecordTrackingWithTx(ctx context.Context, tx *gorm.DB, trackingNumber, status string) (*models.Label, error) {
	if s.label == nil || s.label.TrackingNumber == nil || *s.label.TrackingNumber != trackingNumber {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "label not found for tracking number")
	}
	s.recorded = append(s.recorded, status)
	return s.label, nil
}

type advanceCall struct {
	orderID uuid.UUID
	target  enums.OrderStatus
	event   payloads.ShipmentEvent
}

type stubOrders struct {
	calls []advanceCall
}

func (s *stubOrders) AdvanceShipmentWithTx(ctx context.Context, tx *gorm.DB, orderID uuid.UUID, target enums.OrderStatus, event payloads.ShipmentEvent) (bool, error) {
	s.calls = append(s.calls, advanceCall{orderID: orderID, target: target, event: event})
	return true, nil
}

func newService(t *testing.T) (*Service, *stubLabels, *stubOrders) {
	t.Helper()
	tracking := "9400111"
	labels := &stubLabels{label: &models.Label{ID: uuid.New(), OrderID: uuid.New(), TrackingNumber: &tracking}}
	orders := &stubOrders{}
	svc, err := NewService(ServiceParams{Labels: labels, Orders: orders, TransactionRunner: stubTxRunner{}})
	if err != nil {
		t.Fatalf("setup service: %v", err)
	}
	return svc, labels, orders
}

func TestHandleEventAdvancesOrder(t *testing.T) {
	svc, labels, orders := newService(t)

	for _, code := range []string{"it", "DE"} {
		event, err := DecodeEvent([]byte(`{"resource_type":"API_TRACK","data":{"tracking_number":"9400111","status_code":"` + code + `"}}`))
		if err != nil {
			t.Fatalf("decode: %v", err)
		}
		if err := svc.HandleEvent(context.Background(), event); err != nil {
			t.Fatalf("handle %s: %v", code, err)
		}
	}

	if len(labels.recorded) != 2 || labels.recorded[0] != "IT" || labels.recorded[1] != "DE" {
		t.Fatalf("unexpected recorded statuses %v", labels.recorded)
	}
	if len(orders.calls) != 2 {
		t.Fatalf("expected two shipment updates, got %d", len(orders.calls))
	}
	if orders.calls[0].target != enums.OrderStatusInTransit || orders.calls[1].target != enums.OrderStatusDelivered {
		t.Fatalf("unexpected targets %+v", orders.calls)
	}
	if orders.calls[0].orderID != labels.label.OrderID || orders.calls[0].event.LabelID != labels.label.ID {
		t.Fatalf("shipment update not tied to label order")
	}
}

func TestHandleEventRecordsOtherStatusesOnly(t *testing.T) {
	svc, labels, orders := newService(t)
	event := &Event{ResourceType: "API_TRACK", Data: TrackingEvent{TrackingNumber: "9400111", StatusCode: "AC"}}

	if err := svc.HandleEvent(context.Background(), event); err != nil {
		t.Fatalf("handle: %v", err)
	}
	if len(labels.recorded) != 1 {
		t.Fatalf("expected tracking status recorded")
	}
	if len(orders.calls) != 0 {
		t.Fatalf("expected no order change, got %d", len(orders.calls))
	}
}

func TestHandleEventIgnoresUnknownEvents(t *testing.T) {
	svc, labels, orders := newService(t)

	if err := svc.HandleEvent(context.Background(), &Event{ResourceType: "BATCH"}); err != nil {
		t.Fatalf("expected non-tracking event acknowledged, got %v", err)
	}
	unknown := &Event{ResourceType: "API_TRACK", Data: TrackingEvent{TrackingNumber: "nope", StatusCode: "DE"}}
	if err := svc.HandleEvent(context.Background(), unknown); err != nil {
		t.Fatalf("expected unknown tracking number acknowledged, got %v", err)
	}
	if len(labels.recorded) != 0 || len(orders.calls) != 0 {
		t.Fatalf("expected no changes")
	}
}

func TestHandleEventRequiresTrackingNumber(t *testing.T) {
	svc, _, _ := newService(t)
	err := svc.HandleEvent(context.Background(), &Event{ResourceType: "API_TRACK"})
	if !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestDecodeEventRejectsGarbage(t *testing.T) {
	if _, err := DecodeEvent([]byte("not-json")); !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}
