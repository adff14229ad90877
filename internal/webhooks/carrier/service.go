package carrierwebhook

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/devicehub-backend/pkg/db/models"
	"github.com/angelmondragon/devicehub-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/devicehub-backend/pkg/errors"
	"github.com/angelmondragon/devicehub-backend/pkg/logger"
	"github.com/angelmondragon/devicehub-backend/pkg/outbox/payloads"
)

const resourceTypeTracking = "API_TRACK"

// ShipEngine tracking status codes that move an order forward.
const (
	StatusInTransit = "IT"
	StatusDelivered = "DE"
)

// Event is the tracking webhook body.
type Event struct {
	ResourceURL  string        `json:"resource_url"`
	ResourceType string        `json:"resource_type"`
	Data         TrackingEvent `json:"data"`
}

// TrackingEvent is the tracking update carried by an API_TRACK event.
type TrackingEvent struct {
	TrackingNumber    string `json:"tracking_number"`
	StatusCode        string `json:"status_code"`
	StatusDescription string `json:"status_description"`
	CarrierStatusCode string `json:"carrier_status_code"`
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type trackingRecorder interface {
	RecordTrackingWithTx(ctx context.Context, tx *gorm.DB, trackingNumber, status string) (*models.Label, error)
}

type shipmentAdvancer interface {
	AdvanceShipmentWithTx(ctx context.Context, tx *gorm.DB, orderID uuid.UUID, target enums.OrderStatus, event payloads.ShipmentEvent) (bool, error)
}

type ServiceParams struct {
	Labels            trackingRecorder
	Orders            shipmentAdvancer
	TransactionRunner txRunner
	Logger            *logger.Logger
}

// Service applies carrier tracking events to labels and orders.
type Service struct {
	labels   trackingRecorder
	orders   shipmentAdvancer
	txRunner txRunner
	logg     *logger.Logger
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Labels == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "labels service required")
	}
	if params.Orders == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "orders service required")
	}
	if params.TransactionRunner == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "transaction runner required")
	}
	return &Service{
		labels:   params.Labels,
		orders:   params.Orders,
		txRunner: params.TransactionRunner,
		logg:     params.Logger,
	}, nil
}

// DecodeEvent parses a verified webhook body.
func DecodeEvent(body []byte) (*Event, error) {
	var event Event
	if err := json.Unmarshal(body, &event); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "decode carrier event")
	}
	return &event, nil
}

func targetStatus(code string) (enums.OrderStatus, bool) {
	switch code {
	case StatusInTransit:
		return enums.OrderStatusInTransit, true
	case StatusDelivered:
		return enums.OrderStatusDelivered, true
	default:
		return "", false
	}
}

// HandleEvent records tracking progress. Non-tracking events and unknown
// tracking numbers are acknowledged without changes.
func (s *Service) HandleEvent(ctx context.Context, event *Event) error {
	if event == nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "carrier event required")
	}
	if !strings.EqualFold(event.ResourceType, resourceTypeTracking) {
		if s.logg != nil {
			s.logg.Debug(s.logg.WithField(ctx, "resource_type", event.ResourceType), "carrier event ignored")
		}
		return nil
	}
	tracking := strings.TrimSpace(event.Data.TrackingNumber)
	if tracking == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "tracking_number required")
	}
	status := strings.ToUpper(strings.TrimSpace(event.Data.StatusCode))

	return s.txRunner.WithTx(ctx, func(tx *gorm.DB) error {
		label, err := s.labels.RecordTrackingWithTx(ctx, tx, tracking, status)
		if err != nil {
			if pkgerrors.IsCode(err, pkgerrors.CodeNotFound) {
				if s.logg != nil {
					s.logg.Warn(s.logg.WithField(ctx, "tracking_number", tracking), "carrier event for unknown tracking number")
				}
				return nil
			}
			return err
		}

		target, ok := targetStatus(status)
		if !ok {
			return nil
		}
		moved, err := s.orders.AdvanceShipmentWithTx(ctx, tx, label.OrderID, target, payloads.ShipmentEvent{
			LabelID:        label.ID,
			TrackingNumber: tracking,
			TrackingStatus: status,
		})
		if err != nil {
			return err
		}
		if s.logg != nil {
			logCtx := s.logg.WithFields(s.logg.WithOrderID(ctx, label.OrderID.String()), map[string]any{
				"tracking_number": tracking,
				"status_code":     status,
				"applied":         moved,
			})
			s.logg.Info(logCtx, fmt.Sprintf("carrier tracking %s processed", status))
		}
		return nil
	})
}
