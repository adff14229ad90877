package labels

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/devicehub-backend/pkg/db/models"
	"github.com/angelmondragon/devicehub-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/devicehub-backend/pkg/errors"
	"github.com/angelmondragon/devicehub-backend/pkg/logger"
	"github.com/angelmondragon/devicehub-backend/pkg/outbox"
	"github.com/angelmondragon/devicehub-backend/pkg/outbox/payloads"
	"github.com/angelmondragon/devicehub-backend/pkg/shipengine"
	"github.com/angelmondragon/devicehub-backend/pkg/storage/gcs"
	"github.com/angelmondragon/devicehub-backend/pkg/types"
)

const (
	labelContentType = "application/pdf"
	defaultWeightOz  = 16
	defaultPrefix    = "labels"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

type carrierClient interface {
	PurchaseLabel(ctx context.Context, req shipengine.LabelRequest) (*shipengine.PurchasedLabel, error)
	VoidLabel(ctx context.Context, carrierLabelID string) error
}

type blobStore interface {
	Upload(ctx context.Context, bucket, object, contentType string, body []byte) error
	ListObjects(ctx context.Context, bucket, prefix string) ([]gcs.ObjectAttrs, error)
	DeleteObject(ctx context.Context, bucket, object string) error
	SignedReadURL(bucket, object string, expires time.Duration) (string, error)
}

type orderLabels interface {
	LoadForLabel(ctx context.Context, orderID uuid.UUID) (*models.Order, error)
	AttachLabelWithTx(ctx context.Context, tx *gorm.DB, orderID, labelID uuid.UUID, now time.Time) error
}

// ServiceParams groups the label manager collaborators.
type ServiceParams struct {
	Repository   Repository
	Tx           txRunner
	Outbox       outboxPublisher
	Orders       orderLabels
	Carrier      carrierClient
	Storage      blobStore
	Bucket       string
	PathPrefix   string
	SignedURLTTL time.Duration
	Logger       *logger.Logger
	Now          func() time.Time
}

// Service buys, stores, re-signs and voids carrier labels.
type Service struct {
	repo    Repository
	tx      txRunner
	outbox  outboxPublisher
	orders  orderLabels
	carrier carrierClient
	storage blobStore
	bucket  string
	prefix  string
	ttl     time.Duration
	logg    *logger.Logger
	now     func() time.Time
}

// NewService validates params and builds the label manager.
func NewService(params ServiceParams) (*Service, error) {
	if params.Repository == nil {
		return nil, fmt.Errorf("labels repository required")
	}
	if params.Tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	if params.Orders == nil {
		return nil, fmt.Errorf("orders service required")
	}
	if params.Carrier == nil {
		return nil, fmt.Errorf("carrier client required")
	}
	if params.Storage == nil {
		return nil, fmt.Errorf("blob storage required")
	}
	if params.SignedURLTTL <= 0 {
		return nil, fmt.Errorf("signed url ttl must be positive")
	}
	prefix := strings.Trim(params.PathPrefix, "/")
	if prefix == "" {
		prefix = defaultPrefix
	}
	now := params.Now
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &Service{
		repo:    params.Repository,
		tx:      params.Tx,
		outbox:  params.Outbox,
		orders:  params.Orders,
		carrier: params.Carrier,
		storage: params.Storage,
		bucket:  params.Bucket,
		prefix:  prefix,
		ttl:     params.SignedURLTTL,
		logg:    params.Logger,
		now:     now,
	}, nil
}

// LabelNotFoundError is returned for unknown label ids.
func LabelNotFoundError(id uuid.UUID) error {
	return pkgerrors.New(pkgerrors.CodeNotFound, "label not found").WithDetails(map[string]any{"label_id": id})
}

// ObjectPath is where the PDF of a label lives in the bucket.
func (s *Service) ObjectPath(orderID, labelID uuid.UUID) string {
	return path.Join(s.prefix, orderID.String(), labelID.String()+".pdf")
}

// CreateLabel buys a label for the order, stores the PDF and records it. A
// failed commit removes the uploaded artifact again.
func (s *Service) CreateLabel(ctx context.Context, orderID uuid.UUID, details ShippingDetails) (*LabelResult, error) {
	order, err := s.orders.LoadForLabel(ctx, orderID)
	if err != nil {
		return nil, err
	}
	shipFrom := details.ShipFrom
	if shipFrom == nil {
		shipFrom = order.ShippingInfo
	}
	if shipFrom == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "ship_from address required").WithDetails(map[string]any{"order_id": orderID})
	}
	weight := details.WeightOz
	if weight <= 0 {
		weight = defaultWeightOz
	}

	purchased, err := s.carrier.PurchaseLabel(ctx, shipengine.LabelRequest{
		ShipFrom:  toCarrierAddress(*shipFrom),
		WeightOz:  weight,
		Reference: order.OrderNumber,
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "purchase carrier label")
	}

	labelID := uuid.New()
	object := s.ObjectPath(orderID, labelID)
	if err := s.storage.Upload(ctx, s.bucket, object, labelContentType, purchased.PDF); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "upload label")
	}
	signed, err := s.storage.SignedReadURL(s.bucket, object, s.ttl)
	if err != nil {
		s.discardObject(ctx, object)
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "sign label url")
	}

	now := s.now()
	label := &models.Label{
		ID:          labelID,
		OrderID:     orderID,
		StoragePath: object,
		Status:      enums.LabelStatusCreated,
		ExpiresAt:   now.Add(s.ttl),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if purchased.CarrierLabelID != "" {
		label.CarrierLabelID = &purchased.CarrierLabelID
	}
	if purchased.TrackingNumber != "" {
		label.TrackingNumber = &purchased.TrackingNumber
	}

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		if err := s.repo.WithTx(tx).Create(ctx, label); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create label")
		}
		if err := s.orders.AttachLabelWithTx(ctx, tx, orderID, labelID, now); err != nil {
			return err
		}
		return s.emit(ctx, tx, label, enums.EventLabelCreated)
	})
	if err != nil {
		s.discardObject(ctx, object)
		return nil, err
	}

	if s.logg != nil {
		logCtx := s.logg.WithFields(s.logg.WithOrderID(ctx, orderID.String()), map[string]any{"label_id": labelID.String()})
		s.logg.Info(logCtx, "label created")
	}
	result := toResult(label, signed)
	return &result, nil
}

// GetLabel returns the label with a freshly signed URL. Voided labels have no
// artifact left and come back without one.
func (s *Service) GetLabel(ctx context.Context, labelID uuid.UUID) (*LabelResult, error) {
	label, err := s.repo.FindByID(ctx, labelID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, LabelNotFoundError(labelID)
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load label")
	}
	if label.Status == enums.LabelStatusVoided {
		result := toResult(label, "")
		return &result, nil
	}
	signed, err := s.storage.SignedReadURL(s.bucket, label.StoragePath, s.ttl)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "sign label url")
	}
	result := toResult(label, signed)
	result.ExpiresAt = s.now().Add(s.ttl)
	return &result, nil
}

// VoidLabel removes the stored artifacts of a label and voids it with the
// carrier. Every step tolerates the label already being gone, so repeated
// calls succeed.
func (s *Service) VoidLabel(ctx context.Context, labelID uuid.UUID) error {
	if labelID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "label id required")
	}
	if err := s.deleteArtifacts(ctx, labelID); err != nil {
		return err
	}

	label, err := s.repo.FindByID(ctx, labelID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load label")
	}
	if label.Status == enums.LabelStatusVoided {
		return nil
	}

	if label.CarrierLabelID != nil && *label.CarrierLabelID != "" {
		if err := s.carrier.VoidLabel(ctx, *label.CarrierLabelID); err != nil && !errors.Is(err, shipengine.ErrLabelNotFound) {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "void carrier label")
		}
	}

	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		now := s.now()
		voided, err := repo.MarkVoided(ctx, labelID, now)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "void label")
		}
		if !voided {
			return nil
		}
		label.Status = enums.LabelStatusVoided
		label.VoidedAt = &now
		return s.emit(ctx, tx, label, enums.EventLabelVoided)
	})
}

// RecordTrackingWithTx stores the latest carrier tracking status on the label
// carrying trackingNumber and returns it.
func (s *Service) RecordTrackingWithTx(ctx context.Context, tx *gorm.DB, trackingNumber, status string) (*models.Label, error) {
	repo := s.repo.WithTx(tx)
	label, err := repo.FindByTrackingNumber(ctx, trackingNumber)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "label not found for tracking number").WithDetails(map[string]any{"tracking_number": trackingNumber})
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load label by tracking number")
	}
	if status == "" {
		return label, nil
	}
	if err := repo.UpdateTrackingStatus(ctx, label.ID, status); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update tracking status")
	}
	label.TrackingStatus = &status
	return label, nil
}

func (s *Service) deleteArtifacts(ctx context.Context, labelID uuid.UUID) error {
	objects, err := s.storage.ListObjects(ctx, s.bucket, s.prefix+"/")
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list label artifacts")
	}
	suffix := "/" + labelID.String() + ".pdf"
	for _, obj := range objects {
		if !strings.HasSuffix(obj.Name, suffix) {
			continue
		}
		if err := s.storage.DeleteObject(ctx, s.bucket, obj.Name); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete label artifact").WithDetails(map[string]any{"object": obj.Name})
		}
	}
	return nil
}

func (s *Service) discardObject(ctx context.Context, object string) {
	if err := s.storage.DeleteObject(ctx, s.bucket, object); err != nil && s.logg != nil {
		s.logg.Error(s.logg.WithField(ctx, "object", object), "discard label artifact failed", err)
	}
}

func (s *Service) emit(ctx context.Context, tx *gorm.DB, label *models.Label, eventType enums.OutboxEventType) error {
	data := payloads.LabelEvent{
		LabelID:     label.ID,
		OrderID:     label.OrderID,
		StoragePath: label.StoragePath,
		Status:      label.Status,
	}
	if label.TrackingNumber != nil {
		data.TrackingNumber = *label.TrackingNumber
	}
	return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     eventType,
		AggregateType: enums.AggregateLabel,
		AggregateID:   label.ID,
		Data:          data,
	})
}

func toCarrierAddress(info types.ShippingInfo) shipengine.Address {
	return shipengine.Address{
		Name:          info.Name,
		CompanyName:   info.Company,
		Phone:         info.Phone,
		Email:         info.Email,
		AddressLine1:  info.Line1,
		AddressLine2:  info.Line2,
		CityLocality:  info.City,
		StateProvince: info.State,
		PostalCode:    info.PostalCode,
		CountryCode:   info.CountryOrDefault(),
	}
}
