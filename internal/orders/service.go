package orders

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/devicehub-backend/internal/inventory"
	"github.com/angelmondragon/devicehub-backend/internal/offers"
	"github.com/angelmondragon/devicehub-backend/pkg/db"
	"github.com/angelmondragon/devicehub-backend/pkg/db/models"
	"github.com/angelmondragon/devicehub-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/devicehub-backend/pkg/errors"
	"github.com/angelmondragon/devicehub-backend/pkg/logger"
	"github.com/angelmondragon/devicehub-backend/pkg/outbox"
	"github.com/angelmondragon/devicehub-backend/pkg/outbox/payloads"
	"github.com/angelmondragon/devicehub-backend/pkg/stripe"
	"github.com/angelmondragon/devicehub-backend/pkg/types"
)

// DefaultReOfferWindow is how long a buyer has to answer a re-offer.
const DefaultReOfferWindow = 7 * 24 * time.Hour

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

type numberAllocator interface {
	AllocateWithTx(ctx context.Context, tx *gorm.DB) (string, error)
}

type offerLifecycle interface {
	LockWithTx(ctx context.Context, tx *gorm.DB, offerID uuid.UUID) (*models.Offer, error)
	MarkProcessingWithTx(ctx context.Context, tx *gorm.DB, offerID uuid.UUID) error
	MarkCompletedWithTx(ctx context.Context, tx *gorm.DB, offerID uuid.UUID) error
}

type stockReleaser interface {
	ReleaseWithTx(ctx context.Context, tx *gorm.DB, requests []inventory.StockRequest) error
}

// LabelVoider voids the carrier label of a cancelled order.
type LabelVoider interface {
	VoidLabel(ctx context.Context, labelID uuid.UUID) error
}

// Service is the order lifecycle.
type Service interface {
	Checkout(ctx context.Context, buyerID, offerID uuid.UUID, input CheckoutInput) (*OrderDTO, error)
	CreatePaymentIntent(ctx context.Context, buyerID, orderID uuid.UUID) (*PaymentIntentResult, error)
	MarkPaid(ctx context.Context, paymentIntentID string) error
	Get(ctx context.Context, orderID uuid.UUID) (*OrderDTO, error)
	GetForBuyer(ctx context.Context, buyerID, orderID uuid.UUID) (*OrderDTO, error)
	Complete(ctx context.Context, adminID, orderID uuid.UUID) (*OrderDTO, error)
	Cancel(ctx context.Context, adminID, orderID uuid.UUID) (*OrderDTO, error)

	CreateReOffer(ctx context.Context, adminID, orderID uuid.UUID, input ReOfferInput) (*OrderDTO, error)
	RespondReOffer(ctx context.Context, buyerID, orderID uuid.UUID, accept bool) (*OrderDTO, error)
	ResolveIfDue(ctx context.Context, order *models.Order, now time.Time) (bool, error)
	ResolveDueReOffers(ctx context.Context, now time.Time, limit int) (int, error)

	LoadForLabel(ctx context.Context, orderID uuid.UUID) (*models.Order, error)
	AttachLabelWithTx(ctx context.Context, tx *gorm.DB, orderID, labelID uuid.UUID, now time.Time) error
	AdvanceShipmentWithTx(ctx context.Context, tx *gorm.DB, orderID uuid.UUID, target enums.OrderStatus, event payloads.ShipmentEvent) (bool, error)
}

// ServiceParams groups the order service collaborators.
type ServiceParams struct {
	Repository    Repository
	Tx            txRunner
	Outbox        outboxPublisher
	Numbers       numberAllocator
	Offers        offerLifecycle
	Stock         stockReleaser
	Payments      stripe.PaymentIntentClient
	Labels        LabelVoider
	Currency      string
	ReOfferWindow time.Duration
	Logger        *logger.Logger
	Now           func() time.Time
}

type service struct {
	repo          Repository
	tx            txRunner
	outbox        outboxPublisher
	numbers       numberAllocator
	offers        offerLifecycle
	stock         stockReleaser
	payments      stripe.PaymentIntentClient
	labels        LabelVoider
	currency      string
	reOfferWindow time.Duration
	logg          *logger.Logger
	now           func() time.Time
}

// NewService builds the order service.
func NewService(params ServiceParams) (Service, error) {
	if params.Repository == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if params.Tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	if params.Numbers == nil {
		return nil, fmt.Errorf("order number allocator required")
	}
	if params.Offers == nil {
		return nil, fmt.Errorf("offer lifecycle required")
	}
	if params.Stock == nil {
		return nil, fmt.Errorf("stock releaser required")
	}
	window := params.ReOfferWindow
	if window <= 0 {
		window = DefaultReOfferWindow
	}
	currency := params.Currency
	if currency == "" {
		currency = "usd"
	}
	now := params.Now
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &service{
		repo:          params.Repository,
		tx:            params.Tx,
		outbox:        params.Outbox,
		numbers:       params.Numbers,
		offers:        params.Offers,
		stock:         params.Stock,
		payments:      params.Payments,
		labels:        params.Labels,
		currency:      currency,
		reOfferWindow: window,
		logg:          params.Logger,
		now:           now,
	}, nil
}

// OrderNotFoundError is returned for unknown order ids.
func OrderNotFoundError(id uuid.UUID) error {
	return pkgerrors.New(pkgerrors.CodeNotFound, "order not found").WithDetails(map[string]any{"order_id": id})
}

func stateConflict(order *models.Order, action string) error {
	return pkgerrors.New(pkgerrors.CodeStateConflict, action+" not allowed in current state").WithDetails(map[string]any{
		"order_id": order.ID,
		"status":   order.Status,
	})
}

func appendHistory(order *models.Order, status enums.OrderStatus, now time.Time) {
	if len(order.History) == 0 {
		seedAt := order.CreatedAt
		if seedAt.IsZero() {
			seedAt = now
		}
		order.History = []types.HistoryEntry{{Status: string(enums.OrderStatusPendingPayment), At: seedAt.UTC()}}
	}
	if order.Status == status {
		return
	}
	order.Status = status
	order.History = append(order.History, types.HistoryEntry{Status: string(status), At: now.UTC()})
}

func (s *service) Checkout(ctx context.Context, buyerID, offerID uuid.UUID, input CheckoutInput) (*OrderDTO, error) {
	if buyerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "buyer identity missing")
	}
	method := input.PaymentMethod
	if method == "" {
		method = enums.PaymentMethodCard
	}
	if !method.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid payment method").WithDetails(map[string]any{"payment_method": method})
	}
	shipping := input.ShippingInfo

	var created *models.Order
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		offer, err := s.offers.LockWithTx(ctx, tx, offerID)
		if err != nil {
			return err
		}
		if offer.BuyerUserID != buyerID {
			return pkgerrors.New(pkgerrors.CodeForbidden, "offer does not belong to buyer")
		}
		repo := s.repo.WithTx(tx)
		existing, err := repo.FindByOfferID(ctx, offerID)
		switch {
		case err == nil:
			return pkgerrors.New(pkgerrors.CodeConflict, "offer already checked out").WithDetails(map[string]any{
				"offer_id":     offerID,
				"order_id":     existing.ID,
				"order_number": existing.OrderNumber,
			})
		case !errors.Is(err, gorm.ErrRecordNotFound):
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check existing order")
		}
		if offer.Status != enums.OfferStatusAccepted {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "offer must be accepted before checkout").WithDetails(map[string]any{
				"offer_id": offer.ID,
				"status":   offer.Status,
			})
		}

		number, err := s.numbers.AllocateWithTx(ctx, tx)
		if err != nil {
			return err
		}
		now := s.now()
		quote := offers.EffectiveTotals(offer).Total
		order := &models.Order{
			OrderNumber:    number,
			OfferID:        offer.ID,
			BuyerUserID:    buyerID,
			Status:         enums.OrderStatusPendingPayment,
			EstimatedQuote: quote,
			ShippingInfo:   &shipping,
			PaymentMethod:  method,
			PaymentStatus:  enums.PaymentStatusUnpaid,
			PaymentAmount:  quote,
			History:        []types.HistoryEntry{{Status: string(enums.OrderStatusPendingPayment), At: now}},
			CreatedAt:      now,
			UpdatedAt:      now,
		}
		if err := repo.Create(ctx, order); err != nil {
			if db.IsUniqueViolation(err, "") {
				return pkgerrors.Wrap(pkgerrors.CodeConflict, err, "offer already checked out").WithDetails(map[string]any{"offer_id": offerID})
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create order")
		}
		created = order
		return s.emitStatus(ctx, tx, order, enums.EventOrderCreated, buyerActor(buyerID), "")
	})
	if err != nil {
		return nil, err
	}
	if s.logg != nil {
		logCtx := s.logg.WithFields(s.logg.WithOrderID(ctx, created.ID.String()), map[string]any{"order_number": created.OrderNumber})
		s.logg.Info(logCtx, "order created")
	}
	dto := ToDTO(created)
	return &dto, nil
}

func (s *service) CreatePaymentIntent(ctx context.Context, buyerID, orderID uuid.UUID) (*PaymentIntentResult, error) {
	order, err := s.load(ctx, s.repo, orderID, false)
	if err != nil {
		return nil, err
	}
	if order.BuyerUserID != buyerID {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "order does not belong to buyer")
	}
	if order.Status == enums.OrderStatusProcessing &&
		(order.PaymentIntentID != nil || order.PaymentMethod == enums.PaymentMethodWire) {
		return s.paymentResult(order), nil
	}
	if order.Status != enums.OrderStatusPendingPayment {
		return nil, stateConflict(order, "payment intent")
	}

	var intent *stripe.PaymentIntent
	if order.PaymentMethod.RequiresIntent() {
		if s.payments == nil {
			return nil, pkgerrors.New(pkgerrors.CodeDependency, "card payments are not configured")
		}
		cents := toCents(order.PaymentAmount)
		if cents <= 0 {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "order amount must be positive for card payment")
		}
		intent, err = s.payments.CreatePaymentIntent(ctx, stripe.PaymentIntentRequest{
			AmountCents: cents,
			Currency:    s.currency,
			Metadata: map[string]string{
				"order_id":     order.ID.String(),
				"order_number": order.OrderNumber,
			},
			IdempotencyKey: "order-payment-" + order.ID.String(),
		})
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create payment intent")
		}
	}

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		locked, err := s.load(ctx, repo, orderID, true)
		if err != nil {
			return err
		}
		if locked.Status != enums.OrderStatusPendingPayment {
			return stateConflict(locked, "payment intent")
		}
		columns := []string{"status", "history"}
		if intent != nil {
			locked.PaymentIntentID = &intent.ID
			locked.PaymentClientSecret = &intent.ClientSecret
			locked.PaymentAmount = fromCents(intent.AmountCents)
			columns = append(columns, "payment_intent_id", "payment_client_secret", "payment_amount")
		}
		appendHistory(locked, enums.OrderStatusProcessing, s.now())
		if _, err := repo.Save(ctx, locked, columns); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "save payment intent")
		}
		if err := s.offers.MarkProcessingWithTx(ctx, tx, locked.OfferID); err != nil {
			return err
		}
		order = locked
		return s.emitStatus(ctx, tx, locked, enums.EventOrderProcessing, buyerActor(buyerID), "")
	})
	if err != nil {
		return nil, err
	}
	return s.paymentResult(order), nil
}

func (s *service) paymentResult(order *models.Order) *PaymentIntentResult {
	return &PaymentIntentResult{
		OrderID:         order.ID,
		OrderNumber:     order.OrderNumber,
		Status:          order.Status,
		PaymentMethod:   order.PaymentMethod,
		Amount:          order.PaymentAmount,
		Currency:        s.currency,
		PaymentIntentID: order.PaymentIntentID,
		ClientSecret:    order.PaymentClientSecret,
	}
}

func (s *service) MarkPaid(ctx context.Context, paymentIntentID string) error {
	if paymentIntentID == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "payment intent id required")
	}
	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		order, err := repo.FindByPaymentIntentID(ctx, paymentIntentID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "order not found for payment intent").WithDetails(map[string]any{"payment_intent_id": paymentIntentID})
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order by payment intent")
		}
		if order.PaymentStatus == enums.PaymentStatusPaid {
			return nil
		}
		order.PaymentStatus = enums.PaymentStatusPaid
		if _, err := repo.Save(ctx, order, []string{"payment_status"}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark order paid")
		}
		return s.emitStatus(ctx, tx, order, enums.EventOrderPaid, nil, "")
	})
}

func (s *service) Get(ctx context.Context, orderID uuid.UUID) (*OrderDTO, error) {
	order, err := s.loadResolved(ctx, orderID)
	if err != nil {
		return nil, err
	}
	dto := ToDTO(order)
	return &dto, nil
}

func (s *service) GetForBuyer(ctx context.Context, buyerID, orderID uuid.UUID) (*OrderDTO, error) {
	order, err := s.loadResolved(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.BuyerUserID != buyerID {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "order does not belong to buyer")
	}
	dto := ToDTO(order)
	return &dto, nil
}

// loadResolved applies any overdue re-offer before the order is rendered.
func (s *service) loadResolved(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	order, err := s.load(ctx, s.repo, orderID, false)
	if err != nil {
		return nil, err
	}
	if _, err := s.ResolveIfDue(ctx, order, s.now()); err != nil {
		return nil, err
	}
	return order, nil
}

var completableStatuses = []enums.OrderStatus{
	enums.OrderStatusProcessing,
	enums.OrderStatusLabelCreated,
	enums.OrderStatusInTransit,
	enums.OrderStatusDelivered,
	enums.OrderStatusReOfferedAccepted,
	enums.OrderStatusReOfferedAutoAccepted,
}

func (s *service) Complete(ctx context.Context, adminID, orderID uuid.UUID) (*OrderDTO, error) {
	if _, err := s.loadResolved(ctx, orderID); err != nil {
		return nil, err
	}
	var result *models.Order
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		order, err := s.load(ctx, repo, orderID, true)
		if err != nil {
			return err
		}
		if !order.Status.In(completableStatuses...) {
			return stateConflict(order, "complete")
		}
		now := s.now()
		order.CompletedAt = &now
		order.PaymentAmount = order.EffectivePrice()
		appendHistory(order, enums.OrderStatusCompleted, now)
		saved, err := repo.Save(ctx, order, []string{"status", "history", "completed_at", "payment_amount"}, completableStatuses...)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "complete order")
		}
		if !saved {
			return stateConflict(order, "complete")
		}
		if err := s.offers.MarkCompletedWithTx(ctx, tx, order.OfferID); err != nil {
			return err
		}
		result = order
		return s.emitStatus(ctx, tx, order, enums.EventOrderCompleted, adminActor(adminID), "")
	})
	if err != nil {
		return nil, err
	}
	dto := ToDTO(result)
	return &dto, nil
}

var cancellableStatuses = []enums.OrderStatus{
	enums.OrderStatusPendingPayment,
	enums.OrderStatusProcessing,
	enums.OrderStatusLabelCreated,
	enums.OrderStatusReOfferedDeclined,
}

func (s *service) Cancel(ctx context.Context, adminID, orderID uuid.UUID) (*OrderDTO, error) {
	if _, err := s.loadResolved(ctx, orderID); err != nil {
		return nil, err
	}
	var result *models.Order
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		order, err := s.load(ctx, repo, orderID, true)
		if err != nil {
			return err
		}
		if !order.Status.In(cancellableStatuses...) {
			return stateConflict(order, "cancel")
		}
		offer, err := s.offers.LockWithTx(ctx, tx, order.OfferID)
		if err != nil {
			return err
		}
		requests := make([]inventory.StockRequest, len(offer.Items))
		restored := make([]payloads.RestoredStock, len(offer.Items))
		for i, item := range offer.Items {
			requests[i] = inventory.StockRequest{
				DeviceID:       item.DeviceID,
				StorageVariant: item.StorageVariant,
				Grade:          item.Grade,
				Quantity:       item.Quantity,
			}
			restored[i] = payloads.RestoredStock{
				DeviceID:       item.DeviceID,
				StorageVariant: item.StorageVariant,
				Grade:          item.Grade,
				Quantity:       item.Quantity,
			}
		}
		if err := s.stock.ReleaseWithTx(ctx, tx, requests); err != nil {
			return err
		}

		now := s.now()
		order.CancelledAt = &now
		appendHistory(order, enums.OrderStatusCancelled, now)
		saved, err := repo.Save(ctx, order, []string{"status", "history", "cancelled_at"}, cancellableStatuses...)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "cancel order")
		}
		if !saved {
			return stateConflict(order, "cancel")
		}
		result = order
		if err := s.emitStatus(ctx, tx, order, enums.EventOrderCancelled, adminActor(adminID), ""); err != nil {
			return err
		}
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventInventoryRestored,
			AggregateType: enums.AggregateInventory,
			AggregateID:   order.ID,
			Actor:         adminActor(adminID),
			Data:          payloads.InventoryRestoredEvent{OrderID: order.ID, Lines: restored},
			OccurredAt:    now,
		})
	})
	if err != nil {
		return nil, err
	}

	if result.LatestLabelID != nil && s.labels != nil {
		if err := s.labels.VoidLabel(ctx, *result.LatestLabelID); err != nil && s.logg != nil {
			logCtx := s.logg.WithFields(s.logg.WithOrderID(ctx, result.ID.String()), map[string]any{"label_id": result.LatestLabelID.String()})
			s.logg.Error(logCtx, "void label after cancel failed", err)
		}
	}
	dto := ToDTO(result)
	return &dto, nil
}

var labelableStatuses = []enums.OrderStatus{
	enums.OrderStatusProcessing,
	enums.OrderStatusLabelCreated,
	enums.OrderStatusInTransit,
}

// LoadForLabel returns the order if a label may be bought for it.
func (s *service) LoadForLabel(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	order, err := s.load(ctx, s.repo, orderID, false)
	if err != nil {
		return nil, err
	}
	if !order.Status.In(labelableStatuses...) {
		return nil, stateConflict(order, "label")
	}
	return order, nil
}

// AttachLabelWithTx stamps the newest label and moves processing orders to
// label_created.
func (s *service) AttachLabelWithTx(ctx context.Context, tx *gorm.DB, orderID, labelID uuid.UUID, now time.Time) error {
	repo := s.repo.WithTx(tx)
	order, err := s.load(ctx, repo, orderID, true)
	if err != nil {
		return err
	}
	if !order.Status.In(labelableStatuses...) {
		return stateConflict(order, "label")
	}
	previous := order.Status
	order.LastLabelGeneratedAt = &now
	order.LatestLabelID = &labelID
	if order.Status == enums.OrderStatusProcessing {
		appendHistory(order, enums.OrderStatusLabelCreated, now)
	}
	saved, err := repo.Save(ctx, order, []string{"status", "history", "last_label_generated_at", "latest_label_id"}, labelableStatuses...)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "attach label")
	}
	if !saved {
		return stateConflict(order, "label")
	}
	if previous != order.Status {
		return s.emitStatus(ctx, tx, order, enums.EventOrderShipment, nil, "label created")
	}
	return nil
}

var shipmentSources = map[enums.OrderStatus][]enums.OrderStatus{
	enums.OrderStatusInTransit: {enums.OrderStatusLabelCreated},
	enums.OrderStatusDelivered: {enums.OrderStatusLabelCreated, enums.OrderStatusInTransit},
}

// AdvanceShipmentWithTx applies carrier progress. Orders outside the allowed
// source statuses are left as they are, so late or repeated events never
// regress an order.
func (s *service) AdvanceShipmentWithTx(ctx context.Context, tx *gorm.DB, orderID uuid.UUID, target enums.OrderStatus, event payloads.ShipmentEvent) (bool, error) {
	sources, ok := shipmentSources[target]
	if !ok {
		return false, pkgerrors.New(pkgerrors.CodeValidation, "unsupported shipment status").WithDetails(map[string]any{"status": target})
	}
	repo := s.repo.WithTx(tx)
	order, err := s.load(ctx, repo, orderID, true)
	if err != nil {
		return false, err
	}
	if !order.Status.In(sources...) {
		return false, nil
	}
	appendHistory(order, target, s.now())
	saved, err := repo.Save(ctx, order, []string{"status", "history"}, sources...)
	if err != nil {
		return false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "advance shipment")
	}
	if !saved {
		return false, nil
	}
	event.OrderID = order.ID
	event.OrderStatus = order.Status
	return true, s.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     enums.EventOrderShipment,
		AggregateType: enums.AggregateOrder,
		AggregateID:   order.ID,
		Data:          event,
	})
}

func (s *service) load(ctx context.Context, repo Repository, orderID uuid.UUID, lock bool) (*models.Order, error) {
	if orderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	var (
		order *models.Order
		err   error
	)
	if lock {
		order, err = repo.LockByID(ctx, orderID)
	} else {
		order, err = repo.FindByID(ctx, orderID)
	}
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, OrderNotFoundError(orderID)
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}
	return order, nil
}

func (s *service) emitStatus(ctx context.Context, tx *gorm.DB, order *models.Order, eventType enums.OutboxEventType, actor *outbox.ActorRef, reason string) error {
	now := s.now()
	return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     eventType,
		AggregateType: enums.AggregateOrder,
		AggregateID:   order.ID,
		Actor:         actor,
		OccurredAt:    now,
		Data: payloads.OrderStatusEvent{
			OrderID:     order.ID,
			OrderNumber: order.OrderNumber,
			OfferID:     order.OfferID,
			BuyerUserID: order.BuyerUserID,
			Status:      order.Status,
			Amount:      order.EffectivePrice(),
			OccurredAt:  now,
			Reason:      reason,
		},
	})
}

func toCents(amount decimal.Decimal) int64 {
	return amount.Shift(2).Round(0).IntPart()
}

func fromCents(cents int64) decimal.Decimal {
	return decimal.New(cents, -2)
}

func buyerActor(id uuid.UUID) *outbox.ActorRef {
	return &outbox.ActorRef{UserID: id, Role: string(enums.RoleBuyer)}
}

func adminActor(id uuid.UUID) *outbox.ActorRef {
	return &outbox.ActorRef{UserID: id, Role: string(enums.RoleAdmin)}
}
