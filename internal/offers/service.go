package offers

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/devicehub-backend/internal/inventory"
	"github.com/angelmondragon/devicehub-backend/pkg/db/models"
	"github.com/angelmondragon/devicehub-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/devicehub-backend/pkg/errors"
	"github.com/angelmondragon/devicehub-backend/pkg/logger"
	"github.com/angelmondragon/devicehub-backend/pkg/outbox"
	"github.com/angelmondragon/devicehub-backend/pkg/outbox/payloads"
	"github.com/angelmondragon/devicehub-backend/pkg/pagination"
	"github.com/angelmondragon/devicehub-backend/pkg/types"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

type stockReserver interface {
	ReserveStock(ctx context.Context, tx *gorm.DB, requests []inventory.StockRequest) ([]inventory.Reservation, error)
	ReleaseWithTx(ctx context.Context, tx *gorm.DB, requests []inventory.StockRequest) error
}

// Service runs offer transitions transactionally and records their events.
type Service struct {
	repo   Repository
	tx     txRunner
	outbox outboxPublisher
	stock  stockReserver
	logg   *logger.Logger
	now    func() time.Time
}

// NewService wires the offer service.
func NewService(repo Repository, tx txRunner, outbox outboxPublisher, stock stockReserver, logg *logger.Logger) (*Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("offers repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if outbox == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	if stock == nil {
		return nil, fmt.Errorf("stock reserver required")
	}
	return &Service{
		repo:   repo,
		tx:     tx,
		outbox: outbox,
		stock:  stock,
		logg:   logg,
		now:    func() time.Time { return time.Now().UTC() },
	}, nil
}

// OfferNotFoundError is returned for unknown offer ids.
func OfferNotFoundError(id uuid.UUID) error {
	return pkgerrors.New(pkgerrors.CodeNotFound, "offer not found").WithDetails(map[string]any{"offer_id": id})
}

func versionConflict(id uuid.UUID, expected int) error {
	return pkgerrors.New(pkgerrors.CodeConflict, "offer was modified concurrently").WithDetails(map[string]any{
		"offer_id":         id,
		"expected_version": expected,
	})
}

// Submit creates a pending offer and reserves its stock in one transaction.
// Every item is bound to the inventory line it reserved from.
func (s *Service) Submit(ctx context.Context, buyerID uuid.UUID, input SubmitInput) (*OfferDTO, error) {
	items := make([]types.OfferItem, len(input.Items))
	seen := make(map[inventory.Identity]int, len(input.Items))
	for i, item := range input.Items {
		items[i] = types.OfferItem{
			DeviceID:       item.DeviceID,
			StorageVariant: item.StorageVariant,
			Grade:          item.Grade,
			Quantity:       item.Quantity,
			OfferPrice:     item.OfferPrice,
		}
		id := itemIdentity(items[i])
		if first, dup := seen[id]; dup {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "duplicate offer line").WithDetails(map[string]any{"index": i, "first_index": first})
		}
		seen[id] = i
	}

	// Validate before taking any row locks.
	if _, err := Submit(buyerID, items, s.now()); err != nil {
		return nil, err
	}

	var offer *models.Offer
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		reserved, err := s.stock.ReserveStock(ctx, tx, stockRequests(items))
		if err != nil {
			return err
		}
		lineIDs := make(map[inventory.Identity]uuid.UUID, len(reserved))
		for _, r := range reserved {
			lineIDs[r.Identity] = r.LineID
		}
		for i := range items {
			items[i].LineID = lineIDs[itemIdentity(items[i])]
		}
		offer, err = Submit(buyerID, items, s.now())
		if err != nil {
			return err
		}
		if err := s.repo.WithTx(tx).Create(ctx, offer); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create offer")
		}
		return s.emit(ctx, tx, offer, enums.EventOfferSubmitted, buyerActor(buyerID))
	})
	if err != nil {
		return nil, err
	}
	dto := ToDTO(offer)
	return &dto, nil
}

func itemIdentity(item types.OfferItem) inventory.Identity {
	return inventory.Identity{DeviceID: item.DeviceID, StorageVariant: item.StorageVariant, Grade: item.Grade}
}

func stockRequests(items []types.OfferItem) []inventory.StockRequest {
	out := make([]inventory.StockRequest, len(items))
	for i, item := range items {
		out[i] = inventory.StockRequest{
			DeviceID:       item.DeviceID,
			StorageVariant: item.StorageVariant,
			Grade:          item.Grade,
			Quantity:       item.Quantity,
		}
	}
	return out
}

// Get loads an offer for an admin.
func (s *Service) Get(ctx context.Context, offerID uuid.UUID) (*OfferDTO, error) {
	offer, err := s.load(ctx, s.repo, offerID, false)
	if err != nil {
		return nil, err
	}
	dto := ToDTO(offer)
	return &dto, nil
}

// GetForBuyer loads an offer the buyer owns.
func (s *Service) GetForBuyer(ctx context.Context, buyerID, offerID uuid.UUID) (*OfferDTO, error) {
	offer, err := s.load(ctx, s.repo, offerID, false)
	if err != nil {
		return nil, err
	}
	if err := ensureOwner(offer, buyerID); err != nil {
		return nil, err
	}
	dto := ToDTO(offer)
	return &dto, nil
}

// ListForBuyer pages through the buyer's offers, newest first.
func (s *Service) ListForBuyer(ctx context.Context, buyerID uuid.UUID, params pagination.Params) (*pagination.Page[OfferDTO], error) {
	return s.list(ctx, ListFilter{BuyerUserID: &buyerID}, params)
}

// ListAll is the admin listing with an optional status filter.
func (s *Service) ListAll(ctx context.Context, status *enums.OfferStatus, params pagination.Params) (*pagination.Page[OfferDTO], error) {
	if status != nil && !status.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid status filter").WithDetails(map[string]any{"status": *status})
	}
	return s.list(ctx, ListFilter{Status: status}, params)
}

func (s *Service) list(ctx context.Context, filter ListFilter, params pagination.Params) (*pagination.Page[OfferDTO], error) {
	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}
	rows, err := s.repo.List(ctx, filter, cursor, params.Limit)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list offers")
	}
	page := pagination.Trim(rows, params.Limit, func(row models.Offer) pagination.Cursor {
		return pagination.Cursor{CreatedAt: row.CreatedAt, ID: row.ID}
	})
	items := make([]OfferDTO, len(page.Items))
	for i := range page.Items {
		items[i] = ToDTO(&page.Items[i])
	}
	return &pagination.Page[OfferDTO]{Items: items, NextCursor: page.NextCursor}, nil
}

// Counter applies an admin counter.
func (s *Service) Counter(ctx context.Context, adminID, offerID uuid.UUID, req CounterRequest) (*OfferDTO, error) {
	offer, err := s.mutate(ctx, offerID, req.ExpectedVersion, nil,
		func(o *models.Offer, now time.Time) (bool, error) { return ApplyCounter(o, req.CounterInput, now) },
		enums.EventOfferCountered, adminActor(adminID))
	if err != nil {
		return nil, err
	}
	dto := ToDTO(offer)
	return &dto, nil
}

// Accept accepts the offer on behalf of its buyer.
func (s *Service) Accept(ctx context.Context, buyerID, offerID uuid.UUID, expectedVersion *int) (*OfferDTO, error) {
	offer, err := s.mutate(ctx, offerID, expectedVersion,
		func(o *models.Offer) error {
			if err := ensureOwner(o, buyerID); err != nil {
				return err
			}
			if o.Status == enums.OfferStatusDeclined && s.logg != nil {
				logCtx := s.logg.WithFields(s.logg.WithOfferID(ctx, o.ID.String()), map[string]any{"buyer_user_id": buyerID.String()})
				s.logg.Warn(logCtx, "accepting previously declined offer")
			}
			return nil
		},
		Accept, enums.EventOfferAccepted, buyerActor(buyerID))
	if err != nil {
		return nil, err
	}
	dto := ToDTO(offer)
	return &dto, nil
}

// Decline declines the offer on behalf of its buyer.
func (s *Service) Decline(ctx context.Context, buyerID, offerID uuid.UUID, expectedVersion *int) (*OfferDTO, error) {
	offer, err := s.mutate(ctx, offerID, expectedVersion,
		func(o *models.Offer) error { return ensureOwner(o, buyerID) },
		Decline, enums.EventOfferDeclined, buyerActor(buyerID))
	if err != nil {
		return nil, err
	}
	dto := ToDTO(offer)
	return &dto, nil
}

// LockWithTx loads an offer under a row lock in the caller's transaction.
func (s *Service) LockWithTx(ctx context.Context, tx *gorm.DB, offerID uuid.UUID) (*models.Offer, error) {
	return s.load(ctx, s.repo.WithTx(tx), offerID, true)
}

// MarkProcessingWithTx follows the order into processing.
func (s *Service) MarkProcessingWithTx(ctx context.Context, tx *gorm.DB, offerID uuid.UUID) error {
	return s.transitionWithTx(ctx, tx, offerID, MarkProcessing)
}

// MarkCompletedWithTx follows the order into completed.
func (s *Service) MarkCompletedWithTx(ctx context.Context, tx *gorm.DB, offerID uuid.UUID) error {
	return s.transitionWithTx(ctx, tx, offerID, MarkCompleted)
}

type transition func(*models.Offer, time.Time) (bool, error)

func (s *Service) transitionWithTx(ctx context.Context, tx *gorm.DB, offerID uuid.UUID, apply transition) error {
	repo := s.repo.WithTx(tx)
	offer, err := s.load(ctx, repo, offerID, true)
	if err != nil {
		return err
	}
	changed, err := apply(offer, s.now())
	if err != nil || !changed {
		return err
	}
	if _, err := repo.Save(ctx, offer, nil); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "save offer")
	}
	return nil
}

func (s *Service) mutate(
	ctx context.Context,
	offerID uuid.UUID,
	expectedVersion *int,
	check func(*models.Offer) error,
	apply transition,
	eventType enums.OutboxEventType,
	actor *outbox.ActorRef,
) (*models.Offer, error) {
	var result *models.Offer
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		offer, err := s.load(ctx, repo, offerID, true)
		if err != nil {
			return err
		}
		if check != nil {
			if err := check(offer); err != nil {
				return err
			}
		}
		if expectedVersion != nil && *expectedVersion != offer.Version {
			return versionConflict(offer.ID, *expectedVersion)
		}

		previous := offer.Status
		changed, err := apply(offer, s.now())
		if err != nil {
			return err
		}
		result = offer
		if !changed {
			return nil
		}
		if err := s.syncReservation(ctx, tx, offer, previous); err != nil {
			return err
		}

		saved, err := repo.Save(ctx, offer, expectedVersion)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "save offer")
		}
		if !saved {
			if expectedVersion == nil {
				return OfferNotFoundError(offer.ID)
			}
			return versionConflict(offer.ID, *expectedVersion)
		}
		return s.emit(ctx, tx, offer, eventType, actor)
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// syncReservation keeps stock held exactly while the offer is not declined.
// Declining hands the units back; leaving declined takes them again and fails
// with InsufficientStock when they are gone.
func (s *Service) syncReservation(ctx context.Context, tx *gorm.DB, offer *models.Offer, previous enums.OfferStatus) error {
	wasDeclined := previous == enums.OfferStatusDeclined
	isDeclined := offer.Status == enums.OfferStatusDeclined
	switch {
	case !wasDeclined && isDeclined:
		return s.stock.ReleaseWithTx(ctx, tx, stockRequests(offer.Items))
	case wasDeclined && !isDeclined:
		_, err := s.stock.ReserveStock(ctx, tx, stockRequests(offer.Items))
		return err
	}
	return nil
}

func (s *Service) load(ctx context.Context, repo Repository, offerID uuid.UUID, lock bool) (*models.Offer, error) {
	if offerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "offer id required")
	}
	var (
		offer *models.Offer
		err   error
	)
	if lock {
		offer, err = repo.LockByID(ctx, offerID)
	} else {
		offer, err = repo.FindByID(ctx, offerID)
	}
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, OfferNotFoundError(offerID)
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load offer")
	}
	return offer, nil
}

func (s *Service) emit(ctx context.Context, tx *gorm.DB, offer *models.Offer, eventType enums.OutboxEventType, actor *outbox.ActorRef) error {
	totals := EffectiveTotals(offer)
	data := payloads.OfferEvent{
		OfferID:     offer.ID,
		BuyerUserID: offer.BuyerUserID,
		Status:      offer.Status,
		Units:       totals.Units,
		Total:       totals.Total,
	}
	if offer.Counter != nil {
		data.Note = offer.Counter.Note
	}
	return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     eventType,
		AggregateType: enums.AggregateOffer,
		AggregateID:   offer.ID,
		Actor:         actor,
		Data:          data,
		OccurredAt:    offer.UpdatedAt,
	})
}

func ensureOwner(offer *models.Offer, buyerID uuid.UUID) error {
	if offer.BuyerUserID != buyerID {
		return pkgerrors.New(pkgerrors.CodeForbidden, "offer does not belong to buyer")
	}
	return nil
}

func buyerActor(id uuid.UUID) *outbox.ActorRef {
	return &outbox.ActorRef{UserID: id, Role: string(enums.RoleBuyer)}
}

func adminActor(id uuid.UUID) *outbox.ActorRef {
	return &outbox.ActorRef{UserID: id, Role: string(enums.RoleAdmin)}
}
