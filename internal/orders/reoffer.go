package orders

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/angelmondragon/devicehub-backend/pkg/db/models"
	"github.com/angelmondragon/devicehub-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/devicehub-backend/pkg/errors"
	"github.com/angelmondragon/devicehub-backend/pkg/outbox"
	"github.com/angelmondragon/devicehub-backend/pkg/outbox/payloads"
)

var reOfferableStatuses = []enums.OrderStatus{
	enums.OrderStatusProcessing,
	enums.OrderStatusLabelCreated,
	enums.OrderStatusInTransit,
	enums.OrderStatusDelivered,
}

var reOfferColumns = []string{
	"status", "history",
	"re_offer_new_price", "re_offer_reasons", "re_offer_created_at",
	"re_offer_auto_accept_at", "re_offer_resolution", "re_offer_resolved_at",
}

func (s *service) CreateReOffer(ctx context.Context, adminID, orderID uuid.UUID, input ReOfferInput) (*OrderDTO, error) {
	if input.NewPrice.IsNegative() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "new_price must not be negative")
	}
	reasons := make([]string, 0, len(input.Reasons))
	for _, reason := range input.Reasons {
		if trimmed := strings.TrimSpace(reason); trimmed != "" {
			reasons = append(reasons, trimmed)
		}
	}
	if len(reasons) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "at least one reason is required")
	}

	var result *models.Order
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		order, err := s.load(ctx, repo, orderID, true)
		if err != nil {
			return err
		}
		if !order.Status.In(reOfferableStatuses...) {
			return stateConflict(order, "re-offer")
		}

		now := s.now()
		deadline := now.Add(s.reOfferWindow)
		if input.AutoAcceptAt != nil {
			deadline = input.AutoAcceptAt.UTC()
			if !deadline.After(now) {
				return pkgerrors.New(pkgerrors.CodeValidation, "auto_accept_at must be in the future")
			}
		}
		price := input.NewPrice
		order.ReOfferNewPrice = &price
		order.ReOfferReasons = reasons
		order.ReOfferCreatedAt = &now
		order.ReOfferAutoAcceptAt = &deadline
		order.ReOfferResolution = nil
		order.ReOfferResolvedAt = nil
		appendHistory(order, enums.OrderStatusReOfferedPending, now)

		saved, err := repo.Save(ctx, order, reOfferColumns, reOfferableStatuses...)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "save re-offer")
		}
		if !saved {
			return stateConflict(order, "re-offer")
		}
		result = order
		return s.emitReOffer(ctx, tx, order, enums.EventReOfferCreated, adminActor(adminID))
	})
	if err != nil {
		return nil, err
	}
	dto := ToDTO(result)
	return &dto, nil
}

func (s *service) RespondReOffer(ctx context.Context, buyerID, orderID uuid.UUID, accept bool) (*OrderDTO, error) {
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
		if order.BuyerUserID != buyerID {
			return pkgerrors.New(pkgerrors.CodeForbidden, "order does not belong to buyer")
		}
		now := s.now()
		if order.Status != enums.OrderStatusReOfferedPending || isDue(order, now) {
			return stateConflict(order, "re-offer response")
		}

		target := enums.OrderStatusReOfferedDeclined
		resolution := enums.ReOfferResolutionDeclined
		if accept {
			target = enums.OrderStatusReOfferedAccepted
			resolution = enums.ReOfferResolutionAccepted
		}
		order.ReOfferResolution = &resolution
		order.ReOfferResolvedAt = &now
		appendHistory(order, target, now)

		saved, err := repo.Save(ctx, order, reOfferColumns, enums.OrderStatusReOfferedPending)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "save re-offer response")
		}
		if !saved {
			return stateConflict(order, "re-offer response")
		}
		result = order
		return s.emitReOffer(ctx, tx, order, enums.EventReOfferResolved, buyerActor(buyerID))
	})
	if err != nil {
		return nil, err
	}
	dto := ToDTO(result)
	return &dto, nil
}

func isDue(order *models.Order, now time.Time) bool {
	return order.ReOfferAutoAcceptAt != nil && !now.Before(*order.ReOfferAutoAcceptAt)
}

// ResolveIfDue auto-accepts an overdue re-offer. The write is conditional on
// the order still being re-offered-pending, so concurrent readers and the
// sweep race safely and only the winner records the event. order is updated
// in place when the transition lands or was already made by someone else.
func (s *service) ResolveIfDue(ctx context.Context, order *models.Order, now time.Time) (bool, error) {
	if order == nil || order.Status != enums.OrderStatusReOfferedPending || !isDue(order, now) {
		return false, nil
	}

	var (
		resolved bool
		latest   *models.Order
	)
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		current, err := s.load(ctx, repo, order.ID, true)
		if err != nil {
			return err
		}
		latest = current
		if current.Status != enums.OrderStatusReOfferedPending || !isDue(current, now) {
			return nil
		}

		resolution := enums.ReOfferResolutionAutoAccepted
		at := now.UTC()
		current.ReOfferResolution = &resolution
		current.ReOfferResolvedAt = &at
		appendHistory(current, enums.OrderStatusReOfferedAutoAccepted, at)

		saved, err := repo.Save(ctx, current, reOfferColumns, enums.OrderStatusReOfferedPending)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "auto-accept re-offer")
		}
		if !saved {
			fresh, err := s.load(ctx, repo, order.ID, false)
			if err != nil {
				return err
			}
			latest = fresh
			return nil
		}
		resolved = true
		return s.emitReOffer(ctx, tx, current, enums.EventReOfferResolved, nil)
	})
	if err != nil {
		return false, err
	}
	if latest != nil {
		*order = *latest
	}
	if resolved && s.logg != nil {
		logCtx := s.logg.WithFields(s.logg.WithOrderID(ctx, order.ID.String()), map[string]any{"order_number": order.OrderNumber})
		s.logg.Info(logCtx, "re-offer auto-accepted")
	}
	return resolved, nil
}

// ResolveDueReOffers is the sweep behind the cron job. It returns how many
// re-offers this call resolved; per-order failures are combined.
func (s *service) ResolveDueReOffers(ctx context.Context, now time.Time, limit int) (int, error) {
	if limit <= 0 {
		limit = 200
	}
	due, err := s.repo.ListDueReOffers(ctx, now, limit)
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list due re-offers")
	}
	var (
		resolved int
		errs     error
	)
	for i := range due {
		ok, err := s.ResolveIfDue(ctx, &due[i], now)
		if err != nil {
			errs = multierr.Append(errs, err)
			continue
		}
		if ok {
			resolved++
		}
	}
	return resolved, errs
}

func (s *service) emitReOffer(ctx context.Context, tx *gorm.DB, order *models.Order, eventType enums.OutboxEventType, actor *outbox.ActorRef) error {
	data := payloads.ReOfferEvent{
		OrderID:     order.ID,
		OrderNumber: order.OrderNumber,
		BuyerUserID: order.BuyerUserID,
		Reasons:     order.ReOfferReasons,
		Status:      order.Status,
		Resolution:  order.ReOfferResolution,
	}
	if order.ReOfferNewPrice != nil {
		data.NewPrice = *order.ReOfferNewPrice
	}
	if order.ReOfferAutoAcceptAt != nil {
		data.AutoAcceptAt = *order.ReOfferAutoAcceptAt
	}
	if order.ReOfferResolution != nil {
		data.ResolvedBy = order.ReOfferResolution.ResolvedBy()
	}
	return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     eventType,
		AggregateType: enums.AggregateOrder,
		AggregateID:   order.ID,
		Actor:         actor,
		Data:          data,
	})
}
