package orders

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/angelmondragon/devicehub-backend/pkg/db/models"
	"github.com/angelmondragon/devicehub-backend/pkg/enums"
)

// Repository persists orders.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, order *models.Order) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error)
	LockByID(ctx context.Context, id uuid.UUID) (*models.Order, error)
	FindByOfferID(ctx context.Context, offerID uuid.UUID) (*models.Order, error)
	FindByPaymentIntentID(ctx context.Context, paymentIntentID string) (*models.Order, error)
	ListDueReOffers(ctx context.Context, now time.Time, limit int) ([]models.Order, error)
	Save(ctx context.Context, order *models.Order, columns []string, fromStatuses ...enums.OrderStatus) (bool, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository binds an orders repository to db.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, order *models.Order) error {
	return r.db.WithContext(ctx).Create(order).Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	return r.first(r.db.WithContext(ctx).Where("id = ?", id))
}

func (r *repository) LockByID(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	return r.first(r.db.WithContext(ctx).Clauses(clause.Locking{Strength: "UPDATE"}).Where("id = ?", id))
}

func (r *repository) FindByOfferID(ctx context.Context, offerID uuid.UUID) (*models.Order, error) {
	return r.first(r.db.WithContext(ctx).Where("offer_id = ?", offerID))
}

func (r *repository) FindByPaymentIntentID(ctx context.Context, paymentIntentID string) (*models.Order, error) {
	return r.first(r.db.WithContext(ctx).Where("payment_intent_id = ?", paymentIntentID))
}

func (r *repository) first(query *gorm.DB) (*models.Order, error) {
	var order models.Order
	if err := query.First(&order).Error; err != nil {
		return nil, err
	}
	return &order, nil
}

// ListDueReOffers returns pending re-offers whose deadline has passed,
// oldest deadline first.
func (r *repository) ListDueReOffers(ctx context.Context, now time.Time, limit int) ([]models.Order, error) {
	var rows []models.Order
	err := r.db.WithContext(ctx).
		Where("status = ?", enums.OrderStatusReOfferedPending).
		Where("re_offer_auto_accept_at <= ?", now.UTC()).
		Order("re_offer_auto_accept_at ASC").
		Limit(limit).
		Find(&rows).Error
	return rows, err
}

// Save writes the named columns from order. With fromStatuses the write only
// lands while the stored status is still one of them, and the boolean reports
// whether it did.
func (r *repository) Save(ctx context.Context, order *models.Order, columns []string, fromStatuses ...enums.OrderStatus) (bool, error) {
	cols := append(append([]string{}, columns...), "updated_at")
	query := r.db.WithContext(ctx).Model(order).Select(cols)
	if len(fromStatuses) > 0 {
		query = query.Where("status IN ?", fromStatuses)
	}
	res := query.Updates(order)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}
