package offers

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/angelmondragon/devicehub-backend/pkg/db/models"
	"github.com/angelmondragon/devicehub-backend/pkg/enums"
	"github.com/angelmondragon/devicehub-backend/pkg/pagination"
)

// Repository persists offers.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, offer *models.Offer) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Offer, error)
	LockByID(ctx context.Context, id uuid.UUID) (*models.Offer, error)
	Save(ctx context.Context, offer *models.Offer, expectedVersion *int) (bool, error)
	List(ctx context.Context, filter ListFilter, cursor *pagination.Cursor, limit int) ([]models.Offer, error)
}

// ListFilter narrows offer listings.
type ListFilter struct {
	BuyerUserID *uuid.UUID
	Status      *enums.OfferStatus
}

type repository struct {
	db *gorm.DB
}

// NewRepository binds an offers repository to db.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, offer *models.Offer) error {
	return r.db.WithContext(ctx).Create(offer).Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Offer, error) {
	var offer models.Offer
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&offer).Error; err != nil {
		return nil, err
	}
	return &offer, nil
}

func (r *repository) LockByID(ctx context.Context, id uuid.UUID) (*models.Offer, error) {
	var offer models.Offer
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id).
		First(&offer).Error
	if err != nil {
		return nil, err
	}
	return &offer, nil
}

var savedColumns = []string{
	"status", "items", "counter", "history",
	"accepted_at", "declined_at", "completed_at",
	"updated_at", "version",
}

// Save writes the mutable columns and bumps version. With expectedVersion the
// write only lands if the stored version still matches; the boolean reports
// whether a row was written.
func (r *repository) Save(ctx context.Context, offer *models.Offer, expectedVersion *int) (bool, error) {
	next := *offer
	next.Version = offer.Version + 1
	if next.UpdatedAt.IsZero() {
		next.UpdatedAt = time.Now().UTC()
	}
	query := r.db.WithContext(ctx).Model(&next).Select(savedColumns)
	if expectedVersion != nil {
		query = query.Where("version = ?", *expectedVersion)
	}
	res := query.Updates(&next)
	if res.Error != nil {
		return false, res.Error
	}
	if res.RowsAffected == 0 {
		return false, nil
	}
	offer.Version = next.Version
	offer.UpdatedAt = next.UpdatedAt
	return true, nil
}

func (r *repository) List(ctx context.Context, filter ListFilter, cursor *pagination.Cursor, limit int) ([]models.Offer, error) {
	query := r.db.WithContext(ctx).Model(&models.Offer{})
	if filter.BuyerUserID != nil {
		query = query.Where("buyer_user_id = ?", *filter.BuyerUserID)
	}
	if filter.Status != nil {
		query = query.Where("status = ?", *filter.Status)
	}
	var rows []models.Offer
	if err := pagination.ApplyCursor(query, cursor, limit).Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}
