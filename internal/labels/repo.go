package labels

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/angelmondragon/devicehub-backend/pkg/db/models"
	"github.com/angelmondragon/devicehub-backend/pkg/enums"
)

// Repository persists carrier labels.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, label *models.Label) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Label, error)
	LockByID(ctx context.Context, id uuid.UUID) (*models.Label, error)
	FindByTrackingNumber(ctx context.Context, trackingNumber string) (*models.Label, error)
	MarkVoided(ctx context.Context, id uuid.UUID, at time.Time) (bool, error)
	UpdateTrackingStatus(ctx context.Context, id uuid.UUID, status string) error
}

type repository struct {
	db *gorm.DB
}

// NewRepository binds a labels repository to db.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, label *models.Label) error {
	return r.db.WithContext(ctx).Create(label).Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Label, error) {
	var label models.Label
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&label).Error; err != nil {
		return nil, err
	}
	return &label, nil
}

func (r *repository) LockByID(ctx context.Context, id uuid.UUID) (*models.Label, error) {
	var label models.Label
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id).
		First(&label).Error
	if err != nil {
		return nil, err
	}
	return &label, nil
}

// FindByTrackingNumber returns the newest label carrying trackingNumber.
func (r *repository) FindByTrackingNumber(ctx context.Context, trackingNumber string) (*models.Label, error) {
	var label models.Label
	err := r.db.WithContext(ctx).
		Where("tracking_number = ?", trackingNumber).
		Order("created_at DESC").
		First(&label).Error
	if err != nil {
		return nil, err
	}
	return &label, nil
}

// MarkVoided flips a created label to voided. It reports false when the label
// was already voided or does not exist.
func (r *repository) MarkVoided(ctx context.Context, id uuid.UUID, at time.Time) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Label{}).
		Where("id = ? AND status = ?", id, enums.LabelStatusCreated).
		Updates(map[string]any{
			"status":     enums.LabelStatusVoided,
			"voided_at":  at,
			"updated_at": at,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *repository) UpdateTrackingStatus(ctx context.Context, id uuid.UUID, status string) error {
	return r.db.WithContext(ctx).
		Model(&models.Label{}).
		Where("id = ?", id).
		Update("tracking_status", status).Error
}
