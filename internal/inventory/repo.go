package inventory

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/angelmondragon/devicehub-backend/pkg/db/models"
	"github.com/angelmondragon/devicehub-backend/pkg/pagination"
)

// Repository persists inventory lines.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	LockByIdentity(ctx context.Context, id Identity) (*models.InventoryLine, error)
	DecrementIfAvailable(ctx context.Context, lineID uuid.UUID, qty int) (bool, error)
	IncrementByIdentity(ctx context.Context, id Identity, qty int) (bool, error)
	Upsert(ctx context.Context, id Identity, stock int, askingPrice decimal.Decimal) (*models.InventoryLine, error)
	FindByIdentity(ctx context.Context, id Identity) (*models.InventoryLine, error)
	List(ctx context.Context, cursor *pagination.Cursor, limit int) ([]models.InventoryLine, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds an inventory repository bound to db.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func identityScope(id Identity) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		return db.Where("device_id = ? AND storage_variant = ? AND grade = ?", id.DeviceID, id.StorageVariant, id.Grade)
	}
}

// LockByIdentity loads a line with SELECT ... FOR UPDATE. Stores without row
// locks ignore the clause; DecrementIfAvailable still guards them.
func (r *repository) LockByIdentity(ctx context.Context, id Identity) (*models.InventoryLine, error) {
	var line models.InventoryLine
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Scopes(identityScope(id)).
		First(&line).Error
	if err != nil {
		return nil, err
	}
	return &line, nil
}

func (r *repository) DecrementIfAvailable(ctx context.Context, lineID uuid.UUID, qty int) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.InventoryLine{}).
		Where("id = ? AND stock >= ?", lineID, qty).
		Updates(map[string]any{
			"stock":      gorm.Expr("stock - ?", qty),
			"updated_at": time.Now().UTC(),
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *repository) IncrementByIdentity(ctx context.Context, id Identity, qty int) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.InventoryLine{}).
		Scopes(identityScope(id)).
		Updates(map[string]any{
			"stock":      gorm.Expr("stock + ?", qty),
			"updated_at": time.Now().UTC(),
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *repository) Upsert(ctx context.Context, id Identity, stock int, askingPrice decimal.Decimal) (*models.InventoryLine, error) {
	now := time.Now().UTC()
	line := models.InventoryLine{
		DeviceID:       id.DeviceID,
		StorageVariant: id.StorageVariant,
		Grade:          id.Grade,
		Stock:          stock,
		AskingPrice:    askingPrice,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "device_id"}, {Name: "storage_variant"}, {Name: "grade"}},
		DoUpdates: clause.AssignmentColumns([]string{"stock", "asking_price", "updated_at"}),
	}).Create(&line).Error
	if err != nil {
		return nil, err
	}
	return r.FindByIdentity(ctx, id)
}

func (r *repository) FindByIdentity(ctx context.Context, id Identity) (*models.InventoryLine, error) {
	var line models.InventoryLine
	if err := r.db.WithContext(ctx).Scopes(identityScope(id)).First(&line).Error; err != nil {
		return nil, err
	}
	return &line, nil
}

func (r *repository) List(ctx context.Context, cursor *pagination.Cursor, limit int) ([]models.InventoryLine, error) {
	query := pagination.ApplyCursor(r.db.WithContext(ctx).Model(&models.InventoryLine{}), cursor, limit)
	var rows []models.InventoryLine
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}
