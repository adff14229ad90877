package inventory

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/devicehub-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/devicehub-backend/pkg/errors"
	"github.com/angelmondragon/devicehub-backend/pkg/logger"
	"github.com/angelmondragon/devicehub-backend/pkg/pagination"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Service owns every stock mutation.
type Service struct {
	repo Repository
	tx   txRunner
	logg *logger.Logger
}

// NewService wires the reservation engine.
func NewService(repo Repository, tx txRunner, logg *logger.Logger) (*Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("inventory repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	return &Service{repo: repo, tx: tx, logg: logg}, nil
}

type aggregated struct {
	id  Identity
	qty int
}

// aggregate sums requests per line, drops zero quantities and returns the
// lines in identity order so concurrent reservations lock in the same order.
func aggregate(requests []StockRequest) ([]aggregated, error) {
	sums := map[string]*aggregated{}
	for _, req := range requests {
		if req.Quantity < 0 {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must not be negative").WithDetails(map[string]any{
				"device_id":       req.DeviceID,
				"storage_variant": req.StorageVariant,
				"grade":           req.Grade,
				"quantity":        req.Quantity,
			})
		}
		id := req.Identity()
		if strings.TrimSpace(id.DeviceID) == "" || strings.TrimSpace(id.StorageVariant) == "" || strings.TrimSpace(id.Grade) == "" {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "device_id, storage_variant and grade are required")
		}
		entry, ok := sums[id.key()]
		if !ok {
			entry = &aggregated{id: id}
			sums[id.key()] = entry
		}
		entry.qty += req.Quantity
	}

	out := make([]aggregated, 0, len(sums))
	for _, entry := range sums {
		if entry.qty == 0 {
			continue
		}
		out = append(out, *entry)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].id.less(out[j].id) })
	return out, nil
}

// ReserveStock decrements every requested line inside tx or none of them.
// The caller owns tx; on error it must roll back.
func (s *Service) ReserveStock(ctx context.Context, tx *gorm.DB, requests []StockRequest) ([]Reservation, error) {
	if tx == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "transaction required")
	}
	lines, err := aggregate(requests)
	if err != nil {
		return nil, err
	}
	if len(lines) == 0 {
		return nil, nil
	}
	repo := s.repo.WithTx(tx)

	locked := make([]*models.InventoryLine, len(lines))
	for i, req := range lines {
		line, err := repo.LockByIdentity(ctx, req.id)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, InsufficientStockError(req.id, req.qty, 0)
			}
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lock inventory line")
		}
		if line.Stock < req.qty {
			return nil, InsufficientStockError(req.id, req.qty, line.Stock)
		}
		locked[i] = line
	}

	reservations := make([]Reservation, 0, len(lines))
	for i, req := range lines {
		line := locked[i]
		ok, err := repo.DecrementIfAvailable(ctx, line.ID, req.qty)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decrement inventory line")
		}
		if !ok {
			available := 0
			if fresh, ferr := repo.FindByIdentity(ctx, req.id); ferr == nil {
				available = fresh.Stock
			}
			return nil, InsufficientStockError(req.id, req.qty, available)
		}
		reservations = append(reservations, Reservation{
			LineID:    line.ID,
			Identity:  req.id,
			Quantity:  req.qty,
			Remaining: line.Stock - req.qty,
		})
	}
	return reservations, nil
}

// Reserve runs ReserveStock in its own transaction.
func (s *Service) Reserve(ctx context.Context, requests []StockRequest) ([]Reservation, error) {
	var out []Reservation
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		reserved, err := s.ReserveStock(ctx, tx, requests)
		if err != nil {
			return err
		}
		out = reserved
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// ReleaseWithTx returns previously reserved stock, used when an order is
// cancelled.
func (s *Service) ReleaseWithTx(ctx context.Context, tx *gorm.DB, requests []StockRequest) error {
	if tx == nil {
		return pkgerrors.New(pkgerrors.CodeInternal, "transaction required")
	}
	lines, err := aggregate(requests)
	if err != nil {
		return err
	}
	repo := s.repo.WithTx(tx)
	for _, req := range lines {
		ok, err := repo.IncrementByIdentity(ctx, req.id, req.qty)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "release inventory line")
		}
		if !ok {
			return lineNotFound(req.id)
		}
	}
	return nil
}

// Restock adds delta units to an existing line.
func (s *Service) Restock(ctx context.Context, id Identity, delta int) (*LineDTO, error) {
	if delta <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "delta must be positive")
	}
	var out *LineDTO
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		ok, err := repo.IncrementByIdentity(ctx, id, delta)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "restock inventory line")
		}
		if !ok {
			return lineNotFound(id)
		}
		line, err := repo.FindByIdentity(ctx, id)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reload inventory line")
		}
		dto := toLineDTO(*line)
		out = &dto
		return nil
	})
	if err != nil {
		return nil, err
	}
	if s.logg != nil {
		logCtx := s.logg.WithFields(ctx, map[string]any{"device_id": id.DeviceID, "grade": id.Grade, "delta": delta})
		s.logg.Info(logCtx, "inventory restocked")
	}
	return out, nil
}

// SetStock creates the line or overwrites its stock and asking price.
func (s *Service) SetStock(ctx context.Context, id Identity, stock int, askingPrice decimal.Decimal) (*LineDTO, error) {
	if stock < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "stock must not be negative")
	}
	if askingPrice.IsNegative() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "asking_price must not be negative")
	}
	if strings.TrimSpace(id.DeviceID) == "" || strings.TrimSpace(id.StorageVariant) == "" || strings.TrimSpace(id.Grade) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "device_id, storage_variant and grade are required")
	}
	line, err := s.repo.Upsert(ctx, id, stock, askingPrice)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "set inventory line")
	}
	dto := toLineDTO(*line)
	return &dto, nil
}

// Availability is a lock-free read for display. Missing lines report
// Found=false with zero stock.
func (s *Service) Availability(ctx context.Context, ids []Identity) ([]LineAvailability, error) {
	out := make([]LineAvailability, 0, len(ids))
	for _, id := range ids {
		entry := LineAvailability{Identity: id}
		line, err := s.repo.FindByIdentity(ctx, id)
		switch {
		case err == nil:
			entry.Found = true
			entry.Stock = line.Stock
			entry.AskingPrice = line.AskingPrice
		case errors.Is(err, gorm.ErrRecordNotFound):
		default:
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read inventory line")
		}
		out = append(out, entry)
	}
	return out, nil
}

// List pages through every line, newest first.
func (s *Service) List(ctx context.Context, params pagination.Params) (*pagination.Page[LineDTO], error) {
	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}
	rows, err := s.repo.List(ctx, cursor, params.Limit)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list inventory lines")
	}
	page := pagination.Trim(rows, params.Limit, func(row models.InventoryLine) pagination.Cursor {
		return pagination.Cursor{CreatedAt: row.CreatedAt, ID: row.ID}
	})
	items := make([]LineDTO, len(page.Items))
	for i, row := range page.Items {
		items[i] = toLineDTO(row)
	}
	return &pagination.Page[LineDTO]{Items: items, NextCursor: page.NextCursor}, nil
}

func lineNotFound(id Identity) error {
	return pkgerrors.New(pkgerrors.CodeNotFound, "inventory line not found").WithDetails(map[string]any{
		"device_id":       id.DeviceID,
		"storage_variant": id.StorageVariant,
		"grade":           id.Grade,
	})
}
