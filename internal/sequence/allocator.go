package sequence

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/angelmondragon/devicehub-backend/pkg/db"
	pkgerrors "github.com/angelmondragon/devicehub-backend/pkg/errors"
	"github.com/angelmondragon/devicehub-backend/pkg/logger"
)

const (
	// OrderCounter names the sequence_counters row backing order numbers.
	OrderCounter = "orders"

	orderNumberFormat = "ORD-%07d"
	maxAttempts       = 3
	baseBackoff       = 15 * time.Millisecond
)

const upsertIncrementSQL = `INSERT INTO sequence_counters (name, value) VALUES (?, 1)
ON CONFLICT (name) DO UPDATE SET value = sequence_counters.value + 1
RETURNING value`

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Allocator hands out gap-tolerant, strictly increasing order numbers.
type Allocator struct {
	tx    txRunner
	logg  *logger.Logger
	name  string
	sleep func(time.Duration)
}

// NewAllocator builds an allocator for the order counter.
func NewAllocator(tx txRunner, logg *logger.Logger) (*Allocator, error) {
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	return &Allocator{
		tx:    tx,
		logg:  logg,
		name:  OrderCounter,
		sleep: time.Sleep,
	}, nil
}

// FormatOrderNumber renders a counter value. Values wider than seven digits
// are emitted unpadded.
func FormatOrderNumber(value int64) string {
	return fmt.Sprintf(orderNumberFormat, value)
}

// AllocateOrderNumber consumes one value in its own transaction, retrying
// serialization failures and deadlocks.
func (a *Allocator) AllocateOrderNumber(ctx context.Context) (string, error) {
	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		var number string
		err := a.tx.WithTx(ctx, func(tx *gorm.DB) error {
			value, err := nextValue(ctx, tx, a.name)
			if err != nil {
				return err
			}
			number = FormatOrderNumber(value)
			return nil
		})
		if err == nil {
			return number, nil
		}
		lastErr = err
		if !db.IsTransient(err) || attempt == maxAttempts {
			break
		}
		if a.logg != nil {
			logCtx := a.logg.WithFields(ctx, map[string]any{"counter": a.name, "attempt": attempt})
			a.logg.Warn(logCtx, "sequence allocation conflict, retrying")
		}
		a.sleep(time.Duration(attempt) * baseBackoff)
	}
	return "", pkgerrors.Wrap(pkgerrors.CodeSequenceAllocation, lastErr, "allocate order number")
}

// AllocateWithTx consumes one value inside the caller's transaction so the
// number and the row that uses it commit together. A conflict aborts the
// caller's transaction, so there is no retry here.
func (a *Allocator) AllocateWithTx(ctx context.Context, tx *gorm.DB) (string, error) {
	if tx == nil {
		return "", pkgerrors.New(pkgerrors.CodeSequenceAllocation, "transaction required")
	}
	value, err := nextValue(ctx, tx, a.name)
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeSequenceAllocation, err, "allocate order number")
	}
	return FormatOrderNumber(value), nil
}

func nextValue(ctx context.Context, tx *gorm.DB, name string) (int64, error) {
	var value int64
	if err := tx.WithContext(ctx).Raw(upsertIncrementSQL, name).Scan(&value).Error; err != nil {
		return 0, err
	}
	if value <= 0 {
		return 0, fmt.Errorf("sequence %q returned %d", name, value)
	}
	return value, nil
}
