package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/angelmondragon/devicehub-backend/pkg/logger"
)

const defaultReofferBatch = 200

type reofferResolver interface {
	ResolveDueReOffers(ctx context.Context, now time.Time, limit int) (int, error)
}

// ReofferAutoAcceptJobParams configure the re-offer sweep.
type ReofferAutoAcceptJobParams struct {
	Logger    *logger.Logger
	Orders    reofferResolver
	BatchSize int
	Now       func() time.Time
}

// NewReofferAutoAcceptJob builds the sweep that auto-accepts re-offers whose
// buyer deadline passed without a reply.
func NewReofferAutoAcceptJob(params ReofferAutoAcceptJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Orders == nil {
		return nil, fmt.Errorf("orders service required")
	}
	batch := params.BatchSize
	if batch <= 0 {
		batch = defaultReofferBatch
	}
	now := params.Now
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &reofferAutoAcceptJob{
		logg:   params.Logger,
		orders: params.Orders,
		batch:  batch,
		now:    now,
	}, nil
}

type reofferAutoAcceptJob struct {
	logg   *logger.Logger
	orders reofferResolver
	batch  int
	now    func() time.Time
}

func (j *reofferAutoAcceptJob) Name() string { return "reoffer-auto-accept" }

func (j *reofferAutoAcceptJob) Run(ctx context.Context) error {
	now := j.now()
	resolved, err := j.orders.ResolveDueReOffers(ctx, now, j.batch)
	if resolved > 0 {
		j.logg.Info(j.logg.WithField(ctx, "resolved", resolved), "re-offers auto-accepted")
	}
	if err != nil {
		return fmt.Errorf("reoffer auto-accept: %w", err)
	}
	return nil
}
