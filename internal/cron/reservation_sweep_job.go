package cron

import (
	"context"
	"fmt"

	"github.com/lfgraphics/khadimemillat-backend/pkg/logger"
	"github.com/lfgraphics/khadimemillat-backend/pkg/metrics"
)

const defaultSweepBatch = 200

type expiredSweeper interface {
	SweepExpired(ctx context.Context, batch int) (int, error)
}

// ReservationSweepJobParams configure the expiry sweep.
type ReservationSweepJobParams struct {
	Logger       *logger.Logger
	Reservations expiredSweeper
	Metrics      *metrics.CronJobMetrics
	Batch        int
}

// NewReservationSweepJob builds the job that returns stock from lapsed holds.
func NewReservationSweepJob(params ReservationSweepJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Reservations == nil {
		return nil, fmt.Errorf("reservation service required")
	}
	batch := params.Batch
	if batch <= 0 {
		batch = defaultSweepBatch
	}
	return &reservationSweepJob{
		logg:         params.Logger,
		reservations: params.Reservations,
		metrics:      params.Metrics,
		batch:        batch,
	}, nil
}

type reservationSweepJob struct {
	logg         *logger.Logger
	reservations expiredSweeper
	metrics      *metrics.CronJobMetrics
	batch        int
}

func (j *reservationSweepJob) Name() string { return "reservation-sweep" }

func (j *reservationSweepJob) Run(ctx context.Context) error {
	// A partial sweep still reclaims stock, so record the count before
	// surfacing any per-row failures.
	count, err := j.reservations.SweepExpired(ctx, j.batch)
	if j.metrics != nil {
		j.metrics.AddExpired(j.Name(), count)
	}
	if count > 0 {
		logCtx := j.logg.WithFields(ctx, map[string]any{"count": count})
		j.logg.Info(logCtx, "expired reservations reclaimed")
	}
	if err != nil {
		return fmt.Errorf("sweep expired reservations: %w", err)
	}
	return nil
}
