package cron

import (
	"context"
	"errors"
	"testing"

	"github.com/lfgraphics/khadimemillat-backend/pkg/logger"
)

type stubSweeper struct {
	count int
	batch int
	err   error
}

func (s *stubSweeper) SweepExpired(_ context.Context, batch int) (int, error) {
	s.batch = batch
	return s.count, s.err
}

func TestReservationSweepJobPassesBatch(t *testing.T) {
	t.Parallel()

	sweeper := &stubSweeper{count: 4}
	job, err := NewReservationSweepJob(ReservationSweepJobParams{
		Logger:       logger.New(logger.Options{ServiceName: "cron-test"}),
		Reservations: sweeper,
		Batch:        25,
	})
	if err != nil {
		t.Fatalf("new job: %v", err)
	}

	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	if sweeper.batch != 25 {
		t.Fatalf("expected batch 25, got %d", sweeper.batch)
	}
}

func TestReservationSweepJobDefaultsBatch(t *testing.T) {
	t.Parallel()

	sweeper := &stubSweeper{}
	job, err := NewReservationSweepJob(ReservationSweepJobParams{
		Logger:       logger.New(logger.Options{ServiceName: "cron-test"}),
		Reservations: sweeper,
	})
	if err != nil {
		t.Fatalf("new job: %v", err)
	}
	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	if sweeper.batch != defaultSweepBatch {
		t.Fatalf("expected default batch %d, got %d", defaultSweepBatch, sweeper.batch)
	}
}

func TestReservationSweepJobPropagatesError(t *testing.T) {
	t.Parallel()

	sweepErr := errors.New("db down")
	job, err := NewReservationSweepJob(ReservationSweepJobParams{
		Logger:       logger.New(logger.Options{ServiceName: "cron-test"}),
		Reservations: &stubSweeper{err: sweepErr},
	})
	if err != nil {
		t.Fatalf("new job: %v", err)
	}
	if err := job.Run(context.Background()); !errors.Is(err, sweepErr) {
		t.Fatalf("expected wrapped sweep error, got %v", err)
	}
}
