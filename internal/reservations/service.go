package reservations

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/lfgraphics/khadimemillat-backend/internal/items"
	"github.com/lfgraphics/khadimemillat-backend/pkg/db/models"
	"github.com/lfgraphics/khadimemillat-backend/pkg/enums"
	pkgerrors "github.com/lfgraphics/khadimemillat-backend/pkg/errors"
	"github.com/lfgraphics/khadimemillat-backend/pkg/logger"
	"github.com/lfgraphics/khadimemillat-backend/pkg/outbox"
	"github.com/lfgraphics/khadimemillat-backend/pkg/outbox/payloads"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// Service manages the reservation lifecycle: acquire, release, consume and
// expiry. Stock only moves together with a reservation row inside one
// transaction.
type Service interface {
	Acquire(ctx context.Context, input AcquireInput) (*models.Reservation, error)
	Release(ctx context.Context, reservationID, buyerID uuid.UUID) (*models.Reservation, error)
	GetByID(ctx context.Context, id uuid.UUID) (*models.Reservation, error)
	ListByBuyer(ctx context.Context, buyerID uuid.UUID, limit, offset int) ([]models.Reservation, error)
	ConsumeTx(ctx context.Context, tx *gorm.DB, reservationID uuid.UUID, now time.Time) (*models.Reservation, error)
	Expire(ctx context.Context, reservationID uuid.UUID) error
	SweepExpired(ctx context.Context, batch int) (int, error)
}

// AcquireInput captures a hold request for one buyer on one item.
type AcquireInput struct {
	ItemID         uuid.UUID
	BuyerID        uuid.UUID
	Quantity       int
	ConversationID *uuid.UUID
}

type service struct {
	tx     txRunner
	repo   Repository
	items  items.Repository
	outbox outboxPublisher
	logg   *logger.Logger
	ttl    time.Duration
}

// NewService builds the reservation service. The TTL bounds how long a hold
// keeps stock off the shelf before the sweep reclaims it.
func NewService(
	tx txRunner,
	repo Repository,
	itemsRepo items.Repository,
	publisher outboxPublisher,
	logg *logger.Logger,
	ttl time.Duration,
) (Service, error) {
	if tx == nil {
		return nil, fmt.Errorf("tx runner required")
	}
	if repo == nil {
		return nil, fmt.Errorf("reservation repository required")
	}
	if itemsRepo == nil {
		return nil, fmt.Errorf("item repository required")
	}
	if publisher == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	if ttl <= 0 {
		return nil, fmt.Errorf("reservation ttl must be positive")
	}
	return &service{
		tx:     tx,
		repo:   repo,
		items:  itemsRepo,
		outbox: publisher,
		logg:   logg,
		ttl:    ttl,
	}, nil
}

func (s *service) Acquire(ctx context.Context, input AcquireInput) (*models.Reservation, error) {
	if input.ItemID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "item id required")
	}
	if input.BuyerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "buyer id required")
	}
	if input.Quantity <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be positive")
	}

	var reservation *models.Reservation
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		itemsRepo := s.items.WithTx(tx)
		repo := s.repo.WithTx(tx)

		item, err := itemsRepo.FindByID(ctx, input.ItemID)
		if err != nil {
			return err
		}
		if !item.Listed || item.Sold {
			return pkgerrors.New(pkgerrors.CodeConflict, "item is not available for purchase")
		}
		if item.ListedPricePaise == nil {
			return pkgerrors.New(pkgerrors.CodeValidation, "item has no listed price")
		}

		// A conversation carries at most one live hold per item. Earlier
		// holds from the same conversation give their quantity back before
		// the new decrement so re-negotiating the last unit cannot fail.
		if input.ConversationID != nil {
			siblings, err := repo.ListHeldByItemConversation(ctx, input.ItemID, *input.ConversationID)
			if err != nil {
				return err
			}
			for i := range siblings {
				if err := s.releaseHeldTx(ctx, tx, repo, itemsRepo, &siblings[i]); err != nil {
					return err
				}
			}
		}

		ok, err := itemsRepo.DecrementAvailable(ctx, input.ItemID, input.Quantity)
		if err != nil {
			return err
		}
		if !ok {
			return pkgerrors.New(pkgerrors.CodeConflict, "insufficient stock").
				WithDetails(map[string]any{"item_id": input.ItemID, "requested": input.Quantity})
		}

		now := time.Now()
		reservation = &models.Reservation{
			ID:             uuid.New(),
			ItemID:         input.ItemID,
			BuyerID:        input.BuyerID,
			Quantity:       input.Quantity,
			AmountPaise:    *item.ListedPricePaise * int64(input.Quantity),
			Status:         enums.ReservationStatusHeld,
			ConversationID: input.ConversationID,
			ExpiresAt:      now.Add(s.ttl),
		}
		if err := repo.Create(ctx, reservation); err != nil {
			return err
		}

		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventReservationAcquired,
			AggregateType: enums.AggregateReservation,
			AggregateID:   reservation.ID,
			Actor:         &outbox.ActorRef{BuyerID: input.BuyerID},
			Data: payloads.ReservationAcquiredEvent{
				ReservationID: reservation.ID,
				ItemID:        reservation.ItemID,
				BuyerID:       reservation.BuyerID,
				Quantity:      reservation.Quantity,
				AmountPaise:   reservation.AmountPaise,
				ExpiresAt:     reservation.ExpiresAt,
			},
		})
	})
	if err != nil {
		return nil, err
	}

	ctx = s.logg.WithFields(ctx, map[string]any{
		"reservation_id": reservation.ID.String(),
		"item_id":        reservation.ItemID.String(),
		"quantity":       reservation.Quantity,
	})
	s.logg.Info(ctx, "reservation acquired")
	return reservation, nil
}

// releaseHeldTx releases one held reservation inside the caller's transaction:
// CAS to released, stock back, released event. A lost CAS means another
// writer already settled the row and there is nothing to give back.
func (s *service) releaseHeldTx(ctx context.Context, tx *gorm.DB, repo Repository, itemsRepo items.Repository, reservation *models.Reservation) error {
	now := time.Now()
	ok, err := repo.Transition(ctx, reservation.ID, enums.ReservationStatusHeld, enums.ReservationStatusReleased, now)
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}
	if err := itemsRepo.ReturnStock(ctx, reservation.ItemID, reservation.Quantity); err != nil {
		return err
	}
	return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     enums.EventReservationReleased,
		AggregateType: enums.AggregateReservation,
		AggregateID:   reservation.ID,
		Data: payloads.ReservationReleasedEvent{
			ReservationID: reservation.ID,
			ItemID:        reservation.ItemID,
			Quantity:      reservation.Quantity,
			ReleasedAt:    now,
		},
	})
}

func (s *service) Release(ctx context.Context, reservationID, buyerID uuid.UUID) (*models.Reservation, error) {
	if reservationID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "reservation id required")
	}

	var released *models.Reservation
	var changed bool
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		itemsRepo := s.items.WithTx(tx)

		reservation, err := repo.FindByID(ctx, reservationID)
		if err != nil {
			return err
		}
		if buyerID != uuid.Nil && reservation.BuyerID != buyerID {
			return pkgerrors.New(pkgerrors.CodeUnauthorized, "reservation belongs to another buyer")
		}
		if reservation.Status != enums.ReservationStatusHeld {
			// Already consumed, released, or expired; releasing again is a no-op.
			released = reservation
			return nil
		}

		now := time.Now()
		ok, err := repo.Transition(ctx, reservationID, enums.ReservationStatusHeld, enums.ReservationStatusReleased, now)
		if err != nil {
			return err
		}
		if !ok {
			// Lost the race to a concurrent consume or expiry sweep.
			reservation, err = repo.FindByID(ctx, reservationID)
			if err != nil {
				return err
			}
			released = reservation
			return nil
		}
		if err := itemsRepo.ReturnStock(ctx, reservation.ItemID, reservation.Quantity); err != nil {
			return err
		}

		reservation.Status = enums.ReservationStatusReleased
		reservation.ReleasedAt = &now
		released = reservation
		changed = true

		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventReservationReleased,
			AggregateType: enums.AggregateReservation,
			AggregateID:   reservation.ID,
			Data: payloads.ReservationReleasedEvent{
				ReservationID: reservation.ID,
				ItemID:        reservation.ItemID,
				Quantity:      reservation.Quantity,
				ReleasedAt:    now,
			},
		})
	})
	if err != nil {
		return nil, err
	}

	if changed {
		ctx = s.logg.WithReservationID(ctx, released.ID.String())
		s.logg.Info(ctx, "reservation released")
	}
	return released, nil
}

func (s *service) GetByID(ctx context.Context, id uuid.UUID) (*models.Reservation, error) {
	return s.repo.FindByID(ctx, id)
}

func (s *service) ListByBuyer(ctx context.Context, buyerID uuid.UUID, limit, offset int) ([]models.Reservation, error) {
	return s.repo.ListByBuyer(ctx, buyerID, limit, offset)
}

// ConsumeTx moves a held reservation to consumed inside the caller's
// transaction. A hold past its deadline is rejected without mutation; callers
// run Expire in a fresh transaction so the reclaim survives their rollback.
func (s *service) ConsumeTx(ctx context.Context, tx *gorm.DB, reservationID uuid.UUID, now time.Time) (*models.Reservation, error) {
	if tx == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "transaction required")
	}
	repo := s.repo.WithTx(tx)

	reservation, err := repo.FindByID(ctx, reservationID)
	if err != nil {
		return nil, err
	}

	switch reservation.Status {
	case enums.ReservationStatusHeld:
	case enums.ReservationStatusConsumed:
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "reservation already consumed")
	default:
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "reservation is not held").
			WithDetails(map[string]any{"status": reservation.Status})
	}

	if !reservation.ExpiresAt.After(now) {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "reservation expired").
			WithDetails(map[string]any{"expired_at": reservation.ExpiresAt})
	}

	ok, err := repo.Transition(ctx, reservationID, enums.ReservationStatusHeld, enums.ReservationStatusConsumed, now)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "reservation is not held")
	}

	reservation.Status = enums.ReservationStatusConsumed
	reservation.ConsumedAt = &now
	return reservation, nil
}

// Expire reclaims a single lapsed hold in its own transaction.
func (s *service) Expire(ctx context.Context, reservationID uuid.UUID) error {
	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		reservation, err := s.repo.WithTx(tx).FindByID(ctx, reservationID)
		if err != nil {
			return err
		}
		if reservation.Status != enums.ReservationStatusHeld {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "reservation is not held")
		}
		return s.expireTx(ctx, tx, reservation, time.Now())
	})
}

// SweepExpired reclaims stock from held reservations whose deadline passed.
// Each reservation gets its own transaction so one failure cannot wedge the
// whole batch.
func (s *service) SweepExpired(ctx context.Context, batch int) (int, error) {
	cutoff := time.Now()
	expired, err := s.repo.ListExpiredHeld(ctx, cutoff, batch)
	if err != nil {
		return 0, err
	}

	count := 0
	var errs []error
	for i := range expired {
		reservation := expired[i]
		err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
			return s.expireTx(ctx, tx, &reservation, time.Now())
		})
		if err != nil {
			logCtx := s.logg.WithReservationID(ctx, reservation.ID.String())
			s.logg.Error(logCtx, "expiring reservation failed", err)
			errs = append(errs, fmt.Errorf("reservation %s: %w", reservation.ID, err))
			continue
		}
		count++
	}
	return count, multierr.Combine(errs...)
}

func (s *service) expireTx(ctx context.Context, tx *gorm.DB, reservation *models.Reservation, now time.Time) error {
	repo := s.repo.WithTx(tx)
	itemsRepo := s.items.WithTx(tx)

	ok, err := repo.Transition(ctx, reservation.ID, enums.ReservationStatusHeld, enums.ReservationStatusExpired, now)
	if err != nil {
		return err
	}
	if !ok {
		// Lost the race against a consume, release or another sweep worker.
		return pkgerrors.New(pkgerrors.CodeStateConflict, "reservation is not held")
	}
	if err := itemsRepo.ReturnStock(ctx, reservation.ItemID, reservation.Quantity); err != nil {
		return err
	}
	return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     enums.EventReservationExpired,
		AggregateType: enums.AggregateReservation,
		AggregateID:   reservation.ID,
		Data: payloads.ReservationExpiredEvent{
			ReservationID: reservation.ID,
			ItemID:        reservation.ItemID,
			Quantity:      reservation.Quantity,
			ExpiredAt:     now,
		},
	})
}
