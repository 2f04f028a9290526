package conversations

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

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

type holdReleaser interface {
	Release(ctx context.Context, reservationID, buyerID uuid.UUID) (*models.Reservation, error)
}

// Service binds payment markers to conversations. At most one payable
// payment-request marker exists per conversation; a newer request supersedes
// the old one and frees its hold.
type Service interface {
	AttachPaymentRequest(ctx context.Context, input AttachInput) (*models.ConversationMessage, error)
	ListMarkers(ctx context.Context, conversationID uuid.UUID) ([]models.ConversationMessage, error)
	OnSettledTx(ctx context.Context, tx *gorm.DB, settlement *models.Settlement, conversationID uuid.UUID) error
}

// AttachInput ties a fresh reservation to a conversation as a payable marker.
type AttachInput struct {
	ConversationID uuid.UUID
	ItemID         uuid.UUID
	ReservationID  uuid.UUID
	AmountPaise    int64
}

type service struct {
	tx       txRunner
	repo     Repository
	releaser holdReleaser
	outbox   outboxPublisher
	logg     *logger.Logger
}

// NewService builds the conversation payment binder.
func NewService(
	tx txRunner,
	repo Repository,
	releaser holdReleaser,
	publisher outboxPublisher,
	logg *logger.Logger,
) (Service, error) {
	if tx == nil {
		return nil, fmt.Errorf("tx runner required")
	}
	if repo == nil {
		return nil, fmt.Errorf("marker repository required")
	}
	if releaser == nil {
		return nil, fmt.Errorf("hold releaser required")
	}
	if publisher == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{
		tx:       tx,
		repo:     repo,
		releaser: releaser,
		outbox:   publisher,
		logg:     logg,
	}, nil
}

func (s *service) AttachPaymentRequest(ctx context.Context, input AttachInput) (*models.ConversationMessage, error) {
	if input.ConversationID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "conversation id required")
	}
	if input.ItemID == uuid.Nil || input.ReservationID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "item id and reservation id required")
	}
	if input.AmountPaise <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "amount must be positive")
	}

	var marker *models.ConversationMessage
	var supersededHold *uuid.UUID
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		prior, err := repo.FindPayableRequest(ctx, input.ConversationID)
		if err != nil {
			return err
		}
		var supersededID *uuid.UUID
		if prior != nil {
			ok, err := repo.UpdateStatus(ctx, prior.ID, enums.PaymentMarkerStatusPayable, enums.PaymentMarkerStatusSuperseded)
			if err != nil {
				return err
			}
			if !ok {
				return pkgerrors.New(pkgerrors.CodeStateConflict, "payment request changed concurrently")
			}
			supersededID = &prior.ID
			supersededHold = prior.ReservationID
		}

		reservationID := input.ReservationID
		marker = &models.ConversationMessage{
			ID:             uuid.New(),
			ConversationID: input.ConversationID,
			ItemID:         input.ItemID,
			ReservationID:  &reservationID,
			Kind:           enums.PaymentMarkerRequest,
			Status:         enums.PaymentMarkerStatusPayable,
			AmountPaise:    input.AmountPaise,
		}
		if err := repo.Create(ctx, marker); err != nil {
			return err
		}

		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventPaymentRequestPosted,
			AggregateType: enums.AggregateConversation,
			AggregateID:   input.ConversationID,
			Data: payloads.PaymentRequestPostedEvent{
				ConversationID: input.ConversationID,
				MessageID:      marker.ID,
				ReservationID:  input.ReservationID,
				AmountPaise:    input.AmountPaise,
				SupersededID:   supersededID,
			},
		})
	})
	if err != nil {
		return nil, err
	}

	// Same-item holds are already freed at acquire time; this catches a
	// superseded request whose hold sits on a different item. Release is
	// idempotent, and a failure here leaves the hold to the expiry sweep.
	if supersededHold != nil && *supersededHold != input.ReservationID {
		if _, err := s.releaser.Release(ctx, *supersededHold, uuid.Nil); err != nil {
			logCtx := s.logg.WithReservationID(ctx, supersededHold.String())
			s.logg.Warn(logCtx, "releasing superseded hold failed")
		}
	}

	ctx = s.logg.WithFields(ctx, map[string]any{
		"conversation_id": input.ConversationID.String(),
		"marker_id":       marker.ID.String(),
	})
	s.logg.Info(ctx, "payment request posted")
	return marker, nil
}

func (s *service) ListMarkers(ctx context.Context, conversationID uuid.UUID) ([]models.ConversationMessage, error) {
	return s.repo.ListByConversation(ctx, conversationID)
}

// OnSettledTx runs inside the settlement transaction: the payable request
// flips to paid and a completion marker lands in the transcript atomically
// with the settlement row.
func (s *service) OnSettledTx(ctx context.Context, tx *gorm.DB, settlement *models.Settlement, conversationID uuid.UUID) error {
	if tx == nil {
		return pkgerrors.New(pkgerrors.CodeInternal, "transaction required")
	}
	if settlement == nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "settlement required")
	}
	if conversationID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "conversation id required")
	}
	repo := s.repo.WithTx(tx)

	prior, err := repo.FindPayableRequest(ctx, conversationID)
	if err != nil {
		return err
	}
	if prior != nil && prior.ReservationID != nil && *prior.ReservationID == settlement.ReservationID {
		if _, err := repo.UpdateStatus(ctx, prior.ID, enums.PaymentMarkerStatusPayable, enums.PaymentMarkerStatusPaid); err != nil {
			return err
		}
	}

	reservationID := settlement.ReservationID
	completed := &models.ConversationMessage{
		ID:             uuid.New(),
		ConversationID: conversationID,
		ItemID:         settlement.ItemID,
		ReservationID:  &reservationID,
		Kind:           enums.PaymentMarkerCompleted,
		Status:         enums.PaymentMarkerStatusPaid,
		AmountPaise:    settlement.AmountPaise,
	}
	if err := repo.Create(ctx, completed); err != nil {
		return err
	}

	return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     enums.EventPaymentCompletedPosted,
		AggregateType: enums.AggregateConversation,
		AggregateID:   conversationID,
		Data: payloads.PaymentCompletedPostedEvent{
			ConversationID: conversationID,
			MessageID:      completed.ID,
			SettlementID:   settlement.ID,
			AmountPaise:    settlement.AmountPaise,
			PaidAt:         settlement.PaidAt,
		},
	})
}
