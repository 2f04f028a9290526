package settlements

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/lfgraphics/khadimemillat-backend/internal/items"
	"github.com/lfgraphics/khadimemillat-backend/internal/reservations"
	"github.com/lfgraphics/khadimemillat-backend/pkg/db/models"
	"github.com/lfgraphics/khadimemillat-backend/pkg/enums"
	pkgerrors "github.com/lfgraphics/khadimemillat-backend/pkg/errors"
	"github.com/lfgraphics/khadimemillat-backend/pkg/logger"
	"github.com/lfgraphics/khadimemillat-backend/pkg/outbox"
	"github.com/lfgraphics/khadimemillat-backend/pkg/outbox/payloads"
	"github.com/lfgraphics/khadimemillat-backend/pkg/razorpay"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type gateway interface {
	KeyID() string
	CreateOrder(ctx context.Context, params razorpay.OrderParams) (*razorpay.Order, error)
	VerifyPaymentSignature(orderID, paymentID, signature string) error
}

type reservationManager interface {
	Acquire(ctx context.Context, input reservations.AcquireInput) (*models.Reservation, error)
	Release(ctx context.Context, reservationID, buyerID uuid.UUID) (*models.Reservation, error)
	ConsumeTx(ctx context.Context, tx *gorm.DB, reservationID uuid.UUID, now time.Time) (*models.Reservation, error)
	Expire(ctx context.Context, reservationID uuid.UUID) error
}

type conversationBinder interface {
	OnSettledTx(ctx context.Context, tx *gorm.DB, settlement *models.Settlement, conversationID uuid.UUID) error
}

type outboxPublisher interface {
	EmitIfNotExists(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// Service coordinates the purchase flow end to end: hold stock, open a
// gateway order, then commit the settlement atomically once payment proof
// arrives.
type Service interface {
	InitiatePurchase(ctx context.Context, input InitiateInput) (*PurchaseIntent, error)
	ConfirmPayment(ctx context.Context, input ConfirmInput) (*models.Settlement, error)
	ConfirmFromWebhook(ctx context.Context, gatewayOrderID, paymentID string) (*models.Settlement, error)
	GetByReservationID(ctx context.Context, reservationID uuid.UUID) (*models.Settlement, error)
	List(ctx context.Context, itemID *uuid.UUID, limit, offset int) ([]models.Settlement, error)
}

// InitiateInput opens a purchase for one buyer on one item.
type InitiateInput struct {
	ItemID         uuid.UUID
	BuyerID        uuid.UUID
	Quantity       int
	ConversationID *uuid.UUID
}

// ConfirmInput carries the gateway's payment proof.
type ConfirmInput struct {
	GatewayOrderID string
	PaymentID      string
	Signature      string
}

// PurchaseIntent is what the client needs to drive the gateway checkout.
type PurchaseIntent struct {
	Reservation    *models.Reservation `json:"reservation"`
	GatewayOrderID string              `json:"gateway_order_id"`
	AmountPaise    int64               `json:"amount_paise"`
	Currency       string              `json:"currency"`
	GatewayKeyID   string              `json:"gateway_key_id"`
	ExpiresAt      time.Time           `json:"expires_at"`
}

type service struct {
	tx            txRunner
	repo          Repository
	gatewayOrders GatewayOrderRepository
	itemsRepo     items.Repository
	reservations  reservationManager
	binder        conversationBinder
	gateway       gateway
	outbox        outboxPublisher
	logg          *logger.Logger
}

// NewService builds the settlement coordinator.
func NewService(
	tx txRunner,
	repo Repository,
	gatewayOrders GatewayOrderRepository,
	itemsRepo items.Repository,
	reservationSvc reservationManager,
	binder conversationBinder,
	gw gateway,
	publisher outboxPublisher,
	logg *logger.Logger,
) (Service, error) {
	if tx == nil {
		return nil, fmt.Errorf("tx runner required")
	}
	if repo == nil {
		return nil, fmt.Errorf("settlement repository required")
	}
	if gatewayOrders == nil {
		return nil, fmt.Errorf("gateway order repository required")
	}
	if itemsRepo == nil {
		return nil, fmt.Errorf("item repository required")
	}
	if reservationSvc == nil {
		return nil, fmt.Errorf("reservation service required")
	}
	if binder == nil {
		return nil, fmt.Errorf("conversation binder required")
	}
	if gw == nil {
		return nil, fmt.Errorf("payment gateway required")
	}
	if publisher == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{
		tx:            tx,
		repo:          repo,
		gatewayOrders: gatewayOrders,
		itemsRepo:     itemsRepo,
		reservations:  reservationSvc,
		binder:        binder,
		gateway:       gw,
		outbox:        publisher,
		logg:          logg,
	}, nil
}

func (s *service) InitiatePurchase(ctx context.Context, input InitiateInput) (*PurchaseIntent, error) {
	reservation, err := s.reservations.Acquire(ctx, reservations.AcquireInput{
		ItemID:         input.ItemID,
		BuyerID:        input.BuyerID,
		Quantity:       input.Quantity,
		ConversationID: input.ConversationID,
	})
	if err != nil {
		return nil, err
	}

	order, err := s.gateway.CreateOrder(ctx, razorpay.OrderParams{
		AmountPaise: reservation.AmountPaise,
		Currency:    enums.CurrencyINR.String(),
		Receipt:     reservation.ID.String(),
		Notes: map[string]string{
			"reservation_id": reservation.ID.String(),
			"item_id":        reservation.ItemID.String(),
		},
	})
	if err != nil {
		// The gateway failed after stock left the shelf; give it back so the
		// buyer can retry immediately instead of waiting out the TTL.
		if _, relErr := s.reservations.Release(ctx, reservation.ID, uuid.Nil); relErr != nil {
			logCtx := s.logg.WithReservationID(ctx, reservation.ID.String())
			s.logg.Error(logCtx, "releasing hold after gateway failure", relErr)
		}
		return nil, err
	}

	row := &models.GatewayOrder{
		ID:             uuid.New(),
		GatewayOrderID: order.ID,
		ReservationID:  reservation.ID,
		AmountPaise:    reservation.AmountPaise,
		Currency:       enums.CurrencyINR,
		Status:         enums.GatewayOrderStatusCreated,
	}
	if err := s.gatewayOrders.Create(ctx, row); err != nil {
		if _, relErr := s.reservations.Release(ctx, reservation.ID, uuid.Nil); relErr != nil {
			logCtx := s.logg.WithReservationID(ctx, reservation.ID.String())
			s.logg.Error(logCtx, "releasing hold after order persist failure", relErr)
		}
		return nil, err
	}

	ctx = s.logg.WithFields(ctx, map[string]any{
		"reservation_id":   reservation.ID.String(),
		"gateway_order_id": order.ID,
	})
	s.logg.Info(ctx, "purchase initiated")

	return &PurchaseIntent{
		Reservation:    reservation,
		GatewayOrderID: order.ID,
		AmountPaise:    reservation.AmountPaise,
		Currency:       enums.CurrencyINR.String(),
		GatewayKeyID:   s.gateway.KeyID(),
		ExpiresAt:      reservation.ExpiresAt,
	}, nil
}

// ConfirmPayment verifies the gateway signature and commits the settlement in
// one transaction. Repeat confirms for the same gateway order return the
// recorded settlement without side effects.
func (s *service) ConfirmPayment(ctx context.Context, input ConfirmInput) (*models.Settlement, error) {
	if input.GatewayOrderID == "" || input.PaymentID == "" || input.Signature == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "gateway order id, payment id and signature are required")
	}

	order, err := s.gatewayOrders.FindByGatewayOrderID(ctx, input.GatewayOrderID)
	if err != nil {
		return nil, err
	}

	if order.Status == enums.GatewayOrderStatusVerified {
		return s.repo.FindByReservationID(ctx, order.ReservationID)
	}
	if order.Status == enums.GatewayOrderStatusFailed {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "gateway order already failed")
	}

	// A bad signature must leave the hold untouched: the buyer can retry
	// with the real proof until the TTL runs out.
	if err := s.gateway.VerifyPaymentSignature(input.GatewayOrderID, input.PaymentID, input.Signature); err != nil {
		return nil, err
	}

	return s.settle(ctx, order, input.PaymentID)
}

// ConfirmFromWebhook settles a captured payment reported by the gateway
// webhook. The transport layer has already verified the webhook body
// signature, so only the order binding is checked here.
func (s *service) ConfirmFromWebhook(ctx context.Context, gatewayOrderID, paymentID string) (*models.Settlement, error) {
	if gatewayOrderID == "" || paymentID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "gateway order id and payment id are required")
	}

	order, err := s.gatewayOrders.FindByGatewayOrderID(ctx, gatewayOrderID)
	if err != nil {
		return nil, err
	}
	if order.Status == enums.GatewayOrderStatusVerified {
		return s.repo.FindByReservationID(ctx, order.ReservationID)
	}
	if order.Status == enums.GatewayOrderStatusFailed {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "gateway order already failed")
	}

	return s.settle(ctx, order, paymentID)
}

// settle commits the verified payment atomically: the reservation is
// consumed, the settlement row lands, the item flips to sold when exhausted
// and the outbox rows ride the same transaction.
func (s *service) settle(ctx context.Context, order *models.GatewayOrder, paymentID string) (*models.Settlement, error) {
	var settlement *models.Settlement
	now := time.Now()
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		ok, err := s.gatewayOrders.WithTx(tx).MarkVerified(ctx, order.ID, paymentID)
		if err != nil {
			return err
		}
		if !ok {
			// Raced with another confirm; the settlement lookup below the
			// transaction resolves idempotently.
			return pkgerrors.New(pkgerrors.CodeIdempotency, "gateway order already verified")
		}

		reservation, err := s.reservations.ConsumeTx(ctx, tx, order.ReservationID, now)
		if err != nil {
			return err
		}

		channel := enums.SettlementChannelDirect
		if reservation.ConversationID != nil {
			channel = enums.SettlementChannelChat
		}
		settlement = &models.Settlement{
			ID:            uuid.New(),
			ItemID:        reservation.ItemID,
			ReservationID: reservation.ID,
			BuyerID:       reservation.BuyerID,
			Quantity:      reservation.Quantity,
			AmountPaise:   reservation.AmountPaise,
			Channel:       channel,
			PaidAt:        now,
		}
		if err := s.repo.WithTx(tx).Create(ctx, settlement); err != nil {
			return err
		}

		soldOut, err := s.itemsRepo.WithTx(tx).MarkSoldIfExhausted(ctx, reservation.ItemID)
		if err != nil {
			return err
		}

		if err := s.outbox.EmitIfNotExists(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventSettlementRecorded,
			AggregateType: enums.AggregateSettlement,
			AggregateID:   settlement.ID,
			Actor:         &outbox.ActorRef{BuyerID: reservation.BuyerID},
			Data: payloads.SettlementRecordedEvent{
				SettlementID:   settlement.ID,
				ReservationID:  reservation.ID,
				ItemID:         reservation.ItemID,
				BuyerID:        reservation.BuyerID,
				GatewayOrderID: order.GatewayOrderID,
				AmountPaise:    settlement.AmountPaise,
				Channel:        channel,
				PaidAt:         now,
			},
		}); err != nil {
			return err
		}
		if soldOut {
			if err := s.outbox.EmitIfNotExists(ctx, tx, outbox.DomainEvent{
				EventType:     enums.EventItemSoldOut,
				AggregateType: enums.AggregateItem,
				AggregateID:   reservation.ItemID,
				Data: payloads.ItemSoldOutEvent{
					ItemID: reservation.ItemID,
					SoldAt: now,
				},
			}); err != nil {
				return err
			}
		}

		if reservation.ConversationID != nil {
			if err := s.binder.OnSettledTx(ctx, tx, settlement, *reservation.ConversationID); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return s.resolveConfirmError(ctx, order, err)
	}

	ctx = s.logg.WithFields(ctx, map[string]any{
		"settlement_id":    settlement.ID.String(),
		"reservation_id":   settlement.ReservationID.String(),
		"gateway_order_id": order.GatewayOrderID,
	})
	s.logg.Info(ctx, "settlement recorded")
	return settlement, nil
}

// resolveConfirmError translates transaction failures into the final confirm
// outcome: idempotent races return the existing settlement, lapsed holds are
// expired in a fresh transaction and the order is marked failed.
func (s *service) resolveConfirmError(ctx context.Context, order *models.GatewayOrder, err error) (*models.Settlement, error) {
	typed := pkgerrors.As(err)
	if typed == nil {
		return nil, err
	}

	switch typed.Code() {
	case pkgerrors.CodeIdempotency:
		return s.repo.FindByReservationID(ctx, order.ReservationID)

	case pkgerrors.CodeStateConflict:
		if typed.Message() == "reservation expired" {
			if expireErr := s.reservations.Expire(ctx, order.ReservationID); expireErr != nil {
				logCtx := s.logg.WithReservationID(ctx, order.ReservationID.String())
				s.logg.Error(logCtx, "expiring lapsed hold after confirm", expireErr)
			}
			if failErr := s.gatewayOrders.MarkFailed(ctx, order.ID); failErr != nil {
				logCtx := s.logg.WithReservationID(ctx, order.ReservationID.String())
				s.logg.Error(logCtx, "marking gateway order failed", failErr)
			}
		}
		return nil, err

	default:
		return nil, err
	}
}

func (s *service) GetByReservationID(ctx context.Context, reservationID uuid.UUID) (*models.Settlement, error) {
	return s.repo.FindByReservationID(ctx, reservationID)
}

func (s *service) List(ctx context.Context, itemID *uuid.UUID, limit, offset int) ([]models.Settlement, error) {
	return s.repo.List(ctx, itemID, limit, offset)
}
