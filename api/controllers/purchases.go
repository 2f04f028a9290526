package controllers

import (
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/lfgraphics/khadimemillat-backend/api/responses"
	"github.com/lfgraphics/khadimemillat-backend/api/validators"
	"github.com/lfgraphics/khadimemillat-backend/internal/settlements"
	"github.com/lfgraphics/khadimemillat-backend/pkg/db/models"
	pkgerrors "github.com/lfgraphics/khadimemillat-backend/pkg/errors"
	"github.com/lfgraphics/khadimemillat-backend/pkg/logger"
	"github.com/lfgraphics/khadimemillat-backend/pkg/money"
)

type initiatePurchaseRequest struct {
	ItemID         uuid.UUID  `json:"item_id" validate:"required,uuid4"`
	Quantity       int        `json:"quantity" validate:"required,min=1"`
	ConversationID *uuid.UUID `json:"conversation_id,omitempty" validate:"omitempty,uuid4"`
}

type confirmPurchaseRequest struct {
	GatewayOrderID string `json:"gateway_order_id" validate:"required"`
	PaymentID      string `json:"payment_id" validate:"required"`
	Signature      string `json:"signature" validate:"required"`
}

type settlementResponse struct {
	ID            uuid.UUID `json:"id"`
	ItemID        uuid.UUID `json:"item_id"`
	ReservationID uuid.UUID `json:"reservation_id"`
	BuyerID       uuid.UUID `json:"buyer_id"`
	Quantity      int       `json:"quantity"`
	AmountPaise   int64     `json:"amount_paise"`
	AmountRupees  string    `json:"amount_rupees"`
	Channel       string    `json:"channel"`
	PaidAt        time.Time `json:"paid_at"`
}

func newSettlementResponse(s *models.Settlement) settlementResponse {
	if s == nil {
		return settlementResponse{}
	}
	return settlementResponse{
		ID:            s.ID,
		ItemID:        s.ItemID,
		ReservationID: s.ReservationID,
		BuyerID:       s.BuyerID,
		Quantity:      s.Quantity,
		AmountPaise:   s.AmountPaise,
		AmountRupees:  money.PaiseToRupees(s.AmountPaise),
		Channel:       string(s.Channel),
		PaidAt:        s.PaidAt,
	}
}

// PurchaseInitiate places a hold and opens a gateway order for it.
func PurchaseInitiate(svc settlements.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "settlements service unavailable"))
			return
		}

		buyerID, err := buyerIDFromContext(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload initiatePurchaseRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		intent, err := svc.InitiatePurchase(r.Context(), settlements.InitiateInput{
			ItemID:         payload.ItemID,
			BuyerID:        buyerID,
			Quantity:       payload.Quantity,
			ConversationID: payload.ConversationID,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, intent)
	}
}

// PurchaseConfirm settles a purchase with the gateway's payment proof.
func PurchaseConfirm(svc settlements.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "settlements service unavailable"))
			return
		}

		var payload confirmPurchaseRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		settlement, err := svc.ConfirmPayment(r.Context(), settlements.ConfirmInput{
			GatewayOrderID: payload.GatewayOrderID,
			PaymentID:      payload.PaymentID,
			Signature:      payload.Signature,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, newSettlementResponse(settlement))
	}
}

// SettlementDetail returns the settlement recorded for a reservation.
func SettlementDetail(svc settlements.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "settlements service unavailable"))
			return
		}

		reservationID, err := pathUUID(r, "reservationId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		settlement, err := svc.GetByReservationID(r.Context(), reservationID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, newSettlementResponse(settlement))
	}
}

// SettlementList returns recorded sales for finance review.
func SettlementList(svc settlements.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "settlements service unavailable"))
			return
		}

		limit, err := validators.ParseQueryInt(r, "limit", 50, 1, 100)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		offset, err := validators.ParseQueryInt(r, "offset", 0, 0, 1_000_000)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var itemID *uuid.UUID
		if raw := r.URL.Query().Get("item_id"); raw != "" {
			id, err := uuid.Parse(raw)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "item_id must be a uuid"))
				return
			}
			itemID = &id
		}

		rows, err := svc.List(r.Context(), itemID, limit, offset)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		out := make([]settlementResponse, 0, len(rows))
		for i := range rows {
			out = append(out, newSettlementResponse(&rows[i]))
		}
		responses.WriteSuccess(w, out)
	}
}
