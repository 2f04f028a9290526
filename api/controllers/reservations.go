package controllers

import (
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/lfgraphics/khadimemillat-backend/api/responses"
	"github.com/lfgraphics/khadimemillat-backend/api/validators"
	"github.com/lfgraphics/khadimemillat-backend/internal/reservations"
	"github.com/lfgraphics/khadimemillat-backend/pkg/db/models"
	pkgerrors "github.com/lfgraphics/khadimemillat-backend/pkg/errors"
	"github.com/lfgraphics/khadimemillat-backend/pkg/logger"
	"github.com/lfgraphics/khadimemillat-backend/pkg/money"
)

type reservationResponse struct {
	ID             uuid.UUID  `json:"id"`
	ItemID         uuid.UUID  `json:"item_id"`
	BuyerID        uuid.UUID  `json:"buyer_id"`
	Quantity       int        `json:"quantity"`
	AmountPaise    int64      `json:"amount_paise"`
	AmountRupees   string     `json:"amount_rupees"`
	Status         string     `json:"status"`
	ConversationID *uuid.UUID `json:"conversation_id,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	ExpiresAt      time.Time  `json:"expires_at"`
	ReleasedAt     *time.Time `json:"released_at,omitempty"`
	ConsumedAt     *time.Time `json:"consumed_at,omitempty"`
}

func newReservationResponse(res *models.Reservation) reservationResponse {
	if res == nil {
		return reservationResponse{}
	}
	return reservationResponse{
		ID:             res.ID,
		ItemID:         res.ItemID,
		BuyerID:        res.BuyerID,
		Quantity:       res.Quantity,
		AmountPaise:    res.AmountPaise,
		AmountRupees:   money.PaiseToRupees(res.AmountPaise),
		Status:         string(res.Status),
		ConversationID: res.ConversationID,
		CreatedAt:      res.CreatedAt,
		ExpiresAt:      res.ExpiresAt,
		ReleasedAt:     res.ReleasedAt,
		ConsumedAt:     res.ConsumedAt,
	}
}

// ReservationList returns the caller's reservations, newest first.
func ReservationList(svc reservations.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "reservations service unavailable"))
			return
		}

		buyerID, err := buyerIDFromContext(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
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

		rows, err := svc.ListByBuyer(r.Context(), buyerID, limit, offset)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		out := make([]reservationResponse, 0, len(rows))
		for i := range rows {
			out = append(out, newReservationResponse(&rows[i]))
		}
		responses.WriteSuccess(w, out)
	}
}

// ReservationDetail returns one reservation the caller owns.
func ReservationDetail(svc reservations.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "reservations service unavailable"))
			return
		}

		buyerID, err := buyerIDFromContext(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		id, err := pathUUID(r, "reservationId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		res, err := svc.GetByID(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if res.BuyerID != buyerID {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeNotFound, "reservation not found"))
			return
		}

		responses.WriteSuccess(w, newReservationResponse(res))
	}
}

// ReservationRelease voluntarily gives up a held reservation.
func ReservationRelease(svc reservations.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "reservations service unavailable"))
			return
		}

		buyerID, err := buyerIDFromContext(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		id, err := pathUUID(r, "reservationId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		res, err := svc.Release(r.Context(), id, buyerID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, newReservationResponse(res))
	}
}
