package controllers

import (
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/lfgraphics/khadimemillat-backend/api/responses"
	"github.com/lfgraphics/khadimemillat-backend/api/validators"
	"github.com/lfgraphics/khadimemillat-backend/internal/conversations"
	"github.com/lfgraphics/khadimemillat-backend/pkg/db/models"
	pkgerrors "github.com/lfgraphics/khadimemillat-backend/pkg/errors"
	"github.com/lfgraphics/khadimemillat-backend/pkg/logger"
	"github.com/lfgraphics/khadimemillat-backend/pkg/money"
)

type attachPaymentRequestBody struct {
	ItemID        uuid.UUID `json:"item_id" validate:"required,uuid4"`
	ReservationID uuid.UUID `json:"reservation_id" validate:"required,uuid4"`
	AmountPaise   int64     `json:"amount_paise" validate:"required,min=1"`
}

type markerResponse struct {
	ID             uuid.UUID  `json:"id"`
	ConversationID uuid.UUID  `json:"conversation_id"`
	ItemID         uuid.UUID  `json:"item_id"`
	ReservationID  *uuid.UUID `json:"reservation_id,omitempty"`
	Kind           string     `json:"kind"`
	Status         string     `json:"status"`
	AmountPaise    int64      `json:"amount_paise"`
	AmountRupees   string     `json:"amount_rupees"`
	CreatedAt      time.Time  `json:"created_at"`
}

func newMarkerResponse(m *models.ConversationMessage) markerResponse {
	if m == nil {
		return markerResponse{}
	}
	return markerResponse{
		ID:             m.ID,
		ConversationID: m.ConversationID,
		ItemID:         m.ItemID,
		ReservationID:  m.ReservationID,
		Kind:           string(m.Kind),
		Status:         string(m.Status),
		AmountPaise:    m.AmountPaise,
		AmountRupees:   money.PaiseToRupees(m.AmountPaise),
		CreatedAt:      m.CreatedAt,
	}
}

// ConversationAttachPaymentRequest posts a payable marker into a chat,
// superseding any earlier payable request in the same conversation.
func ConversationAttachPaymentRequest(svc conversations.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "conversations service unavailable"))
			return
		}

		conversationID, err := pathUUID(r, "conversationId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload attachPaymentRequestBody
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		marker, err := svc.AttachPaymentRequest(r.Context(), conversations.AttachInput{
			ConversationID: conversationID,
			ItemID:         payload.ItemID,
			ReservationID:  payload.ReservationID,
			AmountPaise:    payload.AmountPaise,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, newMarkerResponse(marker))
	}
}

// ConversationMarkers returns the payment markers of one conversation.
func ConversationMarkers(svc conversations.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "conversations service unavailable"))
			return
		}

		conversationID, err := pathUUID(r, "conversationId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		rows, err := svc.ListMarkers(r.Context(), conversationID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		out := make([]markerResponse, 0, len(rows))
		for i := range rows {
			out = append(out, newMarkerResponse(&rows[i]))
		}
		responses.WriteSuccess(w, out)
	}
}
