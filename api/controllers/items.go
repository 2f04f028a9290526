package controllers

import (
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/lfgraphics/khadimemillat-backend/api/responses"
	"github.com/lfgraphics/khadimemillat-backend/api/validators"
	"github.com/lfgraphics/khadimemillat-backend/internal/items"
	"github.com/lfgraphics/khadimemillat-backend/pkg/db/models"
	pkgerrors "github.com/lfgraphics/khadimemillat-backend/pkg/errors"
	"github.com/lfgraphics/khadimemillat-backend/pkg/logger"
	"github.com/lfgraphics/khadimemillat-backend/pkg/money"
)

type createItemRequest struct {
	Title       string  `json:"title" validate:"required,min=1,max=200"`
	Quantity    int     `json:"quantity" validate:"required,min=1"`
	PricePaise  *int64  `json:"price_paise,omitempty" validate:"omitempty,min=1"`
	PriceRupees *string `json:"price_rupees,omitempty" validate:"omitempty,max=20"`
}

type restockItemRequest struct {
	Quantity int `json:"quantity" validate:"required,min=1"`
}

type setListedRequest struct {
	Listed *bool `json:"listed" validate:"required"`
}

type itemResponse struct {
	ID           uuid.UUID `json:"id"`
	Title        string    `json:"title"`
	TotalQty     int       `json:"total_qty"`
	AvailableQty int       `json:"available_qty"`
	PricePaise   *int64    `json:"price_paise,omitempty"`
	PriceRupees  *string   `json:"price_rupees,omitempty"`
	Listed       bool      `json:"listed"`
	Sold         bool      `json:"sold"`
	CreatedAt    time.Time `json:"created_at"`
}

func newItemResponse(item *models.Item) itemResponse {
	if item == nil {
		return itemResponse{}
	}
	var rupees *string
	if item.ListedPricePaise != nil {
		formatted := money.PaiseToRupees(*item.ListedPricePaise)
		rupees = &formatted
	}
	return itemResponse{
		ID:           item.ID,
		Title:        item.Title,
		TotalQty:     item.TotalQty,
		AvailableQty: item.AvailableQty,
		PricePaise:   item.ListedPricePaise,
		PriceRupees:  rupees,
		Listed:       item.Listed,
		Sold:         item.Sold,
		CreatedAt:    item.CreatedAt,
	}
}

// ItemCreate lists a new donated item for sale.
func ItemCreate(svc items.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "items service unavailable"))
			return
		}

		var payload createItemRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		pricePaise := payload.PricePaise
		if payload.PriceRupees != nil {
			if pricePaise != nil {
				responses.WriteError(r.Context(), logg, w,
					pkgerrors.New(pkgerrors.CodeValidation, "provide price_paise or price_rupees, not both"))
				return
			}
			paise, err := money.RupeesToPaise(*payload.PriceRupees)
			if err != nil {
				responses.WriteError(r.Context(), logg, w,
					pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid price_rupees"))
				return
			}
			pricePaise = &paise
		}

		item, err := svc.Create(r.Context(), items.CreateInput{
			Title:      payload.Title,
			Quantity:   payload.Quantity,
			PricePaise: pricePaise,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, newItemResponse(item))
	}
}

// ItemList returns the browsable catalog.
func ItemList(svc items.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "items service unavailable"))
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
		onlyListed, err := validators.ParseQueryBool(r, "listed", true)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		rows, err := svc.List(r.Context(), onlyListed, limit, offset)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		out := make([]itemResponse, 0, len(rows))
		for i := range rows {
			out = append(out, newItemResponse(&rows[i]))
		}
		responses.WriteSuccess(w, out)
	}
}

// ItemDetail returns one item by id.
func ItemDetail(svc items.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "items service unavailable"))
			return
		}

		id, err := pathUUID(r, "itemId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		item, err := svc.GetByID(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, newItemResponse(item))
	}
}

// ItemRestock adds quantity to an existing item.
func ItemRestock(svc items.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "items service unavailable"))
			return
		}

		id, err := pathUUID(r, "itemId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload restockItemRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		item, err := svc.Restock(r.Context(), id, payload.Quantity)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, newItemResponse(item))
	}
}

// ItemSetListed toggles catalog visibility.
func ItemSetListed(svc items.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "items service unavailable"))
			return
		}

		id, err := pathUUID(r, "itemId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload setListedRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		item, err := svc.SetListed(r.Context(), id, *payload.Listed)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, newItemResponse(item))
	}
}
