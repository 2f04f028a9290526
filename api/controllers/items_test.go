package controllers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/lfgraphics/khadimemillat-backend/internal/items"
	"github.com/lfgraphics/khadimemillat-backend/pkg/db/models"
	pkgerrors "github.com/lfgraphics/khadimemillat-backend/pkg/errors"
	"github.com/lfgraphics/khadimemillat-backend/pkg/types"
)

type stubItemsService struct {
	item *models.Item
	list []models.Item
	err  error

	lastCreate  items.CreateInput
	lastRestock int
}

func (s *stubItemsService) Create(ctx context.Context, input items.CreateInput) (*models.Item, error) {
	s.lastCreate = input
	return s.item, s.err
}

func (s *stubItemsService) GetByID(ctx context.Context, id uuid.UUID) (*models.Item, error) {
	return s.item, s.err
}

func (s *stubItemsService) List(ctx context.Context, onlyListed bool, limit, offset int) ([]models.Item, error) {
	return s.list, s.err
}

func (s *stubItemsService) Restock(ctx context.Context, id uuid.UUID, qty int) (*models.Item, error) {
	s.lastRestock = qty
	return s.item, s.err
}

func (s *stubItemsService) SetListed(ctx context.Context, id uuid.UUID, listed bool) (*models.Item, error) {
	return s.item, s.err
}

func withURLParam(r *http.Request, key, value string) *http.Request {
	routeCtx := chi.NewRouteContext()
	routeCtx.URLParams.Add(key, value)
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, routeCtx))
}

func TestItemCreateSuccess(t *testing.T) {
	price := int64(25000)
	svc := &stubItemsService{
		item: &models.Item{
			ID:               uuid.New(),
			Title:            "Wooden bookshelf",
			TotalQty:         3,
			AvailableQty:     3,
			ListedPricePaise: &price,
			Listed:           true,
		},
	}

	body := `{"title":"Wooden bookshelf","quantity":3,"price_paise":25000}`
	req := httptest.NewRequest(http.MethodPost, "/api/admin/items", strings.NewReader(body))
	rec := httptest.NewRecorder()

	ItemCreate(svc, nil)(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	if svc.lastCreate.Title != "Wooden bookshelf" || svc.lastCreate.Quantity != 3 {
		t.Fatalf("unexpected create input %+v", svc.lastCreate)
	}

	var envelope types.SuccessEnvelope
	if err := json.Unmarshal(rec.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("decode envelope: %v", err)
	}
	row, ok := envelope.Data.(map[string]any)
	if !ok {
		t.Fatalf("unexpected payload %v", envelope.Data)
	}
	if row["price_rupees"] != "250.00" {
		t.Fatalf("expected price_rupees 250.00, got %v", row["price_rupees"])
	}
}

func TestItemCreateAcceptsRupeePrice(t *testing.T) {
	price := int64(29950)
	svc := &stubItemsService{
		item: &models.Item{
			ID:               uuid.New(),
			Title:            "Steel almirah",
			TotalQty:         1,
			AvailableQty:     1,
			ListedPricePaise: &price,
			Listed:           true,
		},
	}

	body := `{"title":"Steel almirah","quantity":1,"price_rupees":"299.50"}`
	req := httptest.NewRequest(http.MethodPost, "/api/admin/items", strings.NewReader(body))
	rec := httptest.NewRecorder()

	ItemCreate(svc, nil)(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	if svc.lastCreate.PricePaise == nil || *svc.lastCreate.PricePaise != 29950 {
		t.Fatalf("unexpected price input %+v", svc.lastCreate.PricePaise)
	}
}

func TestItemCreateRejectsConflictingPrices(t *testing.T) {
	svc := &stubItemsService{}

	body := `{"title":"x","quantity":1,"price_paise":100,"price_rupees":"1.00"}`
	req := httptest.NewRequest(http.MethodPost, "/api/admin/items", strings.NewReader(body))
	rec := httptest.NewRecorder()

	ItemCreate(svc, nil)(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestItemCreateRejectsFractionalPaise(t *testing.T) {
	svc := &stubItemsService{}

	body := `{"title":"x","quantity":1,"price_rupees":"10.005"}`
	req := httptest.NewRequest(http.MethodPost, "/api/admin/items", strings.NewReader(body))
	rec := httptest.NewRecorder()

	ItemCreate(svc, nil)(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestItemCreateRejectsZeroQuantity(t *testing.T) {
	svc := &stubItemsService{}

	req := httptest.NewRequest(http.MethodPost, "/api/admin/items", strings.NewReader(`{"title":"x","quantity":0}`))
	rec := httptest.NewRecorder()

	ItemCreate(svc, nil)(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestItemDetailNotFound(t *testing.T) {
	svc := &stubItemsService{err: pkgerrors.New(pkgerrors.CodeNotFound, "item not found")}

	req := httptest.NewRequest(http.MethodGet, "/api/items/"+uuid.NewString(), nil)
	req = withURLParam(req, "itemId", uuid.NewString())
	rec := httptest.NewRecorder()

	ItemDetail(svc, nil)(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestItemDetailRejectsBadID(t *testing.T) {
	svc := &stubItemsService{}

	req := httptest.NewRequest(http.MethodGet, "/api/items/not-a-uuid", nil)
	req = withURLParam(req, "itemId", "not-a-uuid")
	rec := httptest.NewRecorder()

	ItemDetail(svc, nil)(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestItemListReturnsCatalog(t *testing.T) {
	svc := &stubItemsService{
		list: []models.Item{
			{ID: uuid.New(), Title: "Chair", TotalQty: 2, AvailableQty: 1, Listed: true},
			{ID: uuid.New(), Title: "Table", TotalQty: 1, AvailableQty: 1, Listed: true},
		},
	}

	req := httptest.NewRequest(http.MethodGet, "/api/items?limit=10", nil)
	rec := httptest.NewRecorder()

	ItemList(svc, nil)(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var envelope types.SuccessEnvelope
	if err := json.Unmarshal(rec.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("decode envelope: %v", err)
	}
	rows, ok := envelope.Data.([]any)
	if !ok || len(rows) != 2 {
		t.Fatalf("expected two items, got %v", envelope.Data)
	}
}

func TestItemRestockForwardsQuantity(t *testing.T) {
	svc := &stubItemsService{item: &models.Item{ID: uuid.New(), TotalQty: 5, AvailableQty: 5}}

	req := httptest.NewRequest(http.MethodPost, "/api/admin/items/"+uuid.NewString()+"/restock", strings.NewReader(`{"quantity":2}`))
	req = withURLParam(req, "itemId", uuid.NewString())
	rec := httptest.NewRecorder()

	ItemRestock(svc, nil)(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if svc.lastRestock != 2 {
		t.Fatalf("expected restock of 2, got %d", svc.lastRestock)
	}
}
