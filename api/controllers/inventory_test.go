package controllers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/devicehub-backend/internal/inventory"
	"github.com/angelmondragon/devicehub-backend/internal/labels"
	pkgerrors "github.com/angelmondragon/devicehub-backend/pkg/errors"
	"github.com/angelmondragon/devicehub-backend/pkg/pagination"
)

type stubInventory struct {
	InventoryService
	requested []inventory.Identity
	setStock  *int
	restocked int
}

func (s *stubInventory) Availability(ctx context.Context, ids []inventory.Identity) ([]inventory.LineAvailability, error) {
	s.requested = ids
	out := make([]inventory.LineAvailability, len(ids))
	for i, id := range ids {
		out[i] = inventory.LineAvailability{Identity: id}
	}
	return out, nil
}

func (s *stubInventory) SetStock(ctx context.Context, id inventory.Identity, stock int, askingPrice decimal.Decimal) (*inventory.LineDTO, error) {
	s.setStock = &stock
	return &inventory.LineDTO{ID: uuid.New(), DeviceID: id.DeviceID, Stock: stock, AskingPrice: askingPrice}, nil
}

func (s *stubInventory) Restock(ctx context.Context, id inventory.Identity, delta int) (*inventory.LineDTO, error) {
	s.restocked = delta
	return nil, pkgerrors.New(pkgerrors.CodeNotFound, "inventory line not found")
}

func (s *stubInventory) List(ctx context.Context, params pagination.Params) (*pagination.Page[inventory.LineDTO], error) {
	return &pagination.Page[inventory.LineDTO]{}, nil
}

func TestInventoryAvailabilityAlignsQueryValues(t *testing.T) {
	svc := &stubInventory{}
	req := httptest.NewRequest(http.MethodGet,
		"/availability?device_id=iphone-13&storage_variant=128GB&grade=A&device_id=pixel-7&storage_variant=256GB&grade=B", nil)
	rec := httptest.NewRecorder()

	InventoryAvailability(svc, nil).ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.Equal(t, []inventory.Identity{
		{DeviceID: "iphone-13", StorageVariant: "128GB", Grade: "A"},
		{DeviceID: "pixel-7", StorageVariant: "256GB", Grade: "B"},
	}, svc.requested)
}

func TestInventoryAvailabilityRejectsMisalignedQuery(t *testing.T) {
	svc := &stubInventory{}
	req := httptest.NewRequest(http.MethodGet, "/availability?device_id=iphone-13&storage_variant=128GB", nil)
	rec := httptest.NewRecorder()

	InventoryAvailability(svc, nil).ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Nil(t, svc.requested)
}

func TestAdminSetStockAllowsZero(t *testing.T) {
	svc := &stubInventory{}
	body := `{"device_id":"iphone-13","storage_variant":"128GB","grade":"A","stock":0,"asking_price":"310.50"}`
	req := httptest.NewRequest(http.MethodPut, "/inventory", strings.NewReader(body))
	rec := httptest.NewRecorder()

	AdminSetStock(svc, nil).ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.NotNil(t, svc.setStock)
	require.Equal(t, 0, *svc.setStock)
}

func TestAdminSetStockRequiresStock(t *testing.T) {
	svc := &stubInventory{}
	req := httptest.NewRequest(http.MethodPut, "/inventory", strings.NewReader(`{"device_id":"iphone-13","storage_variant":"128GB","grade":"A"}`))
	rec := httptest.NewRecorder()

	AdminSetStock(svc, nil).ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Nil(t, svc.setStock)
}

func TestAdminRestockValidatesDelta(t *testing.T) {
	svc := &stubInventory{}
	req := httptest.NewRequest(http.MethodPost, "/inventory/restock", strings.NewReader(`{"device_id":"iphone-13","storage_variant":"128GB","grade":"A","delta":-2}`))
	rec := httptest.NewRecorder()
	AdminRestock(svc, nil).ServeHTTP(rec, req)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Zero(t, svc.restocked)

	req = httptest.NewRequest(http.MethodPost, "/inventory/restock", strings.NewReader(`{"device_id":"iphone-13","storage_variant":"128GB","grade":"A","delta":4}`))
	rec = httptest.NewRecorder()
	AdminRestock(svc, nil).ServeHTTP(rec, req)
	require.Equal(t, http.StatusNotFound, rec.Code)
	require.Equal(t, 4, svc.restocked)
}

type stubLabels struct {
	LabelService
	details *labels.ShippingDetails
	voided  []uuid.UUID
}

func (s *stubLabels) CreateLabel(ctx context.Context, orderID uuid.UUID, details labels.ShippingDetails) (*labels.LabelResult, error) {
	s.details = &details
	return &labels.LabelResult{LabelID: uuid.New(), OrderID: orderID}, nil
}

func (s *stubLabels) VoidLabel(ctx context.Context, labelID uuid.UUID) error {
	s.voided = append(s.voided, labelID)
	return nil
}

func TestAdminCreateLabelWithoutBody(t *testing.T) {
	svc := &stubLabels{}
	router := chi.NewRouter()
	router.Post("/orders/{orderId}/labels", AdminCreateLabel(svc, nil))

	req := httptest.NewRequest(http.MethodPost, "/orders/"+uuid.NewString()+"/labels", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	require.NotNil(t, svc.details)
	require.Nil(t, svc.details.ShipFrom)
}

func TestAdminVoidLabelTwice(t *testing.T) {
	svc := &stubLabels{}
	router := chi.NewRouter()
	router.Delete("/labels/{labelId}", AdminVoidLabel(svc, nil))
	labelID := uuid.New()

	for i := 0; i < 2; i++ {
		req := httptest.NewRequest(http.MethodDelete, "/labels/"+labelID.String(), nil)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code)
	}
	require.Equal(t, []uuid.UUID{labelID, labelID}, svc.voided)
}
