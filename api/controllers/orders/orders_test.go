package orders

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	internalorders "github.com/angelmondragon/homedoc-backend/internal/orders"
	pkgerrors "github.com/angelmondragon/homedoc-backend/pkg/errors"
)

type stubOrdersService struct {
	order     *internalorders.OrderDTO
	list      []internalorders.OrderDTO
	err       error
	lastLimit int
}

func (s *stubOrdersService) Get(ctx context.Context, id uuid.UUID) (*internalorders.OrderDTO, error) {
	return s.order, s.err
}

func (s *stubOrdersService) ListForDoctor(ctx context.Context, doctorID uuid.UUID, limit int) ([]internalorders.OrderDTO, error) {
	s.lastLimit = limit
	return s.list, s.err
}

func routeWithOrderID(r *http.Request, id string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add("orderId", id)
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

func TestOrderDetail(t *testing.T) {
	orderID := uuid.New()
	svc := &stubOrdersService{order: &internalorders.OrderDTO{ID: orderID}}

	req := routeWithOrderID(httptest.NewRequest(http.MethodGet, "/api/v1/orders/"+orderID.String(), nil), orderID.String())
	rec := httptest.NewRecorder()
	OrderDetail(svc, nil).ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (%s)", rec.Code, rec.Body.String())
	}
	var envelope struct {
		Data internalorders.OrderDTO `json:"data"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&envelope); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if envelope.Data.ID != orderID {
		t.Fatalf("expected order %s, got %s", orderID, envelope.Data.ID)
	}
}

func TestOrderDetailInvalidID(t *testing.T) {
	req := routeWithOrderID(httptest.NewRequest(http.MethodGet, "/api/v1/orders/nope", nil), "nope")
	rec := httptest.NewRecorder()
	OrderDetail(&stubOrdersService{}, nil).ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestOrderDetailNotFound(t *testing.T) {
	id := uuid.NewString()
	req := routeWithOrderID(httptest.NewRequest(http.MethodGet, "/api/v1/orders/"+id, nil), id)
	rec := httptest.NewRecorder()
	OrderDetail(&stubOrdersService{err: pkgerrors.New(pkgerrors.CodeNotFound, "order not found")}, nil).ServeHTTP(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestDoctorOrders(t *testing.T) {
	svc := &stubOrdersService{list: []internalorders.OrderDTO{{ID: uuid.New()}, {ID: uuid.New()}}}
	req := httptest.NewRequest(http.MethodGet, "/api/v1/orders?doctor_id="+uuid.NewString()+"&limit=5", nil)
	rec := httptest.NewRecorder()
	DoctorOrders(svc, nil).ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (%s)", rec.Code, rec.Body.String())
	}
	if svc.lastLimit != 5 {
		t.Fatalf("expected limit 5, got %d", svc.lastLimit)
	}

	rec = httptest.NewRecorder()
	DoctorOrders(svc, nil).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/orders", nil))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 without doctor_id, got %d", rec.Code)
	}
}

func TestDoctorOrdersRejectsOutOfRangeLimit(t *testing.T) {
	svc := &stubOrdersService{}
	for _, limit := range []string{"0", "101", "abc"} {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/orders?doctor_id="+uuid.NewString()+"&limit="+limit, nil)
		rec := httptest.NewRecorder()
		DoctorOrders(svc, nil).ServeHTTP(rec, req)
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("limit=%s: expected 400, got %d", limit, rec.Code)
		}
	}
	if svc.lastLimit != 0 {
		t.Fatalf("service should not be called, saw limit %d", svc.lastLimit)
	}
}

func TestNilServiceIsInternalError(t *testing.T) {
	rec := httptest.NewRecorder()
	DoctorOrders(nil, nil).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/orders", nil))
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
}
