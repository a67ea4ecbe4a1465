package httpapi

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"martpos/backend/internal/domain"
	"martpos/backend/internal/service"
	"martpos/backend/internal/store"
	"martpos/backend/internal/store/memory"
)

// newTestAPI builds a full API with an in-memory store, real AuthManager and
// real Service so handler tests exercise the complete request path.
func newTestAPI(t *testing.T) *API {
	t.Helper()

	repo := memory.NewSeeded()
	svc := service.New(repo, nil, nil)
	auth := NewAuthManager("test-secret-key", time.Hour, repo, nil)

	return New(svc, auth, nil, nil, "*")
}

func TestHandleHealth(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var body map[string]any
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body["ok"] != true {
		t.Fatalf("expected ok:true, got %v", body["ok"])
	}
}

func TestHandleLogin_Success(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()

	payload, _ := json.Marshal(map[string]string{
		"username": "admin",
		"password": "admin123",
	})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (body: %s)", rec.Code, rec.Body.String())
	}

	var body map[string]any
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body["access_token"] == "" || body["access_token"] == nil {
		t.Fatalf("expected access_token in response, got %v", body)
	}
}

func TestHandleLogin_InvalidCredentials(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()

	payload, _ := json.Marshal(map[string]string{
		"username": "admin",
		"password": "wrongpassword",
	})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d (body: %s)", rec.Code, rec.Body.String())
	}
}

func TestHandleProducts_RequiresAuth(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()

	req := httptest.NewRequest(http.MethodGet, "/api/v1/products", nil)
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestHandleProducts_WithValidToken(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()
	token := loginAs(t, api, "admin", "admin123")

	req := httptest.NewRequest(http.MethodGet, "/api/v1/products", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (body: %s)", rec.Code, rec.Body.String())
	}

	var body domain.ProductListResponse
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if len(body.Products) == 0 {
		t.Fatalf("expected seeded products in response")
	}
}

func TestHandleSales_FullCheckoutFlow(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()
	token := loginAs(t, api, "cashier", "cashier123")
	csrf := fetchCSRFToken(t, api)

	payload, _ := json.Marshal(domain.SaleRequest{
		Items: []domain.SaleItemInput{
			{ProductID: "prod-mie-01", Quantity: 2},
		},
		AmountPaidCents: 10000,
	})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/sales", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("X-CSRF-Token", csrf)
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d (body: %s)", rec.Code, rec.Body.String())
	}

	var resp domain.SaleResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if resp.Transaction.TotalCents != 7000 {
		t.Fatalf("expected total 7000, got %d", resp.Transaction.TotalCents)
	}
	if resp.ChangeCents != 3000 {
		t.Fatalf("expected change 3000, got %d", resp.ChangeCents)
	}
	if resp.Transaction.TxnID == "" {
		t.Fatalf("expected txn id in response")
	}
}

func TestHandleSales_InsufficientStockConflict(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()
	token := loginAs(t, api, "cashier", "cashier123")
	csrf := fetchCSRFToken(t, api)

	payload, _ := json.Marshal(domain.SaleRequest{
		Items: []domain.SaleItemInput{
			{ProductID: "prod-mie-01", Quantity: 999},
		},
	})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/sales", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("X-CSRF-Token", csrf)
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d (body: %s)", rec.Code, rec.Body.String())
	}
}

func TestHandleRefund_AdminOnly(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()
	cashierToken := loginAs(t, api, "cashier", "cashier123")
	adminToken := loginAs(t, api, "admin", "admin123")
	csrf := fetchCSRFToken(t, api)

	// Cashier rings up a sale first.
	salePayload, _ := json.Marshal(domain.SaleRequest{
		Items: []domain.SaleItemInput{{ProductID: "prod-kopi-01", Quantity: 3}},
	})
	saleReq := httptest.NewRequest(http.MethodPost, "/api/v1/sales", bytes.NewReader(salePayload))
	saleReq.Header.Set("Content-Type", "application/json")
	saleReq.Header.Set("Authorization", "Bearer "+cashierToken)
	saleReq.Header.Set("X-CSRF-Token", csrf)
	saleRec := httptest.NewRecorder()
	handler.ServeHTTP(saleRec, saleReq)
	if saleRec.Code != http.StatusCreated {
		t.Fatalf("sale failed: %d %s", saleRec.Code, saleRec.Body.String())
	}
	var sale domain.SaleResponse
	if err := json.NewDecoder(saleRec.Body).Decode(&sale); err != nil {
		t.Fatalf("decode sale: %v", err)
	}

	refundPath := fmt.Sprintf("/api/v1/transactions/%s/refund", sale.Transaction.TxnID)
	refundPayload, _ := json.Marshal(domain.RefundRequest{
		RefundAmountCents: 2600,
		RefundReason:      "customer returned one",
	})

	// Cashier may not refund.
	cashierReq := httptest.NewRequest(http.MethodPost, refundPath, bytes.NewReader(refundPayload))
	cashierReq.Header.Set("Content-Type", "application/json")
	cashierReq.Header.Set("Authorization", "Bearer "+cashierToken)
	cashierReq.Header.Set("X-CSRF-Token", csrf)
	cashierRec := httptest.NewRecorder()
	handler.ServeHTTP(cashierRec, cashierReq)
	if cashierRec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for cashier refund, got %d", cashierRec.Code)
	}

	// Admin can.
	adminReq := httptest.NewRequest(http.MethodPost, refundPath, bytes.NewReader(refundPayload))
	adminReq.Header.Set("Content-Type", "application/json")
	adminReq.Header.Set("Authorization", "Bearer "+adminToken)
	adminReq.Header.Set("X-CSRF-Token", csrf)
	adminRec := httptest.NewRecorder()
	handler.ServeHTTP(adminRec, adminReq)
	if adminRec.Code != http.StatusOK {
		t.Fatalf("expected 200 for admin refund, got %d (body: %s)", adminRec.Code, adminRec.Body.String())
	}

	var refund domain.RefundResponse
	if err := json.NewDecoder(adminRec.Body).Decode(&refund); err != nil {
		t.Fatalf("decode refund: %v", err)
	}
	if refund.Transaction.Status != domain.TxStatusPartialRefund {
		t.Fatalf("expected partial_refund, got %s", refund.Transaction.Status)
	}
}

func TestHandleRefund_UnknownTransaction(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()
	token := loginAs(t, api, "admin", "admin123")
	csrf := fetchCSRFToken(t, api)

	payload, _ := json.Marshal(domain.RefundRequest{RefundAmountCents: 100})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/transactions/TXN9999999900001/refund", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("X-CSRF-Token", csrf)
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d (body: %s)", rec.Code, rec.Body.String())
	}
}

func TestHandleReports_CashierForbidden(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()
	token := loginAs(t, api, "cashier", "cashier123")

	req := httptest.NewRequest(http.MethodGet, "/api/v1/reports/sales", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", rec.Code)
	}
}

func TestHandleMetricsEndpoint(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 from metrics endpoint, got %d", rec.Code)
	}
}

func TestHandleLogout_InvalidatesSession(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()
	token := loginAs(t, api, "admin", "admin123")

	logoutReq := httptest.NewRequest(http.MethodPost, "/api/v1/auth/logout", nil)
	logoutReq.Header.Set("Authorization", "Bearer "+token)
	logoutRec := httptest.NewRecorder()
	handler.ServeHTTP(logoutRec, logoutReq)
	if logoutRec.Code != http.StatusOK {
		t.Fatalf("logout failed: %d %s", logoutRec.Code, logoutRec.Body.String())
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/products", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 after logout, got %d", rec.Code)
	}
}

func TestWriteServiceErrorClassifications(t *testing.T) {
	api := newTestAPI(t)

	cases := []struct {
		name string
		err  error
		want int
	}{
		{"exhausted retry budget", fmt.Errorf("checkout did not settle after 5 attempts (could not serialize access): %w", store.ErrConflict), http.StatusConflict},
		{"admin required", fmt.Errorf("sales report: %w", service.ErrAdminRequired), http.StatusForbidden},
		{"cashier required", fmt.Errorf("open shift: %w", service.ErrCashierRequired), http.StatusUnauthorized},
		{"negative total", &store.DiscountExceedsSubtotalError{SubtotalCents: 500, DiscountCents: 900}, http.StatusBadRequest},
	}
	for _, tc := range cases {
		rec := httptest.NewRecorder()
		api.writeServiceError(rec, tc.err)
		if rec.Code != tc.want {
			t.Fatalf("%s: expected %d, got %d", tc.name, tc.want, rec.Code)
		}
	}
}
