package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"warunglink/terminal/internal/cache"
	"warunglink/terminal/internal/domain"
	"warunglink/terminal/internal/receipt"
	"warunglink/terminal/internal/session"
	"warunglink/terminal/internal/store/memory"
	"warunglink/terminal/internal/upstream"
)

// fakeUpstream serves a tiny fixed catalog and scripted submission results.
type fakeUpstream struct {
	mu        sync.Mutex
	submitErr error
}

func (f *fakeUpstream) FetchInventory(_ context.Context, _ int64) ([]domain.InventoryItem, error) {
	return []domain.InventoryItem{
		{ID: 101, ProductID: 1, ProductName: "Muri 500g", SellPrice: decimal.NewFromInt(100), Quantity: 12},
		{ID: 102, ProductID: 2, ProductName: "Soybean Oil 1L", SellPrice: decimal.NewFromInt(165), Quantity: 4},
	}, nil
}

func (f *fakeUpstream) FetchCatalog(_ context.Context) ([]domain.CatalogProduct, error) {
	return []domain.CatalogProduct{{ProductID: 1, ProductImage: "/img/muri.png"}}, nil
}

func (f *fakeUpstream) SubmitOrder(_ context.Context, payload domain.TransactionPayload) (domain.ConfirmedTransaction, error) {
	f.mu.Lock()
	submitErr := f.submitErr
	f.mu.Unlock()
	if submitErr != nil {
		return domain.ConfirmedTransaction{}, submitErr
	}
	return domain.ConfirmedTransaction{
		TransactionID: "tx-555",
		ShopID:        payload.ShopID,
		CreatedAt:     time.Now().UTC(),
		PaymentMethod: payload.PaymentMethod,
		GrandTotal:    decimal.NewNullDecimal(payload.GrandTotal),
		Due:           decimal.NewNullDecimal(payload.Due),
	}, nil
}

func (f *fakeUpstream) GetTransaction(_ context.Context, _ int64, _ string) (domain.ConfirmedTransaction, error) {
	return domain.ConfirmedTransaction{}, &upstream.NetworkError{Op: "get transaction", StatusCode: 404, Err: errors.New("not found")}
}

// newTestAPI builds a full API with an in-memory store, real AuthManager and
// real session manager so handler tests exercise the complete request path.
func newTestAPI(t *testing.T) (*API, *fakeUpstream) {
	t.Helper()

	t.Setenv("SEED_ADMIN_PASSWORD", "admin123")
	t.Setenv("SEED_CASHIER_PASSWORD", "cashier123")

	repo := memory.NewSeeded()
	up := &fakeUpstream{}
	sessions := session.NewManager(7, up, repo, cache.NoopCatalogCache{}, time.Minute)
	renderer := receipt.NewRenderer("৳")
	printer := receipt.NewPrinter(receipt.SpoolFactory(t.TempDir()))
	auth := NewAuthManager("test-secret-key", time.Hour, repo)

	return New(sessions, renderer, printer, auth, "Demo Shop", "*"), up
}

func login(t *testing.T, handler http.Handler, username string, password string) string {
	t.Helper()

	payload, _ := json.Marshal(map[string]string{"username": username, "password": password})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("login: expected 200, got %d (body: %s)", rec.Code, rec.Body.String())
	}

	var resp domain.LoginResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode login response: %v", err)
	}
	return resp.AccessToken
}

func csrfToken(t *testing.T, handler http.Handler) string {
	t.Helper()

	req := httptest.NewRequest(http.MethodGet, "/api/v1/auth/csrf-token", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("csrf token: expected 200, got %d", rec.Code)
	}
	var body map[string]string
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode csrf response: %v", err)
	}
	return body["csrf_token"]
}

// doJSON fires an authenticated request with CSRF and terminal headers set.
func doJSON(t *testing.T, handler http.Handler, token string, csrf string, method string, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("X-CSRF-Token", csrf)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestHandleHealth(t *testing.T) {
	api, _ := newTestAPI(t)
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

func TestCatalogRequiresAuth(t *testing.T) {
	api, _ := newTestAPI(t)
	handler := api.Handler()

	req := httptest.NewRequest(http.MethodGet, "/api/v1/catalog", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestCatalogListAndSearch(t *testing.T) {
	api, _ := newTestAPI(t)
	handler := api.Handler()
	token := login(t, handler, "cashier", "cashier123")

	rec := doJSON(t, handler, token, "", http.MethodGet, "/api/v1/catalog", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("catalog list: expected 200, got %d (body: %s)", rec.Code, rec.Body.String())
	}
	var body struct {
		Items []struct {
			Item    domain.InventoryItem `json:"item"`
			Display domain.Display       `json:"display"`
		} `json:"items"`
		Total int `json:"total"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode catalog: %v", err)
	}
	if body.Total != 2 || len(body.Items) != 2 {
		t.Fatalf("expected 2 catalog entries, got %+v", body)
	}
	if body.Items[0].Display.ImageURL != "/img/muri.png" {
		t.Fatalf("expected joined image url, got %s", body.Items[0].Display.ImageURL)
	}

	rec = doJSON(t, handler, token, "", http.MethodGet, "/api/v1/catalog?q=oil", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("catalog search: expected 200, got %d", rec.Code)
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode search: %v", err)
	}
	if len(body.Items) != 1 || body.Items[0].Item.ProductName != "Soybean Oil 1L" {
		t.Fatalf("unexpected search result: %+v", body.Items)
	}
}

func TestCartMutationRequiresCSRF(t *testing.T) {
	api, _ := newTestAPI(t)
	handler := api.Handler()
	token := login(t, handler, "cashier", "cashier123")

	rec := doJSON(t, handler, token, "", http.MethodPost, "/api/v1/cart/items", domain.AddItemRequest{ProductStockID: 101})
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 without CSRF token, got %d", rec.Code)
	}
}

func TestCartComposeFlow(t *testing.T) {
	api, _ := newTestAPI(t)
	handler := api.Handler()
	token := login(t, handler, "cashier", "cashier123")
	csrf := csrfToken(t, handler)

	rec := doJSON(t, handler, token, csrf, http.MethodPost, "/api/v1/cart/items", domain.AddItemRequest{ProductStockID: 101})
	if rec.Code != http.StatusOK {
		t.Fatalf("add item: expected 200, got %d (body: %s)", rec.Code, rec.Body.String())
	}

	rec = doJSON(t, handler, token, csrf, http.MethodPatch, "/api/v1/cart/items/1/quantity", domain.SetQuantityRequest{Quantity: 3})
	if rec.Code != http.StatusOK {
		t.Fatalf("set quantity: expected 200, got %d (body: %s)", rec.Code, rec.Body.String())
	}

	rec = doJSON(t, handler, token, csrf, http.MethodPatch, "/api/v1/cart/items/1/discount", domain.SetDiscountRequest{DiscountPercent: decimal.NewFromInt(10)})
	if rec.Code != http.StatusOK {
		t.Fatalf("set discount: expected 200, got %d", rec.Code)
	}

	var view domain.CartView
	if err := json.NewDecoder(rec.Body).Decode(&view); err != nil {
		t.Fatalf("decode view: %v", err)
	}
	// 3 × 100 at 10% off.
	if !view.Settlement.GrandTotal.Equal(decimal.RequireFromString("270.00")) {
		t.Fatalf("expected grand 270.00, got %s", view.Settlement.GrandTotal)
	}

	rec = doJSON(t, handler, token, csrf, http.MethodPatch, "/api/v1/cart/items/1/discount", domain.SetDiscountRequest{DiscountPercent: decimal.NewFromInt(101)})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("out-of-range discount: expected 400, got %d", rec.Code)
	}

	rec = doJSON(t, handler, token, csrf, http.MethodPatch, "/api/v1/cart/items/99/quantity", domain.SetQuantityRequest{Quantity: 2})
	if rec.Code != http.StatusNotFound {
		t.Fatalf("edit of absent line: expected 404, got %d", rec.Code)
	}
}

func TestCheckoutEmptyCart(t *testing.T) {
	api, _ := newTestAPI(t)
	handler := api.Handler()
	token := login(t, handler, "cashier", "cashier123")
	csrf := csrfToken(t, handler)

	rec := doJSON(t, handler, token, csrf, http.MethodPost, "/api/v1/checkout", domain.SubmitRequest{PaymentMethod: "cash"})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for empty cart, got %d (body: %s)", rec.Code, rec.Body.String())
	}
}

func TestCheckoutAndReprintFlow(t *testing.T) {
	api, _ := newTestAPI(t)
	handler := api.Handler()
	token := login(t, handler, "cashier", "cashier123")
	csrf := csrfToken(t, handler)

	rec := doJSON(t, handler, token, csrf, http.MethodPost, "/api/v1/cart/items", domain.AddItemRequest{ProductStockID: 101})
	if rec.Code != http.StatusOK {
		t.Fatalf("add item: %d", rec.Code)
	}

	rec = doJSON(t, handler, token, csrf, http.MethodPost, "/api/v1/checkout", domain.SubmitRequest{
		PaymentMethod: "cash",
		AmountPaid:    decimal.NewFromInt(100),
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("checkout: expected 201, got %d (body: %s)", rec.Code, rec.Body.String())
	}

	var created struct {
		Transaction domain.ConfirmedTransaction `json:"transaction"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&created); err != nil {
		t.Fatalf("decode checkout response: %v", err)
	}
	if created.Transaction.TransactionID != "tx-555" {
		t.Fatalf("expected tx-555, got %q", created.Transaction.TransactionID)
	}

	// The journal backs the reprint endpoint.
	rec = doJSON(t, handler, token, csrf, http.MethodGet, "/api/v1/receipts/tx-555", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("receipt html: expected 200, got %d (body: %s)", rec.Code, rec.Body.String())
	}
	if got := rec.Header().Get("Content-Type"); got != "text/html; charset=utf-8" {
		t.Fatalf("receipt content type: %s", got)
	}
	if !bytes.Contains(rec.Body.Bytes(), []byte("tx-555")) {
		t.Fatalf("receipt html missing transaction id")
	}

	rec = doJSON(t, handler, token, csrf, http.MethodPost, "/api/v1/receipts/tx-555/print", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("receipt print: expected 200, got %d (body: %s)", rec.Code, rec.Body.String())
	}

	rec = doJSON(t, handler, token, csrf, http.MethodGet, "/api/v1/receipts/tx-unknown", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("unknown receipt: expected 404, got %d", rec.Code)
	}

	rec = doJSON(t, handler, token, csrf, http.MethodGet, "/api/v1/transactions", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("transaction history: expected 200, got %d", rec.Code)
	}
	var history struct {
		Transactions []domain.ConfirmedTransaction `json:"transactions"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&history); err != nil {
		t.Fatalf("decode history: %v", err)
	}
	if len(history.Transactions) != 1 || history.Transactions[0].TransactionID != "tx-555" {
		t.Fatalf("history must contain the journaled sale: %+v", history.Transactions)
	}
}

func TestCheckoutUpstreamFailure(t *testing.T) {
	api, up := newTestAPI(t)
	handler := api.Handler()
	token := login(t, handler, "cashier", "cashier123")
	csrf := csrfToken(t, handler)

	rec := doJSON(t, handler, token, csrf, http.MethodPost, "/api/v1/cart/items", domain.AddItemRequest{ProductStockID: 101})
	if rec.Code != http.StatusOK {
		t.Fatalf("add item: %d", rec.Code)
	}

	up.mu.Lock()
	up.submitErr = &upstream.NetworkError{Op: "submit order", StatusCode: 500, Err: errors.New("backend down")}
	up.mu.Unlock()

	rec = doJSON(t, handler, token, csrf, http.MethodPost, "/api/v1/checkout", domain.SubmitRequest{PaymentMethod: "cash"})
	if rec.Code != http.StatusBadGateway {
		t.Fatalf("expected 502, got %d (body: %s)", rec.Code, rec.Body.String())
	}

	// The cart survived; a retry succeeds.
	up.mu.Lock()
	up.submitErr = nil
	up.mu.Unlock()

	rec = doJSON(t, handler, token, csrf, http.MethodPost, "/api/v1/checkout", domain.SubmitRequest{PaymentMethod: "cash"})
	if rec.Code != http.StatusCreated {
		t.Fatalf("retry checkout: expected 201, got %d (body: %s)", rec.Code, rec.Body.String())
	}
}

func TestHeldCartEndpoints(t *testing.T) {
	api, _ := newTestAPI(t)
	handler := api.Handler()
	token := login(t, handler, "cashier", "cashier123")
	csrf := csrfToken(t, handler)

	rec := doJSON(t, handler, token, csrf, http.MethodPost, "/api/v1/cart/items", domain.AddItemRequest{ProductStockID: 101})
	if rec.Code != http.StatusOK {
		t.Fatalf("add item: %d", rec.Code)
	}

	rec = doJSON(t, handler, token, csrf, http.MethodPost, "/api/v1/carts/hold", domain.HoldCartRequest{Note: "gone to ATM"})
	if rec.Code != http.StatusCreated {
		t.Fatalf("hold: expected 201, got %d (body: %s)", rec.Code, rec.Body.String())
	}
	var holdResp struct {
		HeldCart domain.HeldCart `json:"held_cart"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&holdResp); err != nil {
		t.Fatalf("decode hold response: %v", err)
	}
	if holdResp.HeldCart.Cashier != "cashier" {
		t.Fatalf("held cart must record the operator, got %q", holdResp.HeldCart.Cashier)
	}

	rec = doJSON(t, handler, token, csrf, http.MethodGet, "/api/v1/carts/hold", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("list held: expected 200, got %d", rec.Code)
	}
	var listResp domain.HeldCartListResponse
	if err := json.NewDecoder(rec.Body).Decode(&listResp); err != nil {
		t.Fatalf("decode held list: %v", err)
	}
	if len(listResp.Items) != 1 {
		t.Fatalf("expected 1 held cart, got %d", len(listResp.Items))
	}

	rec = doJSON(t, handler, token, csrf, http.MethodPost, "/api/v1/carts/hold/"+holdResp.HeldCart.ID+"/resume", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("resume: expected 200, got %d (body: %s)", rec.Code, rec.Body.String())
	}
	var view domain.CartView
	if err := json.NewDecoder(rec.Body).Decode(&view); err != nil {
		t.Fatalf("decode resumed view: %v", err)
	}
	if len(view.Lines) != 1 {
		t.Fatalf("resumed cart empty: %+v", view)
	}

	rec = doJSON(t, handler, token, csrf, http.MethodDelete, "/api/v1/carts/hold/"+holdResp.HeldCart.ID, nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("discard of consumed hold: expected 404, got %d", rec.Code)
	}
}

func TestCashierManagementRequiresAdmin(t *testing.T) {
	api, _ := newTestAPI(t)
	handler := api.Handler()

	cashierTok := login(t, handler, "cashier", "cashier123")
	rec := doJSON(t, handler, cashierTok, "", http.MethodGet, "/api/v1/users/cashiers", nil)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("cashier listing cashiers: expected 403, got %d", rec.Code)
	}

	adminTok := login(t, handler, "admin", "admin123")
	csrf := csrfToken(t, handler)

	rec = doJSON(t, handler, adminTok, csrf, http.MethodPost, "/api/v1/users/cashiers", domain.CashierCreateRequest{Username: "nasima", Password: "s3cret99"})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create cashier: expected 201, got %d (body: %s)", rec.Code, rec.Body.String())
	}

	login(t, handler, "nasima", "s3cret99")
}
