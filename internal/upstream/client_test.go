package upstream

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"warunglink/terminal/internal/domain"
)

func TestFetchInventory(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/shops/7/inventory" {
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-token" {
			t.Fatalf("expected bearer token, got %q", got)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"items":[{"id":101,"product_id":1,"product_name":"Muri 500g","sell_price":35,"quantity":12}]}`))
	}))
	defer server.Close()

	client := NewClient(server.URL, "test-token", time.Second)
	items, err := client.FetchInventory(context.Background(), 7)
	if err != nil {
		t.Fatalf("fetch inventory: %v", err)
	}
	if len(items) != 1 || items[0].ProductName != "Muri 500g" {
		t.Fatalf("unexpected items: %+v", items)
	}
	if !items[0].SellPrice.Equal(decimal.NewFromInt(35)) {
		t.Fatalf("sell price lost in decode: %s", items[0].SellPrice)
	}
}

func TestSubmitOrderSuccess(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/api/v1/shops/7/transactions" {
			t.Fatalf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		var payload domain.TransactionPayload
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			t.Fatalf("decode payload: %v", err)
		}
		if payload.PaymentMethod != "cash" {
			t.Fatalf("payment method lost on the wire: %+v", payload)
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"transaction_id":"tx-123","shop_id":7,"payment_method":"cash","grand_total":180,"due":0}`))
	}))
	defer server.Close()

	client := NewClient(server.URL, "", time.Second)
	tx, err := client.SubmitOrder(context.Background(), domain.TransactionPayload{ShopID: 7, PaymentMethod: "cash"})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if tx.TransactionID != "tx-123" {
		t.Fatalf("expected tx-123, got %q", tx.TransactionID)
	}
	if !tx.GrandTotal.Valid || !tx.GrandTotal.Decimal.Equal(decimal.NewFromInt(180)) {
		t.Fatalf("grand total lost in decode: %+v", tx.GrandTotal)
	}
}

// A 2xx submission response without a transaction id is a failed
// submission, not a success with missing data.
func TestSubmitOrderMissingTransactionID(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"shop_id":7}`))
	}))
	defer server.Close()

	client := NewClient(server.URL, "", time.Second)
	_, err := client.SubmitOrder(context.Background(), domain.TransactionPayload{ShopID: 7})

	var netErr *NetworkError
	if !errors.As(err, &netErr) {
		t.Fatalf("expected NetworkError, got %v", err)
	}
}

func TestServerErrorIsRetryable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer server.Close()

	client := NewClient(server.URL, "", time.Second)
	_, err := client.FetchCatalog(context.Background())

	var netErr *NetworkError
	if !errors.As(err, &netErr) {
		t.Fatalf("expected NetworkError, got %v", err)
	}
	if netErr.StatusCode != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", netErr.StatusCode)
	}
	if !netErr.Retryable() {
		t.Fatalf("5xx must be retryable")
	}
}

func TestAuthRejectionIsNotRetryable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "invalid token", http.StatusUnauthorized)
	}))
	defer server.Close()

	client := NewClient(server.URL, "stale", time.Second)
	_, err := client.FetchInventory(context.Background(), 7)

	var netErr *NetworkError
	if !errors.As(err, &netErr) {
		t.Fatalf("expected NetworkError, got %v", err)
	}
	if netErr.Retryable() {
		t.Fatalf("4xx must not be retryable")
	}
}

func TestTimeoutIsFlagged(t *testing.T) {
	started := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		close(started)
		<-r.Context().Done()
	}))
	defer server.Close()

	client := NewClient(server.URL, "", 50*time.Millisecond)
	_, err := client.FetchInventory(context.Background(), 7)
	<-started

	var netErr *NetworkError
	if !errors.As(err, &netErr) {
		t.Fatalf("expected NetworkError, got %v", err)
	}
	if !netErr.Timeout {
		t.Fatalf("expected timeout flag, got %+v", netErr)
	}
	if !netErr.Retryable() {
		t.Fatalf("timeouts must be retryable")
	}
}

func TestMalformedBodyIsNetworkError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"items": [`))
	}))
	defer server.Close()

	client := NewClient(server.URL, "", time.Second)
	_, err := client.FetchInventory(context.Background(), 7)

	var netErr *NetworkError
	if !errors.As(err, &netErr) {
		t.Fatalf("expected NetworkError, got %v", err)
	}
}
