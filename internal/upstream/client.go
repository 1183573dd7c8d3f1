// Package upstream is the HTTP client for the shop-platform REST backend:
// catalog and inventory reads, order submission, and transaction retrieval
// for reprints. Every failure is reported as a *NetworkError so callers can
// decide whether a retry makes sense; the client itself never retries.
package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"warunglink/terminal/internal/domain"
)

// DefaultTimeout bounds every upstream call unless config overrides it.
const DefaultTimeout = 10 * time.Second

// NetworkError covers timeouts, non-2xx responses, auth rejections, and
// malformed bodies. The cart that produced a failed submission is preserved
// by the caller so the operator can retry without re-entering items.
type NetworkError struct {
	Op         string
	StatusCode int
	Timeout    bool
	Err        error
}

func (e *NetworkError) Error() string {
	switch {
	case e.Timeout:
		return fmt.Sprintf("upstream %s: timed out", e.Op)
	case e.StatusCode != 0:
		return fmt.Sprintf("upstream %s: unexpected status %d", e.Op, e.StatusCode)
	default:
		return fmt.Sprintf("upstream %s: %v", e.Op, e.Err)
	}
}

func (e *NetworkError) Unwrap() error { return e.Err }

// Retryable reports whether a user-initiated re-submission is worth
// offering. Auth rejections and other 4xx responses are not; the request
// would fail the same way again.
func (e *NetworkError) Retryable() bool {
	if e.Timeout {
		return true
	}
	if e.StatusCode == 0 {
		return true
	}
	return e.StatusCode >= 500
}

type Client struct {
	baseURL  string
	apiToken string
	http     *http.Client
}

func NewClient(baseURL string, apiToken string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		baseURL:  strings.TrimRight(baseURL, "/"),
		apiToken: apiToken,
		http:     &http.Client{Timeout: timeout},
	}
}

type inventoryEnvelope struct {
	Items []domain.InventoryItem `json:"items"`
}

// FetchInventory returns the shop-local inventory rows.
func (c *Client) FetchInventory(ctx context.Context, shopID int64) ([]domain.InventoryItem, error) {
	var envelope inventoryEnvelope
	if err := c.getJSON(ctx, "fetch inventory", fmt.Sprintf("/api/v1/shops/%d/inventory", shopID), &envelope); err != nil {
		return nil, err
	}
	return envelope.Items, nil
}

type catalogEnvelope struct {
	Products []domain.CatalogProduct `json:"products"`
}

// FetchCatalog returns the global product list used to resolve images.
func (c *Client) FetchCatalog(ctx context.Context) ([]domain.CatalogProduct, error) {
	var envelope catalogEnvelope
	if err := c.getJSON(ctx, "fetch catalog", "/api/v1/products", &envelope); err != nil {
		return nil, err
	}
	return envelope.Products, nil
}

// SubmitOrder POSTs the transaction payload. A success response must carry a
// transaction identifier; anything else is a submission failure, reported as
// a *NetworkError.
func (c *Client) SubmitOrder(ctx context.Context, payload domain.TransactionPayload) (domain.ConfirmedTransaction, error) {
	const op = "submit order"

	body, err := json.Marshal(payload)
	if err != nil {
		return domain.ConfirmedTransaction{}, &NetworkError{Op: op, Err: err}
	}

	req, err := c.newRequest(ctx, http.MethodPost, fmt.Sprintf("/api/v1/shops/%d/transactions", payload.ShopID), bytes.NewReader(body))
	if err != nil {
		return domain.ConfirmedTransaction{}, &NetworkError{Op: op, Err: err}
	}
	req.Header.Set("Content-Type", "application/json")

	var tx domain.ConfirmedTransaction
	if err := c.do(op, req, &tx); err != nil {
		return domain.ConfirmedTransaction{}, err
	}
	if strings.TrimSpace(tx.TransactionID) == "" {
		return domain.ConfirmedTransaction{}, &NetworkError{Op: op, Err: errors.New("response missing transaction_id")}
	}
	return tx, nil
}

// GetTransaction fetches a confirmed transaction for printing from history.
func (c *Client) GetTransaction(ctx context.Context, shopID int64, transactionID string) (domain.ConfirmedTransaction, error) {
	const op = "get transaction"

	var tx domain.ConfirmedTransaction
	path := fmt.Sprintf("/api/v1/shops/%d/transactions/%s", shopID, strings.TrimSpace(transactionID))
	if err := c.getJSON(ctx, op, path, &tx); err != nil {
		return domain.ConfirmedTransaction{}, err
	}
	if strings.TrimSpace(tx.TransactionID) == "" {
		return domain.ConfirmedTransaction{}, &NetworkError{Op: op, StatusCode: http.StatusNotFound, Err: errors.New("transaction not found")}
	}
	return tx, nil
}

func (c *Client) newRequest(ctx context.Context, method string, path string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, err
	}
	if c.apiToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiToken)
	}
	req.Header.Set("Accept", "application/json")
	return req, nil
}

func (c *Client) getJSON(ctx context.Context, op string, path string, dest any) error {
	req, err := c.newRequest(ctx, http.MethodGet, path, nil)
	if err != nil {
		return &NetworkError{Op: op, Err: err}
	}
	return c.do(op, req, dest)
}

func (c *Client) do(op string, req *http.Request, dest any) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return &NetworkError{Op: op, Timeout: isTimeout(err), Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		// Drain a little of the body for the log line; the payload itself is
		// untrusted and not surfaced to the operator.
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &NetworkError{
			Op:         op,
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet))),
		}
	}

	if err := json.NewDecoder(resp.Body).Decode(dest); err != nil {
		return &NetworkError{Op: op, Err: fmt.Errorf("malformed response body: %w", err)}
	}
	return nil
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr interface{ Timeout() bool }
	return errors.As(err, &netErr) && netErr.Timeout()
}
