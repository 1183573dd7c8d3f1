// Package httpapi is the operator-facing HTTP surface of the terminal
// daemon: catalog browsing, cart composition, checkout, held carts and
// receipt (re)printing.
package httpapi

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"net/netip"
	"strconv"
	"strings"
	"sync"
	"time"

	"warunglink/terminal/internal/cart"
	"warunglink/terminal/internal/domain"
	"warunglink/terminal/internal/receipt"
	"warunglink/terminal/internal/session"
	"warunglink/terminal/internal/store"
	"warunglink/terminal/internal/upstream"
)

type API struct {
	sessions      *session.Manager
	renderer      *receipt.Renderer
	printer       *receipt.Printer
	auth          *AuthManager
	shopName      string
	allowedOrigin string
	loginLimiter  *attemptLimiter
	csrfSecret    []byte
}

func New(sessions *session.Manager, renderer *receipt.Renderer, printer *receipt.Printer, auth *AuthManager, shopName string, allowedOrigin string) *API {
	csrfSecret := make([]byte, 32)
	if _, err := rand.Read(csrfSecret); err != nil {
		// Fall back to a deterministic secret if crypto/rand fails (should not happen in practice).
		csrfSecret = []byte("csrf-fallback-secret-change-me!!")
	}
	return &API{
		sessions:      sessions,
		renderer:      renderer,
		printer:       printer,
		auth:          auth,
		shopName:      shopName,
		allowedOrigin: allowedOrigin,
		loginLimiter:  newAttemptLimiter(5, time.Minute),
		csrfSecret:    csrfSecret,
	}
}

// csrfTokenForHour computes an HMAC-SHA256 token for the given hour bucket
// (expressed as Unix time truncated to the hour). The token is hex-encoded.
func (a *API) csrfTokenForHour(hourBucket int64) string {
	h := hmac.New(sha256.New, a.csrfSecret)
	fmt.Fprintf(h, "%d", hourBucket)
	return hex.EncodeToString(h.Sum(nil))
}

func (a *API) generateCSRFToken() string {
	now := time.Now().UTC()
	bucket := now.Truncate(time.Hour).Unix()
	return a.csrfTokenForHour(bucket)
}

// validateCSRFToken accepts the current or previous hour bucket, giving a
// 2-hour validity window.
func (a *API) validateCSRFToken(token string) bool {
	if token == "" {
		return false
	}
	now := time.Now().UTC()
	currentBucket := now.Truncate(time.Hour).Unix()
	prevBucket := currentBucket - 3600

	expected1 := a.csrfTokenForHour(currentBucket)
	expected2 := a.csrfTokenForHour(prevBucket)

	return hmac.Equal([]byte(token), []byte(expected1)) ||
		hmac.Equal([]byte(token), []byte(expected2))
}

type attemptLimiter struct {
	mu      sync.Mutex
	max     int
	window  time.Duration
	entries map[string][]time.Time
}

func newAttemptLimiter(max int, window time.Duration) *attemptLimiter {
	if max < 1 {
		max = 1
	}
	if window <= 0 {
		window = time.Minute
	}
	return &attemptLimiter{max: max, window: window, entries: make(map[string][]time.Time)}
}

func (l *attemptLimiter) Allow(key string) bool {
	if l == nil {
		return true
	}
	now := time.Now()
	cutoff := now.Add(-l.window)

	l.mu.Lock()
	defer l.mu.Unlock()

	history := l.entries[key]
	kept := make([]time.Time, 0, len(history)+1)
	for _, ts := range history {
		if ts.After(cutoff) {
			kept = append(kept, ts)
		}
	}
	if len(kept) >= l.max {
		l.entries[key] = kept
		return false
	}
	kept = append(kept, now)
	l.entries[key] = kept
	return true
}

func clientKey(r *http.Request) string {
	host := strings.TrimSpace(r.RemoteAddr)
	if host == "" {
		return "unknown"
	}
	if addr, err := netip.ParseAddrPort(host); err == nil {
		return addr.Addr().String()
	}
	if idx := strings.LastIndex(host, ":"); idx > 0 {
		return host[:idx]
	}
	return host
}

func (a *API) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/healthz", a.handleHealth)
	mux.HandleFunc("/api/v1/auth/login", a.handleLogin)
	mux.HandleFunc("/api/v1/auth/csrf-token", a.handleCSRFToken)

	mux.HandleFunc("/api/v1/catalog", a.requireAuth(a.handleCatalog, "cashier", "admin"))
	mux.HandleFunc("/api/v1/catalog/refresh", a.requireAuth(a.handleCatalogRefresh, "cashier", "admin"))

	mux.HandleFunc("/api/v1/cart", a.requireAuth(a.handleCart, "cashier", "admin"))
	mux.HandleFunc("/api/v1/cart/items", a.requireAuth(a.handleCartItems, "cashier", "admin"))
	mux.HandleFunc("/api/v1/cart/items/", a.requireAuth(a.handleCartItemActions, "cashier", "admin"))
	mux.HandleFunc("/api/v1/cart/amount-paid", a.requireAuth(a.handleAmountPaid, "cashier", "admin"))
	mux.HandleFunc("/api/v1/checkout", a.requireAuth(a.handleCheckout, "cashier", "admin"))

	mux.HandleFunc("/api/v1/carts/hold", a.requireAuth(a.handleHeldCarts, "cashier", "admin"))
	mux.HandleFunc("/api/v1/carts/hold/", a.requireAuth(a.handleHeldCartActions, "cashier", "admin"))

	mux.HandleFunc("/api/v1/transactions", a.requireAuth(a.handleTransactions, "cashier", "admin"))
	mux.HandleFunc("/api/v1/receipts/", a.requireAuth(a.handleReceiptActions, "cashier", "admin"))

	mux.HandleFunc("/api/v1/users/cashiers", a.requireAuth(a.handleCashiers, "admin"))

	return a.withMiddleware(mux)
}

func (a *API) requireAuth(next http.HandlerFunc, roles ...string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		authorization := strings.TrimSpace(r.Header.Get("Authorization"))
		if !strings.HasPrefix(strings.ToLower(authorization), "bearer ") {
			writeError(w, http.StatusUnauthorized, errors.New("missing bearer token"))
			return
		}

		token := strings.TrimSpace(authorization[len("Bearer "):])
		actor, err := a.auth.ParseToken(token)
		if err != nil {
			writeError(w, http.StatusUnauthorized, err)
			return
		}

		if len(roles) > 0 && !isRoleAllowed(actor.Role, roles) {
			writeError(w, http.StatusForbidden, errors.New("forbidden role"))
			return
		}

		next(w, r.WithContext(session.WithActor(r.Context(), actor)))
	}
}

func isRoleAllowed(role string, allowed []string) bool {
	for _, allow := range allowed {
		if role == allow {
			return true
		}
	}
	return false
}

// terminalID identifies the composition session. Single-counter shops never
// send the header and share the default.
func terminalID(r *http.Request) string {
	id := strings.TrimSpace(r.Header.Get("X-Terminal-ID"))
	if id == "" {
		return "terminal-1"
	}
	return id
}

func (a *API) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"ok": true,
		"at": time.Now().UTC().Format(time.RFC3339),
	})
}

func (a *API) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w)
		return
	}
	if !a.loginLimiter.Allow(clientKey(r)) {
		writeError(w, http.StatusTooManyRequests, errors.New("too many login attempts"))
		return
	}

	var req domain.LoginRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	resp, err := a.auth.Login(req)
	if err != nil {
		writeError(w, http.StatusUnauthorized, err)
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

// handleCSRFToken returns a stateless CSRF token valid for the current hour
// bucket. Clients include it in the X-CSRF-Token header for all mutating
// requests.
func (a *API) handleCSRFToken(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"csrf_token": a.generateCSRFToken(),
	})
}

var csrfExemptPaths = []string{
	"/api/v1/auth/login",
}

func (a *API) checkCSRF(w http.ResponseWriter, r *http.Request) bool {
	method := r.Method
	if method != http.MethodPost && method != http.MethodPut && method != http.MethodPatch && method != http.MethodDelete {
		return true
	}
	for _, exempt := range csrfExemptPaths {
		if r.URL.Path == exempt {
			return true
		}
	}
	token := strings.TrimSpace(r.Header.Get("X-CSRF-Token"))
	if !a.validateCSRFToken(token) {
		writeError(w, http.StatusForbidden, errors.New("missing or invalid CSRF token"))
		return false
	}
	return true
}

type catalogEntry struct {
	Item    domain.InventoryItem `json:"item"`
	Display domain.Display       `json:"display"`
}

// handleCatalog lists the sellable catalog with resolved displays. An
// optional q parameter runs the lazy search; limit caps how many matches are
// materialized.
func (a *API) handleCatalog(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}

	index, err := a.sessions.Catalog(r.Context())
	if err != nil {
		a.writeDomainError(w, err)
		return
	}

	limit := parsePositiveLimit(r.URL.Query().Get("limit"), 100, 500)
	query := r.URL.Query().Get("q")

	entries := make([]catalogEntry, 0, limit)
	for item := range index.Search(query) {
		entries = append(entries, catalogEntry{Item: item, Display: index.ResolveDisplay(item)})
		if len(entries) >= limit {
			break
		}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"items": entries,
		"total": index.Len(),
	})
}

func (a *API) handleCatalogRefresh(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w)
		return
	}

	index, err := a.sessions.RefreshCatalog(r.Context())
	if err != nil {
		a.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"total": index.Len()})
}

func (a *API) handleCart(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		view, err := a.sessions.View(r.Context(), terminalID(r))
		if err != nil {
			a.writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, view)
	case http.MethodDelete:
		view, err := a.sessions.ClearCart(r.Context(), terminalID(r))
		if err != nil {
			a.writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, view)
	default:
		writeMethodNotAllowed(w)
	}
}

func (a *API) handleCartItems(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w)
		return
	}

	var req domain.AddItemRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	view, err := a.sessions.AddItem(r.Context(), terminalID(r), req.ProductStockID)
	if err != nil {
		a.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// handleCartItemActions routes /api/v1/cart/items/{productID} and its
// quantity/price/discount sub-resources.
func (a *API) handleCartItemActions(w http.ResponseWriter, r *http.Request) {
	prefix := "/api/v1/cart/items/"
	tail := strings.Trim(strings.TrimPrefix(r.URL.Path, prefix), "/")
	if tail == "" {
		writeError(w, http.StatusBadRequest, errors.New("product id required"))
		return
	}

	idPart, action, _ := strings.Cut(tail, "/")
	productID, err := strconv.ParseInt(idPart, 10, 64)
	if err != nil || productID < 1 {
		writeError(w, http.StatusBadRequest, errors.New("invalid product id"))
		return
	}

	switch action {
	case "":
		if r.Method != http.MethodDelete {
			writeMethodNotAllowed(w)
			return
		}
		view, err := a.sessions.RemoveItem(r.Context(), terminalID(r), productID)
		if err != nil {
			a.writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, view)
	case "quantity":
		if r.Method != http.MethodPatch {
			writeMethodNotAllowed(w)
			return
		}
		var req domain.SetQuantityRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		view, err := a.sessions.SetQuantity(r.Context(), terminalID(r), productID, req.Quantity)
		if err != nil {
			a.writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, view)
	case "price":
		if r.Method != http.MethodPatch {
			writeMethodNotAllowed(w)
			return
		}
		var req domain.SetPriceRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		view, err := a.sessions.SetPrice(r.Context(), terminalID(r), productID, req.UnitPrice)
		if err != nil {
			a.writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, view)
	case "discount":
		if r.Method != http.MethodPatch {
			writeMethodNotAllowed(w)
			return
		}
		var req domain.SetDiscountRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		view, err := a.sessions.SetDiscount(r.Context(), terminalID(r), productID, req.DiscountPercent)
		if err != nil {
			a.writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, view)
	default:
		writeError(w, http.StatusBadRequest, errors.New("unknown cart item action"))
	}
}

func (a *API) handleAmountPaid(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPatch && r.Method != http.MethodPost {
		writeMethodNotAllowed(w)
		return
	}

	var req domain.SetPaidRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	view, err := a.sessions.SetAmountPaid(r.Context(), terminalID(r), req.AmountPaid)
	if err != nil {
		a.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (a *API) handleCheckout(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w)
		return
	}

	var req domain.SubmitRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	confirmed, err := a.sessions.Submit(r.Context(), terminalID(r), req)
	if err != nil {
		a.writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{"transaction": confirmed})
}

func (a *API) handleHeldCarts(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		limit := parsePositiveLimit(r.URL.Query().Get("limit"), 50, 200)
		helds, err := a.sessions.ListHeld(r.Context(), terminalID(r), limit)
		if err != nil {
			a.writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, domain.HeldCartListResponse{Items: helds})
	case http.MethodPost:
		var req domain.HoldCartRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		held, err := a.sessions.Hold(r.Context(), terminalID(r), cashierFrom(r), req.Note)
		if err != nil {
			a.writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, map[string]any{"held_cart": held})
	default:
		writeMethodNotAllowed(w)
	}
}

func (a *API) handleHeldCartActions(w http.ResponseWriter, r *http.Request) {
	prefix := "/api/v1/carts/hold/"
	tail := strings.Trim(strings.TrimPrefix(r.URL.Path, prefix), "/")
	if tail == "" {
		writeError(w, http.StatusBadRequest, errors.New("hold id required"))
		return
	}

	holdID, action, _ := strings.Cut(tail, "/")

	switch action {
	case "":
		if r.Method != http.MethodDelete {
			writeMethodNotAllowed(w)
			return
		}
		if err := a.sessions.DiscardHeld(r.Context(), holdID); err != nil {
			a.writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"discarded": holdID})
	case "resume":
		if r.Method != http.MethodPost {
			writeMethodNotAllowed(w)
			return
		}
		view, err := a.sessions.Resume(r.Context(), terminalID(r), holdID)
		if err != nil {
			a.writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, view)
	default:
		writeError(w, http.StatusBadRequest, errors.New("unknown held cart action"))
	}
}

// handleTransactions lists the newest journaled transactions, the source of
// the reprint history screen.
func (a *API) handleTransactions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}

	limit := parsePositiveLimit(r.URL.Query().Get("limit"), 50, 200)
	txs, err := a.sessions.RecentTransactions(r.Context(), limit)
	if err != nil {
		a.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"transactions": txs})
}

// handleReceiptActions routes /api/v1/receipts/{txid} (printable HTML),
// /{txid}/escpos (raw printer bytes) and /{txid}/print (spool to the
// configured surface).
func (a *API) handleReceiptActions(w http.ResponseWriter, r *http.Request) {
	prefix := "/api/v1/receipts/"
	tail := strings.Trim(strings.TrimPrefix(r.URL.Path, prefix), "/")
	if tail == "" {
		writeError(w, http.StatusBadRequest, errors.New("transaction id required"))
		return
	}

	txID, action, _ := strings.Cut(tail, "/")

	tx, err := a.sessions.Transaction(r.Context(), txID)
	if err != nil {
		a.writeDomainError(w, err)
		return
	}

	doc, err := a.renderer.Render(*tx, a.shopName)
	if err != nil {
		a.writeDomainError(w, err)
		return
	}

	switch action {
	case "":
		if r.Method != http.MethodGet {
			writeMethodNotAllowed(w)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(doc.HTML))
	case "escpos":
		if r.Method != http.MethodGet {
			writeMethodNotAllowed(w)
			return
		}
		w.Header().Set("Content-Type", "application/octet-stream")
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=receipt-%s.bin", doc.TransactionID))
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(doc.Escpos)
	case "print":
		if r.Method != http.MethodPost {
			writeMethodNotAllowed(w)
			return
		}
		if err := a.printer.Print(r.Context(), doc); err != nil {
			a.writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"printed": doc.TransactionID})
	default:
		writeError(w, http.StatusBadRequest, errors.New("unknown receipt action"))
	}
}

func (a *API) handleCashiers(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		writeJSON(w, http.StatusOK, map[string]any{"cashiers": a.auth.ListCashiers()})
	case http.MethodPost:
		var req domain.CashierCreateRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		created, err := a.auth.CreateCashier(req)
		if err != nil {
			writeError(w, http.StatusUnprocessableEntity, err)
			return
		}
		writeJSON(w, http.StatusCreated, map[string]any{"cashier": created})
	default:
		writeMethodNotAllowed(w)
	}
}

func cashierFrom(r *http.Request) string {
	actor, ok := session.ActorFromContext(r.Context())
	if !ok {
		return ""
	}
	return actor.Username
}

// writeDomainError maps domain error kinds onto HTTP statuses. Validation
// failures are the operator's to fix (400), missing things are 404, a busy
// submission is 409, and upstream trouble is a gateway problem (502/504).
func (a *API) writeDomainError(w http.ResponseWriter, err error) {
	var netErr *upstream.NetworkError
	var printErr *receipt.PrintError

	switch {
	case errors.Is(err, domain.ErrValidation):
		writeError(w, http.StatusBadRequest, err)
	case errors.Is(err, cart.ErrLineNotFound), errors.Is(err, store.ErrNotFound), errors.Is(err, session.ErrItemNotInCatalog):
		writeError(w, http.StatusNotFound, err)
	case errors.Is(err, store.ErrConflict), errors.Is(err, session.ErrSubmitInFlight):
		writeError(w, http.StatusConflict, err)
	case errors.Is(err, receipt.ErrUnconfirmed):
		writeError(w, http.StatusUnprocessableEntity, err)
	case errors.As(err, &printErr):
		writeError(w, http.StatusBadGateway, err)
	case errors.As(err, &netErr):
		if netErr.Timeout {
			writeError(w, http.StatusGatewayTimeout, err)
			return
		}
		if netErr.StatusCode == http.StatusNotFound {
			writeError(w, http.StatusNotFound, err)
			return
		}
		writeError(w, http.StatusBadGateway, err)
	case errors.Is(err, session.ErrCatalogUnavailable):
		writeError(w, http.StatusServiceUnavailable, err)
	default:
		writeError(w, http.StatusInternalServerError, err)
	}
}

func (a *API) withMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
		w.Header().Set("Cross-Origin-Opener-Policy", "same-origin")
		w.Header().Set("Access-Control-Allow-Origin", a.allowedOrigin)
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-CSRF-Token, X-Terminal-ID")
		w.Header().Set("Access-Control-Allow-Methods", "GET,POST,PATCH,DELETE,OPTIONS")
		w.Header().Set("Vary", "Origin")

		if (r.Method == http.MethodPost || r.Method == http.MethodPatch || r.Method == http.MethodPut) && strings.Contains(strings.ToLower(r.Header.Get("Content-Type")), "application/json") {
			r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
		}

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		if !a.checkCSRF(w, r) {
			return
		}

		startedAt := time.Now()
		next.ServeHTTP(w, r)
		log.Printf("%s %s %s", r.Method, r.URL.Path, time.Since(startedAt))
	})
}

func decodeJSON(r *http.Request, dest any) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dest); err != nil {
		return err
	}
	return nil
}

func parsePositiveLimit(raw string, fallback int, max int) int {
	limit := fallback
	trimmed := strings.TrimSpace(raw)
	if trimmed != "" {
		if parsed, err := strconv.Atoi(trimmed); err == nil && parsed > 0 {
			limit = parsed
		}
	}
	if max > 0 && limit > max {
		return max
	}
	return limit
}

func writeMethodNotAllowed(w http.ResponseWriter) {
	writeError(w, http.StatusMethodNotAllowed, errors.New("method not allowed"))
}

func writeError(w http.ResponseWriter, status int, err error) {
	// 4xx messages are operator-facing; 5xx bodies stay generic so internal
	// details never leak.
	msg := err.Error()
	if status >= 500 {
		log.Printf("internal error (status %d): %v", status, err)
		msg = "internal server error"
	}
	writeJSON(w, status, map[string]any{
		"error": msg,
	})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
