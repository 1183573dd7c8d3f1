// Package session orchestrates order composition per terminal: each terminal
// id owns one live cart, the settlement is recomputed synchronously after
// every mutation, and submission hands the cart to the shop-platform backend
// exactly once at a time.
package session

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"warunglink/terminal/internal/cache"
	"warunglink/terminal/internal/cart"
	"warunglink/terminal/internal/catalog"
	"warunglink/terminal/internal/domain"
	"warunglink/terminal/internal/order"
	"warunglink/terminal/internal/settlement"
	"warunglink/terminal/internal/store"
)

var (
	// ErrSubmitInFlight rejects cart mutations and a second submit while a
	// submission is still talking to the backend; double-tapping the pay
	// button must not create two transactions, and a line added mid-flight
	// must not be silently swallowed by the post-confirmation clear.
	ErrSubmitInFlight = errors.New("a submission is already in flight for this terminal")

	// ErrCatalogUnavailable means neither the upstream nor the snapshot
	// cache could produce a catalog.
	ErrCatalogUnavailable = errors.New("catalog unavailable")

	ErrItemNotInCatalog = errors.New("item not found in catalog")
)

// Upstream is the slice of the shop-platform client the manager needs.
type Upstream interface {
	FetchInventory(ctx context.Context, shopID int64) ([]domain.InventoryItem, error)
	FetchCatalog(ctx context.Context) ([]domain.CatalogProduct, error)
	SubmitOrder(ctx context.Context, payload domain.TransactionPayload) (domain.ConfirmedTransaction, error)
	GetTransaction(ctx context.Context, shopID int64, transactionID string) (domain.ConfirmedTransaction, error)
}

type Manager struct {
	shopID     int64
	upstream   Upstream
	repo       store.Repository
	cache      cache.CatalogCache
	catalogTTL time.Duration

	mu       sync.Mutex
	sessions map[string]*state

	catMu     sync.RWMutex
	index     *catalog.Index
	fetchedAt time.Time
}

// state is one terminal's live composition session. Its mutex covers the
// cart, the tendered amount and the in-flight submit flag.
type state struct {
	mu         sync.Mutex
	cart       *cart.Cart
	amountPaid decimal.Decimal
	submitting bool
}

func NewManager(shopID int64, up Upstream, repo store.Repository, catalogCache cache.CatalogCache, catalogTTL time.Duration) *Manager {
	if catalogTTL <= 0 {
		catalogTTL = 15 * time.Minute
	}
	return &Manager{
		shopID:     shopID,
		upstream:   up,
		repo:       repo,
		cache:      catalogCache,
		catalogTTL: catalogTTL,
		sessions:   make(map[string]*state),
	}
}

func (m *Manager) session(terminalID string) *state {
	m.mu.Lock()
	defer m.mu.Unlock()

	st, ok := m.sessions[terminalID]
	if !ok {
		st = &state{cart: cart.New()}
		m.sessions[terminalID] = st
	}
	return st
}

func (m *Manager) snapshotKey() string {
	return fmt.Sprintf("catalog:snapshot:%d", m.shopID)
}

// Catalog returns the current catalog index, refreshing from the upstream
// when the in-memory copy is stale. On upstream failure it falls back to the
// last good snapshot (memory first, then the shared cache) and keeps
// selling; only a cold start with no snapshot anywhere fails.
func (m *Manager) Catalog(ctx context.Context) (*catalog.Index, error) {
	m.catMu.RLock()
	index, fetchedAt := m.index, m.fetchedAt
	m.catMu.RUnlock()

	if index != nil && time.Since(fetchedAt) < m.catalogTTL {
		return index, nil
	}
	return m.refreshCatalog(ctx)
}

// RefreshCatalog forces an upstream fetch regardless of snapshot age.
func (m *Manager) RefreshCatalog(ctx context.Context) (*catalog.Index, error) {
	return m.refreshCatalog(ctx)
}

func (m *Manager) refreshCatalog(ctx context.Context) (*catalog.Index, error) {
	inventory, invErr := m.upstream.FetchInventory(ctx, m.shopID)
	if invErr == nil {
		products, prodErr := m.upstream.FetchCatalog(ctx)
		if prodErr != nil {
			// Inventory alone is sellable; images degrade to the
			// placeholder.
			log.Printf("[session] WARN: catalog fetch degraded, images unavailable: %v", prodErr)
			products = nil
		}
		index := catalog.NewIndex(inventory, products)
		now := time.Now().UTC()

		m.catMu.Lock()
		m.index = index
		m.fetchedAt = now
		m.catMu.Unlock()

		snapshot := &cache.CatalogSnapshot{ShopID: m.shopID, FetchedAt: now, Inventory: inventory, Products: products}
		if err := m.cache.Set(ctx, m.snapshotKey(), snapshot, m.catalogTTL*4); err != nil {
			log.Printf("[session] WARN: catalog snapshot cache write failed: %v", err)
		}
		return index, nil
	}

	log.Printf("[session] WARN: inventory fetch failed, falling back to snapshot: %v", invErr)

	m.catMu.RLock()
	stale := m.index
	m.catMu.RUnlock()
	if stale != nil {
		return stale, nil
	}

	snapshot, ok, err := m.cache.Get(ctx, m.snapshotKey())
	if err != nil {
		log.Printf("[session] WARN: catalog snapshot cache read failed: %v", err)
	}
	if ok && snapshot != nil {
		index := catalog.NewIndex(snapshot.Inventory, snapshot.Products)
		m.catMu.Lock()
		m.index = index
		m.fetchedAt = snapshot.FetchedAt
		m.catMu.Unlock()
		return index, nil
	}

	return nil, fmt.Errorf("%w: %v", ErrCatalogUnavailable, invErr)
}

// AddItem adds one unit of the given product_stock_id to the terminal's cart.
func (m *Manager) AddItem(ctx context.Context, terminalID string, stockID int64) (*domain.CartView, error) {
	index, err := m.Catalog(ctx)
	if err != nil {
		return nil, err
	}
	item, ok := index.Lookup(stockID)
	if !ok {
		return nil, fmt.Errorf("%w: product_stock_id=%d", ErrItemNotInCatalog, stockID)
	}

	st := m.session(terminalID)
	st.mu.Lock()
	defer st.mu.Unlock()

	if st.submitting {
		return nil, ErrSubmitInFlight
	}
	st.cart.Add(item)
	return m.viewLocked(terminalID, st), nil
}

func (m *Manager) RemoveItem(_ context.Context, terminalID string, productID int64) (*domain.CartView, error) {
	st := m.session(terminalID)
	st.mu.Lock()
	defer st.mu.Unlock()

	if st.submitting {
		return nil, ErrSubmitInFlight
	}
	st.cart.Remove(productID)
	return m.viewLocked(terminalID, st), nil
}

func (m *Manager) SetQuantity(_ context.Context, terminalID string, productID int64, qty int) (*domain.CartView, error) {
	st := m.session(terminalID)
	st.mu.Lock()
	defer st.mu.Unlock()

	if st.submitting {
		return nil, ErrSubmitInFlight
	}
	if err := st.cart.SetQuantity(productID, qty); err != nil {
		return nil, err
	}
	return m.viewLocked(terminalID, st), nil
}

func (m *Manager) SetPrice(_ context.Context, terminalID string, productID int64, price decimal.Decimal) (*domain.CartView, error) {
	st := m.session(terminalID)
	st.mu.Lock()
	defer st.mu.Unlock()

	if st.submitting {
		return nil, ErrSubmitInFlight
	}
	if err := st.cart.SetPrice(productID, price); err != nil {
		return nil, err
	}
	return m.viewLocked(terminalID, st), nil
}

func (m *Manager) SetDiscount(_ context.Context, terminalID string, productID int64, percent decimal.Decimal) (*domain.CartView, error) {
	st := m.session(terminalID)
	st.mu.Lock()
	defer st.mu.Unlock()

	if st.submitting {
		return nil, ErrSubmitInFlight
	}
	if err := st.cart.SetDiscount(productID, percent); err != nil {
		return nil, err
	}
	return m.viewLocked(terminalID, st), nil
}

func (m *Manager) SetAmountPaid(_ context.Context, terminalID string, amount decimal.Decimal) (*domain.CartView, error) {
	st := m.session(terminalID)
	st.mu.Lock()
	defer st.mu.Unlock()

	if st.submitting {
		return nil, ErrSubmitInFlight
	}
	if amount.IsNegative() {
		amount = decimal.Zero
	}
	st.amountPaid = amount
	return m.viewLocked(terminalID, st), nil
}

// View returns the current cart snapshot with a freshly computed settlement.
func (m *Manager) View(_ context.Context, terminalID string) (*domain.CartView, error) {
	st := m.session(terminalID)
	st.mu.Lock()
	defer st.mu.Unlock()

	return m.viewLocked(terminalID, st), nil
}

func (m *Manager) ClearCart(_ context.Context, terminalID string) (*domain.CartView, error) {
	st := m.session(terminalID)
	st.mu.Lock()
	defer st.mu.Unlock()

	if st.submitting {
		return nil, ErrSubmitInFlight
	}
	st.cart.Clear()
	st.amountPaid = decimal.Zero
	return m.viewLocked(terminalID, st), nil
}

func (m *Manager) viewLocked(terminalID string, st *state) *domain.CartView {
	lines := st.cart.Lines()
	return &domain.CartView{
		TerminalID: terminalID,
		Lines:      lines,
		Settlement: settlement.Compute(lines, st.amountPaid),
		AmountPaid: st.amountPaid,
	}
}

// Submit validates the cart, builds the wire payload and hands it to the
// backend. Validation failures surface before any network call. On success
// the confirmed transaction is journaled for reprints and the cart is
// cleared; on any network failure the cart survives untouched so the
// operator can retry.
func (m *Manager) Submit(ctx context.Context, terminalID string, req domain.SubmitRequest) (*domain.ConfirmedTransaction, error) {
	st := m.session(terminalID)

	st.mu.Lock()
	if st.submitting {
		st.mu.Unlock()
		return nil, ErrSubmitInFlight
	}
	st.submitting = true
	lines := st.cart.Lines()
	amountPaid := st.amountPaid
	if !req.AmountPaid.IsZero() {
		amountPaid = req.AmountPaid
	}
	st.mu.Unlock()

	defer func() {
		st.mu.Lock()
		st.submitting = false
		st.mu.Unlock()
	}()

	s := settlement.Compute(lines, amountPaid)
	payload, err := order.Build(m.shopID, lines, s, req.Customer, domain.PaymentMeta{
		Method:     req.PaymentMethod,
		AmountPaid: s.AmountPaid,
	})
	if err != nil {
		return nil, err
	}

	confirmed, err := m.upstream.SubmitOrder(ctx, payload)
	if err != nil {
		return nil, err
	}

	if err := m.repo.SaveConfirmedTransaction(ctx, confirmed); err != nil {
		// The sale went through upstream; a journal miss only costs the
		// local reprint.
		log.Printf("[session] WARN: journal write failed for %s: %v", confirmed.TransactionID, err)
	}

	st.mu.Lock()
	st.cart.Clear()
	st.amountPaid = decimal.Zero
	st.mu.Unlock()

	return &confirmed, nil
}

// Hold parks the current cart so the terminal can serve the next customer.
// Empty carts cannot be held.
func (m *Manager) Hold(ctx context.Context, terminalID string, cashier string, note string) (*domain.HeldCart, error) {
	st := m.session(terminalID)
	st.mu.Lock()
	defer st.mu.Unlock()

	if st.submitting {
		return nil, ErrSubmitInFlight
	}
	if st.cart.Empty() {
		return nil, order.ErrEmptyCart
	}

	held, err := m.repo.CreateHeldCart(ctx, domain.HeldCart{
		ShopID:     m.shopID,
		TerminalID: terminalID,
		Cashier:    cashier,
		Note:       note,
		Lines:      st.cart.Lines(),
	})
	if err != nil {
		return nil, err
	}

	st.cart.Clear()
	st.amountPaid = decimal.Zero
	return held, nil
}

func (m *Manager) ListHeld(ctx context.Context, terminalID string, limit int) ([]domain.HeldCart, error) {
	return m.repo.ListHeldCarts(ctx, terminalID, limit)
}

// Resume replaces the terminal's cart with a parked one. A non-empty live
// cart blocks the resume; the operator must hold or clear it first.
func (m *Manager) Resume(ctx context.Context, terminalID string, holdID string) (*domain.CartView, error) {
	st := m.session(terminalID)
	st.mu.Lock()
	defer st.mu.Unlock()

	if st.submitting {
		return nil, ErrSubmitInFlight
	}
	if !st.cart.Empty() {
		return nil, fmt.Errorf("%w: terminal has an active cart", domain.ErrValidation)
	}

	held, err := m.repo.PopHeldCart(ctx, holdID)
	if err != nil {
		return nil, err
	}

	st.cart.Restore(held.Lines)
	st.amountPaid = decimal.Zero
	return m.viewLocked(terminalID, st), nil
}

func (m *Manager) DiscardHeld(ctx context.Context, holdID string) error {
	return m.repo.DeleteHeldCart(ctx, holdID)
}

// RecentTransactions lists the newest journal entries for the history view.
func (m *Manager) RecentTransactions(ctx context.Context, limit int) ([]domain.ConfirmedTransaction, error) {
	return m.repo.ListConfirmedTransactions(ctx, limit)
}

// Transaction fetches a confirmed transaction for (re)printing: the local
// journal first, the backend as fallback.
func (m *Manager) Transaction(ctx context.Context, transactionID string) (*domain.ConfirmedTransaction, error) {
	tx, err := m.repo.GetConfirmedTransaction(ctx, transactionID)
	if err == nil {
		return tx, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}

	confirmed, err := m.upstream.GetTransaction(ctx, m.shopID, transactionID)
	if err != nil {
		return nil, err
	}
	return &confirmed, nil
}
