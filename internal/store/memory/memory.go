// Package memory is the in-memory Repository used for dev/demo mode and in
// tests. The daemon selects it automatically when DATABASE_URL is unset.
package memory

import (
	"context"
	"log"
	"os"
	"slices"
	"strings"
	"sync"
	"time"

	"golang.org/x/crypto/bcrypt"

	"warunglink/terminal/internal/domain"
	"warunglink/terminal/internal/store"
	"warunglink/terminal/internal/xid"
)

type Store struct {
	mu               sync.RWMutex
	heldCartsByID    map[string]domain.HeldCart
	transactionsByID map[string]domain.ConfirmedTransaction
	transactionIDs   []string
	usersByUsername  map[string]domain.UserAccount
}

// seedUsers builds the initial in-memory operator accounts for dev/demo
// mode. Credentials come from SEED_ADMIN_PASSWORD and SEED_CASHIER_PASSWORD;
// when unset, hardcoded dev defaults are used with a warning. Production
// terminals run with DATABASE_URL set and never touch these.
func seedUsers() map[string]domain.UserAccount {
	adminPwd := envOr("SEED_ADMIN_PASSWORD", "admin123")
	cashierPwd := envOr("SEED_CASHIER_PASSWORD", "cashier123")
	if os.Getenv("SEED_ADMIN_PASSWORD") == "" || os.Getenv("SEED_CASHIER_PASSWORD") == "" {
		log.Println("[memory-store] WARNING: using default dev credentials. Set SEED_ADMIN_PASSWORD and SEED_CASHIER_PASSWORD to override.")
	}

	now := time.Now().UTC()
	users := map[string]domain.UserAccount{}
	for _, u := range []struct {
		username string
		password string
		role     string
	}{
		{"admin", adminPwd, "admin"},
		{"cashier", cashierPwd, "cashier"},
	} {
		hash, err := bcrypt.GenerateFromPassword([]byte(u.password), bcrypt.DefaultCost)
		if err != nil {
			log.Fatalf("[memory-store] failed to hash seed password for %s: %v", u.username, err)
		}
		users[u.username] = domain.UserAccount{
			Username:  u.username,
			Password:  string(hash),
			Role:      u.role,
			Active:    true,
			CreatedAt: now,
		}
	}
	return users
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func NewSeeded() *Store {
	return &Store{
		heldCartsByID:    make(map[string]domain.HeldCart),
		transactionsByID: make(map[string]domain.ConfirmedTransaction),
		usersByUsername:  seedUsers(),
	}
}

// NewEmpty returns a store with no seed accounts; tests create their own.
func NewEmpty() *Store {
	return &Store{
		heldCartsByID:    make(map[string]domain.HeldCart),
		transactionsByID: make(map[string]domain.ConfirmedTransaction),
		usersByUsername:  make(map[string]domain.UserAccount),
	}
}

func (s *Store) CreateHeldCart(_ context.Context, held domain.HeldCart) (*domain.HeldCart, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if held.ID == "" {
		held.ID = xid.New("hold")
	}
	if held.HeldAt.IsZero() {
		held.HeldAt = time.Now().UTC()
	}
	if _, exists := s.heldCartsByID[held.ID]; exists {
		return nil, store.ErrConflict
	}
	s.heldCartsByID[held.ID] = cloneHeldCart(held)
	saved := cloneHeldCart(held)
	return &saved, nil
}

func (s *Store) ListHeldCarts(_ context.Context, terminalID string, limit int) ([]domain.HeldCart, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.HeldCart, 0, len(s.heldCartsByID))
	for _, held := range s.heldCartsByID {
		if terminalID != "" && held.TerminalID != terminalID {
			continue
		}
		result = append(result, cloneHeldCart(held))
	}
	slices.SortFunc(result, func(a, b domain.HeldCart) int {
		if a.HeldAt.Equal(b.HeldAt) {
			return strings.Compare(a.ID, b.ID)
		}
		if a.HeldAt.After(b.HeldAt) {
			return -1
		}
		return 1
	})
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func (s *Store) PopHeldCart(_ context.Context, holdID string) (*domain.HeldCart, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	held, ok := s.heldCartsByID[holdID]
	if !ok {
		return nil, store.ErrNotFound
	}
	delete(s.heldCartsByID, holdID)
	result := cloneHeldCart(held)
	return &result, nil
}

func (s *Store) DeleteHeldCart(_ context.Context, holdID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.heldCartsByID[holdID]; !ok {
		return store.ErrNotFound
	}
	delete(s.heldCartsByID, holdID)
	return nil
}

func (s *Store) SaveConfirmedTransaction(_ context.Context, tx domain.ConfirmedTransaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.transactionsByID[tx.TransactionID]; !exists {
		s.transactionIDs = append(s.transactionIDs, tx.TransactionID)
	}
	s.transactionsByID[tx.TransactionID] = cloneConfirmed(tx)
	return nil
}

func (s *Store) GetConfirmedTransaction(_ context.Context, transactionID string) (*domain.ConfirmedTransaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	tx, ok := s.transactionsByID[transactionID]
	if !ok {
		return nil, store.ErrNotFound
	}
	result := cloneConfirmed(tx)
	return &result, nil
}

func (s *Store) ListConfirmedTransactions(_ context.Context, limit int) ([]domain.ConfirmedTransaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.ConfirmedTransaction, 0, len(s.transactionIDs))
	// Newest first; the journal appends in confirmation order.
	for i := len(s.transactionIDs) - 1; i >= 0; i-- {
		result = append(result, cloneConfirmed(s.transactionsByID[s.transactionIDs[i]]))
		if limit > 0 && len(result) >= limit {
			break
		}
	}
	return result, nil
}

func (s *Store) CreateUser(_ context.Context, user domain.UserAccount) (*domain.UserAccount, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := strings.ToLower(user.Username)
	if _, exists := s.usersByUsername[key]; exists {
		return nil, store.ErrConflict
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}
	s.usersByUsername[key] = user
	saved := user
	return &saved, nil
}

func (s *Store) GetUserByUsername(_ context.Context, username string) (*domain.UserAccount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	user, ok := s.usersByUsername[strings.ToLower(username)]
	if !ok {
		return nil, store.ErrNotFound
	}
	result := user
	return &result, nil
}

func (s *Store) ListUsers(_ context.Context) ([]domain.UserAccount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.UserAccount, 0, len(s.usersByUsername))
	for _, user := range s.usersByUsername {
		result = append(result, user)
	}
	slices.SortFunc(result, func(a, b domain.UserAccount) int {
		return strings.Compare(a.Username, b.Username)
	})
	return result, nil
}

func (s *Store) UpdateUserPassword(_ context.Context, username string, passwordHash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := strings.ToLower(username)
	user, ok := s.usersByUsername[key]
	if !ok {
		return store.ErrNotFound
	}
	user.Password = passwordHash
	s.usersByUsername[key] = user
	return nil
}

func cloneHeldCart(src domain.HeldCart) domain.HeldCart {
	result := src
	result.Lines = append([]domain.LineItem(nil), src.Lines...)
	return result
}

func cloneConfirmed(src domain.ConfirmedTransaction) domain.ConfirmedTransaction {
	result := src
	result.Items = append([]domain.ConfirmedItem(nil), src.Items...)
	return result
}
