package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"warunglink/terminal/internal/domain"
	"warunglink/terminal/internal/store"
)

func TestHeldCartsSortedNewestFirst(t *testing.T) {
	s := NewEmpty()
	ctx := context.Background()

	older, err := s.CreateHeldCart(ctx, domain.HeldCart{TerminalID: "till-1", HeldAt: time.Now().Add(-time.Hour)})
	if err != nil {
		t.Fatalf("create older: %v", err)
	}
	newer, err := s.CreateHeldCart(ctx, domain.HeldCart{TerminalID: "till-1", HeldAt: time.Now()})
	if err != nil {
		t.Fatalf("create newer: %v", err)
	}

	helds, err := s.ListHeldCarts(ctx, "till-1", 10)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(helds) != 2 || helds[0].ID != newer.ID || helds[1].ID != older.ID {
		t.Fatalf("unexpected order: %+v", helds)
	}

	// Filter by terminal.
	helds, err = s.ListHeldCarts(ctx, "till-2", 10)
	if err != nil {
		t.Fatalf("list till-2: %v", err)
	}
	if len(helds) != 0 {
		t.Fatalf("expected no held carts for till-2, got %d", len(helds))
	}
}

func TestPopHeldCartConsumes(t *testing.T) {
	s := NewEmpty()
	ctx := context.Background()

	held, err := s.CreateHeldCart(ctx, domain.HeldCart{TerminalID: "till-1"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	if _, err := s.PopHeldCart(ctx, held.ID); err != nil {
		t.Fatalf("pop: %v", err)
	}
	if _, err := s.PopHeldCart(ctx, held.ID); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound on second pop, got %v", err)
	}
}

func TestJournalListNewestFirst(t *testing.T) {
	s := NewEmpty()
	ctx := context.Background()

	for _, id := range []string{"tx-1", "tx-2", "tx-3"} {
		err := s.SaveConfirmedTransaction(ctx, domain.ConfirmedTransaction{
			TransactionID: id,
			GrandTotal:    decimal.NewNullDecimal(decimal.NewFromInt(100)),
		})
		if err != nil {
			t.Fatalf("save %s: %v", id, err)
		}
	}

	txs, err := s.ListConfirmedTransactions(ctx, 2)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(txs) != 2 || txs[0].TransactionID != "tx-3" || txs[1].TransactionID != "tx-2" {
		t.Fatalf("unexpected journal order: %+v", txs)
	}
}

func TestJournalSaveIsIdempotentPerID(t *testing.T) {
	s := NewEmpty()
	ctx := context.Background()

	tx := domain.ConfirmedTransaction{TransactionID: "tx-1"}
	if err := s.SaveConfirmedTransaction(ctx, tx); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := s.SaveConfirmedTransaction(ctx, tx); err != nil {
		t.Fatalf("resave: %v", err)
	}

	txs, err := s.ListConfirmedTransactions(ctx, 10)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(txs) != 1 {
		t.Fatalf("resaving the same id must not duplicate, got %d entries", len(txs))
	}
}

func TestCreateUserConflict(t *testing.T) {
	s := NewEmpty()
	ctx := context.Background()

	if _, err := s.CreateUser(ctx, domain.UserAccount{Username: "Nasima", Role: "cashier", Active: true}); err != nil {
		t.Fatalf("create: %v", err)
	}
	// Usernames are case-insensitive.
	if _, err := s.CreateUser(ctx, domain.UserAccount{Username: "nasima", Role: "cashier", Active: true}); !errors.Is(err, store.ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}

	user, err := s.GetUserByUsername(ctx, "NASIMA")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if user.Role != "cashier" {
		t.Fatalf("unexpected user: %+v", user)
	}
}
