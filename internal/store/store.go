// Package store defines terminal-local persistence: held carts parked at the
// counter, a journal of backend-confirmed transactions for reprints, and
// operator accounts. Platform business data (products, stock, sales ledger)
// lives on the shop-platform backend, never here.
package store

import (
	"context"
	"errors"

	"warunglink/terminal/internal/domain"
)

var (
	ErrNotFound = errors.New("not found")
	ErrConflict = errors.New("conflict")
)

type Repository interface {
	CreateHeldCart(ctx context.Context, held domain.HeldCart) (*domain.HeldCart, error)
	ListHeldCarts(ctx context.Context, terminalID string, limit int) ([]domain.HeldCart, error)
	PopHeldCart(ctx context.Context, holdID string) (*domain.HeldCart, error)
	DeleteHeldCart(ctx context.Context, holdID string) error

	SaveConfirmedTransaction(ctx context.Context, tx domain.ConfirmedTransaction) error
	GetConfirmedTransaction(ctx context.Context, transactionID string) (*domain.ConfirmedTransaction, error)
	ListConfirmedTransactions(ctx context.Context, limit int) ([]domain.ConfirmedTransaction, error)

	CreateUser(ctx context.Context, user domain.UserAccount) (*domain.UserAccount, error)
	GetUserByUsername(ctx context.Context, username string) (*domain.UserAccount, error)
	ListUsers(ctx context.Context) ([]domain.UserAccount, error)
	UpdateUserPassword(ctx context.Context, username string, passwordHash string) error
}
