// Package postgres is the production Repository, selected when DATABASE_URL
// is set. It stores held carts and the confirmed-transaction journal as
// jsonb; money columns stay inside the JSON so no numeric precision is lost
// crossing the driver.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"

	"warunglink/terminal/internal/domain"
	"warunglink/terminal/internal/store"
	"warunglink/terminal/internal/xid"
)

type Store struct {
	db *sql.DB
}

func New(ctx context.Context, databaseURL string) (*Store, error) {
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return nil, err
	}

	db.SetMaxIdleConns(4)
	db.SetMaxOpenConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 6*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) CreateHeldCart(ctx context.Context, held domain.HeldCart) (*domain.HeldCart, error) {
	if held.ID == "" {
		held.ID = xid.New("hold")
	}
	if held.HeldAt.IsZero() {
		held.HeldAt = time.Now().UTC()
	}

	linesJSON, err := json.Marshal(held.Lines)
	if err != nil {
		return nil, fmt.Errorf("marshal held cart lines: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO held_carts (id, shop_id, terminal_id, cashier, note, lines, held_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
	`, held.ID, held.ShopID, held.TerminalID, held.Cashier, held.Note, linesJSON, held.HeldAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, store.ErrConflict
		}
		return nil, err
	}

	saved := held
	return &saved, nil
}

func (s *Store) ListHeldCarts(ctx context.Context, terminalID string, limit int) ([]domain.HeldCart, error) {
	if limit < 1 || limit > 200 {
		limit = 50
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, shop_id, terminal_id, cashier, note, lines, held_at
		FROM held_carts
		WHERE ($1 = '' OR terminal_id = $1)
		ORDER BY held_at DESC, id
		LIMIT $2
	`, terminalID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	helds := make([]domain.HeldCart, 0, limit)
	for rows.Next() {
		held, err := scanHeldCart(rows)
		if err != nil {
			return nil, err
		}
		helds = append(helds, held)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return helds, nil
}

func (s *Store) PopHeldCart(ctx context.Context, holdID string) (*domain.HeldCart, error) {
	row := s.db.QueryRowContext(ctx, `
		DELETE FROM held_carts
		WHERE id = $1
		RETURNING id, shop_id, terminal_id, cashier, note, lines, held_at
	`, holdID)

	held, err := scanHeldCart(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return &held, nil
}

func (s *Store) DeleteHeldCart(ctx context.Context, holdID string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM held_carts WHERE id = $1`, holdID)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) SaveConfirmedTransaction(ctx context.Context, tx domain.ConfirmedTransaction) error {
	payload, err := json.Marshal(tx)
	if err != nil {
		return fmt.Errorf("marshal confirmed transaction: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO transaction_journal (transaction_id, shop_id, created_at, payload)
		VALUES ($1,$2,$3,$4)
		ON CONFLICT (transaction_id) DO UPDATE SET payload = EXCLUDED.payload
	`, tx.TransactionID, tx.ShopID, tx.CreatedAt, payload)
	return err
}

func (s *Store) GetConfirmedTransaction(ctx context.Context, transactionID string) (*domain.ConfirmedTransaction, error) {
	var payload []byte
	err := s.db.QueryRowContext(ctx, `
		SELECT payload FROM transaction_journal WHERE transaction_id = $1
	`, transactionID).Scan(&payload)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}

	var tx domain.ConfirmedTransaction
	if err := json.Unmarshal(payload, &tx); err != nil {
		return nil, fmt.Errorf("unmarshal journal entry %s: %w", transactionID, err)
	}
	return &tx, nil
}

func (s *Store) ListConfirmedTransactions(ctx context.Context, limit int) ([]domain.ConfirmedTransaction, error) {
	if limit < 1 || limit > 200 {
		limit = 50
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT payload
		FROM transaction_journal
		ORDER BY created_at DESC, transaction_id
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	txs := make([]domain.ConfirmedTransaction, 0, limit)
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, err
		}
		var tx domain.ConfirmedTransaction
		if err := json.Unmarshal(payload, &tx); err != nil {
			return nil, fmt.Errorf("unmarshal journal entry: %w", err)
		}
		txs = append(txs, tx)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return txs, nil
}

func (s *Store) CreateUser(ctx context.Context, user domain.UserAccount) (*domain.UserAccount, error) {
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (username, password_hash, role, active, created_at)
		VALUES (lower($1),$2,$3,$4,$5)
	`, user.Username, user.Password, user.Role, user.Active, user.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, store.ErrConflict
		}
		return nil, err
	}

	saved := user
	return &saved, nil
}

func (s *Store) GetUserByUsername(ctx context.Context, username string) (*domain.UserAccount, error) {
	var user domain.UserAccount
	err := s.db.QueryRowContext(ctx, `
		SELECT username, password_hash, role, active, created_at
		FROM users
		WHERE username = lower($1)
	`, username).Scan(&user.Username, &user.Password, &user.Role, &user.Active, &user.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return &user, nil
}

func (s *Store) ListUsers(ctx context.Context) ([]domain.UserAccount, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT username, password_hash, role, active, created_at
		FROM users
		ORDER BY username
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	users := make([]domain.UserAccount, 0, 16)
	for rows.Next() {
		var user domain.UserAccount
		if err := rows.Scan(&user.Username, &user.Password, &user.Role, &user.Active, &user.CreatedAt); err != nil {
			return nil, err
		}
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return users, nil
}

func (s *Store) UpdateUserPassword(ctx context.Context, username string, passwordHash string) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE users SET password_hash = $2 WHERE username = lower($1)
	`, username, passwordHash)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanHeldCart(row rowScanner) (domain.HeldCart, error) {
	var held domain.HeldCart
	var linesJSON []byte
	if err := row.Scan(&held.ID, &held.ShopID, &held.TerminalID, &held.Cashier, &held.Note, &linesJSON, &held.HeldAt); err != nil {
		return domain.HeldCart{}, err
	}
	if err := json.Unmarshal(linesJSON, &held.Lines); err != nil {
		return domain.HeldCart{}, fmt.Errorf("unmarshal held cart %s: %w", held.ID, err)
	}
	return held, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
