// Package wallet persists ledger.Wallet rows. It implements
// ledger.WalletRepository.
package wallet

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/gofrs/uuid"

	"github.com/spikeycoins/tradeengine/currency"
	"github.com/spikeycoins/tradeengine/database/repository"
	"github.com/spikeycoins/tradeengine/ledger"
	"github.com/spikeycoins/tradeengine/money"
)

// Repository implements ledger.WalletRepository over database/sql.
type Repository struct{}

// New constructs a Repository.
func New() *Repository { return &Repository{} }

// GetForUpdate returns the wallet for (user, currency), creating a
// zero-balance row on first access. The lookup takes a row lock for
// the duration of tx (repository.LockClause) so concurrent
// transactions touching the same wallet serialize per spec §5, before
// this or any other row is mutated.
func (r *Repository) GetForUpdate(ctx context.Context, tx *sql.Tx, user string, cur currency.Code) (*ledger.Wallet, error) {
	row := tx.QueryRowContext(ctx, lockQuery(), user, string(cur))
	w, err := scanWallet(row)
	if err == nil {
		return w, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}

	id, err := uuid.NewV4()
	if err != nil {
		return nil, err
	}
	w = &ledger.Wallet{ID: id, User: user, Currency: cur, Balance: money.Zero, Available: money.Zero}
	_, err = tx.ExecContext(ctx,
		`INSERT INTO wallets (id, user_id, currency, balance, available) VALUES (?, ?, ?, ?, ?)`,
		w.ID.String(), w.User, string(w.Currency), w.Balance.String(), w.Available.String())
	if err != nil {
		return nil, fmt.Errorf("wallet: insert: %w", err)
	}
	return w, nil
}

// Save persists the current Balance/Available of w.
func (r *Repository) Save(ctx context.Context, tx *sql.Tx, w *ledger.Wallet) error {
	_, err := tx.ExecContext(ctx,
		`UPDATE wallets SET balance = ?, available = ? WHERE id = ?`,
		w.Balance.String(), w.Available.String(), w.ID.String())
	if err != nil {
		return fmt.Errorf("wallet: update: %w", err)
	}
	return nil
}

func lockQuery() string {
	return `SELECT id, user_id, currency, balance, available FROM wallets WHERE user_id = ? AND currency = ?` + repository.LockClause()
}

func scanWallet(row *sql.Row) (*ledger.Wallet, error) {
	var idStr, user, cur, balance, available string
	if err := row.Scan(&idStr, &user, &cur, &balance, &available); err != nil {
		return nil, err
	}
	id, err := uuid.FromString(idStr)
	if err != nil {
		return nil, err
	}
	balDec, err := money.NewFromString(balance)
	if err != nil {
		return nil, err
	}
	availDec, err := money.NewFromString(available)
	if err != nil {
		return nil, err
	}
	return &ledger.Wallet{
		ID:        id,
		User:      user,
		Currency:  currency.NewCode(cur),
		Balance:   balDec,
		Available: availDec,
	}, nil
}

// Get returns the wallet for (user, currency) using db, which may be a
// plain *sql.DB for a read outside any transaction (e.g. an API read
// path); it returns sql.ErrNoRows if the wallet has never been created,
// unlike GetForUpdate, which creates on first access.
func (r *Repository) Get(ctx context.Context, db interface {
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}, user string, cur currency.Code) (*ledger.Wallet, error) {
	row := db.QueryRowContext(ctx,
		`SELECT id, user_id, currency, balance, available FROM wallets WHERE user_id = ? AND currency = ?`,
		user, string(cur))
	return scanWallet(row)
}
