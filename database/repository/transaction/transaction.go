// Package transaction persists ledger.Transaction rows. It implements
// ledger.TransactionRepository.
package transaction

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/gofrs/uuid"

	"github.com/spikeycoins/tradeengine/ledger"
	"github.com/spikeycoins/tradeengine/money"
)

// Repository implements ledger.TransactionRepository over database/sql.
type Repository struct{}

// New constructs a Repository.
func New() *Repository { return &Repository{} }

// Insert appends t. Transaction rows are never updated after insertion.
func (r *Repository) Insert(ctx context.Context, tx *sql.Tx, t *ledger.Transaction) error {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO transactions (id, wallet_id, amount, balance_after, kind, reference, description, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID.String(), t.WalletID.String(), t.Amount.String(), t.BalanceAfter.String(),
		string(t.Kind), t.Reference, t.Description, t.CreatedAt)
	if err != nil {
		return fmt.Errorf("transaction: insert: %w", err)
	}
	return nil
}

// queryer is satisfied by *sql.DB and *sql.Tx.
type queryer interface {
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
}

// History returns a page of a wallet's ledger entries, newest first.
func History(ctx context.Context, db queryer, walletID uuid.UUID, limit int) ([]*ledger.Transaction, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT id, wallet_id, amount, balance_after, kind, reference, description, created_at
		 FROM transactions WHERE wallet_id = ? ORDER BY created_at DESC LIMIT ?`,
		walletID.String(), limit)
	if err != nil {
		return nil, fmt.Errorf("transaction: history query: %w", err)
	}
	defer rows.Close()

	var out []*ledger.Transaction
	for rows.Next() {
		t, err := scanRow(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanRow(s scanner) (*ledger.Transaction, error) {
	var idStr, walletIDStr, amount, balanceAfter, kind string
	var reference, description sql.NullString
	var createdAt sql.NullTime
	if err := s.Scan(&idStr, &walletIDStr, &amount, &balanceAfter, &kind, &reference, &description, &createdAt); err != nil {
		return nil, err
	}
	id, err := uuid.FromString(idStr)
	if err != nil {
		return nil, err
	}
	walletID, err := uuid.FromString(walletIDStr)
	if err != nil {
		return nil, err
	}
	amt, err := money.NewFromString(amount)
	if err != nil {
		return nil, err
	}
	after, err := money.NewFromString(balanceAfter)
	if err != nil {
		return nil, err
	}
	return &ledger.Transaction{
		ID:           id,
		WalletID:     walletID,
		Amount:       amt,
		BalanceAfter: after,
		Kind:         ledger.Kind(kind),
		Reference:    reference.String,
		Description:  description.String,
		CreatedAt:    createdAt.Time,
	}, nil
}
