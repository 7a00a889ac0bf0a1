// Package ledger implements per-(user, currency) wallet balances and the
// append-only transaction log that records every balance delta.
package ledger

import (
	"context"
	"database/sql"
	"time"

	"github.com/gofrs/uuid"

	"github.com/spikeycoins/tradeengine/currency"
	"github.com/spikeycoins/tradeengine/money"
	"github.com/spikeycoins/tradeengine/xerrors"
)

// WalletRepository is the storage contract a repository package
// implements to back Ledger. GetForUpdate must create a zero-balance
// wallet on first access and take a row lock (or equivalent serialized
// access) that is held until the enclosing transaction ends.
type WalletRepository interface {
	GetForUpdate(ctx context.Context, tx *sql.Tx, user string, cur currency.Code) (*Wallet, error)
	Save(ctx context.Context, tx *sql.Tx, w *Wallet) error
}

// TransactionRepository appends ledger rows.
type TransactionRepository interface {
	Insert(ctx context.Context, tx *sql.Tx, t *Transaction) error
}

// Ledger is the wallet and transaction service. It holds no state of its
// own beyond its repositories; all mutation happens against rows locked
// within the caller's transaction.
type Ledger struct {
	wallets      WalletRepository
	transactions TransactionRepository
	now          func() time.Time
}

// New constructs a Ledger over the given repositories.
func New(wallets WalletRepository, transactions TransactionRepository) *Ledger {
	return &Ledger{wallets: wallets, transactions: transactions, now: time.Now}
}

// GetWallet returns the caller's wallet for (user, currency), creating
// it with zero balances on first access. The returned wallet's row is
// locked for the duration of tx.
func (l *Ledger) GetWallet(ctx context.Context, tx *sql.Tx, user string, cur currency.Code) (*Wallet, error) {
	w, err := l.wallets.GetForUpdate(ctx, tx, user, cur)
	if err != nil {
		return nil, xerrors.Wrap(xerrors.Internal, err, "load wallet %s/%s", user, cur)
	}
	return w, nil
}

// Lock moves amount from Available into a locked state by decrementing
// Available only; Balance is untouched. It fails with InsufficientFunds
// if Available is below amount.
func (l *Ledger) Lock(ctx context.Context, tx *sql.Tx, w *Wallet, amount money.Decimal) error {
	if amount.IsNegative() {
		return xerrors.New(xerrors.Validation, "lock amount must not be negative")
	}
	if w.Available.LessThan(amount) {
		return xerrors.New(xerrors.InsufficientFunds, "wallet %s/%s: available %s < requested %s", w.User, w.Currency, w.Available, amount)
	}
	w.Available = w.Available.Sub(amount)
	if err := l.wallets.Save(ctx, tx, w); err != nil {
		return xerrors.Wrap(xerrors.Internal, err, "persist lock on wallet %s/%s", w.User, w.Currency)
	}
	return nil
}

// Release returns a previously locked amount to Available. Balance is
// untouched.
func (l *Ledger) Release(ctx context.Context, tx *sql.Tx, w *Wallet, amount money.Decimal) error {
	if amount.IsNegative() {
		return xerrors.New(xerrors.Validation, "release amount must not be negative")
	}
	w.Available = w.Available.Add(amount)
	if w.Available.GreaterThan(w.Balance) {
		return xerrors.New(xerrors.Internal, "wallet %s/%s: release would push available %s above balance %s", w.User, w.Currency, w.Available, w.Balance)
	}
	if err := l.wallets.Save(ctx, tx, w); err != nil {
		return xerrors.Wrap(xerrors.Internal, err, "persist release on wallet %s/%s", w.User, w.Currency)
	}
	return nil
}

// ApplyDelta mutates Balance by amount (negative debits, positive
// credits) and, since this delta has not already been reflected in
// Available via an earlier Lock, mutates Available by the same amount.
// Use this for deposits, withdrawals, liquidation credits, funding
// transfers, and any fee or trade leg that was never pre-locked (e.g.
// market-order settlement). It appends a Transaction with
// BalanceAfter = the resulting Balance.
func (l *Ledger) ApplyDelta(ctx context.Context, tx *sql.Tx, w *Wallet, amount money.Decimal, kind Kind, reference, description string) (*Transaction, error) {
	if amount.IsNegative() && w.Available.LessThan(amount.Abs()) {
		return nil, xerrors.New(xerrors.InsufficientFunds, "wallet %s/%s: available %s < debit %s", w.User, w.Currency, w.Available, amount.Abs())
	}
	w.Balance = w.Balance.Add(amount)
	w.Available = w.Available.Add(amount)
	return l.commit(ctx, tx, w, amount, kind, reference, description)
}

// SettleLocked mutates Balance only by amount; Available is left
// untouched because it was already reduced by an earlier Lock call for
// this same amount (the common case is a limit order's pre-locked
// quantity or margin being consumed by a fill). Credits that arrive
// this way (e.g. the quote leg a spot buyer receives) still only touch
// Balance here if the caller intends a further explicit credit of
// Available; in practice credits route through ApplyDelta since the
// receiving leg was never locked. SettleLocked exists specifically for
// debiting an amount that previously went through Lock.
func (l *Ledger) SettleLocked(ctx context.Context, tx *sql.Tx, w *Wallet, amount money.Decimal, kind Kind, reference, description string) (*Transaction, error) {
	if amount.IsNegative() && w.Balance.Add(amount).IsNegative() {
		return nil, xerrors.New(xerrors.Internal, "wallet %s/%s: settling locked debit %s would drive balance negative", w.User, w.Currency, amount.Abs())
	}
	w.Balance = w.Balance.Add(amount)
	if w.Available.GreaterThan(w.Balance) {
		return nil, xerrors.New(xerrors.Internal, "wallet %s/%s: settlement would leave available %s above balance %s", w.User, w.Currency, w.Available, w.Balance)
	}
	return l.commit(ctx, tx, w, amount, kind, reference, description)
}

func (l *Ledger) commit(ctx context.Context, tx *sql.Tx, w *Wallet, amount money.Decimal, kind Kind, reference, description string) (*Transaction, error) {
	if w.Available.IsNegative() || w.Balance.IsNegative() || w.Available.GreaterThan(w.Balance) {
		return nil, xerrors.New(xerrors.Internal, "wallet %s/%s: invariant violated after delta (balance=%s available=%s)", w.User, w.Currency, w.Balance, w.Available)
	}
	if err := l.wallets.Save(ctx, tx, w); err != nil {
		return nil, xerrors.Wrap(xerrors.Internal, err, "persist wallet %s/%s", w.User, w.Currency)
	}

	id, err := uuid.NewV4()
	if err != nil {
		return nil, xerrors.Wrap(xerrors.Internal, err, "generate transaction id")
	}
	txn := &Transaction{
		ID:           id,
		WalletID:     w.ID,
		Amount:       amount,
		BalanceAfter: w.Balance,
		Kind:         kind,
		Reference:    reference,
		Description:  description,
		CreatedAt:    l.now(),
	}
	if err := l.transactions.Insert(ctx, tx, txn); err != nil {
		return nil, xerrors.Wrap(xerrors.Internal, err, "append ledger entry for wallet %s/%s", w.User, w.Currency)
	}
	return txn, nil
}
