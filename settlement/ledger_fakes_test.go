package settlement

import (
	"context"
	"database/sql"

	"github.com/gofrs/uuid"

	"github.com/spikeycoins/tradeengine/currency"
	"github.com/spikeycoins/tradeengine/ledger"
	"github.com/spikeycoins/tradeengine/money"
)

// ledgerMemWallets and ledgerMemTransactions are in-process fakes of
// ledger.WalletRepository/TransactionRepository, mirroring the ledger
// package's own test fakes so settlement can be exercised without a
// database connection.
type ledgerMemWallets struct {
	byKey map[string]*ledger.Wallet
}

func newLedgerMemWallets() *ledgerMemWallets {
	return &ledgerMemWallets{byKey: map[string]*ledger.Wallet{}}
}

func walletKey(user string, cur currency.Code) string { return user + "|" + string(cur) }

func (m *ledgerMemWallets) GetForUpdate(_ context.Context, _ *sql.Tx, user string, cur currency.Code) (*ledger.Wallet, error) {
	k := walletKey(user, cur)
	if w, ok := m.byKey[k]; ok {
		cp := *w
		return &cp, nil
	}
	id, _ := uuid.NewV4()
	w := &ledger.Wallet{ID: id, User: user, Currency: cur, Balance: money.Zero, Available: money.Zero}
	m.byKey[k] = w
	cp := *w
	return &cp, nil
}

func (m *ledgerMemWallets) Save(_ context.Context, _ *sql.Tx, w *ledger.Wallet) error {
	cp := *w
	m.byKey[walletKey(w.User, w.Currency)] = &cp
	return nil
}

type ledgerMemTransactions struct {
	rows []*ledger.Transaction
}

func (m *ledgerMemTransactions) Insert(_ context.Context, _ *sql.Tx, t *ledger.Transaction) error {
	m.rows = append(m.rows, t)
	return nil
}
