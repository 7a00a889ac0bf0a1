package ledger

import (
	"context"
	"database/sql"
	"testing"

	"github.com/gofrs/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spikeycoins/tradeengine/currency"
	"github.com/spikeycoins/tradeengine/money"
	"github.com/spikeycoins/tradeengine/xerrors"
)

// memWallets and memTransactions are in-process fakes so ledger logic
// can be tested without a real database connection.
type memWallets struct {
	byKey map[string]*Wallet
}

func newMemWallets() *memWallets { return &memWallets{byKey: map[string]*Wallet{}} }

func key(user string, cur currency.Code) string { return user + "|" + string(cur) }

func (m *memWallets) GetForUpdate(_ context.Context, _ *sql.Tx, user string, cur currency.Code) (*Wallet, error) {
	k := key(user, cur)
	if w, ok := m.byKey[k]; ok {
		cp := *w
		return &cp, nil
	}
	id, _ := uuid.NewV4()
	w := &Wallet{ID: id, User: user, Currency: cur, Balance: money.Zero, Available: money.Zero}
	m.byKey[k] = w
	cp := *w
	return &cp, nil
}

func (m *memWallets) Save(_ context.Context, _ *sql.Tx, w *Wallet) error {
	cp := *w
	m.byKey[key(w.User, w.Currency)] = &cp
	return nil
}

type memTransactions struct {
	rows []*Transaction
}

func (m *memTransactions) Insert(_ context.Context, _ *sql.Tx, t *Transaction) error {
	m.rows = append(m.rows, t)
	return nil
}

func newLedger() (*Ledger, *memWallets, *memTransactions) {
	w := newMemWallets()
	tr := &memTransactions{}
	return New(w, tr), w, tr
}

func d(s string) money.Decimal {
	v, err := money.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return v
}

func TestGetWalletCreatesOnFirstAccess(t *testing.T) {
	l, _, _ := newLedger()
	w, err := l.GetWallet(context.Background(), nil, "alice", currency.USDT)
	require.NoError(t, err)
	assert.True(t, w.Balance.IsZero())
	assert.True(t, w.Available.IsZero())
}

func TestApplyDeltaDepositCredit(t *testing.T) {
	l, _, txns := newLedger()
	ctx := context.Background()
	w, _ := l.GetWallet(ctx, nil, "alice", currency.USDT)

	txn, err := l.ApplyDelta(ctx, nil, w, d("100"), Deposit, "", "initial deposit")
	require.NoError(t, err)
	assert.True(t, w.Balance.Equal(d("100")))
	assert.True(t, w.Available.Equal(d("100")))
	assert.True(t, txn.BalanceAfter.Equal(d("100")))
	assert.Len(t, txns.rows, 1)
}

func TestApplyDeltaInsufficientFunds(t *testing.T) {
	l, _, _ := newLedger()
	ctx := context.Background()
	w, _ := l.GetWallet(ctx, nil, "alice", currency.USDT)

	_, err := l.ApplyDelta(ctx, nil, w, d("-10"), Withdrawal, "", "")
	require.Error(t, err)
	assert.Equal(t, xerrors.InsufficientFunds, xerrors.KindOf(err))
}

func TestLockAndRelease(t *testing.T) {
	l, _, _ := newLedger()
	ctx := context.Background()
	w, _ := l.GetWallet(ctx, nil, "alice", currency.USDC)
	_, err := l.ApplyDelta(ctx, nil, w, d("10"), Deposit, "", "")
	require.NoError(t, err)

	require.NoError(t, l.Lock(ctx, nil, w, d("4.995")))
	assert.True(t, w.Available.Equal(d("5.005")))
	assert.True(t, w.Balance.Equal(d("10")))

	require.NoError(t, l.Release(ctx, nil, w, d("4.995")))
	assert.True(t, w.Available.Equal(d("10")))
	assert.True(t, w.Balance.Equal(d("10")))
}

func TestLockFailsWhenInsufficientAvailable(t *testing.T) {
	l, _, _ := newLedger()
	ctx := context.Background()
	w, _ := l.GetWallet(ctx, nil, "alice", currency.USDC)

	err := l.Lock(ctx, nil, w, d("1"))
	require.Error(t, err)
	assert.Equal(t, xerrors.InsufficientFunds, xerrors.KindOf(err))
}

func TestSettleLockedOnlyTouchesBalance(t *testing.T) {
	l, _, _ := newLedger()
	ctx := context.Background()
	w, _ := l.GetWallet(ctx, nil, "bob", currency.USDT)
	_, err := l.ApplyDelta(ctx, nil, w, d("10"), Deposit, "", "")
	require.NoError(t, err)
	require.NoError(t, l.Lock(ctx, nil, w, d("10")))

	_, err = l.SettleLocked(ctx, nil, w, d("-10"), TradeDebit, "order-1", "spot sell")
	require.NoError(t, err)
	assert.True(t, w.Balance.IsZero())
	assert.True(t, w.Available.IsZero())
}

func TestLedgerEntrySumEqualsBalance(t *testing.T) {
	l, _, txns := newLedger()
	ctx := context.Background()
	w, _ := l.GetWallet(ctx, nil, "carol", currency.USDT)

	_, err := l.ApplyDelta(ctx, nil, w, d("100"), Deposit, "", "")
	require.NoError(t, err)
	_, err = l.ApplyDelta(ctx, nil, w, d("-30"), Withdrawal, "", "")
	require.NoError(t, err)
	_, err = l.ApplyDelta(ctx, nil, w, d("5"), Funding, "", "")
	require.NoError(t, err)

	sum := money.Zero
	for _, txn := range txns.rows {
		sum = sum.Add(txn.Amount)
	}
	assert.True(t, sum.Equal(w.Balance), "ledger sum %s != balance %s", sum, w.Balance)
}
