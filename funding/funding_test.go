package funding

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/gofrs/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spikeycoins/tradeengine/currency"
	"github.com/spikeycoins/tradeengine/exchange/market"
	"github.com/spikeycoins/tradeengine/exchange/order"
	"github.com/spikeycoins/tradeengine/ledger"
	"github.com/spikeycoins/tradeengine/money"
	"github.com/spikeycoins/tradeengine/position"
	"github.com/spikeycoins/tradeengine/pricing"
)

type memWallets struct {
	byKey map[string]*ledger.Wallet
}

func newMemWallets() *memWallets { return &memWallets{byKey: map[string]*ledger.Wallet{}} }

func wkey(user string, cur currency.Code) string { return user + "|" + string(cur) }

func (m *memWallets) GetForUpdate(_ context.Context, _ *sql.Tx, user string, cur currency.Code) (*ledger.Wallet, error) {
	k := wkey(user, cur)
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

func (m *memWallets) Save(_ context.Context, _ *sql.Tx, w *ledger.Wallet) error {
	cp := *w
	m.byKey[wkey(w.User, w.Currency)] = &cp
	return nil
}

type memTransactions struct{ rows []*ledger.Transaction }

func (m *memTransactions) Insert(_ context.Context, _ *sql.Tx, t *ledger.Transaction) error {
	m.rows = append(m.rows, t)
	return nil
}

type memPositions struct {
	byID map[string]*position.Position
}

func (m *memPositions) Update(_ context.Context, _ *sql.Tx, p *position.Position) error {
	m.byID[p.ID.String()] = p
	return nil
}

func (m *memPositions) ListOpenByContract(_ context.Context, _ *sql.Tx, contract currency.Pair) ([]*position.Position, error) {
	var out []*position.Position
	for _, p := range m.byID {
		if p.Contract == contract && p.IsOpen() {
			out = append(out, p)
		}
	}
	return out, nil
}

// fixedBookMid and fixedOracle pin the pricing service to deterministic
// values so the funding-rate math is exact in tests.
type fixedBookMid struct {
	mid money.Decimal
	ok  bool
}

func (f fixedBookMid) Mid(context.Context, currency.Pair) (money.Decimal, bool, error) {
	return f.mid, f.ok, nil
}

type fixedOracle struct{ prices pricing.IndexPrices }

func (f fixedOracle) FetchMetalPrices(context.Context) (pricing.IndexPrices, error) {
	return f.prices, nil
}

func d(t *testing.T, s string) money.Decimal {
	t.Helper()
	v, err := money.NewFromString(s)
	require.NoError(t, err)
	return v
}

func TestApplyPending_ChargesLongsCreditsShorts(t *testing.T) {
	ctx := context.Background()
	index := d(t, "2870.00")
	mid := d(t, "2875.74") // +0.2% over index -> clamped rate 0.002
	oracle := fixedOracle{prices: pricing.IndexPrices{Gold: index, Silver: d(t, "24")}}
	cache := pricing.NewCache(oracle, time.Hour)
	book := fixedBookMid{mid: mid, ok: true}
	pricingSvc := pricing.NewService(cache, book)

	wallets := newMemWallets()
	l := ledger.New(wallets, &memTransactions{})
	positions := &memPositions{byID: map[string]*position.Position{}}
	markets := market.NewTable(nil)

	sched := NewScheduler(l, positions, pricingSvc, markets)
	boundary := time.Date(2026, 1, 1, 8, 0, 0, 0, time.UTC)
	sched.now = func() time.Time { return boundary.Add(time.Minute) }

	longID, _ := uuid.NewV4()
	long := &position.Position{
		ID: longID, User: "alice", Contract: currency.XAUPERP, Side: order.Long,
		EntryPrice: index, Quantity: d(t, "100"), Margin: d(t, "28.50"),
		CollateralCurrency: currency.USDC, Leverage: 10, LastFundingAt: &boundary, Status: position.OpenStatus,
	}
	positions.byID[longID.String()] = long

	shortID, _ := uuid.NewV4()
	short := &position.Position{
		ID: shortID, User: "bob", Contract: currency.XAUPERP, Side: order.Short,
		EntryPrice: index, Quantity: d(t, "100"), Margin: d(t, "28.50"),
		CollateralCurrency: currency.USDC, Leverage: 10, LastFundingAt: &boundary, Status: position.OpenStatus,
	}
	positions.byID[shortID.String()] = short

	seedWallet(t, l, "alice", currency.USDC, "100")
	seedWallet(t, l, "bob", currency.USDC, "100")

	require.NoError(t, sched.Distribute(ctx, nil, currency.XAUPERP))

	aliceWallet := wallets.byKey[wkey("alice", currency.USDC)]
	bobWallet := wallets.byKey[wkey("bob", currency.USDC)]

	assert.True(t, aliceWallet.Balance.LessThan(d(t, "100")), "long should have paid funding")
	assert.True(t, bobWallet.Balance.GreaterThan(d(t, "100")), "short should have received funding")
	assert.True(t, long.LastFundingAt.After(boundary))
}

func TestApplyPending_IdempotentWithinInterval(t *testing.T) {
	ctx := context.Background()
	oracle := fixedOracle{prices: pricing.IndexPrices{Gold: d(t, "2870.00"), Silver: d(t, "24")}}
	cache := pricing.NewCache(oracle, time.Hour)
	book := fixedBookMid{mid: d(t, "2875.74"), ok: true}
	pricingSvc := pricing.NewService(cache, book)

	wallets := newMemWallets()
	l := ledger.New(wallets, &memTransactions{})
	positions := &memPositions{byID: map[string]*position.Position{}}
	markets := market.NewTable(nil)
	sched := NewScheduler(l, positions, pricingSvc, markets)

	boundary := time.Date(2026, 1, 1, 8, 0, 0, 0, time.UTC)
	sched.now = func() time.Time { return boundary.Add(time.Minute) }

	id, _ := uuid.NewV4()
	p := &position.Position{
		ID: id, User: "carol", Contract: currency.XAUPERP, Side: order.Long,
		EntryPrice: d(t, "2870"), Quantity: d(t, "100"), Margin: d(t, "28.50"),
		CollateralCurrency: currency.USDC, Leverage: 10, LastFundingAt: &boundary, Status: position.OpenStatus,
	}
	positions.byID[id.String()] = p
	seedWallet(t, l, "carol", currency.USDC, "100")

	require.NoError(t, sched.ApplyPending(ctx, nil, p))
	balanceAfterFirst := wallets.byKey[wkey("carol", currency.USDC)].Balance

	require.NoError(t, sched.ApplyPending(ctx, nil, p))
	balanceAfterSecond := wallets.byKey[wkey("carol", currency.USDC)].Balance

	assert.True(t, balanceAfterFirst.Equal(balanceAfterSecond))
}

func seedWallet(t *testing.T, l *ledger.Ledger, user string, cur currency.Code, amount string) {
	t.Helper()
	w, err := l.GetWallet(context.Background(), nil, user, cur)
	require.NoError(t, err)
	_, err = l.ApplyDelta(context.Background(), nil, w, d(t, amount), ledger.Deposit, "", "seed")
	require.NoError(t, err)
}
