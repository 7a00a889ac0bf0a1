package liquidation

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

type memWallets struct{ byKey map[string]*ledger.Wallet }

func newMemWallets() *memWallets { return &memWallets{byKey: map[string]*ledger.Wallet{}} }

func walletKey(user string, cur currency.Code) string { return user + "|" + string(cur) }

func (m *memWallets) GetForUpdate(_ context.Context, _ *sql.Tx, user string, cur currency.Code) (*ledger.Wallet, error) {
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

func (m *memWallets) Save(_ context.Context, _ *sql.Tx, w *ledger.Wallet) error {
	cp := *w
	m.byKey[walletKey(w.User, w.Currency)] = &cp
	return nil
}

type memTransactions struct{ rows []*ledger.Transaction }

func (m *memTransactions) Insert(_ context.Context, _ *sql.Tx, t *ledger.Transaction) error {
	m.rows = append(m.rows, t)
	return nil
}

type memPositions struct{ byID map[string]*position.Position }

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

func seedWallet(t *testing.T, l *ledger.Ledger, user string, cur currency.Code, amount string) {
	t.Helper()
	w, err := l.GetWallet(context.Background(), nil, user, cur)
	require.NoError(t, err)
	_, err = l.ApplyDelta(context.Background(), nil, w, d(t, amount), ledger.Deposit, "", "seed")
	require.NoError(t, err)
}

// TestCheck_LiquidatesUnderwaterLong mirrors the worked example: a long
// entered at 2850 with qty 100, margin 28.50 and mmr 0.01 is liquidated
// once the mark falls to 2580.
func TestCheck_LiquidatesUnderwaterLong(t *testing.T) {
	ctx := context.Background()
	mark := d(t, "2580.00")
	oracle := fixedOracle{prices: pricing.IndexPrices{Gold: mark, Silver: d(t, "24")}}
	cache := pricing.NewCache(oracle, time.Hour)
	book := fixedBookMid{ok: false} // mark falls back to index alone when book has no mid
	pricingSvc := pricing.NewService(cache, book)

	wallets := newMemWallets()
	l := ledger.New(wallets, &memTransactions{})
	positions := &memPositions{byID: map[string]*position.Position{}}
	markets := market.NewTable(nil)

	id, _ := uuid.NewV4()
	p := &position.Position{
		ID: id, User: "dave", Contract: currency.XAUPERP, Side: order.Long,
		EntryPrice: d(t, "2850.00"), Quantity: d(t, "100"), Margin: d(t, "28.50"),
		CollateralCurrency: currency.USDC, Leverage: 10, Status: position.OpenStatus,
	}
	positions.byID[id.String()] = p
	seedWallet(t, l, "dave", currency.USDC, "0")

	sweeper := NewSweeper(l, positions, pricingSvc, markets)
	results, err := sweeper.Check(ctx, nil, currency.XAUPERP)
	require.NoError(t, err)
	require.Len(t, results, 1)

	assert.Equal(t, "-27.00000000", results[0].RealizedPnL.String())
	assert.Equal(t, "1.50000000", results[0].Credited.String())

	assert.Equal(t, position.Liquidated, p.Status)
	assert.True(t, p.Quantity.IsZero())
	assert.True(t, p.Margin.IsZero())
	assert.Equal(t, "-27.00000000", p.RealizedPnL.String())

	wallet := wallets.byKey[walletKey("dave", currency.USDC)]
	assert.Equal(t, "1.50000000", wallet.Balance.String())
}

func TestCheck_HealthyPositionUntouched(t *testing.T) {
	ctx := context.Background()
	mark := d(t, "2850.00")
	oracle := fixedOracle{prices: pricing.IndexPrices{Gold: mark, Silver: d(t, "24")}}
	cache := pricing.NewCache(oracle, time.Hour)
	book := fixedBookMid{ok: false}
	pricingSvc := pricing.NewService(cache, book)

	wallets := newMemWallets()
	l := ledger.New(wallets, &memTransactions{})
	positions := &memPositions{byID: map[string]*position.Position{}}
	markets := market.NewTable(nil)

	id, _ := uuid.NewV4()
	p := &position.Position{
		ID: id, User: "erin", Contract: currency.XAUPERP, Side: order.Long,
		EntryPrice: d(t, "2850.00"), Quantity: d(t, "100"), Margin: d(t, "28.50"),
		CollateralCurrency: currency.USDC, Leverage: 10, Status: position.OpenStatus,
	}
	positions.byID[id.String()] = p

	sweeper := NewSweeper(l, positions, pricingSvc, markets)
	results, err := sweeper.Check(ctx, nil, currency.XAUPERP)
	require.NoError(t, err)
	assert.Empty(t, results)
	assert.Equal(t, position.OpenStatus, p.Status)
}
