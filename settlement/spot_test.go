package settlement

import (
	"context"
	"testing"

	"github.com/gofrs/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spikeycoins/tradeengine/currency"
	"github.com/spikeycoins/tradeengine/exchange/order"
	"github.com/spikeycoins/tradeengine/ledger"
	"github.com/spikeycoins/tradeengine/matching"
	"github.com/spikeycoins/tradeengine/money"
)

func mustID(t *testing.T) uuid.UUID {
	t.Helper()
	id, err := uuid.NewV4()
	require.NoError(t, err)
	return id
}

func mustMoney(t *testing.T, s string) money.Decimal {
	t.Helper()
	d, err := money.NewFromString(s)
	require.NoError(t, err)
	return d
}

func seedWallet(t *testing.T, l *ledger.Ledger, user string, cur currency.Code, amount string) {
	t.Helper()
	w, err := l.GetWallet(context.Background(), nil, user, cur)
	require.NoError(t, err)
	_, err = l.ApplyDelta(context.Background(), nil, w, mustMoney(t, amount), ledger.Deposit, "", "seed")
	require.NoError(t, err)
}

func TestSpot_FeeChargedOnPaidLeg(t *testing.T) {
	l, wallets, _ := newTestLedger()
	ctx := context.Background()

	seedWallet(t, l, "userA", currency.USDT, "100")
	seedWallet(t, l, "userB", currency.USDC, "100")

	maker := &order.Order{ID: mustID(t), User: "userA", Pair: currency.USDTUSDC, Side: order.Sell, Type: order.Limit}
	taker := &order.Order{ID: mustID(t), User: "userB", Pair: currency.USDTUSDC, Side: order.Buy, Type: order.Limit}
	fill := matching.Fill{
		MakerOrderID: maker.ID.String(),
		MakerUser:    "userA",
		Price:        mustMoney(t, "1.0010"),
		Quantity:     mustMoney(t, "10"),
		MakerFee:     mustMoney(t, "0.00100100"),
		TakerFee:     mustMoney(t, "0.00300300"),
	}

	// admission would have locked the paid legs before matching
	makerWallet, err := l.GetWallet(ctx, nil, "userA", currency.USDT)
	require.NoError(t, err)
	require.NoError(t, l.Lock(ctx, nil, makerWallet, mustMoney(t, "10")))
	takerWallet, err := l.GetWallet(ctx, nil, "userB", currency.USDC)
	require.NoError(t, err)
	require.NoError(t, l.Lock(ctx, nil, takerWallet, mustMoney(t, "10.0100")))

	require.NoError(t, Spot(ctx, nil, l, maker, taker, fill))

	// buyer USDC: 100 - quote(10.01) - taker fee(0.003003)
	buyerUSDC := wallets.byKey[walletKey("userB", currency.USDC)]
	assert.Equal(t, "89.98699700", buyerUSDC.Balance.String())

	buyerUSDT := wallets.byKey[walletKey("userB", currency.USDT)]
	assert.Equal(t, "10.00000000", buyerUSDT.Balance.String())

	// seller USDT: 100 - qty(10) - maker fee(0.001001)
	sellerUSDT := wallets.byKey[walletKey("userA", currency.USDT)]
	assert.Equal(t, "89.99899900", sellerUSDT.Balance.String())

	sellerUSDC := wallets.byKey[walletKey("userA", currency.USDC)]
	assert.Equal(t, "10.01000000", sellerUSDC.Balance.String())
}

func newTestLedger() (*ledger.Ledger, *ledgerMemWallets, *ledgerMemTransactions) {
	w := newLedgerMemWallets()
	tr := &ledgerMemTransactions{}
	return ledger.New(w, tr), w, tr
}
