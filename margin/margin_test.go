package margin

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spikeycoins/tradeengine/exchange/order"
	"github.com/spikeycoins/tradeengine/money"
)

func d(s string) money.Decimal {
	v, err := money.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return v
}

func TestNotionalAndInitialMargin(t *testing.T) {
	notional := Notional(d("100"), d("0.001"), d("2850.00"))
	assert.True(t, notional.Equal(d("285.00")), "got %s", notional)

	im := InitialMargin(notional, 10)
	assert.True(t, im.Equal(d("28.50")), "got %s", im)
}

func TestLiquidationPriceLong(t *testing.T) {
	liq := LiquidationPrice(order.Long, d("2850.00"), 10, d("0.01"))
	assert.True(t, liq.Equal(d("2593.50")), "got %s", liq)
}

func TestLiquidationPriceShort(t *testing.T) {
	liq := LiquidationPrice(order.Short, d("2850.00"), 10, d("0.01"))
	assert.True(t, liq.Equal(d("3106.50")), "got %s", liq)
}

func TestUnrealizedPnL(t *testing.T) {
	longPnl := UnrealizedPnL(order.Long, d("2850"), d("2580"), d("100"), d("0.001"))
	assert.True(t, longPnl.Equal(d("-27.00")), "got %s", longPnl)

	shortPnl := UnrealizedPnL(order.Short, d("2850"), d("2580"), d("100"), d("0.001"))
	assert.True(t, shortPnl.Equal(d("27.00")), "got %s", shortPnl)
}

func TestIsLiquidatable(t *testing.T) {
	maintenance := MaintenanceMargin(d("100"), d("0.001"), d("2580.00"), d("0.01"))
	require.True(t, maintenance.Equal(d("2.58")), "got %s", maintenance)

	upnl := UnrealizedPnL(order.Long, d("2850"), d("2580"), d("100"), d("0.001"))
	assert.True(t, IsLiquidatable(d("28.50"), upnl, maintenance))
	assert.False(t, IsLiquidatable(d("40.00"), upnl, maintenance))
}

func TestMarginRatio(t *testing.T) {
	ratio, ok := MarginRatio(d("28.50"), d("-27.00"), d("2.58"))
	require.True(t, ok)
	assert.True(t, ratio.LessThan(d("1")))

	_, ok = MarginRatio(d("1"), d("0"), money.Zero)
	assert.False(t, ok)
}
