// Package margin implements the notional, margin, liquidation-price, and
// unrealized-PnL formulas shared by settlement and the liquidation
// sweep.
package margin

import (
	"github.com/spikeycoins/tradeengine/exchange/order"
	"github.com/spikeycoins/tradeengine/money"
)

// Notional returns the position value in quote currency:
// qty * contract_size * price.
func Notional(qty, contractSize, price money.Decimal) money.Decimal {
	return qty.Mul(contractSize).Mul(price)
}

// InitialMargin returns the collateral required to open a position of
// the given notional at leverage.
func InitialMargin(notional money.Decimal, leverage int) money.Decimal {
	return notional.Div(money.New(int64(leverage), 0))
}

// MaintenanceMargin returns the collateral that must remain for the
// position to stay open, evaluated at the mark price.
func MaintenanceMargin(qty, contractSize, mark, maintenanceRate money.Decimal) money.Decimal {
	return Notional(qty, contractSize, mark).Mul(maintenanceRate)
}

// LiquidationPrice returns the mark at which a position's margin plus
// unrealized PnL falls to its maintenance requirement.
//
//	long:  entry * (1 - (1/leverage - mmr))
//	short: entry * (1 + (1/leverage - mmr))
func LiquidationPrice(side order.PositionSide, entry money.Decimal, leverage int, maintenanceRate money.Decimal) money.Decimal {
	one := money.New(1, 0)
	inverseLeverage := one.Div(money.New(int64(leverage), 0))
	spread := inverseLeverage.Sub(maintenanceRate)
	if side == order.Long {
		return entry.Mul(one.Sub(spread))
	}
	return entry.Mul(one.Add(spread))
}

// UnrealizedPnL returns (mark - entry) * qty * contract_size for a long,
// negated for a short.
func UnrealizedPnL(side order.PositionSide, entry, mark, qty, contractSize money.Decimal) money.Decimal {
	diff := mark.Sub(entry)
	pnl := diff.Mul(qty).Mul(contractSize)
	if side == order.Short {
		return pnl.Neg()
	}
	return pnl
}

// IsLiquidatable reports whether margin + unrealizedPnL has fallen
// below maintenance.
func IsLiquidatable(marginAmount, unrealizedPnL, maintenance money.Decimal) bool {
	return marginAmount.Add(unrealizedPnL).LessThan(maintenance)
}

// MarginRatio is a dimensionless health indicator: (margin + uPnL) /
// maintenance. A ratio below 1 means the position is liquidatable; it
// is used for display, not for the liquidation decision itself (use
// IsLiquidatable for that, since it is well-defined even when
// maintenance is zero).
func MarginRatio(marginAmount, unrealizedPnL, maintenance money.Decimal) (money.Decimal, bool) {
	if maintenance.IsZero() {
		return money.Zero, false
	}
	return marginAmount.Add(unrealizedPnL).Div(maintenance), true
}
