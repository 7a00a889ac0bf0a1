// Package settlement executes the wallet and position mutations a fill
// produces: direct fund transfer for the spot market, position
// open/average/reduce/close for the futures markets.
package settlement

import (
	"context"
	"database/sql"

	"github.com/spikeycoins/tradeengine/currency"
	"github.com/spikeycoins/tradeengine/exchange/order"
	"github.com/spikeycoins/tradeengine/ledger"
	"github.com/spikeycoins/tradeengine/matching"
	"github.com/spikeycoins/tradeengine/money"
)

// Spot settles one USDT-USDC fill. Fee convention: each side's fee is
// taken from the leg that side is paying (debiting), not the leg it
// receives — a buyer's fee comes out of the USDC they spend, a seller's
// out of the USDT they spend. This keeps the credited amount an exact
// qty or qty*price with no implicit tax on the asset being acquired.
func Spot(ctx context.Context, tx *sql.Tx, l *ledger.Ledger, maker, taker *order.Order, fill matching.Fill) error {
	quoteAmount := fill.Quantity.Mul(fill.Price)

	var buyerUser, sellerUser string
	var buyerLocked, sellerLocked bool
	var buyerFee, sellerFee money.Decimal
	if taker.Side == order.Buy {
		buyerUser, sellerUser = taker.User, maker.User
		buyerLocked, sellerLocked = taker.Type == order.Limit, true // maker always rests as a limit order
		buyerFee, sellerFee = fill.TakerFee, fill.MakerFee
	} else {
		buyerUser, sellerUser = maker.User, taker.User
		buyerLocked, sellerLocked = true, taker.Type == order.Limit
		buyerFee, sellerFee = fill.MakerFee, fill.TakerFee
	}

	reference := taker.ID.String()

	buyerUSDC, err := l.GetWallet(ctx, tx, buyerUser, currency.USDC)
	if err != nil {
		return err
	}
	if err := debitPaidLeg(ctx, tx, l, buyerUSDC, quoteAmount, buyerLocked, ledger.TradeDebit, reference, "spot buy: quote paid"); err != nil {
		return err
	}
	if _, err := l.ApplyDelta(ctx, tx, buyerUSDC, buyerFee.Neg(), ledger.Fee, reference, "spot buy: fee on paid leg"); err != nil {
		return err
	}

	buyerUSDT, err := l.GetWallet(ctx, tx, buyerUser, currency.USDT)
	if err != nil {
		return err
	}
	if _, err := l.ApplyDelta(ctx, tx, buyerUSDT, fill.Quantity, ledger.TradeCredit, reference, "spot buy: base received"); err != nil {
		return err
	}

	sellerUSDT, err := l.GetWallet(ctx, tx, sellerUser, currency.USDT)
	if err != nil {
		return err
	}
	if err := debitPaidLeg(ctx, tx, l, sellerUSDT, fill.Quantity, sellerLocked, ledger.TradeDebit, reference, "spot sell: base paid"); err != nil {
		return err
	}
	if _, err := l.ApplyDelta(ctx, tx, sellerUSDT, sellerFee.Neg(), ledger.Fee, reference, "spot sell: fee on paid leg"); err != nil {
		return err
	}

	sellerUSDC, err := l.GetWallet(ctx, tx, sellerUser, currency.USDC)
	if err != nil {
		return err
	}
	if _, err := l.ApplyDelta(ctx, tx, sellerUSDC, quoteAmount, ledger.TradeCredit, reference, "spot sell: quote received"); err != nil {
		return err
	}

	return nil
}

// debitPaidLeg routes a trade debit through SettleLocked when the
// participant's order pre-locked these funds (every resting maker order
// and every limit taker order), or ApplyDelta when it did not (a market
// taker, which admission never pre-locks).
func debitPaidLeg(ctx context.Context, tx *sql.Tx, l *ledger.Ledger, w *ledger.Wallet, amount money.Decimal, locked bool, kind ledger.Kind, reference, description string) error {
	debit := amount.Neg()
	if locked {
		_, err := l.SettleLocked(ctx, tx, w, debit, kind, reference, description)
		return err
	}
	_, err := l.ApplyDelta(ctx, tx, w, debit, kind, reference, description)
	return err
}
