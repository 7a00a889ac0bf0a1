package settlement

import (
	"context"
	"database/sql"
	"time"

	"github.com/gofrs/uuid"

	"github.com/spikeycoins/tradeengine/currency"
	"github.com/spikeycoins/tradeengine/exchange/market"
	"github.com/spikeycoins/tradeengine/exchange/order"
	"github.com/spikeycoins/tradeengine/ledger"
	"github.com/spikeycoins/tradeengine/margin"
	"github.com/spikeycoins/tradeengine/matching"
	"github.com/spikeycoins/tradeengine/money"
	"github.com/spikeycoins/tradeengine/position"
	"github.com/spikeycoins/tradeengine/pricing"
)

// dust is the residual-quantity floor below which a position is closed
// outright rather than left open with a near-zero size.
var dust = money.New(1, -8)

// PositionRepository is the storage contract Futures needs. It is
// satisfied by database/repository/position.Repository.
type PositionRepository interface {
	Insert(ctx context.Context, tx *sql.Tx, p *position.Position) error
	Update(ctx context.Context, tx *sql.Tx, p *position.Position) error
	FindOpen(ctx context.Context, tx *sql.Tx, user string, contract currency.Pair, side order.PositionSide) (*position.Position, error)
}

// Futures settles one XAU-PERP/XAG-PERP fill by running the participant
// reducer independently for the maker and the taker, per spec §4.7. The
// maker's collateral currency and leverage are read from the resting
// maker order; admission guarantees both are present on futures orders.
// It returns the fee actually debited from each side's collateral
// wallet, which is the value the caller must record on the trade row:
// matching.Fill's MakerFee/TakerFee are computed over the full matched
// quantity and do not reflect that a pure reduce carries no fee of its
// own (spec §4.7 steps 3-4).
func Futures(ctx context.Context, tx *sql.Tx, l *ledger.Ledger, positions PositionRepository, params market.Params, maker, taker *order.Order, fill matching.Fill) (makerFee, takerFee money.Decimal, err error) {
	makerFee, err = participant(ctx, tx, l, positions, params, maker, fill, maker.Side.PositionSide(), params.MakerFeeRate)
	if err != nil {
		return money.Zero, money.Zero, err
	}
	takerFee, err = participant(ctx, tx, l, positions, params, taker, fill, taker.Side.PositionSide(), params.TakerFeeRate)
	if err != nil {
		return money.Zero, money.Zero, err
	}
	return makerFee, takerFee, nil
}

// participant applies one fill to one side's position book: reduce an
// opposing position first, else average into a same-side position, else
// open a new one. A fee is charged only on the portion that opens or
// averages a position, not on the portion that closes one, per spec
// §4.7 steps 3-4 (step 2, pure reduction, carries no fee of its own).
// It returns the fee actually debited, which is zero for a pure reduce
// and smaller than params.FeeBase(fill.Quantity, ...) for a split
// reduce-then-open.
func participant(ctx context.Context, tx *sql.Tx, l *ledger.Ledger, positions PositionRepository, params market.Params, o *order.Order, fill matching.Fill, side order.PositionSide, feeRate money.Decimal) (money.Decimal, error) {
	reference := o.ID.String()
	wallet, err := l.GetWallet(ctx, tx, o.User, o.CollateralCurrency)
	if err != nil {
		return money.Zero, err
	}

	opposing, err := positions.FindOpen(ctx, tx, o.User, o.Pair, side.Opposite())
	if err != nil {
		return money.Zero, err
	}
	remaining := fill.Quantity

	if opposing != nil {
		closedQty := money.Min(remaining, opposing.Quantity)
		pnl := margin.UnrealizedPnL(opposing.Side, opposing.EntryPrice, fill.Price, closedQty, params.ContractSize)
		release := closedQty.Div(opposing.Quantity).Mul(opposing.Margin)

		opposing.Quantity = opposing.Quantity.Sub(closedQty)
		opposing.Margin = opposing.Margin.Sub(release)
		opposing.RealizedPnL = opposing.RealizedPnL.Add(pnl)
		if opposing.Quantity.LessThan(dust) {
			opposing.Quantity = money.Zero
			opposing.Margin = money.Zero
			opposing.Status = position.Closed
		}
		if err := positions.Update(ctx, tx, opposing); err != nil {
			return money.Zero, err
		}

		credit := release.Add(pnl)
		if !credit.IsZero() {
			if _, err := l.ApplyDelta(ctx, tx, wallet, credit, ledger.MarginRelease, reference, "futures: position reduced"); err != nil {
				return money.Zero, err
			}
		}

		remaining = remaining.Sub(closedQty)
		if remaining.LessThan(dust) {
			return money.Zero, nil
		}
	}

	same, err := positions.FindOpen(ctx, tx, o.User, o.Pair, side)
	if err != nil {
		return money.Zero, err
	}

	locked := o.Type == order.Limit // admission pre-locks margin+fee only for resting limit orders
	incomingMargin := margin.InitialMargin(margin.Notional(remaining, params.ContractSize, fill.Price), o.Leverage)
	fee := params.FeeBase(remaining, fill.Price).Mul(feeRate)

	if err := debitPaidLeg(ctx, tx, l, wallet, incomingMargin, locked, ledger.MarginLock, reference, "futures: margin locked into position"); err != nil {
		return money.Zero, err
	}
	if !fee.IsZero() {
		if err := debitPaidLeg(ctx, tx, l, wallet, fee, locked, ledger.Fee, reference, "futures: trade fee"); err != nil {
			return money.Zero, err
		}
	}

	if same != nil {
		oldNotional := same.EntryPrice.Mul(same.Quantity)
		newNotional := fill.Price.Mul(remaining)
		newQty := same.Quantity.Add(remaining)
		newEntry := oldNotional.Add(newNotional).Div(newQty)

		same.Quantity = newQty
		same.EntryPrice = newEntry
		same.Margin = same.Margin.Add(incomingMargin)
		same.LiquidationPrice = margin.LiquidationPrice(same.Side, newEntry, o.Leverage, params.MaintenanceMarginRate)
		return fee, positions.Update(ctx, tx, same)
	}

	id, err := uuid.NewV4()
	if err != nil {
		return money.Zero, err
	}
	// A position opened mid-interval owes nothing until the interval it
	// was open for the whole of; seeding last_funding_at with the next
	// boundary rather than the most recent past one makes apply_pending
	// a no-op until that boundary passes, with no pro-rating needed.
	nextFunding := pricing.NextFundingAt(time.Now())
	p := &position.Position{
		ID:                 id,
		User:               o.User,
		Contract:           o.Pair,
		Side:               side,
		EntryPrice:         fill.Price,
		Quantity:           remaining,
		Margin:             incomingMargin,
		CollateralCurrency: o.CollateralCurrency,
		Leverage:           o.Leverage,
		LiquidationPrice:   margin.LiquidationPrice(side, fill.Price, o.Leverage, params.MaintenanceMarginRate),
		LastFundingAt:      &nextFunding,
		Status:             position.OpenStatus,
		CreatedAt:          time.Now().UTC(),
	}
	return fee, positions.Insert(ctx, tx, p)
}
