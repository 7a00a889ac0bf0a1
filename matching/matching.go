// Package matching implements the price-time matching engine as a pure
// reducer: given an incoming order and the resting set on the opposite
// side, it returns the fills and the incoming order's terminal state. It
// never touches the database itself; the caller is responsible for
// loading the resting set (locked, in scan order) and persisting the
// result inside its own transaction.
package matching

import (
	"sort"

	"github.com/spikeycoins/tradeengine/exchange/market"
	"github.com/spikeycoins/tradeengine/exchange/order"
	"github.com/spikeycoins/tradeengine/money"
)

// dust is the floor below which a residual quantity is treated as zero
// for status classification, per spec §4.6.
var dust = money.New(1, -8)

// Fill is one resting order consumed by the incoming order.
type Fill struct {
	MakerOrderID string
	MakerUser    string
	Price        money.Decimal
	Quantity     money.Decimal
	MakerFee     money.Decimal
	TakerFee     money.Decimal
}

// Result is the outcome of matching one incoming order against the
// resting book.
type Result struct {
	Fills          []Fill
	RemainingQty   money.Decimal
	IncomingStatus order.Status
	RestingUpdates []RestingUpdate
}

// RestingUpdate is the filled-quantity/status delta matching produces
// for a maker order it consumed, in full or in part.
type RestingUpdate struct {
	OrderID        string
	FilledQuantity money.Decimal
	Status         order.Status
}

// Match walks resting, already ordered in strict price-time priority for
// the opposite side (ascending price for asks the incoming buy crosses,
// descending price for bids the incoming sell crosses, ascending
// creation time within a price level), consuming it against incoming.
// resting is never mutated; Match returns the updates the caller must
// persist instead.
func Match(incoming *order.Order, resting []*order.Order, params market.Params) Result {
	remaining := incoming.Remaining()
	result := Result{RemainingQty: remaining}

	for _, maker := range resting {
		if remaining.IsZero() || remaining.LessThan(dust) {
			remaining = money.Zero
			break
		}
		if maker.User == incoming.User {
			continue // self-trade prevention: skip, do not stop
		}
		if incoming.Type == order.Limit && !crosses(incoming, maker) {
			break // next resting price no longer crosses the incoming limit
		}

		makerRemaining := maker.Remaining()
		if makerRemaining.IsZero() || makerRemaining.LessThan(dust) {
			continue
		}

		fillQty := money.Min(remaining, makerRemaining)
		price := maker.Price // execution price is always the maker's price

		makerFeeBase := params.FeeBase(fillQty, price)
		makerFee := makerFeeBase.Mul(params.MakerFeeRate)
		takerFee := makerFeeBase.Mul(params.TakerFeeRate)

		result.Fills = append(result.Fills, Fill{
			MakerOrderID: maker.ID.String(),
			MakerUser:    maker.User,
			Price:        price,
			Quantity:     fillQty,
			MakerFee:     makerFee,
			TakerFee:     takerFee,
		})

		newMakerFilled := maker.FilledQuantity.Add(fillQty)
		makerStatus := order.Partial
		if maker.Quantity.Sub(newMakerFilled).LessThan(dust) {
			makerStatus = order.Filled
		}
		result.RestingUpdates = append(result.RestingUpdates, RestingUpdate{
			OrderID:        maker.ID.String(),
			FilledQuantity: newMakerFilled,
			Status:         makerStatus,
		})

		remaining = remaining.Sub(fillQty)
	}

	if remaining.LessThan(dust) {
		remaining = money.Zero
	}
	result.RemainingQty = remaining
	result.IncomingStatus = terminalStatus(incoming, remaining)
	return result
}

// crosses reports whether maker's resting price still crosses incoming's
// limit: for an incoming buy, the ask must be at or below the bid limit;
// for an incoming sell, the bid must be at or above the ask limit.
func crosses(incoming *order.Order, maker *order.Order) bool {
	if incoming.Side == order.Buy {
		return maker.Price.LessThanOrEqual(incoming.Price)
	}
	return maker.Price.GreaterThanOrEqual(incoming.Price)
}

// terminalStatus derives the incoming order's resulting status per spec
// §4.6: filled if exhausted, partial for a limit with residue, open for
// an un-crossed limit, cancelled for a market order with residue (market
// leftovers never rest).
func terminalStatus(incoming *order.Order, remaining money.Decimal) order.Status {
	if remaining.IsZero() {
		return order.Filled
	}
	if incoming.Type == order.Market {
		return order.Cancelled
	}
	if remaining.Equal(incoming.Quantity) {
		return order.Open
	}
	return order.Partial
}

// SortResting orders a resting slice into strict price-time priority for
// the side incoming (side) crosses against. It is exposed for callers
// (and tests) that already hold an unordered slice; the repository layer
// performs the equivalent ordering in SQL for ListRestingForMatch.
func SortResting(resting []*order.Order, incomingSide order.Side) []*order.Order {
	out := make([]*order.Order, len(resting))
	copy(out, resting)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Price.Equal(out[j].Price) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		if incomingSide == order.Buy {
			return out[i].Price.LessThan(out[j].Price) // asks ascending
		}
		return out[i].Price.GreaterThan(out[j].Price) // bids descending
	})
	return out
}
