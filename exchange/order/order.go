// Package order defines the order side/type/status enums and the Order
// entity the admission and matching packages operate on.
package order

import (
	"time"

	"github.com/gofrs/uuid"

	"github.com/spikeycoins/tradeengine/currency"
	"github.com/spikeycoins/tradeengine/money"
)

// Side is which direction of the book an order rests on or crosses.
type Side uint8

// Recognized sides.
const (
	Buy Side = iota
	Sell
)

// String implements fmt.Stringer.
func (s Side) String() string {
	if s == Sell {
		return "sell"
	}
	return "buy"
}

// Opposite returns the other side.
func (s Side) Opposite() Side {
	if s == Buy {
		return Sell
	}
	return Buy
}

// Type distinguishes resting limit orders from immediate-or-cancel
// market orders.
type Type uint8

// Recognized order types.
const (
	Limit Type = iota
	Market
)

// String implements fmt.Stringer.
func (t Type) String() string {
	if t == Market {
		return "market"
	}
	return "limit"
}

// Status is the lifecycle state of an order.
type Status uint8

// Recognized statuses. Open and Partial are the only statuses a resting
// order may hold; Filled and Cancelled are terminal.
const (
	Open Status = iota
	Partial
	Filled
	Cancelled
)

// String implements fmt.Stringer.
func (s Status) String() string {
	switch s {
	case Partial:
		return "partial"
	case Filled:
		return "filled"
	case Cancelled:
		return "cancelled"
	default:
		return "open"
	}
}

// IsTerminal reports whether no further mutation of the order is
// permitted.
func (s Status) IsTerminal() bool {
	return s == Filled || s == Cancelled
}

// IsResting reports whether the order still occupies a place in the
// book (open or partially filled).
func (s Status) IsResting() bool {
	return s == Open || s == Partial
}

// Order is a client's resting or terminal order record.
type Order struct {
	ID                 uuid.UUID
	User                string
	Pair                currency.Pair
	Side                Side
	Type                Type
	Price               money.Decimal // zero value for market orders
	HasPrice            bool
	Quantity            money.Decimal
	FilledQuantity      money.Decimal
	Status              Status
	CollateralCurrency  currency.Code // futures only
	Leverage            int           // futures only, 0 for spot
	CreatedAt           time.Time
}

// Remaining returns the quantity still to be filled.
func (o *Order) Remaining() money.Decimal {
	return o.Quantity.Sub(o.FilledQuantity)
}

// IsFutures reports whether o trades on a futures pair.
func (o *Order) IsFutures() bool {
	return o.Pair.IsFutures()
}

// PositionSide returns the position side this order's fills open: a buy
// opens/adds-to a long, a sell opens/adds-to a short.
func (s Side) PositionSide() PositionSide {
	if s == Buy {
		return Long
	}
	return Short
}

// PositionSide is the directional side of a futures position.
type PositionSide uint8

// Recognized position sides.
const (
	Long PositionSide = iota
	Short
)

// String implements fmt.Stringer.
func (s PositionSide) String() string {
	if s == Short {
		return "short"
	}
	return "long"
}

// Opposite returns the other position side.
func (s PositionSide) Opposite() PositionSide {
	if s == Long {
		return Short
	}
	return Long
}

// OrderSide returns the order side that opens/adds-to a position on
// side s: Buy for Long, Sell for Short.
func (s PositionSide) OrderSide() Side {
	if s == Short {
		return Sell
	}
	return Buy
}
