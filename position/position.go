// Package position defines the futures Position entity: opened by a
// fill, mutated by further fills (averaging, reducing, closing), by
// funding, and by liquidation.
package position

import (
	"time"

	"github.com/gofrs/uuid"

	"github.com/spikeycoins/tradeengine/currency"
	"github.com/spikeycoins/tradeengine/exchange/order"
	"github.com/spikeycoins/tradeengine/money"
)

// Status is the lifecycle state of a position.
type Status uint8

// Recognized statuses. Closed and Liquidated are terminal, both with
// Quantity == 0.
const (
	OpenStatus Status = iota
	Closed
	Liquidated
)

// String implements fmt.Stringer.
func (s Status) String() string {
	switch s {
	case Closed:
		return "closed"
	case Liquidated:
		return "liquidated"
	default:
		return "open"
	}
}

// Position is a futures holding on one contract.
type Position struct {
	ID                 uuid.UUID
	User               string
	Contract           currency.Pair
	Side               order.PositionSide
	EntryPrice         money.Decimal
	Quantity           money.Decimal
	Margin             money.Decimal
	CollateralCurrency currency.Code
	Leverage           int
	LiquidationPrice   money.Decimal
	RealizedPnL        money.Decimal
	LastFundingAt      *time.Time
	Status             Status
	CreatedAt          time.Time
}

// IsOpen reports whether the position still carries quantity.
func (p *Position) IsOpen() bool {
	return p.Status == OpenStatus
}
