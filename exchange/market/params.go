// Package market holds the static, per-pair configuration the engine
// reads as immutable at runtime: tick size, minimum quantity, fee
// rates, and, for futures, contract size, leverage cap, and margin
// rates.
package market

import (
	"fmt"

	"github.com/spikeycoins/tradeengine/currency"
	"github.com/spikeycoins/tradeengine/money"
)

// Params is the static configuration for one tradeable pair.
type Params struct {
	Pair                currency.Pair
	TickSize            money.Decimal
	MinQuantity         money.Decimal
	MakerFeeRate        money.Decimal
	TakerFeeRate        money.Decimal
	ContractSize        money.Decimal // futures only, zero for spot
	MaxLeverage         int           // futures only, 0 for spot
	InitialMarginRate   money.Decimal // futures only
	MaintenanceMarginRate money.Decimal // futures only
}

func must(s string) money.Decimal {
	d, err := money.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

// Defaults is the binding market parameter table from the specification.
// A deployment may override entries via config; Defaults is never
// mutated at runtime.
var Defaults = map[currency.Pair]Params{
	currency.USDTUSDC: {
		Pair:         currency.USDTUSDC,
		TickSize:     must("0.0001"),
		MinQuantity:  must("0.01"),
		MakerFeeRate: must("0.0001"),
		TakerFeeRate: must("0.0003"),
	},
	currency.XAUPERP: {
		Pair:                  currency.XAUPERP,
		TickSize:              must("0.01"),
		MinQuantity:           must("1"),
		MakerFeeRate:          must("0.0002"),
		TakerFeeRate:          must("0.0005"),
		ContractSize:          must("0.001"),
		MaxLeverage:           50,
		InitialMarginRate:     must("0.02"),
		MaintenanceMarginRate: must("0.01"),
	},
	currency.XAGPERP: {
		Pair:                  currency.XAGPERP,
		TickSize:              must("0.001"),
		MinQuantity:           must("1"),
		MakerFeeRate:          must("0.0002"),
		TakerFeeRate:          must("0.0005"),
		ContractSize:          must("0.1"),
		MaxLeverage:           50,
		InitialMarginRate:     must("0.02"),
		MaintenanceMarginRate: must("0.01"),
	},
}

// Table is a live, possibly config-overridden set of market parameters.
// The zero value is unusable; construct with NewTable.
type Table struct {
	params map[currency.Pair]Params
}

// NewTable builds a Table seeded from Defaults, with overrides applied
// on top for whichever pairs they name.
func NewTable(overrides map[currency.Pair]Params) *Table {
	t := &Table{params: make(map[currency.Pair]Params, len(Defaults))}
	for pair, p := range Defaults {
		t.params[pair] = p
	}
	for pair, p := range overrides {
		t.params[pair] = p
	}
	return t
}

// Get returns the parameters for pair, or an error if the pair is not
// recognized.
func (t *Table) Get(pair currency.Pair) (Params, error) {
	p, ok := t.params[pair]
	if !ok {
		return Params{}, fmt.Errorf("market: unrecognized pair %s", pair)
	}
	return p, nil
}

// FeeBase computes the notional a fee rate applies to: qty*price for
// spot, qty*contract_size*price for futures.
func (p Params) FeeBase(qty, price money.Decimal) money.Decimal {
	if p.Pair.IsFutures() {
		return qty.Mul(p.ContractSize).Mul(price)
	}
	return qty.Mul(price)
}

// RoundToTick rounds price to the nearest tick, half-away-from-zero.
func (p Params) RoundToTick(price money.Decimal) money.Decimal {
	if p.TickSize.IsZero() {
		return price
	}
	units := price.Div(p.TickSize).RoundToScale(0)
	return units.Mul(p.TickSize)
}

// RespectsTick reports whether price is an exact multiple of the tick
// size.
func (p Params) RespectsTick(price money.Decimal) bool {
	if p.TickSize.IsZero() {
		return true
	}
	rounded := p.RoundToTick(price)
	return rounded.Equal(price)
}
