// Package liquidation sweeps open futures positions and closes out any
// that have fallen below their maintenance margin requirement at the
// current mark price.
package liquidation

import (
	"context"
	"database/sql"

	"github.com/spikeycoins/tradeengine/currency"
	"github.com/spikeycoins/tradeengine/exchange/market"
	"github.com/spikeycoins/tradeengine/ledger"
	"github.com/spikeycoins/tradeengine/margin"
	"github.com/spikeycoins/tradeengine/money"
	"github.com/spikeycoins/tradeengine/position"
	"github.com/spikeycoins/tradeengine/pricing"
)

// PositionRepository is the storage contract the liquidation sweep
// needs. It is satisfied by database/repository/position.Repository.
type PositionRepository interface {
	Update(ctx context.Context, tx *sql.Tx, p *position.Position) error
	ListOpenByContract(ctx context.Context, tx *sql.Tx, contract currency.Pair) ([]*position.Position, error)
}

// Sweeper liquidates underwater positions at the current mark price.
type Sweeper struct {
	ledger    *ledger.Ledger
	positions PositionRepository
	pricing   *pricing.Service
	markets   *market.Table
}

// NewSweeper constructs a liquidation Sweeper.
func NewSweeper(l *ledger.Ledger, positions PositionRepository, pricingSvc *pricing.Service, markets *market.Table) *Sweeper {
	return &Sweeper{ledger: l, positions: positions, pricing: pricingSvc, markets: markets}
}

// Result is one position the sweep liquidated.
type Result struct {
	PositionID  string
	Credited    money.Decimal
	RealizedPnL money.Decimal
}

// Check scans every open position on contract and liquidates any whose
// margin plus unrealized PnL has fallen below maintenance margin at the
// current mark. It returns one Result per position liquidated.
func (s *Sweeper) Check(ctx context.Context, tx *sql.Tx, contract currency.Pair) ([]Result, error) {
	params, err := s.markets.Get(contract)
	if err != nil {
		return nil, err
	}
	mark, err := s.pricing.MarkPrice(ctx, contract)
	if err != nil {
		return nil, err
	}

	positions, err := s.positions.ListOpenByContract(ctx, tx, contract)
	if err != nil {
		return nil, err
	}

	var results []Result
	for _, p := range positions {
		upnl := margin.UnrealizedPnL(p.Side, p.EntryPrice, mark, p.Quantity, params.ContractSize)
		maintenance := margin.MaintenanceMargin(p.Quantity, params.ContractSize, mark, params.MaintenanceMarginRate)
		if !margin.IsLiquidatable(p.Margin, upnl, maintenance) {
			continue
		}

		credit := money.Max(money.Zero, p.Margin.Add(upnl))
		p.RealizedPnL = p.RealizedPnL.Add(upnl)
		p.Quantity = money.Zero
		p.Margin = money.Zero
		p.Status = position.Liquidated
		if err := s.positions.Update(ctx, tx, p); err != nil {
			return nil, err
		}

		// A ledger entry is recorded even when the deficit absorbs the
		// entire margin, leaving nothing to credit (spec §4.8: "records
		// the credit, or its absence").
		wallet, err := s.ledger.GetWallet(ctx, tx, p.User, p.CollateralCurrency)
		if err != nil {
			return nil, err
		}
		if _, err := s.ledger.ApplyDelta(ctx, tx, wallet, credit, ledger.Liquidation, p.ID.String(), "liquidation credit"); err != nil {
			return nil, err
		}

		results = append(results, Result{PositionID: p.ID.String(), Credited: credit, RealizedPnL: upnl})
	}
	return results, nil
}
