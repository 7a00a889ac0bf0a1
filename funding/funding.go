// Package funding implements the periodic funding transfer that tethers
// a perpetual contract's mark price to its index: at each 8-hour UTC
// boundary, every open position pays or receives notional*funding_rate.
package funding

import (
	"context"
	"database/sql"
	"time"

	"github.com/spikeycoins/tradeengine/currency"
	"github.com/spikeycoins/tradeengine/exchange/market"
	"github.com/spikeycoins/tradeengine/exchange/order"
	"github.com/spikeycoins/tradeengine/ledger"
	"github.com/spikeycoins/tradeengine/margin"
	"github.com/spikeycoins/tradeengine/position"
	"github.com/spikeycoins/tradeengine/pricing"
)

// PositionRepository is the storage contract the funding scheduler
// needs. It is satisfied by database/repository/position.Repository.
type PositionRepository interface {
	Update(ctx context.Context, tx *sql.Tx, p *position.Position) error
	ListOpenByContract(ctx context.Context, tx *sql.Tx, contract currency.Pair) ([]*position.Position, error)
}

// Scheduler sweeps open positions for funding accrual and exposes the
// lazy catch-up an API collaborator triggers on read, so no double
// application is possible regardless of who wakes first.
type Scheduler struct {
	ledger    *ledger.Ledger
	positions PositionRepository
	pricing   *pricing.Service
	markets   *market.Table
	now       func() time.Time
}

// NewScheduler constructs a funding Scheduler.
func NewScheduler(l *ledger.Ledger, positions PositionRepository, pricingSvc *pricing.Service, markets *market.Table) *Scheduler {
	return &Scheduler{ledger: l, positions: positions, pricing: pricingSvc, markets: markets, now: time.Now}
}

// Distribute applies funding to every open position on contract that has
// crossed one or more unpaid boundaries.
func (s *Scheduler) Distribute(ctx context.Context, tx *sql.Tx, contract currency.Pair) error {
	positions, err := s.positions.ListOpenByContract(ctx, tx, contract)
	if err != nil {
		return err
	}
	for _, p := range positions {
		if err := s.ApplyPending(ctx, tx, p); err != nil {
			return err
		}
	}
	return nil
}

// ApplyPending catches one position up on every funding boundary it has
// crossed since LastFundingAt, charging or crediting its collateral
// wallet once per boundary. It is a no-op if the position's next
// boundary has not yet arrived — the same condition whether it is
// called from Distribute's sweep or lazily from a read path, which is
// what makes double-application impossible.
func (s *Scheduler) ApplyPending(ctx context.Context, tx *sql.Tx, p *position.Position) error {
	if !p.IsOpen() {
		return nil
	}
	now := s.now()
	if p.LastFundingAt == nil {
		next := pricing.NextFundingAt(now)
		p.LastFundingAt = &next
		return s.positions.Update(ctx, tx, p)
	}

	params, err := s.markets.Get(p.Contract)
	if err != nil {
		return err
	}

	dirty := false
	for !p.LastFundingAt.After(now) {
		rate, err := s.pricing.FundingRate(ctx, p.Contract)
		if err != nil {
			return err
		}
		mark, err := s.pricing.MarkPrice(ctx, p.Contract)
		if err != nil {
			return err
		}

		notional := margin.Notional(p.Quantity, params.ContractSize, mark)
		payment := notional.Mul(rate) // positive rate: longs pay, shorts receive

		if !payment.IsZero() {
			delta := payment.Neg()
			if p.Side == order.Short {
				delta = payment
			}
			wallet, err := s.ledger.GetWallet(ctx, tx, p.User, p.CollateralCurrency)
			if err != nil {
				return err
			}
			if _, err := s.ledger.ApplyDelta(ctx, tx, wallet, delta, ledger.Funding, p.ID.String(), "funding payment"); err != nil {
				return err
			}
		}

		next := pricing.NextFundingAt(*p.LastFundingAt)
		p.LastFundingAt = &next
		dirty = true
	}

	if dirty {
		return s.positions.Update(ctx, tx, p)
	}
	return nil
}
