// Package engine wires the ledger, pricing, order book, matching,
// settlement, admission, funding, and liquidation packages into the
// public operations the venue exposes, each running inside its own
// database transaction.
package engine

import (
	"context"
	"database/sql"
	"time"

	"github.com/gofrs/uuid"

	"github.com/spikeycoins/tradeengine/admission"
	"github.com/spikeycoins/tradeengine/currency"
	"github.com/spikeycoins/tradeengine/database/repository/order"
	"github.com/spikeycoins/tradeengine/database/repository/position"
	"github.com/spikeycoins/tradeengine/database/repository/trade"
	"github.com/spikeycoins/tradeengine/database/repository/transaction"
	"github.com/spikeycoins/tradeengine/database/repository/wallet"
	"github.com/spikeycoins/tradeengine/exchange/market"
	domainorder "github.com/spikeycoins/tradeengine/exchange/order"
	"github.com/spikeycoins/tradeengine/funding"
	"github.com/spikeycoins/tradeengine/ledger"
	"github.com/spikeycoins/tradeengine/liquidation"
	"github.com/spikeycoins/tradeengine/log"
	"github.com/spikeycoins/tradeengine/margin"
	"github.com/spikeycoins/tradeengine/money"
	"github.com/spikeycoins/tradeengine/orderbook"
	domainposition "github.com/spikeycoins/tradeengine/position"
	"github.com/spikeycoins/tradeengine/pricing"
	"github.com/spikeycoins/tradeengine/xerrors"
)

var subLogger = log.NewSubLogger("ENGINE")

// Engine is the process's composition root. Every public method opens
// its own transaction; concurrent callers serialize through the row
// locks the repositories' GetForUpdate/FindOpen/ListRestingForMatch/
// ListOpenByContract queries take (repository.LockClause), acquired on
// every wallet, resting order, and position row before any of them is
// mutated, per spec §5.
type Engine struct {
	db *sql.DB

	Ledger  *ledger.Ledger
	Pricing *pricing.Service
	Book    *orderbook.Book
	Markets *market.Table

	Admission   *admission.Admission
	Funding     *funding.Scheduler
	Liquidation *liquidation.Sweeper

	orders     *order.Repository
	positions  *position.Repository
	trades     *trade.Repository
	walletRepo *wallet.Repository
}

// New wires every collaborator against db. markets is the live
// parameter table (built by config.MarketOverrides layered on
// market.Defaults); oracle is the external metals price provider;
// indexCacheTTL is the oracle cache lifetime (zero selects
// pricing.DefaultTTL).
func New(db *sql.DB, markets *market.Table, oracle pricing.Oracle, indexCacheTTL time.Duration) *Engine {
	walletRepo := wallet.New()
	txRepo := transaction.New()
	l := ledger.New(walletRepo, txRepo)

	orderRepo := order.New()
	positionRepo := position.New()
	tradeRepo := trade.New()

	book := orderbook.New(db, orderRepo)
	cache := pricing.NewCache(oracle, indexCacheTTL)
	pricingSvc := pricing.NewService(cache, book)

	adm := admission.New(l, orderRepo, positionRepo, tradeRepo, markets)
	fundingSched := funding.NewScheduler(l, positionRepo, pricingSvc, markets)
	sweeper := liquidation.NewSweeper(l, positionRepo, pricingSvc, markets)

	return &Engine{
		db:          db,
		Ledger:      l,
		Pricing:     pricingSvc,
		Book:        book,
		Markets:     markets,
		Admission:   adm,
		Funding:     fundingSched,
		Liquidation: sweeper,
		orders:      orderRepo,
		positions:   positionRepo,
		trades:      tradeRepo,
		walletRepo:  walletRepo,
	}
}

// withTx runs fn inside a new transaction, committing on a nil return
// and rolling back otherwise. A rollback error is logged but never
// shadows fn's own error, which is what the caller needs to see.
func (e *Engine) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := e.db.BeginTx(ctx, nil)
	if err != nil {
		return xerrors.Wrap(xerrors.Internal, err, "begin transaction")
	}
	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			subLogger.Error("rollback failed: %v (original error: %v)", rbErr, err)
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return xerrors.Wrap(xerrors.Internal, err, "commit transaction")
	}
	return nil
}

// PlaceOrder admits a new order, matching it against the resting book
// and settling any resulting fills, all within one transaction.
func (e *Engine) PlaceOrder(ctx context.Context, req admission.PlaceRequest) (*admission.PlaceResult, error) {
	var result *admission.PlaceResult
	err := e.withTx(ctx, func(tx *sql.Tx) error {
		var err error
		result, err = e.Admission.PlaceOrder(ctx, tx, req)
		return err
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// CancelOrder cancels a resting order owned by user, releasing any
// residual lock.
func (e *Engine) CancelOrder(ctx context.Context, user string, orderID uuid.UUID) (*domainorder.Order, error) {
	var result *domainorder.Order
	err := e.withTx(ctx, func(tx *sql.Tx) error {
		var err error
		result, err = e.Admission.CancelOrder(ctx, tx, user, orderID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// ClosePosition reduces or fully closes an open futures position by
// submitting an opposite-side market order.
func (e *Engine) ClosePosition(ctx context.Context, req admission.ClosePositionRequest) (*domainposition.Position, error) {
	var result *domainposition.Position
	err := e.withTx(ctx, func(tx *sql.Tx) error {
		var err error
		result, err = e.Admission.ClosePosition(ctx, tx, req)
		return err
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// GetOrderBook returns aggregated book depth for pair, outside any
// transaction since it only reads.
func (e *Engine) GetOrderBook(ctx context.Context, pair currency.Pair, depth int) (orderbook.Depth, error) {
	return e.Book.Query(ctx, pair, depth)
}

// PositionView is a position enriched with the live figures spec §6
// requires get_positions to report: mark price, unrealized PnL,
// maintenance margin, and margin ratio.
type PositionView struct {
	*domainposition.Position
	MarkPrice         money.Decimal `json:"mark_price"`
	UnrealizedPnL     money.Decimal `json:"unrealized_pnl"`
	MaintenanceMargin money.Decimal `json:"maintenance_margin"`
	MarginRatio       money.Decimal `json:"margin_ratio,omitempty"`
	HasMarginRatio    bool          `json:"has_margin_ratio"`
}

// GetPositions returns a user's positions, optionally filtered to one
// status, each enriched with its live mark price, unrealized PnL,
// maintenance margin, and margin ratio per spec §6.
func (e *Engine) GetPositions(ctx context.Context, user string, status *domainposition.Status) ([]*PositionView, error) {
	positions, err := e.positions.ListByUser(ctx, e.db, user, status)
	if err != nil {
		return nil, err
	}

	marks := make(map[currency.Pair]money.Decimal, len(positions))
	views := make([]*PositionView, 0, len(positions))
	for _, p := range positions {
		mark, ok := marks[p.Contract]
		if !ok {
			mark, err = e.Pricing.MarkPrice(ctx, p.Contract)
			if err != nil {
				return nil, err
			}
			marks[p.Contract] = mark
		}

		params, err := e.Markets.Get(p.Contract)
		if err != nil {
			return nil, err
		}

		upnl := margin.UnrealizedPnL(p.Side, p.EntryPrice, mark, p.Quantity, params.ContractSize)
		maintenance := margin.MaintenanceMargin(p.Quantity, params.ContractSize, mark, params.MaintenanceMarginRate)
		ratio, ratioOK := margin.MarginRatio(p.Margin, upnl, maintenance)

		views = append(views, &PositionView{
			Position:          p,
			MarkPrice:         mark,
			UnrealizedPnL:     upnl,
			MaintenanceMargin: maintenance,
			MarginRatio:       ratio,
			HasMarginRatio:    ratioOK,
		})
	}
	return views, nil
}

// GetOrders returns a user's orders, optionally filtered to one status.
func (e *Engine) GetOrders(ctx context.Context, user string, status *domainorder.Status) ([]*domainorder.Order, error) {
	return e.orders.ListByUser(ctx, e.db, user, status)
}

// GetTrades returns the most recent trades for pair.
func (e *Engine) GetTrades(ctx context.Context, pair currency.Pair, limit int) ([]*trade.Data, error) {
	return e.trades.Recent(ctx, e.db, pair, limit)
}

// GetWalletHistory returns a wallet's current balances plus a page of
// its transaction log, newest first.
func (e *Engine) GetWalletHistory(ctx context.Context, user string, cur currency.Code, limit int) (*ledger.Wallet, []*ledger.Transaction, error) {
	w, err := e.walletRepo.Get(ctx, e.db, user, cur)
	if err != nil {
		return nil, nil, xerrors.Wrap(xerrors.NotFound, err, "wallet %s/%s", user, cur)
	}
	history, err := transaction.History(ctx, e.db, w.ID, limit)
	if err != nil {
		return nil, nil, xerrors.Wrap(xerrors.Internal, err, "wallet history %s/%s", user, cur)
	}
	return w, history, nil
}

// PricingStatus reports the index price cache's health without
// triggering a refresh.
func (e *Engine) PricingStatus() pricing.Status {
	return e.Pricing.CacheStatus()
}

// DistributeFunding applies the current funding interval to every open
// position on contract.
func (e *Engine) DistributeFunding(ctx context.Context, contract currency.Pair) error {
	return e.withTx(ctx, func(tx *sql.Tx) error {
		return e.Funding.Distribute(ctx, tx, contract)
	})
}

// CheckLiquidations sweeps every open position on contract at the
// current mark price, liquidating any that are underwater.
func (e *Engine) CheckLiquidations(ctx context.Context, contract currency.Pair) ([]liquidation.Result, error) {
	var results []liquidation.Result
	err := e.withTx(ctx, func(tx *sql.Tx) error {
		var err error
		results, err = e.Liquidation.Check(ctx, tx, contract)
		return err
	})
	if err != nil {
		return nil, err
	}
	return results, nil
}
