// Package admission is the public place/cancel/close contract: it
// validates a request, pre-locks the funds it will consume, invokes the
// matching engine and settlement for each resulting fill, and persists
// the order's terminal state, all inside the caller's transaction.
package admission

import (
	"context"
	"database/sql"
	"time"

	"github.com/gofrs/uuid"
	"github.com/kat-co/vala"

	"github.com/spikeycoins/tradeengine/currency"
	"github.com/spikeycoins/tradeengine/database/repository/trade"
	"github.com/spikeycoins/tradeengine/exchange/market"
	"github.com/spikeycoins/tradeengine/exchange/order"
	"github.com/spikeycoins/tradeengine/ledger"
	"github.com/spikeycoins/tradeengine/margin"
	"github.com/spikeycoins/tradeengine/matching"
	"github.com/spikeycoins/tradeengine/money"
	"github.com/spikeycoins/tradeengine/position"
	"github.com/spikeycoins/tradeengine/settlement"
	"github.com/spikeycoins/tradeengine/xerrors"
)

// OrderRepository is the storage contract admission needs for orders.
// It is satisfied by database/repository/order.Repository.
type OrderRepository interface {
	Insert(ctx context.Context, tx *sql.Tx, o *order.Order) error
	Update(ctx context.Context, tx *sql.Tx, o *order.Order) error
	GetForUpdate(ctx context.Context, tx *sql.Tx, id uuid.UUID) (*order.Order, error)
	ListRestingForMatch(ctx context.Context, tx *sql.Tx, pair currency.Pair, side order.Side) ([]*order.Order, error)
}

// PositionRepository is the storage contract admission needs for
// positions, a superset of settlement.PositionRepository plus the
// by-id lookup close_position requires.
type PositionRepository interface {
	settlement.PositionRepository
	GetForUpdate(ctx context.Context, tx *sql.Tx, id uuid.UUID) (*position.Position, error)
}

// TradeRepository persists one row per fill.
type TradeRepository interface {
	Insert(ctx context.Context, tx *sql.Tx, t *trade.Data) error
}

// Admission wires together the engine's one public transactional entry
// point per client request.
type Admission struct {
	ledger    *ledger.Ledger
	orders    OrderRepository
	positions PositionRepository
	trades    TradeRepository
	markets   *market.Table
	throttle  *Throttle
	idempo    *idempotencyCache
	now       func() time.Time
}

// New constructs Admission over its collaborators.
func New(l *ledger.Ledger, orders OrderRepository, positions PositionRepository, trades TradeRepository, markets *market.Table) *Admission {
	return &Admission{
		ledger:    l,
		orders:    orders,
		positions: positions,
		trades:    trades,
		markets:   markets,
		throttle:  NewThrottle(),
		idempo:    newIdempotencyCache(time.Minute),
		now:       time.Now,
	}
}

// PlaceRequest is the validated input to PlaceOrder.
type PlaceRequest struct {
	User               string
	Pair               currency.Pair
	Side               order.Side
	Type               order.Type
	Price              money.Decimal
	HasPrice           bool
	Quantity           money.Decimal
	CollateralCurrency currency.Code
	Leverage           int
	IdempotencyKey     string
}

// PlaceResult is what PlaceOrder returns.
type PlaceResult struct {
	Order *order.Order
	Fills []matching.Fill
}

// PlaceOrder validates req, locks the funds it will consume, matches it
// against the resting book, settles every fill, and returns the order's
// resulting state. It must run inside a transaction; all of its
// mutations commit or roll back together.
func (a *Admission) PlaceOrder(ctx context.Context, tx *sql.Tx, req PlaceRequest) (*PlaceResult, error) {
	if !a.throttle.Allow(req.User) {
		return nil, xerrors.New(xerrors.Validation, "too many submissions for user %s", req.User)
	}
	if req.IdempotencyKey != "" {
		if cached, ok := a.idempo.get(req.User, req.IdempotencyKey); ok {
			return cached.(*PlaceResult), nil
		}
	}

	params, err := a.markets.Get(req.Pair)
	if err != nil {
		return nil, xerrors.Wrap(xerrors.Validation, err, "unrecognized pair")
	}
	if err := validatePlace(req, params); err != nil {
		return nil, err
	}

	id, err := uuid.NewV4()
	if err != nil {
		return nil, xerrors.Wrap(xerrors.Internal, err, "generate order id")
	}
	o := &order.Order{
		ID:                 id,
		User:               req.User,
		Pair:               req.Pair,
		Side:               req.Side,
		Type:               req.Type,
		Price:              req.Price,
		HasPrice:           req.HasPrice,
		Quantity:           req.Quantity,
		FilledQuantity:     money.Zero,
		Status:             order.Open,
		CollateralCurrency: req.CollateralCurrency,
		Leverage:           req.Leverage,
		CreatedAt:          a.now().UTC(),
	}

	if o.Type == order.Limit {
		w, err := a.ledger.GetWallet(ctx, tx, o.User, lockedCurrency(o))
		if err != nil {
			return nil, err
		}
		if err := lockForOrder(ctx, tx, a.ledger, w, o, params); err != nil {
			return nil, err
		}
	}

	if err := a.orders.Insert(ctx, tx, o); err != nil {
		return nil, err
	}

	fills, err := a.run(ctx, tx, params, o)
	if err != nil {
		return nil, err
	}

	if err := a.orders.Update(ctx, tx, o); err != nil {
		return nil, err
	}

	result := &PlaceResult{Order: o, Fills: fills}
	if req.IdempotencyKey != "" {
		a.idempo.put(req.User, req.IdempotencyKey, result)
	}
	return result, nil
}

// run walks the resting book against o, settling every fill and
// advancing o's FilledQuantity/Status to its terminal value for this
// submission (Open/Partial/Filled/Cancelled).
func (a *Admission) run(ctx context.Context, tx *sql.Tx, params market.Params, o *order.Order) ([]matching.Fill, error) {
	resting, err := a.orders.ListRestingForMatch(ctx, tx, o.Pair, o.Side)
	if err != nil {
		return nil, err
	}
	resting = matching.SortResting(resting, o.Side)

	result := matching.Match(o, resting, params)

	for _, fill := range result.Fills {
		makerOrder := findByID(resting, fill.MakerOrderID)
		if err := a.settleFill(ctx, tx, params, makerOrder, o, fill); err != nil {
			return nil, err
		}
	}

	for _, ru := range result.RestingUpdates {
		r := findByID(resting, ru.OrderID)
		r.FilledQuantity = ru.FilledQuantity
		r.Status = ru.Status
		if err := a.orders.Update(ctx, tx, r); err != nil {
			return nil, err
		}
	}

	o.FilledQuantity = o.Quantity.Sub(result.RemainingQty)
	o.Status = result.IncomingStatus
	return result.Fills, nil
}

// findByID returns the order in orders whose ID renders as id. Matching
// always calls back with an ID it produced from this same slice, so a
// miss here would indicate a logic error in the caller, not bad input.
func findByID(orders []*order.Order, id string) *order.Order {
	for _, o := range orders {
		if o.ID.String() == id {
			return o
		}
	}
	return nil
}

func (a *Admission) settleFill(ctx context.Context, tx *sql.Tx, params market.Params, maker, taker *order.Order, fill matching.Fill) error {
	tradeID, err := uuid.NewV4()
	if err != nil {
		return xerrors.Wrap(xerrors.Internal, err, "generate trade id")
	}

	// matching.Fill's MakerFee/TakerFee are computed over the full
	// matched quantity. Spot settlement charges exactly that, but
	// futures settlement may charge less when the fill closes (or
	// partially closes) a position, which carries no fee of its own.
	// The recorded trade fee for futures must come from what
	// settlement actually debited, not from the fill.
	makerFee, takerFee := fill.MakerFee, fill.TakerFee
	if taker.Pair.IsFutures() {
		makerFee, takerFee, err = settlement.Futures(ctx, tx, a.ledger, a.positions, params, maker, taker, fill)
		if err != nil {
			return err
		}
	}

	t := &trade.Data{
		ID: tradeID, Pair: taker.Pair, MakerOrderID: maker.ID, TakerOrderID: taker.ID,
		MakerUser: maker.User, TakerUser: taker.User, Price: fill.Price, Quantity: fill.Quantity,
		MakerFee: makerFee, TakerFee: takerFee, CreatedAt: a.now().UTC(),
	}
	if err := a.trades.Insert(ctx, tx, t); err != nil {
		return err
	}

	if taker.Pair.IsFutures() {
		return nil
	}
	return settlement.Spot(ctx, tx, a.ledger, maker, taker, fill)
}

// CancelOrder releases the residual lock on an open/partial limit order
// and marks it cancelled. Terminal orders return a Validation error.
func (a *Admission) CancelOrder(ctx context.Context, tx *sql.Tx, user string, orderID uuid.UUID) (*order.Order, error) {
	o, err := a.orders.GetForUpdate(ctx, tx, orderID)
	if err == sql.ErrNoRows {
		return nil, xerrors.New(xerrors.NotFound, "order %s not found", orderID)
	}
	if err != nil {
		return nil, err
	}
	if o.User != user {
		return nil, xerrors.New(xerrors.NotFound, "order %s not found", orderID)
	}
	if o.Status.IsTerminal() {
		return nil, xerrors.New(xerrors.Validation, "order %s is already %s", orderID, o.Status)
	}

	if o.Type == order.Limit {
		params, err := a.markets.Get(o.Pair)
		if err != nil {
			return nil, err
		}
		w, err := a.ledger.GetWallet(ctx, tx, o.User, lockedCurrency(o))
		if err != nil {
			return nil, err
		}
		residual := residualLock(o, params)
		if !residual.IsZero() {
			if err := a.ledger.Release(ctx, tx, w, residual); err != nil {
				return nil, err
			}
		}
	}

	o.Status = order.Cancelled
	if err := a.orders.Update(ctx, tx, o); err != nil {
		return nil, err
	}
	return o, nil
}

// ClosePositionRequest is the validated input to ClosePosition.
type ClosePositionRequest struct {
	User       string
	PositionID uuid.UUID
	Quantity   money.Decimal // zero means close in full
	HasQty     bool
}

// ClosePosition submits a market order on the opposite side of the
// caller's position for the requested quantity (or its full size),
// settling it the same way any other futures fill is settled.
func (a *Admission) ClosePosition(ctx context.Context, tx *sql.Tx, req ClosePositionRequest) (*position.Position, error) {
	p, err := a.positions.GetForUpdate(ctx, tx, req.PositionID)
	if err == sql.ErrNoRows {
		return nil, xerrors.New(xerrors.NotFound, "position %s not found", req.PositionID)
	}
	if err != nil {
		return nil, err
	}
	if p.User != req.User {
		return nil, xerrors.New(xerrors.NotFound, "position %s not found", req.PositionID)
	}
	if !p.IsOpen() {
		return nil, xerrors.New(xerrors.Validation, "position %s is already %s", req.PositionID, p.Status)
	}

	qty := p.Quantity
	if req.HasQty {
		if req.Quantity.IsZero() || req.Quantity.GreaterThan(p.Quantity) {
			return nil, xerrors.New(xerrors.Validation, "close quantity must be in (0, %s]", p.Quantity)
		}
		qty = req.Quantity
	}

	placeReq := PlaceRequest{
		User: req.User, Pair: p.Contract, Side: p.Side.Opposite().OrderSide(), Type: order.Market,
		Quantity: qty, CollateralCurrency: p.CollateralCurrency, Leverage: p.Leverage,
	}
	if _, err := a.PlaceOrder(ctx, tx, placeReq); err != nil {
		return nil, err
	}

	return a.positions.GetForUpdate(ctx, tx, req.PositionID)
}

// lockedCurrency returns the currency a limit order's pre-lock is held
// in: the collateral currency for futures, else the leg the order pays
// with (quote for a buy, base for a sell).
func lockedCurrency(o *order.Order) currency.Code {
	if o.IsFutures() {
		return o.CollateralCurrency
	}
	if o.Side == order.Buy {
		return o.Pair.Quote
	}
	return o.Pair.Base
}

// residualLock computes what cancelling o would return: the lock taken
// at admission time, scaled down by whatever has already filled.
func residualLock(o *order.Order, params market.Params) money.Decimal {
	remaining := o.Remaining()
	if remaining.IsZero() {
		return money.Zero
	}
	if !o.IsFutures() {
		if o.Side == order.Buy {
			return remaining.Mul(o.Price)
		}
		return remaining
	}
	notional := margin.Notional(remaining, params.ContractSize, o.Price)
	im := margin.InitialMargin(notional, o.Leverage)
	fee := params.FeeBase(remaining, o.Price).Mul(params.TakerFeeRate)
	return im.Add(fee)
}

// lockForOrder pre-locks the funds a resting limit order will consume,
// per spec §4.10: qty of base for a spot sell, qty*price of quote for a
// spot buy, initial_margin+conservative_fee of collateral for futures.
func lockForOrder(ctx context.Context, tx *sql.Tx, l *ledger.Ledger, wallet *ledger.Wallet, o *order.Order, params market.Params) error {
	if !o.IsFutures() {
		amount := o.Quantity
		if o.Side == order.Buy {
			amount = o.Quantity.Mul(o.Price)
		}
		return l.Lock(ctx, tx, wallet, amount)
	}
	notional := margin.Notional(o.Quantity, params.ContractSize, o.Price)
	im := margin.InitialMargin(notional, o.Leverage)
	fee := params.FeeBase(o.Quantity, o.Price).Mul(params.TakerFeeRate)
	return l.Lock(ctx, tx, wallet, im.Add(fee))
}

func validatePlace(req PlaceRequest, params market.Params) error {
	err := vala.BeginValidation().Validate(
		vala.StringNotEmpty(req.Pair.String(), "pair"),
		vala.GreaterThan(req.Quantity.Float64(), 0.0, "quantity"),
	).Check()
	if err != nil {
		return xerrors.Wrap(xerrors.Validation, err, "place_order")
	}

	if req.Type == order.Limit && !req.HasPrice {
		return xerrors.New(xerrors.Validation, "limit order requires a price")
	}
	if req.Type == order.Market && req.HasPrice {
		return xerrors.New(xerrors.Validation, "market order must not specify a price")
	}
	if req.Quantity.LessThan(params.MinQuantity) {
		return xerrors.New(xerrors.Validation, "quantity %s below minimum %s", req.Quantity, params.MinQuantity)
	}
	if req.HasPrice && !params.RespectsTick(req.Price) {
		return xerrors.New(xerrors.Validation, "price %s does not respect tick size %s", req.Price, params.TickSize)
	}
	if req.Pair.IsFutures() {
		if !req.CollateralCurrency.IsCollateral() {
			return xerrors.New(xerrors.Validation, "futures order requires a collateral currency")
		}
		if req.Leverage < 1 || req.Leverage > params.MaxLeverage {
			return xerrors.New(xerrors.Validation, "leverage %d outside [1, %d]", req.Leverage, params.MaxLeverage)
		}
	}
	return nil
}
