// Package orderbook aggregates resting orders into price-level depth
// for display and for the pricing service's mid-price input.
package orderbook

import (
	"context"
	"database/sql"
	"sort"

	"github.com/spikeycoins/tradeengine/currency"
	"github.com/spikeycoins/tradeengine/exchange/order"
	"github.com/spikeycoins/tradeengine/money"
)

// DefaultDepth and MaxDepth bound the number of price levels returned.
const (
	DefaultDepth = 20
	MaxDepth     = 50
)

// Level is one aggregated price point: every resting order at exactly
// this price, summed.
type Level struct {
	Price        money.Decimal
	RemainingQty money.Decimal
	OrderCount   int
}

// Depth is the aggregated order book for one pair.
type Depth struct {
	Bids []Level // descending price
	Asks []Level // ascending price
}

// OrderRepository is the read contract Book needs. It is satisfied by
// database/repository/order.Repository.
type OrderRepository interface {
	ListRestingByPair(ctx context.Context, db interface {
		QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	}, pair currency.Pair) ([]*order.Order, error)
}

// Book aggregates resting orders for one database connection.
type Book struct {
	db   *sql.DB
	repo OrderRepository
}

// New constructs a Book.
func New(db *sql.DB, repo OrderRepository) *Book {
	return &Book{db: db, repo: repo}
}

// Query returns the top depth levels per side for pair, bids sorted
// descending and asks ascending. depth is clamped to [1, MaxDepth]; a
// zero or negative input is treated as DefaultDepth.
func (b *Book) Query(ctx context.Context, pair currency.Pair, depth int) (Depth, error) {
	if depth <= 0 {
		depth = DefaultDepth
	}
	if depth > MaxDepth {
		depth = MaxDepth
	}

	orders, err := b.repo.ListRestingByPair(ctx, b.db, pair)
	if err != nil {
		return Depth{}, err
	}

	bidLevels := aggregate(orders, order.Buy)
	askLevels := aggregate(orders, order.Sell)

	sort.Slice(bidLevels, func(i, j int) bool { return bidLevels[i].Price.GreaterThan(bidLevels[j].Price) })
	sort.Slice(askLevels, func(i, j int) bool { return askLevels[i].Price.LessThan(askLevels[j].Price) })

	if len(bidLevels) > depth {
		bidLevels = bidLevels[:depth]
	}
	if len(askLevels) > depth {
		askLevels = askLevels[:depth]
	}
	return Depth{Bids: bidLevels, Asks: askLevels}, nil
}

func aggregate(orders []*order.Order, side order.Side) []Level {
	byPrice := map[string]*Level{}
	for _, o := range orders {
		if o.Side != side || !o.HasPrice {
			continue
		}
		key := o.Price.String()
		lvl, ok := byPrice[key]
		if !ok {
			lvl = &Level{Price: o.Price}
			byPrice[key] = lvl
		}
		lvl.RemainingQty = lvl.RemainingQty.Add(o.Remaining())
		lvl.OrderCount++
	}
	out := make([]Level, 0, len(byPrice))
	for _, lvl := range byPrice {
		out = append(out, *lvl)
	}
	return out
}

// BestBid returns the highest resting buy price, if any.
func (d Depth) BestBid() (money.Decimal, bool) {
	if len(d.Bids) == 0 {
		return money.Zero, false
	}
	return d.Bids[0].Price, true
}

// BestAsk returns the lowest resting sell price, if any.
func (d Depth) BestAsk() (money.Decimal, bool) {
	if len(d.Asks) == 0 {
		return money.Zero, false
	}
	return d.Asks[0].Price, true
}

// Mid returns the midpoint of best bid and best ask, implementing
// pricing.BookMidSource. ok is false unless both sides have at least
// one resting order.
func (b *Book) Mid(ctx context.Context, pair currency.Pair) (money.Decimal, bool, error) {
	d, err := b.Query(ctx, pair, MaxDepth)
	if err != nil {
		return money.Zero, false, err
	}
	bid, bidOK := d.BestBid()
	ask, askOK := d.BestAsk()
	if !bidOK || !askOK {
		return money.Zero, false, nil
	}
	two := money.New(2, 0)
	return bid.Add(ask).Div(two), true, nil
}
