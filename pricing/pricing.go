package pricing

import (
	"context"
	"time"

	"github.com/spikeycoins/tradeengine/currency"
	"github.com/spikeycoins/tradeengine/money"
)

// WeightIndex and WeightBook are the mark-price composition weights
// from the specification.
var (
	WeightIndex = money.New(7, 1) // 0.7
	WeightBook  = money.New(3, 1) // 0.3
)

// FundingClamp bounds the funding rate to +/-1%.
var FundingClamp = money.New(1, 2) // 0.01

// BookMidSource supplies the order-book midpoint the pricing service
// blends into the mark price. orderbook.Book implements this.
type BookMidSource interface {
	Mid(ctx context.Context, pair currency.Pair) (mid money.Decimal, ok bool, err error)
}

// Service composes the index price cache and the order-book midpoint
// into mark price and funding rate.
type Service struct {
	cache *Cache
	book  BookMidSource
	now   func() time.Time
}

// NewService builds a pricing Service.
func NewService(cache *Cache, book BookMidSource) *Service {
	return &Service{cache: cache, book: book, now: time.Now}
}

// IndexPrices returns the cached (gold, silver, timestamp), per Cache.
func (s *Service) IndexPrices(ctx context.Context) Result {
	return s.cache.IndexPrices(ctx)
}

// indexFor extracts the index price of the metal a futures pair
// references.
func indexFor(pair currency.Pair, prices IndexPrices) money.Decimal {
	if pair.Base == currency.XAG {
		return prices.Silver
	}
	return prices.Gold
}

// OrderBookMid returns the midpoint of best bid and best ask for pair,
// or ok=false if either side of the book is empty.
func (s *Service) OrderBookMid(ctx context.Context, pair currency.Pair) (money.Decimal, bool, error) {
	return s.book.Mid(ctx, pair)
}

// MarkPrice returns index*W_INDEX + book_mid*W_BOOK when a book mid
// exists, else the index price alone.
func (s *Service) MarkPrice(ctx context.Context, contract currency.Pair) (money.Decimal, error) {
	idxResult := s.cache.IndexPrices(ctx)
	index := indexFor(contract, idxResult.Prices)

	mid, ok, err := s.book.Mid(ctx, contract)
	if err != nil {
		return money.Zero, err
	}
	if !ok {
		return index, nil
	}
	return index.Mul(WeightIndex).Add(mid.Mul(WeightBook)), nil
}

// FundingRate returns clamp((book_mid - index)/index, -C, +C), or zero
// when the book has no mid.
func (s *Service) FundingRate(ctx context.Context, contract currency.Pair) (money.Decimal, error) {
	idxResult := s.cache.IndexPrices(ctx)
	index := indexFor(contract, idxResult.Prices)
	if index.IsZero() {
		return money.Zero, nil
	}

	mid, ok, err := s.book.Mid(ctx, contract)
	if err != nil {
		return money.Zero, err
	}
	if !ok {
		return money.Zero, nil
	}

	raw := mid.Sub(index).Div(index)
	return money.Clamp(raw, FundingClamp.Neg(), FundingClamp), nil
}

// fundingBoundaryHours are the UTC hour boundaries funding accrues at.
var fundingBoundaryHours = []int{0, 8, 16}

// NextFundingAt returns the next UTC hour boundary in {00:00, 08:00,
// 16:00} strictly after now.
func NextFundingAt(now time.Time) time.Time {
	now = now.UTC()
	day := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	for _, h := range fundingBoundaryHours {
		candidate := day.Add(time.Duration(h) * time.Hour)
		if candidate.After(now) {
			return candidate
		}
	}
	return day.AddDate(0, 0, 1)
}

// NextFundingAt is also exposed as a Service method using the
// injected clock, for callers that want a single seam to mock time.
func (s *Service) NextFundingAt() time.Time {
	return NextFundingAt(s.now())
}

// CacheStatus reports the index price cache's health without
// triggering a refresh.
func (s *Service) CacheStatus() Status {
	return s.cache.Status()
}
