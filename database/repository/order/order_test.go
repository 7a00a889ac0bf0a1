package order

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/gofrs/uuid"
	"github.com/stretchr/testify/require"

	"github.com/spikeycoins/tradeengine/currency"
	"github.com/spikeycoins/tradeengine/database/testhelpers"
	domainorder "github.com/spikeycoins/tradeengine/exchange/order"
	"github.com/spikeycoins/tradeengine/money"
)

func newTestDB(t *testing.T) *sql.DB {
	t.Helper()
	conn, err := testhelpers.ConnectSQLite()
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, testhelpers.CloseDatabase(conn)) })
	return conn.SQL
}

func newOrder(t *testing.T, side domainorder.Side, price string, qty string) *domainorder.Order {
	t.Helper()
	id, err := uuid.NewV4()
	require.NoError(t, err)
	p, err := money.NewFromString(price)
	require.NoError(t, err)
	q, err := money.NewFromString(qty)
	require.NoError(t, err)
	return &domainorder.Order{
		ID:             id,
		User:           "trader",
		Pair:           currency.USDTUSDC,
		Side:           side,
		Type:           domainorder.Limit,
		Price:          p,
		HasPrice:       true,
		Quantity:       q,
		FilledQuantity: money.Zero,
		Status:         domainorder.Open,
		CreatedAt:      time.Unix(1700000000, 0).UTC(),
	}
}

func TestInsertAndGetForUpdate_RoundTrips(t *testing.T) {
	db := newTestDB(t)
	r := New()
	o := newOrder(t, domainorder.Buy, "1.0001", "100")

	tx, err := db.Begin()
	require.NoError(t, err)
	require.NoError(t, r.Insert(context.Background(), tx, o))
	got, err := r.GetForUpdate(context.Background(), tx, o.ID)
	require.NoError(t, err)
	require.NoError(t, tx.Commit())

	require.Equal(t, o.ID, got.ID)
	require.True(t, got.Price.Equal(o.Price))
	require.True(t, got.Quantity.Equal(o.Quantity))
	require.Equal(t, domainorder.Open, got.Status)
}

func TestUpdate_PersistsFillAndStatus(t *testing.T) {
	db := newTestDB(t)
	r := New()
	o := newOrder(t, domainorder.Buy, "1.0001", "100")

	tx, err := db.Begin()
	require.NoError(t, err)
	require.NoError(t, r.Insert(context.Background(), tx, o))
	require.NoError(t, tx.Commit())

	o.FilledQuantity = money.New(100, 0)
	o.Status = domainorder.Filled
	tx2, err := db.Begin()
	require.NoError(t, err)
	require.NoError(t, r.Update(context.Background(), tx2, o))
	got, err := r.GetForUpdate(context.Background(), tx2, o.ID)
	require.NoError(t, err)
	require.NoError(t, tx2.Commit())

	require.Equal(t, domainorder.Filled, got.Status)
	require.True(t, got.FilledQuantity.Equal(money.New(100, 0)))
}

func TestListRestingForMatch_OrdersAsksAscendingAndBidsDescending(t *testing.T) {
	db := newTestDB(t)
	r := New()

	tx, err := db.Begin()
	require.NoError(t, err)
	require.NoError(t, r.Insert(context.Background(), tx, newOrder(t, domainorder.Sell, "1.0002", "10")))
	require.NoError(t, r.Insert(context.Background(), tx, newOrder(t, domainorder.Sell, "1.0001", "10")))
	require.NoError(t, r.Insert(context.Background(), tx, newOrder(t, domainorder.Buy, "0.9999", "10")))
	require.NoError(t, r.Insert(context.Background(), tx, newOrder(t, domainorder.Buy, "1.0000", "10")))
	require.NoError(t, tx.Commit())

	tx2, err := db.Begin()
	require.NoError(t, err)
	resting, err := r.ListRestingForMatch(context.Background(), tx2, currency.USDTUSDC, domainorder.Buy)
	require.NoError(t, err)
	bids, err := r.ListRestingForMatch(context.Background(), tx2, currency.USDTUSDC, domainorder.Sell)
	require.NoError(t, err)
	require.NoError(t, tx2.Commit())

	require.Len(t, resting, 2)
	require.True(t, resting[0].Price.LessThan(resting[1].Price))
	require.Len(t, bids, 2)
	require.True(t, bids[0].Price.GreaterThan(bids[1].Price))
}

func TestListRestingByPair_ExcludesTerminalOrders(t *testing.T) {
	db := newTestDB(t)
	r := New()

	open := newOrder(t, domainorder.Buy, "1.0001", "10")
	cancelled := newOrder(t, domainorder.Buy, "1.0000", "10")
	cancelled.Status = domainorder.Cancelled

	tx, err := db.Begin()
	require.NoError(t, err)
	require.NoError(t, r.Insert(context.Background(), tx, open))
	require.NoError(t, r.Insert(context.Background(), tx, cancelled))
	require.NoError(t, tx.Commit())

	resting, err := r.ListRestingByPair(context.Background(), db, currency.USDTUSDC)
	require.NoError(t, err)
	require.Len(t, resting, 1)
	require.Equal(t, open.ID, resting[0].ID)
}

func TestListByUser_FiltersByStatus(t *testing.T) {
	db := newTestDB(t)
	r := New()

	o1 := newOrder(t, domainorder.Buy, "1.0001", "10")
	o2 := newOrder(t, domainorder.Sell, "1.0002", "10")
	o2.Status = domainorder.Filled

	tx, err := db.Begin()
	require.NoError(t, err)
	require.NoError(t, r.Insert(context.Background(), tx, o1))
	require.NoError(t, r.Insert(context.Background(), tx, o2))
	require.NoError(t, tx.Commit())

	open := domainorder.Open
	got, err := r.ListByUser(context.Background(), db, "trader", &open)
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.Equal(t, o1.ID, got[0].ID)

	all, err := r.ListByUser(context.Background(), db, "trader", nil)
	require.NoError(t, err)
	require.Len(t, all, 2)
}
