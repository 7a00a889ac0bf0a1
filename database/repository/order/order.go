// Package order persists exchange/order.Order rows and implements the
// resting-order queries the matching engine and order-book query need.
package order

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/gofrs/uuid"
	"github.com/volatiletech/null"

	"github.com/spikeycoins/tradeengine/currency"
	"github.com/spikeycoins/tradeengine/database/repository"
	domainorder "github.com/spikeycoins/tradeengine/exchange/order"
	"github.com/spikeycoins/tradeengine/money"
)

// Repository persists orders over database/sql.
type Repository struct{}

// New constructs a Repository.
func New() *Repository { return &Repository{} }

// Insert writes a newly admitted order.
func (r *Repository) Insert(ctx context.Context, tx *sql.Tx, o *domainorder.Order) error {
	var price null.String
	if o.HasPrice {
		price = null.StringFrom(o.Price.String())
	}
	var collateral null.String
	if o.CollateralCurrency != "" {
		collateral = null.StringFrom(string(o.CollateralCurrency))
	}
	var leverage null.Int
	if o.Leverage > 0 {
		leverage = null.IntFrom(o.Leverage)
	}

	_, err := tx.ExecContext(ctx,
		`INSERT INTO orders (id, user_id, pair, side, type, price, quantity, filled_quantity, status, collateral_currency, leverage, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		o.ID.String(), o.User, o.Pair.String(), o.Side.String(), o.Type.String(),
		price, o.Quantity.String(), o.FilledQuantity.String(), o.Status.String(),
		collateral, leverage, o.CreatedAt)
	if err != nil {
		return fmt.Errorf("order: insert: %w", err)
	}
	return nil
}

// Update persists FilledQuantity and Status after a match or cancel.
func (r *Repository) Update(ctx context.Context, tx *sql.Tx, o *domainorder.Order) error {
	_, err := tx.ExecContext(ctx,
		`UPDATE orders SET filled_quantity = ?, status = ? WHERE id = ?`,
		o.FilledQuantity.String(), o.Status.String(), o.ID.String())
	if err != nil {
		return fmt.Errorf("order: update: %w", err)
	}
	return nil
}

// GetForUpdate returns the order with the given id, locked for the
// duration of tx. It returns sql.ErrNoRows if no such order exists.
func (r *Repository) GetForUpdate(ctx context.Context, tx *sql.Tx, id uuid.UUID) (*domainorder.Order, error) {
	row := tx.QueryRowContext(ctx, selectColumns()+` WHERE id = ?`+repository.LockClause(), id.String())
	return scanOrder(row)
}

// ListRestingForMatch returns resting (open/partial) orders on the
// opposite side of pair, ordered price-then-time so the matcher can
// walk them in strict price-time priority: ascending price for asks,
// descending price for bids, ascending creation time within a price
// level. Every returned row is locked for the duration of tx
// (repository.LockClause), acquired in this same scan order, honoring
// the "lock before mutate, in scan order" rule from the concurrency
// model (spec §5).
func (r *Repository) ListRestingForMatch(ctx context.Context, tx *sql.Tx, pair currency.Pair, side domainorder.Side) ([]*domainorder.Order, error) {
	orderBy := "price ASC, created_at ASC"
	if side == domainorder.Sell {
		// incoming sell matches resting bids: highest price first
		orderBy = "price DESC, created_at ASC"
	}
	query := selectColumns() + fmt.Sprintf(
		` WHERE pair = ? AND side = ? AND status IN ('open', 'partial') ORDER BY %s`, orderBy) + repository.LockClause()

	rows, err := tx.QueryContext(ctx, query, pair.String(), side.Opposite().String())
	if err != nil {
		return nil, fmt.Errorf("order: list resting: %w", err)
	}
	defer rows.Close()
	return scanOrders(rows)
}

// ListRestingByPair returns every resting order on pair (both sides),
// for order-book aggregation. db may be a plain *sql.DB since this is a
// read not requiring a row lock.
func (r *Repository) ListRestingByPair(ctx context.Context, db interface {
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
}, pair currency.Pair) ([]*domainorder.Order, error) {
	rows, err := db.QueryContext(ctx,
		selectColumns()+` WHERE pair = ? AND status IN ('open', 'partial')`, pair.String())
	if err != nil {
		return nil, fmt.Errorf("order: list by pair: %w", err)
	}
	defer rows.Close()
	return scanOrders(rows)
}

// ListByUser returns a user's orders, optionally filtered to one
// status.
func (r *Repository) ListByUser(ctx context.Context, db interface {
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
}, user string, status *domainorder.Status) ([]*domainorder.Order, error) {
	query := selectColumns() + ` WHERE user_id = ?`
	args := []interface{}{user}
	if status != nil {
		query += ` AND status = ?`
		args = append(args, status.String())
	}
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("order: list by user: %w", err)
	}
	defer rows.Close()
	return scanOrders(rows)
}

func selectColumns() string {
	return `SELECT id, user_id, pair, side, type, price, quantity, filled_quantity, status, collateral_currency, leverage, created_at FROM orders`
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanOrder(s rowScanner) (*domainorder.Order, error) {
	var idStr, user, pairStr, sideStr, typeStr, statusStr, qty, filled string
	var price, collateral null.String
	var leverage null.Int
	var createdAt sql.NullTime

	if err := s.Scan(&idStr, &user, &pairStr, &sideStr, &typeStr, &price, &qty, &filled, &statusStr, &collateral, &leverage, &createdAt); err != nil {
		return nil, err
	}

	id, err := uuid.FromString(idStr)
	if err != nil {
		return nil, err
	}
	pair, ok := currency.ParsePair(pairStr)
	if !ok {
		return nil, fmt.Errorf("order: unrecognized pair %q", pairStr)
	}
	quantity, err := money.NewFromString(qty)
	if err != nil {
		return nil, err
	}
	filledQty, err := money.NewFromString(filled)
	if err != nil {
		return nil, err
	}

	o := &domainorder.Order{
		ID:             id,
		User:           user,
		Pair:           pair,
		Side:           parseSide(sideStr),
		Type:           parseType(typeStr),
		Quantity:       quantity,
		FilledQuantity: filledQty,
		Status:         parseStatus(statusStr),
		CreatedAt:      createdAt.Time,
	}
	if price.Valid && price.String != "" {
		p, err := money.NewFromString(price.String)
		if err != nil {
			return nil, err
		}
		o.Price = p
		o.HasPrice = true
	}
	if collateral.Valid {
		o.CollateralCurrency = currency.NewCode(collateral.String)
	}
	if leverage.Valid {
		o.Leverage = leverage.Int
	}
	return o, nil
}

func scanOrders(rows *sql.Rows) ([]*domainorder.Order, error) {
	var out []*domainorder.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

func parseSide(s string) domainorder.Side {
	if s == "sell" {
		return domainorder.Sell
	}
	return domainorder.Buy
}

func parseType(s string) domainorder.Type {
	if s == "market" {
		return domainorder.Market
	}
	return domainorder.Limit
}

func parseStatus(s string) domainorder.Status {
	switch s {
	case "partial":
		return domainorder.Partial
	case "filled":
		return domainorder.Filled
	case "cancelled":
		return domainorder.Cancelled
	default:
		return domainorder.Open
	}
}
