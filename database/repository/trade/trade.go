// Package trade persists immutable fill records.
package trade

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/gofrs/uuid"

	"github.com/spikeycoins/tradeengine/currency"
	"github.com/spikeycoins/tradeengine/money"
)

// Data is one matched fill, maker and taker sides together.
type Data struct {
	ID           uuid.UUID
	Pair         currency.Pair
	MakerOrderID uuid.UUID
	TakerOrderID uuid.UUID
	MakerUser    string
	TakerUser    string
	Price        money.Decimal
	Quantity     money.Decimal
	MakerFee     money.Decimal
	TakerFee     money.Decimal
	CreatedAt    time.Time
}

// Repository persists trades over database/sql.
type Repository struct{}

// New constructs a Repository.
func New() *Repository { return &Repository{} }

// Insert appends a trade row.
func (r *Repository) Insert(ctx context.Context, tx *sql.Tx, t *Data) error {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO trades (id, pair, maker_order_id, taker_order_id, maker_user_id, taker_user_id, price, quantity, maker_fee, taker_fee, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID.String(), t.Pair.String(), t.MakerOrderID.String(), t.TakerOrderID.String(),
		t.MakerUser, t.TakerUser, t.Price.String(), t.Quantity.String(),
		t.MakerFee.String(), t.TakerFee.String(), t.CreatedAt)
	if err != nil {
		return fmt.Errorf("trade: insert: %w", err)
	}
	return nil
}

// Recent returns the most recent trades for pair, newest first.
func (r *Repository) Recent(ctx context.Context, db interface {
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
}, pair currency.Pair, limit int) ([]*Data, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT id, pair, maker_order_id, taker_order_id, maker_user_id, taker_user_id, price, quantity, maker_fee, taker_fee, created_at
		 FROM trades WHERE pair = ? ORDER BY created_at DESC LIMIT ?`,
		pair.String(), limit)
	if err != nil {
		return nil, fmt.Errorf("trade: recent query: %w", err)
	}
	defer rows.Close()

	var out []*Data
	for rows.Next() {
		d, err := scanTrade(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func scanTrade(rows *sql.Rows) (*Data, error) {
	var idStr, pairStr, makerOrderStr, takerOrderStr, makerUser, takerUser, price, qty, makerFee, takerFee string
	var createdAt time.Time
	if err := rows.Scan(&idStr, &pairStr, &makerOrderStr, &takerOrderStr, &makerUser, &takerUser, &price, &qty, &makerFee, &takerFee, &createdAt); err != nil {
		return nil, err
	}
	id, err := uuid.FromString(idStr)
	if err != nil {
		return nil, err
	}
	makerOrderID, err := uuid.FromString(makerOrderStr)
	if err != nil {
		return nil, err
	}
	takerOrderID, err := uuid.FromString(takerOrderStr)
	if err != nil {
		return nil, err
	}
	pair, ok := currency.ParsePair(pairStr)
	if !ok {
		return nil, fmt.Errorf("trade: unrecognized pair %q", pairStr)
	}
	priceDec, err := money.NewFromString(price)
	if err != nil {
		return nil, err
	}
	qtyDec, err := money.NewFromString(qty)
	if err != nil {
		return nil, err
	}
	makerFeeDec, err := money.NewFromString(makerFee)
	if err != nil {
		return nil, err
	}
	takerFeeDec, err := money.NewFromString(takerFee)
	if err != nil {
		return nil, err
	}
	return &Data{
		ID: id, Pair: pair, MakerOrderID: makerOrderID, TakerOrderID: takerOrderID,
		MakerUser: makerUser, TakerUser: takerUser, Price: priceDec, Quantity: qtyDec,
		MakerFee: makerFeeDec, TakerFee: takerFeeDec, CreatedAt: createdAt,
	}, nil
}
