// Package position persists position.Position rows.
package position

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/gofrs/uuid"

	"github.com/spikeycoins/tradeengine/currency"
	"github.com/spikeycoins/tradeengine/database/repository"
	"github.com/spikeycoins/tradeengine/exchange/order"
	"github.com/spikeycoins/tradeengine/money"
	domainposition "github.com/spikeycoins/tradeengine/position"
)

// Repository persists positions over database/sql.
type Repository struct{}

// New constructs a Repository.
func New() *Repository { return &Repository{} }

// Insert writes a newly opened position.
func (r *Repository) Insert(ctx context.Context, tx *sql.Tx, p *domainposition.Position) error {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO positions (id, user_id, contract, side, entry_price, quantity, margin, collateral_currency, leverage, liquidation_price, realized_pnl, last_funding_at, status, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID.String(), p.User, p.Contract.String(), p.Side.String(), p.EntryPrice.String(),
		p.Quantity.String(), p.Margin.String(), string(p.CollateralCurrency), p.Leverage,
		p.LiquidationPrice.String(), p.RealizedPnL.String(), nullableTime(p.LastFundingAt),
		p.Status.String(), p.CreatedAt)
	if err != nil {
		return fmt.Errorf("position: insert: %w", err)
	}
	return nil
}

// Update persists every mutable field of p (everything but the
// identity fields set at open).
func (r *Repository) Update(ctx context.Context, tx *sql.Tx, p *domainposition.Position) error {
	_, err := tx.ExecContext(ctx,
		`UPDATE positions SET entry_price = ?, quantity = ?, margin = ?, liquidation_price = ?,
		 realized_pnl = ?, last_funding_at = ?, status = ? WHERE id = ?`,
		p.EntryPrice.String(), p.Quantity.String(), p.Margin.String(), p.LiquidationPrice.String(),
		p.RealizedPnL.String(), nullableTime(p.LastFundingAt), p.Status.String(), p.ID.String())
	if err != nil {
		return fmt.Errorf("position: update: %w", err)
	}
	return nil
}

// GetForUpdate returns and locks the position with the given id for
// the duration of tx (repository.LockClause), per spec §5.
func (r *Repository) GetForUpdate(ctx context.Context, tx *sql.Tx, id uuid.UUID) (*domainposition.Position, error) {
	row := tx.QueryRowContext(ctx, selectColumns()+` WHERE id = ?`+repository.LockClause(), id.String())
	return scanPosition(row)
}

// FindOpen returns the user's open position on contract with the given
// side, or nil if none exists, locked for the duration of tx
// (repository.LockClause) since settlement goes on to mutate it in the
// same transaction. At most one open position per (user, contract,
// side) is ever created by settlement.
func (r *Repository) FindOpen(ctx context.Context, tx *sql.Tx, user string, contract currency.Pair, side order.PositionSide) (*domainposition.Position, error) {
	row := tx.QueryRowContext(ctx,
		selectColumns()+` WHERE user_id = ? AND contract = ? AND side = ? AND status = 'open'`+repository.LockClause(),
		user, contract.String(), side.String())
	p, err := scanPosition(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return p, nil
}

// ListOpenByContract returns every open position on contract, locked
// for the duration of tx (repository.LockClause), for the funding
// scheduler and the liquidation sweep to mutate in scan order.
func (r *Repository) ListOpenByContract(ctx context.Context, tx *sql.Tx, contract currency.Pair) ([]*domainposition.Position, error) {
	rows, err := tx.QueryContext(ctx, selectColumns()+` WHERE contract = ? AND status = 'open'`+repository.LockClause(), contract.String())
	if err != nil {
		return nil, fmt.Errorf("position: list open by contract: %w", err)
	}
	defer rows.Close()
	return scanPositions(rows)
}

// ListByUser returns a user's positions, optionally filtered to one
// status.
func (r *Repository) ListByUser(ctx context.Context, db interface {
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
}, user string, status *domainposition.Status) ([]*domainposition.Position, error) {
	query := selectColumns() + ` WHERE user_id = ?`
	args := []interface{}{user}
	if status != nil {
		query += ` AND status = ?`
		args = append(args, status.String())
	}
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("position: list by user: %w", err)
	}
	defer rows.Close()
	return scanPositions(rows)
}

func selectColumns() string {
	return `SELECT id, user_id, contract, side, entry_price, quantity, margin, collateral_currency, leverage, liquidation_price, realized_pnl, last_funding_at, status, created_at FROM positions`
}

func nullableTime(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return *t
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanPosition(s rowScanner) (*domainposition.Position, error) {
	var idStr, user, contractStr, sideStr, collateral, statusStr string
	var entryPrice, quantity, margin, liqPrice, realizedPnL string
	var leverage int
	var lastFunding sql.NullTime
	var createdAt time.Time

	if err := s.Scan(&idStr, &user, &contractStr, &sideStr, &entryPrice, &quantity, &margin,
		&collateral, &leverage, &liqPrice, &realizedPnL, &lastFunding, &statusStr, &createdAt); err != nil {
		return nil, err
	}

	id, err := uuid.FromString(idStr)
	if err != nil {
		return nil, err
	}
	contract, ok := currency.ParsePair(contractStr)
	if !ok {
		return nil, fmt.Errorf("position: unrecognized contract %q", contractStr)
	}

	p := &domainposition.Position{
		ID:                 id,
		User:               user,
		Contract:           contract,
		Side:               parseSide(sideStr),
		CollateralCurrency: currency.NewCode(collateral),
		Leverage:           leverage,
		Status:             parseStatus(statusStr),
		CreatedAt:          createdAt,
	}
	if p.EntryPrice, err = money.NewFromString(entryPrice); err != nil {
		return nil, err
	}
	if p.Quantity, err = money.NewFromString(quantity); err != nil {
		return nil, err
	}
	if p.Margin, err = money.NewFromString(margin); err != nil {
		return nil, err
	}
	if p.LiquidationPrice, err = money.NewFromString(liqPrice); err != nil {
		return nil, err
	}
	if p.RealizedPnL, err = money.NewFromString(realizedPnL); err != nil {
		return nil, err
	}
	if lastFunding.Valid {
		t := lastFunding.Time
		p.LastFundingAt = &t
	}
	return p, nil
}

func scanPositions(rows *sql.Rows) ([]*domainposition.Position, error) {
	var out []*domainposition.Position
	for rows.Next() {
		p, err := scanPosition(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func parseSide(s string) order.PositionSide {
	if s == "short" {
		return order.Short
	}
	return order.Long
}

func parseStatus(s string) domainposition.Status {
	switch s {
	case "closed":
		return domainposition.Closed
	case "liquidated":
		return domainposition.Liquidated
	default:
		return domainposition.OpenStatus
	}
}
