package ledger

import (
	"time"

	"github.com/gofrs/uuid"

	"github.com/spikeycoins/tradeengine/currency"
	"github.com/spikeycoins/tradeengine/money"
)

// Wallet is a user's balance in one currency. Invariant: 0 <= Available
// <= Balance, checked after every mutation.
type Wallet struct {
	ID        uuid.UUID
	User      string
	Currency  currency.Code
	Balance   money.Decimal
	Available money.Decimal
}

// Kind enumerates the reasons a ledger entry exists.
type Kind string

// Recognized ledger entry kinds.
const (
	Deposit        Kind = "deposit"
	Withdrawal     Kind = "withdrawal"
	WithdrawalFee  Kind = "withdrawal_fee"
	TradeDebit     Kind = "trade_debit"
	TradeCredit    Kind = "trade_credit"
	Fee            Kind = "fee"
	MarginLock     Kind = "margin_lock"
	MarginRelease  Kind = "margin_release"
	Liquidation    Kind = "liquidation"
	Funding        Kind = "funding"
)

// Transaction is an append-only ledger entry recording one balance
// delta on one wallet.
type Transaction struct {
	ID            uuid.UUID
	WalletID      uuid.UUID
	Amount        money.Decimal // signed; negative debits, positive credits
	BalanceAfter  money.Decimal
	Kind          Kind
	Reference     string // order/trade/position id, optional
	Description   string
	CreatedAt     time.Time
}
