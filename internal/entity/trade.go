package entity

import (
	"context"

	"github.com/shopspring/decimal"
)

// TradeTx is the set of writes available inside one settlement transaction.
// Implementations must guarantee that AccountForUpdate blocks concurrent
// trades on the same account until the transaction ends.
type TradeTx interface {
	AccountForUpdate(ctx context.Context, accountID string) (*Account, error)
	PositionForUpdate(ctx context.Context, accountID string, instrumentID int64) (*Position, error)
	UpdateAccountCash(ctx context.Context, accountID string, cash decimal.Decimal) error
	UpsertPosition(ctx context.Context, position *Position) error
	DeletePosition(ctx context.Context, accountID string, instrumentID int64) error
	AppendLedgerEntry(ctx context.Context, entry *LedgerEntry) error
}

// TradeStore runs fn inside a transaction; all writes issued through the
// TradeTx commit together or not at all.
type TradeStore interface {
	WithinTransaction(ctx context.Context, fn func(ctx context.Context, tx TradeTx) error) error
}
