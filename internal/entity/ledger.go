package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

type TradeSide string

const (
	TradeSideBuy  TradeSide = "BUY"
	TradeSideSell TradeSide = "SELL"
)

// LedgerEntry is the immutable record of one executed trade. Entries are
// append-only; the account's cash balance is always reconstructible by
// replaying them.
type LedgerEntry struct {
	ID            int64           `db:"id" json:"id"`
	AccountID     string          `db:"account_id" json:"account_id"`
	InstrumentID  int64           `db:"instrument_id" json:"instrument_id"`
	Side          TradeSide       `db:"side" json:"side"`
	Quantity      int64           `db:"quantity" json:"quantity"`
	PricePerShare decimal.Decimal `db:"price_per_share" json:"price_per_share"`
	TotalAmount   decimal.Decimal `db:"total_amount" json:"total_amount"`
	ExecutedAt    time.Time       `db:"executed_at" json:"executed_at"`

	// RealizedPnl is computed on sells, (price - average cost) x quantity.
	// Informational only, not persisted as a ledger column.
	RealizedPnl *decimal.Decimal `db:"-" json:"realized_pnl,omitempty"`
}

func (l LedgerEntry) TableName() string {
	return "ledger_entries"
}
