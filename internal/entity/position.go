package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// Position is an account's open holding in one instrument. A row only exists
// while Quantity > 0; full liquidation deletes it.
type Position struct {
	AccountID    string          `db:"account_id" json:"account_id"`
	InstrumentID int64           `db:"instrument_id" json:"instrument_id"`
	Quantity     int64           `db:"quantity" json:"quantity"`
	AverageCost  decimal.Decimal `db:"average_cost" json:"average_cost"`
	CreatedAt    time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time       `db:"updated_at" json:"updated_at"`
}

func (p Position) TableName() string {
	return "positions"
}
