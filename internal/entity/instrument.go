package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

type Instrument struct {
	ID             int64           `db:"id" json:"id"`
	Symbol         string          `db:"symbol" json:"symbol"`
	CompanyName    string          `db:"company_name" json:"company_name"`
	ReferencePrice decimal.Decimal `db:"reference_price" json:"reference_price"`
	LastUpdated    time.Time       `db:"last_updated" json:"last_updated"`
}

func (i Instrument) TableName() string {
	return "instruments"
}

// PricePoint is one day of the instrument's historical series. The series is
// read-only for the engine; rows are loaded by external import tooling.
type PricePoint struct {
	InstrumentID int64           `db:"instrument_id" json:"instrument_id"`
	Date         time.Time       `db:"date" json:"date"`
	Open         decimal.Decimal `db:"open" json:"open"`
	High         decimal.Decimal `db:"high" json:"high"`
	Low          decimal.Decimal `db:"low" json:"low"`
	Close        decimal.Decimal `db:"close" json:"close"`
}

func (p PricePoint) TableName() string {
	return "instrument_price_history"
}
