package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

type Account struct {
	ID          string          `db:"id" json:"id"`
	Username    string          `db:"username" json:"username"`
	CashBalance decimal.Decimal `db:"cash_balance" json:"cash_balance"`
	CreatedAt   time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time       `db:"updated_at" json:"updated_at"`
}

func (a Account) TableName() string {
	return "accounts"
}
