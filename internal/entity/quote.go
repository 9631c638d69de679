package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

type QuoteSource string

const (
	QuoteSourceLive       QuoteSource = "live"
	QuoteSourceHistorical QuoteSource = "historical"
	QuoteSourceSynthetic  QuoteSource = "synthetic"
)

// Quote is a point-in-time price reading for an instrument. Quotes are
// ephemeral; they live in the quote cache and are never persisted.
type Quote struct {
	Symbol        string          `json:"symbol"`
	Price         decimal.Decimal `json:"price"`
	PreviousClose decimal.Decimal `json:"previous_close"`
	Change        decimal.Decimal `json:"change"`
	ChangePercent decimal.Decimal `json:"change_percent"`
	Source        QuoteSource     `json:"source"`
	RetrievedAt   time.Time       `json:"retrieved_at"`
}
