package quote

import (
	"math/rand"
	"time"

	"github.com/SupremeDrip/cohort-01-faraz-fin-lit/internal/entity"
	"github.com/shopspring/decimal"
)

// defaultBasePrice anchors synthetic quotes for symbols with no known
// reference price.
const defaultBasePrice = 1000

// referencePrices are the fixed per-symbol anchors for fallback synthesis,
// covering the NSE instrument universe shipped with the simulator.
var referencePrices = map[string]float64{
	"RELIANCE":   2456.50,
	"TCS":        3678.25,
	"HDFCBANK":   1632.75,
	"INFY":       1456.80,
	"ICICIBANK":  945.30,
	"HINDUNILVR": 2587.60,
	"ITC":        456.75,
	"SBIN":       612.40,
	"BHARTIARTL": 1234.80,
	"KOTAKBANK":  1789.50,
	"LT":         3456.20,
	"AXISBANK":   1045.60,
	"ASIANPAINT": 3201.40,
	"MARUTI":     11234.50,
	"SUNPHARMA":  1456.30,
	"TITAN":      3456.70,
	"ULTRACEMCO": 9876.40,
	"BAJFINANCE": 6543.20,
	"NESTLEIND":  23456.80,
	"HCLTECH":    1234.50,
	"WIPRO":      456.80,
	"POWERGRID":  234.60,
	"NTPC":       345.20,
	"ONGC":       234.50,
	"COALINDIA":  345.60,
	"TATAMOTORS": 876.40,
	"TATASTEEL":  134.50,
	"JSWSTEEL":   876.30,
	"INDUSINDBK": 1345.60,
	"ADANIPORTS": 1234.50,
	"TECHM":      1234.50,
	"BAJAJFINSV": 1567.80,
	"DRREDDY":    5678.40,
	"CIPLA":      1234.50,
	"EICHERMOT":  4567.30,
	"HEROMOTOCO": 4321.50,
	"GRASIM":     2345.60,
	"BRITANNIA":  4876.50,
	"BAJAJ-AUTO": 8765.30,
	"HINDALCO":   567.40,
	"BPCL":       567.80,
}

// syntheticQuote derives a fallback quote from the symbol's reference price
// with a bounded perturbation of at most +-2%. Previous close stays at the
// unperturbed reference so change and percent remain consistent.
func syntheticQuote(symbol string, rng *rand.Rand, now time.Time) entity.Quote {
	base, ok := referencePrices[symbol]
	if !ok {
		base = defaultBasePrice
	}

	variation := (rng.Float64() - 0.5) * 0.04
	previousClose := decimal.NewFromFloat(base).Round(2)
	price := decimal.NewFromFloat(base * (1 + variation)).Round(2)
	change := price.Sub(previousClose)
	changePercent := change.Div(previousClose).Mul(decimal.NewFromInt(100)).Round(2)

	return entity.Quote{
		Symbol:        symbol,
		Price:         price,
		PreviousClose: previousClose,
		Change:        change,
		ChangePercent: changePercent,
		Source:        entity.QuoteSourceSynthetic,
		RetrievedAt:   now,
	}
}
