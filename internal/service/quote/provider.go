package quote

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/SupremeDrip/cohort-01-faraz-fin-lit/internal/entity"
	"github.com/go-resty/resty/v2"
	"github.com/shopspring/decimal"
)

var (
	ErrQuotaExceeded = errors.New("provider quota exceeded")
	ErrEmptyQuote    = errors.New("provider returned no quote data")
	ErrInvalidPrice  = errors.New("provider returned a non-positive price")
)

// Provider fetches one live quote per call. Every error path is handled by
// the fetch worker via fallback synthesis, never surfaced to callers.
type Provider interface {
	FetchQuote(ctx context.Context, symbol string) (entity.Quote, error)
}

const defaultProviderTimeout = 15 * time.Second

// AlphaVantageProvider reads Alpha Vantage's GLOBAL_QUOTE endpoint. NSE
// symbols are mapped to their BSE listing, the format Alpha Vantage serves.
type AlphaVantageProvider struct {
	client *resty.Client
	apiKey string
}

func NewAlphaVantageProvider(baseURL, apiKey string) *AlphaVantageProvider {
	client := resty.New().
		SetBaseURL(strings.TrimRight(baseURL, "/")).
		SetTimeout(defaultProviderTimeout)

	return &AlphaVantageProvider{
		client: client,
		apiKey: strings.TrimSpace(apiKey),
	}
}

type globalQuotePayload struct {
	Note        string            `json:"Note"`
	Information string            `json:"Information"`
	GlobalQuote map[string]string `json:"Global Quote"`
}

func (p *AlphaVantageProvider) FetchQuote(ctx context.Context, symbol string) (entity.Quote, error) {
	if p.apiKey == "" {
		return entity.Quote{}, errors.New("provider api key not configured")
	}

	var payload globalQuotePayload
	resp, err := p.client.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"function": "GLOBAL_QUOTE",
			"symbol":   bseSymbol(symbol),
			"apikey":   p.apiKey,
		}).
		SetResult(&payload).
		Get("/query")
	if err != nil {
		return entity.Quote{}, fmt.Errorf("fetch quote for %s: %w", symbol, err)
	}
	if !resp.IsSuccess() {
		return entity.Quote{}, fmt.Errorf("fetch quote for %s: status %d", symbol, resp.StatusCode())
	}

	// Alpha Vantage reports quota exhaustion as a 200 with a Note payload.
	if payload.Note != "" || payload.Information != "" {
		return entity.Quote{}, ErrQuotaExceeded
	}

	if len(payload.GlobalQuote) == 0 {
		return entity.Quote{}, ErrEmptyQuote
	}

	price := parseQuoteField(payload.GlobalQuote["05. price"])
	previousClose := parseQuoteField(payload.GlobalQuote["08. previous close"])
	change := parseQuoteField(payload.GlobalQuote["09. change"])
	changePercent := parseQuoteField(strings.TrimSuffix(payload.GlobalQuote["10. change percent"], "%"))

	if !price.IsPositive() {
		return entity.Quote{}, ErrInvalidPrice
	}

	return entity.Quote{
		Symbol:        symbol,
		Price:         price.Round(2),
		PreviousClose: previousClose.Round(2),
		Change:        change.Round(2),
		ChangePercent: changePercent.Round(2),
		Source:        entity.QuoteSourceLive,
	}, nil
}

func bseSymbol(symbol string) string {
	return symbol + ".BSE"
}

func parseQuoteField(raw string) decimal.Decimal {
	value, err := decimal.NewFromString(strings.TrimSpace(raw))
	if err != nil {
		return decimal.Zero
	}
	return value
}
