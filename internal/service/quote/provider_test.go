package quote

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/SupremeDrip/cohort-01-faraz-fin-lit/internal/entity"
)

func newProviderServer(t *testing.T, body string, wantSymbol string) *httptest.Server {
	t.Helper()

	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/query" {
			t.Errorf("path = %s, want /query", r.URL.Path)
		}
		query := r.URL.Query()
		if got := query.Get("function"); got != "GLOBAL_QUOTE" {
			t.Errorf("function = %s, want GLOBAL_QUOTE", got)
		}
		if wantSymbol != "" {
			if got := query.Get("symbol"); got != wantSymbol {
				t.Errorf("symbol = %s, want %s", got, wantSymbol)
			}
		}
		if got := query.Get("apikey"); got == "" {
			t.Error("apikey query param missing")
		}

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(body))
	}))
}

func TestAlphaVantageFetchQuote(t *testing.T) {
	body := `{
		"Global Quote": {
			"01. symbol": "RELIANCE.BSE",
			"05. price": "2461.3500",
			"08. previous close": "2456.5000",
			"09. change": "4.8500",
			"10. change percent": "0.1974%"
		}
	}`

	server := newProviderServer(t, body, "RELIANCE.BSE")
	defer server.Close()

	provider := NewAlphaVantageProvider(server.URL, "test-key")

	quote, err := provider.FetchQuote(context.Background(), "RELIANCE")
	if err != nil {
		t.Fatalf("FetchQuote failed: %v", err)
	}

	if quote.Symbol != "RELIANCE" {
		t.Errorf("symbol = %s, want RELIANCE", quote.Symbol)
	}
	if quote.Source != entity.QuoteSourceLive {
		t.Errorf("source = %s, want %s", quote.Source, entity.QuoteSourceLive)
	}
	if !quote.Price.Equal(mustDecimal("2461.35")) {
		t.Errorf("price = %s, want 2461.35", quote.Price)
	}
	if !quote.PreviousClose.Equal(mustDecimal("2456.50")) {
		t.Errorf("previous close = %s, want 2456.50", quote.PreviousClose)
	}
	if !quote.Change.Equal(mustDecimal("4.85")) {
		t.Errorf("change = %s, want 4.85", quote.Change)
	}
	if !quote.ChangePercent.Equal(mustDecimal("0.20")) {
		t.Errorf("change percent = %s, want 0.20", quote.ChangePercent)
	}
}

func TestAlphaVantageErrorPayloads(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantErr error
	}{
		{
			name:    "quota note",
			body:    `{"Note": "Thank you for using Alpha Vantage! Our standard API call frequency is 5 calls per minute."}`,
			wantErr: ErrQuotaExceeded,
		},
		{
			name:    "information payload",
			body:    `{"Information": "The demo API key is for demo purposes only."}`,
			wantErr: ErrQuotaExceeded,
		},
		{
			name:    "empty quote",
			body:    `{"Global Quote": {}}`,
			wantErr: ErrEmptyQuote,
		},
		{
			name:    "zero price",
			body:    `{"Global Quote": {"05. price": "0.0000", "08. previous close": "100"}}`,
			wantErr: ErrInvalidPrice,
		},
		{
			name:    "garbage price",
			body:    `{"Global Quote": {"05. price": "n/a"}}`,
			wantErr: ErrInvalidPrice,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := newProviderServer(t, tt.body, "")
			defer server.Close()

			provider := NewAlphaVantageProvider(server.URL, "test-key")

			_, err := provider.FetchQuote(context.Background(), "TCS")
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestAlphaVantageServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	provider := NewAlphaVantageProvider(server.URL, "test-key")

	if _, err := provider.FetchQuote(context.Background(), "TCS"); err == nil {
		t.Fatal("expected error on 500 response")
	}
}

func TestAlphaVantageMissingAPIKey(t *testing.T) {
	provider := NewAlphaVantageProvider("https://example.invalid", "")

	if _, err := provider.FetchQuote(context.Background(), "TCS"); err == nil {
		t.Fatal("expected error without api key")
	}
}
