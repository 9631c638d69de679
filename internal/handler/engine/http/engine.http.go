package http

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/SupremeDrip/cohort-01-faraz-fin-lit/internal/entity"
	"github.com/SupremeDrip/cohort-01-faraz-fin-lit/internal/repository"
	"github.com/SupremeDrip/cohort-01-faraz-fin-lit/internal/service/quote"
	"github.com/SupremeDrip/cohort-01-faraz-fin-lit/internal/service/settlement"
	"github.com/guregu/null/v5"
)

type TradeRequest struct {
	AccountID string `json:"account_id"`
	Symbol    string `json:"symbol"`
	Side      string `json:"side"`
	Quantity  int64  `json:"quantity"`
}

type TradeResponse struct {
	ID            int64   `json:"id"`
	AccountID     string  `json:"account_id"`
	Symbol        string  `json:"symbol"`
	Side          string  `json:"side"`
	Quantity      int64   `json:"quantity"`
	PricePerShare string  `json:"price_per_share"`
	TotalAmount   string  `json:"total_amount"`
	RealizedPnl   *string `json:"realized_pnl,omitempty"`
	ExecutedAt    int64   `json:"executed_at"`
}

type QuoteBatchRequest struct {
	Symbols []string `json:"symbols"`
}

type PortfolioResponse struct {
	AccountID   string              `json:"account_id"`
	CashBalance string              `json:"cash_balance"`
	Positions   []PortfolioPosition `json:"positions"`
}

type PortfolioPosition struct {
	InstrumentID int64  `json:"instrument_id"`
	Quantity     int64  `json:"quantity"`
	AverageCost  string `json:"average_cost"`
}

// InstrumentResolver resolves a traded symbol to its instrument row;
// repository.InstrumentRepository is the production implementation.
type InstrumentResolver interface {
	GetBySymbol(ctx context.Context, symbol string) (*entity.Instrument, error)
}

type Handler struct {
	quoteService      *quote.QuoteService
	settlementService *settlement.SettlementService
	accountRepo       *repository.AccountRepository
	positionRepo      *repository.PositionRepository
	instrumentRepo    InstrumentResolver
	ledgerRepo        *repository.LedgerRepository
	streamHub         *QuoteStreamHub
}

func NewEngineHTTPHandler(
	quoteService *quote.QuoteService,
	settlementService *settlement.SettlementService,
	accountRepo *repository.AccountRepository,
	positionRepo *repository.PositionRepository,
	instrumentRepo InstrumentResolver,
	ledgerRepo *repository.LedgerRepository,
	streamHub *QuoteStreamHub,
) *Handler {
	return &Handler{
		quoteService:      quoteService,
		settlementService: settlementService,
		accountRepo:       accountRepo,
		positionRepo:      positionRepo,
		instrumentRepo:    instrumentRepo,
		ledgerRepo:        ledgerRepo,
		streamHub:         streamHub,
	}
}

func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("/engine/v1/quotes/batch", h.GetQuotesBatch)
	mux.HandleFunc("/engine/v1/quotes/stream", h.StreamQuotes)
	mux.HandleFunc("/engine/v1/quotes/", h.GetQuote)
	mux.HandleFunc("/engine/v1/trades", h.ExecuteTrade)
	mux.HandleFunc("/engine/v1/accounts/", h.AccountResource)
}

func (h *Handler) GetQuote(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]any{"error": "method not allowed"})
		return
	}

	symbol := strings.ToUpper(strings.TrimPrefix(r.URL.Path, "/engine/v1/quotes/"))
	if symbol == "" || strings.Contains(symbol, "/") {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "symbol is required"})
		return
	}

	writeJSON(w, http.StatusOK, h.quoteService.GetQuote(r.Context(), symbol))
}

func (h *Handler) GetQuotesBatch(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]any{"error": "method not allowed"})
		return
	}

	defer r.Body.Close()

	var req QuoteBatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "invalid json body"})
		return
	}
	if len(req.Symbols) == 0 {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "symbols are required"})
		return
	}

	symbols := make([]string, 0, len(req.Symbols))
	for _, symbol := range req.Symbols {
		symbol = strings.ToUpper(strings.TrimSpace(symbol))
		if symbol != "" {
			symbols = append(symbols, symbol)
		}
	}

	writeJSON(w, http.StatusOK, h.quoteService.GetQuotes(r.Context(), symbols))
}

func (h *Handler) StreamQuotes(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]any{"error": "method not allowed"})
		return
	}

	h.streamHub.Subscribe(w, r)
}

func (h *Handler) ExecuteTrade(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]any{"error": "method not allowed"})
		return
	}

	defer r.Body.Close()

	var req TradeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "invalid json body"})
		return
	}

	if strings.TrimSpace(req.AccountID) == "" || strings.TrimSpace(req.Symbol) == "" {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "account_id and symbol are required"})
		return
	}

	instrument, err := h.instrumentRepo.GetBySymbol(r.Context(), strings.ToUpper(strings.TrimSpace(req.Symbol)))
	if errors.Is(err, sql.ErrNoRows) {
		writeJSON(w, http.StatusNotFound, map[string]any{"error": "unknown symbol"})
		return
	}
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]any{"error": "failed to resolve instrument"})
		return
	}

	// the trade executes at the engine's current quote, not a client-supplied
	// price
	currentQuote := h.quoteService.GetQuote(r.Context(), instrument.Symbol)

	var entry *entity.LedgerEntry
	switch entity.TradeSide(strings.ToUpper(req.Side)) {
	case entity.TradeSideBuy:
		entry, err = h.settlementService.ExecuteBuy(r.Context(), req.AccountID, instrument.ID, req.Quantity, currentQuote.Price)
	case entity.TradeSideSell:
		entry, err = h.settlementService.ExecuteSell(r.Context(), req.AccountID, instrument.ID, req.Quantity, currentQuote.Price)
	default:
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "side must be BUY or SELL"})
		return
	}

	if err != nil {
		writeJSON(w, settlementStatusCode(err), map[string]any{"error": err.Error()})
		return
	}

	var realizedPnl *string
	if entry.RealizedPnl != nil {
		realizedPnl = null.StringFrom(entry.RealizedPnl.String()).Ptr()
	}

	writeJSON(w, http.StatusOK, TradeResponse{
		ID:            entry.ID,
		AccountID:     entry.AccountID,
		Symbol:        instrument.Symbol,
		Side:          string(entry.Side),
		Quantity:      entry.Quantity,
		PricePerShare: entry.PricePerShare.String(),
		TotalAmount:   entry.TotalAmount.String(),
		RealizedPnl:   realizedPnl,
		ExecutedAt:    entry.ExecutedAt.UnixMilli(),
	})
}

func (h *Handler) AccountResource(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]any{"error": "method not allowed"})
		return
	}

	rest := strings.TrimPrefix(r.URL.Path, "/engine/v1/accounts/")
	parts := strings.Split(rest, "/")
	if len(parts) != 2 || parts[0] == "" {
		writeJSON(w, http.StatusNotFound, map[string]any{"error": "not found"})
		return
	}

	accountID := parts[0]

	switch parts[1] {
	case "portfolio":
		h.portfolio(w, r, accountID)
	case "ledger":
		h.ledger(w, r, accountID)
	default:
		writeJSON(w, http.StatusNotFound, map[string]any{"error": "not found"})
	}
}

func (h *Handler) portfolio(w http.ResponseWriter, r *http.Request, accountID string) {
	account, err := h.accountRepo.GetByID(r.Context(), accountID)
	if errors.Is(err, sql.ErrNoRows) {
		writeJSON(w, http.StatusNotFound, map[string]any{"error": "account not found"})
		return
	}
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]any{"error": "failed to load account"})
		return
	}

	positions, err := h.positionRepo.GetByAccount(r.Context(), accountID)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]any{"error": "failed to load positions"})
		return
	}

	resp := PortfolioResponse{
		AccountID:   account.ID,
		CashBalance: account.CashBalance.String(),
		Positions:   make([]PortfolioPosition, 0, len(positions)),
	}
	for _, position := range positions {
		resp.Positions = append(resp.Positions, PortfolioPosition{
			InstrumentID: position.InstrumentID,
			Quantity:     position.Quantity,
			AverageCost:  position.AverageCost.String(),
		})
	}

	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) ledger(w http.ResponseWriter, r *http.Request, accountID string) {
	entries, err := h.ledgerRepo.ListByAccount(r.Context(), accountID, 100)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]any{"error": "failed to load ledger"})
		return
	}

	writeJSON(w, http.StatusOK, entries)
}

func settlementStatusCode(err error) int {
	switch {
	case errors.Is(err, settlement.ErrInvalidOrder):
		return http.StatusBadRequest
	case errors.Is(err, settlement.ErrAccountNotFound):
		return http.StatusNotFound
	case errors.Is(err, settlement.ErrInsufficientFunds), errors.Is(err, settlement.ErrInsufficientShares):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
