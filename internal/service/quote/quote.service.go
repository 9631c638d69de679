// Package quote serves price quotes for the instrument universe under the
// provider's strict call quota. Lookups degrade from cache to historical
// closes to a rate-limited live fetch to synthetic fallback; no path returns
// an error to the caller.
package quote

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/SupremeDrip/cohort-01-faraz-fin-lit/internal/entity"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

const (
	rateWindow = time.Minute

	defaultMaxCallsPerMinute = 5
	defaultDailyCallLimit    = 500
	defaultQueueSize         = 256
)

// HistorySource provides the most recent historical closes for a symbol,
// newest first.
type HistorySource interface {
	LatestClosesBySymbol(ctx context.Context, symbol string, limit uint64) ([]entity.PricePoint, error)
}

type Options struct {
	Cache             Cache
	Provider          Provider
	History           HistorySource
	MaxCallsPerMinute int
	DailyCallLimit    int
	QueueSize         int
}

type fetchRequest struct {
	symbol string
	force  bool
	reply  chan entity.Quote
}

type QuoteService struct {
	cache    Cache
	provider Provider
	history  HistorySource
	limiter  *rateLimiter
	queue    chan fetchRequest
	spacing  time.Duration
	clock    clock

	rngMu sync.Mutex
	rng   *rand.Rand
}

func NewQuoteService(opts Options) *QuoteService {
	maxCalls := opts.MaxCallsPerMinute
	if maxCalls <= 0 {
		maxCalls = defaultMaxCallsPerMinute
	}

	dailyLimit := opts.DailyCallLimit
	if dailyLimit <= 0 {
		dailyLimit = defaultDailyCallLimit
	}

	queueSize := opts.QueueSize
	if queueSize <= 0 {
		queueSize = defaultQueueSize
	}

	return &QuoteService{
		cache:    opts.Cache,
		provider: opts.Provider,
		history:  opts.History,
		limiter:  newRateLimiter(rateWindow, maxCalls, dailyLimit),
		queue:    make(chan fetchRequest, queueSize),
		spacing:  rateWindow / time.Duration(maxCalls),
		clock:    realClock{},
		rng:      rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Start launches the fetch worker. At most one provider call is ever in
// flight; dequeues are spaced so the per-minute quota cannot be exceeded
// even under arbitrary concurrent caller load.
func (s *QuoteService) Start(ctx context.Context) {
	go s.runFetchWorker(ctx)
}

// GetQuote resolves a quote for symbol. It never fails: a fresh cache entry
// is returned as-is, otherwise the two most recent historical closes are
// preferred (they cost no provider calls), otherwise the request joins the
// single-lane fetch queue and resolves to a live or synthetic quote.
func (s *QuoteService) GetQuote(ctx context.Context, symbol string) entity.Quote {
	if cached, ok := s.cache.Get(ctx, symbol); ok {
		return cached
	}

	if quote, ok := s.historicalQuote(ctx, symbol); ok {
		s.cache.Set(ctx, quote)
		return quote
	}

	req := fetchRequest{symbol: symbol, reply: make(chan entity.Quote, 1)}
	select {
	case s.queue <- req:
	case <-ctx.Done():
		quote := s.synthetic(symbol)
		s.cache.Set(ctx, quote)
		return quote
	}

	select {
	case quote := <-req.reply:
		return quote
	case <-ctx.Done():
		// the queued fetch still completes and caches its result; this
		// caller just stops waiting for it
		return s.synthetic(symbol)
	}
}

// GetQuotes fans GetQuote out concurrently and returns once every symbol has
// resolved.
func (s *QuoteService) GetQuotes(ctx context.Context, symbols []string) map[string]entity.Quote {
	results := make(map[string]entity.Quote, len(symbols))

	var (
		mu sync.Mutex
		wg sync.WaitGroup
	)
	for _, symbol := range symbols {
		wg.Add(1)
		go func(symbol string) {
			defer wg.Done()
			quote := s.GetQuote(ctx, symbol)
			mu.Lock()
			results[symbol] = quote
			mu.Unlock()
		}(symbol)
	}
	wg.Wait()

	return results
}

// Invalidate clears every cached quote.
func (s *QuoteService) Invalidate() {
	s.cache.Clear(context.Background())
}

// PrimeCache populates the cache for the whole universe from historical
// closes, synthesizing where no history exists. It never touches the
// provider, so it is safe for an arbitrary number of instruments at once.
func (s *QuoteService) PrimeCache(ctx context.Context, instruments []entity.Instrument) map[string]entity.Quote {
	results := make(map[string]entity.Quote, len(instruments))

	var (
		mu sync.Mutex
		wg sync.WaitGroup
	)
	for _, instrument := range instruments {
		wg.Add(1)
		go func(symbol string) {
			defer wg.Done()

			quote, ok := s.historicalQuote(ctx, symbol)
			if !ok {
				quote = s.synthetic(symbol)
			}
			s.cache.Set(ctx, quote)

			mu.Lock()
			results[symbol] = quote
			mu.Unlock()
		}(instrument.Symbol)
	}
	wg.Wait()

	return results
}

// RefreshAll pushes every instrument through the rate-limited fetch lane,
// bypassing cache freshness, and reports live results through onUpdate.
// Rate-limited or failed fetches synthesize as usual but are not reported.
func (s *QuoteService) RefreshAll(ctx context.Context, instruments []entity.Instrument, onUpdate func(entity.Instrument, entity.Quote)) {
	for _, instrument := range instruments {
		req := fetchRequest{symbol: instrument.Symbol, force: true, reply: make(chan entity.Quote, 1)}
		select {
		case s.queue <- req:
		case <-ctx.Done():
			return
		}

		select {
		case quote := <-req.reply:
			if quote.Source == entity.QuoteSourceLive && onUpdate != nil {
				onUpdate(instrument, quote)
			}
		case <-ctx.Done():
			return
		}
	}
}

func (s *QuoteService) runFetchWorker(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case req := <-s.queue:
			if !req.force {
				// another request may have populated the cache while this
				// one waited in the queue
				if cached, ok := s.cache.Get(ctx, req.symbol); ok {
					req.reply <- cached
					continue
				}
			}

			quote := s.fetchOrFallback(ctx, req.symbol)
			s.cache.Set(ctx, quote)
			req.reply <- quote

			select {
			case <-s.clock.After(s.spacing):
			case <-ctx.Done():
				return
			}
		}
	}
}

func (s *QuoteService) fetchOrFallback(ctx context.Context, symbol string) entity.Quote {
	if !s.limiter.Allow(s.clock.Now()) {
		logrus.Warnf("provider quota reached, synthesizing quote for %s", symbol)
		return s.synthetic(symbol)
	}

	quote, err := s.provider.FetchQuote(ctx, symbol)
	if err != nil {
		logrus.Warnf("live quote fetch failed for %s: %v", symbol, err)
		return s.synthetic(symbol)
	}

	quote.RetrievedAt = s.clock.Now()

	return quote
}

func (s *QuoteService) historicalQuote(ctx context.Context, symbol string) (entity.Quote, bool) {
	if s.history == nil {
		return entity.Quote{}, false
	}

	points, err := s.history.LatestClosesBySymbol(ctx, symbol, 2)
	if err != nil {
		logrus.Warnf("historical closes lookup failed for %s: %v", symbol, err)
		return entity.Quote{}, false
	}
	if len(points) == 0 {
		return entity.Quote{}, false
	}

	latest := points[0]
	previous := latest
	if len(points) > 1 {
		previous = points[1]
	}

	price := latest.Close.Round(2)
	previousClose := previous.Close.Round(2)
	change := price.Sub(previousClose)

	changePercent := decimal.Zero
	if previousClose.IsPositive() {
		changePercent = change.Div(previousClose).Mul(decimal.NewFromInt(100)).Round(2)
	}

	return entity.Quote{
		Symbol:        symbol,
		Price:         price,
		PreviousClose: previousClose,
		Change:        change,
		ChangePercent: changePercent,
		Source:        entity.QuoteSourceHistorical,
		RetrievedAt:   s.clock.Now(),
	}, true
}

func (s *QuoteService) synthetic(symbol string) entity.Quote {
	s.rngMu.Lock()
	defer s.rngMu.Unlock()

	return syntheticQuote(symbol, s.rng, s.clock.Now())
}
