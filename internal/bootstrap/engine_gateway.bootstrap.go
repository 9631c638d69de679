package bootstrap

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/SupremeDrip/cohort-01-faraz-fin-lit/internal/config"
	"github.com/SupremeDrip/cohort-01-faraz-fin-lit/internal/entity"
	engineHandler "github.com/SupremeDrip/cohort-01-faraz-fin-lit/internal/handler/engine/http"
	"github.com/SupremeDrip/cohort-01-faraz-fin-lit/internal/infrastructure"
	"github.com/SupremeDrip/cohort-01-faraz-fin-lit/internal/repository"
	"github.com/SupremeDrip/cohort-01-faraz-fin-lit/internal/service/quote"
	"github.com/SupremeDrip/cohort-01-faraz-fin-lit/internal/service/settlement"
	"github.com/SupremeDrip/cohort-01-faraz-fin-lit/internal/util"
	"github.com/nats-io/nats.go"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

const (
	defaultProviderBaseURL = "https://www.alphavantage.co"
	defaultCacheTTL        = 2 * time.Minute
	defaultRefreshInterval = 5 * time.Minute
)

func StartEngineGateway(cmd *cobra.Command, args []string) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	tradingDB, err := infrastructure.NewPostgresConnection(ctx, config.Env.Database["trading"])
	util.ContinueOrFatal(err)
	infrastructure.StartPostgresHealthCheck(ctx, tradingDB, config.Env.Database["trading"].PingInterval)

	accountRepo := repository.NewAccountRepository(tradingDB)
	instrumentRepo := repository.NewInstrumentRepository(tradingDB)
	positionRepo := repository.NewPositionRepository(tradingDB)
	ledgerRepo := repository.NewLedgerRepository(tradingDB)
	priceHistoryRepo := repository.NewPriceHistoryRepository(tradingDB)
	tradeStore := repository.NewTradeStore(tradingDB)

	quoteCfg := config.Env.Quote

	cacheTTL := quoteCfg.CacheTTL
	if cacheTTL <= 0 {
		cacheTTL = defaultCacheTTL
	}

	var (
		quoteCache quote.Cache
		redisCache *quote.RedisCache
	)
	if quoteCfg.CacheBackend == "redis" {
		redisCache, err = quote.NewRedisCache(config.Env.Redis["quote"].CacheDSN, cacheTTL)
		util.ContinueOrFatal(err)
		quoteCache = redisCache
	} else {
		quoteCache = quote.NewMemoryCache(cacheTTL)
	}

	providerBaseURL := strings.TrimSpace(quoteCfg.ProviderBaseURL)
	if providerBaseURL == "" {
		providerBaseURL = defaultProviderBaseURL
	}

	quoteService := quote.NewQuoteService(quote.Options{
		Cache:             quoteCache,
		Provider:          quote.NewAlphaVantageProvider(providerBaseURL, quoteCfg.ProviderAPIKey),
		History:           priceHistoryRepo,
		MaxCallsPerMinute: quoteCfg.MaxCallsPerMinute,
		DailyCallLimit:    quoteCfg.DailyCallLimit,
		QueueSize:         quoteCfg.QueueSize,
	})
	quoteService.Start(ctx)

	var (
		nc *nats.Conn
		js nats.JetStreamContext
	)
	if strings.TrimSpace(config.Env.NatsJetstream.URL) != "" {
		nc, js, err = infrastructure.NewJetstream()
		util.ContinueOrFatal(err)
	}

	settlementService := settlement.NewSettlementService(tradeStore, js)

	if js != nil {
		publishers := []entity.Publisher{settlementService}
		for _, v := range publishers {
			err = v.JetstreamEventInit(ctx)
			util.ContinueOrFatal(err)
		}
	}

	instruments, err := instrumentRepo.GetAll(ctx)
	if err != nil {
		logrus.Warnf("failed to load instrument universe, cache starts cold: %v", err)
	} else {
		quoteService.PrimeCache(ctx, instruments)
		logrus.Infof("primed quote cache for %d instruments", len(instruments))
	}

	streamHub := engineHandler.NewQuoteStreamHub()
	startPriceRefresher(ctx, quoteService, instrumentRepo, streamHub, quoteCfg.RefreshInterval)

	handler := engineHandler.NewEngineHTTPHandler(
		quoteService,
		settlementService,
		accountRepo,
		positionRepo,
		instrumentRepo,
		ledgerRepo,
		streamHub,
	)
	httpMux := http.NewServeMux()
	handler.Register(httpMux)

	httpPort := fmt.Sprintf(":%s", config.Env.Port["engine_gateway_http"])
	httpServer := infrastructure.NewHTTPServerWithConfig(infrastructure.HTTPServerConfig{
		Addr:            httpPort,
		ShutdownTimeout: config.Env.GracefulShutdownTimeout,
	}, httpMux)

	go func() {
		err := httpServer.Start()
		if err != nil {
			logrus.Error(err)
		}
	}()
	logrus.Info(fmt.Sprintf("http server started on %s", httpPort))

	shutdownOps := map[string]operation{
		"trading database": func(ctx context.Context) error {
			cancel()
			return tradingDB.Close()
		},
		"http": func(ctx context.Context) error {
			return httpServer.Shutdown(ctx)
		},
		"quote stream": func(ctx context.Context) error {
			streamHub.Close()
			return nil
		},
	}
	if redisCache != nil {
		shutdownOps["quote cache"] = func(ctx context.Context) error {
			return redisCache.Close()
		}
	}
	if nc != nil {
		shutdownOps["nats connection"] = func(ctx context.Context) error {
			return infrastructure.CloseJetstream(nc)
		}
	}

	wait := gracefulShutdown(ctx, config.Env.GracefulShutdownTimeout, shutdownOps)

	<-wait
}

// startPriceRefresher periodically walks the instrument universe through the
// rate-limited fetch lane, persisting and broadcasting live prices.
func startPriceRefresher(ctx context.Context, quoteService *quote.QuoteService, instrumentRepo *repository.InstrumentRepository, streamHub *engineHandler.QuoteStreamHub, interval time.Duration) {
	if interval <= 0 {
		interval = defaultRefreshInterval
	}

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				instruments, err := instrumentRepo.GetAll(ctx)
				if err != nil {
					logrus.Errorf("price refresh skipped, failed to load instruments: %v", err)
					continue
				}

				quoteService.RefreshAll(ctx, instruments, func(instrument entity.Instrument, refreshed entity.Quote) {
					if err := instrumentRepo.UpdateReferencePrice(ctx, instrument.ID, refreshed.Price); err != nil {
						logrus.Errorf("failed to persist reference price for %s: %v", instrument.Symbol, err)
					}
					streamHub.Broadcast(refreshed)
				})
			}
		}
	}()
}
