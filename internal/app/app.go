package app

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"

	healthcheck "github.com/vladislavdragonenkov/shopcore/internal/health"
	"github.com/vladislavdragonenkov/shopcore/internal/metrics"
	"github.com/vladislavdragonenkov/shopcore/internal/service/checkout"
	"github.com/vladislavdragonenkov/shopcore/internal/service/dispatch"
	"github.com/vladislavdragonenkov/shopcore/internal/service/gateway"
	"github.com/vladislavdragonenkov/shopcore/internal/service/inventory"
	"github.com/vladislavdragonenkov/shopcore/internal/service/orders"
	outboxsvc "github.com/vladislavdragonenkov/shopcore/internal/service/outbox"
	"github.com/vladislavdragonenkov/shopcore/internal/service/payments"
	"github.com/vladislavdragonenkov/shopcore/internal/storage/memory"
	"github.com/vladislavdragonenkov/shopcore/internal/transport/httpx"
	"github.com/vladislavdragonenkov/shopcore/internal/version"
)

// Run собирает все зависимости и держит сервис до отмены контекста.
func Run(ctx context.Context, cfg Config) error {
	logger := log.WithField("component", "app")

	repos, err := initStorage(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := repos.Close(); closeErr != nil {
			logger.WithError(closeErr).Warn("failed to close storage")
		}
	}()

	// Корзина и адреса — внешние коллабораторы; в этом сервисе они живут
	// как in-memory реализации независимо от драйвера хранилища ядра.
	carts := memory.NewCartService()
	addresses := memory.NewAddressService()

	commerceMetrics := metrics.NewCommerceMetrics()

	paymentGateway := gateway.NewSimulator(
		gateway.WithLogger(logger.WithField("layer", "gateway")),
		gateway.WithResolutionDelay(cfg.ResolutionDelayMin, cfg.ResolutionDelayMax),
	)

	kafkaProducer, _ := initKafkaProducer(cfg.KafkaBrokers, logger)
	publisher := selectPublisher(kafkaProducer, logger)
	defer closeKafka(kafkaProducer, logger)

	ledger := inventory.NewLedger(repos.Products, commerceMetrics, logger.WithField("layer", "inventory"))

	dispatcher := dispatch.NewDispatcher(
		repos.Payments, repos.Orders, ledger, paymentGateway,
		repos.Outbox, repos.Timeline,
		dispatch.WithLogger(logger.WithField("layer", "dispatch")),
		dispatch.WithMetrics(commerceMetrics),
		dispatch.WithWorkers(cfg.DispatcherWorkers),
		dispatch.WithQueueSize(cfg.DispatcherQueueSize),
	)
	sweeper := dispatch.NewSweeper(
		repos.Payments, repos.Outbox, dispatcher,
		dispatch.WithSweeperLogger(logger.WithField("layer", "sweeper")),
		dispatch.WithSweepInterval(cfg.SweepInterval),
		dispatch.WithProcessingTimeout(cfg.ProcessingTimeout),
		dispatch.WithPendingEscalationTTL(cfg.PendingEscalationTTL),
	)
	outboxWorker := outboxsvc.NewWorker(
		repos.Outbox, publisher,
		outboxsvc.WithLogger(logger.WithField("layer", "outbox")),
		outboxsvc.WithPollInterval(cfg.OutboxPollInterval),
		outboxsvc.WithBatchSize(cfg.OutboxBatchSize),
		outboxsvc.WithMaxAttempts(cfg.OutboxMaxAttempts),
		outboxsvc.WithRetryBaseDelay(cfg.OutboxRetryDelay),
	)

	checkoutSvc := checkout.NewOrchestrator(
		repos.Orders, repos.Products, carts, addresses, ledger,
		repos.Outbox, repos.Timeline, cfg.Currency,
		commerceMetrics, logger.WithField("layer", "checkout"),
	)
	ordersSvc := orders.NewService(
		repos.Orders, ledger, repos.Outbox, repos.Timeline,
		commerceMetrics, logger.WithField("layer", "orders"),
	)
	paymentsSvc := payments.NewService(
		repos.Payments, repos.Orders, ledger, paymentGateway, dispatcher,
		repos.Outbox, repos.Timeline,
		commerceMetrics, logger.WithField("layer", "payments"),
	)

	// Фоновые воркеры: диспетчер подтверждений, свипер, outbox.
	var wg sync.WaitGroup
	wg.Add(3)
	go func() {
		defer wg.Done()
		dispatcher.Run(ctx)
	}()
	go func() {
		defer wg.Done()
		sweeper.Run(ctx)
	}()
	go func() {
		defer wg.Done()
		outboxWorker.Run(ctx)
	}()

	healthHandler := healthcheck.NewHandler(version.GetVersion())
	if repos.store != nil {
		store := repos.store
		healthHandler.RegisterChecker("postgres", healthcheck.NewSimpleChecker("postgres", func() error {
			return store.Ping(context.Background())
		}))
	}
	metricsSrv := startMetricsServer(ctx, cfg.MetricsAddr, logger, healthHandler)

	apiServer := httpx.NewServer(checkoutSvc, ordersSvc, paymentsSvc, logger.WithField("layer", "http"))
	apiSrv := &http.Server{Addr: cfg.HTTPAddr, Handler: apiServer.Router()}

	errCh := make(chan error, 1)
	go func() {
		logger.Infof("HTTP API слушает %s", cfg.HTTPAddr)
		errCh <- apiSrv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		logger.Info("получен сигнал остановки, останавливаем сервис")
		shutdownHTTP(apiSrv, logger)
		shutdownHTTP(metricsSrv, logger)
		wg.Wait()
		return ctx.Err()
	case err := <-errCh:
		shutdownHTTP(metricsSrv, logger)
		wg.Wait()
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

// startMetricsServer запускает HTTP-обработчик /metrics для Prometheus
// вместе с health-эндпоинтами.
func startMetricsServer(ctx context.Context, addr string, logger *log.Entry, healthHandler *healthcheck.Handler) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.Handle("/healthz", healthHandler)
	mux.HandleFunc("/readyz", healthHandler.ReadinessHandler)
	mux.HandleFunc("/livez", healthcheck.LivenessHandler)

	srv := &http.Server{Addr: addr, Handler: mux}
	go func() {
		logger.Infof("метрики доступны по адресу %s/metrics", addr)
		logger.Infof("health checks: %s/healthz, %s/livez", addr, addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Warn("metrics server failed")
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownHTTP(srv, logger)
	}()

	return srv
}

// shutdownHTTP аккуратно останавливает HTTP-сервер.
func shutdownHTTP(srv *http.Server, logger *log.Entry) {
	if srv == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.WithError(err).Warn("http shutdown with error")
	}
}
