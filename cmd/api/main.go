package main

import (
	"context"
	"errors"
	"github.com/ariefcatur/go-order-status.git/internal/audit"
	"github.com/ariefcatur/go-order-status.git/internal/cache"
	"github.com/ariefcatur/go-order-status.git/internal/catalog"
	"github.com/ariefcatur/go-order-status.git/internal/config"
	"github.com/ariefcatur/go-order-status.git/internal/httpx"
	kafkax "github.com/ariefcatur/go-order-status.git/internal/kafka"
	"github.com/ariefcatur/go-order-status.git/internal/logging"
	"github.com/ariefcatur/go-order-status.git/internal/metrics"
	"github.com/ariefcatur/go-order-status.git/internal/orders"
	"github.com/ariefcatur/go-order-status.git/internal/postgres"
	"github.com/ariefcatur/go-order-status.git/internal/ratelimit"
	"github.com/ariefcatur/go-order-status.git/internal/redisx"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		boot := zerolog.New(os.Stderr)
		boot.Fatal().Err(err).Msg("config")
	}
	log := logging.New(cfg.ServiceName, cfg.LogLevel, os.Stdout)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// DB
	db, err := postgres.Connect(ctx, cfg.Postgres)
	if err != nil {
		log.Fatal().Err(err).Msg("db connect")
	}
	defer db.Close()
	if cfg.AutoMigrate {
		if err := postgres.Migrate(ctx, db); err != nil {
			log.Fatal().Err(err).Msg("migrate")
		}
	}

	// Cache
	var store cache.Store
	switch cfg.CacheBackend {
	case "memory":
		store = cache.NewMemory()
	default:
		rdb := redisx.New(cfg.RedisAddr)
		defer rdb.Close()
		store = &redisx.Cache{Client: rdb}
	}

	// Kafka producer for shipped notifications
	prod := kafkax.NewProducer(kafkax.NewWriter(cfg.KafkaBrokers, cfg.NotifyTopic), 1024, log)
	prod.Start()

	m := metrics.New(prometheus.NewRegistry())

	statusRepo := &orders.StatusRepo{DB: db}
	if cfg.SeedShippedStatus {
		added, err := statusRepo.EnsureShippedStatus(ctx)
		if err != nil {
			log.Fatal().Err(err).Msg("seed shipped status")
		}
		log.Info().Bool("added", added).Msg("shipped status seeded")
	}
	logRepo := &orders.LogRepo{DB: db}

	limiter := ratelimit.New(store, cfg.RateLimit.Enabled, cfg.RateLimit.MaxRequests, log)
	limiter.Metrics = m

	auditor := audit.NewAuditor(logRepo, &audit.KafkaNotifier{Producer: prod, Service: cfg.ServiceName}, log)
	auditor.Metrics = m

	svc := orders.NewStatusService(
		&orders.Repo{DB: db},
		catalog.NewResolver(statusRepo, store, log),
		limiter,
		auditor,
		log,
	)
	svc.Metrics = m

	trusted, err := httpx.ParseTrustedProxies(cfg.TrustedProxies)
	if err != nil {
		log.Fatal().Err(err).Msg("TRUSTED_PROXIES")
	}
	router := httpx.NewRouter(log, m, m.Handler(), trusted)
	oh := &httpx.OrdersHandler{Service: svc, Logs: logRepo, Tokens: cfg.APITokens, Log: log}
	oh.Register(router)

	if len(cfg.APITokens) == 0 {
		log.Warn().Msg("API_TOKENS is empty, every admin request will be refused")
	}

	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: router, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		log.Info().Str("addr", cfg.HTTPAddr).Msg("http listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("listen")
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	log.Info().Msg("shutting down")

	ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel2()
	_ = srv.Shutdown(ctx2)
	prod.Close()      // inbox closed, remaining notices are flushed
	prod.WaitClosed() // writer closed
	cancel()
}
