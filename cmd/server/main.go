package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"golang.org/x/sync/errgroup"

	checksumCache "idcheck/internal/checksum/cache"
	checksumHandler "idcheck/internal/checksum/handler"
	checksumMetrics "idcheck/internal/checksum/metrics"
	checksumService "idcheck/internal/checksum/service"
	checksumStore "idcheck/internal/checksum/store"
	"idcheck/internal/platform/config"
	"idcheck/internal/platform/httpserver"
	"idcheck/internal/platform/kafka"
	"idcheck/internal/platform/logger"
	"idcheck/internal/platform/metrics"
	"idcheck/internal/platform/postgres"
	redisClient "idcheck/internal/platform/redis"
	rateLimitMetrics "idcheck/internal/ratelimit/metrics"
	rateLimitMiddleware "idcheck/internal/ratelimit/middleware"
	rateLimitService "idcheck/internal/ratelimit/service"
	"idcheck/internal/ratelimit/store/window"
	id "idcheck/pkg/domain"
	"idcheck/pkg/platform/audit"
	"idcheck/pkg/platform/audit/publisher"
	auditMemory "idcheck/pkg/platform/audit/store/memory"
	auditPostgres "idcheck/pkg/platform/audit/store/postgres"
	"idcheck/pkg/platform/audit/worker"
	"idcheck/pkg/platform/circuit"
	"idcheck/pkg/platform/httputil"
	adminMiddleware "idcheck/pkg/platform/middleware/admin"
	"idcheck/pkg/platform/middleware/metadata"
	request "idcheck/pkg/platform/middleware/request"
	"idcheck/pkg/platform/middleware/requesttime"
	"idcheck/pkg/platform/middleware/version"
	txcontext "idcheck/pkg/platform/tx"
)

type infra struct {
	Cfg      config.Server
	Log      *slog.Logger
	Registry *prometheus.Registry
	DB       *sql.DB
	Redis    *redisClient.Client
	Producer *kafka.Producer
}

type auditStore interface {
	audit.Store
	audit.Outbox
}

// stores groups the persistence layer chosen by configuration.
type stores struct {
	Ledger   checksumService.Store
	Audit    auditStore
	TxRunner txcontext.Runner
	Cache    checksumService.Cache
	Windows  rateLimitService.WindowStore
	Breaker  *circuit.Breaker
	Fallback rateLimitService.WindowStore
}

func main() {
	if err := run(); err != nil {
		slog.Error("idcheck exited with error", "error", err)
		os.Exit(1)
	}
}

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	inf, err := buildInfra(ctx)
	if err != nil {
		return err
	}
	defer inf.close()

	st := buildStores(inf)

	syncAudit := publisher.NewPublisher(st.Audit, publisher.WithLogger(inf.Log))
	asyncAudit := publisher.NewPublisher(st.Audit,
		publisher.WithLogger(inf.Log),
		publisher.WithAsyncBuffer(1024),
	)
	defer asyncAudit.Close()

	hasher, err := subjectHasher(inf)
	if err != nil {
		return err
	}

	checksumSvc, err := checksumService.New(st.Ledger,
		checksumService.WithLogger(inf.Log),
		checksumService.WithSubjectHasher(hasher),
		checksumService.WithMetrics(checksumMetrics.New(inf.Registry)),
		checksumService.WithAuditPublisher(syncAudit),
		checksumService.WithCache(st.Cache),
		checksumService.WithTxRunner(st.TxRunner),
		checksumService.WithTracer(otel.Tracer("idcheck/checksum")),
	)
	if err != nil {
		return fmt.Errorf("init checksum service: %w", err)
	}

	rateLimitOpts := []rateLimitService.Option{
		rateLimitService.WithLogger(inf.Log),
		rateLimitService.WithAuditPublisher(asyncAudit),
		rateLimitService.WithMetrics(rateLimitMetrics.New(inf.Registry)),
		rateLimitService.WithLimit(inf.Cfg.RateLimit.PerWindow, inf.Cfg.RateLimit.Window),
	}
	if st.Fallback != nil {
		rateLimitOpts = append(rateLimitOpts, rateLimitService.WithFallback(st.Fallback, st.Breaker))
	}
	limiter, err := rateLimitService.New(st.Windows, rateLimitOpts...)
	if err != nil {
		return fmt.Errorf("init rate limiter: %w", err)
	}

	router := newRouter(inf, checksumHandler.New(checksumSvc, inf.Log),
		rateLimitMiddleware.New(limiter, inf.Log, rateLimitMiddleware.WithDisabled(!inf.Cfg.RateLimit.Enabled)))

	srv := httpserver.New(inf.Cfg.Addr, router, httpserver.WithLogger(inf.Log))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		inf.Log.Info("starting idcheck", "addr", inf.Cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serve: %w", err)
		}
		return nil
	})
	if inf.Producer != nil {
		relay := worker.NewWorker(st.Audit, inf.Producer,
			worker.WithLogger(inf.Log),
			worker.WithTxRunner(st.TxRunner),
		)
		g.Go(func() error {
			return relay.Run(gctx)
		})
	}
	g.Go(func() error {
		<-gctx.Done()
		inf.Log.Info("shutting down idcheck")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), inf.Cfg.ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func buildInfra(ctx context.Context) (*infra, error) {
	cfg, err := config.FromEnv()
	if err != nil {
		return nil, err
	}
	log := logger.New(cfg.LogLevel, cfg.LogFormat)
	slog.SetDefault(log)

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	inf := &infra{Cfg: cfg, Log: log, Registry: reg}

	startupCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	inf.DB, err = postgres.Open(startupCtx, cfg.Database)
	if err != nil {
		return nil, err
	}
	if inf.DB != nil {
		if err := postgres.Migrate(startupCtx, inf.DB); err != nil {
			inf.close()
			return nil, err
		}
		log.Info("postgres ledger enabled", "driver", cfg.Database.Driver)
	}

	inf.Redis, err = redisClient.New(startupCtx, cfg.Redis)
	if err != nil {
		inf.close()
		return nil, err
	}
	if inf.Redis != nil {
		log.Info("redis enabled for rate limiting and result cache")
	}

	if len(cfg.Kafka.Brokers) > 0 {
		inf.Producer, err = kafka.NewProducer(cfg.Kafka)
		if err != nil {
			inf.close()
			return nil, err
		}
		if err := inf.Producer.EnsureTopic(startupCtx, cfg.Kafka.Partitions, cfg.Kafka.Replicas); err != nil {
			inf.close()
			return nil, err
		}
		log.Info("audit relay enabled", "topic", inf.Producer.Topic())
	}
	return inf, nil
}

func subjectHasher(inf *infra) (*id.SubjectHasher, error) {
	if len(inf.Cfg.SubjectHashKey) == 0 {
		inf.Log.Warn("SUBJECT_HASH_KEY not set, subject hashes are only stable for this process")
		return id.NewRandomSubjectHasher()
	}
	h, err := id.NewSubjectHasher(inf.Cfg.SubjectHashKey)
	if err != nil {
		return nil, fmt.Errorf("init subject hasher: %w", err)
	}
	return h, nil
}

func buildStores(inf *infra) stores {
	var st stores
	if inf.DB != nil {
		st.Ledger = checksumStore.NewPostgres(inf.DB)
		st.Audit = auditPostgres.New(inf.DB)
		st.TxRunner = txcontext.NewSQLRunner(inf.DB)
	} else {
		st.Ledger = checksumStore.NewInMemoryStore()
		st.Audit = auditMemory.NewInMemoryStore()
		st.TxRunner = txcontext.NopRunner{}
	}

	if inf.Redis != nil {
		st.Cache = checksumCache.NewRedisCache(inf.Redis.Client, inf.Cfg.Cache.TTL)
		st.Windows = window.NewRedisStore(inf.Redis.Client)
		st.Fallback = window.NewInMemoryStore()
		st.Breaker = circuit.New("ratelimit-redis")
	} else {
		st.Cache = checksumCache.NewInMemoryCache(inf.Cfg.Cache.TTL)
		st.Windows = window.NewInMemoryStore()
	}
	return st
}

func newRouter(inf *infra, checksum *checksumHandler.Handler, limiter *rateLimitMiddleware.Middleware) http.Handler {
	m := metrics.New(inf.Registry)

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(request.RequestID)
	r.Use(metadata.NewResolver(inf.Cfg.TrustedProxies).Middleware)
	r.Use(requesttime.Middleware)
	r.Use(m.Middleware)

	r.Get("/health", func(w http.ResponseWriter, req *http.Request) {
		status := map[string]string{"status": "ok"}
		code := http.StatusOK
		if inf.DB != nil {
			if err := inf.DB.PingContext(req.Context()); err != nil {
				status["postgres"] = "unavailable"
				code = http.StatusServiceUnavailable
			}
		}
		if inf.Redis != nil {
			if err := inf.Redis.Health(req.Context()); err != nil {
				status["redis"] = "degraded"
			}
		}
		if inf.Producer != nil {
			if err := inf.Producer.Health(req.Context()); err != nil {
				status["kafka"] = "degraded"
			}
		}
		httputil.WriteJSON(w, code, status)
	})
	r.Handle("/metrics", promhttp.HandlerFor(inf.Registry, promhttp.HandlerOpts{}))

	r.Route("/v1", func(v1 chi.Router) {
		v1.Use(version.ExtractVersion(id.APIVersionV1))
		v1.Group(func(public chi.Router) {
			public.Use(limiter.RateLimit)
			checksum.Register(public)
		})
		v1.Group(func(admin chi.Router) {
			admin.Use(adminMiddleware.RequireAdminToken(inf.Cfg.AdminToken, inf.Log))
			checksum.RegisterAdmin(admin)
		})
	})
	return r
}

func (inf *infra) close() {
	if inf.Producer != nil {
		inf.Producer.Close()
	}
	if inf.Redis != nil {
		if err := inf.Redis.Close(); err != nil {
			inf.Log.Warn("failed to close redis", "error", err)
		}
	}
	if inf.DB != nil {
		if err := inf.DB.Close(); err != nil {
			inf.Log.Warn("failed to close database", "error", err)
		}
	}
}
