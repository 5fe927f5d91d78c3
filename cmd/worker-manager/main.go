package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"diagnosis-workers/internal/api"
	"diagnosis-workers/internal/common/aws"
	"diagnosis-workers/internal/common/camunda"
	"diagnosis-workers/internal/common/config"
	"diagnosis-workers/internal/common/database"
	"diagnosis-workers/internal/common/logger"
	"diagnosis-workers/internal/common/metrics"
	"diagnosis-workers/internal/common/observability"
	"diagnosis-workers/internal/diagnosis/engine"
	"diagnosis-workers/internal/diagnosis/knowledgebase"
	"diagnosis-workers/internal/diagnosis/records"
	"diagnosis-workers/internal/diagnosis/service"
	"diagnosis-workers/internal/diagnosis/session"

	cc "diagnosis-workers/internal/workers/diagnosis/compare-conditions"
	ds "diagnosis-workers/internal/workers/diagnosis/diagnose-symptoms"
	ec "diagnosis-workers/internal/workers/diagnosis/explain-condition"
	ne "diagnosis-workers/internal/workers/diagnosis/notify-escalation"
	rc "diagnosis-workers/internal/workers/diagnosis/recommend-care"
	rd "diagnosis-workers/internal/workers/diagnosis/record-diagnosis"
)

// retryWithBackoff attempts to execute a function with exponential backoff
func retryWithBackoff(operation func() error, maxRetries int, initialDelay time.Duration, log *zap.Logger, operationName string) error {
	var err error
	delay := initialDelay

	for i := 0; i < maxRetries; i++ {
		err = operation()
		if err == nil {
			return nil
		}

		if i < maxRetries-1 {
			log.Warn(fmt.Sprintf("%s failed, retrying...", operationName),
				zap.Error(err),
				zap.Int("attempt", i+1),
				zap.Int("maxRetries", maxRetries),
				zap.Duration("nextRetryIn", delay),
			)
			time.Sleep(delay)
			delay *= 2
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", operationName, maxRetries, err)
}

// stores holds the optional backing services. Any of them may be nil.
type stores struct {
	pg    *database.PostgresClient
	redis *database.RedisClient
	es    *database.ElasticsearchClient
}

func (s *stores) Close(log *zap.Logger) {
	if s.pg != nil {
		if err := s.pg.Close(); err != nil {
			log.Error("Error closing PostgreSQL", zap.Error(err))
		}
	}
	if s.redis != nil {
		if err := s.redis.Close(); err != nil {
			log.Error("Error closing Redis", zap.Error(err))
		}
	}
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		zap.NewExample().Fatal("config load failed", zap.Error(err))
	}

	zapLog := logger.New(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.Output)
	defer zapLog.Sync()
	log := logger.NewZapAdapter(zapLog)

	zapLog.Info("Starting diagnosis workers...",
		zap.String("version", cfg.App.Version),
		zap.String("environment", cfg.App.Environment),
	)

	obs, err := observability.New(cfg.App.Name, observability.WithTracing(cfg.Tracing))
	if err != nil {
		zapLog.Fatal("observability init failed", zap.Error(err))
	}
	defer obs.Shutdown()

	ctx := context.Background()

	st := connectStores(ctx, cfg, zapLog)
	defer st.Close(zapLog)

	// --- Knowledge base and engine ---
	provider := engine.NewProvider()
	err = provider.Init(func() (*engine.Engine, error) {
		kb, err := loadKnowledgeBase(ctx, cfg.KnowledgeBase, st)
		if err != nil {
			return nil, err
		}
		return engine.New(kb, engine.FromScoring(cfg.Scoring), log)
	})
	if err != nil {
		zapLog.Fatal("diagnosis engine failed to build", zap.Error(err))
	}
	eng, _ := provider.Engine()
	metrics.KnowledgeBaseConditions.Set(float64(eng.KnowledgeBase().Len()))
	zapLog.Info("Knowledge base loaded",
		zap.String("source", cfg.KnowledgeBase.Source),
		zap.Int("conditions", eng.KnowledgeBase().Len()),
	)

	var sessions *session.Store
	if st.redis != nil {
		sessions = session.NewStore(st.redis.Client, time.Duration(cfg.Session.TTLMinutes)*time.Minute, cfg.Session.KeyPrefix)
	}
	var repo *records.Repository
	if st.pg != nil {
		repo = records.NewRepository(st.pg.DB, log)
	}

	svc := service.New(service.Options{
		Provider:      provider,
		Sessions:      sessions,
		Observability: obs,
		Logger:        log,
	})

	// --- Zeebe workers ---
	var (
		zeebe    *camunda.Client
		registry *camunda.Registry
	)
	if cfg.Camunda.Enabled {
		err = retryWithBackoff(func() error {
			var err error
			zeebe, err = camunda.NewClientWithConfig(ctx, camunda.ConfigFrom(cfg.Camunda))
			return err
		}, 10, 2*time.Second, zapLog, "Zeebe client initialization")
		if err != nil {
			zapLog.Fatal("zeebe client failed after retries", zap.Error(err))
		}
		zapLog.Info("Zeebe client connected successfully")

		registry = camunda.NewRegistry(zeebe.GetClient(), zapLog)
		registerWorkers(ctx, registry, cfg, svc, repo, obs, log, zapLog)
		zapLog.Info("Workers started", zap.Strings("taskTypes", registry.TaskTypes()))
	} else {
		zapLog.Info("Camunda disabled, serving HTTP API only")
	}

	// --- HTTP API, health and metrics ---
	server := &http.Server{
		Addr: cfg.Server.Address,
		Handler: api.NewRouter(api.Options{
			Service:        svc,
			Records:        repo,
			Observability:  obs,
			Logger:         log,
			Gatherer:       prometheus.DefaultGatherer,
			RequestTimeout: config.GetDuration(cfg.Server.RequestTimeout),
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		zapLog.Info("HTTP server listening", zap.String("address", cfg.Server.Address))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zapLog.Error("HTTP server failed", zap.Error(err))
		}
	}()

	// --- Graceful Shutdown ---
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	zapLog.Info("Shutdown signal received, stopping workers...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		zapLog.Error("Error stopping HTTP server", zap.Error(err))
	}
	if registry != nil {
		registry.Close()
	}
	if zeebe != nil {
		if err := zeebe.Close(); err != nil {
			zapLog.Error("Error closing Zeebe client", zap.Error(err))
		}
	}

	zapLog.Info("Diagnosis workers stopped gracefully")
}

func connectStores(ctx context.Context, cfg *config.Config, log *zap.Logger) *stores {
	st := &stores{}

	if cfg.Database.Postgres.Enabled {
		err := retryWithBackoff(func() error {
			var err error
			st.pg, err = database.NewPostgres(cfg.Database.Postgres)
			if err != nil {
				return err
			}
			if err := st.pg.Ping(ctx); err != nil {
				st.pg.Close()
				return err
			}
			return nil
		}, 15, 2*time.Second, log, "PostgreSQL connection")
		if err != nil {
			log.Fatal("postgres failed after retries", zap.Error(err))
		}
		if cfg.Database.Postgres.AutoMigrate {
			version, err := database.Migrate(ctx, st.pg.DB)
			if err != nil {
				log.Fatal("schema migration failed", zap.Error(err))
			}
			log.Info("Schema migrated", zap.Uint("version", version))
		}
	}

	if cfg.Database.Redis.Enabled {
		client, err := database.NewRedis(cfg.Database.Redis)
		if err == nil {
			err = client.Ping(ctx)
		}
		if err != nil {
			// sessions are optional; clarification still works without resubmission
			log.Warn("Redis unavailable, clarification sessions disabled", zap.Error(err))
		} else {
			st.redis = client
		}
	}

	if cfg.Database.Elasticsearch.Enabled {
		client, err := database.NewElasticsearch(cfg.Database.Elasticsearch)
		if err == nil {
			err = client.Ping(ctx)
		}
		if err != nil {
			log.Fatal("elasticsearch unavailable", zap.Error(err))
		}
		st.es = client
	}

	return st
}

func loadKnowledgeBase(ctx context.Context, kbc config.KnowledgeBaseConfig, st *stores) (*knowledgebase.KnowledgeBase, error) {
	ctx, cancel := context.WithTimeout(ctx, config.GetDuration(kbc.LoadTimeout))
	defer cancel()

	switch kbc.Source {
	case config.SourcePostgres:
		if st.pg == nil {
			return nil, fmt.Errorf("knowledge base source %q requires database.postgres.enabled", kbc.Source)
		}
		return knowledgebase.PostgresSource{DB: st.pg.DB, MaxConditions: kbc.MaxConditions}.Load(ctx)
	case config.SourceElasticsearch:
		if st.es == nil {
			return nil, fmt.Errorf("knowledge base source %q requires database.elasticsearch.enabled", kbc.Source)
		}
		return knowledgebase.ElasticsearchSource{
			Client:         st.es.Client,
			ConditionIndex: kbc.ConditionIdx,
			KeywordIndex:   kbc.KeywordIdx,
			MaxConditions:  kbc.MaxConditions,
		}.Load(ctx)
	default:
		return knowledgebase.FileSource{Path: kbc.Path}.Load(ctx)
	}
}

func registerWorkers(
	ctx context.Context,
	registry *camunda.Registry,
	cfg *config.Config,
	svc *service.Service,
	repo *records.Repository,
	obs *observability.Observability,
	log logger.Logger,
	zapLog *zap.Logger,
) {
	registry.Register(ds.TaskType, config.GetWorkerConfig(cfg, ds.TaskType), ds.NewHandler(ds.HandlerOptions{
		AppConfig: cfg, Service: svc, Observability: obs, Logger: log,
	}))
	registry.Register(rc.TaskType, config.GetWorkerConfig(cfg, rc.TaskType), rc.NewHandler(rc.HandlerOptions{
		AppConfig: cfg, Service: svc, Observability: obs, Logger: log,
	}))
	registry.Register(ec.TaskType, config.GetWorkerConfig(cfg, ec.TaskType), ec.NewHandler(ec.HandlerOptions{
		AppConfig: cfg, Service: svc, Observability: obs, Logger: log,
	}))
	registry.Register(cc.TaskType, config.GetWorkerConfig(cfg, cc.TaskType), cc.NewHandler(cc.HandlerOptions{
		AppConfig: cfg, Service: svc, Observability: obs, Logger: log,
	}))

	if repo != nil {
		registry.Register(rd.TaskType, config.GetWorkerConfig(cfg, rd.TaskType), rd.NewHandler(rd.HandlerOptions{
			AppConfig: cfg, Repository: repo, Observability: obs, Logger: log,
		}))
	} else {
		zapLog.Warn("PostgreSQL disabled, record-diagnosis worker not started")
	}

	opts := ne.HandlerOptions{AppConfig: cfg, Observability: obs, Logger: log}
	if cfg.Notifications.SNS.Enabled || cfg.Notifications.Email.Enabled {
		awsCfg, err := aws.LoadConfig(ctx, cfg.Notifications.Region)
		if err != nil {
			zapLog.Error("AWS config failed, escalations will be skipped", zap.Error(err))
		} else {
			if cfg.Notifications.SNS.Enabled && cfg.Notifications.SNS.TopicARN != "" {
				opts.Publisher = aws.NewSNSClientFromConfig(awsCfg, cfg.Notifications.SNS.TopicARN)
			}
			if cfg.Notifications.Email.Enabled && cfg.Notifications.Email.FromEmail != "" {
				opts.Mailer = aws.NewSESClientFromConfig(awsCfg, cfg.Notifications.Email.FromEmail)
			}
		}
	}
	registry.Register(ne.TaskType, config.GetWorkerConfig(cfg, ne.TaskType), ne.NewHandler(opts))
}
