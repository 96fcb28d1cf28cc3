// main wires high-level dependencies, exposes the HTTP router, and keeps the
// server lifecycle small. Business logic lives in the internal packages.
package main

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"golang.org/x/sync/errgroup"

	"persona-gateway/internal/audit"
	"persona-gateway/internal/docustore"
	"persona-gateway/internal/ledger"
	personahandler "persona-gateway/internal/persona/handler"
	personametrics "persona-gateway/internal/persona/metrics"
	personaservice "persona-gateway/internal/persona/service"
	"persona-gateway/internal/persona/score"
	"persona-gateway/internal/platform/config"
	"persona-gateway/internal/platform/httpserver"
	"persona-gateway/internal/platform/logger"
	"persona-gateway/internal/platform/metrics"
	redisplatform "persona-gateway/internal/platform/redis"
	"persona-gateway/internal/proof"
	rewardhandler "persona-gateway/internal/reward/handler"
	rewardmetrics "persona-gateway/internal/reward/metrics"
	rewardservice "persona-gateway/internal/reward/service"
	httptransport "persona-gateway/internal/transport/http"
)

func main() {
	cfg := config.FromEnv()
	log := logger.New()
	slog.SetDefault(log)

	if err := run(cfg, log); err != nil {
		log.Error("gateway exited", "error", err)
		os.Exit(1)
	}
}

func run(cfg config.Config, log *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Document store: the chain contract when configured, in-memory otherwise.
	var docs docustore.Store
	if cfg.Chain.ContractAddress != "" {
		docs = docustore.NewContract(docustore.ContractConfig{
			LCDURL:          cfg.Chain.LCDURL,
			SignerURL:       cfg.Chain.SignerURL,
			ContractAddress: cfg.Chain.ContractAddress,
		})
	} else {
		log.Warn("no contract address configured, using in-memory document store")
		docs = docustore.NewInMemory()
	}

	chainLedger := ledger.NewClient(ledger.ClientConfig{
		LCDURL:    cfg.Chain.LCDURL,
		SignerURL: cfg.Chain.SignerURL,
	})

	// Audit: postgres when configured, kafka fan-out when brokers are set.
	var auditStore audit.Store = audit.NewInMemoryStore()
	if cfg.Postgres.DSN != "" {
		db, err := sql.Open("pgx", cfg.Postgres.DSN)
		if err != nil {
			return err
		}
		defer db.Close()
		if err := db.PingContext(ctx); err != nil {
			return err
		}
		auditStore = audit.NewPostgresStore(db)
	}
	var sinks []audit.Sink
	if len(cfg.Kafka.Brokers) > 0 {
		kafkaSink, err := audit.NewKafkaSink(cfg.Kafka.Brokers, cfg.Kafka.AuditTopic)
		if err != nil {
			return err
		}
		defer kafkaSink.Close()
		sinks = append(sinks, kafkaSink)
	}
	publisher := audit.NewPublisher(auditStore, log, sinks...)

	// Audit emission is off the request path: services enqueue, the worker
	// persists and fans out. The queue drops when full rather than blocking a
	// purchase on a slow audit backend.
	auditInbox := make(chan audit.Event, 256)
	auditQueue := audit.NewQueue(auditInbox)
	auditWorker := audit.NewWorker(publisher, auditInbox)

	// Scoring: the model engine when credentials exist, otherwise disabled;
	// verifications then commit with the explicit staleness marker.
	var engine score.Engine = score.DisabledEngine{}
	if cfg.Scoring.APIKey != "" {
		llm, err := score.NewLLMEngine(score.LLMConfig{
			APIKey:   cfg.Scoring.APIKey,
			Model:    cfg.Scoring.Model,
			Endpoint: cfg.Scoring.Endpoint,
		})
		if err != nil {
			return err
		}
		engine = llm
	} else {
		log.Warn("no scoring credentials configured, scores will be marked stale")
	}

	scoreOpts := []score.Option{score.WithLogger(log)}
	rdb, err := redisplatform.New(cfg.Redis)
	if err != nil {
		return err
	}
	if rdb != nil {
		defer rdb.Close()
		scoreOpts = append(scoreOpts, score.WithCache(score.NewCache(rdb.Client, cfg.Scoring.CacheTTL, log)))
	}
	policy := score.NewPolicy(engine, scoreOpts...)

	acquirer := proof.NewClient(proof.ClientConfig{
		BridgeURL:    cfg.Verification.BridgeURL,
		AppID:        cfg.Verification.AppID,
		AppSecret:    cfg.Verification.AppSecret,
		PollInterval: cfg.Verification.PollInterval,
	})

	personas := personaservice.New(docs, acquirer, policy,
		personaservice.WithLogger(log),
		personaservice.WithAuditPublisher(auditQueue),
		personaservice.WithMetrics(personametrics.New()),
		personaservice.WithLedger(chainLedger, cfg.Chain.Denom),
	)
	rewards := rewardservice.New(docs, chainLedger, personas, cfg.Chain.Denom,
		rewardservice.WithLogger(log),
		rewardservice.WithAuditPublisher(auditQueue),
		rewardservice.WithMetrics(rewardmetrics.New()),
	)

	router := httptransport.NewRouter(httptransport.Deps{
		Config:      cfg.Server,
		Logger:      log,
		HTTPMetrics: metrics.New(),
		Persona:     personahandler.New(personas, log),
		Reward:      rewardhandler.New(rewards, log),
		Health: func() error {
			if rdb != nil {
				hctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
				defer cancel()
				return rdb.Health(hctx)
			}
			return nil
		},
	})

	srv := httpserver.New(cfg.Server.Addr, router)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		// Audit is best effort end to end: a dead audit backend degrades the
		// gateway (queue fills, emits get dropped and logged) but never
		// stops it.
		if err := auditWorker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Error("audit worker stopped", "error", err)
		}
		return nil
	})
	g.Go(func() error {
		log.Info("starting persona gateway", "addr", cfg.Server.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	log.Info("persona gateway stopped")
	return nil
}
