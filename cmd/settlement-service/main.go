package main

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	scache "github.com/radieske/headsup-settlement/internal/settlement-service/cache"
	"github.com/radieske/headsup-settlement/internal/settlement-service/consumer"
	"github.com/radieske/headsup-settlement/internal/settlement-service/engine"
	httpapi "github.com/radieske/headsup-settlement/internal/settlement-service/http"
	smetrics "github.com/radieske/headsup-settlement/internal/settlement-service/metrics"
	"github.com/radieske/headsup-settlement/internal/settlement-service/payout"
	"github.com/radieske/headsup-settlement/internal/settlement-service/producer"
	"github.com/radieske/headsup-settlement/internal/settlement-service/pubsub"
	"github.com/radieske/headsup-settlement/internal/settlement-service/repo"
	"github.com/radieske/headsup-settlement/internal/settlement-service/ws"
	"github.com/radieske/headsup-settlement/internal/shared/auth"
	"github.com/radieske/headsup-settlement/internal/shared/cache"
	"github.com/radieske/headsup-settlement/internal/shared/config"
	"github.com/radieske/headsup-settlement/internal/shared/db"
	skafka "github.com/radieske/headsup-settlement/internal/shared/kafka"
	"github.com/radieske/headsup-settlement/internal/shared/logger"
	"github.com/radieske/headsup-settlement/internal/shared/metrics"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}
	if cfg.ServiceName == "" {
		cfg.ServiceName = "settlement-service"
	}
	log, err := logger.NewWithFile(cfg.ServiceName, cfg.Env, cfg.LogFile)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var health []metrics.HealthFunc

	// Store
	store, closeStore, err := openStore(ctx, cfg, &health)
	if err != nil {
		log.Fatal("store", zap.String("store", cfg.Store), zap.Error(err))
	}
	defer closeStore()

	// Redis: cache de apostas liquidadas + broadcast para o WS
	rdb, err := cache.ConnectRedis(ctx, cfg.RedisAddr)
	if err != nil {
		log.Fatal("redis", zap.Error(err))
	}
	defer rdb.Close()
	health = append(health, func(ctx context.Context) error { return rdb.Ping(ctx).Err() })

	// Kafka
	requestsW := skafka.NewWriter(cfg.KafkaBrokers, cfg.TopicRandomnessRequests)
	defer requestsW.Close()
	eventsW := skafka.NewWriter(cfg.KafkaBrokers, cfg.TopicWagerEvents)
	defer eventsW.Close()
	dlqW := skafka.NewWriter(cfg.KafkaBrokers, cfg.TopicRandomnessFulfillmentsDLQ)
	defer dlqW.Close()
	fulfillR := skafka.NewReader(cfg.KafkaBrokers, cfg.TopicRandomnessFulfillments, cfg.ServiceName)
	defer fulfillR.Close()

	m := smetrics.New(prometheus.DefaultRegisterer)

	// a mesma carteira paga prêmios e cobra stakes/depósitos
	wallet := payout.New(cfg.WalletURL, []byte(cfg.AuthSecret))

	ec := cfg.Engine
	eng, err := engine.New(ctx, log, store, engine.Options{
		Provider:  producer.NewRandomnessPublisher(requestsW),
		Payer:     wallet,
		Collector: wallet,
		Publisher: producer.Fanout{
			producer.NewEventPublisher(eventsW),
			pubsub.NewRedisBroadcaster(rdb, cfg.RedisPubSubChannel),
		},
		Genesis: engine.Genesis{
			Owner:        ec.Owner,
			MinBet:       ec.MinBet,
			MaxBet:       ec.MaxBet,
			HouseEdgeBps: ec.HouseEdgeBps,
			Randomness: engine.RandomnessConfig{
				Coordinator:          ec.Randomness.Coordinator,
				SubscriptionID:       ec.Randomness.SubscriptionID,
				KeyHash:              ec.Randomness.KeyHash,
				CallbackGasLimit:     ec.Randomness.CallbackGasLimit,
				RequestConfirmations: ec.Randomness.RequestConfirmations,
				NumWords:             ec.Randomness.NumWords,
			},
		},
		RefundAfter: ec.RefundAfter,
		Hooks:       m.Hooks(),
	})
	if err != nil {
		log.Fatal("engine", zap.Error(err))
	}
	log.Info("engine ready",
		zap.String("store", cfg.Store),
		zap.String("version", eng.Version()),
		zap.String("owner", eng.Owner()),
		zap.Uint64("totalGames", eng.Stats().TotalGames),
	)

	// WebSocket: eventos chegam pelo Redis Pub/Sub (todas as réplicas recebem)
	hub := ws.NewHub(log, func(r *http.Request) bool { return true })
	ws.StartRedisSubscriber(ctx, log, rdb, cfg.RedisPubSubChannel, hub)

	api := httpapi.NewServer(log, eng,
		auth.Identity{Secret: []byte(cfg.AuthSecret)},
		scache.NewWagerCache(rdb, time.Hour),
		http.HandlerFunc(hub.HandleWS),
	)
	apiSrv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           api.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	metricsSrv := metrics.NewServer(cfg.MetricsPort, health...)

	proc := &consumer.Processor{
		Log:          log.Named("fulfillments"),
		Reader:       fulfillR,
		Engine:       eng,
		DLQ:          dlqW,
		Identity:     auth.Identity{Secret: []byte(cfg.AuthSecret)},
		OnConsumed:   m.Consumed.Inc,
		OnError:      func(stage string) { m.ConsumerErrors.WithLabelValues(stage).Inc() },
		OnDeadLetter: m.DeadLettered.Inc,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("api listening", zap.String("addr", apiSrv.Addr))
		if err := apiSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		log.Info("metrics/health listening", zap.String("addr", metricsSrv.Addr))
		if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		if err := proc.Run(gctx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		sctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = apiSrv.Shutdown(sctx)
		_ = metricsSrv.Shutdown(sctx)
		return nil
	})

	if err := g.Wait(); err != nil {
		log.Error("settlement-service stopped", zap.Error(err))
		return
	}
	log.Info("settlement-service stopped")
}

// openStore escolhe a persistência pelo STORE (memory | postgres | sqlite)
func openStore(ctx context.Context, cfg config.Config, health *[]metrics.HealthFunc) (engine.Store, func(), error) {
	switch cfg.Store {
	case "memory":
		return engine.NewMemoryStore(), func() {}, nil
	case "sqlite":
		s, err := repo.OpenSQLite(ctx, cfg.SQLitePath)
		if err != nil {
			return nil, nil, err
		}
		*health = append(*health, s.Ping)
		return s, func() { _ = s.Close() }, nil
	case "postgres", "":
		pg, err := db.ConnectPostgres(cfg.PostgresDSN)
		if err != nil {
			return nil, nil, err
		}
		if err := db.Migrate(ctx, pg, repo.Schema...); err != nil {
			_ = pg.Close()
			return nil, nil, err
		}
		s := repo.NewPostgres(pg)
		*health = append(*health, s.Ping)
		return s, closer(pg), nil
	default:
		return nil, nil, errors.New("unknown STORE " + cfg.Store)
	}
}

func closer(pg *sql.DB) func() { return func() { _ = pg.Close() } }
