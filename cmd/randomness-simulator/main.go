package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	simulator "github.com/radieske/headsup-settlement/internal/randomness-simulator"
	"github.com/radieske/headsup-settlement/internal/shared/config"
	skafka "github.com/radieske/headsup-settlement/internal/shared/kafka"
	"github.com/radieske/headsup-settlement/internal/shared/logger"
	"github.com/radieske/headsup-settlement/internal/shared/metrics"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}
	log, err := logger.NewWithFile("randomness-simulator", cfg.Env, cfg.LogFile)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	seed, err := simulator.NewSeed(cfg.Simulator.ServerSeed)
	if err != nil {
		log.Fatal("seed", zap.Error(err))
	}
	// só o hash vai para o log; a semente é revelada fora de banda para auditoria
	log.Info("server seed ready", zap.String("serverSeedHash", seed.Hash))

	reader := skafka.NewReader(cfg.KafkaBrokers, cfg.TopicRandomnessRequests, "randomness-simulator")
	defer reader.Close()
	writer := skafka.NewWriter(cfg.KafkaBrokers, cfg.TopicRandomnessFulfillments)
	defer writer.Close()

	srv := metrics.StartMetricsServer(cfg.MetricsPort)
	defer srv.Close()
	log.Info("metrics/health listening", zap.String("addr", srv.Addr))

	sim := &simulator.Simulator{
		Log:      log,
		Reader:   reader,
		Writer:   writer,
		Seed:     seed,
		MaxDelay: cfg.Simulator.MaxDelay,
		Secret:   []byte(cfg.AuthSecret),
		Metrics:  simulator.NewMetrics(prometheus.DefaultRegisterer),
	}
	log.Info("randomness simulator consuming",
		zap.String("requests", cfg.TopicRandomnessRequests),
		zap.String("fulfillments", cfg.TopicRandomnessFulfillments),
		zap.Duration("maxDelay", cfg.Simulator.MaxDelay),
	)
	if err := sim.Run(ctx); err != nil {
		log.Fatal("simulator", zap.Error(err))
	}
}
