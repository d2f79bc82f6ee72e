package main

import (
	"net/http"
	"time"

	"go.uber.org/zap"

	gateway "github.com/radieske/headsup-settlement/internal/api-gateway"
	"github.com/radieske/headsup-settlement/internal/shared/config"
	"github.com/radieske/headsup-settlement/internal/shared/logger"
	"github.com/radieske/headsup-settlement/internal/shared/metrics"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}
	log, err := logger.NewWithFile("api-gateway", cfg.Env, cfg.LogFile)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	h, err := gateway.New(log, cfg.SettlementURL, cfg.WalletURL)
	if err != nil {
		log.Fatal("gateway routes", zap.Error(err))
	}

	metricsSrv := metrics.StartMetricsServer(cfg.MetricsPort)
	defer metricsSrv.Close()

	srv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           h,
		ReadHeaderTimeout: 5 * time.Second,
	}
	log.Info("api-gateway listening",
		zap.String("addr", srv.Addr),
		zap.String("settlement", cfg.SettlementURL),
		zap.String("wallet", cfg.WalletURL),
	)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatal("gateway failed", zap.Error(err))
	}
}
