package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/radieske/headsup-settlement/internal/shared/auth"
	"github.com/radieske/headsup-settlement/internal/shared/config"
	"github.com/radieske/headsup-settlement/internal/shared/db"
	"github.com/radieske/headsup-settlement/internal/shared/logger"
	"github.com/radieske/headsup-settlement/internal/shared/metrics"
	whttp "github.com/radieske/headsup-settlement/internal/wallet-service/http"
	wrepo "github.com/radieske/headsup-settlement/internal/wallet-service/repo"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	// Inicializa logger estruturado
	log, err := logger.NewWithFile("wallet-service", cfg.Env, cfg.LogFile)
	if err != nil {
		panic(err)
	}
	defer log.Sync()
	log.Info("starting service", zap.String("service", "wallet-service"), zap.String("env", cfg.Env))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Repositório: Postgres por padrão, memória para rodar local sem banco
	var (
		repo   whttp.Repo
		health []metrics.HealthFunc
	)
	if cfg.Store == "memory" {
		mem := wrepo.NewMemory()
		repo = mem
		health = append(health, mem.Ping)
	} else {
		pg, err := db.ConnectPostgres(cfg.PostgresDSN)
		if err != nil {
			log.Fatal("postgres connect", zap.Error(err))
		}
		defer pg.Close()
		if err := db.Migrate(ctx, pg, wrepo.Schema...); err != nil {
			log.Fatal("postgres migrate", zap.Error(err))
		}
		p := wrepo.NewPostgres(pg)
		repo = p
		health = append(health, p.Ping)
	}

	api := whttp.NewServer(log, repo, auth.Identity{Secret: []byte(cfg.AuthSecret)})

	// Servidor HTTP público (API de wallet)
	apiSrv := &http.Server{
		Addr:              ":" + cfg.HTTPPort, // ex: 8082
		Handler:           api.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	// Servidor de métricas e health check
	metricsSrv := metrics.StartMetricsServer(cfg.MetricsPort, health...) // ex: 9098
	log.Info("metrics/health listening", zap.String("addr", metricsSrv.Addr))

	go func() {
		<-ctx.Done()
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = apiSrv.Shutdown(sctx)
		_ = metricsSrv.Shutdown(sctx)
	}()

	// Inicia servidor principal da API de wallet
	log.Info("api listening", zap.String("addr", apiSrv.Addr))
	if err := apiSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal("api srv", zap.Error(err))
	}
}
