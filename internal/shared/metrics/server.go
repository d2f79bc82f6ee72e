package metrics

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type HealthFunc func(ctx context.Context) error

// Handler expõe /metrics e /healthz; healthFns rodam em ordem e o primeiro erro derruba o health
func Handler(healthFns ...HealthFunc) http.Handler {
	mux := http.NewServeMux()

	mux.Handle("/metrics", promhttp.Handler())

	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 500*time.Millisecond)
		defer cancel()

		for _, fn := range healthFns {
			if err := fn(ctx); err != nil {
				w.WriteHeader(http.StatusServiceUnavailable)
				_, _ = w.Write([]byte(fmt.Sprintf("unhealthy: %v", err)))
				return
			}
		}

		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	return mux
}

// NewServer monta o servidor leve de /metrics e /healthz sem iniciá-lo
// (o main decide se roda em goroutine ou num errgroup)
func NewServer(port string, healthFns ...HealthFunc) *http.Server {
	return &http.Server{
		Addr:              ":" + port,
		Handler:           Handler(healthFns...),
		ReadHeaderTimeout: 5 * time.Second,
	}
}

// StartMetricsServer sobe o servidor numa goroutine no main de cada serviço.
func StartMetricsServer(port string, healthFns ...HealthFunc) *http.Server {
	srv := NewServer(port, healthFns...)
	go func() {
		_ = srv.ListenAndServe()
	}()
	return srv
}
