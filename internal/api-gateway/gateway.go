package gateway

import (
	"fmt"
	"net/http"
	"net/http/httputil"
	"net/url"
	"path"
	"strings"

	"go.uber.org/zap"
)

// rp monta um proxy que troca o prefixo público pelo prefixo do serviço
func rp(log *zap.Logger, to, from, prefix string) (*httputil.ReverseProxy, error) {
	u, err := url.Parse(to)
	if err != nil || u.Host == "" {
		return nil, fmt.Errorf("invalid upstream url %q", to)
	}
	return &httputil.ReverseProxy{
		Rewrite: func(r *httputil.ProxyRequest) {
			r.SetURL(u)
			r.Out.URL.Path = prefix + strings.TrimPrefix(r.In.URL.Path, from)
			r.Out.URL.RawPath = ""
			r.SetXForwarded()
		},
		ErrorHandler: func(w http.ResponseWriter, r *http.Request, err error) {
			log.Warn("upstream failed", zap.String("upstream", u.Host), zap.String("path", r.URL.Path), zap.Error(err))
			http.Error(w, "upstream unavailable", http.StatusBadGateway)
		},
	}, nil
}

// rotas que só o settlement-service chama direto no wallet-service
var internalWallet = map[string]bool{
	"/api/wallet/credit":  true,
	"/api/wallet/reserve": true,
	"/api/wallet/commit":  true,
	"/api/wallet/refund":  true,
}

// New roteia /api/wallet/* para o wallet-service e o resto de /api/* para a API /v1 do settlement-service
func New(log *zap.Logger, settlementURL, walletURL string) (http.Handler, error) {
	settlement, err := rp(log, settlementURL, "/api", "/v1")
	if err != nil {
		return nil, err
	}
	wallet, err := rp(log, walletURL, "/api/wallet", "/wallet")
	if err != nil {
		return nil, err
	}

	mux := http.NewServeMux()

	// wallet (ex.: /api/wallet/deposit -> wallet-service /wallet/deposit)
	mux.Handle("/api/wallet", wallet)
	mux.Handle("/api/wallet/", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if internalWallet[path.Clean(r.URL.Path)] {
			http.NotFound(w, r)
			return
		}
		wallet.ServeHTTP(w, r)
	}))

	// apostas, admin, stats, ws (ex.: /api/wagers/1 -> settlement-service /v1/wagers/1)
	mux.Handle("/api/", settlement)

	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	return withCORS(mux), nil
}

func withCORS(h http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Caller")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, OPTIONS")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		h.ServeHTTP(w, r)
	})
}
