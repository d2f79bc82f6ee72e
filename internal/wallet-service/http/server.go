package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/radieske/headsup-settlement/internal/shared/auth"
	"github.com/radieske/headsup-settlement/internal/wallet-service/dto"
	"github.com/radieske/headsup-settlement/internal/wallet-service/repo"
)

// Repo define a interface de operações de carteira usadas pelo handler HTTP
type Repo interface {
	GetOrCreateWallet(ctx context.Context, userID string) (walletID string, balance decimal.Decimal, err error)
	Credit(ctx context.Context, userID string, amount decimal.Decimal, externalRef, op string) (repo.Result, error)
	Reserve(ctx context.Context, userID string, amount decimal.Decimal, externalRef string) (repo.Result, error)
	Commit(ctx context.Context, userID, externalRef string) error
	Refund(ctx context.Context, userID, externalRef string) error
}

// Server expõe endpoints HTTP para operações de carteira (wallet)
type Server struct {
	log  *zap.Logger
	repo Repo
	id   auth.Identity
}

// NewServer instancia o servidor HTTP de wallet.
// As rotas internas só aceitam o settlement-service como chamador (X-Caller ou token).
func NewServer(log *zap.Logger, repo Repo, id auth.Identity) *Server {
	return &Server{log: log, repo: repo, id: id}
}

// Router retorna o mux HTTP com as rotas da API de wallet
func (s *Server) Router() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/wallet", s.getWallet)       // GET ?userId=...
	mux.HandleFunc("/wallet/deposit", s.deposit) // POST

	// rotas do settlement-service
	mux.Handle("/wallet/credit", s.internal(s.credit))   // POST pagamentos, reembolsos e saques
	mux.Handle("/wallet/reserve", s.internal(s.reserve)) // POST stakes e depósitos no caixa
	mux.Handle("/wallet/commit", s.internal(s.commit))   // POST
	mux.Handle("/wallet/refund", s.internal(s.refund))   // POST
	return mux
}

// internal restringe a rota ao settlement-service
func (s *Server) internal(h http.HandlerFunc) http.Handler {
	return s.id.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if caller := auth.Caller(r.Context()); caller != dto.SettlementCaller {
			s.log.Warn("internal wallet route refused", zap.String("path", r.URL.Path), zap.String("caller", caller))
			http.Error(w, "forbidden", http.StatusForbidden)
			return
		}
		h(w, r)
	}))
}

// getWallet retorna (ou cria) a carteira e saldo do usuário
func (s *Server) getWallet(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	userID := r.URL.Query().Get("userId")
	if userID == "" {
		http.Error(w, "userId required", http.StatusBadRequest)
		return
	}
	walletID, bal, err := s.repo.GetOrCreateWallet(r.Context(), userID)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, dto.WalletResponse{UserID: userID, WalletID: walletID, Balance: bal})
}

// deposit adiciona saldo à carteira do usuário
func (s *Server) deposit(w http.ResponseWriter, r *http.Request) {
	var req dto.DepositRequest
	if !decode(w, r, &req) {
		return
	}
	if req.UserID == "" || !req.Amount.IsPositive() {
		http.Error(w, "invalid payload", http.StatusBadRequest)
		return
	}
	s.apply(w, r, req.UserID, req.Amount, req.ExternalRef, repo.OpDeposit)
}

// credit paga um prêmio/reembolso/saque; external_ref é obrigatório
func (s *Server) credit(w http.ResponseWriter, r *http.Request) {
	var req dto.CreditRequest
	if !decode(w, r, &req) {
		return
	}
	if req.UserID == "" || !req.Amount.IsPositive() || req.ExternalRef == "" {
		http.Error(w, "invalid payload", http.StatusBadRequest)
		return
	}
	s.apply(w, r, req.UserID, req.Amount, req.ExternalRef, repo.OpCredit)
}

// reserve debita o valor e deixa a reserva PENDING (idempotente por external_ref)
func (s *Server) reserve(w http.ResponseWriter, r *http.Request) {
	var req dto.ReserveRequest
	if !decode(w, r, &req) {
		return
	}
	if req.UserID == "" || !req.Amount.IsPositive() || req.ExternalRef == "" {
		http.Error(w, "invalid payload", http.StatusBadRequest)
		return
	}
	res, err := s.repo.Reserve(r.Context(), req.UserID, req.Amount, req.ExternalRef)
	if err != nil {
		s.fail(w, "wallet reserve failed", req.UserID, req.ExternalRef, err)
		return
	}
	writeJSON(w, dto.WalletResponse{UserID: req.UserID, WalletID: res.WalletID, Balance: res.Balance, Duplicate: res.Duplicate})
}

// commit efetiva uma reserva
func (s *Server) commit(w http.ResponseWriter, r *http.Request) {
	s.settle(w, r, s.repo.Commit, "wallet commit failed")
}

// refund devolve uma reserva PENDING ao saldo
func (s *Server) refund(w http.ResponseWriter, r *http.Request) {
	s.settle(w, r, s.repo.Refund, "wallet refund failed")
}

func (s *Server) settle(w http.ResponseWriter, r *http.Request, op func(context.Context, string, string) error, msg string) {
	var req dto.ReservationRequest
	if !decode(w, r, &req) {
		return
	}
	if req.UserID == "" || req.ExternalRef == "" {
		http.Error(w, "invalid payload", http.StatusBadRequest)
		return
	}
	if err := op(r.Context(), req.UserID, req.ExternalRef); err != nil {
		s.fail(w, msg, req.UserID, req.ExternalRef, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) fail(w http.ResponseWriter, msg, userID, ref string, err error) {
	switch {
	case errors.Is(err, repo.ErrInvalidAmount):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, repo.ErrInsufficientFunds):
		http.Error(w, err.Error(), http.StatusConflict)
	case errors.Is(err, repo.ErrNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	default:
		s.log.Error(msg, zap.String("userId", userID), zap.String("ref", ref), zap.Error(err))
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func (s *Server) apply(w http.ResponseWriter, r *http.Request, userID string, amount decimal.Decimal, ref, op string) {
	res, err := s.repo.Credit(r.Context(), userID, amount, ref, op)
	if err != nil {
		if errors.Is(err, repo.ErrInvalidAmount) {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		s.log.Error("wallet credit failed", zap.String("userId", userID), zap.String("ref", ref), zap.Error(err))
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if res.Duplicate {
		s.log.Info("duplicate credit ignored", zap.String("userId", userID), zap.String("ref", ref))
	}
	writeJSON(w, dto.WalletResponse{UserID: userID, WalletID: res.WalletID, Balance: res.Balance, Duplicate: res.Duplicate})
}

// decode valida método POST e lê o JSON do corpo
func decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return false
	}
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		http.Error(w, "bad json", http.StatusBadRequest)
		return false
	}
	return true
}

// writeJSON serializa e envia resposta JSON
func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
