package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/radieske/headsup-settlement/internal/settlement-service/dto"
	"github.com/radieske/headsup-settlement/internal/settlement-service/engine"
	"github.com/radieske/headsup-settlement/internal/shared/auth"
)

// WagerCache é o cache opcional de registros já liquidados
type WagerCache interface {
	Get(ctx context.Context, id uint64) (engine.Wager, bool, error)
	Set(ctx context.Context, w engine.Wager) error
}

type Server struct {
	log   *zap.Logger
	eng   *engine.Engine
	id    auth.Identity
	cache WagerCache   // pode ser nil
	ws    http.Handler // pode ser nil
}

func NewServer(log *zap.Logger, eng *engine.Engine, id auth.Identity, cache WagerCache, ws http.Handler) *Server {
	return &Server{log: log, eng: eng, id: id, cache: cache, ws: ws}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Route("/v1", func(r chi.Router) {
		if s.ws != nil {
			r.Get("/events/ws", s.ws.ServeHTTP)
		}

		r.Group(func(r chi.Router) {
			r.Use(s.id.Middleware)

			r.Post("/wagers", s.submitWager)
			r.Get("/wagers/{id}", s.getWager)
			r.Post("/wagers/{id}/payout", s.retryPayout)
			r.Post("/wagers/{id}/request", s.requestRandomness)
			r.Get("/players/{player}/wagers", s.playerWagers)

			r.Get("/stats", s.stats)
			r.Get("/limits", s.limits)
			r.Get("/randomness", s.randomnessConfig)
			r.Get("/version", s.version)
			r.Get("/leaderboard", s.leaderboard)

			r.Post("/fund", s.fund)
			r.Post("/randomness/callback", s.fulfill)

			r.Route("/admin", func(r chi.Router) {
				r.Post("/withdraw", s.withdraw)
				r.Put("/limits", s.updateLimits)
				r.Put("/randomness", s.updateRandomness)
				r.Put("/logic", s.upgrade)
				r.Post("/wagers/{id}/refund", s.refund)
			})
		})
	})
	return r
}

func (s *Server) submitWager(w http.ResponseWriter, r *http.Request) {
	var req dto.SubmitWagerRequest
	if !decode(w, r, &req) {
		return
	}
	if req.Choice == nil {
		writeError(w, engine.ErrInvalidChoice)
		return
	}
	player := auth.Caller(r.Context())
	id, err := s.eng.Submit(r.Context(), player, req.Amount, engine.Choice(*req.Choice))
	if err != nil && id == 0 {
		writeError(w, err)
		return
	}

	resp := dto.SubmitWagerResponse{WagerID: id, Status: string(engine.StatusPending)}
	if err != nil {
		// aposta gravada; o pedido de aleatoriedade pode ser reenviado via /request
		s.log.Warn("wager persisted without randomness request", zap.Uint64("wagerId", id), zap.Error(err))
		resp.Message = "randomness request failed; retry with POST /v1/wagers/" + strconv.FormatUint(id, 10) + "/request"
	}
	writeJSON(w, http.StatusAccepted, resp)
}

func (s *Server) getWager(w http.ResponseWriter, r *http.Request) {
	id, ok := wagerID(w, r)
	if !ok {
		return
	}
	if s.cache != nil {
		if cached, hit, err := s.cache.Get(r.Context(), id); err == nil && hit {
			writeJSON(w, http.StatusOK, cached)
			return
		} else if err != nil {
			s.log.Warn("wager cache read failed", zap.Uint64("wagerId", id), zap.Error(err))
		}
	}

	wg, err := s.eng.GetWager(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	if s.cache != nil && wg.Settled() {
		if err := s.cache.Set(r.Context(), wg); err != nil {
			s.log.Warn("wager cache write failed", zap.Uint64("wagerId", id), zap.Error(err))
		}
	}
	writeJSON(w, http.StatusOK, wg)
}

func (s *Server) playerWagers(w http.ResponseWriter, r *http.Request) {
	player := chi.URLParam(r, "player")
	ids, err := s.eng.WagersByPlayer(r.Context(), player)
	if err != nil {
		writeError(w, err)
		return
	}
	if ids == nil {
		ids = []uint64{}
	}
	writeJSON(w, http.StatusOK, dto.PlayerWagersResponse{Player: player, WagerIDs: ids})
}

func (s *Server) retryPayout(w http.ResponseWriter, r *http.Request) {
	id, ok := wagerID(w, r)
	if !ok {
		return
	}
	if err := s.eng.RetryPayout(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, dto.StatusResponse{Status: string(engine.PayoutPaid)})
}

func (s *Server) requestRandomness(w http.ResponseWriter, r *http.Request) {
	id, ok := wagerID(w, r)
	if !ok {
		return
	}
	if err := s.eng.RequestRandomness(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, dto.StatusResponse{Status: "REQUESTED"})
}

func (s *Server) stats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.eng.Stats())
}

func (s *Server) limits(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.eng.BetLimits())
}

func (s *Server) randomnessConfig(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.eng.RandomnessConfig())
}

func (s *Server) version(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, dto.VersionResponse{Version: s.eng.Version()})
}

func (s *Server) leaderboard(w http.ResponseWriter, r *http.Request) {
	limit := 10
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Code: "BadRequest", Error: "limit must be a non-negative integer"})
			return
		}
		limit = n
	}
	entries, err := s.eng.Leaderboard(r.Context(), limit)
	if err != nil {
		writeError(w, err)
		return
	}
	if entries == nil {
		entries = []engine.LeaderboardEntry{}
	}
	writeJSON(w, http.StatusOK, entries)
}

func (s *Server) fund(w http.ResponseWriter, r *http.Request) {
	var req dto.AmountRequest
	if !decode(w, r, &req) {
		return
	}
	if err := s.eng.Fund(r.Context(), auth.Caller(r.Context()), req.Amount); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.eng.Stats())
}

func (s *Server) withdraw(w http.ResponseWriter, r *http.Request) {
	var req dto.AmountRequest
	if !decode(w, r, &req) {
		return
	}
	if err := s.eng.Withdraw(r.Context(), auth.Caller(r.Context()), req.Amount); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.eng.Stats())
}

func (s *Server) updateLimits(w http.ResponseWriter, r *http.Request) {
	var req dto.BetLimitsRequest
	if !decode(w, r, &req) {
		return
	}
	if err := s.eng.UpdateBetLimits(r.Context(), auth.Caller(r.Context()), req.Min, req.Max); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.eng.BetLimits())
}

func (s *Server) updateRandomness(w http.ResponseWriter, r *http.Request) {
	var req dto.RandomnessConfigRequest
	if !decode(w, r, &req) {
		return
	}
	cfg := engine.RandomnessConfig{
		Coordinator:          req.Coordinator,
		SubscriptionID:       req.SubscriptionID,
		KeyHash:              req.KeyHash,
		CallbackGasLimit:     req.CallbackGasLimit,
		RequestConfirmations: req.RequestConfirmations,
		NumWords:             req.NumWords,
	}
	if err := s.eng.UpdateRandomnessConfig(r.Context(), auth.Caller(r.Context()), cfg); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.eng.RandomnessConfig())
}

func (s *Server) upgrade(w http.ResponseWriter, r *http.Request) {
	var req dto.UpgradeRequest
	if !decode(w, r, &req) {
		return
	}
	if err := s.eng.UpgradeTo(r.Context(), auth.Caller(r.Context()), req.Version); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, dto.VersionResponse{Version: s.eng.Version()})
}

func (s *Server) refund(w http.ResponseWriter, r *http.Request) {
	id, ok := wagerID(w, r)
	if !ok {
		return
	}
	if err := s.eng.RefundExpired(r.Context(), auth.Caller(r.Context()), id); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, dto.StatusResponse{Status: string(engine.StatusRefunded)})
}

// fulfill é a entrada HTTP do provedor (o caminho normal é o tópico Kafka)
func (s *Server) fulfill(w http.ResponseWriter, r *http.Request) {
	var req dto.FulfillmentRequest
	if !decode(w, r, &req) {
		return
	}
	word, err := engine.FirstWord(req.RandomWords)
	if err != nil {
		writeError(w, err)
		return
	}
	res, err := s.eng.OnFulfillment(r.Context(), req.RequestID, word, auth.Caller(r.Context()))
	if err != nil && !errors.Is(err, engine.ErrTransferFailed) {
		writeError(w, err)
		return
	}
	if err != nil {
		// liquidação gravada; só a transferência falhou
		writeJSON(w, http.StatusBadGateway, struct {
			engine.Resolution
			Code  string `json:"code"`
			Error string `json:"error"`
		}{res, engine.Code(err), err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func wagerID(w http.ResponseWriter, r *http.Request) (uint64, bool) {
	id, err := strconv.ParseUint(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Code: "BadRequest", Error: "invalid wager id"})
		return 0, false
	}
	return id, true
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Code: "BadRequest", Error: "bad json"})
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, err error) {
	code := engine.Code(err)
	writeJSON(w, statusOf(code), dto.ErrorResponse{Code: code, Error: err.Error()})
}

func statusOf(code string) int {
	switch code {
	case "InvalidChoice", "BetTooLow", "BetTooHigh", "InvalidAmount", "InvalidPlayer",
		"InvalidRandomValue", "InvalidLimits", "InvalidConfig":
		return http.StatusBadRequest
	case "Unauthorized", "UnauthorizedCaller":
		return http.StatusForbidden
	case "UnknownRequest", "WagerNotFound":
		return http.StatusNotFound
	case "InsufficientLiquidity", "InsufficientAvailableBalance", "DuplicateRequest",
		"AlreadyFulfilled", "NotPending", "NotExpired", "PayoutNotOwed", "PayoutInProgress", "InsufficientFunds":
		return http.StatusConflict
	case "TransferFailed":
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
