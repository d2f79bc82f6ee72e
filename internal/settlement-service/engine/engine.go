package engine

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/radieske/headsup-settlement/pkg/contracts/events"
)

// Genesis são os parâmetros usados quando ainda não existe estado persistido
type Genesis struct {
	Owner        string
	MinBet       decimal.Decimal
	MaxBet       decimal.Decimal
	HouseEdgeBps uint32
	Randomness   RandomnessConfig
}

func (g Genesis) validate() error {
	if g.Owner == "" {
		return fmt.Errorf("%w: owner required", ErrInvalidConfig)
	}
	if !g.MinBet.IsPositive() || g.MinBet.GreaterThan(g.MaxBet) {
		return ErrInvalidLimits
	}
	if g.HouseEdgeBps >= BasisPoints {
		return fmt.Errorf("%w: house edge must be below %d bps", ErrInvalidConfig, BasisPoints)
	}
	return g.Randomness.Validate()
}

type Options struct {
	Provider    RandomnessProvider
	Payer       Payer
	Collector   Collector
	Publisher   Publisher // opcional
	Logic       Logic     // default StandardLogic
	Genesis     Genesis
	RefundAfter time.Duration // idade mínima para RefundExpired; default 24h
	Now         func() time.Time
	Hooks       Hooks
}

// Engine é o motor de liquidação. Todas as transições de estado passam por mu
// (um escritor por vez); chamadas externas acontecem fora do lock.
type Engine struct {
	log      *zap.Logger
	store    Store
	provider RandomnessProvider
	payer    Payer
	funds    Collector
	pub      Publisher
	now      func() time.Time
	hooks    Hooks

	refundAfter time.Duration

	mu     sync.RWMutex
	state  State
	logic  Logic
	asking map[uint64]string // pedidos de aleatoriedade em voo -> coordinator
	paying map[uint64]struct{}
}

func New(ctx context.Context, log *zap.Logger, store Store, opts Options) (*Engine, error) {
	if opts.Provider == nil || opts.Payer == nil || opts.Collector == nil {
		return nil, fmt.Errorf("%w: provider, payer and collector required", ErrInvalidConfig)
	}
	e := &Engine{
		log:         log,
		store:       store,
		provider:    opts.Provider,
		payer:       opts.Payer,
		funds:       opts.Collector,
		pub:         opts.Publisher,
		now:         opts.Now,
		hooks:       opts.Hooks,
		refundAfter: opts.RefundAfter,
		logic:       opts.Logic,
		asking:      make(map[uint64]string),
		paying:      make(map[uint64]struct{}),
	}
	if e.now == nil {
		e.now = time.Now
	}
	if e.refundAfter <= 0 {
		e.refundAfter = 24 * time.Hour
	}

	st, found, err := store.LoadState(ctx)
	if err != nil {
		return nil, fmt.Errorf("load state: %w", err)
	}
	if e.logic == nil {
		// retoma a versão gravada quando ela está registrada
		e.logic = StandardLogic{}
		if found {
			if l, err := LogicFor(st.Version); err == nil {
				e.logic = l
			}
		}
	}
	if !found {
		if err := opts.Genesis.validate(); err != nil {
			return nil, err
		}
		g := opts.Genesis
		st = State{
			NextID:            1,
			TotalVolume:       decimal.Zero,
			TotalFees:         decimal.Zero,
			AvailableBalance:  decimal.Zero,
			ReservedLiability: decimal.Zero,
			EscrowedStakes:    decimal.Zero,
			MinBet:            g.MinBet,
			MaxBet:            g.MaxBet,
			HouseEdgeBps:      g.HouseEdgeBps,
			Owner:             g.Owner,
			Randomness:        g.Randomness,
			Version:           e.logic.Version(),
		}
		if err := store.Apply(ctx, Batch{State: st}); err != nil {
			return nil, fmt.Errorf("init state: %w", err)
		}
		log.Info("contract state initialized", zap.String("owner", st.Owner), zap.String("version", st.Version))
	} else if st.Version != e.logic.Version() {
		// binário novo sobre estado antigo: conta como upgrade
		log.Info("logic version changed", zap.String("from", st.Version), zap.String("to", e.logic.Version()))
		st.Version = e.logic.Version()
		if err := store.Apply(ctx, Batch{State: st}); err != nil {
			return nil, fmt.Errorf("persist version: %w", err)
		}
	}
	e.state = st
	e.notifyState(st)
	return e, nil
}

// Submit valida, cobra o stake da carteira do jogador, reserva a liability,
// registra a aposta PENDING e pede aleatoriedade.
// Se a aposta foi gravada mas o pedido ao provedor falhou, retorna o id junto com o erro.
func (e *Engine) Submit(ctx context.Context, player string, amount decimal.Decimal, choice Choice) (uint64, error) {
	if player == "" {
		return 0, e.reject(ErrInvalidPlayer)
	}

	e.mu.RLock()
	_, err := e.admit(amount, choice)
	e.mu.RUnlock()
	if err != nil {
		return 0, e.reject(err)
	}

	// o stake sai da carteira antes do commit; qualquer falha daqui em diante devolve
	ref := stakeRef()
	if err := e.collect(ctx, player, amount, ref); err != nil {
		return 0, e.reject(err)
	}

	e.mu.Lock()
	q, err := e.admit(amount, choice)
	if err != nil {
		e.mu.Unlock()
		e.release(ctx, player, ref)
		return 0, e.reject(err)
	}
	st := e.state
	w := Wager{
		ID:            st.NextID,
		Player:        player,
		Amount:        amount,
		Choice:        choice,
		Status:        StatusPending,
		Payout:        decimal.Zero,
		Fee:           q.Fee,
		Liability:     q.Liability,
		PayoutState:   PayoutNone,
		LogicVersion:  e.logic.Version(),
		SchemaVersion: SchemaVersion,
		SubmittedAt:   e.now().UTC(),
	}
	st.NextID++
	st.TotalGames++
	st.TotalVolume = st.TotalVolume.Add(amount)
	st.TotalFees = st.TotalFees.Add(q.Fee)
	st.AvailableBalance = st.AvailableBalance.Sub(q.Liability).Add(q.Fee)
	st.ReservedLiability = st.ReservedLiability.Add(q.Liability)
	st.EscrowedStakes = st.EscrowedStakes.Add(amount.Sub(q.Fee))

	if err := e.commit(ctx, st, w); err != nil {
		e.mu.Unlock()
		e.release(ctx, player, ref)
		return 0, fmt.Errorf("persist wager: %w", err)
	}
	e.mu.Unlock()
	e.settleHold(ctx, player, ref)

	e.log.Info("wager submitted",
		zap.Uint64("wagerId", w.ID),
		zap.String("player", player),
		zap.String("amount", amount.String()),
		zap.String("choice", choice.String()),
		zap.String("stakeRef", ref),
	)
	if e.hooks.OnSubmitted != nil {
		e.hooks.OnSubmitted(amount)
	}
	e.emit(ctx, events.TypeWagerRequested, events.WagerRequested{
		WagerID: w.ID,
		Player:  player,
		Amount:  amount.String(),
		Choice:  uint8(choice),
	})

	if err := e.RequestRandomness(ctx, w.ID); err != nil {
		return w.ID, err
	}
	return w.ID, nil
}

// RequestRandomness envia o pedido ao provedor para uma aposta pendente.
// Um segundo pedido para o mesmo id falha com ErrDuplicateRequest.
func (e *Engine) RequestRandomness(ctx context.Context, id uint64) error {
	e.mu.Lock()
	w, err := e.store.GetWager(ctx, id)
	if err != nil {
		e.mu.Unlock()
		if errors.Is(err, ErrWagerNotFound) {
			return ErrUnknownRequest
		}
		return err
	}
	if _, busy := e.asking[id]; busy || w.Requested {
		e.mu.Unlock()
		return ErrDuplicateRequest
	}
	if w.Status != StatusPending {
		e.mu.Unlock()
		return ErrNotPending
	}
	cfg := e.state.Randomness
	e.asking[id] = cfg.Coordinator
	e.mu.Unlock()

	perr := e.provider.RequestRandomness(ctx, RandomnessRequest{RequestID: id, Config: cfg})

	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.asking, id)
	if perr != nil {
		e.log.Error("randomness request failed", zap.Uint64("wagerId", id), zap.Error(perr))
		return fmt.Errorf("request randomness for wager %d: %w", id, perr)
	}

	// o callback pode ter chegado antes daqui; relê o registro
	w, err = e.store.GetWager(ctx, id)
	if err != nil {
		return err
	}
	w.Requested = true
	w.Coordinator = cfg.Coordinator
	if err := e.commit(ctx, e.state, w); err != nil {
		return fmt.Errorf("persist request state: %w", err)
	}
	e.log.Debug("randomness requested", zap.Uint64("wagerId", id), zap.String("coordinator", cfg.Coordinator))
	return nil
}

// admit aplica a lógica e a checagem de liquidez sobre o estado atual.
// Precisa ser chamado com mu travado (leitura basta).
func (e *Engine) admit(amount decimal.Decimal, choice Choice) (Quote, error) {
	st := e.state
	if err := e.logic.Validate(st, amount, choice); err != nil {
		return Quote{}, err
	}
	q := e.logic.Quote(st, amount)
	if st.AvailableBalance.LessThan(q.Liability) {
		return Quote{}, ErrInsufficientLiquidity
	}
	return q, nil
}

// collect reserva amount na carteira de from
func (e *Engine) collect(ctx context.Context, from string, amount decimal.Decimal, ref string) error {
	err := e.funds.Reserve(ctx, from, amount, ref)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrInsufficientFunds):
		return err
	default:
		e.log.Error("wallet reserve failed", zap.String("from", from), zap.String("ref", ref), zap.Error(err))
		return fmt.Errorf("%w: reserve %s: %v", ErrTransferFailed, ref, err)
	}
}

// release devolve uma reserva que não virou transição
func (e *Engine) release(ctx context.Context, from, ref string) {
	if err := e.funds.Release(ctx, from, ref); err != nil {
		e.log.Error("wallet release failed; reservation left pending", zap.String("from", from), zap.String("ref", ref), zap.Error(err))
	}
}

// settleHold efetiva a reserva depois do commit; o saldo já saiu da carteira no Reserve
func (e *Engine) settleHold(ctx context.Context, from, ref string) {
	if err := e.funds.Commit(ctx, from, ref); err != nil {
		e.log.Warn("wallet commit failed; reservation left pending", zap.String("from", from), zap.String("ref", ref), zap.Error(err))
	}
}

// commit aplica o batch no store e só então atualiza o estado em memória.
// Precisa ser chamado com mu travado.
func (e *Engine) commit(ctx context.Context, st State, ws ...Wager) error {
	if err := e.store.Apply(ctx, Batch{State: st, Wagers: ws}); err != nil {
		return err
	}
	e.state = st
	e.notifyState(st)
	return nil
}

func (e *Engine) notifyState(st State) {
	if e.hooks.OnState != nil {
		e.hooks.OnState(statsOf(st))
	}
}

func (e *Engine) reject(err error) error {
	if e.hooks.OnRejected != nil {
		e.hooks.OnRejected(Code(err))
	}
	return err
}

// emit publica um evento; falha de publicação não desfaz a transição
func (e *Engine) emit(ctx context.Context, t events.Type, payload any) {
	if e.pub == nil {
		return
	}
	env, err := events.New(t, payload)
	if err != nil {
		e.log.Error("encode event", zap.String("type", string(t)), zap.Error(err))
		return
	}
	if err := e.pub.Publish(ctx, env); err != nil {
		e.log.Warn("publish event failed", zap.String("type", string(t)), zap.Error(err))
	}
}

func payoutRef(id uint64) string { return "payout:" + strconv.FormatUint(id, 10) }

func stakeRef() string { return "stake:" + uuid.NewString() }
