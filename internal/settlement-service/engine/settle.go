package engine

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/radieske/headsup-settlement/pkg/contracts/events"
)

var two = big.NewInt(2)

// FirstWord converte a primeira palavra aleatória (inteiro decimal sem sinal).
// As demais palavras são ignoradas.
func FirstWord(words []string) (*big.Int, error) {
	if len(words) == 0 {
		return nil, fmt.Errorf("%w: no random words", ErrInvalidRandomValue)
	}
	v, ok := new(big.Int).SetString(words[0], 10)
	if !ok || v.Sign() < 0 {
		return nil, fmt.Errorf("%w: %q", ErrInvalidRandomValue, words[0])
	}
	return v, nil
}

// OnFulfillment é o único ponto de entrada do provedor de aleatoriedade.
// Autentica o chamador, garante uma única liquidação por aposta e dispara o pagamento.
// Se a transferência do prêmio falhar, a aposta já está FULFILLED e o erro
// retornado envolve ErrTransferFailed (RetryPayout refaz só a transferência).
func (e *Engine) OnFulfillment(ctx context.Context, requestID uint64, randomValue *big.Int, caller string) (Resolution, error) {
	if randomValue == nil || randomValue.Sign() < 0 {
		return Resolution{}, ErrInvalidRandomValue
	}

	e.mu.Lock()
	st := e.state
	authorized := caller != "" && caller == st.Randomness.Coordinator

	w, err := e.store.GetWager(ctx, requestID)
	if errors.Is(err, ErrWagerNotFound) {
		e.mu.Unlock()
		if !authorized {
			return Resolution{}, ErrUnauthorizedCaller
		}
		return Resolution{}, ErrUnknownRequest
	}
	if err != nil {
		e.mu.Unlock()
		return Resolution{}, err
	}

	// pedidos feitos antes de uma troca de config continuam válidos
	if !authorized && caller != "" {
		authorized = caller == w.Coordinator || caller == e.asking[requestID]
	}
	if !authorized {
		e.mu.Unlock()
		e.log.Warn("unauthorized fulfillment", zap.Uint64("wagerId", requestID), zap.String("caller", caller))
		return Resolution{}, ErrUnauthorizedCaller
	}
	if w.Status != StatusPending {
		e.mu.Unlock()
		return Resolution{}, ErrAlreadyFulfilled
	}
	// só responde a pedido emitido (gravado ou ainda em voo)
	if _, inflight := e.asking[requestID]; !w.Requested && !inflight {
		e.mu.Unlock()
		e.log.Warn("fulfillment for unrequested wager", zap.Uint64("wagerId", requestID), zap.String("caller", caller))
		return Resolution{}, ErrUnknownRequest
	}

	outcome := Choice(new(big.Int).Mod(randomValue, two).Uint64())
	won := outcome == w.Choice
	net := w.Amount.Sub(w.Fee)

	w.Status = StatusFulfilled
	w.Outcome = outcome
	w.Won = won
	w.RandomValue = randomValue.String()
	w.FulfilledAt = e.now().UTC()

	st.EscrowedStakes = st.EscrowedStakes.Sub(net)
	st.AvailableBalance = st.AvailableBalance.Add(net)
	if won {
		// a liability continua reservada até a transferência concluir
		w.Payout = w.Liability
		w.PayoutState = PayoutOwed
	} else {
		w.Payout = decimal.Zero
		w.PayoutState = PayoutNone
		st.ReservedLiability = st.ReservedLiability.Sub(w.Liability)
		st.AvailableBalance = st.AvailableBalance.Add(w.Liability)
	}

	if err := e.commit(ctx, st, w); err != nil {
		e.mu.Unlock()
		return Resolution{}, fmt.Errorf("persist resolution: %w", err)
	}
	e.mu.Unlock()

	res := Resolution{WagerID: w.ID, Player: w.Player, Won: won, Payout: w.Payout, Outcome: outcome}
	e.log.Info("wager resolved",
		zap.Uint64("wagerId", w.ID),
		zap.String("player", w.Player),
		zap.Bool("won", won),
		zap.String("payout", w.Payout.String()),
		zap.String("outcome", outcome.String()),
	)
	if e.hooks.OnResolved != nil {
		e.hooks.OnResolved(won)
	}
	e.emit(ctx, events.TypeWagerResolved, events.WagerResolved{
		WagerID: w.ID,
		Player:  w.Player,
		Won:     won,
		Payout:  w.Payout.String(),
		Outcome: uint8(outcome),
	})

	if won {
		if err := e.pay(ctx, w.ID); err != nil {
			return res, err
		}
	}
	return res, nil
}

// RetryPayout refaz a transferência de um pagamento FAILED (ou OWED preso).
// Não reavalia o resultado nem cobra taxa de novo.
func (e *Engine) RetryPayout(ctx context.Context, id uint64) error {
	return e.pay(ctx, id)
}

// pay transfere w.Payout ao jogador e consome a reserva correspondente
func (e *Engine) pay(ctx context.Context, id uint64) error {
	e.mu.Lock()
	w, err := e.store.GetWager(ctx, id)
	if err != nil {
		e.mu.Unlock()
		return err
	}
	if w.PayoutState != PayoutOwed && w.PayoutState != PayoutFailed {
		e.mu.Unlock()
		return ErrPayoutNotOwed
	}
	if _, busy := e.paying[id]; busy {
		e.mu.Unlock()
		return ErrPayoutInProgress
	}
	e.paying[id] = struct{}{}
	e.mu.Unlock()

	terr := e.payer.Transfer(ctx, w.Player, w.Payout, payoutRef(id))

	e.mu.Lock()
	delete(e.paying, id)
	if w, err = e.store.GetWager(ctx, id); err != nil {
		e.mu.Unlock()
		return err
	}
	st := e.state
	if terr != nil {
		w.PayoutState = PayoutFailed
		if err := e.commit(ctx, st, w); err != nil {
			e.mu.Unlock()
			return fmt.Errorf("persist payout failure: %w", err)
		}
		e.mu.Unlock()

		e.log.Error("payout transfer failed", zap.Uint64("wagerId", id), zap.String("player", w.Player), zap.Error(terr))
		if e.hooks.OnPayoutFailed != nil {
			e.hooks.OnPayoutFailed()
		}
		e.emit(ctx, events.TypePayoutFailed, events.Payout{
			WagerID: id, Player: w.Player, Amount: w.Payout.String(), Reason: terr.Error(),
		})
		return fmt.Errorf("%w: wager %d: %v", ErrTransferFailed, id, terr)
	}

	w.PayoutState = PayoutPaid
	st.ReservedLiability = st.ReservedLiability.Sub(w.Payout)
	if err := e.commit(ctx, st, w); err != nil {
		e.mu.Unlock()
		return fmt.Errorf("persist payout: %w", err)
	}
	e.mu.Unlock()

	e.log.Info("payout transferred", zap.Uint64("wagerId", id), zap.String("player", w.Player), zap.String("amount", w.Payout.String()))
	e.emit(ctx, events.TypePayoutCompleted, events.Payout{WagerID: id, Player: w.Player, Amount: w.Payout.String()})
	return nil
}

// RefundExpired encerra uma aposta que o provedor nunca respondeu.
// Devolve stake - fee ao jogador (a taxa continua ganha) e libera a liability.
func (e *Engine) RefundExpired(ctx context.Context, caller string, id uint64) error {
	e.mu.Lock()
	st := e.state
	if caller != st.Owner {
		e.mu.Unlock()
		return ErrUnauthorized
	}
	w, err := e.store.GetWager(ctx, id)
	if err != nil {
		e.mu.Unlock()
		return err
	}
	if w.Status != StatusPending {
		e.mu.Unlock()
		return ErrNotPending
	}
	if e.now().Sub(w.SubmittedAt) < e.refundAfter {
		e.mu.Unlock()
		return ErrNotExpired
	}

	net := w.Amount.Sub(w.Fee)
	w.Status = StatusRefunded
	w.Payout = net
	w.PayoutState = PayoutOwed
	w.FulfilledAt = e.now().UTC()

	st.ReservedLiability = st.ReservedLiability.Sub(w.Liability)
	st.AvailableBalance = st.AvailableBalance.Add(w.Liability)
	st.EscrowedStakes = st.EscrowedStakes.Sub(net)
	st.ReservedLiability = st.ReservedLiability.Add(net)

	if err := e.commit(ctx, st, w); err != nil {
		e.mu.Unlock()
		return fmt.Errorf("persist refund: %w", err)
	}
	e.mu.Unlock()

	e.log.Info("wager refunded", zap.Uint64("wagerId", id), zap.String("player", w.Player), zap.String("amount", net.String()))
	e.emit(ctx, events.TypeWagerRefunded, events.WagerRefunded{WagerID: id, Player: w.Player, Amount: net.String()})
	return e.pay(ctx, id)
}
