package engine

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/radieske/headsup-settlement/pkg/contracts/events"
)

// Fund debita a carteira do chamador e aumenta o saldo disponível; qualquer chamador pode depositar
func (e *Engine) Fund(ctx context.Context, caller string, amount decimal.Decimal) error {
	if caller == "" {
		return ErrInvalidPlayer
	}
	if !amount.IsPositive() {
		return ErrInvalidAmount
	}
	ref := "fund:" + uuid.NewString()
	if err := e.collect(ctx, caller, amount, ref); err != nil {
		return err
	}

	e.mu.Lock()
	st := e.state
	st.AvailableBalance = st.AvailableBalance.Add(amount)
	if err := e.commit(ctx, st); err != nil {
		e.mu.Unlock()
		e.release(ctx, caller, ref)
		return fmt.Errorf("persist funding: %w", err)
	}
	e.mu.Unlock()
	e.settleHold(ctx, caller, ref)

	e.log.Info("contract funded", zap.String("from", caller), zap.String("amount", amount.String()), zap.String("ref", ref))
	e.emit(ctx, events.TypeFunded, events.Funded{From: caller, Amount: amount.String()})
	return nil
}

// Withdraw debita o saldo disponível e transfere ao owner.
// Se a transferência falhar, o débito é compensado.
func (e *Engine) Withdraw(ctx context.Context, caller string, amount decimal.Decimal) error {
	e.mu.Lock()
	st := e.state
	if caller != st.Owner {
		e.mu.Unlock()
		return ErrUnauthorized
	}
	if !amount.IsPositive() {
		e.mu.Unlock()
		return ErrInvalidAmount
	}
	if amount.GreaterThan(st.AvailableBalance) {
		e.mu.Unlock()
		return ErrInsufficientAvailableBalance
	}
	st.AvailableBalance = st.AvailableBalance.Sub(amount)
	if err := e.commit(ctx, st); err != nil {
		e.mu.Unlock()
		return fmt.Errorf("persist withdrawal: %w", err)
	}
	owner := st.Owner
	e.mu.Unlock()

	if terr := e.payer.Transfer(ctx, owner, amount, "withdraw:"+uuid.NewString()); terr != nil {
		e.mu.Lock()
		st := e.state
		st.AvailableBalance = st.AvailableBalance.Add(amount)
		err := e.commit(ctx, st)
		e.mu.Unlock()
		if err != nil {
			e.log.Error("withdrawal compensation failed", zap.String("amount", amount.String()), zap.Error(err))
		}
		e.log.Error("withdrawal transfer failed", zap.String("amount", amount.String()), zap.Error(terr))
		return fmt.Errorf("%w: withdraw: %v", ErrTransferFailed, terr)
	}

	e.log.Info("funds withdrawn", zap.String("owner", owner), zap.String("amount", amount.String()))
	e.emit(ctx, events.TypeFundsWithdrawn, events.FundsWithdrawn{Owner: owner, Amount: amount.String()})
	return nil
}

func (e *Engine) UpdateBetLimits(ctx context.Context, caller string, min, max decimal.Decimal) error {
	e.mu.Lock()
	st := e.state
	if caller != st.Owner {
		e.mu.Unlock()
		return ErrUnauthorized
	}
	if !min.IsPositive() || min.GreaterThan(max) {
		e.mu.Unlock()
		return ErrInvalidLimits
	}
	st.MinBet, st.MaxBet = min, max
	if err := e.commit(ctx, st); err != nil {
		e.mu.Unlock()
		return fmt.Errorf("persist limits: %w", err)
	}
	e.mu.Unlock()

	e.log.Info("bet limits updated", zap.String("min", min.String()), zap.String("max", max.String()))
	e.emit(ctx, events.TypeBetLimitsUpdated, events.BetLimitsUpdated{MinBet: min.String(), MaxBet: max.String()})
	return nil
}

// UpdateRandomnessConfig troca os parâmetros do provedor.
// Pedidos já emitidos guardam o coordinator antigo e continuam resolvendo.
func (e *Engine) UpdateRandomnessConfig(ctx context.Context, caller string, cfg RandomnessConfig) error {
	e.mu.Lock()
	st := e.state
	if caller != st.Owner {
		e.mu.Unlock()
		return ErrUnauthorized
	}
	if err := cfg.Validate(); err != nil {
		e.mu.Unlock()
		return err
	}
	st.Randomness = cfg
	if err := e.commit(ctx, st); err != nil {
		e.mu.Unlock()
		return fmt.Errorf("persist randomness config: %w", err)
	}
	e.mu.Unlock()

	e.log.Info("randomness config updated", zap.String("coordinator", cfg.Coordinator), zap.Uint64("subscriptionId", cfg.SubscriptionID))
	e.emit(ctx, events.TypeRandomnessConfigUpdated, events.RandomnessConfigUpdated{
		Coordinator:      cfg.Coordinator,
		SubscriptionID:   cfg.SubscriptionID,
		KeyHash:          cfg.KeyHash,
		CallbackGasLimit: cfg.CallbackGasLimit,
	})
	return nil
}

// Upgrade troca a lógica substituível sem tocar em registros nem contadores
func (e *Engine) Upgrade(ctx context.Context, caller string, next Logic) error {
	if next == nil {
		return ErrInvalidConfig
	}
	e.mu.Lock()
	st := e.state
	if caller != st.Owner {
		e.mu.Unlock()
		return ErrUnauthorized
	}
	from := st.Version
	st.Version = next.Version()
	if err := e.commit(ctx, st); err != nil {
		e.mu.Unlock()
		return fmt.Errorf("persist upgrade: %w", err)
	}
	e.logic = next
	e.mu.Unlock()

	e.log.Info("logic upgraded", zap.String("from", from), zap.String("to", next.Version()))
	e.emit(ctx, events.TypeLogicUpgraded, events.LogicUpgraded{From: from, To: next.Version()})
	return nil
}

// UpgradeTo aplica a versão registrada com esse nome
func (e *Engine) UpgradeTo(ctx context.Context, caller, version string) error {
	next, err := LogicFor(version)
	if err != nil {
		return err
	}
	return e.Upgrade(ctx, caller, next)
}
