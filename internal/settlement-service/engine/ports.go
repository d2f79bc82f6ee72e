package engine

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/radieske/headsup-settlement/pkg/contracts/events"
)

// RandomnessRequest é o pedido enviado ao provedor (RequestID == ID da aposta)
type RandomnessRequest struct {
	RequestID uint64
	Config    RandomnessConfig
}

// RandomnessProvider entrega pedidos ao provedor externo sem bloquear pela resposta.
// A resposta chega depois via OnFulfillment.
type RandomnessProvider interface {
	RequestRandomness(ctx context.Context, req RandomnessRequest) error
}

// Payer transfere fundos para fora do motor (pagamentos, reembolsos, saques).
// ref identifica a transferência; implementações devem ser idempotentes por ref.
type Payer interface {
	Transfer(ctx context.Context, to string, amount decimal.Decimal, ref string) error
}

// Collector cobra fundos de fora do motor (stakes e depósitos no caixa).
// Reserve bloqueia o valor na carteira; Commit efetiva; Release devolve.
// Todas são idempotentes por ref. Saldo insuficiente deve envolver ErrInsufficientFunds.
type Collector interface {
	Reserve(ctx context.Context, from string, amount decimal.Decimal, ref string) error
	Commit(ctx context.Context, from, ref string) error
	Release(ctx context.Context, from, ref string) error
}

// Publisher recebe os eventos de domínio depois do commit
type Publisher interface {
	Publish(ctx context.Context, e events.Envelope) error
}

// Hooks são callbacks opcionais de métricas
type Hooks struct {
	OnSubmitted    func(amount decimal.Decimal)
	OnRejected     func(code string)
	OnResolved     func(won bool)
	OnPayoutFailed func()
	OnState        func(Stats)
}
