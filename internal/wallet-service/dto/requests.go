package dto

import "github.com/shopspring/decimal"

type DepositRequest struct {
	UserID      string          `json:"userId"`
	Amount      decimal.Decimal `json:"amount"`
	ExternalRef string          `json:"external_ref,omitempty"` // opcional p/ idempotência simples
}

// CreditRequest é usado pelo settlement-service para pagar prêmios, reembolsos e saques
type CreditRequest struct {
	UserID      string          `json:"userId"`
	Amount      decimal.Decimal `json:"amount"`
	ExternalRef string          `json:"external_ref"` // ex: payout:42
}

// ReserveRequest bloqueia saldo para uma aposta ou depósito no caixa (ex: stake:<uuid>)
type ReserveRequest struct {
	UserID      string          `json:"userId"`
	Amount      decimal.Decimal `json:"amount"`
	ExternalRef string          `json:"external_ref"`
}

// ReservationRequest efetiva ou devolve uma reserva existente
type ReservationRequest struct {
	UserID      string `json:"userId"`
	ExternalRef string `json:"external_ref"`
}

// SettlementCaller é a única identidade aceita nas rotas internas (credit/reserve/commit/refund)
const SettlementCaller = "settlement-service"
