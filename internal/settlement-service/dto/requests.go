package dto

import "github.com/shopspring/decimal"

// SubmitWagerRequest: o jogador vem do X-Caller (ou do token)
type SubmitWagerRequest struct {
	Amount decimal.Decimal `json:"amount"`
	Choice *uint8          `json:"choice"` // 0 = tails, 1 = heads
}

type AmountRequest struct {
	Amount decimal.Decimal `json:"amount"`
}

type BetLimitsRequest struct {
	Min decimal.Decimal `json:"min"`
	Max decimal.Decimal `json:"max"`
}

type RandomnessConfigRequest struct {
	Coordinator          string `json:"coordinator"`
	SubscriptionID       uint64 `json:"subscriptionId"`
	KeyHash              string `json:"keyHash"`
	CallbackGasLimit     uint32 `json:"callbackGasLimit"`
	RequestConfirmations uint16 `json:"requestConfirmations"`
	NumWords             uint32 `json:"numWords"`
}

// FulfillmentRequest é o callback do provedor; só a primeira palavra é usada
type FulfillmentRequest struct {
	RequestID   uint64   `json:"requestId"`
	RandomWords []string `json:"randomWords"` // inteiros decimais sem sinal
}

type UpgradeRequest struct {
	Version string `json:"version"`
}
