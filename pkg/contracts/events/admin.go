package events

type Funded struct {
	From   string `json:"from"`
	Amount string `json:"amount"`
}

type FundsWithdrawn struct {
	Owner  string `json:"owner"`
	Amount string `json:"amount"`
}

type BetLimitsUpdated struct {
	MinBet string `json:"minBet"`
	MaxBet string `json:"maxBet"`
}

type RandomnessConfigUpdated struct {
	Coordinator      string `json:"coordinator"`
	SubscriptionID   uint64 `json:"subscriptionId"`
	KeyHash          string `json:"keyHash"`
	CallbackGasLimit uint32 `json:"callbackGasLimit"`
}

type LogicUpgraded struct {
	From string `json:"from"`
	To   string `json:"to"`
}
