package events

// RandomnessRequest é publicado em randomness_requests (um por aposta)
type RandomnessRequest struct {
	RequestID            uint64 `json:"requestId"`
	Coordinator          string `json:"coordinator"`
	SubscriptionID       uint64 `json:"subscriptionId"`
	KeyHash              string `json:"keyHash"`
	CallbackGasLimit     uint32 `json:"callbackGasLimit"`
	RequestConfirmations uint16 `json:"requestConfirmations"`
	NumWords             uint32 `json:"numWords"`
	TsUnixMs             int64  `json:"tsUnixMs"`
}

// RandomnessFulfillment é o callback do provedor, lido de randomness_fulfillments.
// RandomWords são inteiros não negativos em base 10 (podem passar de 64 bits).
type RandomnessFulfillment struct {
	RequestID      uint64   `json:"requestId"`
	RandomWords    []string `json:"randomWords"`
	Caller         string   `json:"caller"`
	Token          string   `json:"token,omitempty"` // HS256 com sub = caller; obrigatório quando o serviço tem AUTH_SECRET
	ServerSeedHash string   `json:"serverSeedHash,omitempty"`
	Nonce          uint64   `json:"nonce,omitempty"`
	TsUnixMs       int64    `json:"tsUnixMs"`
}
