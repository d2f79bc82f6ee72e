package topics

const (
	// Aleatoriedade (provedor externo)
	RandomnessRequests     = "randomness_requests"
	RandomnessFulfillments = "randomness_fulfillments"

	// Eventos de domínio (WagerRequested, WagerResolved, admin...)
	WagerEvents = "wager_events"

	// DLQs
	RandomnessFulfillmentsDLQ = "randomness_fulfillments_dlq"
)
