package events

// Valores monetários trafegam como string decimal ("0.975")

type WagerRequested struct {
	WagerID uint64 `json:"wagerId"`
	Player  string `json:"player"`
	Amount  string `json:"amount"`
	Choice  uint8  `json:"choice"`
}

type WagerResolved struct {
	WagerID uint64 `json:"wagerId"`
	Player  string `json:"player"`
	Won     bool   `json:"won"`
	Payout  string `json:"payout"`
	Outcome uint8  `json:"outcome"`
}

type WagerRefunded struct {
	WagerID uint64 `json:"wagerId"`
	Player  string `json:"player"`
	Amount  string `json:"amount"`
}

type Payout struct {
	WagerID uint64 `json:"wagerId"`
	Player  string `json:"player"`
	Amount  string `json:"amount"`
	Reason  string `json:"reason,omitempty"`
}
