package events

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

type Type string

const (
	TypeWagerRequested          Type = "wager.requested"
	TypeWagerResolved           Type = "wager.resolved"
	TypeWagerRefunded           Type = "wager.refunded"
	TypePayoutCompleted         Type = "payout.completed"
	TypePayoutFailed            Type = "payout.failed"
	TypeFunded                  Type = "house.funded"
	TypeFundsWithdrawn          Type = "house.withdrawn"
	TypeBetLimitsUpdated        Type = "admin.bet_limits_updated"
	TypeRandomnessConfigUpdated Type = "admin.randomness_config_updated"
	TypeLogicUpgraded           Type = "admin.logic_upgraded"
)

// Envelope é o formato publicado no tópico wager_events e no canal de broadcast
type Envelope struct {
	ID      string          `json:"id"`
	Type    Type            `json:"type"`
	Ts      time.Time       `json:"ts"`
	Payload json.RawMessage `json:"payload"`
}

func New(t Type, payload any) (Envelope, error) {
	b, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, err
	}
	return Envelope{
		ID:      uuid.NewString(),
		Type:    t,
		Ts:      time.Now().UTC(),
		Payload: b,
	}, nil
}
