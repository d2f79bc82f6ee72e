package engine

import (
	"time"

	"github.com/shopspring/decimal"
)

// Choice é o lado apostado: 0 = coroa (tails), 1 = cara (heads)
type Choice uint8

const (
	Tails Choice = 0
	Heads Choice = 1
)

func (c Choice) Valid() bool { return c == Tails || c == Heads }

func (c Choice) String() string {
	switch c {
	case Tails:
		return "tails"
	case Heads:
		return "heads"
	default:
		return "invalid"
	}
}

// Status do ciclo de vida de uma aposta
type Status string

const (
	StatusPending   Status = "PENDING"
	StatusFulfilled Status = "FULFILLED"
	StatusRefunded  Status = "REFUNDED" // só via expiração administrativa
)

// PayoutState acompanha a transferência do pagamento depois da liquidação
type PayoutState string

const (
	PayoutNone   PayoutState = "NONE"
	PayoutOwed   PayoutState = "OWED"
	PayoutPaid   PayoutState = "PAID"
	PayoutFailed PayoutState = "FAILED"
)

// SchemaVersion é a versão do layout persistido de Wager.
// Stores precisam ler qualquer versão <= SchemaVersion sem migração.
const SchemaVersion = 1

// Wager é o registro persistido de uma aposta.
// ID, Player, Amount, Choice, Fee e Liability nunca mudam depois da criação.
type Wager struct {
	ID            uint64          `json:"id"`
	Player        string          `json:"player"`
	Amount        decimal.Decimal `json:"amount"`
	Choice        Choice          `json:"choice"`
	Status        Status          `json:"status"`
	Won           bool            `json:"won"`
	Payout        decimal.Decimal `json:"payout"`
	Outcome       Choice          `json:"outcome"` // válido só quando FULFILLED
	RandomValue   string          `json:"randomValue,omitempty"`
	Fee           decimal.Decimal `json:"fee"`
	Liability     decimal.Decimal `json:"liability"`
	PayoutState   PayoutState     `json:"payoutState"`
	Requested     bool            `json:"requested"`
	Coordinator   string          `json:"coordinator,omitempty"`
	LogicVersion  string          `json:"logicVersion"`
	SchemaVersion int             `json:"schemaVersion"`
	SubmittedAt   time.Time       `json:"submittedAt"`
	FulfilledAt   time.Time       `json:"fulfilledAt,omitempty"`
}

// Settled indica que nada mais muda no registro (pode ir pro cache)
func (w Wager) Settled() bool {
	if w.Status == StatusPending {
		return false
	}
	return w.PayoutState == PayoutNone || w.PayoutState == PayoutPaid
}

// RandomnessConfig guarda os parâmetros do provedor de aleatoriedade.
// Coordinator é a identidade autorizada a chamar o callback.
type RandomnessConfig struct {
	Coordinator          string `json:"coordinator" toml:"coordinator"`
	SubscriptionID       uint64 `json:"subscriptionId" toml:"subscription_id"`
	KeyHash              string `json:"keyHash" toml:"key_hash"`
	CallbackGasLimit     uint32 `json:"callbackGasLimit" toml:"callback_gas_limit"`
	RequestConfirmations uint16 `json:"requestConfirmations" toml:"request_confirmations"`
	NumWords             uint32 `json:"numWords" toml:"num_words"`
}

func (c RandomnessConfig) Validate() error {
	if c.Coordinator == "" || c.CallbackGasLimit == 0 || c.NumWords == 0 {
		return ErrInvalidConfig
	}
	return nil
}

// State é o estado global do contrato (instância única)
type State struct {
	NextID            uint64
	TotalGames        uint64
	TotalVolume       decimal.Decimal
	TotalFees         decimal.Decimal
	AvailableBalance  decimal.Decimal // fundos livres, já descontadas as reservas
	ReservedLiability decimal.Decimal // pior caso das apostas pendentes + pagamentos devidos
	EscrowedStakes    decimal.Decimal // stake - fee das apostas pendentes
	MinBet            decimal.Decimal
	MaxBet            decimal.Decimal
	HouseEdgeBps      uint32
	Owner             string
	Randomness        RandomnessConfig
	Version           string
}

type Stats struct {
	TotalGames        uint64          `json:"totalGames"`
	TotalVolume       decimal.Decimal `json:"totalVolume"`
	AvailableBalance  decimal.Decimal `json:"availableBalance"`
	TotalFees         decimal.Decimal `json:"totalFees"`
	ReservedLiability decimal.Decimal `json:"reservedLiability"`
	EscrowedStakes    decimal.Decimal `json:"escrowedStakes"`
}

type BetLimits struct {
	Min decimal.Decimal `json:"min"`
	Max decimal.Decimal `json:"max"`
}

type LeaderboardEntry struct {
	Player      string          `json:"player"`
	Games       uint64          `json:"games"`
	Wins        uint64          `json:"wins"`
	Volume      decimal.Decimal `json:"volume"`
	TotalPayout decimal.Decimal `json:"totalPayout"`
}

// Resolution é o resultado de uma liquidação
type Resolution struct {
	WagerID uint64          `json:"wagerId"`
	Player  string          `json:"player"`
	Won     bool            `json:"won"`
	Payout  decimal.Decimal `json:"payout"`
	Outcome Choice          `json:"outcome"`
}
