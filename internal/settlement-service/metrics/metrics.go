package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"

	"github.com/radieske/headsup-settlement/internal/settlement-service/engine"
)

// Metrics agrupa os coletores do settlement-service
type Metrics struct {
	Submitted      prometheus.Counter
	Volume         prometheus.Counter
	Rejected       *prometheus.CounterVec
	Resolved       *prometheus.CounterVec
	PayoutFailures prometheus.Counter

	Consumed       prometheus.Counter
	ConsumerErrors *prometheus.CounterVec
	DeadLettered   prometheus.Counter
	Games          prometheus.Gauge
	Balance        *prometheus.GaugeVec
}

// New cria e registra os coletores em reg (prometheus.DefaultRegisterer no main)
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Submitted: prometheus.NewCounter(prometheus.CounterOpts{Name: "headsup_wagers_submitted_total", Help: "apostas aceitas"}),
		Volume:    prometheus.NewCounter(prometheus.CounterOpts{Name: "headsup_wager_volume_total", Help: "soma dos valores apostados"}),
		Rejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "headsup_wagers_rejected_total", Help: "submissões rejeitadas por código",
		}, []string{"code"}),
		Resolved: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "headsup_wagers_resolved_total", Help: "apostas liquidadas por resultado",
		}, []string{"result"}),
		PayoutFailures: prometheus.NewCounter(prometheus.CounterOpts{Name: "headsup_payout_failures_total", Help: "transferências de prêmio que falharam"}),

		Consumed: prometheus.NewCounter(prometheus.CounterOpts{Name: "headsup_fulfillments_consumed_total", Help: "callbacks consumidos do kafka"}),
		ConsumerErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "headsup_fulfillment_errors_total", Help: "erros do consumer por estágio",
		}, []string{"stage"}),
		DeadLettered: prometheus.NewCounter(prometheus.CounterOpts{Name: "headsup_fulfillments_dlq_total", Help: "callbacks enviados para a DLQ"}),

		Games: prometheus.NewGauge(prometheus.GaugeOpts{Name: "headsup_total_games", Help: "apostas registradas"}),
		Balance: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "headsup_balance", Help: "contadores monetários do contrato",
		}, []string{"kind"}),
	}
	reg.MustRegister(
		m.Submitted, m.Volume, m.Rejected, m.Resolved, m.PayoutFailures,
		m.Consumed, m.ConsumerErrors, m.DeadLettered, m.Games, m.Balance,
	)
	return m
}

// Hooks liga os coletores aos callbacks do motor
func (m *Metrics) Hooks() engine.Hooks {
	return engine.Hooks{
		OnSubmitted: func(amount decimal.Decimal) {
			m.Submitted.Inc()
			m.Volume.Add(amount.InexactFloat64())
		},
		OnRejected: func(code string) { m.Rejected.WithLabelValues(code).Inc() },
		OnResolved: func(won bool) {
			if won {
				m.Resolved.WithLabelValues("won").Inc()
				return
			}
			m.Resolved.WithLabelValues("lost").Inc()
		},
		OnPayoutFailed: func() { m.PayoutFailures.Inc() },
		OnState: func(s engine.Stats) {
			m.Games.Set(float64(s.TotalGames))
			m.Balance.WithLabelValues("available").Set(s.AvailableBalance.InexactFloat64())
			m.Balance.WithLabelValues("reserved").Set(s.ReservedLiability.InexactFloat64())
			m.Balance.WithLabelValues("escrowed").Set(s.EscrowedStakes.InexactFloat64())
			m.Balance.WithLabelValues("fees").Set(s.TotalFees.InexactFloat64())
		},
	}
}
