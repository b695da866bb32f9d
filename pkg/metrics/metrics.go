package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce            sync.Once
	transactionCounter      *prometheus.CounterVec
	escrowTransitionCounter *prometheus.CounterVec
	compensationCounter     *prometheus.CounterVec
	pendingWithdrawalsGauge prometheus.Gauge
)

// Init registers all Prometheus collectors. Safe to call more than once.
func Init() {
	registerOnce.Do(func() {
		transactionCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ledger_transactions_total",
			Help: "Ledger transactions recorded, by kind and status",
		}, []string{"kind", "status"})

		escrowTransitionCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "escrow_transitions_total",
			Help: "Escrow deal state transitions applied",
		}, []string{"from", "to"})

		compensationCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ledger_compensations_total",
			Help: "Compensating ledger entries issued after a partial failure",
		}, []string{"operation"})

		pendingWithdrawalsGauge = prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "withdrawals_pending",
			Help: "Withdrawal requests currently awaiting admin action",
		})

		prometheus.MustRegister(
			transactionCounter,
			escrowTransitionCounter,
			compensationCounter,
			pendingWithdrawalsGauge,
		)
	})
}

func RecordTransaction(kind, status string) {
	if transactionCounter == nil {
		return
	}
	transactionCounter.WithLabelValues(kind, status).Inc()
}

func RecordEscrowTransition(from, to string) {
	if escrowTransitionCounter == nil {
		return
	}
	escrowTransitionCounter.WithLabelValues(from, to).Inc()
}

func RecordCompensation(operation string) {
	if compensationCounter == nil {
		return
	}
	compensationCounter.WithLabelValues(operation).Inc()
}

func AddPendingWithdrawals(delta float64) {
	if pendingWithdrawalsGauge == nil {
		return
	}
	pendingWithdrawalsGauge.Add(delta)
}
