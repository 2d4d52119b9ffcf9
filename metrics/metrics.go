package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// 质押池指标
var (
	Deposits = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "staker",
		Subsystem: "pool",
		Name:      "deposits_total",
		Help:      "Number of successful stakes",
	})
	DepositedEther = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "staker",
		Subsystem: "pool",
		Name:      "deposited_ether_total",
		Help:      "Total value staked, in ether",
	})
	Executions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "staker",
		Subsystem: "pool",
		Name:      "executions_total",
		Help:      "Successful executions by resulting phase",
	}, []string{"phase"})
	Withdrawals = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "staker",
		Subsystem: "pool",
		Name:      "withdrawals_total",
		Help:      "Number of successful withdrawals",
	})
	Failures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "staker",
		Subsystem: "pool",
		Name:      "failures_total",
		Help:      "Failed operations by operation and reason",
	}, []string{"op", "reason"})
	HeldEther = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "staker",
		Subsystem: "pool",
		Name:      "held_ether",
		Help:      "Value currently held by the pool, in ether",
	})
)
