package service

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	creditOperationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ledger_credit_operations_total",
		Help: "Balance-changing operations, labeled by kind and result",
	}, []string{"kind", "result"})

	rewardPointsGrantedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ledger_reward_points_granted_total",
		Help: "Reward points recorded, labeled by reward type",
	}, []string{"type"})
)

// resultLabel collapses an error into a low-cardinality metric label.
func resultLabel(err error) string {
	if err == nil {
		return "ok"
	}
	return errorClass(err)
}
