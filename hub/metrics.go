/*
metrics.go - Prometheus instrumentation for the supply ledger

Exposes the supply pools as gauges, operations and reconciliations as
counters, and the last measured drift between recorded and actual
circulating supply. A nil *Metrics is valid and turns every observation
into a no-op, so tests and embedded uses need no registry.
*/
package hub

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the hub's Prometheus collectors.
type Metrics struct {
	operations      *prometheus.CounterVec
	reconciliations *prometheus.CounterVec
	conflictRetries prometheus.Counter

	totalSupply       prometheus.Gauge
	circulatingSupply prometheus.Gauge
	reserveSupply     prometheus.Gauge
	drift             prometheus.Gauge
}

// NewMetrics registers the hub collectors with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		operations: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "hub_operations_total",
			Help: "Ledger mutations applied, by supply action.",
		}, []string{"action"}),
		reconciliations: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "hub_reconciliations_total",
			Help: "Reconciliation runs, by corrective action taken.",
		}, []string{"action"}),
		conflictRetries: factory.NewCounter(prometheus.CounterOpts{
			Name: "hub_state_conflict_retries_total",
			Help: "Optimistic-lock conflicts on the ledger state that were retried.",
		}),
		totalSupply: factory.NewGauge(prometheus.GaugeOpts{
			Name: "hub_total_supply_points",
			Help: "Total points ever issued minus burned.",
		}),
		circulatingSupply: factory.NewGauge(prometheus.GaugeOpts{
			Name: "hub_circulating_supply_points",
			Help: "Points currently attributed to user account balances.",
		}),
		reserveSupply: factory.NewGauge(prometheus.GaugeOpts{
			Name: "hub_reserve_supply_points",
			Help: "Points held by the platform, not attributed to any account.",
		}),
		drift: factory.NewGauge(prometheus.GaugeOpts{
			Name: "hub_circulating_drift_points",
			Help: "Last measured actual-minus-recorded circulating supply.",
		}),
	}
}

func (m *Metrics) OperationApplied(action SupplyAction) {
	if m == nil {
		return
	}
	m.operations.WithLabelValues(string(action)).Inc()
}

func (m *Metrics) Reconciled(action ReconcileAction) {
	if m == nil {
		return
	}
	m.reconciliations.WithLabelValues(string(action)).Inc()
}

func (m *Metrics) ConflictRetried() {
	if m == nil {
		return
	}
	m.conflictRetries.Inc()
}

func (m *Metrics) SetSupply(total, circulating, reserve int64) {
	if m == nil {
		return
	}
	m.totalSupply.Set(float64(total))
	m.circulatingSupply.Set(float64(circulating))
	m.reserveSupply.Set(float64(reserve))
}

func (m *Metrics) SetDrift(difference int64) {
	if m == nil {
		return
	}
	m.drift.Set(float64(difference))
}
