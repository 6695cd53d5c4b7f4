package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the ledger's Prometheus metrics. One instance is shared by
// all ledger services; promauto registers on the default registry.
type Metrics struct {
	TransfersTotal         *prometheus.CounterVec
	TransfersRejectedTotal *prometheus.CounterVec
	MintsTotal             prometheus.Counter
	BurnsTotal             prometheus.Counter
	ForcedOperationsTotal  *prometheus.CounterVec
	FrozenAddresses        prometheus.Gauge
	RoleGrantsTotal        *prometheus.CounterVec
	RestrictionChecks      *prometheus.CounterVec
	EngineCallDurationMs   *prometheus.HistogramVec
	EngineBreakerOpen      *prometheus.GaugeVec
}

func New() *Metrics {
	return &Metrics{
		TransfersTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "custodia_transfers_total",
			Help: "Total number of successful transfers by kind",
		}, []string{"kind"}),
		TransfersRejectedTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "custodia_transfers_rejected_total",
			Help: "Total number of rejected transfers by restriction code",
		}, []string{"code"}),
		MintsTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "custodia_mints_total",
			Help: "Total number of successful mint operations",
		}),
		BurnsTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "custodia_burns_total",
			Help: "Total number of successful burn operations",
		}),
		ForcedOperationsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "custodia_forced_operations_total",
			Help: "Total number of forced transfers and burns",
		}, []string{"kind"}),
		FrozenAddresses: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "custodia_frozen_addresses",
			Help: "Current number of fully frozen addresses",
		}),
		RoleGrantsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "custodia_role_grants_total",
			Help: "Total number of role membership changes",
		}, []string{"action"}),
		RestrictionChecks: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "custodia_restriction_checks_total",
			Help: "Restriction-code evaluations by resulting code",
		}, []string{"code"}),
		EngineCallDurationMs: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "custodia_engine_call_duration_ms",
			Help:    "Latency of external rule/debt engine calls in milliseconds",
			Buckets: []float64{0.5, 1, 2.5, 5, 10, 25, 50, 100, 250},
		}, []string{"engine"}),
		EngineBreakerOpen: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Name: "custodia_engine_breaker_open",
			Help: "Whether the circuit breaker for an external engine is open (1) or closed (0)",
		}, []string{"engine"}),
	}
}
