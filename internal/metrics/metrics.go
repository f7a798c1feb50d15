package metrics

import (
	stdprometheus "github.com/prometheus/client_golang/prometheus"
)

// Execution outcomes
const (
	OutcomeProceed = "proceed"
	OutcomeBlocked = "blocked"
	OutcomeFailed  = "failed"
)

var (
	// Executions counts engine calls by entry point and outcome
	Executions = _newRegisteredCounterVec("engine_executions_total",
		"number of rule engine executions", "entry_point", "outcome")

	// ExecutionDuration observes the total duration of engine calls
	ExecutionDuration = _newRegisteredHistogramVec("engine_execution_duration_seconds",
		"duration of rule engine executions", "entry_point")

	// RulesFired counts rules whose condition matched
	RulesFired = _newRegisteredCounterVec("engine_rules_fired_total",
		"number of rules whose condition matched", "entry_point", "rule_code")

	// CacheReloads counts rule set loads from the store
	CacheReloads = _newRegisteredCounterVec("ruleset_cache_reloads_total",
		"number of rule set loads from the store", "entry_point")

	// AuditQueue is the number of execution records waiting to be written
	AuditQueue = _newRegisteredGauge("audit_queue", "number of execution records waiting to be written")

	// AuditWriteFailures counts execution records that could not be persisted
	AuditWriteFailures = _newRegisteredCounter("audit_write_failures_total",
		"number of execution records that could not be persisted")
)

func _newRegisteredGauge(name string, help string) stdprometheus.Gauge {
	var gauge = stdprometheus.NewGauge(stdprometheus.GaugeOpts{
		Namespace:   MetricNamespace,
		ConstLabels: MetricPrometheusLabels,
		Name:        name,
		Help:        help,
	})

	stdprometheus.MustRegister(gauge)
	gauge.Set(0)

	return gauge
}

func _newRegisteredCounter(name string, help string) stdprometheus.Counter {
	var counter = stdprometheus.NewCounter(stdprometheus.CounterOpts{
		Namespace:   MetricNamespace,
		ConstLabels: MetricPrometheusLabels,
		Name:        name,
		Help:        help,
	})

	stdprometheus.MustRegister(counter)
	return counter
}

func _newRegisteredCounterVec(name string, help string, labels ...string) *stdprometheus.CounterVec {
	var counter = stdprometheus.NewCounterVec(stdprometheus.CounterOpts{
		Namespace:   MetricNamespace,
		ConstLabels: MetricPrometheusLabels,
		Name:        name,
		Help:        help,
	}, labels)

	stdprometheus.MustRegister(counter)
	return counter
}

func _newRegisteredHistogramVec(name string, help string, labels ...string) *stdprometheus.HistogramVec {
	var histogram = stdprometheus.NewHistogramVec(stdprometheus.HistogramOpts{
		Namespace:   MetricNamespace,
		ConstLabels: MetricPrometheusLabels,
		Name:        name,
		Help:        help,
		Buckets:     []float64{.0005, .001, .0025, .005, .01, .025, .05, .1, .25, .5, 1},
	}, labels)

	stdprometheus.MustRegister(histogram)
	return histogram
}
