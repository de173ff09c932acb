package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const (
	VerdictValid   = "valid"
	VerdictInvalid = "invalid"
)

// Recorder collects janitor run metrics on its own registry
type Recorder struct {
	registry *prometheus.Registry

	Verdicts            *prometheus.CounterVec
	RuleErrors          *prometheus.CounterVec
	DiscoveryErrors     *prometheus.CounterVec
	ResourcesDiscovered *prometheus.GaugeVec
}

// NewRecorder creates a Recorder with all collectors registered
func NewRecorder() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		Verdicts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "janitor_rule_verdicts_total",
			Help: "Rule verdicts per resource type",
		}, []string{"service", "resource_type", "verdict"}),
		RuleErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "janitor_rule_errors_total",
			Help: "Rule evaluations that returned an error",
		}, []string{"service", "resource_type"}),
		DiscoveryErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "janitor_discovery_errors_total",
			Help: "Failed resource discovery calls",
		}, []string{"service", "resource_type"}),
		ResourcesDiscovered: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "janitor_resources_discovered",
			Help: "Resources found in the last run",
		}, []string{"service", "resource_type"}),
	}

	r.registry.MustRegister(
		r.Verdicts,
		r.RuleErrors,
		r.DiscoveryErrors,
		r.ResourcesDiscovered,
	)

	return r
}

// Registry returns the underlying registry
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

// ObserveVerdict counts a single rule verdict
func (r *Recorder) ObserveVerdict(service, resourceType string, valid bool) {
	verdict := VerdictInvalid
	if valid {
		verdict = VerdictValid
	}
	r.Verdicts.WithLabelValues(service, resourceType, verdict).Inc()
}

// ObserveRuleError counts a failed evaluation
func (r *Recorder) ObserveRuleError(service, resourceType string) {
	r.RuleErrors.WithLabelValues(service, resourceType).Inc()
}

// ObserveDiscoveryError counts a failed discovery call
func (r *Recorder) ObserveDiscoveryError(service, resourceType string) {
	r.DiscoveryErrors.WithLabelValues(service, resourceType).Inc()
}

// SetDiscovered records how many resources were found
func (r *Recorder) SetDiscovered(service, resourceType string, count int) {
	r.ResourcesDiscovered.WithLabelValues(service, resourceType).Set(float64(count))
}

// WriteTextfile writes all metrics to path in the node exporter textfile format
func (r *Recorder) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, r.registry)
}
