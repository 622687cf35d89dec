package metrics

import "github.com/kilianp07/liftmpc/core/factory"

// Config defines settings for metrics sinks and the Prometheus endpoint.
type Config struct {
	Sinks          []factory.ModuleConfig `json:"sinks" yaml:"sinks"`
	PrometheusPort string                 `json:"prometheus_port" yaml:"prometheus_port"`
}

// PromEnabled reports whether a prometheus sink is configured.
func (c Config) PromEnabled() bool {
	for _, s := range c.Sinks {
		if s.Type == "prometheus" {
			return true
		}
	}
	return false
}
