package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/riskibarqy/judging-portal/internal/config"
)

// NewMetricsRegistry returns the registry served on /metrics. It is nil when
// metrics are disabled; collectors treat a nil registerer as a no-op.
func NewMetricsRegistry(cfg config.Config) *prometheus.Registry {
	if !cfg.MetricsEnabled {
		return nil
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		collectors.NewBuildInfoCollector(),
	)
	info := prometheus.NewGauge(prometheus.GaugeOpts{
		Name:        "judging_portal_info",
		Help:        "Static service metadata.",
		ConstLabels: prometheus.Labels{"service": cfg.ServiceName, "version": cfg.ServiceVersion, "env": cfg.AppEnv},
	})
	info.Set(1)
	reg.MustRegister(info)

	return reg
}
