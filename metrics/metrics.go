package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the service
type Metrics struct {
	LeadsCreated          prometheus.Counter
	LeadsDeleted          prometheus.Counter
	ImagesUploaded        prometheus.Counter
	OrphanCleanupFailures prometheus.Counter
	RequestsRejected      *prometheus.CounterVec
	registry              *prometheus.Registry
}

// New creates the metrics on their own registry, along with the Go runtime
// and process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)

	return &Metrics{
		LeadsCreated: f.NewCounter(prometheus.CounterOpts{
			Name: "leadtrack_leads_created_total",
			Help: "Total number of leads created",
		}),
		LeadsDeleted: f.NewCounter(prometheus.CounterOpts{
			Name: "leadtrack_leads_deleted_total",
			Help: "Total number of leads deleted",
		}),
		ImagesUploaded: f.NewCounter(prometheus.CounterOpts{
			Name: "leadtrack_images_uploaded_total",
			Help: "Total number of images stored through the upload endpoint",
		}),
		OrphanCleanupFailures: f.NewCounter(prometheus.CounterOpts{
			Name: "leadtrack_orphan_cleanup_failures_total",
			Help: "Image files that could not be removed after their lead was deleted",
		}),
		RequestsRejected: f.NewCounterVec(prometheus.CounterOpts{
			Name: "leadtrack_requests_rejected_total",
			Help: "Requests answered with a client error, by reason",
		}, []string{"reason"}),
		registry: reg,
	}
}

// Handler exposes the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
