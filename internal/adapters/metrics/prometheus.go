package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"eventhub/internal/domain"
)

// Prometheus implements domain.Metrics with counters registered on its own registry.
type Prometheus struct {
	registry      *prometheus.Registry
	transitions   *prometheus.CounterVec
	registrations *prometheus.CounterVec
	notifications *prometheus.CounterVec
	emails        *prometheus.CounterVec
}

var _ domain.Metrics = (*Prometheus)(nil)

// New registers the business counters plus Go runtime and process collectors on registry.
func New(registry *prometheus.Registry) *Prometheus {
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(registry)
	return &Prometheus{
		registry: registry,
		transitions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "eventhub_event_transitions_total",
				Help: "Event lifecycle transitions by kind",
			},
			[]string{"transition"},
		),
		registrations: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "eventhub_registrations_total",
				Help: "Successful registrations by target",
			},
			[]string{"scope"},
		),
		notifications: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "eventhub_notifications_created_total",
				Help: "Notifications created by type",
			},
			[]string{"type"},
		),
		emails: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "eventhub_emails_total",
				Help: "Outbound emails by template and outcome",
			},
			[]string{"template", "status"},
		),
	}
}

func (p *Prometheus) EventTransition(transition string) {
	p.transitions.WithLabelValues(transition).Inc()
}

func (p *Prometheus) RegistrationCreated(scope string) {
	p.registrations.WithLabelValues(scope).Inc()
}

func (p *Prometheus) NotificationsCreated(typ domain.NotificationType, n int) {
	if n > 0 {
		p.notifications.WithLabelValues(string(typ)).Add(float64(n))
	}
}

func (p *Prometheus) EmailSent(template string, err error) {
	status := "sent"
	if err != nil {
		status = "failed"
	}
	p.emails.WithLabelValues(template, status).Inc()
}

// Handler serves the registry in the Prometheus exposition format.
func (p *Prometheus) Handler() http.Handler {
	return promhttp.HandlerFor(p.registry, promhttp.HandlerOpts{Registry: p.registry})
}
