package metrics

import (
	"net/http"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "loandesk"

// PrometheusRecorder implements Recorder using Prometheus metrics.
type PrometheusRecorder struct {
	reg               *prom.Registry
	storeReads        *prom.CounterVec
	storeWriteFailure *prom.CounterVec
	taskDuration      *prom.HistogramVec
	taskOutcomes      *prom.CounterVec
	notifications     *prom.CounterVec
	networkOnline     prom.Gauge
	onlineTechs       prom.Gauge
}

// NewPrometheusRecorder constructs and registers the metrics on reg, or on a
// fresh registry when reg is nil.
func NewPrometheusRecorder(reg *prom.Registry) *PrometheusRecorder {
	if reg == nil {
		reg = prom.NewRegistry()
	}
	pr := &PrometheusRecorder{
		reg: reg,
		storeReads: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "store_reads_total",
			Help:      "Shared store reads by resource and source (network or cache)",
		}, []string{"resource", "source"}),
		storeWriteFailure: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "store_network_write_failures_total",
			Help:      "Writes that reached the local mirror but not the shared location",
		}, []string{"resource"}),
		taskDuration: prom.NewHistogramVec(prom.HistogramOpts{
			Namespace: namespace,
			Name:      "scheduler_task_duration_seconds",
			Help:      "Duration of scheduler task executions",
			Buckets:   prom.DefBuckets,
		}, []string{"task"}),
		taskOutcomes: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "scheduler_task_runs_total",
			Help:      "Scheduler task invocations by outcome",
		}, []string{"task", "outcome"}),
		notifications: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_emitted_total",
			Help:      "Loan notifications emitted by type",
		}, []string{"type"}),
		networkOnline: prom.NewGauge(prom.GaugeOpts{
			Namespace: namespace,
			Name:      "network_online",
			Help:      "1 when the shared location is reachable",
		}),
		onlineTechs: prom.NewGauge(prom.GaugeOpts{
			Namespace: namespace,
			Name:      "technicians_online",
			Help:      "Technicians with a live heartbeat",
		}),
	}
	reg.MustRegister(pr.storeReads, pr.storeWriteFailure, pr.taskDuration, pr.taskOutcomes,
		pr.notifications, pr.networkOnline, pr.onlineTechs)
	return pr
}

// Handler serves the registry in the Prometheus exposition format.
func (p *PrometheusRecorder) Handler() http.Handler {
	return promhttp.HandlerFor(p.reg, promhttp.HandlerOpts{})
}

func (p *PrometheusRecorder) IncStoreRead(resource, source string) {
	p.storeReads.WithLabelValues(resource, source).Inc()
}

func (p *PrometheusRecorder) IncStoreWriteFailure(resource string) {
	p.storeWriteFailure.WithLabelValues(resource).Inc()
}

func (p *PrometheusRecorder) ObserveTask(task string, d time.Duration, outcome TaskOutcome) {
	if outcome != TaskSkipped {
		p.taskDuration.WithLabelValues(task).Observe(d.Seconds())
	}
	p.taskOutcomes.WithLabelValues(task, string(outcome)).Inc()
}

func (p *PrometheusRecorder) IncNotifications(notificationType string, n int) {
	p.notifications.WithLabelValues(notificationType).Add(float64(n))
}

func (p *PrometheusRecorder) SetNetworkOnline(online bool) {
	if online {
		p.networkOnline.Set(1)
		return
	}
	p.networkOnline.Set(0)
}

func (p *PrometheusRecorder) SetOnlineTechnicians(n int) {
	p.onlineTechs.Set(float64(n))
}
