package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the rig collectors. A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry      *prometheus.Registry
	tickDuration  prometheus.Histogram
	ticks         prometheus.Counter
	deviceErrors  *prometheus.CounterVec
	persistErrors prometheus.Counter
	commands      *prometheus.CounterVec
	runActive     prometheus.Gauge
	segment       prometheus.Gauge
	soll          *prometheus.GaugeVec
	out           *prometheus.GaugeVec
	value         *prometheus.GaugeVec
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		tickDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "rig_tick_duration_seconds",
			Help:    "Histogram of dispatch tick durations.",
			Buckets: []float64{.001, .0025, .005, .01, .025, .05, .1, .25},
		}),
		ticks: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "rig_ticks_total",
			Help: "Total dispatch ticks executed.",
		}),
		deviceErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "rig_device_errors_total",
			Help: "Total failed register reads and writes by operation.",
		}, []string{"op"}),
		persistErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "rig_log_errors_total",
			Help: "Total records which could not be appended to the log.",
		}),
		commands: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "rig_commands_total",
			Help: "Total commands applied by kind.",
		}, []string{"kind"}),
		runActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "rig_run_active",
			Help: "1 while a profile run is active.",
		}),
		segment: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "rig_run_segment",
			Help: "Index of the current profile segment.",
		}),
		soll: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "rig_controller_soll",
			Help: "Controller setpoint by channel.",
		}, []string{"channel"}),
		out: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "rig_controller_out",
			Help: "Controller output by channel.",
		}, []string{"channel"}),
		value: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "rig_channel_value",
			Help: "Channel reading in engineering units.",
		}, []string{"channel"}),
	}

	m.registry.MustRegister(
		m.tickDuration,
		m.ticks,
		m.deviceErrors,
		m.persistErrors,
		m.commands,
		m.runActive,
		m.segment,
		m.soll,
		m.out,
		m.value,
	)

	return m
}

func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) Tick(d time.Duration) {
	if m == nil {
		return
	}
	m.ticks.Inc()
	m.tickDuration.Observe(d.Seconds())
}

func (m *Metrics) DeviceError(op string) {
	if m == nil {
		return
	}
	m.deviceErrors.WithLabelValues(op).Inc()
}

func (m *Metrics) PersistenceError() {
	if m == nil {
		return
	}
	m.persistErrors.Inc()
}

func (m *Metrics) Command(kind string) {
	if m == nil {
		return
	}
	m.commands.WithLabelValues(kind).Inc()
}

func (m *Metrics) Run(active bool, segment int) {
	if m == nil {
		return
	}
	if active {
		m.runActive.Set(1)
	} else {
		m.runActive.Set(0)
	}
	m.segment.Set(float64(segment))
}

func (m *Metrics) Controller(channel string, soll, out float64) {
	if m == nil {
		return
	}
	m.soll.WithLabelValues(channel).Set(soll)
	m.out.WithLabelValues(channel).Set(out)
}

func (m *Metrics) Value(channel string, v float64) {
	if m == nil {
		return
	}
	m.value.WithLabelValues(channel).Set(v)
}
