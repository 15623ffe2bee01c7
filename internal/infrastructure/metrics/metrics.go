package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "sensornode"

// Write results recorded by DeliveryWrite.
const (
	ResultOK             = "ok"
	ResultAPIError       = "api_error"
	ResultTransportError = "transport_error"
	ResultEncodeError    = "encode_error"
)

// Metrics holds every collector.
type Metrics struct {
	registry *prometheus.Registry

	readingsPublished prometheus.Counter
	readingsDiscarded prometheus.Counter
	sensorErrors      prometheus.Counter
	temperature       prometheus.Gauge
	humidity          prometheus.Gauge

	lagged *prometheus.CounterVec

	deliveryWrites   *prometheus.CounterVec
	deliveryConnects *prometheus.CounterVec
	deliveryState    prometheus.Gauge

	renderErrors   prometheus.Counter
	relayPublishes *prometheus.CounterVec
}

// New creates and registers all collectors, including the Go runtime and
// process collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),

		readingsPublished: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sensor",
			Name:      "readings_published_total",
			Help:      "Valid readings published to the bus.",
		}),
		readingsDiscarded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sensor",
			Name:      "readings_discarded_total",
			Help:      "Readings discarded as out of range.",
		}),
		sensorErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sensor",
			Name:      "read_errors_total",
			Help:      "Failed sensor reads.",
		}),
		temperature: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "sensor",
			Name:      "temperature_celsius",
			Help:      "Last published temperature.",
		}),
		humidity: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "sensor",
			Name:      "humidity_percent",
			Help:      "Last published relative humidity.",
		}),
		lagged: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "bus",
			Name:      "lagged_readings_total",
			Help:      "Readings a subscriber missed because its queue was full.",
		}, []string{"subscriber"}),
		deliveryWrites: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "delivery",
			Name:      "writes_total",
			Help:      "Record write attempts by result.",
		}, []string{"result"}),
		deliveryConnects: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "delivery",
			Name:      "connects_total",
			Help:      "Connection attempts by result.",
		}, []string{"result"}),
		deliveryState: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "delivery",
			Name:      "state",
			Help:      "Delivery loop state (0 disconnected, 1 connecting, 2 connected, 3 sending).",
		}),
		renderErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "display",
			Name:      "render_errors_total",
			Help:      "Failed display updates.",
		}),
		relayPublishes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "relay",
			Name:      "publishes_total",
			Help:      "MQTT reading publishes by result.",
		}, []string{"result"}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.readingsPublished,
		m.readingsDiscarded,
		m.sensorErrors,
		m.temperature,
		m.humidity,
		m.lagged,
		m.deliveryWrites,
		m.deliveryConnects,
		m.deliveryState,
		m.renderErrors,
		m.relayPublishes,
	)
	return m
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ReadingPublished counts a published reading and updates the gauges.
func (m *Metrics) ReadingPublished(temperature, humidity float32) {
	if m == nil {
		return
	}
	m.readingsPublished.Inc()
	m.temperature.Set(float64(temperature))
	m.humidity.Set(float64(humidity))
}

// ReadingDiscarded counts an out-of-range reading.
func (m *Metrics) ReadingDiscarded() {
	if m == nil {
		return
	}
	m.readingsDiscarded.Inc()
}

// SensorError counts a failed read.
func (m *Metrics) SensorError() {
	if m == nil {
		return
	}
	m.sensorErrors.Inc()
}

// Lagged adds n missed readings for subscriber.
func (m *Metrics) Lagged(subscriber string, n uint64) {
	if m == nil {
		return
	}
	m.lagged.WithLabelValues(subscriber).Add(float64(n))
}

// DeliveryWrite counts a write attempt with one of the Result* labels.
func (m *Metrics) DeliveryWrite(result string) {
	if m == nil {
		return
	}
	m.deliveryWrites.WithLabelValues(result).Inc()
}

// DeliveryConnect counts a connection attempt.
func (m *Metrics) DeliveryConnect(ok bool) {
	if m == nil {
		return
	}
	result := ResultOK
	if !ok {
		result = ResultTransportError
	}
	m.deliveryConnects.WithLabelValues(result).Inc()
}

// DeliveryState records the delivery loop state code.
func (m *Metrics) DeliveryState(code int) {
	if m == nil {
		return
	}
	m.deliveryState.Set(float64(code))
}

// RenderError counts a failed display update.
func (m *Metrics) RenderError() {
	if m == nil {
		return
	}
	m.renderErrors.Inc()
}

// RelayPublish counts an MQTT publish.
func (m *Metrics) RelayPublish(ok bool) {
	if m == nil {
		return
	}
	result := ResultOK
	if !ok {
		result = ResultTransportError
	}
	m.relayPublishes.WithLabelValues(result).Inc()
}
