package telemetry

import (
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// FrameCollector метрики Prometheus для тиков, систем и содержимого сцены
type FrameCollector struct {
	gatherer prometheus.Gatherer

	TickDuration   prometheus.Histogram
	SystemDuration *prometheus.HistogramVec
	SystemFailures *prometheus.CounterVec
	LoadFailures   *prometheus.CounterVec
	Clients        prometheus.Gauge

	Entities prometheus.Gauge
	Bodies   prometheus.Gauge
	Solids   prometheus.Gauge
}

// NewFrameCollector регистрирует метрики в reg; nil означает глобальный реестр
func NewFrameCollector(reg prometheus.Registerer) (*FrameCollector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}

	tick, err := registerHistogram(reg, prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "xscene_tick_duration_seconds",
		Help:    "Duration of a full frame update in seconds.",
		Buckets: []float64{0.0005, 0.001, 0.0025, 0.005, 0.01, 0.016, 0.033, 0.05, 0.1},
	}), "xscene_tick_duration_seconds")
	if err != nil {
		return nil, err
	}

	systems, err := registerHistogramVec(reg, prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "xscene_system_duration_seconds",
		Help:    "Duration of a single system update in seconds, labeled by system.",
		Buckets: []float64{0.0001, 0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025},
	}, []string{"system"}), "xscene_system_duration_seconds")
	if err != nil {
		return nil, err
	}

	failures, err := registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "xscene_system_failures_total",
		Help: "Failed system updates, labeled by system and reason (error or panic).",
	}, []string{"system", "reason"}), "xscene_system_failures_total")
	if err != nil {
		return nil, err
	}

	loads, err := registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "xscene_load_failures_total",
		Help: "Non-fatal failures while loading the scene, labeled by stage.",
	}, []string{"stage"}), "xscene_load_failures_total")
	if err != nil {
		return nil, err
	}

	clients, err := registerGauge(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "xscene_stream_clients",
		Help: "Current number of connected websocket clients.",
	}), "xscene_stream_clients")
	if err != nil {
		return nil, err
	}
	entities, err := registerGauge(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "xscene_entities",
		Help: "Current number of scene entities.",
	}), "xscene_entities")
	if err != nil {
		return nil, err
	}
	bodies, err := registerGauge(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "xscene_physics_bodies",
		Help: "Current number of physics bodies.",
	}), "xscene_physics_bodies")
	if err != nil {
		return nil, err
	}
	solids, err := registerGauge(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "xscene_camera_solids",
		Help: "Meshes cached as camera obstacles.",
	}), "xscene_camera_solids")
	if err != nil {
		return nil, err
	}

	return &FrameCollector{
		gatherer:       gatherer,
		TickDuration:   tick,
		SystemDuration: systems,
		SystemFailures: failures,
		LoadFailures:   loads,
		Clients:        clients,
		Entities:       entities,
		Bodies:         bodies,
		Solids:         solids,
	}, nil
}

// ObserveTick длительность кадра
func (c *FrameCollector) ObserveTick(d time.Duration) {
	if c == nil {
		return
	}
	c.TickDuration.Observe(d.Seconds())
}

// ObserveSystem длительность и исход обновления системы
func (c *FrameCollector) ObserveSystem(name string, d time.Duration, err error, panicked bool) {
	if c == nil {
		return
	}
	c.SystemDuration.WithLabelValues(name).Observe(d.Seconds())
	switch {
	case panicked:
		c.SystemFailures.WithLabelValues(name, "panic").Inc()
	case err != nil:
		c.SystemFailures.WithLabelValues(name, "error").Inc()
	}
}

// LoadFailed нефатальная ошибка загрузки на этапе stage
func (c *FrameCollector) LoadFailed(stage string) {
	if c == nil {
		return
	}
	c.LoadFailures.WithLabelValues(stage).Inc()
}

// SetSceneCounts размеры сцены
func (c *FrameCollector) SetSceneCounts(entities, bodies, solids int) {
	if c == nil {
		return
	}
	c.Entities.Set(float64(entities))
	c.Bodies.Set(float64(bodies))
	c.Solids.Set(float64(solids))
}

// SetClients число подключенных клиентов
func (c *FrameCollector) SetClients(n int) {
	if c == nil {
		return
	}
	c.Clients.Set(float64(n))
}

// Handler обработчик /metrics
func (c *FrameCollector) Handler() http.Handler {
	gatherer := prometheus.DefaultGatherer
	if c != nil && c.gatherer != nil {
		gatherer = c.gatherer
	}
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

func registerCounterVec(reg prometheus.Registerer, vec *prometheus.CounterVec, name string) (*prometheus.CounterVec, error) {
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.CounterVec); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return vec, nil
}

func registerHistogramVec(reg prometheus.Registerer, vec *prometheus.HistogramVec, name string) (*prometheus.HistogramVec, error) {
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.HistogramVec); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return vec, nil
}

func registerHistogram(reg prometheus.Registerer, h prometheus.Histogram, name string) (prometheus.Histogram, error) {
	if err := reg.Register(h); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Histogram); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return h, nil
}

func registerGauge(reg prometheus.Registerer, gauge prometheus.Gauge, name string) (prometheus.Gauge, error) {
	if err := reg.Register(gauge); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Gauge); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return gauge, nil
}
