package plexus

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the plexus collectors on a private registry.
type Metrics struct {
	Registry     *prometheus.Registry
	LinesEmitted prometheus.Gauge
	LinesDropped prometheus.Gauge
	TickSeconds  prometheus.Histogram
	Ticks        prometheus.Counter

	server *http.Server
	addr   string
}

func NewMetrics() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		LinesEmitted: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "plexus_lines_emitted",
			Help: "Lines emitted by the last read back tick",
		}),
		LinesDropped: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "plexus_lines_dropped",
			Help: "In-band pairs dropped at capacity by the last read back tick",
		}),
		TickSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "plexus_tick_seconds",
			Help:    "Wall time from simulate submission to the end of the tick",
			Buckets: prometheus.ExponentialBuckets(0.0005, 2, 12),
		}),
		Ticks: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "plexus_ticks_total",
			Help: "Completed ticks",
		}),
	}
	m.Registry.MustRegister(m.LinesEmitted, m.LinesDropped, m.TickSeconds, m.Ticks)
	return m
}

// Serve exposes the registry on addr until Shutdown.
func (m *Metrics) Serve(addr string, log Logger) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{}))
	m.server = &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := m.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Warnf("metrics server exited: %v", err)
		}
	}()
	m.addr = ln.Addr().String()
	log.Infof("metrics on http://%s/metrics", m.addr)
	return nil
}

// Addr is the bound listen address, empty when not serving.
func (m *Metrics) Addr() string { return m.addr }

func (m *Metrics) Shutdown() {
	if m.server == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_ = m.server.Shutdown(ctx)
	m.server = nil
	m.addr = ""
}

// Observe records one finished tick. Line values only move when a readback happened.
func (m *Metrics) Observe(state *PlexusState) {
	m.Ticks.Inc()
	m.TickSeconds.Observe(state.LastTickTime.Seconds())
	if state.HasReadback {
		m.LinesEmitted.Set(float64(state.LastStats.Emitted))
		m.LinesDropped.Set(float64(state.LastStats.Dropped))
	}
}

// MetricsModule registers the collectors; Addr empty keeps them in-process only.
// Install after PlexusModule.
type MetricsModule struct {
	Addr string
}

func (mod MetricsModule) Install(app *App, cmd *Commands) {
	m := NewMetrics()
	cmd.AddResources(m)
	if mod.Addr != "" {
		if err := m.Serve(mod.Addr, cmd.Logger()); err != nil {
			cmd.Logger().Errorf("metrics server: %v", err)
		}
	}
	cmd.UseSystem(System(metricsObserveSystem).InStage(Finale).InState(OnExecute(StateRunning)))
	cmd.UseSystem(System(metricsShutdownSystem).InStage(Finale).InState(OnExit(StateStopped)))
}

func metricsObserveSystem(m *Metrics, state *PlexusState) {
	m.Observe(state)
}

func metricsShutdownSystem(m *Metrics) {
	m.Shutdown()
}
