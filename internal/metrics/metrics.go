// Package metrics exports serial queue and display state metrics for
// Prometheus.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"

	"displayctl/display"
	"displayctl/serialqueue"
)

const namespace = "displayctl"

// Queue event labels.
const (
	eventSent         = "sent"
	eventResponse     = "response"
	eventUnsolicited  = "unsolicited"
	eventTimeout      = "timeout"
	eventSendFailed   = "send_failed"
	eventFrameDropped = "frame_dropped"
	eventCollapsed    = "collapsed"
)

// Metrics holds the collectors of every display, registered on their
// own registry so that several instances can coexist in tests.
type Metrics struct {
	registry *prometheus.Registry

	events   *prometheus.CounterVec
	latency  *prometheus.HistogramVec
	online   *prometheus.GaugeVec
	power    *prometheus.GaugeVec
	volume   *prometheus.GaugeVec
	changes  *prometheus.CounterVec
	shutdown time.Duration
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "queue_events_total",
			Help:      "Serial queue events by display and kind.",
		}, []string{"display", "event"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "response_duration_seconds",
			Help:      "Time between sending a command and receiving its response.",
			Buckets:   []float64{.01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		}, []string{"display"}),
		online: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "online",
			Help:      "1 if the display port is open.",
		}, []string{"display"}),
		power: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "power_state",
			Help:      "1 for the current power state of the display, 0 for the others.",
		}, []string{"display", "state"}),
		volume: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "volume",
			Help:      "Last known volume, -1 if unknown.",
		}, []string{"display"}),
		changes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "state_changes_total",
			Help:      "Number of display state changes.",
		}, []string{"display"}),
		shutdown: 5 * time.Second,
	}
	m.registry.MustRegister(m.events, m.latency, m.online, m.power, m.volume, m.changes)
	return m
}

// Registry returns the registry the collectors are registered on.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Observer returns a queue observer counting the events of name.
func (m *Metrics) Observer(name string) serialqueue.Observer {
	return &observer{m: m, name: name}
}

var powerStates = []display.PowerState{
	display.PowerUnknown,
	display.PowerOff,
	display.PowerWarming,
	display.PowerOn,
	display.PowerCooling,
}

// StateChanged records st as the state of name. It has the signature
// of display.WithStateCallback.
func (m *Metrics) StateChanged(name string, st display.State) {
	m.changes.WithLabelValues(name).Inc()
	m.online.WithLabelValues(name).Set(boolValue(st.Online))
	for _, p := range powerStates {
		m.power.WithLabelValues(name, p.String()).Set(boolValue(p == st.Power))
	}
	m.volume.WithLabelValues(name).Set(float64(st.Volume))
}

// Handler serves /metrics and /health.
func (m *Metrics) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{}))
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})
	return mux
}

// Serve runs the metrics server on addr until ctx is done.
func (m *Metrics) Serve(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           m.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errc := make(chan error, 1)
	go func() {
		log.Infof("metrics server listening on %s", addr)
		errc <- srv.ListenAndServe()
	}()
	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), m.shutdown)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errc; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func boolValue(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

type observer struct {
	m    *Metrics
	name string
}

func (o *observer) inc(event string) {
	o.m.events.WithLabelValues(o.name, event).Inc()
}

func (o *observer) CommandSent() { o.inc(eventSent) }

func (o *observer) ResponseReceived(elapsed time.Duration) {
	o.inc(eventResponse)
	o.m.latency.WithLabelValues(o.name).Observe(elapsed.Seconds())
}

func (o *observer) Unsolicited()  { o.inc(eventUnsolicited) }
func (o *observer) Timeout()      { o.inc(eventTimeout) }
func (o *observer) SendFailed()   { o.inc(eventSendFailed) }
func (o *observer) FrameDropped() { o.inc(eventFrameDropped) }
func (o *observer) Collapsed()    { o.inc(eventCollapsed) }
