package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "alpine"

// Metrics junta los collectors del bot sobre un registry propio (no el global).
// Implementa music.Recorder y settings.Recorder.
type Metrics struct {
	reg *prometheus.Registry

	sessionsOpen   prometheus.Gauge
	sessionsClosed *prometheus.CounterVec
	tracksStarted  prometheus.Counter
	votes          *prometheus.CounterVec
	nodeEvents     *prometheus.CounterVec

	storeWrites *prometheus.CounterVec
	cacheSize   *prometheus.GaugeVec

	commands *prometheus.CounterVec
}

func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		reg: reg,
		sessionsOpen: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Subsystem: "music", Name: "sessions_open",
			Help: "Sesiones de reproducción vivas.",
		}),
		sessionsClosed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "music", Name: "sessions_closed_total",
			Help: "Sesiones cerradas por motivo.",
		}, []string{"reason"}),
		tracksStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "music", Name: "tracks_started_total",
			Help: "Tracks mandados al nodo.",
		}),
		votes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "music", Name: "votes_total",
			Help: "Votos emitidos por acción y si ejecutaron.",
		}, []string{"action", "executed"}),
		nodeEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "audionode", Name: "events_total",
			Help: "Eventos recibidos del nodo de audio.",
		}, []string{"type"}),
		storeWrites: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "settings", Name: "store_writes_total",
			Help: "Escrituras al store por operación y resultado.",
		}, []string{"op", "result"}),
		cacheSize: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace, Subsystem: "settings", Name: "cache_loaded",
			Help: "Registros cargados en el cache al arrancar.",
		}, []string{"kind"}),
		commands: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "discord", Name: "commands_total",
			Help: "Comandos atendidos por nombre, origen y resultado.",
		}, []string{"command", "source", "result"}),
	}
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.sessionsOpen, m.sessionsClosed, m.tracksStarted, m.votes, m.nodeEvents,
		m.storeWrites, m.cacheSize, m.commands,
	)
	return m
}

// Handler sirve /metrics.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{Registry: m.reg})
}

func (m *Metrics) Registry() *prometheus.Registry { return m.reg }

// ---- music ----

func (m *Metrics) SessionOpened() { m.sessionsOpen.Inc() }

func (m *Metrics) SessionClosed(reason string) {
	m.sessionsOpen.Dec()
	m.sessionsClosed.WithLabelValues(reason).Inc()
}

func (m *Metrics) TrackStarted() { m.tracksStarted.Inc() }

func (m *Metrics) VoteCast(action string, executed bool) {
	m.votes.WithLabelValues(action, boolLabel(executed)).Inc()
}

func (m *Metrics) NodeEvent(kind string) { m.nodeEvents.WithLabelValues(kind).Inc() }

// ---- settings ----

func (m *Metrics) StoreWrite(op string, err error) {
	m.storeWrites.WithLabelValues(op, resultLabel(err)).Inc()
}

func (m *Metrics) CacheLoaded(kind string, n int) { m.cacheSize.WithLabelValues(kind).Set(float64(n)) }

// ---- discord ----

// Command cuenta un comando; source es "slash" o "prefix".
func (m *Metrics) Command(name, source string, err error) {
	m.commands.WithLabelValues(name, source, resultLabel(err)).Inc()
}

func boolLabel(b bool) string {
	if b {
		return "true"
	}
	return "false"
}

func resultLabel(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
