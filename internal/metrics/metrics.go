// Package metrics exports tracker activity to Prometheus and serves it over HTTP.
package metrics

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/danielpatrickdp/coherence-tracker/internal/logging"
	"github.com/danielpatrickdp/coherence-tracker/internal/tracker"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// #region stats
// Stats holds the collectors on a private registry.
type Stats struct {
	Registry    *prometheus.Registry
	events      *prometheus.CounterVec
	score       *prometheus.GaugeVec
	step        *prometheus.GaugeVec
	sinkErrors  prometheus.Counter
	transitions *prometheus.CounterVec
}

// NewStats registers every collector on a fresh registry.
func NewStats() *Stats {
	s := &Stats{
		Registry: prometheus.NewRegistry(),
		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "coherence",
			Name:      "events_total",
			Help:      "Tracker events by kind.",
		}, []string{"dyad", "kind"}),
		score: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "coherence",
			Name:      "score",
			Help:      "Authoritative coherence score after the latest breath.",
		}, []string{"dyad"}),
		step: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "coherence",
			Name:      "oscillation_step",
			Help:      "Current oscillation breath, 0 outside a session.",
		}, []string{"dyad"}),
		sinkErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "coherence",
			Name:      "sink_errors_total",
			Help:      "Records the wrapped sink failed to append.",
		}),
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "coherence",
			Name:      "transitions_total",
			Help:      "Recovery mode transitions.",
		}, []string{"dyad", "from", "to"}),
	}
	s.Registry.MustRegister(s.events, s.score, s.step, s.sinkErrors, s.transitions)
	return s
}

// Handler serves the registry in the Prometheus exposition format.
func (s *Stats) Handler() http.Handler {
	return promhttp.HandlerFor(s.Registry, promhttp.HandlerOpts{})
}

// #endregion stats

// #region sink
// Sink counts every record and forwards it to the wrapped sink.
type Sink struct {
	next  logging.Sink
	stats *Stats
}

var _ logging.Sink = (*Sink)(nil)

// Wrap decorates next. A nil next counts records without storing them.
func (s *Stats) Wrap(next logging.Sink) *Sink {
	if next == nil {
		next = logging.Discard{}
	}
	return &Sink{next: next, stats: s}
}

// Append observes rec, then forwards it. The wrapped sink's error is returned.
func (m *Sink) Append(rec logging.Record) error {
	st := m.stats
	st.events.WithLabelValues(rec.Dyad, string(rec.Kind)).Inc()
	switch rec.Kind {
	case logging.KindBreath:
		if b := rec.Breath; b != nil {
			st.score.WithLabelValues(rec.Dyad).Set(b.NewScore)
			step := 0
			if b.Oscillation != nil && !b.Oscillation.Complete {
				step = b.Oscillation.Step
			}
			st.step.WithLabelValues(rec.Dyad).Set(float64(step))
		}
	case logging.KindTransition:
		if tr := rec.Transition; tr != nil {
			st.transitions.WithLabelValues(rec.Dyad, tr.From, tr.To).Inc()
		}
	case logging.KindInitialization:
		if in := rec.Init; in != nil {
			st.score.WithLabelValues(rec.Dyad).Set(in.InitialScore)
		}
	case logging.KindReset:
		if r := rec.Reset; r != nil {
			st.score.WithLabelValues(rec.Dyad).Set(r.InitialScore)
			st.step.WithLabelValues(rec.Dyad).Set(0)
		}
	}

	if err := m.next.Append(rec); err != nil {
		st.sinkErrors.Inc()
		return err
	}
	return nil
}

// Close closes the wrapped sink.
func (m *Sink) Close() error { return m.next.Close() }

// #endregion sink

// #region router
// StateFunc looks up the live state of a dyad's tracker.
type StateFunc func(dyad string) (tracker.Snapshot, bool)

// Version is reported by /api/version.
var Version = "dev"

// NewRouter serves /metrics, /api/version, and /api/state/{dyad}.
func NewRouter(stats *Stats, state StateFunc) *mux.Router {
	r := mux.NewRouter()
	r.Handle("/metrics", stats.Handler())

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/version", versionHandler).Methods(http.MethodGet)
	api.HandleFunc("/state/{dyad}", stateHandler(state)).Methods(http.MethodGet)
	return r
}

func versionHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"version": Version})
}

func stateHandler(state StateFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		dyad := mux.Vars(r)["dyad"]
		snap, ok := state(dyad)
		if !ok {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "unknown dyad " + dyad})
			return
		}
		writeJSON(w, http.StatusOK, snap)
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("failed to encode response", slog.Any("error", err))
	}
}

// #endregion router
