package metrics

import (
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Outcome label values.
const (
	OutcomeSuccess = "success"
	OutcomeError   = "error"
	OutcomeRetry   = "retry"
	OutcomeDropped = "dropped"
	OutcomeSkipped = "skipped"
)

// Config configures constant labels attached to every instrument.
type Config struct {
	ServiceName string `env:"METRICS_SERVICE_NAME" envDefault:"actorhost"`
	Environment string `env:"METRICS_ENVIRONMENT" envDefault:"development"`
}

// Metrics holds the engine instruments.
type Metrics struct {
	turns            *prometheus.CounterVec
	turnDuration     *prometheus.HistogramVec
	activations      *prometheus.CounterVec
	deactivations    *prometheus.CounterVec
	activeActors     *prometheus.GaugeVec
	reminderFirings  *prometheus.CounterVec
	reminderLag      prometheus.Histogram
	armedReminders   prometheus.Gauge
	casConflicts     *prometheus.CounterVec
	staleMembers     *prometheus.CounterVec
	lifecycleChanges *prometheus.CounterVec
}

// New creates the instruments and registers them with registerer.
// A nil registerer falls back to prometheus.DefaultRegisterer.
func New(registerer prometheus.Registerer, cfg Config) *Metrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	serviceName := strings.TrimSpace(cfg.ServiceName)
	if serviceName == "" {
		serviceName = "actorhost"
	}
	environment := strings.TrimSpace(cfg.Environment)
	if environment == "" {
		environment = "unknown"
	}
	constLabels := prometheus.Labels{
		"service": serviceName,
		"env":     environment,
	}

	m := &Metrics{
		turns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "actorkit_actor_turns_total",
			Help:        "Actor turns executed by actor type and outcome.",
			ConstLabels: constLabels,
		}, []string{"actor_type", "outcome"}),
		turnDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:        "actorkit_actor_turn_duration_seconds",
			Help:        "Actor turn latency by actor type.",
			Buckets:     []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
			ConstLabels: constLabels,
		}, []string{"actor_type"}),
		activations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "actorkit_actor_activations_total",
			Help:        "Actor activations by actor type and outcome.",
			ConstLabels: constLabels,
		}, []string{"actor_type", "outcome"}),
		deactivations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "actorkit_actor_deactivations_total",
			Help:        "Actor deactivations by actor type.",
			ConstLabels: constLabels,
		}, []string{"actor_type"}),
		activeActors: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name:        "actorkit_actor_active",
			Help:        "Currently active actors by actor type.",
			ConstLabels: constLabels,
		}, []string{"actor_type"}),
		reminderFirings: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "actorkit_reminder_firings_total",
			Help:        "Reminder deliveries by actor type and outcome.",
			ConstLabels: constLabels,
		}, []string{"actor_type", "outcome"}),
		reminderLag: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:        "actorkit_reminder_lag_seconds",
			Help:        "Delay between reminder due time and delivery start.",
			Buckets:     []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 300, 3600},
			ConstLabels: constLabels,
		}),
		armedReminders: prometheus.NewGauge(prometheus.GaugeOpts{
			Name:        "actorkit_reminders_armed",
			Help:        "Reminders currently armed in the scheduler.",
			ConstLabels: constLabels,
		}),
		casConflicts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "actorkit_index_cas_conflicts_total",
			Help:        "Index record compare-and-swap conflicts by collection key.",
			ConstLabels: constLabels,
		}, []string{"collection"}),
		staleMembers: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "actorkit_index_stale_members_total",
			Help:        "Index members skipped because their value is missing or unreadable.",
			ConstLabels: constLabels,
		}, []string{"collection"}),
		lifecycleChanges: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "actorkit_lifecycle_transitions_total",
			Help:        "Applied lifecycle transitions by entity kind.",
			ConstLabels: constLabels,
		}, []string{"kind", "from", "to"}),
	}

	registerer.MustRegister(
		m.turns,
		m.turnDuration,
		m.activations,
		m.deactivations,
		m.activeActors,
		m.reminderFirings,
		m.reminderLag,
		m.armedReminders,
		m.casConflicts,
		m.staleMembers,
		m.lifecycleChanges,
	)

	return m
}

func outcome(err error) string {
	if err != nil {
		return OutcomeError
	}
	return OutcomeSuccess
}

// ObserveTurn records one executed actor turn.
func (m *Metrics) ObserveTurn(actorType string, d time.Duration, err error) {
	if m == nil {
		return
	}
	m.turns.WithLabelValues(actorType, outcome(err)).Inc()
	m.turnDuration.WithLabelValues(actorType).Observe(d.Seconds())
}

// ObserveActivation records an activation attempt.
func (m *Metrics) ObserveActivation(actorType string, err error) {
	if m == nil {
		return
	}
	m.activations.WithLabelValues(actorType, outcome(err)).Inc()
	if err == nil {
		m.activeActors.WithLabelValues(actorType).Inc()
	}
}

// ObserveDeactivation records a completed deactivation.
func (m *Metrics) ObserveDeactivation(actorType string) {
	if m == nil {
		return
	}
	m.deactivations.WithLabelValues(actorType).Inc()
	m.activeActors.WithLabelValues(actorType).Dec()
}

// ObserveReminder records a reminder delivery with one of the Outcome* values.
func (m *Metrics) ObserveReminder(actorType, result string, lag time.Duration) {
	if m == nil {
		return
	}
	m.reminderFirings.WithLabelValues(actorType, result).Inc()
	if lag > 0 {
		m.reminderLag.Observe(lag.Seconds())
	}
}

// SetArmedReminders reports the number of armed reminders.
func (m *Metrics) SetArmedReminders(n int) {
	if m == nil {
		return
	}
	m.armedReminders.Set(float64(n))
}

// IncCASConflict records a lost compare-and-swap on an index record.
func (m *Metrics) IncCASConflict(collection string) {
	if m == nil {
		return
	}
	m.casConflicts.WithLabelValues(collection).Inc()
}

// IncStaleMember records an index member skipped during a read.
func (m *Metrics) IncStaleMember(collection string) {
	if m == nil {
		return
	}
	m.staleMembers.WithLabelValues(collection).Inc()
}

// IncTransition records an applied lifecycle transition.
func (m *Metrics) IncTransition(kind, from, to string) {
	if m == nil {
		return
	}
	m.lifecycleChanges.WithLabelValues(kind, from, to).Inc()
}
