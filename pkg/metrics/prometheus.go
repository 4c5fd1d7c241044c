package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder implements domain.repository.Metrics using Prometheus.
type Recorder struct {
	eventsDispatched *prometheus.CounterVec
	barsRejected     *prometheus.CounterVec
	handlerErrors    *prometheus.CounterVec
	signals          *prometheus.CounterVec
	oscillator       *prometheus.GaugeVec
	regime           *prometheus.GaugeVec
	errorsTotal      *prometheus.CounterVec
	lastPrice        *prometheus.GaugeVec
	latency          *prometheus.HistogramVec
}

// New creates a new Prometheus metrics recorder registered on the default registry.
func New() *Recorder {
	return NewWithRegistry(prometheus.DefaultRegisterer)
}

// NewWithRegistry registers the recorder's collectors on reg.
func NewWithRegistry(reg prometheus.Registerer) *Recorder {
	f := promauto.With(reg)
	return &Recorder{
		eventsDispatched: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "niftypulse_events_dispatched_total",
				Help: "Total number of events dispatched through the handler chain",
			},
			[]string{"symbol", "kind"},
		),
		barsRejected: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "niftypulse_bars_rejected_total",
				Help: "Bars dropped by the dedup gate as stale or duplicate",
			},
			[]string{"symbol"},
		),
		handlerErrors: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "niftypulse_handler_errors_total",
				Help: "Handler errors and panics during dispatch",
			},
			[]string{"handler"},
		),
		signals: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "niftypulse_signals_total",
				Help: "Trade intents emitted by the signal handler",
			},
			[]string{"symbol", "option_type"},
		),
		oscillator: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "niftypulse_oscillator_value",
				Help: "Last net volume RSI value",
			},
			[]string{"symbol"},
		),
		regime: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "niftypulse_regime_score",
				Help: "Committed regime as a score from -2 (complete bearish) to 2 (complete bullish)",
			},
			[]string{"symbol"},
		),
		errorsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "niftypulse_errors_total",
				Help: "Total number of errors encountered",
			},
			[]string{"type"},
		),
		lastPrice: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "niftypulse_last_price",
				Help: "Last closed bar price for a symbol",
			},
			[]string{"symbol"},
		),
		latency: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "niftypulse_operation_duration_seconds",
				Help:    "Duration of operations in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
	}
}

func (r *Recorder) RecordEventDispatched(symbol, kind string) {
	r.eventsDispatched.WithLabelValues(symbol, kind).Inc()
}

func (r *Recorder) RecordBarRejected(symbol string) {
	r.barsRejected.WithLabelValues(symbol).Inc()
}

func (r *Recorder) RecordHandlerError(handler string) {
	r.handlerErrors.WithLabelValues(handler).Inc()
}

func (r *Recorder) RecordSignal(symbol, optionType string) {
	r.signals.WithLabelValues(symbol, optionType).Inc()
}

func (r *Recorder) RecordOscillator(symbol string, value float64) {
	r.oscillator.WithLabelValues(symbol).Set(value)
}

func (r *Recorder) RecordRegime(symbol string, score float64) {
	r.regime.WithLabelValues(symbol).Set(score)
}

// RecordError records an error occurrence.
func (r *Recorder) RecordError(kind string) {
	r.errorsTotal.WithLabelValues(kind).Inc()
}

// RecordLastPrice records the last price for a symbol.
func (r *Recorder) RecordLastPrice(symbol string, price float64) {
	r.lastPrice.WithLabelValues(symbol).Set(price)
}

// RecordLatency records operation latency in seconds.
func (r *Recorder) RecordLatency(op string, seconds float64) {
	r.latency.WithLabelValues(op).Observe(seconds)
}

// Nop discards all observations.
type Nop struct{}

func (Nop) RecordEventDispatched(string, string) {}
func (Nop) RecordBarRejected(string)             {}
func (Nop) RecordHandlerError(string)            {}
func (Nop) RecordSignal(string, string)          {}
func (Nop) RecordOscillator(string, float64)     {}
func (Nop) RecordRegime(string, float64)         {}
func (Nop) RecordError(string)                   {}
func (Nop) RecordLastPrice(string, float64)      {}
func (Nop) RecordLatency(string, float64)        {}
