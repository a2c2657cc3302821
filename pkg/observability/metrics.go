package observability

import (
	"context"
	"log/slog"

	"github.com/aretw0/leadflow/pkg/domain"
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the collectors fed by the engine hooks.
type Metrics struct {
	StepVisits     *prometheus.CounterVec
	ActionDuration *prometheus.HistogramVec
	ActionErrors   *prometheus.CounterVec
	InvalidChoices *prometheus.CounterVec
	Turns          *prometheus.CounterVec
	TurnDuration   *prometheus.HistogramVec
}

// NewMetrics creates the collectors and registers them on reg.
// A nil reg leaves them unregistered.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		StepVisits: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "leadflow_step_visits_total",
				Help: "Total number of step visits",
			},
			[]string{"flow_id", "step_id", "step_type"},
		),
		ActionDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "leadflow_action_duration_seconds",
				Help:    "Duration of action executions",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"action"},
		),
		ActionErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "leadflow_action_errors_total",
				Help: "Actions that failed and fell back",
			},
			[]string{"action"},
		),
		InvalidChoices: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "leadflow_invalid_choices_total",
				Help: "Answers that matched no option",
			},
			[]string{"flow_id", "step_id"},
		),
		Turns: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "leadflow_turns_total",
				Help: "Processed turns by outcome",
			},
			[]string{"flow_id", "outcome"},
		),
		TurnDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "leadflow_turn_duration_seconds",
				Help:    "Duration of a full turn including auto-chained steps",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"flow_id"},
		),
	}
	if reg != nil {
		reg.MustRegister(m.StepVisits, m.ActionDuration, m.ActionErrors, m.InvalidChoices, m.Turns, m.TurnDuration)
	}
	return m
}

func turnOutcome(e *domain.TurnEvent) string {
	switch {
	case e.Retry:
		return "retry"
	case e.Complete:
		return "complete"
	default:
		return "waiting"
	}
}

// Hooks records every event on m.
func (m *Metrics) Hooks() domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnStepEnter: func(ctx context.Context, e *domain.StepEvent) {
			m.StepVisits.WithLabelValues(e.FlowID, e.StepID, string(e.StepType)).Inc()
		},
		OnActionReturn: func(ctx context.Context, e *domain.ActionEvent) {
			m.ActionDuration.WithLabelValues(e.Action).Observe(e.Duration.Seconds())
			if e.IsError {
				m.ActionErrors.WithLabelValues(e.Action).Inc()
			}
		},
		OnInvalidChoice: func(ctx context.Context, e *domain.StepEvent) {
			m.InvalidChoices.WithLabelValues(e.FlowID, e.StepID).Inc()
		},
		OnTurnComplete: func(ctx context.Context, e *domain.TurnEvent) {
			m.Turns.WithLabelValues(e.FlowID, turnOutcome(e)).Inc()
			m.TurnDuration.WithLabelValues(e.FlowID).Observe(e.Duration.Seconds())
		},
	}
}

// LoggingHooks logs every event at debug level, except action failures which log as warnings.
func LoggingHooks(logger *slog.Logger) domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnStepEnter: func(ctx context.Context, e *domain.StepEvent) {
			logger.DebugContext(ctx, "step_enter", "flow_id", e.FlowID, "step_id", e.StepID, "type", e.StepType)
		},
		OnActionCall: func(ctx context.Context, e *domain.ActionEvent) {
			logger.DebugContext(ctx, "action_call", "step_id", e.StepID, "action", e.Action)
		},
		OnActionReturn: func(ctx context.Context, e *domain.ActionEvent) {
			if e.IsError {
				logger.WarnContext(ctx, "action_return", "action", e.Action, "duration", e.Duration, "is_error", true)
				return
			}
			logger.DebugContext(ctx, "action_return", "action", e.Action, "duration", e.Duration)
		},
		OnInvalidChoice: func(ctx context.Context, e *domain.StepEvent) {
			logger.DebugContext(ctx, "invalid_choice", "step_id", e.StepID, "input", e.Input)
		},
		OnTurnComplete: func(ctx context.Context, e *domain.TurnEvent) {
			logger.DebugContext(ctx, "turn_complete",
				"flow_id", e.FlowID,
				"steps", e.Steps,
				"next_step_id", e.NextStepID,
				"outcome", turnOutcome(e),
				"duration", e.Duration,
			)
		},
	}
}

// Combine fans every event out to each of hooks in order.
func Combine(hooks ...domain.LifecycleHooks) domain.LifecycleHooks {
	var out domain.LifecycleHooks
	for _, h := range hooks {
		if h.OnStepEnter != nil {
			prev := out.OnStepEnter
			out.OnStepEnter = func(ctx context.Context, e *domain.StepEvent) {
				if prev != nil {
					prev(ctx, e)
				}
				h.OnStepEnter(ctx, e)
			}
		}
		if h.OnActionCall != nil {
			prev := out.OnActionCall
			out.OnActionCall = func(ctx context.Context, e *domain.ActionEvent) {
				if prev != nil {
					prev(ctx, e)
				}
				h.OnActionCall(ctx, e)
			}
		}
		if h.OnActionReturn != nil {
			prev := out.OnActionReturn
			out.OnActionReturn = func(ctx context.Context, e *domain.ActionEvent) {
				if prev != nil {
					prev(ctx, e)
				}
				h.OnActionReturn(ctx, e)
			}
		}
		if h.OnInvalidChoice != nil {
			prev := out.OnInvalidChoice
			out.OnInvalidChoice = func(ctx context.Context, e *domain.StepEvent) {
				if prev != nil {
					prev(ctx, e)
				}
				h.OnInvalidChoice(ctx, e)
			}
		}
		if h.OnTurnComplete != nil {
			prev := out.OnTurnComplete
			out.OnTurnComplete = func(ctx context.Context, e *domain.TurnEvent) {
				if prev != nil {
					prev(ctx, e)
				}
				h.OnTurnComplete(ctx, e)
			}
		}
	}
	return out
}
