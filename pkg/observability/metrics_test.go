package observability_test

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/aretw0/leadflow/internal/runtime"
	"github.com/aretw0/leadflow/internal/testutils"
	"github.com/aretw0/leadflow/pkg/domain"
	"github.com/aretw0/leadflow/pkg/observability"
	"github.com/aretw0/leadflow/pkg/registry"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_Hooks(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := observability.NewMetrics(reg)

	actions := registry.NewRegistry()
	actions.RegisterFunc("registrar", func(ctx context.Context, req domain.ActionRequest) (domain.ActionOutcome, error) {
		return domain.ActionOutcome{}, errors.New("falhou")
	})
	flow := testutils.AutoChain("registrar")
	flow.ID = "auto"

	engine, err := runtime.NewEngine(flow, runtime.WithActions(actions), runtime.WithLifecycleHooks(metrics.Hooks()))
	require.NoError(t, err)

	ctx := context.Background()
	res, err := engine.ProcessMessage(ctx, "oi", "", nil)
	require.NoError(t, err)
	_, err = engine.ProcessTurn(ctx, res.State, "talvez")
	require.NoError(t, err)

	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.StepVisits.WithLabelValues("auto", "intro", "message")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.ActionErrors.WithLabelValues("registrar")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.InvalidChoices.WithLabelValues("auto", "escolha")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.Turns.WithLabelValues("auto", "waiting")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.Turns.WithLabelValues("auto", "retry")))
	assert.Equal(t, 1, testutil.CollectAndCount(metrics.ActionDuration))
}

func TestNewMetrics_DoubleRegistrationPanics(t *testing.T) {
	reg := prometheus.NewRegistry()
	observability.NewMetrics(reg)
	assert.Panics(t, func() { observability.NewMetrics(reg) })
	assert.NotPanics(t, func() { observability.NewMetrics(nil) })
}

func TestCombine(t *testing.T) {
	var order []string
	a := domain.LifecycleHooks{OnStepEnter: func(ctx context.Context, e *domain.StepEvent) { order = append(order, "a") }}
	b := domain.LifecycleHooks{
		OnStepEnter:    func(ctx context.Context, e *domain.StepEvent) { order = append(order, "b") },
		OnTurnComplete: func(ctx context.Context, e *domain.TurnEvent) { order = append(order, "turn") },
	}

	hooks := observability.Combine(a, domain.LifecycleHooks{}, b)
	hooks.OnStepEnter(context.Background(), &domain.StepEvent{})
	hooks.OnTurnComplete(context.Background(), &domain.TurnEvent{})

	assert.Equal(t, []string{"a", "b", "turn"}, order)
	assert.Nil(t, hooks.OnActionCall)
}

func TestLoggingHooks(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	engine, err := runtime.NewEngine(testutils.Minimal(), runtime.WithLifecycleHooks(observability.LoggingHooks(logger)))
	require.NoError(t, err)
	_, err = engine.ProcessMessage(context.Background(), "oi", "", nil)
	require.NoError(t, err)

	out := buf.String()
	assert.Contains(t, out, "step_enter")
	assert.Contains(t, out, "turn_complete")
	assert.Contains(t, out, "outcome=complete")
}
