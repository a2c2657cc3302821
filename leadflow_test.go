package leadflow_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/aretw0/leadflow"
	"github.com/aretw0/leadflow/internal/testutils"
	"github.com/aretw0/leadflow/pkg/domain"
	"github.com/aretw0/leadflow/pkg/registry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFacade_LoadAndRun(t *testing.T) {
	path := testutils.WriteFile(t, t.TempDir(), "saude.json", testutils.HealthBasicJSON)
	flow, err := leadflow.ParseFile(path)
	require.NoError(t, err)

	engine, err := leadflow.New(flow, leadflow.WithInvalidChoiceMessage("Hein?"))
	require.NoError(t, err)
	assert.Same(t, flow, engine.Flow())

	ctx := context.Background()
	res, err := engine.ProcessMessage(ctx, "oi", "", nil)
	require.NoError(t, err)
	assert.Equal(t, "perfil", res.NextStepID)
	assert.Len(t, res.Choices, 4)

	res, err = engine.ProcessTurn(ctx, res.State, "nenhum")
	require.NoError(t, err)
	assert.True(t, res.Retry)
	assert.Contains(t, res.Response, "Hein?")
}

func TestFacade_ResumeAfterSignal(t *testing.T) {
	engine, err := leadflow.New(testutils.AutoChain("enviar_crm"))
	require.NoError(t, err)
	ctx := context.Background()

	res, err := engine.ProcessMessage(ctx, "oi", "", nil)
	require.NoError(t, err)
	require.NotNil(t, res.Action)

	res, err = engine.Resume(ctx, res.State, domain.ActionOutcome{})
	require.NoError(t, err)
	assert.Equal(t, "escolha", res.NextStepID)
}

func TestFacade_ActionsAreUsed(t *testing.T) {
	reg := registry.NewRegistry()
	reg.RegisterFunc("enviar_crm", func(ctx context.Context, req domain.ActionRequest) (domain.ActionOutcome, error) {
		return domain.ActionOutcome{Message: "Enviado."}, nil
	})
	engine, err := leadflow.New(testutils.AutoChain("enviar_crm"), leadflow.WithActions(reg))
	require.NoError(t, err)

	res, err := engine.ProcessMessage(context.Background(), "oi", "", nil)
	require.NoError(t, err)
	assert.Nil(t, res.Action)
	assert.Equal(t, []string{"Bem-vindo!", "Enviado.", "Continuar?"}, res.Messages)
}

func TestFacade_InvalidFlow(t *testing.T) {
	_, err := leadflow.Load([]byte(`{"inicio": "a", "passos": [{"id": "a", "tipo": "mensagem", "mensagem": "oi", "proxima": "b"}]}`))
	require.Error(t, err)

	var fve *domain.FlowValidationError
	require.True(t, errors.As(err, &fve))
	assert.Equal(t, []string{"a"}, fve.StepIDs())

	_, err = leadflow.Load([]byte("  "))
	assert.Error(t, err)

	_, err = leadflow.ParseFile(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}

func TestFacade_Validate(t *testing.T) {
	report := leadflow.Validate(testutils.Circular(), nil)
	assert.False(t, report.Valid())

	flow := &domain.FlowDefinition{Start: "a", Steps: []domain.Step{
		&domain.MessageStep{ID: "a", Text: "Olá {{nome}}"},
	}}
	report = leadflow.Validate(flow, nil)
	require.True(t, report.Valid())
	assert.NotEmpty(t, report.Warnings)

	quiet := leadflow.Validate(flow, nil, "nome")
	assert.Less(t, len(quiet.Warnings), len(report.Warnings))
}

func TestVersion(t *testing.T) {
	assert.NotEmpty(t, leadflow.Version)
}
