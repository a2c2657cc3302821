package actions_test

import (
	"context"
	"errors"
	"testing"

	"github.com/aretw0/leadflow/internal/runtime"
	"github.com/aretw0/leadflow/internal/testutils"
	"github.com/aretw0/leadflow/pkg/actions"
	"github.com/aretw0/leadflow/pkg/adapters/memory"
	"github.com/aretw0/leadflow/pkg/domain"
	"github.com/aretw0/leadflow/pkg/ports"
	"github.com/aretw0/leadflow/pkg/registry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeGenerator struct {
	reply string
	err   error
	req   ports.GenerationRequest
}

func (g *fakeGenerator) Generate(ctx context.Context, req ports.GenerationRequest) (string, error) {
	g.req = req
	return g.reply, g.err
}

func (g *fakeGenerator) Fallback(vertical string) string {
	return "fallback:" + vertical
}

func perform(t *testing.T, reg *registry.Registry, req domain.ActionRequest) (domain.ActionOutcome, error) {
	t.Helper()
	return reg.Perform(context.Background(), req)
}

func TestRegisterDefaults_OnlyWithDeps(t *testing.T) {
	reg := registry.NewRegistry()
	actions.RegisterDefaults(reg, actions.Deps{})
	assert.Equal(t, []string{actions.CalculateScore}, reg.Names())

	reg = registry.NewRegistry()
	actions.RegisterDefaults(reg, actions.Deps{Generator: &fakeGenerator{}, Leads: memory.NewLeadStore()})
	assert.Equal(t, actions.Names(), reg.Names())
}

func TestCalculateScore(t *testing.T) {
	reg := registry.NewRegistry()
	actions.RegisterDefaults(reg, actions.Deps{})

	responses := map[string]any{"perfil": "casal", "idade": "31-45"}
	tests := []struct {
		name   string
		params map[string]any
		want   int
	}{
		{"answers only", nil, 20},
		{"rules for answered steps", map[string]any{"rules": map[string]any{"perfil": 15, "coparticipacao": 50}}, 35},
		{"capped", map[string]any{"rules": map[string]any{"perfil": 90.5}}, 100},
		{"typed rules", map[string]any{"rules": map[string]int{"idade": 5}}, 25},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := perform(t, reg, domain.ActionRequest{
				Name:    actions.CalculateScore,
				Params:  tt.params,
				Context: domain.ConversationContext{Responses: responses},
			})
			require.NoError(t, err)
			assert.Equal(t, tt.want, out.Variables[actions.VarScore])
		})
	}
}

func TestGenerateAIResponse(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		gen := &fakeGenerator{reply: "Claro! Vamos lá."}
		reg := registry.NewRegistry()
		actions.RegisterDefaults(reg, actions.Deps{Generator: gen, DefaultVertical: "imoveis"})

		out, err := perform(t, reg, domain.ActionRequest{Name: actions.GenerateAIResponse, Params: map[string]any{"max_chars": 120}})
		require.NoError(t, err)
		assert.Equal(t, "Claro! Vamos lá.", out.Message)
		assert.Equal(t, "Claro! Vamos lá.", out.Variables[actions.VarAIResponse])
		assert.Equal(t, "imoveis", gen.req.Vertical)
		assert.Equal(t, 120, gen.req.MaxChars)
	})

	t.Run("failure returns fallback with the error", func(t *testing.T) {
		gen := &fakeGenerator{err: errors.New("quota")}
		reg := registry.NewRegistry()
		actions.RegisterDefaults(reg, actions.Deps{Generator: gen})

		out, err := perform(t, reg, domain.ActionRequest{
			Name:    actions.GenerateAIResponse,
			Context: domain.ConversationContext{Variables: map[string]any{"vertical": "automoveis"}},
		})
		assert.Error(t, err)
		assert.Equal(t, "fallback:automoveis", out.Message)
	})
}

// The health flow ends on gerar_resposta_ia; a failing generator must still complete the turn with the fallback.
func TestGenerateAIResponse_EngineFallback(t *testing.T) {
	reg := registry.NewRegistry()
	actions.RegisterDefaults(reg, actions.Deps{Generator: &fakeGenerator{err: errors.New("down")}, DefaultVertical: "saude"})

	engine, err := runtime.NewEngine(testutils.HealthBasic(), runtime.WithActions(reg))
	require.NoError(t, err)

	res, err := engine.ProcessMessage(context.Background(), "sim", "coparticipacao", nil)
	require.NoError(t, err)
	assert.True(t, res.Complete)
	assert.Equal(t, "fallback:saude", res.Response)
	assert.Equal(t, "fallback:saude", res.Variables[actions.VarAIResponse])
}

func TestUpdateLead(t *testing.T) {
	leads := memory.NewLeadStore()
	reg := registry.NewRegistry()
	actions.RegisterDefaults(reg, actions.Deps{Leads: leads})

	vars := map[string]any{"lead_id": "42", "perfil": "casal", "idade": "31-45"}

	out, err := perform(t, reg, domain.ActionRequest{
		Name:    actions.UpdateLead,
		Params:  map[string]any{"fields": []any{"perfil"}},
		Context: domain.ConversationContext{Variables: vars},
	})
	require.NoError(t, err)
	assert.Equal(t, true, out.Variables[actions.VarLeadUpdated])

	lead, ok := leads.Lead("42")
	require.True(t, ok)
	assert.Equal(t, map[string]any{"perfil": "casal"}, lead)

	_, err = perform(t, reg, domain.ActionRequest{
		Name:    actions.UpdateLead,
		Params:  map[string]any{"fields": []string{"idade"}},
		Context: domain.ConversationContext{Variables: vars},
	})
	require.NoError(t, err)
	lead, _ = leads.Lead("42")
	assert.Equal(t, "31-45", lead["idade"])
	assert.NotContains(t, lead, "lead_id")

	_, err = perform(t, reg, domain.ActionRequest{Name: actions.UpdateLead, Context: domain.ConversationContext{Variables: map[string]any{}}})
	assert.ErrorIs(t, err, actions.ErrNoLeadID)
}

func TestCalculateScore_TypedParamsInFlow(t *testing.T) {
	reg := registry.NewRegistry()
	actions.RegisterDefaults(reg, actions.Deps{})

	flow := &domain.FlowDefinition{Start: "q", Steps: []domain.Step{
		&domain.ChoiceStep{ID: "q", Prompt: "A ou B?", Options: []domain.Option{
			{Text: "A", Value: "a", Next: "calc"},
			{Text: "B", Value: "b", Next: "calc"},
		}},
		&domain.ExecuteStep{ID: "calc", Action: actions.CalculateScore, Params: map[string]any{
			"rules": map[string]int{"q": 50},
		}, Next: "fim"},
		&domain.MessageStep{ID: "fim", Text: "score {{score}}"},
	}}
	engine, err := runtime.NewEngine(flow, runtime.WithActions(reg))
	require.NoError(t, err)

	ctx := context.Background()
	res, err := engine.ProcessMessage(ctx, "oi", "", nil)
	require.NoError(t, err)
	res, err = engine.ProcessTurn(ctx, res.State, "a")
	require.NoError(t, err)

	assert.Equal(t, "score 60", res.Response)
	assert.Equal(t, 60, res.Variables[actions.VarScore])
}
