// Package actions provides the built-in execute-step actions of lead qualification flows.
package actions

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/aretw0/leadflow/pkg/domain"
	"github.com/aretw0/leadflow/pkg/ports"
	"github.com/aretw0/leadflow/pkg/registry"
	"github.com/aretw0/leadflow/pkg/schema"
	"github.com/aretw0/leadflow/pkg/state"
	"github.com/mitchellh/mapstructure"
)

// Action names understood by flows.
const (
	GenerateAIResponse = "gerar_resposta_ia"
	UpdateLead         = "atualizar_lead"
	CalculateScore     = "calcular_score"
)

// Variables written by the built-in actions.
const (
	VarAIResponse  = "resposta_ia"
	VarScore       = "score"
	VarLeadUpdated = "lead_atualizado"
	VarLeadID      = "lead_id"
	VarVertical    = "vertical"
)

// MaxScore caps calcular_score.
const MaxScore = 100

// ErrNoLeadID is returned by atualizar_lead when the conversation has no lead_id variable.
var ErrNoLeadID = errors.New("lead_id variable not set")

// Deps are the collaborators of the built-in actions. Nil members disable
// the matching action, leaving it to the caller through an action signal.
type Deps struct {
	Generator ports.Generator
	Leads     ports.LeadUpdater

	// DefaultVertical applies when neither params nor variables name one.
	DefaultVertical string

	// MaxChars caps generated replies when the step sets no max_chars.
	MaxChars int
}

// RegisterDefaults registers every built-in action whose dependencies are present.
func RegisterDefaults(reg *registry.Registry, deps Deps) {
	reg.RegisterFunc(CalculateScore, calculateScore,
		registry.WithDescription("Scores the lead: 10 points per answer plus rule points for answered steps, capped at 100."),
		registry.WithParamsSchema(schema.Schema{"rules": schema.Optional(schema.Map(schema.Float()))}),
		registry.WithOutputs(VarScore),
	)

	if deps.Generator != nil {
		reg.Register(GenerateAIResponse, &aiResponder{gen: deps.Generator, vertical: deps.DefaultVertical, maxChars: deps.MaxChars},
			registry.WithDescription("Generates a contextual reply for the lead, falling back to a canned text per vertical."),
			registry.WithParamsSchema(schema.Schema{
				"vertical":  schema.Optional(schema.String()),
				"mensagem":  schema.Optional(schema.String()),
				"max_chars": schema.Optional(schema.Int()),
			}),
			registry.WithOutputs(VarAIResponse),
		)
	}

	if deps.Leads != nil {
		reg.Register(UpdateLead, &leadUpdater{leads: deps.Leads},
			registry.WithDescription("Writes collected variables to the lead record identified by lead_id."),
			registry.WithParamsSchema(schema.Schema{"fields": schema.Optional(schema.Slice(schema.String()))}),
			registry.WithOutputs(VarLeadUpdated),
		)
	}
}

type scoreParams struct {
	Rules map[string]float64 `mapstructure:"rules"`
}

func calculateScore(ctx context.Context, req domain.ActionRequest) (domain.ActionOutcome, error) {
	responses := req.Context.Responses
	score := float64(len(responses) * 10)

	var params scoreParams
	if err := mapstructure.Decode(req.Params, &params); err != nil {
		return domain.ActionOutcome{}, fmt.Errorf("%s params: %w", CalculateScore, err)
	}
	for key, points := range params.Rules {
		if _, answered := responses[key]; answered {
			score += points
		}
	}
	if score > MaxScore {
		score = MaxScore
	}
	if score < 0 {
		score = 0
	}
	return domain.ActionOutcome{Variables: map[string]any{VarScore: int(score)}}, nil
}

type aiResponder struct {
	gen      ports.Generator
	vertical string
	maxChars int
}

func (a *aiResponder) verticalOf(req domain.ActionRequest) string {
	if v, ok := req.Params["vertical"].(string); ok && v != "" {
		return v
	}
	if v, ok := req.Context.Variables[VarVertical].(string); ok && v != "" {
		return v
	}
	return a.vertical
}

// Perform returns the fallback outcome alongside the error so the turn still has a reply.
func (a *aiResponder) Perform(ctx context.Context, req domain.ActionRequest) (domain.ActionOutcome, error) {
	genReq := ports.GenerationRequest{
		Vertical: a.verticalOf(req),
		Context:  req.Context,
		MaxChars: a.maxChars,
	}
	if msg, ok := req.Params["mensagem"].(string); ok {
		genReq.Message = msg
	}
	if n, ok := toFloat(req.Params["max_chars"]); ok {
		genReq.MaxChars = int(n)
	}

	text, err := a.gen.Generate(ctx, genReq)
	if err != nil {
		return a.Fallback(req), fmt.Errorf("generate reply: %w", err)
	}
	return domain.ActionOutcome{Message: text, Variables: map[string]any{VarAIResponse: text}}, nil
}

// Fallback implements registry.Fallbacker.
func (a *aiResponder) Fallback(req domain.ActionRequest) domain.ActionOutcome {
	text := a.gen.Fallback(a.verticalOf(req))
	return domain.ActionOutcome{Message: text, Variables: map[string]any{VarAIResponse: text}}
}

type leadParams struct {
	Fields []string `mapstructure:"fields"`
}

type leadUpdater struct {
	leads ports.LeadUpdater
}

func (l *leadUpdater) Perform(ctx context.Context, req domain.ActionRequest) (domain.ActionOutcome, error) {
	leadID, ok := req.Context.Variables[VarLeadID]
	if !ok {
		return domain.ActionOutcome{Variables: map[string]any{VarLeadUpdated: false}}, ErrNoLeadID
	}
	id, _ := state.Stringify(leadID)

	var params leadParams
	if err := mapstructure.Decode(req.Params, &params); err != nil {
		return domain.ActionOutcome{Variables: map[string]any{VarLeadUpdated: false}}, fmt.Errorf("%s params: %w", UpdateLead, err)
	}

	fields := make(map[string]any)
	if len(params.Fields) > 0 {
		for _, name := range params.Fields {
			if v, ok := req.Context.Variables[name]; ok {
				fields[name] = v
			}
		}
	} else {
		for k, v := range req.Context.Variables {
			if k != VarLeadID {
				fields[k] = v
			}
		}
	}

	if err := l.leads.UpdateLead(ctx, id, fields); err != nil {
		return domain.ActionOutcome{Variables: map[string]any{VarLeadUpdated: false}}, fmt.Errorf("update lead %s: %w", id, err)
	}
	return domain.ActionOutcome{Variables: map[string]any{VarLeadUpdated: true}}, nil
}

// Names lists the built-in action names.
func Names() []string {
	names := []string{GenerateAIResponse, UpdateLead, CalculateScore}
	sort.Strings(names)
	return names
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case uint64:
		return float64(n), true
	}
	return 0, false
}
