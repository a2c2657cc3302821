package testutils

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/aretw0/leadflow/pkg/domain"
	"github.com/stretchr/testify/require"
)

// HealthBasicJSON is the health-plan qualification flow in the legacy Portuguese format.
const HealthBasicJSON = `{
  "versao": "1.0.0",
  "inicio": "inicio",
  "passos": [
    {"id": "inicio", "tipo": "mensagem", "mensagem": "Olá! Sou assistente virtual. Vou te ajudar a encontrar o plano ideal.", "proxima": "perfil"},
    {"id": "perfil", "tipo": "escolha", "pergunta": "Qual seu perfil?", "opcoes": [
      {"texto": "Individual", "valor": "individual", "proxima": "idade"},
      {"texto": "Casal", "valor": "casal", "proxima": "idade"},
      {"texto": "Família", "valor": "familia", "proxima": "idade"},
      {"texto": "Empresa", "valor": "empresa", "proxima": "idade"}
    ]},
    {"id": "idade", "tipo": "escolha", "pergunta": "Qual sua faixa etária?", "opcoes": [
      {"texto": "Até 30 anos", "valor": "ate_30", "proxima": "coparticipacao"},
      {"texto": "31 a 45 anos", "valor": "31-45", "proxima": "coparticipacao"},
      {"texto": "46 a 60 anos", "valor": "46-60", "proxima": "coparticipacao"},
      {"texto": "Acima de 60", "valor": "acima_60", "proxima": "coparticipacao"}
    ]},
    {"id": "coparticipacao", "tipo": "escolha", "pergunta": "Prefere plano com coparticipação?", "opcoes": [
      {"texto": "Sim (mensalidade menor, paga consultas)", "valor": "sim", "proxima": "gerar_resposta"},
      {"texto": "Não (mensalidade maior, sem custos extras)", "valor": "nao", "proxima": "gerar_resposta"}
    ]},
    {"id": "gerar_resposta", "tipo": "executar", "acao": "gerar_resposta_ia", "parametros": {}, "proxima": null}
  ]
}`

// HealthBasic is HealthBasicJSON as a domain value.
func HealthBasic() *domain.FlowDefinition {
	return &domain.FlowDefinition{
		Version: "1.0.0",
		Start:   "inicio",
		Steps: []domain.Step{
			&domain.MessageStep{ID: "inicio", Text: "Olá! Sou assistente virtual. Vou te ajudar a encontrar o plano ideal.", Next: "perfil"},
			&domain.ChoiceStep{ID: "perfil", Prompt: "Qual seu perfil?", Options: []domain.Option{
				{Text: "Individual", Value: "individual", Next: "idade"},
				{Text: "Casal", Value: "casal", Next: "idade"},
				{Text: "Família", Value: "familia", Next: "idade"},
				{Text: "Empresa", Value: "empresa", Next: "idade"},
			}},
			&domain.ChoiceStep{ID: "idade", Prompt: "Qual sua faixa etária?", Options: []domain.Option{
				{Text: "Até 30 anos", Value: "ate_30", Next: "coparticipacao"},
				{Text: "31 a 45 anos", Value: "31-45", Next: "coparticipacao"},
				{Text: "46 a 60 anos", Value: "46-60", Next: "coparticipacao"},
				{Text: "Acima de 60", Value: "acima_60", Next: "coparticipacao"},
			}},
			&domain.ChoiceStep{ID: "coparticipacao", Prompt: "Prefere plano com coparticipação?", Options: []domain.Option{
				{Text: "Sim (mensalidade menor, paga consultas)", Value: "sim", Next: "gerar_resposta"},
				{Text: "Não (mensalidade maior, sem custos extras)", Value: "nao", Next: "gerar_resposta"},
			}},
			&domain.ExecuteStep{ID: "gerar_resposta", Action: "gerar_resposta_ia", Params: map[string]any{}},
		},
	}
}

// Greeting is the two-option flow: boas_vindas -> pergunta -> final.
func Greeting() *domain.FlowDefinition {
	return &domain.FlowDefinition{
		Version: "1.0.0",
		Start:   "boas_vindas",
		Steps: []domain.Step{
			&domain.MessageStep{ID: "boas_vindas", Text: "Olá!", Next: "pergunta"},
			&domain.ChoiceStep{ID: "pergunta", Prompt: "A ou B?", Options: []domain.Option{
				{Text: "A", Value: "a", Next: "final"},
				{Text: "B", Value: "b", Next: "final"},
			}},
			&domain.MessageStep{ID: "final", Text: "Obrigado!"},
		},
	}
}

// AutoChain runs message -> execute(action) -> choice -> terminal message.
func AutoChain(action string) *domain.FlowDefinition {
	return &domain.FlowDefinition{
		Version: "1.0.0",
		Start:   "intro",
		Steps: []domain.Step{
			&domain.MessageStep{ID: "intro", Text: "Bem-vindo!", Next: "acao"},
			&domain.ExecuteStep{ID: "acao", Action: action, Next: "escolha"},
			&domain.ChoiceStep{ID: "escolha", Prompt: "Continuar?", Options: []domain.Option{
				{Text: "Sim", Value: "sim", Next: "fim"},
				{Text: "Não", Value: "nao", Next: "fim"},
			}},
			&domain.MessageStep{ID: "fim", Text: "Até logo, {{escolha_text}}."},
		},
	}
}

// Circular loops between two message steps without consuming input.
func Circular() *domain.FlowDefinition {
	return &domain.FlowDefinition{
		Version: "1.0.0",
		Start:   "step1",
		Steps: []domain.Step{
			&domain.MessageStep{ID: "step1", Text: "Passo 1", Next: "step2"},
			&domain.MessageStep{ID: "step2", Text: "Passo 2", Next: "step1"},
		},
	}
}

// MissingReference links to a step that does not exist.
func MissingReference() *domain.FlowDefinition {
	return &domain.FlowDefinition{
		Version: "1.0.0",
		Start:   "step1",
		Steps: []domain.Step{
			&domain.MessageStep{ID: "step1", Text: "Passo 1", Next: "nonexistent-step"},
		},
	}
}

// Minimal is a single terminal message.
func Minimal() *domain.FlowDefinition {
	return &domain.FlowDefinition{
		Version: "1.0.0",
		Start:   "inicio",
		Steps: []domain.Step{
			&domain.MessageStep{ID: "inicio", Text: "Olá!"},
		},
	}
}

// WriteFile writes content under dir and returns its path.
// It fails the test immediately on error.
func WriteFile(t *testing.T, dir, name, content string) string {
	t.Helper()

	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755), "Failed to create fixture dir")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644), "Failed to write fixture")
	return path
}
