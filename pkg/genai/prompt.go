package genai

import (
	"fmt"
	"sort"
	"strings"

	"github.com/aretw0/leadflow/pkg/ports"
	"github.com/aretw0/leadflow/pkg/state"
)

const baseInstructions = `INSTRUÇÕES IMPORTANTES:
- Seja empático, claro e direto
- Não use jargão técnico desnecessário
- Faça perguntas para qualificar o lead
- Ofereça ajuda genuína, não apenas venda`

var verticalInstructions = map[string]string{
	"saude": `- Nunca mencione preços exatos (é proibido por lei)
- Nunca peça CPF, dados médicos ou condições pré-existentes
- Nunca prometa "zero carência" ou "cobertura imediata" (ilegal)
- Foque em entender: perfil (individual/família), faixa etária, preferência de coparticipação
- Seja humano e acolhedor ao falar de saúde`,
	"imoveis": `- Foque em entender: tipo de imóvel, localização, orçamento, finalidade (morar/investir)
- Destaque diferenciais da propriedade
- Seja consultivo, não apenas vendedor`,
	"automoveis": `- Foque em entender: tipo de veículo, orçamento, uso (pessoal/comercial)
- Destaque benefícios e diferenciais
- Seja consultivo e transparente`,
	"financeiro": `- Foque em entender necessidades financeiras
- Seja transparente sobre condições
- Nunca prometa retornos garantidos`,
}

// SystemPrompt builds the instructions for a vertical.
// business, when set, names the company the assistant speaks for.
func SystemPrompt(vertical, business string) string {
	intro := "Você é um assistente virtual profissional e acolhedor"
	if business != "" {
		intro += " da " + business
	}
	return intro + ".\n\n" + baseInstructions + "\n" + verticalInstructions[NormalizeVertical(vertical)]
}

// UserPrompt renders the conversation so far and the reply constraints.
func UserPrompt(req ports.GenerationRequest, maxChars int) string {
	var b strings.Builder

	b.WriteString("DADOS DO LEAD:\n")
	answers := qualificationLines(req)
	if len(answers) == 0 {
		b.WriteString("Nenhuma resposta coletada ainda.\n")
	}
	for _, line := range answers {
		b.WriteString(line + "\n")
	}

	b.WriteString("\nHISTÓRICO DA CONVERSA:\n")
	if len(req.History) == 0 {
		b.WriteString("Esta é a primeira mensagem do lead.\n")
	}
	for _, h := range req.History {
		b.WriteString(h + "\n")
	}

	if req.Message != "" {
		b.WriteString("\nNOVA MENSAGEM DO LEAD:\n" + req.Message + "\n")
	}
	fmt.Fprintf(&b, "\nRESPOSTA (máximo %d caracteres, tom acolhedor e profissional):", maxChars)
	return b.String()
}

// qualificationLines lists the answers collected so far, preferring option labels.
func qualificationLines(req ports.GenerationRequest) []string {
	keys := make([]string, 0, len(req.Context.Responses))
	for k := range req.Context.Responses {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	lines := make([]string, 0, len(keys))
	for _, k := range keys {
		value := req.Context.Responses[k]
		if label, ok := req.Context.Variables[k+"_text"]; ok {
			value = label
		}
		str, ok := state.Stringify(value)
		if !ok {
			continue
		}
		lines = append(lines, fmt.Sprintf("- %s: %s", k, str))
	}
	return lines
}
