package genai

import "strings"

// DefaultVertical is used when a request names no known vertical.
const DefaultVertical = "saude"

var fallbackTemplates = map[string]string{
	"saude":      "Olá! Obrigado por entrar em contato. Vou te ajudar a encontrar um plano de saúde adequado. Prefere um plano individual, casal, família ou empresarial? Também me diga a faixa etária do titular e se prefere com ou sem coparticipação.",
	"imoveis":    "Olá! Obrigado pelo contato. Para te sugerir o melhor imóvel, me conta tipo (casa/apto/comercial), bairro de interesse e faixa de orçamento aproximada.",
	"automoveis": "Olá! Vamos encontrar o veículo ideal. Qual tipo você procura (hatch, sedan, SUV) e qual a faixa de orçamento aproximada?",
	"financeiro": "Olá! Posso te ajudar com serviços financeiros. Qual seu objetivo principal (planejar finanças, investir, crédito) e valor aproximado que pretende trabalhar?",
}

// NormalizeVertical lowercases v and maps unknown verticals to DefaultVertical.
func NormalizeVertical(v string) string {
	v = strings.ToLower(strings.TrimSpace(v))
	if _, ok := fallbackTemplates[v]; ok {
		return v
	}
	return DefaultVertical
}

// FallbackResponse returns the canned reply for a vertical.
func FallbackResponse(vertical string) string {
	return fallbackTemplates[NormalizeVertical(vertical)]
}
