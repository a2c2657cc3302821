package compiler_test

import (
	"encoding/json"
	"testing"

	"github.com/aretw0/leadflow/internal/compiler"
	"github.com/aretw0/leadflow/internal/testutils"
	"github.com/aretw0/leadflow/pkg/domain"
	"github.com/aretw0/leadflow/pkg/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse_LegacyPortugueseJSON(t *testing.T) {
	flow, err := compiler.NewParser().Parse([]byte(testutils.HealthBasicJSON))
	require.NoError(t, err)

	assert.Equal(t, testutils.HealthBasic(), flow)
}

func TestParse_EnglishYAML(t *testing.T) {
	doc := `
id: greeting
version: 2
start: boas_vindas
steps:
  - id: boas_vindas
    type: message
    text: "Olá!"
    next: pergunta
  - id: pergunta
    type: choice
    prompt: "A ou B?"
    options:
      - {label: A, value: a, next: final}
      - {text: B, value: b, next: final}
  - id: final
    type: message
    text: "Obrigado!"
    next: null
`
	flow, err := compiler.NewParser().Parse([]byte(doc))
	require.NoError(t, err)

	expected := testutils.Greeting()
	expected.ID = "greeting"
	expected.Version = "2"
	assert.Equal(t, expected, flow)
}

func TestParse_ParamsKeptVerbatim(t *testing.T) {
	doc := `{
		"start": "score",
		"steps": [
			{"id": "score", "type": "execute", "action": "calcular_score",
			 "params": {"rules": {"perfil": 20}, "texto": "não renomear"}}
		]
	}`
	flow, err := compiler.NewParser().Parse([]byte(doc))
	require.NoError(t, err)

	step := flow.Steps[0].(*domain.ExecuteStep)
	assert.Empty(t, step.Next)
	assert.Equal(t, "não renomear", step.Params["texto"])
	assert.Equal(t, map[string]any{"perfil": 20}, step.Params["rules"])
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name    string
		doc     string
		wantKey string
	}{
		{"unknown type", `{"start":"a","steps":[{"id":"a","type":"video"}]}`, "steps[0].type"},
		{"missing type", `{"start":"a","steps":[{"id":"a","text":"x"}]}`, "steps[0].type"},
		{"steps not a list", `{"start":"a","steps":{"id":"a"}}`, "steps"},
		{"step not an object", `{"start":"a","steps":["a"]}`, "steps[0]"},
		{"option not an object", `{"start":"a","steps":[{"id":"a","type":"choice","options":["x"]}]}`, "steps[0].options[0]"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := compiler.NewParser().Parse([]byte(tt.doc))
			require.Error(t, err)

			var keys []string
			for _, e := range schema.ValidationErrors(err) {
				keys = append(keys, e.(*schema.ValidationError).Key)
			}
			assert.Contains(t, keys, tt.wantKey)
		})
	}
}

func TestParse_Malformed(t *testing.T) {
	p := compiler.NewParser()

	_, err := p.Parse(nil)
	assert.Error(t, err)

	_, err = p.Parse([]byte("{not json"))
	assert.Error(t, err)

	_, err = p.Parse([]byte("- just\n- a list\n"))
	assert.Error(t, err)
}

func TestMarshal_RoundTrip(t *testing.T) {
	original := testutils.HealthBasic()
	data, err := compiler.Marshal(original)
	require.NoError(t, err)

	var raw map[string]any
	require.NoError(t, json.Unmarshal(data, &raw))
	assert.Equal(t, "inicio", raw["start"])
	steps := raw["steps"].([]any)
	last := steps[len(steps)-1].(map[string]any)
	assert.Nil(t, last["next"], "terminal links are encoded as null")

	parsed, err := compiler.NewParser().Parse(data)
	require.NoError(t, err)
	assert.Equal(t, original, parsed)
}

func TestParseFile(t *testing.T) {
	dir := t.TempDir()
	path := testutils.WriteFile(t, dir, "saude.json", testutils.HealthBasicJSON)

	flow, err := compiler.NewParser().ParseFile(path)
	require.NoError(t, err)
	assert.Equal(t, "inicio", flow.Start)

	_, err = compiler.NewParser().ParseFile(dir + "/missing.json")
	assert.Error(t, err)
}
