package graph_test

import (
	"strings"
	"testing"

	"github.com/aretw0/leadflow/internal/presentation/graph"
	"github.com/aretw0/leadflow/internal/testutils"
	"github.com/aretw0/leadflow/pkg/domain"
)

func TestGenerateMermaid(t *testing.T) {
	tests := []struct {
		name     string
		flow     *domain.FlowDefinition
		overlay  *graph.Overlay
		contains []string
		excludes []string
	}{
		{
			name: "Step Shapes",
			flow: testutils.AutoChain("registrar"),
			contains: []string{
				`intro(("intro"))`,
				`acao[["acao <br/> registrar"]]`,
				`escolha{"escolha"}`,
				`fim["fim"]`,
			},
		},
		{
			name: "Choice Edges Use Option Text",
			flow: testutils.Greeting(),
			contains: []string{
				`boas_vindas --> pergunta`,
				`pergunta -- "A" --> final`,
				`pergunta -- "B" --> final`,
			},
		},
		{
			name: "Terminal Steps Reach End",
			flow: testutils.Minimal(),
			contains: []string{
				`inicio --> end_`,
				`end_(("fim"))`,
			},
		},
		{
			name: "No End Node For Loops",
			flow: testutils.Circular(),
			excludes: []string{
				`end_`,
			},
		},
		{
			name: "ID Sanitization And Escaping",
			flow: &domain.FlowDefinition{Start: "a.b", Steps: []domain.Step{
				&domain.ChoiceStep{ID: "a.b", Prompt: "?", Options: []domain.Option{
					{Text: `Diga "sim"`, Value: "sim", Next: "fim-1"},
				}},
				&domain.MessageStep{ID: "fim-1", Text: "ok"},
			}},
			contains: []string{
				`a_b(("a.b"))`,
				`a_b -- "Diga 'sim'" --> fim_1`,
			},
		},
		{
			name: "Overlay",
			flow: testutils.Greeting(),
			overlay: graph.OverlayFromState(domain.ConversationState{
				CurrentStepID: "pergunta",
				History: []domain.HistoryEntry{
					{StepID: "boas_vindas"},
					{StepID: "boas_vindas"},
					{StepID: "pergunta"},
				},
			}),
			contains: []string{
				"class boas_vindas visited;",
				"class pergunta current;",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := graph.GenerateMermaid(tt.flow, tt.overlay)
			if !strings.HasPrefix(got, "graph TD\n") {
				t.Errorf("GenerateMermaid() missing header:\n%v", got)
			}
			for _, want := range tt.contains {
				if !strings.Contains(got, want) {
					t.Errorf("GenerateMermaid() = \n%v\nWant substring: %v", got, want)
				}
			}
			for _, unwanted := range tt.excludes {
				if strings.Contains(got, unwanted) {
					t.Errorf("GenerateMermaid() = \n%v\nUnexpected substring: %v", got, unwanted)
				}
			}
			if tt.overlay != nil && strings.Count(got, "class boas_vindas visited;") != 1 {
				t.Errorf("visited steps must be deduplicated:\n%v", got)
			}
		})
	}
}
