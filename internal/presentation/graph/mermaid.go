package graph

import (
	"fmt"
	"strings"

	"github.com/aretw0/leadflow/pkg/domain"
)

// Overlay contains conversation data to visualize on the graph.
type Overlay struct {
	VisitedSteps []string
	CurrentStep  string
}

// OverlayFromState marks the steps recorded in the conversation history.
func OverlayFromState(s domain.ConversationState) *Overlay {
	o := &Overlay{CurrentStep: s.CurrentStepID}
	for _, h := range s.History {
		o.VisitedSteps = append(o.VisitedSteps, h.StepID)
	}
	return o
}

// GenerateMermaid produces a Mermaid flowchart for a flow definition.
// Shapes follow the step type:
// - Start step: ((Circle))
// - Execute: [[Subroutine]]
// - Choice: {Rhombus}
// - Message: [Rectangle]
// Choice edges are labelled with the option text. Terminal steps link to a
// shared end node.
func GenerateMermaid(flow *domain.FlowDefinition, overlay *Overlay) string {
	var sb strings.Builder
	sb.WriteString("graph TD\n")

	terminal := false
	for _, step := range flow.Steps {
		id := step.StepID()
		safeID := sanitizeMermaidID(id)

		opener, closer := "[", "]"
		label := id
		switch st := step.(type) {
		case *domain.ExecuteStep:
			opener, closer = "[[", "]]"
			label = fmt.Sprintf("%s <br/> %s", id, st.Action)
		case *domain.ChoiceStep:
			opener, closer = "{", "}"
		}
		if id == flow.Start {
			opener, closer = "((", "))"
		}
		fmt.Fprintf(&sb, "    %s%s\"%s\"%s\n", safeID, opener, escape(label), closer)

		switch st := step.(type) {
		case *domain.MessageStep:
			terminal = writeEdge(&sb, safeID, st.Next, "") || terminal
		case *domain.ExecuteStep:
			terminal = writeEdge(&sb, safeID, st.Next, "") || terminal
		case *domain.ChoiceStep:
			for _, opt := range st.Options {
				terminal = writeEdge(&sb, safeID, opt.Next, opt.Text) || terminal
			}
		}
	}
	if terminal {
		sb.WriteString("    end_((\"fim\"))\n")
	}

	if overlay != nil {
		sb.WriteString("\n    %% Overlay Styles\n")
		sb.WriteString("    classDef visited fill:#e1f5fe,stroke:#01579b,stroke-width:2px,color:#000;\n")
		sb.WriteString("    classDef current fill:#ffeb3b,stroke:#fbc02d,stroke-width:4px,color:#000;\n")

		seen := make(map[string]bool)
		for _, id := range overlay.VisitedSteps {
			safeID := sanitizeMermaidID(id)
			if safeID != "" && !seen[safeID] {
				seen[safeID] = true
				fmt.Fprintf(&sb, "    class %s visited;\n", safeID)
			}
		}
		if overlay.CurrentStep != "" {
			fmt.Fprintf(&sb, "    class %s current;\n", sanitizeMermaidID(overlay.CurrentStep))
		}
	}

	return sb.String()
}

// writeEdge reports whether the edge points at the end node.
func writeEdge(sb *strings.Builder, from, to, label string) bool {
	target := sanitizeMermaidID(to)
	if to == "" {
		target = "end_"
	}
	if label == "" {
		fmt.Fprintf(sb, "    %s --> %s\n", from, target)
	} else {
		fmt.Fprintf(sb, "    %s -- \"%s\" --> %s\n", from, escape(label), target)
	}
	return to == ""
}

func escape(s string) string {
	return strings.ReplaceAll(s, "\"", "'")
}

func sanitizeMermaidID(id string) string {
	s := strings.ReplaceAll(id, ".", "_")
	s = strings.ReplaceAll(s, "-", "_")
	s = strings.ReplaceAll(s, "/", "_")
	s = strings.ReplaceAll(s, "\\", "_")
	s = strings.ReplaceAll(s, " ", "_")
	return s
}
