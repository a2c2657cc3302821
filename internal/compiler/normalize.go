package compiler

import (
	"fmt"

	"github.com/aretw0/leadflow/pkg/schema"
)

var flowKeys = map[string]string{
	"versao": "version",
	"inicio": "start",
	"passos": "steps",
}

var stepKeys = map[string]string{
	"tipo":       "type",
	"mensagem":   "text",
	"message":    "text",
	"pergunta":   "prompt",
	"question":   "prompt",
	"opcoes":     "options",
	"acao":       "action",
	"parametros": "params",
	"proxima":    "next",
}

var optionKeys = map[string]string{
	"texto":   "text",
	"label":   "text",
	"valor":   "value",
	"proxima": "next",
}

var stepTypes = map[string]string{
	"mensagem": "message",
	"escolha":  "choice",
	"executar": "execute",
}

// normalizeFlow rewrites legacy and alias keys to the canonical ones.
// Only the flow, step and option levels are touched; params are passed through verbatim.
func normalizeFlow(raw map[string]any) (map[string]any, []error) {
	var errs []error
	flow := renameKeys(raw, flowKeys)

	rawSteps, ok := flow["steps"]
	if !ok || rawSteps == nil {
		return flow, errs
	}
	list, ok := rawSteps.([]any)
	if !ok {
		errs = append(errs, &schema.ValidationError{Key: "steps", Reason: "expected a list", Value: rawSteps})
		delete(flow, "steps")
		return flow, errs
	}

	steps := make([]any, 0, len(list))
	for i, item := range list {
		m, ok := item.(map[string]any)
		if !ok {
			errs = append(errs, &schema.ValidationError{Key: fmt.Sprintf("steps[%d]", i), Reason: "expected an object", Value: item})
			continue
		}
		step := renameKeys(m, stepKeys)
		if t, ok := step["type"].(string); ok {
			if canonical, legacy := stepTypes[t]; legacy {
				step["type"] = canonical
			}
		}

		if rawOpts, ok := step["options"]; ok && rawOpts != nil {
			optList, ok := rawOpts.([]any)
			if !ok {
				errs = append(errs, &schema.ValidationError{Key: fmt.Sprintf("steps[%d].options", i), Reason: "expected a list", Value: rawOpts})
				delete(step, "options")
			} else {
				opts := make([]any, 0, len(optList))
				for j, o := range optList {
					om, ok := o.(map[string]any)
					if !ok {
						errs = append(errs, &schema.ValidationError{Key: fmt.Sprintf("steps[%d].options[%d]", i, j), Reason: "expected an object", Value: o})
						continue
					}
					opts = append(opts, renameKeys(om, optionKeys))
				}
				step["options"] = opts
			}
		}
		steps = append(steps, step)
	}
	flow["steps"] = steps
	return flow, errs
}

// renameKeys copies m, mapping aliases to canonical keys. Canonical keys win over aliases.
func renameKeys(m map[string]any, aliases map[string]string) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		if _, alias := aliases[k]; !alias {
			out[k] = v
		}
	}
	for k, v := range m {
		canonical, alias := aliases[k]
		if !alias {
			continue
		}
		if _, exists := out[canonical]; !exists {
			out[canonical] = v
		}
	}
	return out
}
