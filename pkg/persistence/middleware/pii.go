package middleware

import (
	"context"
	"fmt"
	"regexp"

	"github.com/aretw0/leadflow/pkg/domain"
	"github.com/aretw0/leadflow/pkg/ports"
)

// Mask replaces personal values before they are persisted.
const Mask = "***"

// DefaultPIIPatterns match Brazilian personal data commonly collected by flows.
var DefaultPIIPatterns = []string{`(?i)^cpf`, `(?i)^(telefone|celular|phone)`, `(?i)e-?mail`}

type piiMiddleware struct {
	next     ports.ConversationStore
	patterns []*regexp.Regexp
}

// NewPIIMiddleware creates a middleware that masks the variables and
// responses whose keys match any of the patterns.
func NewPIIMiddleware(patternStrings []string) (Middleware, error) {
	patterns := make([]*regexp.Regexp, len(patternStrings))
	for i, p := range patternStrings {
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("invalid PII pattern %q: %w", p, err)
		}
		patterns[i] = re
	}
	return func(next ports.ConversationStore) ports.ConversationStore {
		return &piiMiddleware{next: next, patterns: patterns}
	}, nil
}

func (m *piiMiddleware) Save(ctx context.Context, conv *domain.Conversation) error {
	// The engine keeps using the caller's copy, so mask a clone.
	cloned := *conv
	cloned.State = conv.State.Clone()
	cloned.State.Variables = deepCopyMap(conv.State.Variables)
	maskMap(cloned.State.Variables, m.patterns)
	maskMap(cloned.State.Responses, m.patterns)
	for i, h := range cloned.State.History {
		if h.Response != nil && m.matches(h.StepID) {
			cloned.State.History[i].Response = Mask
		}
	}
	return m.next.Save(ctx, &cloned)
}

func (m *piiMiddleware) Load(ctx context.Context, id string) (*domain.Conversation, error) {
	return m.next.Load(ctx, id)
}

func (m *piiMiddleware) Delete(ctx context.Context, id string) error {
	return m.next.Delete(ctx, id)
}

func (m *piiMiddleware) List(ctx context.Context) ([]string, error) {
	return m.next.List(ctx)
}

func (m *piiMiddleware) matches(key string) bool {
	for _, p := range m.patterns {
		if p.MatchString(key) {
			return true
		}
	}
	return false
}

func deepCopyMap(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		if subMap, ok := v.(map[string]any); ok {
			out[k] = deepCopyMap(subMap)
		} else {
			out[k] = v
		}
	}
	return out
}

func maskMap(m map[string]any, patterns []*regexp.Regexp) {
	for k, v := range m {
		masked := false
		for _, p := range patterns {
			if p.MatchString(k) {
				m[k] = Mask
				masked = true
				break
			}
		}
		if subMap, ok := v.(map[string]any); ok && !masked {
			maskMap(subMap, patterns)
		}
	}
}
