package schema

import (
	"encoding/json"
	"fmt"
)

// MarshalJSON renders the schema as field names mapped to type expressions.
func (s Schema) MarshalJSON() ([]byte, error) {
	if s == nil {
		return []byte("null"), nil
	}

	raw := make(map[string]string, len(s))
	for key, typ := range s {
		if typ == nil {
			return nil, fmt.Errorf("field %s: type is nil", key)
		}
		raw[key] = typ.Name()
	}
	return json.Marshal(raw)
}

// UnmarshalJSON parses field names mapped to type expressions.
func (s *Schema) UnmarshalJSON(data []byte) error {
	if s == nil {
		return fmt.Errorf("schema: UnmarshalJSON on nil pointer")
	}
	if string(data) == "null" {
		*s = nil
		return nil
	}

	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	exprs := make(map[string]string, len(raw))
	for key, value := range raw {
		expr, ok := value.(string)
		if !ok {
			return fmt.Errorf("field %s: expected type expression, got %T", key, value)
		}
		exprs[key] = expr
	}

	parsed, err := ParseTypeMap(exprs)
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}
