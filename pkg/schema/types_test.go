package schema

import (
	"encoding/json"
	"fmt"
	"testing"
)

func TestScalarTypes(t *testing.T) {
	tests := []struct {
		typ     Type
		value   any
		wantErr bool
	}{
		{String(), "saude", false},
		{String(), "", false},
		{String(), 42, true},
		{String(), nil, true},

		{Int(), 42, false},
		{Int(), int64(42), false},
		{Int(), uint8(3), false},
		{Int(), float64(42), false},
		{Int(), float64(42.5), true},
		{Int(), json.Number("7"), false},
		{Int(), json.Number("7.5"), true},
		{Int(), "42", true},

		{Float(), 3.14, false},
		{Float(), 42, false},
		{Float(), json.Number("1.5"), false},
		{Float(), "3.14", true},
		{Float(), nil, true},

		{Bool(), true, false},
		{Bool(), 1, true},

		{Any(), "x", false},
		{Any(), map[string]any{}, false},
		{Any(), nil, true},
	}

	for _, tt := range tests {
		err := tt.typ.Validate(tt.value)
		if (err != nil) != tt.wantErr {
			t.Errorf("%s.Validate(%#v) error = %v, wantErr %v", tt.typ.Name(), tt.value, err, tt.wantErr)
		}
	}
}

func TestSliceType(t *testing.T) {
	fields := Slice(String())

	tests := []struct {
		value   any
		wantErr bool
		desc    string
	}{
		{[]string{"nome", "email"}, false, "string slice"},
		{[]any{"nome"}, false, "decoded json array"},
		{[]any{"nome", 3}, true, "mixed element"},
		{"nome", true, "scalar"},
	}

	for _, tt := range tests {
		err := fields.Validate(tt.value)
		if (err != nil) != tt.wantErr {
			t.Errorf("%s: Validate(%v) error = %v, wantErr %v", tt.desc, tt.value, err, tt.wantErr)
		}
	}
}

func TestMapType(t *testing.T) {
	rules := Map(Float())

	if rules.Name() != "{float}" {
		t.Errorf("Name() = %q, want {float}", rules.Name())
	}

	tests := []struct {
		value   any
		wantErr bool
		desc    string
	}{
		{map[string]any{"perfil": 20, "idade": 15.5}, false, "numeric points"},
		{map[string]float64{"perfil": 20}, false, "typed map"},
		{map[string]any{}, false, "empty"},
		{map[string]any{"perfil": "vinte"}, true, "string points"},
		{map[int]any{1: 2}, true, "non-string keys"},
		{[]any{1}, true, "slice"},
	}

	for _, tt := range tests {
		err := rules.Validate(tt.value)
		if (err != nil) != tt.wantErr {
			t.Errorf("%s: Validate(%v) error = %v, wantErr %v", tt.desc, tt.value, err, tt.wantErr)
		}
	}
}

func TestOptionalType(t *testing.T) {
	opt := Optional(String())
	if !IsOptional(opt) {
		t.Fatal("Optional() should be reported as optional")
	}
	if IsOptional(String()) {
		t.Error("String() should not be optional")
	}
	if opt.Name() != "string?" {
		t.Errorf("Name() = %q, want string?", opt.Name())
	}
	if Optional(opt) != opt {
		t.Error("Optional() should not double wrap")
	}
	if err := opt.Validate(12); err == nil {
		t.Error("present values must still match the inner type")
	}
}

func TestCustomType(t *testing.T) {
	vertical := Custom("vertical", func(v any) error {
		s, ok := v.(string)
		if !ok {
			return fmt.Errorf("expected string")
		}
		switch s {
		case "saude", "imoveis", "automoveis", "financeiro":
			return nil
		}
		return fmt.Errorf("unknown vertical %q", s)
	})

	if vertical.Name() != "vertical" {
		t.Errorf("Name() = %q, want vertical", vertical.Name())
	}
	if err := vertical.Validate("imoveis"); err != nil {
		t.Errorf("Validate(imoveis) = %v", err)
	}
	if err := vertical.Validate("pets"); err == nil {
		t.Error("Validate(pets) should fail")
	}
}

func TestParseType(t *testing.T) {
	tests := []struct {
		input    string
		wantErr  bool
		wantName string
	}{
		{"string", false, "string"},
		{" int ", false, "int"},
		{"any", false, "any"},
		{"[string]", false, "[string]"},
		{"{float}", false, "{float}"},
		{"{[int]}", false, "{[int]}"},
		{"string?", false, "string?"},
		{"{float}?", false, "{float}?"},
		{"invalid", true, ""},
		{"[invalid]", true, ""},
		{"{}", true, ""},
	}

	for _, tt := range tests {
		typ, err := ParseType(tt.input)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseType(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			continue
		}
		if !tt.wantErr && typ.Name() != tt.wantName {
			t.Errorf("ParseType(%q) Name() = %q, want %q", tt.input, typ.Name(), tt.wantName)
		}
	}
}

func TestSchemaJSON(t *testing.T) {
	original := Schema{
		"vertical": Optional(String()),
		"rules":    Optional(Map(Float())),
		"fields":   Slice(String()),
	}

	data, err := json.Marshal(original)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}

	var decoded Schema
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}

	for key, typ := range original {
		if decoded[key] == nil || decoded[key].Name() != typ.Name() {
			t.Errorf("field %s: got %v, want %s", key, decoded[key], typ.Name())
		}
	}
	if !IsOptional(decoded["rules"]) {
		t.Error("optional marker lost in round trip")
	}
}
