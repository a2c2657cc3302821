package schema

import (
	"errors"
	"strings"
	"testing"
)

func TestValidate_Success(t *testing.T) {
	params := Schema{
		"vertical": String(),
		"rules":    Map(Float()),
		"fields":   Slice(String()),
	}

	data := map[string]any{
		"vertical": "saude",
		"rules":    map[string]any{"perfil": 20},
		"fields":   []any{"nome"},
		"extra":    true,
	}

	if err := Validate(params, data); err != nil {
		t.Errorf("Validate() error = %v, want nil", err)
	}
}

func TestValidate_OptionalMissing(t *testing.T) {
	params := Schema{
		"vertical": Optional(String()),
		"rules":    Optional(Map(Float())),
	}

	if err := Validate(params, nil); err != nil {
		t.Errorf("Validate() with optional fields missing = %v, want nil", err)
	}

	err := Validate(params, map[string]any{"rules": "x"})
	if err == nil {
		t.Fatal("Validate() should reject present optional fields of the wrong type")
	}
	errs := ValidationErrors(err)
	if len(errs) != 1 {
		t.Fatalf("got %d errors, want 1", len(errs))
	}
	var vErr *ValidationError
	if !errors.As(errs[0], &vErr) || vErr.Key != "rules" {
		t.Errorf("unexpected error %v", errs[0])
	}
}

func TestValidate_MultipleErrorsAreOrdered(t *testing.T) {
	params := Schema{
		"zeta":  String(),
		"alpha": Int(),
		"mid":   Bool(),
	}

	err := Validate(params, map[string]any{"alpha": "one", "mid": "yes"})
	errs := ValidationErrors(err)
	if len(errs) != 3 {
		t.Fatalf("Validate() = %d errors, want 3", len(errs))
	}

	var keys []string
	for _, e := range errs {
		keys = append(keys, e.(*ValidationError).Key)
	}
	if strings.Join(keys, ",") != "alpha,mid,zeta" {
		t.Errorf("keys = %v, want alphabetical", keys)
	}
	if errs[2].(*ValidationError).Reason != "required" {
		t.Errorf("missing field reason = %q", errs[2].(*ValidationError).Reason)
	}
}

func TestValidate_EmptySchema(t *testing.T) {
	if err := Validate(nil, map[string]any{"x": 1}); err != nil {
		t.Errorf("Validate() with nil schema should return nil, got %v", err)
	}
	if err := Validate(Schema{}, nil); err != nil {
		t.Errorf("Validate() with empty schema should return nil, got %v", err)
	}
}

func TestErrorStrings(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{&ValidationError{Key: "vertical", Reason: "required"}, `field "vertical": required`},
		{&ValidationError{Key: "rules", Reason: "expected map", Value: "x"}, `field "rules": expected map (got string)`},
	}
	for _, tt := range tests {
		if got := tt.err.Error(); got != tt.want {
			t.Errorf("Error() = %q, want %q", got, tt.want)
		}
	}

	aggr := &AggregateError{Errors: []error{tests[0].err, tests[1].err}}
	if !strings.HasPrefix(aggr.Error(), "2 validation errors:") {
		t.Errorf("AggregateError.Error() = %q", aggr.Error())
	}
	single := &AggregateError{Errors: []error{tests[0].err}}
	if single.Error() != tests[0].want {
		t.Errorf("single AggregateError.Error() = %q", single.Error())
	}
}

func TestValidationErrors_Unwrap(t *testing.T) {
	inner := &ValidationError{Key: "fields", Reason: "required"}
	aggr := &AggregateError{Errors: []error{inner}}

	var target *ValidationError
	if !errors.As(aggr, &target) || target != inner {
		t.Error("errors.As should reach the inner ValidationError")
	}
	if ValidationErrors(inner) != nil {
		t.Error("ValidationErrors() on a plain error should be nil")
	}
}
