package schema

import "sort"

// Schema is a map of param names to their expected types.
// Example: {"vertical": Optional(String()), "rules": Optional(Map(Float()))}
type Schema map[string]Type

// Validate checks if data conforms to the schema.
// Fields are checked in name order so errors are reported deterministically.
// Keys of data that the schema does not mention are ignored.
func Validate(schema Schema, data map[string]any) error {
	if len(schema) == 0 {
		return nil
	}

	names := make([]string, 0, len(schema))
	for name := range schema {
		names = append(names, name)
	}
	sort.Strings(names)

	var errs []error
	for _, fieldName := range names {
		fieldType := schema[fieldName]
		value, exists := data[fieldName]
		if !exists {
			if IsOptional(fieldType) {
				continue
			}
			errs = append(errs, &ValidationError{
				Key:    fieldName,
				Reason: "required",
			})
			continue
		}

		if err := fieldType.Validate(value); err != nil {
			errs = append(errs, &ValidationError{
				Key:    fieldName,
				Reason: err.Error(),
				Value:  value,
			})
		}
	}

	if len(errs) > 0 {
		return &AggregateError{Errors: errs}
	}
	return nil
}
