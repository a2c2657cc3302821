// Package schema provides typed validation for the params of execute steps.
//
// Action handlers declare the params they accept as a Schema, and the flow
// validator checks every execute step against it before a flow can run:
//
//	scoreParams := schema.Schema{
//	    "rules": schema.Optional(schema.Map(schema.Float())),
//	}
//
//	if err := schema.Validate(scoreParams, step.Params); err != nil {
//	    for _, e := range schema.ValidationErrors(err) {
//	        // report e
//	    }
//	}
//
// Schemas can also be written as type expressions, which is how they are
// exposed over the HTTP and MCP adapters:
//
//	schema.ParseTypeMap(map[string]string{
//	    "vertical": "string?",
//	    "fields":   "[string]?",
//	    "rules":    "{float}?",
//	})
//
// The package has no dependencies beyond the standard library.
package schema
