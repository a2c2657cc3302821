/*
Package dsl builds flow definitions in Go code.

It is an alternative to JSON or YAML flow documents, useful for flows
generated at runtime and for tests. Build runs the same validation as the
file loaders, so a built flow can go straight to the engine.

Example usage:

	flow, err := dsl.New("saude").
		Add("inicio").Text("Olá! Vou te ajudar a encontrar o plano ideal.").Go("perfil").
		Add("perfil").Question("Qual seu perfil?").
		Option("Individual", "individual", "gerar").
		Option("Família", "familia", "gerar").
		Add("gerar").Do("gerar_resposta_ia", nil).Param("vertical", "saude").
		Build()

Add and Build on a step builder act on the whole flow, so the chain above
also works split across statements:

	b := dsl.New("saude")
	b.Add("inicio").Text("Olá!").Go("perfil")
	flow, err := b.Build()
*/
package dsl
