package leadflow_test

import (
	"context"
	"fmt"
	"log"

	"github.com/aretw0/leadflow"
	"github.com/aretw0/leadflow/pkg/actions"
	"github.com/aretw0/leadflow/pkg/registry"
)

const qualification = `
inicio: inicio
passos:
  - id: inicio
    tipo: mensagem
    mensagem: Olá! Vamos encontrar o plano ideal.
    proxima: perfil
  - id: perfil
    tipo: escolha
    pergunta: Qual seu perfil?
    opcoes:
      - {texto: Individual, valor: individual, proxima: score}
      - {texto: Família, valor: familia, proxima: score}
  - id: score
    tipo: executar
    acao: calcular_score
    parametros:
      rules: {perfil: 15}
    proxima: fim
  - id: fim
    tipo: mensagem
    mensagem: "Obrigado! Perfil {{perfil_text}}, score {{score}}."
`

// ExampleLoad walks a lead through a flow written in YAML with Portuguese keys.
func ExampleLoad() {
	reg := registry.NewRegistry()
	actions.RegisterDefaults(reg, actions.Deps{})

	engine, err := leadflow.Load([]byte(qualification), leadflow.WithActions(reg))
	if err != nil {
		log.Fatal(err)
	}

	ctx := context.Background()
	res, err := engine.ProcessMessage(ctx, "oi", "", nil)
	if err != nil {
		log.Fatal(err)
	}
	fmt.Println(res.Response)
	for i, c := range res.Choices {
		fmt.Printf("%d) %s\n", i+1, c.Text)
	}

	res, err = engine.ProcessTurn(ctx, res.State, "2")
	if err != nil {
		log.Fatal(err)
	}
	fmt.Println(res.Response)
	fmt.Println("complete:", res.Complete)

	// Output:
	// Olá! Vamos encontrar o plano ideal.
	//
	// Qual seu perfil?
	// 1) Individual
	// 2) Família
	// Obrigado! Perfil Família, score 25.
	// complete: true
}
