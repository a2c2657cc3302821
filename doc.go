/*
Package leadflow is a conversational flow engine for lead qualification over
messaging channels such as WhatsApp.

A flow is a static graph of steps. Message steps send text and continue,
choice steps ask a question and wait for one of their options, execute steps
run an external action (an AI reply, a lead update, a score) and continue.
The engine takes the current conversation state and one inbound text, and
auto-chains through every non-interactive step until it reaches a choice or
the end of the flow. It never stores anything itself: the host persists the
returned state, or lets pkg/session do it.

# Flow documents

Flows are JSON or YAML documents. Both the English keys (start, steps, next,
options) and the Portuguese ones used by existing bots (inicio, passos,
proxima, opcoes) are accepted:

	{
	  "inicio": "inicio",
	  "passos": [
	    {"id": "inicio", "tipo": "mensagem", "mensagem": "Olá!", "proxima": "perfil"},
	    {"id": "perfil", "tipo": "escolha", "pergunta": "Qual seu perfil?", "opcoes": [
	      {"texto": "Individual", "valor": "individual", "proxima": "fim"},
	      {"texto": "Família", "valor": "familia", "proxima": "fim"}
	    ]},
	    {"id": "fim", "tipo": "mensagem", "mensagem": "Obrigado, {{perfil_text}}!"}
	  ]
	}

# Usage

	eng, err := leadflow.Load(doc)
	if err != nil {
		log.Fatal(err) // *domain.FlowValidationError lists every problem
	}

	res, err := eng.ProcessMessage(ctx, "oi", "", nil)
	// res.Response: "Olá!\n\nQual seu perfil?"
	// res.NextStepID: "perfil"

	res, err = eng.ProcessTurn(ctx, res.State, "familia")
	// res.Response: "Obrigado, Família!"
	// res.Complete: true

Actions are registered in a pkg/registry Registry and passed with
WithActions; pkg/actions provides the built-in ones. Execute steps naming an
action that is not registered halt the turn with an ActionSignal, and the
host continues with Resume once it has performed the action.

The leadflow binary (cmd/leadflow) serves the same engine over HTTP and MCP,
with conversation persistence in memory, files, Redis, SQLite or Postgres.
*/
package leadflow
