/*
Package domain contains the core domain models of the leadflow engine.

It defines the declarative flow definition (a graph of steps), the per-conversation
state the engine advances on every inbound message, and the results produced by
step executors and turns. This package is kept pure and free of external dependencies
like I/O or persistence, following Hexagonal Architecture principles.

# Key Entities

  - FlowDefinition: a versioned script of steps with a start step.
  - Step: one of MessageStep, ChoiceStep or ExecuteStep.
  - ConversationState: current step, variables, responses and history of a conversation.
  - StepResult: the discriminated outcome of a single step executor.
  - TurnResult: what the engine hands back to the caller after one inbound message.
*/
package domain
