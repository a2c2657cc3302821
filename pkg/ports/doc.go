/*
Package ports defines the driven ports (interfaces) around the leadflow engine.

These interfaces decouple the conversation core from external implementations,
so flows, conversations and leads can live in memory, files, Redis or SQL.

# Key Interfaces

  - FlowLoader: Resolves flow definitions by id (e.g., from a directory or memory).
  - ConversationStore: Persists and loads conversations between turns.
  - DistributedLocker: Serializes turns of one conversation across replicas.
  - Generator: Produces AI-assisted replies for the gerar_resposta_ia action.
  - LeadUpdater: Writes qualification data back to the lead record.
*/
package ports
