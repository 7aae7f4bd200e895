// Package memory gives each (companion, user) conversation an
// isolated, durable, resumable dialogue state.
//
// Conversations are keyed by ConversationKey: a pure function of the
// companion and user identifiers that never includes the model name,
// so switching models never fragments a history.
//
// Architecture:
//   - CheckpointStore: keyed working-state snapshots (in-process for
//     prototyping, SQLite for durability)
//   - MessageLog: append-only durable record of turns, the source of
//     truth for history and statistics
//   - SemanticIndex: similarity search over past turns (chromem-go)
//   - Embedder: text-to-vector conversion behind the index (mock for
//     tests, ONNX all-MiniLM-L6-v2 locally)
//   - Manager: per-key composition of the three backends; the only
//     component that reads or writes conversation memory
//
// There is no process-wide conversation map. A Manager is built per
// request with explicit backends, so state survives restarts and
// scales past one process.
package memory
