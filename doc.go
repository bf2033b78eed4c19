// Package graphsync is a local-first sync core for a knowledge graph made of
// triples (entity, attribute, value) and ordered relations between entities.
//
// Edits land in a local op store first and are visible immediately. Remote
// facts arrive through a background sync worker and are merged under the
// local ops, so a local write always wins over the remote value for the same
// key until it is published.
//
// # Architecture
//
//	┌─────────────────────────────────────┐
//	│     Host UI / other processes       │  JSON commands and events
//	│   (gateway/wsbridge, natsbridge)    │  over WebSocket or NATS
//	└─────────────────────────────────────┘
//	           ↓ Submit            ↑ events
//	┌─────────────────────────────────────┐
//	│            syncworker               │  fetch, fan-out, push,
//	│  (per-entity state machine)         │  SYNC_* / SAVE_* / DELETE_*
//	└─────────────────────────────────────┘
//	     ↓ fetch / push        ↓ cache
//	┌──────────────┐    ┌─────────────────┐
//	│    remote    │    │    readcache    │  remote facts by entity
//	│ memory, kv,  │    └─────────────────┘
//	│  subgraph    │             ↓
//	└──────────────┘    ┌─────────────────┐
//	                    │  merge +        │  local ops over remote,
//	                    │  projection     │  tombstones hide facts
//	                    └─────────────────┘
//	                             ↑
//	                    ┌─────────────────┐
//	                    │   localstore    │  op log, copy-on-write
//	                    │ (storage.OpLog) │  snapshots, persisted to
//	                    └─────────────────┘  sqlite or NATS KV
//
// The client package wires these into one owned instance:
//
//	c, err := client.New(client.Dependencies{Remote: r, Space: "team"})
//	if err != nil {
//		return err
//	}
//	if err := c.Start(ctx); err != nil {
//		return err
//	}
//	defer c.Close(ctx)
//
//	c.UpsertTriple(graph.Triple{EntityID: id, AttributeID: vocabulary.Name, Value: graph.Text("Alice")})
//	e := c.Entity(id) // merged view, no I/O
//
// # Packages
//
//   - graph, vocabulary: core types, identity keys and well-known attribute ids
//   - localstore: the op store with tombstones and pending/published tracking
//   - merge, projection: pure functions from remote and local facts to entities
//   - table: filtered, ordered rows that merge a remote page with local edits
//   - syncworker: commands, events, fan-out and the per-id state machine
//   - remote: the Remote interface and its memory, kvremote and subgraph backends
//   - storage: OpLog persistence in sqlitestore and kvstore
//   - gateway: command codec plus the NATS and WebSocket bridges
//   - pkg/fracindex: fractional indexes for relation order
//
// cmd/graphsync runs the whole thing as a daemon configured from JSON or
// YAML files (package config).
package graphsync
