// Package gateway connects the sync worker's command and event surface to
// external hosts.
//
// Commands arrive as JSON objects shaped like syncworker.Command:
//
//	{"type": "SYNC_ENTITY", "id": "..."}
//	{"type": "SYNC_MULTIPLE", "ids": ["...", "..."]}
//	{"type": "SAVE_TRIPLE", "triple": {...}, "deleted": false}
//
// Every inbound document is checked against an embedded JSON Schema before
// it is decoded, then against Command.Validate. A command that fails either
// check is answered with an error reply and never reaches the worker. An
// accepted command is answered with {"ok": true}; its outcome arrives later
// as events.
//
// Events leave as JSON objects shaped like syncworker.Event. Two transports
// are provided: natsbridge (request/reply on a command subject, events on
// per-kind subjects) and wsbridge (one WebSocket per client, commands in
// and events out on the same socket).
package gateway
