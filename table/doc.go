// Package table builds list and table views that show local edits before
// the remote index catches up.
//
// MergeEntities takes one remote page for a filter, overlays local state on
// every entity in it, then adds entities that only match because of local
// writes. The filter is re-evaluated client-side on the union, so a remote
// hit that a local edit no longer satisfies is dropped.
package table
