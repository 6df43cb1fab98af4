// Package types defines the entity model for Gallery2 metadata: the
// polymorphic entity hierarchy (items, comments, derivatives, users,
// groups), shared access lists, plugin parameters, and the Document
// bundling one fully loaded gallery graph.
//
// All values are read-only snapshots. A graph is materialized once per
// run, either by the store loader or by the YAML/snapshot readers, and
// never written back.
package types
