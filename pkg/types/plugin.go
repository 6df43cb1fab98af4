package types

// Parameters is the decoded plugin parameter tree for one entity (or
// the global scope): plugin type, then plugin id, then parameter name
// to decoded value. Values are strings, numbers, booleans, nil,
// []any, or map[string]any, as produced by the parameter decoder.
type Parameters map[string]map[string]map[string]any
