// Package phpser decodes the legacy PHP-serialized plugin parameter
// values embedded in Gallery2 text columns and groups flat parameter
// rows into the nested per-plugin tree.
package phpser

import (
	"fmt"
	"sort"
	"strings"

	"github.com/elliotchance/phpserialize"

	"github.com/dairiki/g2-metadata/pkg/types"
)

// Row is one plugin parameter tuple as stored in g2_PluginParameterMap.
type Row struct {
	PluginType string
	PluginID   string
	Name       string
	Value      string
}

// Decode turns the flat parameter rows for one owning entity (or the
// global scope) into the nested plugin type -> plugin id -> name tree.
// Values that parse as PHP serializations are decoded and neatened;
// everything else stays a raw string. Most legitimate values are
// plain strings, so decode failures are expected and silent.
//
// Rows are sorted by (type, id) and grouped by contiguous run; the
// accumulation spans every plugin id of a type, not just the first.
// Returns nil when there are no rows.
func Decode(rows []Row) types.Parameters {
	if len(rows) == 0 {
		return nil
	}
	sorted := make([]Row, len(rows))
	copy(sorted, rows)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].PluginType != sorted[j].PluginType {
			return sorted[i].PluginType < sorted[j].PluginType
		}
		return sorted[i].PluginID < sorted[j].PluginID
	})

	params := make(types.Parameters)
	for _, row := range sorted {
		byID := params[row.PluginType]
		if byID == nil {
			byID = make(map[string]map[string]any)
			params[row.PluginType] = byID
		}
		byName := byID[row.PluginID]
		if byName == nil {
			byName = make(map[string]any)
			byID[row.PluginID] = byName
		}
		if decoded, ok := Unserialize(row.Value); ok {
			byName[row.Name] = decoded
		} else {
			byName[row.Name] = row.Value
		}
	}
	return params
}

// Unserialize attempts to decode a PHP-serialized value. The second
// return is false when raw is not a recognizable serialization, in
// which case the caller should keep the raw string.
func Unserialize(raw string) (any, bool) {
	data := []byte(raw)
	switch {
	case raw == "N;":
		return nil, true
	case strings.HasPrefix(raw, "a:"):
		var m map[any]any
		if err := phpserialize.Unmarshal(data, &m); err != nil {
			return nil, false
		}
		return neaten(m), true
	case strings.HasPrefix(raw, "s:"):
		var s string
		if err := phpserialize.Unmarshal(data, &s); err != nil {
			return nil, false
		}
		return s, true
	case strings.HasPrefix(raw, "i:"):
		var n int64
		if err := phpserialize.Unmarshal(data, &n); err != nil {
			return nil, false
		}
		return n, true
	case strings.HasPrefix(raw, "b:"):
		var b bool
		if err := phpserialize.Unmarshal(data, &b); err != nil {
			return nil, false
		}
		return b, true
	case strings.HasPrefix(raw, "d:"):
		var f float64
		if err := phpserialize.Unmarshal(data, &f); err != nil {
			return nil, false
		}
		return f, true
	default:
		return nil, false
	}
}

// neaten converts decoded PHP arrays into their natural Go shapes: a
// map keyed exactly 0..n-1 becomes an ordered slice, an empty map
// becomes nil, and everything else becomes a string-keyed map.
func neaten(v any) any {
	m, ok := v.(map[any]any)
	if !ok {
		return v
	}
	if len(m) == 0 {
		return nil
	}
	if list, ok := asList(m); ok {
		return list
	}
	out := make(map[string]any, len(m))
	for k, val := range m {
		out[stringKey(k)] = neaten(val)
	}
	return out
}

// asList returns the map as a slice when its keys are exactly 0..n-1.
func asList(m map[any]any) ([]any, bool) {
	byIndex := make(map[int]any, len(m))
	for k, v := range m {
		i, ok := intKey(k)
		if !ok {
			return nil, false
		}
		byIndex[i] = v
	}
	list := make([]any, len(m))
	for i := range list {
		v, ok := byIndex[i]
		if !ok {
			return nil, false
		}
		list[i] = neaten(v)
	}
	return list, true
}

func intKey(k any) (int, bool) {
	switch v := k.(type) {
	case int:
		return v, true
	case int64:
		return int(v), true
	case uint64:
		return int(v), true
	default:
		return 0, false
	}
}

func stringKey(k any) string {
	switch v := k.(type) {
	case string:
		return v
	case []byte:
		return string(v)
	default:
		return fmt.Sprint(v)
	}
}
