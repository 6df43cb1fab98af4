package sigal

import (
	"strings"

	"github.com/apex/log"

	"github.com/dairiki/g2-metadata/pkg/types"
)

// Sort keys the downstream order plugin understands. orderBy specs are
// pipe-delimited compounds of these.
var knownOrderKeys = map[string]bool{
	"orderWeight":           true,
	"title":                 true,
	"summary":               true,
	"keywords":              true,
	"originationTimestamp":  true,
	"creationTimestamp":     true,
	"modificationTimestamp": true,
	"viewCount":             true,
	"description":           true,
	"pathComponent":         true,
	"random":                true,
	"albumsFirst":           true,
	"viewedFirst":           true,
}

type sortSpec struct {
	orderBy        string
	orderDirection string
}

// sortDefaults extracts the gallery-wide default sort settings, used
// for albums that specify no order of their own.
func sortDefaults(params types.Parameters) sortSpec {
	var spec sortSpec
	core, ok := params["core"]
	if !ok {
		return spec
	}
	inner, ok := core["core"]
	if !ok {
		return spec
	}
	if v, ok := inner["default.orderBy"].(string); ok {
		spec.orderBy = v
	}
	if v, ok := inner["default.orderDirection"].(string); ok {
		spec.orderDirection = v
	}
	return spec
}

func resolveOrder(album *types.AlbumPayload, defaults sortSpec) sortSpec {
	if album.OrderBy == "" {
		return defaults
	}
	return sortSpec{orderBy: album.OrderBy, orderDirection: album.OrderDirection}
}

// check warns about compound keys the order plugin will not resolve.
func (s sortSpec) check(ctx *log.Entry) {
	if s.orderBy == "" {
		return
	}
	for _, key := range strings.Split(s.orderBy, "|") {
		key = strings.TrimSpace(key)
		if key != "" && !knownOrderKeys[key] {
			ctx.WithField("key", key).Warn("unknown sort order key")
		}
	}
}
