package sigal

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func plain(s string) string { return s }

func TestReconcile(t *testing.T) {
	tests := []struct {
		name                        string
		title, summary, description string
		filename                    string
		want                        Fields
	}{
		{
			name:     "trivial title replaced by summary",
			title:    "sunset",
			summary:  "Sunset over the bay",
			filename: "sunset.jpg",
			want:     Fields{Title: "Sunset over the bay"},
		},
		{
			name:        "summary promoted to description",
			title:       "Trip",
			summary:     "A day at the coast",
			description: "",
			filename:    "trip.jpg",
			want:        Fields{Title: "Trip", Description: "A day at the coast"},
		},
		{
			name:        "summary duplicating description dropped",
			title:       "Trip",
			summary:     "same text",
			description: "same text",
			filename:    "trip.jpg",
			want:        Fields{Title: "Trip", Description: "same text"},
		},
		{
			name:     "everything trivial falls back to stem",
			title:    "trip.jpg",
			summary:  "trip",
			filename: "trip.jpg",
			want:     Fields{Title: "trip"},
		},
		{
			name:        "description equal to title dropped",
			title:       "Trip",
			description: "Trip",
			filename:    "trip.jpg",
			want:        Fields{Title: "Trip"},
		},
		{
			name:        "irreducible summary survives",
			title:       "Trip",
			summary:     "extra context",
			description: "the story",
			filename:    "trip.jpg",
			want: Fields{Title: "Trip", Summary: "extra context",
				Description: "the story"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := reconcile(tt.title, tt.summary, tt.description,
				tt.filename, plain)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestReconcileIdempotent(t *testing.T) {
	tuples := [][4]string{
		{"sunset", "Sunset over the bay", "", "sunset.jpg"},
		{"Trip", "A day at the coast", "", "trip.jpg"},
		{"Trip", "extra context", "the story", "trip.jpg"},
		{"", "", "", "photo.jpg"},
	}
	for _, in := range tuples {
		once := reconcile(in[0], in[1], in[2], in[3], plain)
		twice := reconcile(once.Title, once.Summary, once.Description,
			in[3], plain)
		assert.Equal(t, once, twice)
	}
}

func TestSortDefaults(t *testing.T) {
	spec := sortDefaults(map[string]map[string]map[string]any{
		"core": {"core": {
			"default.orderBy":        "originationTimestamp",
			"default.orderDirection": "desc",
		}},
	})
	assert.Equal(t, "originationTimestamp", spec.orderBy)
	assert.Equal(t, "desc", spec.orderDirection)

	assert.Zero(t, sortDefaults(nil))
}
