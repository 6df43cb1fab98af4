package phpser

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dairiki/g2-metadata/pkg/types"
)

func TestDecodeSingleRow(t *testing.T) {
	got := Decode([]Row{
		{PluginType: "core", PluginID: "core", Name: "default.orderBy", Value: "title"},
	})
	want := types.Parameters{
		"core": {"core": {"default.orderBy": "title"}},
	}
	assert.Equal(t, want, got)
}

func TestDecodeAccumulatesAcrossPluginIDs(t *testing.T) {
	// Grouping is by contiguous run after sorting; every plugin id of
	// a type must end up in the result, not just the first.
	got := Decode([]Row{
		{PluginType: "module", PluginID: "comment", Name: "comments.moderate", Value: "i:1;"},
		{PluginType: "core", PluginID: "core", Name: "default.orderBy", Value: "title"},
		{PluginType: "module", PluginID: "exif", Name: "exif.available", Value: "b:1;"},
		{PluginType: "module", PluginID: "comment", Name: "comments.latest", Value: "i:12;"},
	})
	require.Contains(t, got, "module")
	assert.Len(t, got["module"], 2)
	assert.Equal(t, int64(1), got["module"]["comment"]["comments.moderate"])
	assert.Equal(t, int64(12), got["module"]["comment"]["comments.latest"])
	assert.Equal(t, true, got["module"]["exif"]["exif.available"])
	assert.Equal(t, "title", got["core"]["core"]["default.orderBy"])
}

func TestDecodeEmpty(t *testing.T) {
	assert.Nil(t, Decode(nil))
}

func TestUnserialize(t *testing.T) {
	tests := []struct {
		name   string
		raw    string
		want   any
		wantOK bool
	}{
		{"plain string is not serialized", "title", nil, false},
		{"string", `s:5:"hello";`, "hello", true},
		{"int", "i:42;", int64(42), true},
		{"bool", "b:1;", true, true},
		{"null", "N;", nil, true},
		{"indexed array becomes slice", `a:2:{i:0;s:1:"a";i:1;s:1:"b";}`,
			[]any{"a", "b"}, true},
		{"empty array becomes nil", "a:0:{}", nil, true},
		{"assoc array becomes string map", `a:1:{s:3:"key";i:7;}`,
			map[string]any{"key": int64(7)}, true},
		{"garbage array prefix falls back", "a:hello", nil, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := Unserialize(tt.raw)
			assert.Equal(t, tt.wantOK, ok)
			if tt.wantOK {
				assert.Equal(t, tt.want, got)
			}
		})
	}
}
