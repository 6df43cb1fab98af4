package sigal

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dairiki/g2-metadata/pkg/types"
)

func writerFixture() *types.Document {
	stamp := time.Date(2019, 6, 1, 12, 0, 0, 0, time.UTC)
	owner := &types.User{Common: types.Common{ID: 5},
		FullName: "Gallery Admin", Email: "admin@example.com"}

	root := &types.Item{
		Common: types.Common{ID: 7, CreationTime: stamp},
		Kind:   types.KindAlbum,
		Album:  &types.AlbumPayload{OrderBy: "orderWeight", OrderDirection: "asc"},
		Title:  "Gallery", Owner: owner,
	}
	year := &types.Item{
		Common:        types.Common{ID: 10},
		ParentID:      7, Parent: root, PathComponent: "2019",
		Kind:  types.KindAlbum,
		Album: &types.AlbumPayload{},
		Title: "Summer archive", Summary: "Year of the trip",
	}
	photo := &types.Item{
		Common:          types.Common{ID: 11},
		ParentID:        10, Parent: year, PathComponent: "trip.jpg",
		Kind:            types.KindPhoto,
		Photo:           &types.PhotoPayload{Width: 2048, Height: 1365},
		Title:           "trip",
		Summary:         "A day at the coast",
		Description:     "The [b]long[/b] version",
		Keywords:        "travel",
		OriginationTime: stamp,
		OrderWeight:     5,
		ViewCount:       12,
		Owner:           owner,
	}
	hidden := &types.Item{
		Common:        types.Common{ID: 12},
		ParentID:      7, Parent: root, PathComponent: "misc",
		Kind:   types.KindAlbum,
		Album:  &types.AlbumPayload{},
		Hidden: true,
	}
	link := &types.Item{
		Common:        types.Common{ID: 13, LinkID: 11, Link: photo},
		ParentID:      7, Parent: root, PathComponent: "link.jpg",
		Kind:     types.KindLink,
		External: &types.LinkPayload{URL: "http://example.com/"},
	}
	data := &types.Item{
		Common:        types.Common{ID: 14},
		ParentID:      7, Parent: root, PathComponent: "notes.txt",
		Kind: types.KindData,
		Data: &types.DataPayload{MimeType: "text/plain", Size: 12},
	}

	// The root album has no hilight of its own; the writer should
	// find the year album's via the breadth-first fallback.
	year.HilightTarget = photo

	year.Subitems = []*types.Item{photo}
	root.Subitems = []*types.Item{year, hidden, link, data}

	return &types.Document{
		Users: []*types.User{owner},
		PluginParameters: types.Parameters{
			"core": {"core": {"default.orderBy": "title"}},
		},
		Album: root,
	}
}

func setupAlbums(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "2019"), 0o755))
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "misc"), 0o755))
	require.NoError(t, os.WriteFile(
		filepath.Join(dir, "2019", "trip.jpg"), []byte("jpeg"), 0o644))
	return dir
}

func readSidecar(t *testing.T, parts ...string) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(parts...))
	require.NoError(t, err)
	return string(data)
}

func TestWriteAll(t *testing.T) {
	dir := setupAlbums(t)
	require.NoError(t, NewWriter(dir, "").WriteAll(writerFixture()))

	t.Run("root index", func(t *testing.T) {
		got := readSidecar(t, dir, "index.md")
		assert.Contains(t, got, "Title:   Gallery\n")
		assert.Contains(t, got, "Author:  Gallery Admin\n")
		assert.Contains(t, got, "Thumbnail: 2019/trip.jpg\n")
		assert.Contains(t, got, "Order-By: orderWeight\n")
		assert.Contains(t, got, "Order-Direction: asc\n")
	})

	t.Run("album sidecar promotes summary", func(t *testing.T) {
		got := readSidecar(t, dir, "2019", "index.md")
		assert.Contains(t, got, "Title:   Summer archive\n")
		// Summary became the description body.
		assert.Contains(t, got, "\nYear of the trip\n")
		assert.Contains(t, got, "Thumbnail: trip.jpg\n")
	})

	t.Run("media sidecar", func(t *testing.T) {
		got := readSidecar(t, dir, "2019", "trip.md")
		// Trivial title, so the summary takes its place.
		assert.Contains(t, got, "Title:   A day at the coast\n")
		assert.Contains(t, got, "Date:    2019-06-01T12:00:00Z\n")
		assert.Contains(t, got, "Author-Email: admin@example.com\n")
		assert.Contains(t, got, "Order-Weight: 5\n")
		assert.Contains(t, got, "Gallery2-Id: 11\n")
		assert.Contains(t, got, "Keywords: travel\n")
		assert.Contains(t, got, "View-Count: 12\n")
		assert.Contains(t, got, "**long**")
	})

	t.Run("hidden flag", func(t *testing.T) {
		got := readSidecar(t, dir, "misc", "index.md")
		assert.Contains(t, got, "Hidden:  yes\n")
	})

	t.Run("symlink created for link item", func(t *testing.T) {
		info, err := os.Lstat(filepath.Join(dir, "link.jpg"))
		require.NoError(t, err)
		assert.NotZero(t, info.Mode()&os.ModeSymlink)
		target, err := os.Readlink(filepath.Join(dir, "link.jpg"))
		require.NoError(t, err)
		assert.Equal(t, filepath.Join("2019", "trip.jpg"), target)
	})

	t.Run("data item skipped", func(t *testing.T) {
		_, err := os.Stat(filepath.Join(dir, "notes.md"))
		assert.True(t, os.IsNotExist(err))
	})
}

func TestWriteAllMissingAlbumDir(t *testing.T) {
	dir := t.TempDir()
	doc := writerFixture()
	// No album directories exist; every node warns, nothing aborts.
	require.NoError(t, NewWriter(dir, "").WriteAll(doc))
	_, err := os.Stat(filepath.Join(dir, "2019", "index.md"))
	assert.True(t, os.IsNotExist(err))
}

func TestWriteAllIntegrityErrorAborts(t *testing.T) {
	dir := setupAlbums(t)
	doc := writerFixture()
	year := doc.Album.Subitems[0]
	year.Derivatives = []*types.Derivative{
		{Common: types.Common{ID: 20}},
		{Common: types.Common{ID: 21}},
	}
	year.HilightTarget = nil
	err := NewWriter(dir, "").WriteAll(doc)
	assert.ErrorIs(t, err, types.ErrMultipleThumbnails)
}
