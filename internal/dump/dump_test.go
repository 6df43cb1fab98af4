package dump

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dairiki/g2-metadata/pkg/types"
)

func fixtureDoc() *types.Document {
	stamp := time.Date(2011, 2, 3, 4, 5, 6, 0, time.UTC)

	admin := &types.User{
		Common:   types.Common{ID: 5, CreationTime: stamp, SerialNumber: 1},
		UserName: "admin", FullName: "Gallery Admin", Email: "admin@example.com",
	}
	guest := &types.User{
		Common:   types.Common{ID: 6, CreationTime: stamp, SerialNumber: 1},
		UserName: "guest", Locked: true,
	}
	grp := &types.Group{
		Common:    types.Common{ID: 4, CreationTime: stamp, SerialNumber: 1},
		GroupType: 1, GroupName: "Registered Users",
		Users: []*types.User{admin, guest},
	}
	list := &types.AccessList{ID: 91, Entries: []types.AccessEntry{
		{Permission: 3, Principal: grp},
		{Permission: 1, Principal: admin},
	}}

	root := &types.Item{
		Common: types.Common{ID: 7, CreationTime: stamp, ModificationTime: stamp, SerialNumber: 3},
		Kind:   types.KindAlbum,
		Album: &types.AlbumPayload{
			Theme: "matrix", OrderBy: "orderWeight", OrderDirection: "asc",
			PluginParameters: types.Parameters{
				"module": {"core": {"rows": int64(3), "cols": "auto"}},
			},
			DerivativePrefs: types.DerivativePrefs{2: {"thumbnail|150"}},
		},
		Title: "Gallery", Owner: admin, AccessList: list,
	}
	year := &types.Item{
		Common:        types.Common{ID: 10, CreationTime: stamp, SerialNumber: 1},
		ParentID:      7, Parent: root, PathComponent: "2019",
		Kind:  types.KindAlbum,
		Album: &types.AlbumPayload{Theme: "matrix"},
		Title: "2019", Owner: admin, AccessList: list, OrderWeight: 10,
	}
	photo := &types.Item{
		Common:        types.Common{ID: 11, CreationTime: stamp, SerialNumber: 2},
		ParentID:      10, Parent: year, PathComponent: "trip.jpg",
		Kind:  types.KindPhoto,
		Photo: &types.PhotoPayload{Width: 2048, Height: 1365},
		Title: "Trip",
		Description: "First line of the story\r\nsecond line",
		Owner:       guest, OrderWeight: 5,
	}
	photo.Comments = []*types.Comment{
		{Common: types.Common{ID: 30, CreationTime: stamp},
			ParentID: 11, Host: "example.org", Body: "first",
			Date: stamp, PublishStatus: 1},
		{Common: types.Common{ID: 31, CreationTime: stamp},
			ParentID: 11, Host: "example.net", Body: "second",
			Date: stamp.Add(time.Hour), Author: "Anon", PublishStatus: 1},
	}

	inner := &types.Derivative{
		Common:   types.Common{ID: 21, CreationTime: stamp},
		ParentID: 11, SourceID: 11, Source: photo,
		Operations: "thumbnail|150", Type: 2, MimeType: "image/jpeg",
		Image: &types.DerivativeImagePayload{Width: 150, Height: 100},
	}
	outer := &types.Derivative{
		Common:   types.Common{ID: 20, CreationTime: stamp},
		ParentID: 7, SourceID: 21, Source: inner,
		Operations: "thumbnail|150", Type: 2, MimeType: "image/jpeg",
		Image: &types.DerivativeImagePayload{Width: 150, Height: 100},
	}
	root.Derivatives = []*types.Derivative{outer}
	photo.Derivatives = []*types.Derivative{inner}

	year.Subitems = []*types.Item{photo}
	root.Subitems = []*types.Item{year}

	return &types.Document{
		Groups: []*types.Group{grp},
		Users:  []*types.User{admin, guest},
		PluginParameters: types.Parameters{
			"module": {"core": {"default.orderBy": "orderWeight"}},
		},
		Album: root,
	}
}

func dumpString(t *testing.T, doc *types.Document, opts Options) string {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, Dump(&buf, doc, opts))
	return buf.String()
}

func TestRoundTrip(t *testing.T) {
	out := dumpString(t, fixtureDoc(), Options{})
	loaded, err := Load(strings.NewReader(out))
	require.NoError(t, err)

	root := loaded.Album
	require.NotNil(t, root)
	assert.Equal(t, 7, root.ID)
	assert.Equal(t, types.KindAlbum, root.Kind)
	assert.Equal(t, "orderWeight", root.Album.OrderBy)

	require.Len(t, root.Subitems, 1)
	year := root.Subitems[0]
	assert.Equal(t, "2019", year.PathComponent)
	assert.Same(t, root, year.Parent)

	require.Len(t, year.Subitems, 1)
	photo := year.Subitems[0]
	assert.Equal(t, types.KindPhoto, photo.Kind)
	require.NotNil(t, photo.Photo)
	assert.Equal(t, 2048, photo.Photo.Width)
	p, err := photo.Path()
	require.NoError(t, err)
	assert.Equal(t, "2019/trip.jpg", p)

	t.Run("comment ordering survives", func(t *testing.T) {
		require.Len(t, photo.Comments, 2)
		assert.Equal(t, "first", photo.Comments[0].Body)
		assert.Equal(t, "second", photo.Comments[1].Body)
		assert.Equal(t, time.Date(2011, 2, 3, 4, 5, 6, 0, time.UTC),
			photo.Comments[0].Date)
	})

	t.Run("line endings normalized", func(t *testing.T) {
		assert.Equal(t, "First line of the story\nsecond line", photo.Description)
	})

	t.Run("owner aliases resolve to the users table", func(t *testing.T) {
		require.Len(t, loaded.Users, 2)
		assert.Same(t, loaded.Users[0], root.Owner)
		assert.Same(t, loaded.Users[1], photo.Owner)
	})

	t.Run("access list is shared by identity", func(t *testing.T) {
		require.NotNil(t, root.AccessList)
		assert.Same(t, root.AccessList, year.AccessList)
		require.Len(t, root.AccessList.Entries, 2)
		assert.Equal(t, 91, root.AccessList.ID)
		assert.Same(t, loaded.Groups[0], root.AccessList.Entries[0].Principal)
	})

	t.Run("derivative chain reconnects", func(t *testing.T) {
		hilight, err := root.Hilight()
		require.NoError(t, err)
		require.NotNil(t, hilight)
		assert.Same(t, photo, hilight)
	})

	t.Run("plugin parameters", func(t *testing.T) {
		assert.Equal(t, "orderWeight",
			loaded.PluginParameters["module"]["core"]["default.orderBy"])
		assert.Equal(t, int64(3),
			root.Album.PluginParameters["module"]["core"]["rows"])
		assert.Equal(t, types.DerivativePrefs{2: {"thumbnail|150"}},
			root.Album.DerivativePrefs)
	})
}

func TestDumpSharing(t *testing.T) {
	out := dumpString(t, fixtureDoc(), Options{})

	// Each user appears in full exactly once, no matter how many
	// owner/group/access references point at it.
	assert.Equal(t, 1, strings.Count(out, "userName: admin"))
	assert.Equal(t, 1, strings.Count(out, "userName: guest"))
	// The shared access list emits one full sequence and one alias.
	assert.Equal(t, 2, strings.Count(out, "permission:"))
}

func TestDumpTextStyles(t *testing.T) {
	out := dumpString(t, fixtureDoc(), Options{})
	assert.Contains(t, out, "---\n")
	assert.Contains(t, out, "2011-02-03T04:05:06Z")
	assert.Contains(t, out, "description: |-")

	long := strings.Repeat("long words all the way past the threshold ", 3)
	doc := fixtureDoc()
	doc.Album.Description = "short\n" + long
	out = dumpString(t, doc, Options{})
	assert.Contains(t, out, "description: >-")
}

func TestDumpOmit(t *testing.T) {
	out := dumpString(t, fixtureDoc(), Options{Omit: []string{"derivatives"}})
	assert.NotContains(t, out, "derivatives:")

	loaded, err := Load(strings.NewReader(out))
	require.NoError(t, err)
	assert.Empty(t, loaded.Album.Derivatives)

	// The hilight reference still names the album thumbnail even
	// though the derivative records were dropped.
	hilight, err := loaded.Album.Hilight()
	require.NoError(t, err)
	require.NotNil(t, hilight)
	assert.Equal(t, 11, hilight.ID)
}

func TestDumpLinkCycle(t *testing.T) {
	doc := fixtureDoc()
	a := &types.Item{
		Common:   types.Common{ID: 13, LinkID: 14},
		ParentID: 7, Parent: doc.Album, PathComponent: "a",
		Kind: types.KindLink, External: &types.LinkPayload{URL: "http://a/"},
	}
	b := &types.Item{
		Common:   types.Common{ID: 14, LinkID: 13},
		ParentID: 7, Parent: doc.Album, PathComponent: "b",
		Kind: types.KindLink, External: &types.LinkPayload{URL: "http://b/"},
	}
	a.Link, b.Link = b, a
	doc.Album.Subitems = append(doc.Album.Subitems, a, b)

	out := dumpString(t, doc, Options{})
	loaded, err := Load(strings.NewReader(out))
	require.NoError(t, err)

	subs := loaded.Album.Subitems
	require.Len(t, subs, 3)
	la, lb := subs[1], subs[2]
	require.NotNil(t, la.Link)
	assert.Same(t, lb, la.Link)
	assert.Same(t, la, lb.Link)
}

func TestLoadUnknownTag(t *testing.T) {
	_, err := Load(strings.NewReader("---\nalbum: !BogusItem\n  id: 1\n"))
	assert.ErrorIs(t, err, types.ErrUnknownTag)
}

func TestLoadMissingAlbum(t *testing.T) {
	_, err := Load(strings.NewReader("---\ngroups: []\nusers: []\n"))
	assert.ErrorIs(t, err, types.ErrNoRootAlbum)
}
