package snapshot

import (
	"bytes"
	"testing"
	"time"

	"github.com/fxamacker/cbor/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dairiki/g2-metadata/pkg/types"
)

func fixtureDoc() *types.Document {
	stamp := time.Date(2011, 2, 3, 4, 5, 6, 0, time.UTC)
	admin := &types.User{
		Common:   types.Common{ID: 5, CreationTime: stamp},
		UserName: "admin", FullName: "Gallery Admin",
		PluginParameters: types.Parameters{
			"module": {"core": {"language": "en_US"}},
		},
	}
	grp := &types.Group{
		Common:    types.Common{ID: 4, CreationTime: stamp},
		GroupName: "Registered Users",
		Users:     []*types.User{admin},
	}
	list := &types.AccessList{ID: 91, Entries: []types.AccessEntry{
		{Permission: 3, Principal: grp},
	}}

	root := &types.Item{
		Common: types.Common{ID: 7, CreationTime: stamp},
		Kind:   types.KindAlbum,
		Album: &types.AlbumPayload{
			OrderBy: "orderWeight",
			PluginParameters: types.Parameters{
				"module": {"core": {"rows": int64(3)}},
			},
		},
		Title: "Gallery", Owner: admin, OwnerID: 5, AccessList: list,
	}
	year := &types.Item{
		Common:        types.Common{ID: 10, CreationTime: stamp},
		ParentID:      7, Parent: root, PathComponent: "2019",
		Kind:  types.KindAlbum,
		Album: &types.AlbumPayload{}, AccessList: list, OrderWeight: 2,
	}
	photo := &types.Item{
		Common:        types.Common{ID: 11, CreationTime: stamp},
		ParentID:      10, Parent: year, PathComponent: "trip.jpg",
		Kind:  types.KindPhoto,
		Photo: &types.PhotoPayload{Width: 2048, Height: 1365},
		Comments: []*types.Comment{
			{Common: types.Common{ID: 30}, ParentID: 11,
				Body: "first", Date: stamp},
			{Common: types.Common{ID: 31}, ParentID: 11,
				Body: "second", Date: stamp.Add(time.Hour)},
		},
	}
	inner := &types.Derivative{
		Common:   types.Common{ID: 21},
		ParentID: 11, SourceID: 11, Source: photo, Type: 2,
		Image: &types.DerivativeImagePayload{Width: 150, Height: 100},
	}
	outer := &types.Derivative{
		Common:   types.Common{ID: 20},
		ParentID: 7, SourceID: 21, Source: inner, Type: 2,
	}
	root.Derivatives = []*types.Derivative{outer}
	photo.Derivatives = []*types.Derivative{inner}

	a := &types.Item{
		Common:   types.Common{ID: 13, LinkID: 14},
		ParentID: 7, Parent: root, PathComponent: "a",
		Kind: types.KindLink, External: &types.LinkPayload{URL: "http://a/"},
	}
	b := &types.Item{
		Common:   types.Common{ID: 14, LinkID: 13},
		ParentID: 7, Parent: root, PathComponent: "b",
		Kind: types.KindLink, External: &types.LinkPayload{URL: "http://b/"},
		OrderWeight: 1,
	}
	a.Link, b.Link = b, a

	year.Subitems = []*types.Item{photo}
	root.Subitems = []*types.Item{b, year, a}

	return &types.Document{
		Groups: []*types.Group{grp},
		Users:  []*types.User{admin},
		PluginParameters: types.Parameters{
			"core": {"core": {"default.orderBy": "title", "rows": int64(7)}},
		},
		Album: root,
	}
}

func TestRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, fixtureDoc()))

	loaded, err := Read(&buf)
	require.NoError(t, err)

	root := loaded.Album
	require.NotNil(t, root)
	assert.Equal(t, 7, root.ID)
	assert.Equal(t, "Gallery", root.Title)
	assert.Equal(t, time.Date(2011, 2, 3, 4, 5, 6, 0, time.UTC),
		root.CreationTime)

	t.Run("subitem order preserved", func(t *testing.T) {
		var ids []int
		for _, sub := range root.Subitems {
			ids = append(ids, sub.ID)
		}
		assert.Equal(t, []int{14, 10, 13}, ids)
	})

	t.Run("parents and owner rewired", func(t *testing.T) {
		year := root.Subitems[1]
		assert.Same(t, root, year.Parent)
		require.NotNil(t, root.Owner)
		assert.Same(t, loaded.Users[0], root.Owner)
	})

	t.Run("comment order preserved", func(t *testing.T) {
		photo := root.Subitems[1].Subitems[0]
		require.Len(t, photo.Comments, 2)
		assert.Equal(t, "first", photo.Comments[0].Body)
	})

	t.Run("access list identity", func(t *testing.T) {
		year := root.Subitems[1]
		require.NotNil(t, root.AccessList)
		assert.Same(t, root.AccessList, year.AccessList)
		assert.Same(t, loaded.Groups[0], root.AccessList.Entries[0].Principal)
	})

	t.Run("derivative chain", func(t *testing.T) {
		hilight, err := root.Hilight()
		require.NoError(t, err)
		require.NotNil(t, hilight)
		assert.Equal(t, 11, hilight.ID)
	})

	t.Run("link cycle", func(t *testing.T) {
		b, a := root.Subitems[0], root.Subitems[2]
		assert.Same(t, b, a.Link)
		assert.Same(t, a, b.Link)
	})

	t.Run("integer parameters decode as int64", func(t *testing.T) {
		assert.Equal(t, int64(7),
			loaded.PluginParameters["core"]["core"]["rows"])
		assert.Equal(t, int64(3),
			root.Album.PluginParameters["module"]["core"]["rows"])
		assert.Equal(t, "en_US",
			loaded.Users[0].PluginParameters["module"]["core"]["language"])
	})
}

func TestReadVersionMismatch(t *testing.T) {
	var buf bytes.Buffer
	snap := snapshot{Manifest: Manifest{Version: 99}}
	require.NoError(t, cbor.NewEncoder(&buf).Encode(snap))

	_, err := Read(&buf)
	assert.ErrorIs(t, err, ErrVersionMismatch)
}

func TestManifestStamped(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, fixtureDoc()))

	var snap snapshot
	require.NoError(t, cbor.NewDecoder(&buf).Decode(&snap))
	assert.Equal(t, 1, snap.Manifest.Version)
	assert.NotEmpty(t, snap.Manifest.RunID)
	assert.False(t, snap.Manifest.CreatedAt.IsZero())
}
