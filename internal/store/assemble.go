package store

import (
	"fmt"
	"sort"

	"github.com/apex/log"

	"github.com/dairiki/g2-metadata/internal/phpser"
	"github.com/dairiki/g2-metadata/pkg/types"
)

// assemble wires the fetched tables into the typed graph and returns
// the document rooted at the top-level album.
func (g *graph) assemble() (*types.Document, error) {
	nodes := make(map[int]types.Entity, len(g.entities))
	items := make(map[int]*types.Item)
	users := make(map[int]*types.User)
	groups := make(map[int]*types.Group)
	derivs := make(map[int]*types.Derivative)
	comments := make(map[int]*types.Comment)

	for id, row := range g.entities {
		switch row.entityType {
		case typeComment:
			c := g.buildComment(id, row)
			nodes[id], comments[id] = c, c
		case typeDerivative, typeDerivativeImage:
			d := g.buildDerivative(id, row)
			nodes[id], derivs[id] = d, d
		case typeUser:
			u := g.buildUser(id, row)
			nodes[id], users[id] = u, u
		case typeGroup:
			gr := g.buildGroup(id, row)
			nodes[id], groups[id] = gr, gr
		case typeThumbnailImage:
			// Custom-thumbnail working copies; nothing downstream
			// wants them.
			log.WithField("id", id).Debug("skipping thumbnail image entity")
		default:
			kind, ok := itemKinds[row.entityType]
			if !ok {
				return nil, fmt.Errorf("%w: %q (entity %d)",
					types.ErrUnknownEntityType, row.entityType, id)
			}
			it := g.buildItem(id, row, kind)
			nodes[id], items[id] = it, it
		}
	}

	g.wireGroups(groups, users)
	g.wireComments(comments, items)
	g.wireDerivatives(derivs, items, nodes)
	g.wireItems(items, users)
	g.wireLinks(nodes, items)
	if err := g.wireAccessLists(items, nodes); err != nil {
		return nil, err
	}
	g.wirePrefs(items)
	doc := &types.Document{
		Groups: sortedGroups(groups),
		Users:  sortedUsers(users),
	}
	g.wireParameters(doc, items, users)

	for _, it := range items {
		if it.IsRoot() {
			doc.Album = it
			break
		}
	}
	if doc.Album == nil {
		return nil, types.ErrNoRootAlbum
	}
	return doc, nil
}

func (g *graph) common(id int, row entityRow) types.Common {
	return types.Common{
		ID:               id,
		CreationTime:     unixTime(row.creation),
		ModificationTime: unixTime(row.modification),
		SerialNumber:     row.serial,
		IsLinkable:       row.linkable,
		LinkID:           row.linkID,
	}
}

func (g *graph) buildItem(id int, row entityRow, kind types.ItemKind) *types.Item {
	it := &types.Item{
		Common:        g.common(id, row),
		ParentID:      g.parents[id],
		PathComponent: g.components[id],
		Kind:          kind,
	}
	if attrs, ok := g.items[id]; ok {
		it.Title = attrs.title
		it.Summary = attrs.summary
		it.Description = attrs.description
		it.Keywords = attrs.keywords
		it.OwnerID = attrs.ownerID
		it.OriginationTime = unixTime(attrs.origination)
		it.ViewCount = attrs.viewCount
		it.OrderWeight = attrs.orderWeight
		it.Hidden = attrs.hidden
	}
	switch kind {
	case types.KindAlbum:
		a := g.albums[id]
		it.Album = &types.AlbumPayload{
			Theme:          a.theme,
			OrderBy:        a.orderBy,
			OrderDirection: a.orderDirection,
		}
	case types.KindPhoto:
		d := g.dims[id]
		it.Photo = &types.PhotoPayload{Width: d.width, Height: d.height}
	case types.KindMovie:
		d := g.dims[id]
		it.Movie = &types.MoviePayload{Width: d.width, Height: d.height, Duration: d.duration}
	case types.KindAnimation:
		d := g.dims[id]
		it.Animation = &types.AnimationPayload{Width: d.width, Height: d.height}
	case types.KindData:
		d := g.data[id]
		it.Data = &types.DataPayload{MimeType: d.mimeType, Size: d.size}
	case types.KindLink:
		it.External = &types.LinkPayload{URL: g.links[id]}
	}
	return it
}

func (g *graph) buildComment(id int, row entityRow) *types.Comment {
	c := &types.Comment{Common: g.common(id, row), ParentID: g.parents[id]}
	if r, ok := g.comments[id]; ok {
		c.CommenterID = r.commenterID
		c.Host = r.host
		c.Subject = r.subject
		c.Body = r.body
		c.Date = unixTime(r.date)
		c.Author = r.author
		c.PublishStatus = r.publishStatus
	}
	return c
}

func (g *graph) buildDerivative(id int, row entityRow) *types.Derivative {
	d := &types.Derivative{Common: g.common(id, row), ParentID: g.parents[id]}
	if r, ok := g.derivatives[id]; ok {
		d.SourceID = r.sourceID
		d.Operations = r.operations
		d.Order = r.order
		d.Size = r.size
		d.Type = r.derivType
		d.MimeType = r.mimeType
		d.PostFilterOperations = r.postFilter
		d.Broken = r.broken
	}
	if img, ok := g.derivImages[id]; ok {
		d.Image = &types.DerivativeImagePayload{Width: img.width, Height: img.height}
	}
	return d
}

func (g *graph) buildUser(id int, row entityRow) *types.User {
	u := &types.User{Common: g.common(id, row)}
	if r, ok := g.users[id]; ok {
		u.UserName = r.userName
		u.FullName = r.fullName
		u.Email = r.email
		u.Language = r.language
		u.Locked = r.locked
	}
	return u
}

func (g *graph) buildGroup(id int, row entityRow) *types.Group {
	gr := &types.Group{Common: g.common(id, row)}
	if r, ok := g.groups[id]; ok {
		gr.GroupType = r.groupType
		gr.GroupName = r.groupName
	}
	return gr
}

func (g *graph) wireGroups(groups map[int]*types.Group, users map[int]*types.User) {
	for _, pair := range g.userGroups {
		gr, ok := groups[pair[0]]
		if !ok {
			continue
		}
		if u, ok := users[pair[1]]; ok {
			gr.Users = append(gr.Users, u)
		}
	}
}

func (g *graph) wireComments(comments map[int]*types.Comment, items map[int]*types.Item) {
	for _, c := range comments {
		if parent, ok := items[c.ParentID]; ok {
			parent.Comments = append(parent.Comments, c)
		} else {
			log.WithField("id", c.ID).Warn("comment attached to no item")
		}
	}
	for _, it := range items {
		sort.SliceStable(it.Comments, func(i, j int) bool {
			a, b := it.Comments[i], it.Comments[j]
			if !a.Date.Equal(b.Date) {
				return a.Date.Before(b.Date)
			}
			return a.ID < b.ID
		})
	}
}

func (g *graph) wireDerivatives(derivs map[int]*types.Derivative, items map[int]*types.Item, nodes map[int]types.Entity) {
	for _, d := range derivs {
		if d.SourceID != 0 {
			d.Source = nodes[d.SourceID]
		}
		if parent, ok := items[d.ParentID]; ok {
			parent.Derivatives = append(parent.Derivatives, d)
		} else if _, chained := derivs[d.ParentID]; !chained {
			// Chained derivatives hang off their parent derivative
			// and are reached through Source, not a child list.
			log.WithField("id", d.ID).Warn("derivative attached to no item")
		}
	}
	for _, it := range items {
		sort.SliceStable(it.Derivatives, func(i, j int) bool {
			a, b := it.Derivatives[i], it.Derivatives[j]
			if a.Order != b.Order {
				return a.Order < b.Order
			}
			return a.ID < b.ID
		})
	}
}

func (g *graph) wireItems(items map[int]*types.Item, users map[int]*types.User) {
	for _, it := range items {
		if it.OwnerID != 0 {
			it.Owner = users[it.OwnerID]
		}
		if it.ParentID == 0 {
			continue
		}
		if parent, ok := items[it.ParentID]; ok {
			it.Parent = parent
			parent.Subitems = append(parent.Subitems, it)
		} else {
			log.WithFields(log.Fields{"id": it.ID, "parent": it.ParentID}).
				Warn("item attached to no parent")
		}
	}
	for _, it := range items {
		sort.SliceStable(it.Subitems, func(i, j int) bool {
			a, b := it.Subitems[i], it.Subitems[j]
			if a.OrderWeight != b.OrderWeight {
				return a.OrderWeight < b.OrderWeight
			}
			return a.ID < b.ID
		})
	}
}

func (g *graph) wireLinks(nodes map[int]types.Entity, items map[int]*types.Item) {
	for _, node := range nodes {
		base := node.Base()
		if base.LinkID == 0 {
			continue
		}
		target, ok := items[base.LinkID]
		if !ok {
			log.WithFields(log.Fields{"id": base.ID, "link": base.LinkID}).
				Warn("link target is not an item")
			continue
		}
		base.Link = target
	}
}

// wireAccessLists builds each access list once and hands the same
// pointer to every subscribed item, preserving sharing.
func (g *graph) wireAccessLists(items map[int]*types.Item, nodes map[int]types.Entity) error {
	lists := make(map[int]*types.AccessList)
	for _, row := range g.access {
		list := lists[row.listID]
		if list == nil {
			list = &types.AccessList{ID: row.listID}
			lists[row.listID] = list
		}
		principal, ok := nodes[row.principalID]
		if !ok {
			return fmt.Errorf("%w: access list %d grants to entity %d",
				types.ErrUnknownPrincipal, row.listID, row.principalID)
		}
		switch principal.(type) {
		case *types.User, *types.Group, *types.Item:
		default:
			return fmt.Errorf("%w: access list %d grants to %s %d",
				types.ErrUnknownPrincipal, row.listID, principal.Tag(), row.principalID)
		}
		list.Entries = append(list.Entries, types.AccessEntry{
			Permission: row.permission,
			Principal:  principal,
		})
	}
	for itemID, listID := range g.subscribers {
		it, ok := items[itemID]
		if !ok {
			continue
		}
		if list, ok := lists[listID]; ok {
			it.AccessList = list
		}
	}
	return nil
}

func (g *graph) wirePrefs(items map[int]*types.Item) {
	for _, pref := range g.prefs {
		it, ok := items[pref.itemID]
		if !ok || it.Album == nil {
			continue
		}
		if it.Album.DerivativePrefs == nil {
			it.Album.DerivativePrefs = make(types.DerivativePrefs)
		}
		it.Album.DerivativePrefs[pref.derivType] =
			append(it.Album.DerivativePrefs[pref.derivType], pref.operations)
	}
}

// wireParameters distributes plugin parameter rows: item id zero is
// the gallery-wide scope, albums and users carry their own trees.
func (g *graph) wireParameters(doc *types.Document, items map[int]*types.Item, users map[int]*types.User) {
	byOwner := make(map[int][]phpser.Row)
	for _, p := range g.params {
		byOwner[p.itemID] = append(byOwner[p.itemID], p.row)
	}
	for ownerID, rows := range byOwner {
		params := phpser.Decode(rows)
		switch {
		case ownerID == 0:
			doc.PluginParameters = params
		default:
			if it, ok := items[ownerID]; ok && it.Album != nil {
				it.Album.PluginParameters = params
			} else if u, ok := users[ownerID]; ok {
				u.PluginParameters = params
			} else {
				log.WithField("id", ownerID).
					Warn("plugin parameters for entity that holds none")
			}
		}
	}
}

func sortedUsers(users map[int]*types.User) []*types.User {
	out := make([]*types.User, 0, len(users))
	for _, u := range users {
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func sortedGroups(groups map[int]*types.Group) []*types.Group {
	out := make([]*types.Group, 0, len(groups))
	for _, g := range groups {
		out = append(out, g)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
